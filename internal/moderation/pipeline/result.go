package pipeline

import "github.com/iamwavecut/phishguard/internal/moderation"

// Result is everything one run learned about a candidate.
type Result struct {
	RunID     string
	Candidate moderation.Candidate
	Escalated bool
	Policy    moderation.ChatPolicy

	// File and URL are nil when the artifact was absent or not checked.
	File *moderation.ReputationVerdict
	URL  *moderation.ReputationVerdict

	Reputation        moderation.ReputationVerdict
	Risk              moderation.RiskVerdict
	ThreatExplanation string
	Action            moderation.EnforcementAction

	ReputationSkipped bool
	RiskSkipped       bool
	FileTooLarge      bool

	reputationCalls int
	classifierCalls int
}

func (r Result) verdicts() []moderation.ReputationVerdict {
	verdicts := make([]moderation.ReputationVerdict, 0, 2)
	if r.File != nil {
		verdicts = append(verdicts, *r.File)
	}
	if r.URL != nil {
		verdicts = append(verdicts, *r.URL)
	}
	return verdicts
}

// IsThreat reports whether either external signal reached the top tier.
func (r Result) IsThreat() bool {
	return r.Reputation.IsMalicious() || r.Risk.Category == moderation.RiskDangerous
}

// FileUnresolved is true when analysis of an uploaded file did not finish in time.
func (r Result) FileUnresolved() bool {
	return r.File != nil && r.File.State == moderation.StateUnresolved
}
