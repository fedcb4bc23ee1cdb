package moderation

type ArtifactKind string

const (
	ArtifactFile ArtifactKind = "file"
	ArtifactURL  ArtifactKind = "url"
)

// QueryState tracks a reputation lookup from first contact to a terminal outcome.
type QueryState int

const (
	StateNotSubmitted QueryState = iota
	StateSubmitted
	StatePolling
	StateResolved
	StateUnresolved
	StateUnavailable
)

func (s QueryState) String() string {
	switch s {
	case StateNotSubmitted:
		return "not_submitted"
	case StateSubmitted:
		return "submitted"
	case StatePolling:
		return "polling"
	case StateResolved:
		return "resolved"
	case StateUnresolved:
		return "unresolved"
	case StateUnavailable:
		return "unavailable"
	}
	return "invalid"
}

func (s QueryState) Terminal() bool {
	return s == StateResolved || s == StateUnresolved || s == StateUnavailable
}

type Outcome string

const (
	OutcomeNone             Outcome = ""
	OutcomeClean            Outcome = "clean"
	OutcomeMalicious        Outcome = "malicious"
	OutcomeInsufficientData Outcome = "insufficient_data"
)

type ReputationVerdict struct {
	Kind        ArtifactKind
	Subject     string
	State       QueryState
	Outcome     Outcome
	Detections  int
	EngineTotal int
	Labels      []string
	Detail      string
}

func (v ReputationVerdict) IsMalicious() bool {
	return v.State == StateResolved && v.Outcome == OutcomeMalicious && v.Detections > 0
}

func (v ReputationVerdict) IsClean() bool {
	return v.State == StateResolved && (v.Outcome == OutcomeClean || v.Outcome == OutcomeInsufficientData)
}

// Label is a stable name for logs and metrics.
func (v ReputationVerdict) Label() string {
	if v.State == StateResolved {
		return string(v.Outcome)
	}
	return v.State.String()
}

func severity(v ReputationVerdict) int {
	switch {
	case v.IsMalicious():
		return 5
	case v.State == StateResolved && v.Outcome == OutcomeClean:
		return 4
	case v.State == StateResolved:
		return 3
	case v.State == StateUnresolved:
		return 2
	case v.State == StateUnavailable:
		return 1
	}
	return 0
}

// UnionReputation folds per-artifact verdicts into the one the policy sees:
// the most severe wins, so any malicious artifact makes the union malicious.
func UnionReputation(verdicts ...ReputationVerdict) ReputationVerdict {
	var (
		best  ReputationVerdict
		found bool
	)
	for _, v := range verdicts {
		if !found || severity(v) > severity(best) {
			best = v
			found = true
		}
	}
	if !found {
		return ReputationVerdict{State: StateUnavailable, Detail: "no artifacts"}
	}
	return best
}

type RiskCategory int

const (
	RiskUnknown RiskCategory = iota
	RiskSafe
	RiskSuspicious
	RiskDangerous
)

func (c RiskCategory) String() string {
	switch c {
	case RiskSafe:
		return "safe"
	case RiskSuspicious:
		return "suspicious"
	case RiskDangerous:
		return "dangerous"
	}
	return "unknown"
}

type RiskVerdict struct {
	Category       RiskCategory
	RawExplanation string
}

type Visibility int

const (
	Ignore Visibility = iota
	WarnInChat
	DeleteSilent
	DeleteAndAnnounce
)

func (v Visibility) String() string {
	switch v {
	case WarnInChat:
		return "warn_in_chat"
	case DeleteSilent:
		return "delete_silent"
	case DeleteAndAnnounce:
		return "delete_and_announce"
	}
	return "ignore"
}

func (v Visibility) IsDelete() bool {
	return v == DeleteSilent || v == DeleteAndAnnounce
}

type EnforcementAction struct {
	Visibility            Visibility
	NotifyOperatorChannel bool
	ReasonTag             string
}
