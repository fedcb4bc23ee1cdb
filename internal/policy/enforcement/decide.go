// Package enforcement maps moderation signals and chat policy to an action.
package enforcement

import "github.com/iamwavecut/phishguard/internal/moderation"

const (
	ReasonReputationMalicious = "reputation_malicious"
	ReasonRiskDangerous       = "risk_dangerous"
	ReasonRiskSuspicious      = "risk_suspicious"
	ReasonClean               = "clean"
)

// Decide is pure: the same inputs always give the same action.
// Private chats always get the full report and never touch the operator channel.
func Decide(
	reputation moderation.ReputationVerdict,
	risk moderation.RiskVerdict,
	policy moderation.ChatPolicy,
	kind moderation.ChatKind,
) moderation.EnforcementAction {
	visibility, reason := decideGroup(reputation, risk, policy)
	if kind == moderation.ChatPrivate {
		return moderation.EnforcementAction{
			Visibility: moderation.WarnInChat,
			ReasonTag:  reason,
		}
	}
	return moderation.EnforcementAction{
		Visibility:            visibility,
		NotifyOperatorChannel: visibility.IsDelete(),
		ReasonTag:             reason,
	}
}

func decideGroup(
	reputation moderation.ReputationVerdict,
	risk moderation.RiskVerdict,
	policy moderation.ChatPolicy,
) (moderation.Visibility, string) {
	switch {
	case reputation.IsMalicious():
		return deleteFor(policy), ReasonReputationMalicious
	case risk.Category == moderation.RiskDangerous:
		return deleteFor(policy), ReasonRiskDangerous
	case risk.Category == moderation.RiskSuspicious:
		if policy.Strict {
			return deleteFor(policy), ReasonRiskSuspicious
		}
		if policy.Mode == moderation.ModeSilent {
			return moderation.Ignore, ReasonRiskSuspicious
		}
		return moderation.WarnInChat, ReasonRiskSuspicious
	}
	return moderation.Ignore, ReasonClean
}

func deleteFor(policy moderation.ChatPolicy) moderation.Visibility {
	if policy.Mode == moderation.ModeSilent {
		return moderation.DeleteSilent
	}
	return moderation.DeleteAndAnnounce
}
