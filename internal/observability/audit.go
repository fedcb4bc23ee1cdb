package observability

import (
	"go.uber.org/zap"

	"github.com/iamwavecut/phishguard/internal/moderation"
)

type AuditEntry struct {
	RunID      string
	Candidate  moderation.Candidate
	Reputation moderation.ReputationVerdict
	Risk       moderation.RiskVerdict
	Action     moderation.EnforcementAction
}

// Audit writes one line per enforcement decision to Logger.
func Audit(entry AuditEntry) {
	AuditTo(Logger, entry)
}

func AuditTo(logger *zap.Logger, entry AuditEntry) {
	if logger == nil {
		return
	}
	c := entry.Candidate
	logger.Info("enforcement decision",
		zap.String("run_id", entry.RunID),
		zap.Int64("chat_id", c.ChatID),
		zap.String("chat_kind", string(c.ChatKind)),
		zap.Int64("sender_id", c.SenderID),
		zap.Int("message_id", c.MessageID),
		zap.Int("urls", len(c.URLs)),
		zap.Bool("attachment", c.Attachment != nil),
		zap.String("visibility", entry.Action.Visibility.String()),
		zap.String("reason", entry.Action.ReasonTag),
		zap.Bool("notify_operator", entry.Action.NotifyOperatorChannel),
		zap.String("reputation_kind", string(entry.Reputation.Kind)),
		zap.String("reputation", entry.Reputation.Label()),
		zap.Int("detections", entry.Reputation.Detections),
		zap.Int("engine_total", entry.Reputation.EngineTotal),
		zap.String("risk", entry.Risk.Category.String()),
	)
}
