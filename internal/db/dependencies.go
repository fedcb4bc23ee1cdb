package db

import (
	"context"
	"time"

	"github.com/iamwavecut/phishguard/internal/moderation"
)

type Client interface {
	Close() error

	RecordUserActivity(ctx context.Context, activity UserActivity, at time.Time) error
	RecordAction(ctx context.Context, userID int64, action Action) error
	RecordAPIUsage(ctx context.Context, reputationCalls, classifierCalls int) error
	GetAggregateStats(ctx context.Context, now time.Time) (AggregateStats, error)

	GetChat(ctx context.Context, chatID int64) (*Chat, error)
	GetPolicy(ctx context.Context, chatID int64) (moderation.ChatPolicy, error)
	RegisterChat(ctx context.Context, chatID int64, title string) error
	SetPolicy(ctx context.Context, chatID int64, field PolicyField, value string) error
}
