package db

import (
	"errors"
	"time"

	"github.com/iamwavecut/phishguard/internal/moderation"
)

var ErrNotFound = errors.New("not found")

type (
	// UserActivity identifies a user interacting with the bot.
	UserActivity struct {
		UserID   int64  `db:"user_id"`
		UserName string `db:"username"`
		FullName string `db:"full_name"`
	}

	// Action marks what a single check touched.
	Action struct {
		File   bool
		Link   bool
		Threat bool
	}

	AggregateStats struct {
		TotalUsers      int64 `db:"total_users" json:"total_users"`
		ActiveToday     int64 `db:"active_today" json:"active_today"`
		ActiveWeek      int64 `db:"active_week" json:"active_week"`
		FilesChecked    int64 `db:"files_checked" json:"files_checked"`
		LinksChecked    int64 `db:"links_checked" json:"links_checked"`
		ThreatsFound    int64 `db:"threats_found" json:"threats_found"`
		ReputationCalls int64 `db:"reputation_calls" json:"reputation_calls"`
		ClassifierCalls int64 `db:"classifier_calls" json:"classifier_calls"`
	}

	Chat struct {
		ChatID         int64  `db:"chat_id"`
		Title          string `db:"title"`
		ProtectionMode string `db:"protection_mode"`
		StrictMode     bool   `db:"strict_mode"`
		CreatedAt      int64  `db:"created_at"`
		UpdatedAt      int64  `db:"updated_at"`
	}

	PolicyField string
)

const (
	PolicyMode   PolicyField = "mode"
	PolicyStrict PolicyField = "strict"
)

var ErrUnknownField = errors.New("unknown policy field")

// Policy converts the stored row, falling back to Active for unknown modes.
func (c *Chat) Policy() moderation.ChatPolicy {
	policy := moderation.DefaultPolicy()
	if c == nil {
		return policy
	}
	if mode := moderation.Mode(c.ProtectionMode); mode.Valid() {
		policy.Mode = mode
	}
	policy.Strict = c.StrictMode
	return policy
}

// DayStart returns local midnight of t.
func DayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
