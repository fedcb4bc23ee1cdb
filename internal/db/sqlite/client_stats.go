package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/iamwavecut/phishguard/internal/db"
)

func (c *sqliteClient) RecordUserActivity(ctx context.Context, activity db.UserActivity, at time.Time) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO users (user_id, username, full_name, first_seen, last_active, interaction_count)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		full_name = excluded.full_name,
		last_active = excluded.last_active,
		interaction_count = users.interaction_count + 1
	`
	ts := at.Unix()
	if _, err := c.db.ExecContext(ctx, query, activity.UserID, activity.UserName, activity.FullName, ts, ts); err != nil {
		return fmt.Errorf("failed to record activity of user %d: %w", activity.UserID, err)
	}
	return nil
}

// RecordAction creates the sender row when missing: posts made as a chat or
// channel never get one from RecordUserActivity.
func (c *sqliteClient) RecordAction(ctx context.Context, userID int64, action db.Action) error {
	if action == (db.Action{}) {
		return nil
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO users (user_id, first_seen, last_active, files_checked, links_checked, threats_found)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
		files_checked = users.files_checked + excluded.files_checked,
		links_checked = users.links_checked + excluded.links_checked,
		threats_found = users.threats_found + excluded.threats_found
	`
	ts := time.Now().Unix()
	if _, err := c.db.ExecContext(ctx, query, userID, ts, ts, flag(action.File), flag(action.Link), flag(action.Threat)); err != nil {
		return fmt.Errorf("failed to record action of user %d: %w", userID, err)
	}
	return nil
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (c *sqliteClient) RecordAPIUsage(ctx context.Context, reputationCalls, classifierCalls int) error {
	if reputationCalls == 0 && classifierCalls == 0 {
		return nil
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		UPDATE system_stats SET
		reputation_calls = reputation_calls + ?,
		classifier_calls = classifier_calls + ?,
		updated_at = ?
		WHERE id = 1
	`
	if _, err := c.db.ExecContext(ctx, query, reputationCalls, classifierCalls, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to record api usage: %w", err)
	}
	return nil
}

func (c *sqliteClient) GetAggregateStats(ctx context.Context, now time.Time) (db.AggregateStats, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	today := db.DayStart(now)
	week := today.AddDate(0, 0, -7)

	var stats db.AggregateStats
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN user_id > 0 THEN 1 ELSE 0 END), 0) AS total_users,
			COALESCE(SUM(CASE WHEN user_id > 0 AND last_active >= ? THEN 1 ELSE 0 END), 0) AS active_today,
			COALESCE(SUM(CASE WHEN user_id > 0 AND last_active >= ? THEN 1 ELSE 0 END), 0) AS active_week,
			COALESCE(SUM(files_checked), 0) AS files_checked,
			COALESCE(SUM(links_checked), 0) AS links_checked,
			COALESCE(SUM(threats_found), 0) AS threats_found,
			(SELECT reputation_calls FROM system_stats WHERE id = 1) AS reputation_calls,
			(SELECT classifier_calls FROM system_stats WHERE id = 1) AS classifier_calls
		FROM users
	`
	if err := c.db.GetContext(ctx, &stats, query, today.Unix(), week.Unix()); err != nil {
		return db.AggregateStats{}, fmt.Errorf("failed to get aggregate stats: %w", err)
	}
	return stats, nil
}
