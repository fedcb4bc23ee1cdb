package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/phishguard/internal/db"
	"github.com/iamwavecut/phishguard/internal/moderation"
)

func (c *sqliteClient) GetChat(ctx context.Context, chatID int64) (*db.Chat, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	chat := &db.Chat{}
	query := `
		SELECT chat_id, title, protection_mode, strict_mode, created_at, updated_at
		FROM chats WHERE chat_id = ?
	`
	if err := c.db.GetContext(ctx, chat, query, chatID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get chat %d: %w", chatID, err)
	}
	return chat, nil
}

// GetPolicy returns the default policy for chats never configured.
func (c *sqliteClient) GetPolicy(ctx context.Context, chatID int64) (moderation.ChatPolicy, error) {
	chat, err := c.GetChat(ctx, chatID)
	if errors.Is(err, db.ErrNotFound) {
		return moderation.DefaultPolicy(), nil
	}
	if err != nil {
		return moderation.DefaultPolicy(), err
	}
	return chat.Policy(), nil
}

func (c *sqliteClient) RegisterChat(ctx context.Context, chatID int64, title string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now().Unix()
	query := `
		INSERT INTO chats (chat_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
		title = excluded.title
	`
	if _, err := c.db.ExecContext(ctx, query, chatID, title, now, now); err != nil {
		return fmt.Errorf("failed to register chat %d: %w", chatID, err)
	}
	return nil
}

// SetPolicy updates one field of a registered chat. Mode takes
// active|silent, strict takes 0|1.
func (c *sqliteClient) SetPolicy(ctx context.Context, chatID int64, field db.PolicyField, value string) error {
	var (
		query string
		arg   any
	)
	switch field {
	case db.PolicyMode:
		mode := moderation.Mode(value)
		if !mode.Valid() {
			return fmt.Errorf("invalid mode %q", value)
		}
		query, arg = "UPDATE chats SET protection_mode = ?, updated_at = ? WHERE chat_id = ?", string(mode)
	case db.PolicyStrict:
		switch value {
		case "0", "1":
		default:
			return fmt.Errorf("invalid strict value %q", value)
		}
		query, arg = "UPDATE chats SET strict_mode = ?, updated_at = ? WHERE chat_id = ?", value == "1"
	default:
		return fmt.Errorf("%w: %s", db.ErrUnknownField, field)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	res, err := c.db.ExecContext(ctx, query, arg, time.Now().Unix(), chatID)
	if err != nil {
		return fmt.Errorf("failed to set %s of chat %d: %w", field, chatID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return db.ErrNotFound
	}
	log.WithFields(log.Fields{"object": "sqlite", "chat_id": chatID, "field": field, "value": value}).Debug("policy updated")
	return nil
}
