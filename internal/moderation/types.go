// Package moderation holds the values passed between pipeline stages.
package moderation

import (
	"context"
	"errors"
	"io"
)

type ChatKind string

const (
	ChatPrivate ChatKind = "private"
	ChatGroup   ChatKind = "group"
)

// FileRef describes an attachment. Open may be called more than once.
type FileRef struct {
	Name   string
	Size   int64
	Opener func(ctx context.Context) (io.ReadCloser, error)
}

var ErrNoContent = errors.New("attachment content is not available")

func (f FileRef) Open(ctx context.Context) (io.ReadCloser, error) {
	if f.Opener == nil {
		return nil, ErrNoContent
	}
	return f.Opener(ctx)
}

// Candidate is one inspection unit derived from a message.
type Candidate struct {
	SenderID   int64
	ChatID     int64
	MessageID  int
	ChatKind   ChatKind
	Text       string
	URLs       []string
	Attachment *FileRef
	IsCommand  bool
	// TrustedSender marks posts made on behalf of the chat itself or its linked channel.
	TrustedSender bool
}

func (c Candidate) IsPrivate() bool {
	return c.ChatKind == ChatPrivate
}

func (c Candidate) HasText() bool {
	return c.Text != ""
}

func (c Candidate) FirstURL() (string, bool) {
	if len(c.URLs) == 0 {
		return "", false
	}
	return c.URLs[0], true
}

type Mode string

const (
	ModeActive Mode = "active"
	ModeSilent Mode = "silent"
)

func (m Mode) Valid() bool {
	return m == ModeActive || m == ModeSilent
}

type ChatPolicy struct {
	Mode   Mode
	Strict bool
}

func DefaultPolicy() ChatPolicy {
	return ChatPolicy{Mode: ModeActive}
}
