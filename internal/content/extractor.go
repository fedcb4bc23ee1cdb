// Package content turns transport messages into moderation candidates.
package content

import (
	"context"
	"io"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/iamwavecut/phishguard/internal/moderation"
)

// FileFetcher streams an attachment by its transport file id.
type FileFetcher func(ctx context.Context, fileID string) (io.ReadCloser, error)

// FromMessage builds a Candidate. Hidden text_link entities count as URLs too.
func FromMessage(msg *api.Message, fetch FileFetcher) moderation.Candidate {
	if msg == nil {
		return moderation.Candidate{}
	}
	c := moderation.Candidate{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		ChatKind:  kindOf(msg.Chat.Type),
		Text:      strings.TrimSpace(msg.Text),
		IsCommand: msg.IsCommand(),
	}
	if c.Text == "" {
		c.Text = strings.TrimSpace(msg.Caption)
	}
	switch {
	case msg.From != nil:
		c.SenderID = msg.From.ID
	case msg.SenderChat != nil:
		c.SenderID = msg.SenderChat.ID
	}
	if msg.SenderChat != nil && (msg.SenderChat.ID == msg.Chat.ID || msg.IsAutomaticForward) {
		c.TrustedSender = true
	}

	c.URLs = ExtractURLs(c.Text)
	c.URLs = appendUnique(c.URLs, entityURLs(msg.Entities)...)
	c.URLs = appendUnique(c.URLs, entityURLs(msg.CaptionEntities)...)

	if doc := msg.Document; doc != nil {
		fileID := doc.FileID
		ref := &moderation.FileRef{
			Name: doc.FileName,
			Size: int64(doc.FileSize),
		}
		if fetch != nil {
			ref.Opener = func(ctx context.Context) (io.ReadCloser, error) {
				return fetch(ctx, fileID)
			}
		}
		c.Attachment = ref
	}
	return c
}

func kindOf(chatType string) moderation.ChatKind {
	if chatType == "private" {
		return moderation.ChatPrivate
	}
	return moderation.ChatGroup
}

func entityURLs(entities []api.MessageEntity) []string {
	var urls []string
	for _, e := range entities {
		if e.Type == "text_link" && e.URL != "" {
			urls = append(urls, e.URL)
		}
	}
	return urls
}
