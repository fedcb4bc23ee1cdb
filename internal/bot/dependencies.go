package bot

import (
	"context"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/iamwavecut/phishguard/internal/db"
)

// Transport is the part of the bot API the handlers talk to. *api.BotAPI satisfies it.
type Transport interface {
	Send(c api.Chattable) (api.Message, error)
	Request(c api.Chattable) (*api.APIResponse, error)
	GetChatMember(config api.GetChatMemberConfig) (api.ChatMember, error)
	GetFileDirectURL(fileID string) (string, error)
}

// ServiceBot defines bot-specific operations
type ServiceBot interface {
	GetBot() Transport
}

// ServiceDB defines database-specific operations
type ServiceDB interface {
	GetDB() db.Client
}

type Service interface {
	ServiceBot
	ServiceDB
}

// Handler defines the interface for all update handlers in the system
type Handler interface {
	Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (proceed bool, err error)
}
