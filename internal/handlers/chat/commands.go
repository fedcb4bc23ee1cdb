package handlers

import (
	"context"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamwavecut/tool"
	"github.com/pkg/errors"

	"github.com/iamwavecut/phishguard/internal/policy/permissions"
)

const startPayloadCheck = "check"

// handleCommand reports whether msg was a command this bot owns.
func (r *Router) handleCommand(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User) (bool, error) {
	if !r.addressedToMe(msg) {
		return false, nil
	}

	switch msg.Command() {
	case "start":
		text := welcomeText
		if strings.TrimSpace(msg.CommandArguments()) == startPayloadCheck {
			text = checkPromptText
		}
		return true, errors.WithMessage(tool.Err(r.reply(chat.ID, 0, text)), "cant send welcome")
	case "help":
		return true, errors.WithMessage(tool.Err(r.reply(chat.ID, 0, renderHelp(r.config.BotUsername))), "cant send help")
	case "stats":
		if user == nil || r.config.OwnerID == 0 || user.ID != r.config.OwnerID {
			return true, nil
		}
		stats, err := r.s.GetDB().GetAggregateStats(ctx, r.now())
		if err != nil {
			return true, errors.WithMessage(err, "cant load stats")
		}
		_, err = r.reply(chat.ID, 0, renderStats(stats))
		return true, errors.WithMessage(err, "cant send stats")
	case "settings":
		return true, r.handleSettingsCommand(ctx, chat, user)
	}
	return false, nil
}

func (r *Router) addressedToMe(msg *api.Message) bool {
	full := msg.CommandWithAt()
	at := strings.IndexByte(full, '@')
	if at < 0 {
		return true
	}
	return r.config.BotUsername == "" || strings.EqualFold(full[at+1:], r.config.BotUsername)
}

func (r *Router) isChatAdmin(chatID, userID int64) (bool, error) {
	member, err := r.s.GetBot().GetChatMember(api.GetChatMemberConfig{
		ChatConfigWithUser: api.ChatConfigWithUser{
			ChatConfig: api.ChatConfig{
				ChatID: chatID,
			},
			UserID: userID,
		},
	})
	if err != nil {
		return false, errors.WithMessage(err, "cant get chat member")
	}
	if r.admins != nil {
		r.admins.Invalidate(chatID, userID)
	}
	return permissions.IsAdmin(&member), nil
}
