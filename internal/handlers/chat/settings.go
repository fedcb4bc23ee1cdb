package handlers

import (
	"context"
	"fmt"
	"html"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/phishguard/internal/db"
	"github.com/iamwavecut/phishguard/internal/moderation"
)

const (
	callbackModePrefix   = "set_mode_"
	callbackStrictPrefix = "set_strict_"
)

func (r *Router) handleSettingsCommand(ctx context.Context, chat *api.Chat, user *api.User) error {
	if chat.IsPrivate() {
		_, err := r.reply(chat.ID, 0, "Use /settings in a group where I am an administrator.")
		return errors.WithMessage(err, "cant send settings hint")
	}
	if user == nil {
		return nil
	}
	admin, err := r.isChatAdmin(chat.ID, user.ID)
	if err != nil {
		return err
	}
	if !admin {
		_, err := r.reply(chat.ID, 0, "Only chat administrators can change protection settings.")
		return errors.WithMessage(err, "cant send settings refusal")
	}

	if err := r.s.GetDB().RegisterChat(ctx, chat.ID, chat.Title); err != nil {
		return errors.WithMessage(err, "cant register chat")
	}
	policy, err := r.s.GetDB().GetPolicy(ctx, chat.ID)
	if err != nil {
		return errors.WithMessage(err, "cant load policy")
	}

	msg := api.NewMessage(chat.ID, renderSettings(chat.Title, policy))
	msg.ParseMode = api.ModeHTML
	msg.ReplyMarkup = settingsKeyboard(policy)
	_, err = r.s.GetBot().Send(msg)
	return errors.WithMessage(err, "cant send settings")
}

func (r *Router) handleCallbackQuery(ctx context.Context, cq *api.CallbackQuery, user *api.User) error {
	field, value, ok := parseSettingsCallback(cq.Data)
	if !ok || cq.Message == nil {
		return nil
	}
	chat := cq.Message.Chat
	logger := r.getLogEntry().WithFields(log.Fields{"chat_id": chat.ID, "field": field, "value": value})

	if user == nil {
		return nil
	}
	admin, err := r.isChatAdmin(chat.ID, user.ID)
	if err != nil {
		logger.WithField("error", err.Error()).Warn("cant verify settings caller")
	}
	if !admin {
		_, err := r.s.GetBot().Request(api.NewCallbackWithAlert(cq.ID, "Only chat administrators can change these settings."))
		return errors.WithMessage(err, "cant answer callback")
	}

	if err := r.s.GetDB().SetPolicy(ctx, chat.ID, field, value); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			if err := r.s.GetDB().RegisterChat(ctx, chat.ID, chat.Title); err != nil {
				return errors.WithMessage(err, "cant register chat")
			}
			err = r.s.GetDB().SetPolicy(ctx, chat.ID, field, value)
		}
		if err != nil {
			_, _ = r.s.GetBot().Request(api.NewCallback(cq.ID, "Could not save the setting."))
			return errors.WithMessage(err, "cant save policy")
		}
	}
	logger.Info("policy updated")

	policy, err := r.s.GetDB().GetPolicy(ctx, chat.ID)
	if err != nil {
		return errors.WithMessage(err, "cant reload policy")
	}
	edit := api.NewEditMessageTextAndMarkup(chat.ID, cq.Message.MessageID, renderSettings(chat.Title, policy), settingsKeyboard(policy))
	edit.ParseMode = api.ModeHTML
	if _, err := r.s.GetBot().Send(edit); err != nil {
		logger.WithField("error", err.Error()).Warn("cant refresh settings message")
	}
	_, err = r.s.GetBot().Request(api.NewCallback(cq.ID, "Saved"))
	return errors.WithMessage(err, "cant answer callback")
}

func parseSettingsCallback(data string) (db.PolicyField, string, bool) {
	switch {
	case strings.HasPrefix(data, callbackModePrefix):
		value := strings.TrimPrefix(data, callbackModePrefix)
		return db.PolicyMode, value, moderation.Mode(value).Valid()
	case strings.HasPrefix(data, callbackStrictPrefix):
		value := strings.TrimPrefix(data, callbackStrictPrefix)
		return db.PolicyStrict, value, value == "0" || value == "1"
	}
	return "", "", false
}

func renderSettings(title string, policy moderation.ChatPolicy) string {
	mode := "🟢 Active: dangerous messages are removed with a notice, suspicious ones get a warning."
	if policy.Mode == moderation.ModeSilent {
		mode = "🔇 Silent: dangerous messages are removed quietly, no warnings are posted."
	}
	strict := "off: suspicious messages stay"
	if policy.Strict {
		strict = "on: suspicious messages are removed too"
	}
	return fmt.Sprintf("⚙️ <b>Protection settings</b> for %s\n\n<b>Mode:</b> %s\n<b>Strict mode:</b> %s",
		html.EscapeString(title), mode, strict)
}

func settingsKeyboard(policy moderation.ChatPolicy) api.InlineKeyboardMarkup {
	mark := func(on bool, label string) string {
		if on {
			return "✅ " + label
		}
		return label
	}
	return api.NewInlineKeyboardMarkup(
		api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData(mark(policy.Mode == moderation.ModeActive, "Active"), callbackModePrefix+string(moderation.ModeActive)),
			api.NewInlineKeyboardButtonData(mark(policy.Mode == moderation.ModeSilent, "Silent"), callbackModePrefix+string(moderation.ModeSilent)),
		),
		api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData(mark(!policy.Strict, "Strict off"), callbackStrictPrefix+"0"),
			api.NewInlineKeyboardButtonData(mark(policy.Strict, "Strict on"), callbackStrictPrefix+"1"),
		),
	)
}
