package handlers

import (
	"context"
	"fmt"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/phishguard/internal/bot"
	"github.com/iamwavecut/phishguard/internal/moderation"
	"github.com/iamwavecut/phishguard/internal/moderation/pipeline"
)

// inspectPrivate answers with a status message and edits it into the report.
func (r *Router) inspectPrivate(ctx context.Context, msg *api.Message, c moderation.Candidate) {
	logger := r.getLogEntry().WithFields(log.Fields{"chat_id": c.ChatID, "user_id": c.SenderID})

	status, err := r.reply(msg.Chat.ID, msg.MessageID, checkingText)
	if err != nil {
		logger.WithField("error", err.Error()).Error("cant send status message")
	}

	res, err := r.runner.Run(ctx, c, r.noticeFunc(msg.Chat.ID))
	if err != nil {
		logger.WithField("error", err.Error()).Warn("inspection cancelled")
		return
	}

	report := renderPrivateReport(res, r.config.MaxFileSize)
	if status.MessageID == 0 {
		if _, err := r.reply(msg.Chat.ID, msg.MessageID, report); err != nil {
			logger.WithField("error", err.Error()).Error("cant send report")
		}
		return
	}
	edit := api.NewEditMessageText(msg.Chat.ID, status.MessageID, report)
	edit.ParseMode = api.ModeHTML
	if _, err := r.s.GetBot().Send(edit); err != nil {
		logger.WithField("error", err.Error()).Error("cant edit status into report")
	}
}

// noticeFunc tells a private sender they are being throttled; the notice goes away after the wait.
func (r *Router) noticeFunc(chatID int64) func(wait time.Duration) {
	return func(wait time.Duration) {
		seconds := int(wait.Round(time.Second) / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		notice, err := r.reply(chatID, 0, fmt.Sprintf("⏳ Too many requests. Your check will start in %d s.", seconds))
		if err != nil {
			r.getLogEntry().WithField("error", err.Error()).Warn("cant send rate limit notice")
			return
		}
		time.AfterFunc(wait, func() {
			if err := bot.DeleteChatMessage(context.Background(), r.s.GetBot(), chatID, notice.MessageID); err != nil {
				r.getLogEntry().WithField("error", err.Error()).Trace("cant delete rate limit notice")
			}
		})
	}
}

// inspectGroup applies the decided action. Groups never get throttling notices.
func (r *Router) inspectGroup(ctx context.Context, msg *api.Message, c moderation.Candidate) {
	logger := r.getLogEntry().WithFields(log.Fields{"chat_id": c.ChatID, "user_id": c.SenderID})

	res, err := r.runner.Run(ctx, c, nil)
	if err != nil {
		logger.WithField("error", err.Error()).Warn("inspection cancelled")
		return
	}
	r.dispatch(ctx, msg, res, logger)
}

func (r *Router) dispatch(ctx context.Context, msg *api.Message, res pipeline.Result, logger *log.Entry) {
	logger = logger.WithFields(log.Fields{"run_id": res.RunID, "reason": res.Action.ReasonTag})
	deleted := false

	switch res.Action.Visibility {
	case moderation.Ignore:
		return
	case moderation.WarnInChat:
		if _, err := r.reply(msg.Chat.ID, msg.MessageID, renderWarning(res)); err != nil {
			logger.WithField("error", err.Error()).Error("cant send warning")
		}
	case moderation.DeleteSilent, moderation.DeleteAndAnnounce:
		if err := bot.DeleteChatMessage(ctx, r.s.GetBot(), msg.Chat.ID, msg.MessageID); err != nil {
			logger.WithField("error", err.Error()).Error("cant delete message")
		} else {
			deleted = true
			logger.Info("message deleted")
		}
		if res.Action.Visibility == moderation.DeleteAndAnnounce {
			replyTo := 0
			if !deleted {
				replyTo = msg.MessageID
			}
			if _, err := r.reply(msg.Chat.ID, replyTo, renderAnnouncement(res, msg.From, deleted)); err != nil {
				logger.WithField("error", err.Error()).Error("cant send announcement")
			}
		}
	}

	if res.Action.NotifyOperatorChannel {
		r.notifier.Report(res, &msg.Chat, msg.From, deleted)
	}
}
