package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/phishguard/internal/bot"
	"github.com/iamwavecut/phishguard/internal/content"
	"github.com/iamwavecut/phishguard/internal/db"
	"github.com/iamwavecut/phishguard/internal/moderation"
	"github.com/iamwavecut/phishguard/internal/moderation/pipeline"
)

type (
	Runner interface {
		Run(ctx context.Context, c moderation.Candidate, onNotice func(wait time.Duration)) (pipeline.Result, error)
	}

	ActivityRecorder interface {
		UserActivity(activity db.UserActivity)
	}

	// AdminCache is told when a settings check already fetched fresh membership.
	AdminCache interface {
		Invalidate(chatID, userID int64)
	}

	Config struct {
		OwnerID           int64
		SecurityLogChatID int64
		BotUsername       string
		MaxFileSize       int64
	}

	// Router dispatches updates by priority: callbacks, inline queries,
	// commands, documents, text. Inspections run in the background.
	Router struct {
		s        bot.Service
		runner   Runner
		fetch    content.FileFetcher
		stats    ActivityRecorder
		admins   AdminCache
		notifier *Notifier
		config   Config
		now      func() time.Time

		mu     sync.Mutex
		closed bool
		wg     sync.WaitGroup
	}
)

func NewRouter(s bot.Service, runner Runner, stats ActivityRecorder, admins AdminCache, config Config) *Router {
	r := &Router{
		s:        s,
		runner:   runner,
		fetch:    bot.NewFileFetcher(s.GetBot(), nil),
		stats:    stats,
		admins:   admins,
		notifier: NewNotifier(s.GetBot(), config.SecurityLogChatID),
		config:   config,
		now:      time.Now,
	}
	r.getLogEntry().Debug("created new router")
	return r
}

func (r *Router) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}
	if u == nil {
		return false, errors.New("nil update")
	}

	switch {
	case u.CallbackQuery != nil:
		return false, r.handleCallbackQuery(ctx, u.CallbackQuery, user)
	case u.InlineQuery != nil:
		return false, r.handleInlineQuery(u.InlineQuery)
	}

	msg := u.Message
	if msg == nil && u.EditedMessage != nil && u.EditedMessage.Chat.Type != "private" {
		msg = u.EditedMessage
	}
	if msg == nil || chat == nil {
		return true, nil
	}
	r.recordActivity(user)

	if msg.IsCommand() && u.Message != nil {
		handled, err := r.handleCommand(ctx, msg, chat, user)
		if err != nil || handled {
			return false, err
		}
	}

	if msg.Document == nil && msg.Text == "" && msg.Caption == "" {
		return true, nil
	}
	r.inspect(ctx, msg)
	return false, nil
}

// Stop refuses new inspections and waits for running ones while ctx allows.
func (r *Router) Stop(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return r.wait(ctx)
}

func (r *Router) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Router) inspect(ctx context.Context, msg *api.Message) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.getLogEntry().WithField("chat_id", msg.Chat.ID).Debug("router stopped, message dropped")
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	candidate := content.FromMessage(msg, r.fetch)
	go func() {
		defer r.wg.Done()
		if candidate.IsPrivate() {
			r.inspectPrivate(ctx, msg, candidate)
			return
		}
		r.inspectGroup(ctx, msg, candidate)
	}()
}

func (r *Router) recordActivity(user *api.User) {
	if r.stats == nil || user == nil || user.IsBot {
		return
	}
	r.stats.UserActivity(db.UserActivity{
		UserID:   user.ID,
		UserName: user.UserName,
		FullName: bot.GetFullName(user),
	})
}

func (r *Router) reply(chatID int64, replyTo int, text string) (api.Message, error) {
	msg := api.NewMessage(chatID, text)
	msg.ParseMode = api.ModeHTML
	msg.LinkPreviewOptions.IsDisabled = true
	if replyTo != 0 {
		msg.ReplyParameters.MessageID = replyTo
		msg.ReplyParameters.ChatID = chatID
		msg.ReplyParameters.AllowSendingWithoutReply = true
	}
	return r.s.GetBot().Send(msg)
}

func (r *Router) getLogEntry() *log.Entry {
	return log.WithField("object", "Router")
}
