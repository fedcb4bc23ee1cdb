package handlers

import (
	"fmt"
	"html"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"

	"github.com/iamwavecut/phishguard/internal/content"
)

const inlineCacheSeconds = 10

// handleInlineQuery offers a deep link into the private chat; checks never run inline.
func (r *Router) handleInlineQuery(q *api.InlineQuery) error {
	query := strings.TrimSpace(q.Query)
	deepLink := fmt.Sprintf("https://t.me/%s?start=%s", r.config.BotUsername, startPayloadCheck)

	var article api.InlineQueryResultArticle
	switch urls := content.ExtractURLs(query); {
	case query == "":
		article = api.NewInlineQueryResultArticleHTML("hint", "Check a link or message",
			"🛡 Send suspicious files, links and messages to PhishGuard for a check.")
		article.Description = "Type a link or text after the bot name"
	case len(urls) > 0:
		article = api.NewInlineQueryResultArticleHTML("url", "Check this link",
			fmt.Sprintf("🔗 <code>%s</code>\n\nForward it to PhishGuard to check it.", html.EscapeString(urls[0])))
		article.Description = urls[0]
	default:
		article = api.NewInlineQueryResultArticleHTML("text", "Check this message",
			fmt.Sprintf("💬 %s\n\nForward it to PhishGuard to check it.", html.EscapeString(excerpt(query, excerptRunes))))
		article.Description = excerpt(query, 64)
	}
	markup := api.NewInlineKeyboardMarkup(api.NewInlineKeyboardRow(
		api.NewInlineKeyboardButtonURL("Open PhishGuard", deepLink),
	))
	article.ReplyMarkup = &markup

	_, err := r.s.GetBot().Request(api.InlineConfig{
		InlineQueryID: q.ID,
		Results:       []any{article},
		CacheTime:     inlineCacheSeconds,
		IsPersonal:    true,
	})
	return errors.WithMessage(err, "cant answer inline query")
}
