package handlers

import (
	"html"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamwavecut/tool"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/phishguard/internal/bot"
	"github.com/iamwavecut/phishguard/internal/moderation/pipeline"
)

const excerptRunes = 200

const operatorReportTemplate = `🚨 <b>Threat removed</b>

<b>Chat:</b> {{ .chat }} (<code>{{ .chat_id }}</code>)
<b>User:</b> {{ .user }} (<code>{{ .user_id }}</code>)
<b>Type:</b> {{ .reason }}
{{- if .subject }}
<b>Item:</b> <code>{{ .subject }}</code>{{ end }}
{{- if .analysis }}

<b>Analysis:</b> {{ .analysis }}{{ end }}

<b>Action:</b> {{ .action }}
<i>run {{ .run_id }}</i>`

// Notifier posts removal reports to the operator security channel.
type Notifier struct {
	bot    bot.Transport
	chatID int64
}

func NewNotifier(b bot.Transport, chatID int64) *Notifier {
	return &Notifier{bot: b, chatID: chatID}
}

func (n *Notifier) Enabled() bool {
	return n != nil && n.chatID != 0
}

func (n *Notifier) Report(res pipeline.Result, chat *api.Chat, sender *api.User, deleted bool) {
	if !n.Enabled() {
		return
	}
	msg := api.NewMessage(n.chatID, renderOperatorReport(res, chat, sender, deleted))
	msg.ParseMode = api.ModeHTML
	msg.LinkPreviewOptions.IsDisabled = true
	if _, err := n.bot.Send(msg); err != nil {
		log.WithField("object", "Notifier").WithField("run_id", res.RunID).WithField("error", err.Error()).Error("cant send operator report")
	}
}

func renderOperatorReport(res pipeline.Result, chat *api.Chat, sender *api.User, deleted bool) string {
	chatTitle, userName := "", ""
	var chatID, userID int64
	if chat != nil {
		chatTitle, chatID = chat.Title, chat.ID
	}
	if sender != nil {
		userName, userID = bot.GetFullName(sender), sender.ID
		if sender.UserName != "" {
			userName += " @" + sender.UserName
		}
	}

	action := "message deleted automatically"
	if !deleted {
		action = "deletion failed, check the bot permissions"
	}

	return tool.ExecTemplate(operatorReportTemplate, map[string]any{
		"chat":     html.EscapeString(chatTitle),
		"chat_id":  chatID,
		"user":     html.EscapeString(userName),
		"user_id":  userID,
		"reason":   reasonText(res.Action.ReasonTag),
		"subject":  html.EscapeString(reportSubject(res)),
		"analysis": html.EscapeString(reportAnalysis(res)),
		"action":   action,
		"run_id":   res.RunID,
	})
}

func reportSubject(res pipeline.Result) string {
	c := res.Candidate
	switch {
	case c.Attachment != nil && c.Attachment.Name != "":
		return c.Attachment.Name
	case len(c.URLs) > 0:
		return c.URLs[0]
	}
	return excerpt(c.Text, excerptRunes)
}

func reportAnalysis(res pipeline.Result) string {
	if res.Reputation.IsMalicious() && len(res.Reputation.Labels) > 0 {
		return strings.Join(res.Reputation.Labels, ", ")
	}
	return excerpt(res.Risk.RawExplanation, maxExplanationRunes/3)
}

func excerpt(text string, limit int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit]) + "…"
}
