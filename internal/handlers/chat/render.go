package handlers

import (
	"fmt"
	"html"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamwavecut/tool"

	"github.com/iamwavecut/phishguard/internal/bot"
	"github.com/iamwavecut/phishguard/internal/db"
	"github.com/iamwavecut/phishguard/internal/moderation"
	"github.com/iamwavecut/phishguard/internal/moderation/pipeline"
	"github.com/iamwavecut/phishguard/internal/moderation/risk"
	"github.com/iamwavecut/phishguard/internal/policy/enforcement"
)

// Telegram caps messages at 4096 characters; leave room for markup.
const maxExplanationRunes = 3000

const checkingText = "🔍 Checking, please wait…"

const welcomeText = `🛡 <b>PhishGuard</b>

I check files, links and messages for phishing, scams and malware.

<b>In private chat:</b> send me a file, a link or a suspicious message and I will report what I find.
<b>In groups:</b> add me as an administrator with the right to delete messages. I will remove dangerous content and warn about suspicious messages.

Use /help for the list of commands.`

const helpText = `<b>Commands</b>

/start - introduction
/help - this message
/settings - chat protection settings (group administrators)

<b>Inline mode:</b> type <code>@{{ .bot }} </code> followed by a link or text in any chat to check it here.`

const checkPromptText = "Send me a file, a link or a message to check."

const statsTemplate = `📊 <b>PhishGuard statistics</b>

Users: {{ .TotalUsers }}
Active today: {{ .ActiveToday }}
Active this week: {{ .ActiveWeek }}

Files checked: {{ .FilesChecked }}
Links checked: {{ .LinksChecked }}
Threats found: {{ .ThreatsFound }}

Reputation API calls: {{ .ReputationCalls }}
Classifier calls: {{ .ClassifierCalls }}`

func renderStats(stats db.AggregateStats) string {
	return tool.ExecTemplate(statsTemplate, map[string]any{
		"TotalUsers":      stats.TotalUsers,
		"ActiveToday":     stats.ActiveToday,
		"ActiveWeek":      stats.ActiveWeek,
		"FilesChecked":    stats.FilesChecked,
		"LinksChecked":    stats.LinksChecked,
		"ThreatsFound":    stats.ThreatsFound,
		"ReputationCalls": stats.ReputationCalls,
		"ClassifierCalls": stats.ClassifierCalls,
	})
}

func renderHelp(botUsername string) string {
	return tool.ExecTemplate(helpText, map[string]any{"bot": html.EscapeString(botUsername)})
}

// renderPrivateReport builds the full HTML report a private chat gets back.
func renderPrivateReport(res pipeline.Result, maxFileSize int64) string {
	var parts []string
	c := res.Candidate

	if c.Attachment != nil {
		parts = append(parts, renderFileSection(res, maxFileSize))
	}
	if res.URL != nil {
		parts = append(parts, renderURLSection(*res.URL))
	}
	if res.ReputationSkipped && (c.Attachment != nil || len(c.URLs) > 0) && !res.FileTooLarge {
		parts = append(parts, "⚪ Reputation check skipped: no API key is configured.")
	}
	if c.HasText() {
		parts = append(parts, renderRiskSection(res))
	}
	if len(parts) == 0 {
		return checkPromptText
	}
	return strings.Join(parts, "\n\n")
}

func renderFileSection(res pipeline.Result, maxFileSize int64) string {
	name := "file"
	if res.Candidate.Attachment.Name != "" {
		name = res.Candidate.Attachment.Name
	}
	header := fmt.Sprintf("📄 <b>%s</b>\n", html.EscapeString(name))

	if res.FileTooLarge {
		return header + fmt.Sprintf("📦 The file is larger than %d MB and cannot be downloaded. It was not checked.", maxFileSize>>20)
	}
	if res.File == nil {
		return header + "⚪ The file was not checked."
	}

	v := *res.File
	switch {
	case v.IsMalicious():
		text := header + fmt.Sprintf("🚨 <b>Threat detected!</b> %d of %d engines flagged this file.", v.Detections, v.EngineTotal)
		if len(v.Labels) > 0 {
			text += "\n<i>" + html.EscapeString(strings.Join(v.Labels, ", ")) + "</i>"
		}
		if res.ThreatExplanation != "" {
			text += "\n\n" + escapeExplanation(res.ThreatExplanation)
		}
		return text + "\n\n❗ Do not open this file."
	case v.State == moderation.StateResolved && v.Outcome == moderation.OutcomeInsufficientData:
		return header + "ℹ️ The file is unknown to antivirus databases. Be careful with files from strangers."
	case v.State == moderation.StateResolved:
		return header + fmt.Sprintf("✅ The file is clean. No threats found (0 of %d).", v.EngineTotal)
	case v.State == moderation.StateUnresolved:
		return header + "⏳ Analysis did not finish in time. Try again later."
	}
	return header + "⚠️ The file could not be checked right now. Try again later."
}

func renderURLSection(v moderation.ReputationVerdict) string {
	header := fmt.Sprintf("🔗 <code>%s</code>\n", html.EscapeString(v.Subject))
	switch {
	case v.IsMalicious():
		text := header + fmt.Sprintf("🚨 <b>Dangerous link!</b> %d of %d engines flagged it.", v.Detections, v.EngineTotal)
		if len(v.Labels) > 0 {
			text += "\n<i>" + html.EscapeString(strings.Join(v.Labels, ", ")) + "</i>"
		}
		return text
	case v.State == moderation.StateResolved && v.Outcome == moderation.OutcomeInsufficientData:
		return header + "ℹ️ The link is unknown to reputation databases."
	case v.State == moderation.StateResolved:
		return header + fmt.Sprintf("✅ No engine flagged this link (0 of %d).", v.EngineTotal)
	case v.State == moderation.StateUnresolved:
		return header + "⏳ Link analysis did not finish in time. Try again later."
	}
	return header + "⚠️ The link could not be checked right now."
}

func renderRiskSection(res pipeline.Result) string {
	if res.RiskSkipped {
		return "⚪ Text analysis skipped: no AI provider is configured."
	}
	var header string
	switch res.Risk.Category {
	case moderation.RiskDangerous:
		header = "🔴 <b>Dangerous</b>"
	case moderation.RiskSuspicious:
		header = "🟡 <b>Suspicious</b>"
	case moderation.RiskSafe:
		header = "🟢 <b>Looks safe</b>"
	default:
		header = "⚪ <b>Could not be analysed</b>"
	}
	explanation := res.Risk.RawExplanation
	if explanation == "" {
		explanation = risk.FallbackExplanation
	}
	return header + "\n\n" + escapeExplanation(explanation)
}

// renderAnnouncement tells the chat about a removal, or flags the message when it could not be removed.
func renderAnnouncement(res pipeline.Result, sender *api.User, deleted bool) string {
	if !deleted {
		return fmt.Sprintf("🛡 The message from %s is flagged: %s. Do not follow its links.", mention(sender), reasonText(res.Action.ReasonTag))
	}
	return fmt.Sprintf("🛡 A message from %s was removed: %s.", mention(sender), reasonText(res.Action.ReasonTag))
}

func renderWarning(res pipeline.Result) string {
	text := "⚠️ <b>Careful!</b> This message looks suspicious. Do not follow its links or send money or codes."
	if res.URL != nil && res.URL.IsMalicious() {
		text += fmt.Sprintf("\nThe link was flagged by %d of %d engines.", res.URL.Detections, res.URL.EngineTotal)
	}
	return text
}

func reasonText(tag string) string {
	switch tag {
	case enforcement.ReasonReputationMalicious:
		return "malicious file or link"
	case enforcement.ReasonRiskDangerous:
		return "scam detected"
	case enforcement.ReasonRiskSuspicious:
		return "suspicious content"
	}
	return "policy violation"
}

func mention(user *api.User) string {
	if user == nil {
		return "a user"
	}
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, user.ID, html.EscapeString(bot.GetFullName(user)))
}

func escapeExplanation(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) > maxExplanationRunes {
		runes = append(runes[:maxExplanationRunes], '…')
	}
	return html.EscapeString(string(runes))
}
