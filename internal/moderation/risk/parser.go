package risk

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/iamwavecut/phishguard/internal/moderation"
)

// ResponseParser maps a free-form classifier reply to a category.
//
// Contract: the reply carries a verdict label ("VERDICT:" or "ВЕРДИКТ:")
// followed on the same line by exactly one marker:
//
//	DANGEROUS | SCAM | СКАМ | ОПАСНО         -> Dangerous
//	SUSPICIOUS | ПОДОЗРИТЕЛЬНО               -> Suspicious
//	SAFE | БЕЗОПАСНО                         -> Safe
//
// Markers match whole words only, Markdown emphasis is ignored and matching
// is case-insensitive. Without a
// label the whole reply is scanned and must name exactly one category. A
// reply naming several categories, or none, is Unknown.
type ResponseParser struct{}

var (
	verdictLabels = []string{"VERDICT:", "ВЕРДИКТ:"}

	markers = []struct {
		category moderation.RiskCategory
		words    []string
	}{
		{moderation.RiskSafe, []string{"БЕЗОПАСНО", "SAFE"}},
		{moderation.RiskSuspicious, []string{"ПОДОЗРИТЕЛЬНО", "SUSPICIOUS"}},
		{moderation.RiskDangerous, []string{"DANGEROUS", "SCAM", "СКАМ", "ОПАСНО"}},
	}

	emphasis = strings.NewReplacer("*", "", "_", "", "`", "")
)

func (ResponseParser) Parse(reply string) moderation.RiskCategory {
	normalized := strings.ToUpper(emphasis.Replace(reply))
	for _, label := range verdictLabels {
		if i := strings.Index(normalized, label); i >= 0 {
			line := normalized[i+len(label):]
			if j := strings.IndexByte(line, '\n'); j >= 0 {
				line = line[:j]
			}
			if category := single(line); category != moderation.RiskUnknown {
				return category
			}
		}
	}
	return single(normalized)
}

func single(text string) moderation.RiskCategory {
	found := moderation.RiskUnknown
	for _, m := range markers {
		hit := false
		for _, word := range m.words {
			if containsWord(text, word) {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}
		if found != moderation.RiskUnknown {
			return moderation.RiskUnknown
		}
		found = m.category
	}
	return found
}

func containsWord(text, word string) bool {
	for offset := 0; offset < len(text); {
		i := strings.Index(text[offset:], word)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(word)
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if (start == 0 || !unicode.IsLetter(before)) && (end == len(text) || !unicode.IsLetter(after)) {
			return true
		}
		offset = end
	}
	return false
}
