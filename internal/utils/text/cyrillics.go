package text

import (
	"strings"
	"unicode"
)

// lookalikes maps Cyrillic letters to the Latin letters they render as.
var lookalikes = map[rune]rune{
	'а': 'a', 'в': 'b', 'е': 'e', 'к': 'k', 'м': 'm', 'н': 'h', 'о': 'o',
	'р': 'p', 'с': 'c', 'т': 't', 'у': 'y', 'х': 'x', 'і': 'i', 'ј': 'j',
	'ѕ': 's', 'ԁ': 'd', 'ԛ': 'q', 'ԝ': 'w',
	'А': 'A', 'В': 'B', 'Е': 'E', 'К': 'K', 'М': 'M', 'Н': 'H', 'О': 'O',
	'Р': 'P', 'С': 'C', 'Т': 'T', 'У': 'Y', 'Х': 'X', 'І': 'I', 'Ј': 'J', 'Ѕ': 'S',
}

// HasCyrillics checks if the given string contains any Cyrillic characters
func HasCyrillics(content string) bool {
	for _, r := range content {
		if unicode.Is(unicode.Cyrillic, r) {
			return true
		}
	}
	return false
}

func hasLatin(word string) bool {
	for _, r := range word {
		if unicode.Is(unicode.Latin, r) {
			return true
		}
	}
	return false
}

// Delatinize rewrites Cyrillic lookalikes as Latin inside words that mix both
// scripts, so "pаypal" with a Cyrillic "а" reads as "paypal". Words written
// entirely in one script are left alone.
func Delatinize(content string) string {
	if !HasCyrillics(content) {
		return content
	}
	words := strings.FieldsFunc(content, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	replacements := make([]string, 0, len(words)*2)
	for _, word := range words {
		if !HasCyrillics(word) || !hasLatin(word) {
			continue
		}
		replacements = append(replacements, word, strings.Map(func(r rune) rune {
			if latin, ok := lookalikes[r]; ok {
				return latin
			}
			return r
		}, word))
	}
	if len(replacements) == 0 {
		return content
	}
	return strings.NewReplacer(replacements...).Replace(content)
}
