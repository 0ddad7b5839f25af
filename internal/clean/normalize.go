// Package clean normalizes, scores and deduplicates scraped entries before
// category extraction.
package clean

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	userMentionRE   = regexp.MustCompile(`<@!?\d+>`)
	channelRefRE    = regexp.MustCompile(`<#\d+>`)
	customEmojiRE   = regexp.MustCompile(`<:\w+:\d+>`)
	urlRE           = regexp.MustCompile(`https?://\S+`)
	whitespaceRE    = regexp.MustCompile(`[` + spaceClass + `]+`)
	disallowedRunRE = regexp.MustCompile(`[^\p{L}\p{N}_` + spaceClass + `\-.,!?%()]`)
)

// spaceClass is every Unicode whitespace rune; RE2's \s is ASCII only.
const spaceClass = `\s\v\p{Zs}\x{85}\x{2028}\x{2029}`

// Normalize strips chat markup and noise from text. Step order matters:
// platform tokens go before whitespace is collapsed so no stray fragments
// survive, and whitespace is collapsed a second time after the character
// filter so that Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	text = userMentionRE.ReplaceAllString(text, "")
	text = channelRefRE.ReplaceAllString(text, "")
	text = customEmojiRE.ReplaceAllString(text, "")
	text = urlRE.ReplaceAllString(text, "")

	text = whitespaceRE.ReplaceAllString(text, " ")
	text = disallowedRunRE.ReplaceAllString(text, "")
	text = whitespaceRE.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
