package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeDirName turns a display name into a single path component. Accents
// are folded to their base letters, unsafe characters are replaced, and trailing
// dots are trimmed so "." and ".." cannot escape the parent. Empty results
// return fallback.
func SanitizeDirName(name, fallback string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}
	folded = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, folded)
	out := strings.TrimSpace(fileNameReplacer.Replace(folded))
	out = strings.TrimRight(out, ". ")
	if out == "" {
		return fallback
	}
	return out
}

var titleCaser = cases.Title(language.English)

// Label converts a snake_case or kebab-case identifier into a title-cased
// display label, e.g. "tool_failed" becomes "Tool Failed".
func Label(value string) string {
	value = strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(value))
	if value == "" {
		return ""
	}
	return titleCaser.String(value)
}
