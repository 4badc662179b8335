package upload

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Letters with no combining-mark decomposition, spelled out in ASCII.
var transliterate = strings.NewReplacer(
	"ß", "ss", "ẞ", "SS",
	"æ", "ae", "Æ", "AE",
	"œ", "oe", "Œ", "OE",
	"ø", "o", "Ø", "O",
	"ł", "l", "Ł", "L",
	"đ", "d", "Đ", "D",
	"ð", "d", "Ð", "D",
	"þ", "th", "Þ", "TH",
	"ı", "i",
)

// Slugify turns a title into a lowercase, hyphen-separated ASCII string.
// Accents are stripped and a few ligatures and stroked letters are
// transliterated; anything else outside [a-z0-9] becomes a hyphen.
// An empty result falls back to "post".
func Slugify(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "post"
	}

	text = transliterate.Replace(text)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if ascii, _, err := transform.String(t, text); err == nil {
		text = ascii
	}

	text = nonAlnum.ReplaceAllString(strings.ToLower(text), "-")
	text = strings.Trim(text, "-")
	if text == "" {
		return "post"
	}
	return text
}
