// Package language maps the short source-language codes offered to users
// onto the tokens each model expects.
package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Fallback is used for unknown or empty codes.
const Fallback = "en"

// Language is one user-selectable language.
type Language struct {
	// Code is the short selector shown in the UI ("jp", "en", ...)
	Code string
	// Tag is the BCP 47 tag
	Tag language.Tag
	// Tesseract is the traineddata name
	Tesseract string
}

var supported = []Language{
	{Code: "jp", Tag: language.Japanese, Tesseract: "jpn"},
	{Code: "en", Tag: language.English, Tesseract: "eng"},
	{Code: "cn", Tag: language.SimplifiedChinese, Tesseract: "chi_sim"},
	{Code: "th", Tag: language.Thai, Tesseract: "tha"},
	{Code: "vi", Tag: language.Vietnamese, Tesseract: "vie"},
}

var aliases = map[string]string{
	"ja":      "jp",
	"jpn":     "jp",
	"zh":      "cn",
	"zh-hans": "cn",
	"chi_sim": "cn",
	"eng":     "en",
	"tha":     "th",
	"vie":     "vi",
}

// Supported returns the selectable languages in display order.
func Supported() []Language {
	out := make([]Language, len(supported))
	copy(out, supported)
	return out
}

// Lookup resolves a code and reports whether it was known.
func Lookup(code string) (Language, bool) {
	c := strings.ToLower(strings.TrimSpace(code))
	if alias, ok := aliases[c]; ok {
		c = alias
	}
	for _, l := range supported {
		if l.Code == c {
			return l, true
		}
	}
	return Language{}, false
}

// Resolve is Lookup with the English fallback applied.
func Resolve(code string) Language {
	if l, ok := Lookup(code); ok {
		return l
	}
	l, _ := Lookup(Fallback)
	return l
}

// Name returns the English name of the language, e.g. "Japanese".
func (l Language) Name() string {
	return display.English.Tags().Name(l.Tag)
}

// Label is the upper-case name used as a line prefix in text reports.
func (l Language) Label() string {
	return strings.ToUpper(l.Name())
}

// TargetName resolves a target-language code that may be outside the
// selectable set (any BCP 47 tag) to its English name.
func TargetName(code string) string {
	if l, ok := Lookup(code); ok {
		return l.Name()
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	return display.English.Tags().Name(tag)
}

// TargetLabel is the upper-case form of TargetName.
func TargetLabel(code string) string {
	return strings.ToUpper(TargetName(code))
}
