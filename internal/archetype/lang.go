package archetype

import "golang.org/x/text/language"

// Supported quiz languages. Russian is both the default and the fallback for
// display tables.
var supportedLangs = []language.Tag{
	language.Russian,
	language.English,
	language.Spanish,
	language.Portuguese,
}

var langMatcher = language.NewMatcher(supportedLangs)

// DefaultLang is used when a request carries no usable language.
const DefaultLang = "ru"

// NormalizeLang maps an arbitrary language string (BCP-47 tag, possibly with
// region, or empty) onto one of the four supported quiz languages. Anything
// unparseable or unsupported falls back to Russian.
func NormalizeLang(lang string) string {
	if lang == "" {
		return DefaultLang
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return DefaultLang
	}
	_, idx, conf := langMatcher.Match(tag)
	if conf == language.No {
		return DefaultLang
	}
	switch supportedLangs[idx] {
	case language.English:
		return "en"
	case language.Spanish:
		return "es"
	case language.Portuguese:
		return "pt"
	default:
		return "ru"
	}
}

// IsSupportedLang reports whether lang is exactly one of the four supported
// codes (ru/en/es/pt).
func IsSupportedLang(lang string) bool {
	switch lang {
	case "ru", "en", "es", "pt":
		return true
	default:
		return false
	}
}
