package utils

import "golang.org/x/text/language"

// Mitché ships in English, Arabic, and French.
var supportedLocales = []language.Tag{
	language.English, // en — fallback
	language.Arabic,  // ar
	language.French,  // fr
}

var localeMatcher = language.NewMatcher(supportedLocales)

// MatchLocale resolves an Accept-Language header to one of the supported
// locale codes, defaulting to "en".
func MatchLocale(acceptLanguage string) string {
	if acceptLanguage == "" {
		return "en"
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return "en"
	}
	_, index, _ := localeMatcher.Match(tags...)
	switch index {
	case 1:
		return "ar"
	case 2:
		return "fr"
	default:
		return "en"
	}
}
