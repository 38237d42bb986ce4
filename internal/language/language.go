// Package language lists the dictation locales offered by configure.
package language

import (
	"os"
	"strings"

	xlanguage "golang.org/x/text/language"
)

// Language is a recognition locale.
type Language struct {
	Code       string // BCP-47 tag, e.g. "en-US"
	Name       string
	NativeName string
}

// Default is the locale used when none is configured.
var Default = Language{Code: "en-US", Name: "English (United States)", NativeName: "English (US)"}

var languages = []Language{
	Default,
	{Code: "en-GB", Name: "English (United Kingdom)", NativeName: "English (UK)"},
	{Code: "en-AU", Name: "English (Australia)", NativeName: "English (Australia)"},
	{Code: "en-IN", Name: "English (India)", NativeName: "English (India)"},
	{Code: "es-ES", Name: "Spanish (Spain)", NativeName: "Español (España)"},
	{Code: "es-MX", Name: "Spanish (Mexico)", NativeName: "Español (México)"},
	{Code: "pt-BR", Name: "Portuguese (Brazil)", NativeName: "Português (Brasil)"},
	{Code: "pt-PT", Name: "Portuguese (Portugal)", NativeName: "Português (Portugal)"},
	{Code: "fr-FR", Name: "French (France)", NativeName: "Français (France)"},
	{Code: "fr-CA", Name: "French (Canada)", NativeName: "Français (Canada)"},
	{Code: "de-DE", Name: "German", NativeName: "Deutsch"},
	{Code: "it-IT", Name: "Italian", NativeName: "Italiano"},
	{Code: "nl-NL", Name: "Dutch", NativeName: "Nederlands"},
	{Code: "pl-PL", Name: "Polish", NativeName: "Polski"},
	{Code: "tr-TR", Name: "Turkish", NativeName: "Türkçe"},
	{Code: "ru-RU", Name: "Russian", NativeName: "Русский"},
	{Code: "uk-UA", Name: "Ukrainian", NativeName: "Українська"},
	{Code: "ar-SA", Name: "Arabic", NativeName: "العربية"},
	{Code: "hi-IN", Name: "Hindi", NativeName: "हिन्दी"},
	{Code: "zh-CN", Name: "Chinese (Mandarin)", NativeName: "中文"},
	{Code: "ja-JP", Name: "Japanese", NativeName: "日本語"},
	{Code: "ko-KR", Name: "Korean", NativeName: "한국어"},
}

var codeIndex map[string]Language

func init() {
	codeIndex = make(map[string]Language, len(languages))
	for _, lang := range languages {
		codeIndex[strings.ToLower(lang.Code)] = lang
	}
}

// FromCode returns the Language for code, matching case-insensitively.
// Unknown codes return a Language carrying only the code.
func FromCode(code string) Language {
	if lang, ok := codeIndex[strings.ToLower(code)]; ok {
		return lang
	}
	return Language{Code: code, Name: code, NativeName: code}
}

// List returns every offered locale, Default first.
func List() []Language {
	result := make([]Language, len(languages))
	copy(result, languages)
	return result
}

// IsKnown reports whether code is one of the offered locales.
func IsKnown(code string) bool {
	_, ok := codeIndex[strings.ToLower(code)]
	return ok
}

// IsWellFormed reports whether code parses as a BCP-47 tag.
func IsWellFormed(code string) bool {
	_, err := xlanguage.Parse(code)
	return err == nil
}

// Canonical returns code in canonical BCP-47 form, e.g. "en-us" as "en-US".
func Canonical(code string) (string, error) {
	tag, err := xlanguage.Parse(code)
	if err != nil {
		return "", err
	}
	return tag.String(), nil
}

// localeVars are consulted in setlocale(3) order.
var localeVars = []string{"LC_ALL", "LC_MESSAGES", "LANG"}

// FromEnvironment returns the locale of the process environment. It returns
// Default when no locale is set, for the C and POSIX locales, and for values
// that do not parse.
func FromEnvironment() Language {
	for _, key := range localeVars {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		// de_DE.UTF-8@euro
		if i := strings.IndexAny(v, ".@"); i >= 0 {
			v = v[:i]
		}
		if v == "C" || v == "POSIX" {
			return Default
		}
		code, err := Canonical(strings.ReplaceAll(v, "_", "-"))
		if err != nil {
			return Default
		}
		return FromCode(code)
	}
	return Default
}
