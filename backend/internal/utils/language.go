package utils

import (
	"strings"

	"golang.org/x/text/language"

	"tami-graph/backend/internal/constants"
)

// LanguageNames maps language codes to display names
var LanguageNames = map[string]string{
	constants.LanguageCodeEnglish:     "English",
	constants.LanguageCodeFrench:      "French",
	constants.LanguageCodeSpanish:     "Spanish",
	constants.LanguageCodeGerman:      "German",
	constants.LanguageCodeItalian:     "Italian",
	constants.LanguageCodePortuguese:  "Portuguese",
	constants.LanguageCodeTurkish:     "Turkish",
	constants.LanguageCodeAzerbaijani: "Azerbaijani",
	constants.LanguageCodeLithuanian:  "Lithuanian",
	constants.LanguageCodeJapanese:    "Japanese",
	constants.LanguageCodeChinese:     "Chinese",
	constants.LanguageCodeKorean:      "Korean",
	constants.LanguageCodeRussian:     "Russian",
}

// NormalizeLanguageCode reduces a language tag or display name ("en-US",
// "pt_BR", "French") to its base code. Unknown input falls back to English.
func NormalizeLanguageCode(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return constants.LanguageCodeEnglish
	}

	lower := strings.ToLower(raw)
	for code, name := range LanguageNames {
		if lower == strings.ToLower(name) {
			return code
		}
	}

	tag, err := language.Parse(strings.ReplaceAll(raw, "_", "-"))
	if err != nil {
		return constants.LanguageCodeEnglish
	}
	base, _ := tag.Base()
	return base.String()
}

// GetLanguageName returns the display name for a language code
func GetLanguageName(langCode string) string {
	if name, ok := LanguageNames[langCode]; ok {
		return name
	}
	return langCode // Return code if name not found
}
