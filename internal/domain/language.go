package domain

// SupportedLanguages maps ISO 639-1 codes to their native display names.
var SupportedLanguages = map[string]string{
	"ja": "日本語",
	"en": "English",
	"zh": "中文",
	"ko": "한국어",
	"es": "Español",
	"fr": "Français",
	"de": "Deutsch",
	"pt": "Português",
	"it": "Italiano",
	"ru": "Русский",
	"ar": "العربية",
	"th": "ไทย",
	"vi": "Tiếng Việt",
	"id": "Bahasa Indonesia",
}

// IsSupportedLanguage reports whether code is a language this system can
// store preferences for and translate into.
func IsSupportedLanguage(code string) bool {
	_, ok := SupportedLanguages[code]
	return ok
}

// LanguageName returns the native display name for code, or code itself
// when unknown.
func LanguageName(code string) string {
	if name, ok := SupportedLanguages[code]; ok {
		return name
	}
	return code
}
