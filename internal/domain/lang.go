package domain

import "strings"

// DefaultLanguage is used when a registrant's language is unknown or invalid.
const DefaultLanguage = "en"

// LanguageCode is a normalized BCP-47 style language tag ("en", "ru").
type LanguageCode string

// ParseLanguageCode validates and normalizes a raw language tag. It accepts
// simple primary subtags with optional region ("en", "ru", "pt-BR").
func ParseLanguageCode(input string) (LanguageCode, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", false
	}
	parts := strings.SplitN(strings.ReplaceAll(trimmed, "_", "-"), "-", 3)
	primary := strings.ToLower(parts[0])
	if len(primary) < 2 || len(primary) > 8 || !isAlpha(primary) {
		return "", false
	}
	if len(parts) == 1 {
		return LanguageCode(primary), true
	}
	region := strings.ToUpper(parts[1])
	if len(region) != 2 || !isAlpha(strings.ToLower(region)) {
		return LanguageCode(primary), true
	}
	return LanguageCode(primary + "-" + region), true
}

// ParseLanguageCodeOrDefault falls back to DefaultLanguage on invalid input.
func ParseLanguageCodeOrDefault(input string) LanguageCode {
	if code, ok := ParseLanguageCode(input); ok {
		return code
	}
	return DefaultLanguage
}

func (c LanguageCode) String() string { return string(c) }

// Base returns the primary subtag ("pt-BR" -> "pt").
func (c LanguageCode) Base() string {
	if i := strings.IndexByte(string(c), '-'); i > 0 {
		return string(c)[:i]
	}
	return string(c)
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
