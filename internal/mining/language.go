package mining

import (
	"strings"
	"unicode"
)

var stopwords = map[string]map[string]bool{
	"es": set("el", "la", "los", "las", "de", "del", "que", "y", "en", "con", "por", "para", "una", "un", "se", "al", "paciente", "consulta", "fecha", "propietario"),
	"en": set("the", "and", "of", "to", "in", "with", "for", "on", "is", "was", "at", "by", "patient", "visit", "date", "owner"),
}

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// DetectLanguage returns "es" or "en" by counting common words. A tie
// returns fallback.
func DetectLanguage(text, fallback string) string {
	var es, en int
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !unicode.IsLetter(r) }) {
		if stopwords["es"][w] {
			es++
		}
		if stopwords["en"][w] {
			en++
		}
	}
	switch {
	case es > en:
		return "es"
	case en > es:
		return "en"
	}
	return fallback
}
