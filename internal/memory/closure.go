package memory

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// defaultClosureTerms are farewells and thanks in Vietnamese and English.
var defaultClosureTerms = []string{
	"cảm ơn", "cám ơn", "cảm ơn nhiều", "tạm biệt", "hẹn gặp lại", "chào nhé", "chào bạn nhé",
	"vậy thôi", "xong rồi", "ok rồi", "được rồi",
	"thanks", "thank you", "thx", "bye", "goodbye", "good bye", "see you",
	"see ya", "cheers", "that's all", "that is all", "good night",
}

// normalizeQuery NFC-normalizes, lowercases and replaces punctuation with
// spaces so decomposed and composed input compare equal.
func normalizeQuery(q string) string {
	q = strings.ToLower(norm.NFC.String(q))
	return strings.Join(strings.FieldsFunc(q, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.IsMark(r) && r != '\''
	}), " ")
}

// closureDetector recognizes short farewell messages.
type closureDetector struct {
	terms    []string
	maxWords int
}

func newClosureDetector(terms []string, maxWords int) closureDetector {
	if len(terms) == 0 {
		terms = defaultClosureTerms
	}
	normalized := make([]string, 0, len(terms))
	for _, t := range terms {
		if n := normalizeQuery(t); n != "" {
			normalized = append(normalized, n)
		}
	}
	return closureDetector{terms: normalized, maxWords: maxWords}
}

// IsClosure reports whether query is a short farewell.
func (d closureDetector) IsClosure(query string) bool {
	q := normalizeQuery(query)
	if q == "" || len(strings.Fields(q)) >= d.maxWords {
		return false
	}
	padded := " " + q + " "
	for _, t := range d.terms {
		if strings.Contains(padded, " "+t+" ") {
			return true
		}
	}
	return false
}

// IsClosure reports whether query is a short farewell under the default
// term list and word limit.
func IsClosure(query string) bool {
	return newClosureDetector(nil, DefaultClosureMaxWords).IsClosure(query)
}
