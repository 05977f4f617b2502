package search

import (
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	bleveunicode "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"golang.org/x/text/unicode/norm"
)

// MinTokenLength drops single-rune tokens such as stray letters.
const MinTokenLength = 2

var (
	wordTokenizer analysis.Tokenizer   = bleveunicode.NewUnicodeTokenizer()
	lowerFilter   analysis.TokenFilter = lowercase.NewLowerCaseFilter()
)

// Tokenize splits text on Unicode word boundaries and lowercases the words.
// Text is NFC-normalized first so composed and decomposed diacritics match.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	stream := lowerFilter.Filter(wordTokenizer.Tokenize([]byte(norm.NFC.String(text))))

	out := make([]string, 0, len(stream))
	for _, tok := range stream {
		term := string(tok.Term)
		if len([]rune(term)) < MinTokenLength {
			continue
		}
		out = append(out, term)
	}
	return out
}
