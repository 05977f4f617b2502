package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"lowercases and splits", "Hello, World!", []string{"hello", "world"}},
		{"keeps numbers", "Invoice 2024 total", []string{"invoice", "2024", "total"}},
		{"drops single runes", "a b cd", []string{"cd"}},
		{"vietnamese", "Cảm ơn bạn", []string{"cảm", "ơn", "bạn"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.in)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenize_DecomposedMatchesComposed(t *testing.T) {
	assert.Equal(t, Tokenize("cảm ơn"), Tokenize("cảm ơn"))
}
