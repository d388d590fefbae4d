package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoteSafeContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"plain ascii passes through", "sample received", "sample received"},
		{"polish diacritics are masked", "próbka dotarła", "pr?bka dotar?a"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := Note{Content: tt.content}
			assert.Equal(t, tt.want, n.SafeContent())
		})
	}
}
