package sqlxrepos

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsPattern(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "ada", want: "%ada%"},
		{name: "underscore", in: "a_b", want: `%a\_b%`},
		{name: "percent", in: "100%", want: `%100\%%`},
		{name: "backslash", in: `a\b`, want: `%a\\b%`},
		{name: "empty", in: "", want: "%%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, containsPattern(tt.in))
		})
	}
}
