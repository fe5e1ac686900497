package contextutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskIdentityToken(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		expected string
	}{
		{name: "empty token", token: "", expected: "[EMPTY]"},
		{name: "short token fully masked", token: "abcd1234", expected: "********"},
		{name: "long token keeps edges", token: "abcd1234efgh5678", expected: "abcd********5678"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MaskIdentityToken(tt.token))
		})
	}
}
