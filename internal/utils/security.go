package contextutils

import (
	"strings"
)

// MaskIdentityToken masks an encrypted identity token for logging purposes
// Returns a masked version that shows only first 4 and last 4 characters
func MaskIdentityToken(token string) string {
	if token == "" {
		return "[EMPTY]"
	}

	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}

	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}
