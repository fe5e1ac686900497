package contextutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidEmail(t *testing.T) {
	assert.True(t, IsValidEmail("student@ece.edu"))
	assert.False(t, IsValidEmail("not-an-email"))
	assert.False(t, IsValidEmail(""))
}

func TestIsValidRating(t *testing.T) {
	for rating := 1; rating <= 5; rating++ {
		assert.True(t, IsValidRating(rating), "rating %d should be valid", rating)
	}
	assert.False(t, IsValidRating(0))
	assert.False(t, IsValidRating(6))
	assert.False(t, IsValidRating(-1))
}
