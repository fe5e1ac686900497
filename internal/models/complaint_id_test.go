package models

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewComplaintID(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	id := NewComplaintID("ECE", now)
	assert.Regexp(t, regexp.MustCompile(`^ECE-COMP-2026-[0-9A-F]{8}$`), id)

	// lowercase department is normalized
	id = NewComplaintID("cse", now)
	assert.Regexp(t, regexp.MustCompile(`^CSE-COMP-2026-[0-9A-F]{8}$`), id)
}

func TestNewComplaintIDUnique(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewComplaintID("ECE", now)
		assert.False(t, seen[id], "duplicate complaint id %s", id)
		seen[id] = true
	}
}
