package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewComplaintID generates a human-readable complaint identifier of the
// form <DEPT>-COMP-<year>-<8 hex chars>, e.g. ECE-COMP-2026-9F3A41BC.
// The random segment comes from a v4 UUID so IDs are unique without a
// database round trip.
func NewComplaintID(department string, now time.Time) string {
	random := strings.ToUpper(strings.SplitN(uuid.NewString(), "-", 2)[0])
	return fmt.Sprintf("%s-COMP-%d-%s", strings.ToUpper(department), now.Year(), random)
}
