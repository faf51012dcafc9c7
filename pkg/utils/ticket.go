package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateTicketNumber produces a human-readable, unique ticket number of
// the form TGO-20250828-4F9A2C1B. The date part keeps tickets sortable at
// a glance; the uuid fragment keeps them collision-free.
func GenerateTicketNumber(now time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("TGO-%s-%s", now.Format("20060102"), id[:8])
}
