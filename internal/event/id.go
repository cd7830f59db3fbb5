package event

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// idTimeLayout is a fixed-width UTC timestamp prefix. Fixed width keeps ids
// lexically sortable, and nanosecond precision keeps ids from two rapid
// emissions in distinct sort positions before the entropy suffix is needed.
const idTimeLayout = "20060102T150405.000000000Z"

// NewID generates a unique, lexically sortable event id for a transition at
// the given time. Ids from independent branches sort by timestamp first; the
// random suffix breaks ties without coordination.
func NewID(at time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return "evt-" + at.UTC().Format(idTimeLayout) + "-" + suffix
}
