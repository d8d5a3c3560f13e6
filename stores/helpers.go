package stores

import (
	"time"

	"github.com/oarkflow/date"
)

// parseFlexibleTime handles whatever timestamp layout the SQL driver hands
// back
func parseFlexibleTime(s string) (time.Time, error) {
	return date.Parse(s)
}
