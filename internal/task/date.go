package task

import (
	"time"

	"github.com/itchyny/timefmt-go"
)

// parseDate reads raw with a strftime format. Numeric fields such as %m and
// %d accept one or two digits.
func parseDate(format, raw string) (time.Time, error) {
	return timefmt.Parse(raw, format)
}
