package formatting

import (
	"fmt"
	"time"
)

// now is replaced in tests.
var now = time.Now

// FormatDuration formats a duration in a human-readable way.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return "expired"
	}
	if d < time.Minute {
		return "< 1 minute"
	}
	if d < time.Hour {
		return plural(int(d.Minutes()), "minute")
	}
	if d < 24*time.Hour {
		return plural(int(d.Hours()), "hour")
	}
	return plural(int(d.Hours()/24), "day")
}

// FormatExpiry formats a time as "in X" or "expired X ago".
func FormatExpiry(expiresAt time.Time) string {
	remaining := expiresAt.Sub(now())
	if remaining > 0 {
		return "in " + FormatDuration(remaining)
	}
	return fmt.Sprintf("expired %s ago", FormatDuration(-remaining))
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
