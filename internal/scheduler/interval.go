package scheduler

import (
	"strconv"
	"strings"
	"time"
)

var intervalUnits = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}

// ParseIntervalDuration parses epoch lengths such as "90s", "5m", "15m", "1h"
// or "1d". Returns (0, false) on invalid input.
func ParseIntervalDuration(interval string) (time.Duration, bool) {
	interval = strings.ToLower(strings.TrimSpace(interval))
	if len(interval) < 2 {
		return 0, false
	}
	unit, ok := intervalUnits[interval[len(interval)-1]]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(interval[:len(interval)-1]))
	if err != nil || n <= 0 {
		return 0, false
	}
	return time.Duration(n) * unit, true
}
