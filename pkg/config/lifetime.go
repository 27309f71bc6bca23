package config

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var lifetimeRe = regexp.MustCompile(`^(\d+)([smhd])$`)

var lifetimeUnits = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
}

// ParseLifetime parses token lifetimes written as "<n><unit>" (s, m, h, d).
// Values without a recognized unit are read as a whole number of seconds.
func ParseLifetime(value string) (time.Duration, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return 0, fmt.Errorf("lifetime is required")
	}

	if m := lifetimeRe.FindStringSubmatch(raw); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid lifetime %q: %w", value, err)
		}
		if n <= 0 {
			return 0, fmt.Errorf("lifetime %q must be positive", value)
		}
		return scaleLifetime(value, n, lifetimeUnits[m[2]])
	}

	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid lifetime %q", value)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("lifetime %q must be positive", value)
	}
	return scaleLifetime(value, seconds, time.Second)
}

func scaleLifetime(value string, n int64, unit time.Duration) (time.Duration, error) {
	if n > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("lifetime %q is out of range", value)
	}
	return time.Duration(n) * unit, nil
}
