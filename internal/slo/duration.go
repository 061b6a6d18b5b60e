package slo

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var (
	durationPattern = regexp.MustCompile(`^(?:\d+[smhdw])+$`)
	durationPart    = regexp.MustCompile(`(\d+)([smhdw])`)
)

var durationUnits = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
}

// ParseDuration parses window strings like "30m", "1h", "7d" or compound
// forms such as "1h30m".
func ParseDuration(s string) (time.Duration, error) {
	if !durationPattern.MatchString(s) {
		return 0, fmt.Errorf("invalid duration format: %q", s)
	}

	var total time.Duration
	for _, part := range durationPart.FindAllStringSubmatch(s, -1) {
		value, err := strconv.ParseInt(part[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration value: %q", s)
		}
		total += time.Duration(value) * durationUnits[part[2]]
	}
	return total, nil
}

// FormatWindow renders a minute count in the largest whole unit.
func FormatWindow(minutes int) string {
	switch {
	case minutes > 0 && minutes%(7*24*60) == 0:
		return fmt.Sprintf("%dw", minutes/(7*24*60))
	case minutes > 0 && minutes%(24*60) == 0:
		return fmt.Sprintf("%dd", minutes/(24*60))
	case minutes > 0 && minutes%60 == 0:
		return fmt.Sprintf("%dh", minutes/60)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
