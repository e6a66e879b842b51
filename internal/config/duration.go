package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// hoursPerUnit lists the units time.ParseDuration does not know.
var hoursPerUnit = map[string]float64{
	"d": 24,
	"w": 7 * 24,
}

// ParseDuration accepts Go duration syntax plus d (days) and w (weeks), e.g.
// "10m", "7d", "1w2d3h", "1.5d".
func ParseDuration(raw string) (time.Duration, error) {
	return parseDurationExtended(raw)
}

func parseDurationExtended(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("duration is required")
	}
	if !strings.ContainsAny(raw, "dw") {
		return time.ParseDuration(raw)
	}
	expanded, err := expandLongUnits(raw)
	if err != nil {
		return 0, err
	}
	return time.ParseDuration(expanded)
}

var (
	durationShape     = regexp.MustCompile(`^[+-]?(?:(?:\d+\.?\d*|\.\d+)[a-zµμ]+)+$`)
	durationComponent = regexp.MustCompile(`(\d+\.?\d*|\.\d+)([a-zµμ]+)`)
)

// expandLongUnits rewrites day and week components as hours and leaves the
// rest for time.ParseDuration to validate.
func expandLongUnits(raw string) (string, error) {
	if !durationShape.MatchString(raw) {
		return "", fmt.Errorf("invalid duration %q", raw)
	}
	return durationComponent.ReplaceAllStringFunc(raw, func(part string) string {
		m := durationComponent.FindStringSubmatch(part)
		hours, ok := hoursPerUnit[m[2]]
		if !ok {
			return part
		}
		num, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return part
		}
		return strconv.FormatFloat(num*hours, 'f', -1, 64) + "h"
	}), nil
}
