package runner

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// NewSchedule returns the poll schedule: a standard cron expression when expr
// is set, otherwise a constant interval.
func NewSchedule(interval time.Duration, expr string) (cron.Schedule, error) {
	if expr = strings.TrimSpace(expr); expr != "" {
		schedule, err := cron.ParseStandard(expr)
		if err != nil {
			return nil, fmt.Errorf("parse poll schedule %q: %w", expr, err)
		}
		return schedule, nil
	}
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}
	return cron.Every(interval), nil
}
