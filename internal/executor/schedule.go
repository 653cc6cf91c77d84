package executor

import (
	"strconv"
	"strings"
	"time"

	"github.com/agentmux/agentmux/internal/store"
)

// NextExecutionDelay computes the delay until a recurring task's next run.
// Precedence: interval, then daily time, then cron. Returns ok=false when
// no usable rule is configured; an unparseable rule is treated the same
// way rather than as an error.
func NextExecutionDelay(sched store.Schedule, now time.Time) (time.Duration, bool) {
	if sched.IntervalMinutes > 0 {
		// No wall-clock alignment: the next run is interval after now.
		return time.Duration(sched.IntervalMinutes) * time.Minute, true
	}

	if sched.DailyTime != "" {
		hour, minute, ok := parseDailyTime(sched.DailyTime)
		if !ok {
			return 0, false
		}
		next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next.Sub(now), true
	}

	if sched.Cron != "" {
		expr, err := parseCron(sched.Cron)
		if err != nil {
			return 0, false
		}
		next := expr.next(now)
		if next.IsZero() {
			return 0, false
		}
		return next.Sub(now), true
	}

	return 0, false
}

// parseDailyTime parses "HH:MM" (24h).
func parseDailyTime(s string) (hour, minute int, ok bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, false
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}
