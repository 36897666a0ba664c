package scheduler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CronExpression is a parsed 5-field cron expression used as a Schedule.
// Format: minute hour day-of-month month day-of-week
// Examples:
//   - "*/15 * * * *" - every 15 minutes
//   - "0 */6 * * *"  - every 6 hours
//   - "30 2 * * *"   - every day at 02:30
//   - "0 3 * * 1"    - every Monday at 03:00
type CronExpression struct {
	raw      string
	minutes  []int // 0-59
	hours    []int // 0-23
	days     []int // 1-31
	months   []int // 1-12
	weekdays []int // 0-6 (0 = Sunday)
}

var cronDescriptors = map[string]string{
	"@hourly":   "0 * * * *",
	"@daily":    "0 0 * * *",
	"@midnight": "0 0 * * *",
	"@weekly":   "0 0 * * 0",
	"@monthly":  "0 0 1 * *",
}

// ParseSchedule accepts a cron expression, one of the @hourly, @daily,
// @midnight, @weekly, @monthly descriptors, or "@every <duration>".
func ParseSchedule(spec string) (Schedule, error) {
	spec = strings.TrimSpace(spec)

	if rest, ok := strings.CutPrefix(spec, "@every "); ok {
		d, err := time.ParseDuration(strings.TrimSpace(rest))
		if err != nil {
			return nil, fmt.Errorf("invalid @every duration: %w", err)
		}
		if d < time.Second {
			return nil, fmt.Errorf("@every interval must be at least 1s, got %s", d)
		}
		return NewIntervalSchedule(d), nil
	}

	if expr, ok := cronDescriptors[spec]; ok {
		ce, err := ParseCronExpression(expr)
		if err != nil {
			return nil, err
		}
		ce.raw = spec
		return ce, nil
	}

	return ParseCronExpression(spec)
}

// ParseCronExpression parses a cron expression string.
// Supports: *, */n, n, n-m, n-m/s, n,m,o
func ParseCronExpression(expr string) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression %q: expected 5 fields, got %d", expr, len(fields))
	}

	ce := &CronExpression{raw: expr}
	specs := []struct {
		name     string
		dst      *[]int
		min, max int
	}{
		{"minute", &ce.minutes, 0, 59},
		{"hour", &ce.hours, 0, 23},
		{"day", &ce.days, 1, 31},
		{"month", &ce.months, 1, 12},
		{"weekday", &ce.weekdays, 0, 6},
	}

	for i, sp := range specs {
		values, err := parseField(fields[i], sp.min, sp.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", sp.name, err)
		}
		*sp.dst = values
	}

	return ce, nil
}

// MustParseCronExpression is like ParseCronExpression but panics on error.
func MustParseCronExpression(expr string) *CronExpression {
	ce, err := ParseCronExpression(expr)
	if err != nil {
		panic(err)
	}
	return ce
}

// parseField expands a single cron field into its sorted values.
func parseField(field string, min, max int) ([]int, error) {
	if strings.Contains(field, ",") {
		seen := make(map[int]bool)
		var result []int
		for _, part := range strings.Split(field, ",") {
			values, err := parseField(strings.TrimSpace(part), min, max)
			if err != nil {
				return nil, err
			}
			for _, v := range values {
				if !seen[v] {
					seen[v] = true
					result = append(result, v)
				}
			}
		}
		sort.Ints(result)
		return result, nil
	}

	step := 1
	if base, stepStr, ok := strings.Cut(field, "/"); ok {
		n, err := strconv.Atoi(stepStr)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid step value: %s", stepStr)
		}
		step = n
		field = base
	}

	start, end := min, max
	switch {
	case field == "*":
	case strings.Contains(field, "-"):
		lo, hi, _ := strings.Cut(field, "-")
		var err error
		if start, err = strconv.Atoi(lo); err != nil {
			return nil, fmt.Errorf("invalid range start: %s", lo)
		}
		if end, err = strconv.Atoi(hi); err != nil {
			return nil, fmt.Errorf("invalid range end: %s", hi)
		}
		if start > end {
			return nil, fmt.Errorf("invalid range: %s", field)
		}
	default:
		v, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("invalid value: %s", field)
		}
		start = v
		if step == 1 {
			end = v
		}
	}

	if start < min || end > max {
		return nil, fmt.Errorf("value out of range [%d-%d]: %s", min, max, field)
	}

	var result []int
	for i := start; i <= end; i += step {
		result = append(result, i)
	}
	return result, nil
}

// String returns the expression as it was given.
func (ce *CronExpression) String() string {
	return ce.raw
}

// Next returns the first minute strictly after the given time that matches
// the expression, or the zero time if none matches within a year.
func (ce *CronExpression) Next(after time.Time) time.Time {
	t := after.Truncate(time.Minute).Add(time.Minute)

	const maxIterations = 366 * 24 * 60
	for i := 0; i < maxIterations; i++ {
		if ce.matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}

	return time.Time{}
}

func (ce *CronExpression) matches(t time.Time) bool {
	return contains(ce.minutes, t.Minute()) &&
		contains(ce.hours, t.Hour()) &&
		contains(ce.days, t.Day()) &&
		contains(ce.months, int(t.Month())) &&
		contains(ce.weekdays, int(t.Weekday()))
}

func contains(slice []int, val int) bool {
	for _, v := range slice {
		if v == val {
			return true
		}
	}
	return false
}
