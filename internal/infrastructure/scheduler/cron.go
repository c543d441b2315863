package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CronExpression is a parsed standard 5-field cron expression:
// minute hour day-of-month month day-of-week.
// Examples:
//   - "15 20 * * *"  - every day at 20:15
//   - "0 0 * * *"    - every day at midnight
//   - "*/30 9-17 * * 1-5" - every half hour during weekday office hours
type CronExpression struct {
	raw      string
	minutes  fieldSet // 0-59
	hours    fieldSet // 0-23
	days     fieldSet // 1-31
	months   fieldSet // 1-12
	weekdays fieldSet // 0-6 (0 = Sunday)
}

// fieldSet marks allowed values; index is the value.
type fieldSet [60]bool

// ParseCronExpression parses a cron expression string.
// Supports: *, */n, n, n-m, n-m/s and comma lists of those.
func ParseCronExpression(expr string) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression %q: expected 5 fields, got %d", expr, len(fields))
	}

	ce := &CronExpression{raw: expr}
	specs := []struct {
		name     string
		dst      *fieldSet
		min, max int
	}{
		{"minute", &ce.minutes, 0, 59},
		{"hour", &ce.hours, 0, 23},
		{"day", &ce.days, 1, 31},
		{"month", &ce.months, 1, 12},
		{"weekday", &ce.weekdays, 0, 6},
	}
	for i, spec := range specs {
		set, err := parseField(fields[i], spec.min, spec.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", spec.name, err)
		}
		*spec.dst = set
	}
	return ce, nil
}

// MustParseCronExpression parses expr or panics.
func MustParseCronExpression(expr string) *CronExpression {
	ce, err := ParseCronExpression(expr)
	if err != nil {
		panic(err)
	}
	return ce
}

func parseField(field string, min, max int) (fieldSet, error) {
	var set fieldSet
	for _, part := range strings.Split(field, ",") {
		if err := parsePart(&set, part, min, max); err != nil {
			return set, err
		}
	}
	return set, nil
}

func parsePart(set *fieldSet, part string, min, max int) error {
	rangePart, step := part, 1
	if i := strings.IndexByte(part, '/'); i >= 0 {
		s, err := strconv.Atoi(part[i+1:])
		if err != nil || s <= 0 {
			return fmt.Errorf("invalid step value: %s", part)
		}
		rangePart, step = part[:i], s
	}

	start, end := min, max
	switch {
	case rangePart == "*":
	case strings.Contains(rangePart, "-"):
		bounds := strings.SplitN(rangePart, "-", 2)
		var err1, err2 error
		start, err1 = strconv.Atoi(bounds[0])
		end, err2 = strconv.Atoi(bounds[1])
		if err1 != nil || err2 != nil {
			return fmt.Errorf("invalid range: %s", rangePart)
		}
	default:
		v, err := strconv.Atoi(rangePart)
		if err != nil {
			return fmt.Errorf("invalid value: %s", rangePart)
		}
		start = v
		if step == 1 {
			end = v
		}
	}

	if start < min || end > max || start > end {
		return fmt.Errorf("value out of range [%d-%d]: %s", min, max, part)
	}
	for v := start; v <= end; v += step {
		set[v] = true
	}
	return nil
}

// String returns the original cron expression.
func (ce *CronExpression) String() string {
	return ce.raw
}

// Next returns the first matching minute strictly after the given time,
// evaluated in after's location. Zero if nothing matches within a year.
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
	return ce.minutes[t.Minute()] &&
		ce.hours[t.Hour()] &&
		ce.days[t.Day()] &&
		ce.months[int(t.Month())] &&
		ce.weekdays[int(t.Weekday())]
}
