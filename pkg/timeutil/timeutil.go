// Package timeutil provides timezone utilities for the bot's home timezone.
// Attendance timestamps and the reminder schedule use Asia/Kolkata (UTC+5:30)
// unless configured otherwise.
// No external dependencies - uses only standard library.
package timeutil

import (
	"sync"
	"time"
)

// KolkataTZ is the India Standard Time zone (UTC+5:30, no DST).
var KolkataTZ = time.FixedZone("Asia/Kolkata", 5*60*60+30*60)

var (
	mu       sync.RWMutex
	location = KolkataTZ
)

// LoadLocation resolves a tz database name. Asia/Kolkata resolves to KolkataTZ
// even without a system zoneinfo database.
func LoadLocation(name string) (*time.Location, error) {
	switch name {
	case "", "Asia/Kolkata", "Asia/Calcutta", "IST":
		return KolkataTZ, nil
	case "UTC":
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

// SetLocation changes the home timezone.
func SetLocation(loc *time.Location) {
	if loc == nil {
		return
	}
	mu.Lock()
	location = loc
	mu.Unlock()
}

// Location returns the home timezone.
func Location() *time.Location {
	mu.RLock()
	defer mu.RUnlock()
	return location
}

// Now returns the current time in the home timezone.
func Now() time.Time {
	return time.Now().In(Location())
}

// ToLocal converts a time to the home timezone.
func ToLocal(t time.Time) time.Time {
	return t.In(Location())
}

// StartOfDay returns the start of the day (00:00:00) in the home timezone.
func StartOfDay(t time.Time) time.Time {
	l := ToLocal(t)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, l.Location())
}

// IsSameDay checks if two times fall on the same home-timezone day.
func IsSameDay(t1, t2 time.Time) bool {
	a, b := ToLocal(t1), ToLocal(t2)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// Common layouts.
const (
	// FormatTimestamp is the Last Updated cell format.
	FormatTimestamp = "2006-01-02 15:04:05"

	// FormatDayMonth is the reminder footer date, e.g. "14.October".
	FormatDayMonth = "02.January"
)

// FormatLocal formats a time in the home timezone with the given layout.
func FormatLocal(t time.Time, layout string) string {
	return ToLocal(t).Format(layout)
}

// FormatTimestampStr formats a Last Updated value.
func FormatTimestampStr(t time.Time) string {
	return FormatLocal(t, FormatTimestamp)
}

// ParseTimestamp parses a Last Updated value in the home timezone.
func ParseTimestamp(value string) (time.Time, error) {
	return time.ParseInLocation(FormatTimestamp, value, Location())
}
