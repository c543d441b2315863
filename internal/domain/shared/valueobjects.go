// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"strconv"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// TelegramID represents a unique Telegram user identifier.
type TelegramID int64

// IsValid checks if the Telegram ID is valid (positive number).
func (t TelegramID) IsValid() bool {
	return t > 0
}

// Int64 returns the underlying int64 value.
func (t TelegramID) Int64() int64 {
	return int64(t)
}

// String returns the string representation.
func (t TelegramID) String() string {
	return strconv.FormatInt(int64(t), 10)
}

// NewTelegramID creates a new TelegramID with validation.
func NewTelegramID(id int64) (TelegramID, error) {
	if id <= 0 {
		return 0, ErrInvalidTelegramID
	}
	return TelegramID(id), nil
}

// ParseTelegramID parses a decimal Telegram ID, e.g. from an admin command argument.
func ParseTelegramID(s string) (TelegramID, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, ErrInvalidTelegramID
	}
	return NewTelegramID(id)
}

// ═══════════════════════════════════════════════════════════════════════════
// Contact Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// PhoneNumber is a phone number shared through a Telegram contact.
type PhoneNumber string

// NormalizePhone trims whitespace and keeps a leading plus when present.
func NormalizePhone(raw string) PhoneNumber {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range s {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return PhoneNumber(b.String())
}

// IsEmpty reports whether no phone has been verified.
func (p PhoneNumber) IsEmpty() bool {
	return p == ""
}

// String returns the string representation.
func (p PhoneNumber) String() string {
	return string(p)
}

// ═══════════════════════════════════════════════════════════════════════════
// Time Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// TimestampLayout is the format used for Last Updated cells.
const TimestampLayout = "2006-01-02 15:04:05"

// FormatTimestamp renders t in loc with TimestampLayout.
func FormatTimestamp(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(TimestampLayout)
}
