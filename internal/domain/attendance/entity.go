package attendance

import (
	"fmt"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// User is a person tracking attendance through a chat.
type User struct {
	// ID is the Telegram user id.
	ID int64

	// Name is the display name captured at registration.
	Name string

	// ChatID is the chat used for replies and reminders (0 = unknown).
	ChatID int64

	// Phone is the verified phone number (empty = not verified).
	Phone string
}

// IsVerified reports whether the user shared a phone number.
func (u User) IsVerified() bool {
	return strings.TrimSpace(u.Phone) != ""
}

// Course is a per-user tracked subject.
type Course struct {
	// Code is the stable identifier "<userID>-<nickname>".
	Code string

	// Nickname is the user-chosen label, unique per user ignoring case.
	Nickname string

	// OwnerID is the Telegram id of the owner.
	OwnerID int64

	Present int
	Absent  int

	// Streak is the number of consecutive present marks, reset by any absence.
	Streak int

	// LastUpdated is the raw Last Updated cell ("" when never updated).
	LastUpdated string
}

// Total returns the number of recorded classes.
func (c Course) Total() int {
	return c.Present + c.Absent
}

// Percentage returns the current attendance percentage.
func (c Course) Percentage() float64 {
	return ComputePercentage(c.Present, c.Absent)
}

// CourseCode builds the course code for a user/nickname pair.
func CourseCode(userID int64, nickname string) string {
	return fmt.Sprintf("%d-%s", userID, nickname)
}

// MaxCallbackData is Telegram's callback_data limit in bytes.
const MaxCallbackData = 64

// LongestCallbackPrefix is the byte length of the longest "<action>:" prefix
// sent in front of a course code.
const LongestCallbackPrefix = len("decrease_present:")

// CourseCodeFits reports whether every callback carrying code stays within
// MaxCallbackData.
func CourseCodeFits(code string) bool {
	return LongestCallbackPrefix+len(code) <= MaxCallbackData
}

// SameNickname compares nicknames the way uniqueness is enforced.
func SameNickname(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// ══════════════════════════════════════════════════════════════════════════════
// RESULTS
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceResult describes a count change of one course.
type AttendanceResult struct {
	CourseCode string
	Nickname   string

	PresentBefore int
	PresentAfter  int
	AbsentBefore  int
	AbsentAfter   int

	// Streak is the streak after the change.
	Streak int

	PercentageBefore float64
	PercentageAfter  float64

	UpdatedAt time.Time
}

// Course returns the course state after the change.
func (r AttendanceResult) Course() Course {
	return Course{
		Code:     r.CourseCode,
		Nickname: r.Nickname,
		Present:  r.PresentAfter,
		Absent:   r.AbsentAfter,
		Streak:   r.Streak,
	}
}

// SafeSkipEntry is a course that can absorb one more absence.
type SafeSkipEntry struct {
	Nickname string

	// Percentage is the current percentage, not the projected one.
	Percentage float64
}

// SafeSkipList is the ordered result of a safe-skip query.
type SafeSkipList []SafeSkipEntry
