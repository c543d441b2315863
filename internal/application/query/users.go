package query

import (
	"context"
	"fmt"

	"github.com/TayalAditya/TheAttendioBot/internal/domain/attendance"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER DIRECTORY QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// UserDirectory answers lookups over the users of the record store.
type UserDirectory struct {
	deps Dependencies
}

// NewUserDirectory creates a new UserDirectory.
func NewUserDirectory(deps Dependencies) *UserDirectory {
	return &UserDirectory{deps: deps.withDefaults()}
}

// GetUser returns the attributes stored on the first row of userID.
func (d *UserDirectory) GetUser(ctx context.Context, userID int64) (attendance.User, error) {
	table, err := d.deps.load(ctx)
	if err != nil {
		return attendance.User{}, fmt.Errorf("get_user: %w", err)
	}
	u, ok := table.FindUser(userID)
	if !ok {
		return attendance.User{}, shared.ErrUserNotFound
	}
	return u, nil
}

// IsVerified reports whether userID has shared a phone number.
// Unknown users are not verified.
func (d *UserDirectory) IsVerified(ctx context.Context, userID int64) (bool, error) {
	u, err := d.GetUser(ctx, userID)
	if shared.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.IsVerified(), nil
}

// Recipient is a chat that can receive broadcasts.
type Recipient struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	ChatID int64  `json:"chat_id"`
}

// Recipients lists every distinct user with a known chat id.
func (d *UserDirectory) Recipients(ctx context.Context) ([]Recipient, error) {
	table, err := d.deps.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("recipients: %w", err)
	}
	var out []Recipient
	for _, u := range table.Users() {
		if u.ChatID == 0 {
			continue
		}
		out = append(out, Recipient{UserID: u.ID, Name: u.Name, ChatID: u.ChatID})
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REMINDERS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ReminderDTO is the daily digest content for one user.
type ReminderDTO struct {
	Recipient
	Courses []CourseDTO `json:"courses"`
}

// Reminders returns one digest per user that has a chat id and at least one course.
func (d *UserDirectory) Reminders(ctx context.Context) ([]ReminderDTO, error) {
	table, err := d.deps.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("reminders: %w", err)
	}
	var out []ReminderDTO
	for _, u := range table.Users() {
		if u.ChatID == 0 {
			continue
		}
		courses := d.deps.courses(table, u.ID)
		if len(courses) == 0 {
			continue
		}
		r := ReminderDTO{Recipient: Recipient{UserID: u.ID, Name: u.Name, ChatID: u.ChatID}}
		for _, c := range courses {
			r.Courses = append(r.Courses, NewCourseDTO(c, d.deps.Advice))
		}
		out = append(out, r)
	}
	return out, nil
}
