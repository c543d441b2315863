package attendance

import (
	"context"

	"github.com/TayalAditya/TheAttendioBot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TABLE
// Read-side view over a full scan of the record store.
// ══════════════════════════════════════════════════════════════════════════════

// Table is a snapshot of every row.
type Table []Row

// LoadTable performs a full scan of store.
func LoadTable(ctx context.Context, store RecordStore) (Table, error) {
	rows, err := store.GetAllRows(ctx)
	if err != nil {
		return nil, shared.StoreError("GetAllRows", err)
	}
	return Table(rows), nil
}

// CourseRow pairs a decoded course with its row.
type CourseRow struct {
	Row       Row
	Course    Course
	Malformed []Field
}

// UserRows returns every row owned by userID, in order.
func (t Table) UserRows(userID int64) []Row {
	var rows []Row
	for _, r := range t {
		if id, ok := r.UserID(); ok && id == userID {
			rows = append(rows, r)
		}
	}
	return rows
}

// FindUser returns the user attributes from the first row of userID.
func (t Table) FindUser(userID int64) (User, bool) {
	for _, r := range t.UserRows(userID) {
		if u, ok := DecodeUser(r); ok {
			return u, true
		}
	}
	return User{}, false
}

// Courses returns the courses of userID in storage order.
func (t Table) Courses(userID int64) []CourseRow {
	var out []CourseRow
	for _, r := range t.UserRows(userID) {
		if !r.IsCourseRow() {
			continue
		}
		c, malformed := DecodeCourse(r)
		out = append(out, CourseRow{Row: r, Course: c, Malformed: malformed})
	}
	return out
}

// FindCourse looks a course up by code.
func (t Table) FindCourse(userID int64, code string) (CourseRow, bool) {
	for _, cr := range t.Courses(userID) {
		if cr.Course.Code == code {
			return cr, true
		}
	}
	return CourseRow{}, false
}

// HasNickname reports whether userID already has a course with this nickname, ignoring case.
func (t Table) HasNickname(userID int64, nickname string) bool {
	for _, cr := range t.Courses(userID) {
		if SameNickname(cr.Course.Nickname, nickname) {
			return true
		}
	}
	return false
}

// Users returns every distinct user in first-seen order. Rows with an
// unparseable User ID are skipped.
func (t Table) Users() []User {
	seen := make(map[int64]int)
	var users []User
	for _, r := range t {
		u, ok := DecodeUser(r)
		if !ok {
			continue
		}
		if i, dup := seen[u.ID]; dup {
			// Later rows may carry a chat id the first row lacks.
			if users[i].ChatID == 0 && u.ChatID != 0 {
				users[i].ChatID = u.ChatID
			}
			continue
		}
		seen[u.ID] = len(users)
		users = append(users, u)
	}
	return users
}
