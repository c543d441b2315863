package attendance

import (
	"strconv"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROW SCHEMA
// ══════════════════════════════════════════════════════════════════════════════

// Field names a column of the record store.
type Field string

// Columns of the record store. The seventh column duplicates the user id and is
// addressed as FieldOwnerID.
const (
	FieldUserID      Field = "User ID"
	FieldUserName    Field = "User Name"
	FieldCourseCode  Field = "Course Code"
	FieldNickname    Field = "Course Nickname"
	FieldPresent     Field = "Present"
	FieldAbsent      Field = "Absent"
	FieldOwnerID     Field = "Owner ID"
	FieldLastUpdated Field = "Last Updated"
	FieldStreak      Field = "Streak"
	FieldPhone       Field = "Phone Number"
	FieldChatID      Field = "Chat ID"
)

// Columns lists the fields in storage order.
var Columns = []Field{
	FieldUserID,
	FieldUserName,
	FieldCourseCode,
	FieldNickname,
	FieldPresent,
	FieldAbsent,
	FieldOwnerID,
	FieldLastUpdated,
	FieldStreak,
	FieldPhone,
	FieldChatID,
}

// IsColumn reports whether f is a known column.
func IsColumn(f Field) bool {
	for _, c := range Columns {
		if c == f {
			return true
		}
	}
	return false
}

// Row is one record of the store. Index is opaque to the domain and is only
// passed back to the store for updates and deletes.
type Row struct {
	Index  int64
	Values map[Field]string
}

// NewRow zips values with Columns. Missing trailing values are empty.
func NewRow(index int64, values []string) Row {
	m := make(map[Field]string, len(Columns))
	for i, f := range Columns {
		if i < len(values) {
			m[f] = values[i]
		} else {
			m[f] = ""
		}
	}
	return Row{Index: index, Values: m}
}

// Get returns the trimmed value of f.
func (r Row) Get(f Field) string {
	return strings.TrimSpace(r.Values[f])
}

// Ordered returns the values in column order.
func (r Row) Ordered() []string {
	out := make([]string, len(Columns))
	for i, f := range Columns {
		out[i] = r.Values[f]
	}
	return out
}

// UserID parses the User ID column.
func (r Row) UserID() (int64, bool) {
	id, err := strconv.ParseInt(r.Get(FieldUserID), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// IsCourseRow reports whether the row carries a course.
func (r Row) IsCourseRow() bool {
	return r.Get(FieldCourseCode) != "" && r.Get(FieldNickname) != ""
}

// ══════════════════════════════════════════════════════════════════════════════
// CODEC
// ══════════════════════════════════════════════════════════════════════════════

// parseCount reads a non-negative counter. Empty cells are 0 and valid;
// anything unparseable or negative is 0 and reported as malformed.
func parseCount(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// Spreadsheet exports sometimes render integers as "3.0".
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, false
		}
		n = int(f)
	}
	if n < 0 {
		return 0, false
	}
	return n, true
}

// DecodeUser reads the user attributes of a row.
func DecodeUser(r Row) (User, bool) {
	id, ok := r.UserID()
	if !ok {
		return User{}, false
	}
	chatID, _ := strconv.ParseInt(r.Get(FieldChatID), 10, 64)
	return User{
		ID:     id,
		Name:   r.Get(FieldUserName),
		ChatID: chatID,
		Phone:  r.Get(FieldPhone),
	}, true
}

// DecodeCourse reads the course of a row. Malformed counters are coerced to 0
// and returned so the caller can log them.
func DecodeCourse(r Row) (Course, []Field) {
	var malformed []Field
	count := func(f Field) int {
		n, ok := parseCount(r.Get(f))
		if !ok {
			malformed = append(malformed, f)
		}
		return n
	}

	owner, _ := r.UserID()
	c := Course{
		Code:        r.Get(FieldCourseCode),
		Nickname:    r.Get(FieldNickname),
		OwnerID:     owner,
		Present:     count(FieldPresent),
		Absent:      count(FieldAbsent),
		Streak:      count(FieldStreak),
		LastUpdated: r.Get(FieldLastUpdated),
	}
	return c, malformed
}

// EncodeUser builds a user row without course columns.
func EncodeUser(u User, registeredAt string) []string {
	return encode(u, Course{LastUpdated: registeredAt}, false)
}

// EncodeCourse builds a course row for u.
func EncodeCourse(u User, c Course) []string {
	return encode(u, c, true)
}

func encode(u User, c Course, withCourse bool) []string {
	id := strconv.FormatInt(u.ID, 10)
	chat := ""
	if u.ChatID != 0 {
		chat = strconv.FormatInt(u.ChatID, 10)
	}
	values := map[Field]string{
		FieldUserID:   id,
		FieldUserName: u.Name,
		FieldOwnerID:  id,
		FieldPhone:    u.Phone,
		FieldChatID:   chat,

		FieldLastUpdated: c.LastUpdated,
	}
	if withCourse {
		values[FieldCourseCode] = c.Code
		values[FieldNickname] = c.Nickname
		values[FieldPresent] = strconv.Itoa(c.Present)
		values[FieldAbsent] = strconv.Itoa(c.Absent)
		values[FieldStreak] = strconv.Itoa(c.Streak)
	}
	return Row{Values: values}.Ordered()
}
