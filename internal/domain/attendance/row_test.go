package attendance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCourse_ColumnOrder(t *testing.T) {
	u := User{ID: 42, Name: "Asha", ChatID: 4242, Phone: "+919999999999"}
	c := Course{Code: CourseCode(42, "DSA"), Nickname: "DSA", Present: 3, Absent: 1, Streak: 2, LastUpdated: "2024-03-01 10:00:00"}

	got := EncodeCourse(u, c)

	assert.Equal(t, []string{
		"42", "Asha", "42-DSA", "DSA", "3", "1", "42", "2024-03-01 10:00:00", "2", "+919999999999", "4242",
	}, got)
}

func TestEncodeUser_LeavesCourseColumnsEmpty(t *testing.T) {
	got := EncodeUser(User{ID: 7, Name: "Ravi", Phone: "123"}, "2024-03-01 09:00:00")

	require.Len(t, got, len(Columns))
	row := NewRow(1, got)
	assert.False(t, row.IsCourseRow())
	assert.Equal(t, "", row.Get(FieldChatID))
	assert.Equal(t, "7", row.Get(FieldOwnerID))
	assert.Equal(t, "2024-03-01 09:00:00", row.Get(FieldLastUpdated))
}

func TestDecodeCourse_CoercesMalformedCounters(t *testing.T) {
	row := NewRow(3, []string{"42", "Asha", "42-OS", "OS", "abc", "", "42", "", "-2"})

	c, malformed := DecodeCourse(row)

	assert.Equal(t, 0, c.Present)
	assert.Equal(t, 0, c.Absent)
	assert.Equal(t, 0, c.Streak)
	assert.Equal(t, int64(42), c.OwnerID)
	assert.ElementsMatch(t, []Field{FieldPresent, FieldStreak}, malformed)
}

func TestDecodeCourse_AcceptsFloatIntegers(t *testing.T) {
	row := NewRow(1, []string{"1", "A", "1-X", "X", "3.0", "2", "1", "", "1"})

	c, malformed := DecodeCourse(row)

	assert.Empty(t, malformed)
	assert.Equal(t, 3, c.Present)
	assert.Equal(t, 2, c.Absent)
}

func TestDecodeUser(t *testing.T) {
	u, ok := DecodeUser(NewRow(1, EncodeUser(User{ID: 9, Name: "N", ChatID: 99, Phone: "5"}, "")))
	require.True(t, ok)
	assert.Equal(t, User{ID: 9, Name: "N", ChatID: 99, Phone: "5"}, u)
	assert.True(t, u.IsVerified())

	_, ok = DecodeUser(NewRow(2, []string{"not-a-number"}))
	assert.False(t, ok)
}

func TestTable_Lookups(t *testing.T) {
	asha := User{ID: 1, Name: "Asha", Phone: "1"}
	ravi := User{ID: 2, Name: "Ravi", ChatID: 22}
	table := Table{
		NewRow(1, EncodeUser(asha, "")),
		NewRow(2, EncodeCourse(asha, Course{Code: "1-DSA", Nickname: "DSA", Present: 1})),
		NewRow(3, EncodeCourse(ravi, Course{Code: "2-OS", Nickname: "OS"})),
		NewRow(4, EncodeCourse(User{ID: 1, Name: "Asha", ChatID: 11}, Course{Code: "1-CN", Nickname: "CN"})),
	}

	courses := table.Courses(1)
	require.Len(t, courses, 2)
	assert.Equal(t, "DSA", courses[0].Course.Nickname)
	assert.Equal(t, int64(2), courses[0].Row.Index)

	cr, ok := table.FindCourse(1, "1-CN")
	require.True(t, ok)
	assert.Equal(t, int64(4), cr.Row.Index)

	_, ok = table.FindCourse(1, "2-OS")
	assert.False(t, ok)

	assert.True(t, table.HasNickname(1, "dsa"))
	assert.False(t, table.HasNickname(2, "dsa"))

	u, ok := table.FindUser(1)
	require.True(t, ok)
	assert.Equal(t, "Asha", u.Name)

	users := table.Users()
	require.Len(t, users, 2)
	assert.Equal(t, int64(11), users[0].ChatID)
	assert.Equal(t, int64(22), users[1].ChatID)
}

func TestSameNickname(t *testing.T) {
	assert.True(t, SameNickname("DSA", " dsa "))
	assert.False(t, SameNickname("DSA", "DS"))
}
