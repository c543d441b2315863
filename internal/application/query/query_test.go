package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TayalAditya/TheAttendioBot/internal/domain/attendance"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/shared"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/persistence/memory"
)

func seeded(t *testing.T) *memory.RecordStore {
	t.Helper()
	s := memory.NewRecordStore()
	asha := attendance.User{ID: 1, Name: "Asha", ChatID: 11, Phone: "+91"}
	ravi := attendance.User{ID: 2, Name: "Ravi"}
	s.Seed(
		attendance.EncodeCourse(asha, attendance.Course{Code: "1-DSA", Nickname: "DSA", Present: 2, Absent: 3}),
		attendance.EncodeCourse(asha, attendance.Course{Code: "1-OS", Nickname: "OS", Present: 20, Absent: 1, Streak: 5}),
		attendance.EncodeCourse(asha, attendance.Course{Code: "1-New", Nickname: "New"}),
		attendance.EncodeUser(ravi, "2024-10-01 10:00:00"),
	)
	return s
}

func TestGetCourses_AttachesAdvice(t *testing.T) {
	h := NewGetCoursesHandler(Dependencies{Store: seeded(t)})

	courses, err := h.Handle(context.Background(), GetCoursesQuery{UserID: 1})
	require.NoError(t, err)
	require.Len(t, courses, 3)

	dsa := courses[0]
	assert.Equal(t, "DSA", dsa.Nickname)
	assert.Equal(t, 5, dsa.Total)
	assert.InDelta(t, 40.0, dsa.Percentage, 1e-9)
	assert.Equal(t, 10, dsa.ClassesNeeded)
	assert.True(t, dsa.Below)
	assert.Equal(t, 80, dsa.AdviceThreshold)

	os := courses[1]
	assert.Equal(t, 4, os.ClassesLeft)
	assert.Equal(t, 0, os.ClassesNeeded)
	assert.Equal(t, 5, os.Streak)

	fresh := courses[2]
	assert.InDelta(t, 100.0, fresh.Percentage, 1e-9)
	assert.Equal(t, 0, fresh.ClassesNeeded)
	assert.Equal(t, 0, fresh.ClassesLeft)
}

func TestGetCourses_NoCourses(t *testing.T) {
	h := NewGetCoursesHandler(Dependencies{Store: seeded(t)})

	_, err := h.Handle(context.Background(), GetCoursesQuery{UserID: 2})
	assert.ErrorIs(t, err, shared.ErrNoCourses)

	_, err = h.Get(context.Background(), 1, "1-Nope")
	assert.ErrorIs(t, err, shared.ErrCourseNotFound)

	c, err := h.Get(context.Background(), 1, "1-OS")
	require.NoError(t, err)
	assert.Equal(t, "OS", c.Nickname)
}

func TestGetCourses_CustomAdviceThreshold(t *testing.T) {
	h := NewGetCoursesHandler(Dependencies{Store: seeded(t), Advice: attendance.AdvicePolicy{ThresholdPercent: 75}})

	courses, err := h.Handle(context.Background(), GetCoursesQuery{UserID: 1})
	require.NoError(t, err)
	// 2 present, 3 absent at 75%: (75*5 - 200) / 25 = 7.
	assert.Equal(t, 7, courses[0].ClassesNeeded)
	assert.Equal(t, 75, courses[0].AdviceThreshold)
}

func TestSafeSkip(t *testing.T) {
	h := NewSafeSkipHandler(Dependencies{Store: seeded(t)})

	list, err := h.Handle(context.Background(), SafeSkipQuery{UserID: 1, Threshold: 75})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "OS", list[0].Nickname)
	assert.InDelta(t, 20.0/21.0*100, list[0].Percentage, 1e-9)

	// A zero-history course only qualifies for a non-positive threshold.
	list, err = h.Handle(context.Background(), SafeSkipQuery{UserID: 1, Threshold: 0})
	require.NoError(t, err)
	assert.Len(t, list, 3)

	_, err = h.Handle(context.Background(), SafeSkipQuery{UserID: 2, Threshold: 75})
	assert.ErrorIs(t, err, shared.ErrNoCourses)
}

func TestUserDirectory(t *testing.T) {
	d := NewUserDirectory(Dependencies{Store: seeded(t)})
	ctx := context.Background()

	u, err := d.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Asha", u.Name)

	_, err = d.GetUser(ctx, 3)
	assert.ErrorIs(t, err, shared.ErrUserNotFound)

	ok, err := d.IsVerified(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = d.IsVerified(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = d.IsVerified(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	rcpts, err := d.Recipients(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Recipient{{UserID: 1, Name: "Asha", ChatID: 11}}, rcpts)

	reminders, err := d.Reminders(ctx)
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Len(t, reminders[0].Courses, 3)
}

func TestQueries_StoreUnavailable(t *testing.T) {
	s := memory.NewRecordStore()
	s.FailWith(assert.AnError)
	d := NewUserDirectory(Dependencies{Store: s})

	_, err := d.Recipients(context.Background())
	assert.True(t, shared.IsStoreUnavailable(err))
}
