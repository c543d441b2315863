package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TayalAditya/TheAttendioBot/internal/domain/attendance"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/conversation"
)

func TestRecordStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := NewRecordStore()

	require.NoError(t, s.AppendRow(ctx, []string{"1", "Asha", "1-DSA", "DSA", "3", "1"}))
	require.NoError(t, s.AppendRow(ctx, []string{"1", "Asha", "1-OS", "OS", "0", "0"}))

	rows, err := s.GetAllRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "DSA", rows[0].Get(attendance.FieldNickname))
	assert.Equal(t, "", rows[0].Get(attendance.FieldChatID))

	require.NoError(t, s.UpdateField(ctx, rows[0].Index, attendance.FieldPresent, "4"))
	require.NoError(t, s.DeleteRow(ctx, rows[1].Index))

	rows, err = s.GetAllRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "4", rows[0].Get(attendance.FieldPresent))

	assert.Error(t, s.UpdateField(ctx, 99, attendance.FieldPresent, "1"))
	assert.Error(t, s.UpdateField(ctx, rows[0].Index, attendance.Field("Nope"), "1"))
	assert.Error(t, s.DeleteRow(ctx, 99))
}

func TestRecordStore_SnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewRecordStore()
	s.Seed([]string{"1", "Asha", "1-DSA", "DSA", "3", "1"})

	rows, _ := s.GetAllRows(ctx)
	rows[0].Values[attendance.FieldPresent] = "100"

	again, _ := s.GetAllRows(ctx)
	assert.Equal(t, "3", again[0].Get(attendance.FieldPresent))
}

func TestRecordStore_FailWith(t *testing.T) {
	ctx := context.Background()
	s := NewRecordStore()
	boom := errors.New("boom")
	s.FailWith(boom)

	_, err := s.GetAllRows(ctx)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, s.Ping(ctx), boom)

	s.FailWith(nil)
	assert.NoError(t, s.Ping(ctx))
}

func TestLocker_SerializesSameKey(t *testing.T) {
	l := NewLocker()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "course:1:1-DSA")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			maxSeen = max(maxSeen, inside)
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, l.Held())
}

func TestLocker_ContextCancel(t *testing.T) {
	l := NewLocker()
	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	assert.Equal(t, 0, l.Held())
}

func TestLocker_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocker()
	ctx := context.Background()
	a, err := l.Lock(ctx, "a")
	require.NoError(t, err)
	defer a()

	done := make(chan struct{})
	go func() {
		b, err := l.Lock(ctx, "b")
		if err == nil {
			b()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestBlockList(t *testing.T) {
	ctx := context.Background()
	b := NewBlockList()

	blocked, err := b.IsBlocked(ctx, 7)
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, b.Block(ctx, 7))
	blocked, _ = b.IsBlocked(ctx, 7)
	assert.True(t, blocked)

	require.NoError(t, b.Unblock(ctx, 7))
	blocked, _ = b.IsBlocked(ctx, 7)
	assert.False(t, blocked)
}

func TestConversationStore_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	s := NewConversationStore(time.Minute)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, 1, conversation.State{Step: conversation.StepAwaitingNickname}))
	st, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, conversation.StepAwaitingNickname, st.Step)

	now = now.Add(2 * time.Minute)
	st, err = s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, conversation.StepNone, st.Step)
}

func TestConversationStore_ClearAndNone(t *testing.T) {
	ctx := context.Background()
	s := NewConversationStore(0)

	require.NoError(t, s.Set(ctx, 1, conversation.State{Step: conversation.StepEditing, CourseCode: "1-DSA"}))
	require.NoError(t, s.Clear(ctx, 1))
	st, _ := s.Get(ctx, 1)
	assert.Equal(t, conversation.State{}, st)

	require.NoError(t, s.Set(ctx, 2, conversation.State{Step: conversation.StepAwaitingFeedback}))
	require.NoError(t, s.Set(ctx, 2, conversation.State{}))
	st, _ = s.Get(ctx, 2)
	assert.Equal(t, conversation.StepNone, st.Step)
}

func TestRateWindow_Slides(t *testing.T) {
	ctx := context.Background()
	w := NewRateWindow(time.Minute)
	start := time.Date(2024, 10, 14, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		n, err := w.Hit(ctx, 1, start.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		assert.Equal(t, i+1, n)
	}

	n, _ := w.Hit(ctx, 2, start)
	assert.Equal(t, 1, n, "users are counted separately")

	n, _ = w.Hit(ctx, 1, start.Add(61*time.Second))
	assert.Equal(t, 2, n, "entries older than the period drop out")

	require.NoError(t, w.Reset(ctx, 1))
	n, _ = w.Hit(ctx, 1, start.Add(62*time.Second))
	assert.Equal(t, 1, n)
}
