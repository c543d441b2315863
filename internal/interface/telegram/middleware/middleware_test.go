package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TayalAditya/TheAttendioBot/internal/application/command"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/external/telegram"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/persistence/memory"
	"github.com/TayalAditya/TheAttendioBot/internal/interface/telegram/presenter"
)

type verifiedSet map[int64]bool

func (v verifiedSet) IsVerified(_ context.Context, id int64) (bool, error) {
	return v[id], nil
}

func TestAccessMiddleware_Check(t *testing.T) {
	ctx := context.Background()
	blocks := memory.NewBlockList()
	require.NoError(t, blocks.Block(ctx, 3))
	m := NewAccessMiddleware(blocks, verifiedSet{2: true, 3: true}, AccessConfig{AdminID: 1})

	tests := []struct {
		name     string
		user     int64
		policy   AccessPolicy
		cont     bool
		response string
	}{
		{"admin passes admin-only", 1, AccessPolicy{AdminOnly: true}, true, ""},
		{"admin skips phone", 1, AccessPolicy{}, true, ""},
		{"user rejected from admin-only", 2, AccessPolicy{AdminOnly: true}, false, presenter.MsgNoPermission},
		{"verified user", 2, AccessPolicy{}, true, ""},
		{"unverified user", 4, AccessPolicy{}, false, presenter.MsgPhoneRequired},
		{"unverified on public command", 4, AccessPolicy{Public: true}, true, ""},
		{"blocked user", 3, AccessPolicy{Public: true}, false, presenter.MsgBlocked},
		{"blocked user on feedback", 3, AccessPolicy{Public: true, AllowBlocked: true}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := m.Check(ctx, tt.user, tt.policy)
			require.NoError(t, err)
			assert.Equal(t, tt.cont, res.ShouldContinue)
			assert.Equal(t, tt.response, res.ResponseMessage)
		})
	}

	res, err := m.Check(ctx, 3, AccessPolicy{Public: true, AllowBlocked: true})
	require.NoError(t, err)
	assert.True(t, res.Blocked)
}

func TestAccessMiddleware_PhoneFlagOff(t *testing.T) {
	m := NewAccessMiddleware(memory.NewBlockList(), verifiedSet{}, AccessConfig{RequirePhone: func() bool { return false }})
	res, err := m.Check(context.Background(), 9, AccessPolicy{})
	require.NoError(t, err)
	assert.True(t, res.ShouldContinue)
}

type countingObserver struct{ blocked, rejected int }

func (o *countingObserver) ObserveRateLimited(blocked bool) {
	if blocked {
		o.blocked++
	} else {
		o.rejected++
	}
}

func TestRateLimiter_AutoBlocks(t *testing.T) {
	ctx := context.Background()
	blocks := memory.NewBlockList()
	blocker := command.NewBlockUserHandler(blocks, command.Dependencies{})
	obs := &countingObserver{}
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

	rl := NewRateLimiter(memory.NewRateWindow(time.Minute), blocker, RateLimitConfig{
		Limit:    3,
		AdminID:  1,
		Observer: obs,
		Now:      func() time.Time { return now },
	})
	user := &telegram.User{ID: 5, FirstName: "Ana"}

	for i := 1; i <= 3; i++ {
		res, err := rl.Check(ctx, user)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "command %d", i)
		assert.Equal(t, i, res.Count)
	}

	res, err := rl.Check(ctx, user)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.True(t, res.Blocked)
	assert.Equal(t, presenter.MsgAutoBlocked, res.ResponseMessage)
	assert.Equal(t, 1, obs.blocked)

	blocked, err := blocks.IsBlocked(ctx, 5)
	require.NoError(t, err)
	assert.True(t, blocked)

	for i := 0; i < 10; i++ {
		res, err := rl.Check(ctx, &telegram.User{ID: 1})
		require.NoError(t, err)
		assert.True(t, res.Allowed, "admin is exempt")
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(memory.NewRateWindow(time.Minute), nil, RateLimitConfig{
		Limit:     2,
		AutoBlock: func() bool { return false },
		Now:       func() time.Time { return now },
	})
	user := &telegram.User{ID: 5}

	for i := 0; i < 2; i++ {
		_, err := rl.Check(ctx, user)
		require.NoError(t, err)
	}
	res, err := rl.Check(ctx, user)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.False(t, res.Blocked)
	assert.Equal(t, presenter.MsgSlowDown, res.ResponseMessage)

	now = now.Add(61 * time.Second)
	res, err = rl.Check(ctx, user)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Count)
}

type failingWindow struct{}

func (failingWindow) Hit(context.Context, int64, time.Time) (int, error) {
	return 0, errors.New("redis down")
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	rl := NewRateLimiter(failingWindow{}, nil, RateLimitConfig{Limit: 1})
	res, err := rl.Check(context.Background(), &telegram.User{ID: 5})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRecoveryMiddleware(t *testing.T) {
	var seen *PanicInfo
	m := NewRecoveryMiddleware(RecoveryConfig{
		EnableStackTrace: true,
		OnPanic:          func(_ context.Context, p *PanicInfo) { seen = p },
	})
	ctx := WithRequestID(context.Background(), "req-1")

	res := m.RecoverWithHandler(ctx, 5, "check_attendance", func() error { panic("boom") })
	assert.True(t, res.Recovered)
	assert.Equal(t, presenter.MsgInternalError, res.UserMessage)
	assert.EqualError(t, res.Err, "boom")
	require.NotNil(t, seen)
	assert.Equal(t, "req-1", seen.RequestID)
	assert.Equal(t, int64(5), seen.TelegramID)
	assert.Contains(t, seen.String(), "Command:    check_attendance")
	assert.NotEmpty(t, seen.StackTrace)

	res = m.RecoverWithHandler(ctx, 5, "help", func() error { return errors.New("plain") })
	assert.False(t, res.Recovered)
	assert.EqualError(t, res.Err, "plain")
}

type recordedCommand struct {
	name string
	err  error
}

type fakeRecorder struct{ calls []recordedCommand }

func (f *fakeRecorder) ObserveCommand(command string, _ time.Duration, err error) {
	f.calls = append(f.calls, recordedCommand{command, err})
}

func TestMetricsMiddleware(t *testing.T) {
	rec := &fakeRecorder{}
	m := NewMetricsMiddleware(rec)

	m.Start("help").End(nil)
	m.Start("mark_attendance").End(errors.New("x"))

	total, failed := m.Totals()
	assert.Equal(t, int64(2), total)
	assert.Equal(t, int64(1), failed)
	require.Len(t, rec.calls, 2)
	assert.Equal(t, "mark_attendance", rec.calls[1].name)

	NewMetricsMiddleware(nil).Start("x").End(nil)
}
