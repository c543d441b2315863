package middleware

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/TayalAditya/TheAttendioBot/internal/application/command"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/external/telegram"
	"github.com/TayalAditya/TheAttendioBot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER MIDDLEWARE
// Sliding window of commands per user. Crossing the limit blocks the user
// automatically; the block list then keeps them out until the admin lifts it.
// ══════════════════════════════════════════════════════════════════════════════

// Window counts the commands of a user inside the configured period.
// Hit records one command at now and returns the count including it.
type Window interface {
	Hit(ctx context.Context, userID int64, now time.Time) (int, error)
}

// AutoBlocker blocks a user.
type AutoBlocker interface {
	Handle(ctx context.Context, cmd command.BlockUserCommand) error
}

// RateLimitObserver is notified of every rejection.
type RateLimitObserver interface {
	ObserveRateLimited(blocked bool)
}

// RateLimitConfig holds configuration for the rate limiter.
type RateLimitConfig struct {
	// Limit is the number of commands allowed per window (0 disables the limiter).
	Limit int

	// AdminID is exempt from rate limiting.
	AdminID int64

	// AutoBlock switches automatic blocking on. nil means always on.
	// With it off, extra commands are only rejected.
	AutoBlock func() bool

	Logger   *zap.Logger
	Observer RateLimitObserver

	// Now defaults to time.Now.
	Now func() time.Time
}

// RateLimitResult represents the result of a rate limit check.
type RateLimitResult struct {
	// Allowed indicates if the command may run.
	Allowed bool

	// Count is the number of commands inside the window, this one included.
	Count int

	// Blocked is set when this check blocked the user.
	Blocked bool

	// ResponseMessage is sent to the user when the command is rejected.
	ResponseMessage string
}

// RateLimiter implements per-user rate limiting over a Window.
type RateLimiter struct {
	window  Window
	blocker AutoBlocker
	config  RateLimitConfig
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(window Window, blocker AutoBlocker, config RateLimitConfig) *RateLimiter {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &RateLimiter{window: window, blocker: blocker, config: config}
}

// Check records one command of user and decides whether it may run.
// A failing window store lets the command through.
func (r *RateLimiter) Check(ctx context.Context, user *telegram.User) (*RateLimitResult, error) {
	if r.config.Limit <= 0 || user == nil || user.ID == r.config.AdminID {
		return &RateLimitResult{Allowed: true}, nil
	}

	count, err := r.window.Hit(ctx, user.ID, r.config.Now())
	if err != nil {
		r.config.Logger.Warn("rate window unavailable, allowing command",
			zap.Int64("telegram_id", user.ID), zap.Error(err))
		return &RateLimitResult{Allowed: true}, nil
	}
	if count <= r.config.Limit {
		return &RateLimitResult{Allowed: true, Count: count}, nil
	}

	res := &RateLimitResult{Count: count, ResponseMessage: presenter.MsgSlowDown}
	if r.config.AutoBlock == nil || r.config.AutoBlock() {
		err := r.blocker.Handle(ctx, command.BlockUserCommand{
			UserID:    user.ID,
			Name:      user.FirstName,
			Username:  user.Username,
			Reason:    fmt.Sprintf("Commands in last minute: %d", count),
			Automatic: true,
		})
		if err != nil {
			return nil, fmt.Errorf("rate limit: auto-block: %w", err)
		}
		res.Blocked = true
		res.ResponseMessage = presenter.MsgAutoBlocked
	}

	if r.config.Observer != nil {
		r.config.Observer.ObserveRateLimited(res.Blocked)
	}
	r.config.Logger.Warn("rate limit exceeded",
		zap.Int64("telegram_id", user.ID),
		zap.Int("count", count),
		zap.Bool("blocked", res.Blocked),
	)
	return res, nil
}
