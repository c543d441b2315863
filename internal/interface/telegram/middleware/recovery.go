package middleware

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/TayalAditya/TheAttendioBot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOVERY MIDDLEWARE
// A panicking handler costs the user one apology message, never the process.
// ══════════════════════════════════════════════════════════════════════════════

// RecoveryConfig configures RecoveryMiddleware.
type RecoveryConfig struct {
	EnableStackTrace bool

	// OnPanic receives every recovered panic, at most MaxPanicsPerMinute
	// times a minute. Zero means unlimited.
	OnPanic            func(ctx context.Context, info *PanicInfo)
	MaxPanicsPerMinute int

	// UserErrorMessage is sent to the user instead of a reply.
	UserErrorMessage string

	Logger *zap.Logger
}

func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		EnableStackTrace:   true,
		UserErrorMessage:   presenter.MsgInternalError,
		MaxPanicsPerMinute: 100,
	}
}

// PanicInfo describes one recovered panic.
type PanicInfo struct {
	Error      error
	PanicValue interface{}
	StackTrace string
	RequestID  string
	TelegramID int64
	Command    string
	Timestamp  time.Time
}

// String renders the panic as an aligned multi-line report.
func (p *PanicInfo) String() string {
	var sb strings.Builder
	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&sb, "%-12s%s\n", label+":", value)
		}
	}
	sb.WriteString("--- panic ---\n")
	line("Time", p.Timestamp.Format(time.RFC3339))
	line("RequestID", p.RequestID)
	if p.TelegramID != 0 {
		line("TelegramID", fmt.Sprint(p.TelegramID))
	}
	line("Command", p.Command)
	line("Error", fmt.Sprint(p.PanicValue))
	if p.StackTrace != "" {
		sb.WriteString("\n" + p.StackTrace)
	}
	return sb.String()
}

// RecoveryResult is the outcome of RecoverWithHandler.
type RecoveryResult struct {
	Recovered   bool
	PanicInfo   *PanicInfo
	UserMessage string

	// Err is the handler's error, or the panic converted to one.
	Err error
}

// RecoveryMiddleware runs handlers under recover().
type RecoveryMiddleware struct {
	config RecoveryConfig
	quota  *minuteQuota
}

func NewRecoveryMiddleware(config RecoveryConfig) *RecoveryMiddleware {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.UserErrorMessage == "" {
		config.UserErrorMessage = presenter.MsgInternalError
	}
	return &RecoveryMiddleware{config: config, quota: &minuteQuota{limit: config.MaxPanicsPerMinute}}
}

// RecoverWithHandler calls fn. A panic is logged, reported through OnPanic
// and returned as a Recovered result.
func (m *RecoveryMiddleware) RecoverWithHandler(ctx context.Context, telegramID int64, command string, fn func() error) (result *RecoveryResult) {
	defer func() {
		if v := recover(); v != nil {
			result = m.recovered(ctx, v, telegramID, command)
		}
	}()
	return &RecoveryResult{Err: fn()}
}

func (m *RecoveryMiddleware) recovered(ctx context.Context, v interface{}, telegramID int64, command string) *RecoveryResult {
	info := &PanicInfo{
		Error:      panicError(v),
		PanicValue: v,
		RequestID:  RequestIDFrom(ctx),
		TelegramID: telegramID,
		Command:    command,
		Timestamp:  time.Now(),
	}
	if m.config.EnableStackTrace {
		info.StackTrace = string(debug.Stack())
	}

	m.config.Logger.Error("handler panicked",
		zap.String("request_id", info.RequestID),
		zap.Int64("telegram_id", telegramID),
		zap.String("command", command),
		zap.Any("panic", v),
		zap.String("stack", info.StackTrace),
	)
	if m.config.OnPanic != nil && m.quota.take(info.Timestamp) {
		m.config.OnPanic(ctx, info)
	}

	return &RecoveryResult{
		Recovered:   true,
		PanicInfo:   info,
		UserMessage: m.config.UserErrorMessage,
		Err:         info.Error,
	}
}

func panicError(v interface{}) error {
	switch v := v.(type) {
	case error:
		return v
	case string:
		return errors.New(v)
	default:
		return fmt.Errorf("panic: %v", v)
	}
}

// minuteQuota allows limit events per wall-clock minute.
type minuteQuota struct {
	mu     sync.Mutex
	limit  int
	minute time.Time
	used   int
}

func (q *minuteQuota) take(now time.Time) bool {
	if q.limit <= 0 {
		return true
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if m := now.Truncate(time.Minute); !m.Equal(q.minute) {
		q.minute, q.used = m, 0
	}
	if q.used >= q.limit {
		return false
	}
	q.used++
	return true
}
