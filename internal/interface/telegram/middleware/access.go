// Package middleware contains Telegram bot middlewares for request processing.
// Every command passes access control, then the rate limiter, then panic
// recovery before it reaches its handler.
package middleware

import (
	"context"
	"fmt"

	"github.com/TayalAditya/TheAttendioBot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXT KEYS
// ══════════════════════════════════════════════════════════════════════════════

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// TelegramIDContextKey is the context key for the Telegram user ID.
	TelegramIDContextKey contextKey = "telegram_id"

	// RequestIDContextKey is the context key for request tracing.
	RequestIDContextKey contextKey = "request_id"
)

// WithRequestID stores the update's request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDContextKey, id)
}

// RequestIDFrom returns the request id stored by WithRequestID.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDContextKey).(string)
	return id
}

// ══════════════════════════════════════════════════════════════════════════════
// ACCESS MIDDLEWARE
// Gates a command on the block list, the admin role and phone verification.
// The admin passes every gate.
// ══════════════════════════════════════════════════════════════════════════════

// BlockChecker reports blocked users.
type BlockChecker interface {
	IsBlocked(ctx context.Context, userID int64) (bool, error)
}

// VerificationChecker reports users with a verified phone number.
type VerificationChecker interface {
	IsVerified(ctx context.Context, userID int64) (bool, error)
}

// AccessConfig holds configuration for the access middleware.
type AccessConfig struct {
	// AdminID is the administrator's Telegram ID (0 = no admin).
	AdminID int64

	// RequirePhone switches phone verification on. nil means always on.
	RequirePhone func() bool
}

// AccessPolicy describes what a command demands.
type AccessPolicy struct {
	// Public commands work without a verified phone.
	Public bool

	// AllowBlocked commands stay usable by blocked users (/feedback, /cancel).
	AllowBlocked bool

	// AdminOnly commands are rejected for everyone but the admin.
	AdminOnly bool
}

// AccessResult represents the result of an access check.
type AccessResult struct {
	// ShouldContinue indicates if request processing should continue.
	ShouldContinue bool

	// IsAdmin is set for the administrator.
	IsAdmin bool

	// Blocked is set when the user is on the block list.
	Blocked bool

	// ResponseMessage is the message to send if access was denied.
	ResponseMessage string
}

// AccessMiddleware checks access to bot commands.
type AccessMiddleware struct {
	blocks   BlockChecker
	verified VerificationChecker
	config   AccessConfig
}

// NewAccessMiddleware creates a new access middleware.
func NewAccessMiddleware(blocks BlockChecker, verified VerificationChecker, config AccessConfig) *AccessMiddleware {
	return &AccessMiddleware{blocks: blocks, verified: verified, config: config}
}

// IsAdmin reports whether telegramID is the administrator.
func (m *AccessMiddleware) IsAdmin(telegramID int64) bool {
	return m.config.AdminID != 0 && telegramID == m.config.AdminID
}

// Check applies policy to telegramID.
func (m *AccessMiddleware) Check(ctx context.Context, telegramID int64, policy AccessPolicy) (*AccessResult, error) {
	if m.IsAdmin(telegramID) {
		return &AccessResult{ShouldContinue: true, IsAdmin: true}, nil
	}
	if policy.AdminOnly {
		return &AccessResult{ResponseMessage: presenter.MsgNoPermission}, nil
	}

	blocked, err := m.blocks.IsBlocked(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("access: check block list: %w", err)
	}
	if blocked && !policy.AllowBlocked {
		return &AccessResult{Blocked: true, ResponseMessage: presenter.MsgBlocked}, nil
	}

	if !policy.Public && m.phoneRequired() {
		ok, err := m.verified.IsVerified(ctx, telegramID)
		if err != nil {
			return nil, fmt.Errorf("access: check verification: %w", err)
		}
		if !ok {
			return &AccessResult{Blocked: blocked, ResponseMessage: presenter.MsgPhoneRequired}, nil
		}
	}

	return &AccessResult{ShouldContinue: true, Blocked: blocked}, nil
}

// IsBlocked reports whether a non-admin user is blocked.
func (m *AccessMiddleware) IsBlocked(ctx context.Context, telegramID int64) (bool, error) {
	if m.IsAdmin(telegramID) {
		return false, nil
	}
	return m.blocks.IsBlocked(ctx, telegramID)
}

func (m *AccessMiddleware) phoneRequired() bool {
	return m.config.RequirePhone == nil || m.config.RequirePhone()
}
