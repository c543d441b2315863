package query

import (
	"context"
	"fmt"

	"github.com/TayalAditya/TheAttendioBot/internal/domain/attendance"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SAFE SKIP QUERY
// Backs /manage_absences: which classes can be missed today.
// ══════════════════════════════════════════════════════════════════════════════

// SafeSkipQuery asks which courses can absorb one more absence.
type SafeSkipQuery struct {
	UserID int64

	// Threshold is the minimum acceptable percentage.
	Threshold float64
}

// SafeSkipHandler handles SafeSkipQuery.
type SafeSkipHandler struct {
	deps Dependencies
}

// NewSafeSkipHandler creates a new SafeSkipHandler.
func NewSafeSkipHandler(deps Dependencies) *SafeSkipHandler {
	return &SafeSkipHandler{deps: deps.withDefaults()}
}

// Handle returns the safe-skip list in storage order. An empty list means
// nothing can be skipped; shared.ErrNoCourses means there is nothing to judge.
func (h *SafeSkipHandler) Handle(ctx context.Context, q SafeSkipQuery) (attendance.SafeSkipList, error) {
	if q.UserID <= 0 {
		return nil, fmt.Errorf("safe_skip: %w", shared.ErrInvalidTelegramID)
	}
	table, err := h.deps.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("safe_skip: %w", err)
	}
	courses := h.deps.courses(table, q.UserID)
	if len(courses) == 0 {
		return nil, shared.ErrNoCourses
	}
	return attendance.SafeSkip(courses, q.Threshold), nil
}
