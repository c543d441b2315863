package command

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/TayalAditya/TheAttendioBot/internal/domain/attendance"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MARK ATTENDANCE COMMAND
// Records one present or absent mark for a course and updates its streak.
// ══════════════════════════════════════════════════════════════════════════════

// MarkAttendanceCommand contains the data needed to mark a class.
type MarkAttendanceCommand struct {
	// UserID is the Telegram id of the course owner.
	UserID int64

	// CourseCode identifies the course ("<userID>-<nickname>").
	CourseCode string

	// Present is true for a present mark, false for absent.
	Present bool
}

// Validate validates the command.
func (c MarkAttendanceCommand) Validate() error {
	if c.UserID <= 0 {
		return shared.ErrInvalidTelegramID
	}
	if c.CourseCode == "" {
		return shared.NewDomainError("attendance", "MarkAttendance", shared.ErrEmptyValue, "course code is required")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// MarkAttendanceHandler handles MarkAttendanceCommand.
type MarkAttendanceHandler struct {
	deps Dependencies
}

// NewMarkAttendanceHandler creates a new MarkAttendanceHandler.
func NewMarkAttendanceHandler(deps Dependencies) *MarkAttendanceHandler {
	return &MarkAttendanceHandler{deps: deps.withDefaults()}
}

// Handle executes the mark attendance command.
//
// The counter, Streak and Last Updated cells are written in that order while
// the course lock is held, so concurrent marks on one course never lose an
// increment.
func (h *MarkAttendanceHandler) Handle(ctx context.Context, cmd MarkAttendanceCommand) (attendance.AttendanceResult, error) {
	if err := cmd.Validate(); err != nil {
		return attendance.AttendanceResult{}, fmt.Errorf("mark_attendance: %w", err)
	}

	unlock, err := h.deps.lock(ctx, attendance.CourseLockKey(cmd.UserID, cmd.CourseCode))
	if err != nil {
		return attendance.AttendanceResult{}, fmt.Errorf("mark_attendance: %w", err)
	}
	defer unlock()

	table, err := h.deps.load(ctx)
	if err != nil {
		return attendance.AttendanceResult{}, fmt.Errorf("mark_attendance: %w", err)
	}

	cr, ok := table.FindCourse(cmd.UserID, cmd.CourseCode)
	if !ok {
		return attendance.AttendanceResult{}, shared.ErrCourseNotFound
	}
	h.deps.warnMalformed(cr)

	now := h.deps.now()
	res := attendance.Mark(cr.Course, cmd.Present, now)

	counter := cell{field: attendance.FieldAbsent, value: strconv.Itoa(res.AbsentAfter)}
	if cmd.Present {
		counter = cell{field: attendance.FieldPresent, value: strconv.Itoa(res.PresentAfter)}
	}
	err = h.deps.write(ctx, "MarkAttendance", cr.Row.Index,
		counter,
		cell{field: attendance.FieldStreak, value: strconv.Itoa(res.Streak)},
		cell{field: attendance.FieldLastUpdated, value: h.deps.stamp(now)},
	)
	if err != nil {
		return attendance.AttendanceResult{}, fmt.Errorf("mark_attendance: %w", err)
	}

	h.deps.Logger.Info("attendance marked",
		zap.Int64("telegram_id", cmd.UserID),
		zap.String("course_code", cmd.CourseCode),
		zap.Bool("present", cmd.Present),
		zap.Int("streak", res.Streak),
	)
	h.deps.publish(shared.NewAttendanceMarkedEvent(cmd.UserID, cmd.CourseCode, cmd.Present, res.Streak, res.PercentageAfter))

	return res, nil
}
