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
// SET ATTENDANCE COMMAND
// Overwrites both counters of a course from the edit flow.
// ══════════════════════════════════════════════════════════════════════════════

// SetAttendanceCommand sets the absolute counts of a course.
type SetAttendanceCommand struct {
	UserID     int64
	CourseCode string
	Present    int
	Absent     int
}

// Validate validates the command.
func (c SetAttendanceCommand) Validate() error {
	if c.UserID <= 0 {
		return shared.ErrInvalidTelegramID
	}
	if c.CourseCode == "" {
		return shared.NewDomainError("attendance", "SetAttendance", shared.ErrEmptyValue, "course code is required")
	}
	if c.Present < 0 || c.Absent < 0 {
		return shared.ErrNegativeCount
	}
	return nil
}

// SetAttendanceHandler handles SetAttendanceCommand.
type SetAttendanceHandler struct {
	deps Dependencies
}

// NewSetAttendanceHandler creates a new SetAttendanceHandler.
func NewSetAttendanceHandler(deps Dependencies) *SetAttendanceHandler {
	return &SetAttendanceHandler{deps: deps.withDefaults()}
}

// Handle writes Present, Absent and Last Updated. The streak is left as is.
func (h *SetAttendanceHandler) Handle(ctx context.Context, cmd SetAttendanceCommand) (attendance.AttendanceResult, error) {
	if err := cmd.Validate(); err != nil {
		return attendance.AttendanceResult{}, fmt.Errorf("set_attendance: %w", err)
	}

	unlock, err := h.deps.lock(ctx, attendance.CourseLockKey(cmd.UserID, cmd.CourseCode))
	if err != nil {
		return attendance.AttendanceResult{}, fmt.Errorf("set_attendance: %w", err)
	}
	defer unlock()

	table, err := h.deps.load(ctx)
	if err != nil {
		return attendance.AttendanceResult{}, fmt.Errorf("set_attendance: %w", err)
	}
	cr, ok := table.FindCourse(cmd.UserID, cmd.CourseCode)
	if !ok {
		return attendance.AttendanceResult{}, shared.ErrCourseNotFound
	}
	h.deps.warnMalformed(cr)

	return h.apply(ctx, "set_attendance", cmd.UserID, cr, cmd.Present, cmd.Absent)
}

// apply writes Present, Absent and Last Updated for a course already held
// under its lock.
func (h *SetAttendanceHandler) apply(ctx context.Context, op string, userID int64, cr attendance.CourseRow, present, absent int) (attendance.AttendanceResult, error) {
	now := h.deps.now()
	res := attendance.SetManual(cr.Course, present, absent, now)

	err := h.deps.write(ctx, "SetAttendance", cr.Row.Index,
		cell{field: attendance.FieldPresent, value: strconv.Itoa(res.PresentAfter)},
		cell{field: attendance.FieldAbsent, value: strconv.Itoa(res.AbsentAfter)},
		cell{field: attendance.FieldLastUpdated, value: h.deps.stamp(now)},
	)
	if err != nil {
		return attendance.AttendanceResult{}, fmt.Errorf("%s: %w", op, err)
	}

	h.deps.Logger.Info("attendance edited",
		zap.String("operation", op),
		zap.Int64("telegram_id", userID),
		zap.String("course_code", cr.Course.Code),
		zap.Int("present", res.PresentAfter),
		zap.Int("absent", res.AbsentAfter),
	)
	h.deps.publish(shared.NewAttendanceEditedEvent(userID, cr.Course.Code, res.PresentAfter, res.AbsentAfter))
	return res, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ADJUST ATTENDANCE COMMAND
// One ➖/➕ step of the edit flow, clamped at zero.
// ══════════════════════════════════════════════════════════════════════════════

// AdjustAttendanceCommand shifts the counters of a course by a delta.
type AdjustAttendanceCommand struct {
	UserID       int64
	CourseCode   string
	PresentDelta int
	AbsentDelta  int
}

// AdjustAttendanceHandler handles AdjustAttendanceCommand. It turns the
// delta into absolute counts and writes them through SetAttendanceHandler.
type AdjustAttendanceHandler struct {
	deps Dependencies
	set  *SetAttendanceHandler
}

// NewAdjustAttendanceHandler creates a new AdjustAttendanceHandler.
func NewAdjustAttendanceHandler(deps Dependencies) *AdjustAttendanceHandler {
	deps = deps.withDefaults()
	return &AdjustAttendanceHandler{deps: deps, set: &SetAttendanceHandler{deps: deps}}
}

// Handle applies the delta under the course lock. Counters never drop below 0.
func (h *AdjustAttendanceHandler) Handle(ctx context.Context, cmd AdjustAttendanceCommand) (attendance.AttendanceResult, error) {
	if cmd.UserID <= 0 {
		return attendance.AttendanceResult{}, fmt.Errorf("adjust_attendance: %w", shared.ErrInvalidTelegramID)
	}

	unlock, err := h.deps.lock(ctx, attendance.CourseLockKey(cmd.UserID, cmd.CourseCode))
	if err != nil {
		return attendance.AttendanceResult{}, fmt.Errorf("adjust_attendance: %w", err)
	}
	defer unlock()

	table, err := h.deps.load(ctx)
	if err != nil {
		return attendance.AttendanceResult{}, fmt.Errorf("adjust_attendance: %w", err)
	}
	cr, ok := table.FindCourse(cmd.UserID, cmd.CourseCode)
	if !ok {
		return attendance.AttendanceResult{}, shared.ErrCourseNotFound
	}
	h.deps.warnMalformed(cr)

	return h.set.apply(ctx, "adjust_attendance", cmd.UserID, cr,
		max(0, cr.Course.Present+cmd.PresentDelta),
		max(0, cr.Course.Absent+cmd.AbsentDelta),
	)
}
