package command

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/TayalAditya/TheAttendioBot/internal/domain/attendance"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DELETE COURSE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// DeleteCourseCommand removes one course row of a user.
type DeleteCourseCommand struct {
	UserID     int64
	CourseCode string
}

// Validate validates the command.
func (c DeleteCourseCommand) Validate() error {
	if c.UserID <= 0 {
		return shared.ErrInvalidTelegramID
	}
	if c.CourseCode == "" {
		return shared.NewDomainError("attendance", "DeleteCourse", shared.ErrEmptyValue, "course code is required")
	}
	return nil
}

// DeleteCourseResult contains the deleted nickname and the remaining courses.
type DeleteCourseResult struct {
	Nickname  string
	Remaining []attendance.Course
}

// DeleteCourseHandler handles DeleteCourseCommand.
type DeleteCourseHandler struct {
	deps Dependencies
}

// NewDeleteCourseHandler creates a new DeleteCourseHandler.
func NewDeleteCourseHandler(deps Dependencies) *DeleteCourseHandler {
	return &DeleteCourseHandler{deps: deps.withDefaults()}
}

// Handle executes the delete course command.
func (h *DeleteCourseHandler) Handle(ctx context.Context, cmd DeleteCourseCommand) (*DeleteCourseResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("delete_course: %w", err)
	}

	unlock, err := h.deps.lock(ctx, attendance.UserLockKey(cmd.UserID))
	if err != nil {
		return nil, fmt.Errorf("delete_course: %w", err)
	}
	defer unlock()

	// Marks on the course must not interleave with the row removal.
	unlockCourse, err := h.deps.lock(ctx, attendance.CourseLockKey(cmd.UserID, cmd.CourseCode))
	if err != nil {
		return nil, fmt.Errorf("delete_course: %w", err)
	}
	defer unlockCourse()

	table, err := h.deps.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("delete_course: %w", err)
	}

	target, ok := table.FindCourse(cmd.UserID, cmd.CourseCode)
	if !ok {
		return nil, shared.ErrCourseNotFound
	}
	if err := h.deps.Store.DeleteRow(ctx, target.Row.Index); err != nil {
		return nil, fmt.Errorf("delete_course: %w", shared.StoreError("DeleteRow", err))
	}

	res := &DeleteCourseResult{Nickname: target.Course.Nickname}
	for _, cr := range table.Courses(cmd.UserID) {
		if cr.Row.Index != target.Row.Index {
			res.Remaining = append(res.Remaining, cr.Course)
		}
	}

	h.deps.Logger.Info("course deleted",
		zap.Int64("telegram_id", cmd.UserID),
		zap.String("course_code", cmd.CourseCode),
	)
	h.deps.publish(shared.NewCourseDeletedEvent(cmd.UserID, cmd.CourseCode, target.Course.Nickname))

	return res, nil
}
