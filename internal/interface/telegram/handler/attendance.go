package handler

import (
	"context"

	"github.com/TayalAditya/TheAttendioBot/internal/application/query"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/shared"
	"github.com/TayalAditya/TheAttendioBot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE HANDLER
// Handles /check_attendance, /mark_attendance, /edit_attendance menus and
// /manage_absences. Marks and edits themselves arrive as callbacks.
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceHandler serves the read side of attendance.
type AttendanceHandler struct {
	svc       Services
	keyboards *presenter.KeyboardBuilder

	// threshold is the safe-skip percentage.
	threshold float64
}

// NewAttendanceHandler creates a new AttendanceHandler.
func NewAttendanceHandler(svc Services, keyboards *presenter.KeyboardBuilder, threshold float64) *AttendanceHandler {
	return &AttendanceHandler{svc: svc, keyboards: keyboards, threshold: threshold}
}

func (h *AttendanceHandler) courses(ctx context.Context, userID int64) ([]query.CourseDTO, error) {
	courses, err := h.svc.Courses.Handle(ctx, query.GetCoursesQuery{UserID: userID})
	if shared.IsNotFound(err) {
		return nil, nil
	}
	return courses, err
}

// Check renders every course card.
func (h *AttendanceHandler) Check(ctx context.Context, req Request) (*Response, error) {
	courses, err := h.courses(ctx, req.UserID)
	if err != nil {
		return Plain(presenter.FailureText("checking attendance")), Errorf("check_attendance", err)
	}
	if len(courses) == 0 {
		return Plain(presenter.MsgNoCourses), nil
	}
	if !h.svc.ShowStreaks() {
		for i := range courses {
			courses[i].Streak = 0
		}
	}
	return Markdown(presenter.FormatStatus(courses)), nil
}

// MarkMenu lists the courses to mark.
func (h *AttendanceHandler) MarkMenu(ctx context.Context, req Request) (*Response, error) {
	courses, err := h.courses(ctx, req.UserID)
	if err != nil {
		return nil, Errorf("mark_attendance", err)
	}
	if len(courses) == 0 {
		return Plain(presenter.MsgNoCoursesMark), nil
	}
	return Plain(presenter.MsgChooseMark).WithMarkup(h.keyboards.MarkPicker(courses)), nil
}

// EditMenu lists the courses to edit.
func (h *AttendanceHandler) EditMenu(ctx context.Context, req Request) (*Response, error) {
	courses, err := h.courses(ctx, req.UserID)
	if err != nil {
		return nil, Errorf("edit_attendance", err)
	}
	if len(courses) == 0 {
		return Plain(presenter.MsgNoCourses), nil
	}
	return Plain(presenter.MsgChooseEdit).WithMarkup(h.keyboards.EditPicker(courses)), nil
}

// ManageAbsences lists the courses that can absorb one more absence.
func (h *AttendanceHandler) ManageAbsences(ctx context.Context, req Request) (*Response, error) {
	list, err := h.svc.SafeSkip.Handle(ctx, query.SafeSkipQuery{UserID: req.UserID, Threshold: h.threshold})
	if err != nil && !shared.IsNotFound(err) {
		return Plain(presenter.FailureText("managing absences")), Errorf("manage_absences", err)
	}
	return Plain(presenter.FormatSafeSkip(list)), nil
}
