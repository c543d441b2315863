package handler

import (
	"context"
	"errors"

	"github.com/TayalAditya/TheAttendioBot/internal/application/command"
	"github.com/TayalAditya/TheAttendioBot/internal/application/query"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/conversation"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/shared"
	"github.com/TayalAditya/TheAttendioBot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE HANDLER
// Handles /add_course (with the nickname prompt) and the /delete_course menu.
// ══════════════════════════════════════════════════════════════════════════════

// CourseHandler manages the course list of a user.
type CourseHandler struct {
	svc       Services
	conv      conversation.Store
	keyboards *presenter.KeyboardBuilder
}

// NewCourseHandler creates a new CourseHandler.
func NewCourseHandler(svc Services, conv conversation.Store, keyboards *presenter.KeyboardBuilder) *CourseHandler {
	return &CourseHandler{svc: svc, conv: conv, keyboards: keyboards}
}

// AddCourse asks for the nickname of the new course.
func (h *CourseHandler) AddCourse(ctx context.Context, req Request) (*Response, error) {
	if err := h.conv.Set(ctx, req.UserID, conversation.State{Step: conversation.StepAwaitingNickname}); err != nil {
		return nil, Errorf("add_course", err)
	}
	return Plain(presenter.MsgAskNickname), nil
}

// SaveNickname stores the course named by the user's reply.
func (h *CourseHandler) SaveNickname(ctx context.Context, req Request) (*Response, error) {
	if err := h.conv.Clear(ctx, req.UserID); err != nil {
		return nil, Errorf("save_course", err)
	}

	res, err := h.svc.AddCourse.Handle(ctx, command.AddCourseCommand{
		UserID:   req.UserID,
		UserName: req.FirstName(),
		Nickname: req.Args,
	})
	switch {
	case err == nil:
		return Markdown(presenter.FormatCourseAdded(res.Course.Nickname, res.Courses)), nil
	case shared.IsAlreadyExists(err):
		return Plain(presenter.MsgDuplicateNickname), nil
	case errors.Is(err, shared.ErrInvalidNickname):
		return Plain(presenter.MsgInvalidNickname), nil
	default:
		return Plain(presenter.FailureText("adding course")), Errorf("save_course", err)
	}
}

// DeleteMenu lists the courses to delete.
func (h *CourseHandler) DeleteMenu(ctx context.Context, req Request) (*Response, error) {
	courses, err := h.svc.Courses.Handle(ctx, query.GetCoursesQuery{UserID: req.UserID})
	if shared.IsNotFound(err) {
		return Plain(presenter.MsgNoCourses), nil
	}
	if err != nil {
		return nil, Errorf("delete_course", err)
	}
	return Plain(presenter.MsgChooseDelete).WithMarkup(h.keyboards.DeletePicker(courses)), nil
}
