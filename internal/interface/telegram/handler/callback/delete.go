package callback

import (
	"context"
	"strings"

	"github.com/TayalAditya/TheAttendioBot/internal/application/command"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/shared"
	"github.com/TayalAditya/TheAttendioBot/internal/interface/telegram/handler"
	"github.com/TayalAditya/TheAttendioBot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// DELETE CALLBACK HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// DeleteHandler handles the delete course buttons.
type DeleteHandler struct {
	svc       handler.Services
	keyboards *presenter.KeyboardBuilder
}

// NewDeleteHandler creates a new DeleteHandler.
func NewDeleteHandler(svc handler.Services, keyboards *presenter.KeyboardBuilder) *DeleteHandler {
	return &DeleteHandler{svc: svc, keyboards: keyboards}
}

// Confirm asks before deleting.
func (h *DeleteHandler) Confirm(_ context.Context, req handler.Request) (*handler.Response, error) {
	code := strings.TrimPrefix(req.Args, presenter.CallbackDeleteConfirm)
	return handler.Plain(presenter.FormatDeletePrompt(code)).
		WithMarkup(h.keyboards.DeleteConfirm(code)).
		AsEdit(), nil
}

// Delete removes the course and lists the rest.
func (h *DeleteHandler) Delete(ctx context.Context, req handler.Request) (*handler.Response, error) {
	code := strings.TrimPrefix(req.Args, presenter.CallbackDelete)

	res, err := h.svc.DeleteCourse.Handle(ctx, command.DeleteCourseCommand{UserID: req.UserID, CourseCode: code})
	if shared.IsNotFound(err) {
		return handler.Plain(presenter.MsgCourseNotFound).AsEdit(), nil
	}
	if err != nil {
		return handler.Plain(presenter.FailureText("deleting course")).AsEdit(), handler.Errorf("delete", err)
	}
	return handler.Markdown(presenter.FormatCourseDeleted(res.Nickname, res.Remaining)).AsEdit(), nil
}

// Cancel keeps the course.
func (h *DeleteHandler) Cancel(_ context.Context, _ handler.Request) (*handler.Response, error) {
	return handler.Plain(presenter.MsgDeleteCancelled).AsEdit(), nil
}
