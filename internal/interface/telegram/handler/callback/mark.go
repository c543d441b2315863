// Package callback contains inline button callback handlers.
// Every callback edits the message that carried the keyboard.
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
// MARK CALLBACK HANDLER
// "mark:<code>" shows Present/Absent, "<code>:1|0" records the class.
// ══════════════════════════════════════════════════════════════════════════════

// MarkHandler handles the mark attendance buttons.
type MarkHandler struct {
	svc       handler.Services
	keyboards *presenter.KeyboardBuilder
}

// NewMarkHandler creates a new MarkHandler.
func NewMarkHandler(svc handler.Services, keyboards *presenter.KeyboardBuilder) *MarkHandler {
	return &MarkHandler{svc: svc, keyboards: keyboards}
}

// Choose asks whether the user attended the picked course.
func (h *MarkHandler) Choose(_ context.Context, req handler.Request) (*handler.Response, error) {
	code := strings.TrimPrefix(req.Args, presenter.CallbackMark)
	return handler.Plain(presenter.FormatMarkPrompt(code)).
		WithMarkup(h.keyboards.MarkChoice(code)).
		AsEdit(), nil
}

// Record stores one class and shows the before/after card.
func (h *MarkHandler) Record(ctx context.Context, req handler.Request) (*handler.Response, error) {
	code, present, ok := presenter.ParseMarkChoice(req.Args)
	if !ok {
		return handler.Plain(presenter.MsgCourseNotFound).AsEdit(), nil
	}

	res, err := h.svc.MarkAttendance.Handle(ctx, command.MarkAttendanceCommand{
		UserID:     req.UserID,
		CourseCode: code,
		Present:    present,
	})
	if shared.IsNotFound(err) {
		return handler.Plain(presenter.MsgCourseNotFound).AsEdit(), nil
	}
	if err != nil {
		return handler.Plain(presenter.FailureText("marking attendance")).AsEdit(), handler.Errorf("mark", err)
	}

	after, err := h.svc.Courses.Get(ctx, req.UserID, code)
	if err != nil {
		return handler.Plain(presenter.FailureText("marking attendance")).AsEdit(), handler.Errorf("mark", err)
	}
	if !h.svc.ShowStreaks() {
		res.Streak = 0
	}
	return handler.Markdown(presenter.FormatMarkResult(res, after)).AsEdit(), nil
}
