package callback

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/TayalAditya/TheAttendioBot/internal/application/command"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/conversation"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/shared"
	"github.com/TayalAditya/TheAttendioBot/internal/interface/telegram/handler"
	"github.com/TayalAditya/TheAttendioBot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// EDIT CALLBACK HANDLER
// Each ➖/➕ is stored right away. The counters seen when editing began live in
// the conversation store so "Done" can show the cumulative change.
// ══════════════════════════════════════════════════════════════════════════════

// EditHandler handles the edit attendance buttons.
type EditHandler struct {
	svc       handler.Services
	conv      conversation.Store
	keyboards *presenter.KeyboardBuilder
	logger    *zap.Logger
}

// NewEditHandler creates a new EditHandler.
func NewEditHandler(
	svc handler.Services,
	conv conversation.Store,
	keyboards *presenter.KeyboardBuilder,
	logger *zap.Logger,
) *EditHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EditHandler{svc: svc, conv: conv, keyboards: keyboards, logger: logger}
}

// steps maps an edit button prefix to its counter deltas.
var steps = map[string][2]int{
	presenter.CallbackIncreasePresent: {1, 0},
	presenter.CallbackDecreasePresent: {-1, 0},
	presenter.CallbackIncreaseAbsent:  {0, 1},
	presenter.CallbackDecreaseAbsent:  {0, -1},
}

// Start opens the edit screen of a course.
func (h *EditHandler) Start(ctx context.Context, req handler.Request) (*handler.Response, error) {
	code := strings.TrimPrefix(req.Args, presenter.CallbackEditAttendance)

	course, err := h.svc.Courses.Get(ctx, req.UserID, code)
	if shared.IsNotFound(err) {
		return handler.Plain(presenter.MsgCourseNotFound).AsEdit(), nil
	}
	if err != nil {
		return handler.Plain(presenter.FailureText("displaying attendance")).AsEdit(), handler.Errorf("edit", err)
	}

	state := conversation.State{
		Step:           conversation.StepEditing,
		CourseCode:     code,
		InitialPresent: course.Present,
		InitialAbsent:  course.Absent,
	}
	if err := h.conv.Set(ctx, req.UserID, state); err != nil {
		return nil, handler.Errorf("edit", err)
	}

	return handler.Plain(presenter.FormatEditStart(course.Nickname, course.Present, course.Absent)).
		WithMarkup(h.keyboards.EditControls(code)).
		AsEdit(), nil
}

// Step applies one ➖/➕ button.
func (h *EditHandler) Step(ctx context.Context, req handler.Request) (*handler.Response, error) {
	prefix, code, ok := splitAction(req.Args)
	delta, known := steps[prefix]
	if !ok || !known {
		return handler.Plain(presenter.MsgCourseNotFound).AsEdit(), nil
	}

	res, err := h.svc.AdjustAttendance.Handle(ctx, command.AdjustAttendanceCommand{
		UserID:       req.UserID,
		CourseCode:   code,
		PresentDelta: delta[0],
		AbsentDelta:  delta[1],
	})
	if shared.IsNotFound(err) {
		return handler.Plain(presenter.MsgCourseNotFound).AsEdit(), nil
	}
	if err != nil {
		return handler.Plain(presenter.FailureText("updating attendance")).AsEdit(), handler.Errorf("edit", err)
	}

	return handler.Plain(presenter.FormatEditProgress(res.Nickname, res.PresentAfter, res.AbsentAfter)).
		WithMarkup(h.keyboards.EditControls(code)).
		AsEdit(), nil
}

// Done shows the cumulative change and ends the edit session.
func (h *EditHandler) Done(ctx context.Context, req handler.Request) (*handler.Response, error) {
	code := strings.TrimPrefix(req.Args, presenter.CallbackDone)

	course, err := h.svc.Courses.Get(ctx, req.UserID, code)
	if shared.IsNotFound(err) {
		return handler.Plain(presenter.MsgCourseNotFound).AsEdit(), nil
	}
	if err != nil {
		return handler.Plain(presenter.FailureText("updating attendance")).AsEdit(), handler.Errorf("edit", err)
	}

	initialPresent, initialAbsent := course.Present, course.Absent
	state, err := h.conv.Get(ctx, req.UserID)
	if err != nil {
		h.logger.Warn("failed to load edit session", zap.Int64("telegram_id", req.UserID), zap.Error(err))
	} else if state.Step == conversation.StepEditing && state.CourseCode == code {
		initialPresent, initialAbsent = state.InitialPresent, state.InitialAbsent
	}
	if err := h.conv.Clear(ctx, req.UserID); err != nil {
		h.logger.Warn("failed to clear edit session", zap.Int64("telegram_id", req.UserID), zap.Error(err))
	}

	text := presenter.FormatEditDone(course.Nickname, initialPresent, initialAbsent, course.Present, course.Absent)
	return handler.Markdown(text).AsEdit(), nil
}

// splitAction splits "<action>:<code>" into "<action>:" and "<code>".
func splitAction(data string) (prefix, code string, ok bool) {
	i := strings.IndexByte(data, ':')
	if i <= 0 || i == len(data)-1 {
		return "", "", false
	}
	return data[:i+1], data[i+1:], true
}
