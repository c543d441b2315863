package handler

import (
	"context"

	"github.com/TayalAditya/TheAttendioBot/internal/domain/conversation"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/external/telegram"
	"github.com/TayalAditya/TheAttendioBot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// HELP HANDLER
// Handles /help, /cancel and text nobody asked for.
// ══════════════════════════════════════════════════════════════════════════════

// HelpHandler answers /help, /cancel and unexpected input.
type HelpHandler struct {
	conv conversation.Store
}

// NewHelpHandler creates a new HelpHandler.
func NewHelpHandler(conv conversation.Store) *HelpHandler {
	return &HelpHandler{conv: conv}
}

// Help lists the commands; the admin also sees the admin tools.
func (h *HelpHandler) Help(_ context.Context, req Request) (*Response, error) {
	if req.IsAdmin {
		return HTML(presenter.FormatHelp(true)), nil
	}
	return Plain(presenter.FormatHelp(false)), nil
}

// Cancel drops any pending prompt.
func (h *HelpHandler) Cancel(ctx context.Context, req Request) (*Response, error) {
	if err := h.conv.Clear(ctx, req.UserID); err != nil {
		return nil, Errorf("cancel", err)
	}
	return Plain(presenter.MsgCancel).WithMarkup(telegram.RemoveKeyboard()), nil
}

// Unknown answers text outside of any prompt.
func (h *HelpHandler) Unknown(_ context.Context, _ Request) (*Response, error) {
	return Plain(presenter.MsgUnknownInput), nil
}
