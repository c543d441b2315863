package handler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/TayalAditya/TheAttendioBot/internal/domain/conversation"
	"github.com/TayalAditya/TheAttendioBot/internal/interface/telegram/presenter"
	"github.com/TayalAditya/TheAttendioBot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// FEEDBACK HANDLER
// Blocked users can reach this handler; it is their only way to appeal.
// ══════════════════════════════════════════════════════════════════════════════

// FeedbackHandler forwards user feedback to the admin chat.
type FeedbackHandler struct {
	conv      conversation.Store
	messenger Messenger
	adminID   int64
	logger    *zap.Logger
	now       func() time.Time
}

// NewFeedbackHandler creates a new FeedbackHandler. A zero adminID leaves
// feedback undelivered.
func NewFeedbackHandler(conv conversation.Store, messenger Messenger, adminID int64, logger *zap.Logger) *FeedbackHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackHandler{conv: conv, messenger: messenger, adminID: adminID, logger: logger, now: timeutil.Now}
}

// Start asks for the feedback text.
func (h *FeedbackHandler) Start(ctx context.Context, req Request) (*Response, error) {
	if err := h.conv.Set(ctx, req.UserID, conversation.State{Step: conversation.StepAwaitingFeedback}); err != nil {
		return nil, Errorf("feedback", err)
	}
	if req.Blocked {
		return Plain(presenter.MsgFeedbackPromptBlocked), nil
	}
	return Plain(presenter.MsgFeedbackPrompt), nil
}

// Save forwards the text to the admin.
func (h *FeedbackHandler) Save(ctx context.Context, req Request) (*Response, error) {
	if err := h.conv.Clear(ctx, req.UserID); err != nil {
		h.logger.Warn("failed to clear conversation", zap.Int64("telegram_id", req.UserID), zap.Error(err))
	}

	if h.adminID == 0 {
		h.logger.Error("admin telegram id not configured for feedback forwarding")
		return Plain(presenter.MsgFeedbackNoAdmin), nil
	}

	stamp := timeutil.FormatLocal(h.now(), time.DateTime)
	msg := presenter.FormatFeedback(req.UserID, req.FirstName(), stamp, req.Args, req.Blocked)
	if _, err := h.messenger.SendHTML(ctx, h.adminID, msg); err != nil {
		h.logger.Error("failed to forward feedback", zap.Int64("telegram_id", req.UserID), zap.Error(err))
	} else {
		h.logger.Info("feedback forwarded to admin", zap.Int64("telegram_id", req.UserID), zap.Bool("blocked", req.Blocked))
	}

	if req.Blocked {
		return Plain(presenter.MsgFeedbackBlockedSent), nil
	}
	return Plain(presenter.MsgFeedbackThanks), nil
}
