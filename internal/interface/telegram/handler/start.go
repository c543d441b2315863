package handler

import (
	"context"

	"go.uber.org/zap"

	"github.com/TayalAditya/TheAttendioBot/internal/application/command"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/conversation"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/external/telegram"
	"github.com/TayalAditya/TheAttendioBot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// START HANDLER
// Handles /start, /verify, shared contacts and /get_chat_id.
// A user exists once they shared their phone number.
// ══════════════════════════════════════════════════════════════════════════════

// StartHandler handles onboarding and phone verification.
type StartHandler struct {
	svc       Services
	conv      conversation.Store
	messenger Messenger
	keyboards *presenter.KeyboardBuilder
	logger    *zap.Logger
}

// NewStartHandler creates a new StartHandler.
func NewStartHandler(
	svc Services,
	conv conversation.Store,
	messenger Messenger,
	keyboards *presenter.KeyboardBuilder,
	logger *zap.Logger,
) *StartHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StartHandler{svc: svc, conv: conv, messenger: messenger, keyboards: keyboards, logger: logger}
}

// Start greets the user. Verified users get their chat id refreshed,
// everyone else is asked for a contact.
func (h *StartHandler) Start(ctx context.Context, req Request) (*Response, error) {
	if _, err := h.messenger.SendText(ctx, req.ChatID, presenter.FormatWelcome(req.FirstName())); err != nil {
		h.logger.Warn("failed to send welcome", zap.Int64("chat_id", req.ChatID), zap.Error(err))
	}

	verified, err := h.svc.Users.IsVerified(ctx, req.UserID)
	if err != nil {
		return nil, Errorf("start", err)
	}
	if !verified {
		return h.requestContact(ctx, req)
	}

	if _, err := h.svc.UpdateChatID.Handle(ctx, command.UpdateChatIDCommand{UserID: req.UserID, ChatID: req.ChatID}); err != nil {
		return nil, Errorf("start", err)
	}
	return Plain(presenter.FormatWelcomeBack(req.ChatID)), nil
}

// Verify asks for the contact again.
func (h *StartHandler) Verify(ctx context.Context, req Request) (*Response, error) {
	return h.requestContact(ctx, req)
}

// AwaitingContact answers text sent while a contact is expected.
func (h *StartHandler) AwaitingContact(_ context.Context, _ Request) (*Response, error) {
	return Plain(presenter.MsgRequestContact).WithMarkup(h.keyboards.ShareContact()), nil
}

func (h *StartHandler) requestContact(ctx context.Context, req Request) (*Response, error) {
	if err := h.conv.Set(ctx, req.UserID, conversation.State{Step: conversation.StepAwaitingContact}); err != nil {
		return nil, Errorf("request_contact", err)
	}
	return Plain(presenter.MsgRequestContact).WithMarkup(h.keyboards.ShareContact()), nil
}

// Contact registers or verifies the user from a shared contact.
func (h *StartHandler) Contact(ctx context.Context, req Request) (*Response, error) {
	if req.Contact == nil {
		return h.AwaitingContact(ctx, req)
	}
	if req.Contact.UserID != req.UserID {
		return Plain(presenter.MsgContactMismatch).WithMarkup(h.keyboards.ShareContact()), nil
	}

	var username string
	if req.From != nil {
		username = req.From.Username
	}
	res, err := h.svc.VerifyUser.Handle(ctx, command.VerifyUserCommand{
		UserID:   req.UserID,
		Name:     req.FirstName(),
		Username: username,
		ChatID:   req.ChatID,
		Phone:    req.Contact.PhoneNumber,
	})
	if err != nil {
		return Plain(presenter.FailureText("verifying phone")).WithMarkup(telegram.RemoveKeyboard()), Errorf("contact", err)
	}
	if err := h.conv.Clear(ctx, req.UserID); err != nil {
		h.logger.Warn("failed to clear conversation", zap.Int64("telegram_id", req.UserID), zap.Error(err))
	}

	text := presenter.MsgPhoneVerified
	if res.NewUser {
		text = presenter.MsgAccountCreated
	}
	return Plain(text).WithMarkup(telegram.RemoveKeyboard()), nil
}

// GetChatID stores the current chat id.
func (h *StartHandler) GetChatID(ctx context.Context, req Request) (*Response, error) {
	res, err := h.svc.UpdateChatID.Handle(ctx, command.UpdateChatIDCommand{UserID: req.UserID, ChatID: req.ChatID})
	if err != nil {
		return Plain(presenter.FailureText("saving chat ID")), Errorf("get_chat_id", err)
	}
	return Plain(presenter.FormatChatID(req.ChatID, res.Known)), nil
}
