package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/TayalAditya/TheAttendioBot/internal/application/command"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/conversation"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/shared"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/external/telegram"
	"github.com/TayalAditya/TheAttendioBot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLER
// /block, /unblock, /reply, /announce and /logs. The router only lets the
// configured admin reach these.
// ══════════════════════════════════════════════════════════════════════════════

// RateResetter forgets the recent commands of a user.
type RateResetter interface {
	Reset(ctx context.Context, userID int64) error
}

// LogSender delivers recent logs to the admin chat.
type LogSender interface {
	Send(ctx context.Context, hours int) (int, error)
}

// AdminHandler serves the admin tools.
type AdminHandler struct {
	svc       Services
	conv      conversation.Store
	messenger Messenger
	rate      RateResetter
	logs      LogSender
	logger    *zap.Logger

	defaultLogHours int
}

// AdminConfig holds the optional collaborators of AdminHandler.
type AdminConfig struct {
	// Rate is reset on /unblock. May be nil.
	Rate RateResetter

	// Logs serves /logs. May be nil.
	Logs LogSender

	// DefaultLogHours is used by /logs without arguments.
	DefaultLogHours int

	Logger *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(svc Services, conv conversation.Store, messenger Messenger, cfg AdminConfig) *AdminHandler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.DefaultLogHours <= 0 {
		cfg.DefaultLogHours = 24
	}
	return &AdminHandler{
		svc:             svc,
		conv:            conv,
		messenger:       messenger,
		rate:            cfg.Rate,
		logs:            cfg.Logs,
		logger:          cfg.Logger,
		defaultLogHours: cfg.DefaultLogHours,
	}
}

// parseUserID reads the leading user id of args.
func parseUserID(args string) (int64, string, bool) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return 0, "", false
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(args), fields[0]))
	return id, rest, true
}

// notify sends a courtesy message and ignores delivery failures.
func (h *AdminHandler) notify(ctx context.Context, userID int64, text string) {
	if _, err := h.messenger.SendText(ctx, userID, text); err != nil {
		h.logger.Debug("failed to notify user", zap.Int64("telegram_id", userID), zap.Error(err))
	}
}

// Block bars a user by id.
func (h *AdminHandler) Block(ctx context.Context, req Request) (*Response, error) {
	userID, _, ok := parseUserID(req.Args)
	if !ok {
		return HTML(presenter.FormatUsage("/block [user_id]")), nil
	}

	err := h.svc.BlockUser.Handle(ctx, command.BlockUserCommand{UserID: userID, Reason: "blocked by admin"})
	if err != nil {
		return nil, Errorf("block", err)
	}
	h.notify(ctx, userID, presenter.MsgBlockedNotice)
	return Plain(fmt.Sprintf("User %d has been blocked.", userID)), nil
}

// Unblock lifts a block and clears the user's rate window.
func (h *AdminHandler) Unblock(ctx context.Context, req Request) (*Response, error) {
	userID, _, ok := parseUserID(req.Args)
	if !ok {
		return HTML(presenter.FormatUsage("/unblock [user_id]")), nil
	}

	blocked, err := h.svc.BlockUser.IsBlocked(ctx, userID)
	if err != nil {
		return nil, Errorf("unblock", err)
	}
	if !blocked {
		return Plain(fmt.Sprintf("User %d is not blocked.", userID)), nil
	}
	if err := h.svc.BlockUser.Unblock(ctx, userID); err != nil {
		return nil, Errorf("unblock", err)
	}
	if h.rate != nil {
		if err := h.rate.Reset(ctx, userID); err != nil {
			h.logger.Warn("failed to reset rate window", zap.Int64("telegram_id", userID), zap.Error(err))
		}
	}
	h.notify(ctx, userID, presenter.MsgUnblockedNotice)
	return Plain(fmt.Sprintf("User %d has been unblocked.", userID)), nil
}

// Reply sends an admin message to a user.
func (h *AdminHandler) Reply(ctx context.Context, req Request) (*Response, error) {
	fields := strings.Fields(req.Args)
	if len(fields) < 2 {
		return HTML(presenter.FormatUsage("/reply [user_id] [message]")), nil
	}
	userID, message, ok := parseUserID(req.Args)
	if !ok {
		return Plain(presenter.MsgInvalidUserID), nil
	}

	if _, err := h.svc.Users.GetUser(ctx, userID); shared.IsNotFound(err) {
		h.notify(ctx, req.ChatID, fmt.Sprintf(
			"⚠️ Warning: User %d doesn't exist in database, but trying to send message anyway.", userID))
	}

	if _, err := h.messenger.SendHTML(ctx, userID, presenter.FormatAdminReply(message)); err != nil {
		if telegram.IsChatNotFound(err) || telegram.IsBotBlocked(err) {
			return Plain(fmt.Sprintf("❌ Error: User %d hasn't interacted with the bot or has blocked it.", userID)), nil
		}
		return Plain("❌ Error sending reply: " + err.Error()), Errorf("reply", err)
	}
	return Plain(fmt.Sprintf("✅ Reply sent to user %d.", userID)), nil
}

// Announce asks for the broadcast text.
func (h *AdminHandler) Announce(ctx context.Context, req Request) (*Response, error) {
	if err := h.conv.Set(ctx, req.UserID, conversation.State{Step: conversation.StepAwaitingAnnouncement}); err != nil {
		return nil, Errorf("announce", err)
	}
	return Plain(presenter.MsgAnnouncePrompt), nil
}

// SendAnnouncement broadcasts the text to every known chat.
func (h *AdminHandler) SendAnnouncement(ctx context.Context, req Request) (*Response, error) {
	if err := h.conv.Clear(ctx, req.UserID); err != nil {
		h.logger.Warn("failed to clear conversation", zap.Int64("telegram_id", req.UserID), zap.Error(err))
	}

	recipients, err := h.svc.Users.Recipients(ctx)
	if err != nil {
		return Plain("❌ Error sending announcement: " + err.Error()), Errorf("announce", err)
	}
	h.notify(ctx, req.ChatID, fmt.Sprintf("Sending announcement to %d users...", len(recipients)))

	text := presenter.FormatAnnouncement(req.Args)
	var delivered, failed int
	for _, r := range recipients {
		if _, err := h.messenger.SendHTML(ctx, r.ChatID, text); err != nil {
			failed++
			h.logger.Debug("announcement not delivered", zap.Int64("chat_id", r.ChatID), zap.Error(err))
			continue
		}
		delivered++
	}

	h.logger.Info("announcement sent",
		zap.Int("recipients", len(recipients)),
		zap.Int("delivered", delivered),
		zap.Int("failed", failed),
	)
	return HTML(presenter.FormatAnnouncementStats(len(recipients), delivered, failed)), nil
}

// Logs sends the recent log lines to the admin.
func (h *AdminHandler) Logs(ctx context.Context, req Request) (*Response, error) {
	if h.logs == nil {
		return Plain("Log capture is not enabled."), nil
	}
	hours := h.defaultLogHours
	if fields := strings.Fields(req.Args); len(fields) > 0 {
		if n, err := strconv.Atoi(fields[0]); err == nil && n > 0 {
			hours = n
		}
	}

	h.notify(ctx, req.ChatID, fmt.Sprintf("Fetching logs from the last %d hours...", hours))
	if _, err := h.logs.Send(ctx, hours); err != nil {
		return Plain("Error fetching logs: " + err.Error()), Errorf("logs", err)
	}
	return nil, nil
}
