package eventhandler

import (
	"context"
	"fmt"
	"html"

	"go.uber.org/zap"

	"github.com/TayalAditya/TheAttendioBot/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON USER BLOCKED HANDLER
// Reports automatic blocks to the admin. Manual blocks are already known to them.
// ═══════════════════════════════════════════════════════════════════════════

// OnUserBlockedHandler notifies the admin about rate-limit blocks.
type OnUserBlockedHandler struct {
	notifier AdminNotifier
	logger   *zap.Logger
}

// NewOnUserBlockedHandler creates a new OnUserBlockedHandler.
func NewOnUserBlockedHandler(notifier AdminNotifier, logger *zap.Logger) *OnUserBlockedHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OnUserBlockedHandler{notifier: notifier, logger: logger.With(zap.String("handler", "on_user_blocked"))}
}

// EventType implements Handler.
func (h *OnUserBlockedHandler) EventType() shared.EventType {
	return shared.EventUserBlocked
}

// Handle implements shared.EventHandler.
func (h *OnUserBlockedHandler) Handle(event shared.Event) error {
	e, ok := event.(shared.UserBlockedEvent)
	if !ok {
		h.logger.Warn("unexpected event", zap.String("event_type", string(event.EventType())))
		return nil
	}
	if !e.Automatic {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()
	if err := h.notifier.NotifyAdmin(ctx, FormatAutoBlocked(e)); err != nil {
		return fmt.Errorf("on_user_blocked: %w", err)
	}
	return nil
}

// FormatAutoBlocked renders the admin notice for an automatic block.
func FormatAutoBlocked(e shared.UserBlockedEvent) string {
	return fmt.Sprintf("🚫 <b>User Auto-Blocked:</b>\n\n"+
		"👤 User: %s (ID: %d)\n"+
		"📊 %s\n"+
		"⏰ Time: %s\n\n"+
		"This user was automatically blocked for sending too many commands.\n"+
		"Use <code>/unblock %d</code> to unblock this user if needed.",
		userMention(e.UserID, e.Name), e.UserID, html.EscapeString(e.Reason), stamp(e.OccurredAt()), e.UserID)
}
