package eventhandler

import (
	"context"
	"fmt"
	"html"

	"go.uber.org/zap"

	"github.com/TayalAditya/TheAttendioBot/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON USER VERIFIED HANDLER
// Tells the admin that someone shared their contact.
// ═══════════════════════════════════════════════════════════════════════════

// OnUserVerifiedHandler notifies the admin about verified users.
type OnUserVerifiedHandler struct {
	notifier AdminNotifier
	logger   *zap.Logger
}

// NewOnUserVerifiedHandler creates a new OnUserVerifiedHandler.
func NewOnUserVerifiedHandler(notifier AdminNotifier, logger *zap.Logger) *OnUserVerifiedHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OnUserVerifiedHandler{notifier: notifier, logger: logger.With(zap.String("handler", "on_user_verified"))}
}

// EventType implements Handler.
func (h *OnUserVerifiedHandler) EventType() shared.EventType {
	return shared.EventUserVerified
}

// Handle implements shared.EventHandler.
func (h *OnUserVerifiedHandler) Handle(event shared.Event) error {
	e, ok := event.(shared.UserVerifiedEvent)
	if !ok {
		h.logger.Warn("unexpected event", zap.String("event_type", string(event.EventType())))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()
	if err := h.notifier.NotifyAdmin(ctx, FormatUserVerified(e)); err != nil {
		return fmt.Errorf("on_user_verified: %w", err)
	}
	return nil
}

// FormatUserVerified renders the admin notice for e.
func FormatUserVerified(e shared.UserVerifiedEvent) string {
	return fmt.Sprintf("✅ New User Verified:\n\n"+
		"👤 User: %s (ID:%d)\n"+
		"⏰ Time: %s\n\n"+
		"📞 Phone: %s\n",
		userMention(e.UserID, e.Name), e.UserID, stamp(e.OccurredAt()), html.EscapeString(e.Phone))
}
