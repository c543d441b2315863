// Package eventhandler contains domain event subscribers.
package eventhandler

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/TayalAditya/TheAttendioBot/internal/domain/shared"
	"github.com/TayalAditya/TheAttendioBot/pkg/timeutil"
)

// AdminNotifier delivers an HTML message to the bot administrator.
type AdminNotifier interface {
	NotifyAdmin(ctx context.Context, html string) error
}

// Subscribe wires every handler of this package to bus.
func Subscribe(bus shared.EventSubscriber, handlers ...Handler) error {
	for _, h := range handlers {
		if err := bus.Subscribe(h.EventType(), h.Handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", h.EventType(), err)
		}
	}
	return nil
}

// Handler is a typed subscriber.
type Handler interface {
	EventType() shared.EventType
	Handle(event shared.Event) error
}

// deliveryTimeout bounds a single admin notification.
const deliveryTimeout = 15 * time.Second

func userMention(id int64, name string) string {
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, id, html.EscapeString(name))
}

func stamp(t time.Time) string {
	return timeutil.FormatTimestampStr(t)
}
