package eventhandler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TayalAditya/TheAttendioBot/internal/domain/shared"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/messaging"
)

type fakeNotifier struct {
	sent []string
	err  error
}

func (n *fakeNotifier) NotifyAdmin(_ context.Context, text string) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, text)
	return nil
}

func TestOnUserVerified(t *testing.T) {
	n := &fakeNotifier{}
	h := NewOnUserVerifiedHandler(n, nil)

	require.NoError(t, h.Handle(shared.NewUserVerifiedEvent(42, "Asha <3", "asha", "+91999", true)))
	require.Len(t, n.sent, 1)
	assert.Contains(t, n.sent[0], "✅ New User Verified:")
	assert.Contains(t, n.sent[0], `<a href="tg://user?id=42">Asha &lt;3</a> (ID:42)`)
	assert.Contains(t, n.sent[0], "📞 Phone: +91999")

	// Other event types are ignored.
	require.NoError(t, h.Handle(shared.NewCourseAddedEvent(1, "1-DSA", "DSA")))
	assert.Len(t, n.sent, 1)
}

func TestOnUserBlocked_OnlyAutomatic(t *testing.T) {
	n := &fakeNotifier{}
	h := NewOnUserBlockedHandler(n, nil)

	require.NoError(t, h.Handle(shared.NewUserBlockedEvent(7, "Ravi", "ravi", "admin", false)))
	assert.Empty(t, n.sent)

	require.NoError(t, h.Handle(shared.NewUserBlockedEvent(7, "Ravi", "ravi", "Commands in last minute: 16", true)))
	require.Len(t, n.sent, 1)
	assert.Contains(t, n.sent[0], "🚫 <b>User Auto-Blocked:</b>")
	assert.Contains(t, n.sent[0], "📊 Commands in last minute: 16")
	assert.Contains(t, n.sent[0], "<code>/unblock 7</code>")
}

func TestHandlers_PropagateDeliveryErrors(t *testing.T) {
	n := &fakeNotifier{err: errors.New("telegram down")}
	err := NewOnUserVerifiedHandler(n, nil).Handle(shared.NewUserVerifiedEvent(1, "A", "", "1", false))
	assert.ErrorContains(t, err, "telegram down")
}

func TestSubscribe(t *testing.T) {
	n := &fakeNotifier{}
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{})
	require.NoError(t, Subscribe(bus, NewOnUserVerifiedHandler(n, nil), NewOnUserBlockedHandler(n, nil)))

	require.NoError(t, bus.Publish(shared.NewUserVerifiedEvent(1, "A", "", "1", true)))
	require.NoError(t, bus.Publish(shared.NewUserBlockedEvent(1, "A", "", "spam", true)))
	assert.Len(t, n.sent, 2)
}
