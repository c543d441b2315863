package messaging

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TayalAditya/TheAttendioBot/internal/domain/shared"
)

type recordingObserver struct {
	mu     sync.Mutex
	errors int
	total  int
}

func (o *recordingObserver) ObserveEvent(_ string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.total++
	if err != nil {
		o.errors++
	}
}

func TestInMemoryEventBus_SyncDispatch(t *testing.T) {
	obs := &recordingObserver{}
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{Observer: obs})

	var typed, all int
	require.NoError(t, bus.Subscribe(shared.EventCourseAdded, func(shared.Event) error { typed++; return nil }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { all++; return errors.New("ignored") }))

	require.NoError(t, bus.Publish(shared.NewCourseAddedEvent(1, "1-DSA", "DSA")))
	require.NoError(t, bus.Publish(shared.NewCourseDeletedEvent(1, "1-DSA", "DSA")))

	assert.Equal(t, 1, typed)
	assert.Equal(t, 2, all)
	assert.Equal(t, 3, obs.total)
	assert.Equal(t, 2, obs.errors)
}

func TestInMemoryEventBus_AsyncWaitsOnClose(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())

	var n atomic.Int32
	require.NoError(t, bus.Subscribe(shared.EventAttendanceMarked, func(shared.Event) error {
		time.Sleep(5 * time.Millisecond)
		n.Add(1)
		return nil
	}))
	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(shared.NewAttendanceMarkedEvent(1, "1-DSA", true, i, 100)))
	}
	require.NoError(t, bus.Close())

	assert.Equal(t, int32(5), n.Load())
	assert.ErrorIs(t, bus.Publish(shared.NewAttendanceMarkedEvent(1, "1-DSA", true, 1, 100)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventAttendanceMarked, func(shared.Event) error { return nil }), ErrEventBusClosed)
}

func TestInMemoryEventBus_RecoversPanics(t *testing.T) {
	obs := &recordingObserver{}
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{Observer: obs})
	require.NoError(t, bus.Subscribe(shared.EventUserBlocked, func(shared.Event) error { panic("boom") }))

	assert.NotPanics(t, func() {
		_ = bus.Publish(shared.NewUserBlockedEvent(1, "A", "a", "spam", true))
	})
	assert.Equal(t, 1, obs.errors)
}

func TestInMemoryEventBus_RejectsNil(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	assert.Error(t, bus.Subscribe(shared.EventUserBlocked, nil))
	assert.Error(t, bus.SubscribeAll(nil))
	assert.Error(t, bus.Publish(nil))
}
