package memory

import (
	"context"
	"sync"
	"time"

	"github.com/TayalAditya/TheAttendioBot/internal/domain/conversation"
)

// ══════════════════════════════════════════════════════════════════════════════
// BLOCK LIST
// ══════════════════════════════════════════════════════════════════════════════

// BlockList is a process-local set of blocked users.
type BlockList struct {
	mu  sync.RWMutex
	ids map[int64]struct{}
}

// NewBlockList creates an empty BlockList.
func NewBlockList() *BlockList {
	return &BlockList{ids: make(map[int64]struct{})}
}

// Block implements attendance.BlockList.
func (b *BlockList) Block(_ context.Context, userID int64) error {
	b.mu.Lock()
	b.ids[userID] = struct{}{}
	b.mu.Unlock()
	return nil
}

// Unblock implements attendance.BlockList.
func (b *BlockList) Unblock(_ context.Context, userID int64) error {
	b.mu.Lock()
	delete(b.ids, userID)
	b.mu.Unlock()
	return nil
}

// IsBlocked implements attendance.BlockList.
func (b *BlockList) IsBlocked(_ context.Context, userID int64) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.ids[userID]
	return ok, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CONVERSATION STORE
// ══════════════════════════════════════════════════════════════════════════════

type stateEntry struct {
	state     conversation.State
	expiresAt time.Time
}

// ConversationStore keeps dialog state with a TTL. Expired entries are
// dropped lazily on read.
type ConversationStore struct {
	mu      sync.Mutex
	entries map[int64]stateEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewConversationStore creates a store. ttl <= 0 uses conversation.DefaultTTL.
func NewConversationStore(ttl time.Duration) *ConversationStore {
	if ttl <= 0 {
		ttl = conversation.DefaultTTL
	}
	return &ConversationStore{
		entries: make(map[int64]stateEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get implements conversation.Store.
func (s *ConversationStore) Get(_ context.Context, userID int64) (conversation.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok {
		return conversation.State{}, nil
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, userID)
		return conversation.State{}, nil
	}
	return e.state, nil
}

// Set implements conversation.Store.
func (s *ConversationStore) Set(_ context.Context, userID int64, st conversation.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.Step == conversation.StepNone {
		delete(s.entries, userID)
		return nil
	}
	s.entries[userID] = stateEntry{state: st, expiresAt: s.now().Add(s.ttl)}
	return nil
}

// Clear implements conversation.Store.
func (s *ConversationStore) Clear(_ context.Context, userID int64) error {
	s.mu.Lock()
	delete(s.entries, userID)
	s.mu.Unlock()
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RATE WINDOW
// ══════════════════════════════════════════════════════════════════════════════

// RateWindow is a per-user sliding log of command timestamps.
type RateWindow struct {
	mu      sync.Mutex
	period  time.Duration
	history map[int64][]time.Time
}

// NewRateWindow creates a window of the given length.
func NewRateWindow(period time.Duration) *RateWindow {
	return &RateWindow{period: period, history: make(map[int64][]time.Time)}
}

// Hit records a command at now and returns how many fall inside the window.
func (w *RateWindow) Hit(_ context.Context, userID int64, now time.Time) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	kept := w.history[userID][:0]
	for _, ts := range w.history[userID] {
		if now.Sub(ts) < w.period {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	w.history[userID] = kept
	return len(kept), nil
}

// Reset forgets the user's history.
func (w *RateWindow) Reset(_ context.Context, userID int64) error {
	w.mu.Lock()
	delete(w.history, userID)
	w.mu.Unlock()
	return nil
}
