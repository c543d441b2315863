package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/TayalAditya/TheAttendioBot/internal/domain/conversation"
)

// ══════════════════════════════════════════════════════════════════════════════
// BLOCK LIST
// ══════════════════════════════════════════════════════════════════════════════

// BlockList stores blocked user ids in a Redis set.
type BlockList struct {
	client *Client
}

// NewBlockList creates a BlockList.
func NewBlockList(client *Client) *BlockList {
	return &BlockList{client: client}
}

// Block implements attendance.BlockList.
func (b *BlockList) Block(ctx context.Context, userID int64) error {
	return b.client.rdb.SAdd(ctx, b.client.blockedKey(), strconv.FormatInt(userID, 10)).Err()
}

// Unblock implements attendance.BlockList.
func (b *BlockList) Unblock(ctx context.Context, userID int64) error {
	return b.client.rdb.SRem(ctx, b.client.blockedKey(), strconv.FormatInt(userID, 10)).Err()
}

// IsBlocked implements attendance.BlockList.
func (b *BlockList) IsBlocked(ctx context.Context, userID int64) (bool, error) {
	return b.client.rdb.SIsMember(ctx, b.client.blockedKey(), strconv.FormatInt(userID, 10)).Result()
}

// ══════════════════════════════════════════════════════════════════════════════
// CONVERSATION STORE
// ══════════════════════════════════════════════════════════════════════════════

// ConversationStore keeps dialog state as JSON with an expiry.
type ConversationStore struct {
	client *Client
	ttl    time.Duration
}

// NewConversationStore creates a store. ttl <= 0 uses conversation.DefaultTTL.
func NewConversationStore(client *Client, ttl time.Duration) *ConversationStore {
	if ttl <= 0 {
		ttl = conversation.DefaultTTL
	}
	return &ConversationStore{client: client, ttl: ttl}
}

// Get implements conversation.Store.
func (s *ConversationStore) Get(ctx context.Context, userID int64) (conversation.State, error) {
	data, err := s.client.rdb.Get(ctx, s.client.conversationKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return conversation.State{}, nil
	}
	if err != nil {
		return conversation.State{}, err
	}

	var st conversation.State
	if err := json.Unmarshal(data, &st); err != nil {
		return conversation.State{}, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return st, nil
}

// Set implements conversation.Store. StepNone clears the state.
func (s *ConversationStore) Set(ctx context.Context, userID int64, st conversation.State) error {
	if st.Step == conversation.StepNone {
		return s.Clear(ctx, userID)
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return s.client.rdb.Set(ctx, s.client.conversationKey(userID), data, s.ttl).Err()
}

// Clear implements conversation.Store.
func (s *ConversationStore) Clear(ctx context.Context, userID int64) error {
	return s.client.rdb.Del(ctx, s.client.conversationKey(userID)).Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// RATE WINDOW
// ══════════════════════════════════════════════════════════════════════════════

// RateWindow is a sliding log of command timestamps in a sorted set.
type RateWindow struct {
	client *Client
	period time.Duration
}

// NewRateWindow creates a window of the given length.
func NewRateWindow(client *Client, period time.Duration) *RateWindow {
	return &RateWindow{client: client, period: period}
}

// Hit records a command at now and returns how many fall inside the window.
func (w *RateWindow) Hit(ctx context.Context, userID int64, now time.Time) (int, error) {
	key := w.client.rateKey(userID)
	nowMs := now.UnixMilli()
	cutoff := nowMs - w.period.Milliseconds()

	var card *redis.IntCmd
	_, err := w.client.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
		p.ZAdd(ctx, key, redis.Z{Score: float64(nowMs), Member: strconv.FormatInt(nowMs, 10) + ":" + uuid.NewString()})
		card = p.ZCard(ctx, key)
		p.PExpire(ctx, key, w.period)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(card.Val()), nil
}

// Reset forgets the user's history.
func (w *RateWindow) Reset(ctx context.Context, userID int64) error {
	return w.client.rdb.Del(ctx, w.client.rateKey(userID)).Err()
}
