// Package memory provides in-process implementations of the persistence
// contracts. They back local development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/TayalAditya/TheAttendioBot/internal/domain/attendance"
)

// RecordStore is an in-memory attendance table. Row indexes are assigned
// from a counter and never reused.
type RecordStore struct {
	mu     sync.RWMutex
	rows   []attendance.Row
	nextID int64

	// failure injected by tests
	err error
}

// NewRecordStore returns an empty table.
func NewRecordStore() *RecordStore {
	return &RecordStore{nextID: 1}
}

// Seed appends rows given as column-ordered values.
func (s *RecordStore) Seed(rows ...[]string) {
	for _, r := range rows {
		_ = s.AppendRow(context.Background(), r)
	}
}

// FailWith makes every subsequent call return err. nil restores normal behaviour.
func (s *RecordStore) FailWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// GetAllRows implements attendance.RecordStore.
func (s *RecordStore) GetAllRows(ctx context.Context) ([]attendance.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}

	out := make([]attendance.Row, len(s.rows))
	for i, r := range s.rows {
		out[i] = attendance.NewRow(r.Index, r.Ordered())
	}
	return out, nil
}

// UpdateField implements attendance.RecordStore.
func (s *RecordStore) UpdateField(ctx context.Context, rowIndex int64, field attendance.Field, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !attendance.IsColumn(field) {
		return fmt.Errorf("memory: unknown column %q", field)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}

	i, ok := s.find(rowIndex)
	if !ok {
		return fmt.Errorf("memory: row %d not found", rowIndex)
	}
	s.rows[i].Values[field] = value
	return nil
}

// AppendRow implements attendance.RecordStore.
func (s *RecordStore) AppendRow(ctx context.Context, values []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}

	s.rows = append(s.rows, attendance.NewRow(s.nextID, values))
	s.nextID++
	return nil
}

// DeleteRow implements attendance.RecordStore.
func (s *RecordStore) DeleteRow(ctx context.Context, rowIndex int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}

	i, ok := s.find(rowIndex)
	if !ok {
		return fmt.Errorf("memory: row %d not found", rowIndex)
	}
	s.rows = append(s.rows[:i], s.rows[i+1:]...)
	return nil
}

// Ping reports the store as always reachable unless a failure is injected.
func (s *RecordStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Len returns the number of rows.
func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

func (s *RecordStore) find(rowIndex int64) (int, bool) {
	for i, r := range s.rows {
		if r.Index == rowIndex {
			return i, true
		}
	}
	return 0, false
}
