package attendance

import (
	"context"
	"fmt"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Contracts for the persistent record store and the per-course lock.
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// RecordStore is a row-oriented table with last-writer-wins semantics.
// Every failure is reported as shared.ErrStoreUnavailable.
type RecordStore interface {
	// GetAllRows returns every row in storage order.
	GetAllRows(ctx context.Context) ([]Row, error)

	// UpdateField overwrites a single cell.
	UpdateField(ctx context.Context, rowIndex int64, field Field, value string) error

	// AppendRow appends values in Columns order.
	AppendRow(ctx context.Context, values []string) error

	// DeleteRow removes a row.
	DeleteRow(ctx context.Context, rowIndex int64) error
}

// Locker serializes read-modify-write sequences on one key.
type Locker interface {
	// Lock blocks until the key is held or ctx is done. The returned func releases it.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// CourseLockKey is the lock key of a (user, course) pair.
func CourseLockKey(userID int64, courseCode string) string {
	return fmt.Sprintf("course:%d:%s", userID, courseCode)
}

// UserLockKey is the lock key of a user's course list (add/delete course).
func UserLockKey(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// BlockList holds users barred from the bot.
type BlockList interface {
	Block(ctx context.Context, userID int64) error
	Unblock(ctx context.Context, userID int64) error
	IsBlocked(ctx context.Context, userID int64) (bool, error)
}
