// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/TayalAditya/TheAttendioBot/internal/domain/attendance"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/shared"
	"github.com/TayalAditya/TheAttendioBot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// Shared by every command handler.
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies groups the collaborators of command handlers.
type Dependencies struct {
	// Store is the record store (required).
	Store attendance.RecordStore

	// Locker serializes read-modify-write per course or per user (required).
	Locker attendance.Locker

	// Publisher receives domain events. Defaults to shared.NopPublisher.
	Publisher shared.EventPublisher

	// Logger defaults to zap.NewNop().
	Logger *zap.Logger

	// Location is the timezone of Last Updated cells. Defaults to timeutil.Location().
	Location *time.Location

	// Clock defaults to time.Now.
	Clock func() time.Time
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Publisher == nil {
		d.Publisher = shared.NopPublisher{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Location == nil {
		d.Location = timeutil.Location()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return d
}

func (d Dependencies) now() time.Time {
	return d.Clock().In(d.Location)
}

func (d Dependencies) stamp(t time.Time) string {
	return shared.FormatTimestamp(t, d.Location)
}

// publish never fails the command; errors are logged.
func (d Dependencies) publish(e shared.Event) {
	if err := d.Publisher.Publish(e); err != nil {
		d.Logger.Warn("publish event failed", zap.String("event_type", string(e.EventType())), zap.Error(err))
	}
}

// load performs a full scan and reports coerced counters.
func (d Dependencies) load(ctx context.Context) (attendance.Table, error) {
	return attendance.LoadTable(ctx, d.Store)
}

func (d Dependencies) warnMalformed(cr attendance.CourseRow) {
	if len(cr.Malformed) == 0 {
		return
	}
	fields := make([]string, len(cr.Malformed))
	for i, f := range cr.Malformed {
		fields[i] = string(f)
	}
	d.Logger.Warn("malformed counters coerced to zero",
		zap.String("course_code", cr.Course.Code),
		zap.Int64("row", cr.Row.Index),
		zap.Strings("fields", fields),
	)
}

// cell is one pending field update.
type cell struct {
	field attendance.Field
	value string
}

// write applies cells in order. A failure midway leaves earlier cells written.
func (d Dependencies) write(ctx context.Context, op string, rowIndex int64, cells ...cell) error {
	for _, c := range cells {
		if err := d.Store.UpdateField(ctx, rowIndex, c.field, c.value); err != nil {
			return shared.StoreError(op, err)
		}
	}
	return nil
}

func (d Dependencies) lock(ctx context.Context, key string) (func(), error) {
	unlock, err := d.Locker.Lock(ctx, key)
	if err != nil {
		return nil, shared.WrapError("attendance", "Lock", shared.ErrLockUnavailable, "could not acquire lock", err)
	}
	return unlock, nil
}
