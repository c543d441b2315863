package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE ATTENDANCE ROWS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS attendance_rows (
    id BIGSERIAL PRIMARY KEY,
    user_id TEXT NOT NULL DEFAULT '',
    user_name TEXT NOT NULL DEFAULT '',
    course_code TEXT NOT NULL DEFAULT '',
    course_nickname TEXT NOT NULL DEFAULT '',
    present TEXT NOT NULL DEFAULT '',
    absent TEXT NOT NULL DEFAULT '',
    owner_id TEXT NOT NULL DEFAULT '',
    last_updated TEXT NOT NULL DEFAULT '',
    streak TEXT NOT NULL DEFAULT '',
    phone_number TEXT NOT NULL DEFAULT '',
    chat_id TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_attendance_rows_user_id ON attendance_rows(user_id);
`

const migration001Down = `
DROP TABLE IF EXISTS attendance_rows;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: UNIQUE NICKNAME PER USER
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_rows_user_nickname
    ON attendance_rows(user_id, lower(course_nickname))
    WHERE course_nickname <> '';
`

const migration002Down = `
DROP INDEX IF EXISTS idx_attendance_rows_user_nickname;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration is a versioned schema change.
type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

// Migrations returns all migrations in version order.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Description: "create attendance_rows", Up: migration001Up, Down: migration001Down},
		{Version: 2, Description: "unique nickname per user", Up: migration002Up, Down: migration002Down},
	}
}

// MigrationStatus reports whether a migration has been applied.
type MigrationStatus struct {
	Version     int
	Description string
	Applied     bool
	AppliedAt   *time.Time
}

// Migrator applies migrations recorded in schema_migrations.
type Migrator struct {
	db         *sqlx.DB
	migrations []Migration
}

// NewMigrator creates a migrator over conn.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{db: conn.DB(), migrations: Migrations()}
}

// EnsureMigrationTable creates schema_migrations if needed.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("%w: create migration table: %v", ErrMigrationFailed, err)
	}
	return nil
}

type appliedMigration struct {
	Version   int       `db:"version"`
	AppliedAt time.Time `db:"applied_at"`
}

// GetAppliedMigrations returns applied versions and when they were applied.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	var rows []appliedMigration
	if err := m.db.SelectContext(ctx, &rows, `SELECT version, applied_at FROM schema_migrations ORDER BY version`); err != nil {
		return nil, fmt.Errorf("%w: list applied: %v", ErrMigrationFailed, err)
	}
	out := make(map[int]time.Time, len(rows))
	for _, r := range rows {
		out[r.Version] = r.AppliedAt
	}
	return out, nil
}

// Migrate applies every pending migration, each in its own transaction.
// It returns the number applied.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return 0, err
	}
	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}

	pending := make([]Migration, 0, len(m.migrations))
	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; !ok {
			pending = append(pending, mig)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })

	for i, mig := range pending {
		if err := m.apply(ctx, mig); err != nil {
			return i, err
		}
	}
	return len(pending), nil
}

func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin %03d: %v", ErrMigrationFailed, mig.Version, err)
	}
	if _, err := tx.ExecContext(ctx, mig.Up); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: apply %03d: %v", ErrMigrationFailed, mig.Version, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`,
		mig.Version, mig.Description,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: record %03d: %v", ErrMigrationFailed, mig.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit %03d: %v", ErrMigrationFailed, mig.Version, err)
	}
	return nil
}

// Rollback reverts the most recently applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}
	latest := 0
	for v := range applied {
		if v > latest {
			latest = v
		}
	}
	if latest == 0 {
		return nil
	}

	var target *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == latest {
			target = &m.migrations[i]
		}
	}
	if target == nil {
		return fmt.Errorf("%w: unknown applied version %d", ErrMigrationFailed, latest)
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin rollback: %v", ErrMigrationFailed, err)
	}
	if _, err := tx.ExecContext(ctx, target.Down); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: revert %03d: %v", ErrMigrationFailed, latest, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, latest); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: unrecord %03d: %v", ErrMigrationFailed, latest, err)
	}
	return tx.Commit()
}

// Status lists every known migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]MigrationStatus, 0, len(m.migrations))
	for _, mig := range m.migrations {
		st := MigrationStatus{Version: mig.Version, Description: mig.Description}
		if at, ok := applied[mig.Version]; ok {
			at := at
			st.Applied = true
			st.AppliedAt = &at
		}
		out = append(out, st)
	}
	return out, nil
}
