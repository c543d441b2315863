package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/TayalAditya/TheAttendioBot/internal/domain/attendance"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/shared"
	"github.com/TayalAditya/TheAttendioBot/pkg/circuitbreaker"
	"github.com/TayalAditya/TheAttendioBot/pkg/retry"
)

// columnNames maps record store fields to attendance_rows columns.
var columnNames = map[attendance.Field]string{
	attendance.FieldUserID:      "user_id",
	attendance.FieldUserName:    "user_name",
	attendance.FieldCourseCode:  "course_code",
	attendance.FieldNickname:    "course_nickname",
	attendance.FieldPresent:     "present",
	attendance.FieldAbsent:      "absent",
	attendance.FieldOwnerID:     "owner_id",
	attendance.FieldLastUpdated: "last_updated",
	attendance.FieldStreak:      "streak",
	attendance.FieldPhone:       "phone_number",
	attendance.FieldChatID:      "chat_id",
}

const (
	selectRowsSQL = `SELECT id, user_id, user_name, course_code, course_nickname, present, absent,
		owner_id, last_updated, streak, phone_number, chat_id
		FROM attendance_rows ORDER BY id`

	insertRowSQL = `INSERT INTO attendance_rows (user_id, user_name, course_code, course_nickname,
		present, absent, owner_id, last_updated, streak, phone_number, chat_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	deleteRowSQL = `DELETE FROM attendance_rows WHERE id = $1`
)

type rowRecord struct {
	ID             int64  `db:"id"`
	UserID         string `db:"user_id"`
	UserName       string `db:"user_name"`
	CourseCode     string `db:"course_code"`
	CourseNickname string `db:"course_nickname"`
	Present        string `db:"present"`
	Absent         string `db:"absent"`
	OwnerID        string `db:"owner_id"`
	LastUpdated    string `db:"last_updated"`
	Streak         string `db:"streak"`
	PhoneNumber    string `db:"phone_number"`
	ChatID         string `db:"chat_id"`
}

func (r rowRecord) toRow() attendance.Row {
	return attendance.NewRow(r.ID, []string{
		r.UserID, r.UserName, r.CourseCode, r.CourseNickname, r.Present, r.Absent,
		r.OwnerID, r.LastUpdated, r.Streak, r.PhoneNumber, r.ChatID,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD STORE
// ══════════════════════════════════════════════════════════════════════════════

// RecordStoreOptions configures RecordStore.
type RecordStoreOptions struct {
	// QueryTimeout bounds each statement. Zero disables the bound.
	QueryTimeout time.Duration

	Retrier *retry.Retrier
	Breaker *circuitbreaker.CircuitBreaker
	Logger  *zap.Logger
}

// RecordStore implements attendance.RecordStore on attendance_rows.
type RecordStore struct {
	conn    *Connection
	timeout time.Duration
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewRecordStore creates a store over conn. Missing options fall back to the
// store presets of pkg/retry and pkg/circuitbreaker.
func NewRecordStore(conn *Connection, opts RecordStoreOptions) *RecordStore {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	logger := opts.Logger.Named("postgres")
	if opts.Retrier == nil {
		opts.Retrier = retry.StoreRetrier(IsTransient)
	}
	if opts.Breaker == nil {
		opts.Breaker = circuitbreaker.StoreBreaker(func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		})
	}
	return &RecordStore{
		conn:    conn,
		timeout: opts.QueryTimeout,
		retrier: opts.Retrier,
		breaker: opts.Breaker,
		logger:  logger,
	}
}

// run executes fn through the retrier and breaker. Errors for which keep
// returns true are handed back without counting against the breaker.
func (s *RecordStore) run(ctx context.Context, op string, keep func(error) bool, fn func(ctx context.Context, db *sqlx.DB) error) error {
	if s.conn.IsClosed() {
		return ErrConnectionClosed
	}
	db := s.conn.DB()

	var kept error
	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		return s.breaker.Execute(ctx, func(ctx context.Context) error {
			if s.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, s.timeout)
				defer cancel()
			}
			err := fn(ctx, db)
			if err != nil && keep != nil && keep(err) {
				kept = err
				return nil
			}
			return err
		})
	})
	if kept != nil {
		return kept
	}
	if err != nil {
		s.logger.Error("statement failed", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("postgres: %s: %w", op, err)
	}
	return nil
}

// GetAllRows implements attendance.RecordStore.
func (s *RecordStore) GetAllRows(ctx context.Context) ([]attendance.Row, error) {
	var records []rowRecord
	err := s.run(ctx, "GetAllRows", nil, func(ctx context.Context, db *sqlx.DB) error {
		records = records[:0]
		return db.SelectContext(ctx, &records, selectRowsSQL)
	})
	if err != nil {
		return nil, err
	}

	rows := make([]attendance.Row, len(records))
	for i, r := range records {
		rows[i] = r.toRow()
	}
	return rows, nil
}

// UpdateField implements attendance.RecordStore.
func (s *RecordStore) UpdateField(ctx context.Context, rowIndex int64, field attendance.Field, value string) error {
	column, ok := columnNames[field]
	if !ok {
		return fmt.Errorf("postgres: unknown column %q", field)
	}
	query := fmt.Sprintf(`UPDATE attendance_rows SET %s = $1 WHERE id = $2`, column)

	return s.run(ctx, "UpdateField", isRowNotFound, func(ctx context.Context, db *sqlx.DB) error {
		res, err := db.ExecContext(ctx, query, value, rowIndex)
		if err != nil {
			return err
		}
		return expectAffected(res, rowIndex)
	})
}

// AppendRow implements attendance.RecordStore. A second course with the same
// nickname for one user is reported as shared.ErrDuplicateNickname.
func (s *RecordStore) AppendRow(ctx context.Context, values []string) error {
	ordered := attendance.NewRow(0, values).Ordered()
	args := make([]any, len(ordered))
	for i, v := range ordered {
		args[i] = v
	}

	err := s.run(ctx, "AppendRow", IsUniqueViolation, func(ctx context.Context, db *sqlx.DB) error {
		_, err := db.ExecContext(ctx, insertRowSQL, args...)
		return err
	})
	if IsUniqueViolation(err) {
		return shared.ErrDuplicateNickname
	}
	return err
}

// DeleteRow implements attendance.RecordStore.
func (s *RecordStore) DeleteRow(ctx context.Context, rowIndex int64) error {
	return s.run(ctx, "DeleteRow", isRowNotFound, func(ctx context.Context, db *sqlx.DB) error {
		res, err := db.ExecContext(ctx, deleteRowSQL, rowIndex)
		if err != nil {
			return err
		}
		return expectAffected(res, rowIndex)
	})
}

// Ping checks connectivity for readiness probes.
func (s *RecordStore) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

func expectAffected(res sql.Result, rowIndex int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrRowNotFound, rowIndex)
	}
	return nil
}

func isRowNotFound(err error) bool {
	return errors.Is(err, ErrRowNotFound)
}
