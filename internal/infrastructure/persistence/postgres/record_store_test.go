package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TayalAditya/TheAttendioBot/internal/domain/attendance"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/shared"
	"github.com/TayalAditya/TheAttendioBot/pkg/circuitbreaker"
	"github.com/TayalAditya/TheAttendioBot/pkg/retry"
)

var rowColumns = []string{"id", "user_id", "user_name", "course_code", "course_nickname", "present", "absent",
	"owner_id", "last_updated", "streak", "phone_number", "chat_id"}

func newMock(t *testing.T) (*Connection, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	conn := NewConnectionFromDB(sqlx.NewDb(db, "sqlmock"))
	return conn, mock, func() {
		db.Close()
	}
}

func singleShot() RecordStoreOptions {
	return RecordStoreOptions{Retrier: retry.New(retry.WithMaxAttempts(1))}
}

func TestRecordStore_GetAllRows(t *testing.T) {
	conn, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewRecordStore(conn, singleShot())

	rows := sqlmock.NewRows(rowColumns).
		AddRow(3, "42", "Asha", "42-DSA", "DSA", "4", "1", "42", "2024-10-14 09:30:00", "2", "+91", "4242").
		AddRow(7, "43", "Ravi", "", "", "", "", "43", "", "", "", "")
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_rows ORDER BY id")).WillReturnRows(rows)

	got, err := store.GetAllRows(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(3), got[0].Index)
	assert.Equal(t, "DSA", got[0].Get(attendance.FieldNickname))
	assert.Equal(t, "4242", got[0].Get(attendance.FieldChatID))
	assert.True(t, got[0].IsCourseRow())
	assert.False(t, got[1].IsCourseRow())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStore_UpdateField(t *testing.T) {
	conn, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewRecordStore(conn, singleShot())

	mock.ExpectExec(regexp.QuoteMeta("UPDATE attendance_rows SET present = $1 WHERE id = $2")).
		WithArgs("5", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.UpdateField(context.Background(), 3, attendance.FieldPresent, "5"))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE attendance_rows SET chat_id = $1 WHERE id = $2")).
		WithArgs("1", int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := store.UpdateField(context.Background(), 99, attendance.FieldChatID, "1")
	assert.ErrorIs(t, err, ErrRowNotFound)

	err = store.UpdateField(context.Background(), 3, attendance.Field("Bogus"), "1")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStore_AppendRow(t *testing.T) {
	conn, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewRecordStore(conn, singleShot())

	values := attendance.EncodeCourse(attendance.User{ID: 42, Name: "Asha"}, attendance.Course{Code: "42-DSA", Nickname: "DSA"})
	mock.ExpectExec("INSERT INTO attendance_rows").
		WithArgs("42", "Asha", "42-DSA", "DSA", "0", "0", "42", "", "0", "", "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, store.AppendRow(context.Background(), values))

	mock.ExpectExec("INSERT INTO attendance_rows").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	err := store.AppendRow(context.Background(), values)
	assert.ErrorIs(t, err, shared.ErrDuplicateNickname)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStore_DeleteRow(t *testing.T) {
	conn, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewRecordStore(conn, singleShot())

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM attendance_rows WHERE id = $1")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.DeleteRow(context.Background(), 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStore_RetriesTransientErrors(t *testing.T) {
	conn, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewRecordStore(conn, RecordStoreOptions{
		Retrier: retry.New(retry.WithMaxAttempts(3), retry.WithInitialDelay(time.Millisecond), retry.WithRetryIf(IsTransient)),
	})

	mock.ExpectExec("DELETE FROM attendance_rows").WillReturnError(&pgconn.PgError{Code: "40001"})
	mock.ExpectExec("DELETE FROM attendance_rows").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.DeleteRow(context.Background(), 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStore_BreakerOpens(t *testing.T) {
	conn, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewRecordStore(conn, RecordStoreOptions{
		Retrier: retry.New(retry.WithMaxAttempts(1)),
		Breaker: circuitbreaker.New("test", circuitbreaker.WithFailureThreshold(1), circuitbreaker.WithTimeout(time.Hour)),
	})

	mock.ExpectQuery("FROM attendance_rows").WillReturnError(errors.New("connection reset"))
	_, err := store.GetAllRows(context.Background())
	require.Error(t, err)

	_, err = store.GetAllRows(context.Background())
	assert.True(t, circuitbreaker.IsRejection(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStore_ClosedConnection(t *testing.T) {
	conn, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewRecordStore(conn, singleShot())

	mock.ExpectClose()
	require.NoError(t, conn.Close())
	_, err := store.GetAllRows(context.Background())
	assert.ErrorIs(t, err, ErrConnectionClosed)
	assert.ErrorIs(t, store.Ping(context.Background()), ErrConnectionClosed)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&pgconn.PgError{Code: "40P01"}))
	assert.True(t, IsTransient(&pgconn.PgError{Code: "08006"}))
	assert.False(t, IsTransient(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("syntax error")))
}

func TestMigrator_AppliesPending(t *testing.T) {
	conn, mock, cleanup := newMock(t)
	defer cleanup()
	m := NewMigrator(conn)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version, applied_at FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}).AddRow(1, time.Now()))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_rows_user_nickname")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations")).
		WithArgs(2, "unique nickname per user").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := m.Migrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrator_FailureRollsBack(t *testing.T) {
	conn, mock, cleanup := newMock(t)
	defer cleanup()
	m := NewMigrator(conn)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version, applied_at FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS attendance_rows").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	n, err := m.Migrate(context.Background())
	assert.ErrorIs(t, err, ErrMigrationFailed)
	assert.Equal(t, 0, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
