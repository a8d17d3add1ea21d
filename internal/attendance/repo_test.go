package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studentattendance/internal/apperr"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(sqlx.NewDb(db, "pgx")), mock
}

func TestRepositoryInsertRecordDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`INSERT INTO attendance_records`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "attendance_records_session_student_key"})

	_, err := repo.InsertRecord(context.Background(), Record{
		SessionID: uuid.NewString(),
		StudentID: uuid.NewString(),
		Status:    Present,
		Method:    MethodManual,
	})
	assert.Equal(t, ErrAlreadyCheckedIn, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryInsertRecordOtherFailure(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`INSERT INTO attendance_records`).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "attendance_records_session_id_fkey"})

	_, err := repo.InsertRecord(context.Background(), Record{SessionID: uuid.NewString(), StudentID: uuid.NewString()})
	require.Error(t, err)
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "inserting attendance record")
}

func TestRepositoryTransitionIsConditional(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.NewString()
	at := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .+ FROM sessions s WHERE s.id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(id, "scheduled"))
	mock.ExpectQuery(`UPDATE sessions s SET status = \$1, .+ WHERE s.id = \$6 AND s.status IN \(\$7, \$8\) RETURNING`).
		WithArgs("active", "active", at, "active", at, id, "scheduled", "paused").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "actual_start"}).AddRow(id, "active", at))

	s, err := repo.Transition(context.Background(), id, []SessionStatus{SessionScheduled, "paused"}, SessionActive, at)
	require.NoError(t, err)
	assert.Equal(t, SessionActive, s.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryTransitionLostRace(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.NewString()

	mock.ExpectQuery(`SELECT .+ FROM sessions s WHERE s.id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(id, "scheduled"))
	// another writer moved the session before the update ran
	mock.ExpectQuery(`UPDATE sessions s`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}))

	_, err := repo.Transition(context.Background(), id, []SessionStatus{SessionScheduled}, SessionActive, time.Now())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Conflict))
	assert.Equal(t, "Cannot change session from scheduled to active", apperr.MessageOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryTransitionUnknownSession(t *testing.T) {
	repo, mock := newMockRepo(t)

	_, err := repo.Transition(context.Background(), "not-a-uuid", []SessionStatus{SessionScheduled}, SessionActive, time.Now())
	assert.Equal(t, ErrSessionNotFound, err)

	id := uuid.NewString()
	mock.ExpectQuery(`SELECT .+ FROM sessions s`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}))
	_, err = repo.Transition(context.Background(), id, []SessionStatus{SessionScheduled}, SessionActive, time.Now())
	assert.Equal(t, ErrSessionNotFound, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
