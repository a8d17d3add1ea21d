package course

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
)

const (
	lockCourse   = `SELECT max_students FROM courses WHERE id = \$1 FOR UPDATE`
	countActive  = `SELECT COUNT\(\*\) FROM course_enrollments WHERE course_id = \$1 AND status = 'active'`
	insertEnroll = `INSERT INTO course_enrollments`
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(sqlx.NewDb(db, "pgx")), mock
}

func TestRepositoryEnrollLocksCourse(t *testing.T) {
	repo, mock := newMockRepo(t)
	courseID, studentID := uuid.NewString(), uuid.NewString()
	at := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(lockCourse).WithArgs(courseID).
		WillReturnRows(sqlmock.NewRows([]string{"max_students"}).AddRow(30))
	mock.ExpectQuery(countActive).WithArgs(courseID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(29))
	mock.ExpectExec(insertEnroll).
		WithArgs(sqlmock.AnyArg(), courseID, studentID, at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	e, err := repo.Enroll(context.Background(), Enrollment{CourseID: courseID, StudentID: studentID, EnrolledAt: at})
	require.NoError(t, err)
	assert.Equal(t, EnrollmentActive, e.Status)
	assert.NotEmpty(t, e.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryEnrollFull(t *testing.T) {
	repo, mock := newMockRepo(t)
	courseID := uuid.NewString()

	mock.ExpectBegin()
	mock.ExpectQuery(lockCourse).WithArgs(courseID).
		WillReturnRows(sqlmock.NewRows([]string{"max_students"}).AddRow(2))
	mock.ExpectQuery(countActive).WithArgs(courseID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	_, err := repo.Enroll(context.Background(), Enrollment{CourseID: courseID, StudentID: uuid.NewString()})
	assert.Equal(t, ErrCourseFull, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryEnrollUncapped(t *testing.T) {
	repo, mock := newMockRepo(t)
	courseID := uuid.NewString()

	mock.ExpectBegin()
	mock.ExpectQuery(lockCourse).WithArgs(courseID).
		WillReturnRows(sqlmock.NewRows([]string{"max_students"}).AddRow(nil))
	mock.ExpectExec(insertEnroll).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := repo.Enroll(context.Background(), Enrollment{CourseID: courseID, StudentID: uuid.NewString()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryEnrollDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)
	courseID := uuid.NewString()

	mock.ExpectBegin()
	mock.ExpectQuery(lockCourse).WithArgs(courseID).
		WillReturnRows(sqlmock.NewRows([]string{"max_students"}).AddRow(nil))
	mock.ExpectExec(insertEnroll).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "course_enrollments_course_student_key"})
	mock.ExpectRollback()

	_, err := repo.Enroll(context.Background(), Enrollment{CourseID: courseID, StudentID: uuid.NewString()})
	assert.Equal(t, ErrAlreadyEnrolled, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryEnrollMissingCourse(t *testing.T) {
	repo, mock := newMockRepo(t)
	courseID := uuid.NewString()

	mock.ExpectBegin()
	mock.ExpectQuery(lockCourse).WithArgs(courseID).
		WillReturnRows(sqlmock.NewRows([]string{"max_students"}))
	mock.ExpectRollback()

	_, err := repo.Enroll(context.Background(), Enrollment{CourseID: courseID, StudentID: uuid.NewString()})
	assert.Equal(t, ErrNotFound, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = repo.Enroll(context.Background(), Enrollment{CourseID: "nope"})
	assert.Equal(t, ErrNotFound, err)
}

func TestRepositoryCreateDuplicateCode(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`INSERT INTO courses`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "courses_course_code_key"})

	_, err := repo.Create(context.Background(), Course{Code: "CS101", Name: "Intro", LecturerID: uuid.NewString()})
	assert.Equal(t, ErrCodeExists, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
