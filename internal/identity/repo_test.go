package identity

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studentattendance/internal/access"
	"studentattendance/internal/apperr"
)

func TestRepositoryCreateMapsConstraints(t *testing.T) {
	cases := []struct {
		constraint string
		want       error
	}{
		{"users_email_key", ErrEmailExists},
		{"users_student_id_key", ErrStudentIDExists},
		{"users_employee_id_key", ErrEmployeeIDExists},
	}
	for _, tc := range cases {
		t.Run(tc.constraint, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			repo := NewRepository(sqlx.NewDb(db, "pgx"))

			mock.ExpectQuery(`INSERT INTO users`).
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tc.constraint})

			_, err = repo.Create(context.Background(), User{Email: "ada@example.com", Role: access.Student})
			assert.Equal(t, tc.want, err)
			assert.True(t, apperr.Is(err, apperr.Conflict))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepositoryCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewRepository(sqlx.NewDb(db, "pgx"))

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO users .+ RETURNING created_at, updated_at`).
		WithArgs(sqlmock.AnyArg(), "ada@example.com", "hash", "Ada", "student", "pending",
			nil, nil, nil, nil, nil, nil, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(created, created))

	u, err := repo.Create(context.Background(), User{
		Email:        "ada@example.com",
		PasswordHash: "hash",
		FullName:     "Ada",
		Role:         access.Student,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, StatusPending, u.Status)
	assert.Equal(t, created, u.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
