package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"studentattendance/internal/access"
	"studentattendance/internal/store"
)

const userColumns = `id, email, hashed_password, full_name, role, status, phone_number, profile_image,
	student_id, department, year_of_study, employee_id, specialization, is_email_verified,
	email_verification_token, email_verification_expires, password_reset_token, password_reset_expires,
	last_login, created_at, updated_at`

// Repository persists users in Postgres.
type Repository struct {
	db *sqlx.DB
}

var _ Store = (*Repository)(nil)

// NewRepository creates a repo.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, u User) (User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Status == "" {
		u.Status = StatusPending
	}
	row := r.db.QueryRowxContext(ctx, `
		INSERT INTO users (id, email, hashed_password, full_name, role, status, phone_number,
			student_id, department, year_of_study, employee_id, specialization,
			email_verification_token, email_verification_expires)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at
	`, u.ID, u.Email, u.PasswordHash, u.FullName, string(u.Role), string(u.Status), u.PhoneNumber,
		u.StudentNumber, u.Department, u.YearOfStudy, u.EmployeeID, u.Specialization,
		u.VerificationCode, u.VerificationExpires)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		if constraint, ok := store.UniqueViolation(err); ok {
			return User{}, conflictFor(constraint)
		}
		return User{}, errors.Wrap(err, "inserting user")
	}
	return u, nil
}

func conflictFor(constraint string) error {
	switch constraint {
	case "users_student_id_key":
		return ErrStudentIDExists
	case "users_employee_id_key":
		return ErrEmployeeIDExists
	}
	return ErrEmailExists
}

func (r *Repository) getBy(ctx context.Context, column, value string) (User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value)
	if err != nil {
		if store.NoRows(err) {
			return User{}, ErrNotFound
		}
		return User{}, errors.Wrapf(err, "loading user by %s", column)
	}
	return u, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, ErrNotFound
	}
	return r.getBy(ctx, "id", id)
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.getBy(ctx, "email", email)
}

func (r *Repository) GetByResetToken(ctx context.Context, token string) (User, error) {
	return r.getBy(ctx, "password_reset_token", token)
}

func (r *Repository) exec(ctx context.Context, what, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, what)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) SetVerification(ctx context.Context, id string, verified bool, code string, expires *time.Time) error {
	if verified {
		return r.exec(ctx, "verifying user", `
			UPDATE users
			SET is_email_verified = TRUE,
				status = CASE WHEN status = 'pending' THEN 'active' ELSE status END,
				email_verification_token = NULL,
				email_verification_expires = NULL,
				updated_at = NOW()
			WHERE id = $1
		`, id)
	}
	return r.exec(ctx, "storing verification code", `
		UPDATE users
		SET email_verification_token = $2, email_verification_expires = $3, updated_at = NOW()
		WHERE id = $1
	`, id, nullable(code), expires)
}

func (r *Repository) SetResetToken(ctx context.Context, id, token string, expires *time.Time) error {
	return r.exec(ctx, "storing reset token", `
		UPDATE users
		SET password_reset_token = $2, password_reset_expires = $3, updated_at = NOW()
		WHERE id = $1
	`, id, nullable(token), expires)
}

func (r *Repository) SetPassword(ctx context.Context, id, digest string) error {
	return r.exec(ctx, "updating password", `
		UPDATE users
		SET hashed_password = $2, password_reset_token = NULL, password_reset_expires = NULL, updated_at = NOW()
		WHERE id = $1
	`, id, digest)
}

func (r *Repository) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, "updating last login", `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
}

func (r *Repository) SetStatus(ctx context.Context, id string, status Status) error {
	return r.exec(ctx, "updating user status",
		`UPDATE users SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
}

func (r *Repository) UpdateProfile(ctx context.Context, id string, p Profile) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, ErrNotFound
	}
	var u User
	err := r.db.GetContext(ctx, &u, `
		UPDATE users
		SET full_name = COALESCE($2, full_name),
			phone_number = COALESCE($3, phone_number),
			profile_image = COALESCE($4, profile_image),
			department = COALESCE($5, department),
			year_of_study = COALESCE($6, year_of_study),
			specialization = COALESCE($7, specialization),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		id, p.FullName, p.PhoneNumber, p.ProfileImage, p.Department, p.YearOfStudy, p.Specialization)
	if err != nil {
		if store.NoRows(err) {
			return User{}, ErrNotFound
		}
		return User{}, errors.Wrap(err, "updating profile")
	}
	return u, nil
}

func (r *Repository) List(ctx context.Context, f Filter) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE 1=1`
	var args []interface{}
	if f.Role != "" {
		args = append(args, string(f.Role))
		query += ` AND role = ?`
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += ` AND status = ?`
	}
	query += ` ORDER BY created_at DESC`

	var users []User
	if err := r.db.SelectContext(ctx, &users, r.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "listing users")
	}
	return users, nil
}

func (r *Repository) Count(ctx context.Context, role access.Role) (int, error) {
	var n int
	var err error
	if role == "" {
		err = r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`)
	} else {
		err = r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE role = $1`, string(role))
	}
	if err != nil {
		return 0, errors.Wrap(err, "counting users")
	}
	return n, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
