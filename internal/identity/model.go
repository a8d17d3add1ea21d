package identity

import (
	"time"

	"studentattendance/internal/access"
	"studentattendance/internal/apperr"
)

// Status is the account lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusInactive  Status = "inactive"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusSuspended, StatusInactive:
		return true
	}
	return false
}

var (
	ErrNotFound         = apperr.New(apperr.NotFound, "user not found")
	ErrEmailExists      = apperr.New(apperr.Conflict, "Email already registered")
	ErrStudentIDExists  = apperr.New(apperr.Conflict, "Student ID already exists")
	ErrEmployeeIDExists = apperr.New(apperr.Conflict, "Employee ID already exists")

	ErrBadCredentials   = apperr.New(apperr.Unauthorized, "Incorrect email or password")
	ErrAccountSuspended = apperr.New(apperr.Forbidden, "Account suspended. Contact administrator.")
	ErrAccountPending   = apperr.New(apperr.Forbidden, "Please verify your email before logging in")
	ErrAccountInactive  = apperr.New(apperr.Forbidden, "Account is inactive")

	ErrAlreadyVerified  = apperr.New(apperr.Conflict, "Email already verified")
	ErrInvalidCode      = apperr.New(apperr.Validation, "Invalid verification code")
	ErrCodeExpired      = apperr.New(apperr.Expired, "Verification code has expired")
	ErrInvalidReset     = apperr.New(apperr.Validation, "Invalid or expired reset token")
	ErrResetExpired     = apperr.New(apperr.Expired, "Reset token has expired")
	ErrUserNotAvailable = apperr.New(apperr.Unauthorized, "User not found or inactive")
)

// User is a persisted account.
type User struct {
	ID             string      `db:"id" json:"id"`
	Email          string      `db:"email" json:"email"`
	PasswordHash   string      `db:"hashed_password" json:"-"`
	FullName       string      `db:"full_name" json:"full_name"`
	Role           access.Role `db:"role" json:"role"`
	Status         Status      `db:"status" json:"status"`
	PhoneNumber    *string     `db:"phone_number" json:"phone_number,omitempty"`
	ProfileImage   *string     `db:"profile_image" json:"profile_image,omitempty"`
	StudentNumber  *string     `db:"student_id" json:"student_id,omitempty"`
	Department     *string     `db:"department" json:"department,omitempty"`
	YearOfStudy    *int        `db:"year_of_study" json:"year_of_study,omitempty"`
	EmployeeID     *string     `db:"employee_id" json:"employee_id,omitempty"`
	Specialization *string     `db:"specialization" json:"specialization,omitempty"`
	EmailVerified  bool        `db:"is_email_verified" json:"is_email_verified"`

	VerificationCode    *string    `db:"email_verification_token" json:"-"`
	VerificationExpires *time.Time `db:"email_verification_expires" json:"-"`
	ResetToken          *string    `db:"password_reset_token" json:"-"`
	ResetExpires        *time.Time `db:"password_reset_expires" json:"-"`

	LastLogin *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Caller projects the user onto the authorization principal.
func (u User) Caller() access.Caller {
	return access.Caller{ID: u.ID, Email: u.Email, Role: u.Role}
}

// Profile holds the self-editable fields. Nil fields are left unchanged.
type Profile struct {
	FullName       *string
	PhoneNumber    *string
	ProfileImage   *string
	Department     *string
	YearOfStudy    *int
	Specialization *string
}

// Filter narrows List.
type Filter struct {
	Role   access.Role
	Status Status
}
