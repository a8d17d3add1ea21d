package identity

import (
	"context"
	"time"

	"studentattendance/internal/access"
)

// Store persists users. Lookups return ErrNotFound when nothing matches;
// Create reports uniqueness conflicts as ErrEmailExists, ErrStudentIDExists
// or ErrEmployeeIDExists.
type Store interface {
	Create(ctx context.Context, u User) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByResetToken(ctx context.Context, token string) (User, error)

	// SetVerification marks the account verified (clearing the code and
	// activating a pending account) or stores a fresh code and expiry.
	SetVerification(ctx context.Context, id string, verified bool, code string, expires *time.Time) error
	SetResetToken(ctx context.Context, id, token string, expires *time.Time) error
	// SetPassword replaces the digest and clears any reset token.
	SetPassword(ctx context.Context, id, digest string) error
	SetLastLogin(ctx context.Context, id string, at time.Time) error
	SetStatus(ctx context.Context, id string, status Status) error
	UpdateProfile(ctx context.Context, id string, p Profile) (User, error)

	List(ctx context.Context, f Filter) ([]User, error)
	// Count counts users holding role, or all users when role is empty.
	Count(ctx context.Context, role access.Role) (int, error)
}
