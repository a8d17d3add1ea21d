package identity

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"studentattendance/internal/access"
	"studentattendance/internal/apperr"
	"studentattendance/internal/auth"
	"studentattendance/internal/mail"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt ignores input beyond 72 bytes
)

var validate = validator.New()

// Registration is the input to Register.
type Registration struct {
	Email          string
	Password       string
	FullName       string
	Role           access.Role
	PhoneNumber    *string
	StudentNumber  *string
	Department     *string
	YearOfStudy    *int
	EmployeeID     *string
	Specialization *string
}

// Login is a successful authentication.
type Login struct {
	User   User
	Tokens auth.TokenPair
}

// Options tunes token lifetimes.
type Options struct {
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

// Service implements registration, authentication and account administration.
type Service struct {
	store  Store
	hasher auth.Hasher
	tokens *auth.Tokens
	mailer mail.Mailer
	log    logrus.FieldLogger

	verificationTTL time.Duration
	resetTTL        time.Duration
	now             func() time.Time
}

// NewService wires the identity service.
func NewService(store Store, hasher auth.Hasher, tokens *auth.Tokens, mailer mail.Mailer, log logrus.FieldLogger, opts Options) *Service {
	if opts.VerificationTTL <= 0 {
		opts.VerificationTTL = 24 * time.Hour
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = time.Hour
	}
	return &Service{
		store:           store,
		hasher:          hasher,
		tokens:          tokens,
		mailer:          mailer,
		log:             log,
		verificationTTL: opts.VerificationTTL,
		resetTTL:        opts.ResetTTL,
		now:             time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func checkPassword(password string) error {
	if len(password) < minPasswordLen {
		return apperr.Newf(apperr.Validation, "Password must be at least %d characters", minPasswordLen)
	}
	if len(password) > maxPasswordLen {
		return apperr.Newf(apperr.Validation, "Password must be at most %d characters", maxPasswordLen)
	}
	return nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// Register creates a pending account and mails its verification code.
func (s *Service) Register(ctx context.Context, in Registration) (User, error) {
	email := normalizeEmail(in.Email)
	if err := validate.Var(email, "required,email"); err != nil {
		return User{}, apperr.New(apperr.Validation, "Invalid email address")
	}
	if err := checkPassword(in.Password); err != nil {
		return User{}, err
	}
	name := strings.TrimSpace(in.FullName)
	if name == "" {
		return User{}, apperr.New(apperr.Validation, "Full name is required")
	}
	role := in.Role
	if role == "" {
		role = access.Student
	}
	if !role.Valid() {
		return User{}, apperr.New(apperr.Validation, "Invalid role")
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	code, err := newVerificationCode()
	if err != nil {
		return User{}, errors.Wrap(err, "generating verification code")
	}
	expires := s.now().UTC().Add(s.verificationTTL)

	u, err := s.store.Create(ctx, User{
		Email:               email,
		PasswordHash:        digest,
		FullName:            name,
		Role:                role,
		Status:              StatusPending,
		PhoneNumber:         trimOptional(in.PhoneNumber),
		StudentNumber:       trimOptional(in.StudentNumber),
		Department:          trimOptional(in.Department),
		YearOfStudy:         in.YearOfStudy,
		EmployeeID:          trimOptional(in.EmployeeID),
		Specialization:      trimOptional(in.Specialization),
		VerificationCode:    &code,
		VerificationExpires: &expires,
	})
	if err != nil {
		return User{}, err
	}
	s.send(ctx, mail.VerificationMessage(u.Email, u.FullName, code))
	s.log.WithFields(logrus.Fields{"user_id": u.ID, "role": u.Role}).Info("user registered")
	return u, nil
}

func (s *Service) send(ctx context.Context, msg mail.Message) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.WithError(err).WithField("to", msg.To).Warn("mail delivery failed")
	}
}

func statusError(st Status) error {
	switch st {
	case StatusSuspended:
		return ErrAccountSuspended
	case StatusPending:
		return ErrAccountPending
	case StatusInactive:
		return ErrAccountInactive
	}
	return nil
}

// Login authenticates by email and password. Unknown emails and wrong
// passwords fail identically.
func (s *Service) Login(ctx context.Context, email, password string) (Login, error) {
	u, err := s.store.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Login{}, ErrBadCredentials
		}
		return Login{}, err
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		return Login{}, ErrBadCredentials
	}
	if err := statusError(u.Status); err != nil {
		return Login{}, err
	}

	at := s.now().UTC()
	if err := s.store.SetLastLogin(ctx, u.ID, at); err != nil {
		s.log.WithError(err).WithField("user_id", u.ID).Warn("recording last login failed")
	} else {
		u.LastLogin = &at
	}

	pair, err := s.tokens.Issue(u.ID, u.Email, u.Role)
	if err != nil {
		return Login{}, errors.Wrap(err, "issuing tokens")
	}
	return Login{User: u, Tokens: pair}, nil
}

// VerifyEmail confirms the 6-digit code and activates the account.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) error {
	u, err := s.store.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if u.EmailVerified {
		return ErrAlreadyVerified
	}
	if !sameCode(u.VerificationCode, strings.TrimSpace(code)) {
		return ErrInvalidCode
	}
	if u.VerificationExpires == nil || s.now().UTC().After(u.VerificationExpires.UTC()) {
		return ErrCodeExpired
	}
	return s.store.SetVerification(ctx, u.ID, true, "", nil)
}

// ResendVerification replaces the code of an unverified account.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	u, err := s.store.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if u.EmailVerified {
		return ErrAlreadyVerified
	}
	code, err := newVerificationCode()
	if err != nil {
		return errors.Wrap(err, "generating verification code")
	}
	expires := s.now().UTC().Add(s.verificationTTL)
	if err := s.store.SetVerification(ctx, u.ID, false, code, &expires); err != nil {
		return err
	}
	s.send(ctx, mail.VerificationMessage(u.Email, u.FullName, code))
	return nil
}

// ForgotPassword issues a reset token when the email is known. The result
// does not reveal whether it was.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.store.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	token, err := newResetToken()
	if err != nil {
		return errors.Wrap(err, "generating reset token")
	}
	expires := s.now().UTC().Add(s.resetTTL)
	if err := s.store.SetResetToken(ctx, u.ID, token, &expires); err != nil {
		return err
	}
	s.send(ctx, mail.PasswordResetMessage(u.Email, u.FullName, token))
	return nil
}

// ResetPassword consumes a reset token and sets a new password.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if err := checkPassword(password); err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidReset
	}
	u, err := s.store.GetByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidReset
		}
		return err
	}
	if u.ResetExpires == nil || s.now().UTC().After(u.ResetExpires.UTC()) {
		return ErrResetExpired
	}
	digest, err := s.hasher.Hash(password)
	if err != nil {
		return errors.Wrap(err, "hashing password")
	}
	return s.store.SetPassword(ctx, u.ID, digest)
}

// Refresh exchanges a refresh token for a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	claims, err := s.tokens.Parse(refreshToken, auth.RefreshToken)
	if err != nil {
		return auth.TokenPair{}, err
	}
	u, err := s.live(ctx, claims.Subject)
	if err != nil {
		return auth.TokenPair{}, err
	}
	pair, err := s.tokens.Issue(u.ID, u.Email, u.Role)
	if err != nil {
		return auth.TokenPair{}, errors.Wrap(err, "issuing tokens")
	}
	return pair, nil
}

// Resolve loads the caller behind verified access-token claims. It has the
// shape of auth.Resolver.
func (s *Service) Resolve(ctx context.Context, claims auth.Claims) (access.Caller, error) {
	u, err := s.live(ctx, claims.Subject)
	if err != nil {
		return access.Caller{}, err
	}
	return u.Caller(), nil
}

func (s *Service) live(ctx context.Context, id string) (User, error) {
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrUserNotAvailable
		}
		return User{}, err
	}
	if err := statusError(u.Status); err != nil {
		return User{}, err
	}
	return u, nil
}

func canSee(caller access.Caller, id string) error {
	if caller.ID == id || caller.Is(access.Admin) {
		return nil
	}
	return apperr.New(apperr.Forbidden, "permission denied")
}

// Get returns a user visible to caller: themselves, or anyone for admins.
func (s *Service) Get(ctx context.Context, caller access.Caller, id string) (User, error) {
	if err := canSee(caller, id); err != nil {
		return User{}, err
	}
	return s.store.GetByID(ctx, id)
}

// List returns users for admins.
func (s *Service) List(ctx context.Context, caller access.Caller, f Filter) ([]User, error) {
	if err := access.Require(caller, access.Admin); err != nil {
		return nil, err
	}
	if f.Role != "" && !f.Role.Valid() {
		return nil, apperr.New(apperr.Validation, "Invalid role")
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.New(apperr.Validation, "Invalid status")
	}
	return s.store.List(ctx, f)
}

// UpdateProfile edits profile fields of caller or, for admins, any user.
func (s *Service) UpdateProfile(ctx context.Context, caller access.Caller, id string, p Profile) (User, error) {
	if err := canSee(caller, id); err != nil {
		return User{}, err
	}
	if p.FullName != nil {
		name := strings.TrimSpace(*p.FullName)
		if name == "" {
			return User{}, apperr.New(apperr.Validation, "Full name is required")
		}
		p.FullName = &name
	}
	if p.YearOfStudy != nil && (*p.YearOfStudy < 1 || *p.YearOfStudy > 10) {
		return User{}, apperr.New(apperr.Validation, "Year of study must be between 1 and 10")
	}
	return s.store.UpdateProfile(ctx, id, p)
}

// SetStatus suspends, reactivates or deactivates an account. Admin only.
func (s *Service) SetStatus(ctx context.Context, caller access.Caller, id string, status Status) (User, error) {
	if err := access.Require(caller, access.Admin); err != nil {
		return User{}, err
	}
	if !status.Valid() {
		return User{}, apperr.New(apperr.Validation, "Invalid status")
	}
	if caller.ID == id {
		return User{}, apperr.New(apperr.Conflict, "You cannot change your own status")
	}
	if err := s.store.SetStatus(ctx, id, status); err != nil {
		return User{}, err
	}
	s.log.WithFields(logrus.Fields{"user_id": id, "status": status, "by": caller.ID}).Info("user status changed")
	return s.store.GetByID(ctx, id)
}

// Count counts users holding role, or everyone when role is empty.
func (s *Service) Count(ctx context.Context, role access.Role) (int, error) {
	return s.store.Count(ctx, role)
}
