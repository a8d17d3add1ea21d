package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"studentattendance/internal/access"
	"studentattendance/internal/apperr"
)

// Kind distinguishes access tokens from refresh tokens.
type Kind string

const (
	AccessToken  Kind = "access"
	RefreshToken Kind = "refresh"
)

// ErrInvalidToken is returned for bad signatures, expired tokens and kind mismatches.
var ErrInvalidToken = apperr.New(apperr.Unauthorized, "could not validate credentials")

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
}

// Claims represents JWT payload. Email and Role are only set on access tokens.
type Claims struct {
	Kind  Kind        `json:"typ"`
	Email string      `json:"email,omitempty"`
	Role  access.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 bearer tokens.
type Tokens struct {
	issuer     string
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokens creates a token issuer.
func NewTokens(issuer, key string, accessTTL, refreshTTL time.Duration) *Tokens {
	return &Tokens{
		issuer:     issuer,
		key:        []byte(key),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// Issue issues signed access and refresh tokens for a user.
func (t *Tokens) Issue(subject, email string, role access.Role) (TokenPair, error) {
	accessToken, accessExp, err := t.sign(Claims{Kind: AccessToken, Email: email, Role: role}, subject, t.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refreshToken, refreshExp, err := t.sign(Claims{Kind: RefreshToken}, subject, t.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func (t *Tokens) sign(claims Claims, subject string, ttl time.Duration) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    t.issuer,
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse validates a token of the expected kind and returns its claims.
func (t *Tokens) Parse(tokenStr string, kind Kind) (Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return t.key, nil
	}, opts...)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.Kind != kind || claims.Subject == "" || claims.ExpiresAt == nil {
		return Claims{}, ErrInvalidToken
	}
	return *claims, nil
}
