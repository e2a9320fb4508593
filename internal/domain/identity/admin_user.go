// Package identity holds the back-office administrators who review listings and requests.
package identity

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

const (
	maxFailedAttempts = 5
	lockDuration      = 15 * time.Minute
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	hasLetter    = regexp.MustCompile(`[a-zA-Z]`)
	hasNumber    = regexp.MustCompile(`[0-9]`)
)

// ErrInvalidCredentials is returned for any failed login, without saying which part was wrong
var ErrInvalidCredentials = shared.NewDomainError("INVALID_CREDENTIALS", "Invalid email or password")

// ErrAccountLocked is returned while an account is locked after repeated failures
var ErrAccountLocked = shared.NewDomainError("ACCOUNT_LOCKED", "Account is temporarily locked. Try again later.")

// AdminUser is a back-office operator
type AdminUser struct {
	shared.BaseAggregateRoot
	Email          string
	Name           string
	PasswordHash   string
	Active         bool
	FailedAttempts int
	LockedUntil    *time.Time
	LastLoginAt    *time.Time
}

// NewAdminUser creates an active admin with a bcrypt-hashed password
func NewAdminUser(email, name, password string) (*AdminUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(email) > 200 || !emailPattern.MatchString(email) {
		return nil, shared.NewDomainError("INVALID_EMAIL", "Invalid email format")
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = email
	}
	return &AdminUser{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Email:             email,
		Name:              name,
		PasswordHash:      string(hash),
		Active:            true,
	}, nil
}

// VerifyPassword reports whether password matches the stored hash
func (u *AdminUser) VerifyPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// IsLocked reports whether the account is locked at the given time
func (u *AdminUser) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// Authenticate checks the password and records the outcome.
// Repeated failures lock the account for a fixed period.
func (u *AdminUser) Authenticate(password string, now time.Time) error {
	if !u.Active {
		return ErrInvalidCredentials
	}
	if u.IsLocked(now) {
		return ErrAccountLocked
	}
	if !u.VerifyPassword(password) {
		u.FailedAttempts++
		if u.FailedAttempts >= maxFailedAttempts {
			until := now.Add(lockDuration).UTC()
			u.LockedUntil = &until
			u.FailedAttempts = 0
		}
		u.UpdatedAt = now.UTC()
		return ErrInvalidCredentials
	}
	at := now.UTC()
	u.FailedAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &at
	u.UpdatedAt = at
	return nil
}

// Deactivate blocks future logins
func (u *AdminUser) Deactivate() {
	u.Active = false
	u.Touch()
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return shared.NewDomainError("INVALID_PASSWORD", "Password must be at least 8 characters")
	}
	if len(password) > 72 {
		return shared.NewDomainError("INVALID_PASSWORD", "Password cannot exceed 72 characters")
	}
	if !hasLetter.MatchString(password) || !hasNumber.MatchString(password) {
		return shared.NewDomainError("INVALID_PASSWORD", "Password must contain at least one letter and one number")
	}
	return nil
}

// AdminUserRepository persists admin users
type AdminUserRepository interface {
	Save(ctx context.Context, user *AdminUser) error
	FindByEmail(ctx context.Context, email string) (*AdminUser, error)
	FindByID(ctx context.Context, id uuid.UUID) (*AdminUser, error)
	Count(ctx context.Context) (int64, error)
}
