package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/storefront/internal/storefront/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (mongo, sqlite)
// implement this. Every user mutation is a single-record update, so no
// transaction surface is exposed.
type Store interface {
	Users() Users

	// ApplyMigrations brings the schema (tables or indexes) up to date.
	ApplyMigrations(ctx context.Context) error

	// Close releases any underlying resources.
	Close(ctx context.Context) error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// ProfileUpdate lists the user fields to change; nil fields are left alone.
type ProfileUpdate struct {
	Name   *string
	Email  *string
	Role   *domain.Role
	Avatar *domain.Avatar
}

type Users interface {
	// CreateUser inserts a new user (id is provided by app via ULID). A
	// duplicate email yields ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail expects an already normalized email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// GetUserByResetTokenHash returns the user holding hash whose reset
	// expiry is strictly after now.
	GetUserByResetTokenHash(ctx context.Context, hash string, now time.Time) (domain.User, error)

	// ListUsers returns every user ordered by creation (oldest first).
	ListUsers(ctx context.Context) ([]domain.User, error)

	// UpdateProfile applies p and returns the updated record.
	UpdateProfile(ctx context.Context, id string, p ProfileUpdate) (domain.User, error)

	// UpdatePasswordHash sets the password hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, id, hash string) error

	// SetResetToken stores a pending reset, replacing any previous one.
	SetResetToken(ctx context.Context, id, hash string, expiresAt time.Time) error

	// ClearResetToken drops any pending reset for the user.
	ClearResetToken(ctx context.Context, id string) error

	// ConsumeResetToken sets the new password hash and clears the reset
	// fields, but only while the stored reset hash still equals tokenHash and
	// has not expired. Otherwise it changes nothing and returns ErrNotFound.
	ConsumeResetToken(ctx context.Context, id, tokenHash, passwordHash string, now time.Time) error

	// ClearExpiredResetTokens is housekeeping; it returns the number of
	// users whose stale reset fields were cleared.
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)

	DeleteUser(ctx context.Context, id string) error
}
