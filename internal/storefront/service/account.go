package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/storefront/internal/storefront/domain"
	"github.com/aussiebroadwan/storefront/internal/storefront/metrics"
	"github.com/aussiebroadwan/storefront/internal/storefront/store"
	"github.com/aussiebroadwan/storefront/pkg/cryptox"
	"github.com/aussiebroadwan/storefront/pkg/idx"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
	"github.com/samber/oops"
)

type RegisterInput struct {
	Name     string        `json:"name" validate:"required,max=30"`
	Email    string        `json:"email" validate:"required,email"`
	Password string        `json:"password" validate:"required,min=6"`
	Avatar   domain.Avatar `json:"avatar"`
}

// AccountService handles registration and login.
type AccountService struct {
	Store   store.Store
	Hasher  cryptox.PasswordHasher
	Metrics *metrics.Metrics

	dummyOnce sync.Once
	dummyHash string
}

// Register creates a user with role "user".
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (u domain.User, err error) {
	defer func() { s.Metrics.RecordAuthEvent(metrics.EventRegister, err) }()

	in.Name = strings.TrimSpace(in.Name)
	in.Email = domain.NormalizeEmail(in.Email)
	if err := validateInput(in); err != nil {
		return domain.User{}, err
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, oops.Code("REGISTER_FAILED").With("operation", "Hash").Wrap(err)
	}

	now := time.Now().UTC()
	u = domain.User{
		ID:           idx.New().String(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Avatar:       in.Avatar,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, domain.ErrDuplicateEmail
		}
		return domain.User{}, oops.Code("REGISTER_FAILED").With("operation", "CreateUser").Wrap(err)
	}

	slogx.FromContext(ctx).Info("user registered", "user_id", u.ID)
	return u, nil
}

// Login checks the credentials and returns the matching user. Unknown emails
// and wrong passwords fail identically.
func (s *AccountService) Login(ctx context.Context, email, password string) (u domain.User, err error) {
	defer func() { s.Metrics.RecordAuthEvent(metrics.EventLogin, err) }()

	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return domain.User{}, domain.ErrMissingCredentials
	}

	u, err = s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn the same hashing work as a real account.
			_, _ = s.Hasher.Verify(password, s.dummy())
			return domain.User{}, domain.ErrInvalidCredentials
		}
		return domain.User{}, oops.Code("LOGIN_FAILED").With("operation", "GetUserByEmail").Wrap(err)
	}

	ok, err := s.Hasher.Verify(password, u.PasswordHash)
	if err != nil {
		return domain.User{}, oops.Code("LOGIN_FAILED").With("user_id", u.ID).Wrap(err)
	}
	if !ok {
		slogx.FromContext(ctx).Info("login rejected", "user_id", u.ID)
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return u, nil
}

// dummy returns a hash produced by the configured hasher so that the
// unknown-email path costs the same as a real verification.
func (s *AccountService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.Hasher.Hash("storefront-dummy-password")
	})
	return s.dummyHash
}
