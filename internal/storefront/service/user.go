package service

import (
	"context"
	"errors"
	"strings"

	"github.com/aussiebroadwan/storefront/internal/storefront/domain"
	"github.com/aussiebroadwan/storefront/internal/storefront/store"
	"github.com/aussiebroadwan/storefront/pkg/httpx"
	"github.com/aussiebroadwan/storefront/pkg/jwtx"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
	"github.com/samber/oops"
)

// ProfileInput is a self-service profile change. Empty fields are left
// unchanged.
type ProfileInput struct {
	Name   string         `json:"name" validate:"omitempty,max=30"`
	Email  string         `json:"email" validate:"omitempty,email"`
	Avatar *domain.Avatar `json:"avatar,omitempty"`
}

// AdminUserInput is an admin change to another account.
type AdminUserInput struct {
	Name  string `json:"name" validate:"omitempty,max=30"`
	Email string `json:"email" validate:"omitempty,email"`
	Role  string `json:"role" validate:"omitempty,oneof=user admin"`
}

type UserService struct {
	Store store.Store
}

func userNotFound(id string) *domain.Error {
	return domain.ErrNotFound.WithMessage("User does not exist with Id: %s", id)
}

// ResolvePrincipal loads the account behind a verified session token. It is
// the resolver handed to httpx.SessionMiddleware, so a deleted account stops
// authenticating immediately and role changes apply on the next request.
func (s *UserService) ResolvePrincipal(ctx context.Context, claims jwtx.Claims) (httpx.Principal, error) {
	u, err := s.Store.Users().GetUserByID(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return httpx.Principal{}, httpx.ErrNoPrincipal
	}
	if err != nil {
		return httpx.Principal{}, oops.Code("RESOLVE_PRINCIPAL_FAILED").With("user_id", claims.Subject).Wrap(err)
	}
	return httpx.Principal{UserID: u.ID, Role: string(u.Role), User: u}, nil
}

// GetUser fetches a user by id.
func (s *UserService) GetUser(ctx context.Context, id string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, userNotFound(id)
		}
		return domain.User{}, oops.Code("GET_USER_FAILED").With("user_id", id).Wrap(err)
	}
	return u, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.Store.Users().ListUsers(ctx)
	if err != nil {
		return nil, oops.Code("LIST_USERS_FAILED").Wrap(err)
	}
	return users, nil
}

// UpdateProfile changes the caller's own name, email or avatar reference.
func (s *UserService) UpdateProfile(ctx context.Context, id string, in ProfileInput) (domain.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = domain.NormalizeEmail(in.Email)
	if err := validateInput(in); err != nil {
		return domain.User{}, err
	}

	p := store.ProfileUpdate{Avatar: in.Avatar}
	if in.Name != "" {
		p.Name = &in.Name
	}
	if in.Email != "" {
		p.Email = &in.Email
	}
	return s.update(ctx, id, p)
}

// AdminUpdateUser changes name, email or role of any account.
func (s *UserService) AdminUpdateUser(ctx context.Context, id string, in AdminUserInput) (domain.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = domain.NormalizeEmail(in.Email)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	if err := validateInput(in); err != nil {
		return domain.User{}, err
	}

	var p store.ProfileUpdate
	if in.Name != "" {
		p.Name = &in.Name
	}
	if in.Email != "" {
		p.Email = &in.Email
	}
	if in.Role != "" {
		role := domain.Role(in.Role)
		p.Role = &role
	}

	u, err := s.update(ctx, id, p)
	if err == nil {
		slogx.FromContext(ctx).Info("user updated by admin", "target_user_id", id, "role", u.Role)
	}
	return u, err
}

func (s *UserService) update(ctx context.Context, id string, p store.ProfileUpdate) (domain.User, error) {
	u, err := s.Store.Users().UpdateProfile(ctx, id, p)
	switch {
	case err == nil:
		return u, nil
	case errors.Is(err, store.ErrNotFound):
		return domain.User{}, userNotFound(id)
	case errors.Is(err, store.ErrAlreadyExists):
		return domain.User{}, domain.ErrDuplicateEmail
	default:
		return domain.User{}, oops.Code("UPDATE_USER_FAILED").With("user_id", id).Wrap(err)
	}
}

// DeleteUser removes an account. Existing session tokens for it stop working
// because ResolvePrincipal no longer finds the user.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}

	if err := s.Store.Users().DeleteUser(ctx, u.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return userNotFound(id)
		}
		return oops.Code("DELETE_USER_FAILED").With("user_id", id).Wrap(err)
	}

	log := slogx.FromContext(ctx)
	// TODO: remove the hosted avatar once a media store client exists.
	if u.Avatar.PublicID != "" {
		log.Info("avatar left on media host", "user_id", u.ID, "public_id", u.Avatar.PublicID)
	}
	log.Info("user deleted", "user_id", u.ID)
	return nil
}
