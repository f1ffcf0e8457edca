// Package storetest holds the behavioural checks every store driver must
// pass. Drivers call Run from their own tests with a factory for a fresh,
// migrated store.
package storetest

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/storefront/internal/storefront/domain"
	"github.com/aussiebroadwan/storefront/internal/storefront/store"
	"github.com/aussiebroadwan/storefront/pkg/idx"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, migrated store. Cleanup is the factory's job.
type Factory func(t *testing.T) store.Store

func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"CreateAndGet", testCreateAndGet},
		{"DuplicateEmail", testDuplicateEmail},
		{"NotFound", testNotFound},
		{"ListUsers", testListUsers},
		{"UpdateProfile", testUpdateProfile},
		{"UpdatePasswordHash", testUpdatePasswordHash},
		{"ResetTokenLifecycle", testResetTokenLifecycle},
		{"ConsumeResetTokenOnce", testConsumeResetTokenOnce},
		{"ConsumeExpiredResetToken", testConsumeExpiredResetToken},
		{"ClearExpiredResetTokens", testClearExpiredResetTokens},
		{"DeleteUser", testDeleteUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func newUser(email string) domain.User {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return domain.User{
		ID:           idx.New().String(),
		Name:         "Test User",
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		Role:         domain.RoleUser,
		Avatar:       domain.Avatar{PublicID: "avatars/x", URL: "https://cdn.example.com/x.png"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func testCreateAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := newUser("Alice@Example.com")
	require.NoError(t, s.Users().CreateUser(ctx, u))

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, "alice@example.com", got.Email, "email is normalized on write")
	require.Equal(t, u.PasswordHash, got.PasswordHash)
	require.Equal(t, domain.RoleUser, got.Role)
	require.Equal(t, u.Avatar, got.Avatar)
	require.True(t, u.CreatedAt.Equal(got.CreatedAt))
	require.Empty(t, got.ResetTokenHash)
	require.Nil(t, got.ResetTokenExpiresAt)

	byEmail, err := s.Users().GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)
}

func testDuplicateEmail(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Users().CreateUser(ctx, newUser("dup@example.com")))

	err := s.Users().CreateUser(ctx, newUser("DUP@example.com"))
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func testNotFound(t *testing.T, s store.Store) {
	ctx := context.Background()
	missing := idx.New().String()

	_, err := s.Users().GetUserByID(ctx, missing)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Users().GetUserByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Users().UpdateProfile(ctx, missing, store.ProfileUpdate{})
	require.ErrorIs(t, err, store.ErrNotFound)

	require.ErrorIs(t, s.Users().UpdatePasswordHash(ctx, missing, "h"), store.ErrNotFound)
	require.ErrorIs(t, s.Users().DeleteUser(ctx, missing), store.ErrNotFound)
}

func testListUsers(t *testing.T, s store.Store) {
	ctx := context.Background()

	empty, err := s.Users().ListUsers(ctx)
	require.NoError(t, err)
	require.Empty(t, empty)

	a, b := newUser("a@example.com"), newUser("b@example.com")
	b.CreatedAt = a.CreatedAt.Add(time.Second)
	require.NoError(t, s.Users().CreateUser(ctx, b))
	require.NoError(t, s.Users().CreateUser(ctx, a))

	users, err := s.Users().ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, a.ID, users[0].ID)
	require.Equal(t, b.ID, users[1].ID)
}

func testUpdateProfile(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := newUser("before@example.com")
	other := newUser("taken@example.com")
	require.NoError(t, s.Users().CreateUser(ctx, u))
	require.NoError(t, s.Users().CreateUser(ctx, other))

	name, email, role := "After", "AFTER@example.com", domain.RoleAdmin
	got, err := s.Users().UpdateProfile(ctx, u.ID, store.ProfileUpdate{Name: &name, Email: &email, Role: &role})
	require.NoError(t, err)
	require.Equal(t, "After", got.Name)
	require.Equal(t, "after@example.com", got.Email)
	require.Equal(t, domain.RoleAdmin, got.Role)
	require.Equal(t, u.Avatar, got.Avatar, "nil fields are untouched")
	require.Equal(t, u.PasswordHash, got.PasswordHash)

	taken := "taken@example.com"
	_, err = s.Users().UpdateProfile(ctx, u.ID, store.ProfileUpdate{Email: &taken})
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func testUpdatePasswordHash(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := newUser("pw@example.com")
	require.NoError(t, s.Users().CreateUser(ctx, u))

	require.NoError(t, s.Users().UpdatePasswordHash(ctx, u.ID, "new-hash"))
	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "new-hash", got.PasswordHash)
}

func testResetTokenLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now().UTC()
	u := newUser("reset@example.com")
	require.NoError(t, s.Users().CreateUser(ctx, u))

	require.NoError(t, s.Users().SetResetToken(ctx, u.ID, "hash-1", now.Add(15*time.Minute)))
	got, err := s.Users().GetUserByResetTokenHash(ctx, "hash-1", now)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.NotNil(t, got.ResetTokenExpiresAt)
	require.WithinDuration(t, now.Add(15*time.Minute), *got.ResetTokenExpiresAt, time.Millisecond)

	// A second request replaces the first token.
	require.NoError(t, s.Users().SetResetToken(ctx, u.ID, "hash-2", now.Add(15*time.Minute)))
	_, err = s.Users().GetUserByResetTokenHash(ctx, "hash-1", now)
	require.ErrorIs(t, err, store.ErrNotFound)

	// Lookups after expiry fail.
	_, err = s.Users().GetUserByResetTokenHash(ctx, "hash-2", now.Add(16*time.Minute))
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Users().ClearResetToken(ctx, u.ID))
	got, err = s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Empty(t, got.ResetTokenHash)
	require.Nil(t, got.ResetTokenExpiresAt)
}

func testConsumeResetTokenOnce(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now().UTC()
	u := newUser("consume@example.com")
	require.NoError(t, s.Users().CreateUser(ctx, u))
	require.NoError(t, s.Users().SetResetToken(ctx, u.ID, "hash", now.Add(time.Minute)))

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []error
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Users().ConsumeResetToken(ctx, u.ID, "hash", "hash-from-"+string(rune('a'+i)), now)
			mu.Lock()
			results = append(results, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	var ok int
	for _, err := range results {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, store.ErrNotFound)
	}
	require.Equal(t, 1, ok, "exactly one consumer wins")

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Empty(t, got.ResetTokenHash)
	require.Nil(t, got.ResetTokenExpiresAt)
	require.NotEqual(t, u.PasswordHash, got.PasswordHash)
}

func testConsumeExpiredResetToken(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now().UTC()
	u := newUser("expired@example.com")
	require.NoError(t, s.Users().CreateUser(ctx, u))
	require.NoError(t, s.Users().SetResetToken(ctx, u.ID, "hash", now.Add(-time.Second)))

	err := s.Users().ConsumeResetToken(ctx, u.ID, "hash", "new", now)
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.PasswordHash, got.PasswordHash)
}

func testClearExpiredResetTokens(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now().UTC()

	stale, fresh, idle := newUser("stale@example.com"), newUser("fresh@example.com"), newUser("idle@example.com")
	for _, u := range []domain.User{stale, fresh, idle} {
		require.NoError(t, s.Users().CreateUser(ctx, u))
	}
	require.NoError(t, s.Users().SetResetToken(ctx, stale.ID, "stale", now.Add(-time.Minute)))
	require.NoError(t, s.Users().SetResetToken(ctx, fresh.ID, "fresh", now.Add(time.Minute)))

	n, err := s.Users().ClearExpiredResetTokens(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	got, err := s.Users().GetUserByID(ctx, stale.ID)
	require.NoError(t, err)
	require.Empty(t, got.ResetTokenHash)

	got, err = s.Users().GetUserByID(ctx, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, "fresh", got.ResetTokenHash)
}

func testDeleteUser(t *testing.T, s store.Store) {
	ctx := context.Background()
	keep, gone := newUser("keep@example.com"), newUser("gone@example.com")
	require.NoError(t, s.Users().CreateUser(ctx, keep))
	require.NoError(t, s.Users().CreateUser(ctx, gone))

	require.NoError(t, s.Users().DeleteUser(ctx, gone.ID))

	_, err := s.Users().GetUserByID(ctx, gone.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	users, err := s.Users().ListUsers(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	sort.Strings(ids)
	require.Equal(t, []string{keep.ID}, ids)
}
