package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/storefront/internal/storefront/domain"
	"github.com/aussiebroadwan/storefront/internal/storefront/mailer"
	"github.com/aussiebroadwan/storefront/internal/storefront/metrics"
	"github.com/aussiebroadwan/storefront/internal/storefront/store"
	"github.com/aussiebroadwan/storefront/pkg/cryptox"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
	"github.com/samber/oops"
)

// DefaultResetTokenTTL is how long a reset link stays usable.
const DefaultResetTokenTTL = 15 * time.Minute

// ResetEmailSubject is the subject line of reset emails.
const ResetEmailSubject = "Ecommerce Password Recovery"

// PasswordService owns forgot, reset and update password.
type PasswordService struct {
	Store    store.Store
	Hasher   cryptox.PasswordHasher
	Mailer   mailer.Mailer
	ResetTTL time.Duration
	Metrics  *metrics.Metrics

	// Now is overridable in tests.
	Now func() time.Time
}

func (s *PasswordService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *PasswordService) resetTTL() time.Duration {
	if s.ResetTTL <= 0 {
		return DefaultResetTokenTTL
	}
	return s.ResetTTL
}

// ResetURL builds the link mailed to the user.
func ResetURL(origin, token string) string {
	return strings.TrimRight(origin, "/") + "/password/reset/" + token
}

func resetEmailBody(url string) string {
	return fmt.Sprintf("Your password reset token is :- \n\n %s \n\nIf you have not requested this email then please ignore it", url)
}

// ForgotPassword stores a fresh reset token for the account and mails the
// raw token to it. Any earlier pending token stops working. If delivery
// fails the pending reset is cleared again.
func (s *PasswordService) ForgotPassword(ctx context.Context, email, origin string) (err error) {
	defer func() { s.Metrics.RecordAuthEvent(metrics.EventPasswordForgot, err) }()
	log := slogx.FromContext(ctx)

	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.ErrNotFound
	}

	users := s.Store.Users()
	u, err := users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrNotFound
		}
		return oops.Code("FORGOT_PASSWORD_FAILED").With("operation", "GetUserByEmail").Wrap(err)
	}

	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return oops.Code("FORGOT_PASSWORD_FAILED").With("operation", "GenerateToken").Wrap(err)
	}

	expiresAt := s.now().Add(s.resetTTL())
	if err := users.SetResetToken(ctx, u.ID, cryptox.FingerprintToken(raw), expiresAt); err != nil {
		return oops.Code("FORGOT_PASSWORD_FAILED").With("operation", "SetResetToken").With("user_id", u.ID).Wrap(err)
	}

	msg := mailer.Message{
		To:      u.Email,
		Subject: ResetEmailSubject,
		Body:    resetEmailBody(ResetURL(origin, raw)),
	}
	if sendErr := s.Mailer.Send(ctx, msg); sendErr != nil {
		log.Error("reset email delivery failed", "user_id", u.ID, "err", sendErr)

		// The request context may already be cancelled; the rollback must
		// still reach the store.
		rollbackCtx := context.WithoutCancel(ctx)
		if err := users.ClearResetToken(rollbackCtx, u.ID); err != nil {
			log.Error("failed to clear reset token after delivery failure", "user_id", u.ID, "err", err)
		}
		return domain.ErrDeliveryFailure
	}

	log.Info("password reset requested", "user_id", u.ID, "expires_at", expiresAt)
	return nil
}

// ResetPassword sets a new password using a raw reset token. The returned
// user is the updated record so the caller can start a session.
func (s *PasswordService) ResetPassword(ctx context.Context, token, password, confirm string) (u domain.User, err error) {
	defer func() { s.Metrics.RecordAuthEvent(metrics.EventPasswordReset, err) }()

	token = strings.TrimSpace(token)
	if token == "" {
		return domain.User{}, domain.ErrInvalidOrExpiredToken
	}

	now := s.now()
	users := s.Store.Users()
	tokenHash := cryptox.FingerprintToken(token)

	u, err = users.GetUserByResetTokenHash(ctx, tokenHash, now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, domain.ErrInvalidOrExpiredToken
		}
		return domain.User{}, oops.Code("RESET_PASSWORD_FAILED").With("operation", "GetUserByResetTokenHash").Wrap(err)
	}

	if password != confirm {
		return domain.User{}, domain.ErrPasswordMismatch
	}
	if err := checkPassword(password); err != nil {
		return domain.User{}, err
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return domain.User{}, oops.Code("RESET_PASSWORD_FAILED").With("operation", "Hash").Wrap(err)
	}

	// Only one caller can win this update for a given token.
	if err := users.ConsumeResetToken(ctx, u.ID, tokenHash, hash, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, domain.ErrInvalidOrExpiredToken
		}
		return domain.User{}, oops.Code("RESET_PASSWORD_FAILED").With("operation", "ConsumeResetToken").With("user_id", u.ID).Wrap(err)
	}

	u.PasswordHash = hash
	u.ResetTokenHash = ""
	u.ResetTokenExpiresAt = nil
	u.UpdatedAt = now

	slogx.FromContext(ctx).Info("password reset completed", "user_id", u.ID)
	return u, nil
}

// UpdatePassword changes the password of a signed-in user after checking
// the current one.
func (s *PasswordService) UpdatePassword(ctx context.Context, userID, oldPassword, newPassword, confirm string) (u domain.User, err error) {
	defer func() { s.Metrics.RecordAuthEvent(metrics.EventPasswordUpdate, err) }()

	users := s.Store.Users()
	u, err = users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, domain.ErrUnauthorized
		}
		return domain.User{}, oops.Code("UPDATE_PASSWORD_FAILED").With("operation", "GetUserByID").Wrap(err)
	}

	ok, err := s.Hasher.Verify(oldPassword, u.PasswordHash)
	if err != nil {
		return domain.User{}, oops.Code("UPDATE_PASSWORD_FAILED").With("user_id", u.ID).Wrap(err)
	}
	if !ok {
		return domain.User{}, domain.ErrIncorrectOldPassword
	}

	if newPassword != confirm {
		return domain.User{}, domain.ErrPasswordMismatch
	}
	if err := checkPassword(newPassword); err != nil {
		return domain.User{}, err
	}

	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return domain.User{}, oops.Code("UPDATE_PASSWORD_FAILED").With("operation", "Hash").Wrap(err)
	}
	if err := users.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		return domain.User{}, oops.Code("UPDATE_PASSWORD_FAILED").With("operation", "UpdatePasswordHash").With("user_id", u.ID).Wrap(err)
	}

	u.PasswordHash = hash
	slogx.FromContext(ctx).Info("password updated", "user_id", u.ID)
	return u, nil
}
