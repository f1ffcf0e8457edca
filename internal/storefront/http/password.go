package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/storefront/internal/storefront/domain"
	"github.com/aussiebroadwan/storefront/internal/storefront/service"
	"github.com/aussiebroadwan/storefront/pkg/httpx"
)

type PasswordHandler struct {
	PasswordService *service.PasswordService

	// PublicURL is the origin used in reset links. When empty the origin is
	// derived from the request.
	PublicURL string
	Proxies   httpx.ProxyTrust

	issuer *sessionIssuer
}

// resetOrigin is the base that "/password/reset/<token>" is appended to.
func (h *PasswordHandler) resetOrigin(r *http.Request) string {
	if h.PublicURL != "" {
		return h.PublicURL
	}

	scheme := "http"
	forwardedTLS := h.Proxies.FromTrustedProxy(r) && strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
	if r.TLS != nil || forwardedTLS {
		scheme = "https"
	}
	return scheme + "://" + r.Host + APIPrefix
}

// HandleForgot mails a one-time reset link to the account's address.
//
//	@Summary		Forgot password
//	@Description	Stores a reset token valid for a short time and emails the reset link. A new request replaces any earlier token.
//	@Tags			Password
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ForgotPasswordRequest	true	"Account email"
//	@Success		200		{object}	MessageResponse
//	@Failure		404		{object}	httpx.ErrorBody	"User not found"
//	@Failure		500		{object}	httpx.ErrorBody	"Email could not be sent"
//	@Router			/password/forgot [post].
func (h *PasswordHandler) HandleForgot(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.PasswordService.ForgotPassword(r.Context(), req.Email, h.resetOrigin(r)); err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, MessageResponse{
		Success: true,
		Message: fmt.Sprintf("Email sent to %s successfully", domain.NormalizeEmail(req.Email)),
	})
}

// HandleReset completes a reset and logs the user in.
//
//	@Summary	Reset password
//	@Tags		Password
//	@Accept		json
//	@Produce	json
//	@Param		token	path		string					true	"Raw reset token from the email"
//	@Param		body	body		ResetPasswordRequest	true	"New password"
//	@Success	200		{object}	AuthResponse
//	@Failure	400		{object}	httpx.ErrorBody	"Invalid or expired token, or passwords differ"
//	@Router		/password/reset/{token} [put].
func (h *PasswordHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decode(w, r, &req) {
		return
	}

	u, err := h.PasswordService.ResetPassword(r.Context(), r.PathValue("token"), req.Password, req.ConfirmPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.issuer.send(w, r, http.StatusOK, u)
}

// HandleUpdate changes the signed-in user's password and issues a fresh
// session.
//
//	@Summary	Update password
//	@Tags		Password
//	@Security	CookieAuth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		UpdatePasswordRequest	true	"Old and new password"
//	@Success	200		{object}	AuthResponse
//	@Failure	400		{object}	httpx.ErrorBody	"Old password incorrect or passwords differ"
//	@Failure	401		{object}	httpx.ErrorBody
//	@Router		/password/update [put].
func (h *PasswordHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdatePasswordRequest
	if !decode(w, r, &req) {
		return
	}

	u, err := h.PasswordService.UpdatePassword(r.Context(),
		httpx.UserIDFromContext(r.Context()),
		req.OldPassword, req.NewPassword, req.ConfirmPassword,
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.issuer.send(w, r, http.StatusOK, u)
}
