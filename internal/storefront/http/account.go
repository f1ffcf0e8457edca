package http

import (
	"net/http"

	"github.com/aussiebroadwan/storefront/internal/storefront/service"
	"github.com/aussiebroadwan/storefront/pkg/httpx"
)

type AccountHandler struct {
	AccountService *service.AccountService

	issuer *sessionIssuer
}

// HandleRegister creates an account and starts a session for it.
//
//	@Summary		Register
//	@Description	Creates a user with role "user" and sets the session cookie. The avatar may be an object or a bare URL string.
//	@Tags			Account
//	@Accept			json
//	@Produce		json
//	@Param			body	body		service.RegisterInput	true	"New account"
//	@Success		201		{object}	AuthResponse
//	@Failure		400		{object}	httpx.ErrorBody	"Invalid input or duplicate email"
//	@Failure		429		{object}	httpx.ErrorBody
//	@Router			/register [post].
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if !decode(w, r, &in) {
		return
	}

	u, err := h.AccountService.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.issuer.send(w, r, http.StatusCreated, u)
}

// HandleLogin checks email and password and starts a session.
//
//	@Summary		Login
//	@Tags			Account
//	@Accept			json
//	@Produce		json
//	@Param			body	body		LoginRequest	true	"Credentials"
//	@Success		200		{object}	AuthResponse
//	@Failure		400		{object}	httpx.ErrorBody	"Missing email or password"
//	@Failure		401		{object}	httpx.ErrorBody	"Invalid email or password"
//	@Failure		429		{object}	httpx.ErrorBody
//	@Router			/login [post].
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}

	u, err := h.AccountService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.issuer.send(w, r, http.StatusOK, u)
}

// HandleLogout expires the session cookie. Tokens are stateless, so a copy
// of the token kept elsewhere stays valid until it expires.
//
//	@Summary	Logout
//	@Tags		Account
//	@Produce	json
//	@Success	200	{object}	MessageResponse
//	@Router		/logout [get].
func (h *AccountHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	httpx.ClearSessionCookie(w, r, h.issuer.cookie)
	httpx.WriteJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "Logged Out"})
}
