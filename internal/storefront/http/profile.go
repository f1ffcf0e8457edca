package http

import (
	"net/http"

	"github.com/aussiebroadwan/storefront/internal/storefront/domain"
	"github.com/aussiebroadwan/storefront/internal/storefront/service"
	"github.com/aussiebroadwan/storefront/pkg/httpx"
)

type ProfileHandler struct {
	UserService *service.UserService
}

// HandleMe returns the signed-in user.
//
//	@Summary	Current user
//	@Tags		Profile
//	@Security	CookieAuth
//	@Produce	json
//	@Success	200	{object}	UserResponse
//	@Failure	401	{object}	httpx.ErrorBody
//	@Router		/me [get].
func (h *ProfileHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r)
	if !ok {
		writeError(w, r, domain.ErrUnauthorized)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, UserResponse{Success: true, User: u})
}

// HandleUpdate changes name, email or avatar of the signed-in user.
//
//	@Summary	Update profile
//	@Tags		Profile
//	@Security	CookieAuth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		service.ProfileInput	true	"Fields to change"
//	@Success	200		{object}	SuccessResponse
//	@Failure	400		{object}	httpx.ErrorBody
//	@Failure	401		{object}	httpx.ErrorBody
//	@Router		/me/update [put].
func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in service.ProfileInput
	if !decode(w, r, &in) {
		return
	}

	if _, err := h.UserService.UpdateProfile(r.Context(), httpx.UserIDFromContext(r.Context()), in); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, SuccessResponse{Success: true})
}
