package http

import (
	"net/http"

	"github.com/aussiebroadwan/storefront/internal/storefront/service"
	"github.com/aussiebroadwan/storefront/pkg/httpx"
)

// AdminHandler serves user management for the admin role.
type AdminHandler struct {
	UserService *service.UserService
}

// HandleList returns every user.
//
//	@Summary	List users
//	@Tags		Admin
//	@Security	CookieAuth
//	@Produce	json
//	@Success	200	{object}	UsersResponse
//	@Failure	401	{object}	httpx.ErrorBody
//	@Failure	403	{object}	httpx.ErrorBody
//	@Router		/admin/users [get].
func (h *AdminHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.UserService.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, UsersResponse{Success: true, Users: users})
}

// HandleGet returns one user.
//
//	@Summary	Get user
//	@Tags		Admin
//	@Security	CookieAuth
//	@Produce	json
//	@Param		id	path		string	true	"User ID"
//	@Success	200	{object}	UserResponse
//	@Failure	404	{object}	httpx.ErrorBody
//	@Router		/admin/user/{id} [get].
func (h *AdminHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	u, err := h.UserService.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, UserResponse{Success: true, User: u})
}

// HandleUpdate changes name, email or role of a user.
//
//	@Summary	Update user
//	@Tags		Admin
//	@Security	CookieAuth
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string					true	"User ID"
//	@Param		body	body		service.AdminUserInput	true	"Fields to change"
//	@Success	200		{object}	SuccessResponse
//	@Failure	400		{object}	httpx.ErrorBody
//	@Failure	404		{object}	httpx.ErrorBody
//	@Router		/admin/user/{id} [put].
func (h *AdminHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in service.AdminUserInput
	if !decode(w, r, &in) {
		return
	}

	if _, err := h.UserService.AdminUpdateUser(r.Context(), r.PathValue("id"), in); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// HandleDelete removes a user.
//
//	@Summary	Delete user
//	@Tags		Admin
//	@Security	CookieAuth
//	@Produce	json
//	@Param		id	path		string	true	"User ID"
//	@Success	200	{object}	MessageResponse
//	@Failure	404	{object}	httpx.ErrorBody
//	@Router		/admin/user/{id} [delete].
func (h *AdminHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.UserService.DeleteUser(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "User deleted successfully"})
}
