package domain

import (
	"fmt"
	"net/http"
)

// Error is an expected failure that is safe to show to the caller. The
// handler layer writes Status and Message verbatim.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches any *Error with the same Code, so errors derived through
// WithMessage still satisfy errors.Is against the base value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithMessage returns a copy of e carrying a more specific message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	c := *e
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

var (
	ErrMissingCredentials    = &Error{http.StatusBadRequest, "missing_credentials", "Please Enter Email & Password"}
	ErrInvalidCredentials    = &Error{http.StatusUnauthorized, "invalid_credentials", "Invalid email or password"}
	ErrUnauthorized          = &Error{http.StatusUnauthorized, "unauthorized", "Please Login to access this resource"}
	ErrForbidden             = &Error{http.StatusForbidden, "forbidden", "You are not allowed to access this resource"}
	ErrInvalidOrExpiredToken = &Error{http.StatusBadRequest, "invalid_or_expired_token", "Reset Password Token is invalid or has been expired"}
	ErrPasswordMismatch      = &Error{http.StatusBadRequest, "password_mismatch", "Password does not match with confirm password"}
	ErrIncorrectOldPassword  = &Error{http.StatusBadRequest, "incorrect_old_password", "Old Password is incorrect"}
	ErrDeliveryFailure       = &Error{http.StatusInternalServerError, "delivery_failure", "Email could not be sent"}
	ErrNotFound              = &Error{http.StatusNotFound, "not_found", "User not found"}
	ErrDuplicateEmail        = &Error{http.StatusBadRequest, "duplicate_email", "Duplicate email Entered"}
	ErrInvalidInput          = &Error{http.StatusBadRequest, "invalid_input", "Invalid input"}
	ErrInternal              = &Error{http.StatusInternalServerError, "internal", "Internal Server Error"}
)
