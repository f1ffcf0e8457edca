package service

import (
	"errors"
	"reflect"
	"strings"

	"github.com/aussiebroadwan/storefront/internal/storefront/domain"
	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
)

// MinPasswordLength applies to every password a user chooses.
const MinPasswordLength = 6

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names so messages line up with request bodies.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateInput runs struct validation and turns the first failure into an
// ErrInvalidInput carrying a human readable message.
func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return oops.Code("VALIDATION_FAILED").Wrap(err)
	}
	return domain.ErrInvalidInput.WithMessage("%s", describe(verrs[0]))
}

func describe(fe validator.FieldError) string {
	switch fe.Field() {
	case "name":
		if fe.Tag() == "max" {
			return "Name cannot exceed " + fe.Param() + " characters"
		}
		return "Please Enter Your Name"
	case "email":
		return "Please Enter a valid Email"
	case "password", "newPassword":
		return passwordTooShort().Message
	case "role":
		return "Role must be one of: user, admin"
	}
	return "Invalid value for " + fe.Field()
}

func passwordTooShort() *domain.Error {
	return domain.ErrInvalidInput.WithMessage("Password should be at least %d characters", MinPasswordLength)
}

func checkPassword(pw string) error {
	if len(pw) < MinPasswordLength {
		return passwordTooShort()
	}
	return nil
}
