package auth

import (
	"dwilive/errors"
	"fmt"
	"regexp"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	validate      = newValidator()
	handlePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
		return handlePattern.MatchString(fl.Field().String())
	})
	return v
}

type RegisterRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=32,handle"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"displayName" validate:"omitempty,max=64"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func ValidateRegister(req RegisterRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrValidation, err)
	}
	if !isPasswordComplex(req.Password) {
		return errors.ErrInvalidPassword
	}
	return nil
}

func ValidateLogin(req LoginRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrValidation, err)
	}
	return nil
}

// isPasswordComplex requires an upper case letter, a lower case letter and a digit.
func isPasswordComplex(s string) bool {
	var hasUpper, hasLower, hasNumber bool
	for _, char := range s {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		}
	}
	return hasUpper && hasLower && hasNumber
}
