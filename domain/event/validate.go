package event

import (
	"dwilive/domain"
	"dwilive/errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("convid", func(fl validator.FieldLevel) bool {
		return domain.HasPrefixedID(fl.Field().String(), domain.ConversationPrefix)
	})
	_ = v.RegisterValidation("userid", func(fl validator.FieldLevel) bool {
		return domain.HasPrefixedID(fl.Field().String(), domain.UserPrefix)
	})
	return v
}

// Validate checks a payload against its struct tags. Failures wrap ErrValidation.
func Validate(payload any) error {
	if err := validate.Struct(payload); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrValidation, err)
	}
	return nil
}
