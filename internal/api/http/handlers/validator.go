package handlers

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/user-service/pkg/util/errorutil"
)

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// Validator wraps go-playground/validator and renders failures as ValidationError.
type Validator struct {
	v *validator.Validate
}

// NewValidator returns a validator with the custom "phone" tag registered.
func NewValidator() *Validator {
	v := validator.New()
	// an empty phone is valid: on profile updates it clears the stored number
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		phone := compactPhone(fl.Field().String())
		return phone == "" || phonePattern.MatchString(phone)
	})
	return &Validator{v: v}
}

// Validate checks struct tags on i.
func (val *Validator) Validate(i any) error {
	err := val.v.Struct(i)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	fields := make(map[string]any, len(ve))
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msg := fieldError(fe)
		fields[strings.ToLower(fe.Field())] = msg
		msgs = append(msgs, msg)
	}
	return apperrors.NewValidationError(strings.Join(msgs, "; "), fields)
}

// bind parses the JSON body into req and validates it.
func (val *Validator) bind(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return val.Validate(req)
}

func fieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "phone":
		return field + " must be a valid phone number"
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}

// compactPhone strips the separators people commonly type.
func compactPhone(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, s)
}
