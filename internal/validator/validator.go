package validator

import (
	"chatcore/internal/apperr"
	"chatcore/internal/credential"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)
	localeRegex   = regexp.MustCompile(`^[A-Za-z-]{2,10}$`)
)

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("locale", func(fl validator.FieldLevel) bool {
		return localeRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= credential.MaxPasswordLength
	})

	return v
}

// Struct validates s against its validate tags. Failures come back as a
// validation error listing "field tag" pairs.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, fieldErr := range validationErrors {
			messages = append(messages, fmt.Sprintf("%s %s", fieldErr.Field(), fieldErr.Tag()))
		}
		return apperr.Validation(strings.Join(messages, "; "))
	}

	return fmt.Errorf("invalid validation error: %w", err)
}

// Registration is the input of a new account.
type Registration struct {
	Email    string `json:"email" validate:"required,max=254,email"`
	UserName string `json:"userName" validate:"required,username"`
	Password string `json:"password" validate:"required,password"`
}
