// Package validation holds input rules shared by the intake, support and
// operator flows.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	applicationNoRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{2,31}$`)
	phoneRegex         = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
	usernameRegex      = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9_.-]{1,30}[a-z0-9])$`)
	emailRegex         = regexp.MustCompile(`^[A-Za-z0-9._%+-]{1,64}@[A-Za-z0-9-]+(?:\.[A-Za-z0-9-]+)*\.[A-Za-z]{2,}$`)
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator with the custom "appno" and "phone" tags.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("appno", func(fl validator.FieldLevel) bool {
			return applicationNoRegex.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return phoneRegex.MatchString(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// Struct validates s and flattens any failures into one readable error.
func Struct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "required_if":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "appno":
		return field + " must be 3-32 upper case letters, digits or hyphens"
	case "phone":
		return field + " must be a 10-15 digit phone number"
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}

// ValidateApplicationNo checks the application number format.
func ValidateApplicationNo(no string) error {
	if !applicationNoRegex.MatchString(no) {
		return errors.New("application number must be 3-32 upper case letters, digits or hyphens")
	}
	return nil
}

// ValidateUsername checks an operator username.
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return errors.New("username must be 3-32 lower case letters, digits, dots, dashes or underscores, starting and ending with a letter or digit")
	}
	return nil
}

// ValidateEmail checks the address shape and the 254 character limit.
func ValidateEmail(email string) error {
	if len(email) > 254 || !emailRegex.MatchString(email) {
		return errors.New("invalid email address")
	}
	return nil
}
