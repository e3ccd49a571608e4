package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minPasswordLength = 12
	maxPasswordLength = 128
)

// ValidatePassword enforces the operator password policy: 12-128 characters
// with upper case, lower case, digit and special characters.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < minPasswordLength {
		return errors.New("password must be at least 12 characters")
	}
	if n > maxPasswordLength {
		return errors.New("password must be at most 128 characters")
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	var missing []string
	for _, c := range []struct {
		ok   bool
		name string
	}{{upper, "an upper case letter"}, {lower, "a lower case letter"}, {digit, "a digit"}, {special, "a special character"}} {
		if !c.ok {
			missing = append(missing, c.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("password needs %s", strings.Join(missing, ", "))
	}
	return nil
}
