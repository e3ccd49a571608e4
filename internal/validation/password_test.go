package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword_Accepts(t *testing.T) {
	t.Parallel()
	for _, pw := range []string{
		"Transport#2026",
		"Abcdefghij1!",
		"R" + strings.Repeat("o", 125) + "7$",
		"Ånäs-Pass-42",
	} {
		assert.NoError(t, ValidatePassword(pw), pw)
	}
}

func TestValidatePassword_Rejects(t *testing.T) {
	t.Parallel()
	tests := map[string]struct {
		password string
		want     string
	}{
		"eleven characters":       {"Bus-Pass-1!", "at least 12"},
		"one hundred twenty nine": {"R" + strings.Repeat("o", 126) + "7$", "at most 128"},
		"lower only":              {"busdepotclerk", "an upper case letter, a digit, a special character"},
		"no special":              {"BusDepotClerk1", "a special character"},
		"no letters":              {"2026-04-01!!??", "an upper case letter, a lower case letter"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateEmail(t *testing.T) {
	t.Parallel()
	longest := strings.Repeat("a", 64) + "@" + strings.Repeat("b", 185) + ".com"

	assert.NoError(t, ValidateEmail("principal@college.edu"))
	assert.NoError(t, ValidateEmail(longest))
	assert.Error(t, ValidateEmail(longest+"x"))
	for _, bad := range []string{"registrar", "clerk@", "clerk@@college.edu", "bus clerk@college.edu", "clerk@college.edu."} {
		assert.Error(t, ValidateEmail(bad), bad)
	}
}
