package session_test

import (
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	session "github.com/newsportal/go-session"
)

func TestPasswordViolations(t *testing.T) {
	tests := []struct {
		name     string
		password string
		expected []string
	}{
		{
			name:     "satisfies policy",
			password: `Str0ng!`,
			expected: nil,
		},
		{
			name:     "minimum length boundary",
			password: `Ab1!xx`,
			expected: nil,
		},
		{
			name:     "too short only",
			password: `A1!`,
			expected: []string{session.PolicyTooShort},
		},
		{
			name:     "missing uppercase",
			password: `weak1!pass`,
			expected: []string{session.PolicyMissingUppercase},
		},
		{
			name:     "missing digit",
			password: `Weakpass!`,
			expected: []string{session.PolicyMissingDigit},
		},
		{
			name:     "missing symbol",
			password: `Weakpass1`,
			expected: []string{session.PolicyMissingSymbol},
		},
		{
			name:     "everything wrong",
			password: `abc`,
			expected: []string{
				session.PolicyTooShort,
				session.PolicyMissingUppercase,
				session.PolicyMissingDigit,
				session.PolicyMissingSymbol,
			},
		},
		{
			name:     "empty",
			password: ``,
			expected: []string{
				session.PolicyTooShort,
				session.PolicyMissingUppercase,
				session.PolicyMissingDigit,
				session.PolicyMissingSymbol,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, session.PasswordViolations(tt.password))
		})
	}
}

func TestValidatePasswordAccepts(t *testing.T) {
	assert.NoError(t, session.ValidatePassword(`Sup3r$ecret`))
}

func TestValidatePasswordRejectsWithReasons(t *testing.T) {
	err := session.ValidatePassword(`weakpass`)
	require.Error(t, err)
	assert.True(t, session.IsPolicyViolation(err))

	var richErr *goerrors.Error
	require.ErrorAs(t, err, &richErr)
	assert.Equal(t, session.TextCodePolicyViolation, richErr.TextCode)

	violations, ok := richErr.Metadata["violations"].([]string)
	require.True(t, ok)
	assert.Contains(t, violations, session.PolicyMissingUppercase)
	assert.Contains(t, violations, session.PolicyMissingDigit)
	assert.Contains(t, violations, session.PolicyMissingSymbol)
}

func TestIsPolicyViolationIgnoresOtherErrors(t *testing.T) {
	assert.False(t, session.IsPolicyViolation(nil))
	assert.False(t, session.IsPolicyViolation(assert.AnError))
	assert.False(t, session.IsPolicyViolation(session.ErrInvalidCredentials))
}
