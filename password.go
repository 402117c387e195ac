package session

import (
	"strings"
	"unicode"

	"github.com/goliatone/go-errors"
)

// MinPasswordLength is the minimum accepted password length
const MinPasswordLength = 6

// PasswordSymbols is the punctuation set of which at least one character
// must appear in a password. Mirrors what the API enforces.
const PasswordSymbols = `!@#$%^&*(),.?":{}|<>`

// Enumerated policy violation reasons
const (
	PolicyTooShort         = "too_short"
	PolicyMissingUppercase = "missing_uppercase"
	PolicyMissingDigit     = "missing_digit"
	PolicyMissingSymbol    = "missing_symbol"
)

// PasswordViolations returns every policy reason the candidate fails, in a
// stable order. Empty means the password satisfies the local policy.
func PasswordViolations(password string) []string {
	var violations []string

	if len(password) < MinPasswordLength {
		violations = append(violations, PolicyTooShort)
	}

	var hasUpper, hasDigit bool
	for _, r := range password {
		if unicode.IsUpper(r) {
			hasUpper = true
		}
		if unicode.IsDigit(r) {
			hasDigit = true
		}
	}

	if !hasUpper {
		violations = append(violations, PolicyMissingUppercase)
	}
	if !hasDigit {
		violations = append(violations, PolicyMissingDigit)
	}
	if !strings.ContainsAny(password, PasswordSymbols) {
		violations = append(violations, PolicyMissingSymbol)
	}

	return violations
}

// ValidatePassword enforces the local password policy. This is a fast-fail
// courtesy before any network call; the server re-validates and remains the
// authority.
func ValidatePassword(password string) error {
	violations := PasswordViolations(password)
	if len(violations) == 0 {
		return nil
	}

	return errors.New("password does not meet the required policy", errors.CategoryValidation).
		WithTextCode(TextCodePolicyViolation).
		WithCode(errors.CodeBadRequest).
		WithMetadata(map[string]any{
			"violations": violations,
		})
}

// validatePasswordRule adapts ValidatePassword for ozzo validation.By on
// payload structs.
func validatePasswordRule(value any) error {
	password, _ := value.(string)
	return ValidatePassword(password)
}
