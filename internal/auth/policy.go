package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/mrlokans/biblioteca/internal/sysconfig"
)

// bcrypt silently ignores input past 72 bytes, so longer passwords are refused.
const maxPasswordBytes = 72

var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrPasswordTooLong = fmt.Errorf("password exceeds maximum length of %d bytes", maxPasswordBytes)
)

// PasswordPolicyError lists every rule a candidate password broke.
type PasswordPolicyError struct {
	Violations []string
}

func (e *PasswordPolicyError) Error() string {
	return "password does not meet policy: " + strings.Join(e.Violations, "; ")
}

// ValidatePassword checks password against the configured policy.
func ValidatePassword(policy sysconfig.PasswordPolicy, password string) error {
	var violations []string

	if len(password) < policy.MinLength {
		violations = append(violations, fmt.Sprintf("at least %d characters", policy.MinLength))
	}
	if len(password) > maxPasswordBytes {
		violations = append(violations, fmt.Sprintf("at most %d bytes", maxPasswordBytes))
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
		case unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r):
			special = true
		}
	}

	if policy.RequireUpper && !upper {
		violations = append(violations, "an uppercase letter")
	}
	if policy.RequireLower && !lower {
		violations = append(violations, "a lowercase letter")
	}
	if policy.RequireDigit && !digit {
		violations = append(violations, "a digit")
	}
	if policy.RequireSpecial && !special {
		violations = append(violations, "a special character")
	}

	if len(violations) > 0 {
		return &PasswordPolicyError{Violations: violations}
	}
	return nil
}

// PasswordExpired reports whether a password set at changedAt is past the
// policy's expiration. Zero ExpirationDays disables expiry.
func PasswordExpired(policy sysconfig.PasswordPolicy, changedAt *time.Time, now time.Time) bool {
	if policy.ExpirationDays <= 0 || changedAt == nil {
		return false
	}
	return now.After(changedAt.Add(time.Duration(policy.ExpirationDays) * 24 * time.Hour))
}

// NewPasswordHash checks password against the policy and returns its bcrypt
// hash. Every path that sets a password goes through here.
func NewPasswordHash(policy sysconfig.PasswordPolicy, password string, cost int) (string, error) {
	if err := ValidatePassword(policy, password); err != nil {
		return "", err
	}
	return HashPassword(password, cost)
}

// HashPassword hashes without consulting the policy. A zero cost means
// bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword returns ErrInvalidPassword when password does not match hash.
func CheckPassword(password, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrInvalidPassword
	}
	return err
}
