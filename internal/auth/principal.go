package auth

import (
	"errors"
	"fmt"

	"github.com/mrlokans/biblioteca/internal/entities"
)

var ErrForbidden = errors.New("forbidden")

// Principal is the acting staff member behind an operation.
type Principal struct {
	UserID          uint              `json:"id"`
	Username        string            `json:"username"`
	FullName        string            `json:"full_name,omitempty"`
	Role            entities.UserRole `json:"role"`
	PasswordExpired bool              `json:"password_expired"`
}

// SystemPrincipal acts for CLI commands and background tasks that run
// without an interactive login.
func SystemPrincipal() Principal {
	return Principal{Username: "system", Role: entities.UserRoleSuperAdmin}
}

func principalFromUser(user *entities.User, passwordExpired bool) *Principal {
	return &Principal{
		UserID:          user.ID,
		Username:        user.Username,
		FullName:        user.FullName,
		Role:            user.Role,
		PasswordExpired: passwordExpired,
	}
}

// Can reports whether the principal's role grants p.
func (p Principal) Can(perm Permission) bool {
	return RoleHasPermission(p.Role, perm)
}

// Require returns an error wrapping ErrForbidden when p lacks perm.
func (p Principal) Require(perm Permission) error {
	if p.Can(perm) {
		return nil
	}
	return fmt.Errorf("%w: %s requires %s", ErrForbidden, p.Role, perm)
}
