package entities

import "time"

type UserRole string

const (
	UserRoleSuperAdmin UserRole = "SUPERADMIN"
	UserRoleAdmin      UserRole = "ADMIN"
	UserRoleLibrarian  UserRole = "LIBRARIAN"
)

// User is a staff member: a librarian or an administrator.
type User struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	Username          string     `gorm:"uniqueIndex;size:64" json:"username"`
	Email             string     `gorm:"uniqueIndex;size:255" json:"email"`
	FullName          string     `gorm:"size:200" json:"full_name"`
	PasswordHash      string     `gorm:"size:255" json:"-"`
	Role              UserRole   `gorm:"size:20" json:"role"`
	Active            bool       `json:"active"`
	LastAccessAt      *time.Time `json:"last_access_at,omitempty"`
	FailedLoginCount  int        `json:"-"`
	LockedUntil       *time.Time `json:"locked_until,omitempty"`
	PasswordChangedAt *time.Time `json:"password_changed_at,omitempty"`
	TokenHash         string     `gorm:"size:64" json:"-"`
	TokenCreatedAt    *time.Time `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "usuarios"
}
