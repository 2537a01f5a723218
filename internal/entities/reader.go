package entities

import "time"

type ReaderStatus string

const (
	ReaderStatusActive    ReaderStatus = "ACTIVE"
	ReaderStatusSuspended ReaderStatus = "SUSPENDED"
	ReaderStatusExpired   ReaderStatus = "EXPIRED"
	ReaderStatusInactive  ReaderStatus = "INACTIVE"
)

// Valid reports whether s is one of the statuses accepted by the lectores table.
func (s ReaderStatus) Valid() bool {
	switch s {
	case ReaderStatusActive, ReaderStatusSuspended, ReaderStatusExpired, ReaderStatusInactive:
		return true
	}
	return false
}

// Reader is a library member.
type Reader struct {
	ID                  uint         `gorm:"primaryKey" json:"id"`
	Code                string       `gorm:"uniqueIndex;size:20" json:"code"` // LEC-000001
	DocumentNumber      string       `gorm:"uniqueIndex;size:50" json:"document_number"`
	FirstName           string       `gorm:"size:100" json:"first_name"`
	LastName            string       `gorm:"size:100" json:"last_name"`
	Email               string       `gorm:"uniqueIndex;size:255" json:"email"`
	Phone               string       `gorm:"size:50" json:"phone,omitempty"`
	Address             string       `gorm:"size:255" json:"address,omitempty"`
	Status              ReaderStatus `gorm:"size:20" json:"status"`
	MembershipExpiresAt time.Time    `json:"membership_expires_at"`
	CreatedByID         *uint        `json:"created_by_id,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

func (Reader) TableName() string {
	return "lectores"
}

// FullName joins first and last name for display.
func (r *Reader) FullName() string {
	return r.FirstName + " " + r.LastName
}

// MembershipExpired reports whether the membership ended before the given day.
func (r *Reader) MembershipExpired(today time.Time) bool {
	return r.MembershipExpiresAt.Before(today)
}
