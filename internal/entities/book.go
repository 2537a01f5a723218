package entities

import "time"

// Book is a catalog entry together with its inventory counters.
// AvailableCopies never exceeds TotalCopies; the libros CHECK constraint enforces it.
type Book struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ISBN            string    `gorm:"column:isbn;uniqueIndex;size:20" json:"isbn"`
	Title           string    `gorm:"size:512" json:"title"`
	Author          string    `gorm:"size:256" json:"author"`
	Publisher       string    `gorm:"size:256" json:"publisher,omitempty"`
	PublicationYear int       `json:"publication_year,omitempty"`
	Category        string    `gorm:"size:100" json:"category,omitempty"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (Book) TableName() string {
	return "libros"
}

// IsAvailable reports whether a copy can be lent right now.
func (b *Book) IsAvailable() bool {
	return b.Active && b.AvailableCopies > 0
}

// OnLoan returns the number of copies currently lent out.
func (b *Book) OnLoan() int {
	return b.TotalCopies - b.AvailableCopies
}
