// Package codes generates sequential human-readable identifiers such as
// LEC-000001 for readers and PRES-000001 for loans.
//
// The next code is max(existing suffix)+1 read inside the caller's
// transaction. Two concurrent writers can compute the same code; the unique
// index rejects the second insert and the caller retries the whole
// transaction with RetryOnConflict.
package codes

import (
	"fmt"

	"gorm.io/gorm"
)

// Sequence describes one code family.
type Sequence struct {
	Table  string
	Prefix string
}

var (
	Readers = Sequence{Table: "lectores", Prefix: "LEC-"}
	Loans   = Sequence{Table: "prestamos", Prefix: "PRES-"}
)

// Format renders n with the sequence prefix and six-digit zero padding.
func (s Sequence) Format(n int64) string {
	return fmt.Sprintf("%s%06d", s.Prefix, n)
}

// Next returns the code following the highest one stored in the table.
func (s Sequence) Next(tx *gorm.DB) (string, error) {
	var last int64
	err := tx.Table(s.Table).
		Select("COALESCE(MAX(CAST(SUBSTR(code, ?) AS INTEGER)), 0)", len(s.Prefix)+1).
		Where("code LIKE ?", s.Prefix+"%").
		Row().
		Scan(&last)
	if err != nil {
		return "", fmt.Errorf("failed to read last %s code: %w", s.Prefix, err)
	}
	return s.Format(last + 1), nil
}
