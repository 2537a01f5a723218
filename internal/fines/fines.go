// Package fines computes late-return fines.
//
// The same Policy.Calculate is used when fines are persisted in bulk and when
// they are computed on the fly for listings, so both always agree.
package fines

import (
	"time"

	"github.com/shopspring/decimal"
)

// Policy holds the fine parameters from the system configuration.
type Policy struct {
	GraceDays int
	DailyRate decimal.Decimal
	Cap       decimal.Decimal
}

// NewPolicy builds a Policy from configuration values.
func NewPolicy(graceDays int, dailyRate, capAmount float64) Policy {
	return Policy{
		GraceDays: graceDays,
		DailyRate: decimal.NewFromFloat(dailyRate),
		Cap:       decimal.NewFromFloat(capAmount),
	}
}

// Date truncates t to midnight UTC of its calendar day.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole calendar days from a to b. Negative when b is earlier.
func DaysBetween(a, b time.Time) int {
	return int(Date(b).Sub(Date(a)).Hours() / 24)
}

// OverdueDays is the number of chargeable days after the grace period.
func (p Policy) OverdueDays(expectedReturn, today time.Time) int {
	days := DaysBetween(expectedReturn, today) - p.GraceDays
	if days < 0 {
		return 0
	}
	return days
}

// Calculate returns min(overdueDays*rate, cap) rounded to cents, or zero
// while the loan is within its grace period.
func (p Policy) Calculate(expectedReturn, today time.Time) decimal.Decimal {
	days := p.OverdueDays(expectedReturn, today)
	if days == 0 {
		return decimal.Zero
	}
	fine := p.DailyRate.Mul(decimal.NewFromInt(int64(days)))
	if fine.GreaterThan(p.Cap) {
		fine = p.Cap
	}
	return fine.Round(2)
}
