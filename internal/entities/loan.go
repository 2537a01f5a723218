package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	LoanStatusActive   LoanStatus = "ACTIVE"
	LoanStatusReturned LoanStatus = "RETURNED"
	LoanStatusOverdue  LoanStatus = "OVERDUE"
	LoanStatusLost     LoanStatus = "LOST"
)

// OpenLoanStatuses are the states in which a loan still holds a copy of the book.
var OpenLoanStatuses = []LoanStatus{LoanStatusActive, LoanStatusOverdue}

// IsOpen reports whether the loan still holds a copy (ACTIVE or OVERDUE).
func (s LoanStatus) IsOpen() bool {
	return s == LoanStatusActive || s == LoanStatusOverdue
}

// IsTerminal reports whether no further transition can leave this state.
func (s LoanStatus) IsTerminal() bool {
	return s == LoanStatusReturned || s == LoanStatusLost
}

// Loan records one copy of a Book lent to one Reader.
type Loan struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	Code               string          `gorm:"uniqueIndex;size:20" json:"code"` // PRES-000001
	BookID             uint            `gorm:"column:libro_id" json:"book_id"`
	ReaderID           uint            `gorm:"column:lector_id" json:"reader_id"`
	IssuedByID         uint            `gorm:"column:bibliotecario_prestamo_id" json:"issued_by_id"`
	ReturnedByID       *uint           `gorm:"column:bibliotecario_devolucion_id" json:"returned_by_id,omitempty"`
	IssuedAt           time.Time       `json:"issued_at"`
	ExpectedReturnDate time.Time       `json:"expected_return_date"`
	ReturnedAt         *time.Time      `json:"returned_at,omitempty"`
	Status             LoanStatus      `gorm:"size:20" json:"status"`
	Fine               decimal.Decimal `gorm:"type:numeric" json:"fine"`
	FinePaid           bool            `json:"fine_paid"`
	IssueCondition     string          `gorm:"size:255" json:"issue_condition,omitempty"`
	ReturnCondition    string          `gorm:"size:255" json:"return_condition,omitempty"`
	Observations       string          `gorm:"type:text" json:"observations,omitempty"`
	Book               *Book           `gorm:"foreignKey:BookID" json:"book,omitempty"`
	Reader             *Reader         `gorm:"foreignKey:ReaderID" json:"reader,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (Loan) TableName() string {
	return "prestamos"
}

// LoanWithFine is a read-only projection carrying a fine computed at query time.
type LoanWithFine struct {
	Loan
	DaysOverdue  int             `json:"days_overdue"`
	ComputedFine decimal.Decimal `json:"computed_fine"`
}

// LoanStats aggregates circulation counters for the dashboard.
type LoanStats struct {
	TotalLoans       int64           `json:"total_loans"`
	ActiveLoans      int64           `json:"active_loans"`
	OverdueLoans     int64           `json:"overdue_loans"`
	ReturnedLoans    int64           `json:"returned_loans"`
	LostLoans        int64           `json:"lost_loans"`
	OutstandingFines decimal.Decimal `json:"outstanding_fines"`
	CollectedFines   decimal.Decimal `json:"collected_fines"`
	TotalBooks       int64           `json:"total_books"`
	TotalCopies      int64           `json:"total_copies"`
	AvailableCopies  int64           `json:"available_copies"`
	ActiveReaders    int64           `json:"active_readers"`
	DueSoonLoans     int64           `json:"due_soon_loans"`
}
