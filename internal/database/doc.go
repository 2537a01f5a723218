// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup, embedded goose migrations, backups
//	├── errors.go        # sqlite constraint classification
//	├── migrations/      # Versioned SQL schema (libros, lectores, prestamos, usuarios, ...)
//	├── books/           # Catalog and availability counters
//	├── readers/         # Reader membership records
//	├── loans/           # Loan rows, state transitions, fine persistence
//	├── users/           # Staff accounts, lockout and API tokens
//	├── audit/           # Audit trail
//	└── settings/        # Key/value operational state
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type holding a *gorm.DB:
//
//	db, err := database.NewDatabase("./biblioteca.db", database.Options{})
//
//	booksRepo := books.NewRepository(db.DB)
//	loansRepo := loans.NewRepository(db.DB)
//
// Repositories expose WithTx(tx) so that services can run several writes
// (insert a loan, decrement availability) inside one gorm transaction:
//
//	err := db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
//		if err := loansRepo.WithTx(tx).Create(loan); err != nil {
//			return err
//		}
//		return booksRepo.WithTx(tx).AdjustAvailableCopies(loan.BookID, -1)
//	})
//
// # Schema
//
// The schema lives in migrations/*.sql and is applied by NewDatabase.
// Inventory and status invariants are CHECK constraints, so violations
// surface as errors classified by IsCheckViolation.
package database
