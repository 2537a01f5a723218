package catalog

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/mrlokans/biblioteca/internal/auth"
	"github.com/mrlokans/biblioteca/internal/database/books"
	"github.com/mrlokans/biblioteca/internal/entities"
	"github.com/mrlokans/biblioteca/internal/validation"
)

// BookInput holds the editable fields of a book.
type BookInput struct {
	ISBN            string `json:"isbn" validate:"required,max=20"`
	Title           string `json:"title" validate:"required,max=512"`
	Author          string `json:"author" validate:"required,max=256"`
	Publisher       string `json:"publisher" validate:"max=256"`
	PublicationYear int    `json:"publication_year" validate:"omitempty,min=1000,max=2100"`
	Category        string `json:"category" validate:"max=100"`
	TotalCopies     int    `json:"total_copies" validate:"min=1,max=10000"`
}

// CreateBook registers a title with all of its copies available.
func (s *Service) CreateBook(ctx context.Context, actor auth.Principal, in BookInput) (*entities.Book, error) {
	if err := actor.Require(auth.PermBooksManage); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	book := &entities.Book{
		ISBN:            in.ISBN,
		Title:           in.Title,
		Author:          in.Author,
		Publisher:       in.Publisher,
		PublicationYear: in.PublicationYear,
		Category:        in.Category,
		TotalCopies:     in.TotalCopies,
		AvailableCopies: in.TotalCopies,
		Active:          true,
	}
	if err := s.books.WithContext(ctx).CreateBook(book); err != nil {
		return nil, err
	}
	s.audit.LogCatalog(actor.UserID, "book", "book_create", book.ID, "Created "+book.Title)
	return book, nil
}

// UpdateBook rewrites a book's details. A change in total copies shifts the
// available copies by the same amount and fails with ErrCopiesOnLoan when
// fewer copies would remain than are currently lent out.
func (s *Service) UpdateBook(ctx context.Context, actor auth.Principal, id uint, in BookInput) (*entities.Book, error) {
	if err := actor.Require(auth.PermBooksManage); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var updated *entities.Book
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.books.WithTx(tx)
		book, err := repo.GetBookByID(id)
		if err != nil {
			return err
		}

		delta := in.TotalCopies - book.TotalCopies
		if book.AvailableCopies+delta < 0 {
			return fmt.Errorf("%w: %d on loan, %d requested", ErrCopiesOnLoan, book.OnLoan(), in.TotalCopies)
		}

		if err := repo.UpdateBookDetails(id, map[string]any{
			"isbn":             in.ISBN,
			"title":            in.Title,
			"author":           in.Author,
			"publisher":        in.Publisher,
			"publication_year": in.PublicationYear,
			"category":         in.Category,
		}); err != nil {
			return err
		}
		if delta != 0 {
			if err := repo.AdjustTotalCopies(id, delta, delta); err != nil {
				return err
			}
		}

		updated, err = repo.GetBookByID(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.audit.LogCatalog(actor.UserID, "book", "book_update", id, "Updated "+updated.Title)
	return updated, nil
}

// DeactivateBook soft-deletes a book. It is refused while any copy is on loan.
func (s *Service) DeactivateBook(ctx context.Context, actor auth.Principal, id uint) error {
	if err := actor.Require(auth.PermBooksManage); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		open, err := s.loans.WithTx(tx).CountOpenByBook(id)
		if err != nil {
			return err
		}
		if open > 0 {
			return fmt.Errorf("%w: %d open loans", ErrCopiesOnLoan, open)
		}
		return s.books.WithTx(tx).SetActive(id, false)
	})
	if err != nil {
		return err
	}
	s.audit.LogCatalog(actor.UserID, "book", "book_deactivate", id, "Deactivated book")
	return nil
}

func (s *Service) GetBook(ctx context.Context, actor auth.Principal, id uint) (*entities.Book, error) {
	if err := actor.Require(auth.PermBooksRead); err != nil {
		return nil, err
	}
	return s.books.WithContext(ctx).GetBookByID(id)
}

func (s *Service) GetBookByISBN(ctx context.Context, actor auth.Principal, isbn string) (*entities.Book, error) {
	if err := actor.Require(auth.PermBooksRead); err != nil {
		return nil, err
	}
	return s.books.WithContext(ctx).GetBookByISBN(isbn)
}

// SearchBooks lists books matching filter; inactive books only on request.
func (s *Service) SearchBooks(ctx context.Context, actor auth.Principal, filter books.SearchFilter) (entities.Page[entities.Book], error) {
	if err := actor.Require(auth.PermBooksRead); err != nil {
		return entities.Page[entities.Book]{}, err
	}
	items, total, err := s.books.WithContext(ctx).ListBooks(filter)
	if err != nil {
		return entities.Page[entities.Book]{}, fmt.Errorf("failed to search books: %w", err)
	}
	return entities.Page[entities.Book]{Items: items, Total: total}, nil
}
