package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/openshelf/library-service/library/internal/errs"
	"github.com/openshelf/library-service/library/internal/model"
	"github.com/openshelf/library-service/library/internal/repository"
)

func (s *Service) CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error) {
	return s.repo.CreateBook(ctx, model.Book{
		BookUid:        uuid.NewString(),
		Name:           req.Name,
		Author:         req.Author,
		Publisher:      req.Publisher,
		Genre:          req.Genre,
		ISBN:           req.ISBN,
		Quantity:       req.Quantity,
		AvailableCount: req.Quantity,
		Price:          req.Price,
		Description:    req.Description,
	})
}

func (s *Service) UpdateBook(ctx context.Context, bookUid string, req model.UpdateBookRequest) (model.Book, error) {
	var book model.Book
	err := s.repo.WithTx(ctx, func(r repository.Repository) error {
		cur, err := r.GetBook(ctx, bookUid)
		if err != nil {
			return err
		}
		if cur, err = r.GetBookForUpdate(ctx, cur.ID); err != nil {
			return err
		}
		// Cannot shrink below the number of copies currently out.
		if issued := cur.Quantity - cur.AvailableCount; req.Quantity < issued {
			return errs.ErrBookInUse
		}
		book, err = r.UpdateBook(ctx, model.Book{
			BookUid:     bookUid,
			Name:        req.Name,
			Author:      req.Author,
			Publisher:   req.Publisher,
			Genre:       req.Genre,
			ISBN:        req.ISBN,
			Quantity:    req.Quantity,
			Price:       req.Price,
			Description: req.Description,
		})
		return err
	})
	if err != nil {
		return model.Book{}, err
	}
	return book, nil
}

// DeleteBook refuses while any loan references the book. Loans are never
// deleted, so a book with history stays as part of the audit trail.
func (s *Service) DeleteBook(ctx context.Context, bookUid string) error {
	return s.repo.WithTx(ctx, func(r repository.Repository) error {
		book, err := r.GetBook(ctx, bookUid)
		if err != nil {
			return err
		}
		inUse, err := r.HasLoansForBook(ctx, book.ID)
		if err != nil {
			return err
		}
		if inUse {
			return errs.ErrBookInUse
		}
		return r.DeleteBook(ctx, bookUid)
	})
}

func (s *Service) GetBook(ctx context.Context, bookUid string) (model.Book, error) {
	return s.repo.GetBook(ctx, bookUid)
}

func (s *Service) ListBooks(ctx context.Context, filter model.BookFilter) (model.ListBooks, error) {
	return s.repo.ListBooks(ctx, filter)
}
