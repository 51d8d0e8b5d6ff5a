package repository

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/openshelf/library-service/library/internal/errs"
	"github.com/openshelf/library-service/library/internal/model"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const bookColumns = `id, book_uid, name, author, publisher, genre, isbn, quantity, available_count, price, description`

func (r *repository) CreateBook(ctx context.Context, book model.Book) (model.Book, error) {
	q, args, err := qb.Insert(booksTableName).
		Columns("book_uid", "name", "author", "publisher", "genre", "isbn", "quantity", "available_count", "price", "description").
		Values(book.BookUid, book.Name, book.Author, book.Publisher, book.Genre, book.ISBN, book.Quantity, book.AvailableCount, book.Price, book.Description).
		Suffix("returning " + bookColumns).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	var res model.Book
	if err := sqlx.GetContext(ctx, r.ext, &res, q, args...); err != nil {
		r.log.Error("CreateBook", zap.String("q", q), zap.Any("args", args))
		return model.Book{}, err
	}
	return res, nil
}

func (r *repository) UpdateBook(ctx context.Context, book model.Book) (model.Book, error) {
	// quantity changes shift available_count by the same delta so that
	// available_count always equals quantity minus issued copies.
	q := fmt.Sprintf(`update %s
	set name = $2, author = $3, publisher = $4, genre = $5, isbn = $6,
	    available_count = available_count + ($7 - quantity), quantity = $7,
	    price = $8, description = $9
	where book_uid = $1
	returning %s`, booksTableName, bookColumns)

	var res model.Book
	err := sqlx.GetContext(ctx, r.ext, &res, q,
		book.BookUid, book.Name, book.Author, book.Publisher, book.Genre, book.ISBN,
		book.Quantity, book.Price, book.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, errs.ErrNotFound
		}
		return model.Book{}, err
	}
	return res, nil
}

func (r *repository) DeleteBook(ctx context.Context, bookUid string) error {
	q, args, err := qb.Delete(booksTableName).
		Where(sq.Eq{"book_uid": bookUid}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.ext.ExecContext(ctx, q, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return errs.ErrBookInUse
		}
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *repository) GetBook(ctx context.Context, bookUid string) (model.Book, error) {
	q, args, err := qb.Select(bookColumns).
		From(booksTableName).
		Where(sq.Eq{"book_uid": bookUid}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	var book model.Book
	if err := sqlx.GetContext(ctx, r.ext, &book, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, errs.ErrNotFound
		}
		return model.Book{}, err
	}
	return book, nil
}

// GetBookForUpdate locks the book row until the surrounding transaction
// ends, serializing concurrent stock mutations.
func (r *repository) GetBookForUpdate(ctx context.Context, bookID int) (model.Book, error) {
	q := fmt.Sprintf(`select %s from %s where id = $1 for update`, bookColumns, booksTableName)
	var book model.Book
	if err := sqlx.GetContext(ctx, r.ext, &book, q, bookID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, errs.ErrNotFound
		}
		return model.Book{}, err
	}
	return book, nil
}

func (r *repository) ListBooks(ctx context.Context, filter model.BookFilter) (model.ListBooks, error) {
	q := qb.Select(bookColumns).
		From(booksTableName).
		OrderBy("name")

	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(sq.Or{
			sq.ILike{"name": pattern},
			sq.ILike{"author": pattern},
			sq.ILike{"isbn": pattern},
		})
	}
	if filter.Genre != "" {
		q = q.Where(sq.Eq{"genre": filter.Genre})
	}
	if !filter.ShowAll {
		q = q.Where(sq.Gt{"available_count": 0})
	}
	if filter.Page != 0 && filter.Size != 0 {
		q = q.Limit(uint64(filter.Size)).Offset(uint64((filter.Page - 1) * filter.Size))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return model.ListBooks{}, err
	}
	r.log.Debug("ListBooks", zap.String("query", query), zap.Any("args", args))

	var books []model.Book
	if err := sqlx.SelectContext(ctx, r.ext, &books, query, args...); err != nil {
		return model.ListBooks{}, err
	}

	return model.ListBooks{
		Paging: model.Paging{
			Page:          filter.Page,
			PageSize:      filter.Size,
			TotalElements: len(books),
		},
		Items: books,
	}, nil
}

// IncAvailable adjusts stock by delta. The where-guard keeps
// 0 <= available_count <= quantity; a guarded-out update reports
// ErrBookUnavailable so callers never observe a partial transition.
func (r *repository) IncAvailable(ctx context.Context, bookID, delta int) error {
	q := fmt.Sprintf(`update %s
	set available_count = available_count + $2
	where id = $1 and available_count + $2 between 0 and quantity`, booksTableName)

	res, err := r.ext.ExecContext(ctx, q, bookID, delta)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.ErrBookUnavailable
	}
	return nil
}

// HasLoansForBook reports whether any loan, in any state, references the
// book. Loans are never deleted, so one hit means the row is part of the
// audit trail.
func (r *repository) HasLoansForBook(ctx context.Context, bookID int) (bool, error) {
	q := fmt.Sprintf(`select exists(select 1 from %s where book_id = $1)`, loansTableName)
	var exists bool
	if err := sqlx.GetContext(ctx, r.ext, &exists, q, bookID); err != nil {
		return false, err
	}
	return exists, nil
}
