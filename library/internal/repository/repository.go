package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/openshelf/library-service/library/internal/model"
	"go.uber.org/zap"
)

//go:generate go run github.com/golang/mock/mockgen -source=repository.go -destination=mocks/mock.go

type Repository interface {
	// WithTx runs fn against a transaction-scoped Repository. Every loan
	// transition (precondition checks + loan mutation + stock mutation)
	// executes inside exactly one such unit of work.
	WithTx(ctx context.Context, fn func(r Repository) error) error

	CreateBook(ctx context.Context, book model.Book) (model.Book, error)
	UpdateBook(ctx context.Context, book model.Book) (model.Book, error)
	DeleteBook(ctx context.Context, bookUid string) error
	GetBook(ctx context.Context, bookUid string) (model.Book, error)
	GetBookForUpdate(ctx context.Context, bookID int) (model.Book, error)
	ListBooks(ctx context.Context, filter model.BookFilter) (model.ListBooks, error)
	IncAvailable(ctx context.Context, bookID, delta int) error
	HasLoansForBook(ctx context.Context, bookID int) (bool, error)

	CreateMember(ctx context.Context, m model.Member) (model.Member, error)
	GetMember(ctx context.Context, memberUid string) (model.Member, error)
	GetMemberByID(ctx context.Context, id int) (model.Member, error)
	GetMemberByEmail(ctx context.Context, email string) (model.Member, error)
	ListMembers(ctx context.Context) ([]model.Member, error)
	SetMemberStatus(ctx context.Context, memberUid string, status model.MemberStatus) error

	CreateLoan(ctx context.Context, loan model.Loan) (model.Loan, error)
	GetLoan(ctx context.Context, loanUid string) (model.Loan, error)
	GetLoanForUpdate(ctx context.Context, loanUid string) (model.Loan, error)
	ListLoans(ctx context.Context, filter model.LoanFilter) ([]model.Loan, error)
	CountIssued(ctx context.Context, memberID int) (int, error)
	HasIssued(ctx context.Context, memberID, bookID int) (bool, error)
	SetIssued(ctx context.Context, loanID, approvedBy int, notes string, issueDate, dueDate time.Time) error
	SetRejected(ctx context.Context, loanID, approvedBy int, reason string) error
	SetCancelled(ctx context.Context, loanID int) error
	SetReturned(ctx context.Context, loanID int, returnDate time.Time, fine float64) error

	GetSettings(ctx context.Context) (map[string]string, error)
	SetSetting(ctx context.Context, key, value string) error
}

type repository struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
	log *zap.Logger
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		ext: db,
		log: log.Named("repo"),
	}, nil
}

const (
	booksTableName    = `books`
	membersTableName  = `members`
	loansTableName    = `loans`
	settingsTableName = `settings`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (r *repository) WithTx(ctx context.Context, fn func(r Repository) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	// Rollback after a successful commit is a no-op; the deferred call
	// also covers a panic inside fn.
	defer func() { _ = tx.Rollback() }()
	txRepo := &repository{db: r.db, ext: tx, log: r.log}
	if err := fn(txRepo); err != nil {
		return err
	}
	return tx.Commit()
}
