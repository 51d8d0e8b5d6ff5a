package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/openshelf/library-service/library/internal/errs"
	"github.com/openshelf/library-service/library/internal/model"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const loanColumns = `id, loan_uid, member_id, book_id, status, request_date, approved_by, notes, reject_reason, issue_date, due_date, return_date, fine`

func (r *repository) CreateLoan(ctx context.Context, loan model.Loan) (model.Loan, error) {
	q, args, err := qb.Insert(loansTableName).
		Columns("loan_uid", "member_id", "book_id", "status", "request_date", "approved_by", "notes", "issue_date", "due_date").
		Values(loan.LoanUid, loan.MemberID, loan.BookID, loan.Status, loan.RequestDate, loan.ApprovedBy, loan.Notes, loan.IssueDate, loan.DueDate).
		Suffix("returning " + loanColumns).
		ToSql()
	if err != nil {
		return model.Loan{}, err
	}
	var res model.Loan
	if err := sqlx.GetContext(ctx, r.ext, &res, q, args...); err != nil {
		r.log.Error("CreateLoan", zap.String("q", q), zap.Any("args", args))
		return model.Loan{}, err
	}
	return res, nil
}

func (r *repository) GetLoan(ctx context.Context, loanUid string) (model.Loan, error) {
	q := fmt.Sprintf(`
	select l.*, m.member_uid as joined_member_uid, m.email as joined_member_email,
	       b.book_uid as joined_book_uid, b.name as joined_book_name
	from %s l
	join %s m on m.id = l.member_id
	join %s b on b.id = l.book_id
	where l.loan_uid = $1`, loansTableName, membersTableName, booksTableName)

	var loan model.Loan
	if err := sqlx.GetContext(ctx, r.ext, &loan, q, loanUid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Loan{}, errs.ErrNotFound
		}
		return model.Loan{}, err
	}
	return loan, nil
}

// GetLoanForUpdate locks the loan row for the rest of the transaction so
// concurrent transitions against the same loan serialize.
func (r *repository) GetLoanForUpdate(ctx context.Context, loanUid string) (model.Loan, error) {
	q := fmt.Sprintf(`select %s from %s where loan_uid = $1 for update`, loanColumns, loansTableName)
	var loan model.Loan
	if err := sqlx.GetContext(ctx, r.ext, &loan, q, loanUid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Loan{}, errs.ErrNotFound
		}
		return model.Loan{}, err
	}
	return loan, nil
}

func (r *repository) ListLoans(ctx context.Context, filter model.LoanFilter) ([]model.Loan, error) {
	q := qb.Select("l.*",
		"m.member_uid as joined_member_uid",
		"b.book_uid as joined_book_uid",
		"b.name as joined_book_name").
		From(loansTableName + " l").
		Join(fmt.Sprintf("%s m on m.id = l.member_id", membersTableName)).
		Join(fmt.Sprintf("%s b on b.id = l.book_id", booksTableName)).
		OrderBy("l.request_date desc")

	if filter.MemberEmail != "" {
		q = q.Where(sq.Eq{"m.email": filter.MemberEmail})
	}
	if filter.Status != "" {
		q = q.Where(sq.Eq{"l.status": filter.Status})
	}
	if filter.DueBefore != nil {
		q = q.Where(sq.Lt{"l.due_date": *filter.DueBefore})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	r.log.Debug("ListLoans", zap.String("query", query), zap.Any("args", args))

	var loans []model.Loan
	if err := sqlx.SelectContext(ctx, r.ext, &loans, query, args...); err != nil {
		return nil, err
	}
	return loans, nil
}

func (r *repository) CountIssued(ctx context.Context, memberID int) (int, error) {
	q := fmt.Sprintf(`select count(*) from %s where member_id = $1 and status = $2`, loansTableName)
	var count int
	if err := sqlx.GetContext(ctx, r.ext, &count, q, memberID, model.StatusIssued); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) HasIssued(ctx context.Context, memberID, bookID int) (bool, error) {
	q := fmt.Sprintf(`select exists(select 1 from %s where member_id = $1 and book_id = $2 and status = $3)`, loansTableName)
	var exists bool
	if err := sqlx.GetContext(ctx, r.ext, &exists, q, memberID, bookID, model.StatusIssued); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *repository) SetIssued(ctx context.Context, loanID, approvedBy int, notes string, issueDate, dueDate time.Time) error {
	return r.updateLoan(ctx, loanID, map[string]interface{}{
		"status":      model.StatusIssued,
		"approved_by": approvedBy,
		"notes":       notes,
		"issue_date":  issueDate,
		"due_date":    dueDate,
	})
}

func (r *repository) SetRejected(ctx context.Context, loanID, approvedBy int, reason string) error {
	return r.updateLoan(ctx, loanID, map[string]interface{}{
		"status":        model.StatusRejected,
		"approved_by":   approvedBy,
		"reject_reason": reason,
	})
}

func (r *repository) SetCancelled(ctx context.Context, loanID int) error {
	return r.updateLoan(ctx, loanID, map[string]interface{}{
		"status": model.StatusCancelled,
	})
}

func (r *repository) SetReturned(ctx context.Context, loanID int, returnDate time.Time, fine float64) error {
	return r.updateLoan(ctx, loanID, map[string]interface{}{
		"status":      model.StatusReturned,
		"return_date": returnDate,
		"fine":        fine,
	})
}

func (r *repository) updateLoan(ctx context.Context, loanID int, set map[string]interface{}) error {
	q, args, err := qb.Update(loansTableName).
		SetMap(set).
		Where(sq.Eq{"id": loanID}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.ext.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.ErrNotFound
	}
	return nil
}
