package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/openshelf/library-service/library/internal/errs"
	"github.com/openshelf/library-service/library/internal/model"
	"github.com/openshelf/library-service/library/internal/repository"
	"github.com/openshelf/library-service/pkg/kafka"
	"go.uber.org/zap"
)

// The loan lifecycle. Every transition runs inside one repository
// transaction: precondition checks, the loan mutation and the stock
// mutation either all commit or none do. Business-rule failures come
// back as errs sentinels; anything else is an infrastructure error
// surfaced verbatim.

// SubmitRequest opens a PENDING loan for an active member.
func (s *Service) SubmitRequest(ctx context.Context, memberEmail, bookUid string) (model.Loan, error) {
	var loan model.Loan
	err := s.repo.WithTx(ctx, func(r repository.Repository) error {
		member, err := r.GetMemberByEmail(ctx, memberEmail)
		if err != nil {
			return err
		}
		if member.Status != model.MemberActive {
			return errs.ErrMemberInactive
		}
		book, err := r.GetBook(ctx, bookUid)
		if err != nil {
			return err
		}
		created, err := r.CreateLoan(ctx, model.Loan{
			LoanUid:     uuid.NewString(),
			MemberID:    member.ID,
			BookID:      book.ID,
			Status:      model.StatusPending,
			RequestDate: s.now().UTC(),
		})
		if err != nil {
			return err
		}
		loan = created
		loan.MemberUid = member.MemberUid
		loan.BookUid = book.BookUid
		loan.BookName = book.Name
		return nil
	})
	if err != nil {
		return model.Loan{}, err
	}
	s.log.Info("loan requested", zap.String("loanUid", loan.LoanUid), zap.String("bookUid", loan.BookUid))
	s.publish(kafka.EventLoanRequested, loan)
	return loan, nil
}

// ApproveRequest turns a PENDING loan into ISSUED. Approval and issuance
// are a single step: stock is decremented and the due date set here.
func (s *Service) ApproveRequest(ctx context.Context, loanUid, adminEmail, notes string) (model.Loan, error) {
	var loan model.Loan
	err := s.repo.WithTx(ctx, func(r repository.Repository) error {
		cur, err := r.GetLoanForUpdate(ctx, loanUid)
		if err != nil {
			return err
		}
		if !cur.Status.CanTransition(model.StatusIssued) {
			return errs.ErrWrongState
		}
		// The member may have been deactivated since submitting.
		member, err := r.GetMemberByID(ctx, cur.MemberID)
		if err != nil {
			return err
		}
		if member.Status != model.MemberActive {
			return errs.ErrMemberInactive
		}
		book, err := r.GetBookForUpdate(ctx, cur.BookID)
		if err != nil {
			return err
		}
		if book.AvailableCount <= 0 {
			return errs.ErrBookUnavailable
		}
		pol, err := s.policy.Current(ctx)
		if err != nil {
			return err
		}
		issued, err := r.CountIssued(ctx, cur.MemberID)
		if err != nil {
			return err
		}
		if issued >= pol.MaxBooksPerUser {
			return errs.ErrLimitReached
		}
		dup, err := r.HasIssued(ctx, cur.MemberID, cur.BookID)
		if err != nil {
			return err
		}
		if dup {
			return errs.ErrDuplicateLoan
		}
		admin, err := r.GetMemberByEmail(ctx, adminEmail)
		if err != nil {
			return err
		}
		issueDate := s.now().UTC()
		dueDate := issueDate.AddDate(0, 0, pol.IssueDurationDays)
		if err := r.IncAvailable(ctx, book.ID, -1); err != nil {
			return err
		}
		if err := r.SetIssued(ctx, cur.ID, admin.ID, notes, issueDate, dueDate); err != nil {
			return err
		}
		loan, err = r.GetLoan(ctx, loanUid)
		return err
	})
	if err != nil {
		return model.Loan{}, err
	}
	s.log.Info("loan issued", zap.String("loanUid", loan.LoanUid), zap.Timep("dueDate", loan.DueDate))
	s.publish(kafka.EventLoanIssued, loan)
	return loan, nil
}

// RejectRequest moves a PENDING loan to REJECTED. The reason is required
// and validated before any state is touched. Never touches stock.
func (s *Service) RejectRequest(ctx context.Context, loanUid, adminEmail, reason string) (model.Loan, error) {
	if strings.TrimSpace(reason) == "" {
		return model.Loan{}, errs.ErrEmptyReason
	}
	var loan model.Loan
	err := s.repo.WithTx(ctx, func(r repository.Repository) error {
		cur, err := r.GetLoanForUpdate(ctx, loanUid)
		if err != nil {
			return err
		}
		if !cur.Status.CanTransition(model.StatusRejected) {
			return errs.ErrWrongState
		}
		admin, err := r.GetMemberByEmail(ctx, adminEmail)
		if err != nil {
			return err
		}
		if err := r.SetRejected(ctx, cur.ID, admin.ID, reason); err != nil {
			return err
		}
		loan, err = r.GetLoan(ctx, loanUid)
		return err
	})
	if err != nil {
		return model.Loan{}, err
	}
	s.publish(kafka.EventLoanRejected, loan)
	return loan, nil
}

// CancelRequest lets the owning member withdraw a loan while it is still
// PENDING. Never touches stock.
func (s *Service) CancelRequest(ctx context.Context, loanUid, memberEmail string) (model.Loan, error) {
	var loan model.Loan
	err := s.repo.WithTx(ctx, func(r repository.Repository) error {
		cur, err := r.GetLoanForUpdate(ctx, loanUid)
		if err != nil {
			return err
		}
		member, err := r.GetMemberByEmail(ctx, memberEmail)
		if err != nil {
			return err
		}
		if cur.MemberID != member.ID {
			return errs.ErrNotOwner
		}
		if !cur.Status.CanTransition(model.StatusCancelled) {
			return errs.ErrWrongState
		}
		if err := r.SetCancelled(ctx, cur.ID); err != nil {
			return err
		}
		loan, err = r.GetLoan(ctx, loanUid)
		return err
	})
	if err != nil {
		return model.Loan{}, err
	}
	s.publish(kafka.EventLoanCancelled, loan)
	return loan, nil
}

// IssueBook is the direct admin path: the loan is created already ISSUED,
// under the same preconditions as ApproveRequest.
func (s *Service) IssueBook(ctx context.Context, memberUid, bookUid, adminEmail string) (model.Loan, error) {
	var loan model.Loan
	err := s.repo.WithTx(ctx, func(r repository.Repository) error {
		member, err := r.GetMember(ctx, memberUid)
		if err != nil {
			return err
		}
		if member.Status != model.MemberActive {
			return errs.ErrMemberInactive
		}
		book, err := r.GetBook(ctx, bookUid)
		if err != nil {
			return err
		}
		if book, err = r.GetBookForUpdate(ctx, book.ID); err != nil {
			return err
		}
		if book.AvailableCount <= 0 {
			return errs.ErrBookUnavailable
		}
		pol, err := s.policy.Current(ctx)
		if err != nil {
			return err
		}
		issued, err := r.CountIssued(ctx, member.ID)
		if err != nil {
			return err
		}
		if issued >= pol.MaxBooksPerUser {
			return errs.ErrLimitReached
		}
		dup, err := r.HasIssued(ctx, member.ID, book.ID)
		if err != nil {
			return err
		}
		if dup {
			return errs.ErrDuplicateLoan
		}
		admin, err := r.GetMemberByEmail(ctx, adminEmail)
		if err != nil {
			return err
		}
		issueDate := s.now().UTC()
		dueDate := issueDate.AddDate(0, 0, pol.IssueDurationDays)
		if err := r.IncAvailable(ctx, book.ID, -1); err != nil {
			return err
		}
		created, err := r.CreateLoan(ctx, model.Loan{
			LoanUid:     uuid.NewString(),
			MemberID:    member.ID,
			BookID:      book.ID,
			Status:      model.StatusIssued,
			RequestDate: issueDate,
			ApprovedBy:  &admin.ID,
			IssueDate:   &issueDate,
			DueDate:     &dueDate,
		})
		if err != nil {
			return err
		}
		loan = created
		loan.MemberUid = member.MemberUid
		loan.BookUid = book.BookUid
		loan.BookName = book.Name
		return nil
	})
	if err != nil {
		return model.Loan{}, err
	}
	s.log.Info("book issued directly", zap.String("loanUid", loan.LoanUid), zap.String("memberUid", memberUid))
	s.publish(kafka.EventLoanIssued, loan)
	return loan, nil
}

// ReturnBook closes an ISSUED loan: records the return date, persists the
// fine (computed unless overridden) and puts the copy back in stock.
func (s *Service) ReturnBook(ctx context.Context, loanUid string, overrideFine *float64) (model.Loan, error) {
	var loan model.Loan
	err := s.repo.WithTx(ctx, func(r repository.Repository) error {
		cur, err := r.GetLoanForUpdate(ctx, loanUid)
		if err != nil {
			return err
		}
		if !cur.Status.CanTransition(model.StatusReturned) {
			return errs.ErrWrongState
		}
		pol, err := s.policy.Current(ctx)
		if err != nil {
			return err
		}
		returnDate := s.now().UTC()
		var fine float64
		if cur.DueDate != nil {
			fine = calcFine(*cur.DueDate, returnDate, pol.FinePerDay)
		}
		if overrideFine != nil {
			fine = *overrideFine
		}
		if err := r.SetReturned(ctx, cur.ID, returnDate, fine); err != nil {
			return err
		}
		if err := r.IncAvailable(ctx, cur.BookID, 1); err != nil {
			return err
		}
		loan, err = r.GetLoan(ctx, loanUid)
		return err
	})
	if err != nil {
		return model.Loan{}, err
	}
	s.log.Info("loan returned", zap.String("loanUid", loan.LoanUid), zap.Float64("fine", loan.Fine))
	s.publish(kafka.EventLoanReturned, loan)
	return loan, nil
}

func (s *Service) GetLoan(ctx context.Context, loanUid string) (model.Loan, error) {
	return s.repo.GetLoan(ctx, loanUid)
}

func (s *Service) ListLoans(ctx context.Context, filter model.LoanFilter) ([]model.Loan, error) {
	return s.repo.ListLoans(ctx, filter)
}

// ListOverdue reports ISSUED loans past their due date. Overdue is a
// derived condition; the previewed fine is computed on demand and only
// persisted at return time.
func (s *Service) ListOverdue(ctx context.Context) ([]model.Loan, error) {
	now := s.now().UTC()
	// Day granularity: a loan due earlier today is not yet overdue.
	today := utcDate(now)
	loans, err := s.repo.ListLoans(ctx, model.LoanFilter{
		Status:    model.StatusIssued,
		DueBefore: &today,
	})
	if err != nil {
		return nil, err
	}
	pol, err := s.policy.Current(ctx)
	if err != nil {
		return nil, err
	}
	for i := range loans {
		if loans[i].DueDate != nil {
			loans[i].Fine = calcFine(*loans[i].DueDate, now, pol.FinePerDay)
		}
	}
	return loans, nil
}
