package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openshelf/library-service/library/internal/errs"
	"github.com/openshelf/library-service/library/internal/model"
	"github.com/openshelf/library-service/library/internal/repository"
	repo_mocks "github.com/openshelf/library-service/library/internal/repository/mocks"
	"github.com/openshelf/library-service/library/internal/service"
)

type policyStub struct {
	pol model.Policy
}

func (p policyStub) Current(_ context.Context) (model.Policy, error) {
	return p.pol, nil
}

var defaultPolicy = model.Policy{
	MaxBooksPerUser:   3,
	IssueDurationDays: 14,
	FinePerDay:        2.0,
}

// expectTx makes WithTx run its callback against the same mock, so a test
// scripts the whole transaction on one set of expectations.
func expectTx(repo *repo_mocks.MockRepository) {
	repo.EXPECT().
		WithTx(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, fn func(repository.Repository) error) error {
			return fn(repo)
		})
}

func newService(t *testing.T, repo *repo_mocks.MockRepository, now time.Time) *service.Service {
	t.Helper()
	return service.NewService(repo, policyStub{pol: defaultPolicy}, zap.NewNop(),
		service.WithNowFunc(func() time.Time { return now }))
}

func TestService_SubmitRequest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
	member := model.Member{ID: 3, MemberUid: "m-uid", Email: "reader@lib.io", Status: model.MemberActive}
	book := model.Book{ID: 5, BookUid: "b-uid", Name: "The Go Programming Language", AvailableCount: 2}

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := repo_mocks.NewMockRepository(ctrl)
		expectTx(repo)
		repo.EXPECT().GetMemberByEmail(ctx, member.Email).Return(member, nil)
		repo.EXPECT().GetBook(ctx, book.BookUid).Return(book, nil)
		repo.EXPECT().CreateLoan(ctx, gomock.Any()).
			DoAndReturn(func(_ context.Context, loan model.Loan) (model.Loan, error) {
				require.NotEmpty(t, loan.LoanUid)
				require.Equal(t, member.ID, loan.MemberID)
				require.Equal(t, book.ID, loan.BookID)
				require.Equal(t, model.StatusPending, loan.Status)
				require.Equal(t, now, loan.RequestDate)
				loan.ID = 7
				return loan, nil
			})

		svc := newService(t, repo, now)
		loan, err := svc.SubmitRequest(ctx, member.Email, book.BookUid)
		require.NoError(t, err)
		require.Equal(t, model.StatusPending, loan.Status)
		require.Equal(t, member.MemberUid, loan.MemberUid)
		require.Equal(t, book.BookUid, loan.BookUid)
		require.Equal(t, book.Name, loan.BookName)
	})

	t.Run("inactive member", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := repo_mocks.NewMockRepository(ctrl)
		expectTx(repo)
		blocked := member
		blocked.Status = model.MemberInactive
		repo.EXPECT().GetMemberByEmail(ctx, member.Email).Return(blocked, nil)

		svc := newService(t, repo, now)
		_, err := svc.SubmitRequest(ctx, member.Email, book.BookUid)
		require.ErrorIs(t, err, errs.ErrMemberInactive)
	})

	t.Run("book not found", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := repo_mocks.NewMockRepository(ctrl)
		expectTx(repo)
		repo.EXPECT().GetMemberByEmail(ctx, member.Email).Return(member, nil)
		repo.EXPECT().GetBook(ctx, "nope").Return(model.Book{}, errs.ErrNotFound)

		svc := newService(t, repo, now)
		_, err := svc.SubmitRequest(ctx, member.Email, "nope")
		require.ErrorIs(t, err, errs.ErrNotFound)
	})
}

func TestService_ApproveRequest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
	dueDate := now.AddDate(0, 0, defaultPolicy.IssueDurationDays)
	pending := model.Loan{ID: 7, LoanUid: "l-uid", MemberID: 3, BookID: 5, Status: model.StatusPending}
	owner := model.Member{ID: 3, Email: "reader@lib.io", Status: model.MemberActive}
	admin := model.Member{ID: 1, Email: "admin@lib.io", Role: "admin"}

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := repo_mocks.NewMockRepository(ctrl)
		expectTx(repo)
		repo.EXPECT().GetLoanForUpdate(ctx, pending.LoanUid).Return(pending, nil)
		repo.EXPECT().GetMemberByID(ctx, pending.MemberID).Return(owner, nil)
		repo.EXPECT().GetBookForUpdate(ctx, pending.BookID).Return(model.Book{ID: 5, AvailableCount: 1}, nil)
		repo.EXPECT().CountIssued(ctx, pending.MemberID).Return(2, nil)
		repo.EXPECT().HasIssued(ctx, pending.MemberID, pending.BookID).Return(false, nil)
		repo.EXPECT().GetMemberByEmail(ctx, admin.Email).Return(admin, nil)
		repo.EXPECT().IncAvailable(ctx, pending.BookID, -1).Return(nil)
		repo.EXPECT().SetIssued(ctx, pending.ID, admin.ID, "ok", now, dueDate).Return(nil)
		issued := pending
		issued.Status = model.StatusIssued
		issued.IssueDate = &now
		issued.DueDate = &dueDate
		repo.EXPECT().GetLoan(ctx, pending.LoanUid).Return(issued, nil)

		svc := newService(t, repo, now)
		loan, err := svc.ApproveRequest(ctx, pending.LoanUid, admin.Email, "ok")
		require.NoError(t, err)
		require.Equal(t, model.StatusIssued, loan.Status)
		require.Equal(t, dueDate, *loan.DueDate)
	})

	t.Run("not pending", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := repo_mocks.NewMockRepository(ctrl)
		expectTx(repo)
		rejected := pending
		rejected.Status = model.StatusRejected
		repo.EXPECT().GetLoanForUpdate(ctx, pending.LoanUid).Return(rejected, nil)

		svc := newService(t, repo, now)
		_, err := svc.ApproveRequest(ctx, pending.LoanUid, admin.Email, "")
		require.ErrorIs(t, err, errs.ErrWrongState)
	})

	t.Run("member deactivated since requesting", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := repo_mocks.NewMockRepository(ctrl)
		expectTx(repo)
		blocked := owner
		blocked.Status = model.MemberInactive
		repo.EXPECT().GetLoanForUpdate(ctx, pending.LoanUid).Return(pending, nil)
		repo.EXPECT().GetMemberByID(ctx, pending.MemberID).Return(blocked, nil)

		svc := newService(t, repo, now)
		_, err := svc.ApproveRequest(ctx, pending.LoanUid, admin.Email, "")
		require.ErrorIs(t, err, errs.ErrMemberInactive)
	})

	t.Run("no copies", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := repo_mocks.NewMockRepository(ctrl)
		expectTx(repo)
		repo.EXPECT().GetLoanForUpdate(ctx, pending.LoanUid).Return(pending, nil)
		repo.EXPECT().GetMemberByID(ctx, pending.MemberID).Return(owner, nil)
		repo.EXPECT().GetBookForUpdate(ctx, pending.BookID).Return(model.Book{ID: 5, AvailableCount: 0}, nil)

		svc := newService(t, repo, now)
		_, err := svc.ApproveRequest(ctx, pending.LoanUid, admin.Email, "")
		require.ErrorIs(t, err, errs.ErrBookUnavailable)
	})

	t.Run("member at limit", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := repo_mocks.NewMockRepository(ctrl)
		expectTx(repo)
		repo.EXPECT().GetLoanForUpdate(ctx, pending.LoanUid).Return(pending, nil)
		repo.EXPECT().GetMemberByID(ctx, pending.MemberID).Return(owner, nil)
		repo.EXPECT().GetBookForUpdate(ctx, pending.BookID).Return(model.Book{ID: 5, AvailableCount: 1}, nil)
		repo.EXPECT().CountIssued(ctx, pending.MemberID).Return(defaultPolicy.MaxBooksPerUser, nil)

		svc := newService(t, repo, now)
		_, err := svc.ApproveRequest(ctx, pending.LoanUid, admin.Email, "")
		require.ErrorIs(t, err, errs.ErrLimitReached)
	})

	t.Run("already holds this book", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := repo_mocks.NewMockRepository(ctrl)
		expectTx(repo)
		repo.EXPECT().GetLoanForUpdate(ctx, pending.LoanUid).Return(pending, nil)
		repo.EXPECT().GetMemberByID(ctx, pending.MemberID).Return(owner, nil)
		repo.EXPECT().GetBookForUpdate(ctx, pending.BookID).Return(model.Book{ID: 5, AvailableCount: 1}, nil)
		repo.EXPECT().CountIssued(ctx, pending.MemberID).Return(0, nil)
		repo.EXPECT().HasIssued(ctx, pending.MemberID, pending.BookID).Return(true, nil)

		svc := newService(t, repo, now)
		_, err := svc.ApproveRequest(ctx, pending.LoanUid, admin.Email, "")
		require.ErrorIs(t, err, errs.ErrDuplicateLoan)
	})
}

func TestService_RejectRequest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
	pending := model.Loan{ID: 7, LoanUid: "l-uid", MemberID: 3, BookID: 5, Status: model.StatusPending}
	admin := model.Member{ID: 1, Email: "admin@lib.io", Role: "admin"}

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := repo_mocks.NewMockRepository(ctrl)
		expectTx(repo)
		repo.EXPECT().GetLoanForUpdate(ctx, pending.LoanUid).Return(pending, nil)
		repo.EXPECT().GetMemberByEmail(ctx, admin.Email).Return(admin, nil)
		repo.EXPECT().SetRejected(ctx, pending.ID, admin.ID, "damaged copy").Return(nil)
		rejected := pending
		rejected.Status = model.StatusRejected
		rejected.RejectReason = "damaged copy"
		repo.EXPECT().GetLoan(ctx, pending.LoanUid).Return(rejected, nil)

		svc := newService(t, repo, now)
		loan, err := svc.RejectRequest(ctx, pending.LoanUid, admin.Email, "damaged copy")
		require.NoError(t, err)
		require.Equal(t, model.StatusRejected, loan.Status)
	})

	t.Run("reason required", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := repo_mocks.NewMockRepository(ctrl)

		svc := newService(t, repo, now)
		_, err := svc.RejectRequest(ctx, pending.LoanUid, admin.Email, "   ")
		require.ErrorIs(t, err, errs.ErrEmptyReason)
	})

	t.Run("already issued", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := repo_mocks.NewMockRepository(ctrl)
		expectTx(repo)
		issued := pending
		issued.Status = model.StatusIssued
		repo.EXPECT().GetLoanForUpdate(ctx, pending.LoanUid).Return(issued, nil)

		svc := newService(t, repo, now)
		_, err := svc.RejectRequest(ctx, pending.LoanUid, admin.Email, "late")
		require.ErrorIs(t, err, errs.ErrWrongState)
	})
}

func TestService_CancelRequest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
	pending := model.Loan{ID: 7, LoanUid: "l-uid", MemberID: 3, BookID: 5, Status: model.StatusPending}
	owner := model.Member{ID: 3, Email: "reader@lib.io"}

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := repo_mocks.NewMockRepository(ctrl)
		expectTx(repo)
		repo.EXPECT().GetLoanForUpdate(ctx, pending.LoanUid).Return(pending, nil)
		repo.EXPECT().GetMemberByEmail(ctx, owner.Email).Return(owner, nil)
		repo.EXPECT().SetCancelled(ctx, pending.ID).Return(nil)
		cancelled := pending
		cancelled.Status = model.StatusCancelled
		repo.EXPECT().GetLoan(ctx, pending.LoanUid).Return(cancelled, nil)

		svc := newService(t, repo, now)
		loan, err := svc.CancelRequest(ctx, pending.LoanUid, owner.Email)
		require.NoError(t, err)
		require.Equal(t, model.StatusCancelled, loan.Status)
	})

	t.Run("not the owner", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := repo_mocks.NewMockRepository(ctrl)
		expectTx(repo)
		repo.EXPECT().GetLoanForUpdate(ctx, pending.LoanUid).Return(pending, nil)
		repo.EXPECT().GetMemberByEmail(ctx, "other@lib.io").Return(model.Member{ID: 99}, nil)

		svc := newService(t, repo, now)
		_, err := svc.CancelRequest(ctx, pending.LoanUid, "other@lib.io")
		require.ErrorIs(t, err, errs.ErrNotOwner)
	})

	t.Run("already issued", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := repo_mocks.NewMockRepository(ctrl)
		expectTx(repo)
		issued := pending
		issued.Status = model.StatusIssued
		repo.EXPECT().GetLoanForUpdate(ctx, pending.LoanUid).Return(issued, nil)
		repo.EXPECT().GetMemberByEmail(ctx, owner.Email).Return(owner, nil)

		svc := newService(t, repo, now)
		_, err := svc.CancelRequest(ctx, pending.LoanUid, owner.Email)
		require.ErrorIs(t, err, errs.ErrWrongState)
	})
}

func TestService_IssueBook(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
	dueDate := now.AddDate(0, 0, defaultPolicy.IssueDurationDays)
	member := model.Member{ID: 3, MemberUid: "m-uid", Status: model.MemberActive}
	book := model.Book{ID: 5, BookUid: "b-uid", Name: "The Go Programming Language", AvailableCount: 1}
	admin := model.Member{ID: 1, Email: "admin@lib.io"}

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repo := repo_mocks.NewMockRepository(ctrl)
	expectTx(repo)
	repo.EXPECT().GetMember(ctx, member.MemberUid).Return(member, nil)
	repo.EXPECT().GetBook(ctx, book.BookUid).Return(book, nil)
	repo.EXPECT().GetBookForUpdate(ctx, book.ID).Return(book, nil)
	repo.EXPECT().CountIssued(ctx, member.ID).Return(0, nil)
	repo.EXPECT().HasIssued(ctx, member.ID, book.ID).Return(false, nil)
	repo.EXPECT().GetMemberByEmail(ctx, admin.Email).Return(admin, nil)
	repo.EXPECT().IncAvailable(ctx, book.ID, -1).Return(nil)
	repo.EXPECT().CreateLoan(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, loan model.Loan) (model.Loan, error) {
			require.Equal(t, model.StatusIssued, loan.Status)
			require.Equal(t, admin.ID, *loan.ApprovedBy)
			require.Equal(t, now, *loan.IssueDate)
			require.Equal(t, dueDate, *loan.DueDate)
			loan.ID = 7
			return loan, nil
		})

	svc := newService(t, repo, now)
	loan, err := svc.IssueBook(ctx, member.MemberUid, book.BookUid, admin.Email)
	require.NoError(t, err)
	require.Equal(t, model.StatusIssued, loan.Status)
	require.Equal(t, book.BookUid, loan.BookUid)
}

func TestService_ReturnBook(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	issueDate := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
	dueDate := issueDate.AddDate(0, 0, 14)
	issued := model.Loan{
		ID: 7, LoanUid: "l-uid", MemberID: 3, BookID: 5,
		Status: model.StatusIssued, IssueDate: &issueDate, DueDate: &dueDate,
	}

	returnTest := func(t *testing.T, now time.Time, override *float64, wantFine float64) {
		t.Helper()
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := repo_mocks.NewMockRepository(ctrl)
		expectTx(repo)
		repo.EXPECT().GetLoanForUpdate(ctx, issued.LoanUid).Return(issued, nil)
		repo.EXPECT().SetReturned(ctx, issued.ID, now, wantFine).Return(nil)
		repo.EXPECT().IncAvailable(ctx, issued.BookID, 1).Return(nil)
		returned := issued
		returned.Status = model.StatusReturned
		returned.ReturnDate = &now
		returned.Fine = wantFine
		repo.EXPECT().GetLoan(ctx, issued.LoanUid).Return(returned, nil)

		svc := newService(t, repo, now)
		loan, err := svc.ReturnBook(ctx, issued.LoanUid, override)
		require.NoError(t, err)
		require.Equal(t, model.StatusReturned, loan.Status)
		require.Equal(t, wantFine, loan.Fine)
	}

	t.Run("on time, no fine", func(t *testing.T) {
		t.Parallel()
		returnTest(t, dueDate.AddDate(0, 0, -1), nil, 0)
	})

	t.Run("three days late", func(t *testing.T) {
		t.Parallel()
		returnTest(t, dueDate.AddDate(0, 0, 3), nil, 6.0)
	})

	t.Run("fine waived", func(t *testing.T) {
		t.Parallel()
		waived := 0.0
		returnTest(t, dueDate.AddDate(0, 0, 3), &waived, 0)
	})

	t.Run("already returned", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := repo_mocks.NewMockRepository(ctrl)
		expectTx(repo)
		done := issued
		done.Status = model.StatusReturned
		repo.EXPECT().GetLoanForUpdate(ctx, issued.LoanUid).Return(done, nil)

		svc := newService(t, repo, dueDate)
		_, err := svc.ReturnBook(ctx, issued.LoanUid, nil)
		require.ErrorIs(t, err, errs.ErrWrongState)
	})

	t.Run("missing due date charges nothing", func(t *testing.T) {
		t.Parallel()
		now := dueDate.AddDate(0, 0, 3)
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := repo_mocks.NewMockRepository(ctrl)
		expectTx(repo)
		noDue := issued
		noDue.DueDate = nil
		repo.EXPECT().GetLoanForUpdate(ctx, issued.LoanUid).Return(noDue, nil)
		repo.EXPECT().SetReturned(ctx, issued.ID, now, 0.0).Return(nil)
		repo.EXPECT().IncAvailable(ctx, issued.BookID, 1).Return(nil)
		returned := noDue
		returned.Status = model.StatusReturned
		returned.ReturnDate = &now
		repo.EXPECT().GetLoan(ctx, issued.LoanUid).Return(returned, nil)

		svc := newService(t, repo, now)
		loan, err := svc.ReturnBook(ctx, issued.LoanUid, nil)
		require.NoError(t, err)
		require.Equal(t, 0.0, loan.Fine)
	})
}

func TestService_DeleteBook(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
	book := model.Book{ID: 5, BookUid: "b-uid", Name: "The Go Programming Language"}

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := repo_mocks.NewMockRepository(ctrl)
		expectTx(repo)
		repo.EXPECT().GetBook(ctx, book.BookUid).Return(book, nil)
		repo.EXPECT().HasLoansForBook(ctx, book.ID).Return(false, nil)
		repo.EXPECT().DeleteBook(ctx, book.BookUid).Return(nil)

		svc := newService(t, repo, now)
		require.NoError(t, svc.DeleteBook(ctx, book.BookUid))
	})

	t.Run("book with loan history", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := repo_mocks.NewMockRepository(ctrl)
		expectTx(repo)
		repo.EXPECT().GetBook(ctx, book.BookUid).Return(book, nil)
		repo.EXPECT().HasLoansForBook(ctx, book.ID).Return(true, nil)

		svc := newService(t, repo, now)
		require.ErrorIs(t, svc.DeleteBook(ctx, book.BookUid), errs.ErrBookInUse)
	})
}

func TestService_ListOverdue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2024, time.March, 20, 15, 30, 0, 0, time.UTC)
	today := time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC)
	due := time.Date(2024, time.March, 17, 0, 0, 0, 0, time.UTC)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repo := repo_mocks.NewMockRepository(ctrl)
	repo.EXPECT().
		ListLoans(ctx, model.LoanFilter{Status: model.StatusIssued, DueBefore: &today}).
		Return([]model.Loan{
			{LoanUid: "l-1", Status: model.StatusIssued, DueDate: &due},
		}, nil)

	svc := newService(t, repo, now)
	loans, err := svc.ListOverdue(ctx)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	require.Equal(t, 6.0, loans[0].Fine) // 3 days at 2.0 per day
}
