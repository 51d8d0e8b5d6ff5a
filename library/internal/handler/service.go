package handler

import (
	"context"

	"github.com/openshelf/library-service/library/internal/model"
	"github.com/openshelf/library-service/library/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type WorkflowService interface {
	SubmitRequest(ctx context.Context, memberEmail, bookUid string) (model.Loan, error)
	ApproveRequest(ctx context.Context, loanUid, adminEmail, notes string) (model.Loan, error)
	RejectRequest(ctx context.Context, loanUid, adminEmail, reason string) (model.Loan, error)
	CancelRequest(ctx context.Context, loanUid, memberEmail string) (model.Loan, error)
	IssueBook(ctx context.Context, memberUid, bookUid, adminEmail string) (model.Loan, error)
	ReturnBook(ctx context.Context, loanUid string, overrideFine *float64) (model.Loan, error)
	GetLoan(ctx context.Context, loanUid string) (model.Loan, error)
	ListLoans(ctx context.Context, filter model.LoanFilter) ([]model.Loan, error)
	ListOverdue(ctx context.Context) ([]model.Loan, error)
}

type CatalogService interface {
	CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error)
	UpdateBook(ctx context.Context, bookUid string, req model.UpdateBookRequest) (model.Book, error)
	DeleteBook(ctx context.Context, bookUid string) error
	GetBook(ctx context.Context, bookUid string) (model.Book, error)
	ListBooks(ctx context.Context, filter model.BookFilter) (model.ListBooks, error)
}

type MemberService interface {
	Register(ctx context.Context, req model.RegisterRequest) (model.Member, error)
	Authorize(ctx context.Context, req model.AuthRequest) (model.AuthResponse, error)
	GetMember(ctx context.Context, memberUid string) (model.Member, error)
	ListMembers(ctx context.Context) ([]model.Member, error)
	SetMemberStatus(ctx context.Context, memberUid string, status model.MemberStatus) error
}

type SettingsService interface {
	Settings(ctx context.Context) (map[string]string, error)
	UpdateSetting(ctx context.Context, key, value string) error
}

var (
	_ WorkflowService = (*service.Service)(nil)
	_ CatalogService  = (*service.Service)(nil)
	_ MemberService   = (*service.Service)(nil)
	_ SettingsService = (*service.Service)(nil)
)
