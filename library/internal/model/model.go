package model

import (
	"time"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusIssued    Status = "ISSUED"
	StatusRejected  Status = "REJECTED"
	StatusReturned  Status = "RETURNED"
	StatusCancelled Status = "CANCELLED"
)

// CanTransition is the single source of truth for the loan lifecycle.
// REJECTED, RETURNED and CANCELLED are terminal.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusIssued || to == StatusRejected || to == StatusCancelled
	case StatusIssued:
		return to == StatusReturned
	default:
		return false
	}
}

func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusReturned || s == StatusCancelled
}

type MemberStatus string

const (
	MemberActive   MemberStatus = "active"
	MemberInactive MemberStatus = "inactive"
)

type Book struct {
	ID             int     `json:"-" db:"id"`
	BookUid        string  `json:"bookUid" db:"book_uid"`
	Name           string  `json:"name" db:"name"`
	Author         string  `json:"author" db:"author"`
	Publisher      string  `json:"publisher" db:"publisher"`
	Genre          string  `json:"genre" db:"genre"`
	ISBN           string  `json:"isbn" db:"isbn"`
	Quantity       int     `json:"quantity" db:"quantity"`
	AvailableCount int     `json:"availableCount" db:"available_count"`
	Price          float64 `json:"price" db:"price"`
	Description    string  `json:"description" db:"description"`
}

type Member struct {
	ID           int          `json:"-" db:"id"`
	MemberUid    string       `json:"memberUid" db:"member_uid"`
	Name         string       `json:"name" db:"name"`
	Email        string       `json:"email" db:"email"`
	PasswordHash string       `json:"-" db:"password_hash"`
	Role         string       `json:"role" db:"role"`
	Status       MemberStatus `json:"status" db:"status"`
	Phone        string       `json:"phone" db:"phone"`
	Address      string       `json:"address" db:"address"`
	CreatedAt    time.Time    `json:"createdAt" db:"created_at"`
}

type Loan struct {
	ID           int        `json:"-" db:"id"`
	LoanUid      string     `json:"loanUid" db:"loan_uid"`
	MemberID     int        `json:"-" db:"member_id"`
	BookID       int        `json:"-" db:"book_id"`
	Status       Status     `json:"status" db:"status"`
	RequestDate  time.Time  `json:"requestDate" db:"request_date"`
	ApprovedBy   *int       `json:"-" db:"approved_by"`
	Notes        string     `json:"notes,omitempty" db:"notes"`
	RejectReason string     `json:"rejectReason,omitempty" db:"reject_reason"`
	IssueDate    *time.Time `json:"issueDate,omitempty" db:"issue_date"`
	DueDate      *time.Time `json:"dueDate,omitempty" db:"due_date"`
	ReturnDate   *time.Time `json:"returnDate,omitempty" db:"return_date"`
	Fine         float64    `json:"fine" db:"fine"`

	// Joined columns, present on read paths only.
	MemberUid   string `json:"memberUid,omitempty" db:"joined_member_uid"`
	MemberEmail string `json:"-" db:"joined_member_email"`
	BookUid     string `json:"bookUid,omitempty" db:"joined_book_uid"`
	BookName    string `json:"bookName,omitempty" db:"joined_book_name"`
}

// Policy holds the workflow settings read from the settings store at the
// moment of each transition. Defaults apply when a key is absent.
type Policy struct {
	MaxBooksPerUser   int
	IssueDurationDays int
	FinePerDay        float64
}

const (
	SettingMaxBooksPerUser   = "max_books_per_user"
	SettingIssueDurationDays = "issue_duration_days"
	SettingFinePerDay        = "fine_per_day"
)

type Paging struct {
	Page          int `json:"page"`
	PageSize      int `json:"pageSize"`
	TotalElements int `json:"totalElements"`
}

type ListBooks struct {
	Paging
	Items []Book `json:"items"`
}

type LoanFilter struct {
	MemberEmail string
	Status      Status
	DueBefore   *time.Time
}

type BookFilter struct {
	Search  string
	Genre   string
	ShowAll bool
	Page    int
	Size    int
}
