package errs

import (
	"errors"
)

var (
	ErrNotFound = errors.New("not found")

	// Business-rule violations: expected, user-facing outcomes.
	ErrBookUnavailable = errors.New("book not available")
	ErrLimitReached    = errors.New("book limit reached")
	ErrDuplicateLoan   = errors.New("member already holds this book")
	ErrWrongState      = errors.New("loan is not in a valid state for this operation")
	ErrNotOwner        = errors.New("loan does not belong to member")
	ErrMemberInactive  = errors.New("member is not active")
	ErrBookInUse       = errors.New("book has issued loans")

	// Validation.
	ErrEmptyReason = errors.New("rejection reason is required")
	ErrBadSetting  = errors.New("invalid setting value")

	// Membership.
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type ValidationErrorResponse struct {
	Message string `json:"message"`
	Errors  struct {
		AdditionalProperties string `json:"additionalProperties"`
	} `json:"errors"`
}
