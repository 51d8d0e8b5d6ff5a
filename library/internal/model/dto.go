package model

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

type AuthRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type CreateBookRequest struct {
	Name        string  `json:"name" validate:"required"`
	Author      string  `json:"author" validate:"required"`
	Publisher   string  `json:"publisher"`
	Genre       string  `json:"genre"`
	ISBN        string  `json:"isbn"`
	Quantity    int     `json:"quantity" validate:"required,gt=0"`
	Price       float64 `json:"price" validate:"gte=0"`
	Description string  `json:"description"`
}

type UpdateBookRequest struct {
	Name        string  `json:"name" validate:"required"`
	Author      string  `json:"author" validate:"required"`
	Publisher   string  `json:"publisher"`
	Genre       string  `json:"genre"`
	ISBN        string  `json:"isbn"`
	Quantity    int     `json:"quantity" validate:"required,gt=0"`
	Price       float64 `json:"price" validate:"gte=0"`
	Description string  `json:"description"`
}

type SubmitLoanRequest struct {
	BookUid string `json:"bookUid" validate:"required"`
}

type ApproveLoanRequest struct {
	Notes string `json:"notes"`
}

type RejectLoanRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type IssueBookRequest struct {
	MemberUid string `json:"memberUid" validate:"required"`
	BookUid   string `json:"bookUid" validate:"required"`
}

type ReturnBookRequest struct {
	// Fine overrides the computed amount when set (lost or damaged copy).
	Fine *float64 `json:"fine" validate:"omitempty,gte=0"`
}

type MemberStatusRequest struct {
	Status MemberStatus `json:"status" validate:"required,oneof=active inactive"`
}

type UpdateSettingRequest struct {
	Key   string `json:"key" validate:"required,oneof=max_books_per_user issue_duration_days fine_per_day"`
	Value string `json:"value" validate:"required"`
}
