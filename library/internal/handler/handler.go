package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/openshelf/library-service/library/internal/errs"
	"github.com/openshelf/library-service/library/internal/model"
	"github.com/openshelf/library-service/pkg/auth"
	md "github.com/openshelf/library-service/pkg/middleware"
	"github.com/openshelf/library-service/pkg/validate"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Handler struct {
	workflowSvc WorkflowService
	catalogSvc  CatalogService
	memberSvc   MemberService
	settingsSvc SettingsService
	log         *zap.Logger
}

func New(workflow WorkflowService, catalog CatalogService, members MemberService, settings SettingsService, log *zap.Logger) *Handler {
	return &Handler{
		workflowSvc: workflow,
		catalogSvc:  catalog,
		memberSvc:   members,
		settingsSvc: settings,
		log:         log,
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))

	base := e.Group("", md.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(md.RequestLoggerConfig()),
		middleware.RequestID(),
		md.NewRateLimiter(apiRPS),
	)

	api.POST("/register", h.Register)
	api.POST("/authorize", h.Authorize)

	authed := api.Group("", md.JwtAuthentication)
	authed.GET("/books", h.GetBooks)
	authed.GET("/books/:bookUid", h.GetBook)
	authed.POST("/loans", h.SubmitRequest)
	authed.GET("/loans", h.GetLoans)
	authed.GET("/loans/:loanUid", h.GetLoan)
	authed.POST("/loans/:loanUid/cancel", h.CancelRequest)

	admin := authed.Group("", md.AdminOnly)
	admin.POST("/books", h.CreateBook)
	admin.PUT("/books/:bookUid", h.UpdateBook)
	admin.DELETE("/books/:bookUid", h.DeleteBook)
	admin.POST("/loans/issue", h.IssueBook)
	admin.POST("/loans/:loanUid/approve", h.ApproveRequest)
	admin.POST("/loans/:loanUid/reject", h.RejectRequest)
	admin.POST("/loans/:loanUid/return", h.ReturnBook)
	admin.GET("/loans/overdue", h.GetOverdue)
	admin.GET("/members", h.GetMembers)
	admin.POST("/members/:memberUid/status", h.SetMemberStatus)
	admin.GET("/settings", h.GetSettings)
	admin.PUT("/settings", h.UpdateSetting)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// httpError maps the errs taxonomy onto status codes. Anything outside
// the taxonomy is an infrastructure failure and stays a 500.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrEmptyReason),
		errors.Is(err, errs.ErrBadSetting):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrNotOwner):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, errs.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, errs.ErrBookUnavailable),
		errors.Is(err, errs.ErrLimitReached),
		errors.Is(err, errs.ErrDuplicateLoan),
		errors.Is(err, errs.ErrWrongState),
		errors.Is(err, errs.ErrMemberInactive),
		errors.Is(err, errs.ErrBookInUse),
		errors.Is(err, errs.ErrEmailTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func callerEmail(c echo.Context) (string, error) {
	info, err := auth.FromContext(c.Request().Context())
	if err != nil {
		return "", err
	}
	return info.Username, nil
}

func (h *Handler) SubmitRequest(c echo.Context) error {
	var req model.SubmitLoanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	email, err := callerEmail(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	loan, err := h.workflowSvc.SubmitRequest(c.Request().Context(), email, req.BookUid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, loan)
}

func (h *Handler) ApproveRequest(c echo.Context) error {
	loanUid := c.Param("loanUid")
	if loanUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "loanUid is empty")
	}
	var req model.ApproveLoanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	email, err := callerEmail(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	loan, err := h.workflowSvc.ApproveRequest(c.Request().Context(), loanUid, email, req.Notes)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, loan)
}

func (h *Handler) RejectRequest(c echo.Context) error {
	loanUid := c.Param("loanUid")
	if loanUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "loanUid is empty")
	}
	var req model.RejectLoanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	email, err := callerEmail(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	loan, err := h.workflowSvc.RejectRequest(c.Request().Context(), loanUid, email, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, loan)
}

func (h *Handler) CancelRequest(c echo.Context) error {
	loanUid := c.Param("loanUid")
	if loanUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "loanUid is empty")
	}
	email, err := callerEmail(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	loan, err := h.workflowSvc.CancelRequest(c.Request().Context(), loanUid, email)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, loan)
}

func (h *Handler) IssueBook(c echo.Context) error {
	var req model.IssueBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	email, err := callerEmail(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	loan, err := h.workflowSvc.IssueBook(c.Request().Context(), req.MemberUid, req.BookUid, email)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, loan)
}

func (h *Handler) ReturnBook(c echo.Context) error {
	loanUid := c.Param("loanUid")
	if loanUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "loanUid is empty")
	}
	var req model.ReturnBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	loan, err := h.workflowSvc.ReturnBook(c.Request().Context(), loanUid, req.Fine)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, loan)
}

// GetLoan returns one loan. Students may only read their own records;
// admins may read any.
func (h *Handler) GetLoan(c echo.Context) error {
	info, err := auth.FromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	loan, err := h.workflowSvc.GetLoan(c.Request().Context(), c.Param("loanUid"))
	if err != nil {
		return httpError(err)
	}
	if info.Role != auth.RoleAdmin && loan.MemberEmail != info.Username {
		return httpError(errs.ErrNotOwner)
	}
	return c.JSON(http.StatusOK, loan)
}

// GetLoans lists the caller's own loans; admins see all and may filter
// by member email and status.
func (h *Handler) GetLoans(c echo.Context) error {
	info, err := auth.FromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	filter := model.LoanFilter{
		MemberEmail: info.Username,
		Status:      model.Status(c.QueryParam("status")),
	}
	if info.Role == auth.RoleAdmin {
		filter.MemberEmail = c.QueryParam("memberEmail")
	}
	loans, err := h.workflowSvc.ListLoans(c.Request().Context(), filter)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, loans)
}

func (h *Handler) GetOverdue(c echo.Context) error {
	loans, err := h.workflowSvc.ListOverdue(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, loans)
}
