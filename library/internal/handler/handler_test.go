package handler_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openshelf/library-service/library/internal/errs"
	"github.com/openshelf/library-service/library/internal/handler"
	"github.com/openshelf/library-service/library/internal/model"
	"github.com/openshelf/library-service/pkg/auth"
	"github.com/openshelf/library-service/pkg/validate"

	service_mocks "github.com/openshelf/library-service/library/internal/handler/mocks"
)

// asUser injects an authenticated caller the way JwtAuthentication
// would, without minting a real token per test.
func asUser(username, role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := auth.SetAuthContext(req.Context(), username, role)
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

type testEnv struct {
	workflow *service_mocks.MockWorkflowService
	catalog  *service_mocks.MockCatalogService
	members  *service_mocks.MockMemberService
	settings *service_mocks.MockSettingsService
	handler  *handler.Handler
	echo     *echo.Echo
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	env := testEnv{
		workflow: service_mocks.NewMockWorkflowService(ctrl),
		catalog:  service_mocks.NewMockCatalogService(ctrl),
		members:  service_mocks.NewMockMemberService(ctrl),
		settings: service_mocks.NewMockSettingsService(ctrl),
	}
	env.handler = handler.New(env.workflow, env.catalog, env.members, env.settings, zap.NewNop())
	env.echo = echo.New()
	env.echo.Validator = validate.NewCustomValidator()
	return env
}

func TestHandler_SubmitRequest(t *testing.T) {
	t.Parallel()
	requestDate := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		body         string
		mockBehavior func(w *service_mocks.MockWorkflowService)
		expectedCode int
		expectedBody string
	}{
		{
			name: "ok",
			body: `{"bookUid":"b-1"}`,
			mockBehavior: func(w *service_mocks.MockWorkflowService) {
				w.EXPECT().
					SubmitRequest(gomock.Any(), "reader@lib.io", "b-1").
					Return(model.Loan{
						LoanUid:     "l-1",
						Status:      model.StatusPending,
						RequestDate: requestDate,
						MemberUid:   "m-1",
						BookUid:     "b-1",
						BookName:    "Clean Architecture",
					}, nil)
			},
			expectedCode: http.StatusCreated,
			expectedBody: `{"loanUid":"l-1","status":"PENDING","requestDate":"2024-03-01T10:00:00Z","fine":0,"memberUid":"m-1","bookUid":"b-1","bookName":"Clean Architecture"}`,
		},
		{
			name:         "err. bookUid required",
			body:         `{}`,
			mockBehavior: func(w *service_mocks.MockWorkflowService) {},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "err. member blocked",
			body: `{"bookUid":"b-1"}`,
			mockBehavior: func(w *service_mocks.MockWorkflowService) {
				w.EXPECT().
					SubmitRequest(gomock.Any(), "reader@lib.io", "b-1").
					Return(model.Loan{}, errs.ErrMemberInactive)
			},
			expectedCode: http.StatusConflict,
			expectedBody: `{"message":"member is not active"}`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t)
			env.echo.POST("/loans", env.handler.SubmitRequest, asUser("reader@lib.io", auth.RoleStudent))
			tt.mockBehavior(env.workflow)

			r := httptest.NewRequest(http.MethodPost, "/loans", strings.NewReader(tt.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()
			env.echo.ServeHTTP(w, r)

			require.Equal(t, tt.expectedCode, w.Code)
			if tt.expectedBody != "" {
				require.Equal(t, tt.expectedBody, strings.Trim(w.Body.String(), "\n"))
			}
		})
	}
}

func TestHandler_RejectRequest(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		loanUid      string
		body         string
		mockBehavior func(w *service_mocks.MockWorkflowService)
		expectedCode int
		expectedBody string
	}{
		{
			name:    "ok",
			loanUid: "l-1",
			body:    `{"reason":"damaged copy"}`,
			mockBehavior: func(w *service_mocks.MockWorkflowService) {
				w.EXPECT().
					RejectRequest(gomock.Any(), "l-1", "admin@lib.io", "damaged copy").
					Return(model.Loan{
						LoanUid:      "l-1",
						Status:       model.StatusRejected,
						RejectReason: "damaged copy",
					}, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"loanUid":"l-1","status":"REJECTED","requestDate":"0001-01-01T00:00:00Z","rejectReason":"damaged copy","fine":0}`,
		},
		{
			name:         "err. reason required",
			loanUid:      "l-1",
			body:         `{}`,
			mockBehavior: func(w *service_mocks.MockWorkflowService) {},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:    "err. already issued",
			loanUid: "l-1",
			body:    `{"reason":"late"}`,
			mockBehavior: func(w *service_mocks.MockWorkflowService) {
				w.EXPECT().
					RejectRequest(gomock.Any(), "l-1", "admin@lib.io", "late").
					Return(model.Loan{}, errs.ErrWrongState)
			},
			expectedCode: http.StatusConflict,
			expectedBody: `{"message":"loan is not in a valid state for this operation"}`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t)
			env.echo.POST("/loans/:loanUid/reject", env.handler.RejectRequest, asUser("admin@lib.io", auth.RoleAdmin))
			tt.mockBehavior(env.workflow)

			r := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/loans/%s/reject", tt.loanUid), strings.NewReader(tt.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()
			env.echo.ServeHTTP(w, r)

			require.Equal(t, tt.expectedCode, w.Code)
			if tt.expectedBody != "" {
				require.Equal(t, tt.expectedBody, strings.Trim(w.Body.String(), "\n"))
			}
		})
	}
}

func TestHandler_ReturnBook(t *testing.T) {
	t.Parallel()
	waived := 0.0
	returnDate := time.Date(2024, time.March, 18, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		body         string
		mockBehavior func(w *service_mocks.MockWorkflowService)
		expectedCode int
		expectedBody string
	}{
		{
			name: "ok. computed fine",
			body: `{}`,
			mockBehavior: func(w *service_mocks.MockWorkflowService) {
				w.EXPECT().
					ReturnBook(gomock.Any(), "l-1", nil).
					Return(model.Loan{
						LoanUid:    "l-1",
						Status:     model.StatusReturned,
						ReturnDate: &returnDate,
						Fine:       6,
					}, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"loanUid":"l-1","status":"RETURNED","requestDate":"0001-01-01T00:00:00Z","returnDate":"2024-03-18T12:00:00Z","fine":6}`,
		},
		{
			name: "ok. fine waived",
			body: `{"fine":0}`,
			mockBehavior: func(w *service_mocks.MockWorkflowService) {
				w.EXPECT().
					ReturnBook(gomock.Any(), "l-1", &waived).
					Return(model.Loan{
						LoanUid:    "l-1",
						Status:     model.StatusReturned,
						ReturnDate: &returnDate,
						Fine:       0,
					}, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"loanUid":"l-1","status":"RETURNED","requestDate":"0001-01-01T00:00:00Z","returnDate":"2024-03-18T12:00:00Z","fine":0}`,
		},
		{
			name: "err. not issued",
			body: `{}`,
			mockBehavior: func(w *service_mocks.MockWorkflowService) {
				w.EXPECT().
					ReturnBook(gomock.Any(), "l-1", nil).
					Return(model.Loan{}, errs.ErrWrongState)
			},
			expectedCode: http.StatusConflict,
			expectedBody: `{"message":"loan is not in a valid state for this operation"}`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t)
			env.echo.POST("/loans/:loanUid/return", env.handler.ReturnBook, asUser("admin@lib.io", auth.RoleAdmin))
			tt.mockBehavior(env.workflow)

			r := httptest.NewRequest(http.MethodPost, "/loans/l-1/return", strings.NewReader(tt.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()
			env.echo.ServeHTTP(w, r)

			require.Equal(t, tt.expectedCode, w.Code)
			if tt.expectedBody != "" {
				require.Equal(t, tt.expectedBody, strings.Trim(w.Body.String(), "\n"))
			}
		})
	}
}

func TestHandler_GetLoan(t *testing.T) {
	t.Parallel()
	loan := model.Loan{
		LoanUid:     "l-1",
		Status:      model.StatusPending,
		MemberUid:   "m-1",
		MemberEmail: "reader@lib.io",
		BookUid:     "b-1",
		BookName:    "Clean Architecture",
	}

	tests := []struct {
		name         string
		caller       string
		role         string
		mockBehavior func(w *service_mocks.MockWorkflowService)
		expectedCode int
		expectedBody string
	}{
		{
			name:   "ok. owner",
			caller: "reader@lib.io",
			role:   auth.RoleStudent,
			mockBehavior: func(w *service_mocks.MockWorkflowService) {
				w.EXPECT().GetLoan(gomock.Any(), "l-1").Return(loan, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"loanUid":"l-1","status":"PENDING","requestDate":"0001-01-01T00:00:00Z","fine":0,"memberUid":"m-1","bookUid":"b-1","bookName":"Clean Architecture"}`,
		},
		{
			name:   "ok. admin reads another member's loan",
			caller: "admin@lib.io",
			role:   auth.RoleAdmin,
			mockBehavior: func(w *service_mocks.MockWorkflowService) {
				w.EXPECT().GetLoan(gomock.Any(), "l-1").Return(loan, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"loanUid":"l-1","status":"PENDING","requestDate":"0001-01-01T00:00:00Z","fine":0,"memberUid":"m-1","bookUid":"b-1","bookName":"Clean Architecture"}`,
		},
		{
			name:   "err. student reads another member's loan",
			caller: "other@lib.io",
			role:   auth.RoleStudent,
			mockBehavior: func(w *service_mocks.MockWorkflowService) {
				w.EXPECT().GetLoan(gomock.Any(), "l-1").Return(loan, nil)
			},
			expectedCode: http.StatusForbidden,
			expectedBody: `{"message":"loan does not belong to member"}`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t)
			env.echo.GET("/loans/:loanUid", env.handler.GetLoan, asUser(tt.caller, tt.role))
			tt.mockBehavior(env.workflow)

			r := httptest.NewRequest(http.MethodGet, "/loans/l-1", http.NoBody)
			w := httptest.NewRecorder()
			env.echo.ServeHTTP(w, r)

			require.Equal(t, tt.expectedCode, w.Code)
			require.Equal(t, tt.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_GetBooks(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		query        string
		mockBehavior func(c *service_mocks.MockCatalogService)
		expectedCode int
		expectedBody string
	}{
		{
			name:  "ok",
			query: "?page=1&size=10&search=go",
			mockBehavior: func(c *service_mocks.MockCatalogService) {
				c.EXPECT().
					ListBooks(gomock.Any(), model.BookFilter{Search: "go", Page: 1, Size: 10}).
					Return(model.ListBooks{
						Paging: model.Paging{Page: 1, PageSize: 10, TotalElements: 1},
						Items: []model.Book{
							{
								BookUid:        "b-1",
								Name:           "The Go Programming Language",
								Author:         "Donovan, Kernighan",
								Quantity:       3,
								AvailableCount: 2,
							},
						},
					}, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"page":1,"pageSize":10,"totalElements":1,"items":[{"bookUid":"b-1","name":"The Go Programming Language","author":"Donovan, Kernighan","publisher":"","genre":"","isbn":"","quantity":3,"availableCount":2,"price":0,"description":""}]}`,
		},
		{
			name:  "err. internal",
			query: "",
			mockBehavior: func(c *service_mocks.MockCatalogService) {
				c.EXPECT().
					ListBooks(gomock.Any(), model.BookFilter{}).
					Return(model.ListBooks{}, errors.New("db internal"))
			},
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"message":"db internal"}`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t)
			env.echo.GET("/books", env.handler.GetBooks, asUser("reader@lib.io", auth.RoleStudent))
			tt.mockBehavior(env.catalog)

			r := httptest.NewRequest(http.MethodGet, "/books"+tt.query, http.NoBody)
			w := httptest.NewRecorder()
			env.echo.ServeHTTP(w, r)

			require.Equal(t, tt.expectedCode, w.Code)
			require.Equal(t, tt.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_Authorize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		body         string
		mockBehavior func(m *service_mocks.MockMemberService)
		expectedCode int
		expectedBody string
	}{
		{
			name: "ok",
			body: `{"email":"reader@lib.io","password":"secret1"}`,
			mockBehavior: func(m *service_mocks.MockMemberService) {
				m.EXPECT().
					Authorize(gomock.Any(), model.AuthRequest{Email: "reader@lib.io", Password: "secret1"}).
					Return(model.AuthResponse{AccessToken: "token", ExpiresIn: 86400}, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"access_token":"token","expires_in":86400}`,
		},
		{
			name: "err. wrong password",
			body: `{"email":"reader@lib.io","password":"wrong12"}`,
			mockBehavior: func(m *service_mocks.MockMemberService) {
				m.EXPECT().
					Authorize(gomock.Any(), model.AuthRequest{Email: "reader@lib.io", Password: "wrong12"}).
					Return(model.AuthResponse{}, errs.ErrInvalidCredentials)
			},
			expectedCode: http.StatusUnauthorized,
			expectedBody: `{"message":"invalid credentials"}`,
		},
		{
			name:         "err. not an email",
			body:         `{"email":"reader","password":"secret1"}`,
			mockBehavior: func(m *service_mocks.MockMemberService) {},
			expectedCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t)
			env.echo.POST("/authorize", env.handler.Authorize)
			tt.mockBehavior(env.members)

			r := httptest.NewRequest(http.MethodPost, "/authorize", strings.NewReader(tt.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()
			env.echo.ServeHTTP(w, r)

			require.Equal(t, tt.expectedCode, w.Code)
			if tt.expectedBody != "" {
				require.Equal(t, tt.expectedBody, strings.Trim(w.Body.String(), "\n"))
			}
		})
	}
}

func TestHandler_UpdateSetting(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		body         string
		mockBehavior func(s *service_mocks.MockSettingsService)
		expectedCode int
		expectedBody string
	}{
		{
			name: "ok",
			body: `{"key":"fine_per_day","value":"3.5"}`,
			mockBehavior: func(s *service_mocks.MockSettingsService) {
				s.EXPECT().UpdateSetting(gomock.Any(), "fine_per_day", "3.5").Return(nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name:         "err. unknown key",
			body:         `{"key":"loan_sharking","value":"1"}`,
			mockBehavior: func(s *service_mocks.MockSettingsService) {},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "err. bad value",
			body: `{"key":"max_books_per_user","value":"-1"}`,
			mockBehavior: func(s *service_mocks.MockSettingsService) {
				s.EXPECT().UpdateSetting(gomock.Any(), "max_books_per_user", "-1").Return(errs.ErrBadSetting)
			},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"message":"invalid setting value"}`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t)
			env.echo.PUT("/settings", env.handler.UpdateSetting, asUser("admin@lib.io", auth.RoleAdmin))
			tt.mockBehavior(env.settings)

			r := httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader(tt.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()
			env.echo.ServeHTTP(w, r)

			require.Equal(t, tt.expectedCode, w.Code)
			if tt.expectedBody != "" {
				require.Equal(t, tt.expectedBody, strings.Trim(w.Body.String(), "\n"))
			}
		})
	}
}
