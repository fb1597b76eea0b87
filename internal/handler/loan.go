package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/pkg/amortization"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/response"
)

const idempotencyHeader = "Idempotency-Key"

// LoanService is what the HTTP layer needs from the loan service
type LoanService interface {
	Quote(ctx context.Context, request *domain.QuoteRequest) (*domain.QuoteResponse, error)
	CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.Loan, error)
	GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error)
	ListLoans(ctx context.Context) ([]*domain.Loan, error)
	GetHistory(ctx context.Context, loanID uuid.UUID) ([]domain.HistoryEntry, error)
	GetSchedule(ctx context.Context, loanID uuid.UUID) ([]amortization.ScheduleEntry, error)
	MakePayment(ctx context.Context, loanID uuid.UUID, request *domain.MakePaymentRequest) (*domain.PaymentResult, error)
	TransitionStatus(ctx context.Context, loanID uuid.UUID, status domain.LoanStatus) (*domain.Loan, error)
	LoansByCustomer(ctx context.Context, customerID string) ([]*domain.Loan, error)
	PortalLoansByCustomer(ctx context.Context, customerID string) ([]*domain.Loan, error)
}

type LoanHandler struct {
	service   LoanService
	validator *validator.Validate
	log       zerolog.Logger
}

func NewLoanHandler(service LoanService, log zerolog.Logger) *LoanHandler {
	return &LoanHandler{
		service:   service,
		validator: newValidator(),
		log:       log,
	}
}

// newValidator registers decimal.Decimal as a string so the decimal_gt and
// decimal_gte tags can compare it against their parameter.
func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("decimal_gt", decimalCompare(func(value, bound decimal.Decimal) bool {
		return value.GreaterThan(bound)
	}))
	_ = v.RegisterValidation("decimal_gte", decimalCompare(func(value, bound decimal.Decimal) bool {
		return value.GreaterThanOrEqual(bound)
	}))

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

func decimalCompare(cmp func(value, bound decimal.Decimal) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value, err := decimal.NewFromString(fl.Field().String())
		if err != nil {
			return false
		}
		bound, err := decimal.NewFromString(fl.Param())
		if err != nil {
			return false
		}
		return cmp(value, bound)
	}
}

// Quote handles POST /api/v1/quotes
func (h *LoanHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req domain.QuoteRequest
	if !h.decode(w, r, &req) {
		return
	}

	quote, err := h.service.Quote(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Success(w, quote)
}

// CreateLoan handles POST /api/v1/loans
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateLoanRequest
	if !h.decode(w, r, &req) {
		return
	}

	loan, err := h.service.CreateLoan(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Created(w, loan)
}

// ListLoans handles GET /api/v1/loans
func (h *LoanHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.service.ListLoans(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Success(w, loans)
}

// GetLoan handles GET /api/v1/loans/{loanId}
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loanID, ok := h.loanID(w, r)
	if !ok {
		return
	}

	loan, err := h.service.GetLoan(r.Context(), loanID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Success(w, loan)
}

// GetHistory handles GET /api/v1/loans/{loanId}/history
func (h *LoanHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	loanID, ok := h.loanID(w, r)
	if !ok {
		return
	}

	history, err := h.service.GetHistory(r.Context(), loanID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Success(w, domain.HistoryResponse{LoanID: loanID, History: history})
}

// GetSchedule handles GET /api/v1/loans/{loanId}/schedule
func (h *LoanHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	loanID, ok := h.loanID(w, r)
	if !ok {
		return
	}

	schedule, err := h.service.GetSchedule(r.Context(), loanID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Success(w, domain.ScheduleResponse{LoanID: loanID, Schedule: schedule})
}

// MakePayment handles POST /api/v1/loans/{loanId}/payments.
// The idempotency key may come from the body or the Idempotency-Key header.
func (h *LoanHandler) MakePayment(w http.ResponseWriter, r *http.Request) {
	loanID, ok := h.loanID(w, r)
	if !ok {
		return
	}

	var req domain.MakePaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get(idempotencyHeader)
	}

	result, err := h.service.MakePayment(r.Context(), loanID, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if result.Replayed {
		response.Success(w, result)
		return
	}
	response.Created(w, result)
}

// TransitionStatus handles POST /api/v1/loans/{loanId}/status
func (h *LoanHandler) TransitionStatus(w http.ResponseWriter, r *http.Request) {
	loanID, ok := h.loanID(w, r)
	if !ok {
		return
	}

	var req domain.StatusTransitionRequest
	if !h.decode(w, r, &req) {
		return
	}

	loan, err := h.service.TransitionStatus(r.Context(), loanID, req.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Success(w, loan)
}

// CustomerLoans handles GET /api/v1/customers/{customerId}/loans
func (h *LoanHandler) CustomerLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.service.LoansByCustomer(r.Context(), mux.Vars(r)["customerId"])
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Success(w, loans)
}

// PortalLoans handles GET /api/v1/customers/{customerId}/portal/loans
func (h *LoanHandler) PortalLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.service.PortalLoansByCustomer(r.Context(), mux.Vars(r)["customerId"])
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Success(w, loans)
}

func (h *LoanHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.ErrorWithCode(w, http.StatusBadRequest, customError.ErrCodeValidation, "Invalid request body", err)
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		response.ErrorWithCode(w, http.StatusBadRequest, customError.ErrCodeValidation, "Validation failed", err)
		return false
	}

	return true
}

// An id that is not a UUID cannot name any loan.
func (h *LoanHandler) loanID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := mux.Vars(r)["loanId"]
	loanID, err := uuid.Parse(raw)
	if err != nil {
		h.writeError(w, customError.WrapLoanNotFound(raw))
		return uuid.Nil, false
	}
	return loanID, true
}

func (h *LoanHandler) writeError(w http.ResponseWriter, err error) {
	var be *customError.BusinessError
	if !errors.As(err, &be) {
		h.log.Error().Err(err).Msg("unhandled error")
		response.InternalServerError(w, "Internal server error", nil)
		return
	}

	status := http.StatusInternalServerError
	switch be.Code {
	case customError.ErrCodeValidation, customError.ErrCodeInvalidAmount:
		status = http.StatusBadRequest
	case customError.ErrCodeLoanNotFound:
		status = http.StatusNotFound
	case customError.ErrCodeInvalidLoanState, customError.ErrCodeInvalidTransition:
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("code", be.Code).Msg("request failed")
	}

	response.ErrorWithCode(w, status, be.Code, be.Message, nil)
}
