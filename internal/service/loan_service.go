package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/ledger"
	"github.com/segyhp/loan-ledger/internal/repository"
	"github.com/segyhp/loan-ledger/pkg/amortization"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

const dateLayout = "2006-01-02"

type LoanService struct {
	ledger  *ledger.Ledger
	cache   repository.CacheRepository
	viewTTL time.Duration
	log     zerolog.Logger
}

// NewLoanService wires the ledger to the customer view cache. cache may be nil.
func NewLoanService(
	l *ledger.Ledger,
	cache repository.CacheRepository,
	viewTTL time.Duration,
	log zerolog.Logger,
) *LoanService {
	return &LoanService{
		ledger:  l,
		cache:   cache,
		viewTTL: viewTTL,
		log:     log,
	}
}

// Quote prices a set of terms without opening a loan
func (s *LoanService) Quote(ctx context.Context, request *domain.QuoteRequest) (*domain.QuoteResponse, error) {
	if err := s.ledger.ValidatePricing(request.Principal, request.DownPayment, request.AnnualRatePercent, request.TermMonths); err != nil {
		return nil, err
	}

	quote := amortization.NewQuote(request.Principal, request.DownPayment, request.AnnualRatePercent, request.TermMonths)
	response := &domain.QuoteResponse{Quote: quote}

	if request.IncludeSchedule {
		start, err := parseStartDate(request.StartDate, time.Now())
		if err != nil {
			return nil, err
		}
		response.Schedule = amortization.Schedule(quote.FinancedAmount, request.AnnualRatePercent, request.TermMonths, start)
	}

	return response, nil
}

// CreateLoan opens a new loan from the request terms
func (s *LoanService) CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.Loan, error) {
	start, err := parseStartDate(request.StartDate, time.Time{})
	if err != nil {
		return nil, err
	}

	loan, err := s.ledger.CreateLoan(ctx, domain.LoanTerms{
		CustomerID:        request.CustomerID,
		VehicleID:         request.VehicleID,
		VehicleName:       request.VehicleName,
		Principal:         request.Principal,
		DownPayment:       request.DownPayment,
		AnnualRatePercent: request.AnnualRatePercent,
		TermMonths:        request.TermMonths,
		StartDate:         start,
		PortalVisible:     request.PortalVisible,
		CustomFields:      request.CustomFields,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("loan_id", loan.ID.String()).
		Str("customer_id", loan.CustomerID).
		Str("financed", loan.RemainingBalance.StringFixed(2)).
		Str("monthly_payment", loan.MonthlyPayment.StringFixed(2)).
		Msg("loan created")

	s.invalidateCustomer(ctx, loan.CustomerID)
	return loan, nil
}

// GetLoan returns a loan with its history
func (s *LoanService) GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	return s.ledger.Get(loanID)
}

// ListLoans returns every loan without history
func (s *LoanService) ListLoans(ctx context.Context) ([]*domain.Loan, error) {
	return s.ledger.List(), nil
}

// GetHistory returns the loan's ledger entries in order
func (s *LoanService) GetHistory(ctx context.Context, loanID uuid.UUID) ([]domain.HistoryEntry, error) {
	return s.ledger.History(loanID)
}

// GetSchedule returns the amortization table implied by the loan's terms
func (s *LoanService) GetSchedule(ctx context.Context, loanID uuid.UUID) ([]amortization.ScheduleEntry, error) {
	loan, err := s.ledger.Get(loanID)
	if err != nil {
		return nil, err
	}
	return loan.Schedule(), nil
}

// MakePayment applies a payment to a loan
func (s *LoanService) MakePayment(ctx context.Context, loanID uuid.UUID, request *domain.MakePaymentRequest) (*domain.PaymentResult, error) {
	result, err := s.ledger.ApplyPayment(ctx, domain.PaymentCommand{
		LoanID:         loanID,
		Amount:         request.Amount,
		Method:         request.Method,
		IdempotencyKey: request.IdempotencyKey,
	})
	if err != nil {
		s.log.Warn().Err(err).
			Str("loan_id", loanID.String()).
			Str("amount", request.Amount.String()).
			Msg("payment rejected")
		return nil, err
	}

	if result.Replayed {
		s.log.Info().
			Str("loan_id", loanID.String()).
			Str("idempotency_key", request.IdempotencyKey).
			Str("transaction_ref", result.Payment.TransactionRef).
			Msg("duplicate payment ignored")
		return result, nil
	}

	s.log.Info().
		Str("loan_id", loanID.String()).
		Str("transaction_ref", result.Payment.TransactionRef).
		Str("amount", result.Payment.Amount.StringFixed(2)).
		Str("principal", result.Payment.PrincipalPortion.StringFixed(2)).
		Str("interest", result.Payment.InterestPortion.StringFixed(2)).
		Str("balance", result.Loan.RemainingBalance.StringFixed(2)).
		Str("status", string(result.Loan.Status)).
		Msg("payment applied")

	s.invalidateCustomer(ctx, result.Loan.CustomerID)
	return result, nil
}

// TransitionStatus moves a loan to another status
func (s *LoanService) TransitionStatus(ctx context.Context, loanID uuid.UUID, status domain.LoanStatus) (*domain.Loan, error) {
	loan, err := s.ledger.ApplyStatusTransition(ctx, loanID, status)
	if err != nil {
		return nil, err
	}

	last := loan.History[len(loan.History)-1]
	s.log.Info().
		Str("loan_id", loanID.String()).
		Str("from", string(last.PreviousStatus)).
		Str("to", string(loan.Status)).
		Msg("loan status changed")

	s.invalidateCustomer(ctx, loan.CustomerID)
	return loan, nil
}

// TransitionIf moves a loan to the status decide picks from its committed state.
// No transition and no cache invalidation happen when decide declines.
func (s *LoanService) TransitionIf(ctx context.Context, loanID uuid.UUID, decide ledger.StatusDecision) (*domain.Loan, bool, error) {
	loan, changed, err := s.ledger.TransitionIf(ctx, loanID, decide)
	if err != nil || !changed {
		return loan, changed, err
	}

	last := loan.History[len(loan.History)-1]
	s.log.Info().
		Str("loan_id", loanID.String()).
		Str("from", string(last.PreviousStatus)).
		Str("to", string(loan.Status)).
		Msg("loan status changed")

	s.invalidateCustomer(ctx, loan.CustomerID)
	return loan, true, nil
}

// LoansByCustomer returns a customer's loans, served from cache when possible
func (s *LoanService) LoansByCustomer(ctx context.Context, customerID string) ([]*domain.Loan, error) {
	return s.cachedView(ctx, customerLoansKey(customerID), func() []*domain.Loan {
		return s.ledger.LoansByCustomer(customerID)
	})
}

// PortalLoansByCustomer returns the loans a customer may see in the portal
func (s *LoanService) PortalLoansByCustomer(ctx context.Context, customerID string) ([]*domain.Loan, error) {
	return s.cachedView(ctx, portalLoansKey(customerID), func() []*domain.Loan {
		return s.ledger.PortalLoansByCustomer(customerID)
	})
}

// Cache failures are logged and the view is built from the ledger instead.
func (s *LoanService) cachedView(ctx context.Context, key string, build func() []*domain.Loan) ([]*domain.Loan, error) {
	if s.cache != nil {
		raw, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.Warn().Err(customError.WrapCacheError(err)).Str("key", key).Msg("cache read failed")
		} else if ok {
			var loans []*domain.Loan
			if err := json.Unmarshal([]byte(raw), &loans); err == nil {
				return loans, nil
			}
			s.log.Warn().Str("key", key).Msg("discarding undecodable cache entry")
		}
	}

	loans := build()

	if s.cache != nil {
		raw, err := json.Marshal(loans)
		if err != nil {
			return nil, fmt.Errorf("encode customer view: %w", err)
		}
		if err := s.cache.Set(ctx, key, string(raw), s.viewTTL); err != nil {
			s.log.Warn().Err(customError.WrapCacheError(err)).Str("key", key).Msg("cache write failed")
		}
	}

	return loans, nil
}

func (s *LoanService) invalidateCustomer(ctx context.Context, customerID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, customerLoansKey(customerID), portalLoansKey(customerID)); err != nil {
		s.log.Warn().Err(customError.WrapCacheError(err)).Str("customer_id", customerID).Msg("cache invalidation failed")
	}
}

func customerLoansKey(customerID string) string {
	return "customer:" + customerID + ":loans"
}

func portalLoansKey(customerID string) string {
	return "customer:" + customerID + ":portal"
}

func parseStartDate(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	start, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, customError.WrapValidation("start_date must be formatted as YYYY-MM-DD")
	}
	return start, nil
}
