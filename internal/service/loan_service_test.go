package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/ledger"
	"github.com/segyhp/loan-ledger/internal/repository"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

func setupService(t *testing.T) (*LoanService, *repository.MemoryCache) {
	t.Helper()
	l := ledger.New(repository.NewMemoryRepository())
	require.NoError(t, l.Load(context.Background()))
	cache := repository.NewMemoryCache()
	return NewLoanService(l, cache, time.Minute, zerolog.Nop()), cache
}

func createRequest(customerID string, portal bool) *domain.CreateLoanRequest {
	return &domain.CreateLoanRequest{
		CustomerID:        customerID,
		VehicleID:         "VIN-5YJ3E1EA7KF317000",
		VehicleName:       "2019 Tesla Model 3",
		Principal:         decimal.NewFromInt(45000),
		DownPayment:       decimal.NewFromInt(5000),
		AnnualRatePercent: decimal.RequireFromString("7.25"),
		TermMonths:        60,
		StartDate:         "2024-01-31",
		PortalVisible:     portal,
	}
}

func TestLoanService_CreateLoan(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	loan, err := svc.CreateLoan(ctx, createRequest("CUST-1", true))
	require.NoError(t, err)

	assert.Equal(t, domain.LoanStatusPending, loan.Status)
	assert.True(t, loan.MonthlyPayment.Equal(decimal.RequireFromString("796.77")))
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), loan.StartDate)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), loan.NextPaymentDate)
}

func TestLoanService_CreateLoanRejectsBadStartDate(t *testing.T) {
	svc, _ := setupService(t)

	req := createRequest("CUST-1", true)
	req.StartDate = "31/01/2024"

	_, err := svc.CreateLoan(context.Background(), req)
	assert.ErrorIs(t, err, customError.ErrValidation)
}

func TestLoanService_Quote(t *testing.T) {
	svc, _ := setupService(t)

	quote, err := svc.Quote(context.Background(), &domain.QuoteRequest{
		Principal:         decimal.NewFromInt(45000),
		DownPayment:       decimal.NewFromInt(5000),
		AnnualRatePercent: decimal.RequireFromString("7.25"),
		TermMonths:        60,
		StartDate:         "2024-01-31",
		IncludeSchedule:   true,
	})
	require.NoError(t, err)

	assert.True(t, quote.FinancedAmount.Equal(decimal.NewFromInt(40000)))
	assert.True(t, quote.MonthlyPayment.Equal(decimal.RequireFromString("796.77")))
	require.Len(t, quote.Schedule, 60)
	assert.True(t, quote.Schedule[59].RemainingBalance.IsZero())

	_, err = svc.Quote(context.Background(), &domain.QuoteRequest{
		Principal:   decimal.NewFromInt(1000),
		DownPayment: decimal.NewFromInt(1000),
		TermMonths:  12,
	})
	assert.ErrorIs(t, err, customError.ErrValidation)
}

func TestLoanService_QuoteUsesLoanBounds(t *testing.T) {
	svc, _ := setupService(t)

	tests := []struct {
		name    string
		request domain.QuoteRequest
	}{
		{"term beyond maximum", domain.QuoteRequest{
			Principal:         decimal.NewFromInt(20000),
			AnnualRatePercent: decimal.NewFromInt(5),
			TermMonths:        100000000,
			IncludeSchedule:   true,
		}},
		{"rate above cap", domain.QuoteRequest{
			Principal:         decimal.NewFromInt(20000),
			AnnualRatePercent: decimal.NewFromInt(250),
			TermMonths:        36,
		}},
		{"sub-cent principal", domain.QuoteRequest{
			Principal:         decimal.RequireFromString("20000.001"),
			AnnualRatePercent: decimal.NewFromInt(5),
			TermMonths:        36,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote, err := svc.Quote(context.Background(), &tt.request)
			assert.Nil(t, quote)
			assert.ErrorIs(t, err, customError.ErrValidation)
		})
	}
}

func TestLoanService_MakePayment(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	loan, err := svc.CreateLoan(ctx, createRequest("CUST-1", true))
	require.NoError(t, err)

	req := &domain.MakePaymentRequest{
		Amount:         decimal.RequireFromString("895.50"),
		Method:         domain.PaymentMethodCard,
		IdempotencyKey: "pay-1",
	}

	result, err := svc.MakePayment(ctx, loan.ID, req)
	require.NoError(t, err)
	assert.False(t, result.Replayed)
	assert.True(t, result.Payment.InterestPortion.Equal(decimal.RequireFromString("241.67")))
	assert.True(t, result.Loan.RemainingBalance.Equal(decimal.RequireFromString("39346.17")))

	again, err := svc.MakePayment(ctx, loan.ID, req)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, result.Payment.TransactionRef, again.Payment.TransactionRef)

	history, err := svc.GetHistory(ctx, loan.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestLoanService_MakePaymentErrors(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.MakePayment(ctx, uuid.New(), &domain.MakePaymentRequest{
		Amount: decimal.NewFromInt(10),
		Method: domain.PaymentMethodCash,
	})
	assert.ErrorIs(t, err, customError.ErrLoanNotFound)

	loan, err := svc.CreateLoan(ctx, createRequest("CUST-1", true))
	require.NoError(t, err)

	_, err = svc.MakePayment(ctx, loan.ID, &domain.MakePaymentRequest{
		Amount: decimal.NewFromInt(-5),
		Method: domain.PaymentMethodCash,
	})
	assert.ErrorIs(t, err, customError.ErrInvalidAmount)
}

func TestLoanService_TransitionStatus(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	loan, err := svc.CreateLoan(ctx, createRequest("CUST-1", true))
	require.NoError(t, err)

	updated, err := svc.TransitionStatus(ctx, loan.ID, domain.LoanStatusCurrent)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusCurrent, updated.Status)

	_, err = svc.TransitionStatus(ctx, loan.ID, domain.LoanStatusCancelled)
	require.NoError(t, err)

	_, err = svc.TransitionStatus(ctx, loan.ID, domain.LoanStatusCurrent)
	assert.ErrorIs(t, err, customError.ErrInvalidTransition)
}

func TestLoanService_CustomerViewsAreCached(t *testing.T) {
	svc, cache := setupService(t)
	ctx := context.Background()

	visible, err := svc.CreateLoan(ctx, createRequest("CUST-1", true))
	require.NoError(t, err)
	_, err = svc.CreateLoan(ctx, createRequest("CUST-1", false))
	require.NoError(t, err)
	_, err = svc.CreateLoan(ctx, createRequest("CUST-2", true))
	require.NoError(t, err)

	all, err := svc.LoansByCustomer(ctx, "CUST-1")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	portal, err := svc.PortalLoansByCustomer(ctx, "CUST-1")
	require.NoError(t, err)
	require.Len(t, portal, 1)
	assert.Equal(t, visible.ID, portal[0].ID)
	assert.Empty(t, portal[0].History)

	_, ok, err := cache.Get(ctx, "customer:CUST-1:portal")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.MakePayment(ctx, visible.ID, &domain.MakePaymentRequest{
		Amount: decimal.NewFromInt(500),
		Method: domain.PaymentMethodACH,
	})
	require.NoError(t, err)

	_, ok, err = cache.Get(ctx, "customer:CUST-1:portal")
	require.NoError(t, err)
	assert.False(t, ok, "payment should invalidate the customer views")

	portal, err = svc.PortalLoansByCustomer(ctx, "CUST-1")
	require.NoError(t, err)
	require.Len(t, portal, 1)
	assert.True(t, portal[0].TotalPaid.Equal(decimal.NewFromInt(500)))
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("connection refused")
}

func (failingCache) Set(context.Context, string, string, time.Duration) error {
	return errors.New("connection refused")
}

func (failingCache) Delete(context.Context, ...string) error {
	return errors.New("connection refused")
}

func TestLoanService_CacheFailuresFallBackToLedger(t *testing.T) {
	l := ledger.New(repository.NewMemoryRepository())
	require.NoError(t, l.Load(context.Background()))
	svc := NewLoanService(l, failingCache{}, time.Minute, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.CreateLoan(ctx, createRequest("CUST-1", true))
	require.NoError(t, err)

	loans, err := svc.PortalLoansByCustomer(ctx, "CUST-1")
	require.NoError(t, err)
	assert.Len(t, loans, 1)
}

func TestLoanService_GetSchedule(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	loan, err := svc.CreateLoan(ctx, createRequest("CUST-1", true))
	require.NoError(t, err)

	schedule, err := svc.GetSchedule(ctx, loan.ID)
	require.NoError(t, err)
	require.Len(t, schedule, 60)
	assert.Equal(t, loan.NextPaymentDate, schedule[0].DueDate)

	_, err = svc.GetSchedule(ctx, uuid.New())
	assert.ErrorIs(t, err, customError.ErrLoanNotFound)
}
