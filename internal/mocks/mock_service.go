package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/pkg/amortization"
)

type MockLoanService struct {
	mock.Mock
}

// NewMockLoanService creates a new mock loan service instance
func NewMockLoanService() *MockLoanService {
	return &MockLoanService{}
}

func (m *MockLoanService) Quote(ctx context.Context, request *domain.QuoteRequest) (*domain.QuoteResponse, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QuoteResponse), args.Error(1)
}

func (m *MockLoanService) CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.Loan, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanService) GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanService) ListLoans(ctx context.Context) ([]*domain.Loan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Loan), args.Error(1)
}

func (m *MockLoanService) GetHistory(ctx context.Context, loanID uuid.UUID) ([]domain.HistoryEntry, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.HistoryEntry), args.Error(1)
}

func (m *MockLoanService) GetSchedule(ctx context.Context, loanID uuid.UUID) ([]amortization.ScheduleEntry, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]amortization.ScheduleEntry), args.Error(1)
}

func (m *MockLoanService) MakePayment(ctx context.Context, loanID uuid.UUID, request *domain.MakePaymentRequest) (*domain.PaymentResult, error) {
	args := m.Called(ctx, loanID, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentResult), args.Error(1)
}

func (m *MockLoanService) TransitionStatus(ctx context.Context, loanID uuid.UUID, status domain.LoanStatus) (*domain.Loan, error) {
	args := m.Called(ctx, loanID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanService) LoansByCustomer(ctx context.Context, customerID string) ([]*domain.Loan, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Loan), args.Error(1)
}

func (m *MockLoanService) PortalLoansByCustomer(ctx context.Context, customerID string) ([]*domain.Loan, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Loan), args.Error(1)
}
