package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/repository"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

var testNow = time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestLedger(t *testing.T) (*Ledger, *repository.MemoryRepository) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	l := New(repo, WithClock(func() time.Time { return testNow }))
	require.NoError(t, l.Load(context.Background()))
	return l, repo
}

func terms(principal, down, rate string, months int) domain.LoanTerms {
	return domain.LoanTerms{
		CustomerID:        "CUST-1",
		VehicleID:         "VIN-1HGCM82633A004352",
		VehicleName:       "2021 Honda Accord",
		Principal:         d(principal),
		DownPayment:       d(down),
		AnnualRatePercent: d(rate),
		TermMonths:        months,
		StartDate:         time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
}

func pay(loanID uuid.UUID, amount string) domain.PaymentCommand {
	return domain.PaymentCommand{LoanID: loanID, Amount: d(amount), Method: domain.PaymentMethodACH}
}

func TestCreateLoan(t *testing.T) {
	l, repo := newTestLedger(t)

	loan, err := l.CreateLoan(context.Background(), terms("45000", "5000", "7.25", 60))
	require.NoError(t, err)

	assert.True(t, loan.RemainingBalance.Equal(d("40000")))
	assert.True(t, loan.MonthlyPayment.Equal(d("796.77")))
	assert.True(t, loan.TotalPaid.IsZero())
	assert.Equal(t, 60, loan.PaymentsRemaining)
	assert.Equal(t, domain.LoanStatusPending, loan.Status)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), loan.NextPaymentDate)
	assert.Empty(t, loan.History)
	assert.Equal(t, 1, repo.Saves())
}

func TestCreateLoanDefaultsStartToToday(t *testing.T) {
	l, _ := newTestLedger(t)

	tt := terms("20000", "0", "5", 36)
	tt.StartDate = time.Time{}

	loan, err := l.CreateLoan(context.Background(), tt)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), loan.StartDate)
}

func TestCreateLoanValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.LoanTerms)
	}{
		{"missing customer", func(tt *domain.LoanTerms) { tt.CustomerID = " " }},
		{"zero principal", func(tt *domain.LoanTerms) { tt.Principal = decimal.Zero }},
		{"sub-cent principal", func(tt *domain.LoanTerms) { tt.Principal = d("100.001") }},
		{"negative down payment", func(tt *domain.LoanTerms) { tt.DownPayment = d("-1") }},
		{"down payment covers principal", func(tt *domain.LoanTerms) { tt.DownPayment = d("45000") }},
		{"negative rate", func(tt *domain.LoanTerms) { tt.AnnualRatePercent = d("-0.5") }},
		{"rate over 100", func(tt *domain.LoanTerms) { tt.AnnualRatePercent = d("101") }},
		{"zero term", func(tt *domain.LoanTerms) { tt.TermMonths = 0 }},
		{"term over max", func(tt *domain.LoanTerms) { tt.TermMonths = 121 }},
		{"bad custom field", func(tt *domain.LoanTerms) {
			tt.CustomFields = domain.CustomFields{"": domain.StringField("x")}
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l, repo := newTestLedger(t)
			tt := terms("45000", "5000", "7.25", 60)
			tc.mutate(&tt)

			loan, err := l.CreateLoan(context.Background(), tt)
			assert.Nil(t, loan)
			assert.True(t, errors.Is(err, customError.ErrValidation), "got %v", err)
			assert.Equal(t, 0, repo.Saves())
		})
	}
}

func TestApplyPayment(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	loan, err := l.CreateLoan(ctx, terms("38750", "0", "7.25", 48))
	require.NoError(t, err)

	result, err := l.ApplyPayment(ctx, pay(loan.ID, "895.50"))
	require.NoError(t, err)

	assert.False(t, result.Replayed)
	assert.Nil(t, result.Payoff)
	assert.True(t, result.Payment.InterestPortion.Equal(d("234.11")))
	assert.True(t, result.Payment.PrincipalPortion.Equal(d("661.39")))
	assert.Equal(t, domain.EntryTypePayment, result.Payment.Type)
	assert.Equal(t, domain.PaymentMethodACH, result.Payment.Method)
	assert.Regexp(t, `^TXN-[0-9A-F]{12}$`, result.Payment.TransactionRef)
	assert.Equal(t, 1, result.Payment.Sequence)

	updated := result.Loan
	assert.True(t, updated.RemainingBalance.Equal(d("38088.61")))
	assert.True(t, updated.TotalPaid.Equal(d("895.50")))
	assert.Equal(t, 47, updated.PaymentsRemaining)
	assert.Equal(t, domain.LoanStatusPending, updated.Status)
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), updated.NextPaymentDate)
	require.Len(t, updated.History, 1)

	second, err := l.ApplyPayment(ctx, pay(loan.ID, "895.50"))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC), second.Loan.NextPaymentDate)
}

func TestApplyPaymentUnderpaymentLeavesBalance(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	loan, err := l.CreateLoan(ctx, terms("38750", "0", "7.25", 48))
	require.NoError(t, err)

	result, err := l.ApplyPayment(ctx, pay(loan.ID, "100"))
	require.NoError(t, err)

	assert.True(t, result.Payment.PrincipalPortion.IsZero())
	assert.True(t, result.Payment.InterestPortion.Equal(d("100")))
	assert.True(t, result.Loan.RemainingBalance.Equal(d("38750")))
	assert.True(t, result.Loan.TotalPaid.Equal(d("100")))
}

func TestApplyPaymentRepeatedAmountsEachReduceBalance(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	loan, err := l.CreateLoan(ctx, terms("38750", "0", "7.25", 48))
	require.NoError(t, err)

	first, err := l.ApplyPayment(ctx, pay(loan.ID, "895.50"))
	require.NoError(t, err)
	second, err := l.ApplyPayment(ctx, pay(loan.ID, "895.50"))
	require.NoError(t, err)

	expected := first.Loan.RemainingBalance.Sub(second.Payment.PrincipalPortion)
	assert.True(t, second.Loan.RemainingBalance.Equal(expected))
	assert.True(t, second.Loan.RemainingBalance.LessThan(first.Loan.RemainingBalance))
	assert.NotEqual(t, first.Payment.TransactionRef, second.Payment.TransactionRef)
	assert.Len(t, second.Loan.History, 2)
}

func TestApplyPaymentPaysOffExactlyOnce(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	loan, err := l.CreateLoan(ctx, terms("1000", "0", "0", 2))
	require.NoError(t, err)

	first, err := l.ApplyPayment(ctx, pay(loan.ID, "500"))
	require.NoError(t, err)
	assert.Nil(t, first.Payoff)

	final, err := l.ApplyPayment(ctx, pay(loan.ID, "500"))
	require.NoError(t, err)
	require.NotNil(t, final.Payoff)

	assert.True(t, final.Loan.RemainingBalance.IsZero())
	assert.Equal(t, domain.LoanStatusPaidOff, final.Loan.Status)
	assert.Equal(t, 0, final.Loan.PaymentsRemaining)
	assert.Equal(t, domain.LoanStatusPaidOff, final.Payoff.ResultingStatus)
	assert.Equal(t, domain.LoanStatusPending, final.Payoff.PreviousStatus)
	assert.Equal(t, final.Payment.TransactionRef, final.Payoff.TransactionRef)

	payoffs := 0
	for _, e := range final.Loan.History {
		if e.Type == domain.EntryTypePayoff {
			payoffs++
		}
	}
	assert.Equal(t, 1, payoffs)

	_, err = l.ApplyPayment(ctx, pay(loan.ID, "10"))
	assert.True(t, errors.Is(err, customError.ErrInvalidLoanState))

	history, err := l.History(loan.ID)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestApplyPaymentOverpaymentClampsBalance(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	loan, err := l.CreateLoan(ctx, terms("1000", "0", "12", 12))
	require.NoError(t, err)

	result, err := l.ApplyPayment(ctx, pay(loan.ID, "1500"))
	require.NoError(t, err)

	assert.True(t, result.Loan.RemainingBalance.IsZero())
	assert.Equal(t, domain.LoanStatusPaidOff, result.Loan.Status)
	assert.True(t, result.Payment.InterestPortion.Equal(d("10")))
	assert.True(t, result.Payment.PrincipalPortion.Equal(d("1490")))
	assert.NotNil(t, result.Payoff)
}

func TestApplyPaymentFullSchedulePaysOff(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	loan, err := l.CreateLoan(ctx, terms("1000", "0", "12", 12))
	require.NoError(t, err)

	var last *domain.PaymentResult
	for _, entry := range loan.Schedule() {
		last, err = l.ApplyPayment(ctx, pay(loan.ID, entry.Payment.String()))
		require.NoError(t, err)
	}

	require.NotNil(t, last.Payoff)
	assert.True(t, last.Loan.RemainingBalance.IsZero())
	assert.Equal(t, domain.LoanStatusPaidOff, last.Loan.Status)
	assert.NoError(t, Verify(last.Loan))
}

func TestApplyPaymentErrors(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	loan, err := l.CreateLoan(ctx, terms("1000", "0", "5", 12))
	require.NoError(t, err)

	tests := []struct {
		name     string
		cmd      domain.PaymentCommand
		sentinel error
	}{
		{"zero amount", pay(loan.ID, "0"), customError.ErrInvalidAmount},
		{"negative amount", pay(loan.ID, "-25"), customError.ErrInvalidAmount},
		{"sub-cent amount", pay(loan.ID, "10.005"), customError.ErrInvalidAmount},
		{"unknown loan", pay(uuid.New(), "25"), customError.ErrLoanNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := l.ApplyPayment(ctx, tt.cmd)
			assert.Nil(t, result)
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
		})
	}

	current, err := l.Get(loan.ID)
	require.NoError(t, err)
	assert.Empty(t, current.History)
}

func TestApplyPaymentIdempotencyKey(t *testing.T) {
	l, repo := newTestLedger(t)
	ctx := context.Background()

	loan, err := l.CreateLoan(ctx, terms("38750", "0", "7.25", 48))
	require.NoError(t, err)

	cmd := pay(loan.ID, "895.50")
	cmd.IdempotencyKey = "pos-7781"

	first, err := l.ApplyPayment(ctx, cmd)
	require.NoError(t, err)
	saves := repo.Saves()

	again, err := l.ApplyPayment(ctx, cmd)
	require.NoError(t, err)

	assert.True(t, again.Replayed)
	assert.Equal(t, first.Payment.ID, again.Payment.ID)
	assert.True(t, again.Loan.RemainingBalance.Equal(first.Loan.RemainingBalance))
	assert.Len(t, again.Loan.History, 1)
	assert.Equal(t, saves, repo.Saves())
}

func TestApplyPaymentIdempotencyKeyAfterPayoff(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	loan, err := l.CreateLoan(ctx, terms("1000", "0", "0", 1))
	require.NoError(t, err)

	cmd := pay(loan.ID, "1000")
	cmd.IdempotencyKey = "retry-1"

	_, err = l.ApplyPayment(ctx, cmd)
	require.NoError(t, err)

	again, err := l.ApplyPayment(ctx, cmd)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.NotNil(t, again.Payoff)
}

func TestApplyPaymentFailedSaveHasNoEffect(t *testing.T) {
	l, repo := newTestLedger(t)
	ctx := context.Background()

	loan, err := l.CreateLoan(ctx, terms("38750", "0", "7.25", 48))
	require.NoError(t, err)

	repo.FailSaves(errors.New("disk full"))

	_, err = l.ApplyPayment(ctx, pay(loan.ID, "895.50"))
	assert.Equal(t, customError.ErrCodeDatabaseError, customError.Code(err))

	current, err := l.Get(loan.ID)
	require.NoError(t, err)
	assert.True(t, current.RemainingBalance.Equal(d("38750")))
	assert.Empty(t, current.History)
	assert.Equal(t, int64(1), current.Version)

	repo.FailSaves(nil)
	_, err = l.ApplyPayment(ctx, pay(loan.ID, "895.50"))
	assert.NoError(t, err)
}

func TestApplyPaymentConcurrentWritersOnOneLoan(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	loan, err := l.CreateLoan(ctx, terms("1000", "0", "0", 100))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.ApplyPayment(ctx, pay(loan.ID, "10"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	current, err := l.Get(loan.ID)
	require.NoError(t, err)
	assert.True(t, current.RemainingBalance.Equal(d("500")))
	assert.True(t, current.TotalPaid.Equal(d("500")))
	assert.Equal(t, 50, current.PaymentsRemaining)
	assert.Len(t, current.History, 50)
	assert.NoError(t, Verify(current))
}

func TestApplyStatusTransition(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	loan, err := l.CreateLoan(ctx, terms("1000", "0", "5", 12))
	require.NoError(t, err)

	updated, err := l.ApplyStatusTransition(ctx, loan.ID, domain.LoanStatusCurrent)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusCurrent, updated.Status)
	require.Len(t, updated.History, 1)

	entry := updated.History[0]
	assert.Equal(t, domain.EntryTypeStatusChange, entry.Type)
	assert.Equal(t, domain.LoanStatusPending, entry.PreviousStatus)
	assert.Equal(t, domain.LoanStatusCurrent, entry.ResultingStatus)
	assert.True(t, entry.BalanceAfter.Equal(d("1000")))

	_, err = l.ApplyStatusTransition(ctx, loan.ID, domain.LoanStatusCurrent)
	assert.True(t, errors.Is(err, customError.ErrInvalidTransition))

	_, err = l.ApplyStatusTransition(ctx, loan.ID, domain.LoanStatus("frozen"))
	assert.True(t, errors.Is(err, customError.ErrInvalidTransition))

	_, err = l.ApplyStatusTransition(ctx, uuid.New(), domain.LoanStatusCurrent)
	assert.True(t, errors.Is(err, customError.ErrLoanNotFound))

	_, err = l.ApplyStatusTransition(ctx, loan.ID, domain.LoanStatusCancelled)
	require.NoError(t, err)

	_, err = l.ApplyStatusTransition(ctx, loan.ID, domain.LoanStatusCurrent)
	assert.True(t, errors.Is(err, customError.ErrInvalidTransition))

	_, err = l.ApplyPayment(ctx, pay(loan.ID, "50"))
	assert.True(t, errors.Is(err, customError.ErrInvalidLoanState))

	history, err := l.History(loan.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestPaidOffLoanCannotBeReactivated(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	loan, err := l.CreateLoan(ctx, terms("1000", "0", "0", 1))
	require.NoError(t, err)
	_, err = l.ApplyPayment(ctx, pay(loan.ID, "1000"))
	require.NoError(t, err)

	_, err = l.ApplyStatusTransition(ctx, loan.ID, domain.LoanStatusCurrent)
	assert.True(t, errors.Is(err, customError.ErrInvalidTransition))
}

func TestPaymentsOnOverdueLoanKeepStatus(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	loan, err := l.CreateLoan(ctx, terms("5000", "0", "6", 24))
	require.NoError(t, err)
	_, err = l.ApplyStatusTransition(ctx, loan.ID, domain.LoanStatusOverdue)
	require.NoError(t, err)

	result, err := l.ApplyPayment(ctx, pay(loan.ID, "300"))
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusOverdue, result.Loan.Status)
}

func TestHistoryNeverShrinks(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	loan, err := l.CreateLoan(ctx, terms("2000", "0", "9.5", 12))
	require.NoError(t, err)

	ops := []func() error{
		func() error { _, err := l.ApplyStatusTransition(ctx, loan.ID, domain.LoanStatusCurrent); return err },
		func() error { _, err := l.ApplyPayment(ctx, pay(loan.ID, "175.39")); return err },
		func() error { _, err := l.ApplyPayment(ctx, pay(loan.ID, "0")); return err },
		func() error { _, err := l.ApplyStatusTransition(ctx, loan.ID, domain.LoanStatusCurrent); return err },
		func() error { _, err := l.ApplyStatusTransition(ctx, loan.ID, domain.LoanStatusOverdue); return err },
		func() error { _, err := l.ApplyPayment(ctx, pay(loan.ID, "5")); return err },
		func() error { _, err := l.ApplyPayment(ctx, pay(loan.ID, "5000")); return err },
		func() error { _, err := l.ApplyPayment(ctx, pay(loan.ID, "5")); return err },
	}

	prevLen := 0
	prevBalance := d("2000")
	prevPaid := decimal.Zero
	for _, op := range ops {
		_ = op()

		current, err := l.Get(loan.ID)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(current.History), prevLen)
		assert.True(t, current.RemainingBalance.LessThanOrEqual(prevBalance))
		assert.True(t, current.TotalPaid.GreaterThanOrEqual(prevPaid))
		assert.False(t, current.RemainingBalance.IsNegative())

		prevLen = len(current.History)
		prevBalance = current.RemainingBalance
		prevPaid = current.TotalPaid
	}

	final, err := l.Get(loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusPaidOff, final.Status)
	assert.NoError(t, Verify(final))
}

func TestLoadRestoresCommittedState(t *testing.T) {
	l, repo := newTestLedger(t)
	ctx := context.Background()

	loan, err := l.CreateLoan(ctx, terms("38750", "0", "7.25", 48))
	require.NoError(t, err)
	_, err = l.ApplyPayment(ctx, pay(loan.ID, "895.50"))
	require.NoError(t, err)

	restored := New(repo)
	require.NoError(t, restored.Load(ctx))

	got, err := restored.Get(loan.ID)
	require.NoError(t, err)
	assert.True(t, got.RemainingBalance.Equal(d("38088.61")))
	assert.Len(t, got.History, 1)
	assert.Equal(t, int64(2), got.Version)
}

func TestCustomerViews(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	visible := terms("1000", "0", "5", 12)
	visible.PortalVisible = true
	hidden := terms("2000", "0", "5", 12)
	other := terms("3000", "0", "5", 12)
	other.CustomerID = "CUST-2"
	other.PortalVisible = true

	a, err := l.CreateLoan(ctx, visible)
	require.NoError(t, err)
	b, err := l.CreateLoan(ctx, hidden)
	require.NoError(t, err)
	_, err = l.CreateLoan(ctx, other)
	require.NoError(t, err)

	byCustomer := l.LoansByCustomer("CUST-1")
	require.Len(t, byCustomer, 2)
	assert.Equal(t, a.ID, byCustomer[0].ID)
	assert.Equal(t, b.ID, byCustomer[1].ID)

	portal := l.PortalLoansByCustomer("CUST-1")
	require.Len(t, portal, 1)
	assert.Equal(t, a.ID, portal[0].ID)

	assert.Len(t, l.List(), 3)
	assert.Empty(t, l.LoansByCustomer("nobody"))
}

func TestReturnedLoansAreCopies(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	loan, err := l.CreateLoan(ctx, terms("1000", "0", "5", 12))
	require.NoError(t, err)

	loan.RemainingBalance = decimal.Zero
	loan.Status = domain.LoanStatusPaidOff

	got, err := l.Get(loan.ID)
	require.NoError(t, err)
	assert.True(t, got.RemainingBalance.Equal(d("1000")))
	assert.Equal(t, domain.LoanStatusPending, got.Status)
}

func TestCreateLoanRateBelowFloatResolution(t *testing.T) {
	l, _ := newTestLedger(t)

	var loan *domain.Loan
	require.NotPanics(t, func() {
		var err error
		loan, err = l.CreateLoan(context.Background(), terms("45000", "5000", "0.00000000000001", 60))
		require.NoError(t, err)
	})
	assert.True(t, loan.MonthlyPayment.Equal(d("666.67")))
}

func TestValidatePricing(t *testing.T) {
	l := New(repository.NewMemoryRepository(), WithMaxTermMonths(84))

	assert.NoError(t, l.ValidatePricing(d("20000"), d("0"), d("5"), 84))

	for name, err := range map[string]error{
		"term over max":   l.ValidatePricing(d("20000"), d("0"), d("5"), 100000000),
		"rate over 100":   l.ValidatePricing(d("20000"), d("0"), d("250"), 36),
		"down covers all": l.ValidatePricing(d("20000"), d("20000"), d("5"), 36),
		"sub-cent":        l.ValidatePricing(d("20000.005"), d("0"), d("5"), 36),
	} {
		assert.True(t, errors.Is(err, customError.ErrValidation), "%s: got %v", name, err)
	}
}

func TestTransitionIf(t *testing.T) {
	l, repo := newTestLedger(t)
	ctx := context.Background()

	loan, err := l.CreateLoan(ctx, terms("5000", "0", "6", 24))
	require.NoError(t, err)

	_, err = l.ApplyPayment(ctx, pay(loan.ID, "221.60"))
	require.NoError(t, err)
	saves := repo.Saves()

	var seen time.Time
	toOverdueIfDueBefore := func(cutoff time.Time) StatusDecision {
		return func(current *domain.Loan) (domain.LoanStatus, bool) {
			seen = current.NextPaymentDate
			return domain.LoanStatusOverdue, current.NextPaymentDate.Before(cutoff)
		}
	}

	got, changed, err := l.TransitionIf(ctx, loan.ID, toOverdueIfDueBefore(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), seen, "decision sees the committed payment")
	assert.Equal(t, domain.LoanStatusPending, got.Status)
	assert.Equal(t, saves, repo.Saves())

	got, changed, err = l.TransitionIf(ctx, loan.ID, toOverdueIfDueBefore(time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.LoanStatusOverdue, got.Status)
	require.Len(t, got.History, 2)
	assert.Equal(t, domain.LoanStatusPending, got.History[1].PreviousStatus)

	_, changed, err = l.TransitionIf(ctx, loan.ID, func(*domain.Loan) (domain.LoanStatus, bool) {
		return domain.LoanStatusOverdue, true
	})
	require.NoError(t, err)
	assert.False(t, changed, "moving to the current status is a no-op")

	_, _, err = l.TransitionIf(ctx, uuid.New(), toOverdueIfDueBefore(testNow))
	assert.True(t, errors.Is(err, customError.ErrLoanNotFound))
}
