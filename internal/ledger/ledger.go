// Package ledger owns every loan's mutable financial state and its append-only
// history. It is the only writer of balances, statuses and history entries.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/repository"
	"github.com/segyhp/loan-ledger/pkg/amortization"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/utils"
)

const (
	defaultMaxTermMonths = 120
	maxRatePercent       = 100
)

// Ledger holds all loans in memory and persists the full snapshot through a
// LoanRepository on every committed mutation.
//
// Writers on the same loan are serialized by a per-loan lock; commits are
// serialized by commitMu so snapshots reach the repository in order. Readers
// only ever see committed loans.
type Ledger struct {
	repo          repository.LoanRepository
	now           func() time.Time
	maxTermMonths int

	locks    *keyedMutex
	commitMu sync.Mutex

	mu    sync.RWMutex
	loans map[uuid.UUID]*domain.Loan
	order []uuid.UUID
}

// Option configures a Ledger
type Option func(*Ledger)

// WithClock replaces time.Now for timestamps and default start dates.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithMaxTermMonths caps the term accepted by CreateLoan.
func WithMaxTermMonths(months int) Option {
	return func(l *Ledger) {
		if months > 0 {
			l.maxTermMonths = months
		}
	}
}

// New creates an empty ledger. Call Load to hydrate it from the repository.
func New(repo repository.LoanRepository, opts ...Option) *Ledger {
	l := &Ledger{
		repo:          repo,
		now:           time.Now,
		maxTermMonths: defaultMaxTermMonths,
		locks:         newKeyedMutex(),
		loans:         make(map[uuid.UUID]*domain.Loan),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load replaces the in-memory state with the repository snapshot.
func (l *Ledger) Load(ctx context.Context) error {
	loans, err := l.repo.Load(ctx)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}

	l.commitMu.Lock()
	defer l.commitMu.Unlock()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.loans = make(map[uuid.UUID]*domain.Loan, len(loans))
	l.order = l.order[:0]
	for _, loan := range loans {
		l.loans[loan.ID] = loan
		l.order = append(l.order, loan.ID)
	}
	return nil
}

// CreateLoan opens a loan from its terms. The loan starts pending with the
// whole financed amount outstanding and its first payment due one month after start.
func (l *Ledger) CreateLoan(ctx context.Context, terms domain.LoanTerms) (*domain.Loan, error) {
	if err := l.validateTerms(terms); err != nil {
		return nil, err
	}

	now := l.now()
	start := terms.StartDate
	if start.IsZero() {
		start = utils.StartOfDay(now)
	}

	financed := terms.Principal.Sub(terms.DownPayment)

	loan := &domain.Loan{
		ID:                uuid.New(),
		CustomerID:        terms.CustomerID,
		VehicleID:         terms.VehicleID,
		VehicleName:       terms.VehicleName,
		Principal:         terms.Principal,
		DownPayment:       terms.DownPayment,
		AnnualRatePercent: terms.AnnualRatePercent,
		TermMonths:        terms.TermMonths,
		StartDate:         start,
		MonthlyPayment:    amortization.MonthlyPayment(financed, terms.AnnualRatePercent, terms.TermMonths),
		RemainingBalance:  financed,
		TotalPaid:         decimal.Zero,
		PaymentsRemaining: terms.TermMonths,
		NextPaymentDate:   utils.MonthlyDueDate(start, start.Day(), 1),
		Status:            domain.LoanStatusPending,
		PortalVisible:     terms.PortalVisible,
		CustomFields:      terms.CustomFields.Clone(),
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := l.commit(ctx, loan); err != nil {
		return nil, err
	}
	return loan.Clone(), nil
}

func (l *Ledger) validateTerms(terms domain.LoanTerms) error {
	if strings.TrimSpace(terms.CustomerID) == "" {
		return customError.WrapValidation("customer_id is required")
	}
	if err := l.ValidatePricing(terms.Principal, terms.DownPayment, terms.AnnualRatePercent, terms.TermMonths); err != nil {
		return err
	}

	if err := terms.CustomFields.Validate(); err != nil {
		return customError.WrapValidation(err.Error())
	}
	return nil
}

// ValidatePricing checks the terms that determine the monthly payment against
// the same bounds CreateLoan enforces.
func (l *Ledger) ValidatePricing(principal, downPayment, annualRatePercent decimal.Decimal, termMonths int) error {
	switch {
	case !principal.IsPositive() || !utils.IsCents(principal):
		return customError.WrapValidation("principal must be a positive amount in cents")
	case downPayment.IsNegative() || !utils.IsCents(downPayment):
		return customError.WrapValidation("down_payment must be a non-negative amount in cents")
	case downPayment.GreaterThanOrEqual(principal):
		return customError.WrapValidation("down_payment must be less than principal")
	case annualRatePercent.IsNegative() || annualRatePercent.GreaterThan(decimal.NewFromInt(maxRatePercent)):
		return customError.WrapValidation(fmt.Sprintf("annual_rate_percent must be between 0 and %d", maxRatePercent))
	case termMonths <= 0 || termMonths > l.maxTermMonths:
		return customError.WrapValidation(fmt.Sprintf("term_months must be between 1 and %d", l.maxTermMonths))
	}
	return nil
}

// ApplyPayment allocates amount to interest then principal, reduces the balance,
// appends the payment entry and, when the balance reaches zero, marks the loan
// paid off with an additional payoff entry.
//
// A non-empty IdempotencyKey that matches an earlier payment returns that
// payment's result without applying anything.
func (l *Ledger) ApplyPayment(ctx context.Context, cmd domain.PaymentCommand) (*domain.PaymentResult, error) {
	if !cmd.Amount.IsPositive() || !utils.IsCents(cmd.Amount) {
		return nil, customError.WrapInvalidAmount(cmd.Amount.String())
	}

	unlock := l.locks.Lock(cmd.LoanID)
	defer unlock()

	loan, err := l.committed(cmd.LoanID)
	if err != nil {
		return nil, err
	}

	if cmd.IdempotencyKey != "" {
		if result, ok := replayedPayment(loan, cmd.IdempotencyKey); ok {
			return result, nil
		}
	}

	if loan.Status.IsTerminal() {
		return nil, customError.WrapInvalidLoanState(loan.ID.String(), string(loan.Status))
	}

	alloc := amortization.Allocate(cmd.Amount, loan.RemainingBalance, loan.AnnualRatePercent)

	newBalance := loan.RemainingBalance.Sub(alloc.Principal)
	if newBalance.IsNegative() {
		newBalance = decimal.Zero
	}

	now := l.now()
	updated := loan.Clone()
	updated.RemainingBalance = newBalance
	updated.TotalPaid = loan.TotalPaid.Add(cmd.Amount)
	if updated.PaymentsRemaining > 0 {
		updated.PaymentsRemaining--
	}
	updated.Version++
	updated.UpdatedAt = now

	payment := domain.HistoryEntry{
		ID:               uuid.New(),
		LoanID:           loan.ID,
		Sequence:         len(loan.History) + 1,
		Timestamp:        now,
		Type:             domain.EntryTypePayment,
		Amount:           cmd.Amount,
		PrincipalPortion: alloc.Principal,
		InterestPortion:  alloc.Interest,
		Method:           cmd.Method,
		TransactionRef:   newTransactionRef(),
		ResultingStatus:  loan.Status,
		BalanceAfter:     newBalance,
		IdempotencyKey:   cmd.IdempotencyKey,
	}
	updated.History = append(updated.History, payment)

	result := &domain.PaymentResult{Payment: payment}

	if newBalance.IsZero() {
		updated.Status = domain.LoanStatusPaidOff
		updated.PaymentsRemaining = 0

		payoff := domain.HistoryEntry{
			ID:               uuid.New(),
			LoanID:           loan.ID,
			Sequence:         payment.Sequence + 1,
			Timestamp:        now,
			Type:             domain.EntryTypePayoff,
			Amount:           decimal.Zero,
			PrincipalPortion: decimal.Zero,
			InterestPortion:  decimal.Zero,
			Method:           cmd.Method,
			TransactionRef:   payment.TransactionRef,
			PreviousStatus:   loan.Status,
			ResultingStatus:  domain.LoanStatusPaidOff,
			BalanceAfter:     decimal.Zero,
			IdempotencyKey:   cmd.IdempotencyKey,
		}
		updated.History = append(updated.History, payoff)
		result.Payoff = &payoff
	} else {
		updated.NextPaymentDate = utils.MonthlyDueDate(loan.NextPaymentDate, loan.StartDate.Day(), 1)
	}

	if err := l.commit(ctx, updated); err != nil {
		return nil, err
	}

	result.Loan = updated.Clone()
	return result, nil
}

func replayedPayment(loan *domain.Loan, key string) (*domain.PaymentResult, bool) {
	for i, entry := range loan.History {
		if entry.Type != domain.EntryTypePayment || entry.IdempotencyKey != key {
			continue
		}

		result := &domain.PaymentResult{
			Loan:     loan.Clone(),
			Payment:  entry,
			Replayed: true,
		}
		if i+1 < len(loan.History) {
			next := loan.History[i+1]
			if next.Type == domain.EntryTypePayoff && next.TransactionRef == entry.TransactionRef {
				result.Payoff = &next
			}
		}
		return result, true
	}
	return nil, false
}

// ApplyStatusTransition moves a non-terminal loan to another status and records
// a status_change entry. Terminal loans cannot move at all.
func (l *Ledger) ApplyStatusTransition(ctx context.Context, loanID uuid.UUID, to domain.LoanStatus) (*domain.Loan, error) {
	unlock := l.locks.Lock(loanID)
	defer unlock()

	loan, err := l.committed(loanID)
	if err != nil {
		return nil, err
	}
	return l.transitionLocked(ctx, loan, to)
}

// transitionLocked requires the caller to hold the loan's lock.
func (l *Ledger) transitionLocked(ctx context.Context, loan *domain.Loan, to domain.LoanStatus) (*domain.Loan, error) {
	if !domain.CanTransition(loan.Status, to) {
		return nil, customError.WrapInvalidTransition(string(loan.Status), string(to))
	}

	now := l.now()
	updated := loan.Clone()
	updated.Status = to
	updated.Version++
	updated.UpdatedAt = now
	updated.History = append(updated.History, domain.HistoryEntry{
		ID:               uuid.New(),
		LoanID:           loan.ID,
		Sequence:         len(loan.History) + 1,
		Timestamp:        now,
		Type:             domain.EntryTypeStatusChange,
		Amount:           decimal.Zero,
		PrincipalPortion: decimal.Zero,
		InterestPortion:  decimal.Zero,
		PreviousStatus:   loan.Status,
		ResultingStatus:  to,
		BalanceAfter:     loan.RemainingBalance,
	})

	if err := l.commit(ctx, updated); err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// StatusDecision picks the status a loan should move to given its committed
// state. ok false leaves the loan untouched.
type StatusDecision func(loan *domain.Loan) (to domain.LoanStatus, ok bool)

// TransitionIf evaluates decide on the committed loan while holding the loan's
// write lock and applies the transition it returns. The returned bool reports
// whether a transition was made.
func (l *Ledger) TransitionIf(ctx context.Context, loanID uuid.UUID, decide StatusDecision) (*domain.Loan, bool, error) {
	unlock := l.locks.Lock(loanID)
	defer unlock()

	loan, err := l.committed(loanID)
	if err != nil {
		return nil, false, err
	}

	to, ok := decide(loan.Clone())
	if !ok || to == loan.Status {
		return loan.Clone(), false, nil
	}

	updated, err := l.transitionLocked(ctx, loan, to)
	if err != nil {
		return nil, false, err
	}
	return updated, true, nil
}

// Get returns a copy of the loan including its history.
func (l *Ledger) Get(loanID uuid.UUID) (*domain.Loan, error) {
	loan, err := l.committed(loanID)
	if err != nil {
		return nil, err
	}
	return loan.Clone(), nil
}

// History returns a copy of the loan's entries in sequence order.
func (l *Ledger) History(loanID uuid.UUID) ([]domain.HistoryEntry, error) {
	loan, err := l.committed(loanID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.HistoryEntry, len(loan.History))
	copy(out, loan.History)
	return out, nil
}

// List returns summaries of every loan in creation order.
func (l *Ledger) List() []*domain.Loan {
	return l.filter(func(*domain.Loan) bool { return true })
}

// LoansByCustomer returns summaries of a customer's loans.
func (l *Ledger) LoansByCustomer(customerID string) []*domain.Loan {
	return l.filter(func(loan *domain.Loan) bool {
		return loan.CustomerID == customerID
	})
}

// PortalLoansByCustomer is LoansByCustomer restricted to portal-visible loans.
func (l *Ledger) PortalLoansByCustomer(customerID string) []*domain.Loan {
	return l.filter(func(loan *domain.Loan) bool {
		return loan.CustomerID == customerID && loan.PortalVisible
	})
}

func (l *Ledger) filter(keep func(*domain.Loan) bool) []*domain.Loan {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*domain.Loan, 0)
	for _, id := range l.order {
		if loan := l.loans[id]; keep(loan) {
			out = append(out, loan.Summary())
		}
	}
	return out
}

func (l *Ledger) committed(loanID uuid.UUID) (*domain.Loan, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	loan, ok := l.loans[loanID]
	if !ok {
		return nil, customError.WrapLoanNotFound(loanID.String())
	}
	return loan, nil
}

// commit saves the snapshot with updated in place of its committed version and
// swaps it in only once the repository accepted it.
func (l *Ledger) commit(ctx context.Context, updated *domain.Loan) error {
	l.commitMu.Lock()
	defer l.commitMu.Unlock()

	l.mu.RLock()
	_, exists := l.loans[updated.ID]
	snapshot := make([]*domain.Loan, 0, len(l.order)+1)
	for _, id := range l.order {
		if id == updated.ID {
			snapshot = append(snapshot, updated)
			continue
		}
		snapshot = append(snapshot, l.loans[id])
	}
	if !exists {
		snapshot = append(snapshot, updated)
	}
	l.mu.RUnlock()

	if err := l.repo.SaveAll(ctx, snapshot); err != nil {
		return customError.WrapDatabaseError(err)
	}

	l.mu.Lock()
	l.loans[updated.ID] = updated
	if !exists {
		l.order = append(l.order, updated.ID)
	}
	l.mu.Unlock()

	return nil
}

func newTransactionRef() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TXN-" + strings.ToUpper(id[:12])
}
