package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-ledger/internal/domain"
)

// Replay rebuilds the balance from the financed amount by applying the principal
// portion of every payment entry in order.
func Replay(financed decimal.Decimal, history []domain.HistoryEntry) decimal.Decimal {
	balance := financed
	for _, entry := range history {
		if entry.Type != domain.EntryTypePayment {
			continue
		}
		balance = balance.Sub(entry.PrincipalPortion)
		if balance.IsNegative() {
			balance = decimal.Zero
		}
	}
	return balance
}

// Verify checks a loan's stored state against its history.
func Verify(loan *domain.Loan) error {
	var errs []error

	if loan.RemainingBalance.IsNegative() {
		errs = append(errs, fmt.Errorf("remaining balance %s is negative", loan.RemainingBalance))
	}

	if replayed := Replay(loan.FinancedAmount(), loan.History); !replayed.Equal(loan.RemainingBalance) {
		errs = append(errs, fmt.Errorf("replayed balance %s does not match stored %s", replayed, loan.RemainingBalance))
	}

	paid := decimal.Zero
	payoffs := 0
	for i, entry := range loan.History {
		if entry.Sequence != i+1 {
			errs = append(errs, fmt.Errorf("entry %d has sequence %d", i+1, entry.Sequence))
		}
		switch entry.Type {
		case domain.EntryTypePayment:
			paid = paid.Add(entry.Amount)
			if !entry.InterestPortion.Add(entry.PrincipalPortion).Equal(entry.Amount) {
				errs = append(errs, fmt.Errorf("payment %s portions do not sum to %s", entry.TransactionRef, entry.Amount))
			}
		case domain.EntryTypePayoff:
			payoffs++
		}
	}

	if !paid.Equal(loan.TotalPaid) {
		errs = append(errs, fmt.Errorf("payments sum to %s but total paid is %s", paid, loan.TotalPaid))
	}
	if payoffs > 1 {
		errs = append(errs, fmt.Errorf("%d payoff entries", payoffs))
	}
	if loan.RemainingBalance.IsZero() && payoffs == 1 && loan.Status != domain.LoanStatusPaidOff {
		errs = append(errs, fmt.Errorf("balance is zero but status is %s", loan.Status))
	}

	return errors.Join(errs...)
}
