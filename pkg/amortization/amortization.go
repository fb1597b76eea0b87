// Package amortization holds the pure loan arithmetic: fixed monthly payment,
// interest-first payment allocation and the period-by-period schedule.
package amortization

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-ledger/pkg/utils"
)

var (
	hundred       = decimal.NewFromInt(100)
	monthsPerYear = decimal.NewFromInt(12)
)

// MonthlyRate converts an annual percentage rate into a monthly decimal rate.
// 7.25 becomes 0.0060416...
func MonthlyRate(annualRatePercent decimal.Decimal) decimal.Decimal {
	return annualRatePercent.Div(hundred).Div(monthsPerYear)
}

// MonthlyPayment calculates the fixed monthly payment of a standard amortizing loan.
// Formula: P * r * (1+r)^n / ((1+r)^n - 1), with r the monthly rate.
//
// A non-positive principal or term yields zero: the terms are not yet computable.
// A zero rate splits the principal evenly over the term.
func MonthlyPayment(principal, annualRatePercent decimal.Decimal, termMonths int) decimal.Decimal {
	if principal.LessThanOrEqual(decimal.Zero) || termMonths <= 0 || annualRatePercent.IsNegative() {
		return decimal.Zero
	}

	r := annualRatePercent.InexactFloat64() / 100 / 12
	// 1+r == 1 when r is below float64 resolution; such a rate amortizes like zero.
	factor := math.Pow(1+r, float64(termMonths))
	if r == 0 || factor == 1 {
		return evenSplit(principal, termMonths)
	}

	// An unbounded factor means the payment converges to the interest alone.
	if math.IsInf(factor, 1) {
		return finite(principal.InexactFloat64()*r, principal, termMonths)
	}

	// float64 only for the power term; the result goes back to decimal before rounding.
	payment := principal.InexactFloat64() * r * factor / (factor - 1)
	return finite(payment, principal, termMonths)
}

func evenSplit(principal decimal.Decimal, termMonths int) decimal.Decimal {
	return principal.Div(decimal.NewFromInt(int64(termMonths))).Round(2)
}

// finite converts payment to decimal, falling back to the even split when the
// float arithmetic produced NaN, an infinity or a negative value.
func finite(payment float64, principal decimal.Decimal, termMonths int) decimal.Decimal {
	if math.IsNaN(payment) || math.IsInf(payment, 0) || payment < 0 {
		return evenSplit(principal, termMonths)
	}
	return decimal.NewFromFloat(payment).Round(2)
}

// Quote summarizes a loan's repayment cost as shown while terms are edited.
type Quote struct {
	FinancedAmount decimal.Decimal `json:"financed_amount"`
	MonthlyPayment decimal.Decimal `json:"monthly_payment"`
	TotalPayments  decimal.Decimal `json:"total_payments"`
	TotalInterest  decimal.Decimal `json:"total_interest"`
	TermMonths     int             `json:"term_months"`
}

// NewQuote builds a Quote for the amount left after the down payment.
func NewQuote(principal, downPayment, annualRatePercent decimal.Decimal, termMonths int) Quote {
	financed := principal.Sub(downPayment)
	if financed.IsNegative() {
		financed = decimal.Zero
	}

	monthly := MonthlyPayment(financed, annualRatePercent, termMonths)
	total := monthly.Mul(decimal.NewFromInt(int64(termMonths)))
	interest := total.Sub(financed)
	if monthly.IsZero() || interest.IsNegative() {
		interest = decimal.Zero
	}

	return Quote{
		FinancedAmount: financed,
		MonthlyPayment: monthly,
		TotalPayments:  total,
		TotalInterest:  interest,
		TermMonths:     termMonths,
	}
}

// Allocation is the split of one payment between interest and principal.
type Allocation struct {
	Interest  decimal.Decimal `json:"interest"`
	Principal decimal.Decimal `json:"principal"`
}

// MonthlyInterest is one billing period's accrued interest on balance, rounded to cents.
func MonthlyInterest(balance, annualRatePercent decimal.Decimal) decimal.Decimal {
	return balance.Mul(annualRatePercent).Div(hundred).Div(monthsPerYear).Round(2)
}

// Allocate splits payment into interest and principal. Interest is paid first up to
// what accrued this period; anything beyond reduces principal. A payment below the
// accrued interest goes entirely to interest. Interest + Principal == payment exactly.
func Allocate(payment, balance, annualRatePercent decimal.Decimal) Allocation {
	interest := decimal.Min(payment, MonthlyInterest(balance, annualRatePercent))
	if interest.IsNegative() {
		interest = decimal.Zero
	}

	return Allocation{
		Interest:  interest,
		Principal: payment.Sub(interest),
	}
}

// ScheduleEntry is one period of an amortization table.
type ScheduleEntry struct {
	Period           int             `json:"period"`
	DueDate          time.Time       `json:"due_date"`
	Payment          decimal.Decimal `json:"payment"`
	Interest         decimal.Decimal `json:"interest"`
	Principal        decimal.Decimal `json:"principal"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

// Schedule generates the table for a financed amount paid monthly from startDate.
// The first payment is due one calendar month after startDate. The last period
// absorbs rounding so the balance ends at exactly zero.
func Schedule(financed, annualRatePercent decimal.Decimal, termMonths int, startDate time.Time) []ScheduleEntry {
	payment := MonthlyPayment(financed, annualRatePercent, termMonths)
	if payment.IsZero() {
		return nil
	}

	entries := make([]ScheduleEntry, 0, termMonths)
	remaining := financed

	for period := 1; period <= termMonths && remaining.IsPositive(); period++ {
		interest := MonthlyInterest(remaining, annualRatePercent)
		principal := payment.Sub(interest)
		amount := payment

		if period == termMonths || principal.GreaterThan(remaining) {
			principal = remaining
			amount = principal.Add(interest)
		}

		remaining = remaining.Sub(principal)

		entries = append(entries, ScheduleEntry{
			Period:           period,
			DueDate:          utils.AddMonths(startDate, period),
			Payment:          amount,
			Interest:         interest,
			Principal:        principal,
			RemainingBalance: remaining,
		})
	}

	return entries
}
