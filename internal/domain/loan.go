package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-ledger/pkg/amortization"
)

// Loan represents one financing agreement
type Loan struct {
	ID          uuid.UUID `json:"id" db:"id"`
	CustomerID  string    `json:"customer_id" db:"customer_id"`
	VehicleID   string    `json:"vehicle_id,omitempty" db:"vehicle_id"`
	VehicleName string    `json:"vehicle_name,omitempty" db:"vehicle_name"`

	// Terms, fixed at creation
	Principal         decimal.Decimal `json:"principal" db:"principal"`
	DownPayment       decimal.Decimal `json:"down_payment" db:"down_payment"`
	AnnualRatePercent decimal.Decimal `json:"annual_rate_percent" db:"annual_rate_percent"`
	TermMonths        int             `json:"term_months" db:"term_months"`
	StartDate         time.Time       `json:"start_date" db:"start_date"`
	MonthlyPayment    decimal.Decimal `json:"monthly_payment" db:"monthly_payment"`

	RemainingBalance  decimal.Decimal `json:"remaining_balance" db:"remaining_balance"`
	TotalPaid         decimal.Decimal `json:"total_paid" db:"total_paid"`
	PaymentsRemaining int             `json:"payments_remaining" db:"payments_remaining"`
	NextPaymentDate   time.Time       `json:"next_payment_date" db:"next_payment_date"`
	Status            LoanStatus      `json:"status" db:"status"`
	PortalVisible     bool            `json:"is_portal_visible" db:"portal_visible"`
	CustomFields      CustomFields    `json:"custom_fields,omitempty" db:"custom_fields"`

	// Version increases with every committed mutation
	Version   int64     `json:"version" db:"version"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	History []HistoryEntry `json:"history,omitempty" db:"-"`
}

// FinancedAmount is the principal less the down payment.
func (l *Loan) FinancedAmount() decimal.Decimal {
	return l.Principal.Sub(l.DownPayment)
}

// Clone returns a deep copy so a pending mutation never touches committed state.
func (l *Loan) Clone() *Loan {
	c := *l
	c.CustomFields = l.CustomFields.Clone()
	if l.History != nil {
		c.History = make([]HistoryEntry, len(l.History))
		copy(c.History, l.History)
	}
	return &c
}

// Summary drops the history for list views.
func (l *Loan) Summary() *Loan {
	c := *l
	c.CustomFields = l.CustomFields.Clone()
	c.History = nil
	return &c
}

// Schedule returns the amortization table implied by the loan's terms.
func (l *Loan) Schedule() []amortization.ScheduleEntry {
	return amortization.Schedule(l.FinancedAmount(), l.AnnualRatePercent, l.TermMonths, l.StartDate)
}

// LoanTerms are the inputs needed to open a loan
type LoanTerms struct {
	CustomerID        string
	VehicleID         string
	VehicleName       string
	Principal         decimal.Decimal
	DownPayment       decimal.Decimal
	AnnualRatePercent decimal.Decimal
	TermMonths        int
	StartDate         time.Time
	PortalVisible     bool
	CustomFields      CustomFields
}

// PaymentCommand asks the ledger to apply one payment
type PaymentCommand struct {
	LoanID         uuid.UUID
	Amount         decimal.Decimal
	Method         PaymentMethod
	IdempotencyKey string
}

// PaymentResult is the loan view after a payment plus the entry that recorded it
type PaymentResult struct {
	Loan     *Loan         `json:"loan"`
	Payment  HistoryEntry  `json:"payment"`
	Payoff   *HistoryEntry `json:"payoff,omitempty"`
	Replayed bool          `json:"replayed"`
}

// DTOs for requests and responses

type CreateLoanRequest struct {
	CustomerID        string          `json:"customer_id" validate:"required,max=64"`
	VehicleID         string          `json:"vehicle_id" validate:"max=64"`
	VehicleName       string          `json:"vehicle_name" validate:"max=200"`
	Principal         decimal.Decimal `json:"principal" validate:"decimal_gt=0"`
	DownPayment       decimal.Decimal `json:"down_payment" validate:"decimal_gte=0"`
	AnnualRatePercent decimal.Decimal `json:"annual_rate_percent" validate:"decimal_gte=0"`
	TermMonths        int             `json:"term_months" validate:"required,gt=0"`
	StartDate         string          `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	PortalVisible     bool            `json:"is_portal_visible"`
	CustomFields      CustomFields    `json:"custom_fields"`
}

type MakePaymentRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Method         PaymentMethod   `json:"method" validate:"required,oneof=cash check card ach transfer"`
	IdempotencyKey string          `json:"idempotency_key" validate:"max=128"`
}

type StatusTransitionRequest struct {
	Status LoanStatus `json:"status" validate:"required,oneof=pending current overdue default paid_off cancelled"`
}

type QuoteRequest struct {
	Principal         decimal.Decimal `json:"principal" validate:"decimal_gt=0"`
	DownPayment       decimal.Decimal `json:"down_payment" validate:"decimal_gte=0"`
	AnnualRatePercent decimal.Decimal `json:"annual_rate_percent" validate:"decimal_gte=0"`
	TermMonths        int             `json:"term_months" validate:"required,gt=0"`
	StartDate         string          `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	IncludeSchedule   bool            `json:"include_schedule"`
}

type QuoteResponse struct {
	amortization.Quote
	Schedule []amortization.ScheduleEntry `json:"schedule,omitempty"`
}

type ScheduleResponse struct {
	LoanID   uuid.UUID                    `json:"loan_id"`
	Schedule []amortization.ScheduleEntry `json:"schedule"`
}

type HistoryResponse struct {
	LoanID  uuid.UUID      `json:"loan_id"`
	History []HistoryEntry `json:"history"`
}
