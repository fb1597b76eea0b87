package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryType classifies a ledger history record
type EntryType string

const (
	EntryTypePayment      EntryType = "payment"
	EntryTypeStatusChange EntryType = "status_change"
	EntryTypePayoff       EntryType = "payoff"
)

// PaymentMethod is how a borrower paid
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodCheck    PaymentMethod = "check"
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodACH      PaymentMethod = "ach"
	PaymentMethodTransfer PaymentMethod = "transfer"
)

// HistoryEntry is an immutable ledger record. Entries are only ever appended;
// replaying the payment entries of a loan in sequence order reconstructs its balance.
type HistoryEntry struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	LoanID           uuid.UUID       `json:"loan_id" db:"loan_id"`
	Sequence         int             `json:"sequence" db:"seq"`
	Timestamp        time.Time       `json:"timestamp" db:"recorded_at"`
	Type             EntryType       `json:"type" db:"entry_type"`
	Amount           decimal.Decimal `json:"amount" db:"amount"`
	PrincipalPortion decimal.Decimal `json:"principal_portion" db:"principal_portion"`
	InterestPortion  decimal.Decimal `json:"interest_portion" db:"interest_portion"`
	Method           PaymentMethod   `json:"method,omitempty" db:"method"`
	TransactionRef   string          `json:"transaction_ref,omitempty" db:"transaction_ref"`
	PreviousStatus   LoanStatus      `json:"previous_status,omitempty" db:"previous_status"`
	ResultingStatus  LoanStatus      `json:"resulting_status" db:"resulting_status"`
	BalanceAfter     decimal.Decimal `json:"balance_after" db:"balance_after"`
	IdempotencyKey   string          `json:"idempotency_key,omitempty" db:"idempotency_key"`
}
