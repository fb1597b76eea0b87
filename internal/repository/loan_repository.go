package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/loan-ledger/internal/domain"
)

const upsertLoanQuery = `
	INSERT INTO loans (id, customer_id, vehicle_id, vehicle_name, principal, down_payment, annual_rate_percent,
		term_months, start_date, monthly_payment, remaining_balance, total_paid, payments_remaining,
		next_payment_date, status, portal_visible, custom_fields, version, created_at, updated_at)
	VALUES (:id, :customer_id, :vehicle_id, :vehicle_name, :principal, :down_payment, :annual_rate_percent,
		:term_months, :start_date, :monthly_payment, :remaining_balance, :total_paid, :payments_remaining,
		:next_payment_date, :status, :portal_visible, :custom_fields, :version, :created_at, :updated_at)
	ON CONFLICT (id) DO UPDATE SET
		remaining_balance = excluded.remaining_balance,
		total_paid = excluded.total_paid,
		payments_remaining = excluded.payments_remaining,
		next_payment_date = excluded.next_payment_date,
		status = excluded.status,
		portal_visible = excluded.portal_visible,
		custom_fields = excluded.custom_fields,
		version = excluded.version,
		updated_at = excluded.updated_at
	WHERE loans.version < excluded.version
`

// History rows are never updated: an entry already present is skipped.
const insertHistoryQuery = `
	INSERT INTO loan_history (id, loan_id, seq, recorded_at, entry_type, amount, principal_portion, interest_portion,
		method, transaction_ref, previous_status, resulting_status, balance_after, idempotency_key)
	VALUES (:id, :loan_id, :seq, :recorded_at, :entry_type, :amount, :principal_portion, :interest_portion,
		:method, :transaction_ref, :previous_status, :resulting_status, :balance_after, :idempotency_key)
	ON CONFLICT (id) DO NOTHING
`

type loanRepository struct {
	db *sqlx.DB

	mu sync.Mutex
	// saved tracks the version and history length last committed per loan so
	// SaveAll only writes loans that changed since.
	saved map[uuid.UUID]savedState
}

type savedState struct {
	version int64
	entries int
}

// NewLoanRepository returns a LoanRepository backed by a postgres or sqlite database.
func NewLoanRepository(db *sqlx.DB) LoanRepository {
	return &loanRepository{
		db:    db,
		saved: make(map[uuid.UUID]savedState),
	}
}

// Open connects to the database and applies the schema. SQLite is limited to a
// single connection so an in-memory database is shared by every query.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the tables used by the loan repository if they don't exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schemaFor(db.DriverName())); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (r *loanRepository) Load(ctx context.Context) ([]*domain.Loan, error) {
	query := `
		SELECT id, customer_id, vehicle_id, vehicle_name, principal, down_payment, annual_rate_percent,
			term_months, start_date, monthly_payment, remaining_balance, total_paid, payments_remaining,
			next_payment_date, status, portal_visible, custom_fields, version, created_at, updated_at
		FROM loans
		ORDER BY created_at, id
	`

	var loans []*domain.Loan
	if err := r.db.SelectContext(ctx, &loans, query); err != nil {
		return nil, fmt.Errorf("select loans: %w", err)
	}

	historyQuery := `
		SELECT id, loan_id, seq, recorded_at, entry_type, amount, principal_portion, interest_portion,
			method, transaction_ref, previous_status, resulting_status, balance_after, idempotency_key
		FROM loan_history
		ORDER BY loan_id, seq
	`

	var entries []domain.HistoryEntry
	if err := r.db.SelectContext(ctx, &entries, historyQuery); err != nil {
		return nil, fmt.Errorf("select loan history: %w", err)
	}

	byLoan := make(map[uuid.UUID][]domain.HistoryEntry, len(loans))
	for _, e := range entries {
		byLoan[e.LoanID] = append(byLoan[e.LoanID], e)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, loan := range loans {
		loan.History = byLoan[loan.ID]
		r.saved[loan.ID] = savedState{version: loan.Version, entries: len(loan.History)}
	}

	return loans, nil
}

func (r *loanRepository) SaveAll(ctx context.Context, loans []*domain.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	committed := make(map[uuid.UUID]savedState)

	for _, loan := range loans {
		prev, known := r.saved[loan.ID]
		if known && prev.version == loan.Version && prev.entries == len(loan.History) {
			continue
		}
		if prev.entries > len(loan.History) {
			prev.entries = 0
		}

		if _, err = tx.NamedExecContext(ctx, upsertLoanQuery, loan); err != nil {
			return fmt.Errorf("upsert loan %s: %w", loan.ID, err)
		}

		for _, entry := range loan.History[prev.entries:] {
			if _, err = tx.NamedExecContext(ctx, insertHistoryQuery, entry); err != nil {
				return fmt.Errorf("insert history for loan %s: %w", loan.ID, err)
			}
		}

		committed[loan.ID] = savedState{version: loan.Version, entries: len(loan.History)}
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	for id, state := range committed {
		r.saved[id] = state
	}

	return nil
}
