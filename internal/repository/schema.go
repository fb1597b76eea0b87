package repository

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS loans (
	id UUID PRIMARY KEY,
	customer_id TEXT NOT NULL,
	vehicle_id TEXT NOT NULL DEFAULT '',
	vehicle_name TEXT NOT NULL DEFAULT '',
	principal NUMERIC(14,2) NOT NULL,
	down_payment NUMERIC(14,2) NOT NULL,
	annual_rate_percent NUMERIC(9,4) NOT NULL,
	term_months INTEGER NOT NULL,
	start_date TIMESTAMPTZ NOT NULL,
	monthly_payment NUMERIC(14,2) NOT NULL,
	remaining_balance NUMERIC(14,2) NOT NULL CHECK (remaining_balance >= 0),
	total_paid NUMERIC(14,2) NOT NULL,
	payments_remaining INTEGER NOT NULL,
	next_payment_date TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL,
	portal_visible BOOLEAN NOT NULL DEFAULT FALSE,
	custom_fields JSONB NOT NULL DEFAULT '{}',
	version BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_loans_customer_id ON loans (customer_id);
CREATE TABLE IF NOT EXISTS loan_history (
	id UUID PRIMARY KEY,
	loan_id UUID NOT NULL REFERENCES loans (id),
	seq INTEGER NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL,
	entry_type TEXT NOT NULL,
	amount NUMERIC(14,2) NOT NULL,
	principal_portion NUMERIC(14,2) NOT NULL,
	interest_portion NUMERIC(14,2) NOT NULL,
	method TEXT NOT NULL DEFAULT '',
	transaction_ref TEXT NOT NULL DEFAULT '',
	previous_status TEXT NOT NULL DEFAULT '',
	resulting_status TEXT NOT NULL,
	balance_after NUMERIC(14,2) NOT NULL,
	idempotency_key TEXT NOT NULL DEFAULT '',
	UNIQUE (loan_id, seq)
);
`

// Decimals are TEXT in SQLite so no precision is lost.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS loans (
	id TEXT PRIMARY KEY,
	customer_id TEXT NOT NULL,
	vehicle_id TEXT NOT NULL DEFAULT '',
	vehicle_name TEXT NOT NULL DEFAULT '',
	principal TEXT NOT NULL,
	down_payment TEXT NOT NULL,
	annual_rate_percent TEXT NOT NULL,
	term_months INTEGER NOT NULL,
	start_date DATETIME NOT NULL,
	monthly_payment TEXT NOT NULL,
	remaining_balance TEXT NOT NULL,
	total_paid TEXT NOT NULL,
	payments_remaining INTEGER NOT NULL,
	next_payment_date DATETIME NOT NULL,
	status TEXT NOT NULL,
	portal_visible BOOLEAN NOT NULL DEFAULT 0,
	custom_fields TEXT NOT NULL DEFAULT '{}',
	version INTEGER NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_loans_customer_id ON loans (customer_id);
CREATE TABLE IF NOT EXISTS loan_history (
	id TEXT PRIMARY KEY,
	loan_id TEXT NOT NULL REFERENCES loans (id),
	seq INTEGER NOT NULL,
	recorded_at DATETIME NOT NULL,
	entry_type TEXT NOT NULL,
	amount TEXT NOT NULL,
	principal_portion TEXT NOT NULL,
	interest_portion TEXT NOT NULL,
	method TEXT NOT NULL DEFAULT '',
	transaction_ref TEXT NOT NULL DEFAULT '',
	previous_status TEXT NOT NULL DEFAULT '',
	resulting_status TEXT NOT NULL,
	balance_after TEXT NOT NULL,
	idempotency_key TEXT NOT NULL DEFAULT '',
	UNIQUE (loan_id, seq)
);
`

func schemaFor(driver string) string {
	if driver == DriverSQLite {
		return sqliteSchema
	}
	return postgresSchema
}
