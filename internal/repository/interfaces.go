package repository

import (
	"context"
	"time"

	"github.com/segyhp/loan-ledger/internal/domain"
)

// LoanRepository persists the full set of loans. It has load-all/save-all semantics:
// the ledger hands it the complete snapshot after every committed mutation.
type LoanRepository interface {
	// Load returns every stored loan with its history in sequence order
	Load(ctx context.Context) ([]*domain.Loan, error)

	// SaveAll persists the snapshot atomically: either every loan and entry is
	// stored or none is
	SaveAll(ctx context.Context, loans []*domain.Loan) error
}

// CacheRepository stores short-lived rendered views
type CacheRepository interface {
	// Get returns the cached value and whether it was present
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key for ttl
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Delete removes keys; missing keys are not an error
	Delete(ctx context.Context, keys ...string) error
}
