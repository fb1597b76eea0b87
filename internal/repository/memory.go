package repository

import (
	"context"
	"sync"

	"github.com/segyhp/loan-ledger/internal/domain"
)

// MemoryRepository keeps the last saved snapshot in process memory.
type MemoryRepository struct {
	mu       sync.Mutex
	snapshot []*domain.Loan
	saves    int
	saveErr  error
}

// NewMemoryRepository creates a repository pre-loaded with loans.
func NewMemoryRepository(loans ...*domain.Loan) *MemoryRepository {
	return &MemoryRepository{snapshot: cloneAll(loans)}
}

func (m *MemoryRepository) Load(ctx context.Context) ([]*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAll(m.snapshot), nil
}

func (m *MemoryRepository) SaveAll(ctx context.Context, loans []*domain.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveErr != nil {
		return m.saveErr
	}
	m.snapshot = cloneAll(loans)
	m.saves++
	return nil
}

// FailSaves makes every following SaveAll return err until called with nil.
func (m *MemoryRepository) FailSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

// Saves reports how many snapshots were stored.
func (m *MemoryRepository) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func cloneAll(loans []*domain.Loan) []*domain.Loan {
	out := make([]*domain.Loan, 0, len(loans))
	for _, l := range loans {
		out = append(out, l.Clone())
	}
	return out
}
