// Package memory provides a mutex-guarded in-memory implementation of
// the store ports. It backs the demo/offline mode and the test suite.
package memory

import (
	"context"
	"sync"
	"time"

	"budgeteer/internal/core"
)

type scopeKey struct {
	userID string
	id     string
}

type Store struct {
	mu          sync.Mutex
	budgets     map[scopeKey]core.Budget
	txns        map[scopeKey]core.Transaction
	miniBudgets map[scopeKey]core.MiniBudget
	imports     map[scopeKey]core.ImportedTransaction
}

func New() *Store {
	return &Store{
		budgets:     make(map[scopeKey]core.Budget),
		txns:        make(map[scopeKey]core.Transaction),
		miniBudgets: make(map[scopeKey]core.MiniBudget),
		imports:     make(map[scopeKey]core.ImportedTransaction),
	}
}

func (s *Store) CreateBudget(_ context.Context, userID string, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[scopeKey{userID, b.ID}] = cloneBudget(b)
	return nil
}

func (s *Store) UpdateBudget(_ context.Context, userID string, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := scopeKey{userID, b.ID}
	if _, ok := s.budgets[k]; !ok {
		return core.ErrNotFound
	}
	s.budgets[k] = cloneBudget(b)
	return nil
}

func (s *Store) DeleteBudget(_ context.Context, userID string, space core.Space, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := scopeKey{userID, id}
	b, ok := s.budgets[k]
	if !ok || b.Space != space {
		return core.ErrNotFound
	}
	delete(s.budgets, k)
	return nil
}

func (s *Store) GetBudget(_ context.Context, userID string, space core.Space, id string) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[scopeKey{userID, id}]
	if !ok || b.Space != space {
		return core.Budget{}, core.ErrNotFound
	}
	return cloneBudget(b), nil
}

func (s *Store) ListBudgets(_ context.Context, userID string, space core.Space) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Budget
	for k, b := range s.budgets {
		if k.userID == userID && b.Space == space {
			out = append(out, cloneBudget(b))
		}
	}
	return out, nil
}

func (s *Store) CreateTransaction(_ context.Context, userID string, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txns[scopeKey{userID, t.ID}] = t
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, userID string, space core.Space, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := scopeKey{userID, id}
	t, ok := s.txns[k]
	if !ok || t.Space != space {
		return core.ErrNotFound
	}
	delete(s.txns, k)
	return nil
}

func (s *Store) ListTransactions(_ context.Context, userID string, space core.Space, from, to time.Time) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for k, t := range s.txns {
		if k.userID != userID || t.Space != space {
			continue
		}
		if !from.IsZero() && t.OccurredAt.Before(from) {
			continue
		}
		if !to.IsZero() && t.OccurredAt.After(to) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) CreateMiniBudget(_ context.Context, userID string, mb core.MiniBudget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.miniBudgets[scopeKey{userID, mb.ID}] = mb
	return nil
}

func (s *Store) ListMiniBudgets(_ context.Context, userID string, budgetID string) ([]core.MiniBudget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.MiniBudget
	for k, mb := range s.miniBudgets {
		if k.userID == userID && mb.BudgetID == budgetID {
			out = append(out, mb)
		}
	}
	return out, nil
}

func (s *Store) DeleteMiniBudgetsForBudget(_ context.Context, userID string, budgetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, mb := range s.miniBudgets {
		if k.userID == userID && mb.BudgetID == budgetID {
			delete(s.miniBudgets, k)
		}
	}
	return nil
}

func (s *Store) CreateImported(_ context.Context, userID string, batch []core.ImportedTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range batch {
		s.imports[scopeKey{userID, it.ID}] = it
	}
	return nil
}

func (s *Store) GetImported(_ context.Context, userID string, space core.Space, id string) (core.ImportedTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.imports[scopeKey{userID, id}]
	if !ok || it.Space != space {
		return core.ImportedTransaction{}, core.ErrNotFound
	}
	return it, nil
}

func (s *Store) ListImported(_ context.Context, userID string, space core.Space, status core.ImportStatus) ([]core.ImportedTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.ImportedTransaction
	for k, it := range s.imports {
		if k.userID != userID || it.Space != space {
			continue
		}
		if status != "" && it.Status != status {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

// TransitionImported performs the conditional status change under the
// store mutex; the check and the write are a single critical section.
func (s *Store) TransitionImported(_ context.Context, userID string, space core.Space, id string, from, to core.ImportStatus, reconciledAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := scopeKey{userID, id}
	it, ok := s.imports[k]
	if !ok || it.Space != space {
		return core.ErrNotFound
	}
	if it.Status != from {
		return core.ErrAlreadyFinalized
	}
	it.Status = to
	it.ReconciledAt = reconciledAt
	s.imports[k] = it
	return nil
}

func cloneBudget(b core.Budget) core.Budget {
	out := b
	if b.Categories != nil {
		out.Categories = make(map[core.Bucket]core.Allocation, len(b.Categories))
		for k, v := range b.Categories {
			out.Categories[k] = v
		}
	}
	return out
}
