package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"budgeteer/internal/core"
	"budgeteer/internal/store"
)

// Ledger handles manually entered transactions. Manual entries get the
// same budget context as reconciled imports: the budget active at the
// occurrence time and a classified bucket, unless the caller picked one.
type Ledger struct {
	store      store.Store
	attributor *Attributor
}

func NewLedger(st store.Store, attributor *Attributor) *Ledger {
	return &Ledger{store: st, attributor: attributor}
}

// Create validates and persists a manual ledger entry. An explicit
// BudgetCategory on the input wins over classification.
func (l *Ledger) Create(ctx context.Context, userID string, t core.Transaction) (core.Transaction, error) {
	t.ID = uuid.NewString()
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if t.BudgetID == "" {
		budget, err := l.attributor.PickActiveBudget(ctx, userID, t.Space, t.OccurredAt, t.OccurredAt)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("attribute budget: %w", err)
		}
		if budget != nil {
			t.BudgetID = budget.ID
			if t.BudgetCategory == "" {
				t.BudgetCategory = core.ClassifyBucket(t.Category, t.Space)
			}
		}
	}

	if err := l.store.CreateTransaction(ctx, userID, t); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	return t, nil
}

func (l *Ledger) List(ctx context.Context, userID string, space core.Space, from, to time.Time) ([]core.Transaction, error) {
	if err := space.Validate(); err != nil {
		return nil, err
	}
	return l.store.ListTransactions(ctx, userID, space, from, to)
}

func (l *Ledger) Delete(ctx context.Context, userID string, space core.Space, id string) error {
	if err := space.Validate(); err != nil {
		return err
	}
	return l.store.DeleteTransaction(ctx, userID, space, id)
}
