// Package store defines the outbound persistence ports of the budget
// engine. Every operation is scoped by (userID, space); implementations
// must never leak entities across that boundary.
package store

import (
	"context"
	"time"

	"budgeteer/internal/core"
)

type (
	BudgetStore interface {
		CreateBudget(ctx context.Context, userID string, b core.Budget) error
		UpdateBudget(ctx context.Context, userID string, b core.Budget) error
		DeleteBudget(ctx context.Context, userID string, space core.Space, id string) error
		GetBudget(ctx context.Context, userID string, space core.Space, id string) (core.Budget, error)
		ListBudgets(ctx context.Context, userID string, space core.Space) ([]core.Budget, error)
	}

	TransactionStore interface {
		CreateTransaction(ctx context.Context, userID string, t core.Transaction) error
		DeleteTransaction(ctx context.Context, userID string, space core.Space, id string) error
		// ListTransactions returns transactions whose OccurredAt falls in
		// [from, to]. A zero bound is unbounded on that side.
		ListTransactions(ctx context.Context, userID string, space core.Space, from, to time.Time) ([]core.Transaction, error)
	}

	MiniBudgetStore interface {
		CreateMiniBudget(ctx context.Context, userID string, mb core.MiniBudget) error
		ListMiniBudgets(ctx context.Context, userID string, budgetID string) ([]core.MiniBudget, error)
		// DeleteMiniBudgetsForBudget removes all sub-allocations of a
		// budget; used for the application-level cascade on budget delete.
		DeleteMiniBudgetsForBudget(ctx context.Context, userID string, budgetID string) error
	}

	ImportStore interface {
		CreateImported(ctx context.Context, userID string, batch []core.ImportedTransaction) error
		GetImported(ctx context.Context, userID string, space core.Space, id string) (core.ImportedTransaction, error)
		ListImported(ctx context.Context, userID string, space core.Space, status core.ImportStatus) ([]core.ImportedTransaction, error)
		// TransitionImported conditionally moves a record from one status
		// to another. It fails with core.ErrAlreadyFinalized when the
		// record is no longer in `from`, which is what makes the
		// reconciliation state machine exactly-once under concurrency.
		TransitionImported(ctx context.Context, userID string, space core.Space, id string, from, to core.ImportStatus, reconciledAt time.Time) error
	}
)

// Store is the full persistence surface, satisfied by both the sqlite
// repository and the in-memory fake so production code and tests share
// one code path.
type Store interface {
	BudgetStore
	TransactionStore
	MiniBudgetStore
	ImportStore
}
