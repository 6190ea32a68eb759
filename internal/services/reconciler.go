package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"budgeteer/internal/amqp"
	"budgeteer/internal/core"
	"budgeteer/internal/store"
)

// Default category labels for reconciled bank transactions when the
// caller supplies none.
const (
	defaultDebitCategory  = "General spending"
	defaultCreditCategory = "Income"
)

// ReconcileOptions are the caller-supplied overrides for a reconcile.
// Explicit values always win over inference.
type ReconcileOptions struct {
	Type           core.TransactionType // default: expense for debit, income for credit
	Category       string               // default: "General spending" / "Income"
	BudgetCategory core.Bucket          // default: classified from the category
	MiniBudgetID   string
}

// Reconciler advances staged bank transactions through the
// pending -> reconciled | ignored state machine. Reconciling is the only
// path by which an imported record enters the ledger.
type Reconciler struct {
	store      store.Store
	attributor *Attributor
	events     *amqp.Client // nil when no broker is configured
}

func NewReconciler(st store.Store, attributor *Attributor, events *amqp.Client) *Reconciler {
	return &Reconciler{store: st, attributor: attributor, events: events}
}

// Reconcile turns one pending imported transaction into a ledger
// transaction attributed to the budget active at its occurrence time.
//
// The status transition is conditional on the record still being
// pending, so of two concurrent calls exactly one creates a ledger
// transaction; the other fails with core.ErrAlreadyFinalized.
func (r *Reconciler) Reconcile(ctx context.Context, userID string, space core.Space, id string, opts ReconcileOptions) (core.Transaction, error) {
	if err := space.Validate(); err != nil {
		return core.Transaction{}, err
	}
	imported, err := r.store.GetImported(ctx, userID, space, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if imported.Status.Terminal() {
		return core.Transaction{}, core.ErrAlreadyFinalized
	}

	txType := opts.Type
	if txType == "" {
		if imported.Direction == core.Debit {
			txType = core.Expense
		} else {
			txType = core.Income
		}
	} else if err := txType.Validate(); err != nil {
		return core.Transaction{}, err
	}

	category := opts.Category
	if category == "" {
		if imported.Direction == core.Debit {
			category = defaultDebitCategory
		} else {
			category = defaultCreditCategory
		}
	}

	// An unknown bucket is rejected even when no budget ends up attributed;
	// it is never silently dropped.
	if opts.BudgetCategory != "" {
		if err := opts.BudgetCategory.Validate(); err != nil {
			return core.Transaction{}, err
		}
	}

	// Single-instant lookup: the occurrence time is both range bounds.
	budget, err := r.attributor.PickActiveBudget(ctx, userID, space, imported.OccurredAt, imported.OccurredAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("attribute budget: %w", err)
	}

	now := time.Now().UTC()
	txn := core.Transaction{
		ID:           uuid.NewString(),
		Space:        space,
		Type:         txType,
		Amount:       imported.Amount,
		Category:     category,
		Description:  describeImport(imported),
		OccurredAt:   imported.OccurredAt,
		MiniBudgetID: opts.MiniBudgetID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if budget != nil {
		txn.BudgetID = budget.ID
		if opts.BudgetCategory != "" {
			txn.BudgetCategory = opts.BudgetCategory
		} else {
			txn.BudgetCategory = core.ClassifyBucket(category, space)
		}
	}
	if err := txn.Validate(); err != nil {
		return core.Transaction{}, err
	}

	// Claim the record first; the conditional write is what makes the
	// whole operation exactly-once under concurrent callers.
	if err := r.store.TransitionImported(ctx, userID, space, id, core.ImportPending, core.ImportReconciled, now); err != nil {
		return core.Transaction{}, err
	}
	if err := r.store.CreateTransaction(ctx, userID, txn); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	r.publishReconciled(ctx, userID, imported, txn)

	slog.InfoContext(ctx, "Imported transaction reconciled",
		"imported_id", id,
		"transaction_id", txn.ID,
		"space", space,
		"budget_id", txn.BudgetID,
		"bucket", string(txn.BudgetCategory))
	return txn, nil
}

// Ignore marks a pending imported transaction as ignored. No ledger
// transaction is created and the record never shows up in analytics.
func (r *Reconciler) Ignore(ctx context.Context, userID string, space core.Space, id string) (core.ImportedTransaction, error) {
	if err := space.Validate(); err != nil {
		return core.ImportedTransaction{}, err
	}
	if _, err := r.store.GetImported(ctx, userID, space, id); err != nil {
		return core.ImportedTransaction{}, err
	}
	if err := r.store.TransitionImported(ctx, userID, space, id, core.ImportPending, core.ImportIgnored, time.Time{}); err != nil {
		return core.ImportedTransaction{}, err
	}
	return r.store.GetImported(ctx, userID, space, id)
}

func (r *Reconciler) publishReconciled(ctx context.Context, userID string, imported core.ImportedTransaction, txn core.Transaction) {
	if r.events == nil {
		return
	}
	ev := amqp.NewReconciledEvent(userID, imported.ID, txn.ID, string(txn.Space), txn.Amount.Cents)
	if err := r.events.PublishReconciled(ctx, ev); err != nil {
		// The ledger write already succeeded; a lost event must not fail
		// the request.
		slog.ErrorContext(ctx, "Failed to publish reconciled event",
			"imported_id", imported.ID, "error", err)
	}
}

func describeImport(it core.ImportedTransaction) string {
	if it.Merchant == "" {
		return it.Description
	}
	if it.Description == "" {
		return it.Merchant
	}
	return it.Merchant + " - " + it.Description
}
