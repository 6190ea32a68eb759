package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"budgeteer/internal/core"
	"budgeteer/internal/store/memory"
)

func stagedImport(t *testing.T, st *memory.Store, space core.Space, direction core.Direction, cents int64, occurredAt time.Time) core.ImportedTransaction {
	t.Helper()
	it := core.ImportedTransaction{
		ID:            "imp-" + string(direction) + occurredAt.Format("20060102150405"),
		Space:         space,
		BankAccountID: "acct-1",
		Amount:        core.Money{Cents: cents},
		Direction:     direction,
		Description:   "Card purchase",
		Merchant:      "Corner Market",
		OccurredAt:    occurredAt,
		Status:        core.ImportPending,
	}
	if err := st.CreateImported(context.Background(), testUser, []core.ImportedTransaction{it}); err != nil {
		t.Fatalf("stage import: %v", err)
	}
	return it
}

// An imported debit with no caller-supplied overrides reconciles to an
// expense categorized "General spending".
func TestReconcileDebitDefaults(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	rec := NewReconciler(st, NewAttributor(st), nil)

	it := stagedImport(t, st, core.Personal, core.Debit, 4500, at(2024, 3, 5))

	txn, err := rec.Reconcile(ctx, testUser, core.Personal, it.ID, ReconcileOptions{})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if txn.Type != core.Expense {
		t.Fatalf("debit must default to expense, got %s", txn.Type)
	}
	if txn.Category != "General spending" {
		t.Fatalf("debit must default to General spending, got %q", txn.Category)
	}
	if txn.Amount.Cents != 4500 {
		t.Fatalf("amount must copy over, got %d", txn.Amount.Cents)
	}
	if !txn.OccurredAt.Equal(it.OccurredAt) {
		t.Fatalf("occurrence time must copy over")
	}
	if txn.Description != "Corner Market - Card purchase" {
		t.Fatalf("merchant must prefix description, got %q", txn.Description)
	}

	updated, _ := st.GetImported(ctx, testUser, core.Personal, it.ID)
	if updated.Status != core.ImportReconciled {
		t.Fatalf("status must be reconciled, got %s", updated.Status)
	}
	if updated.ReconciledAt.IsZero() {
		t.Fatalf("reconciledAt must be set")
	}
}

func TestReconcileCreditDefaults(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	rec := NewReconciler(st, NewAttributor(st), nil)

	it := stagedImport(t, st, core.Personal, core.Credit, 250000, at(2024, 3, 5))

	txn, err := rec.Reconcile(ctx, testUser, core.Personal, it.ID, ReconcileOptions{})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if txn.Type != core.Income || txn.Category != "Income" {
		t.Fatalf("credit defaults wrong: %s %q", txn.Type, txn.Category)
	}
}

// The second reconcile of the same record is a conflict and must not
// create a second ledger transaction.
func TestReconcileExactlyOnce(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	rec := NewReconciler(st, NewAttributor(st), nil)

	it := stagedImport(t, st, core.Personal, core.Debit, 4500, at(2024, 3, 5))

	if _, err := rec.Reconcile(ctx, testUser, core.Personal, it.ID, ReconcileOptions{}); err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	if _, err := rec.Reconcile(ctx, testUser, core.Personal, it.ID, ReconcileOptions{}); !errors.Is(err, core.ErrAlreadyFinalized) {
		t.Fatalf("second reconcile must conflict, got %v", err)
	}

	txns, _ := st.ListTransactions(ctx, testUser, core.Personal, time.Time{}, time.Time{})
	if len(txns) != 1 {
		t.Fatalf("expected exactly one ledger transaction, got %d", len(txns))
	}
}

func TestReconcileConcurrentCallsOneWinner(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	rec := NewReconciler(st, NewAttributor(st), nil)

	it := stagedImport(t, st, core.Personal, core.Debit, 4500, at(2024, 3, 5))

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = rec.Reconcile(ctx, testUser, core.Personal, it.ID, ReconcileOptions{})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else if !errors.Is(err, core.ErrAlreadyFinalized) {
			t.Fatalf("loser must fail with conflict, got %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
	txns, _ := st.ListTransactions(ctx, testUser, core.Personal, time.Time{}, time.Time{})
	if len(txns) != 1 {
		t.Fatalf("expected one ledger transaction, got %d", len(txns))
	}
}

func TestReconcileAttributesActiveBudget(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	budgets := NewBudgetService(st)
	rec := NewReconciler(st, NewAttributor(st), nil)

	march := mustCreate(t, budgets, testBudget(core.Personal, core.Monthly, core.NewDate(2024, 3, 1)))
	it := stagedImport(t, st, core.Personal, core.Debit, 4500, at(2024, 3, 5))

	txn, err := rec.Reconcile(ctx, testUser, core.Personal, it.ID, ReconcileOptions{Category: "Groceries"})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if txn.BudgetID != march.ID {
		t.Fatalf("expected attribution to march budget, got %q", txn.BudgetID)
	}
	if txn.BudgetCategory != core.Essential {
		t.Fatalf("groceries must classify Essential, got %s", txn.BudgetCategory)
	}
}

func TestReconcileExplicitBucketWinsOverClassifier(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	budgets := NewBudgetService(st)
	rec := NewReconciler(st, NewAttributor(st), nil)

	mustCreate(t, budgets, testBudget(core.Personal, core.Monthly, core.NewDate(2024, 3, 1)))
	it := stagedImport(t, st, core.Personal, core.Debit, 4500, at(2024, 3, 5))

	txn, err := rec.Reconcile(ctx, testUser, core.Personal, it.ID, ReconcileOptions{
		Category:       "Groceries",
		BudgetCategory: core.FreeSpending,
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if txn.BudgetCategory != core.FreeSpending {
		t.Fatalf("explicit bucket must win, got %s", txn.BudgetCategory)
	}
}

func TestReconcileRejectsUnknownBucket(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	budgets := NewBudgetService(st)
	rec := NewReconciler(st, NewAttributor(st), nil)

	mustCreate(t, budgets, testBudget(core.Personal, core.Monthly, core.NewDate(2024, 3, 1)))
	it := stagedImport(t, st, core.Personal, core.Debit, 4500, at(2024, 3, 5))

	_, err := rec.Reconcile(ctx, testUser, core.Personal, it.ID, ReconcileOptions{BudgetCategory: "Snacks"})
	if !errors.Is(err, core.ErrInvalidBucket) {
		t.Fatalf("unknown bucket must not be coerced, got %v", err)
	}

	// The rejected call must not have consumed the pending state.
	updated, _ := st.GetImported(ctx, testUser, core.Personal, it.ID)
	if updated.Status != core.ImportPending {
		t.Fatalf("record must stay pending after rejected reconcile, got %s", updated.Status)
	}
}

// The bucket override is validated even when no budget is active, so a
// typo never succeeds just because the space happens to be empty.
func TestReconcileRejectsUnknownBucketWithoutBudget(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	rec := NewReconciler(st, NewAttributor(st), nil)

	it := stagedImport(t, st, core.Personal, core.Debit, 4500, at(2024, 3, 5))

	_, err := rec.Reconcile(ctx, testUser, core.Personal, it.ID, ReconcileOptions{BudgetCategory: "Foo"})
	if !errors.Is(err, core.ErrInvalidBucket) {
		t.Fatalf("unknown bucket must be rejected without a budget, got %v", err)
	}

	updated, _ := st.GetImported(ctx, testUser, core.Personal, it.ID)
	if updated.Status != core.ImportPending {
		t.Fatalf("record must stay pending after rejected reconcile, got %s", updated.Status)
	}
	txns, _ := st.ListTransactions(ctx, testUser, core.Personal, time.Time{}, time.Time{})
	if len(txns) != 0 {
		t.Fatalf("rejected reconcile must not create a transaction, got %d", len(txns))
	}
}

func TestReconcileWithoutBudgetLeavesContextEmpty(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	rec := NewReconciler(st, NewAttributor(st), nil)

	it := stagedImport(t, st, core.Personal, core.Debit, 4500, at(2024, 3, 5))

	txn, err := rec.Reconcile(ctx, testUser, core.Personal, it.ID, ReconcileOptions{})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if txn.BudgetID != "" || txn.BudgetCategory != "" {
		t.Fatalf("no active budget means no budget context, got %q/%q", txn.BudgetID, txn.BudgetCategory)
	}
}

func TestIgnoreIsTerminal(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	rec := NewReconciler(st, NewAttributor(st), nil)

	it := stagedImport(t, st, core.Personal, core.Debit, 4500, at(2024, 3, 5))

	ignored, err := rec.Ignore(ctx, testUser, core.Personal, it.ID)
	if err != nil {
		t.Fatalf("ignore: %v", err)
	}
	if ignored.Status != core.ImportIgnored {
		t.Fatalf("expected ignored, got %s", ignored.Status)
	}

	if _, err := rec.Reconcile(ctx, testUser, core.Personal, it.ID, ReconcileOptions{}); !errors.Is(err, core.ErrAlreadyFinalized) {
		t.Fatalf("reconciling an ignored record must conflict, got %v", err)
	}
	if _, err := rec.Ignore(ctx, testUser, core.Personal, it.ID); !errors.Is(err, core.ErrAlreadyFinalized) {
		t.Fatalf("double ignore must conflict, got %v", err)
	}

	txns, _ := st.ListTransactions(ctx, testUser, core.Personal, time.Time{}, time.Time{})
	if len(txns) != 0 {
		t.Fatalf("ignore must not create ledger transactions, got %d", len(txns))
	}
}

func TestReconcileUnknownIDNotFound(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	rec := NewReconciler(st, NewAttributor(st), nil)

	if _, err := rec.Reconcile(ctx, testUser, core.Personal, "missing", ReconcileOptions{}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
