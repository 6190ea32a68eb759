package services

import (
	"context"
	"errors"
	"testing"

	"budgeteer/internal/core"
	"budgeteer/internal/store/memory"
)

const testUser = "user-1"

func testBudget(space core.Space, period core.Period, start core.Date) core.Budget {
	return core.Budget{
		Space:       space,
		Name:        "Budget " + start.String(),
		TotalBudget: core.Money{Cents: 100000},
		Period:      period,
		StartDate:   start,
		Categories: map[core.Bucket]core.Allocation{
			core.Essential: {Budgeted: core.Money{Cents: 60000}},
		},
	}
}

// A monthly budget starting 2024-03-01 occupies through 2024-03-31: a
// sibling starting on the 31st is rejected, one starting April 1st is not.
func TestCreateRejectsOverlappingSibling(t *testing.T) {
	ctx := context.Background()
	svc := NewBudgetService(memory.New())

	if _, err := svc.Create(ctx, testUser, testBudget(core.Personal, core.Monthly, core.NewDate(2024, 3, 1))); err != nil {
		t.Fatalf("create march budget: %v", err)
	}

	_, err := svc.Create(ctx, testUser, testBudget(core.Personal, core.Monthly, core.NewDate(2024, 3, 31)))
	if !errors.Is(err, core.ErrBudgetOverlap) {
		t.Fatalf("boundary-day start must conflict, got %v", err)
	}

	if _, err := svc.Create(ctx, testUser, testBudget(core.Personal, core.Monthly, core.NewDate(2024, 4, 1))); err != nil {
		t.Fatalf("april budget must not conflict: %v", err)
	}
}

func TestCreateAllowsSameRangeAcrossSpaces(t *testing.T) {
	ctx := context.Background()
	svc := NewBudgetService(memory.New())

	if _, err := svc.Create(ctx, testUser, testBudget(core.Personal, core.Monthly, core.NewDate(2024, 3, 1))); err != nil {
		t.Fatalf("personal: %v", err)
	}
	if _, err := svc.Create(ctx, testUser, testBudget(core.Business, core.Monthly, core.NewDate(2024, 3, 1))); err != nil {
		t.Fatalf("spaces partition budgets, business must not conflict: %v", err)
	}
}

func TestCreateRejectsInvalidBudgetWithoutWrite(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := NewBudgetService(st)

	bad := testBudget(core.Personal, core.Monthly, core.NewDate(2024, 3, 1))
	bad.Period = "yearly"
	if _, err := svc.Create(ctx, testUser, bad); !errors.Is(err, core.ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}

	budgets, _ := st.ListBudgets(ctx, testUser, core.Personal)
	if len(budgets) != 0 {
		t.Fatalf("rejected create must not write, found %d budgets", len(budgets))
	}
}

func TestUpdateRevalidatesRangeAgainstSiblings(t *testing.T) {
	ctx := context.Background()
	svc := NewBudgetService(memory.New())

	_, err := svc.Create(ctx, testUser, testBudget(core.Personal, core.Monthly, core.NewDate(2024, 3, 1)))
	if err != nil {
		t.Fatalf("march: %v", err)
	}
	april, err := svc.Create(ctx, testUser, testBudget(core.Personal, core.Monthly, core.NewDate(2024, 4, 1)))
	if err != nil {
		t.Fatalf("april: %v", err)
	}

	// Shifting April back into March must conflict.
	start := core.NewDate(2024, 3, 15)
	if _, err := svc.Update(ctx, testUser, core.Personal, april.ID, BudgetPatch{StartDate: &start}); !errors.Is(err, core.ErrBudgetOverlap) {
		t.Fatalf("expected overlap conflict, got %v", err)
	}

	// A range-neutral update of the same budget must not conflict with itself.
	name := "Renamed"
	updated, err := svc.Update(ctx, testUser, core.Personal, april.ID, BudgetPatch{Name: &name})
	if err != nil {
		t.Fatalf("self-excluding update: %v", err)
	}
	if updated.Name != "Renamed" {
		t.Fatalf("patch not applied: %q", updated.Name)
	}
}

func TestUpdateRejectsInvertedRange(t *testing.T) {
	ctx := context.Background()
	svc := NewBudgetService(memory.New())

	b, err := svc.Create(ctx, testUser, testBudget(core.Personal, core.Monthly, core.NewDate(2024, 3, 1)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	end := core.NewDate(2024, 2, 1)
	if _, err := svc.Update(ctx, testUser, core.Personal, b.ID, BudgetPatch{EndDate: &end}); !errors.Is(err, core.ErrRangeInverted) {
		t.Fatalf("expected ErrRangeInverted, got %v", err)
	}
}

func TestDeleteCascadesMiniBudgetsOnly(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := NewBudgetService(st)

	b, err := svc.Create(ctx, testUser, testBudget(core.Personal, core.Monthly, core.NewDate(2024, 3, 1)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = svc.CreateMiniBudget(ctx, testUser, core.Personal, core.MiniBudget{
		BudgetID: b.ID,
		Name:     "Coffee fund",
		Amount:   core.Money{Cents: 5000},
		Category: core.FreeSpending,
	})
	if err != nil {
		t.Fatalf("mini budget: %v", err)
	}

	if err := svc.Delete(ctx, testUser, core.Personal, b.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	minis, _ := svc.ListMiniBudgets(ctx, testUser, b.ID)
	if len(minis) != 0 {
		t.Fatalf("mini budgets must cascade, found %d", len(minis))
	}
	if _, err := svc.Get(ctx, testUser, core.Personal, b.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateMiniBudgetRequiresOwningBudget(t *testing.T) {
	ctx := context.Background()
	svc := NewBudgetService(memory.New())

	_, err := svc.CreateMiniBudget(ctx, testUser, core.Personal, core.MiniBudget{
		BudgetID: "missing",
		Name:     "Orphan",
		Amount:   core.Money{Cents: 100},
		Category: core.Essential,
	})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestValidateNoOverlapDryRun(t *testing.T) {
	ctx := context.Background()
	svc := NewBudgetService(memory.New())

	if _, err := svc.Create(ctx, testUser, testBudget(core.Personal, core.Weekly, core.NewDate(2024, 3, 4))); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Weekly budget runs 2024-03-04 through 2024-03-10.
	conflict := core.Range{Start: core.NewDate(2024, 3, 10), End: core.NewDate(2024, 3, 16)}
	if err := svc.ValidateNoOverlap(ctx, testUser, core.Personal, conflict, ""); !errors.Is(err, core.ErrBudgetOverlap) {
		t.Fatalf("expected overlap, got %v", err)
	}
	clear := core.Range{Start: core.NewDate(2024, 3, 11), End: core.NewDate(2024, 3, 17)}
	if err := svc.ValidateNoOverlap(ctx, testUser, core.Personal, clear, ""); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}
