package services

import (
	"context"
	"fmt"
	"time"

	"budgeteer/internal/core"
	"budgeteer/internal/store"
)

// Attributor selects the budget a point in time (or a range) belongs to.
type Attributor struct {
	budgets store.BudgetStore
}

func NewAttributor(budgets store.BudgetStore) *Attributor {
	return &Attributor{budgets: budgets}
}

// PickActiveBudget returns the single active budget for the range, or nil.
//
// Selection is two-tier: among budgets whose effective range intersects
// [from, to], the one with the latest start date wins. When nothing
// intersects, the most recently started budget in the space is returned
// so that dashboards degrade to "most relevant" rather than "nothing"
// whenever any budget exists. Given an unchanged budget set the result
// is a pure function of (space, range).
func (a *Attributor) PickActiveBudget(ctx context.Context, userID string, space core.Space, from, to time.Time) (*core.Budget, error) {
	if err := space.Validate(); err != nil {
		return nil, err
	}
	all, err := a.budgets.ListBudgets(ctx, userID, space)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	if len(all) == 0 {
		return nil, nil
	}

	query := core.Range{Start: core.DateOf(from), End: core.DateOf(to)}

	var active *core.Budget
	for i := range all {
		b := all[i]
		if !core.Overlaps(b.EffectiveRange(), query) {
			continue
		}
		if active == nil || laterStart(b, *active) {
			active = &all[i]
		}
	}
	if active != nil {
		return active, nil
	}

	// Fallback tier: most recently started budget in the space.
	latest := &all[0]
	for i := 1; i < len(all); i++ {
		if laterStart(all[i], *latest) {
			latest = &all[i]
		}
	}
	return latest, nil
}

// laterStart orders budgets by start date, breaking exact ties by ID so
// the pick stays deterministic.
func laterStart(a, b core.Budget) bool {
	if a.StartDate.Equal(b.StartDate.Time) {
		return a.ID > b.ID
	}
	return a.StartDate.After(b.StartDate.Time)
}
