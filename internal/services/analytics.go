package services

import (
	"context"
	"fmt"
	"time"

	"budgeteer/internal/core"
	"budgeteer/internal/store"
)

type (
	// DaySpending is one calendar day's expense total with its per-category
	// breakdown. Every day of the requested range gets an entry, zero or not,
	// so trend charts show gaps instead of skipping days.
	DaySpending struct {
		Date       core.Date
		Total      core.Money
		ByCategory map[string]core.Money
	}

	// Summary is the aggregate view of a space over a date range, scoped to
	// the active budget's transactions whenever one exists.
	Summary struct {
		ActiveBudgetID          string
		TotalBalance            core.Money
		Income                  core.Money
		Expenses                core.Money
		RemainingBudget         core.Money
		SpendingByCategory      map[string]core.Money
		SpendingByBucket        map[core.Bucket]core.Money
		SpendingByMiniBudget    map[string]core.Money
		DailySpendingByCategory []DaySpending
	}
)

// Analytics aggregates ledger transactions into dashboard summaries.
// It only reads; a consistent snapshot of the transaction set is taken
// in a single store call.
type Analytics struct {
	store      store.Store
	attributor *Attributor
}

func NewAnalytics(st store.Store, attributor *Attributor) *Analytics {
	return &Analytics{store: st, attributor: attributor}
}

// Summarize aggregates the space's transactions over [from, to].
//
// When a budget is active for the range, only transactions attributed to
// it are counted: the summary reflects "this budget's activity", not all
// activity in the window. All sums are exact integer cents.
func (a *Analytics) Summarize(ctx context.Context, userID string, space core.Space, from, to time.Time) (Summary, error) {
	if err := space.Validate(); err != nil {
		return Summary{}, err
	}
	if to.Before(from) {
		return Summary{}, core.ErrRangeInverted
	}

	budget, err := a.attributor.PickActiveBudget(ctx, userID, space, from, to)
	if err != nil {
		return Summary{}, err
	}

	txns, err := a.store.ListTransactions(ctx, userID, space, from, to)
	if err != nil {
		return Summary{}, fmt.Errorf("list transactions: %w", err)
	}
	if budget != nil {
		scoped := txns[:0]
		for _, t := range txns {
			if t.BudgetID == budget.ID {
				scoped = append(scoped, t)
			}
		}
		txns = scoped
	}

	miniNames := a.miniBudgetNames(ctx, userID, budget)

	sum := Summary{
		SpendingByCategory:   make(map[string]core.Money),
		SpendingByBucket:     make(map[core.Bucket]core.Money),
		SpendingByMiniBudget: make(map[string]core.Money),
	}
	if budget != nil {
		sum.ActiveBudgetID = budget.ID
	}

	days := newDayIndex(from, to)
	for _, t := range txns {
		if t.Type == core.Income {
			sum.Income.Cents += t.Amount.Cents
			continue
		}
		sum.Expenses.Cents += t.Amount.Cents

		addCents(sum.SpendingByCategory, t.Category, t.Amount.Cents)
		if t.BudgetCategory != "" {
			bucket := sum.SpendingByBucket[t.BudgetCategory]
			bucket.Cents += t.Amount.Cents
			sum.SpendingByBucket[t.BudgetCategory] = bucket
		}
		if t.MiniBudgetID != "" {
			name, ok := miniNames[t.MiniBudgetID]
			if !ok {
				name = t.MiniBudgetID // dangling reference, keep the raw id
			}
			addCents(sum.SpendingByMiniBudget, name, t.Amount.Cents)
		}
		days.add(t)
	}

	sum.TotalBalance = core.Money{Cents: sum.Income.Cents - sum.Expenses.Cents}
	if budget != nil {
		remaining := budget.TotalBudget.Cents - sum.Expenses.Cents
		if remaining < 0 {
			remaining = 0
		}
		sum.RemainingBudget = core.Money{Cents: remaining}
	}
	sum.DailySpendingByCategory = days.ordered()

	return sum, nil
}

func (a *Analytics) miniBudgetNames(ctx context.Context, userID string, budget *core.Budget) map[string]string {
	if budget == nil {
		return nil
	}
	minis, err := a.store.ListMiniBudgets(ctx, userID, budget.ID)
	if err != nil {
		// Name resolution is best effort; raw ids still aggregate.
		return nil
	}
	names := make(map[string]string, len(minis))
	for _, mb := range minis {
		names[mb.ID] = mb.Name
	}
	return names
}

func addCents(m map[string]core.Money, key string, cents int64) {
	v := m[key]
	v.Cents += cents
	m[key] = v
}

// dayIndex accumulates per-day expense breakdowns over a fixed range.
type dayIndex struct {
	start core.Date
	byDay map[string]*DaySpending
}

func newDayIndex(from, to time.Time) *dayIndex {
	idx := &dayIndex{start: core.DateOf(from), byDay: make(map[string]*DaySpending)}
	end := core.DateOf(to)
	for d := idx.start; !d.After(end.Time); d = d.AddDays(1) {
		idx.byDay[d.String()] = &DaySpending{Date: d, ByCategory: make(map[string]core.Money)}
	}
	return idx
}

func (idx *dayIndex) add(t core.Transaction) {
	day, ok := idx.byDay[core.DateOf(t.OccurredAt).String()]
	if !ok {
		return
	}
	day.Total.Cents += t.Amount.Cents
	addCents(day.ByCategory, t.Category, t.Amount.Cents)
}

func (idx *dayIndex) ordered() []DaySpending {
	out := make([]DaySpending, 0, len(idx.byDay))
	for d := idx.start; ; d = d.AddDays(1) {
		day, ok := idx.byDay[d.String()]
		if !ok {
			break
		}
		out = append(out, *day)
	}
	return out
}
