package http

import (
	"time"

	"budgeteer/internal/core"
	"budgeteer/internal/services"
)

// Wire conventions: budget boundaries travel as YYYY-MM-DD, instants as
// RFC 3339, all amounts as integer cents, enums as their literal strings.

type budgetRequest struct {
	Space            string           `json:"space"`
	Name             string           `json:"name"`
	TotalBudgetCents int64            `json:"totalBudgetCents"`
	Period           string           `json:"period"`
	StartDate        string           `json:"startDate"`
	EndDate          string           `json:"endDate,omitempty"`
	Categories       map[string]int64 `json:"categories,omitempty"`
}

type budgetPatchRequest struct {
	Name             *string          `json:"name,omitempty"`
	TotalBudgetCents *int64           `json:"totalBudgetCents,omitempty"`
	Period           *string          `json:"period,omitempty"`
	StartDate        *string          `json:"startDate,omitempty"`
	EndDate          *string          `json:"endDate,omitempty"`
	Categories       map[string]int64 `json:"categories,omitempty"`
}

type budgetResponse struct {
	ID               string           `json:"id"`
	Space            string           `json:"space"`
	Name             string           `json:"name"`
	TotalBudgetCents int64            `json:"totalBudgetCents"`
	Period           string           `json:"period"`
	StartDate        string           `json:"startDate"`
	EndDate          string           `json:"endDate,omitempty"`
	EffectiveEndDate string           `json:"effectiveEndDate"`
	Categories       map[string]int64 `json:"categories,omitempty"`
	CreatedAt        string           `json:"createdAt"`
	UpdatedAt        string           `json:"updatedAt"`
}

type validateRangeRequest struct {
	Space     string `json:"space"`
	Period    string `json:"period"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate,omitempty"`
	ExcludeID string `json:"excludeId,omitempty"`
}

type miniBudgetRequest struct {
	Name        string `json:"name"`
	AmountCents int64  `json:"amountCents"`
	Category    string `json:"category"`
}

type miniBudgetResponse struct {
	ID          string `json:"id"`
	BudgetID    string `json:"budgetId"`
	Name        string `json:"name"`
	AmountCents int64  `json:"amountCents"`
	Category    string `json:"category"`
}

type transactionRequest struct {
	Space          string `json:"space"`
	Type           string `json:"type"`
	AmountCents    int64  `json:"amountCents"`
	Category       string `json:"category"`
	Description    string `json:"description,omitempty"`
	OccurredAt     string `json:"occurredAt"`
	BudgetID       string `json:"budgetId,omitempty"`
	BudgetCategory string `json:"budgetCategory,omitempty"`
	MiniBudgetID   string `json:"miniBudgetId,omitempty"`
}

type transactionResponse struct {
	ID             string `json:"id"`
	Space          string `json:"space"`
	Type           string `json:"type"`
	AmountCents    int64  `json:"amountCents"`
	Category       string `json:"category"`
	Description    string `json:"description,omitempty"`
	OccurredAt     string `json:"occurredAt"`
	BudgetID       string `json:"budgetId,omitempty"`
	BudgetCategory string `json:"budgetCategory,omitempty"`
	MiniBudgetID   string `json:"miniBudgetId,omitempty"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
}

type bankLinkRequest struct {
	Space         string `json:"space"`
	BankAccountID string `json:"bankAccountId"`
}

type importResponse struct {
	ID            string `json:"id"`
	Space         string `json:"space"`
	BankAccountID string `json:"bankAccountId"`
	AmountCents   int64  `json:"amountCents"`
	Direction     string `json:"direction"`
	Description   string `json:"description,omitempty"`
	Merchant      string `json:"merchant,omitempty"`
	OccurredAt    string `json:"occurredAt"`
	Status        string `json:"status"`
	ReconciledAt  string `json:"reconciledAt,omitempty"`
}

type reconcileRequest struct {
	Type           string `json:"type,omitempty"`
	Category       string `json:"category,omitempty"`
	BudgetCategory string `json:"budgetCategory,omitempty"`
	MiniBudgetID   string `json:"miniBudgetId,omitempty"`
}

type daySpendingResponse struct {
	Date       string           `json:"date"`
	TotalCents int64            `json:"totalCents"`
	ByCategory map[string]int64 `json:"byCategory,omitempty"`
}

type summaryResponse struct {
	ActiveBudgetID          string                `json:"activeBudgetId,omitempty"`
	TotalBalanceCents       int64                 `json:"totalBalanceCents"`
	IncomeCents             int64                 `json:"incomeCents"`
	ExpensesCents           int64                 `json:"expensesCents"`
	RemainingBudgetCents    int64                 `json:"remainingBudgetCents"`
	SpendingByCategory      map[string]int64      `json:"spendingByCategory"`
	SpendingByBucket        map[string]int64      `json:"spendingByBucket"`
	SpendingByMiniBudget    map[string]int64      `json:"spendingByMiniBudget,omitempty"`
	DailySpendingByCategory []daySpendingResponse `json:"dailySpendingByCategory"`
}

func (req budgetRequest) toBudget() (core.Budget, error) {
	start, err := core.ParseDate(req.StartDate)
	if err != nil {
		return core.Budget{}, err
	}
	b := core.Budget{
		Space:       core.Space(req.Space),
		Name:        req.Name,
		TotalBudget: core.Money{Cents: req.TotalBudgetCents},
		Period:      core.Period(req.Period),
		StartDate:   start,
		Categories:  toAllocations(req.Categories),
	}
	if req.EndDate != "" {
		end, err := core.ParseDate(req.EndDate)
		if err != nil {
			return core.Budget{}, err
		}
		b.EndDate = end
	}
	return b, nil
}

func (req budgetPatchRequest) toPatch() (services.BudgetPatch, error) {
	patch := services.BudgetPatch{
		Name:       req.Name,
		Categories: toAllocations(req.Categories),
	}
	if req.TotalBudgetCents != nil {
		patch.TotalBudget = &core.Money{Cents: *req.TotalBudgetCents}
	}
	if req.Period != nil {
		p := core.Period(*req.Period)
		patch.Period = &p
	}
	if req.StartDate != nil {
		d, err := core.ParseDate(*req.StartDate)
		if err != nil {
			return services.BudgetPatch{}, err
		}
		patch.StartDate = &d
	}
	if req.EndDate != nil {
		// An explicit empty string clears the end date so the effective
		// end is derived from the period again.
		if *req.EndDate == "" {
			patch.EndDate = &core.Date{}
		} else {
			d, err := core.ParseDate(*req.EndDate)
			if err != nil {
				return services.BudgetPatch{}, err
			}
			patch.EndDate = &d
		}
	}
	return patch, nil
}

func toAllocations(m map[string]int64) map[core.Bucket]core.Allocation {
	if m == nil {
		return nil
	}
	out := make(map[core.Bucket]core.Allocation, len(m))
	for bucket, cents := range m {
		out[core.Bucket(bucket)] = core.Allocation{Budgeted: core.Money{Cents: cents}}
	}
	return out
}

func fromBudget(b core.Budget) budgetResponse {
	resp := budgetResponse{
		ID:               b.ID,
		Space:            string(b.Space),
		Name:             b.Name,
		TotalBudgetCents: b.TotalBudget.Cents,
		Period:           string(b.Period),
		StartDate:        b.StartDate.String(),
		EffectiveEndDate: b.EffectiveRange().End.String(),
		CreatedAt:        b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        b.UpdatedAt.Format(time.RFC3339),
	}
	if !b.EndDate.IsZero() {
		resp.EndDate = b.EndDate.String()
	}
	if len(b.Categories) > 0 {
		resp.Categories = make(map[string]int64, len(b.Categories))
		for bucket, alloc := range b.Categories {
			resp.Categories[string(bucket)] = alloc.Budgeted.Cents
		}
	}
	return resp
}

func fromMiniBudget(mb core.MiniBudget) miniBudgetResponse {
	return miniBudgetResponse{
		ID:          mb.ID,
		BudgetID:    mb.BudgetID,
		Name:        mb.Name,
		AmountCents: mb.Amount.Cents,
		Category:    string(mb.Category),
	}
}

func (req transactionRequest) toTransaction() (core.Transaction, error) {
	occurredAt, err := time.Parse(time.RFC3339, req.OccurredAt)
	if err != nil {
		return core.Transaction{}, core.ErrInvalidDate
	}
	return core.Transaction{
		Space:          core.Space(req.Space),
		Type:           core.TransactionType(req.Type),
		Amount:         core.Money{Cents: req.AmountCents},
		Category:       req.Category,
		Description:    req.Description,
		OccurredAt:     occurredAt,
		BudgetID:       req.BudgetID,
		BudgetCategory: core.Bucket(req.BudgetCategory),
		MiniBudgetID:   req.MiniBudgetID,
	}, nil
}

func fromTransaction(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:             t.ID,
		Space:          string(t.Space),
		Type:           string(t.Type),
		AmountCents:    t.Amount.Cents,
		Category:       t.Category,
		Description:    t.Description,
		OccurredAt:     t.OccurredAt.Format(time.RFC3339),
		BudgetID:       t.BudgetID,
		BudgetCategory: string(t.BudgetCategory),
		MiniBudgetID:   t.MiniBudgetID,
		CreatedAt:      t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      t.UpdatedAt.Format(time.RFC3339),
	}
}

func fromImport(it core.ImportedTransaction) importResponse {
	resp := importResponse{
		ID:            it.ID,
		Space:         string(it.Space),
		BankAccountID: it.BankAccountID,
		AmountCents:   it.Amount.Cents,
		Direction:     string(it.Direction),
		Description:   it.Description,
		Merchant:      it.Merchant,
		OccurredAt:    it.OccurredAt.Format(time.RFC3339),
		Status:        string(it.Status),
	}
	if !it.ReconciledAt.IsZero() {
		resp.ReconciledAt = it.ReconciledAt.Format(time.RFC3339)
	}
	return resp
}

func fromSummary(sum services.Summary) summaryResponse {
	resp := summaryResponse{
		ActiveBudgetID:          sum.ActiveBudgetID,
		TotalBalanceCents:       sum.TotalBalance.Cents,
		IncomeCents:             sum.Income.Cents,
		ExpensesCents:           sum.Expenses.Cents,
		RemainingBudgetCents:    sum.RemainingBudget.Cents,
		SpendingByCategory:      make(map[string]int64, len(sum.SpendingByCategory)),
		SpendingByBucket:        make(map[string]int64, len(sum.SpendingByBucket)),
		DailySpendingByCategory: make([]daySpendingResponse, 0, len(sum.DailySpendingByCategory)),
	}
	for category, m := range sum.SpendingByCategory {
		resp.SpendingByCategory[category] = m.Cents
	}
	for bucket, m := range sum.SpendingByBucket {
		resp.SpendingByBucket[string(bucket)] = m.Cents
	}
	if len(sum.SpendingByMiniBudget) > 0 {
		resp.SpendingByMiniBudget = make(map[string]int64, len(sum.SpendingByMiniBudget))
		for name, m := range sum.SpendingByMiniBudget {
			resp.SpendingByMiniBudget[name] = m.Cents
		}
	}
	for _, day := range sum.DailySpendingByCategory {
		d := daySpendingResponse{
			Date:       day.Date.String(),
			TotalCents: day.Total.Cents,
		}
		if len(day.ByCategory) > 0 {
			d.ByCategory = make(map[string]int64, len(day.ByCategory))
			for category, m := range day.ByCategory {
				d.ByCategory[category] = m.Cents
			}
		}
		resp.DailySpendingByCategory = append(resp.DailySpendingByCategory, d)
	}
	return resp
}
