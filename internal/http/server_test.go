package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"budgeteer/internal/cache"
	"budgeteer/internal/services"
	"budgeteer/internal/store/memory"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	st := memory.New()
	attr := services.NewAttributor(st)
	srv := NewServer(":0", Services{
		Budgets:    services.NewBudgetService(st),
		Ledger:     services.NewLedger(st, attr),
		Reconciler: services.NewReconciler(st, attr, nil),
		BankLinks:  services.NewBankLinks(st),
		Analytics:  services.NewAnalytics(st, attr),
	}, cache.NewLRUCache(100, time.Minute))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	ts := httptest.NewServer(srv.Server.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path string, body any, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp
}

func monthlyBudgetBody(name, start string) map[string]any {
	return map[string]any{
		"space":            "personal",
		"name":             name,
		"totalBudgetCents": 250000,
		"period":           "monthly",
		"startDate":        start,
	}
}

func TestMissingIdentityIsUnauthorized(t *testing.T) {
	ts := testServer(t)

	resp, err := ts.Client().Get(ts.URL + "/budgets?space=personal")
	if err != nil {
		t.Fatalf("get budgets: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", resp.StatusCode)
	}
}

func TestBudgetLifecycle(t *testing.T) {
	ts := testServer(t)

	var created budgetResponse
	resp := doJSON(t, ts, http.MethodPost, "/budgets", monthlyBudgetBody("March", "2024-03-01"), &created)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create budget: status %d", resp.StatusCode)
	}
	if created.ID == "" || created.EffectiveEndDate != "2024-03-31" {
		t.Fatalf("unexpected create response: %+v", created)
	}

	var fetched budgetResponse
	resp = doJSON(t, ts, http.MethodGet, "/budgets/"+created.ID+"?space=personal", nil, &fetched)
	if resp.StatusCode != http.StatusOK || fetched.Name != "March" {
		t.Fatalf("get budget: status %d body %+v", resp.StatusCode, fetched)
	}

	newName := "March (adjusted)"
	var updated budgetResponse
	resp = doJSON(t, ts, http.MethodPatch, "/budgets/"+created.ID+"?space=personal",
		map[string]any{"name": newName}, &updated)
	if resp.StatusCode != http.StatusOK || updated.Name != newName {
		t.Fatalf("update budget: status %d body %+v", resp.StatusCode, updated)
	}

	resp = doJSON(t, ts, http.MethodDelete, "/budgets/"+created.ID+"?space=personal", nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete budget: status %d", resp.StatusCode)
	}

	resp = doJSON(t, ts, http.MethodGet, "/budgets/"+created.ID+"?space=personal", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestOverlapIsConflictWithActionableMessage(t *testing.T) {
	ts := testServer(t)

	resp := doJSON(t, ts, http.MethodPost, "/budgets", monthlyBudgetBody("March", "2024-03-01"), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("seed budget: status %d", resp.StatusCode)
	}

	var body errorBody
	resp = doJSON(t, ts, http.MethodPost, "/budgets", monthlyBudgetBody("Clash", "2024-03-31"), &body)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for overlapping budget, got %d", resp.StatusCode)
	}
	if body.Error != "a budget already exists for that timeline" {
		t.Fatalf("conflict message: %q", body.Error)
	}
}

func TestValidationIsBadRequest(t *testing.T) {
	ts := testServer(t)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"bad period", map[string]any{
			"space": "personal", "name": "x", "period": "quarterly", "startDate": "2024-03-01",
		}},
		{"bad space", map[string]any{
			"space": "family", "name": "x", "period": "monthly", "startDate": "2024-03-01",
		}},
		{"bad date", map[string]any{
			"space": "personal", "name": "x", "period": "monthly", "startDate": "03/01/2024",
		}},
		{"inverted range", map[string]any{
			"space": "personal", "name": "x", "period": "monthly",
			"startDate": "2024-03-10", "endDate": "2024-03-01",
		}},
	}
	for _, tc := range cases {
		resp := doJSON(t, ts, http.MethodPost, "/budgets", tc.body, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, resp.StatusCode)
		}
	}
}

func TestReconcileFlow(t *testing.T) {
	ts := testServer(t)

	resp := doJSON(t, ts, http.MethodPost, "/bank-links",
		map[string]any{"space": "personal", "bankAccountId": "acct-9"}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("bank link: status %d", resp.StatusCode)
	}

	var pending []importResponse
	resp = doJSON(t, ts, http.MethodGet, "/imports?space=personal&status=pending", nil, &pending)
	if resp.StatusCode != http.StatusOK || len(pending) == 0 {
		t.Fatalf("list imports: status %d count %d", resp.StatusCode, len(pending))
	}

	var debit importResponse
	for _, it := range pending {
		if it.Direction == "debit" {
			debit = it
			break
		}
	}
	if debit.ID == "" {
		t.Fatal("expected at least one pending debit")
	}

	var txn transactionResponse
	resp = doJSON(t, ts, http.MethodPost, "/imports/"+debit.ID+"/reconcile?space=personal", nil, &txn)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reconcile: status %d", resp.StatusCode)
	}
	if txn.Type != "expense" || txn.AmountCents != debit.AmountCents {
		t.Fatalf("reconciled transaction: %+v", txn)
	}

	// A second reconcile of the same record is a conflict, not a duplicate.
	resp = doJSON(t, ts, http.MethodPost, "/imports/"+debit.ID+"/reconcile?space=personal", nil, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on second reconcile, got %d", resp.StatusCode)
	}

	var txns []transactionResponse
	doJSON(t, ts, http.MethodGet, "/transactions?space=personal", nil, &txns)
	if len(txns) != 1 {
		t.Fatalf("expected exactly one ledger transaction, got %d", len(txns))
	}
}

func TestIgnoreImport(t *testing.T) {
	ts := testServer(t)

	var staged []importResponse
	doJSON(t, ts, http.MethodPost, "/bank-links",
		map[string]any{"space": "personal", "bankAccountId": "acct-9"}, &staged)
	if len(staged) == 0 {
		t.Fatal("no staged imports")
	}

	var ignored importResponse
	resp := doJSON(t, ts, http.MethodPost, "/imports/"+staged[0].ID+"/ignore?space=personal", nil, &ignored)
	if resp.StatusCode != http.StatusOK || ignored.Status != "ignored" {
		t.Fatalf("ignore: status %d body %+v", resp.StatusCode, ignored)
	}

	var txns []transactionResponse
	doJSON(t, ts, http.MethodGet, "/transactions?space=personal", nil, &txns)
	if len(txns) != 0 {
		t.Fatalf("ignored import must not create a transaction, got %d", len(txns))
	}
}

func TestSummaryReflectsWrites(t *testing.T) {
	ts := testServer(t)

	doJSON(t, ts, http.MethodPost, "/budgets", monthlyBudgetBody("March", "2024-03-01"), nil)

	post := func(cents int64, day int) {
		resp := doJSON(t, ts, http.MethodPost, "/transactions", map[string]any{
			"space":       "personal",
			"type":        "expense",
			"amountCents": cents,
			"category":    "Groceries",
			"occurredAt":  fmt.Sprintf("2024-03-%02dT10:00:00Z", day),
		}, nil)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create transaction: status %d", resp.StatusCode)
		}
	}
	post(4500, 5)

	var first summaryResponse
	resp := doJSON(t, ts, http.MethodGet, "/summary?space=personal&from=2024-03-01&to=2024-03-31", nil, &first)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("summary: status %d", resp.StatusCode)
	}
	if first.ExpensesCents != 4500 || first.RemainingBudgetCents != 245500 {
		t.Fatalf("first summary: %+v", first)
	}

	// The second write must invalidate the cached summary.
	post(1500, 6)

	var second summaryResponse
	doJSON(t, ts, http.MethodGet, "/summary?space=personal&from=2024-03-01&to=2024-03-31", nil, &second)
	if second.ExpensesCents != 6000 {
		t.Fatalf("summary after write: expenses %d", second.ExpensesCents)
	}
	if len(second.DailySpendingByCategory) != 31 {
		t.Fatalf("expected one bucket per day of March, got %d", len(second.DailySpendingByCategory))
	}
}

// Transactions early or late in the day still count toward their own
// calendar day when that day is a range boundary.
func TestSummaryCountsBoundaryDayTransactions(t *testing.T) {
	ts := testServer(t)

	doJSON(t, ts, http.MethodPost, "/budgets", monthlyBudgetBody("March", "2024-03-01"), nil)

	post := func(cents int64, occurredAt string) {
		resp := doJSON(t, ts, http.MethodPost, "/transactions", map[string]any{
			"space":       "personal",
			"type":        "expense",
			"amountCents": cents,
			"category":    "Groceries",
			"occurredAt":  occurredAt,
		}, nil)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create transaction: status %d", resp.StatusCode)
		}
	}
	post(4500, "2024-03-15T18:00:00Z") // evening of the upper bound day
	post(1500, "2024-03-15T03:00:00Z") // early morning of the lower bound day

	var sum summaryResponse
	resp := doJSON(t, ts, http.MethodGet, "/summary?space=personal&from=2024-03-15&to=2024-03-15", nil, &sum)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("summary: status %d", resp.StatusCode)
	}
	if sum.ExpensesCents != 6000 {
		t.Fatalf("expected both boundary-day transactions counted, got expenses %d", sum.ExpensesCents)
	}

	var txns []transactionResponse
	doJSON(t, ts, http.MethodGet, "/transactions?space=personal&from=2024-03-15&to=2024-03-15", nil, &txns)
	if len(txns) != 2 {
		t.Fatalf("listing must include boundary-day transactions, got %d", len(txns))
	}
}

func TestPatchClearsExplicitEndDate(t *testing.T) {
	ts := testServer(t)

	body := monthlyBudgetBody("March", "2024-03-01")
	body["endDate"] = "2024-03-20"
	var created budgetResponse
	resp := doJSON(t, ts, http.MethodPost, "/budgets", body, &created)
	if resp.StatusCode != http.StatusCreated || created.EffectiveEndDate != "2024-03-20" {
		t.Fatalf("create: status %d body %+v", resp.StatusCode, created)
	}

	var updated budgetResponse
	resp = doJSON(t, ts, http.MethodPatch, "/budgets/"+created.ID+"?space=personal",
		map[string]any{"endDate": ""}, &updated)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch: status %d", resp.StatusCode)
	}
	if updated.EndDate != "" || updated.EffectiveEndDate != "2024-03-31" {
		t.Fatalf("cleared end date must derive the month end again: %+v", updated)
	}
}

func TestSummaryRequiresRange(t *testing.T) {
	ts := testServer(t)

	resp := doJSON(t, ts, http.MethodGet, "/summary?space=personal", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without range, got %d", resp.StatusCode)
	}
}
