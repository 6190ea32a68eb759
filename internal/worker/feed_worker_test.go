package worker

import (
	"context"
	"testing"
	"time"

	"budgeteer/internal/amqp"
	"budgeteer/internal/core"
	"budgeteer/internal/store/memory"
)

func feedMessage() *amqp.BankFeedMessage {
	return &amqp.BankFeedMessage{
		UserID:        "user-1",
		Space:         "personal",
		BankAccountID: "acct-1",
		AmountCents:   4500,
		Direction:     "debit",
		Description:   "Card purchase",
		Merchant:      "Corner Market",
		OccurredAt:    time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
	}
}

func TestHandleFeedMessageStagesPendingImport(t *testing.T) {
	st := memory.New()
	w := NewFeedWorker(st)

	if err := w.HandleFeedMessage(context.Background(), feedMessage()); err != nil {
		t.Fatalf("handle feed message: %v", err)
	}

	imports, err := st.ListImported(context.Background(), "user-1", core.Personal, core.ImportPending)
	if err != nil {
		t.Fatalf("list imported: %v", err)
	}
	if len(imports) != 1 {
		t.Fatalf("expected 1 staged import, got %d", len(imports))
	}
	it := imports[0]
	if it.Status != core.ImportPending || it.Amount.Cents != 4500 || it.Direction != core.Debit {
		t.Fatalf("staged import: %+v", it)
	}
}

func TestHandleFeedMessageDropsInvalidRecords(t *testing.T) {
	st := memory.New()
	w := NewFeedWorker(st)

	cases := []struct {
		name   string
		mutate func(*amqp.BankFeedMessage)
	}{
		{"missing user", func(m *amqp.BankFeedMessage) { m.UserID = " " }},
		{"bad space", func(m *amqp.BankFeedMessage) { m.Space = "family" }},
		{"bad direction", func(m *amqp.BankFeedMessage) { m.Direction = "transfer" }},
		{"non-positive amount", func(m *amqp.BankFeedMessage) { m.AmountCents = 0 }},
		{"zero occurred at", func(m *amqp.BankFeedMessage) { m.OccurredAt = time.Time{} }},
	}
	for _, tc := range cases {
		msg := feedMessage()
		tc.mutate(msg)
		// Invalid records must not requeue forever; the handler drops them.
		if err := w.HandleFeedMessage(context.Background(), msg); err != nil {
			t.Fatalf("%s: expected drop without error, got %v", tc.name, err)
		}
	}

	imports, err := st.ListImported(context.Background(), "user-1", core.Personal, "")
	if err != nil {
		t.Fatalf("list imported: %v", err)
	}
	if len(imports) != 0 {
		t.Fatalf("invalid records must not be staged, got %d", len(imports))
	}
}
