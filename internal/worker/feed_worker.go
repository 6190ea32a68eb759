// Package worker stages incoming bank feed records as pending imports.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"budgeteer/internal/amqp"
	"budgeteer/internal/core"
	"budgeteer/internal/store"
)

// FeedWorker consumes bank feed messages and stages each one as a
// pending imported transaction. Staging is the only write; nothing
// reaches the ledger until someone reconciles the record.
type FeedWorker struct {
	imports store.ImportStore
}

func NewFeedWorker(imports store.ImportStore) *FeedWorker {
	return &FeedWorker{imports: imports}
}

// HandleFeedMessage stages a single bank feed record. A returned error
// requeues the delivery, so validation failures are reported as nil
// after logging: a malformed record will never become stageable.
func (w *FeedWorker) HandleFeedMessage(ctx context.Context, msg *amqp.BankFeedMessage) error {
	if strings.TrimSpace(msg.UserID) == "" {
		slog.WarnContext(ctx, "Dropping feed record without user", "bank_account_id", msg.BankAccountID)
		return nil
	}

	imported := core.ImportedTransaction{
		ID:            uuid.NewString(),
		Space:         core.Space(msg.Space),
		BankAccountID: msg.BankAccountID,
		Amount:        core.Money{Cents: msg.AmountCents},
		Direction:     core.Direction(msg.Direction),
		Description:   msg.Description,
		Merchant:      msg.Merchant,
		OccurredAt:    msg.OccurredAt,
		Status:        core.ImportPending,
	}
	if err := imported.Validate(); err != nil {
		slog.WarnContext(ctx, "Dropping invalid feed record",
			"error", err,
			"bank_account_id", msg.BankAccountID,
			"space", msg.Space)
		return nil
	}

	if err := w.imports.CreateImported(ctx, msg.UserID, []core.ImportedTransaction{imported}); err != nil {
		return fmt.Errorf("stage feed record: %w", err)
	}

	slog.InfoContext(ctx, "Staged feed record",
		"imported_id", imported.ID,
		"user_id", msg.UserID,
		"space", msg.Space,
		"amount_cents", msg.AmountCents)
	return nil
}
