package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"budgeteer/internal/core"
	"budgeteer/internal/store"
)

// seedRecord is one simulated bank feed entry, staged relative to the
// link time. Real institution feeds arrive through the AMQP worker; this
// seed keeps the reconciliation flow usable without a bank connection.
type seedRecord struct {
	daysAgo     int
	cents       int64
	direction   core.Direction
	merchant    string
	description string
}

var personalSeed = []seedRecord{
	{1, 4500, core.Debit, "Corner Market", "Card purchase"},
	{2, 1250, core.Debit, "Metro Transit", "Fare"},
	{3, 8999, core.Debit, "PowerGrid Utilities", "Monthly bill"},
	{5, 250000, core.Credit, "Acme Corp", "Salary"},
	{6, 3200, core.Debit, "Streamly", "Subscription renewal"},
	{9, 15400, core.Debit, "Fresh Foods", "Groceries"},
}

var businessSeed = []seedRecord{
	{1, 120000, core.Debit, "CloudStack", "Hosting invoice"},
	{2, 450000, core.Debit, "WorkSpace Realty", "Office rent"},
	{4, 980000, core.Credit, "Client Ltd", "Invoice payment"},
	{7, 68000, core.Debit, "AdReach", "Campaign spend"},
	{8, 230000, core.Debit, "PayDay Services", "Contractor payout"},
}

// BankLinks simulates the import side of a bank connection: linking an
// account stages a batch of pending imported transactions.
type BankLinks struct {
	store store.ImportStore
}

func NewBankLinks(st store.ImportStore) *BankLinks {
	return &BankLinks{store: st}
}

// Establish links a bank account and stages its seed feed as pending
// imports. Every record starts pending; nothing is visible in analytics
// until reconciled.
func (b *BankLinks) Establish(ctx context.Context, userID string, space core.Space, bankAccountID string) ([]core.ImportedTransaction, error) {
	if err := space.Validate(); err != nil {
		return nil, err
	}
	if bankAccountID == "" {
		return nil, fmt.Errorf("empty bank account id")
	}

	seed := personalSeed
	if space == core.Business {
		seed = businessSeed
	}

	now := time.Now().UTC()
	batch := make([]core.ImportedTransaction, 0, len(seed))
	for _, rec := range seed {
		batch = append(batch, core.ImportedTransaction{
			ID:            uuid.NewString(),
			Space:         space,
			BankAccountID: bankAccountID,
			Amount:        core.Money{Cents: rec.cents},
			Direction:     rec.direction,
			Description:   rec.description,
			Merchant:      rec.merchant,
			OccurredAt:    now.AddDate(0, 0, -rec.daysAgo),
			Status:        core.ImportPending,
		})
	}
	if err := b.store.CreateImported(ctx, userID, batch); err != nil {
		return nil, fmt.Errorf("stage imports: %w", err)
	}

	slog.InfoContext(ctx, "Bank link established",
		"bank_account_id", bankAccountID,
		"space", space,
		"staged", len(batch))
	return batch, nil
}

// ListImports returns staged imports, optionally filtered by status.
func (b *BankLinks) ListImports(ctx context.Context, userID string, space core.Space, status core.ImportStatus) ([]core.ImportedTransaction, error) {
	if err := space.Validate(); err != nil {
		return nil, err
	}
	if status != "" {
		if err := status.Validate(); err != nil {
			return nil, err
		}
	}
	return b.store.ListImported(ctx, userID, space, status)
}
