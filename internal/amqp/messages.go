package amqp

import (
	"encoding/json"
	"time"
)

// ReconciledEvent is published after an imported transaction has been
// reconciled into the ledger. Consumers (dashboards, exporters) fetch
// the full transaction themselves; the event carries identifiers only.
type ReconciledEvent struct {
	UserID        string    `json:"user_id"`
	ImportedID    string    `json:"imported_id"`
	TransactionID string    `json:"transaction_id"`
	Space         string    `json:"space"`
	AmountCents   int64     `json:"amount_cents"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewReconciledEvent(userID, importedID, transactionID, space string, amountCents int64) *ReconciledEvent {
	return &ReconciledEvent{
		UserID:        userID,
		ImportedID:    importedID,
		TransactionID: transactionID,
		Space:         space,
		AmountCents:   amountCents,
		Timestamp:     time.Now(),
	}
}

func (e *ReconciledEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// BankFeedMessage is one incoming bank feed record, consumed by the feed
// worker and staged as a pending imported transaction.
type BankFeedMessage struct {
	UserID        string    `json:"user_id"`
	Space         string    `json:"space"`
	BankAccountID string    `json:"bank_account_id"`
	AmountCents   int64     `json:"amount_cents"`
	Direction     string    `json:"direction"`
	Description   string    `json:"description"`
	Merchant      string    `json:"merchant"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (m *BankFeedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BankFeedMessageFromJSON(data []byte) (*BankFeedMessage, error) {
	var msg BankFeedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
