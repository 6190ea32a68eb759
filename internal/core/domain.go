package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Personal Space = "personal"
	Business Space = "business"

	Monthly Period = "monthly"
	Weekly  Period = "weekly"

	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	Debit  Direction = "debit"
	Credit Direction = "credit"

	ImportPending    ImportStatus = "pending"
	ImportReconciled ImportStatus = "reconciled"
	ImportIgnored    ImportStatus = "ignored"
)

type (
	Space           string
	Period          string
	TransactionType string
	Direction       string
	ImportStatus    string

	Money struct {
		Cents int64
	}

	// Allocation is the planned amount for one bucket inside a budget.
	Allocation struct {
		Budgeted Money
	}

	// Budget is one planning period for one space. EndDate may be zero;
	// the effective end is then derived from Period (see EffectiveEnd).
	Budget struct {
		ID          string
		Space       Space
		Name        string
		TotalBudget Money
		Period      Period
		StartDate   Date
		EndDate     Date // optional, zero when derived
		Categories  map[Bucket]Allocation
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// Transaction is a ledger entry. BudgetID, BudgetCategory and
	// MiniBudgetID are weak references: they may dangle after the
	// referenced entity is deleted and must be resolved leniently.
	Transaction struct {
		ID             string
		Space          Space
		Type           TransactionType
		Amount         Money
		Category       string
		Description    string
		OccurredAt     time.Time
		BudgetID       string
		BudgetCategory Bucket // zero when unattributed
		MiniBudgetID   string
		CreatedAt      time.Time
		UpdatedAt      time.Time
	}

	// MiniBudget is a named sub-allocation under one budget and one bucket.
	MiniBudget struct {
		ID       string
		BudgetID string
		Name     string
		Amount   Money
		Category Bucket
	}

	// ImportedTransaction is a staged bank record awaiting reconciliation.
	ImportedTransaction struct {
		ID            string
		Space         Space
		BankAccountID string
		Amount        Money
		Direction     Direction
		Description   string
		Merchant      string
		OccurredAt    time.Time
		Status        ImportStatus
		ReconciledAt  time.Time // zero until reconciled
	}
)

var (
	ErrInvalidSpace     = errors.New("invalid space")
	ErrInvalidPeriod    = errors.New("invalid period")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidDirection = errors.New("invalid direction")
	ErrInvalidBucket    = errors.New("invalid bucket")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidStatus    = errors.New("invalid import status")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyCategory    = errors.New("empty category")
	ErrRangeInverted    = errors.New("start date after effective end date")

	ErrBudgetOverlap    = errors.New("a budget already exists for that timeline")
	ErrAlreadyFinalized = errors.New("imported transaction already reconciled or ignored")
	ErrNotFound         = errors.New("not found")
	ErrUnauthenticated  = errors.New("unauthenticated")
)

func (s Space) Validate() error {
	switch s {
	case Personal, Business:
		return nil
	}
	return ErrInvalidSpace
}

func (p Period) Validate() error {
	switch p {
	case Monthly, Weekly:
		return nil
	}
	return ErrInvalidPeriod
}

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	}
	return ErrInvalidType
}

func (d Direction) Validate() error {
	switch d {
	case Debit, Credit:
		return nil
	}
	return ErrInvalidDirection
}

func (s ImportStatus) Validate() error {
	switch s {
	case ImportPending, ImportReconciled, ImportIgnored:
		return nil
	}
	return ErrInvalidStatus
}

// Terminal reports whether the status admits no further transitions.
func (s ImportStatus) Terminal() bool {
	return s == ImportReconciled || s == ImportIgnored
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (b Budget) Validate() error {
	if err := b.Space.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	if b.TotalBudget.Cents < 0 {
		return ErrInvalidAmount
	}
	if err := b.Period.Validate(); err != nil {
		return err
	}
	if b.StartDate.IsZero() {
		return ErrInvalidDate
	}
	for bucket, alloc := range b.Categories {
		if err := bucket.Validate(); err != nil {
			return err
		}
		if alloc.Budgeted.Cents < 0 {
			return ErrInvalidAmount
		}
	}
	r := b.EffectiveRange()
	if r.End.Before(r.Start.Time) {
		return ErrRangeInverted
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Space.Validate(); err != nil {
		return err
	}
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if t.OccurredAt.IsZero() {
		return ErrInvalidDate
	}
	if t.BudgetCategory != "" {
		if err := t.BudgetCategory.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (mb MiniBudget) Validate() error {
	if mb.BudgetID == "" {
		return errors.New("empty budget reference")
	}
	if strings.TrimSpace(mb.Name) == "" {
		return ErrEmptyName
	}
	if err := mb.Amount.Validate(); err != nil {
		return err
	}
	return mb.Category.Validate()
}

func (it ImportedTransaction) Validate() error {
	if err := it.Space.Validate(); err != nil {
		return err
	}
	if it.BankAccountID == "" {
		return errors.New("empty bank account reference")
	}
	if err := it.Amount.Validate(); err != nil {
		return err
	}
	if err := it.Direction.Validate(); err != nil {
		return err
	}
	if it.OccurredAt.IsZero() {
		return ErrInvalidDate
	}
	return nil
}
