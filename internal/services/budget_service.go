package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"budgeteer/internal/core"
	"budgeteer/internal/store"
)

// BudgetService owns budget and mini-budget lifecycle. Overlap checking
// is check-then-act, so all budget writes for one (user, space) pair go
// through a single-writer critical section on top of the store.
type BudgetService struct {
	store store.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewBudgetService(st store.Store) *BudgetService {
	return &BudgetService{
		store: st,
		locks: make(map[string]*sync.Mutex),
	}
}

// BudgetPatch carries a partial update; nil fields are left untouched.
// A non-nil zero EndDate clears the explicit end so it is derived again.
type BudgetPatch struct {
	Name        *string
	TotalBudget *core.Money
	Period      *core.Period
	StartDate   *core.Date
	EndDate     *core.Date
	Categories  map[core.Bucket]core.Allocation
}

func (s *BudgetService) spaceLock(userID string, space core.Space) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userID + "/" + string(space)
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// Create validates the budget against all siblings in the space and
// persists it. Nothing is written when validation fails.
func (s *BudgetService) Create(ctx context.Context, userID string, b core.Budget) (core.Budget, error) {
	b.ID = uuid.NewString()
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	l := s.spaceLock(userID, b.Space)
	l.Lock()
	defer l.Unlock()

	if err := s.validateNoOverlap(ctx, userID, b.Space, b.EffectiveRange(), ""); err != nil {
		return core.Budget{}, err
	}
	if err := s.store.CreateBudget(ctx, userID, b); err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}

	slog.InfoContext(ctx, "Budget created",
		"budget_id", b.ID,
		"space", b.Space,
		"start", b.StartDate.String(),
		"end", core.EffectiveEnd(b.Period, b.StartDate, b.EndDate).String())
	return b, nil
}

// Update applies a partial update. Any change that can shift the
// effective range re-validates overlap against all siblings.
func (s *BudgetService) Update(ctx context.Context, userID string, space core.Space, id string, patch BudgetPatch) (core.Budget, error) {
	if err := space.Validate(); err != nil {
		return core.Budget{}, err
	}

	l := s.spaceLock(userID, space)
	l.Lock()
	defer l.Unlock()

	b, err := s.store.GetBudget(ctx, userID, space, id)
	if err != nil {
		return core.Budget{}, err
	}

	if patch.Name != nil {
		b.Name = *patch.Name
	}
	if patch.TotalBudget != nil {
		b.TotalBudget = *patch.TotalBudget
	}
	if patch.Period != nil {
		b.Period = *patch.Period
	}
	if patch.StartDate != nil {
		b.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		b.EndDate = *patch.EndDate
	}
	if patch.Categories != nil {
		b.Categories = patch.Categories
	}
	b.UpdatedAt = time.Now().UTC()

	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	if err := s.validateNoOverlap(ctx, userID, space, b.EffectiveRange(), id); err != nil {
		return core.Budget{}, err
	}
	if err := s.store.UpdateBudget(ctx, userID, b); err != nil {
		return core.Budget{}, fmt.Errorf("update budget: %w", err)
	}
	return b, nil
}

// Delete removes the budget and cascades its mini-budgets. Transactions
// referencing the budget are left alone; their reference goes dangling
// and readers tolerate that.
func (s *BudgetService) Delete(ctx context.Context, userID string, space core.Space, id string) error {
	if err := space.Validate(); err != nil {
		return err
	}
	if err := s.store.DeleteBudget(ctx, userID, space, id); err != nil {
		return err
	}
	if err := s.store.DeleteMiniBudgetsForBudget(ctx, userID, id); err != nil {
		return fmt.Errorf("cascade mini-budgets: %w", err)
	}
	slog.InfoContext(ctx, "Budget deleted", "budget_id", id, "space", space)
	return nil
}

func (s *BudgetService) Get(ctx context.Context, userID string, space core.Space, id string) (core.Budget, error) {
	if err := space.Validate(); err != nil {
		return core.Budget{}, err
	}
	return s.store.GetBudget(ctx, userID, space, id)
}

func (s *BudgetService) List(ctx context.Context, userID string, space core.Space) ([]core.Budget, error) {
	if err := space.Validate(); err != nil {
		return nil, err
	}
	return s.store.ListBudgets(ctx, userID, space)
}

// ValidateNoOverlap checks a candidate range against every sibling in
// the space, excluding the budget being updated. Exposed for callers
// that want a dry-run conflict check.
func (s *BudgetService) ValidateNoOverlap(ctx context.Context, userID string, space core.Space, candidate core.Range, excludeID string) error {
	if err := space.Validate(); err != nil {
		return err
	}
	l := s.spaceLock(userID, space)
	l.Lock()
	defer l.Unlock()
	return s.validateNoOverlap(ctx, userID, space, candidate, excludeID)
}

func (s *BudgetService) validateNoOverlap(ctx context.Context, userID string, space core.Space, candidate core.Range, excludeID string) error {
	if err := core.ValidateRange(candidate); err != nil {
		return err
	}
	siblings, err := s.store.ListBudgets(ctx, userID, space)
	if err != nil {
		return fmt.Errorf("list budgets: %w", err)
	}
	for _, sib := range siblings {
		if sib.ID == excludeID {
			continue
		}
		if core.Overlaps(sib.EffectiveRange(), candidate) {
			return fmt.Errorf("%w: conflicts with %q (%s to %s)",
				core.ErrBudgetOverlap, sib.Name,
				sib.EffectiveRange().Start, sib.EffectiveRange().End)
		}
	}
	return nil
}

// CreateMiniBudget adds a sub-allocation under an existing budget.
func (s *BudgetService) CreateMiniBudget(ctx context.Context, userID string, space core.Space, mb core.MiniBudget) (core.MiniBudget, error) {
	mb.ID = uuid.NewString()
	if err := mb.Validate(); err != nil {
		return core.MiniBudget{}, err
	}
	if _, err := s.store.GetBudget(ctx, userID, space, mb.BudgetID); err != nil {
		return core.MiniBudget{}, err
	}
	if err := s.store.CreateMiniBudget(ctx, userID, mb); err != nil {
		return core.MiniBudget{}, fmt.Errorf("create mini budget: %w", err)
	}
	return mb, nil
}

func (s *BudgetService) ListMiniBudgets(ctx context.Context, userID string, budgetID string) ([]core.MiniBudget, error) {
	return s.store.ListMiniBudgets(ctx, userID, budgetID)
}
