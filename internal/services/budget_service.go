package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/storage"
)

// BudgetService manages per-category spending limits. Budgets attach to
// expense categories only.
type BudgetService struct {
	storage *storage.SQLiteRepository
}

func NewBudgetService(storage *storage.SQLiteRepository) *BudgetService {
	return &BudgetService{storage: storage}
}

// BudgetProgress pairs a budget with the spend accumulated in its current
// period.
type BudgetProgress struct {
	Budget core.Budget
	Spent  core.Money
}

func (p BudgetProgress) Remaining() core.Money {
	return core.Money{Cents: p.Budget.Amount.Cents - p.Spent.Cents}
}

func (s *BudgetService) Create(ctx context.Context, entityID string, b core.Budget) (*core.Budget, error) {
	b.ID = uuid.New().String()
	b.EntityID = entityID
	b.IsActive = true
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now

	if err := b.Validate(); err != nil {
		return nil, err
	}

	err := s.storage.InTx(ctx, func(q *storage.Queries) error {
		cat, err := q.GetCategoryByID(ctx, b.CategoryID)
		if err != nil {
			return err
		}
		if cat.EntityID != entityID {
			return fmt.Errorf("%w: category %s", core.ErrNotFound, b.CategoryID)
		}
		if cat.Kind != core.Expense {
			return fmt.Errorf("%w: budgets attach to expense categories", core.ErrKindMismatch)
		}
		return q.CreateBudget(ctx, &b)
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *BudgetService) Get(ctx context.Context, entityID, id string) (*core.Budget, error) {
	b, err := s.storage.GetBudgetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.EntityID != entityID {
		return nil, fmt.Errorf("%w: budget %s", core.ErrNotFound, id)
	}
	return b, nil
}

func (s *BudgetService) List(ctx context.Context, entityID string, activeOnly bool) ([]core.Budget, error) {
	return s.storage.ListBudgets(ctx, entityID, activeOnly)
}

// ListProgress returns each active budget with the spend accumulated in the
// period containing now.
func (s *BudgetService) ListProgress(ctx context.Context, entityID string, now time.Time) ([]BudgetProgress, error) {
	budgets, err := s.storage.ListBudgets(ctx, entityID, true)
	if err != nil {
		return nil, err
	}

	out := make([]BudgetProgress, 0, len(budgets))
	for _, b := range budgets {
		from, to := periodBounds(b.Period, now)
		spent, err := s.storage.SpentForCategory(ctx, entityID, b.CategoryID, from, to)
		if err != nil {
			return nil, err
		}
		out = append(out, BudgetProgress{Budget: b, Spent: spent})
	}
	return out, nil
}

func (s *BudgetService) Update(ctx context.Context, entityID, id string, b core.Budget) (*core.Budget, error) {
	var updated *core.Budget

	err := s.storage.InTx(ctx, func(q *storage.Queries) error {
		existing, err := q.GetBudgetByID(ctx, id)
		if err != nil {
			return err
		}
		if existing.EntityID != entityID {
			return fmt.Errorf("%w: budget %s", core.ErrNotFound, id)
		}

		existing.CategoryID = b.CategoryID
		existing.Amount = b.Amount
		existing.Period = b.Period
		existing.StartDate = b.StartDate
		existing.EndDate = b.EndDate
		existing.IsActive = b.IsActive
		existing.UpdatedAt = time.Now()

		if err := existing.Validate(); err != nil {
			return err
		}

		cat, err := q.GetCategoryByID(ctx, existing.CategoryID)
		if err != nil {
			return err
		}
		if cat.EntityID != entityID {
			return fmt.Errorf("%w: category %s", core.ErrNotFound, existing.CategoryID)
		}

		if err := q.UpdateBudget(ctx, existing); err != nil {
			return err
		}
		updated = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *BudgetService) Delete(ctx context.Context, entityID, id string) error {
	return s.storage.InTx(ctx, func(q *storage.Queries) error {
		b, err := q.GetBudgetByID(ctx, id)
		if err != nil {
			return err
		}
		if b.EntityID != entityID {
			return fmt.Errorf("%w: budget %s", core.ErrNotFound, id)
		}
		return q.DeleteBudget(ctx, id)
	})
}

// periodBounds returns the inclusive date range of the budget period
// containing now.
func periodBounds(period string, now time.Time) (time.Time, time.Time) {
	y, m, _ := now.Date()
	switch period {
	case "quarterly":
		qm := time.Month((int(m)-1)/3*3 + 1)
		from := time.Date(y, qm, 1, 0, 0, 0, 0, time.UTC)
		return from, from.AddDate(0, 3, -1)
	case "yearly":
		from := time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
		return from, from.AddDate(1, 0, -1)
	default: // monthly
		from := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
		return from, from.AddDate(0, 1, -1)
	}
}
