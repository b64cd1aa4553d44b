package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/storage"
)

// RecurringService manages recurring templates and instantiates transactions
// from the ones that are due. The worker calls ProcessDue on a ticker.
type RecurringService struct {
	storage      *storage.SQLiteRepository
	transactions *TransactionService
}

func NewRecurringService(storage *storage.SQLiteRepository, transactions *TransactionService) *RecurringService {
	return &RecurringService{
		storage:      storage,
		transactions: transactions,
	}
}

func (s *RecurringService) Create(ctx context.Context, entityID string, rt core.RecurringTemplate) (*core.RecurringTemplate, error) {
	rt.ID = uuid.New().String()
	rt.EntityID = entityID
	rt.IsActive = true
	now := time.Now()
	rt.CreatedAt = now
	rt.UpdatedAt = now

	if err := rt.Validate(); err != nil {
		return nil, err
	}

	err := s.storage.InTx(ctx, func(q *storage.Queries) error {
		if err := validateTransactionCategory(ctx, q, entityID, rt.CategoryID, rt.Kind); err != nil {
			return err
		}
		return q.CreateRecurringTemplate(ctx, &rt)
	})
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

func (s *RecurringService) Get(ctx context.Context, entityID, id string) (*core.RecurringTemplate, error) {
	rt, err := s.storage.GetRecurringTemplateByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rt.EntityID != entityID {
		return nil, fmt.Errorf("%w: recurring template %s", core.ErrNotFound, id)
	}
	return rt, nil
}

func (s *RecurringService) List(ctx context.Context, entityID string) ([]core.RecurringTemplate, error) {
	return s.storage.ListRecurringTemplates(ctx, entityID)
}

func (s *RecurringService) Update(ctx context.Context, entityID, id string, rt core.RecurringTemplate) (*core.RecurringTemplate, error) {
	var updated *core.RecurringTemplate

	err := s.storage.InTx(ctx, func(q *storage.Queries) error {
		existing, err := q.GetRecurringTemplateByID(ctx, id)
		if err != nil {
			return err
		}
		if existing.EntityID != entityID {
			return fmt.Errorf("%w: recurring template %s", core.ErrNotFound, id)
		}

		existing.CategoryID = rt.CategoryID
		existing.Name = rt.Name
		existing.Amount = rt.Amount
		existing.Kind = rt.Kind
		existing.Description = rt.Description
		existing.Frequency = rt.Frequency
		existing.StartDate = rt.StartDate
		existing.EndDate = rt.EndDate
		existing.IsActive = rt.IsActive
		existing.UpdatedAt = time.Now()

		if err := existing.Validate(); err != nil {
			return err
		}
		if err := validateTransactionCategory(ctx, q, entityID, existing.CategoryID, existing.Kind); err != nil {
			return err
		}
		if err := q.UpdateRecurringTemplate(ctx, existing); err != nil {
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

func (s *RecurringService) Delete(ctx context.Context, entityID, id string) error {
	return s.storage.InTx(ctx, func(q *storage.Queries) error {
		rt, err := q.GetRecurringTemplateByID(ctx, id)
		if err != nil {
			return err
		}
		if rt.EntityID != entityID {
			return fmt.Errorf("%w: recurring template %s", core.ErrNotFound, id)
		}
		return q.DeleteRecurringTemplate(ctx, id)
	})
}

// ProcessDue scans every active template and instantiates a transaction for
// each one that is due. A failure on one template never blocks the others.
func (s *RecurringService) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	templates, err := s.storage.ListActiveRecurringTemplates(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active templates: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring templates",
		"total_active", len(templates),
		"processing_date", now.Format("2006-01-02"))

	processed := 0
	for _, rt := range templates {
		if rt.StartDate.After(now) {
			continue
		}
		if rt.EndDate != nil && rt.EndDate.Before(now) {
			continue
		}

		checker, err := GetDuenessChecker(rt.Frequency)
		if err != nil {
			slog.ErrorContext(ctx, "Skipping template with unknown frequency",
				"id", rt.ID, "frequency", rt.Frequency)
			continue
		}

		var lastRun time.Time
		if rt.LastRun != nil {
			lastRun = *rt.LastRun
		}
		if !checker.IsDue(lastRun, now, rt.StartDate) {
			continue
		}

		_, err = s.transactions.Create(ctx, rt.EntityID, "", core.Transaction{
			CategoryID:  rt.CategoryID,
			Amount:      rt.Amount,
			Kind:        rt.Kind,
			Description: rt.Description,
			Date:        now,
			Notes:       fmt.Sprintf("recurring: %s", rt.Name),
		})
		if err != nil {
			slog.ErrorContext(ctx, "Failed to instantiate recurring template",
				"id", rt.ID,
				"name", rt.Name,
				"error", err)
			continue
		}

		if err := s.storage.MarkRecurringTemplateRun(ctx, rt.ID, now); err != nil {
			// The transaction exists; the template will fire again next
			// tick unless the stamp lands later.
			slog.ErrorContext(ctx, "Failed to stamp template run",
				"id", rt.ID,
				"error", err)
		}

		processed++
		slog.InfoContext(ctx, "Created transaction from recurring template",
			"id", rt.ID,
			"name", rt.Name,
			"amount_cents", rt.Amount.Cents,
			"frequency", rt.Frequency)
	}

	slog.InfoContext(ctx, "Recurring processing complete",
		"processed", processed,
		"total_checked", len(templates))

	return processed, nil
}
