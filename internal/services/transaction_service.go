package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/storage"
)

// TransactionService orchestrates transaction writes across SQLite and the
// event stream. Records are saved locally first; a publish failure is logged
// and never fails the request.
type TransactionService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewTransactionService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *TransactionService {
	return &TransactionService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// Create validates the transaction against its category and saves it. The
// category must belong to the entity, be active and carry the same kind.
func (s *TransactionService) Create(ctx context.Context, entityID, userID string, t core.Transaction) (*core.Transaction, error) {
	t.ID = uuid.New().String()
	t.EntityID = entityID
	if userID != "" {
		t.UserID = &userID
	}
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now

	if err := t.Validate(); err != nil {
		return nil, err
	}

	err := s.storage.InTx(ctx, func(q *storage.Queries) error {
		if err := validateTransactionCategory(ctx, q, entityID, t.CategoryID, t.Kind); err != nil {
			return err
		}
		return q.CreateTransaction(ctx, &t)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, amqp.NewTransactionCreated(t.ID, entityID))

	return &t, nil
}

func (s *TransactionService) Get(ctx context.Context, entityID, id string) (*core.Transaction, error) {
	t, err := s.storage.GetTransactionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.EntityID != entityID {
		return nil, fmt.Errorf("%w: transaction %s", core.ErrNotFound, id)
	}
	return t, nil
}

func (s *TransactionService) List(ctx context.Context, entityID string, f storage.TransactionFilter) ([]core.Transaction, error) {
	return s.storage.ListTransactions(ctx, entityID, f)
}

// Update replaces the mutable fields of an existing transaction, re-running
// the category validation when the category or kind changes.
func (s *TransactionService) Update(ctx context.Context, entityID, id string, t core.Transaction) (*core.Transaction, error) {
	var updated *core.Transaction

	err := s.storage.InTx(ctx, func(q *storage.Queries) error {
		existing, err := q.GetTransactionByID(ctx, id)
		if err != nil {
			return err
		}
		if existing.EntityID != entityID {
			return fmt.Errorf("%w: transaction %s", core.ErrNotFound, id)
		}

		existing.CategoryID = t.CategoryID
		existing.Amount = t.Amount
		existing.Kind = t.Kind
		existing.Description = t.Description
		existing.Date = t.Date
		existing.Notes = t.Notes
		existing.UpdatedAt = time.Now()

		if err := existing.Validate(); err != nil {
			return err
		}
		if err := validateTransactionCategory(ctx, q, entityID, existing.CategoryID, existing.Kind); err != nil {
			return err
		}
		if err := q.UpdateTransaction(ctx, existing); err != nil {
			return err
		}
		updated = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, amqp.NewTransactionUpdated(id, entityID))

	return updated, nil
}

func (s *TransactionService) Delete(ctx context.Context, entityID, id string) error {
	err := s.storage.InTx(ctx, func(q *storage.Queries) error {
		t, err := q.GetTransactionByID(ctx, id)
		if err != nil {
			return err
		}
		if t.EntityID != entityID {
			return fmt.Errorf("%w: transaction %s", core.ErrNotFound, id)
		}
		return q.DeleteTransaction(ctx, id)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, amqp.NewTransactionDeleted(id, entityID))

	return nil
}

// MonthSummary aggregates the entity's transactions for one calendar month:
// income and expense totals plus a per-category breakdown.
func (s *TransactionService) MonthSummary(ctx context.Context, entityID string, year, month int) (*core.MonthSummary, error) {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)

	byCategory, err := s.storage.SumByCategory(ctx, entityID, from, to)
	if err != nil {
		return nil, err
	}

	summary := &core.MonthSummary{
		EntityID:   entityID,
		Year:       year,
		Month:      month,
		ByCategory: byCategory,
	}
	for _, ca := range byCategory {
		switch ca.Kind {
		case core.Income:
			summary.IncomeTotal.Cents += ca.Amount.Cents
		case core.Expense:
			summary.ExpenseTotal.Cents += ca.Amount.Cents
		}
	}
	return summary, nil
}

func validateTransactionCategory(ctx context.Context, q *storage.Queries, entityID, categoryID string, kind core.Kind) error {
	cat, err := q.GetCategoryByID(ctx, categoryID)
	if err != nil {
		return err
	}
	if cat.EntityID != entityID {
		return fmt.Errorf("%w: category %s", core.ErrNotFound, categoryID)
	}
	if !cat.IsActive {
		return fmt.Errorf("%w: category %s is inactive", core.ErrValidation, categoryID)
	}
	if cat.Kind != kind {
		return fmt.Errorf("%w: category is %s, transaction is %s", core.ErrKindMismatch, cat.Kind, kind)
	}
	return nil
}

func (s *TransactionService) publish(ctx context.Context, event *amqp.TransactionEvent) {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping event", "event", event.Event)
		return
	}
	if err := s.amqpClient.PublishTransactionEvent(ctx, event); err != nil {
		// The record is already saved locally; the mirror catches up later.
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"event", event.Event,
			"transaction_id", event.TransactionID,
			"error", err)
	}
}
