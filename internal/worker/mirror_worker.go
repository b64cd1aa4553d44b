package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/sheets"
	"tally/internal/storage"
)

// MirrorWorker consumes transaction events and mirrors them to a spreadsheet.
// Create events fetch the full record from the database; delete events mark
// the mirrored row. Handler errors propagate so the consumer nacks and
// requeues.
type MirrorWorker struct {
	storage *storage.SQLiteRepository
	writer  sheets.TransactionWriter
	remover sheets.TransactionRemover
}

func NewMirrorWorker(storage *storage.SQLiteRepository, writer sheets.TransactionWriter, remover sheets.TransactionRemover) *MirrorWorker {
	return &MirrorWorker{
		storage: storage,
		writer:  writer,
		remover: remover,
	}
}

// Handle processes one event. Returning an error requeues the event.
func (w *MirrorWorker) Handle(ctx context.Context, event *amqp.TransactionEvent) error {
	switch event.Event {
	case amqp.EventTransactionCreated:
		return w.mirrorCreate(ctx, event)
	case amqp.EventTransactionUpdated:
		return w.mirrorUpdate(ctx, event)
	case amqp.EventTransactionDeleted:
		return w.remover.MarkDeleted(ctx, event.TransactionID)
	default:
		// Unknown event types are dropped, not requeued: a newer producer
		// would otherwise wedge the queue.
		slog.WarnContext(ctx, "Dropping unknown event type", "event", event.Event)
		return nil
	}
}

func (w *MirrorWorker) mirrorCreate(ctx context.Context, event *amqp.TransactionEvent) error {
	t, err := w.storage.GetTransactionByID(ctx, event.TransactionID)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted before the mirror caught up. Nothing to append.
		slog.WarnContext(ctx, "Transaction gone before mirroring, skipping",
			"transaction_id", event.TransactionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load transaction: %w", err)
	}

	ref, err := w.writer.Append(ctx, *t)
	if err != nil {
		return fmt.Errorf("append to mirror: %w", err)
	}

	slog.InfoContext(ctx, "Transaction mirrored",
		"transaction_id", t.ID,
		"row_ref", ref)
	return nil
}

// mirrorUpdate supersedes the mirrored row: the old one is marked and the
// current record appended, so the sheet keeps edit history instead of
// accumulating duplicates.
func (w *MirrorWorker) mirrorUpdate(ctx context.Context, event *amqp.TransactionEvent) error {
	if err := w.remover.MarkDeleted(ctx, event.TransactionID); err != nil {
		return fmt.Errorf("supersede old row: %w", err)
	}
	return w.mirrorCreate(ctx, event)
}

// Run consumes events until ctx is cancelled.
func (w *MirrorWorker) Run(ctx context.Context, client *amqp.Client) error {
	return client.ConsumeTransactionEvents(ctx, func(event *amqp.TransactionEvent) error {
		return w.Handle(ctx, event)
	})
}
