package sheets

import (
	"context"

	"tally/internal/core"
)

// Ports for outbound mirror adapters. The worker appends one row per
// transaction event; removal marks rather than deletes so the sheet keeps
// a full audit trail.
type (
	TransactionWriter interface {
		Append(ctx context.Context, t core.Transaction) (rowRef string, err error)
	}

	TransactionRemover interface {
		MarkDeleted(ctx context.Context, transactionID string) error
	}
)
