package memory

import (
	"context"
	"fmt"
	"sync"

	"tally/internal/core"
)

// Store is an in-memory mirror used in tests and local development when no
// spreadsheet is configured.
type Store struct {
	mu      sync.Mutex
	rows    []core.Transaction
	deleted map[string]bool
}

func New() *Store {
	return &Store{deleted: make(map[string]bool)}
}

// Append stores the transaction and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, t core.Transaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, t)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

func (s *Store) MarkDeleted(_ context.Context, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted[transactionID] = true
	return nil
}

// Rows returns a copy of the appended transactions.
func (s *Store) Rows() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.rows...)
}

// Deleted reports whether the transaction was marked deleted.
func (s *Store) Deleted(transactionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleted[transactionID]
}
