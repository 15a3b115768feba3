package memory

import (
	"context"
	"fmt"
	"sync"

	"callbingo/internal/core"
	ports "callbingo/internal/sheets"
)

var _ ports.Mirror = (*Store)(nil)

// Store is an in-process ledger mirror used when no spreadsheet is
// configured. Rows keep insertion order.
type Store struct {
	mu   sync.Mutex
	rows []core.Transaction
}

func New() *Store {
	return &Store{}
}

func (s *Store) AppendTransaction(_ context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.ID == tx.ID {
			return nil
		}
	}
	s.rows = append(s.rows, tx)
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rows {
		if r.ID == id {
			s.rows = append(s.rows[:i:i], s.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *Store) ListTransactionIDs(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, len(s.rows))
	for i, r := range s.rows {
		ids[i] = r.ID
	}
	return ids, nil
}

// Rows returns a copy of the mirrored entries.
func (s *Store) Rows() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.rows...)
}
