package sheets

import (
	"context"

	"callbingo/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerMirror keeps an external copy of the ledger, one row per entry.
	// Both operations are idempotent so redelivered messages are harmless.
	LedgerMirror interface {
		AppendTransaction(ctx context.Context, tx core.Transaction) error
		DeleteTransaction(ctx context.Context, id int64) error
	}

	// LedgerLister reports which entry ids the mirror currently holds.
	LedgerLister interface {
		ListTransactionIDs(ctx context.Context) ([]int64, error)
	}

	Mirror interface {
		LedgerMirror
		LedgerLister
	}
)
