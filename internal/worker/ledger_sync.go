// Package worker holds the background consumers run by bingo-worker.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"callbingo/internal/amqp"
	"callbingo/internal/effects"
	"callbingo/internal/sheets"
)

// LedgerSyncWorker applies ledger change messages to the mirror.
type LedgerSyncWorker struct {
	mirror sheets.LedgerMirror
}

func NewLedgerSyncWorker(mirror sheets.LedgerMirror) *LedgerSyncWorker {
	return &LedgerSyncWorker{mirror: mirror}
}

func (w *LedgerSyncWorker) HandleLedgerSync(ctx context.Context, msg *amqp.LedgerSyncMessage) error {
	tx := msg.Transaction
	slog.InfoContext(ctx, "Processing ledger sync message",
		"action", msg.Action,
		"id", tx.ID,
		"timestamp", msg.Timestamp)

	switch msg.Action {
	case amqp.ActionRecorded:
		if err := w.mirror.AppendTransaction(ctx, tx); err != nil {
			return fmt.Errorf("mirror entry %d: %w", tx.ID, err)
		}
	case amqp.ActionDeleted:
		if err := w.mirror.DeleteTransaction(ctx, tx.ID); err != nil {
			return fmt.Errorf("remove mirrored entry %d: %w", tx.ID, err)
		}
	default:
		return fmt.Errorf("%w: unknown ledger action %q", amqp.ErrRejected, msg.Action)
	}
	return nil
}

// EffectsRelay hands queued board effects to a local sink, e.g. the
// process driving sound and confetti.
type EffectsRelay struct {
	sink effects.Sink
}

func NewEffectsRelay(sink effects.Sink) *EffectsRelay {
	return &EffectsRelay{sink: sink}
}

func (r *EffectsRelay) HandleEffect(ctx context.Context, msg *amqp.EffectMessage) error {
	return r.sink.Emit(ctx, msg.Event())
}
