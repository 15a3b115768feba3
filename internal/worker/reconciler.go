package worker

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"callbingo/internal/core"
	"callbingo/internal/sheets"
)

// LedgerSource is the authoritative ledger. *state.Repository satisfies it.
// A read error must be returned, never replaced by an empty ledger.
type LedgerSource interface {
	ReadLedger(ctx context.Context) (core.Ledger, error)
}

type ReconcilerConfig struct {
	// Interval between full comparisons (default: 10m).
	Interval time.Duration
}

func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{Interval: 10 * time.Minute}
}

// Result summarises one reconciliation pass.
type Result struct {
	Appended int
	Deleted  int
	Failed   int
}

// Reconciler periodically repairs the mirror from the stored ledger, as a
// backstop for lost or dropped sync messages.
type Reconciler struct {
	source LedgerSource
	mirror sheets.Mirror
	config ReconcilerConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewReconciler(source LedgerSource, mirror sheets.Mirror, config ReconcilerConfig) *Reconciler {
	if config.Interval <= 0 {
		config.Interval = DefaultReconcilerConfig().Interval
	}
	return &Reconciler{source: source, mirror: mirror, config: config}
}

// Start runs one pass immediately and then one per interval.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return errors.New("reconciler is already running")
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	go r.loop(ctx)
	slog.InfoContext(ctx, "Ledger reconciler started", "interval", r.config.Interval)
	return nil
}

func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	stop, done := r.stopCh, r.doneCh
	r.running = false
	r.mu.Unlock()

	close(stop)
	select {
	case <-done:
		slog.InfoContext(ctx, "Ledger reconciler stopped")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Ledger reconciler stop timed out")
		return ctx.Err()
	}
}

func (r *Reconciler) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Reconciler) loop(ctx context.Context) {
	defer close(r.doneCh)
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	r.RunOnce(ctx)
	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce appends stored entries missing from the mirror, oldest first,
// and deletes mirrored entries that are no longer stored.
func (r *Reconciler) RunOnce(ctx context.Context) Result {
	var res Result
	mirrored, err := r.mirror.ListTransactionIDs(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list mirrored entries", "error", err)
		res.Failed++
		return res
	}
	log, err := r.source.ReadLedger(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read stored ledger, skipping reconciliation", "error", err)
		res.Failed++
		return res
	}

	have := make(map[int64]bool, len(mirrored))
	for _, id := range mirrored {
		have[id] = true
	}

	stored := make(map[int64]bool, len(log))
	chrono := slices.Clone(log)
	slices.SortStableFunc(chrono, func(a, b core.Transaction) int { return cmp.Compare(a.ID, b.ID) })
	for _, tx := range chrono {
		stored[tx.ID] = true
		if have[tx.ID] {
			continue
		}
		if err := r.mirror.AppendTransaction(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror entry", "id", tx.ID, "error", err)
			res.Failed++
			continue
		}
		res.Appended++
	}
	for _, id := range mirrored {
		if stored[id] {
			continue
		}
		if err := r.mirror.DeleteTransaction(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to remove mirrored entry", "id", id, "error", err)
			res.Failed++
			continue
		}
		res.Deleted++
	}

	if res != (Result{}) {
		slog.InfoContext(ctx, "Ledger reconciliation completed",
			"appended", res.Appended,
			"deleted", res.Deleted,
			"failed", res.Failed)
	}
	return res
}
