// Package state reads and writes the persisted game state through a
// kv.Store.
//
// Loading never fails: absent keys, store errors and malformed JSON are
// logged and replaced by defaults so a corrupt value cannot take the
// application down.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"callbingo/internal/core"
	"callbingo/internal/kv"
)

var (
	ErrStoreUnavailable = errors.New("state store unavailable")
	ErrMalformedState   = errors.New("malformed persisted state")
)

// Keys under which the state is persisted.
const (
	KeyLedger  = "bingo_ledger"
	KeyPlayers = "bingo_players_v2"
	KeyGoal    = "bingo_goal_data"
)

type Repository struct {
	store kv.Store
	now   func() time.Time
}

func NewRepository(store kv.Store) *Repository {
	return &Repository{store: store, now: time.Now}
}

// WithClock sets the clock used for the default goal period.
func (r *Repository) WithClock(now func() time.Time) *Repository {
	r.now = now
	return r
}

// LoadLedger returns the stored log, newest first. Entries are returned
// as stored, without validation.
func (r *Repository) LoadLedger(ctx context.Context) core.Ledger {
	var log core.Ledger
	if !r.load(ctx, KeyLedger, &log) || log == nil {
		return core.Ledger{}
	}
	return log
}

// ReadLedger is LoadLedger for callers that must not act on a default:
// an absent key is an empty ledger, read failures wrap ErrStoreUnavailable
// and decode failures wrap ErrMalformedState.
func (r *Repository) ReadLedger(ctx context.Context) (core.Ledger, error) {
	raw, ok, err := r.store.Get(ctx, KeyLedger)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrStoreUnavailable, KeyLedger, err)
	}
	log := core.Ledger{}
	if !ok || raw == "" {
		return log, nil
	}
	if err := json.Unmarshal([]byte(raw), &log); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrMalformedState, KeyLedger, err)
	}
	if log == nil {
		log = core.Ledger{}
	}
	return log, nil
}

func (r *Repository) SaveLedger(ctx context.Context, log core.Ledger) error {
	if log == nil {
		log = core.Ledger{}
	}
	return r.save(ctx, KeyLedger, log)
}

// LoadPlayers fills blank names from the defaults.
func (r *Repository) LoadPlayers(ctx context.Context) core.Players {
	def := core.DefaultPlayers()
	var p core.Players
	if !r.load(ctx, KeyPlayers, &p) {
		return def
	}
	if p.Me == "" {
		p.Me = def.Me
	}
	if p.Opponent1 == "" {
		p.Opponent1 = def.Opponent1
	}
	if p.Opponent2 == "" {
		p.Opponent2 = def.Opponent2
	}
	return p
}

func (r *Repository) SavePlayers(ctx context.Context, p core.Players) error {
	return r.save(ctx, KeyPlayers, p)
}

func (r *Repository) LoadGoal(ctx context.Context) core.Goal {
	now := r.now()
	var g core.Goal
	if !r.load(ctx, KeyGoal, &g) {
		return core.DefaultGoal(now)
	}
	return g.Normalize(now)
}

func (r *Repository) SaveGoal(ctx context.Context, g core.Goal) error {
	return r.save(ctx, KeyGoal, g)
}

// load decodes key into dst and reports whether a usable value was found.
// Callers must discard dst when false is returned.
func (r *Repository) load(ctx context.Context, key string, dst any) bool {
	raw, ok, err := r.store.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read persisted state, using defaults",
			"key", key,
			"error", err,
			"error_type", "storage_error")
		return false
	}
	if !ok || raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		slog.WarnContext(ctx, "Malformed persisted state, using defaults",
			"key", key,
			"error", err,
			"error_type", "validation_error")
		return false
	}
	return true
}

func (r *Repository) save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.store.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
