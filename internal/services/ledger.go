package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"callbingo/internal/amqp"
	"callbingo/internal/cache"
	"callbingo/internal/core"
	"callbingo/internal/state"
)

// LedgerPublisher mirrors ledger changes to downstream consumers.
// *amqp.Client satisfies it.
type LedgerPublisher interface {
	PublishLedgerSync(ctx context.Context, action amqp.LedgerAction, tx core.Transaction) error
}

type EntryMode string

const (
	ModeBingo   EntryMode = "bingo"
	ModePenalty EntryMode = "penalty"
)

var ErrUnknownMode = errors.New("unknown entry mode")

// EntryRequest asks for a bingo payout or a penalty. An empty Date means
// today.
type EntryRequest struct {
	Mode  EntryMode `json:"mode"`
	Lines int       `json:"lines"`
	Date  string    `json:"date,omitempty"`
}

// LedgerView is everything the wallet panel shows.
type LedgerView struct {
	History   []core.HistoryEntry `json:"history"`
	Standings core.Standings      `json:"standings"`
	Players   core.Players        `json:"players"`
}

// LedgerService serialises read-modify-write cycles on the persisted log.
type LedgerService struct {
	mu        sync.Mutex
	repo      *state.Repository
	initial   core.InitialFunds
	publisher LedgerPublisher
	standings cache.Cache[core.Standings]
	now       func() time.Time
}

// NewLedgerService wires the service. publisher and standingsCache may be
// nil.
func NewLedgerService(repo *state.Repository, initial core.InitialFunds, publisher LedgerPublisher, standingsCache cache.Cache[core.Standings]) *LedgerService {
	return &LedgerService{
		repo:      repo,
		initial:   initial,
		publisher: publisher,
		standings: standingsCache,
		now:       time.Now,
	}
}

// Record builds, validates and persists a new entry.
func (s *LedgerService) Record(ctx context.Context, req EntryRequest) (core.Transaction, error) {
	date := req.Date
	if date == "" {
		date = core.FormatDate(s.now())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		tx  core.Transaction
		err error
	)
	switch req.Mode {
	case ModeBingo:
		tx, err = core.NewBingoIncome(date, req.Lines)
	case ModePenalty:
		tx, err = core.NewPenalty(date, s.repo.LoadPlayers(ctx))
	default:
		return core.Transaction{}, fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
	}
	if err != nil {
		return core.Transaction{}, err
	}

	log, err := s.ledgerForUpdate(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.ID = log.NextID(s.now())
	next, err := core.AddTransaction(log, tx)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := s.repo.SaveLedger(ctx, next); err != nil {
		return core.Transaction{}, fmt.Errorf("save ledger: %w", err)
	}

	slog.InfoContext(ctx, "Ledger entry recorded",
		"id", tx.ID,
		"type", tx.Type,
		"amount", tx.Amount)
	s.publish(ctx, amqp.ActionRecorded, tx)
	return tx, nil
}

// Delete removes the entry id. Unknown ids return core.ErrTransactionNotFound.
func (s *LedgerService) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log, err := s.ledgerForUpdate(ctx)
	if err != nil {
		return err
	}
	var removed core.Transaction
	for _, tx := range log {
		if tx.ID == id {
			removed = tx
			break
		}
	}
	next, found := core.RemoveTransaction(log, id)
	if !found {
		return core.ErrTransactionNotFound
	}
	if err := s.repo.SaveLedger(ctx, next); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}

	slog.InfoContext(ctx, "Ledger entry deleted", "id", id)
	s.publish(ctx, amqp.ActionDeleted, removed)
	return nil
}

// ledgerForUpdate refuses to rewrite the ledger when it could not be read;
// a malformed ledger is replaced like any other malformed state.
func (s *LedgerService) ledgerForUpdate(ctx context.Context) (core.Ledger, error) {
	log, err := s.repo.ReadLedger(ctx)
	switch {
	case errors.Is(err, state.ErrMalformedState):
		slog.WarnContext(ctx, "Malformed ledger, starting a new one", "error", err)
		return core.Ledger{}, nil
	case err != nil:
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return log, nil
}

func (s *LedgerService) Ledger(ctx context.Context) core.Ledger {
	return s.repo.LoadLedger(ctx)
}

func (s *LedgerService) View(ctx context.Context) LedgerView {
	log := s.repo.LoadLedger(ctx)
	return LedgerView{
		History:   core.History(log),
		Standings: s.standingsFor(log),
		Players:   s.repo.LoadPlayers(ctx),
	}
}

func (s *LedgerService) Standings(ctx context.Context) core.Standings {
	return s.standingsFor(s.repo.LoadLedger(ctx))
}

func (s *LedgerService) standingsFor(log core.Ledger) core.Standings {
	if s.standings == nil {
		return core.ComputeStandings(log, s.initial)
	}
	key := fingerprint(log)
	if st, ok := s.standings.Get(key); ok {
		return st
	}
	st := core.ComputeStandings(log, s.initial)
	s.standings.Set(key, st)
	return st
}

func (s *LedgerService) Players(ctx context.Context) core.Players {
	return s.repo.LoadPlayers(ctx)
}

// PlayersPatch renames any subset of the three parties.
type PlayersPatch struct {
	Me        *string `json:"me,omitempty"`
	Opponent1 *string `json:"opponent1,omitempty"`
	Opponent2 *string `json:"opponent2,omitempty"`
}

func (s *LedgerService) UpdatePlayers(ctx context.Context, patch PlayersPatch) (core.Players, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.repo.LoadPlayers(ctx)
	for _, f := range []struct {
		key  string
		name *string
	}{
		{"me", patch.Me},
		{"opponent1", patch.Opponent1},
		{"opponent2", patch.Opponent2},
	} {
		if f.name == nil {
			continue
		}
		var err error
		if p, err = p.WithName(f.key, *f.name); err != nil {
			return p, err
		}
	}
	if err := s.repo.SavePlayers(ctx, p); err != nil {
		return p, fmt.Errorf("save players: %w", err)
	}
	return p, nil
}

func (s *LedgerService) publish(ctx context.Context, action amqp.LedgerAction, tx core.Transaction) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping ledger sync message", "id", tx.ID)
		return
	}
	if err := s.publisher.PublishLedgerSync(ctx, action, tx); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger sync message",
			"id", tx.ID,
			"action", action,
			"error", err)
	}
}

// fingerprint identifies a log by the ids and amounts it contains.
func fingerprint(log core.Ledger) string {
	h := fnv.New64a()
	var buf []byte
	for _, tx := range log {
		buf = strconv.AppendInt(buf[:0], tx.ID, 10)
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, tx.Amount, 10)
		buf = append(buf, ':')
		buf = append(buf, string(tx.Type)...)
		buf = append(buf, ';')
		h.Write(buf)
	}
	return strconv.Itoa(len(log)) + "-" + strconv.FormatUint(h.Sum64(), 16)
}
