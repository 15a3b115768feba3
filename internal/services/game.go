package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"callbingo/internal/core"
	"callbingo/internal/effects"
)

// Board is an immutable snapshot of the current game. Version changes
// only when a new grid is generated.
type Board struct {
	Grid    core.Grid   `json:"grid"`
	Marked  core.Marked `json:"marked"`
	Lines   int         `json:"lines"`
	Version int64       `json:"version"`
}

func (b Board) Pachinko() bool { return b.Marked.Pachinko() }

func (b Board) Stats() core.BoardStats { return core.Stats(b.Marked) }

// Update is the result of a board mutation.
type Update struct {
	Board       Board         `json:"board"`
	NewlyMarked []int         `json:"newlyMarked"`
	Edge        core.LineEdge `json:"edge"`
}

// GameService owns the live board. Every mutation swaps in a whole new
// Board under the lock and signals the effects sink afterwards.
type GameService struct {
	mu     sync.Mutex
	board  Board
	pool   []string
	center string
	rng    core.Shuffler
	sink   effects.Sink
	now    func() time.Time
}

// NewGameService generates the first board. pool must hold at least eight
// distinct phrases.
func NewGameService(pool []string, center string, rng core.Shuffler, sink effects.Sink) *GameService {
	if sink == nil {
		sink = effects.Discard{}
	}
	s := &GameService{
		pool:   append([]string(nil), pool...),
		center: center,
		rng:    rng,
		sink:   sink,
		now:    time.Now,
	}
	s.board = newBoard(core.GenerateGrid(s.pool, s.center, s.rng), 1)
	return s
}

func newBoard(g core.Grid, version int64) Board {
	m := g.Marked()
	return Board{
		Grid:    g,
		Marked:  m,
		Lines:   core.CountLines(m, core.WinningLines()),
		Version: version,
	}
}

func (s *GameService) Snapshot() Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board
}

// Increment records one more completion on cell id.
func (s *GameService) Increment(ctx context.Context, id int) (Update, error) {
	s.mu.Lock()
	g, err := s.board.Grid.Increment(id)
	if err != nil {
		b := s.board
		s.mu.Unlock()
		return Update{Board: b}, err
	}
	u := s.replaceLocked(g, s.board.Version)
	s.mu.Unlock()

	s.emit(ctx, s.changeEvents(u)...)
	return u, nil
}

// ResetMarks zeroes every count and keeps phrases and targets.
func (s *GameService) ResetMarks(ctx context.Context) Update {
	s.mu.Lock()
	u := s.replaceLocked(s.board.Grid.ResetCounts(), s.board.Version)
	s.mu.Unlock()

	events := s.changeEvents(u)
	events = append(events, effects.Event{Kind: effects.BoardReset, At: s.now()})
	s.emit(ctx, events...)
	return u
}

// Shuffle deals a fresh grid from the phrase pool.
func (s *GameService) Shuffle(ctx context.Context) Update {
	s.mu.Lock()
	g := core.GenerateGrid(s.pool, s.center, s.rng)
	u := s.replaceLocked(g, s.board.Version+1)
	s.mu.Unlock()

	slog.InfoContext(ctx, "New board dealt", "version", u.Board.Version)
	events := s.changeEvents(u)
	events = append(events, effects.Event{Kind: effects.BoardReset, At: s.now()})
	s.emit(ctx, events...)
	return u
}

// Edit applies settings changes. Lowering a target can mark a cell.
func (s *GameService) Edit(ctx context.Context, edits []core.CellEdit) (Update, error) {
	s.mu.Lock()
	g, err := s.board.Grid.ApplyEdits(edits)
	if err != nil {
		b := s.board
		s.mu.Unlock()
		return Update{Board: b}, err
	}
	u := s.replaceLocked(g, s.board.Version)
	s.mu.Unlock()

	s.emit(ctx, s.changeEvents(u)...)
	return u, nil
}

func (s *GameService) replaceLocked(g core.Grid, version int64) Update {
	prev := s.board
	next := newBoard(g, version)
	s.board = next

	var newly []int
	for i := range next.Marked {
		if next.Marked[i] && !prev.Marked[i] {
			newly = append(newly, i)
		}
	}
	return Update{
		Board:       next,
		NewlyMarked: newly,
		Edge:        core.LineEdge{Previous: prev.Lines, Current: next.Lines},
	}
}

func (s *GameService) changeEvents(u Update) []effects.Event {
	at := s.now()
	var events []effects.Event
	for _, id := range u.NewlyMarked {
		kind := effects.CellMarked
		if id == core.CenterIndex {
			kind = effects.CenterMarked
		}
		events = append(events, effects.Cell(kind, id, at))
	}
	if u.Edge.Gained() > 0 {
		events = append(events, effects.Event{Kind: effects.BingoAchieved, Lines: u.Edge.Current, At: at})
	}
	if u.Edge.Lost() > 0 {
		events = append(events, effects.Event{Kind: effects.BingoLost, Lines: u.Edge.Current, At: at})
	}
	return events
}

// emit never fails the caller; sink errors are only logged.
func (s *GameService) emit(ctx context.Context, events ...effects.Event) {
	for _, ev := range events {
		if err := s.sink.Emit(ctx, ev); err != nil {
			slog.WarnContext(ctx, "Failed to deliver board effect",
				"kind", ev.Kind,
				"error", err)
		}
	}
}
