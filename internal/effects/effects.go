// Package effects describes what happened on the board so presentation
// collaborators (sound, confetti, speech, theme) can react. The core never
// renders anything itself.
package effects

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

type Kind string

const (
	CellMarked    Kind = "cell_marked"
	CenterMarked  Kind = "center_marked"
	BingoAchieved Kind = "bingo_achieved"
	BingoLost     Kind = "bingo_lost"
	BoardReset    Kind = "board_reset"
	CallsAdded    Kind = "calls_added"
)

func (k Kind) Valid() bool {
	switch k {
	case CellMarked, CenterMarked, BingoAchieved, BingoLost, BoardReset, CallsAdded:
		return true
	}
	return false
}

// Event is one side effect request. CellID is set for cell events, Lines
// for bingo events (the total line count after the change) and Quote for
// CallsAdded.
type Event struct {
	Kind   Kind
	CellID *int
	Lines  int
	Quote  string
	At     time.Time
}

func Cell(kind Kind, id int, at time.Time) Event {
	return Event{Kind: kind, CellID: &id, At: at}
}

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Emit(ctx context.Context, ev Event) error
}

// LogSink writes every event as a structured log line.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(ctx context.Context, ev Event) error {
	attrs := []any{"kind", string(ev.Kind)}
	if ev.CellID != nil {
		attrs = append(attrs, "cell_id", *ev.CellID)
	}
	if ev.Lines > 0 {
		attrs = append(attrs, "lines", ev.Lines)
	}
	if ev.Quote != "" {
		attrs = append(attrs, "quote", ev.Quote)
	}
	s.logger.InfoContext(ctx, "Board effect", attrs...)
	return nil
}

// Fanout delivers to every sink and joins their errors.
type Fanout []Sink

func (f Fanout) Emit(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Emit(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Emit(context.Context, Event) error { return nil }
