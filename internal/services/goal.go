package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"callbingo/internal/core"
	"callbingo/internal/effects"
	"callbingo/internal/state"
)

// ErrNonPositiveCalls is returned when AddCalls is asked to add nothing.
var ErrNonPositiveCalls = errors.New("call count must be positive")

// GoalView is the goal with its derived presentation values.
type GoalView struct {
	Year         int              `json:"year"`
	Month        int              `json:"month"`
	TargetCount  int              `json:"targetCount"`
	CurrentCount int              `json:"currentCount"`
	Progress     float64          `json:"progress"`
	Stage        core.GrowthStage `json:"stage"`
	Flower       core.Flower      `json:"flower"`
}

func NewGoalView(g core.Goal) GoalView {
	return GoalView{
		Year:         g.Year,
		Month:        g.Month,
		TargetCount:  g.TargetCount,
		CurrentCount: g.CurrentCount,
		Progress:     g.Progress(),
		Stage:        g.Stage(),
		Flower:       core.FlowerForMonth(g.Month),
	}
}

// GoalPatch changes any subset of the goal fields. Values are clamped.
type GoalPatch struct {
	Year         *int `json:"year,omitempty"`
	Month        *int `json:"month,omitempty"`
	TargetCount  *int `json:"targetCount,omitempty"`
	CurrentCount *int `json:"currentCount,omitempty"`
}

type GoalService struct {
	mu     sync.Mutex
	repo   *state.Repository
	quotes []string
	rng    core.Picker
	sink   effects.Sink
	now    func() time.Time
}

func NewGoalService(repo *state.Repository, quotes []string, rng core.Picker, sink effects.Sink) *GoalService {
	if sink == nil {
		sink = effects.Discard{}
	}
	return &GoalService{
		repo:   repo,
		quotes: append([]string(nil), quotes...),
		rng:    rng,
		sink:   sink,
		now:    time.Now,
	}
}

func (s *GoalService) Get(ctx context.Context) GoalView {
	return NewGoalView(s.repo.LoadGoal(ctx))
}

// AddCalls adds n completed calls and returns the motivational quote.
// Non-positive n leaves the goal untouched and returns ErrNonPositiveCalls.
func (s *GoalService) AddCalls(ctx context.Context, n int) (GoalView, string, error) {
	s.mu.Lock()
	g, added := s.repo.LoadGoal(ctx).AddCalls(n)
	if !added {
		s.mu.Unlock()
		return NewGoalView(g), "", ErrNonPositiveCalls
	}
	if err := s.repo.SaveGoal(ctx, g); err != nil {
		s.mu.Unlock()
		return NewGoalView(g), "", fmt.Errorf("save goal: %w", err)
	}
	quote := core.PickQuote(s.quotes, s.rng)
	s.mu.Unlock()

	slog.InfoContext(ctx, "Calls added", "count", n, "current", g.CurrentCount, "target", g.TargetCount)
	ev := effects.Event{Kind: effects.CallsAdded, Quote: quote, At: s.now()}
	if err := s.sink.Emit(ctx, ev); err != nil {
		slog.WarnContext(ctx, "Failed to deliver goal effect", "error", err)
	}
	return NewGoalView(g), quote, nil
}

func (s *GoalService) Update(ctx context.Context, patch GoalPatch) (GoalView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.repo.LoadGoal(ctx)
	if patch.Year != nil && *patch.Year > 0 {
		g.Year = *patch.Year
	}
	if patch.Month != nil {
		g.Month = min(12, max(1, *patch.Month))
	}
	if patch.TargetCount != nil {
		g = g.WithTarget(*patch.TargetCount)
	}
	if patch.CurrentCount != nil {
		g = g.WithCurrent(*patch.CurrentCount)
	}
	if err := s.repo.SaveGoal(ctx, g); err != nil {
		return NewGoalView(g), fmt.Errorf("save goal: %w", err)
	}
	return NewGoalView(g), nil
}
