package core

import "strings"

// Shuffler is the random source used by GenerateGrid. *math/rand/v2.Rand
// satisfies it; tests pass deterministic implementations.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// CellEdit changes the text and/or target of one cell. Nil fields are kept.
type CellEdit struct {
	ID          int     `json:"id"`
	Text        *string `json:"text,omitempty"`
	TargetCount *int    `json:"targetCount,omitempty"`
}

// GenerateGrid shuffles the phrase pool, takes the first eight phrases for
// the outer cells in order and puts center at CenterIndex. Blank and
// repeated phrases are dropped from the pool first.
//
// A pool with fewer than eight distinct phrases is a programming error and
// panics.
func GenerateGrid(pool []string, center string, rng Shuffler) Grid {
	phrases := dedupe(pool)
	if len(phrases) < GridSize-1 {
		panic("core: phrase pool needs at least 8 distinct phrases")
	}
	rng.Shuffle(len(phrases), func(i, j int) {
		phrases[i], phrases[j] = phrases[j], phrases[i]
	})

	var g Grid
	next := 0
	for i := range g {
		cell := Cell{ID: i, TargetCount: 1}
		if i == CenterIndex {
			cell.Text = center
			cell.IsCenter = true
		} else {
			cell.Text = phrases[next]
			next++
		}
		g[i] = cell
	}
	return g
}

// Marked derives the marked state from the cell counts.
func (g Grid) Marked() Marked {
	var m Marked
	for i, c := range g {
		m[i] = c.Satisfied()
	}
	return m
}

// Increment returns a copy of g with one more completion on cell id.
func (g Grid) Increment(id int) (Grid, error) {
	if id < 0 || id >= GridSize {
		return g, ErrUnknownCell
	}
	g[id].CurrentCount++
	return g, nil
}

// ResetCounts zeroes every counter and keeps texts and targets.
func (g Grid) ResetCounts() Grid {
	for i := range g {
		g[i].CurrentCount = 0
	}
	return g
}

// ApplyEdits applies settings edits. Targets below one are raised to one
// and the center text cannot be changed.
func (g Grid) ApplyEdits(edits []CellEdit) (Grid, error) {
	for _, e := range edits {
		if e.ID < 0 || e.ID >= GridSize {
			return g, ErrUnknownCell
		}
		if e.Text != nil && !g[e.ID].IsCenter {
			g[e.ID].Text = strings.TrimSpace(*e.Text)
		}
		if e.TargetCount != nil {
			g[e.ID].TargetCount = max(1, *e.TargetCount)
		}
	}
	return g, nil
}

// Pachinko reports whether the themed mode is on, which happens as soon
// as the center cell is marked.
func (m Marked) Pachinko() bool {
	return m[CenterIndex]
}

// Count returns the number of marked cells.
func (m Marked) Count() int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
