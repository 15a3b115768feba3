package core

import (
	"math/rand/v2"
	"testing"
)

func markedOf(idx ...int) Marked {
	var m Marked
	for _, i := range idx {
		m[i] = true
	}
	return m
}

func TestCountLines(t *testing.T) {
	cases := []struct {
		name   string
		marked Marked
		want   int
	}{
		{"empty", Marked{}, 0},
		{"full", markedOf(0, 1, 2, 3, 4, 5, 6, 7, 8), 8},
		{"top row", markedOf(0, 1, 2), 1},
		{"middle column", markedOf(1, 4, 7), 1},
		{"diagonal", markedOf(2, 4, 6), 1},
		{"cross", markedOf(1, 3, 4, 5, 7), 2},
		{"corners and center", markedOf(0, 2, 4, 6, 8), 2},
		{"no line", markedOf(0, 1, 3, 5), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CountLines(tc.marked, WinningLines()); got != tc.want {
				t.Errorf("CountLines = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestCountLinesPermutationInvariant(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for run := 0; run < 100; run++ {
		var m Marked
		for i := range m {
			m[i] = rng.IntN(2) == 1
		}
		lines := WinningLines()
		want := CountLines(m, lines)
		rng.Shuffle(len(lines), func(i, j int) { lines[i], lines[j] = lines[j], lines[i] })
		if got := CountLines(m, lines); got != want {
			t.Fatalf("permuted lines changed count: %d != %d", got, want)
		}
	}
}

func TestCountLinesIgnoresOutOfRange(t *testing.T) {
	m := markedOf(0, 1, 2, 3, 4, 5, 6, 7, 8)
	if got := CountLines(m, []Line{{0, 1, 9}, {-1, 0, 1}}); got != 0 {
		t.Fatalf("out of range lines should not count, got %d", got)
	}
}

func TestWinningLinesIsFresh(t *testing.T) {
	a := WinningLines()
	a[0] = Line{8, 8, 8}
	if WinningLines()[0] != (Line{0, 1, 2}) {
		t.Fatalf("WinningLines shares state between calls")
	}
}

func TestLineEdge(t *testing.T) {
	e := LineEdge{Previous: 1, Current: 3}
	if e.Gained() != 2 || e.Lost() != 0 {
		t.Fatalf("unexpected rising edge: %+v", e)
	}
	e = LineEdge{Previous: 3, Current: 0}
	if e.Gained() != 0 || e.Lost() != 3 {
		t.Fatalf("unexpected falling edge: %+v", e)
	}
}

func TestStats(t *testing.T) {
	m := Marked{true, true, true, false, true, false, false, false, true}
	got := Stats(m)
	want := BoardStats{BingoCount: 2, MarkedCount: 5}
	if got != want {
		t.Errorf("Stats = %+v, want %+v", got, want)
	}
	if got := Stats(Marked{}); got != (BoardStats{}) {
		t.Errorf("Stats(empty) = %+v", got)
	}
}
