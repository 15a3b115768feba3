package core

// MaxLines is the number of distinct winning lines on a 3x3 board.
const MaxLines = 8

// WinningLines returns the 3 rows, 3 columns and 2 diagonals.
// A new slice is returned on every call so callers cannot alter the set.
func WinningLines() []Line {
	return []Line{
		{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
		{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
		{0, 4, 8}, {2, 4, 6},
	}
}

// CountLines returns how many lines have all three cells marked.
// Indices outside the board never count as marked.
func CountLines(marked Marked, lines []Line) int {
	count := 0
	for _, line := range lines {
		complete := true
		for _, idx := range line {
			if idx < 0 || idx >= GridSize || !marked[idx] {
				complete = false
				break
			}
		}
		if complete {
			count++
		}
	}
	return count
}

// LineEdge describes how the completed line count moved between two
// evaluations.
type LineEdge struct {
	Previous int `json:"previous"`
	Current  int `json:"current"`
}

// Gained is positive on a rising edge (new bingo).
func (e LineEdge) Gained() int { return max(0, e.Current-e.Previous) }

// Lost is positive on a falling edge, e.g. after a reset.
func (e LineEdge) Lost() int { return max(0, e.Previous-e.Current) }

// BoardStats summarises a board for the monthly statistics panel.
type BoardStats struct {
	BingoCount  int `json:"bingoCount"`
	MarkedCount int `json:"markedCount"`
}

// Stats counts completed lines and marked cells.
func Stats(marked Marked) BoardStats {
	return BoardStats{
		BingoCount:  CountLines(marked, WinningLines()),
		MarkedCount: marked.Count(),
	}
}
