package http

import (
	"net/http"

	"callbingo/internal/core"
	applog "callbingo/internal/log"
	"callbingo/internal/services"
)

// boardJSON flattens the board and adds its derived values.
type boardJSON struct {
	services.Board
	Stats    core.BoardStats `json:"stats"`
	Pachinko bool            `json:"pachinko"`
}

type updateJSON struct {
	Board       boardJSON     `json:"board"`
	NewlyMarked []int         `json:"newlyMarked"`
	Edge        core.LineEdge `json:"edge"`
	Gained      int           `json:"gained"`
	Lost        int           `json:"lost"`
}

func newBoardJSON(b services.Board) boardJSON {
	return boardJSON{Board: b, Stats: b.Stats(), Pachinko: b.Pachinko()}
}

func newUpdateJSON(u services.Update) updateJSON {
	newly := u.NewlyMarked
	if newly == nil {
		newly = []int{}
	}
	return updateJSON{
		Board:       newBoardJSON(u.Board),
		NewlyMarked: newly,
		Edge:        u.Edge,
		Gained:      u.Edge.Gained(),
		Lost:        u.Edge.Lost(),
	}
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(newBoardJSON(s.svc.Game.Snapshot())).Write(w)
}

func (s *Server) handleIncrement(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.writeError(w, r, core.ErrUnknownCell, "increment")
		return
	}
	u, err := s.svc.Game.Increment(r.Context(), int(id))
	if err != nil {
		s.writeError(w, r, err, "increment")
		return
	}
	if g := u.Edge.Gained(); g > 0 {
		applog.FromContext(r.Context()).InfoContext(r.Context(), "Bingo line completed",
			applog.FieldCellID, id,
			applog.FieldLines, u.Board.Lines)
	}
	respond(w, r, http.StatusOK, newUpdateJSON(u))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, newUpdateJSON(s.svc.Game.ResetMarks(r.Context())))
}

func (s *Server) handleShuffle(w http.ResponseWriter, r *http.Request) {
	u := s.svc.Game.Shuffle(r.Context())
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Board shuffled",
		applog.FieldVersion, u.Board.Version)
	respond(w, r, http.StatusOK, newUpdateJSON(u))
}

func (s *Server) handleEditCells(w http.ResponseWriter, r *http.Request) {
	var edits []core.CellEdit
	if err := decodeBody(r, &edits); err != nil {
		s.writeError(w, r, err, "edit_cells")
		return
	}
	for i := range edits {
		edits[i].Text = sanitizePtr(edits[i].Text)
	}
	u, err := s.svc.Game.Edit(r.Context(), edits)
	if err != nil {
		s.writeError(w, r, err, "edit_cells")
		return
	}
	respond(w, r, http.StatusOK, newUpdateJSON(u))
}
