package http

import (
	"net/http"

	"callbingo/internal/core"
	applog "callbingo/internal/log"
	"callbingo/internal/services"
)

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(s.svc.Ledger.View(r.Context())).Write(w)
}

func (s *Server) handleRecordEntry(w http.ResponseWriter, r *http.Request) {
	var req services.EntryRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err, applog.OpCreate)
		return
	}
	req.Date = sanitizeInput(req.Date)

	tx, err := s.svc.Ledger.Record(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err, applog.OpCreate)
		return
	}
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogLedgerEntry(r.Context(), applog.OpCreate, tx.ID, string(tx.Type), tx.Amount)
	respond(w, r, http.StatusCreated, tx)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.writeError(w, r, core.ErrTransactionNotFound, applog.OpDelete)
		return
	}
	if err := s.svc.Ledger.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err, applog.OpDelete)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Ledger entry deleted", applog.FieldTxID, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(s.svc.Ledger.Players(r.Context())).Write(w)
}

func (s *Server) handleUpdatePlayers(w http.ResponseWriter, r *http.Request) {
	var patch services.PlayersPatch
	if err := decodeBody(r, &patch); err != nil {
		s.writeError(w, r, err, applog.OpUpdate)
		return
	}
	patch.Me = sanitizePtr(patch.Me)
	patch.Opponent1 = sanitizePtr(patch.Opponent1)
	patch.Opponent2 = sanitizePtr(patch.Opponent2)

	if _, err := s.svc.Ledger.UpdatePlayers(r.Context(), patch); err != nil {
		s.writeError(w, r, err, applog.OpUpdate)
		return
	}
	// Blank names fall back to defaults on the next read.
	respond(w, r, http.StatusOK, s.svc.Ledger.Players(r.Context()))
}
