package http

import (
	"net/http"

	"callbingo/internal/services"
)

type addCallsRequest struct {
	Count int `json:"count"`
}

type addCallsResponse struct {
	Goal  services.GoalView `json:"goal"`
	Quote string            `json:"quote"`
}

func (s *Server) handleGoal(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(s.svc.Goal.Get(r.Context())).Write(w)
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	var patch services.GoalPatch
	if err := decodeBody(r, &patch); err != nil {
		s.writeError(w, r, err, "update_goal")
		return
	}
	view, err := s.svc.Goal.Update(r.Context(), patch)
	if err != nil {
		s.writeError(w, r, err, "update_goal")
		return
	}
	respond(w, r, http.StatusOK, view)
}

func (s *Server) handleAddCalls(w http.ResponseWriter, r *http.Request) {
	var req addCallsRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err, "add_calls")
		return
	}
	view, quote, err := s.svc.Goal.AddCalls(r.Context(), req.Count)
	if err != nil {
		s.writeError(w, r, err, "add_calls")
		return
	}
	respond(w, r, http.StatusOK, addCallsResponse{Goal: view, Quote: quote})
}
