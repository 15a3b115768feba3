package http

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"time"

	"callbingo/internal/core"
	applog "callbingo/internal/log"
	"callbingo/internal/services"
)

var templateFuncs = template.FuncMap{
	"yen":       formatYen,
	"signedYen": signedYen,
	"percent":   percent,
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	}).Write(w)
}

// handleReady runs every readiness check with a shared timeout.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	checks := map[string]string{"templates": "ok"}
	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			checks[name] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	NewResponse().Status(code).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

type cellView struct {
	core.Cell
	Marked bool
}

type indexData struct {
	Rows     [3][3]cellView
	Board    services.Board
	Stats    core.BoardStats
	Pachinko bool
	Goal     services.GoalView
	Ledger   services.LedgerView
	Today    string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.templates == nil {
		s.logger.ErrorContext(ctx, "Templates not loaded",
			applog.FieldPath, r.URL.Path,
			applog.FieldComponent, applog.ComponentTemplate,
			applog.FieldErrorType, applog.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	board := s.svc.Game.Snapshot()
	data := indexData{
		Board:    board,
		Stats:    board.Stats(),
		Pachinko: board.Pachinko(),
		Goal:     s.svc.Goal.Get(ctx),
		Ledger:   s.svc.Ledger.View(ctx),
		Today:    core.FormatDate(time.Now()),
	}
	for i, c := range board.Grid {
		data.Rows[i/3][i%3] = cellView{Cell: c, Marked: board.Marked[i]}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		s.logger.ErrorContext(ctx, "Index template execution failed",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpRender)
		http.Error(w, "render failed", http.StatusInternalServerError)
	}
}

// validationErrors map to 422; each is a rejected but well-formed request.
var validationErrors = []error{
	core.ErrInvalidLines,
	core.ErrInvalidAmount,
	core.ErrInvalidDate,
	core.ErrEmptyDescription,
	core.ErrDescriptionTooLong,
	core.ErrNameTooLong,
	core.ErrUnknownType,
	core.ErrNonMonotonicID,
	core.ErrUnknownPlayer,
	services.ErrUnknownMode,
	services.ErrNonPositiveCalls,
}

// writeError maps domain errors onto status codes. Unknown errors are
// logged and answered with 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case errors.Is(err, errBadBody):
		BadRequestError(err.Error()).Write(w)
		return
	case errors.Is(err, errBadID), errors.Is(err, core.ErrUnknownCell), errors.Is(err, core.ErrTransactionNotFound):
		NotFoundError(err.Error()).Write(w)
		return
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			UnprocessableEntityError(err.Error()).Write(w)
			return
		}
	}

	applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
		applog.FieldError, err,
		applog.FieldErrorType, applog.ErrorTypeInternal,
		applog.FieldOperation, op,
		applog.FieldPath, r.URL.Path)
	InternalServerError("internal error").Write(w)
}

// respond writes v as JSON, or redirects back to the page for form posts.
func respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	if wantsHTML(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	NewResponse().Status(status).JSON(v).Write(w)
}
