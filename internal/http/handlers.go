package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/matchplay-trip/internal/matchplay"
	"github.com/mauv0809/matchplay-trip/internal/reconcile"
	"github.com/mauv0809/matchplay-trip/internal/resilience"
	"github.com/mauv0809/matchplay-trip/internal/scoring"
	"github.com/mauv0809/matchplay-trip/internal/syncqueue"
)

const maxBodyBytes = 1 << 20

func (s *Server) HealthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("Received health check request")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK!")
	}
}

func (s *Server) RecordHoleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recordHoleRequest
		if !decodeBody(w, r, &req) {
			return
		}
		event, err := s.Scoring.RecordHoleResult(r.Context(), r.PathValue("matchID"), req.Hole, matchplay.Winner(req.Winner))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, event)
	}
}

func (s *Server) CorrectHoleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hole, ok := holeParam(w, r)
		if !ok {
			return
		}
		var req correctHoleRequest
		if !decodeBody(w, r, &req) {
			return
		}
		event, err := s.Scoring.CorrectHoleResult(r.Context(), r.PathValue("matchID"), hole, matchplay.Winner(req.Winner))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, event)
	}
}

func (s *Server) UndoHoleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hole, ok := holeParam(w, r)
		if !ok {
			return
		}
		event, err := s.Scoring.UndoHoleResult(r.Context(), r.PathValue("matchID"), hole)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, event)
	}
}

func (s *Server) HoleResultsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := s.Scoring.GetHoleResults(r.Context(), r.PathValue("matchID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if events == nil {
			events = []matchplay.HoleResult{}
		}
		writeJSON(w, r, http.StatusOK, events)
	}
}

func (s *Server) MatchStateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := s.Scoring.GetMatchState(r.Context(), r.PathValue("matchID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, state)
	}
}

func (s *Server) StandingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := s.Scoring.GetTeamStandings(r.Context(), r.PathValue("tripID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, st)
	}
}

func (s *Server) MagicNumberHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mn, err := s.Scoring.GetMagicNumber(r.Context(), r.PathValue("tripID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, mn)
	}
}

func (s *Server) SyncStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.Scoring.GetSyncQueueStats(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp := syncStatsResponse{Queue: stats, Enabled: s.Dispatcher != nil}
		if s.Dispatcher != nil {
			circuit := s.Dispatcher.Circuit()
			resp.Circuit = &circuit
		}
		writeJSON(w, r, http.StatusOK, resp)
	}
}

func (s *Server) SyncItemsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := syncqueue.Status(r.URL.Query().Get("status"))
		switch status {
		case "", syncqueue.StatusPending, syncqueue.StatusSyncing, syncqueue.StatusFailed:
		default:
			writeError(w, r, resilience.NewValidationError("status", "must be pending, syncing or failed, got %q", status))
			return
		}
		items, err := s.Scoring.ListSyncItems(r.Context(), status)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if items == nil {
			items = []syncqueue.Item{}
		}
		writeJSON(w, r, http.StatusOK, items)
	}
}

func (s *Server) DispatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Dispatcher == nil {
			http.Error(w, "Sync is not configured", http.StatusServiceUnavailable)
			return
		}
		// The cycle may be shared with the run loop, so a dropped client must not cancel it.
		report, err := s.Dispatcher.Dispatch(context.WithoutCancel(r.Context()))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, report)
	}
}

func (s *Server) RetryAllHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := s.Scoring.RetryAllFailed(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		logger(r).Info("Requeued failed sync items", "count", n)
		writeJSON(w, r, http.StatusOK, countResponse{Count: n})
	}
}

func (s *Server) RetryItemHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.Scoring.RetrySyncItem(r.Context(), r.PathValue("itemID")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// DiscardItemHandler drops one queued item. Like DiscardAllHandler it requires
// ?confirm=true.
func (s *Server) DiscardItemHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("confirm") != "true" {
			writeError(w, r, resilience.NewValidationError("confirm", "must be true to discard a queued item"))
			return
		}
		if err := s.Scoring.DiscardSyncItem(r.Context(), r.PathValue("itemID")); err != nil {
			writeError(w, r, err)
			return
		}
		logger(r).Warn("Discarded sync item", "id", r.PathValue("itemID"))
		w.WriteHeader(http.StatusNoContent)
	}
}

// DiscardAllHandler drops every queued item that is not in flight. It requires
// ?confirm=true since the mutations are lost for good.
func (s *Server) DiscardAllHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("confirm") != "true" {
			writeError(w, r, resilience.NewValidationError("confirm", "must be true to discard every queued item"))
			return
		}
		n, err := s.Scoring.DiscardAllSyncItems(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		logger(r).Warn("Discarded all sync items", "count", n)
		writeJSON(w, r, http.StatusOK, countResponse{Count: n})
	}
}

func (s *Server) SyncBatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reconcile.BatchRequest
		if !decodeBody(w, r, &req) {
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		resp, err := s.Reconciler.Apply(r.Context(), strings.TrimSpace(token), req, isDryRunFromContext(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, resp)
	}
}

func (s *Server) ReconciledStandingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := s.Reconciler.Summary(r.Context(), r.PathValue("tripID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, summary)
	}
}

func (s *Server) NotifyStandingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.Reconciler.PostStandings(r.Context(), r.PathValue("tripID"), isDryRunFromContext(r)); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func holeParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	hole, err := strconv.Atoi(r.PathValue("hole"))
	if err != nil {
		writeError(w, r, resilience.NewValidationError("hole", "must be a number, got %q", r.PathValue("hole")))
		return 0, false
	}
	return hole, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, resilience.NewValidationError("", "invalid JSON body: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger(r).Error("Failed to encode response", "error", err)
	}
}

// writeError maps domain errors onto status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status = http.StatusInternalServerError
		body   = errorResponse{Error: err.Error()}
		vErr   *resilience.ValidationError
	)
	switch {
	case errors.As(err, &vErr):
		status = http.StatusBadRequest
		body.Field = vErr.Field
	case scoring.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, syncqueue.ErrItemInFlight):
		status = http.StatusConflict
	case errors.Is(err, reconcile.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, reconcile.ErrForbidden):
		status = http.StatusForbidden
	}
	if status == http.StatusInternalServerError {
		logger(r).Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		body.Error = "internal error"
	} else {
		logger(r).Debug("Request rejected", "status", status, "error", err)
	}
	writeJSON(w, r, status, body)
}
