package http

import (
	"net/http"

	"github.com/mauv0809/matchplay-trip/internal/config"
	"github.com/mauv0809/matchplay-trip/internal/metrics"
	"github.com/mauv0809/matchplay-trip/internal/reconcile"
	"github.com/mauv0809/matchplay-trip/internal/resilience"
	"github.com/mauv0809/matchplay-trip/internal/scoring"
	"github.com/mauv0809/matchplay-trip/internal/syncqueue"
)

// Server serves either the scorer surface or the reconciler surface, depending on
// the constructor used.
type Server struct {
	Scoring        *scoring.Service
	Dispatcher     *syncqueue.Dispatcher
	Reconciler     *reconcile.Service
	Metrics        metrics.Metrics
	MetricsHandler http.Handler
	Cfg            config.Config
	Router         *http.ServeMux

	handler http.Handler
}

type recordHoleRequest struct {
	Hole   int    `json:"hole"`
	Winner string `json:"winner"`
}

type correctHoleRequest struct {
	Winner string `json:"winner"`
}

type syncStatsResponse struct {
	Queue   syncqueue.Stats          `json:"queue"`
	Circuit *resilience.CircuitState `json:"circuit,omitempty"`
	Enabled bool                     `json:"sync_enabled"`
}

type countResponse struct {
	Count int `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}
