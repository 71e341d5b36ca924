package http

import (
	"net/http"

	"github.com/mauv0809/matchplay-trip/internal/config"
	"github.com/mauv0809/matchplay-trip/internal/metrics"
	"github.com/mauv0809/matchplay-trip/internal/reconcile"
	"github.com/mauv0809/matchplay-trip/internal/scoring"
	"github.com/mauv0809/matchplay-trip/internal/syncqueue"
	"github.com/rs/cors"
)

// NewScorerServer serves hole intake, the read surface and sync administration.
// dispatcher is nil when no sync endpoint is configured.
func NewScorerServer(svc *scoring.Service, dispatcher *syncqueue.Dispatcher, metricsSvc metrics.Metrics, metricsHandler http.Handler, cfg config.Config) *Server {
	server := &Server{
		Scoring:        svc,
		Dispatcher:     dispatcher,
		Metrics:        metricsSvc,
		MetricsHandler: metricsHandler,
		Cfg:            cfg,
		Router:         http.NewServeMux(),
	}
	server.scorerRoutes()
	server.handler = withCORS(server.Router, cfg.AllowedOrigins)
	return server
}

// NewReconcilerServer serves the sync endpoint of the authoritative side.
func NewReconcilerServer(rec *reconcile.Service, metricsSvc metrics.Metrics, metricsHandler http.Handler, cfg config.Config) *Server {
	server := &Server{
		Reconciler:     rec,
		Metrics:        metricsSvc,
		MetricsHandler: metricsHandler,
		Cfg:            cfg,
		Router:         http.NewServeMux(),
	}
	server.reconcilerRoutes()
	server.handler = server.Router
	return server
}

func (s *Server) scorerRoutes() {
	// All handlers are wrapped with middleware using the Chain helper.
	// e.g. Chain(s.MyHandler(), paramsMiddleware, requestIDMiddleware, authMiddleware)
	s.Router.Handle("GET /metrics", s.MetricsHandler)
	s.Router.Handle("GET /health", Chain(s.HealthCheckHandler(), paramsMiddleware))

	s.Router.Handle("POST /matches/{matchID}/holes", Chain(s.RecordHoleHandler(), paramsMiddleware, requestIDMiddleware))
	s.Router.Handle("POST /matches/{matchID}/holes/{hole}/correct", Chain(s.CorrectHoleHandler(), paramsMiddleware, requestIDMiddleware))
	s.Router.Handle("POST /matches/{matchID}/holes/{hole}/undo", Chain(s.UndoHoleHandler(), paramsMiddleware, requestIDMiddleware))
	s.Router.Handle("GET /matches/{matchID}/holes", Chain(s.HoleResultsHandler(), paramsMiddleware, requestIDMiddleware))
	s.Router.Handle("GET /matches/{matchID}/state", Chain(s.MatchStateHandler(), paramsMiddleware, requestIDMiddleware))
	s.Router.Handle("GET /trips/{tripID}/standings", Chain(s.StandingsHandler(), paramsMiddleware, requestIDMiddleware))
	s.Router.Handle("GET /trips/{tripID}/magic-number", Chain(s.MagicNumberHandler(), paramsMiddleware, requestIDMiddleware))

	s.Router.Handle("GET /sync/stats", Chain(s.SyncStatsHandler(), paramsMiddleware, requestIDMiddleware))
	s.Router.Handle("GET /sync/items", Chain(s.SyncItemsHandler(), paramsMiddleware, requestIDMiddleware))
	s.Router.Handle("POST /sync/dispatch", Chain(s.DispatchHandler(), paramsMiddleware, requestIDMiddleware))
	s.Router.Handle("POST /sync/retry", Chain(s.RetryAllHandler(), paramsMiddleware, requestIDMiddleware))
	s.Router.Handle("POST /sync/items/{itemID}/retry", Chain(s.RetryItemHandler(), paramsMiddleware, requestIDMiddleware))
	s.Router.Handle("DELETE /sync/items/{itemID}", Chain(s.DiscardItemHandler(), paramsMiddleware, requestIDMiddleware))
	s.Router.Handle("DELETE /sync/items", Chain(s.DiscardAllHandler(), paramsMiddleware, requestIDMiddleware))
}

func (s *Server) reconcilerRoutes() {
	s.Router.Handle("GET /metrics", s.MetricsHandler)
	s.Router.Handle("GET /health", Chain(s.HealthCheckHandler(), paramsMiddleware))
	s.Router.Handle("POST /v1/sync", Chain(s.SyncBatchHandler(), paramsMiddleware, requestIDMiddleware))
	s.Router.Handle("GET /trips/{tripID}/standings", Chain(s.ReconciledStandingsHandler(), paramsMiddleware, requestIDMiddleware))
	s.Router.Handle("POST /trips/{tripID}/standings/notify", Chain(s.NotifyStandingsHandler(), paramsMiddleware, requestIDMiddleware))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// withCORS opens the read surface to browser clients on the given origins.
func withCORS(h http.Handler, origins []string) http.Handler {
	if len(origins) == 0 {
		return h
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
	}).Handler(h)
}
