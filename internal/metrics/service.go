package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Metrics = (*Service)(nil)

// NewMetricsHandler returns an http.Handler for the given Gatherer.
// If no gatherer is provided, it uses the default one.
func NewMetricsHandler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

// NewService creates and registers the Prometheus metrics.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		HolesRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchplay_hole_events_recorded_total",
			Help: "Hole events committed locally, by kind (result, correction, undo).",
		}, []string{"kind"}),
		ItemsEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchplay_sync_items_enqueued_total",
			Help: "Mutations added to the sync queue.",
		}),
		ItemsSynced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchplay_sync_items_synced_total",
			Help: "Sync items confirmed by the reconciliation service.",
		}),
		ItemsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchplay_sync_items_failed_total",
			Help: "Failed sync item submissions.",
		}),
		CircuitRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchplay_circuit_rejections_total",
			Help: "Submissions skipped because the circuit was open.",
		}),
		DispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "matchplay_dispatch_duration_seconds",
			Help:    "Duration of sync dispatch cycles.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "matchplay_sync_queue_depth",
			Help: "Sync queue items by status.",
		}, []string{"status"}),
		EventsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchplay_reconcile_events_applied_total",
			Help: "Events stored by the reconciliation service.",
		}),
		EventsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchplay_reconcile_events_duplicate_total",
			Help: "Resubmitted events the reconciliation service ignored.",
		}),
		SlackNotifSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchplay_slack_notifications_sent_total",
			Help: "The total number of Slack notifications successfully sent.",
		}),
		SlackNotifFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchplay_slack_notifications_failed_total",
			Help: "The total number of Slack notifications that failed to send.",
		}),
		StartupTimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "matchplay_startup_duration_seconds",
			Help: "The duration of the application startup in seconds.",
		}),
	}

	reg.MustRegister(
		s.HolesRecorded,
		s.ItemsEnqueued,
		s.ItemsSynced,
		s.ItemsFailed,
		s.CircuitRejections,
		s.DispatchDuration,
		s.QueueDepth,
		s.EventsApplied,
		s.EventsDuplicate,
		s.SlackNotifSent,
		s.SlackNotifFailed,
		s.StartupTimeSeconds,
	)

	return s
}

func (s *Service) IncHolesRecorded(kind string) {
	s.HolesRecorded.WithLabelValues(kind).Inc()
}

func (s *Service) IncItemsEnqueued() {
	s.ItemsEnqueued.Inc()
}

func (s *Service) IncItemsSynced(n int) {
	s.ItemsSynced.Add(float64(n))
}

func (s *Service) IncItemsFailed(n int) {
	s.ItemsFailed.Add(float64(n))
}

func (s *Service) IncCircuitRejections() {
	s.CircuitRejections.Inc()
}

func (s *Service) ObserveDispatchDuration(duration float64) {
	s.DispatchDuration.Observe(duration)
}

func (s *Service) SetQueueDepth(status string, n int) {
	s.QueueDepth.WithLabelValues(status).Set(float64(n))
}

func (s *Service) IncEventsApplied(n int) {
	s.EventsApplied.Add(float64(n))
}

func (s *Service) IncEventsDuplicate(n int) {
	s.EventsDuplicate.Add(float64(n))
}

func (s *Service) IncSlackNotifSent() {
	s.SlackNotifSent.Inc()
}

func (s *Service) IncSlackNotifFailed() {
	s.SlackNotifFailed.Inc()
}

func (s *Service) SetStartupTime(duration float64) {
	s.StartupTimeSeconds.Set(duration)
}
