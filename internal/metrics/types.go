package metrics

import "github.com/prometheus/client_golang/prometheus"

// Service holds all the Prometheus metrics for the application.
// By defining them all in one place, we ensure consistency in naming and labeling.
type Service struct {
	HolesRecorded      *prometheus.CounterVec
	ItemsEnqueued      prometheus.Counter
	ItemsSynced        prometheus.Counter
	ItemsFailed        prometheus.Counter
	CircuitRejections  prometheus.Counter
	DispatchDuration   prometheus.Histogram
	QueueDepth         *prometheus.GaugeVec
	EventsApplied      prometheus.Counter
	EventsDuplicate    prometheus.Counter
	SlackNotifSent     prometheus.Counter
	SlackNotifFailed   prometheus.Counter
	StartupTimeSeconds prometheus.Gauge
}

// Keys used with the MetricsStore.
const (
	KeyHolesRecorded  = "holes_recorded"
	KeyItemsDiscarded = "sync_items_discarded"
	KeyManualRetries  = "sync_manual_retries"
)
