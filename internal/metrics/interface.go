package metrics

// Metrics defines the interface for collecting application metrics.
// This decouples the application from the specific metrics implementation (e.g., Prometheus).
type Metrics interface {
	IncHolesRecorded(kind string)
	IncItemsEnqueued()
	IncItemsSynced(n int)
	IncItemsFailed(n int)
	IncCircuitRejections()
	ObserveDispatchDuration(duration float64)
	SetQueueDepth(status string, n int)
	IncEventsApplied(n int)
	IncEventsDuplicate(n int)
	IncSlackNotifSent()
	IncSlackNotifFailed()
	SetStartupTime(duration float64)
}

// MetricsStore keeps lifetime counters in the database so they survive restarts.
type MetricsStore interface {
	Increment(key string)
	GetAll() (map[string]int, error)
}
