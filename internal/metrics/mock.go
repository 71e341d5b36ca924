package metrics

import "sync"

// Mock is a mock implementation of the Metrics interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu                sync.Mutex
	holesRecorded     map[string]int
	itemsEnqueued     int
	itemsSynced       int
	itemsFailed       int
	circuitRejections int
	dispatchDurations []float64
	queueDepth        map[string]int
	eventsApplied     int
	eventsDuplicate   int
	slackNotifSent    int
	slackNotifFailed  int
	startupTime       float64
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{
		holesRecorded:     make(map[string]int),
		dispatchDurations: make([]float64, 0),
		queueDepth:        make(map[string]int),
	}
}

func (m *Mock) IncHolesRecorded(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holesRecorded[kind]++
}

func (m *Mock) IncItemsEnqueued() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.itemsEnqueued++
}

func (m *Mock) IncItemsSynced(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.itemsSynced += n
}

func (m *Mock) IncItemsFailed(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.itemsFailed += n
}

func (m *Mock) IncCircuitRejections() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.circuitRejections++
}

func (m *Mock) ObserveDispatchDuration(duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatchDurations = append(m.dispatchDurations, duration)
}

func (m *Mock) SetQueueDepth(status string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueDepth[status] = n
}

func (m *Mock) IncEventsApplied(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventsApplied += n
}

func (m *Mock) IncEventsDuplicate(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventsDuplicate += n
}

func (m *Mock) IncSlackNotifSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slackNotifSent++
}

func (m *Mock) IncSlackNotifFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slackNotifFailed++
}

func (m *Mock) SetStartupTime(duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startupTime = duration
}

// HolesRecorded returns how often IncHolesRecorded was called for kind.
func (m *Mock) HolesRecorded(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holesRecorded[kind]
}

func (m *Mock) ItemsEnqueued() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.itemsEnqueued
}

func (m *Mock) ItemsSynced() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.itemsSynced
}

func (m *Mock) ItemsFailed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.itemsFailed
}

func (m *Mock) CircuitRejections() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.circuitRejections
}

// DispatchCycles returns the number of observed dispatch durations.
func (m *Mock) DispatchCycles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.dispatchDurations)
}

func (m *Mock) QueueDepth(status string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queueDepth[status]
}

func (m *Mock) EventsApplied() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eventsApplied
}

func (m *Mock) EventsDuplicate() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eventsDuplicate
}

// SlackNotifSent returns the number of times IncSlackNotifSent was called.
func (m *Mock) SlackNotifSent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slackNotifSent
}

// SlackNotifFailed returns the number of times IncSlackNotifFailed was called.
func (m *Mock) SlackNotifFailed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slackNotifFailed
}
