package notifier

import "sync"

// Mock is a mock implementation of the Notifier interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu sync.Mutex

	SendMatchDecidedFunc func(match MatchDecided, dryRun bool) (string, error)
	SendTripClinchedFunc func(clinch TripClinched, dryRun bool) (string, error)
	SendStandingsFunc    func(summary StandingsSummary, dryRun bool) (string, error)

	// Call records
	SendMatchDecidedCalls []MatchDecided
	SendTripClinchedCalls []TripClinched
	SendStandingsCalls    []StandingsSummary
}

var _ Notifier = (*Mock)(nil)

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{}
}

// Reset clears all call records.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendMatchDecidedCalls = nil
	m.SendTripClinchedCalls = nil
	m.SendStandingsCalls = nil
}

func (m *Mock) SendMatchDecided(match MatchDecided, dryRun bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendMatchDecidedCalls = append(m.SendMatchDecidedCalls, match)
	if m.SendMatchDecidedFunc != nil {
		return m.SendMatchDecidedFunc(match, dryRun)
	}
	return "mock-ts", nil
}

func (m *Mock) SendTripClinched(clinch TripClinched, dryRun bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendTripClinchedCalls = append(m.SendTripClinchedCalls, clinch)
	if m.SendTripClinchedFunc != nil {
		return m.SendTripClinchedFunc(clinch, dryRun)
	}
	return "mock-ts", nil
}

func (m *Mock) SendStandings(summary StandingsSummary, dryRun bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendStandingsCalls = append(m.SendStandingsCalls, summary)
	if m.SendStandingsFunc != nil {
		return m.SendStandingsFunc(summary, dryRun)
	}
	return "mock-ts", nil
}

// MatchDecidedCount returns the number of match notifications sent.
func (m *Mock) MatchDecidedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SendMatchDecidedCalls)
}

// TripClinchedCount returns the number of clinch notifications sent.
func (m *Mock) TripClinchedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SendTripClinchedCalls)
}
