package syncqueue

import (
	"context"
	"sync"
)

// MockRemote is a mock implementation of the Remote interface for testing.
// Without a SubmitFunc every item is reported as synced.
// It is safe for concurrent use.
type MockRemote struct {
	mu sync.Mutex

	SubmitFunc func(ctx context.Context, batch Batch) ([]Outcome, error)

	SubmitCalls []Batch
}

// NewMockRemote creates a new mock instance.
func NewMockRemote() *MockRemote {
	return &MockRemote{}
}

func (m *MockRemote) Submit(ctx context.Context, batch Batch) ([]Outcome, error) {
	m.mu.Lock()
	m.SubmitCalls = append(m.SubmitCalls, batch)
	fn := m.SubmitFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, batch)
	}
	outcomes := make([]Outcome, len(batch.Items))
	for i, item := range batch.Items {
		outcomes[i] = Outcome{ItemID: item.ID, Synced: true}
	}
	return outcomes, nil
}

// Calls returns a copy of the recorded batches.
func (m *MockRemote) Calls() []Batch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Batch(nil), m.SubmitCalls...)
}

// Reset clears all call records.
func (m *MockRemote) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SubmitCalls = nil
}
