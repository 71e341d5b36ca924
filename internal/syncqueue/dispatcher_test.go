package syncqueue_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mauv0809/matchplay-trip/internal/metrics"
	"github.com/mauv0809/matchplay-trip/internal/resilience"
	"github.com/mauv0809/matchplay-trip/internal/syncqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func testOptions() syncqueue.Options {
	return syncqueue.Options{
		Policy: resilience.Policy{Timeout: time.Second, Retries: 0, BaseDelay: time.Millisecond},
	}
}

func TestDispatch_RetryLifecycle(t *testing.T) {
	q, _, teardown := setupTestDB(t)
	defer teardown()
	remote := syncqueue.NewMockRemote()
	m := metrics.NewMock()
	d := syncqueue.NewDispatcher(q, remote, m, testOptions())
	ctx := context.Background()

	item := enqueue(t, q, "m1", 1)

	remote.SubmitFunc = func(ctx context.Context, batch syncqueue.Batch) ([]syncqueue.Outcome, error) {
		return nil, &resilience.ServerError{StatusCode: 500, Body: "boom"}
	}
	report, err := d.Dispatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, syncqueue.Report{Claimed: 1, Failed: 1}, report)

	got, err := q.Get(item.ID)
	require.NoError(t, err)
	assert.Equal(t, syncqueue.StatusFailed, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Contains(t, got.LastError, "status 500")

	n, err := q.RetryAllFailed()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, err = q.Get(item.ID)
	require.NoError(t, err)
	assert.Equal(t, syncqueue.StatusPending, got.Status)

	remote.SubmitFunc = nil
	report, err = d.Dispatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced)

	_, err = q.Get(item.ID)
	assert.ErrorIs(t, err, syncqueue.ErrItemNotFound, "completed items are pruned")
	assert.Equal(t, 1, m.ItemsSynced())
	assert.Equal(t, 1, m.ItemsFailed())
	assert.Equal(t, 2, m.DispatchCycles())
}

func TestDispatch_GroupsByScopeInCreationOrder(t *testing.T) {
	q, _, teardown := setupTestDB(t)
	defer teardown()
	remote := syncqueue.NewMockRemote()
	d := syncqueue.NewDispatcher(q, remote, metrics.NewMock(), testOptions())

	a1 := enqueue(t, q, "m1", 1)
	b1 := enqueue(t, q, "m2", 1)
	a2 := enqueue(t, q, "m1", 2)
	a3 := enqueue(t, q, "m1", 3)

	report, err := d.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Synced)

	calls := remote.Calls()
	require.Len(t, calls, 2)
	byScope := map[string][]string{}
	for _, batch := range calls {
		for _, item := range batch.Items {
			byScope[batch.Scope] = append(byScope[batch.Scope], item.ID)
		}
		assert.Equal(t, "trip-1", batch.TripID)
	}
	assert.Equal(t, []string{a1.ID, a2.ID, a3.ID}, byScope["m1"])
	assert.Equal(t, []string{b1.ID}, byScope["m2"])
}

func TestDispatch_PartialBatchFailure(t *testing.T) {
	q, _, teardown := setupTestDB(t)
	defer teardown()
	remote := syncqueue.NewMockRemote()
	d := syncqueue.NewDispatcher(q, remote, metrics.NewMock(), testOptions())

	ok := enqueue(t, q, "m1", 1)
	bad := enqueue(t, q, "m1", 2)
	missing := enqueue(t, q, "m1", 3)

	remote.SubmitFunc = func(ctx context.Context, batch syncqueue.Batch) ([]syncqueue.Outcome, error) {
		return []syncqueue.Outcome{
			{ItemID: ok.ID, Synced: true},
			{ItemID: bad.ID, Synced: false, Message: "hole out of range"},
		}, nil
	}
	report, err := d.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced)
	assert.Equal(t, 2, report.Failed)

	_, err = q.Get(ok.ID)
	assert.ErrorIs(t, err, syncqueue.ErrItemNotFound)

	got, err := q.Get(bad.ID)
	require.NoError(t, err)
	assert.Equal(t, "hole out of range", got.LastError)
	assert.Equal(t, syncqueue.StatusFailed, got.Status)

	got, err = q.Get(missing.ID)
	require.NoError(t, err)
	assert.Equal(t, syncqueue.StatusFailed, got.Status)
}

func TestDispatch_SurfacesAfterMaxAttempts(t *testing.T) {
	q, _, teardown := setupTestDB(t)
	defer teardown()
	remote := syncqueue.NewMockRemote()
	remote.SubmitFunc = func(ctx context.Context, batch syncqueue.Batch) ([]syncqueue.Outcome, error) {
		return nil, &resilience.NetworkError{Err: errors.New("connection refused")}
	}
	opts := testOptions()
	opts.Breaker.Threshold = 100
	d := syncqueue.NewDispatcher(q, remote, metrics.NewMock(), opts)

	item := enqueue(t, q, "m1", 1)
	for i := 0; i < syncqueue.DefaultMaxAutoAttempts; i++ {
		_, err := d.Dispatch(context.Background())
		require.NoError(t, err)
	}

	got, err := q.Get(item.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.RetryCount)
	assert.True(t, got.NeedsAttention)

	report, err := d.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Claimed, "surfaced items are not retried automatically")
	assert.Len(t, remote.Calls(), 3)
}

func TestDispatch_ClientErrorSurfacesImmediately(t *testing.T) {
	q, _, teardown := setupTestDB(t)
	defer teardown()
	remote := syncqueue.NewMockRemote()
	remote.SubmitFunc = func(ctx context.Context, batch syncqueue.Batch) ([]syncqueue.Outcome, error) {
		return nil, &resilience.ClientError{StatusCode: 403, Body: "not authorized for trip"}
	}
	d := syncqueue.NewDispatcher(q, remote, metrics.NewMock(), testOptions())

	item := enqueue(t, q, "m1", 1)
	_, err := d.Dispatch(context.Background())
	require.NoError(t, err)

	got, err := q.Get(item.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RetryCount)
	assert.True(t, got.NeedsAttention)
	assert.False(t, d.Circuit().IsOpen)
}

func TestDispatch_OpenCircuitDefersItems(t *testing.T) {
	q, _, teardown := setupTestDB(t)
	defer teardown()
	remote := syncqueue.NewMockRemote()
	remote.SubmitFunc = func(ctx context.Context, batch syncqueue.Batch) ([]syncqueue.Outcome, error) {
		return nil, &resilience.ServerError{StatusCode: 503}
	}
	m := metrics.NewMock()
	opts := testOptions()
	opts.Breaker.Threshold = 1
	opts.MaxAutoAttempts = 10
	d := syncqueue.NewDispatcher(q, remote, m, opts)

	first := enqueue(t, q, "m1", 1)
	_, err := d.Dispatch(context.Background())
	require.NoError(t, err)
	require.True(t, d.Circuit().IsOpen)

	second := enqueue(t, q, "m1", 2)
	report, err := d.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Deferred)
	assert.Len(t, remote.Calls(), 1, "no network attempt while open")
	assert.Equal(t, 1, m.CircuitRejections())

	for _, id := range []string{first.ID, second.ID} {
		got, err := q.Get(id)
		require.NoError(t, err)
		assert.Equal(t, syncqueue.StatusPending, got.Status)
	}
	got, err := q.Get(first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RetryCount, "a rejection does not count as an attempt")
}

func TestDispatch_CancelledSubmissionIsNotCompleted(t *testing.T) {
	q, _, teardown := setupTestDB(t)
	defer teardown()
	remote := syncqueue.NewMockRemote()
	ctx, cancel := context.WithCancel(context.Background())
	remote.SubmitFunc = func(ctx context.Context, batch syncqueue.Batch) ([]syncqueue.Outcome, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	d := syncqueue.NewDispatcher(q, remote, metrics.NewMock(), testOptions())

	item := enqueue(t, q, "m1", 1)
	report, err := d.Dispatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deferred)

	got, err := q.Get(item.ID)
	require.NoError(t, err)
	assert.Equal(t, syncqueue.StatusPending, got.Status)
	assert.Equal(t, 0, got.RetryCount)
}

func TestDispatch_TimeoutCountsAsFailure(t *testing.T) {
	q, _, teardown := setupTestDB(t)
	defer teardown()
	remote := syncqueue.NewMockRemote()
	remote.SubmitFunc = func(ctx context.Context, batch syncqueue.Batch) ([]syncqueue.Outcome, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	opts := testOptions()
	opts.Policy.Timeout = 20 * time.Millisecond
	d := syncqueue.NewDispatcher(q, remote, metrics.NewMock(), opts)

	item := enqueue(t, q, "m1", 1)
	_, err := d.Dispatch(context.Background())
	require.NoError(t, err)

	got, err := q.Get(item.ID)
	require.NoError(t, err)
	assert.Equal(t, syncqueue.StatusFailed, got.Status)
	assert.Contains(t, got.LastError, "timed out")
	assert.False(t, got.NeedsAttention)
}

func TestDispatch_SingleCycleInFlight(t *testing.T) {
	q, _, teardown := setupTestDB(t)
	defer teardown()
	remote := syncqueue.NewMockRemote()
	entered := make(chan struct{})
	release := make(chan struct{})
	var submits atomic.Int32
	remote.SubmitFunc = func(ctx context.Context, batch syncqueue.Batch) ([]syncqueue.Outcome, error) {
		if submits.Add(1) == 1 {
			close(entered)
		}
		<-release
		out := make([]syncqueue.Outcome, len(batch.Items))
		for i, item := range batch.Items {
			out[i] = syncqueue.Outcome{ItemID: item.ID, Synced: true}
		}
		return out, nil
	}
	d := syncqueue.NewDispatcher(q, remote, metrics.NewMock(), testOptions())
	enqueue(t, q, "m1", 1)

	var (
		wg      sync.WaitGroup
		reports [2]syncqueue.Report
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		reports[0], _ = d.Dispatch(context.Background())
	}()
	<-entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		reports[1], _ = d.Dispatch(context.Background())
	}()
	// Give the second caller time to join the running cycle.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), submits.Load())
	assert.Equal(t, reports[0], reports[1])
	assert.Equal(t, 1, reports[0].Synced)
}

func TestRun_DrainsOnTriggerAndStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	q, _, teardown := setupTestDB(t)
	defer teardown()
	remote := syncqueue.NewMockRemote()
	d := syncqueue.NewDispatcher(q, remote, metrics.NewMock(), testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx, time.Hour)
	}()

	enqueue(t, q, "m1", 1)
	d.Trigger()
	d.Trigger()

	require.Eventually(t, func() bool {
		stats, err := q.Stats()
		return err == nil && stats.Total == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestDispatchers_OwnIndependentBreakers(t *testing.T) {
	q, _, teardown := setupTestDB(t)
	defer teardown()
	failing := syncqueue.NewMockRemote()
	failing.SubmitFunc = func(ctx context.Context, batch syncqueue.Batch) ([]syncqueue.Outcome, error) {
		return nil, &resilience.ServerError{StatusCode: 500}
	}
	opts := testOptions()
	opts.Breaker.Threshold = 1

	one := syncqueue.NewDispatcher(q, failing, metrics.NewMock(), opts)
	two := syncqueue.NewDispatcher(q, syncqueue.NewMockRemote(), metrics.NewMock(), opts)

	enqueue(t, q, "m1", 1)
	_, err := one.Dispatch(context.Background())
	require.NoError(t, err)

	assert.True(t, one.Circuit().IsOpen)
	assert.False(t, two.Circuit().IsOpen)
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestDispatch_FailingRemoteSurfacesWithRetriesEnabled(t *testing.T) {
	q, _, teardown := setupTestDB(t)
	defer teardown()
	remote := syncqueue.NewMockRemote()
	remote.SubmitFunc = func(ctx context.Context, batch syncqueue.Batch) ([]syncqueue.Outcome, error) {
		return nil, &resilience.ServerError{StatusCode: 503, Body: "unavailable"}
	}
	clock := &stepClock{now: time.Date(2025, 9, 26, 8, 0, 0, 0, time.UTC)}
	opts := syncqueue.Options{
		Breaker: resilience.BreakerOptions{Now: clock.Now},
		Policy:  resilience.Policy{Timeout: time.Second, Retries: 3, BaseDelay: time.Millisecond},
	}
	d := syncqueue.NewDispatcher(q, remote, metrics.NewMock(), opts)
	item := enqueue(t, q, "m1", 1)

	// The circuit opens during the second cycle, and the failed trial after each
	// cooldown reopens it. Neither may turn a real failure into a deferral.
	for cycle := 1; cycle <= 10; cycle++ {
		_, err := d.Dispatch(context.Background())
		require.NoError(t, err)
		clock.Advance(resilience.DefaultResetTime + time.Second)
	}

	got, err := q.Get(item.ID)
	require.NoError(t, err)
	assert.Equal(t, syncqueue.StatusFailed, got.Status)
	assert.True(t, got.NeedsAttention)
	assert.Equal(t, syncqueue.DefaultMaxAutoAttempts, got.RetryCount)
	assert.Len(t, remote.Calls(), 6, "four attempts, then one before the circuit opens, then one trial")
}
