package syncqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/matchplay-trip/internal/metrics"
	"github.com/mauv0809/matchplay-trip/internal/resilience"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultBatchSize       = 50
	DefaultMaxAutoAttempts = 3
	DefaultConcurrency     = 4
	DefaultCircuitKey      = "reconcile"
)

// Options configures a Dispatcher.
type Options struct {
	BatchSize int
	// MaxAutoAttempts is the number of failed submissions after which an item is
	// surfaced for a manual retry or discard.
	MaxAutoAttempts int
	// Concurrency bounds how many scopes are submitted at once.
	Concurrency int
	CircuitKey  string
	Breaker     resilience.BreakerOptions
	Policy      resilience.Policy
}

// Dispatcher drains the queue into a Remote. It owns its circuit breaker, and only
// one dispatch cycle runs at a time.
type Dispatcher struct {
	queue   Queue
	remote  Remote
	exec    *resilience.Executor
	metrics metrics.Metrics
	opts    Options
	flight  singleflight.Group
	trigger chan struct{}
}

// NewDispatcher creates a dispatcher with its own breaker.
func NewDispatcher(queue Queue, remote Remote, m metrics.Metrics, opts Options) *Dispatcher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxAutoAttempts <= 0 {
		opts.MaxAutoAttempts = DefaultMaxAutoAttempts
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.CircuitKey == "" {
		opts.CircuitKey = DefaultCircuitKey
	}
	return &Dispatcher{
		queue:   queue,
		remote:  remote,
		exec:    resilience.NewExecutor(resilience.NewBreaker(opts.Breaker), opts.Policy),
		metrics: m,
		opts:    opts,
		trigger: make(chan struct{}, 1),
	}
}

// Circuit returns the state of the dispatcher's circuit.
func (d *Dispatcher) Circuit() resilience.CircuitState {
	return d.exec.Breaker().State(d.opts.CircuitKey)
}

// Breaker exposes the breaker owned by this dispatcher.
func (d *Dispatcher) Breaker() *resilience.Breaker {
	return d.exec.Breaker()
}

// Trigger asks the run loop for a dispatch cycle without waiting for it.
func (d *Dispatcher) Trigger() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

// Run dispatches on every tick and on every Trigger until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("Sync dispatcher started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			log.Info("Sync dispatcher stopped")
			return
		case <-ticker.C:
		case <-d.trigger:
		}
		if _, err := d.Dispatch(ctx); err != nil && ctx.Err() == nil {
			log.Error("Dispatch cycle failed", "error", err)
		}
	}
}

// Dispatch runs one cycle. A call made while a cycle is in flight waits for that
// cycle and shares its report.
func (d *Dispatcher) Dispatch(ctx context.Context) (Report, error) {
	v, err, shared := d.flight.Do("dispatch", func() (any, error) {
		return d.dispatch(ctx)
	})
	if shared {
		log.Debug("Joined in-flight dispatch cycle")
	}
	report, _ := v.(Report)
	return report, err
}

func (d *Dispatcher) dispatch(ctx context.Context) (Report, error) {
	start := time.Now()
	defer func() {
		d.metrics.ObserveDispatchDuration(time.Since(start).Seconds())
		d.refreshDepth()
	}()

	items, err := d.queue.Claim(d.opts.BatchSize)
	if err != nil {
		return Report{}, fmt.Errorf("failed to claim sync items: %w", err)
	}
	report := Report{Claimed: len(items)}
	if len(items) == 0 {
		return report, nil
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(d.opts.Concurrency)
	for _, batch := range groupByScope(items) {
		g.Go(func() error {
			r := d.submit(ctx, batch)
			mu.Lock()
			report.Synced += r.Synced
			report.Failed += r.Failed
			report.Deferred += r.Deferred
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	d.metrics.IncItemsSynced(report.Synced)
	d.metrics.IncItemsFailed(report.Failed)
	log.Info("Dispatch cycle finished",
		"claimed", report.Claimed, "synced", report.Synced, "failed", report.Failed,
		"deferred", report.Deferred, "duration", time.Since(start))
	return report, nil
}

// submit sends one scope's batch and settles every item in it.
func (d *Dispatcher) submit(ctx context.Context, batch Batch) Report {
	var report Report
	ids := make([]string, len(batch.Items))
	for i, item := range batch.Items {
		ids[i] = item.ID
	}

	outcomes, err := resilience.Call(ctx, d.exec, d.opts.CircuitKey, func(ctx context.Context) ([]Outcome, error) {
		return d.remote.Submit(ctx, batch)
	})
	if err != nil {
		if resilience.IsCircuitOpen(err) || ctx.Err() != nil {
			if resilience.IsCircuitOpen(err) {
				d.metrics.IncCircuitRejections()
			}
			if relErr := d.queue.Release(ids...); relErr != nil {
				log.Error("Failed to release sync items", "scope", batch.Scope, "error", relErr)
			}
			report.Deferred = len(ids)
			log.Warn("Deferred sync batch", "scope", batch.Scope, "items", len(ids), "reason", err)
			return report
		}

		retryable := resilience.IsRetryable(err)
		for _, item := range batch.Items {
			d.fail(item, err.Error(), !retryable)
		}
		report.Failed = len(batch.Items)
		log.Error("Sync batch failed", "scope", batch.Scope, "items", len(ids), "retryable", retryable, "error", err)
		return report
	}

	byID := make(map[string]Outcome, len(outcomes))
	for _, o := range outcomes {
		byID[o.ItemID] = o
	}
	var synced []string
	for _, item := range batch.Items {
		o, ok := byID[item.ID]
		switch {
		case !ok:
			d.fail(item, "no outcome returned for item", false)
			report.Failed++
		case o.Synced:
			synced = append(synced, item.ID)
		default:
			d.fail(item, o.Message, false)
			report.Failed++
		}
	}
	if err := d.queue.Complete(synced...); err != nil {
		// The items stay in syncing and are resubmitted after recovery; the remote
		// ignores duplicates.
		log.Error("Failed to prune synced items", "scope", batch.Scope, "error", err)
	}
	report.Synced = len(synced)
	return report
}

func (d *Dispatcher) fail(item Item, msg string, surface bool) {
	surface = surface || item.RetryCount+1 >= d.opts.MaxAutoAttempts
	if err := d.queue.MarkFailed(item.ID, msg, surface); err != nil {
		log.Error("Failed to mark sync item failed", "id", item.ID, "error", err)
		return
	}
	if surface {
		log.Warn("Sync item needs attention", "id", item.ID, "type", item.Type, "attempts", item.RetryCount+1, "error", msg)
	}
}

func (d *Dispatcher) refreshDepth() {
	stats, err := d.queue.Stats()
	if err != nil {
		log.Error("Failed to read queue stats", "error", err)
		return
	}
	d.metrics.SetQueueDepth(string(StatusPending), stats.Pending)
	d.metrics.SetQueueDepth(string(StatusSyncing), stats.Syncing)
	d.metrics.SetQueueDepth(string(StatusFailed), stats.Failed)
}

// groupByScope splits claimed items into per-scope batches. Items keep their
// creation order inside a batch, and batches are ordered by their first item.
func groupByScope(items []Item) []Batch {
	var (
		batches []Batch
		index   = make(map[string]int)
	)
	for _, item := range items {
		i, ok := index[item.Scope]
		if !ok {
			i = len(batches)
			index[item.Scope] = i
			batches = append(batches, Batch{Scope: item.Scope, TripID: item.TripID})
		}
		batches[i].Items = append(batches[i].Items, item)
	}
	return batches
}
