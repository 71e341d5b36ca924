package syncqueue

import (
	"context"
	"database/sql"
)

// Queue is the durable store of pending mutations.
type Queue interface {
	Enqueue(item Item) (Item, error)
	// EnqueueTx adds the item inside the caller's transaction so that it commits
	// together with the local write it mirrors.
	EnqueueTx(tx *sql.Tx, item Item) (Item, error)
	Claim(limit int) ([]Item, error)
	Complete(ids ...string) error
	MarkFailed(id, lastError string, surface bool) error
	Release(ids ...string) error
	RetryAllFailed() (int, error)
	Retry(id string) error
	Discard(id string) error
	DiscardAll() (int, error)
	Get(id string) (*Item, error)
	List(status Status) ([]Item, error)
	Stats() (Stats, error)
	RecoverInFlight() (int, error)
}

// Remote delivers a batch to the reconciliation service and reports per-item outcomes.
type Remote interface {
	Submit(ctx context.Context, batch Batch) ([]Outcome, error)
}
