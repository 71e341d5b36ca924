package syncqueue

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrItemNotFound = errors.New("sync item not found")
	ErrItemInFlight = errors.New("sync item is being submitted")
)

// store is the SQLite-backed queue.
type store struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// ItemType is the kind of mutation an item carries.
type ItemType string

const (
	TypeScore  ItemType = "score"
	TypeMatch  ItemType = "match"
	TypePlayer ItemType = "player"
	TypeCourse ItemType = "course"
	TypeOther  ItemType = "other"
)

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool {
	switch t {
	case TypeScore, TypeMatch, TypePlayer, TypeCourse, TypeOther:
		return true
	}
	return false
}

// Status is the delivery state of an item. Completed items are deleted, so the
// completed status is only ever seen in reports.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSyncing   Status = "syncing"
	StatusFailed    Status = "failed"
	StatusCompleted Status = "completed"
)

// Item is one locally committed mutation waiting for the remote to confirm it.
type Item struct {
	ID   string   `json:"id"`
	Type ItemType `json:"type"`
	// Scope groups items that must reach the remote in creation order, usually a match id.
	Scope   string `json:"scope"`
	TripID  string `json:"trip_id"`
	Payload []byte `json:"-"`
	Status  Status `json:"status"`
	// RetryCount is the number of failed submissions so far.
	RetryCount int `json:"retry_count"`
	// NeedsAttention marks a failed item that is no longer retried automatically.
	NeedsAttention bool      `json:"needs_attention"`
	LastError      string    `json:"last_error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewItem builds a pending item whose payload is the msgpack encoding of v.
func NewItem(itemType ItemType, scope, tripID string, v any) (Item, error) {
	if !itemType.Valid() {
		return Item{}, fmt.Errorf("unknown sync item type %q", itemType)
	}
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return Item{}, fmt.Errorf("failed to encode sync payload: %w", err)
	}
	return Item{
		ID:      uuid.NewString(),
		Type:    itemType,
		Scope:   scope,
		TripID:  tripID,
		Payload: payload,
		Status:  StatusPending,
	}, nil
}

// Decode unpacks the item payload into v.
func (i Item) Decode(v any) error {
	return msgpack.Unmarshal(i.Payload, v)
}

// Stats summarises the queue for the read surface.
type Stats struct {
	Pending        int        `json:"pending"`
	Syncing        int        `json:"syncing"`
	Failed         int        `json:"failed"`
	NeedsAttention int        `json:"needs_attention"`
	Total          int        `json:"total"`
	OldestPending  *time.Time `json:"oldest_pending,omitempty"`
}

// Batch is the unit handed to the remote: items of one scope in creation order.
type Batch struct {
	Scope  string
	TripID string
	Items  []Item
}

// Outcome is the remote's verdict for one item.
type Outcome struct {
	ItemID  string
	Synced  bool
	Message string
}

// Report describes one dispatch cycle.
type Report struct {
	Claimed  int `json:"claimed"`
	Synced   int `json:"synced"`
	Failed   int `json:"failed"`
	Deferred int `json:"deferred"`
}
