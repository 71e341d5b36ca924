package reconcile

import (
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

var (
	ErrUnauthorized = errors.New("missing or unknown sync token")
	ErrForbidden    = errors.New("sync token is not allowed for this trip")
)

// Scope identifies what a batch is about. MatchID carries the queue scope key,
// which is a match id for score and match items.
type Scope struct {
	TripID  string `json:"trip_id"`
	MatchID string `json:"match_id,omitempty"`
}

// Event is one queued item on the wire. ID is the idempotency key.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	HoleNumber *int            `json:"hole_number,omitempty"`
	Data       json.RawMessage `json:"data"`
	Timestamp  time.Time       `json:"timestamp"`
}

// BatchRequest is the body of POST /v1/sync.
type BatchRequest struct {
	Scope   Scope   `json:"scope"`
	BatchID string  `json:"batch_id"`
	Events  []Event `json:"events"`
}

type EventStatus string

const (
	StatusSynced EventStatus = "synced"
	// StatusDuplicate means the id was applied before. It counts as synced.
	StatusDuplicate EventStatus = "duplicate"
	StatusRejected  EventStatus = "rejected"
)

type EventResult struct {
	ID      string      `json:"id"`
	Status  EventStatus `json:"status"`
	Message string      `json:"message,omitempty"`
}

// BatchResponse reports every event of a batch separately.
type BatchResponse struct {
	Synced  int           `json:"synced"`
	Failed  int           `json:"failed"`
	Errors  []string      `json:"errors"`
	Results []EventResult `json:"results"`
}

// StoredEvent is an accepted event as the reconciler keeps it.
type StoredEvent struct {
	ID         string
	TripID     string
	MatchID    string
	Type       string
	HoleNumber *int
	Data       []byte
	EventTime  time.Time
	ReceivedAt time.Time
	BatchID    string
}

type store struct {
	db *sql.DB
	mu sync.RWMutex
}
