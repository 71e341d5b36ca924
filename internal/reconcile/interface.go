package reconcile

import "github.com/mauv0809/matchplay-trip/internal/matchplay"

// EventStore keeps every event the reconciler accepted, once per id.
type EventStore interface {
	// Insert stores the event unless its id is already known and reports whether
	// it was new.
	Insert(event StoredEvent) (bool, error)
	ListHoleResults(matchID string) ([]matchplay.HoleResult, error)
	ListHoleResultsByMatches(matchIDs []string) (map[string][]matchplay.HoleResult, error)
	Count(tripID string) (int, error)
}

// Authorizer decides whether a bearer token may write to a trip.
type Authorizer interface {
	Authorize(token, tripID string) error
}
