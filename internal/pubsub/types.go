package pubsub

import (
	"time"

	"cloud.google.com/go/pubsub"
)

type client struct {
	client   *pubsub.Client
	teardown func()
}

// EventType represents the type of event/message sent via pubsub. It doubles as the topic name.
type EventType string

const (
	EventHoleResultSynced EventType = "hole-result-synced"
	EventMatchClosedOut   EventType = "match-closed-out"
	EventTripClinched     EventType = "trip-clinched"
)

// HoleResultSynced is published for every event the reconciler accepts for the first time.
type HoleResultSynced struct {
	TripID     string    `msgpack:"trip_id"`
	MatchID    string    `msgpack:"match_id"`
	EventID    string    `msgpack:"event_id"`
	HoleNumber int       `msgpack:"hole_number"`
	Winner     string    `msgpack:"winner"`
	Kind       string    `msgpack:"kind"`
	Timestamp  time.Time `msgpack:"timestamp"`
}

// MatchClosedOut is published once when a match's result becomes final.
type MatchClosedOut struct {
	TripID       string `msgpack:"trip_id"`
	MatchID      string `msgpack:"match_id"`
	WinningTeam  string `msgpack:"winning_team"`
	DisplayScore string `msgpack:"display_score"`
	HolesPlayed  int    `msgpack:"holes_played"`
}

// TripClinched is published once when a team can no longer be caught.
type TripClinched struct {
	TripID      string  `msgpack:"trip_id"`
	Team        string  `msgpack:"team"`
	Points      float64 `msgpack:"points"`
	PointsToWin float64 `msgpack:"points_to_win"`
}
