package trip

import (
	"database/sql"
	"errors"
	"sync"

	"github.com/mauv0809/matchplay-trip/internal/matchplay"
)

var (
	ErrTripNotFound  = errors.New("trip not found")
	ErrMatchNotFound = errors.New("match not found")
	ErrTeamNotFound  = errors.New("team not found")
)

// store handles all database operations for trips.
type store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Trip is one competition between two teams.
type Trip struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// PointsToWin overrides the default majority when set.
	PointsToWin *float64 `json:"points_to_win,omitempty"`
	CreatedAt   int64    `json:"created_at"`
}

// Team carries its side explicitly. Name is display only.
type Team struct {
	ID     string             `json:"id"`
	TripID string             `json:"trip_id"`
	Side   matchplay.TeamSide `json:"side"`
	Name   string             `json:"name"`
}

type Player struct {
	ID       string  `json:"id"`
	TeamID   string  `json:"team_id"`
	Name     string  `json:"name"`
	Handicap float64 `json:"handicap"`
}

// Session is a round of matches played in one format, e.g. Friday fourballs.
type Session struct {
	ID       string `json:"id"`
	TripID   string `json:"trip_id"`
	Name     string `json:"name"`
	Format   string `json:"format"`
	Position int    `json:"position"`
}

type MatchStatus string

const (
	MatchScheduled  MatchStatus = "scheduled"
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
)

type Match struct {
	ID             string      `json:"id"`
	TripID         string      `json:"trip_id"`
	SessionID      string      `json:"session_id"`
	TeamAPlayerIDs []string    `json:"team_a_player_ids"`
	TeamBPlayerIDs []string    `json:"team_b_player_ids"`
	Status         MatchStatus `json:"status"`
	CurrentHole    int         `json:"current_hole"`
}
