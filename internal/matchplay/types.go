package matchplay

import "time"

// HolesPerMatch is the length of a regulation match.
const HolesPerMatch = 18

// Winner is the outcome of a single hole, or of a whole match.
type Winner string

const (
	WinnerTeamA  Winner = "teamA"
	WinnerTeamB  Winner = "teamB"
	WinnerHalved Winner = "halved"
	WinnerNone   Winner = "none"
)

// Valid reports whether w is one of the known winners.
func (w Winner) Valid() bool {
	switch w {
	case WinnerTeamA, WinnerTeamB, WinnerHalved, WinnerNone:
		return true
	}
	return false
}

// TeamSide is the stable designation of a team within a trip. Display names are
// cosmetic and never used to tell the teams apart.
type TeamSide string

const (
	SideA TeamSide = "A"
	SideB TeamSide = "B"
)

// Winner maps a side to the winner value for that side.
func (s TeamSide) Winner() Winner {
	switch s {
	case SideA:
		return WinnerTeamA
	case SideB:
		return WinnerTeamB
	}
	return WinnerNone
}

// EventKind distinguishes original hole results from the events that amend them.
type EventKind string

const (
	KindResult     EventKind = "result"
	KindCorrection EventKind = "correction"
	KindUndo       EventKind = "undo"
)

// HoleResult is an immutable hole-outcome event. Corrections and undos are new
// events that reference the event they supersede.
type HoleResult struct {
	ID         string    `json:"id" msgpack:"id"`
	MatchID    string    `json:"match_id" msgpack:"match_id"`
	HoleNumber int       `json:"hole_number" msgpack:"hole_number"`
	Winner     Winner    `json:"winner" msgpack:"winner"`
	Kind       EventKind `json:"kind" msgpack:"kind"`
	Supersedes string    `json:"supersedes,omitempty" msgpack:"supersedes,omitempty"`
	Timestamp  time.Time `json:"timestamp" msgpack:"timestamp"`
}

// MatchState is the derived match-play status of a match. It is never stored.
type MatchState struct {
	// CurrentScore is positive while team A leads and negative while team B leads.
	CurrentScore   int  `json:"current_score"`
	HolesPlayed    int  `json:"holes_played"`
	HolesRemaining int  `json:"holes_remaining"`
	IsDormie       bool `json:"is_dormie"`
	IsClosedOut    bool `json:"is_closed_out"`
	IsComplete     bool `json:"is_complete"`
	// Leader is the side currently ahead, or WinnerNone when all square.
	Leader      Winner `json:"leader"`
	WinningTeam Winner `json:"winning_team"`
	Margin      int    `json:"margin"`
	// HolesRemainingAtClinch is only meaningful when IsClosedOut is set.
	HolesRemainingAtClinch int    `json:"holes_remaining_at_clinch"`
	DisplayScore           string `json:"display_score"`
}

// MatchResults pairs a match with its hole events, corrections included.
type MatchResults struct {
	MatchID string
	Results []HoleResult
}

// TeamStanding is a team's running tally across a trip.
type TeamStanding struct {
	TeamID            string   `json:"team_id"`
	Side              TeamSide `json:"side"`
	Points            float64  `json:"points"`
	MatchesWon        int      `json:"matches_won"`
	MatchesLost       int      `json:"matches_lost"`
	MatchesHalved     int      `json:"matches_halved"`
	MatchesInProgress int      `json:"matches_in_progress"`
}

// Standings holds both sides' standings.
type Standings struct {
	TeamA TeamStanding `json:"team_a"`
	TeamB TeamStanding `json:"team_b"`
}

// MagicNumber is the number of additional points the leading team needs to clinch.
type MagicNumber struct {
	Team        Winner  `json:"team"`
	Points      int     `json:"points"`
	PointsToWin float64 `json:"points_to_win"`
	Clinched    bool    `json:"clinched"`
}
