package notifier

import "github.com/mauv0809/matchplay-trip/internal/matchplay"

// Notifier defines a high-level interface for announcing trip events.
// This decouples the reconciler from the specific notification provider (e.g., Slack).
type Notifier interface {
	// A match was closed out, won on the last hole or halved.
	SendMatchDecided(match MatchDecided, dryRun bool) (string, error)
	// One team can no longer be caught.
	SendTripClinched(clinch TripClinched, dryRun bool) (string, error)
	// Current standings, e.g. after a session.
	SendStandings(summary StandingsSummary, dryRun bool) (string, error)
}

// MatchDecided describes a match whose result is final.
type MatchDecided struct {
	TripName    string
	SessionName string
	MatchID     string
	TeamAName   string
	TeamBName   string
	PlayersA    []string
	PlayersB    []string
	State       matchplay.MatchState
}

// StandingsSummary is the trip scoreboard with display names resolved.
type StandingsSummary struct {
	TripName    string
	TeamAName   string
	TeamBName   string
	Standings   matchplay.Standings
	MagicNumber matchplay.MagicNumber
}

// TripClinched is sent once when a team reaches the points needed to win.
type TripClinched struct {
	StandingsSummary
	WinnerName string
}
