package trip

import "github.com/mauv0809/matchplay-trip/internal/matchplay"

// TripStore defines the interface for reading and writing trip structure: trips,
// teams, players, sessions and matches.
type TripStore interface {
	UpsertTrip(trip Trip) error
	GetTrip(tripID string) (*Trip, error)
	GetAllTrips() ([]Trip, error)
	UpsertTeam(team Team) error
	GetTeams(tripID string) ([]Team, error)
	GetTeamBySide(tripID string, side matchplay.TeamSide) (*Team, error)
	UpsertPlayers(players []Player) error
	GetPlayers(tripID string) ([]Player, error)
	UpsertSession(session Session) error
	GetSessions(tripID string) ([]Session, error)
	UpsertMatch(match Match) error
	GetMatch(matchID string) (*Match, error)
	GetMatchesByTrip(tripID string) ([]Match, error)
	UpdateMatchProgress(matchID string, status MatchStatus, currentHole int) error
	Import(def *Definition) error
	Clear()
}
