package trip

import (
	"sync"

	"github.com/mauv0809/matchplay-trip/internal/matchplay"
)

// MockStore is a mock implementation of the TripStore interface for testing.
// It is safe for concurrent use.
type MockStore struct {
	mu sync.Mutex

	UpsertTripFunc          func(trip Trip) error
	GetTripFunc             func(tripID string) (*Trip, error)
	GetAllTripsFunc         func() ([]Trip, error)
	UpsertTeamFunc          func(team Team) error
	GetTeamsFunc            func(tripID string) ([]Team, error)
	GetTeamBySideFunc       func(tripID string, side matchplay.TeamSide) (*Team, error)
	UpsertPlayersFunc       func(players []Player) error
	GetPlayersFunc          func(tripID string) ([]Player, error)
	UpsertSessionFunc       func(session Session) error
	GetSessionsFunc         func(tripID string) ([]Session, error)
	UpsertMatchFunc         func(match Match) error
	GetMatchFunc            func(matchID string) (*Match, error)
	GetMatchesByTripFunc    func(tripID string) ([]Match, error)
	UpdateMatchProgressFunc func(matchID string, status MatchStatus, currentHole int) error
	ImportFunc              func(def *Definition) error

	GetMatchCalls            []string
	UpdateMatchProgressCalls []struct {
		MatchID     string
		Status      MatchStatus
		CurrentHole int
	}
	ImportCalls []*Definition
}

// NewMock creates a new mock instance.
func NewMock() *MockStore {
	return &MockStore{}
}

func (m *MockStore) UpsertTrip(trip Trip) error {
	if m.UpsertTripFunc != nil {
		return m.UpsertTripFunc(trip)
	}
	return nil
}

func (m *MockStore) GetTrip(tripID string) (*Trip, error) {
	if m.GetTripFunc != nil {
		return m.GetTripFunc(tripID)
	}
	return &Trip{ID: tripID}, nil
}

func (m *MockStore) GetAllTrips() ([]Trip, error) {
	if m.GetAllTripsFunc != nil {
		return m.GetAllTripsFunc()
	}
	return nil, nil
}

func (m *MockStore) UpsertTeam(team Team) error {
	if m.UpsertTeamFunc != nil {
		return m.UpsertTeamFunc(team)
	}
	return nil
}

func (m *MockStore) GetTeams(tripID string) ([]Team, error) {
	if m.GetTeamsFunc != nil {
		return m.GetTeamsFunc(tripID)
	}
	return nil, nil
}

func (m *MockStore) GetTeamBySide(tripID string, side matchplay.TeamSide) (*Team, error) {
	if m.GetTeamBySideFunc != nil {
		return m.GetTeamBySideFunc(tripID, side)
	}
	return nil, ErrTeamNotFound
}

func (m *MockStore) UpsertPlayers(players []Player) error {
	if m.UpsertPlayersFunc != nil {
		return m.UpsertPlayersFunc(players)
	}
	return nil
}

func (m *MockStore) GetPlayers(tripID string) ([]Player, error) {
	if m.GetPlayersFunc != nil {
		return m.GetPlayersFunc(tripID)
	}
	return nil, nil
}

func (m *MockStore) UpsertSession(session Session) error {
	if m.UpsertSessionFunc != nil {
		return m.UpsertSessionFunc(session)
	}
	return nil
}

func (m *MockStore) GetSessions(tripID string) ([]Session, error) {
	if m.GetSessionsFunc != nil {
		return m.GetSessionsFunc(tripID)
	}
	return nil, nil
}

func (m *MockStore) UpsertMatch(match Match) error {
	if m.UpsertMatchFunc != nil {
		return m.UpsertMatchFunc(match)
	}
	return nil
}

func (m *MockStore) GetMatch(matchID string) (*Match, error) {
	m.mu.Lock()
	m.GetMatchCalls = append(m.GetMatchCalls, matchID)
	m.mu.Unlock()
	if m.GetMatchFunc != nil {
		return m.GetMatchFunc(matchID)
	}
	return nil, ErrMatchNotFound
}

func (m *MockStore) GetMatchesByTrip(tripID string) ([]Match, error) {
	if m.GetMatchesByTripFunc != nil {
		return m.GetMatchesByTripFunc(tripID)
	}
	return nil, nil
}

func (m *MockStore) UpdateMatchProgress(matchID string, status MatchStatus, currentHole int) error {
	m.mu.Lock()
	m.UpdateMatchProgressCalls = append(m.UpdateMatchProgressCalls, struct {
		MatchID     string
		Status      MatchStatus
		CurrentHole int
	}{matchID, status, currentHole})
	m.mu.Unlock()
	if m.UpdateMatchProgressFunc != nil {
		return m.UpdateMatchProgressFunc(matchID, status, currentHole)
	}
	return nil
}

func (m *MockStore) Import(def *Definition) error {
	m.mu.Lock()
	m.ImportCalls = append(m.ImportCalls, def)
	m.mu.Unlock()
	if m.ImportFunc != nil {
		return m.ImportFunc(def)
	}
	return nil
}

func (m *MockStore) Clear() {}
