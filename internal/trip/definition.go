package trip

import (
	"fmt"
	"io"
	"os"

	"github.com/mauv0809/matchplay-trip/internal/matchplay"
	"gopkg.in/yaml.v3"
)

// Definition is a trip as written in a YAML file:
//
//	id: ryder-2025
//	name: Ryder Trip 2025
//	points_to_win: 14.5
//	teams:
//	  - id: usa
//	    side: A
//	    name: USA
//	    players:
//	      - {id: p1, name: Alice, handicap: 8.2}
//	sessions:
//	  - id: fri-am
//	    name: Friday Foursomes
//	    format: foursomes
//	    matches:
//	      - {id: m1, team_a: [p1, p2], team_b: [p5, p6]}
type Definition struct {
	ID          string              `yaml:"id"`
	Name        string              `yaml:"name"`
	PointsToWin *float64            `yaml:"points_to_win,omitempty"`
	Teams       []TeamDefinition    `yaml:"teams"`
	Sessions    []SessionDefinition `yaml:"sessions"`
}

type TeamDefinition struct {
	ID      string             `yaml:"id"`
	Side    matchplay.TeamSide `yaml:"side"`
	Name    string             `yaml:"name"`
	Players []PlayerDefinition `yaml:"players"`
}

type PlayerDefinition struct {
	ID       string  `yaml:"id"`
	Name     string  `yaml:"name"`
	Handicap float64 `yaml:"handicap"`
}

type SessionDefinition struct {
	ID      string            `yaml:"id"`
	Name    string            `yaml:"name"`
	Format  string            `yaml:"format"`
	Matches []MatchDefinition `yaml:"matches"`
}

type MatchDefinition struct {
	ID    string   `yaml:"id"`
	TeamA []string `yaml:"team_a"`
	TeamB []string `yaml:"team_b"`
}

// LoadDefinition decodes and validates a trip definition.
func LoadDefinition(r io.Reader) (*Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("failed to decode trip definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadDefinitionFile reads a trip definition from path.
func LoadDefinitionFile(path string) (*Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trip definition: %w", err)
	}
	defer f.Close()
	return LoadDefinition(f)
}

// Validate checks that the definition has exactly one team per side, unique ids
// and matches that only reference players of the right team.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("trip definition: missing id")
	}
	if d.PointsToWin != nil && *d.PointsToWin <= 0 {
		return fmt.Errorf("trip definition: points_to_win must be positive")
	}
	if len(d.Teams) != 2 {
		return fmt.Errorf("trip definition: expected 2 teams, got %d", len(d.Teams))
	}

	sides := make(map[matchplay.TeamSide]bool)
	playerSide := make(map[string]matchplay.TeamSide)
	for _, team := range d.Teams {
		if team.ID == "" {
			return fmt.Errorf("trip definition: team without id")
		}
		if team.Side != matchplay.SideA && team.Side != matchplay.SideB {
			return fmt.Errorf("trip definition: team %s has invalid side %q", team.ID, team.Side)
		}
		if sides[team.Side] {
			return fmt.Errorf("trip definition: side %s assigned twice", team.Side)
		}
		sides[team.Side] = true
		for _, p := range team.Players {
			if _, dup := playerSide[p.ID]; dup || p.ID == "" {
				return fmt.Errorf("trip definition: duplicate or empty player id %q", p.ID)
			}
			playerSide[p.ID] = team.Side
		}
	}

	matchIDs := make(map[string]bool)
	for _, session := range d.Sessions {
		if session.ID == "" {
			return fmt.Errorf("trip definition: session without id")
		}
		for _, m := range session.Matches {
			if m.ID == "" || matchIDs[m.ID] {
				return fmt.Errorf("trip definition: duplicate or empty match id %q", m.ID)
			}
			matchIDs[m.ID] = true
			if err := checkLineup(m.ID, m.TeamA, matchplay.SideA, playerSide); err != nil {
				return err
			}
			if err := checkLineup(m.ID, m.TeamB, matchplay.SideB, playerSide); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkLineup(matchID string, ids []string, side matchplay.TeamSide, playerSide map[string]matchplay.TeamSide) error {
	for _, id := range ids {
		got, ok := playerSide[id]
		if !ok {
			return fmt.Errorf("trip definition: match %s references unknown player %s", matchID, id)
		}
		if got != side {
			return fmt.Errorf("trip definition: match %s lists player %s on side %s but they play for %s", matchID, id, side, got)
		}
	}
	return nil
}

// Records flattens the definition into store records.
func (d *Definition) Records() (Trip, []Team, []Player, []Session, []Match) {
	trip := Trip{ID: d.ID, Name: d.Name, PointsToWin: d.PointsToWin}

	var (
		teams    []Team
		players  []Player
		sessions []Session
		matches  []Match
	)
	for _, t := range d.Teams {
		teams = append(teams, Team{ID: t.ID, TripID: d.ID, Side: t.Side, Name: t.Name})
		for _, p := range t.Players {
			players = append(players, Player{ID: p.ID, TeamID: t.ID, Name: p.Name, Handicap: p.Handicap})
		}
	}
	for i, s := range d.Sessions {
		sessions = append(sessions, Session{ID: s.ID, TripID: d.ID, Name: s.Name, Format: s.Format, Position: i})
		for _, m := range s.Matches {
			matches = append(matches, Match{
				ID:             m.ID,
				TripID:         d.ID,
				SessionID:      s.ID,
				TeamAPlayerIDs: m.TeamA,
				TeamBPlayerIDs: m.TeamB,
				Status:         MatchScheduled,
			})
		}
	}
	return trip, teams, players, sessions, matches
}
