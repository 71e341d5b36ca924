package trip

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/matchplay-trip/internal/matchplay"
)

// New creates a new TripStore.
func New(db *sql.DB) TripStore {
	return &store{
		db: db,
	}
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (s *store) UpsertTrip(trip Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertTrip(s.db, trip)
}

func upsertTrip(e execer, trip Trip) error {
	if trip.CreatedAt == 0 {
		trip.CreatedAt = time.Now().Unix()
	}
	var pointsToWin sql.NullFloat64
	if trip.PointsToWin != nil {
		pointsToWin = sql.NullFloat64{Float64: *trip.PointsToWin, Valid: true}
	}
	_, err := e.Exec(`
		INSERT INTO trips (id, name, points_to_win, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			points_to_win = excluded.points_to_win
	`, trip.ID, trip.Name, pointsToWin, trip.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert trip %s: %w", trip.ID, err)
	}
	return nil
}

func (s *store) GetTrip(tripID string) (*Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		trip        Trip
		pointsToWin sql.NullFloat64
	)
	err := s.db.QueryRow("SELECT id, name, points_to_win, created_at FROM trips WHERE id = ?", tripID).
		Scan(&trip.ID, &trip.Name, &pointsToWin, &trip.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTripNotFound, tripID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip %s: %w", tripID, err)
	}
	if pointsToWin.Valid {
		trip.PointsToWin = &pointsToWin.Float64
	}
	return &trip, nil
}

func (s *store) GetAllTrips() ([]Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT id, name, points_to_win, created_at FROM trips ORDER BY created_at DESC")
	if err != nil {
		log.Error("Failed to query all trips", "error", err)
		return nil, err
	}
	defer rows.Close()

	var trips []Trip
	for rows.Next() {
		var (
			trip        Trip
			pointsToWin sql.NullFloat64
		)
		if err := rows.Scan(&trip.ID, &trip.Name, &pointsToWin, &trip.CreatedAt); err != nil {
			log.Error("Failed to scan trip row", "error", err)
			continue
		}
		if pointsToWin.Valid {
			v := pointsToWin.Float64
			trip.PointsToWin = &v
		}
		trips = append(trips, trip)
	}
	return trips, rows.Err()
}

func (s *store) UpsertTeam(team Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertTeam(s.db, team)
}

func upsertTeam(e execer, team Team) error {
	if team.Side != matchplay.SideA && team.Side != matchplay.SideB {
		return fmt.Errorf("team %s has invalid side %q", team.ID, team.Side)
	}
	_, err := e.Exec(`
		INSERT INTO teams (id, trip_id, side, name) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, team.ID, team.TripID, team.Side, team.Name)
	if err != nil {
		return fmt.Errorf("failed to upsert team %s: %w", team.ID, err)
	}
	return nil
}

func (s *store) GetTeams(tripID string) ([]Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT id, trip_id, side, name FROM teams WHERE trip_id = ? ORDER BY side", tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams for trip %s: %w", tripID, err)
	}
	defer rows.Close()

	var teams []Team
	for rows.Next() {
		var team Team
		if err := rows.Scan(&team.ID, &team.TripID, &team.Side, &team.Name); err != nil {
			log.Error("Failed to scan team row", "error", err)
			continue
		}
		teams = append(teams, team)
	}
	return teams, rows.Err()
}

func (s *store) GetTeamBySide(tripID string, side matchplay.TeamSide) (*Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var team Team
	err := s.db.QueryRow("SELECT id, trip_id, side, name FROM teams WHERE trip_id = ? AND side = ?", tripID, side).
		Scan(&team.ID, &team.TripID, &team.Side, &team.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: trip %s side %s", ErrTeamNotFound, tripID, side)
	}
	if err != nil {
		return nil, err
	}
	return &team, nil
}

// UpsertPlayers inserts or updates a list of players in a single transaction.
func (s *store) UpsertPlayers(players []Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	for _, p := range players {
		if err := upsertPlayer(tx, p); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func upsertPlayer(e execer, p Player) error {
	_, err := e.Exec(`
		INSERT INTO players (id, team_id, name, handicap) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			team_id = excluded.team_id,
			name = excluded.name,
			handicap = excluded.handicap
	`, p.ID, p.TeamID, p.Name, p.Handicap)
	if err != nil {
		return fmt.Errorf("failed to upsert player %s: %w", p.ID, err)
	}
	return nil
}

func (s *store) GetPlayers(tripID string) ([]Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT p.id, p.team_id, p.name, p.handicap
		FROM players p JOIN teams t ON t.id = p.team_id
		WHERE t.trip_id = ?
		ORDER BY t.side, p.name
	`, tripID)
	if err != nil {
		log.Error("Failed to query players", "error", err, "tripID", tripID)
		return nil, err
	}
	defer rows.Close()

	var players []Player
	for rows.Next() {
		var p Player
		if err := rows.Scan(&p.ID, &p.TeamID, &p.Name, &p.Handicap); err != nil {
			log.Error("Failed to scan player row", "error", err)
			continue
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

func (s *store) UpsertSession(session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertSession(s.db, session)
}

func upsertSession(e execer, session Session) error {
	_, err := e.Exec(`
		INSERT INTO sessions (id, trip_id, name, format, position) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			format = excluded.format,
			position = excluded.position
	`, session.ID, session.TripID, session.Name, session.Format, session.Position)
	if err != nil {
		return fmt.Errorf("failed to upsert session %s: %w", session.ID, err)
	}
	return nil
}

func (s *store) GetSessions(tripID string) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT id, trip_id, name, format, position FROM sessions WHERE trip_id = ? ORDER BY position", tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var session Session
		if err := rows.Scan(&session.ID, &session.TripID, &session.Name, &session.Format, &session.Position); err != nil {
			log.Error("Failed to scan session row", "error", err)
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// UpsertMatch inserts or updates a match's line-up. Progress columns are left alone
// on conflict.
func (s *store) UpsertMatch(match Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertMatch(s.db, match)
}

func upsertMatch(e execer, match Match) error {
	teamAJSON, err := json.Marshal(nonNil(match.TeamAPlayerIDs))
	if err != nil {
		return err
	}
	teamBJSON, err := json.Marshal(nonNil(match.TeamBPlayerIDs))
	if err != nil {
		return err
	}
	if match.Status == "" {
		match.Status = MatchScheduled
	}

	_, err = e.Exec(`
		INSERT INTO matches (id, trip_id, session_id, team_a_players_json, team_b_players_json, status, current_hole)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			session_id = excluded.session_id,
			team_a_players_json = excluded.team_a_players_json,
			team_b_players_json = excluded.team_b_players_json
	`, match.ID, match.TripID, match.SessionID, string(teamAJSON), string(teamBJSON), match.Status, match.CurrentHole)
	if err != nil {
		return fmt.Errorf("failed to upsert match %s: %w", match.ID, err)
	}
	return nil
}

func (s *store) GetMatch(matchID string) (*Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, trip_id, session_id, team_a_players_json, team_b_players_json, status, current_hole
		FROM matches WHERE id = ?
	`, matchID)
	match, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrMatchNotFound, matchID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match %s: %w", matchID, err)
	}
	return match, nil
}

func (s *store) GetMatchesByTrip(tripID string) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT m.id, m.trip_id, m.session_id, m.team_a_players_json, m.team_b_players_json, m.status, m.current_hole
		FROM matches m LEFT JOIN sessions s ON s.id = m.session_id
		WHERE m.trip_id = ?
		ORDER BY s.position, m.id
	`, tripID)
	if err != nil {
		log.Error("Failed to query matches for trip", "error", err, "tripID", tripID)
		return nil, err
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			log.Error("Failed to scan match row", "error", err)
			continue
		}
		matches = append(matches, *match)
	}
	return matches, rows.Err()
}

func (s *store) UpdateMatchProgress(matchID string, status MatchStatus, currentHole int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("UPDATE matches SET status = ?, current_hole = ? WHERE id = ?", status, currentHole, matchID)
	if err != nil {
		return fmt.Errorf("failed to update match %s: %w", matchID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrMatchNotFound, matchID)
	}
	return nil
}

// Import writes a whole trip definition in one transaction.
func (s *store) Import(def *Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	trip, teams, players, sessions, matches := def.Records()
	if err := upsertTrip(tx, trip); err != nil {
		tx.Rollback()
		return err
	}
	for _, team := range teams {
		if err := upsertTeam(tx, team); err != nil {
			tx.Rollback()
			return err
		}
	}
	for _, p := range players {
		if err := upsertPlayer(tx, p); err != nil {
			tx.Rollback()
			return err
		}
	}
	for _, session := range sessions {
		if err := upsertSession(tx, session); err != nil {
			tx.Rollback()
			return err
		}
	}
	for _, match := range matches {
		if err := upsertMatch(tx, match); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	log.Info("Imported trip", "tripID", trip.ID, "teams", len(teams), "players", len(players), "sessions", len(sessions), "matches", len(matches))
	return nil
}

func (s *store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		log.Error("Failed to begin transaction for clearing store", "error", err)
		return
	}
	for _, table := range []string{"hole_results", "matches", "sessions", "players", "teams", "trips"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			log.Error("Failed to clear table", "table", table, "error", err)
			tx.Rollback()
			return
		}
	}
	if err := tx.Commit(); err != nil {
		log.Error("Failed to commit transaction for clearing store", "error", err)
	}
}

func scanMatch(scanner interface{ Scan(...any) error }) (*Match, error) {
	var (
		match                Match
		teamAJSON, teamBJSON string
	)
	err := scanner.Scan(&match.ID, &match.TripID, &match.SessionID, &teamAJSON, &teamBJSON, &match.Status, &match.CurrentHole)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(teamAJSON), &match.TeamAPlayerIDs); err != nil {
		log.Error("Failed to unmarshal team_a_players_json", "error", err, "matchID", match.ID)
	}
	if err := json.Unmarshal([]byte(teamBJSON), &match.TeamBPlayerIDs); err != nil {
		log.Error("Failed to unmarshal team_b_players_json", "error", err, "matchID", match.ID)
	}
	return &match, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
