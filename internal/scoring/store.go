package scoring

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/matchplay-trip/internal/matchplay"
)

type store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new HoleResultLog.
func New(db *sql.DB) HoleResultLog {
	return &store{db: db}
}

func (s *store) Append(result matchplay.HoleResult, also func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	var supersedes sql.NullString
	if result.Supersedes != "" {
		supersedes = sql.NullString{String: result.Supersedes, Valid: true}
	}
	_, err = tx.Exec(`
		INSERT INTO hole_results (id, match_id, hole_number, winner, kind, supersedes, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, result.ID, result.MatchID, result.HoleNumber, result.Winner, result.Kind, supersedes, result.Timestamp.UnixMilli())
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to append hole result %s: %w", result.ID, err)
	}
	if also != nil {
		if err := also(tx); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *store) ListByMatch(matchID string) ([]matchplay.HoleResult, error) {
	byMatch, err := s.ListByMatches([]string{matchID})
	if err != nil {
		return nil, err
	}
	return byMatch[matchID], nil
}

// ListByMatches returns each match's events in log order.
func (s *store) ListByMatches(matchIDs []string) (map[string][]matchplay.HoleResult, error) {
	out := make(map[string][]matchplay.HoleResult, len(matchIDs))
	if len(matchIDs) == 0 {
		return out, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	args := make([]any, len(matchIDs))
	for i, id := range matchIDs {
		args[i] = id
	}
	rows, err := s.db.Query(`
		SELECT id, match_id, hole_number, winner, kind, supersedes, recorded_at
		FROM hole_results
		WHERE match_id IN (`+strings.TrimSuffix(strings.Repeat("?,", len(matchIDs)), ",")+`)
		ORDER BY seq
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query hole results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r          matchplay.HoleResult
			supersedes sql.NullString
			recordedAt int64
		)
		if err := rows.Scan(&r.ID, &r.MatchID, &r.HoleNumber, &r.Winner, &r.Kind, &supersedes, &recordedAt); err != nil {
			log.Error("Failed to scan hole result row", "error", err)
			continue
		}
		r.Supersedes = supersedes.String
		r.Timestamp = time.UnixMilli(recordedAt).UTC()
		out[r.MatchID] = append(out[r.MatchID], r)
	}
	return out, rows.Err()
}
