package reconcile

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mauv0809/matchplay-trip/internal/matchplay"
	"github.com/mauv0809/matchplay-trip/internal/syncqueue"
)

// NewStore creates an EventStore over the synced_events table.
func NewStore(db *sql.DB) EventStore {
	return &store{db: db}
}

func (s *store) Insert(event StoredEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var hole sql.NullInt64
	if event.HoleNumber != nil {
		hole = sql.NullInt64{Int64: int64(*event.HoleNumber), Valid: true}
	}
	res, err := s.db.Exec(`
		INSERT INTO synced_events (id, trip_id, match_id, type, hole_number, data, event_time, received_at, batch_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, event.ID, event.TripID, event.MatchID, event.Type, hole, string(event.Data),
		event.EventTime.UnixMilli(), event.ReceivedAt.UnixMilli(), event.BatchID)
	if err != nil {
		return false, fmt.Errorf("failed to insert synced event %s: %w", event.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *store) ListHoleResults(matchID string) ([]matchplay.HoleResult, error) {
	byMatch, err := s.ListHoleResultsByMatches([]string{matchID})
	if err != nil {
		return nil, err
	}
	return byMatch[matchID], nil
}

// ListHoleResultsByMatches returns score events per match in the order they were received.
func (s *store) ListHoleResultsByMatches(matchIDs []string) (map[string][]matchplay.HoleResult, error) {
	out := make(map[string][]matchplay.HoleResult, len(matchIDs))
	if len(matchIDs) == 0 {
		return out, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	args := make([]any, 0, len(matchIDs)+1)
	args = append(args, string(syncqueue.TypeScore))
	for _, id := range matchIDs {
		args = append(args, id)
	}
	rows, err := s.db.Query(`
		SELECT match_id, data FROM synced_events
		WHERE type = ? AND match_id IN (`+strings.TrimSuffix(strings.Repeat("?,", len(matchIDs)), ",")+`)
		ORDER BY rowid
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query synced events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			matchID string
			data    string
			result  matchplay.HoleResult
		)
		if err := rows.Scan(&matchID, &data); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &result); err != nil {
			return nil, fmt.Errorf("failed to decode synced event for match %s: %w", matchID, err)
		}
		out[matchID] = append(out[matchID], result)
	}
	return out, rows.Err()
}

func (s *store) Count(tripID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM synced_events WHERE trip_id = ?`, tripID).Scan(&n)
	return n, err
}
