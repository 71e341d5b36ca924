package scoring

import (
	"database/sql"

	"github.com/mauv0809/matchplay-trip/internal/matchplay"
)

// HoleResultLog is the append-only store of hole events.
type HoleResultLog interface {
	// Append writes the event and runs also in the same transaction; nothing is
	// committed unless both succeed.
	Append(result matchplay.HoleResult, also func(tx *sql.Tx) error) error
	ListByMatch(matchID string) ([]matchplay.HoleResult, error)
	ListByMatches(matchIDs []string) (map[string][]matchplay.HoleResult, error)
}
