package scoring

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mauv0809/matchplay-trip/internal/matchplay"
	"github.com/mauv0809/matchplay-trip/internal/metrics"
	"github.com/mauv0809/matchplay-trip/internal/resilience"
	"github.com/mauv0809/matchplay-trip/internal/syncqueue"
	"github.com/mauv0809/matchplay-trip/internal/trip"
)

// Service is the local intake and read surface of a scorer node.
type Service struct {
	trips    trip.TripStore
	holes    HoleResultLog
	queue    syncqueue.Queue
	metrics  metrics.Metrics
	counters metrics.MetricsStore
	now      func() time.Time
	onCommit func()

	// writes serialises intake so two scorers cannot both record the same hole.
	writes sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCommitHook runs fn after every local commit that queued or requeued work,
// typically a dispatcher trigger.
func WithCommitHook(fn func()) Option {
	return func(s *Service) { s.onCommit = fn }
}

func NewService(trips trip.TripStore, holes HoleResultLog, queue syncqueue.Queue, m metrics.Metrics, counters metrics.MetricsStore, opts ...Option) *Service {
	s := &Service{
		trips:    trips,
		holes:    holes,
		queue:    queue,
		metrics:  m,
		counters: counters,
		now:      time.Now,
		onCommit: func() {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordHoleResult appends a new result for a hole that has none yet and queues
// it for the remote, in one local transaction.
func (s *Service) RecordHoleResult(ctx context.Context, matchID string, hole int, winner matchplay.Winner) (matchplay.HoleResult, error) {
	if err := validateHole(hole); err != nil {
		return matchplay.HoleResult{}, err
	}
	if err := validateWinner(winner); err != nil {
		return matchplay.HoleResult{}, err
	}
	return s.commit(ctx, matchID, hole, func(current *matchplay.HoleResult) (matchplay.HoleResult, error) {
		if current != nil {
			return matchplay.HoleResult{}, resilience.NewValidationError("hole", "%d already has a result, submit a correction instead", hole)
		}
		return matchplay.HoleResult{Winner: winner, Kind: matchplay.KindResult}, nil
	})
}

// CorrectHoleResult supersedes the live result of a hole with a new winner.
func (s *Service) CorrectHoleResult(ctx context.Context, matchID string, hole int, winner matchplay.Winner) (matchplay.HoleResult, error) {
	if err := validateHole(hole); err != nil {
		return matchplay.HoleResult{}, err
	}
	if err := validateWinner(winner); err != nil {
		return matchplay.HoleResult{}, err
	}
	return s.commit(ctx, matchID, hole, func(current *matchplay.HoleResult) (matchplay.HoleResult, error) {
		if current == nil {
			return matchplay.HoleResult{}, resilience.NewValidationError("hole", "%d has no result to correct", hole)
		}
		return matchplay.HoleResult{Winner: winner, Kind: matchplay.KindCorrection, Supersedes: current.ID}, nil
	})
}

// UndoHoleResult withdraws the live result of a hole. The original stays in the log.
func (s *Service) UndoHoleResult(ctx context.Context, matchID string, hole int) (matchplay.HoleResult, error) {
	if err := validateHole(hole); err != nil {
		return matchplay.HoleResult{}, err
	}
	return s.commit(ctx, matchID, hole, func(current *matchplay.HoleResult) (matchplay.HoleResult, error) {
		if current == nil {
			return matchplay.HoleResult{}, resilience.NewValidationError("hole", "%d has no result to undo", hole)
		}
		return matchplay.HoleResult{Winner: matchplay.WinnerNone, Kind: matchplay.KindUndo, Supersedes: current.ID}, nil
	})
}

// commit builds an event for one hole from its live result, then appends and
// enqueues it atomically.
func (s *Service) commit(ctx context.Context, matchID string, hole int, build func(current *matchplay.HoleResult) (matchplay.HoleResult, error)) (matchplay.HoleResult, error) {
	if err := ctx.Err(); err != nil {
		return matchplay.HoleResult{}, err
	}
	match, err := s.trips.GetMatch(matchID)
	if err != nil {
		return matchplay.HoleResult{}, err
	}

	s.writes.Lock()
	defer s.writes.Unlock()

	events, err := s.holes.ListByMatch(matchID)
	if err != nil {
		return matchplay.HoleResult{}, err
	}
	var current *matchplay.HoleResult
	for _, r := range matchplay.Resolve(events) {
		if r.HoleNumber == hole {
			current = &r
			break
		}
	}

	event, err := build(current)
	if err != nil {
		return matchplay.HoleResult{}, err
	}
	event.ID = uuid.NewString()
	event.MatchID = matchID
	event.HoleNumber = hole
	event.Timestamp = s.now().UTC()

	item, err := syncqueue.NewItem(syncqueue.TypeScore, matchID, match.TripID, event)
	if err != nil {
		return matchplay.HoleResult{}, err
	}
	err = s.holes.Append(event, func(tx *sql.Tx) error {
		_, err := s.queue.EnqueueTx(tx, item)
		return err
	})
	if err != nil {
		return matchplay.HoleResult{}, fmt.Errorf("failed to commit hole event: %w", err)
	}

	s.metrics.IncHolesRecorded(string(event.Kind))
	s.metrics.IncItemsEnqueued()
	s.counters.Increment(metrics.KeyHolesRecorded)
	log.Info("Recorded hole event", "matchID", matchID, "hole", hole, "winner", event.Winner, "kind", event.Kind, "syncItem", item.ID)

	state := matchplay.ComputeFromLog(append(events, event))
	s.updateProgress(match, state)
	s.onCommit()
	return event, nil
}

func (s *Service) updateProgress(match *trip.Match, state matchplay.MatchState) {
	status := trip.MatchInProgress
	switch {
	case state.IsComplete:
		status = trip.MatchCompleted
	case state.HolesPlayed == 0:
		status = trip.MatchScheduled
	}
	if err := s.trips.UpdateMatchProgress(match.ID, status, state.HolesPlayed); err != nil {
		log.Error("Failed to update match progress", "matchID", match.ID, "error", err)
	}
}

// GetMatchState recomputes a match's state from its log.
func (s *Service) GetMatchState(ctx context.Context, matchID string) (matchplay.MatchState, error) {
	if _, err := s.trips.GetMatch(matchID); err != nil {
		return matchplay.MatchState{}, err
	}
	events, err := s.holes.ListByMatch(matchID)
	if err != nil {
		return matchplay.MatchState{}, err
	}
	return matchplay.ComputeFromLog(events), nil
}

// GetHoleResults returns the raw log for a match, corrections and undos included.
func (s *Service) GetHoleResults(ctx context.Context, matchID string) ([]matchplay.HoleResult, error) {
	if _, err := s.trips.GetMatch(matchID); err != nil {
		return nil, err
	}
	return s.holes.ListByMatch(matchID)
}

// GetTeamStandings aggregates every match of a trip.
func (s *Service) GetTeamStandings(ctx context.Context, tripID string) (matchplay.Standings, error) {
	st, _, err := s.standings(tripID)
	return st, err
}

// GetMagicNumber derives the clinch threshold for a trip. Every match is worth one
// point; the trip's points_to_win overrides the default majority.
func (s *Service) GetMagicNumber(ctx context.Context, tripID string) (matchplay.MagicNumber, error) {
	st, t, err := s.standings(tripID)
	if err != nil {
		return matchplay.MagicNumber{}, err
	}
	matches, err := s.trips.GetMatchesByTrip(tripID)
	if err != nil {
		return matchplay.MagicNumber{}, err
	}
	var pointsToWin float64
	if t.PointsToWin != nil {
		pointsToWin = *t.PointsToWin
	}
	return matchplay.CalculateMagicNumber(st, float64(len(matches)), pointsToWin), nil
}

func (s *Service) standings(tripID string) (matchplay.Standings, *trip.Trip, error) {
	t, err := s.trips.GetTrip(tripID)
	if err != nil {
		return matchplay.Standings{}, nil, err
	}
	matches, err := s.trips.GetMatchesByTrip(tripID)
	if err != nil {
		return matchplay.Standings{}, nil, err
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	byMatch, err := s.holes.ListByMatches(ids)
	if err != nil {
		return matchplay.Standings{}, nil, err
	}

	results := make([]matchplay.MatchResults, len(matches))
	for i, m := range matches {
		results[i] = matchplay.MatchResults{MatchID: m.ID, Results: byMatch[m.ID]}
	}
	st := matchplay.Aggregate(results)

	teams, err := s.trips.GetTeams(tripID)
	if err != nil {
		return matchplay.Standings{}, nil, err
	}
	for _, team := range teams {
		switch team.Side {
		case matchplay.SideA:
			st.TeamA.TeamID = team.ID
		case matchplay.SideB:
			st.TeamB.TeamID = team.ID
		}
	}
	return st, t, nil
}

// GetSyncQueueStats summarises the local queue.
func (s *Service) GetSyncQueueStats(ctx context.Context) (syncqueue.Stats, error) {
	return s.queue.Stats()
}

// ListSyncItems lists queued items, optionally filtered by status.
func (s *Service) ListSyncItems(ctx context.Context, status syncqueue.Status) ([]syncqueue.Item, error) {
	return s.queue.List(status)
}

// RetryAllFailed requeues every failed item and triggers a dispatch.
func (s *Service) RetryAllFailed(ctx context.Context) (int, error) {
	n, err := s.queue.RetryAllFailed()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.counters.Increment(metrics.KeyManualRetries)
		s.onCommit()
	}
	return n, nil
}

// RetrySyncItem requeues one item and triggers a dispatch.
func (s *Service) RetrySyncItem(ctx context.Context, id string) error {
	if err := s.queue.Retry(id); err != nil {
		return err
	}
	s.counters.Increment(metrics.KeyManualRetries)
	s.onCommit()
	return nil
}

// DiscardSyncItem permanently drops one item. Callers confirm with the user first.
func (s *Service) DiscardSyncItem(ctx context.Context, id string) error {
	if err := s.queue.Discard(id); err != nil {
		return err
	}
	s.counters.Increment(metrics.KeyItemsDiscarded)
	return nil
}

// DiscardAllSyncItems permanently drops every item that is not in flight.
func (s *Service) DiscardAllSyncItems(ctx context.Context) (int, error) {
	n, err := s.queue.DiscardAll()
	if err != nil {
		return 0, err
	}
	for i := 0; i < n; i++ {
		s.counters.Increment(metrics.KeyItemsDiscarded)
	}
	return n, nil
}

// IsNotFound reports whether err means the requested trip, match or item does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, trip.ErrMatchNotFound) ||
		errors.Is(err, trip.ErrTripNotFound) ||
		errors.Is(err, syncqueue.ErrItemNotFound)
}

func validateHole(hole int) error {
	if hole < 1 || hole > matchplay.HolesPerMatch {
		return resilience.NewValidationError("hole", "must be between 1 and %d, got %d", matchplay.HolesPerMatch, hole)
	}
	return nil
}

func validateWinner(w matchplay.Winner) error {
	switch w {
	case matchplay.WinnerTeamA, matchplay.WinnerTeamB, matchplay.WinnerHalved:
		return nil
	}
	return resilience.NewValidationError("winner", "must be teamA, teamB or halved, got %q", w)
}
