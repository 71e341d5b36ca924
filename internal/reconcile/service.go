package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/matchplay-trip/internal/matchplay"
	"github.com/mauv0809/matchplay-trip/internal/metrics"
	"github.com/mauv0809/matchplay-trip/internal/notifier"
	"github.com/mauv0809/matchplay-trip/internal/pubsub"
	"github.com/mauv0809/matchplay-trip/internal/resilience"
	"github.com/mauv0809/matchplay-trip/internal/syncqueue"
	"github.com/mauv0809/matchplay-trip/internal/trip"
)

// Service is the authoritative side of sync. It applies batches idempotently,
// recomputes the affected matches and announces results that became final.
type Service struct {
	events   EventStore
	trips    trip.TripStore
	auth     Authorizer
	notifier notifier.Notifier
	pubsub   pubsub.PubSubClient
	metrics  metrics.Metrics
	now      func() time.Time

	// applies are serialised so that a result turning final is announced once.
	mu sync.Mutex
}

func NewService(events EventStore, trips trip.TripStore, auth Authorizer, n notifier.Notifier, ps pubsub.PubSubClient, m metrics.Metrics) *Service {
	return &Service{
		events:   events,
		trips:    trips,
		auth:     auth,
		notifier: n,
		pubsub:   ps,
		metrics:  m,
		now:      time.Now,
	}
}

// tripSnapshot is everything needed to detect a transition across one batch.
type tripSnapshot struct {
	states    map[string]matchplay.MatchState
	standings matchplay.Standings
	magic     matchplay.MagicNumber
}

// Apply authorizes and applies one batch. Request-level problems return an error;
// problems with single events are reported in the response and do not affect the
// other events.
func (s *Service) Apply(ctx context.Context, token string, req BatchRequest, dryRun bool) (BatchResponse, error) {
	if req.Scope.TripID == "" {
		return BatchResponse{}, resilience.NewValidationError("scope.trip_id", "is required")
	}
	if err := s.auth.Authorize(token, req.Scope.TripID); err != nil {
		return BatchResponse{}, err
	}
	t, err := s.trips.GetTrip(req.Scope.TripID)
	if err != nil {
		return BatchResponse{}, err
	}
	matches, err := s.trips.GetMatchesByTrip(t.ID)
	if err != nil {
		return BatchResponse{}, err
	}
	byID := make(map[string]trip.Match, len(matches))
	for _, m := range matches {
		byID[m.ID] = m
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before, err := s.snapshot(t, matches)
	if err != nil {
		return BatchResponse{}, err
	}

	resp := BatchResponse{Errors: []string{}, Results: make([]EventResult, 0, len(req.Events))}
	touched := make(map[string]bool)
	received := s.now().UTC()
	var applied, duplicates int
	for _, event := range req.Events {
		if err := ctx.Err(); err != nil {
			return BatchResponse{}, err
		}
		stored, result, err := s.prepare(t.ID, req, event, byID)
		if err != nil {
			resp.Results = append(resp.Results, EventResult{ID: event.ID, Status: StatusRejected, Message: err.Error()})
			resp.Errors = append(resp.Errors, fmt.Sprintf("%s: %s", event.ID, err))
			resp.Failed++
			continue
		}
		stored.ReceivedAt = received

		inserted, err := s.events.Insert(stored)
		if err != nil {
			log.Error("Failed to store synced event", "id", event.ID, "error", err)
			resp.Results = append(resp.Results, EventResult{ID: event.ID, Status: StatusRejected, Message: "storage failure"})
			resp.Errors = append(resp.Errors, fmt.Sprintf("%s: storage failure", event.ID))
			resp.Failed++
			continue
		}
		resp.Synced++
		if !inserted {
			duplicates++
			resp.Results = append(resp.Results, EventResult{ID: event.ID, Status: StatusDuplicate})
			continue
		}
		applied++
		resp.Results = append(resp.Results, EventResult{ID: event.ID, Status: StatusSynced})
		if result != nil {
			touched[result.MatchID] = true
			s.publish(pubsub.EventHoleResultSynced, pubsub.HoleResultSynced{
				TripID:     t.ID,
				MatchID:    result.MatchID,
				EventID:    result.ID,
				HoleNumber: result.HoleNumber,
				Winner:     string(result.Winner),
				Kind:       string(result.Kind),
				Timestamp:  result.Timestamp,
			}, dryRun)
		}
	}
	s.metrics.IncEventsApplied(applied)
	s.metrics.IncEventsDuplicate(duplicates)
	log.Info("Applied sync batch", "tripID", t.ID, "batchID", req.BatchID, "events", len(req.Events),
		"applied", applied, "duplicates", duplicates, "rejected", resp.Failed)

	if len(touched) > 0 {
		after, err := s.snapshot(t, matches)
		if err != nil {
			// The events are stored; announcements catch up with the next batch.
			log.Error("Failed to recompute trip after sync", "tripID", t.ID, "error", err)
			return resp, nil
		}
		s.announce(t, byID, touched, before, after, dryRun)
	}
	return resp, nil
}

// prepare validates one event and builds what will be stored. For score events it
// also returns the decoded hole result.
func (s *Service) prepare(tripID string, req BatchRequest, event Event, matches map[string]trip.Match) (StoredEvent, *matchplay.HoleResult, error) {
	if event.ID == "" {
		return StoredEvent{}, nil, resilience.NewValidationError("id", "is required")
	}
	itemType := syncqueue.ItemType(event.Type)
	if !itemType.Valid() {
		return StoredEvent{}, nil, resilience.NewValidationError("type", "unknown event type %q", event.Type)
	}
	if len(event.Data) == 0 || !json.Valid(event.Data) {
		return StoredEvent{}, nil, resilience.NewValidationError("data", "must be a JSON document")
	}

	stored := StoredEvent{
		ID:         event.ID,
		TripID:     tripID,
		Type:       event.Type,
		HoleNumber: event.HoleNumber,
		Data:       event.Data,
		EventTime:  event.Timestamp,
		BatchID:    req.BatchID,
	}
	if itemType == syncqueue.TypeMatch {
		stored.MatchID = req.Scope.MatchID
	}
	if itemType != syncqueue.TypeScore {
		return stored, nil, nil
	}

	var result matchplay.HoleResult
	if err := json.Unmarshal(event.Data, &result); err != nil {
		return StoredEvent{}, nil, resilience.NewValidationError("data", "is not a hole result: %v", err)
	}
	if _, ok := matches[result.MatchID]; !ok {
		return StoredEvent{}, nil, resilience.NewValidationError("match_id", "%q is not part of trip %s", result.MatchID, tripID)
	}
	if result.HoleNumber < 1 || result.HoleNumber > matchplay.HolesPerMatch {
		return StoredEvent{}, nil, resilience.NewValidationError("hole_number", "must be between 1 and %d, got %d", matchplay.HolesPerMatch, result.HoleNumber)
	}
	if event.HoleNumber != nil && *event.HoleNumber != result.HoleNumber {
		return StoredEvent{}, nil, resilience.NewValidationError("hole_number", "%d does not match the event data (%d)", *event.HoleNumber, result.HoleNumber)
	}
	if err := validateKind(result); err != nil {
		return StoredEvent{}, nil, err
	}
	if result.Timestamp.IsZero() {
		result.Timestamp = event.Timestamp
	}

	hole := result.HoleNumber
	stored.MatchID = result.MatchID
	stored.HoleNumber = &hole
	stored.EventTime = result.Timestamp
	return stored, &result, nil
}

func validateKind(r matchplay.HoleResult) error {
	switch r.Kind {
	case matchplay.KindResult, matchplay.KindCorrection:
		switch r.Winner {
		case matchplay.WinnerTeamA, matchplay.WinnerTeamB, matchplay.WinnerHalved:
			return nil
		}
		return resilience.NewValidationError("winner", "must be teamA, teamB or halved, got %q", r.Winner)
	case matchplay.KindUndo:
		if r.Supersedes == "" {
			return resilience.NewValidationError("supersedes", "is required for an undo")
		}
		return nil
	}
	return resilience.NewValidationError("kind", "unknown kind %q", r.Kind)
}

func (s *Service) snapshot(t *trip.Trip, matches []trip.Match) (tripSnapshot, error) {
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	byMatch, err := s.events.ListHoleResultsByMatches(ids)
	if err != nil {
		return tripSnapshot{}, err
	}

	snap := tripSnapshot{states: make(map[string]matchplay.MatchState, len(matches))}
	results := make([]matchplay.MatchResults, len(matches))
	for i, m := range matches {
		results[i] = matchplay.MatchResults{MatchID: m.ID, Results: byMatch[m.ID]}
		snap.states[m.ID] = matchplay.ComputeFromLog(byMatch[m.ID])
	}
	snap.standings = matchplay.Aggregate(results)

	var pointsToWin float64
	if t.PointsToWin != nil {
		pointsToWin = *t.PointsToWin
	}
	snap.magic = matchplay.CalculateMagicNumber(snap.standings, float64(len(matches)), pointsToWin)
	return snap, nil
}

// announce persists match progress and notifies about matches that became final
// and about the trip being clinched, each exactly once.
func (s *Service) announce(t *trip.Trip, matches map[string]trip.Match, touched map[string]bool, before, after tripSnapshot, dryRun bool) {
	names, err := s.loadNames(t.ID)
	if err != nil {
		log.Error("Failed to load trip names", "tripID", t.ID, "error", err)
	}

	for matchID := range touched {
		state := after.states[matchID]
		status := trip.MatchInProgress
		switch {
		case state.IsComplete:
			status = trip.MatchCompleted
		case state.HolesPlayed == 0:
			status = trip.MatchScheduled
		}
		if err := s.trips.UpdateMatchProgress(matchID, status, state.HolesPlayed); err != nil {
			log.Error("Failed to update match progress", "matchID", matchID, "error", err)
		}

		if before.states[matchID].IsComplete || !state.IsComplete {
			continue
		}
		log.Info("Match decided", "tripID", t.ID, "matchID", matchID, "result", state.DisplayScore, "winner", state.WinningTeam)
		s.publish(pubsub.EventMatchClosedOut, pubsub.MatchClosedOut{
			TripID:       t.ID,
			MatchID:      matchID,
			WinningTeam:  string(state.WinningTeam),
			DisplayScore: state.DisplayScore,
			HolesPlayed:  state.HolesPlayed,
		}, dryRun)
		m := matches[matchID]
		decided := notifier.MatchDecided{
			TripName:    t.Name,
			SessionName: names.sessions[m.SessionID],
			MatchID:     matchID,
			TeamAName:   names.teamA,
			TeamBName:   names.teamB,
			PlayersA:    names.playerNames(m.TeamAPlayerIDs),
			PlayersB:    names.playerNames(m.TeamBPlayerIDs),
			State:       state,
		}
		if _, err := s.notifier.SendMatchDecided(decided, dryRun); err != nil {
			log.Error("Failed to notify match result", "matchID", matchID, "error", err)
		}
	}

	if before.magic.Clinched || !after.magic.Clinched {
		return
	}
	winner := names.teamA
	points := after.standings.TeamA.Points
	if after.magic.Team == matchplay.WinnerTeamB {
		winner = names.teamB
		points = after.standings.TeamB.Points
	}
	log.Info("Trip clinched", "tripID", t.ID, "team", after.magic.Team, "points", points)
	s.publish(pubsub.EventTripClinched, pubsub.TripClinched{
		TripID:      t.ID,
		Team:        string(after.magic.Team),
		Points:      points,
		PointsToWin: after.magic.PointsToWin,
	}, dryRun)
	clinch := notifier.TripClinched{
		WinnerName: winner,
		StandingsSummary: notifier.StandingsSummary{
			TripName:    t.Name,
			TeamAName:   names.teamA,
			TeamBName:   names.teamB,
			Standings:   after.standings,
			MagicNumber: after.magic,
		},
	}
	if _, err := s.notifier.SendTripClinched(clinch, dryRun); err != nil {
		log.Error("Failed to notify trip clinch", "tripID", t.ID, "error", err)
	}
}

func (s *Service) publish(topic pubsub.EventType, data any, dryRun bool) {
	if dryRun {
		log.Info("[Dry Run] Would publish event", "topic", topic)
		return
	}
	if err := s.pubsub.SendMessage(topic, data); err != nil {
		log.Error("Failed to publish event", "topic", topic, "error", err)
	}
}

// Summary returns the trip scoreboard as the reconciler sees it.
func (s *Service) Summary(ctx context.Context, tripID string) (notifier.StandingsSummary, error) {
	t, err := s.trips.GetTrip(tripID)
	if err != nil {
		return notifier.StandingsSummary{}, err
	}
	matches, err := s.trips.GetMatchesByTrip(tripID)
	if err != nil {
		return notifier.StandingsSummary{}, err
	}
	snap, err := s.snapshot(t, matches)
	if err != nil {
		return notifier.StandingsSummary{}, err
	}
	names, err := s.loadNames(tripID)
	if err != nil {
		return notifier.StandingsSummary{}, err
	}
	return notifier.StandingsSummary{
		TripName:    t.Name,
		TeamAName:   names.teamA,
		TeamBName:   names.teamB,
		Standings:   snap.standings,
		MagicNumber: snap.magic,
	}, nil
}

// PostStandings sends the current scoreboard to the notifier.
func (s *Service) PostStandings(ctx context.Context, tripID string, dryRun bool) error {
	summary, err := s.Summary(ctx, tripID)
	if err != nil {
		return err
	}
	_, err = s.notifier.SendStandings(summary, dryRun)
	return err
}

type tripNames struct {
	teamA, teamB string
	sessions     map[string]string
	players      map[string]string
}

func (n tripNames) playerNames(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := n.players[id]; ok {
			out = append(out, name)
		} else {
			out = append(out, id)
		}
	}
	return out
}

func (s *Service) loadNames(tripID string) (tripNames, error) {
	names := tripNames{sessions: map[string]string{}, players: map[string]string{}}
	teams, err := s.trips.GetTeams(tripID)
	if err != nil {
		return names, err
	}
	for _, team := range teams {
		switch team.Side {
		case matchplay.SideA:
			names.teamA = team.Name
		case matchplay.SideB:
			names.teamB = team.Name
		}
	}
	sessions, err := s.trips.GetSessions(tripID)
	if err != nil {
		return names, err
	}
	for _, session := range sessions {
		names.sessions[session.ID] = session.Name
	}
	players, err := s.trips.GetPlayers(tripID)
	if err != nil {
		return names, err
	}
	for _, p := range players {
		names.players[p.ID] = p.Name
	}
	return names, nil
}
