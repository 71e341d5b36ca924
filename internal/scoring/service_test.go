package scoring_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mauv0809/matchplay-trip/internal/database"
	"github.com/mauv0809/matchplay-trip/internal/matchplay"
	"github.com/mauv0809/matchplay-trip/internal/metrics"
	"github.com/mauv0809/matchplay-trip/internal/resilience"
	"github.com/mauv0809/matchplay-trip/internal/scoring"
	"github.com/mauv0809/matchplay-trip/internal/syncqueue"
	"github.com/mauv0809/matchplay-trip/internal/trip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc      *scoring.Service
	trips    trip.TripStore
	queue    syncqueue.Queue
	metrics  *metrics.Mock
	counters metrics.MetricsStore
	commits  *atomic.Int32
}

func testDefinition(pointsToWin *float64) *trip.Definition {
	return &trip.Definition{
		ID:          "trip-1",
		Name:        "Test Trip",
		PointsToWin: pointsToWin,
		Teams: []trip.TeamDefinition{
			{ID: "usa", Side: matchplay.SideA, Name: "USA", Players: []trip.PlayerDefinition{{ID: "a1", Name: "Alice"}, {ID: "a2", Name: "Ann"}}},
			{ID: "eur", Side: matchplay.SideB, Name: "Europe", Players: []trip.PlayerDefinition{{ID: "b1", Name: "Bert"}, {ID: "b2", Name: "Bo"}}},
		},
		Sessions: []trip.SessionDefinition{{
			ID: "sun", Name: "Singles", Format: "singles",
			Matches: []trip.MatchDefinition{
				{ID: "m1", TeamA: []string{"a1"}, TeamB: []string{"b1"}},
				{ID: "m2", TeamA: []string{"a2"}, TeamB: []string{"b2"}},
				{ID: "m3", TeamA: []string{"a1"}, TeamB: []string{"b2"}},
			},
		}},
	}
}

func setup(t *testing.T, pointsToWin *float64) *fixture {
	t.Helper()

	db, teardown, err := database.InitDB(":memory:", "", "")
	require.NoError(t, err)
	t.Cleanup(teardown)

	trips := trip.New(db)
	require.NoError(t, trips.Import(testDefinition(pointsToWin)))

	f := &fixture{
		trips:    trips,
		queue:    syncqueue.New(db),
		metrics:  metrics.NewMock(),
		counters: metrics.New(db),
		commits:  &atomic.Int32{},
	}
	clock := time.Date(2025, 9, 28, 9, 0, 0, 0, time.UTC)
	f.svc = scoring.NewService(trips, scoring.New(db), f.queue, f.metrics, f.counters,
		scoring.WithClock(func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		}),
		scoring.WithCommitHook(func() { f.commits.Add(1) }),
	)
	return f
}

func record(t *testing.T, f *fixture, matchID string, winners ...matchplay.Winner) {
	t.Helper()
	for i, w := range winners {
		_, err := f.svc.RecordHoleResult(context.Background(), matchID, i+1, w)
		require.NoError(t, err)
	}
}

func TestRecordHoleResult_AppendsAndEnqueues(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	event, err := f.svc.RecordHoleResult(ctx, "m1", 1, matchplay.WinnerTeamA)
	require.NoError(t, err)
	assert.Equal(t, matchplay.KindResult, event.Kind)
	assert.NotEmpty(t, event.ID)

	items, err := f.queue.List(syncqueue.StatusPending)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, syncqueue.TypeScore, items[0].Type)
	assert.Equal(t, "m1", items[0].Scope)
	assert.Equal(t, "trip-1", items[0].TripID)

	var queued matchplay.HoleResult
	require.NoError(t, items[0].Decode(&queued))
	assert.Equal(t, event.ID, queued.ID)
	assert.Equal(t, matchplay.WinnerTeamA, queued.Winner)

	state, err := f.svc.GetMatchState(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "1 UP thru 1", state.DisplayScore)

	match, err := f.trips.GetMatch("m1")
	require.NoError(t, err)
	assert.Equal(t, trip.MatchInProgress, match.Status)
	assert.Equal(t, 1, match.CurrentHole)

	assert.Equal(t, int32(1), f.commits.Load())
	assert.Equal(t, 1, f.metrics.HolesRecorded("result"))
	assert.Equal(t, 1, f.metrics.ItemsEnqueued())
	counters, err := f.counters.GetAll()
	require.NoError(t, err)
	assert.Equal(t, 1, counters[metrics.KeyHolesRecorded])
}

func TestRecordHoleResult_Validation(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		matchID string
		hole    int
		winner  matchplay.Winner
	}{
		{"hole zero", "m1", 0, matchplay.WinnerTeamA},
		{"hole 19", "m1", 19, matchplay.WinnerTeamA},
		{"unknown winner", "m1", 1, matchplay.Winner("usa")},
		{"none is not a result", "m1", 1, matchplay.WinnerNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RecordHoleResult(ctx, tt.matchID, tt.hole, tt.winner)
			var vErr *resilience.ValidationError
			require.ErrorAs(t, err, &vErr)
		})
	}

	_, err := f.svc.RecordHoleResult(ctx, "nope", 1, matchplay.WinnerTeamA)
	assert.ErrorIs(t, err, trip.ErrMatchNotFound)
	assert.True(t, scoring.IsNotFound(err))

	stats, err := f.svc.GetSyncQueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total, "rejected mutations are never enqueued")
}

func TestRecordHoleResult_RejectsDuplicateHole(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	record(t, f, "m1", matchplay.WinnerTeamA)
	_, err := f.svc.RecordHoleResult(ctx, "m1", 1, matchplay.WinnerTeamB)
	assert.True(t, resilience.IsValidation(err))
}

func TestCorrectAndUndo(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	record(t, f, "m1", matchplay.WinnerTeamA, matchplay.WinnerTeamA)

	_, err := f.svc.CorrectHoleResult(ctx, "m1", 5, matchplay.WinnerTeamB)
	assert.True(t, resilience.IsValidation(err), "nothing to correct on an unplayed hole")

	correction, err := f.svc.CorrectHoleResult(ctx, "m1", 2, matchplay.WinnerHalved)
	require.NoError(t, err)
	assert.Equal(t, matchplay.KindCorrection, correction.Kind)
	assert.NotEmpty(t, correction.Supersedes)

	state, err := f.svc.GetMatchState(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "1 UP thru 2", state.DisplayScore)

	undo, err := f.svc.UndoHoleResult(ctx, "m1", 2)
	require.NoError(t, err)
	assert.Equal(t, correction.ID, undo.Supersedes)

	state, err = f.svc.GetMatchState(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 1, state.HolesPlayed)

	// The hole can be recorded again once undone.
	_, err = f.svc.RecordHoleResult(ctx, "m1", 2, matchplay.WinnerTeamB)
	require.NoError(t, err)

	log, err := f.svc.GetHoleResults(ctx, "m1")
	require.NoError(t, err)
	assert.Len(t, log, 5, "originals are kept for audit")

	stats, err := f.svc.GetSyncQueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Pending, "every event is queued")
}

func TestStandingsAndMagicNumber(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	// m1: team A wins 10&8.
	record(t, f, "m1", repeat(matchplay.WinnerTeamA, 10)...)
	// m2: in progress.
	record(t, f, "m2", matchplay.WinnerTeamB)

	st, err := f.svc.GetTeamStandings(ctx, "trip-1")
	require.NoError(t, err)
	assert.Equal(t, "usa", st.TeamA.TeamID)
	assert.Equal(t, "eur", st.TeamB.TeamID)
	assert.Equal(t, 1.0, st.TeamA.Points)
	assert.Equal(t, 1, st.TeamA.MatchesWon)
	assert.Equal(t, 1, st.TeamB.MatchesLost)
	assert.Equal(t, 1, st.TeamA.MatchesInProgress)

	match, err := f.trips.GetMatch("m1")
	require.NoError(t, err)
	assert.Equal(t, trip.MatchCompleted, match.Status)

	// Three matches: default target is 2 points.
	mn, err := f.svc.GetMagicNumber(ctx, "trip-1")
	require.NoError(t, err)
	assert.Equal(t, matchplay.MagicNumber{Team: matchplay.WinnerTeamA, Points: 1, PointsToWin: 2}, mn)

	_, err = f.svc.GetTeamStandings(ctx, "nope")
	assert.ErrorIs(t, err, trip.ErrTripNotFound)
}

func TestMagicNumber_TripOverride(t *testing.T) {
	target := 1.0
	f := setup(t, &target)

	record(t, f, "m1", repeat(matchplay.WinnerTeamA, 10)...)

	mn, err := f.svc.GetMagicNumber(context.Background(), "trip-1")
	require.NoError(t, err)
	assert.True(t, mn.Clinched)
	assert.Equal(t, 0, mn.Points)
}

func TestResultsAfterCloseoutAreKept(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	record(t, f, "m1", append(repeat(matchplay.WinnerTeamA, 10), matchplay.WinnerTeamB)...)

	state, err := f.svc.GetMatchState(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "10&8", state.DisplayScore)

	events, err := f.svc.GetHoleResults(ctx, "m1")
	require.NoError(t, err)
	assert.Len(t, events, 11)
}

func TestSyncAdministration(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	record(t, f, "m1", matchplay.WinnerTeamA, matchplay.WinnerTeamB)
	items, err := f.svc.ListSyncItems(ctx, "")
	require.NoError(t, err)
	require.Len(t, items, 2)

	_, err = f.queue.Claim(1)
	require.NoError(t, err)
	require.NoError(t, f.queue.MarkFailed(items[0].ID, "boom", true))

	before := f.commits.Load()
	n, err := f.svc.RetryAllFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, before+1, f.commits.Load(), "a retry triggers dispatch")

	require.NoError(t, f.svc.DiscardSyncItem(ctx, items[1].ID))
	err = f.svc.DiscardSyncItem(ctx, items[1].ID)
	assert.True(t, scoring.IsNotFound(err))

	n, err = f.svc.DiscardAllSyncItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	counters, err := f.counters.GetAll()
	require.NoError(t, err)
	assert.Equal(t, 2, counters[metrics.KeyItemsDiscarded])
	assert.Equal(t, 1, counters[metrics.KeyManualRetries])

	assert.True(t, errors.Is(f.svc.RetrySyncItem(ctx, "missing"), syncqueue.ErrItemNotFound))
}

func repeat(w matchplay.Winner, n int) []matchplay.Winner {
	out := make([]matchplay.Winner, n)
	for i := range out {
		out[i] = w
	}
	return out
}

func TestRecordHoleResult_ProgressFailureDoesNotFailIntake(t *testing.T) {
	db, teardown, err := database.InitDB(":memory:", "", "")
	require.NoError(t, err)
	t.Cleanup(teardown)
	stored := trip.New(db)
	require.NoError(t, stored.Import(testDefinition(nil)))

	trips := trip.NewMock()
	trips.GetMatchFunc = stored.GetMatch
	trips.UpdateMatchProgressFunc = func(matchID string, status trip.MatchStatus, currentHole int) error {
		return errors.New("disk full")
	}
	queue := syncqueue.New(db)
	svc := scoring.NewService(trips, scoring.New(db), queue, metrics.NewMock(), metrics.New(db))

	_, err = svc.RecordHoleResult(context.Background(), "m1", 1, matchplay.WinnerTeamB)
	require.NoError(t, err)

	require.Len(t, trips.UpdateMatchProgressCalls, 1)
	assert.Equal(t, "m1", trips.UpdateMatchProgressCalls[0].MatchID)
	assert.Equal(t, trip.MatchInProgress, trips.UpdateMatchProgressCalls[0].Status)
	assert.Equal(t, 1, trips.UpdateMatchProgressCalls[0].CurrentHole)

	stats, err := queue.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending, "the event is committed and queued")

	_, err = svc.GetMatchState(context.Background(), "nope")
	assert.True(t, scoring.IsNotFound(err))
	assert.Equal(t, []string{"m1", "nope"}, trips.GetMatchCalls)
}
