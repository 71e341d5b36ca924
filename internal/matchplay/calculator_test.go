package matchplay

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 9, 26, 8, 0, 0, 0, time.UTC)

// holes builds consecutive hole results starting at hole 1.
func holes(matchID string, winners ...Winner) []HoleResult {
	results := make([]HoleResult, 0, len(winners))
	for i, w := range winners {
		results = append(results, HoleResult{
			ID:         fmt.Sprintf("%s-h%d", matchID, i+1),
			MatchID:    matchID,
			HoleNumber: i + 1,
			Winner:     w,
			Kind:       KindResult,
			Timestamp:  baseTime.Add(time.Duration(i) * 10 * time.Minute),
		})
	}
	return results
}

func repeat(w Winner, n int) []Winner {
	out := make([]Winner, n)
	for i := range out {
		out[i] = w
	}
	return out
}

func concat(parts ...[]Winner) []Winner {
	var out []Winner
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestCompute_Scenarios(t *testing.T) {
	t.Run("in progress", func(t *testing.T) {
		state := Compute(holes("m1", WinnerTeamA, WinnerTeamA, WinnerTeamA, WinnerTeamA, WinnerTeamB))

		want := MatchState{
			CurrentScore:   3,
			HolesPlayed:    5,
			HolesRemaining: 13,
			Leader:         WinnerTeamA,
			WinningTeam:    WinnerNone,
			Margin:         3,
			DisplayScore:   "3 UP thru 5",
		}
		if diff := cmp.Diff(want, state); diff != "" {
			t.Errorf("unexpected state (-want +got):\n%s", diff)
		}
	})

	t.Run("closed out 4 and 3", func(t *testing.T) {
		winners := concat(repeat(WinnerTeamA, 4), repeat(WinnerHalved, 11))
		state := Compute(holes("m1", winners...))

		assert.True(t, state.IsClosedOut)
		assert.True(t, state.IsComplete)
		assert.False(t, state.IsDormie)
		assert.Equal(t, WinnerTeamA, state.WinningTeam)
		assert.Equal(t, 4, state.CurrentScore)
		assert.Equal(t, 15, state.HolesPlayed)
		assert.Equal(t, 3, state.HolesRemainingAtClinch)
		assert.Equal(t, "4&3", state.DisplayScore)
	})

	t.Run("dormie", func(t *testing.T) {
		winners := concat(repeat(WinnerTeamA, 3), repeat(WinnerHalved, 12))
		state := Compute(holes("m1", winners...))

		assert.True(t, state.IsDormie)
		assert.False(t, state.IsClosedOut)
		assert.False(t, state.IsComplete)
		assert.Equal(t, WinnerNone, state.WinningTeam)
		assert.Equal(t, 3, state.HolesRemaining)
		assert.Equal(t, "3 UP thru 15", state.DisplayScore)
	})

	t.Run("halved after 18", func(t *testing.T) {
		winners := concat(repeat(WinnerTeamA, 2), repeat(WinnerTeamB, 2), repeat(WinnerHalved, 14))
		state := Compute(holes("m1", winners...))

		assert.True(t, state.IsComplete)
		assert.False(t, state.IsClosedOut)
		assert.Equal(t, WinnerHalved, state.WinningTeam)
		assert.Equal(t, 0, state.HolesRemaining)
		assert.Equal(t, "Halved", state.DisplayScore)
	})

	t.Run("all square", func(t *testing.T) {
		state := Compute(holes("m1", WinnerTeamB, WinnerTeamA))
		assert.Equal(t, "AS", state.DisplayScore)
		assert.Equal(t, WinnerNone, state.Leader)
	})

	t.Run("no results", func(t *testing.T) {
		state := Compute(nil)
		assert.Equal(t, 0, state.HolesPlayed)
		assert.Equal(t, HolesPerMatch, state.HolesRemaining)
		assert.Equal(t, "AS", state.DisplayScore)
		assert.False(t, state.IsDormie)
	})

	t.Run("team B wins on the last hole", func(t *testing.T) {
		winners := concat(repeat(WinnerHalved, 17), []Winner{WinnerTeamB})
		state := Compute(holes("m1", winners...))

		assert.True(t, state.IsClosedOut)
		assert.Equal(t, WinnerTeamB, state.WinningTeam)
		assert.Equal(t, -1, state.CurrentScore)
		assert.Equal(t, "1 UP", state.DisplayScore)
	})
}

func TestCompute_FreezesAtClinch(t *testing.T) {
	// 5 up after 14 closes the match 5&4; holes 15-17 were recorded anyway.
	winners := concat(repeat(WinnerTeamA, 5), repeat(WinnerHalved, 9), repeat(WinnerTeamB, 3))
	state := Compute(holes("m1", winners...))

	assert.True(t, state.IsClosedOut)
	assert.Equal(t, 14, state.HolesPlayed)
	assert.Equal(t, 5, state.Margin)
	assert.Equal(t, "5&4", state.DisplayScore)
}

func TestCompute_ToleratesMalformedInput(t *testing.T) {
	results := holes("m1", WinnerTeamA, WinnerTeamB, WinnerTeamA)
	// Out of order, duplicated and out of range entries.
	input := []HoleResult{
		results[2],
		{MatchID: "m1", HoleNumber: 0, Winner: WinnerTeamB},
		results[0],
		{MatchID: "m1", HoleNumber: 19, Winner: WinnerTeamB},
		results[1],
		{MatchID: "m1", HoleNumber: 1, Winner: WinnerTeamB},
		{MatchID: "m1", HoleNumber: 7, Winner: Winner("garbage")},
	}

	require.NotPanics(t, func() { Compute(input) })
	state := Compute(input)
	assert.Equal(t, 4, state.HolesPlayed, "holes 1, 2, 3 and 7 count once each")
	assert.Equal(t, 1, state.CurrentScore)
	assert.Equal(t, 14, state.HolesRemaining)
}

func TestCompute_ScoreNeverExceedsRemainingWhileOpen(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	choices := []Winner{WinnerTeamA, WinnerTeamB, WinnerHalved, WinnerNone}

	for i := 0; i < 500; i++ {
		n := rng.Intn(HolesPerMatch + 1)
		winners := make([]Winner, n)
		for j := range winners {
			winners[j] = choices[rng.Intn(len(choices))]
		}
		state := Compute(holes("m", winners...))
		if state.HolesPlayed < HolesPerMatch && !state.IsClosedOut {
			require.Equal(t, HolesPerMatch-state.HolesPlayed, state.HolesRemaining, "winners=%v", winners)
			require.LessOrEqual(t, abs(state.CurrentScore), state.HolesRemaining, "winners=%v", winners)
		}
	}
}

func TestResolve(t *testing.T) {
	original := holes("m1", WinnerTeamA, WinnerTeamB)

	t.Run("correction replaces the original", func(t *testing.T) {
		correction := HoleResult{
			ID: "c1", MatchID: "m1", HoleNumber: 2, Winner: WinnerHalved,
			Kind: KindCorrection, Supersedes: original[1].ID, Timestamp: baseTime.Add(time.Hour),
		}
		resolved := Resolve(append(append([]HoleResult{}, original...), correction))

		require.Len(t, resolved, 2)
		assert.Equal(t, WinnerHalved, resolved[1].Winner)
		assert.Equal(t, "1 UP thru 2", ComputeFromLog(append(append([]HoleResult{}, original...), correction)).DisplayScore)
	})

	t.Run("undo removes the hole", func(t *testing.T) {
		undo := HoleResult{
			ID: "u1", MatchID: "m1", HoleNumber: 2, Winner: WinnerNone,
			Kind: KindUndo, Supersedes: original[1].ID, Timestamp: baseTime.Add(time.Hour),
		}
		state := ComputeFromLog(append(append([]HoleResult{}, original...), undo))

		assert.Equal(t, 1, state.HolesPlayed)
		assert.Equal(t, "1 UP thru 1", state.DisplayScore)
	})

	t.Run("an older correction loses to a newer original", func(t *testing.T) {
		stale := HoleResult{
			ID: "c2", MatchID: "m1", HoleNumber: 1, Winner: WinnerTeamB,
			Kind: KindCorrection, Timestamp: baseTime.Add(-time.Hour),
		}
		resolved := Resolve(append(append([]HoleResult{}, original...), stale))

		require.Len(t, resolved, 2)
		assert.Equal(t, WinnerTeamA, resolved[0].Winner)
	})

	t.Run("equal timestamps favour the later log entry", func(t *testing.T) {
		again := original[0]
		again.ID = "c3"
		again.Winner = WinnerHalved
		again.Kind = KindCorrection
		resolved := Resolve(append(append([]HoleResult{}, original...), again))

		assert.Equal(t, WinnerHalved, resolved[0].Winner)
	})
}
