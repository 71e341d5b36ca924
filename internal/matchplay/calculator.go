package matchplay

import (
	"fmt"
	"sort"
)

// Compute derives the match state from a sequence of hole results. It never fails:
// out-of-range holes and repeated holes are skipped, and input order does not matter.
// Once the match is closed out the state is frozen at the clinching hole; later
// results are ignored.
func Compute(results []HoleResult) MatchState {
	ordered := make([]HoleResult, 0, len(results))
	for _, r := range results {
		if r.HoleNumber < 1 || r.HoleNumber > HolesPerMatch {
			continue
		}
		ordered = append(ordered, r)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].HoleNumber < ordered[j].HoleNumber
	})

	var (
		seen                 = make(map[int]bool, len(ordered))
		teamAWins, teamBWins int
		played               int
	)
	state := MatchState{
		HolesRemaining: HolesPerMatch,
		Leader:         WinnerNone,
		WinningTeam:    WinnerNone,
	}

	for _, r := range ordered {
		if seen[r.HoleNumber] {
			continue
		}
		seen[r.HoleNumber] = true
		played++

		switch r.Winner {
		case WinnerTeamA:
			teamAWins++
		case WinnerTeamB:
			teamBWins++
		}

		diff := teamAWins - teamBWins
		remaining := HolesPerMatch - played
		if abs(diff) > remaining {
			return closedOut(diff, played, remaining)
		}
	}

	diff := teamAWins - teamBWins
	state.CurrentScore = diff
	state.HolesPlayed = played
	state.HolesRemaining = HolesPerMatch - played
	state.Margin = abs(diff)
	state.Leader = leader(diff)

	if played == HolesPerMatch {
		// A non-zero lead after 18 holes is always caught by the clinch check above.
		state.IsComplete = true
		state.WinningTeam = WinnerHalved
		if diff != 0 {
			state.WinningTeam = leader(diff)
		}
		state.DisplayScore = displayScore(state)
		return state
	}

	state.IsDormie = state.Margin > 0 && state.Margin == state.HolesRemaining
	state.DisplayScore = displayScore(state)
	return state
}

// ComputeFromLog resolves corrections in a raw event log and computes the state.
func ComputeFromLog(events []HoleResult) MatchState {
	return Compute(Resolve(events))
}

// Resolve collapses a hole-event log into at most one result per hole. The latest
// event for a hole wins, by timestamp and then by log position. An undo as the latest
// event removes the hole. The output is ordered by hole number.
func Resolve(events []HoleResult) []HoleResult {
	latest := make(map[int]int, len(events))
	for i, e := range events {
		j, ok := latest[e.HoleNumber]
		if !ok || !e.Timestamp.Before(events[j].Timestamp) {
			latest[e.HoleNumber] = i
		}
	}

	resolved := make([]HoleResult, 0, len(latest))
	for _, i := range latest {
		if events[i].Kind == KindUndo {
			continue
		}
		resolved = append(resolved, events[i])
	}
	sort.Slice(resolved, func(i, j int) bool {
		return resolved[i].HoleNumber < resolved[j].HoleNumber
	})
	return resolved
}

func closedOut(diff, played, remaining int) MatchState {
	s := MatchState{
		CurrentScore:           diff,
		HolesPlayed:            played,
		HolesRemaining:         remaining,
		IsClosedOut:            true,
		IsComplete:             true,
		Leader:                 leader(diff),
		WinningTeam:            leader(diff),
		Margin:                 abs(diff),
		HolesRemainingAtClinch: remaining,
	}
	s.DisplayScore = displayScore(s)
	return s
}

func displayScore(s MatchState) string {
	switch {
	case s.IsClosedOut && s.HolesRemainingAtClinch == 0:
		return fmt.Sprintf("%d UP", s.Margin)
	case s.IsClosedOut:
		return fmt.Sprintf("%d&%d", s.Margin, s.HolesRemainingAtClinch)
	case s.IsComplete:
		return "Halved"
	case s.CurrentScore == 0:
		return "AS"
	default:
		return fmt.Sprintf("%d UP thru %d", s.Margin, s.HolesPlayed)
	}
}

func leader(diff int) Winner {
	switch {
	case diff > 0:
		return WinnerTeamA
	case diff < 0:
		return WinnerTeamB
	}
	return WinnerNone
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
