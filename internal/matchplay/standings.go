package matchplay

import "math"

// Aggregate folds the state of every match in a trip into team standings. Matches
// without results contribute nothing; started but undecided matches are counted as
// in progress and earn no points.
func Aggregate(matches []MatchResults) Standings {
	st := Standings{
		TeamA: TeamStanding{Side: SideA},
		TeamB: TeamStanding{Side: SideB},
	}
	for _, m := range matches {
		state := ComputeFromLog(m.Results)
		if state.HolesPlayed == 0 {
			continue
		}
		if !state.IsClosedOut && state.HolesPlayed < HolesPerMatch {
			st.TeamA.MatchesInProgress++
			st.TeamB.MatchesInProgress++
			continue
		}

		switch state.WinningTeam {
		case WinnerTeamA:
			st.TeamA.Points++
			st.TeamA.MatchesWon++
			st.TeamB.MatchesLost++
		case WinnerTeamB:
			st.TeamB.Points++
			st.TeamB.MatchesWon++
			st.TeamA.MatchesLost++
		default:
			st.TeamA.Points += 0.5
			st.TeamB.Points += 0.5
			st.TeamA.MatchesHalved++
			st.TeamB.MatchesHalved++
		}
	}
	return st
}

// DefaultPointsToWin is an outright majority of the points available.
func DefaultPointsToWin(totalPointsAvailable float64) float64 {
	return math.Floor(totalPointsAvailable/2) + 1
}

// CalculateMagicNumber returns how many more points the leading team needs to clinch
// the trip. A non-positive pointsToWin falls back to DefaultPointsToWin. When the teams
// are level nobody holds the magic number.
func CalculateMagicNumber(st Standings, totalPointsAvailable, pointsToWin float64) MagicNumber {
	if pointsToWin <= 0 {
		pointsToWin = DefaultPointsToWin(totalPointsAvailable)
	}

	lead := math.Max(st.TeamA.Points, st.TeamB.Points)
	points := int(math.Max(0, math.Ceil(pointsToWin-lead)))

	mn := MagicNumber{
		Team:        WinnerNone,
		Points:      points,
		PointsToWin: pointsToWin,
	}
	switch {
	case st.TeamA.Points > st.TeamB.Points:
		mn.Team = WinnerTeamA
	case st.TeamB.Points > st.TeamA.Points:
		mn.Team = WinnerTeamB
	}
	mn.Clinched = mn.Team != WinnerNone && points == 0
	return mn
}
