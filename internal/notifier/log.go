package notifier

import "github.com/charmbracelet/log"

// LogNotifier writes announcements to the log. It stands in for Slack when no
// bot token is configured.
type LogNotifier struct{}

var _ Notifier = LogNotifier{}

func (LogNotifier) SendMatchDecided(match MatchDecided, dryRun bool) (string, error) {
	log.Info("Match decided", "trip", match.TripName, "session", match.SessionName, "matchID", match.MatchID,
		"winner", match.State.WinningTeam, "result", match.State.DisplayScore, "dryRun", dryRun)
	return "", nil
}

func (LogNotifier) SendTripClinched(clinch TripClinched, dryRun bool) (string, error) {
	log.Info("Trip clinched", "trip", clinch.TripName, "winner", clinch.WinnerName,
		"teamA", clinch.Standings.TeamA.Points, "teamB", clinch.Standings.TeamB.Points, "dryRun", dryRun)
	return "", nil
}

func (LogNotifier) SendStandings(summary StandingsSummary, dryRun bool) (string, error) {
	log.Info("Standings", "trip", summary.TripName,
		summary.TeamAName, summary.Standings.TeamA.Points, summary.TeamBName, summary.Standings.TeamB.Points,
		"magicNumber", summary.MagicNumber.Points, "dryRun", dryRun)
	return "", nil
}
