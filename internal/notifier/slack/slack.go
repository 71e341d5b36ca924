package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/matchplay-trip/internal/matchplay"
	"github.com/mauv0809/matchplay-trip/internal/metrics"
	"github.com/mauv0809/matchplay-trip/internal/notifier"
	"github.com/slack-go/slack"
)

// slackClient is an interface that contains the methods from the slack.Client that we use.
// This allows for easy mocking in tests.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

var _ notifier.Notifier = &Notifier{}

// Notifier handles sending notifications to Slack.
type Notifier struct {
	api       slackClient
	channelID string
	metrics   metrics.Metrics
}

// NewNotifier creates a new Notifier.
func NewNotifier(token, channelID string, metrics metrics.Metrics) *Notifier {
	return &Notifier{
		api:       slack.New(token),
		channelID: channelID,
		metrics:   metrics,
	}
}

// NewNotifierWithAPI creates a new Notifier with a specific client.
// Useful for tests that need to intercept API calls.
func NewNotifierWithAPI(api slackClient, channelID string, metrics metrics.Metrics) *Notifier {
	return &Notifier{
		api:       api,
		channelID: channelID,
		metrics:   metrics,
	}
}

func (s *Notifier) sendMessage(message slack.Message, dryRun bool) (string, string, error) {
	if dryRun {
		jsonMsg, _ := json.MarshalIndent(message, "", "  ")
		log.Info("[Dry Run] Would send Slack message", "channel", s.channelID, "message", string(jsonMsg))
		return "dry-run-ts", "dry-run-thread-ts", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	channelID, timestamp, err := s.api.PostMessageContext(
		ctx,
		s.channelID,
		slack.MsgOptionBlocks(message.Blocks.BlockSet...),
		slack.MsgOptionAsUser(true),
	)
	if err != nil {
		s.metrics.IncSlackNotifFailed()
		log.Error("Failed to send Slack message", "error", err, "channel", s.channelID)
		return "", "", fmt.Errorf("failed to post message: %w", err)
	}

	s.metrics.IncSlackNotifSent()
	log.Info("Successfully sent Slack message", "channel", channelID, "timestamp", timestamp)
	return channelID, timestamp, nil
}

func (s *Notifier) SendMatchDecided(match notifier.MatchDecided, dryRun bool) (string, error) {
	_, ts, err := s.sendMessage(s.formatMatchDecided(match), dryRun)
	return ts, err
}

func (s *Notifier) SendTripClinched(clinch notifier.TripClinched, dryRun bool) (string, error) {
	_, ts, err := s.sendMessage(s.formatTripClinched(clinch), dryRun)
	return ts, err
}

func (s *Notifier) SendStandings(summary notifier.StandingsSummary, dryRun bool) (string, error) {
	_, ts, err := s.sendMessage(s.formatStandings(summary), dryRun)
	return ts, err
}

// formatMatchDecided creates the Block Kit message for a finished match.
func (s *Notifier) formatMatchDecided(match notifier.MatchDecided) slack.Message {
	blocks := make([]slack.Block, 0)

	headerText := slack.NewTextBlockObject("plain_text", "⛳ Match decided! ⛳", true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))

	resultText := fmt.Sprintf("*%s*", resultLine(match))
	blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("mrkdwn", resultText, false, false), nil, nil))

	lineup := fmt.Sprintf("%s: %s\n%s: %s",
		teamName(match.TeamAName, matchplay.SideA), joinPlayers(match.PlayersA),
		teamName(match.TeamBName, matchplay.SideB), joinPlayers(match.PlayersB),
	)
	blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", lineup, true, false), nil, nil))

	var contextElements []slack.MixedElement
	if match.TripName != "" {
		contextElements = append(contextElements, slack.NewTextBlockObject("plain_text", match.TripName, true, false))
	}
	if match.SessionName != "" {
		contextElements = append(contextElements, slack.NewTextBlockObject("plain_text", match.SessionName, true, false))
	}
	contextElements = append(contextElements, slack.NewTextBlockObject("plain_text", fmt.Sprintf("%d holes played", match.State.HolesPlayed), true, false))
	blocks = append(blocks, slack.NewContextBlock("", contextElements...))

	return slack.NewBlockMessage(blocks...)
}

// formatTripClinched creates the Block Kit message announcing the trip winner.
func (s *Notifier) formatTripClinched(clinch notifier.TripClinched) slack.Message {
	blocks := make([]slack.Block, 0)

	headerText := slack.NewTextBlockObject("plain_text", fmt.Sprintf("🏆 %s win the trip! 🏆", clinch.WinnerName), true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))
	blocks = append(blocks, scoreboardBlock(clinch.StandingsSummary))

	target := fmt.Sprintf("%s points needed to win", formatPoints(clinch.MagicNumber.PointsToWin))
	blocks = append(blocks, slack.NewContextBlock("", slack.NewTextBlockObject("plain_text", target, true, false)))

	return slack.NewBlockMessage(blocks...)
}

// formatStandings creates the Block Kit scoreboard with the leader's magic number.
func (s *Notifier) formatStandings(summary notifier.StandingsSummary) slack.Message {
	blocks := make([]slack.Block, 0)

	title := "Standings"
	if summary.TripName != "" {
		title = summary.TripName + " standings"
	}
	blocks = append(blocks, slack.NewHeaderBlock(slack.NewTextBlockObject("plain_text", title, true, false)))
	blocks = append(blocks, scoreboardBlock(summary))

	mn := summary.MagicNumber
	var note string
	switch {
	case mn.Clinched:
		note = fmt.Sprintf("%s have clinched the trip", sideName(summary, mn.Team))
	case mn.Team == matchplay.WinnerNone:
		note = fmt.Sprintf("All square, %s points needed to win", formatPoints(mn.PointsToWin))
	default:
		note = fmt.Sprintf("Magic number for %s: %d", sideName(summary, mn.Team), mn.Points)
	}
	blocks = append(blocks, slack.NewContextBlock("", slack.NewTextBlockObject("plain_text", note, true, false)))

	return slack.NewBlockMessage(blocks...)
}

func scoreboardBlock(summary notifier.StandingsSummary) slack.Block {
	a, b := summary.Standings.TeamA, summary.Standings.TeamB
	text := fmt.Sprintf("*%s* %s  -  %s *%s*\n> Decided %d | Halved %d | In progress %d",
		teamName(summary.TeamAName, matchplay.SideA), formatPoints(a.Points),
		formatPoints(b.Points), teamName(summary.TeamBName, matchplay.SideB),
		a.MatchesWon+a.MatchesLost+a.MatchesHalved, a.MatchesHalved, a.MatchesInProgress,
	)
	return slack.NewSectionBlock(slack.NewTextBlockObject("mrkdwn", text, false, false), nil, nil)
}

// resultLine renders e.g. "USA win 4&3" or "Match halved".
func resultLine(match notifier.MatchDecided) string {
	switch match.State.WinningTeam {
	case matchplay.WinnerTeamA:
		return fmt.Sprintf("%s win %s", teamName(match.TeamAName, matchplay.SideA), match.State.DisplayScore)
	case matchplay.WinnerTeamB:
		return fmt.Sprintf("%s win %s", teamName(match.TeamBName, matchplay.SideB), match.State.DisplayScore)
	case matchplay.WinnerHalved:
		return "Match halved"
	}
	return match.State.DisplayScore
}

func sideName(summary notifier.StandingsSummary, w matchplay.Winner) string {
	if w == matchplay.WinnerTeamB {
		return teamName(summary.TeamBName, matchplay.SideB)
	}
	return teamName(summary.TeamAName, matchplay.SideA)
}

func teamName(name string, side matchplay.TeamSide) string {
	if name != "" {
		return name
	}
	return "Team " + string(side)
}

func joinPlayers(players []string) string {
	if len(players) == 0 {
		return "-"
	}
	return strings.Join(players, " & ")
}

// formatPoints prints whole points without decimals and half points as ".5".
func formatPoints(p float64) string {
	if p == float64(int(p)) {
		return fmt.Sprintf("%d", int(p))
	}
	return fmt.Sprintf("%.1f", p)
}
