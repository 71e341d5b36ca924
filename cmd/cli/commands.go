package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

var assumeYes bool

func init() {
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(holesCmd)
	rootCmd.AddCommand(standingsCmd)
	rootCmd.AddCommand(magicCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(correctCmd)
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(metricsCmd)

	syncDiscardCmd.Flags().BoolVar(&assumeYes, "yes", false, "Confirm that queued mutations are dropped for good")
	syncCmd.AddCommand(syncStatsCmd, syncFailedCmd, syncDispatchCmd, syncRetryCmd, syncDiscardCmd)
	rootCmd.AddCommand(syncCmd)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of the scorer",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/health", nil)
	},
}

var stateCmd = &cobra.Command{
	Use:   "state <match-id>",
	Short: "Show the live state of a match",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/matches/"+url.PathEscape(args[0])+"/state", nil)
	},
}

var holesCmd = &cobra.Command{
	Use:   "holes <match-id>",
	Short: "List every hole event of a match, including superseded ones",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/matches/"+url.PathEscape(args[0])+"/holes", nil)
	},
}

var standingsCmd = &cobra.Command{
	Use:   "standings <trip-id>",
	Short: "Show the team standings of a trip",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/trips/"+url.PathEscape(args[0])+"/standings", nil)
	},
}

var magicCmd = &cobra.Command{
	Use:   "magic <trip-id>",
	Short: "Show the leader's magic number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/trips/"+url.PathEscape(args[0])+"/magic-number", nil)
	},
}

var recordCmd = &cobra.Command{
	Use:   "record <match-id> <hole> <teamA|teamB|halved>",
	Short: "Record the result of a hole",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		hole, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("hole must be a number: %w", err)
		}
		body := map[string]any{"hole": hole, "winner": args[2]}
		return performRequest(http.MethodPost, "/matches/"+url.PathEscape(args[0])+"/holes", body)
	},
}

var correctCmd = &cobra.Command{
	Use:   "correct <match-id> <hole> <teamA|teamB|halved>",
	Short: "Correct the result of a hole",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{"winner": args[2]}
		return performRequest(http.MethodPost, holePath(args[0], args[1])+"/correct", body)
	},
}

var undoCmd = &cobra.Command{
	Use:   "undo <match-id> <hole>",
	Short: "Withdraw the result of a hole",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodPost, holePath(args[0], args[1])+"/undo", nil)
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Get application metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/metrics", nil)
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Inspect and administer the sync queue",
}

var syncStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue counts and the circuit state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/sync/stats", nil)
	},
}

var syncFailedCmd = &cobra.Command{
	Use:   "failed",
	Short: "List failed sync items",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/sync/items?status=failed", nil)
	},
}

var syncDispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Run a dispatch cycle now",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodPost, "/sync/dispatch", nil)
	},
}

var syncRetryCmd = &cobra.Command{
	Use:   "retry [item-id]",
	Short: "Requeue one failed item, or every failed item",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return performRequest(http.MethodPost, "/sync/items/"+url.PathEscape(args[0])+"/retry", nil)
		}
		return performRequest(http.MethodPost, "/sync/retry", nil)
	},
}

var syncDiscardCmd = &cobra.Command{
	Use:   "discard [item-id]",
	Short: "Drop one queued item, or every item not in flight",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !assumeYes {
			return fmt.Errorf("discarded mutations never reach the remote, pass --yes to confirm")
		}
		if len(args) == 1 {
			return performRequest(http.MethodDelete, "/sync/items/"+url.PathEscape(args[0])+"?confirm=true", nil)
		}
		return performRequest(http.MethodDelete, "/sync/items?confirm=true", nil)
	},
}

func holePath(matchID, hole string) string {
	return "/matches/" + url.PathEscape(matchID) + "/holes/" + url.PathEscape(hole)
}

func performRequest(method, endpoint string, body any) error {
	url := host + endpoint
	fmt.Printf("Making %s request to %s\n", method, url)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	fmt.Printf("Status Code: %d\n", resp.StatusCode)
	fmt.Println("Response Body:")
	fmt.Println(string(respBody))

	return nil
}
