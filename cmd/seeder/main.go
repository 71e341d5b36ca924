package main

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/matchplay-trip/internal/config"
	"github.com/mauv0809/matchplay-trip/internal/database"
	"github.com/mauv0809/matchplay-trip/internal/matchplay"
	"github.com/mauv0809/matchplay-trip/internal/metrics"
	"github.com/mauv0809/matchplay-trip/internal/scoring"
	"github.com/mauv0809/matchplay-trip/internal/syncqueue"
	"github.com/mauv0809/matchplay-trip/internal/trip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	seed     int64
	maxHoles int
)

var rootCmd = &cobra.Command{
	Use:   "seeder",
	Short: "Load trips into the database and fill them with simulated results",
}

func init() {
	simulateCmd.Flags().Int64Var(&seed, "seed", 0, "Random seed, 0 uses the current time")
	simulateCmd.Flags().IntVar(&maxHoles, "holes", matchplay.HolesPerMatch, "Play each match up to this hole")
	rootCmd.AddCommand(importCmd, simulateCmd)
}

var importCmd = &cobra.Command{
	Use:   "import <trip.yaml>",
	Short: "Import or update a trip definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := trip.LoadDefinitionFile(args[0])
		if err != nil {
			return err
		}
		db, teardown, err := openDB()
		if err != nil {
			return err
		}
		defer teardown()

		if err := trip.New(db).Import(def); err != nil {
			return err
		}
		var matches int
		for _, s := range def.Sessions {
			matches += len(s.Matches)
		}
		log.Info("Imported trip", "tripID", def.ID, "name", def.Name, "sessions", len(def.Sessions), "matches", matches)
		return nil
	},
}

var simulateCmd = &cobra.Command{
	Use:   "simulate <trip-id>",
	Short: "Record random hole results for every unfinished match of a trip",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if maxHoles < 1 || maxHoles > matchplay.HolesPerMatch {
			return fmt.Errorf("--holes must be between 1 and %d", matchplay.HolesPerMatch)
		}
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		db, teardown, err := openDB()
		if err != nil {
			return err
		}
		defer teardown()

		trips := trip.New(db)
		// Results go through the scoring service so they are queued for sync like
		// any scorer input.
		svc := scoring.NewService(trips, scoring.New(db), syncqueue.New(db),
			metrics.NewService(prometheus.NewRegistry()), metrics.New(db))
		return simulate(cmd.Context(), svc, trips, args[0], rand.New(rand.NewSource(seed)))
	},
}

var winners = []matchplay.Winner{matchplay.WinnerTeamA, matchplay.WinnerTeamB, matchplay.WinnerHalved}

func simulate(ctx context.Context, svc *scoring.Service, trips trip.TripStore, tripID string, rng *rand.Rand) error {
	matches, err := trips.GetMatchesByTrip(tripID)
	if err != nil {
		return err
	}
	startTime := time.Now()
	var recorded int
	for _, m := range matches {
		state, err := svc.GetMatchState(ctx, m.ID)
		if err != nil {
			return err
		}
		for hole := state.HolesPlayed + 1; !state.IsComplete && hole <= maxHoles; hole++ {
			if _, err := svc.RecordHoleResult(ctx, m.ID, hole, winners[rng.Intn(len(winners))]); err != nil {
				return fmt.Errorf("match %s hole %d: %w", m.ID, hole, err)
			}
			recorded++
			if state, err = svc.GetMatchState(ctx, m.ID); err != nil {
				return err
			}
		}
		log.Info("Simulated match", "matchID", m.ID, "result", state.DisplayScore)
	}

	standings, err := svc.GetTeamStandings(ctx, tripID)
	if err != nil {
		return err
	}
	log.Info("Simulation finished", "tripID", tripID, "holes", recorded, "teamA", standings.TeamA.Points,
		"teamB", standings.TeamB.Points, "seed", seed, "duration", time.Since(startTime))
	return nil
}

func openDB() (*sql.DB, func(), error) {
	cfg := config.Load()
	return database.InitDB(cfg.DBName, cfg.Turso.PrimaryURL, cfg.Turso.AuthToken)
}

func main() {
	log.Info("Starting database seeder...")
	if err := rootCmd.Execute(); err != nil {
		log.Error("Seeder failed", "error", err)
		os.Exit(1)
	}
}
