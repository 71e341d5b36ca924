package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/matchplay-trip/internal/config"
	"github.com/mauv0809/matchplay-trip/internal/database"
	server "github.com/mauv0809/matchplay-trip/internal/http"
	"github.com/mauv0809/matchplay-trip/internal/metrics"
	"github.com/mauv0809/matchplay-trip/internal/reconcile"
	"github.com/mauv0809/matchplay-trip/internal/scoring"
	"github.com/mauv0809/matchplay-trip/internal/syncqueue"
	"github.com/mauv0809/matchplay-trip/internal/trip"
)

func main() {
	// Start profiling timer
	startTime := time.Now()
	log.SetFormatter(log.JSONFormatter)
	cfg := config.Load()
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	db, dbTeardown, err := database.InitDB(cfg.DBName, cfg.Turso.PrimaryURL, cfg.Turso.AuthToken)
	dbInitDuration := time.Since(startTime)
	log.Info("Database initialization time recorded", "duration_ms", dbInitDuration.Milliseconds())
	if err != nil {
		log.Fatalf("Failed to initialize database: %s", err)
	}
	defer func() {
		log.Info("Closing database connection")
		dbTeardown()
	}()

	tripStore := trip.New(db)
	if cfg.TripFile != "" {
		def, err := trip.LoadDefinitionFile(cfg.TripFile)
		if err != nil {
			log.Fatalf("Failed to load trip definition: %s", err)
		}
		if err := tripStore.Import(def); err != nil {
			log.Fatalf("Failed to import trip: %s", err)
		}
		log.Info("Trip imported", "tripID", def.ID, "file", cfg.TripFile)
	}

	queue := syncqueue.New(db)
	// Items left in flight by a crash go back to pending; the remote drops duplicates.
	if _, err := queue.RecoverInFlight(); err != nil {
		log.Fatalf("Failed to recover sync queue: %s", err)
	}

	metricsSvc := metrics.NewService()
	metricsHandler := metrics.NewMetricsHandler()

	var dispatcher *syncqueue.Dispatcher
	opts := []scoring.Option{}
	if cfg.Sync.Endpoint != "" {
		remote := reconcile.NewClient(cfg.Sync.Endpoint, cfg.Sync.Token)
		dispatcher = syncqueue.NewDispatcher(queue, remote, metricsSvc, cfg.DispatcherOptions())
		opts = append(opts, scoring.WithCommitHook(dispatcher.Trigger))
	} else {
		log.Warn("SYNC_ENDPOINT is not set, mutations stay queued locally")
	}
	scoringSvc := scoring.NewService(tripStore, scoring.New(db), queue, metricsSvc, metrics.New(db), opts...)

	s := server.NewScorerServer(scoringSvc, dispatcher, metricsSvc, metricsHandler, cfg)

	// --- Record startup time ---
	startupDuration := time.Since(startTime)
	metricsSvc.SetStartupTime(startupDuration.Seconds())
	log.Info("Startup time recorded", "duration_ms", startupDuration.Milliseconds())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcherDone := make(chan struct{})
	if dispatcher != nil {
		go func() {
			defer close(dispatcherDone)
			dispatcher.Run(ctx, cfg.Sync.Interval)
		}()
	} else {
		close(dispatcherDone)
	}

	// --- Graceful shutdown setup ---
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: s,
	}

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)

	// Start the server in a goroutine
	go func() {
		log.Info("Scorer started", "port", cfg.Port, "sync", cfg.Sync.Endpoint != "")
		serverErrors <- srv.ListenAndServe()
	}()

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received")

		// Create a context with a timeout for the shutdown.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Attempt to gracefully shut down the server.
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed", "error", err)
		} else {
			log.Info("Server gracefully stopped")
		}
	}

	stop()
	<-dispatcherDone
	log.Info("Server process shutting down")
}
