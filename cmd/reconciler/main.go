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
	"github.com/mauv0809/matchplay-trip/internal/notifier"
	"github.com/mauv0809/matchplay-trip/internal/notifier/slack"
	"github.com/mauv0809/matchplay-trip/internal/pubsub"
	"github.com/mauv0809/matchplay-trip/internal/reconcile"
	"github.com/mauv0809/matchplay-trip/internal/trip"
)

func main() {
	startTime := time.Now()
	log.SetFormatter(log.JSONFormatter)
	cfg := config.Load()
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	auth, err := reconcile.ParseTokens(cfg.ReconcileTokens)
	if err != nil {
		log.Fatalf("Invalid RECONCILE_TOKENS: %s", err)
	}
	if len(auth) == 0 {
		log.Warn("RECONCILE_TOKENS is empty, every sync request will be rejected")
	}

	db, dbTeardown, err := database.InitDB(cfg.DBName, cfg.Turso.PrimaryURL, cfg.Turso.AuthToken)
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsSvc := metrics.NewService()
	metricsHandler := metrics.NewMetricsHandler()

	var n notifier.Notifier = notifier.LogNotifier{}
	if cfg.Slack.Enabled() {
		n = slack.NewNotifier(cfg.Slack.Token, cfg.Slack.ChannelID, metricsSvc)
	} else {
		log.Warn("Slack is not configured, announcements will only be logged")
	}

	ps, err := pubsub.New(ctx, cfg.ProjectID)
	if err != nil {
		log.Fatalf("Failed to initialize pubsub: %s", err)
	}
	defer ps.Close()

	rec := reconcile.NewService(reconcile.NewStore(db), tripStore, auth, n, ps, metricsSvc)
	s := server.NewReconcilerServer(rec, metricsSvc, metricsHandler, cfg)
	metricsSvc.SetStartupTime(time.Since(startTime).Seconds())

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: s,
	}
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Reconciler started", "port", cfg.Port)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed", "error", err)
		} else {
			log.Info("Server gracefully stopped")
		}
	}
	log.Info("Reconciler shutting down")
}
