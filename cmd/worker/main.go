package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"beacon/internal/config"
	"beacon/internal/domain/services"
	"beacon/internal/infrastructure/cache"
	"beacon/internal/infrastructure/database"
	"beacon/internal/infrastructure/database/repository"
	"beacon/internal/jobs"
	"beacon/pkg/logger"
)

// The worker runs the maintenance jobs for deployments that keep them out of
// the API process (jobs.enabled=false there). Both can run at once; the
// Redis job lock keeps a run exclusive.
func main() {
	// Load configuration
	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		TimeFormat: cfg.Logger.TimeFormat,
	})
	log = log.WithComponent("jobs-worker")
	logger.SetGlobal(log)

	log.Info().
		Str("app", cfg.App.Name).
		Str("env", cfg.App.Environment).
		Str("version", cfg.App.Version).
		Msg("starting Beacon jobs worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, closeDB, err := openComplaints(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open complaint store")
	}
	defer closeDB()

	if !cfg.Redis.Enabled {
		log.Fatal().Msg("the jobs worker needs Redis for the hotspot index and job locks")
	}
	redisCache, err := cache.NewRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer redisCache.Close()

	hotspots := services.NewHotspotService(redisCache, repo, nil, services.HotspotOptions{
		DefaultRadiusKm: cfg.Heatmap.DefaultRadiusKm,
		MaxRadiusKm:     cfg.Heatmap.MaxRadiusKm,
		ZoneCellKm:      cfg.Heatmap.ZoneCellKm,
		Lookback:        cfg.Heatmap.Lookback,
	}, log)
	// evidence is never stored from here; only the sweep uses this service
	complaints := services.NewComplaintService(repo, nil, services.NewRiskScorer(), services.DefaultSubmissionLimits(), log)

	runner := jobs.NewRunner(redisCache, cfg.Jobs.LockTTL, log)
	if err := runner.Register(jobs.NewHotspotRebuildJob(cfg.Jobs.HotspotSchedule, hotspots)); err != nil {
		log.Fatal().Err(err).Msg("failed to register hotspot job")
	}
	if err := runner.Register(jobs.NewStaleSweepJob(cfg.Jobs.SweepSchedule, cfg.Jobs.StaleAfter, complaints)); err != nil {
		log.Fatal().Err(err).Msg("failed to register sweep job")
	}

	// Warm the index on start so the heatmap is not empty until the first tick
	if _, err := runner.RunNow(ctx, jobs.HotspotRebuild); err != nil {
		log.Warn().Err(err).Msg("initial hotspot rebuild skipped")
	}
	runner.Start()

	// Handle shutdown signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down jobs worker...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	runner.Stop(shutdownCtx)

	log.Info().Msg("shutdown complete")
}

// openComplaints opens the complaint repository for the configured driver
func openComplaints(ctx context.Context, cfg *config.Config, log *logger.Logger) (services.ComplaintRepository, func(), error) {
	if cfg.Database.Driver == "sqlite" {
		db, err := database.OpenSQLite(ctx, cfg.Database.SQLitePath, log)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewSQLiteComplaintRepository(db), func() { closeSQL(db) }, nil
	}

	db, err := database.NewPostgres(ctx, cfg.Database, log)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return repository.NewComplaintRepository(db.Pool()), db.Close, nil
}

func closeSQL(db *sql.DB) {
	_ = db.Close()
}

