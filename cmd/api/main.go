package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"google.golang.org/grpc"

	"beacon/internal/api"
	"beacon/internal/api/handlers"
	apimiddleware "beacon/internal/api/middleware"
	"beacon/internal/config"
	"beacon/internal/domain/services"
	"beacon/internal/domain/services/ai"
	grpcserver "beacon/internal/grpc/beacon"
	"beacon/internal/infrastructure/cache"
	"beacon/internal/infrastructure/database"
	"beacon/internal/infrastructure/database/repository"
	"beacon/internal/infrastructure/geocode"
	"beacon/internal/infrastructure/storage"
	"beacon/internal/jobs"
	"beacon/internal/streaming"
	"beacon/pkg/logger"
)

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
	logger.SetGlobal(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	log.Info().
		Str("app", cfg.App.Name).
		Str("env", cfg.App.Environment).
		Str("version", cfg.App.Version).
		Msg("starting Beacon API")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize infrastructure
	infra, err := initInfrastructure(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize infrastructure")
	}
	defer infra.Close()

	evidence, err := storage.New(cfg.Evidence, cfg.Submission.MaxFileSize, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize evidence storage")
	}

	// Initialize streaming infrastructure
	var natsPublisher *streaming.NATSPublisher
	if cfg.NATS.Enabled {
		natsPublisher, err = streaming.NewNATSPublisher(ctx, cfg.NATS, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to NATS, continuing without event streaming")
		} else {
			defer natsPublisher.Close()
		}
	}

	eventBus := streaming.NewEventBus(natsPublisher, log)
	defer eventBus.Close()
	log.Info().Bool("nats_enabled", natsPublisher != nil).Msg("event bus initialized")

	// Events published by other API instances
	go func() {
		if err := eventBus.ListenRemote(ctx); err != nil {
			log.Warn().Err(err).Msg("not receiving events from other instances")
		}
	}()

	wsHub := streaming.NewWebSocketHub(log)
	go wsHub.Run(ctx)
	go streaming.ForwardToHub(ctx, eventBus, wsHub)
	eventPublisher := streaming.NewEventBusPublisher(eventBus)

	// Initialize services
	var hotspots *services.HotspotService
	if infra.cache != nil {
		hotspots = services.NewHotspotService(
			infra.cache,
			infra.complaints,
			geocode.NewNominatim(cfg.Geocoder, log),
			services.HotspotOptions{
				DefaultRadiusKm: cfg.Heatmap.DefaultRadiusKm,
				MaxRadiusKm:     cfg.Heatmap.MaxRadiusKm,
				ZoneCellKm:      cfg.Heatmap.ZoneCellKm,
				Lookback:        cfg.Heatmap.Lookback,
			},
			log,
		)
	} else {
		log.Warn().Msg("running without Redis - hotspots, rate limits and language persistence disabled")
	}

	complaintOpts := []services.ComplaintServiceOption{services.WithPublisher(eventPublisher)}
	if hotspots != nil {
		complaintOpts = append(complaintOpts, services.WithIndexer(hotspots))
	}
	complaints := services.NewComplaintService(
		infra.complaints,
		evidence,
		services.NewRiskScorer(),
		services.SubmissionLimits{
			MaxFiles:       cfg.Submission.MaxFiles,
			MaxFileSize:    cfg.Submission.MaxFileSize,
			CaseIDAttempts: cfg.Submission.CaseIDAttempts,
		},
		log,
		complaintOpts...,
	)

	var languageStore services.LanguageStore
	if infra.cache != nil {
		languageStore = infra.cache
	}
	sessions := services.NewSessionService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiration, languageStore, log)

	contacts, err := services.LoadContactDirectory(cfg.SOS.ContactsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load emergency contacts")
	}
	location, err := time.LoadLocation(cfg.SOS.Timezone)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.SOS.Timezone).Msg("unknown timezone")
	}
	sos := services.NewSOSService(contacts, cfg.SOS.AppName, location, eventPublisher, log)

	llm := ai.NewLLMClient(ai.ConfigFrom(cfg.LLM), log)
	relay := ai.NewRelay(llm, log)
	log.Info().Str("provider", llm.Provider()).Msg("conversation relay initialized")

	// Scheduled jobs
	var runner *jobs.Runner
	if cfg.Jobs.Enabled {
		runner = newJobRunner(cfg, infra, hotspots, complaints, log)
		runner.Start()
	}

	// Create handlers
	deps := handlers.Dependencies{
		Version:    cfg.App.Version,
		Checks:     infra.checks(),
		Complaints: complaints,
		Submission: cfg.Submission,
		Relay:      relay,
		Salary:     services.NewSalaryTracker(cfg.Salary.Signature, time.Now),
		SOS:        sos,
		Sessions:   sessions,
		WSHub:      wsHub,
		EventBus:   eventBus,
		Logger:     log,
	}
	if hotspots != nil {
		deps.Hotspots = hotspots
	}
	if runner != nil {
		deps.Jobs = runner
	}
	h := handlers.NewHandlers(deps)

	// Create router
	var limits apimiddleware.RateLimitStore
	if infra.cache != nil {
		limits = infra.cache
	}
	router := api.NewRouter(*cfg, h, sessions, limits, log)

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Create gRPC server for health probes
	grpcServer := grpc.NewServer()
	probes := make(map[string]grpcserver.Probe)
	for name, check := range infra.checks() {
		probes[name] = grpcserver.Probe(check)
	}
	healthChecker := grpcserver.RegisterHealthServer(grpcServer, probes, 10*time.Second, log)
	go healthChecker.Run(ctx)

	// Start HTTP server
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("HTTP server starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Start gRPC server
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to listen for gRPC")
		}
		log.Info().Str("addr", addr).Msg("gRPC server starting")
		if err := grpcServer.Serve(lis); err != nil {
			log.Error().Err(err).Msg("gRPC server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down...")

	// Cancel context to stop background services
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	grpcServer.GracefulStop()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if runner != nil {
		runner.Stop(shutdownCtx)
	}

	log.Info().Msg("shutdown complete")
}

// infrastructure holds the storage connections shared by the services
type infrastructure struct {
	postgres   *database.PostgresDB
	sqlite     *sql.DB
	cache      *cache.RedisCache
	complaints services.ComplaintRepository
}

// initInfrastructure opens the complaint store for the configured driver
// and, when enabled, Redis
func initInfrastructure(ctx context.Context, cfg *config.Config, log *logger.Logger) (*infrastructure, error) {
	infra := &infrastructure{}

	switch cfg.Database.Driver {
	case "sqlite":
		db, err := database.OpenSQLite(ctx, cfg.Database.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		infra.sqlite = db
		infra.complaints = repository.NewSQLiteComplaintRepository(db)
	default:
		db, err := database.NewPostgres(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		infra.postgres = db
		infra.complaints = repository.NewComplaintRepository(db.Pool())
	}

	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedis(ctx, cfg.Redis, log)
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		infra.cache = redisCache
	}

	return infra, nil
}

// checks returns the readiness probes for the open connections
func (i *infrastructure) checks() map[string]handlers.Checker {
	checks := map[string]handlers.Checker{}
	if i.postgres != nil {
		checks["postgres"] = i.postgres.Ping
	}
	if i.sqlite != nil {
		checks["sqlite"] = i.sqlite.PingContext
	}
	if i.cache != nil {
		checks["redis"] = i.cache.Ping
	} else {
		checks["redis"] = nil
	}
	return checks
}

// Close releases every open connection
func (i *infrastructure) Close() {
	if i.postgres != nil {
		i.postgres.Close()
	}
	if i.sqlite != nil {
		i.sqlite.Close()
	}
	if i.cache != nil {
		i.cache.Close()
	}
}

func newJobRunner(cfg *config.Config, infra *infrastructure, hotspots *services.HotspotService, complaints *services.ComplaintService, log *logger.Logger) *jobs.Runner {
	var locker jobs.Locker
	if infra.cache != nil {
		locker = infra.cache
	}
	runner := jobs.NewRunner(locker, cfg.Jobs.LockTTL, log)

	if hotspots != nil {
		if err := runner.Register(jobs.NewHotspotRebuildJob(cfg.Jobs.HotspotSchedule, hotspots)); err != nil {
			log.Fatal().Err(err).Msg("failed to register hotspot job")
		}
	}
	if err := runner.Register(jobs.NewStaleSweepJob(cfg.Jobs.SweepSchedule, cfg.Jobs.StaleAfter, complaints)); err != nil {
		log.Fatal().Err(err).Msg("failed to register sweep job")
	}
	return runner
}
