package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andrescamacho/fleetdispatch/internal/adapters/cache"
	"github.com/andrescamacho/fleetdispatch/internal/adapters/device"
	"github.com/andrescamacho/fleetdispatch/internal/adapters/events"
	"github.com/andrescamacho/fleetdispatch/internal/adapters/httpapi"
	"github.com/andrescamacho/fleetdispatch/internal/adapters/metrics"
	"github.com/andrescamacho/fleetdispatch/internal/adapters/ml"
	"github.com/andrescamacho/fleetdispatch/internal/adapters/persistence"
	routingclient "github.com/andrescamacho/fleetdispatch/internal/adapters/routing"
	"github.com/andrescamacho/fleetdispatch/internal/application/common"
	"github.com/andrescamacho/fleetdispatch/internal/application/dispatch"
	"github.com/andrescamacho/fleetdispatch/internal/application/lifecycle"
	"github.com/andrescamacho/fleetdispatch/internal/application/tracking"
	"github.com/andrescamacho/fleetdispatch/internal/domain/shared"
	"github.com/andrescamacho/fleetdispatch/internal/infrastructure/config"
	"github.com/andrescamacho/fleetdispatch/internal/infrastructure/database"
	"github.com/andrescamacho/fleetdispatch/internal/infrastructure/logging"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "dispatch-daemon",
		Short: "Fleet dispatch core: dispatch decisions, state machines and telemetry",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: search ./config.yaml)")

	root.AddCommand(serveCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dispatch daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.MustLoadConfig(configPath)

			logger, err := logging.NewLogger(&cfg.Logging)
			if err != nil {
				return fmt.Errorf("failed to build logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			return run(cfg, logger)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.MustLoadConfig(configPath)

			db, err := database.NewConnection(&cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer func() { _ = database.Close(db) }()

			if err := database.AutoMigrate(db); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Println("schema up to date")
			return nil
		},
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting dispatch daemon",
		zap.String("engine", string(cfg.Dispatch.Engine)),
		zap.Bool("prototype_mode", cfg.Dispatch.PrototypeMode))

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() { _ = database.Close(db) }()

	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	// Shared infrastructure
	clock := shared.NewRealClock()
	collector := metrics.NewCollector()
	bus := events.NewBus(logger)

	ttlCache := cache.New(time.Minute)
	if cfg.Metrics.Enabled {
		ttlCache.SetRecorder(collector)
	}

	// Store gateways
	vehicleRepo := persistence.NewVehicleRepository(db)
	faultRepo := persistence.NewFaultRepository(db)
	tripRepo := persistence.NewTripRepository(db)
	routeRepo := persistence.NewRouteRepository(db)
	telemetryRepo := persistence.NewTelemetryRepository(db)
	alertRepo := persistence.NewAlertRepository(db)
	statsRepo := persistence.NewStatsRepository(db)
	reservations := persistence.NewReservationStore(db)

	// Collaborator clients
	planner := routingclient.NewClient(cfg.Routing, ttlCache, clock, logger, collector)
	mlClient := ml.NewClient(cfg.ML, clock, logger)

	// Per-key serialization shared across the application layer
	vehicleLocks := common.NewKeyedMutex()
	faultLocks := common.NewKeyedMutex()
	timedOut := dispatch.NewTimedOutSet()

	timers := lifecycle.NewTimerService(cfg.Dispatch, logger, collector)

	// The lifecycle service, device channel and engine reference each other;
	// the engine and redispatcher are wired in after construction.
	lifecycleSvc := lifecycle.NewService(cfg.Dispatch, lifecycle.ServiceDeps{
		Faults:       faultRepo,
		Vehicles:     vehicleRepo,
		Trips:        tripRepo,
		Routes:       routeRepo,
		Alerts:       alertRepo,
		Reservations: reservations,
		Cache:        ttlCache,
		Bus:          bus,
		Clock:        clock,
		Logger:       logger,
		Timers:       timers,
		TimedOut:     timedOut,
		VehicleLocks: vehicleLocks,
		FaultLocks:   faultLocks,
	})

	protocolHandlers := device.NewProtocolHandlers(lifecycleSvc, logger)
	channel := device.NewChannel(cfg.Device, protocolHandlers, logger, collector)

	engine := dispatch.NewEngine(cfg.Dispatch, dispatch.EngineDeps{
		Faults:       faultRepo,
		Vehicles:     vehicleRepo,
		Stats:        statsRepo,
		Alerts:       alertRepo,
		Routes:       routeRepo,
		Samples:      telemetryRepo,
		Planner:      planner,
		Reservations: reservations,
		ML:           mlClient,
		Device:       channel,
		Cache:        ttlCache,
		Bus:          bus,
		Clock:        clock,
		Logger:       logger,
		Metrics:      collector,
		TimedOut:     timedOut,
		VehicleLocks: vehicleLocks,
		FaultLocks:   faultLocks,
	})
	engine.SetAckScheduler(timers)
	engine.SetConfirmer(lifecycleSvc)
	lifecycleSvc.SetRedispatcher(engine)

	tracker := tracking.NewHandler(cfg.Dispatch, tracking.HandlerDeps{
		Samples:      telemetryRepo,
		Vehicles:     vehicleRepo,
		Faults:       faultRepo,
		Routes:       routeRepo,
		Planner:      planner,
		Timers:       timers,
		Cache:        ttlCache,
		Bus:          bus,
		Clock:        clock,
		Logger:       logger,
		Metrics:      collector,
		VehicleLocks: vehicleLocks,
	})

	sweeper := lifecycle.NewSweeper(cfg.Dispatch, vehicleRepo, faultRepo, routeRepo, timers, ttlCache, bus, vehicleLocks, logger, collector)

	handlers := httpapi.NewHandlers(cfg.Dispatch, engine, tracker, planner, faultRepo, vehicleRepo, ttlCache, channel, db, logger)
	server := httpapi.NewServer(cfg.Server, handlers, collector.Registry(), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	channel.Connect()

	// Rebuild in-memory timer state from the store
	if err := lifecycleSvc.Recover(ctx); err != nil {
		logger.Error("startup recovery failed, sweeper will reconcile", zap.Error(err))
	}

	go sweeper.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server drain incomplete", zap.Error(err))
	}
	timers.Stop()
	channel.Disconnect()

	logger.Info("dispatch daemon stopped")
	return nil
}
