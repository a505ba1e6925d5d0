package main

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/pitabwire/frame"
	"github.com/pitabwire/frame/config"
	"github.com/pitabwire/frame/datastore"
	"github.com/pitabwire/frame/datastore/pool"
	"github.com/pitabwire/util"

	aconfig "github.com/antinvestor/service-signal/apps/default/config"
	"github.com/antinvestor/service-signal/apps/default/service/business"
	"github.com/antinvestor/service-signal/apps/default/service/handlers"
	"github.com/antinvestor/service-signal/apps/default/service/protocol"
	"github.com/antinvestor/service-signal/apps/default/service/repository"
	"github.com/antinvestor/service-signal/internal/health"
	"github.com/antinvestor/service-signal/internal/resilience"
)

var errStartupPending = errors.New("startup connections not yet established")

// runService initializes and starts the signal gateway with all dependencies.
func runService(ctx context.Context) error {
	// Initialize configuration
	cfg, err := config.Load[aconfig.SignalConfig](ctx)
	if err != nil {
		util.Log(ctx).With("err", err).Error("could not process configs")
		return err
	}

	if err = cfg.Validate(); err != nil {
		util.Log(ctx).With("err", err).Error("invalid configuration")
		return err
	}

	if cfg.Name() == "" {
		cfg.ServiceName = "service_signal"
	}

	// Create service
	ctx, svc := frame.NewServiceWithContext(
		ctx,
		frame.WithConfig(&cfg),
		frame.WithDatastore(),
	)
	defer svc.Stop(ctx)
	log := svc.Log(ctx)

	dbManager := svc.DatastoreManager()
	dbPool := dbManager.GetPool(ctx, datastore.DefaultPoolName)

	// Handle database migration if requested
	if handleDatabaseMigration(ctx, svc, cfg) {
		return nil
	}

	accountRepo := repository.NewAccountRepository(svc)
	webhookRepo := repository.NewWebhookEndpointRepository(svc)
	storageRepo := repository.NewStorageRecordRepository(svc)

	engine, err := protocol.OpenEngine(ctx, func(clientID, tel string) protocol.Store {
		return protocol.NewAccountStore(storageRepo, clientID, tel)
	})
	if err != nil {
		log.WithError(err).Fatal("main -- could not open the protocol engine")
	}

	breakers := resilience.NewBreakerGroup(resilience.Settings{
		MaxFailures:  cfg.BreakerMaxFailures,
		ResetTimeout: cfg.BreakerResetTimeout(),
		OnStateChange: func(clientID string, from, to resilience.State) {
			util.Log(ctx).WithFields(map[string]any{
				"client_id": clientID,
				"from":      from.String(),
				"to":        to.String(),
			}).Warn("webhook endpoint breaker changed state")
		},
	})

	dispatcher := business.NewWebhookDispatcher(svc, &cfg, webhookRepo, breakers)
	registry := business.NewConnectionRegistry(svc, engine, accountRepo, dispatcher)

	signalServer := handlers.NewSignalServer(svc, &cfg, registry, accountRepo, storageRepo)

	// Setup health checks
	var started atomic.Bool
	healthHandler := setupHealthChecks(dbPool, &started)

	// Create multiplexer for HTTP handlers
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	signalServer.RegisterRoutes(mux)

	// Initialize the service with all options
	svc.Init(ctx, frame.WithHTTPHandler(mux))

	// Every registered account must come up before the service serves
	// traffic; a broken account is a deployment problem.
	if err = registry.StartUp(ctx); err != nil {
		log.WithError(err).Fatal("main -- could not establish startup connections")
	}
	started.Store(true)
	defer registry.ShutDown(ctx)

	// Start the service
	return svc.Run(ctx, "")
}

func main() {
	ctx := context.Background()
	if err := runService(ctx); err != nil {
		util.Log(ctx).WithError(err).Fatal("could not run service")
	}
}

// setupHealthChecks creates the health check handler with database and
// registry checkers.
func setupHealthChecks(dbPool pool.Pool, started *atomic.Bool) *health.Handler {
	handler := health.NewHandler()

	dbChecker := health.NewDatabaseChecker(dbPool, 5*time.Second)
	handler.AddChecker(dbChecker)

	registryChecker := health.NewPingChecker("registry", func(_ context.Context) error {
		if !started.Load() {
			return errStartupPending
		}
		return nil
	}, time.Second)
	handler.AddChecker(registryChecker)

	return handler
}

// handleDatabaseMigration performs database migration if configured to do so.
func handleDatabaseMigration(
	ctx context.Context,
	svc *frame.Service,
	cfg aconfig.SignalConfig,
) bool {
	if !cfg.DoDatabaseMigrate() {
		return false
	}

	err := repository.Migrate(ctx, svc, cfg.GetDatabaseMigrationPath())
	if err != nil {
		util.Log(ctx).WithError(err).Fatal("main -- Could not migrate successfully")
	}
	return true
}
