package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/stanstork/alert-api/internal/alerts"
	"github.com/stanstork/alert-api/internal/backends"
	"github.com/stanstork/alert-api/internal/config"
	"github.com/stanstork/alert-api/internal/engine"
	"github.com/stanstork/alert-api/internal/event"
	"github.com/stanstork/alert-api/internal/handlers"
	"github.com/stanstork/alert-api/internal/lease"
	"github.com/stanstork/alert-api/internal/middleware"
	"github.com/stanstork/alert-api/internal/migration"
	"github.com/stanstork/alert-api/internal/registry"
	"github.com/stanstork/alert-api/internal/repository"
	"github.com/stanstork/alert-api/internal/routes"
	"github.com/stanstork/alert-api/internal/template"

	_ "github.com/lib/pq" // PostgreSQL driver
)

type application struct {
	config     *config.Config
	db         *sql.DB
	registry   *registry.Registry
	bus        *event.Bus
	dispatcher *engine.Dispatcher
	logger     zerolog.Logger
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.SetFlags(0)
	log.SetOutput(logger)

	goose.SetLogger(migration.NewGooseAdapter(logger))

	// Load configuration.
	cfg := config.Load()

	// Initialize database connection.
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ping database")
	}

	// Run database migrations.
	migration.RunMigrations(cfg.DatabaseURL, logger)

	// Repositories
	userRepo := repository.NewUserRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	prefRepo := repository.NewPreferenceRepository(db)
	broadcastRepo := repository.NewBroadcastRepository(db)

	// Registries are populated once, here; a duplicate identifier is a
	// programming error and aborts startup.
	reg := registry.New()

	emailBackend, err := backends.NewEmail(cfg.Email, userRepo, reg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure email backend")
	}
	if err := reg.RegisterBackend("email", emailBackend); err != nil {
		logger.Fatal().Err(err).Msg("backend registration failed")
	}
	if err := reg.RegisterBackend("push", backends.NewPush(cfg.Push, logger)); err != nil {
		logger.Fatal().Err(err).Msg("backend registration failed")
	}
	if err := alerts.Register(reg); err != nil {
		logger.Fatal().Err(err).Msg("alert type registration failed")
	}

	// Engine wiring.
	bus := event.NewBus()
	source := template.NewDirSource(os.DirFS(cfg.Templates.Dir))
	resolver := engine.NewResolver(reg, prefRepo)
	materializer := engine.NewMaterializer(reg, source)
	trigger := engine.NewTrigger(reg, resolver, materializer, alertRepo, cfg.Site.Name, logger)
	trigger.Bind(bus)

	dispatchLock := newLease(cfg, logger)
	dispatcher := engine.NewDispatcher(reg, alertRepo, dispatchLock, bus, logger, engine.DispatcherOptions{
		LeaseTTL:    cfg.Dispatch.LeaseTTL,
		MaxAttempts: cfg.Dispatch.MaxAttempts,
	})

	preferences := engine.NewPreferences(reg, prefRepo, bus, logger)
	broadcasts := engine.NewBroadcasts(broadcastRepo, userRepo, bus, logger)

	// Create the application instance.
	app := &application{
		config:     cfg,
		db:         db,
		registry:   reg,
		bus:        bus,
		dispatcher: dispatcher,
		logger:     logger,
	}

	// Handlers
	authHandler := handlers.NewAuthHandler(userRepo, bus, cfg.JWTSecret, logger)
	prefHandler := handlers.NewPreferenceHandler(preferences, userRepo, logger)
	alertHandler := handlers.NewAlertHandler(alertRepo, logger)
	broadcastHandler := handlers.NewBroadcastHandler(broadcasts, logger)
	dispatchHandler := handlers.NewDispatchHandler(dispatcher, logger)

	router := routes.NewRouter(authHandler, prefHandler, alertHandler, broadcastHandler, dispatchHandler)
	loggedRouter := middleware.LoggingMiddleware(app.logger)(router)
	corsHandler := h.CORS(
		h.AllowedOrigins([]string{"http://localhost:3000"}),
		h.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		h.AllowCredentials(),
	)(loggedRouter)

	// Start the periodic dispatch loop.
	scheduler := app.startDispatchLoop(logger)

	// Start the HTTP server and handle graceful shutdown.
	app.startServer(corsHandler, scheduler, logger)

	logger.Info().Msg("Application terminated.")
}

// newLease selects the dispatch lease backend: Redis when configured, else
// an in-process lease that is only correct for single-instance deployments.
func newLease(cfg *config.Config, logger zerolog.Logger) lease.Lease {
	if cfg.Redis.Addr == "" {
		logger.Warn().Msg("no redis configured; dispatch lease is process-local")
		return lease.NewMemory()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return lease.NewRedis(client)
}

// startDispatchLoop schedules dispatcher runs on the configured interval.
// Overlap with manual runs is harmless; the lease turns extras away.
func (app *application) startDispatchLoop(logger zerolog.Logger) *cron.Cron {
	c := cron.New()
	_, err := c.AddFunc("@every "+app.config.Dispatch.Interval.String(), func() {
		if _, err := app.dispatcher.Run(context.Background()); err != nil {
			logger.Error().Err(err).Msg("scheduled dispatch run failed")
		}
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to schedule dispatch loop")
	}
	c.Start()
	logger.Info().Dur("interval", app.config.Dispatch.Interval).Msg("dispatch loop started")
	return c
}

// startServer launches the HTTP server and handles graceful shutdown.
func (app *application) startServer(handler http.Handler, scheduler *cron.Cron, logger zerolog.Logger) {
	server := &http.Server{
		Addr:    ":" + app.config.ServerPort,
		Handler: handler,
	}

	// Channel to listen for server errors
	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for an interrupt signal or a server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("Server error occurred")
	}

	// Gracefully shut down the HTTP server.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}

	// Let an in-flight dispatch run finish before exiting.
	logger.Info().Msg("Stopping dispatch loop...")
	<-scheduler.Stop().Done()
	logger.Info().Msg("Dispatch loop stopped.")
}
