// Package app is the composition root. It registers every core service in a
// samber/do container and resolves them into the Dependencies the server
// runs with.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nfrund/batepapo/internal/config"
	"github.com/nfrund/batepapo/internal/database"
	"github.com/nfrund/batepapo/internal/database/badgerstore"
	"github.com/nfrund/batepapo/internal/database/postgres"
	"github.com/nfrund/batepapo/internal/domain"
	"github.com/nfrund/batepapo/internal/messages"
	"github.com/nfrund/batepapo/internal/presence"
	"github.com/nfrund/batepapo/internal/pubsub"
	"github.com/nfrund/batepapo/internal/sanitize"
	"github.com/nfrund/batepapo/internal/websocket"
	"github.com/samber/do/v2"
	"go.opentelemetry.io/otel/trace"
)

// Tracing bundles the bus tracer with the function that flushes it.
type Tracing struct {
	Setup   pubsub.TracingConfig
	Cleanup func(context.Context)
	tracer  trace.Tracer
}

// Dependencies holds the core services the HTTP server is built from.
type Dependencies struct {
	Config    *config.Config
	Logger    *slog.Logger
	Sanitizer *sanitize.Sanitizer
	Store     domain.Store
	Bus       *pubsub.WatermillBridge
	Tracing   *Tracing
	Log       *messages.Log
	Tracker   *presence.Tracker
	Sweeper   *presence.Sweeper
	Stream    *websocket.Stream
}

// NewContainer registers the providers of every core service. Nothing is
// built until it is first invoked. ctx bounds the store connection and the
// tracing setup.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) do.Injector {
	i := do.New()

	do.ProvideValue(i, cfg)
	do.ProvideValue(i, logger)

	do.Provide(i, func(i do.Injector) (*sanitize.Sanitizer, error) {
		return sanitize.NewForLocale(cfg.NameLocale), nil
	})
	do.Provide(i, func(i do.Injector) (domain.Store, error) {
		return OpenStore(ctx, cfg, logger)
	})
	do.Provide(i, func(i do.Injector) (*Tracing, error) {
		return newTracing(ctx, cfg)
	})
	do.Provide(i, provideBus)
	do.Provide(i, provideLog)
	do.Provide(i, provideTracker)
	do.Provide(i, provideSweeper)
	do.Provide(i, provideStream)

	return i
}

// Resolve builds every service registered by NewContainer.
func Resolve(i do.Injector) (*Dependencies, error) {
	var (
		deps Dependencies
		err  error
	)

	if deps.Config, err = do.Invoke[*config.Config](i); err != nil {
		return nil, err
	}
	if deps.Logger, err = do.Invoke[*slog.Logger](i); err != nil {
		return nil, err
	}
	if deps.Sanitizer, err = do.Invoke[*sanitize.Sanitizer](i); err != nil {
		return nil, err
	}
	if deps.Store, err = do.Invoke[domain.Store](i); err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if deps.Tracing, err = do.Invoke[*Tracing](i); err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	if deps.Bus, err = do.Invoke[*pubsub.WatermillBridge](i); err != nil {
		return nil, err
	}
	if deps.Log, err = do.Invoke[*messages.Log](i); err != nil {
		return nil, err
	}
	if deps.Tracker, err = do.Invoke[*presence.Tracker](i); err != nil {
		return nil, err
	}
	if deps.Sweeper, err = do.Invoke[*presence.Sweeper](i); err != nil {
		return nil, err
	}
	if deps.Stream, err = do.Invoke[*websocket.Stream](i); err != nil {
		return nil, err
	}
	return &deps, nil
}

// OpenStore opens the store selected by cfg.StoreDriver.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverBadger:
		return badgerstore.Open(cfg.BadgerPath, logger.With("store", "badger"))
	case config.DriverSurreal:
		return database.Open(ctx, cfg)
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.DatabaseURL, postgres.Options{
			QueryTimeout:   cfg.DBQueryTimeout,
			ExecuteTimeout: cfg.DBExecuteTimeout,
			Logger:         logger.With("store", "postgres"),
		})
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func newTracing(ctx context.Context, cfg *config.Config) (*Tracing, error) {
	setup := pubsub.TracingConfig{
		Enabled:     cfg.TracingEnabled,
		ServiceName: cfg.TracingServiceName,
		ZipkinURL:   cfg.TracingZipkinURL,
	}
	tracer, cleanup, err := pubsub.SetupOTel(ctx, setup)
	if err != nil {
		return nil, err
	}
	return &Tracing{Setup: setup, Cleanup: cleanup, tracer: tracer}, nil
}

func provideBus(i do.Injector) (*pubsub.WatermillBridge, error) {
	logger := do.MustInvoke[*slog.Logger](i)
	tracing, err := do.Invoke[*Tracing](i)
	if err != nil {
		return nil, err
	}
	return pubsub.NewWatermillBridge(
		pubsub.WithTracer(tracing.tracer),
		pubsub.WithLogger(logger.With("service", "pubsub")),
	), nil
}

func provideLog(i do.Injector) (*messages.Log, error) {
	store, err := do.Invoke[domain.Store](i)
	if err != nil {
		return nil, err
	}
	bus, err := do.Invoke[*pubsub.WatermillBridge](i)
	if err != nil {
		return nil, err
	}
	return messages.NewLog(store, do.MustInvoke[*sanitize.Sanitizer](i),
		messages.WithPublisher(bus),
		messages.WithLogger(do.MustInvoke[*slog.Logger](i).With("service", "messages")),
	), nil
}

func provideTracker(i do.Injector) (*presence.Tracker, error) {
	store, err := do.Invoke[domain.Store](i)
	if err != nil {
		return nil, err
	}
	log, err := do.Invoke[*messages.Log](i)
	if err != nil {
		return nil, err
	}
	cfg := do.MustInvoke[*config.Config](i)
	return presence.NewTracker(store, log, do.MustInvoke[*sanitize.Sanitizer](i),
		presence.WithStaleThreshold(cfg.StaleThreshold),
		presence.WithPublisher(do.MustInvoke[*pubsub.WatermillBridge](i)),
		presence.WithLogger(do.MustInvoke[*slog.Logger](i).With("service", "presence")),
	), nil
}

func provideSweeper(i do.Injector) (*presence.Sweeper, error) {
	tracker, err := do.Invoke[*presence.Tracker](i)
	if err != nil {
		return nil, err
	}
	cfg := do.MustInvoke[*config.Config](i)
	return presence.NewSweeper(tracker, cfg.SweepInterval,
		presence.WithSweeperLogger(do.MustInvoke[*slog.Logger](i).With("service", "sweeper")),
	), nil
}

func provideStream(i do.Injector) (*websocket.Stream, error) {
	bus, err := do.Invoke[*pubsub.WatermillBridge](i)
	if err != nil {
		return nil, err
	}
	cfg := do.MustInvoke[*config.Config](i)
	return websocket.NewStream(bus, do.MustInvoke[*sanitize.Sanitizer](i),
		websocket.WithOriginPatterns(cfg.CORSAllowOrigins...),
		websocket.WithLogger(do.MustInvoke[*slog.Logger](i).With("service", "stream")),
	), nil
}
