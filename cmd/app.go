package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/desertthunder/crux/internal/crud"
	"github.com/desertthunder/crux/internal/events"
	"github.com/desertthunder/crux/internal/hooks"
	"github.com/desertthunder/crux/internal/models"
	"github.com/desertthunder/crux/internal/observers"
	"github.com/desertthunder/crux/internal/repositories"
	"github.com/desertthunder/crux/internal/shared"
)

type (
	trackProvider      = crud.Provider[*models.Track, models.TrackInput, models.TrackView, string]
	asyncTrackProvider = crud.AsyncProvider[*models.Track, models.TrackInput, models.TrackView, string]
	trackReader        = crud.ReadProvider[*models.Track, models.TrackView, string]
	trackOption        = crud.Option[*models.Track, models.TrackInput, string]
	trackCache         = observers.CacheWarmer[*models.Track, models.TrackInput, string]
)

// App is the track library: a storage adapter chosen by configuration behind the lifecycle
// engine, with hooks and listeners attached.
type App struct {
	Tracks      *trackProvider
	AsyncTracks *asyncTrackProvider
	// Reader serves the commands that never write.
	Reader *trackReader
	// Cache is nil when the cache is disabled.
	Cache   *trackCache
	closers []func() error
}

// storage is a repository and the transactor that matches it.
type storage struct {
	repo  crud.Repository[*models.Track, string]
	tx    crud.Transactor
	close func() error
}

// OpenApp connects to the configured database and assembles the providers.
func OpenApp(ctx context.Context, config *shared.Config, logger *log.Logger, reg prometheus.Registerer) (*App, error) {
	store, err := openStorage(ctx, config.Database, logger)
	if err != nil {
		return nil, err
	}

	app := &App{closers: []func() error{store.close}}

	var chain hooks.Chain
	if config.Limits.ReadOnly {
		chain = append(chain, hooks.ReadOnly())
		logger.Debug("rejecting writes")
	}
	chain = append(chain, hooks.NewAudit(logger))
	if config.Limits.Rate > 0 {
		chain = append(chain, hooks.NewRateLimit(config.Limits.Rate, config.Limits.Burst))
	}
	if config.Events.Metrics {
		chain = append(chain, hooks.NewMetrics(reg))
	}

	listeners := events.Broadcast[*models.Track, models.TrackInput, string](events.Widen[*models.Track, models.TrackInput, string](observers.NewLogging(logger)))
	if config.Events.Metrics {
		listeners.Add(events.Widen[*models.Track, models.TrackInput, string](observers.NewMetrics(reg)))
	}
	if len(config.Events.KafkaBrokers) > 0 {
		publisher := observers.NewKafkaPublisher(observers.NewKafkaWriter(config.Events.KafkaBrokers, config.Events.KafkaTopic), "Track")
		listeners.Add(events.Widen[*models.Track, models.TrackInput, string](publisher))
		app.closers = append(app.closers, publisher.Close)
		logger.Debug("publishing track events", "brokers", config.Events.KafkaBrokers, "topic", config.Events.KafkaTopic)
	}
	if config.Events.CacheMaxCost > 0 {
		cache, err := observers.NewCacheWarmer[*models.Track, models.TrackInput, string](config.Events.CacheMaxCost, trackKey)
		if err != nil {
			app.Close()
			return nil, err
		}
		listeners.Add(cache)
		app.Cache = cache
		app.closers = append(app.closers, func() error { cache.Close(); return nil })
	}

	crudLogger := shared.WithLogger(logger, "component", "crud")
	opts := []trackOption{
		crud.WithEvents[*models.Track, models.TrackInput, string](listeners),
		crud.WithHooks[*models.Track, models.TrackInput, string](chain),
		crud.WithTransactor[*models.Track, models.TrackInput, string](store.tx),
		crud.WithLogger[*models.Track, models.TrackInput, string](crudLogger),
	}

	app.Reader = crud.NewReadProvider[*models.Track, models.TrackView, string](store.repo, models.TrackMapper{},
		crud.WithReadEvents[*models.Track, struct{}, string](listeners),
		crud.WithHooks[*models.Track, struct{}, string](chain),
		crud.WithLogger[*models.Track, struct{}, string](crudLogger),
	)

	app.Tracks = crud.NewProvider[*models.Track, models.TrackInput, models.TrackView, string](store.repo, models.TrackMapper{}, opts...)
	app.AsyncTracks = crud.NewAsyncProvider[*models.Track, models.TrackInput, models.TrackView, string](
		crud.Spawn[*models.Track, string](store.repo),
		crud.LiftMapper[*models.Track, models.TrackInput, models.TrackView](models.TrackMapper{}),
		opts...,
	)
	return app, nil
}

// Close releases the storage and listeners, in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func trackKey(t *models.Track) string { return t.ID }

func openStorage(ctx context.Context, cfg shared.DatabaseConfig, logger *log.Logger) (*storage, error) {
	logger = shared.WithLogger(logger, "driver", cfg.Driver)

	switch cfg.Driver {
	case shared.DriverMemory:
		repo, err := repositories.NewMemoryRepository[*models.Track, string](repositories.TrackSchema, repositories.WithTouch[*models.Track, string](touchTrack()))
		if err != nil {
			return nil, err
		}
		logger.Debug("using in-memory storage")
		return &storage{repo: repo, tx: repo, close: func() error { return nil }}, nil

	case shared.DriverSQLite:
		db, err := shared.NewDatabase(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
		shared.ConfigureDatabase(db, cfg)

		applied, err := shared.RunMigrations(ctx, db)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		if len(applied) > 0 {
			logger.Info("applied migrations", "versions", applied)
		}
		logger.Debug("opened database", "path", cfg.Path)
		return &storage{repo: repositories.NewTrackRepository(db), tx: repositories.NewTxManager(db), close: db.Close}, nil

	case shared.DriverGormSQLite, shared.DriverGormPostgres:
		gcfg := repositories.GormConfig{
			Dialect:      repositories.GormSQLite,
			Path:         cfg.Path,
			DSN:          cfg.DSN,
			MaxOpenConns: cfg.MaxOpenConns,
			MaxIdleConns: cfg.MaxIdleConns,
		}
		if cfg.Driver == shared.DriverGormPostgres {
			gcfg.Dialect = repositories.GormPostgres
		}

		db, err := repositories.OpenGorm(gcfg, &models.Track{})
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access connection pool: %w", err)
		}
		repo, err := repositories.NewGormRepository[*models.Track, string](db, repositories.TrackSchema, "sequence ASC")
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
		logger.Debug("opened database", "dialect", gcfg.Dialect)
		return &storage{repo: repo, tx: repositories.NewGormTransactor(db), close: sqlDB.Close}, nil

	default:
		return nil, fmt.Errorf("%w: unknown database driver %q", shared.ErrInvalidConfig, cfg.Driver)
	}
}

// touchTrack numbers and timestamps tracks kept in memory, the way the SQL adapters do.
func touchTrack() func(*models.Track, bool) {
	var sequence atomic.Int64
	return func(t *models.Track, created bool) {
		now := time.Now().UTC()
		if created {
			t.Sequence = int(sequence.Add(1))
			t.CreatedAt = now
		}
		t.UpdatedAt = now
	}
}
