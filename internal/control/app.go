package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/vietddude/snap2pass/internal/batch"
	"github.com/vietddude/snap2pass/internal/core/config"
	"github.com/vietddude/snap2pass/internal/core/worker"
	"github.com/vietddude/snap2pass/internal/health"
	"github.com/vietddude/snap2pass/internal/infra/api"
	redisclient "github.com/vietddude/snap2pass/internal/infra/redis"
	"github.com/vietddude/snap2pass/internal/infra/storage"
	"github.com/vietddude/snap2pass/internal/infra/storage/memory"
	"github.com/vietddude/snap2pass/internal/infra/storage/postgres"
	"github.com/vietddude/snap2pass/internal/infra/storage/sqlite"
	"github.com/vietddude/snap2pass/internal/infra/storage/sqlstore"
	"github.com/vietddude/snap2pass/internal/trial"
)

// App wires the client pipeline, the trial tracker, the batch orchestrator and
// their storage from one AppConfig.
type App struct {
	cfg          *config.AppConfig
	Client       *api.Client
	Tracker      *trial.Tracker
	Batch        *batch.Orchestrator
	States       storage.TrialStateStore
	History      storage.OutcomeRepository
	healthMon    *health.Monitor
	healthServer *health.Server
	store        *memory.MemoryStorage
	db           *postgres.DB
	sqlite       *sqlite.DB
	redisClient  *redisclient.Client
	log          *slog.Logger
}

// Option customizes NewApp.
type Option func(*appOptions)

type appOptions struct {
	clientOpts []api.Option
}

// WithClientOptions forwards options to api.NewClient.
func WithClientOptions(opts ...api.Option) Option {
	return func(o *appOptions) { o.clientOpts = append(o.clientOpts, opts...) }
}

// OpenStorage creates an App with only its storage initialized. Client,
// Tracker and Batch stay nil.
func OpenStorage(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	app := &App{
		cfg:       cfg,
		healthMon: health.NewMonitor(2 * time.Second),
		log:       slog.Default(),
	}
	if err := app.initStorage(ctx); err != nil {
		_ = app.Stop(ctx)
		return nil, err
	}
	return app, nil
}

// NewApp creates an App with all dependencies initialized.
func NewApp(ctx context.Context, cfg *config.AppConfig, opts ...Option) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	// 1. Initialize Storage
	app, err := OpenStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// 2. Initialize Client
	clientOpts := append([]api.Option{api.WithLogger(app.log)}, o.clientOpts...)
	client, err := api.NewClient(cfg.API, cfg.Retry, clientOpts...)
	if err != nil {
		_ = app.Stop(ctx)
		return nil, fmt.Errorf("failed to init client: %w", err)
	}
	app.Client = client

	// 3. Tracker and orchestrator share the same storage
	app.Tracker = trial.New(client,
		trial.WithStore(app.States),
		trial.WithHistory(app.History),
		trial.WithLogger(app.log),
	)
	app.Batch = batch.New(cfg.Batch, client,
		batch.WithTracker(app.Tracker),
		batch.WithHistory(app.History),
		batch.WithLogger(app.log),
	)

	app.log.Debug("Client initialized",
		"protocol", client.Protocol(),
		"storage", cfg.Storage.Type,
		"max_attempts", cfg.Retry.MaxAttempts,
	)
	return app, nil
}

func (a *App) initStorage(ctx context.Context) error {
	backends := strings.Split(a.cfg.Storage.Type, "+")
	useRedis := slices.Contains(backends, "redis")
	usePostgres := slices.Contains(backends, "postgres")
	useSQLite := slices.Contains(backends, "sqlite")

	a.store = memory.NewMemoryStorage()
	a.States = memory.NewTrialStateStore(a.store)
	a.History = memory.NewOutcomeRepo(a.store)

	if useRedis {
		client, err := redisclient.NewClient(a.cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to init redis: %w", err)
		}
		a.redisClient = client
		a.States = redisclient.NewTrialStore(client)
		a.healthMon.Register("redis", true, client.Health)
		a.log.Info("Using Redis trial state storage")
	}

	switch {
	case usePostgres:
		db, err := postgres.NewDB(ctx, a.cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to init db: %w", err)
		}
		a.db = db
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		a.History = sqlstore.NewOutcomeRepo(db.DB)
		a.healthMon.Register("database", false, db.Health)
		a.log.Info("Using PostgreSQL outcome history")
	case useSQLite:
		db, err := sqlite.NewDB(ctx, a.cfg.SQLite)
		if err != nil {
			return fmt.Errorf("failed to init sqlite: %w", err)
		}
		a.sqlite = db
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		a.History = sqlstore.NewOutcomeRepo(db.DB)
		a.healthMon.Register("sqlite", false, db.Health)
		a.log.Info("Using SQLite outcome history", "path", a.cfg.SQLite.Path)
	}

	if !useRedis && !usePostgres && !useSQLite {
		a.log.Debug("Using Memory storage")
	}
	return nil
}

// Config returns the configuration the app was built from.
func (a *App) Config() *config.AppConfig {
	return a.cfg
}

// Start runs the history pruner and serves /health and /metrics when
// metrics.port is set.
func (a *App) Start(ctx context.Context) error {
	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}
	if a.cfg.Storage.Retention > 0 {
		go worker.NewPruner(a.cfg.Storage.Retention, a.History).Start(ctx)
	}
	if a.cfg.Metrics.Port <= 0 {
		return nil
	}

	a.healthServer = health.NewServer(a.healthMon, a.cfg.Metrics.Port)
	go func() {
		if err := a.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Health server failed", "error", err)
		}
	}()
	a.log.Info("Health server started", "port", a.cfg.Metrics.Port)
	return nil
}

// Stop shuts the health server down and closes storage connections.
func (a *App) Stop(ctx context.Context) error {
	var errs []error
	if a.healthServer != nil {
		errs = append(errs, a.healthServer.Stop(ctx))
	}
	if a.redisClient != nil {
		errs = append(errs, a.redisClient.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.sqlite != nil {
		errs = append(errs, a.sqlite.Close())
	}
	return errors.Join(errs...)
}
