package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/dualtx/service/config"
	"github.com/brojonat/dualtx/service/db"
	"github.com/brojonat/dualtx/service/engine"
	"github.com/brojonat/dualtx/service/ledger"
	"github.com/brojonat/dualtx/service/metrics"
	natspkg "github.com/brojonat/dualtx/service/nats"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

// flagForEnv maps configuration keys to the global flags that carry them.
// Every flag also reads its environment variable, so flags win over env.
var flagForEnv = map[string]string{
	"DATABASE_URL":      "database-url",
	"LEDGER_OWNER":      "owner",
	"ADDRESS_FORMAT":    "address-format",
	"NATS_URL":          "nats-url",
	"PUSHGATEWAY_URL":   "pushgateway-url",
	"METRICS_JOB":       "metrics-job",
	"LOG_LEVEL":         "log-level",
	"OPERATION_TIMEOUT": "operation-timeout",
}

// loadConfig builds and validates a Config from the global flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.LoadFrom(func(key string) string {
		if name, ok := flagForEnv[key]; ok {
			return c.String(name)
		}
		return ""
	})
}

// ledgerApp is a fully wired ledger restored from the database.
type ledgerApp struct {
	cfg       *config.Config
	logger    *slog.Logger
	pool      *pgxpool.Pool
	store     *db.Store
	engine    *engine.Engine
	addresses ledger.AddressValidator
	publisher *natspkg.JetStreamPublisher
	registry  *prometheus.Registry
}

type openOptions struct {
	// events connects the NATS publisher when NATS_URL is set.
	events bool
}

// openLedger loads configuration, restores the ledger from Postgres and wires
// the engine. Callers must Close the result.
func openLedger(ctx context.Context, c *cli.Context, opts openOptions) (*ledgerApp, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	logger := setupLogger(cfg.LogLevel)

	addresses, err := cfg.AddressValidator()
	if err != nil {
		return nil, err
	}

	pool, err := connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	app := &ledgerApp{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		addresses: addresses,
		registry:  prometheus.NewRegistry(),
	}
	m := metrics.NewMetrics(app.registry)
	app.store = db.NewStore(pool, m)

	if err := app.store.EnsureOwner(ctx, cfg.Owner); err != nil {
		app.Close()
		return nil, schemaHint(err)
	}

	snap, err := app.store.LoadSnapshot(ctx)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	access := ledger.NewAccessController()
	if err := access.Initialize(cfg.Owner); err != nil {
		app.Close()
		return nil, err
	}
	registry := ledger.NewAccountRegistry(access, ledger.WithJournal(app.store))
	registry.Restore(snap)
	l := ledger.NewTransactionLedger(registry, ledger.WithAddressValidator(addresses))

	logger.Debug("ledger restored",
		"accounts", len(snap.Accounts),
		"address_format", cfg.AddressFormat,
	)

	// Leave the interface nil rather than holding a nil pointer.
	var publisher engine.PublisherInterface
	if opts.events && cfg.NATSURL != "" {
		app.publisher, err = natspkg.NewPublisher(ctx, cfg.NATSURL, logger, m)
		if err != nil {
			app.Close()
			return nil, err
		}
		publisher = app.publisher
	}

	app.engine = engine.New(l, publisher, m, logger)
	return app, nil
}

// Close pushes collected metrics and releases connections.
func (a *ledgerApp) Close() {
	if a.cfg.PushgatewayURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metrics.Push(ctx, a.cfg.PushgatewayURL, a.cfg.MetricsJob, a.registry); err != nil {
			a.logger.Warn("metrics push failed", "error", err)
		}
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
	a.pool.Close()
}

// withTimeout bounds ctx by the configured operation timeout.
func (a *ledgerApp) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.cfg.OperationTimeout)
}

// connect opens and verifies a connection pool.
func connect(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// getStore connects to the database for commands that don't need the ledger.
func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	pool, err := connect(c.Context, dbURL)
	if err != nil {
		return nil, nil, err
	}

	store := db.NewStore(pool, nil)
	closer := func() { pool.Close() }

	return store, closer, nil
}

// schemaHint points at `db migrate` when the schema is missing.
func schemaHint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
		return fmt.Errorf("%w (run 'dualtx db migrate' first)", err)
	}
	return err
}
