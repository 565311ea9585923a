// Package infrastructure provides database and connection pool setup.
//
// A single pgxpool.Pool backs River, the sqlx repository layer, and goose
// migrations, so a single connection budget governs the whole process
// instead of three independent pools competing for Postgres connections.
package infrastructure

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"go.uber.org/zap"

	"sempervigil.dev/sempervigil/internal/config"
	"sempervigil.dev/sempervigil/internal/pkg/logger"
)

// DatabaseClients contains all database-related clients, all sharing a
// single connection pool.
//
// Do not create separate sql.Open() and pgxpool.New() calls elsewhere —
// that doubles the connection count the pool sizing in config assumes.
type DatabaseClients struct {
	// Pool is the shared pgx connection pool (sqlx + River).
	Pool *pgxpool.Pool

	// DB is the *sql.DB wrapper around Pool, created via
	// stdlib.OpenDBFromPool so goose and sqlx reuse pgxpool's connections
	// instead of opening their own.
	DB *sql.DB

	// SQLX is the struct-scanning handle the repository layer uses.
	SQLX *sqlx.DB

	// RiverClient is the River job queue client backed by the shared pool.
	RiverClient *river.Client[pgx.Tx]
}

// NewDatabaseClients creates database clients with a shared connection pool.
func NewDatabaseClients(ctx context.Context, cfg config.DatabaseConfig) (*DatabaseClients, error) {
	dsn := cfg.DSN()

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = time.Minute

	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET timezone = 'UTC'")
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	sqlxDB := sqlx.NewDb(db, "pgx")

	logger.Info("database connection pool created",
		zap.Int32("max_conns", cfg.MaxConns),
		zap.Int32("min_conns", cfg.MinConns),
	)

	return &DatabaseClients{
		Pool: pool,
		DB:   db,
		SQLX: sqlxDB,
	}, nil
}

// Migrate applies the linear, versioned goose migration list (read from
// migrationsFS, rooted at migrationsDir), then the River queue-table
// migration.
func (c *DatabaseClients) Migrate(ctx context.Context, migrationsFS embed.FS, migrationsDir string) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}

	logger.Info("applying schema migrations")
	if err := goose.UpContext(ctx, c.DB, migrationsDir); err != nil {
		return fmt.Errorf("goose migrate up: %w", err)
	}

	logger.Info("applying river queue-table migrations")
	migrator, err := rivermigrate.New(riverpgxv5.New(c.Pool), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}
	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("river migrate up: %w", err)
	}
	if len(res.Versions) > 0 {
		logger.Info("river migration completed", zap.Int("versions_applied", len(res.Versions)))
	} else {
		logger.Info("river migration: already up-to-date")
	}

	return nil
}

// InitRiverClient creates a River client with registered workers and one
// queue per worker class (spec.md §5).
func (c *DatabaseClients) InitRiverClient(workers *river.Workers, cfg config.RiverConfig, queues map[string]river.QueueConfig, periodicJobs []*river.PeriodicJob) error {
	riverClient, err := river.NewClient(riverpgxv5.New(c.Pool), &river.Config{
		Queues:                      queues,
		Workers:                     workers,
		PeriodicJobs:                periodicJobs,
		CompletedJobRetentionPeriod: cfg.CompletedJobRetentionPeriod,
	})
	if err != nil {
		return fmt.Errorf("create river client: %w", err)
	}
	c.RiverClient = riverClient
	logger.Info("river client initialized", zap.Int("queues", len(queues)))
	return nil
}

// Close closes all connection pools gracefully.
func (c *DatabaseClients) Close() {
	if c.DB != nil {
		c.DB.Close()
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}
