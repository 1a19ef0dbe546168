// Package database owns the PostgreSQL pool behind APP_STORAGE=postgres.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"inkwell/internal/platform/config"
)

const (
	applicationName = "inkwell"
	healthTimeout   = 5 * time.Second
)

// Config holds pool settings.
type Config struct {
	ConnectionString string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	ConnectTimeout   time.Duration
	TimeZone         string

	// StartupWait bounds how long New keeps retrying the first ping; zero
	// means a single attempt.
	StartupWait time.Duration
}

// ConfigFrom builds a pool configuration from application settings.
func ConfigFrom(cfg config.DatabaseConfig, timeZone string) Config {
	return Config{
		ConnectionString: cfg.ConnectionString(),
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		ConnectTimeout:   cfg.ConnectTimeout,
		TimeZone:         timeZone,
		StartupWait:      cfg.StartupWait,
	}
}

func (c Config) poolConfig() (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(c.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolCfg.MaxConns = c.MaxConns
	poolCfg.MinConns = c.MinConns
	poolCfg.MaxConnLifetime = c.MaxConnLifetime
	poolCfg.MaxConnIdleTime = c.MaxConnIdleTime
	poolCfg.ConnConfig.ConnectTimeout = c.ConnectTimeout

	params := poolCfg.ConnConfig.RuntimeParams
	if params == nil {
		params = map[string]string{}
		poolCfg.ConnConfig.RuntimeParams = params
	}
	params["application_name"] = applicationName
	if c.TimeZone != "" {
		params["timezone"] = c.TimeZone
	}
	return poolCfg, nil
}

// DB is the shared pool. Repositories take DB.Pool directly.
type DB struct {
	*pgxpool.Pool
	logger *slog.Logger
}

// New opens the pool and waits until PostgreSQL answers a ping, retrying with
// exponential backoff for up to cfg.StartupWait.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	poolCfg, err := cfg.poolConfig()
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	var b backoff.BackOff = &backoff.StopBackOff{}
	if cfg.StartupWait > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = 250 * time.Millisecond
		exp.MaxInterval = 3 * time.Second
		exp.MaxElapsedTime = cfg.StartupWait
		b = exp
	}
	ping := func() error { return pool.Ping(ctx) }
	notify := func(err error, wait time.Duration) {
		logger.Warn("database not ready, retrying", "error", err, "retry_in", wait)
	}
	if err := backoff.RetryNotify(ping, backoff.WithContext(b, ctx), notify); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("database connected",
		"host", poolCfg.ConnConfig.Host,
		"database", poolCfg.ConnConfig.Database,
		"max_conns", cfg.MaxConns,
		"min_conns", cfg.MinConns,
	)
	return &DB{Pool: pool, logger: logger}, nil
}

// Close closes the pool.
func (db *DB) Close() {
	db.Pool.Close()
	db.logger.Info("database connection closed")
}

// HealthCheck pings the database.
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return db.Pool.Ping(ctx)
}

// RegisterMetrics exports pool gauges on reg.
func (db *DB) RegisterMetrics(reg prometheus.Registerer) error {
	if reg == nil {
		return nil
	}
	gauge := func(name, help string, read func(*pgxpool.Stat) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "inkwell_db_pool_" + name,
			Help: help,
		}, func() float64 { return read(db.Pool.Stat()) })
	}
	for _, c := range []prometheus.Collector{
		gauge("total_conns", "Connections currently open.", func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }),
		gauge("acquired_conns", "Connections checked out by queries.", func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }),
		gauge("idle_conns", "Idle connections.", func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }),
		gauge("max_conns", "Configured pool size.", func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) }),
		gauge("empty_acquire_total", "Acquires that had to wait for a connection.", func(s *pgxpool.Stat) float64 { return float64(s.EmptyAcquireCount()) }),
	} {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("register pool metrics: %w", err)
		}
	}
	return nil
}
