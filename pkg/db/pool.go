// Package db is woodchuckd's PostgreSQL storage layer: pooling via pgx,
// migrations, and the repository for managers, streams and objects.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const logPrefix = "db:pool"

// Pool sizing used unless DATABASE_URL carries its own pool_* settings.
const (
	defaultMaxConns        = 20
	defaultMinConns        = 2
	defaultMaxConnIdleTime = 5 * time.Minute
)

// applicationName identifies woodchuckd sessions in pg_stat_activity.
const applicationName = "woodchuckd"

// poolConfig parses databaseURL and fills in woodchuckd's defaults.
func poolConfig(databaseURL string) (*pgxpool.Config, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to parse database URL: %w", logPrefix, err)
	}

	if !strings.Contains(databaseURL, "pool_max_conns") {
		config.MaxConns = defaultMaxConns
	}
	if !strings.Contains(databaseURL, "pool_min_conns") {
		config.MinConns = defaultMinConns
	}
	if config.MinConns > config.MaxConns {
		config.MinConns = config.MaxConns
	}
	if !strings.Contains(databaseURL, "pool_max_conn_idle_time") {
		config.MaxConnIdleTime = defaultMaxConnIdleTime
	}
	if config.ConnConfig.RuntimeParams["application_name"] == "" {
		config.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	return config, nil
}

// NewPool opens a connection pool and checks that the database answers.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := poolConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	slog.Info(fmt.Sprintf("%s - Connecting to database %q on %s (max %d connections)",
		logPrefix, config.ConnConfig.Database, config.ConnConfig.Host, config.MaxConns))

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create pool: %w", logPrefix, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s - failed to ping database %q: %w", logPrefix, config.ConnConfig.Database, err)
	}

	slog.Info(fmt.Sprintf("%s - Database connection established", logPrefix))
	return pool, nil
}
