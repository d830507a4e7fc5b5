package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const clearLogPrefix = "db:clear"

// ClearAll truncates every woodchuck table. Schema is preserved; only data
// is removed.
func ClearAll(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info(fmt.Sprintf("%s - Clearing woodchuck tables", clearLogPrefix))

	_, err := pool.Exec(ctx, `TRUNCATE TABLE
		feedback_acks,
		feedback_subscriptions,
		download_requests,
		object_use,
		object_instance_files,
		object_instance_status,
		object_versions,
		objects,
		stream_updates,
		streams,
		managers
		RESTART IDENTITY CASCADE`)
	if err != nil {
		return fmt.Errorf("%s - truncate failed: %w", clearLogPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Tables cleared", clearLogPrefix))
	return nil
}
