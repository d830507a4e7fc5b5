package db

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
)

const ensureLogPrefix = "db:ensure"

// maintenanceDatabase is connected to while creating another database.
const maintenanceDatabase = "postgres"

// databaseNamePattern accepts unquoted Postgres identifiers up to the
// 63-byte limit.
var databaseNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

func checkDatabaseName(name string) error {
	if name == "" {
		return fmt.Errorf("%s - database name empty in URL", ensureLogPrefix)
	}
	if !databaseNamePattern.MatchString(name) {
		return fmt.Errorf("%s - database name %q is not a plain identifier", ensureLogPrefix, name)
	}
	return nil
}

// DatabaseURLFor returns databaseURL pointing at database name instead.
// Credentials, host and query parameters are kept.
func DatabaseURLFor(databaseURL, name string) (string, error) {
	if err := checkDatabaseName(name); err != nil {
		return "", err
	}
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("%s - invalid database URL: %w", ensureLogPrefix, err)
	}
	u.Path = "/" + name
	return u.String(), nil
}

// targetDatabase splits databaseURL into the database it names and the
// URL of the maintenance database on the same server.
func targetDatabase(databaseURL string) (name, maintenanceURL string, err error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", "", fmt.Errorf("%s - invalid database URL: %w", ensureLogPrefix, err)
	}
	name = strings.TrimSpace(strings.TrimPrefix(u.Path, "/"))
	if err := checkDatabaseName(name); err != nil {
		return "", "", err
	}
	maintenance := *u
	maintenance.Path = "/" + maintenanceDatabase
	return name, maintenance.String(), nil
}

// EnsureDatabase creates the database named in databaseURL if it does not
// exist, e.g. woodchuck_test before an integration run. Reports whether it
// was created.
func EnsureDatabase(ctx context.Context, databaseURL string) (bool, error) {
	name, maintenanceURL, err := targetDatabase(databaseURL)
	if err != nil {
		return false, err
	}

	config, err := pgx.ParseConfig(maintenanceURL)
	if err != nil {
		return false, fmt.Errorf("%s - failed to parse maintenance URL: %w", ensureLogPrefix, err)
	}
	// CREATE DATABASE must not run in a transaction block.
	config.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	conn, err := pgx.ConnectConfig(ctx, config)
	if err != nil {
		return false, fmt.Errorf("%s - failed to connect to %s: %w", ensureLogPrefix, maintenanceDatabase, err)
	}
	defer conn.Close(ctx)

	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s - failed to check database %q: %w", ensureLogPrefix, name, err)
	}
	if exists {
		return false, nil
	}

	slog.Info(fmt.Sprintf("%s - Creating database %q", ensureLogPrefix, name))
	if _, err := conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize()); err != nil {
		return false, fmt.Errorf("%s - CREATE DATABASE %q failed: %w", ensureLogPrefix, name, err)
	}
	return true, nil
}
