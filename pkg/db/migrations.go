package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const migrationsLogPrefix = "db:migrations"

// migrationsTable records which migration files have been applied.
const migrationsTable = "woodchuck_schema_migrations"

// migrationLockKey serializes migration runs of concurrent woodchuckd
// processes through a transaction-scoped advisory lock.
const migrationLockKey int64 = 0x776f6f6463687563

const downSuffix = ".down.sql"

var (
	// ErrNoMigrationApplied is returned by MigrationDown when there is nothing to roll back.
	ErrNoMigrationApplied = errors.New("no migration applied")
	// ErrIrreversible is returned by MigrationDown when the last applied
	// migration has no down file.
	ErrIrreversible = errors.New("migration has no down file")
)

// Migration is one schema change. Name is the up file's name, which is
// also the key in the tracking table. Down is empty when the change has
// no <name>.down.sql companion.
type Migration struct {
	Name string
	Up   string
	Down string
}

// LoadMigrationFiles reads the migrations in dir, ordered by file name.
// A file named <base>.down.sql is the rollback of <base>.sql.
func LoadMigrationFiles(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read migration dir %s: %w", migrationsLogPrefix, dir, err)
	}

	var ups, downs []string
	for _, e := range entries {
		name := e.Name()
		switch {
		case e.IsDir() || filepath.Ext(name) != ".sql":
		case strings.HasSuffix(name, downSuffix):
			downs = append(downs, name)
		default:
			ups = append(ups, name)
		}
	}
	sort.Strings(ups)

	read := func(name string) (string, error) {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return "", fmt.Errorf("%s - failed to read %s: %w", migrationsLogPrefix, name, err)
		}
		return string(data), nil
	}

	out := make([]Migration, 0, len(ups))
	index := make(map[string]int, len(ups))
	for _, name := range ups {
		sql, err := read(name)
		if err != nil {
			return nil, err
		}
		index[name] = len(out)
		out = append(out, Migration{Name: name, Up: sql})
	}
	for _, name := range downs {
		up := strings.TrimSuffix(name, downSuffix) + ".sql"
		i, ok := index[up]
		if !ok {
			return nil, fmt.Errorf("%s - %s has no matching %s", migrationsLogPrefix, name, up)
		}
		sql, err := read(name)
		if err != nil {
			return nil, err
		}
		out[i].Down = sql
	}

	slog.Info(fmt.Sprintf("%s - Loaded %d migrations from %s", migrationsLogPrefix, len(out), dir))
	return out, nil
}

func ensureMigrationsTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+migrationsTable+` (
		name       TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return fmt.Errorf("%s - failed to create %s: %w", migrationsLogPrefix, migrationsTable, err)
	}
	return nil
}

func lockMigrations(ctx context.Context, tx pgx.Tx) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockKey); err != nil {
		return fmt.Errorf("%s - failed to take migration lock: %w", migrationsLogPrefix, err)
	}
	return nil
}

// RunMigrations applies, in order, every migration not yet recorded in
// the tracking table. Each one runs in its own transaction together with
// its tracking row. Returns the names applied by this call.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) ([]string, error) {
	if err := ensureMigrationsTable(ctx, pool); err != nil {
		return nil, err
	}

	var applied []string
	for _, m := range migrations {
		ran := false
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if err := lockMigrations(ctx, tx); err != nil {
				return err
			}
			var done bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM `+migrationsTable+` WHERE name = $1)`, m.Name).Scan(&done); err != nil {
				return err
			}
			if done {
				return nil
			}
			if _, err := tx.Exec(ctx, m.Up); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `INSERT INTO `+migrationsTable+` (name) VALUES ($1)`, m.Name); err != nil {
				return err
			}
			ran = true
			return nil
		})
		if err != nil {
			return applied, fmt.Errorf("%s - migration %s failed: %w", migrationsLogPrefix, m.Name, err)
		}
		if ran {
			slog.Info(fmt.Sprintf("%s - Applied %s", migrationsLogPrefix, m.Name))
			applied = append(applied, m.Name)
		}
	}

	slog.Info(fmt.Sprintf("%s - Migrations complete: %d applied, %d already present",
		migrationsLogPrefix, len(applied), len(migrations)-len(applied)))
	return applied, nil
}

// MigrationState is the status of one migration.
type MigrationState struct {
	Name       string
	AppliedAt  *time.Time
	Reversible bool
	// Missing marks a recorded migration whose file is no longer in the directory.
	Missing bool
}

func (s MigrationState) String() string {
	switch {
	case s.Missing:
		return fmt.Sprintf("%s: applied %s, file missing", s.Name, s.AppliedAt.UTC().Format(time.RFC3339))
	case s.AppliedAt != nil:
		return fmt.Sprintf("%s: applied %s", s.Name, s.AppliedAt.UTC().Format(time.RFC3339))
	}
	return s.Name + ": pending"
}

// migrationStates merges the migration files with the tracking rows.
// Recorded names without a file come last, in name order.
func migrationStates(migrations []Migration, applied map[string]time.Time) []MigrationState {
	out := make([]MigrationState, 0, len(migrations))
	seen := make(map[string]bool, len(migrations))
	for _, m := range migrations {
		st := MigrationState{Name: m.Name, Reversible: m.Down != ""}
		if at, ok := applied[m.Name]; ok {
			st.AppliedAt = &at
		}
		seen[m.Name] = true
		out = append(out, st)
	}

	var orphans []string
	for name := range applied {
		if !seen[name] {
			orphans = append(orphans, name)
		}
	}
	sort.Strings(orphans)
	for _, name := range orphans {
		at := applied[name]
		out = append(out, MigrationState{Name: name, AppliedAt: &at, Missing: true})
	}
	return out
}

// MigrationStatus reports, per migration file, whether and when it was
// applied. A database that was never migrated reports every file pending.
func MigrationStatus(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) ([]MigrationState, error) {
	var exists bool
	if err := pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, migrationsTable).Scan(&exists); err != nil {
		return nil, fmt.Errorf("%s - failed to look up %s: %w", migrationsLogPrefix, migrationsTable, err)
	}
	applied := map[string]time.Time{}
	if exists {
		rows, err := pool.Query(ctx, `SELECT name, applied_at FROM `+migrationsTable)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to read %s: %w", migrationsLogPrefix, migrationsTable, err)
		}
		type appliedRow struct {
			Name      string
			AppliedAt time.Time
		}
		recorded, err := pgx.CollectRows(rows, pgx.RowToStructByPos[appliedRow])
		if err != nil {
			return nil, fmt.Errorf("%s - failed to scan %s: %w", migrationsLogPrefix, migrationsTable, err)
		}
		for _, r := range recorded {
			applied[r.Name] = r.AppliedAt
		}
	}
	return migrationStates(migrations, applied), nil
}

func findMigration(migrations []Migration, name string) (Migration, bool) {
	for _, m := range migrations {
		if m.Name == name {
			return m, true
		}
	}
	return Migration{}, false
}

// MigrationDown rolls back the most recently applied migration using its
// down file and returns its name.
func MigrationDown(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) (string, error) {
	if err := ensureMigrationsTable(ctx, pool); err != nil {
		return "", err
	}

	var name string
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if err := lockMigrations(ctx, tx); err != nil {
			return err
		}
		err := tx.QueryRow(ctx,
			`SELECT name FROM `+migrationsTable+` ORDER BY applied_at DESC, name DESC LIMIT 1`).Scan(&name)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNoMigrationApplied
		}
		if err != nil {
			return err
		}
		m, ok := findMigration(migrations, name)
		if !ok || m.Down == "" {
			return fmt.Errorf("%s: %w", name, ErrIrreversible)
		}
		if _, err := tx.Exec(ctx, m.Down); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM `+migrationsTable+` WHERE name = $1`, name)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%s - rollback failed: %w", migrationsLogPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - Rolled back %s", migrationsLogPrefix, name))
	return name, nil
}
