// Package main is the entrypoint for woodchuckd.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/woodchuck/internal/config"
	"github.com/morezero/woodchuck/internal/server"
	"github.com/morezero/woodchuck/pkg/client"
	"github.com/morezero/woodchuck/pkg/commsutil"
	"github.com/morezero/woodchuck/pkg/db"
	"github.com/morezero/woodchuck/pkg/wire"
)

const usage = `Usage: woodchuckd [command]
       woodchuckd serve                        Start woodchuckd (COMMS, HTTP, woodchuck API).
       woodchuckd migrate up                   Run database migrations.
       woodchuckd migrate down                 Roll back the last applied migration using its .down.sql file.
       woodchuckd migrate status               Show migration status.
       woodchuckd ensure-db [name]             Create database if missing (default name: woodchuck_test). Uses DATABASE_URL host/user.
       woodchuckd clear                        Truncate all woodchuck tables; schema is preserved.
       woodchuckd call <path> <iface> <member> Send an argument-less method call and print the reply.

Commands:
  serve           (default) Start the woodchuck daemon.
  migrate up      Apply migrations not yet recorded in woodchuck_schema_migrations.
  migrate down    Roll back last applied migration.
  migrate status  List each migration file as applied or pending.
  ensure-db [name] Create database (e.g. woodchuck_test) on same host as DATABASE_URL; then run tests with that URL.
  clear           Truncate managers, streams, objects and feedback state; schema preserved.
  call            Call a method on a running woodchuckd, e.g.
                  woodchuckd call /org/woodchuck org.woodchuck ListManagers

Environment: DATABASE_URL (required for serve and DB commands), COMMS_URL, MIGRATION_PATH, HTTP_PORT,
WOODCHUCK_SUBJECT, WOODCHUCK_INTROSPECT_SUBJECT, WOODCHUCK_UPCALL_PREFIX, LOG_LEVEL.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "migrate":
		if len(args) < 2 {
			log.Fatalf("woodchuckd migrate: require subcommand (up, down, status)")
		}
		sub := args[1]
		switch sub {
		case "up":
			if err := withPool(runMigrateUp); err != nil {
				log.Fatalf("woodchuckd migrate up: %v", err)
			}
		case "status":
			if err := withPool(runMigrateStatus); err != nil {
				log.Fatalf("woodchuckd migrate status: %v", err)
			}
		case "down":
			if err := withPool(runMigrateDown); err != nil {
				log.Fatalf("woodchuckd migrate down: %v", err)
			}
		default:
			log.Fatalf("woodchuckd migrate: unknown subcommand %q (use up, down, status)", sub)
		}
		return
	case "clear":
		if err := withPool(runClear); err != nil {
			log.Fatalf("woodchuckd clear: %v", err)
		}
		return
	case "ensure-db":
		dbName := "woodchuck_test"
		if len(args) > 1 && args[1] != "" {
			dbName = args[1]
		}
		if err := runEnsureDB(dbName); err != nil {
			log.Fatalf("woodchuckd ensure-db: %v", err)
		}
		return
	case "call":
		if len(args) != 4 {
			log.Fatalf("woodchuckd call: require <path> <interface> <member>")
		}
		if err := runCall(args[1], args[2], args[3]); err != nil {
			log.Fatalf("woodchuckd call: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
		// serve (explicit or default)
		break
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("woodchuckd: %v", err)
	}
}

// withPool loads DB config, opens a pool and runs fn with it.
func withPool(fn func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	return fn(ctx, cfg, pool)
}

func runMigrateUp(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
	migrations, err := db.LoadMigrationFiles(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	applied, err := db.RunMigrations(ctx, pool, migrations)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	fmt.Printf("Applied %d of %d migrations.\n", len(applied), len(migrations))
	return nil
}

func runMigrateStatus(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
	migrations, err := db.LoadMigrationFiles(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	states, err := db.MigrationStatus(ctx, pool, migrations)
	if err != nil {
		return err
	}
	for _, st := range states {
		fmt.Println(st)
	}
	return nil
}

func runMigrateDown(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
	migrations, err := db.LoadMigrationFiles(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	name, err := db.MigrationDown(ctx, pool, migrations)
	if err != nil {
		return err
	}
	fmt.Printf("Rolled back %s.\n", name)
	return nil
}

func runClear(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
	if err := db.ClearAll(ctx, pool); err != nil {
		return fmt.Errorf("clear woodchuck data: %w", err)
	}
	return nil
}

func runEnsureDB(dbName string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	targetURL, err := db.DatabaseURLFor(cfg.DatabaseURL, dbName)
	if err != nil {
		return err
	}
	created, err := db.EnsureDatabase(context.Background(), targetURL)
	if err != nil {
		return err
	}
	if created {
		fmt.Printf("Database %q created.\n", dbName)
	} else {
		fmt.Printf("Database %q already exists.\n", dbName)
	}
	return nil
}

func runCall(path, iface, member string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName+"-cli")
	if err != nil {
		return err
	}
	defer nc.Close()

	ctx := context.Background()
	c, err := client.Connect(ctx, nc, &client.Options{
		CallSubject:       cfg.CallSubject,
		IntrospectSubject: cfg.IntrospectSubject,
		UpcallPrefix:      cfg.UpcallPrefix,
	})
	if err != nil {
		return err
	}
	reply, err := c.Call(ctx, path, iface, member, nil)
	if err != nil {
		return err
	}
	values, err := client.Values(reply)
	if err != nil {
		return err
	}
	fmt.Printf("signature %q\n", reply.Signature)
	for _, v := range values {
		fmt.Println(formatValue(v))
	}
	return nil
}

// formatValue renders a reply value for the terminal.
func formatValue(v wire.Value) string {
	switch v := v.(type) {
	case wire.Str:
		return strconv.Quote(string(v))
	case wire.U32:
		return strconv.FormatUint(uint64(v), 10)
	case wire.U64:
		return strconv.FormatUint(uint64(v), 10)
	case wire.Bool:
		return strconv.FormatBool(bool(v))
	case wire.Struct:
		return "(" + joinValues(v) + ")"
	case wire.Array:
		return "[" + joinValues(v.Elems) + "]"
	case wire.Dict:
		keys := v.Keys()
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, strconv.Quote(k)+": "+formatValue(v[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprintf("%v", v)
}

func joinValues(values []wire.Value) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, formatValue(v))
	}
	return strings.Join(parts, ", ")
}
