// Command migrate applies, inspects and rolls back the bus-pass schema.
//
//	migrate up            apply pending SQL migrations
//	migrate auto          run GORM AutoMigrate for the persistent models
//	migrate status        list migrations and when each was applied
//	migrate down [NNNNNN] roll back the latest migration
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"buspass/internal/config"
	"buspass/internal/database"
	"buspass/internal/observability"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: migrate <up|auto|status|down> [version]")
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, flag.Args()); err != nil {
		log.Fatalf("migrate: %v", err)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	observability.SetLogger(observability.NewLogger(os.Stderr, cfg.Env, cfg.LogLevel))
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{})
	if err != nil {
		return err
	}

	cmd := strings.ToLower(args[0])
	if cmd == "auto" {
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return err
		}
		log.Println("models auto-migrated")
		return nil
	}

	migrator, err := database.NewMigrator(db)
	if err != nil {
		return err
	}

	switch cmd {
	case "up":
		n, err := migrator.Up(ctx)
		if err != nil {
			return err
		}
		log.Printf("%d migration(s) applied", n)
	case "status":
		states, err := migrator.Status(ctx)
		if err != nil {
			return err
		}
		return printStatus(os.Stdout, states)
	case "down":
		version, err := downTarget(ctx, migrator, args[1:])
		if err != nil {
			return err
		}
		if err := migrator.Down(ctx, version); err != nil {
			return err
		}
		log.Printf("rolled back %06d", version)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}

// downTarget is the explicit version argument or, without one, the latest
// applied migration.
func downTarget(ctx context.Context, m *database.Migrator, args []string) (int, error) {
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return 0, fmt.Errorf("invalid version %q", args[0])
		}
		return v, nil
	}
	states, err := m.Status(ctx)
	if err != nil {
		return 0, err
	}
	for i := len(states) - 1; i >= 0; i-- {
		if states[i].AppliedAt != nil {
			return states[i].Version, nil
		}
	}
	return 0, errors.New("nothing to roll back")
}

func printStatus(out io.Writer, states []database.MigrationState) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MIGRATION\tAPPLIED")
	for _, s := range states {
		applied := "pending"
		if s.AppliedAt != nil {
			applied = s.AppliedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\n", s, applied)
	}
	return w.Flush()
}
