// Package main is the entrypoint for browser-bridge (binary name "bridge").
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/morezero/browser-bridge/internal/config"
	"github.com/morezero/browser-bridge/internal/server"
	"github.com/morezero/browser-bridge/pkg/capspec"
	"github.com/morezero/browser-bridge/pkg/db"
)

const usage = `Usage: bridge [command]
       bridge serve [engine]            Start the bridge (HTTP, NATS when COMMS_URL is set).
       bridge spec normalize <in> [out] Rewrite an API description into a capability spec.
       bridge spec check [file]         Validate a capability spec (default: the built-in spec).
       bridge migrate up                Create the command journal tables.
       bridge migrate down              Roll back the newest journal migration.
       bridge migrate status            Show journal migration status.

Commands:
  serve [engine]    (default) Start the bridge; engine is chrome, chromium, firefox or webkit.
  spec normalize    Normalize an API description read from <in> (or - for stdin) to [out] or stdout.
  spec check        Load and validate a capability spec file.
  migrate up        Run journal migrations only.
  migrate down      Roll back the newest migration with its .down.sql file.
  migrate status    Show current migration status.

Environment: BRIDGE_ENGINE, BRIDGE_HTTP_ADDR (default :6969), COMMS_URL, ALLOW_SCRIPTS,
CAPABILITY_SPEC_FILE, JOURNAL_DATABASE_URL (required for migrate), MIGRATION_PATH.
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
			log.Fatalf("bridge migrate: require subcommand (up, down, status)")
		}
		sub := args[1]
		switch sub {
		case "up":
			if err := runMigrate(migrateUp); err != nil {
				log.Fatalf("bridge migrate up: %v", err)
			}
		case "status":
			if err := runMigrate(migrateStatus); err != nil {
				log.Fatalf("bridge migrate status: %v", err)
			}
		case "down":
			if err := runMigrate(migrateDown); err != nil {
				log.Fatalf("bridge migrate down: %v", err)
			}
		default:
			log.Fatalf("bridge migrate: unknown subcommand %q (use up, down, status)", sub)
		}
		return
	case "spec":
		if len(args) < 2 {
			log.Fatalf("bridge spec: require subcommand (normalize, check)")
		}
		switch args[1] {
		case "normalize":
			if len(args) < 3 {
				log.Fatalf("bridge spec normalize: require an input file")
			}
			out := ""
			if len(args) > 3 {
				out = args[3]
			}
			if err := runNormalize(args[2], out); err != nil {
				log.Fatalf("bridge spec normalize: %v", err)
			}
		case "check":
			file := ""
			if len(args) > 2 {
				file = args[2]
			}
			if err := runCheck(os.Stdout, file); err != nil {
				log.Fatalf("bridge spec check: %v", err)
			}
		default:
			log.Fatalf("bridge spec: unknown subcommand %q (use normalize, check)", args[1])
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

	engineName := ""
	if cmd == "serve" && len(args) > 1 {
		engineName = args[1]
	}
	if err := server.Run(engineName); err != nil {
		log.Fatalf("bridge: %v", err)
	}
}

type migrateAction int

const (
	migrateUp migrateAction = iota
	migrateStatus
	migrateDown
)

func runMigrate(action migrateAction) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.JournalDatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	switch action {
	case migrateStatus:
		return db.MigrationStatus(ctx, pool, cfg.MigrationPath)
	case migrateDown:
		return db.MigrationDown(ctx, pool, cfg.MigrationPath)
	}
	migrationSQL, err := db.LoadMigrationFiles(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	if err := db.RunMigrations(ctx, pool, migrationSQL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func runNormalize(in, out string) error {
	var r io.Reader = os.Stdin
	if in != "-" {
		f, err := os.Open(in)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	if out == "" {
		return capspec.Normalize(r, os.Stdout)
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := capspec.Normalize(r, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runCheck(w io.Writer, file string) error {
	var spec *capspec.Spec
	var err error
	if file == "" {
		spec = capspec.Default()
	} else if spec, err = capspec.Load(file); err != nil {
		return err
	}
	ops := 0
	for _, typ := range spec.Types() {
		ops += len(spec.Operations(typ))
	}
	fmt.Fprintf(w, "capability spec OK: %d types, %d commands\n", len(spec.Types()), ops)
	return nil
}
