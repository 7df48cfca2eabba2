// Package main applies and inspects database migrations.
//
// Usage:
//
//	migrate [-log-level info] up|down|version
//	migrate steps <n>
//	migrate force <version>
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"spcledger/internal/infrastructure/storage/postgres/migrations"
	"spcledger/pkg/config"
	"spcledger/pkg/logger"
)

func main() {
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	log, err := logger.New(logger.Config{Level: *logLevel, Development: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("failed to load configuration", "error", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("database.url (SPC_DATABASE_URL) is required")
	}

	m, err := migrations.New(cfg.Database.URL, log.Desugar())
	if err != nil {
		log.Fatalw("failed to create migrator", "error", err)
	}
	defer func() { _ = m.Close() }()

	switch command {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps":
		var n int
		if n, err = intArg(args); err == nil {
			err = m.Steps(n)
		}
	case "force":
		var v int
		if v, err = intArg(args); err == nil {
			err = m.Force(v)
		}
	case "version":
		version, dirty, verr := m.Version()
		if verr != nil {
			err = verr
			break
		}
		fmt.Printf("version: %d, dirty: %t\n", version, dirty)
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalw("migration command failed", "command", command, "error", err)
	}
	log.Infow("migration command finished", "command", command)
}

func intArg(args []string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%s requires a number", args[0])
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", args[0], args[1])
	}
	return n, nil
}

func printUsage() {
	fmt.Println(`Usage: migrate [-log-level level] <command>

Commands:
  up             apply all pending migrations
  down           roll back all migrations
  steps <n>      apply (n > 0) or roll back (n < 0) n migrations
  force <v>      set the version without running migrations (clears dirty state)
  version        print the current version

Configuration is read from config.yaml and SPC_* environment variables.`)
}
