package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"

	"inkwell/internal/pkg/batchutil"
	"inkwell/internal/platform/config"
	"inkwell/internal/platform/database"
	"inkwell/internal/platform/logger"
	"inkwell/internal/platform/migration"
	"inkwell/internal/platform/telemetry"
)

const migrationLock = "inkwell:migrator"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args); err != nil {
		slog.Error("migrator failed", "error", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  migrator up")
	fmt.Fprintln(os.Stderr, "  migrator down --yes")
	fmt.Fprintln(os.Stderr, "  migrator steps -n 1")
	fmt.Fprintln(os.Stderr, "  migrator version")
	fmt.Fprintln(os.Stderr, "  migrator force -v 2 --yes")
}

type options struct {
	command     string
	steps       int
	version     int
	yes         bool
	lockTimeout time.Duration
}

func parseArgs(args []string) (options, error) {
	if len(args) < 2 {
		return options{}, fmt.Errorf("missing command")
	}
	opts := options{command: args[1]}

	fs := flag.NewFlagSet("migrator "+opts.command, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.IntVar(&opts.steps, "n", 0, "number of steps (negative rolls back)")
	fs.IntVar(&opts.version, "v", -1, "version to force")
	fs.BoolVar(&opts.yes, "yes", false, "required confirmation for destructive commands")
	fs.DurationVar(&opts.lockTimeout, "lock-timeout", time.Minute, "how long to wait for a concurrent migrator")
	if err := fs.Parse(args[2:]); err != nil {
		return options{}, err
	}

	switch opts.command {
	case "up", "version":
	case "down":
		if !opts.yes {
			return options{}, fmt.Errorf("--yes is required")
		}
	case "steps":
		if opts.steps == 0 {
			return options{}, fmt.Errorf("-n must be non-zero")
		}
	case "force":
		if opts.version < 0 {
			return options{}, fmt.Errorf("-v is required")
		}
		if !opts.yes {
			return options{}, fmt.Errorf("--yes is required")
		}
	default:
		return options{}, fmt.Errorf("unknown command: %s", opts.command)
	}
	return opts, nil
}

func run(ctx context.Context, args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		printUsage()
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.App.Storage != config.StoragePostgres {
		return fmt.Errorf("migrations need APP_STORAGE=%s (got %s)", config.StoragePostgres, cfg.App.Storage)
	}

	sentryEnabled, err := telemetry.InitSentry(cfg.Sentry)
	if err != nil {
		return fmt.Errorf("init sentry: %w", err)
	}
	if sentryEnabled {
		defer telemetry.Flush(2 * time.Second)
		defer telemetry.Recover()
	}

	log := logger.New(logger.Config{
		Level:  logger.Level(cfg.App.LogLevel),
		Format: logger.Format(cfg.App.LogFormat),
	})
	if sentryEnabled {
		log = logger.WrapWithSentry(log)
	}
	logger.SetDefault(log)

	db, err := database.New(ctx, database.ConfigFrom(cfg.Database, cfg.App.TimeZone), log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	wait := backoff.NewExponentialBackOff()
	wait.InitialInterval = 500 * time.Millisecond
	wait.MaxInterval = 5 * time.Second
	wait.MaxElapsedTime = opts.lockTimeout
	unlock, err := batchutil.WaitAdvisoryLock(ctx, db.Pool, migrationLock, wait)
	if err != nil {
		return fmt.Errorf("take migration lock: %w", err)
	}
	defer func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := unlock(unlockCtx); err != nil {
			log.Warn("unlock failed", "error", err)
		}
	}()

	runner, err := migration.New(migration.Config{
		DatabaseURL:    cfg.Database.ConnectionString(),
		MigrationsPath: cfg.Database.MigrationsPath,
		Logger:         log,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := runner.Close(); err != nil {
			log.Warn("close migration runner", "error", err)
		}
	}()

	switch opts.command {
	case "up":
		return runner.Up(ctx)
	case "down":
		if err := runner.Down(ctx); err != nil {
			return err
		}
		log.Info("all migrations rolled back")
		return nil
	case "steps":
		return runner.Steps(ctx, opts.steps)
	case "force":
		if err := runner.Force(opts.version); err != nil {
			return err
		}
		log.Info("migration version forced", "version", opts.version)
		return nil
	default:
		status, err := runner.Status()
		if err != nil {
			return err
		}
		if !status.Applied {
			fmt.Println("version=none")
			return nil
		}
		fmt.Println("version=" + strconv.FormatUint(uint64(status.Version), 10) + " dirty=" + strconv.FormatBool(status.Dirty))
		return nil
	}
}
