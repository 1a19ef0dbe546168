// Package migration applies the SQL schema in migrations/ with golang-migrate.
package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"inkwell/migrations"
)

// Config holds migration settings.
type Config struct {
	DatabaseURL string
	// MigrationsPath is a source URL such as "file://migrations". Empty uses
	// the migrations embedded in the binary.
	MigrationsPath string
	Logger         *slog.Logger
}

// Status is the schema version recorded in schema_migrations.
type Status struct {
	Version uint
	Dirty   bool
	// Applied is false on a database that has never been migrated.
	Applied bool
}

// Runner applies migrations.
type Runner struct {
	migrate *migrate.Migrate
	logger  *slog.Logger
}

// New opens the migration source and the database.
func New(cfg Config) (*Runner, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		m   *migrate.Migrate
		err error
	)
	if strings.TrimSpace(cfg.MigrationsPath) == "" {
		src, srcErr := iofs.New(migrations.FS, ".")
		if srcErr != nil {
			return nil, fmt.Errorf("open embedded migrations: %w", srcErr)
		}
		m, err = migrate.NewWithSourceInstance("iofs", src, cfg.DatabaseURL)
	} else {
		m, err = migrate.New(cfg.MigrationsPath, cfg.DatabaseURL)
	}
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	m.Log = migrateLogger{logger: logger}

	return &Runner{migrate: m, logger: logger}, nil
}

// Up applies every pending migration. Cancelling ctx stops after the
// migration in progress.
func (r *Runner) Up(ctx context.Context) error {
	defer r.stopOn(ctx)()
	if err := r.migrate.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	status, err := r.Status()
	if err != nil {
		return err
	}
	r.logger.Info("schema up to date", "version", status.Version, "dirty", status.Dirty)
	return nil
}

// Down rolls back every migration.
func (r *Runner) Down(ctx context.Context) error {
	defer r.stopOn(ctx)()
	if err := r.migrate.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// Steps applies n migrations forward (n > 0) or backward (n < 0).
func (r *Runner) Steps(ctx context.Context, n int) error {
	if n == 0 {
		return nil
	}
	defer r.stopOn(ctx)()
	if err := r.migrate.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate steps %d: %w", n, err)
	}
	r.logger.Info("migration steps applied", "steps", n)
	return nil
}

// Force records version as clean without running anything. It is the way out
// of a dirty state after a failed migration was fixed by hand.
func (r *Runner) Force(version int) error {
	if err := r.migrate.Force(version); err != nil {
		return fmt.Errorf("migrate force %d: %w", version, err)
	}
	return nil
}

// Status reports the current schema version.
func (r *Runner) Status() (Status, error) {
	version, dirty, err := r.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("read schema version: %w", err)
	}
	return Status{Version: version, Dirty: dirty, Applied: true}, nil
}

// Close releases the source and the database connection.
func (r *Runner) Close() error {
	srcErr, dbErr := r.migrate.Close()
	return errors.Join(srcErr, dbErr)
}

// stopOn asks migrate to stop gracefully once ctx ends. The returned func
// releases the watcher.
func (r *Runner) stopOn(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			select {
			case r.migrate.GracefulStop <- true:
			default:
			}
		case <-done:
		}
	}()
	return func() { close(done) }
}

// migrateLogger routes golang-migrate output into slog at debug level.
type migrateLogger struct {
	logger *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}

func (l migrateLogger) Verbose() bool {
	return l.logger.Enabled(context.Background(), slog.LevelDebug)
}
