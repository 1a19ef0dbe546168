package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	infraRedis "inkwell/internal/infra/redis"
	"inkwell/internal/pkg/timeutil"
	"inkwell/internal/platform/auth"
	"inkwell/internal/platform/cache"
	"inkwell/internal/platform/config"
	"inkwell/internal/platform/logger"
	"inkwell/internal/platform/telemetry"
)

const keyPrefix = "inkwell:"

func main() {
	if err := run(context.Background(), os.Args, os.Stdout); err != nil {
		slog.Error("admin command failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) < 2 {
		printUsage()
		return fmt.Errorf("missing command")
	}
	switch args[1] {
	case "cache":
		return runCache(ctx, args[2:])
	case "token":
		return runToken(args[2:], out)
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", args[1])
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  admin cache purge --pattern 'inkwell:search:*' --yes")
	fmt.Fprintln(os.Stderr, "  admin token issue --user 3f1c...-uuid [--ttl 24h]")
}

func runCache(ctx context.Context, args []string) error {
	if len(args) < 1 {
		printUsage()
		return fmt.Errorf("missing cache subcommand")
	}
	switch args[0] {
	case "purge":
		return runCachePurge(ctx, args[1:])
	default:
		printUsage()
		return fmt.Errorf("unknown cache subcommand: %s", args[0])
	}
}

func runToken(args []string, out io.Writer) error {
	if len(args) < 1 {
		printUsage()
		return fmt.Errorf("missing token subcommand")
	}
	switch args[0] {
	case "issue":
		return runTokenIssue(args[1:], out)
	default:
		printUsage()
		return fmt.Errorf("unknown token subcommand: %s", args[0])
	}
}

type purgeOptions struct {
	pattern   string
	batchSize int64
}

func parsePurgeArgs(args []string) (purgeOptions, error) {
	fs := flag.NewFlagSet("cache purge", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	pattern := fs.String("pattern", infraRedis.SearchCachePattern, "delete keys by pattern (must start with 'inkwell:')")
	batchSize := fs.Int64("batch-size", 500, "SCAN batch size")
	yes := fs.Bool("yes", false, "required confirmation")
	if err := fs.Parse(args); err != nil {
		return purgeOptions{}, err
	}
	if !*yes {
		return purgeOptions{}, fmt.Errorf("--yes is required")
	}
	if strings.TrimSpace(*pattern) == "" {
		return purgeOptions{}, fmt.Errorf("--pattern is required")
	}
	if !strings.HasPrefix(*pattern, keyPrefix) {
		return purgeOptions{}, fmt.Errorf("pattern must start with '%s'", keyPrefix)
	}
	if *batchSize <= 0 {
		return purgeOptions{}, fmt.Errorf("--batch-size must be positive")
	}
	return purgeOptions{pattern: *pattern, batchSize: *batchSize}, nil
}

func runCachePurge(ctx context.Context, args []string) error {
	opts, err := parsePurgeArgs(args)
	if err != nil {
		return err
	}

	log, redisClient, closeAll, sentryEnabled, err := connect()
	if err != nil {
		return err
	}
	defer closeAll()
	if sentryEnabled {
		defer telemetry.Recover()
	}

	deleted, err := redisClient.DeleteByPattern(ctx, opts.pattern, opts.batchSize)
	if err != nil {
		return err
	}
	log.Info("cache purge completed", "pattern", opts.pattern, "deleted", deleted)
	return nil
}

type tokenOptions struct {
	userID uuid.UUID
	ttl    time.Duration
}

func parseTokenArgs(args []string, defaultTTL time.Duration) (tokenOptions, error) {
	fs := flag.NewFlagSet("token issue", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	user := fs.String("user", "", "user id (UUID) placed in the token subject")
	ttl := fs.Duration("ttl", defaultTTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return tokenOptions{}, err
	}
	id, err := uuid.Parse(strings.TrimSpace(*user))
	if err != nil || id == uuid.Nil {
		return tokenOptions{}, fmt.Errorf("--user must be a non-nil UUID")
	}
	if *ttl <= 0 {
		return tokenOptions{}, fmt.Errorf("--ttl must be positive")
	}
	return tokenOptions{userID: id, ttl: *ttl}, nil
}

func runTokenIssue(args []string, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	opts, err := parseTokenArgs(args, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		return err
	}
	token, err := issuer.Issue(opts.userID, opts.ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

func connect() (*slog.Logger, *cache.Cache, func(), bool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, func() {}, false, fmt.Errorf("load config: %w", err)
	}
	if err := timeutil.SetLocation(cfg.App.TimeZone); err != nil {
		return nil, nil, func() {}, false, fmt.Errorf("load timezone: %w", err)
	}
	if !cfg.Redis.Enabled {
		return nil, nil, func() {}, false, fmt.Errorf("redis is disabled (REDIS_ENABLED=false)")
	}

	sentryEnabled, err := telemetry.InitSentry(cfg.Sentry)
	if err != nil {
		return nil, nil, func() {}, false, fmt.Errorf("init sentry: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  logger.Level(cfg.App.LogLevel),
		Format: logger.Format(cfg.App.LogFormat),
	})
	if sentryEnabled {
		log = logger.WrapWithSentry(log)
	}
	logger.SetDefault(log)

	redisClient, err := cache.New(cache.ConfigFrom(cfg.Redis), log)
	if err != nil {
		return nil, nil, func() {}, sentryEnabled, fmt.Errorf("connect redis: %w", err)
	}
	closeAll := func() {
		if sentryEnabled {
			telemetry.Flush(2 * time.Second)
		}
		_ = redisClient.Close()
	}
	return log, redisClient, closeAll, sentryEnabled, nil
}
