package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"inkwell/internal/domain/repository"
	"inkwell/internal/infra/handler"
	"inkwell/internal/infra/memory"
	infraMinio "inkwell/internal/infra/minio"
	infraPostgres "inkwell/internal/infra/postgres"
	infraRedis "inkwell/internal/infra/redis"
	"inkwell/internal/pkg/timeutil"
	"inkwell/internal/platform/auth"
	"inkwell/internal/platform/cache"
	"inkwell/internal/platform/config"
	"inkwell/internal/platform/database"
	"inkwell/internal/platform/logger"
	"inkwell/internal/platform/metrics"
	"inkwell/internal/platform/server"
	"inkwell/internal/platform/telemetry"
	usecaseComment "inkwell/internal/usecase/comment"
	usecaseLike "inkwell/internal/usecase/like"
	usecasePost "inkwell/internal/usecase/post"
	usecaseSearch "inkwell/internal/usecase/search"
)

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

// stores is the selected storage backend.
type stores struct {
	posts    repository.PostRepository
	comments repository.CommentRepository
	health   handler.HealthChecker
	db       *database.DB
	close    func()
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := timeutil.SetLocation(cfg.App.TimeZone); err != nil {
		return fmt.Errorf("load timezone: %w", err)
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
		Level:      logger.Level(cfg.App.LogLevel),
		Format:     logger.Format(cfg.App.LogFormat),
		File:       cfg.App.LogFile,
		MaxSizeMB:  cfg.App.LogMaxSizeMB,
		MaxBackups: cfg.App.LogMaxBackups,
		MaxAgeDays: cfg.App.LogMaxAgeDays,
	})
	if sentryEnabled {
		log = logger.WrapWithSentry(log)
	}
	logger.SetDefault(log)

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	var redisClient *cache.Cache
	if cfg.Redis.Enabled {
		redisClient, err = cache.New(cache.ConfigFrom(cfg.Redis), log)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("failed to close redis", "error", err)
			}
		}()
	}

	// Each consumer gets a nil interface, never a typed nil, when caching is off.
	var (
		resultCache usecaseSearch.ResultCache
		postPurger  usecasePost.CachePurger
		likePurger  usecaseLike.CachePurger
	)
	if redisClient != nil && cfg.App.CacheEnabled {
		searchCache := infraRedis.NewSearchCache(redisClient, cfg.App.SearchCacheTTL)
		resultCache, postPurger, likePurger = searchCache, searchCache, searchCache
	}

	var (
		images       usecasePost.ImageStore
		imageChecker handler.HealthChecker
	)
	if cfg.Storage.Enabled {
		store, err := infraMinio.New(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("connect object storage: %w", err)
		}
		images, imageChecker = store, store
	}

	var (
		registerer  prometheus.Registerer
		httpMetrics *metrics.HTTPMetrics
	)
	if cfg.App.EnableMetrics {
		registry := prometheus.NewRegistry()
		registerer = registry
		httpMetrics = metrics.NewHTTPMetricsWithRegistry(registry)
	}
	domainMetrics := metrics.NewDomain(registerer)
	if st.db != nil {
		if err := st.db.RegisterMetrics(registerer); err != nil {
			return err
		}
	}

	replyPolicy, err := usecaseComment.ParseReplyPolicy(cfg.App.ReplyPolicy)
	if err != nil {
		return err
	}

	postService := usecasePost.NewService(st.posts, images, postPurger, logger.Component(log, "post"))
	commentService := usecaseComment.NewService(st.comments, st.posts, replyPolicy, domainMetrics, logger.Component(log, "comment"))
	likeService := usecaseLike.NewService(st.posts, likePurger, domainMetrics, cfg.App.LikeMaxRetries, logger.Component(log, "like"))
	searchService := usecaseSearch.NewService(st.posts, resultCache, logger.Component(log, "search"))

	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		log.Warn("bearer tokens disabled; every request is anonymous", "error", err)
		verifier = nil
	}

	healthHandler := &handler.HealthHandler{DB: st.health, Storage: imageChecker}
	if redisClient != nil {
		healthHandler.Cache = redisClient
	}

	middlewares := []func(http.Handler) http.Handler{
		server.Recoverer(log),
		server.RequestLogger(log),
		server.SecurityHeaders(),
		server.CORS(cfg.App.CORSOrigins),
	}
	if httpMetrics != nil {
		middlewares = append(middlewares, httpMetrics.Middleware)
	}
	middlewares = append(middlewares, auth.Middleware(verifier, log))
	if cfg.App.RateLimitEnabled {
		limitCfg := server.RateLimitConfig{
			Limit:  cfg.App.RateLimitMaxRequests,
			Window: cfg.App.RateLimitWindow,
			Logger: log,
			Prefix: "inkwell:ratelimit",
			Skip: func(r *http.Request) bool {
				return r.URL.Path == "/metrics" || strings.HasSuffix(r.URL.Path, "/health")
			},
		}
		if redisClient != nil {
			limitCfg.Counter = redisClient
		}
		middlewares = append(middlewares, server.RateLimit(limitCfg))
	}
	if cfg.App.RequestTimeout > 0 {
		middlewares = append(middlewares, middleware.Timeout(cfg.App.RequestTimeout))
	}

	routerCfg := handler.RouterConfig{
		PostHandler:    handler.NewPostHandler(postService, log),
		CommentHandler: handler.NewCommentHandler(commentService, log),
		LikeHandler:    handler.NewLikeHandler(likeService, log),
		SearchHandler:  handler.NewSearchHandler(searchService, log),
		HealthHandler:  healthHandler,
		APIBasePath:    cfg.App.APIBasePath,
		Middlewares:    middlewares,
	}
	if httpMetrics != nil {
		routerCfg.PrometheusHandler = httpMetrics.Handler()
	}

	srv := server.New(server.Config{
		Address:      cfg.Server.Address(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, handler.NewRouter(routerCfg), log)

	log.Info("inkwell starting",
		"storage", cfg.App.Storage,
		"cache", resultCache != nil,
		"images", images != nil,
		"metrics", httpMetrics != nil,
		"reply_policy", replyPolicy,
	)
	return srv.ListenAndServeWithGracefulShutdown(ctx)
}

func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (stores, error) {
	if cfg.App.Storage == config.StorageMemory {
		store := memory.New()
		log.Warn("using in-memory storage; data is lost on restart")
		return stores{
			posts:    store.Posts(),
			comments: store.Comments(),
			health:   store,
			close:    func() {},
		}, nil
	}

	db, err := database.New(ctx, database.ConfigFrom(cfg.Database, cfg.App.TimeZone), log)
	if err != nil {
		return stores{}, fmt.Errorf("connect database: %w", err)
	}
	return stores{
		posts:    infraPostgres.NewPostRepository(db.Pool),
		comments: infraPostgres.NewCommentRepository(db.Pool),
		health:   db,
		db:       db,
		close:    db.Close,
	}, nil
}
