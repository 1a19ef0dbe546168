package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"inkwell/internal/platform/auth"
)

// RequestLogger logs one line per request. 5xx responses log at error level
// and 4xx at warn.
func RequestLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}
			logger.LogAttrs(r.Context(), level, "http request",
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("query", r.URL.RawQuery),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

// Recoverer turns a panic into a 500 envelope and reports it to Sentry.
func Recoverer(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				logger.Error("panic recovered",
					"panic", fmt.Sprint(rvr),
					"request_id", middleware.GetReqID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
				)
				if hub := sentry.CurrentHub(); hub != nil {
					hub.Recover(rvr)
				}
				writeJSONError(w, http.StatusInternalServerError, "internal", "internal error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}

const (
	corsAllowMethods  = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsAllowHeaders  = "Accept, Authorization, Content-Type"
	corsExposeHeaders = "Retry-After, X-Cache, X-RateLimit-Limit, X-RateLimit-Remaining"
)

// CORS allows browser clients from allowedOrigins. "*" allows any origin.
// Preflight requests are answered directly with 204.
func CORS(allowedOrigins []string) func(next http.Handler) http.Handler {
	allowAny := false
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			allowAny = true
			continue
		}
		if o != "" {
			allowed[o] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				w.Header().Add("Vary", "Origin")
				_, ok := allowed[origin]
				if allowAny || ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", corsAllowMethods)
					w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
					w.Header().Set("Access-Control-Expose-Headers", corsExposeHeaders)
					w.Header().Set("Access-Control-Max-Age", "3600")
				}
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders sets headers suited to a JSON-only API.
func SecurityHeaders() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

			next.ServeHTTP(w, r)
		})
	}
}

// WindowCounter counts hits in a fixed window shared across instances.
type WindowCounter interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RateLimitConfig configures RateLimit. With a Counter the limit is a fixed
// window shared by every instance; without one each instance keeps a token
// bucket per key.
type RateLimitConfig struct {
	Counter WindowCounter
	Limit   int
	Window  time.Duration
	Logger  *slog.Logger

	Prefix string
	Skip   func(r *http.Request) bool
	Key    func(r *http.Request) (string, error)
}

// RateLimit rejects a key's requests beyond Limit per Window with 429. The
// default key is the signed-in user, falling back to the client IP, so it has
// to run after auth.Middleware.
func RateLimit(cfg RateLimitConfig) func(next http.Handler) http.Handler {
	if cfg.Limit <= 0 || cfg.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = "ratelimit"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	skip := cfg.Skip
	if skip == nil {
		skip = func(*http.Request) bool { return false }
	}
	keyFunc := cfg.Key
	if keyFunc == nil {
		keyFunc = requesterKey
	}

	var allow func(r *http.Request, key string) (int, time.Duration, error)
	if cfg.Counter != nil {
		allow = func(r *http.Request, key string) (int, time.Duration, error) {
			count, resetIn, err := cfg.Counter.IncrementWindow(r.Context(), prefix+":"+key, cfg.Window)
			if err != nil {
				return cfg.Limit, 0, err
			}
			return cfg.Limit - int(count), resetIn, nil
		}
	} else {
		local := newLocalLimiter(cfg.Limit, cfg.Window)
		allow = func(_ *http.Request, key string) (int, time.Duration, error) {
			remaining, wait := local.take(key)
			return remaining, wait, nil
		}
	}
	limitHeader := strconv.Itoa(cfg.Limit)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			key, err := keyFunc(r)
			if err != nil {
				logger.Debug("rate limit key unavailable", "error", err, "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			remaining, wait, err := allow(r, key)
			if err != nil {
				// Counter outages fail open.
				logger.Warn("rate limit counter failed", "error", err, "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", limitHeader)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
			if remaining < 0 {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
				writeJSONError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func requesterKey(r *http.Request) (string, error) {
	if id := auth.RequesterID(r.Context()); id != uuid.Nil {
		return "user:" + id.String(), nil
	}
	ip := clientIP(r)
	if ip == "" {
		return "", fmt.Errorf("client ip is empty")
	}
	return "ip:" + ip, nil
}

func retryAfterSeconds(wait time.Duration) int {
	return max(int(math.Ceil(wait.Seconds())), 1)
}

const localLimiterIdle = 5 * time.Minute

type localLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	buckets  map[string]*localBucket
	lastScan time.Time
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLocalLimiter(limit int, window time.Duration) *localLimiter {
	return &localLimiter{
		limit:   rate.Every(window / time.Duration(limit)),
		burst:   limit,
		buckets: make(map[string]*localBucket),
	}
}

// take spends one token for key. A negative remaining count means the request
// is over the limit and wait says when the next token frees up.
func (l *localLimiter) take(key string) (remaining int, wait time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastScan) > localLimiterIdle {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > localLimiterIdle {
				delete(l.buckets, k)
			}
		}
		l.lastScan = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &localBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	res := b.limiter.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return -1, delay
	}
	return int(b.limiter.TokensAt(now)), 0
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func writeJSONError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"message": message,
		"error":   kind,
	})
}
