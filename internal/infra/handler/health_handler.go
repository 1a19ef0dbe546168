package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"inkwell/internal/pkg/timeutil"
)

const healthTimeout = 3 * time.Second

// HealthChecker is a backend the health endpoint can probe.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler serves GET /health. DB is the post store (postgres or
// memory). Cache and Storage are nil when Redis or object storage is off.
type HealthHandler struct {
	DB      HealthChecker
	Cache   HealthChecker
	Storage HealthChecker
}

type healthComponent struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// ServeHTTP probes every configured backend in parallel and answers 503 when
// any of them fails.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	probes := []struct {
		name    string
		checker HealthChecker
	}{
		{"database", h.DB},
		{"redis", h.Cache},
		{"storage", h.Storage},
	}

	results := make([]*healthComponent, len(probes))
	var wg sync.WaitGroup
	for i, p := range probes {
		if p.checker == nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = probe(ctx, p.name, p.checker)
		}()
	}
	wg.Wait()

	status := http.StatusOK
	components := make([]healthComponent, 0, len(results))
	for _, c := range results {
		if c == nil {
			continue
		}
		if c.Error != "" {
			status = http.StatusServiceUnavailable
		}
		components = append(components, *c)
	}

	label := "healthy"
	if status != http.StatusOK {
		label = "unhealthy"
	}
	writeData(w, status, label, map[string]any{
		"components": components,
		"checked_at": timeutil.Now(),
	})
}

func probe(ctx context.Context, name string, checker HealthChecker) *healthComponent {
	start := time.Now()
	err := checker.HealthCheck(ctx)
	c := &healthComponent{Name: name, Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		c.Status = "unhealthy"
		c.Error = err.Error()
	}
	return c
}
