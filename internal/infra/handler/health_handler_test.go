package handler

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type healthData struct {
	Components []struct {
		Name      string  `json:"name"`
		Status    string  `json:"status"`
		Error     *string `json:"error"`
		LatencyMS int64   `json:"latency_ms"`
	} `json:"components"`
	CheckedAt string `json:"checked_at"`
}

func TestHealthHandler_Healthy(t *testing.T) {
	handler := &HealthHandler{
		DB:    &mockHealthChecker{},
		Cache: &mockHealthChecker{},
	}

	ts := newTestServer(RouterConfig{HealthHandler: handler})
	defer ts.Close()

	resp := ts.get(t, apiPath("/health"))
	assertStatus(t, resp, http.StatusOK)
	assertContentType(t, resp, "application/json")

	result := decodeEnvelope[healthData](t, resp)
	if result.Message != "healthy" {
		t.Errorf("message = %q, want %q", result.Message, "healthy")
	}
	if len(result.Data.Components) != 2 {
		t.Fatalf("got %d components, want 2", len(result.Data.Components))
	}
	for _, c := range result.Data.Components {
		if c.Status != "healthy" {
			t.Errorf("component %s status = %q, want healthy", c.Name, c.Status)
		}
		if c.Error != nil {
			t.Errorf("healthy component %s should not have error field", c.Name)
		}
	}
	if result.Data.CheckedAt == "" {
		t.Error("checked_at should be set")
	}
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	failing := func(ctx context.Context) error { return fmt.Errorf("connection refused") }

	tests := []struct {
		name      string
		db        *mockHealthChecker
		cache     *mockHealthChecker
		unhealthy map[string]bool
	}{
		{
			name:      "database down",
			db:        &mockHealthChecker{healthCheckFunc: failing},
			cache:     &mockHealthChecker{},
			unhealthy: map[string]bool{"database": true},
		},
		{
			name:      "redis down",
			db:        &mockHealthChecker{},
			cache:     &mockHealthChecker{healthCheckFunc: failing},
			unhealthy: map[string]bool{"redis": true},
		},
		{
			name:      "everything down",
			db:        &mockHealthChecker{healthCheckFunc: failing},
			cache:     &mockHealthChecker{healthCheckFunc: failing},
			unhealthy: map[string]bool{"database": true, "redis": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(RouterConfig{HealthHandler: &HealthHandler{DB: tt.db, Cache: tt.cache}})
			defer ts.Close()

			resp := ts.get(t, apiPath("/health"))
			assertStatus(t, resp, http.StatusServiceUnavailable)

			result := decodeEnvelope[healthData](t, resp)
			if result.Message != "unhealthy" {
				t.Errorf("message = %q, want unhealthy", result.Message)
			}
			for _, c := range result.Data.Components {
				want := "healthy"
				if tt.unhealthy[c.Name] {
					want = "unhealthy"
				}
				if c.Status != want {
					t.Errorf("component %s status = %q, want %q", c.Name, c.Status, want)
				}
				if want == "unhealthy" && (c.Error == nil || *c.Error != "connection refused") {
					t.Errorf("component %s error = %v, want connection refused", c.Name, c.Error)
				}
			}
		})
	}
}

func TestHealthHandler_NilDependencies(t *testing.T) {
	ts := newTestServer(RouterConfig{HealthHandler: &HealthHandler{}})
	defer ts.Close()

	resp := ts.get(t, apiPath("/health"))
	assertStatus(t, resp, http.StatusOK)

	result := decodeEnvelope[healthData](t, resp)
	if len(result.Data.Components) != 0 {
		t.Errorf("got %d components, want 0", len(result.Data.Components))
	}
}

func TestHealthHandler_CacheOptional(t *testing.T) {
	ts := newTestServer(RouterConfig{HealthHandler: &HealthHandler{DB: &mockHealthChecker{}}})
	defer ts.Close()

	resp := ts.get(t, apiPath("/health"))
	assertStatus(t, resp, http.StatusOK)

	result := decodeEnvelope[healthData](t, resp)
	if len(result.Data.Components) != 1 || result.Data.Components[0].Name != "database" {
		t.Errorf("components = %+v, want only database", result.Data.Components)
	}
}

func TestHealthHandler_StorageProbeKeepsOrder(t *testing.T) {
	slow := func(ctx context.Context) error {
		select {
		case <-time.After(20 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	handler := &HealthHandler{
		DB:      &mockHealthChecker{healthCheckFunc: slow},
		Cache:   &mockHealthChecker{},
		Storage: &mockHealthChecker{healthCheckFunc: func(ctx context.Context) error { return fmt.Errorf("bucket %q does not exist", "post-images") }},
	}
	ts := newTestServer(RouterConfig{HealthHandler: handler})
	defer ts.Close()

	resp := ts.get(t, apiPath("/health"))
	assertStatus(t, resp, http.StatusServiceUnavailable)

	result := decodeEnvelope[healthData](t, resp)
	var names []string
	for _, c := range result.Data.Components {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"database", "redis", "storage"}, names)
	assert.Equal(t, "unhealthy", result.Data.Components[2].Status)
	assert.GreaterOrEqual(t, result.Data.Components[0].LatencyMS, int64(20))
}
