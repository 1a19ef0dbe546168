package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	srv := New(Config{Address: "127.0.0.1:8080", ReadTimeout: 2 * time.Second}, http.NotFoundHandler(), nil)
	require.NotNil(t, srv)
	assert.Equal(t, "127.0.0.1:8080", srv.Address())
	assert.Equal(t, defaultShutdownTimeout, srv.shutdownTimeout)
	assert.Equal(t, 2*time.Second, srv.httpServer.ReadHeaderTimeout)
	assert.NotNil(t, srv.httpServer.ErrorLog)
}

func TestServer_ServeAndDrain(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		_, _ = io.WriteString(w, "done")
	})
	srv := New(Config{ShutdownTimeout: 5 * time.Second}, handler, slog.Default())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx, ln) }()

	body := make(chan string, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/api/v1/posts")
		if err != nil {
			body <- err.Error()
			return
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		body <- string(b)
	}()

	<-started
	cancel()
	close(release)

	select {
	case got := <-body:
		assert.Equal(t, "done", got, "in-flight request finishes during shutdown")
	case <-time.After(5 * time.Second):
		t.Fatal("request did not complete")
	}
	select {
	case err := <-served:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_ListenAndServeStopsOnCancel(t *testing.T) {
	srv := New(Config{Address: "127.0.0.1:0"}, http.NotFoundHandler(), slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServeWithGracefulShutdown(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after context cancel")
	}
}

func TestServer_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv := New(Config{Address: ln.Addr().String()}, http.NotFoundHandler(), slog.Default())
	err = srv.ListenAndServeWithGracefulShutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen on")
}
