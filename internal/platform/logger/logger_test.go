package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[Level]slog.Level{
		LevelDebug: slog.LevelDebug,
		LevelInfo:  slog.LevelInfo,
		LevelWarn:  slog.LevelWarn,
		LevelError: slog.LevelError,
		"WARN":     slog.LevelWarn,
		" error ":  slog.LevelError,
		"":         slog.LevelInfo,
		"verbose":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestNew_TextOutputIsPlainWhenNotATerminal(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Format: FormatText, Output: &buf})

	logger.Info("hidden")
	logger.Warn("like retry exhausted", "error", errors.New("version conflict"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "like retry exhausted")
	assert.Contains(t, out, "version conflict")
	assert.NotContains(t, out, "\x1b[", "no ANSI colour codes")
}

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})

	logger.Debug("hidden")
	logger.Info("comment created", "post_id", "p1")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"comment created"`)
	assert.Contains(t, buf.String(), `"post_id":"p1"`)
}

func TestNew_FileSink(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "app.log")
	logger := New(Config{Level: LevelInfo, Format: FormatText, Output: &buf, File: path})

	logger.With("component", "test").Warn("like conflict")

	assert.Contains(t, buf.String(), "like conflict")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"test"`)
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})

	Component(logger, "comment").Info("reply stored")
	assert.Contains(t, buf.String(), `"component":"comment"`)

	assert.NotNil(t, Component(nil, "like"))
}

func TestSetDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	SetDefault(New(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf}))
	slog.Info("via default")
	assert.Contains(t, buf.String(), `"msg":"via default"`)
}
