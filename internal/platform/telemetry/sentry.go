package telemetry

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"inkwell/internal/platform/config"
)

const defaultSentryEnvironment = "production"

// InitSentry initializes Sentry and returns whether it is enabled. An empty
// DSN disables reporting.
func InitSentry(cfg config.SentryConfig) (bool, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return false, nil
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = defaultSentryEnvironment
	}
	release := strings.TrimSpace(cfg.Release)
	if release == "" {
		release = buildRelease()
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
		BeforeSend:       scrubEvent,
	}); err != nil {
		return false, fmt.Errorf("init sentry: %w", err)
	}
	return true, nil
}

// scrubEvent keeps bearer tokens and cookies out of reported requests.
func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event == nil || event.Request == nil {
		return event
	}
	for name := range event.Request.Headers {
		switch http.CanonicalHeaderKey(name) {
		case "Authorization", "Cookie":
			event.Request.Headers[name] = "[redacted]"
		}
	}
	event.Request.Cookies = ""
	return event
}

// buildRelease derives "inkwell@<vcs revision>" from the embedded build info.
func buildRelease() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			rev := s.Value
			if len(rev) > 12 {
				rev = rev[:12]
			}
			return "inkwell@" + rev
		}
	}
	return ""
}

// Flush waits for buffered events to be delivered.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}

// Recover captures a panic and reports it to Sentry.
func Recover() {
	sentry.Recover()
}
