package logger

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/getsentry/sentry-go"

	"inkwell/internal/domain/apperr"
)

// sentryTagKeys are attributes promoted to searchable Sentry tags.
var sentryTagKeys = map[string]bool{
	"request_id": true,
	"post_id":    true,
	"comment_id": true,
	"user_id":    true,
	"author_id":  true,
	"op":         true,
}

// WrapWithSentry returns a logger that also reports error records to Sentry.
// Records whose error is a client-side kind (validation, not found and
// similar) stay out of Sentry.
func WrapWithSentry(base *slog.Logger) *slog.Logger {
	if base == nil {
		return base
	}
	return slog.New(&sentryHandler{next: base.Handler()})
}

type sentryHandler struct {
	next  slog.Handler
	attrs []slog.Attr
}

func (h *sentryHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *sentryHandler) Handle(ctx context.Context, record slog.Record) error {
	err := h.next.Handle(ctx, record)
	if record.Level < slog.LevelError {
		return err
	}

	ev := sentryEventFrom(record, h.attrs)
	if !reportable(ev.err) {
		return err
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetTags(ev.tags)
		scope.SetExtras(ev.extras)
		scope.SetFingerprint([]string{record.Message})
		if ev.err != nil {
			hub.CaptureException(fmt.Errorf("%s: %w", record.Message, ev.err))
			return
		}
		hub.CaptureMessage(record.Message)
	})
	return err
}

func (h *sentryHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &sentryHandler{next: h.next.WithAttrs(attrs), attrs: merged}
}

func (h *sentryHandler) WithGroup(name string) slog.Handler {
	return &sentryHandler{next: h.next.WithGroup(name), attrs: h.attrs}
}

// reportable drops errors the caller caused; those are answered with a 4xx
// and are not actionable.
func reportable(err error) bool {
	if err == nil {
		return true
	}
	switch apperr.KindOf(err) {
	case apperr.KindUnknown, apperr.KindTransient:
		return true
	default:
		return false
	}
}

type sentryEvent struct {
	err    error
	tags   map[string]string
	extras map[string]any
}

func sentryEventFrom(record slog.Record, inherited []slog.Attr) sentryEvent {
	ev := sentryEvent{tags: map[string]string{}, extras: map[string]any{}}
	add := func(attr slog.Attr) {
		if attr.Key == "" {
			return
		}
		if sentryTagKeys[attr.Key] {
			ev.tags[attr.Key] = attr.Value.Resolve().String()
			return
		}
		ev.extras[attr.Key] = attrValue(attr.Value, &ev.err)
	}
	for _, attr := range inherited {
		add(attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		add(attr)
		return true
	})
	if record.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{record.PC}).Next()
		if frame.PC != 0 {
			ev.extras["source"] = fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function)
		}
	}
	return ev
}

func attrValue(value slog.Value, capturedErr *error) any {
	value = value.Resolve()
	switch value.Kind() {
	case slog.KindAny:
		v := value.Any()
		if err, ok := v.(error); ok {
			if *capturedErr == nil {
				*capturedErr = err
			}
			return err.Error()
		}
		if s, ok := v.(fmt.Stringer); ok {
			return s.String()
		}
		return v
	case slog.KindGroup:
		group := map[string]any{}
		for _, attr := range value.Group() {
			if attr.Key != "" {
				group[attr.Key] = attrValue(attr.Value, capturedErr)
			}
		}
		return group
	default:
		return value.Any()
	}
}
