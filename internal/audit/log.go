package audit

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"bureau.org/internal/auth"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

var (
	mu     sync.RWMutex
	logger *slog.Logger
)

// SetLogger routes audit entries to l. Until called, entries go to slog.Default.
func SetLogger(l *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id attached by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes one audit entry enriched with the request id and the
// effective and original actor of the session.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	attrs := []slog.Attr{
		slog.String("type", "audit"),
		slog.String("event", event),
		slog.Time("ts", time.Now().UTC()),
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		attrs = append(attrs, slog.String("request_id", rid))
	}
	if id, ok := auth.IdentityFromContext(ctx); ok {
		attrs = append(attrs, slog.String("actor_id", id.Active.ID), slog.String("actor_role", string(id.Active.Role)))
		if id.Original != nil {
			attrs = append(attrs, slog.String("original_actor_id", id.Original.ID))
		}
	}
	group := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		group = append(group, slog.Any(k, v))
	}
	attrs = append(attrs, slog.Group("fields", group...))

	current().LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
	return nil
}
