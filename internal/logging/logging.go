// Package logging configures the process-wide slog logger: JSON output, a
// runtime-adjustable level, a redaction layer for credential-shaped
// attributes, and chi middleware for HTTP request logs.
package logging

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// redactedKeys are attribute keys whose values never appear in logs:
// auth headers plus anything carrying raw request content (prompts may
// contain user manuscripts).
var redactedKeys = map[string]bool{
	"authorization":       true,
	"x-api-key":           true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"body":                true,
	"request_body":        true,
	"req_body":            true,
	"prompt":              true,
}

// globalLevel backs the JSON handler so SetLevel can retune verbosity at
// runtime without rebuilding the logger.
var globalLevel = new(slog.LevelVar)

// Setup initializes the global slog logger at the given level and installs
// the redaction layer. The logger it returns is also set as slog's default.
func Setup(level string) *slog.Logger {
	SetLevel(level)

	base := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: globalLevel})
	logger := slog.New(&RedactingHandler{base: base})
	slog.SetDefault(logger)
	return logger
}

// SetLevel changes the global log level dynamically at runtime.
// Valid values are "debug", "warn", "error"; anything else defaults to "info".
func SetLevel(level string) {
	switch level {
	case "debug":
		globalLevel.Set(slog.LevelDebug)
	case "warn":
		globalLevel.Set(slog.LevelWarn)
	case "error":
		globalLevel.Set(slog.LevelError)
	default:
		globalLevel.Set(slog.LevelInfo)
	}
}

// RedactingHandler wraps an slog.Handler and blanks the values of
// credential-shaped attributes before they reach the sink.
type RedactingHandler struct {
	base slog.Handler
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	clean := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(redactAttr(a))
		return true
	})
	return h.base.Handle(ctx, clean)
}

func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		clean = append(clean, redactAttr(a))
	}
	return &RedactingHandler{base: h.base.WithAttrs(clean)}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{base: h.base.WithGroup(name)}
}

// redactAttr decides per attribute. Token USAGE counts (prompt_tokens,
// total_tokens) are normal telemetry and must stay readable, so only exact
// "token" and *_token match among the substring rules.
func redactAttr(a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)

	if redactedKeys[key] {
		return slog.String(a.Key, "[REDACTED]")
	}
	if key == "token" || strings.HasSuffix(key, "_token") ||
		strings.Contains(key, "api_key") || strings.Contains(key, "apikey") ||
		strings.Contains(key, "secret") || strings.Contains(key, "password") {
		return slog.String(a.Key, "[REDACTED]")
	}
	return a
}

// requestID prefers the client-supplied header over the chi-generated one
// so traces can be correlated across services.
func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return middleware.GetReqID(r.Context())
}

// RequestLogger returns chi middleware emitting one line per request.
// Bodies and auth headers never reach this logger; the redaction layer is a
// second line of defense.
func RequestLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			rec := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(rec, r)

			logger.Info("http_request",
				slog.String("request_id", requestID(r)),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.Status()),
				slog.Int("bytes", rec.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
			)
		}
		return http.HandlerFunc(fn)
	}
}
