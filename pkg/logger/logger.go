// Package logger provides the process-wide structured logger built on
// log/slog.
//
// WithCtx returns a logger already tagged with the request ID, so every line
// written while serving a request is correlated:
//
//	log := logger.WithCtx(r.Context())
//	log.Info("order placed", "reference", order.Reference)
//	// → time=... level=INFO msg="order placed" request_id=a1b2c3d4 reference=ORD-...
//
// Attributes whose key names a credential (password, token, reset code,
// client secret) are redacted by every handler built here.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// L is the base logger. It is usable before Setup with development defaults.
var L = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
	Level:       slog.LevelDebug,
	ReplaceAttr: redact,
}))

const redacted = "[REDACTED]"

var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"new_password":  {},
	"old_password":  {},
	"secret":        {},
	"token":         {},
	"authorization": {},
	"code":          {},
	"reset_code":    {},
	"client_secret": {},
}

// Setup replaces L with a JSON handler in production and a text handler
// otherwise. Extra handlers (e.g. a MongoHandler) receive every record too.
func Setup(production bool, w io.Writer, extra ...slog.Handler) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: slog.LevelDebug, ReplaceAttr: redact}
	var handler slog.Handler
	if production {
		opts.Level = slog.LevelInfo
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	if len(extra) > 0 {
		handler = NewMultiHandler(append([]slog.Handler{handler}, extra...)...)
	}

	L = slog.New(handler)
	slog.SetDefault(L)
	return L
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if isSensitive(a.Key) {
		return slog.String(a.Key, redacted)
	}
	return a
}

func isSensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}

type ctxKey struct{}

// WithCtx returns the request-scoped logger stored by InjectLogger, or L.
func WithCtx(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return L
	}
	if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	return L
}

// InjectLogger stores a request-scoped logger in ctx.
// Called by the Logger middleware.
func InjectLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

func Debug(msg string, args ...any) { L.Debug(msg, args...) }
func Info(msg string, args ...any)  { L.Info(msg, args...) }
func Warn(msg string, args ...any)  { L.Warn(msg, args...) }
func Error(msg string, args ...any) { L.Error(msg, args...) }

// LevelFor picks the access-log level for an HTTP status.
func LevelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
