package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
)

// gormLogger routes GORM output through the request-scoped slog logger and
// records statement latency. GORM renders SQL with bound values inlined, so
// only the statement verb is ever logged.
type gormLogger struct {
	slow  time.Duration
	level gormlogger.LogLevel
}

func newGormLogger(slow time.Duration) *gormLogger {
	return &gormLogger{slow: slow, level: gormlogger.Warn}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.level = level
	return &next
}

func (l *gormLogger) Info(ctx context.Context, msg string, _ ...interface{}) {
	if l.level >= gormlogger.Info {
		logger.WithCtx(ctx).Info("gorm: " + msg)
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, _ ...interface{}) {
	if l.level >= gormlogger.Warn {
		logger.WithCtx(ctx).Warn("gorm: " + msg)
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, _ ...interface{}) {
	if l.level >= gormlogger.Error {
		logger.WithCtx(ctx).Error("gorm: " + msg)
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()
	op := operation(sql)
	metrics.ObserveDBQuery(op, elapsed)

	log := logger.WithCtx(ctx)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		log.Error("db statement failed", "op", op, "error", err, "rows", rows, "elapsed", elapsed.String())
	case l.slow > 0 && elapsed > l.slow && l.level >= gormlogger.Warn:
		log.Warn("slow db statement", "op", op, "rows", rows, "elapsed", elapsed.String())
	case l.level >= gormlogger.Info:
		log.Debug("db statement", "op", op, "rows", rows, "elapsed", elapsed.String())
	}
}

func operation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "raw"
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT":
		return "query"
	case "INSERT":
		return "create"
	case "UPDATE":
		return "update"
	case "DELETE":
		return "delete"
	default:
		return "raw"
	}
}
