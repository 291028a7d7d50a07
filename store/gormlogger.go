package store

import (
	"context"
	"time"

	"github.com/modelatlas/pipeline/schemas"
	gormLibLogger "gorm.io/gorm/logger"
)

// gormLogger bridges gorm's logging interface onto the pipeline logger.
type gormLogger struct {
	logger schemas.Logger
}

func newGormLogger(l schemas.Logger) *gormLogger {
	return &gormLogger{logger: l}
}

func (l *gormLogger) LogMode(level gormLibLogger.LogLevel) gormLibLogger.Interface {
	// NOOP
	return l
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.logger.Info(msg, data...)
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.logger.Warn(msg, data...)
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.logger.Error(msg, data...)
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	// NOOP
}
