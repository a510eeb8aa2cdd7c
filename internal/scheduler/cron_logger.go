package scheduler

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// cronLogger 将 cron 的日志接到 zap
type cronLogger struct {
	logger *zap.SugaredLogger
}

var _ cron.Logger = (*cronLogger)(nil)

func newCronLogger(logger *zap.Logger) *cronLogger {
	return &cronLogger{logger: logger.Named("cron").Sugar()}
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
