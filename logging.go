package session

import "go.uber.org/zap"

// ZapLogger adapts a zap logger to the Logger interface for hosts already
// running on zap.
type ZapLogger struct {
	log *zap.SugaredLogger
}

var _ Logger = (*ZapLogger)(nil)

func NewZapLogger(log *zap.Logger) *ZapLogger {
	return &ZapLogger{log: log.Sugar()}
}

func (z *ZapLogger) Debug(format string, args ...any) {
	z.log.Debugf(format, args...)
}

func (z *ZapLogger) Info(format string, args ...any) {
	z.log.Infof(format, args...)
}

func (z *ZapLogger) Warn(format string, args ...any) {
	z.log.Warnf(format, args...)
}

func (z *ZapLogger) Error(format string, args ...any) {
	z.log.Errorf(format, args...)
}
