// Package logger builds the zap logger used by the noonlight command and
// adapts it for the retrying HTTP client.
package logger

import (
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps debug, info, warn (or warning) and error to zap levels,
// ignoring case. Anything else is info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

// New returns a JSON logger, or a development console logger when format is
// "console". Both write to stderr so stdout stays free for command output.
// fields are attached to every entry.
func New(level, format string, fields ...zap.Field) (*zap.Logger, error) {
	var config zap.Config
	if format == "console" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.Sampling = nil
	}
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.Level = zap.NewAtomicLevelAt(ParseLevel(level))

	l, err := config.Build()
	if err != nil {
		return nil, err
	}
	return l.With(fields...), nil
}

// Retry routes retryablehttp's own messages into l. They are demoted one
// level since the sender already reports every attempt and failure itself.
func Retry(l *zap.Logger) retryablehttp.LeveledLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return retryLogger{s: l.Named("retry").Sugar()}
}

type retryLogger struct {
	s *zap.SugaredLogger
}

func (r retryLogger) Error(msg string, keysAndValues ...interface{}) {
	r.s.Warnw(msg, keysAndValues...)
}

func (r retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	r.s.Infow(msg, keysAndValues...)
}

func (r retryLogger) Info(msg string, keysAndValues ...interface{}) {
	r.s.Debugw(msg, keysAndValues...)
}

func (r retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	r.s.Debugw(msg, keysAndValues...)
}
