// Package logging builds the zap logger and the Sentry reporter used by the
// engine and the authcored binary.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the log level and encoder.
type Config struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func levelFromString(l string) zapcore.Level {
	switch strings.ToLower(l) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New returns a console logger in development and a JSON logger otherwise.
func New(cfg Config) (*zap.Logger, error) {
	return newWithWriter(cfg, os.Stdout)
}

func newWithWriter(cfg Config, w io.Writer) (*zap.Logger, error) {
	lvl := levelFromString(cfg.Level)
	if cfg.Development {
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(lvl)
		return c.Build()
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(w), lvl)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// InitSentry configures the global Sentry hub. An empty dsn disables reporting.
func InitSentry(dsn, environment, release string) error {
	if dsn == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
	})
}

// FlushSentry waits up to two seconds for buffered events.
func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

// Reporter logs an error and forwards it to a Sentry hub when one is bound.
type Reporter struct {
	logger *zap.Logger
	hub    *sentry.Hub
}

// NewReporter returns a Reporter on hub. A nil hub only logs.
func NewReporter(logger *zap.Logger, hub *sentry.Hub) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{logger: logger, hub: hub}
}

// CurrentHub returns the global hub when a client is configured, nil otherwise.
func CurrentHub() *sentry.Hub {
	hub := sentry.CurrentHub()
	if hub == nil || hub.Client() == nil {
		return nil
	}
	return hub
}

// Report logs msg with err and tags at error level and captures it in Sentry.
func (r *Reporter) Report(msg string, err error, tags map[string]string) {
	if r == nil || err == nil {
		return
	}
	fields := make([]zap.Field, 0, len(tags)+1)
	fields = append(fields, zap.Error(err))
	for k, v := range tags {
		fields = append(fields, zap.String(k, v))
	}
	r.logger.Error(msg, fields...)

	if r.hub == nil {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", "authcore")
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		scope.SetExtra("message", msg)
		r.hub.CaptureException(err)
	})
}
