package audit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Operation names recorded by the engine.
const (
	OpLogin                = "LOGIN"
	OpLoginFailed          = "LOGIN_FAILED"
	OpAccountLocked        = "ACCOUNT_LOCKED"
	OpTokenRefresh         = "TOKEN_REFRESH"
	OpRefreshTokenReuse    = "REFRESH_TOKEN_REUSE"
	OpLogout               = "LOGOUT"
	OpPasswordResetRequest = "PASSWORD_RESET_REQUEST"
	OpPasswordReset        = "PASSWORD_RESET"
	OpRegister             = "REGISTER"
	OpUserDeletion         = "USER_DELETION"
	OpRateLimited          = "RATE_LIMITED"
)

// Event is one audit record. AccountID is 0 when the operation has no resolved account.
type Event struct {
	Timestamp     time.Time         `json:"timestamp"`
	AccountID     int64             `json:"account_id,omitempty"`
	Operation     string            `json:"operation"`
	Details       string            `json:"details,omitempty"`
	Resource      string            `json:"resource,omitempty"`
	SourceAddress string            `json:"source_address,omitempty"`
	Success       bool              `json:"success"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Sink receives audit events.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) error { return nil }

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) error {
	select {
	case s.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) error {
	if s == nil || s.writer == nil {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.writer.Write(data)
	return err
}

// LoggerSink writes events as structured zap entries at info level.
type LoggerSink struct {
	logger *zap.Logger
}

func NewLoggerSink(logger *zap.Logger) *LoggerSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggerSink{logger: logger.Named("audit")}
}

func (s *LoggerSink) Emit(_ context.Context, event Event) error {
	fields := []zap.Field{
		zap.Time("timestamp", event.Timestamp),
		zap.Int64("account_id", event.AccountID),
		zap.String("operation", event.Operation),
		zap.Bool("success", event.Success),
		zap.String("resource", event.Resource),
		zap.String("source_address", event.SourceAddress),
	}
	if event.Details != "" {
		fields = append(fields, zap.String("details", event.Details))
	}
	for k, v := range event.Metadata {
		fields = append(fields, zap.String("meta."+k, v))
	}
	s.logger.Info("audit event", fields...)
	return nil
}

// MultiSink emits to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
