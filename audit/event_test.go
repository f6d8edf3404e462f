package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func sampleEvent() Event {
	return Event{
		Timestamp:     time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
		AccountID:     7,
		Operation:     "LOGIN",
		Details:       "User successfully logged in.",
		Resource:      "/api/auth/login",
		SourceAddress: "203.0.113.9",
		Success:       true,
	}
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	if err := sink.Emit(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if err := sink.Emit(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var decoded Event
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if decoded.Operation != "LOGIN" || decoded.AccountID != 7 || decoded.Resource != "/api/auth/login" {
		t.Fatalf("unexpected decoded event %+v", decoded)
	}
}

func TestLoggerSinkWritesStructuredEntry(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewLoggerSink(zap.New(core))
	ev := sampleEvent()
	ev.Metadata = map[string]string{"reason": "password_mismatch"}
	if err := sink.Emit(context.Background(), ev); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["operation"] != "LOGIN" || fields["meta.reason"] != "password_mismatch" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if entries[0].LoggerName != "audit" {
		t.Fatalf("expected audit logger name, got %q", entries[0].LoggerName)
	}
}

type recordingPublisher struct {
	subject string
	data    []byte
	err     error
}

func (p *recordingPublisher) Publish(subject string, data []byte) error {
	p.subject = subject
	p.data = data
	return p.err
}

func TestNATSSinkPublishesJSON(t *testing.T) {
	pub := &recordingPublisher{}
	sink := NewNATSSink(pub, "")
	if err := sink.Emit(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if pub.subject != DefaultSubject {
		t.Fatalf("expected default subject, got %q", pub.subject)
	}
	var decoded Event
	if err := json.Unmarshal(pub.data, &decoded); err != nil || decoded.Operation != "LOGIN" {
		t.Fatalf("unexpected payload %s (%v)", pub.data, err)
	}

	pub.err = errors.New("nats: connection closed")
	if err := sink.Emit(context.Background(), sampleEvent()); err == nil {
		t.Fatal("expected publish failure to surface")
	}
}

type failingSink struct{ err error }

func (f failingSink) Emit(context.Context, Event) error { return f.err }

func TestMultiSinkJoinsErrors(t *testing.T) {
	ch := NewChannelSink(1)
	boom := errors.New("boom")
	multi := MultiSink{ch, nil, failingSink{err: boom}}

	err := multi.Emit(context.Background(), sampleEvent())
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	select {
	case ev := <-ch.Events():
		if ev.Operation != "LOGIN" {
			t.Fatalf("unexpected event %+v", ev)
		}
	default:
		t.Fatal("expected the healthy sink to receive the event")
	}
}

func TestChannelSinkHonorsContext(t *testing.T) {
	ch := NewChannelSink(1)
	_ = ch.Emit(context.Background(), sampleEvent())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ch.Emit(ctx, sampleEvent()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled on full channel, got %v", err)
	}
}
