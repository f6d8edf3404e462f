package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestProductionLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newWithWriter(Config{Level: "warn"}, &buf)
	if err != nil {
		t.Fatalf("newWithWriter failed: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", zap.Int64("account_id", 42))
	_ = logger.Sync()

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "shown" || entry["account_id"] != float64(42) {
		t.Fatalf("unexpected entry %v", entry)
	}
	if _, ok := entry["caller"]; !ok {
		t.Fatal("expected caller field")
	}
}

func TestLevelFromString(t *testing.T) {
	cases := map[string]string{"debug": "debug", "WARNING": "warn", "error": "error", "": "info", "bogus": "info"}
	for in, want := range cases {
		if got := levelFromString(in).String(); got != want {
			t.Fatalf("levelFromString(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestReporterLogsWithoutHub(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	r := NewReporter(zap.New(core), nil)
	r.Report("audit sink failed", errors.New("disk full"), map[string]string{"operation": "LOGIN"})
	r.Report("ignored", nil, nil)

	if logs.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", logs.Len())
	}
	fields := logs.All()[0].ContextMap()
	if fields["operation"] != "LOGIN" || fields["error"] != "disk full" {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestInitSentryEmptyDSNIsNoop(t *testing.T) {
	if err := InitSentry("", "test", ""); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
