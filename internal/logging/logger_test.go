package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dhis2dupes/internal/config"
)

func TestConsoleHandlerFormatsHeaderAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger = NewComponentLogger(logger, "dhis2")
	logger.Info("users fetched", String("org_unit", "OU1"), Int("count", 3))

	out := buf.String()
	if !strings.Contains(out, "INFO [dhis2] – users fetched") {
		t.Fatalf("header missing from output: %q", out)
	}
	if !strings.Contains(out, "    - org_unit: OU1\n") {
		t.Fatalf("expected org_unit field, got %q", out)
	}
	if !strings.Contains(out, "    - count: 3\n") {
		t.Fatalf("expected count field, got %q", out)
	}
}

func TestConsoleHandlerHidesExtraInfoFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	attrs := make([]Attr, 0, infoAttrLimit+2)
	for i := 0; i < infoAttrLimit+2; i++ {
		attrs = append(attrs, Int(string(rune('a'+i)), i))
	}
	logger.Info("many", Args(attrs...)...)

	if !strings.Contains(buf.String(), "+ 2 more fields hidden") {
		t.Fatalf("expected hidden-field summary, got %q", buf.String())
	}
}

func TestConsoleHandlerShowsRunIDFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := WithRunID(context.Background(), "3f2a9c1e-0000-4000-8000-000000000000")
	WithContext(ctx, logger).Info("export written")

	if !strings.Contains(buf.String(), " run 3f2a9c1e – export written") {
		t.Fatalf("expected short run id in header, got %q", buf.String())
	}
}

func TestJSONHandlerRenamesKeys(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Warn("slow response", String(FieldEndpoint, "/api/users.json"))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v (%q)", err, buf.String())
	}
	if payload["level"] != "warn" {
		t.Fatalf("expected lower-case level, got %v", payload["level"])
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", payload)
	}
	if payload[FieldEndpoint] != "/api/users.json" {
		t.Fatalf("unexpected endpoint %v", payload[FieldEndpoint])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml", Writer: &bytes.Buffer{}}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hidden")
	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn, got %q", buf.String())
	}
	logger.Error("visible", Error(errors.New("boom")))
	if !strings.Contains(buf.String(), "error: boom") {
		t.Fatalf("expected error field, got %q", buf.String())
	}
}

func TestWarnWithContextFillsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	WarnWithContext(logger, "org unit lookup failed", "orgunit_lookup_failed", String(FieldImpact, "ids shown instead of names"))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload[FieldEventType] != "orgunit_lookup_failed" {
		t.Fatalf("unexpected event_type %v", payload[FieldEventType])
	}
	if payload[FieldErrorHint] == nil {
		t.Fatal("expected default error_hint")
	}
	if payload[FieldImpact] != "ids shown instead of names" {
		t.Fatalf("caller impact should win, got %v", payload[FieldImpact])
	}
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Logging.File = true

	var stderr bytes.Buffer
	logger, err := NewFromConfig(&cfg, &stderr)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	logger.Info("report built", Int("total", 4))

	if !strings.Contains(stderr.String(), "report built") {
		t.Fatalf("expected console output, got %q", stderr.String())
	}
	data, err := os.ReadFile(cfg.LogPath())
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"report built"`) {
		t.Fatalf("expected json line in log file, got %q", data)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), 100) {
		t.Fatal("noop logger should never be enabled")
	}
	logger.Error("ignored")
}
