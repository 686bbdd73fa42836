package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/raysh454/stockscan/internal/logging"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLogger_WritesJSONWithFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := logging.NewLogger(&buf, "store", "debug")

	logger.Info("scan completed", logging.Field{Key: "total_count", Value: 3})

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0]["msg"] != "scan completed" {
		t.Errorf("unexpected msg: %v", lines[0]["msg"])
	}
	if lines[0]["component"] != "store" {
		t.Errorf("unexpected component: %v", lines[0]["component"])
	}
	if lines[0]["total_count"] != float64(3) {
		t.Errorf("unexpected total_count: %v", lines[0]["total_count"])
	}
}

func TestLogger_LevelFiltersDebug(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := logging.NewLogger(&buf, "", "warn")

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["msg"] != "shown" {
		t.Fatalf("expected only the warn line, got %v", lines)
	}
}

func TestLogger_WithReplacesComponent(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := logging.NewLogger(&buf, "app", "info")

	child := logger.With(
		logging.Field{Key: "component", Value: "webclient"},
		logging.Field{Key: "backend", Value: "nethttp"},
	)
	child.Error("request failed")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0]["component"] != "webclient" {
		t.Errorf("expected component webclient, got %v", lines[0]["component"])
	}
	if lines[0]["backend"] != "nethttp" {
		t.Errorf("expected backend field, got %v", lines[0]["backend"])
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := logging.ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
