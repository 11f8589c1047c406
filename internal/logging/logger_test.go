package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func resetLogging() {
	mutex.Lock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	isInitialized = false
	globalConfig = Config{}
	logBuffer = nil
	mutex.Unlock()
}

func TestModuleLevelOverride(t *testing.T) {
	resetLogging()

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"decode": "debug",
			"http":   "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"decode", true, true, true},
		{"http", false, false, true},
		{"driver", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()
			ctx := context.Background()

			if got := handler.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("module %q: Debug enabled = %v, want %v", tt.module, got, tt.wantDebug)
			}
			if got := handler.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("module %q: Info enabled = %v, want %v", tt.module, got, tt.wantInfo)
			}
			if got := handler.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("module %q: Warn enabled = %v, want %v", tt.module, got, tt.wantWarn)
			}
		})
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetLogging()

	before := GetLogger("media")
	if before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Logger created before Initialize should NOT have debug enabled")
	}

	Initialize(Config{
		Level:   "info",
		Modules: map[string]string{"media": "debug"},
	})

	after := GetLogger("media")
	if !after.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Logger after Initialize should have debug enabled")
	}
	if !before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Logger handed out before Initialize should pick up the new level")
	}
}

func TestSetModuleLevel(t *testing.T) {
	resetLogging()
	Initialize(Config{Level: "info"})

	logger := GetLogger("visibility")
	if logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug should start disabled")
	}

	if err := SetModuleLevel("visibility", "debug"); err != nil {
		t.Fatalf("SetModuleLevel failed: %v", err)
	}
	if !logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be enabled after SetModuleLevel")
	}
	if got := ModuleLevels()["visibility"]; got != "debug" {
		t.Errorf("ModuleLevels()[visibility] = %q, want debug", got)
	}

	if err := SetModuleLevel("visibility", "loud"); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestBufferCapturesRecords(t *testing.T) {
	resetLogging()
	Initialize(Config{Level: "info", BufferSize: 3})

	logger := GetLogger("decode")
	logger.Info("Starting decode pool", "workers", 4)
	logger.Debug("filtered out")
	logger.Error("Decode pool failed", "error", errors.New("broken stream"))

	entries := GetBuffer().Last(0)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Module != "decode" || entries[0].Message != "Starting decode pool" {
		t.Errorf("unexpected first entry %+v", entries[0])
	}
	if entries[0].Attributes["workers"] != int64(4) {
		t.Errorf("workers attribute = %v", entries[0].Attributes["workers"])
	}
	if entries[1].Level != "error" || entries[1].Attributes["error"] != "broken stream" {
		t.Errorf("unexpected second entry %+v", entries[1])
	}
}

func TestRingBufferWraps(t *testing.T) {
	rb := NewRingBuffer(3)
	for i, msg := range []string{"a", "b", "c", "d", "e"} {
		rb.Write(LogEntry{Message: msg, Timestamp: time.Unix(int64(i), 0)})
	}

	if rb.Count() != 3 {
		t.Fatalf("Count = %d, want 3", rb.Count())
	}

	var got []string
	for _, e := range rb.Last(0) {
		got = append(got, e.Message)
	}
	if strings.Join(got, "") != "cde" {
		t.Errorf("Last(0) = %v, want [c d e]", got)
	}

	last := rb.Last(2)
	if len(last) != 2 || last[0].Message != "d" || last[1].Message != "e" {
		t.Errorf("Last(2) = %+v", last)
	}
}

func TestBufferHandlerGroups(t *testing.T) {
	resetLogging()
	Initialize(Config{Level: "debug"})

	h := NewBufferHandler(slog.LevelDebug).WithAttrs([]slog.Attr{slog.String("module", "api")}).WithGroup("req")
	logger := slog.New(h)
	logger.Info("served", "status", 200, slog.Group("timing", slog.Duration("total", time.Second)))

	entries := GetBuffer().Last(1)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Module != "api" {
		t.Errorf("Module = %q, want api", e.Module)
	}
	if e.Attributes["req.status"] != int64(200) {
		t.Errorf("req.status = %v", e.Attributes["req.status"])
	}
	if e.Attributes["req.timing.total"] != "1s" {
		t.Errorf("req.timing.total = %v", e.Attributes["req.timing.total"])
	}
}

func TestMultiHandlerDebugOutput(t *testing.T) {
	var buf bytes.Buffer

	debugHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	infoHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(NewMultiHandler(debugHandler, infoHandler)).With("module", "test")
	logger.Debug("debug only message")

	output := buf.String()
	if count := strings.Count(output, "debug only message"); count != 1 {
		t.Errorf("Expected 1 debug message, got %d. Output: %s", count, output)
	}

	logger.Info("both")
	if count := strings.Count(buf.String(), "both"); count != 2 {
		t.Errorf("Expected info message from both handlers, got %d", count)
	}
}

func TestParseLevelValues(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		isNil bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input)
			switch {
			case tt.isNil && got != nil:
				t.Errorf("parseLevel(%q) = %v, want nil", tt.input, *got)
			case !tt.isNil && got == nil:
				t.Errorf("parseLevel(%q) = nil, want %v", tt.input, tt.want)
			case !tt.isNil && *got != tt.want:
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, *got, tt.want)
			}
		})
	}
}
