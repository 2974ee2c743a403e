package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_DiscardsByDefault(t *testing.T) {
	logger := New()
	if logger.Enabled(t.Context(), slog.LevelError) {
		t.Fatal("expected default logger to be disabled")
	}
}

func TestNew_TextAtLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf), WithLevel("warn"))

	logger.Info("hidden")
	logger.Warn("shown", slog.String("path", "/x"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record should be filtered: %q", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "path=/x") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf), WithJSON(true), WithLevel("debug"))
	logger.Debug("hello", slog.Int("n", 3))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON record, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "hello" || rec["n"] != float64(3) {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, err=%v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestWithLevel_UnknownFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf), WithLevel("loud"))
	if logger.Enabled(t.Context(), slog.LevelDebug) {
		t.Fatal("expected debug to be disabled")
	}
	if !logger.Enabled(t.Context(), slog.LevelInfo) {
		t.Fatal("expected info to be enabled")
	}
}

func TestOpenFile_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "godupe.log")
	for i := 0; i < 2; i++ {
		f, err := OpenFile(path)
		if err != nil {
			t.Fatal(err)
		}
		New(WithWriter(f)).Info("line")
		if err := f.Close(); err != nil {
			t.Fatal(err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(data), "msg=line"); got != 2 {
		t.Fatalf("expected 2 records, got %d in %q", got, data)
	}
}
