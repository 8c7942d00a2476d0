package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func fixedLogger(buf *bytes.Buffer, verbose, debug bool) *Logger {
	l := NewLoggerTo(buf, verbose, debug)
	l.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return l
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, false, false)

	l.Info("hidden %d", 1)
	l.Debug("hidden %d", 2)
	l.Warn("careful %s", "now")
	l.Error("failed")

	expected := "[WARN] 03:04:05: careful now\n[ERROR] 03:04:05: failed\n"
	if buf.String() != expected {
		t.Errorf("expected=%q, got=%q", expected, buf.String())
	}
}

func TestLoggerVerboseAndDebug(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, true, true)

	l.Info("lowering %s", "main.syn")
	l.Debug("counter=%d", 3)

	out := buf.String()
	if !strings.Contains(out, "[INFO] 03:04:05: lowering main.syn") {
		t.Errorf("missing info line in %q", out)
	}
	if !strings.Contains(out, "[DEBUG] 03:04:05: counter=3") {
		t.Errorf("missing debug line in %q", out)
	}
}

func TestLoggerTimed(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, false, true)

	l.Timed("parse")()
	if !strings.Contains(buf.String(), "parse time elapsed 0.00ms") {
		t.Errorf("unexpected timing output %q", buf.String())
	}
}

func TestNilLogger(t *testing.T) {
	var l *Logger
	l.Info("x")
	l.Debug("x")
	l.Warn("x")
	l.Error("x")
	l.Timed("noop")()
}

func TestPrintVersionJSON(t *testing.T) {
	var buf bytes.Buffer
	PrintVersion(&buf, "synth", true)

	var decoded struct {
		Tool        string      `json:"tool"`
		VersionInfo VersionInfo `json:"version_info"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if decoded.Tool != "synth" || decoded.VersionInfo.Version != Version {
		t.Errorf("unexpected version payload %+v", decoded)
	}
}

func TestPrintVersionText(t *testing.T) {
	var buf bytes.Buffer
	PrintVersion(&buf, "synth", false)
	if !strings.HasPrefix(buf.String(), "synth v"+Version+"\n") {
		t.Errorf("unexpected version text %q", buf.String())
	}
}
