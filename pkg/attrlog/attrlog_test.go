package attrlog

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
)

func TestNewDefaultsToInfoLevel(t *testing.T) {
	log := New(nil, "")
	if !log.Enabled(nil, slog.LevelInfo) {
		t.Fatal("default logger should be enabled at info level")
	}
	if log.Enabled(nil, slog.LevelDebug) {
		t.Fatal("default logger should not be enabled at debug level")
	}
}

func TestNewHonorsLevelNameCaseInsensitively(t *testing.T) {
	log := New(nil, "DEBUG")
	if !log.Enabled(nil, slog.LevelDebug) {
		t.Fatal("logger built with level DEBUG should be enabled at debug level")
	}
}

func TestNewWritesJSONWithSubsystemField(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer r.Close()

	log := New(w, "info")
	log.Info("hello")
	w.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Unmarshal(%s): %v", buf.String(), err)
	}
	if entry["subsystem"] != "attribute" {
		t.Fatalf("subsystem = %v, want attribute", entry["subsystem"])
	}
	if entry["msg"] != "hello" {
		t.Fatalf("msg = %v, want hello", entry["msg"])
	}
}

func TestForScopesLoggerToAttribute(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer r.Close()

	log := For(New(w, "info"), "title")
	log.Info("scoped")
	w.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Unmarshal(%s): %v", buf.String(), err)
	}
	if entry["attribute"] != "title" {
		t.Fatalf("attribute = %v, want title", entry["attribute"])
	}
}

func TestCountersAccumulateIndependently(t *testing.T) {
	var c Counters
	c.DivideByZeroDrop()
	c.DivideByZeroDrop()
	c.SoftExtractError()

	dz, se := c.Snapshot()
	if dz != 2 {
		t.Fatalf("divideByZero = %d, want 2", dz)
	}
	if se != 1 {
		t.Fatalf("softExtract = %d, want 1", se)
	}
}
