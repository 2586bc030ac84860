package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestFieldsAndError(t *testing.T) {
	buf := new(bytes.Buffer)
	l := New(zerolog.DebugLevel, buf).With("component", "depot")
	l.Warn("generation failed", "depot_id", "d1", "error", errors.New("no path"))

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal %q: %s", buf.String(), err)
	}
	if got["level"] != "warn" {
		t.Errorf("level = %v, want warn", got["level"])
	}
	if got["component"] != "depot" || got["depot_id"] != "d1" {
		t.Errorf("missing fields: %v", got)
	}
	if got["error"] != "no path" {
		t.Errorf("error = %v, want %q", got["error"], "no path")
	}
}

func TestLevelFilter(t *testing.T) {
	buf := new(bytes.Buffer)
	l := New(ParseLevel("error"), buf)
	l.Info("dropped")
	l.Debug("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected nothing below error level, got %q", buf.String())
	}
	l.Error("kept")
	if buf.Len() == 0 {
		t.Fatal("expected error event to be written")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"WARNING": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
