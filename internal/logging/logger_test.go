package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewEmitsJSON(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	logger := New("info", "json", &buf)
	logger.Info().Str("stream", "100/0").Msg("catalog built")

	out := buf.String()
	for _, want := range []string{`"level":"info"`, `"stream":"100/0"`, `"message":"catalog built"`, `"time"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}

func TestNewConsoleFormat(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	logger := New("info", "console", &buf)
	logger.Info().Msg("catalog built")

	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("console format produced JSON: %s", out)
	}
	if !strings.Contains(out, "catalog built") {
		t.Errorf("output missing message: %s", out)
	}
}

func TestNewLevelFilter(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	logger := New("error", "json", &buf)
	logger.Info().Msg("suppressed")
	if buf.Len() != 0 {
		t.Errorf("info logged at error level: %s", buf.String())
	}
	logger.Error().Msg("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("error entry missing: %s", buf.String())
	}
}

func TestNewUnknownLevelFallsBack(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	logger := New("shouty", "json", &buf)
	logger.Debug().Msg("suppressed")
	if buf.Len() != 0 {
		t.Errorf("debug logged after fallback to info: %s", buf.String())
	}
	logger.Info().Msg("kept")
	if buf.Len() == 0 {
		t.Error("info suppressed after fallback")
	}
}

func TestSetLevelChangesFilter(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	logger := New("info", "json", &buf)
	logger.Debug().Msg("suppressed")
	if buf.Len() != 0 {
		t.Errorf("debug logged at info level: %s", buf.String())
	}

	SetLevel("debug")
	logger.Debug().Msg("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("debug entry missing after SetLevel: %s", buf.String())
	}
}
