package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rjboer/GoEphys/internal/config"
	"github.com/rjboer/GoEphys/internal/graph"
	"github.com/rjboer/GoEphys/internal/msgbus"
)

func TestEnsureConfigWritesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yaml")
	if err := ensureConfig(path); err != nil {
		t.Fatalf("ensureConfig failed: %v", err)
	}

	// The written default must load and build without edits.
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("default config does not load: %v", err)
	}
	reg := graph.NewRegistry()
	if err := config.Build(cfg, reg); err != nil {
		t.Fatalf("default config does not build: %v", err)
	}
	counts := reg.Counts()
	if counts.Data != 4 || counts.Events != 3 || counts.Spikes != 1 {
		t.Fatalf("unexpected catalog counts: %+v", counts)
	}
}

func TestEnsureConfigKeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yaml")
	if err := os.WriteFile(path, []byte("custom: true\n"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	if err := ensureConfig(path); err != nil {
		t.Fatalf("ensureConfig failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "custom: true\n" {
		t.Fatalf("existing file was overwritten: %q", data)
	}
}

func TestCaptureFramesRoundTrip(t *testing.T) {
	bus := msgbus.NewBus()
	sub, unsubscribe := bus.Subscribe(8)

	messages := []msgbus.Message{
		{Node: 100, Stream: 0, Data: []byte{0x00, 0x01}},
		{Node: 100, Stream: 0, Data: []byte{0x02}},
		{Node: 100, Stream: 1, Data: []byte{0x03, 0x04, 0x05}},
	}
	for _, m := range messages {
		bus.Publish(m)
	}
	unsubscribe()

	var buf bytes.Buffer
	n, err := captureFrames(&buf, sub)
	if err != nil {
		t.Fatalf("captureFrames failed: %v", err)
	}
	if n != uint64(len(messages)) {
		t.Fatalf("captured %d frames, want %d", n, len(messages))
	}

	for i, want := range messages {
		got, err := msgbus.ReadMessage(&buf)
		if err != nil {
			t.Fatalf("frame %d does not read back: %v", i, err)
		}
		if got.Node != want.Node || got.Stream != want.Stream || !bytes.Equal(got.Data, want.Data) {
			t.Errorf("frame %d: got %+v, want %+v", i, got, want)
		}
	}
	if _, err := msgbus.ReadMessage(&buf); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF after last frame, got %v", err)
	}
}
