package ephys

import (
	"errors"
	"testing"
)

func newTestDataChannel(t *testing.T, sourceIndex uint16) *DataChannel {
	t.Helper()
	ch, err := NewDataChannel(Headstage, sourceIndex, sourceIndex, NewNodeIdentity(100), NewProvenance(100, 0, "Acquisition Board", "Rhythm FPGA"))
	if err != nil {
		t.Fatalf("NewDataChannel failed: %v", err)
	}
	return ch
}

func TestDataChannelDefaults(t *testing.T) {
	ch := newTestDataChannel(t, 3)

	if ch.Type() != Headstage {
		t.Errorf("type: got %s, want HEADSTAGE", ch.Type())
	}
	if ch.SourceIndex() != 3 {
		t.Errorf("source index: got %d, want 3", ch.SourceIndex())
	}
	if ch.BitVolts() != 1.0 {
		t.Errorf("bitVolts: got %g, want 1.0", ch.BitVolts())
	}
	if ch.SampleRate() != DefaultSampleRate {
		t.Errorf("sample rate: got %g, want %g", ch.SampleRate(), DefaultSampleRate)
	}
	if !ch.Enabled() {
		t.Error("new channel should be enabled")
	}
	if ch.Monitored() {
		t.Error("new channel should not be monitored")
	}
	if ch.RecordingEnabled() {
		t.Error("new channel should not be recording")
	}
}

func TestDataChannelInvalidType(t *testing.T) {
	for _, typ := range []DataChannelType{0, 4, 200} {
		_, err := NewDataChannel(typ, 0, 0, NewNodeIdentity(1), NewProvenance(1, 0, "t", "t"))
		if !errors.Is(err, ErrContract) {
			t.Errorf("type %d: got %v, want contract violation", typ, err)
		}
	}
}

func TestDataChannelCopyResetsFlags(t *testing.T) {
	ch := newTestDataChannel(t, 5)
	ch.SetName("CH5")
	ch.SetBitVolts(0.195)
	ch.SetSampleRate(30000)
	ch.Append("Acquisition Board")
	ch.SetEnabled(false)
	ch.SetMonitored(true)
	ch.SetRecordingEnabled(true)

	dup := ch.Copy()

	// Identity, provenance, attributes, scale and history carry over.
	if dup.SourceNodeID() != ch.SourceNodeID() || dup.SourceIndex() != ch.SourceIndex() {
		t.Error("copy lost identity")
	}
	if dup.Name() != "CH5" {
		t.Errorf("copy name: got %q, want CH5", dup.Name())
	}
	if dup.BitVolts() != 0.195 {
		t.Errorf("copy bitVolts: got %g, want 0.195", dup.BitVolts())
	}
	if dup.SampleRate() != 30000 {
		t.Errorf("copy sample rate: got %g, want 30000", dup.SampleRate())
	}
	if dup.Historic() != "Acquisition Board" {
		t.Errorf("copy history: got %q", dup.Historic())
	}

	// Runtime flags never carry over.
	if !dup.Enabled() {
		t.Error("copy should be enabled")
	}
	if dup.Monitored() {
		t.Error("copy should not be monitored")
	}
	if dup.RecordingEnabled() {
		t.Error("copy should not be recording")
	}

	// The original keeps its flags.
	if ch.Enabled() || !ch.Monitored() || !ch.RecordingEnabled() {
		t.Error("copy disturbed the original's flags")
	}
}

func TestDataChannelReset(t *testing.T) {
	ch := newTestDataChannel(t, 0)
	ch.SetBitVolts(0.05)
	ch.SetSampleRate(25000)
	ch.SetEnabled(false)
	ch.SetMonitored(true)
	ch.SetRecordingEnabled(true)

	ch.Reset()

	if ch.BitVolts() != 1.0 {
		t.Errorf("bitVolts after reset: got %g, want 1.0", ch.BitVolts())
	}
	if ch.SampleRate() != DefaultSampleRate {
		t.Errorf("sample rate after reset: got %g, want %g", ch.SampleRate(), DefaultSampleRate)
	}
	if !ch.Enabled() || ch.Monitored() || ch.RecordingEnabled() {
		t.Error("flags not restored to defaults")
	}
}
