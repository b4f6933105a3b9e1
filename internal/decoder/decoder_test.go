package decoder

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rjboer/GoEphys/ephys"
	"github.com/rjboer/GoEphys/internal/graph"
)

// rampSource is a deterministic sample bed: channel c, position p holds
// c*1000 + p.
type rampSource struct{}

func (rampSource) Sample(channel, position int) float32 {
	return float32(channel*1000 + position)
}

func buildCatalog(t *testing.T) *graph.Registry {
	t.Helper()
	reg := graph.NewRegistry()
	node := ephys.NewNodeIdentity(100)
	prov := ephys.NewProvenance(100, 0, "Acquisition Board", "Rhythm FPGA")

	var sources []*ephys.DataChannel
	for i := 0; i < 4; i++ {
		ch, err := ephys.NewDataChannel(ephys.Headstage, uint16(i), uint16(i), node, prov)
		if err != nil {
			t.Fatalf("NewDataChannel(%d) failed: %v", i, err)
		}
		ch.SetName(fmt.Sprintf("CH%d", i+1))
		sources = append(sources, ch)
		if err := reg.AddDataChannel(ch); err != nil {
			t.Fatalf("AddDataChannel(%d) failed: %v", i, err)
		}
	}

	ttl, err := ephys.NewEventChannel(ephys.TTL, 0, 0, node, prov)
	if err != nil {
		t.Fatalf("NewEventChannel(TTL) failed: %v", err)
	}
	ttl.SetNumChannels(8)
	if err := reg.AddEventChannel(ttl); err != nil {
		t.Fatalf("AddEventChannel(TTL) failed: %v", err)
	}

	text, err := ephys.NewEventChannel(ephys.Text, 1, 0, node, prov)
	if err != nil {
		t.Fatalf("NewEventChannel(Text) failed: %v", err)
	}
	text.SetLength(64)
	if err := reg.AddEventChannel(text); err != nil {
		t.Fatalf("AddEventChannel(Text) failed: %v", err)
	}

	spike, err := ephys.NewSpikeChannel(ephys.Tetrode, 0, 0, node, prov, sources)
	if err != nil {
		t.Fatalf("NewSpikeChannel failed: %v", err)
	}
	if err := reg.AddSpikeChannel(spike); err != nil {
		t.Fatalf("AddSpikeChannel failed: %v", err)
	}
	return reg
}

func serialize(t *testing.T, e ephys.Event) []byte {
	t.Helper()
	buf := make([]byte, e.SerializedSize())
	if err := e.Serialize(buf); err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	return buf
}

func TestDecodeSystem(t *testing.T) {
	d := New(buildCatalog(t))
	buf := serialize(t, ephys.NewTimestampEvent(100, 0, 123456))

	e, err := d.Decode(buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	sys, ok := e.(*ephys.SystemEvent)
	if !ok {
		t.Fatalf("decoded %T, want *ephys.SystemEvent", e)
	}
	if sys.Timestamp() != 123456 {
		t.Errorf("timestamp got %d, want 123456", sys.Timestamp())
	}
	if sys.SourceNodeID() != 100 || sys.SubStream() != 0 {
		t.Errorf("provenance got %d/%d, want 100/0", sys.SourceNodeID(), sys.SubStream())
	}
}

func TestDecodeRoutesProcessorEvents(t *testing.T) {
	reg := buildCatalog(t)
	d := New(reg)

	ttlCh, ok := reg.EventChannelFor(100, 0, 0)
	if !ok {
		t.Fatal("TTL channel missing from catalog")
	}
	word := make([]byte, ttlCh.DataSize())
	word[0] = 0x01
	ttl, err := ephys.NewTTLEvent(ttlCh, 500, 0, word)
	if err != nil {
		t.Fatalf("NewTTLEvent failed: %v", err)
	}

	e, err := d.Decode(serialize(t, ttl))
	if err != nil {
		t.Fatalf("Decode(ttl) failed: %v", err)
	}
	decoded, ok := e.(*ephys.TTLEvent)
	if !ok {
		t.Fatalf("decoded %T, want *ephys.TTLEvent", e)
	}
	if !decoded.State() {
		t.Error("TTL state got false, want true")
	}

	textCh, ok := reg.EventChannelFor(100, 0, 1)
	if !ok {
		t.Fatal("text channel missing from catalog")
	}
	note, err := ephys.NewTextEvent(textCh, 600, 0, "stimulus on")
	if err != nil {
		t.Fatalf("NewTextEvent failed: %v", err)
	}

	e, err = d.Decode(serialize(t, note))
	if err != nil {
		t.Fatalf("Decode(text) failed: %v", err)
	}
	txt, ok := e.(*ephys.TextEvent)
	if !ok {
		t.Fatalf("decoded %T, want *ephys.TextEvent", e)
	}
	if txt.Text() != "stimulus on" {
		t.Errorf("text got %q, want %q", txt.Text(), "stimulus on")
	}
}

func TestDecodeRoutesSpike(t *testing.T) {
	reg := buildCatalog(t)
	d := New(reg)

	ch, ok := reg.SpikeChannelFor(100, 0, 0)
	if !ok {
		t.Fatal("spike channel missing from catalog")
	}
	src := ephys.SpikeDataSource{
		Reader:    rampSource{},
		Channels:  []int{0, 1, 2, 3},
		Positions: []int{200},
	}
	spike, err := ephys.NewSpikeEvent(ch, 700, -55, src)
	if err != nil {
		t.Fatalf("NewSpikeEvent failed: %v", err)
	}

	e, err := d.Decode(serialize(t, spike))
	if err != nil {
		t.Fatalf("Decode(spike) failed: %v", err)
	}
	out, ok := e.(*ephys.SpikeEvent)
	if !ok {
		t.Fatalf("decoded %T, want *ephys.SpikeEvent", e)
	}
	if out.Threshold() != -55 {
		t.Errorf("threshold got %g, want -55", out.Threshold())
	}
	if got, want := len(out.Waveform()), ch.ChannelCount()*int(ch.TotalSamples()); got != want {
		t.Errorf("waveform length got %d, want %d", got, want)
	}
}

func TestDecodeUnknownAddress(t *testing.T) {
	d := New(buildCatalog(t))

	// A descriptor the decoder's catalog never saw.
	foreign, err := ephys.NewEventChannel(ephys.TTL, 0, 0,
		ephys.NewNodeIdentity(99), ephys.NewProvenance(99, 0, "Other Board", "Other"))
	if err != nil {
		t.Fatalf("NewEventChannel failed: %v", err)
	}
	foreign.SetNumChannels(8)
	word := make([]byte, foreign.DataSize())
	e, err := ephys.NewTTLEvent(foreign, 10, 0, word)
	if err != nil {
		t.Fatalf("NewTTLEvent failed: %v", err)
	}

	if _, err := d.Decode(serialize(t, e)); !errors.Is(err, ErrNoDescriptor) {
		t.Fatalf("Decode err = %v, want ErrNoDescriptor", err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	d := New(buildCatalog(t))
	cases := [][]byte{
		nil,
		{0x37},
		{byte(ephys.KindProcessor), 0x01, 0x64},
		{byte(ephys.KindSpike), 0x04, 0x64, 0x00, 0x00},
	}
	for i, msg := range cases {
		if _, err := d.Decode(msg); err == nil {
			t.Errorf("case %d: Decode accepted %v", i, msg)
		}
	}
}
