package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rjboer/GoEphys/ephys"
	"github.com/rjboer/GoEphys/internal/decoder"
	"github.com/rjboer/GoEphys/internal/graph"
	"github.com/rjboer/GoEphys/internal/msgbus"
	"github.com/rjboer/GoEphys/internal/telemetry"
)

// buildCatalog registers one acquisition stream: four headstage channels
// at 30 kHz, a TTL line bank, a text channel, a uint64 counter channel
// and one tetrode reading all four sites.
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
		ch.SetSampleRate(30000)
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

	counter, err := ephys.NewEventChannel(ephys.Uint64Array, 2, 0, node, prov)
	if err != nil {
		t.Fatalf("NewEventChannel(Uint64Array) failed: %v", err)
	}
	counter.SetLength(4)
	if err := reg.AddEventChannel(counter); err != nil {
		t.Fatalf("AddEventChannel(Uint64Array) failed: %v", err)
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

func testConfig() Config {
	return Config{
		Node:             100,
		Stream:           0,
		BlockSize:        256,
		BlockInterval:    time.Millisecond,
		SpikeRate:        50,
		HeartbeatBlocks:  5,
		AnnotationBlocks: 10,
		CounterBlocks:    5,
		Seed:             7,
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	reg := buildCatalog(t)
	bus := msgbus.NewBus()
	hub := telemetry.NewHub()
	metrics := telemetry.NewMetrics()
	p := NewPipeline(reg, bus, hub, metrics, zerolog.Nop(), testConfig())

	if err := p.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run returned %v, want deadline exceeded", err)
	}

	stats := p.Stats()
	if stats.Blocks == 0 {
		t.Fatal("no blocks processed")
	}
	if stats.Published < stats.Blocks {
		t.Errorf("published %d events over %d blocks, want at least one per block", stats.Published, stats.Blocks)
	}
	if stats.Spikes == 0 {
		t.Error("no spikes detected")
	}
	if stats.DecodeErrors != 0 {
		t.Errorf("decode errors = %d, want 0", stats.DecodeErrors)
	}
	// Every published packet is either decoded or dropped at the bus.
	if stats.Decoded+stats.BusDrops != stats.Published {
		t.Errorf("decoded %d + dropped %d != published %d", stats.Decoded, stats.BusDrops, stats.Published)
	}

	hs := hub.Stats()
	if len(hs) != 1 {
		t.Fatalf("hub tracks %d streams, want 1", len(hs))
	}
	if hs[0].Node != 100 || hs[0].Stream != 0 {
		t.Errorf("hub stream got %d/%d, want 100/0", hs[0].Node, hs[0].Stream)
	}
	if hs[0].Events != stats.Decoded {
		t.Errorf("hub events = %d, pipeline decoded = %d", hs[0].Events, stats.Decoded)
	}
}

func TestPipelineEmitsAllKinds(t *testing.T) {
	reg := buildCatalog(t)
	bus := msgbus.NewBus()
	p := NewPipeline(reg, bus, nil, nil, zerolog.Nop(), testConfig())

	if err := p.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	sub, unsubscribe := bus.Subscribe(8192)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := p.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run returned %v, want deadline exceeded", err)
	}
	unsubscribe()

	dec := decoder.New(reg)
	kinds := make(map[string]int)
	for m := range sub {
		e, err := dec.Decode(m.Data)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		kinds[kindLabel(e)]++
	}
	for _, kind := range []string{"system", "ttl", "text", "binary", "spike"} {
		if kinds[kind] == 0 {
			t.Errorf("no %s events published, got %v", kind, kinds)
		}
	}
}

func TestPipelineCountsDecodeErrors(t *testing.T) {
	reg := buildCatalog(t)
	bus := msgbus.NewBus()
	p := NewPipeline(reg, bus, nil, nil, zerolog.Nop(), testConfig())

	if err := p.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	go func() {
		time.Sleep(50 * time.Millisecond)
		for i := 0; i < 5; i++ {
			bus.Publish(msgbus.Message{Node: 100, Stream: 0, Data: []byte{0x37, 0x00}})
		}
	}()

	if err := p.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run returned %v, want deadline exceeded", err)
	}

	stats := p.Stats()
	if stats.DecodeErrors == 0 {
		t.Error("garbage packets were not counted as decode errors")
	}
	if stats.Blocks == 0 {
		t.Error("pipeline stopped processing blocks")
	}
}

func TestPipelineSkipsDisabledTrigger(t *testing.T) {
	reg := buildCatalog(t)
	reg.DataChannels(100, 0)[0].SetEnabled(false)

	bus := msgbus.NewBus()
	p := NewPipeline(reg, bus, nil, nil, zerolog.Nop(), testConfig())
	if err := p.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := p.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run returned %v, want deadline exceeded", err)
	}

	stats := p.Stats()
	if stats.Spikes != 0 {
		t.Errorf("detected %d spikes with the trigger channel disabled", stats.Spikes)
	}
	if stats.Blocks == 0 {
		t.Error("no blocks processed")
	}
}

func TestPipelineInitRequiresDataChannels(t *testing.T) {
	p := NewPipeline(graph.NewRegistry(), msgbus.NewBus(), nil, nil, zerolog.Nop(), Config{Node: 7, Stream: 0})
	err := p.Init()
	if err == nil {
		t.Fatal("Init accepted an empty catalog")
	}
	if !strings.Contains(err.Error(), "no data channels") {
		t.Errorf("err = %v, want mention of missing data channels", err)
	}
}
