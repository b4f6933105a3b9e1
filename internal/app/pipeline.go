package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/rjboer/GoEphys/ephys"
	"github.com/rjboer/GoEphys/internal/decoder"
	"github.com/rjboer/GoEphys/internal/dsp"
	"github.com/rjboer/GoEphys/internal/graph"
	"github.com/rjboer/GoEphys/internal/msgbus"
	"github.com/rjboer/GoEphys/internal/samplebuf"
	"github.com/rjboer/GoEphys/internal/synth"
	"github.com/rjboer/GoEphys/internal/telemetry"
)

// Config captures pipeline level configuration. Zero values are filled
// with defaults during Init.
type Config struct {
	Node             uint16
	Stream           uint16
	BlockSize        int           // samples per channel per acquisition block
	BlockInterval    time.Duration // loop pacing, defaults to the block's signal duration
	SpikeThreshold   float32       // negative-going crossing threshold in microvolts
	Refractory       int           // samples skipped after a detection, defaults to the waveform window
	HeartbeatBlocks  int           // TTL heartbeat cadence
	AnnotationBlocks int           // text annotation cadence
	CounterBlocks    int           // binary counter cadence
	WarmupBlocks     int           // blocks generated before the loop starts
	RingCapacity     int           // per-channel sample history
	SpikeRate        float64       // injected spikes per second per channel
	Seed             int64
}

// Stats is a point-in-time copy of the pipeline counters.
type Stats struct {
	Blocks       uint64
	Published    uint64
	Spikes       uint64
	Decoded      uint64
	DecodeErrors uint64
	BusDrops     uint64
}

// spikeUnit binds a spike descriptor to the ring channels its electrode
// sites read from. channels[0] is the trigger channel.
type spikeUnit struct {
	ch       *ephys.SpikeChannel
	channels []int
}

// Pipeline animates one node of the signal chain end to end: it generates
// continuous sample blocks, detects threshold crossings, builds events
// against the catalog descriptors, serializes them onto the bus and
// decodes everything back on a subscriber, feeding the hub and metrics.
// The hub and metrics sinks are optional.
type Pipeline struct {
	cfg      Config
	registry *graph.Registry
	bus      *msgbus.Bus
	hub      *telemetry.Hub
	metrics  *telemetry.Metrics
	logger   zerolog.Logger

	source *synth.Source
	ring   *samplebuf.Ring
	dec    *decoder.Decoder

	data       []*ephys.DataChannel
	ttl        *ephys.EventChannel
	text       *ephys.EventChannel
	counter    *ephys.EventChannel
	spikes     []*spikeUnit
	sampleRate float64

	heartbeat bool
	lastDrops uint64
	rateMark  uint64

	blocks       atomic.Uint64
	published    atomic.Uint64
	spikesSeen   atomic.Uint64
	decoded      atomic.Uint64
	decodeErrors atomic.Uint64
}

func NewPipeline(reg *graph.Registry, bus *msgbus.Bus, hub *telemetry.Hub, metrics *telemetry.Metrics, logger zerolog.Logger, cfg Config) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		registry: reg,
		bus:      bus,
		hub:      hub,
		metrics:  metrics,
		logger:   logger.With().Str("component", "pipeline").Logger(),
	}
}

// Init resolves the stream's descriptors from the catalog and builds the
// signal source and sample ring around them.
func (p *Pipeline) Init() error {
	if p.cfg.BlockSize == 0 {
		p.cfg.BlockSize = 1024
	}
	if p.cfg.SpikeThreshold == 0 {
		p.cfg.SpikeThreshold = -50
	}
	if p.cfg.HeartbeatBlocks == 0 {
		p.cfg.HeartbeatBlocks = 30
	}
	if p.cfg.AnnotationBlocks == 0 {
		p.cfg.AnnotationBlocks = 150
	}
	if p.cfg.CounterBlocks == 0 {
		p.cfg.CounterBlocks = 30
	}
	if p.cfg.WarmupBlocks == 0 {
		p.cfg.WarmupBlocks = 2
	}
	if p.cfg.RingCapacity == 0 {
		p.cfg.RingCapacity = samplebuf.DefaultCapacity
	}
	if p.cfg.SpikeRate == 0 {
		p.cfg.SpikeRate = 3
	}

	p.data = p.registry.DataChannels(p.cfg.Node, p.cfg.Stream)
	if len(p.data) == 0 {
		return fmt.Errorf("init pipeline: no data channels for node %d stream %d", p.cfg.Node, p.cfg.Stream)
	}
	p.sampleRate = float64(p.data[0].SampleRate())
	if p.cfg.BlockInterval == 0 {
		p.cfg.BlockInterval = time.Duration(float64(p.cfg.BlockSize) / p.sampleRate * float64(time.Second))
	}

	for _, ch := range p.registry.EventChannels(p.cfg.Node, p.cfg.Stream) {
		switch {
		case ch.Type() == ephys.TTL && p.ttl == nil:
			p.ttl = ch
		case ch.Type() == ephys.Text && p.text == nil:
			p.text = ch
		case ch.Type() == ephys.Uint64Array && p.counter == nil:
			p.counter = ch
		}
	}

	for _, ch := range p.registry.SpikeChannels(p.cfg.Node, p.cfg.Stream) {
		unit := &spikeUnit{ch: ch}
		for _, site := range ch.Sites() {
			src, ok := p.registry.ResolveSite(site)
			if !ok {
				return fmt.Errorf("init pipeline: spike channel %q site %d/%d/%d has no data channel",
					ch.Name(), site.NodeID, site.SubStream, site.ChannelIndex)
			}
			ringCh := -1
			for i, dc := range p.data {
				if dc == src {
					ringCh = i
					break
				}
			}
			if ringCh < 0 {
				return fmt.Errorf("init pipeline: spike channel %q reads channel %d of node %d, outside this stream",
					ch.Name(), site.ChannelIndex, site.NodeID)
			}
			unit.channels = append(unit.channels, ringCh)
		}
		p.spikes = append(p.spikes, unit)
	}

	p.source = synth.New(synth.Config{
		Channels:   len(p.data),
		SampleRate: p.sampleRate,
		BlockSize:  p.cfg.BlockSize,
		SpikeRate:  p.cfg.SpikeRate,
		Seed:       p.cfg.Seed,
	})
	p.ring = samplebuf.New(len(p.data), p.cfg.RingCapacity)
	p.dec = decoder.New(p.registry)

	p.logger.Debug().
		Int("data_channels", len(p.data)).
		Int("spike_channels", len(p.spikes)).
		Bool("ttl", p.ttl != nil).
		Bool("text", p.text != nil).
		Bool("counter", p.counter != nil).
		Msg("pipeline resolved")
	return nil
}

// Run executes the acquisition loop until the context is canceled. The
// subscriber side keeps decoding whatever is still queued on the bus; a
// packet that fails to decode is counted and dropped, never fatal.
func (p *Pipeline) Run(ctx context.Context) error {
	sub, unsubscribe := p.bus.Subscribe(256)
	done := make(chan struct{})
	go p.consume(sub, done)
	stop := func() {
		unsubscribe()
		<-done
	}

	p.warmup()

	ticker := time.NewTicker(p.cfg.BlockInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			stop()
			return ctx.Err()
		case <-ticker.C:
		}

		start := time.Now()
		if err := p.step(); err != nil {
			stop()
			return err
		}
		p.logger.Debug().
			Uint64("block", p.blocks.Load()).
			Float64("elapsed_ms", time.Since(start).Seconds()*1000).
			Msg("block processed")
	}
}

// Stats returns a copy of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Blocks:       p.blocks.Load(),
		Published:    p.published.Load(),
		Spikes:       p.spikesSeen.Load(),
		Decoded:      p.decoded.Load(),
		DecodeErrors: p.decodeErrors.Load(),
		BusDrops:     p.bus.Drops(),
	}
}

// warmup fills the ring with history so the first detected crossing has
// a full waveform window behind it.
func (p *Pipeline) warmup() {
	for i := 0; i < p.cfg.WarmupBlocks; i++ {
		block := p.source.Read()
		for ch, samples := range block {
			p.ring.Append(ch, samples)
		}
	}
	p.logger.Debug().Int("blocks", p.cfg.WarmupBlocks).Msg("warmup complete")
}

func (p *Pipeline) step() error {
	blockStart := p.source.Position()
	block := p.source.Read()
	for ch, samples := range block {
		p.ring.Append(ch, samples)
	}
	n := p.blocks.Add(1)

	// Every block opens with a timestamp sync, the way the acquisition
	// chain stamps each hardware buffer.
	if err := p.publish(ephys.NewTimestampEvent(p.cfg.Node, p.cfg.Stream, blockStart)); err != nil {
		return err
	}

	if err := p.detect(blockStart, block); err != nil {
		return err
	}

	if p.ttl != nil && n%uint64(p.cfg.HeartbeatBlocks) == 0 {
		if err := p.emitHeartbeat(blockStart); err != nil {
			return err
		}
	}
	if p.text != nil && n%uint64(p.cfg.AnnotationBlocks) == 0 {
		if err := p.emitAnnotation(blockStart, n); err != nil {
			return err
		}
	}
	if p.counter != nil && n%uint64(p.cfg.CounterBlocks) == 0 {
		if err := p.emitCounters(blockStart); err != nil {
			return err
		}
	}

	if p.metrics != nil {
		if n%uint64(p.cfg.HeartbeatBlocks) == 0 {
			seen := p.spikesSeen.Load()
			window := float64(p.cfg.HeartbeatBlocks*p.cfg.BlockSize) / p.sampleRate
			p.metrics.SetSpikeRate(p.cfg.Node, p.cfg.Stream, float64(seen-p.rateMark)/window)
			p.rateMark = seen
			// Spectral power of the first channel, split at the usual
			// LFP/spike-band boundary.
			p.metrics.SetBandPower(p.cfg.Node, p.cfg.Stream, "lfp", dsp.BandPower(block[0], p.sampleRate, 0, 300))
			p.metrics.SetBandPower(p.cfg.Node, p.cfg.Stream, "spike", dsp.BandPower(block[0], p.sampleRate, 300, 6000))
		}
		if d := p.bus.Drops(); d > p.lastDrops {
			p.metrics.AddBusDropped(d - p.lastDrops)
			p.lastDrops = d
		}
	}
	return nil
}

// detect runs threshold detection on each spike channel's trigger site
// over the newly appended block and publishes one spike event per
// crossing.
func (p *Pipeline) detect(blockStart uint64, block [][]float32) error {
	for _, u := range p.spikes {
		trigger := u.channels[0]
		if !p.data[trigger].Enabled() {
			continue
		}
		refr := p.cfg.Refractory
		if refr == 0 {
			refr = int(u.ch.TotalSamples())
		}
		pre := int(u.ch.PreSamples())
		post := int(u.ch.PostSamples())
		lo, hi := p.ring.ValidRange(trigger)
		for _, idx := range dsp.DetectCrossings(block[trigger], p.cfg.SpikeThreshold, refr) {
			crossing := int(blockStart) + idx
			if crossing-pre < lo || crossing+post > hi {
				// Window runs past the retained samples; skip.
				continue
			}
			e, err := ephys.NewSpikeEvent(u.ch, uint64(crossing), p.cfg.SpikeThreshold, ephys.SpikeDataSource{
				Reader:    p.ring,
				Channels:  u.channels,
				Positions: []int{crossing - pre},
			})
			if err != nil {
				return fmt.Errorf("build spike event: %w", err)
			}
			if err := p.publish(e); err != nil {
				return err
			}
			p.spikesSeen.Add(1)
		}
	}
	return nil
}

func (p *Pipeline) emitHeartbeat(ts uint64) error {
	p.heartbeat = !p.heartbeat
	word := make([]byte, p.ttl.DataSize())
	if p.heartbeat {
		word[0] = 1
	}
	e, err := ephys.NewTTLEvent(p.ttl, ts, 0, word)
	if err != nil {
		return fmt.Errorf("build heartbeat: %w", err)
	}
	return p.publish(e)
}

func (p *Pipeline) emitAnnotation(ts, block uint64) error {
	note := fmt.Sprintf("block %d, %d spikes so far", block, p.spikesSeen.Load())
	if limit := int(p.text.Length()); len(note) > limit {
		note = note[:limit]
	}
	e, err := ephys.NewTextEvent(p.text, ts, 0, note)
	if err != nil {
		return fmt.Errorf("build annotation: %w", err)
	}
	return p.publish(e)
}

func (p *Pipeline) emitCounters(ts uint64) error {
	vals := make([]uint64, p.counter.Length())
	counters := []uint64{p.blocks.Load(), p.published.Load(), p.spikesSeen.Load(), p.decoded.Load()}
	for i := 0; i < len(vals) && i < len(counters); i++ {
		vals[i] = counters[i]
	}
	e, err := ephys.NewBinaryEvent(p.counter, ts, 0, vals)
	if err != nil {
		return fmt.Errorf("build counter event: %w", err)
	}
	return p.publish(e)
}

func (p *Pipeline) publish(e ephys.Event) error {
	buf := make([]byte, e.SerializedSize())
	if err := e.Serialize(buf); err != nil {
		return fmt.Errorf("serialize %s event: %w", e.Kind(), err)
	}
	p.bus.Publish(msgbus.Message{Node: p.cfg.Node, Stream: p.cfg.Stream, Data: buf})
	p.published.Add(1)
	if p.metrics != nil {
		p.metrics.EventEncoded(kindLabel(e), len(buf))
	}
	return nil
}

func (p *Pipeline) consume(sub <-chan msgbus.Message, done chan<- struct{}) {
	defer close(done)
	for m := range sub {
		e, err := p.dec.Decode(m.Data)
		if err != nil {
			p.decodeErrors.Add(1)
			if p.metrics != nil {
				p.metrics.CodecError("decode")
			}
			p.logger.Warn().Err(err).Msg("dropping undecodable packet")
			continue
		}
		p.decoded.Add(1)
		label := kindLabel(e)
		if p.metrics != nil {
			p.metrics.EventDecoded(label)
		}
		if p.hub != nil {
			_, spike := e.(*ephys.SpikeEvent)
			p.hub.Record(m.Node, m.Stream, label, int64(e.Timestamp()), spike)
		}
	}
}

func kindLabel(e ephys.Event) string {
	switch e.(type) {
	case *ephys.SystemEvent:
		return "system"
	case *ephys.TTLEvent:
		return "ttl"
	case *ephys.TextEvent:
		return "text"
	case *ephys.BinaryEvent:
		return "binary"
	case *ephys.SpikeEvent:
		return "spike"
	default:
		return "unknown"
	}
}
