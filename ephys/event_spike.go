package ephys

import (
	"encoding/binary"
	"math"

	"github.com/rjboer/GoEphys/metadata"
)

// SampleSource supplies waveform samples to spike construction. Sample
// returns the value at an absolute sample position on one source channel.
// The codec reads it during construction only and never retains the
// reference.
type SampleSource interface {
	Sample(channel, position int) float32
}

// SpikeDataSource tells spike construction where to gather the waveform.
// Channels must hold one buffer channel per electrode channel; Positions
// holds either a single shared start position or exactly one per channel.
type SpikeDataSource struct {
	Reader    SampleSource
	Channels  []int
	Positions []int
}

// SpikeEvent is one detected spike: the crossing threshold plus the full
// multi-channel waveform window around it, channel-major.
type SpikeEvent struct {
	eventBase
	ch        *SpikeChannel
	threshold float32
	data      []float32
	meta      []metadata.Value
}

// NewSpikeEvent gathers the waveform described by src and freezes it into
// an event.
func NewSpikeEvent(ch *SpikeChannel, timestamp uint64, threshold float32, src SpikeDataSource, meta ...metadata.Value) (*SpikeEvent, error) {
	const op = "new spike event"
	if ch == nil {
		return nil, contractf(op, "nil channel descriptor")
	}
	if src.Reader == nil {
		return nil, contractf(op, "nil sample reader")
	}
	n := ch.ChannelCount()
	if len(src.Channels) != n {
		return nil, contractf(op, "%d source channels, electrode needs %d", len(src.Channels), n)
	}
	if len(src.Positions) != 1 && len(src.Positions) != n {
		return nil, contractf(op, "positions must have 1 or %d entries, got %d", n, len(src.Positions))
	}
	if !metadata.Compare(ch.MetadataSchema(), meta) {
		return nil, schemaf(op, "metadata values do not match the channel schema")
	}
	total := int(ch.TotalSamples())
	data := make([]float32, n*total)
	for i := 0; i < n; i++ {
		pos := src.Positions[0]
		if len(src.Positions) == n {
			pos = src.Positions[i]
		}
		for s := 0; s < total; s++ {
			data[i*total+s] = src.Reader.Sample(src.Channels[i], pos+s)
		}
	}
	return &SpikeEvent{
		eventBase: eventBase{kind: KindSpike, timestamp: timestamp},
		ch:        ch,
		threshold: threshold,
		data:      data,
		meta:      meta,
	}, nil
}

// ChannelInfo returns the descriptor the event was built against.
func (e *SpikeEvent) ChannelInfo() *SpikeChannel { return e.ch }

// Threshold returns the detection threshold that triggered the spike.
func (e *SpikeEvent) Threshold() float32 { return e.threshold }

// Waveform returns the full waveform block, channel-major.
func (e *SpikeEvent) Waveform() []float32 { return e.data }

// WaveformChannel returns one electrode channel's window of the waveform,
// or nil for an out-of-range channel.
func (e *SpikeEvent) WaveformChannel(i int) []float32 {
	total := int(e.ch.TotalSamples())
	if i < 0 || i >= e.ch.ChannelCount() {
		return nil
	}
	return e.data[i*total : (i+1)*total]
}

// Metadata returns the attached values in schema order.
func (e *SpikeEvent) Metadata() []metadata.Value { return e.meta }

// SerializedSize returns header + threshold + waveform + metadata.
func (e *SpikeEvent) SerializedSize() int {
	return headerSize + e.ch.PayloadSize() + e.ch.MetadataBytes()
}

func (e *SpikeEvent) Serialize(dst []byte) error {
	if len(dst) < e.SerializedSize() {
		return codecf("serialize spike event", "buffer is %d bytes, need %d", len(dst), e.SerializedSize())
	}
	dst[0] = byte(KindSpike)
	dst[1] = byte(e.ch.Electrode())
	binary.LittleEndian.PutUint16(dst[2:], e.ch.SourceNodeID())
	binary.LittleEndian.PutUint16(dst[4:], e.ch.SubStream())
	binary.LittleEndian.PutUint16(dst[6:], e.ch.SourceIndex())
	binary.LittleEndian.PutUint16(dst[8:], 0) // no virtual channel for spikes
	binary.LittleEndian.PutUint64(dst[10:], e.timestamp)
	binary.LittleEndian.PutUint32(dst[headerSize:], math.Float32bits(e.threshold))
	off := headerSize + 4
	for _, s := range e.data {
		binary.LittleEndian.PutUint32(dst[off:], math.Float32bits(s))
		off += 4
	}
	for _, v := range e.meta {
		off += copy(dst[off:], v.Bytes())
	}
	return nil
}

// DeserializeSpike rebuilds a spike event from a packet using the same
// descriptor it was serialized with.
func DeserializeSpike(msg []byte, ch *SpikeChannel) (*SpikeEvent, error) {
	const op = "deserialize spike"
	if ch == nil {
		return nil, contractf(op, "nil channel descriptor")
	}
	if len(msg) < headerSize {
		return nil, codecf(op, "truncated header, %d bytes", len(msg))
	}
	if k := EventKind(msg[0]); k != KindSpike {
		return nil, schemaf(op, "packet kind %s, want %s", k, KindSpike)
	}
	if et := ElectrodeType(msg[1]); et != ch.Electrode() {
		return nil, schemaf(op, "packet electrode %s, descriptor declares %s", et, ch.Electrode())
	}
	if id := binary.LittleEndian.Uint16(msg[2:]); id != ch.SourceNodeID() {
		return nil, schemaf(op, "packet source node %d, descriptor declares %d", id, ch.SourceNodeID())
	}
	if ss := binary.LittleEndian.Uint16(msg[4:]); ss != ch.SubStream() {
		return nil, schemaf(op, "packet sub-stream %d, descriptor declares %d", ss, ch.SubStream())
	}
	if idx := binary.LittleEndian.Uint16(msg[6:]); idx != ch.SourceIndex() {
		return nil, schemaf(op, "packet event index %d, descriptor declares %d", idx, ch.SourceIndex())
	}
	total := headerSize + ch.PayloadSize() + ch.MetadataBytes()
	if len(msg) != total {
		return nil, codecf(op, "message is %d bytes, channel expects %d", len(msg), total)
	}
	count := ch.ChannelCount() * int(ch.TotalSamples())
	data := make([]float32, count)
	off := headerSize + 4
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(msg[off:]))
		off += 4
	}
	meta, err := decodeMetadata(op, msg[off:], ch.MetadataSchema())
	if err != nil {
		return nil, err
	}
	return &SpikeEvent{
		eventBase: eventBase{kind: KindSpike, timestamp: binary.LittleEndian.Uint64(msg[10:])},
		ch:        ch,
		threshold: math.Float32frombits(binary.LittleEndian.Uint32(msg[headerSize:])),
		data:      data,
		meta:      meta,
	}, nil
}
