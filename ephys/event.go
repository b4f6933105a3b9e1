package ephys

import (
	"encoding/binary"

	"github.com/rjboer/GoEphys/metadata"
)

// ----------------------------------------------------------------------
// Event kinds and packet header
// ----------------------------------------------------------------------

// EventKind is the leading packet byte classifying an event.
type EventKind uint8

const (
	KindSystem    EventKind = 0
	KindProcessor EventKind = 1
	KindSpike     EventKind = 2
)

func (k EventKind) String() string {
	switch k {
	case KindSystem:
		return "SYSTEM"
	case KindProcessor:
		return "PROCESSOR"
	case KindSpike:
		return "SPIKE"
	default:
		return "UNKNOWN"
	}
}

// Header sizes in bytes. Processor and spike packets share the full
// header; system packets drop the source event index and, except for
// timestamp sync, the timestamp.
const (
	headerSize       = 18
	systemHeaderSize = 8
)

// Event is the common surface of every packet variant.
type Event interface {
	// Kind returns the packet classification.
	Kind() EventKind
	// Timestamp returns the absolute sample index the event refers to.
	Timestamp() uint64
	// SerializedSize returns the exact packet size in bytes.
	SerializedSize() int
	// Serialize writes the packet into dst, which must hold at least
	// SerializedSize bytes. It writes exactly SerializedSize bytes and
	// never allocates.
	Serialize(dst []byte) error
}

type eventBase struct {
	kind      EventKind
	timestamp uint64
}

func (e *eventBase) Kind() EventKind   { return e.kind }
func (e *eventBase) Timestamp() uint64 { return e.timestamp }

// ----------------------------------------------------------------------
// Processor event base
// ----------------------------------------------------------------------

// processorEvent is the state shared by the channel-bound variants: the
// descriptor the event was built against, the virtual channel it concerns
// and the attached metadata values.
type processorEvent struct {
	eventBase
	ch      *EventChannel
	channel uint16
	meta    []metadata.Value
}

func newProcessorEvent(op string, ch *EventChannel, variant ChannelType, timestamp uint64, channel uint16, meta []metadata.Value) (processorEvent, error) {
	if ch == nil {
		return processorEvent{}, contractf(op, "nil channel descriptor")
	}
	if ch.Type() != variant {
		return processorEvent{}, &TypeError{Op: op, Variant: variant, Declared: ch.Type()}
	}
	if uint32(channel) >= ch.maxVirtualChannel() {
		return processorEvent{}, contractf(op, "virtual channel %d out of range, channel has %d", channel, ch.maxVirtualChannel())
	}
	if !metadata.Compare(ch.MetadataSchema(), meta) {
		return processorEvent{}, schemaf(op, "metadata values do not match the channel schema")
	}
	return processorEvent{
		eventBase: eventBase{kind: KindProcessor, timestamp: timestamp},
		ch:        ch,
		channel:   channel,
		meta:      meta,
	}, nil
}

// Channel returns the virtual channel the event concerns.
func (e *processorEvent) Channel() uint16 { return e.channel }

// ChannelInfo returns the descriptor the event was built against.
func (e *processorEvent) ChannelInfo() *EventChannel { return e.ch }

// ChannelType returns the descriptor's payload classification.
func (e *processorEvent) ChannelType() ChannelType { return e.ch.Type() }

// Metadata returns the attached values in schema order.
func (e *processorEvent) Metadata() []metadata.Value { return e.meta }

// SerializedSize returns header + payload + metadata.
func (e *processorEvent) SerializedSize() int {
	return headerSize + e.ch.DataSize() + e.ch.MetadataBytes()
}

func (e *processorEvent) putHeader(dst []byte) {
	dst[0] = byte(KindProcessor)
	dst[1] = byte(e.ch.Type())
	binary.LittleEndian.PutUint16(dst[2:], e.ch.SourceNodeID())
	binary.LittleEndian.PutUint16(dst[4:], e.ch.SubStream())
	binary.LittleEndian.PutUint16(dst[6:], e.ch.SourceIndex())
	binary.LittleEndian.PutUint16(dst[8:], e.channel)
	binary.LittleEndian.PutUint64(dst[10:], e.timestamp)
}

func (e *processorEvent) putMetadata(dst []byte) {
	off := 0
	for _, v := range e.meta {
		off += copy(dst[off:], v.Bytes())
	}
}

// ----------------------------------------------------------------------
// Decoding
// ----------------------------------------------------------------------

// ReadEventKind peeks the packet classification byte so a consumer can
// route the message before committing to a descriptor.
func ReadEventKind(msg []byte) (EventKind, error) {
	if len(msg) < 1 {
		return 0, codecf("read event kind", "empty message")
	}
	k := EventKind(msg[0])
	if k > KindSpike {
		return 0, codecf("read event kind", "unknown event kind %d", msg[0])
	}
	return k, nil
}

// ReadChannelType peeks the channel type of a processor event packet.
func ReadChannelType(msg []byte) (ChannelType, error) {
	if len(msg) < 2 {
		return InvalidType, codecf("read channel type", "truncated header")
	}
	if EventKind(msg[0]) != KindProcessor {
		return InvalidType, codecf("read channel type", "event kind %d is not a processor event", msg[0])
	}
	t := ChannelType(msg[1])
	if t < TTL || t > Uint64Array {
		return InvalidType, codecf("read channel type", "unknown channel type %d", msg[1])
	}
	return t, nil
}

// decodeProcessorEvent validates a processor packet against its descriptor
// and returns the shared event state plus the payload bytes. The payload
// slice aliases msg.
func decodeProcessorEvent(op string, msg []byte, ch *EventChannel) (processorEvent, []byte, error) {
	if ch == nil {
		return processorEvent{}, nil, contractf(op, "nil channel descriptor")
	}
	if len(msg) < headerSize {
		return processorEvent{}, nil, codecf(op, "truncated header, %d bytes", len(msg))
	}
	if k := EventKind(msg[0]); k != KindProcessor {
		return processorEvent{}, nil, schemaf(op, "packet kind %s, want %s", k, KindProcessor)
	}
	if t := ChannelType(msg[1]); t != ch.Type() {
		return processorEvent{}, nil, schemaf(op, "packet channel type %s, descriptor declares %s", t, ch.Type())
	}
	if id := binary.LittleEndian.Uint16(msg[2:]); id != ch.SourceNodeID() {
		return processorEvent{}, nil, schemaf(op, "packet source node %d, descriptor declares %d", id, ch.SourceNodeID())
	}
	if ss := binary.LittleEndian.Uint16(msg[4:]); ss != ch.SubStream() {
		return processorEvent{}, nil, schemaf(op, "packet sub-stream %d, descriptor declares %d", ss, ch.SubStream())
	}
	if idx := binary.LittleEndian.Uint16(msg[6:]); idx != ch.SourceIndex() {
		return processorEvent{}, nil, schemaf(op, "packet event index %d, descriptor declares %d", idx, ch.SourceIndex())
	}
	channel := binary.LittleEndian.Uint16(msg[8:])
	if uint32(channel) >= ch.maxVirtualChannel() {
		return processorEvent{}, nil, schemaf(op, "virtual channel %d out of range, channel has %d", channel, ch.maxVirtualChannel())
	}
	total := headerSize + ch.DataSize() + ch.MetadataBytes()
	if len(msg) != total {
		return processorEvent{}, nil, codecf(op, "message is %d bytes, channel expects %d", len(msg), total)
	}
	meta, err := decodeMetadata(op, msg[headerSize+ch.DataSize():], ch.MetadataSchema())
	if err != nil {
		return processorEvent{}, nil, err
	}
	base := processorEvent{
		eventBase: eventBase{kind: KindProcessor, timestamp: binary.LittleEndian.Uint64(msg[10:])},
		ch:        ch,
		channel:   channel,
		meta:      meta,
	}
	return base, msg[headerSize : headerSize+ch.DataSize()], nil
}

// decodeMetadata parses the trailing value block against a schema.
func decodeMetadata(op string, buf []byte, schema []metadata.Field) ([]metadata.Value, error) {
	if len(schema) == 0 {
		if len(buf) != 0 {
			return nil, schemaf(op, "%d metadata bytes on a channel with no schema", len(buf))
		}
		return nil, nil
	}
	values := make([]metadata.Value, 0, len(schema))
	rest := buf
	for _, f := range schema {
		v, r, err := metadata.ReadValue(rest, f)
		if err != nil {
			return nil, schemaf(op, "%v", err)
		}
		values = append(values, v)
		rest = r
	}
	if len(rest) != 0 {
		return nil, schemaf(op, "%d trailing bytes after metadata", len(rest))
	}
	return values, nil
}

// DeserializeEvent rebuilds a typed event from a processor packet using the
// same descriptor the producer serialized it with. The result is one of
// *TTLEvent, *TextEvent or *BinaryEvent according to the descriptor. A
// packet disagreeing with the descriptor in any way is rejected whole;
// partial events are never returned.
func DeserializeEvent(msg []byte, ch *EventChannel) (Event, error) {
	if ch == nil {
		return nil, contractf("deserialize event", "nil channel descriptor")
	}
	switch ch.Type() {
	case TTL:
		return DeserializeTTLEvent(msg, ch)
	case Text:
		return DeserializeTextEvent(msg, ch)
	default:
		return DeserializeBinaryEvent(msg, ch)
	}
}
