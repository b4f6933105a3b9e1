package ephys

import (
	"fmt"
	"sync/atomic"
)

// ChannelType classifies an event channel's payload and doubles as the
// packet sub-type byte on the wire.
type ChannelType uint8

const (
	// InvalidType is the zero value; no valid channel carries it.
	InvalidType ChannelType = iota
	// TTL channels carry a bit-packed digital word, one bit per line.
	TTL
	// Text channels carry a null-terminated UTF-8 message.
	Text
	Int8Array
	Uint8Array
	Int16Array
	Uint16Array
	Int32Array
	Uint32Array
	Int64Array
	Uint64Array
)

func (t ChannelType) String() string {
	switch t {
	case TTL:
		return "TTL"
	case Text:
		return "TEXT"
	case Int8Array:
		return "INT8_ARRAY"
	case Uint8Array:
		return "UINT8_ARRAY"
	case Int16Array:
		return "INT16_ARRAY"
	case Uint16Array:
		return "UINT16_ARRAY"
	case Int32Array:
		return "INT32_ARRAY"
	case Uint32Array:
		return "UINT32_ARRAY"
	case Int64Array:
		return "INT64_ARRAY"
	case Uint64Array:
		return "UINT64_ARRAY"
	default:
		return fmt.Sprintf("TYPE(%d)", uint8(t))
	}
}

// TypeByteSize returns the element width in bytes for an array channel
// type. Every non-array type works on 1-byte granularity.
func TypeByteSize(t ChannelType) int {
	switch t {
	case Int8Array, Uint8Array:
		return 1
	case Int16Array, Uint16Array:
		return 2
	case Int32Array, Uint32Array:
		return 4
	case Int64Array, Uint64Array:
		return 8
	default:
		return 1
	}
}

func (t ChannelType) isArray() bool { return t >= Int8Array && t <= Uint64Array }

// EventChannel describes one discrete event stream. Its payload size is
// derived state: dataSize always follows from the channel type plus either
// the digital line count (TTL) or the element length (all other types), and
// is never set directly.
type EventChannel struct {
	ChannelInfo

	typ          ChannelType
	numChannels  uint32
	length       uint32
	dataSize     int
	shouldRecord atomic.Bool
}

// NewEventChannel builds an event channel descriptor with one virtual
// channel and, for non-TTL types, a single-element payload.
func NewEventChannel(typ ChannelType, sourceIndex, sourceTypeIndex uint16, node NodeIdentity, prov Provenance) (*EventChannel, error) {
	if typ < TTL || typ > Uint64Array {
		return nil, contractf("new event channel", "invalid channel type %d", uint8(typ))
	}
	c := &EventChannel{
		ChannelInfo: newChannelInfo(node, prov, sourceIndex, sourceTypeIndex),
		typ:         typ,
	}
	c.SetNumChannels(1)
	if typ != TTL {
		c.SetLength(1)
	}
	return c, nil
}

// Type returns the payload classification.
func (c *EventChannel) Type() ChannelType { return c.typ }

// SetNumChannels declares how many virtual channels the stream carries.
// For TTL channels this fixes the payload: one bit per digital line packed
// into (n+7)/8 bytes, partial bytes zero-padded at the high end.
func (c *EventChannel) SetNumChannels(n uint32) {
	c.numChannels = n
	if c.typ == TTL {
		c.length = (n + 7) / 8
		c.dataSize = int(c.length)
	}
}

func (c *EventChannel) NumChannels() uint32 { return c.numChannels }

// SetLength declares the payload element count. TTL channels ignore it,
// their size is fixed by the line count. Text channels reserve one extra
// byte for the null terminator.
func (c *EventChannel) SetLength(n uint32) {
	if c.typ == TTL {
		return
	}
	c.length = n
	c.dataSize = int(n) * TypeByteSize(c.typ)
	if c.typ == Text {
		c.dataSize++
	}
}

func (c *EventChannel) Length() uint32 { return c.length }

// DataSize returns the exact payload size in bytes of one event on this
// channel.
func (c *EventChannel) DataSize() int { return c.dataSize }

func (c *EventChannel) ShouldRecord() bool      { return c.shouldRecord.Load() }
func (c *EventChannel) SetShouldRecord(on bool) { c.shouldRecord.Store(on) }

// maxVirtualChannel is the exclusive upper bound for event virtual channel
// indexes on this descriptor.
func (c *EventChannel) maxVirtualChannel() uint32 {
	if c.numChannels == 0 {
		return 1
	}
	return c.numChannels
}
