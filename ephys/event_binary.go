package ephys

import (
	"encoding/binary"

	"github.com/rjboer/GoEphys/metadata"
)

// BinaryEvent is a fixed-length numeric array. The element type is fixed by
// the concrete slice handed to the constructor and must match the
// descriptor's declared array type; the element count must equal the
// descriptor's length.
type BinaryEvent struct {
	processorEvent
	data []byte
}

// NewBinaryEvent builds a binary event from a typed slice: one of []int8,
// []uint8, []int16, []uint16, []int32, []uint32, []int64 or []uint64.
func NewBinaryEvent(ch *EventChannel, timestamp uint64, channel uint16, data any, meta ...metadata.Value) (*BinaryEvent, error) {
	const op = "new binary event"
	elemType, count, raw := packArray(data)
	if elemType == InvalidType {
		return nil, contractf(op, "unsupported payload type %T", data)
	}
	base, err := newProcessorEvent(op, ch, elemType, timestamp, channel, meta)
	if err != nil {
		return nil, err
	}
	if count != int(ch.Length()) {
		return nil, contractf(op, "%d elements, channel declares %d", count, ch.Length())
	}
	return &BinaryEvent{processorEvent: base, data: raw}, nil
}

// Data returns the raw little-endian payload.
func (e *BinaryEvent) Data() []byte { return e.data }

// Elements decodes the payload into the slice type matching the
// descriptor, e.g. []int16 for an INT16_ARRAY channel.
func (e *BinaryEvent) Elements() any { return unpackArray(e.ch.Type(), e.data) }

func (e *BinaryEvent) Serialize(dst []byte) error {
	if len(dst) < e.SerializedSize() {
		return codecf("serialize binary event", "buffer is %d bytes, need %d", len(dst), e.SerializedSize())
	}
	e.putHeader(dst)
	copy(dst[headerSize:], e.data)
	e.putMetadata(dst[headerSize+len(e.data):])
	return nil
}

// DeserializeBinaryEvent rebuilds a binary event from a packet.
func DeserializeBinaryEvent(msg []byte, ch *EventChannel) (*BinaryEvent, error) {
	const op = "deserialize binary event"
	if ch != nil && !ch.Type().isArray() {
		return nil, &TypeError{Op: op, Variant: InvalidType, Declared: ch.Type()}
	}
	base, payload, err := decodeProcessorEvent(op, msg, ch)
	if err != nil {
		return nil, err
	}
	return &BinaryEvent{
		processorEvent: base,
		data:           append([]byte(nil), payload...),
	}, nil
}

// packArray converts a typed slice to its wire form, returning the matching
// channel type and element count. An unsupported type returns InvalidType.
func packArray(data any) (ChannelType, int, []byte) {
	switch d := data.(type) {
	case []int8:
		raw := make([]byte, len(d))
		for i, x := range d {
			raw[i] = byte(x)
		}
		return Int8Array, len(d), raw
	case []uint8:
		return Uint8Array, len(d), append([]byte(nil), d...)
	case []int16:
		raw := make([]byte, 2*len(d))
		for i, x := range d {
			binary.LittleEndian.PutUint16(raw[2*i:], uint16(x))
		}
		return Int16Array, len(d), raw
	case []uint16:
		raw := make([]byte, 2*len(d))
		for i, x := range d {
			binary.LittleEndian.PutUint16(raw[2*i:], x)
		}
		return Uint16Array, len(d), raw
	case []int32:
		raw := make([]byte, 4*len(d))
		for i, x := range d {
			binary.LittleEndian.PutUint32(raw[4*i:], uint32(x))
		}
		return Int32Array, len(d), raw
	case []uint32:
		raw := make([]byte, 4*len(d))
		for i, x := range d {
			binary.LittleEndian.PutUint32(raw[4*i:], x)
		}
		return Uint32Array, len(d), raw
	case []int64:
		raw := make([]byte, 8*len(d))
		for i, x := range d {
			binary.LittleEndian.PutUint64(raw[8*i:], uint64(x))
		}
		return Int64Array, len(d), raw
	case []uint64:
		raw := make([]byte, 8*len(d))
		for i, x := range d {
			binary.LittleEndian.PutUint64(raw[8*i:], x)
		}
		return Uint64Array, len(d), raw
	default:
		return InvalidType, 0, nil
	}
}

// unpackArray is the inverse of packArray for a known channel type.
func unpackArray(t ChannelType, raw []byte) any {
	switch t {
	case Int8Array:
		out := make([]int8, len(raw))
		for i, b := range raw {
			out[i] = int8(b)
		}
		return out
	case Uint8Array:
		return append([]uint8(nil), raw...)
	case Int16Array:
		out := make([]int16, len(raw)/2)
		for i := range out {
			out[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
		}
		return out
	case Uint16Array:
		out := make([]uint16, len(raw)/2)
		for i := range out {
			out[i] = binary.LittleEndian.Uint16(raw[2*i:])
		}
		return out
	case Int32Array:
		out := make([]int32, len(raw)/4)
		for i := range out {
			out[i] = int32(binary.LittleEndian.Uint32(raw[4*i:]))
		}
		return out
	case Uint32Array:
		out := make([]uint32, len(raw)/4)
		for i := range out {
			out[i] = binary.LittleEndian.Uint32(raw[4*i:])
		}
		return out
	case Int64Array:
		out := make([]int64, len(raw)/8)
		for i := range out {
			out[i] = int64(binary.LittleEndian.Uint64(raw[8*i:]))
		}
		return out
	case Uint64Array:
		out := make([]uint64, len(raw)/8)
		for i := range out {
			out[i] = binary.LittleEndian.Uint64(raw[8*i:])
		}
		return out
	default:
		return nil
	}
}
