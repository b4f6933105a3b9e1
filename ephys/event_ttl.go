package ephys

import "github.com/rjboer/GoEphys/metadata"

// TTLEvent is one state change on a digital line group. The payload is the
// full bit-packed word of all lines; the virtual channel names the line
// that changed.
type TTLEvent struct {
	processorEvent
	word []byte
}

// NewTTLEvent builds a TTL event from a bit-packed digital word. Exactly
// the descriptor's dataSize bytes are copied out of word, so word may be a
// larger scratch buffer.
func NewTTLEvent(ch *EventChannel, timestamp uint64, channel uint16, word []byte, meta ...metadata.Value) (*TTLEvent, error) {
	const op = "new ttl event"
	base, err := newProcessorEvent(op, ch, TTL, timestamp, channel, meta)
	if err != nil {
		return nil, err
	}
	if len(word) < ch.DataSize() {
		return nil, contractf(op, "word is %d bytes, channel needs %d", len(word), ch.DataSize())
	}
	return &TTLEvent{
		processorEvent: base,
		word:           append([]byte(nil), word[:ch.DataSize()]...),
	}, nil
}

// State returns the level of the event's own line: bit Channel() of the
// word.
func (e *TTLEvent) State() bool {
	idx := int(e.channel) / 8
	if idx >= len(e.word) {
		return false
	}
	return e.word[idx]&(1<<(uint(e.channel)%8)) != 0
}

// Word returns the full bit-packed digital word.
func (e *TTLEvent) Word() []byte { return e.word }

func (e *TTLEvent) Serialize(dst []byte) error {
	if len(dst) < e.SerializedSize() {
		return codecf("serialize ttl event", "buffer is %d bytes, need %d", len(dst), e.SerializedSize())
	}
	e.putHeader(dst)
	copy(dst[headerSize:], e.word)
	e.putMetadata(dst[headerSize+len(e.word):])
	return nil
}

// DeserializeTTLEvent rebuilds a TTL event from a packet.
func DeserializeTTLEvent(msg []byte, ch *EventChannel) (*TTLEvent, error) {
	const op = "deserialize ttl event"
	if ch != nil && ch.Type() != TTL {
		return nil, &TypeError{Op: op, Variant: TTL, Declared: ch.Type()}
	}
	base, payload, err := decodeProcessorEvent(op, msg, ch)
	if err != nil {
		return nil, err
	}
	return &TTLEvent{
		processorEvent: base,
		word:           append([]byte(nil), payload...),
	}, nil
}
