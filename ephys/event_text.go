package ephys

import (
	"bytes"

	"github.com/rjboer/GoEphys/metadata"
)

// TextEvent is a free-text annotation. The payload always occupies the
// descriptor's full dataSize: the UTF-8 text, a null terminator, then zero
// padding up to the declared bound.
type TextEvent struct {
	processorEvent
	text string
}

// NewTextEvent builds a text event. Text longer than the descriptor's
// declared length is rejected, never truncated.
func NewTextEvent(ch *EventChannel, timestamp uint64, channel uint16, text string, meta ...metadata.Value) (*TextEvent, error) {
	const op = "new text event"
	base, err := newProcessorEvent(op, ch, Text, timestamp, channel, meta)
	if err != nil {
		return nil, err
	}
	if len(text) > int(ch.Length()) {
		return nil, contractf(op, "text is %d bytes, channel bound is %d", len(text), ch.Length())
	}
	return &TextEvent{processorEvent: base, text: text}, nil
}

// Text returns the annotation.
func (e *TextEvent) Text() string { return e.text }

func (e *TextEvent) Serialize(dst []byte) error {
	if len(dst) < e.SerializedSize() {
		return codecf("serialize text event", "buffer is %d bytes, need %d", len(dst), e.SerializedSize())
	}
	e.putHeader(dst)
	payload := dst[headerSize : headerSize+e.ch.DataSize()]
	for i := range payload {
		payload[i] = 0
	}
	copy(payload, e.text)
	e.putMetadata(dst[headerSize+e.ch.DataSize():])
	return nil
}

// DeserializeTextEvent rebuilds a text event from a packet, stopping at the
// null terminator or the declared bound, whichever comes first.
func DeserializeTextEvent(msg []byte, ch *EventChannel) (*TextEvent, error) {
	const op = "deserialize text event"
	if ch != nil && ch.Type() != Text {
		return nil, &TypeError{Op: op, Variant: Text, Declared: ch.Type()}
	}
	base, payload, err := decodeProcessorEvent(op, msg, ch)
	if err != nil {
		return nil, err
	}
	bound := int(ch.Length())
	if bound > len(payload) {
		bound = len(payload)
	}
	text := payload[:bound]
	if i := bytes.IndexByte(text, 0); i >= 0 {
		text = text[:i]
	}
	return &TextEvent{processorEvent: base, text: string(text)}, nil
}
