package msgbus

import (
	"encoding/binary"
	"fmt"
	"io"
)

// =======================
// Frame wire format
// =======================
//
// Little-endian, matching the event packet encoding it carries:
//
//	uint8  magic (0xEE)
//	uint16 node
//	uint16 stream
//	uint32 payload length
//	[]byte payload
const (
	frameMagic      = 0xEE
	frameHeaderSize = 9

	// MaxPayload bounds a frame payload. Event packets are tiny; a
	// length past this means a corrupt or misaligned stream.
	MaxPayload = 16 << 20
)

// WriteMessage writes exactly one framed message.
func WriteMessage(w io.Writer, m Message) error {
	if len(m.Data) > MaxPayload {
		return fmt.Errorf("write frame: payload %d exceeds %d byte cap", len(m.Data), MaxPayload)
	}

	var hdr [frameHeaderSize]byte
	hdr[0] = frameMagic
	binary.LittleEndian.PutUint16(hdr[1:3], m.Node)
	binary.LittleEndian.PutUint16(hdr[3:5], m.Stream)
	binary.LittleEndian.PutUint32(hdr[5:9], uint32(len(m.Data)))

	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if len(m.Data) == 0 {
		return nil
	}
	if _, err := w.Write(m.Data); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// ReadMessage reads exactly one framed message.
func ReadMessage(r io.Reader) (Message, error) {
	var hdr [frameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Message{}, fmt.Errorf("read frame header: %w", err)
	}
	if hdr[0] != frameMagic {
		return Message{}, fmt.Errorf("read frame: bad magic 0x%02X", hdr[0])
	}

	length := binary.LittleEndian.Uint32(hdr[5:9])
	if length > MaxPayload {
		return Message{}, fmt.Errorf("read frame: payload %d exceeds %d byte cap", length, MaxPayload)
	}

	m := Message{
		Node:   binary.LittleEndian.Uint16(hdr[1:3]),
		Stream: binary.LittleEndian.Uint16(hdr[3:5]),
	}
	if length == 0 {
		return m, nil
	}
	m.Data = make([]byte, length)
	if _, err := io.ReadFull(r, m.Data); err != nil {
		return Message{}, fmt.Errorf("read frame payload: %w", err)
	}
	return m, nil
}
