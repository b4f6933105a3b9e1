package ephys

import "encoding/binary"

// SystemEventType classifies the descriptor-less control packets every
// module understands.
type SystemEventType uint8

const (
	// SystemTimestamp announces the first sample index of the coming
	// processing block.
	SystemTimestamp SystemEventType = 0
	// SystemBufferSize announces the processing block size in samples.
	SystemBufferSize SystemEventType = 1
	// SystemParameterChange carries an opaque parameter payload.
	SystemParameterChange SystemEventType = 2
)

func (t SystemEventType) String() string {
	switch t {
	case SystemTimestamp:
		return "TIMESTAMP"
	case SystemBufferSize:
		return "BUFFER_SIZE"
	case SystemParameterChange:
		return "PARAMETER_CHANGE"
	default:
		return "UNKNOWN"
	}
}

// SystemEvent is a control packet tied to a source node rather than a
// channel descriptor. Only the timestamp-sync sub-type carries a
// timestamp on the wire.
type SystemEvent struct {
	eventBase
	subType   SystemEventType
	srcNodeID uint16
	subStream uint16
	payload   []byte
}

// NewTimestampEvent announces the first sample index of the coming block.
func NewTimestampEvent(srcNodeID, subStream uint16, timestamp uint64) *SystemEvent {
	return &SystemEvent{
		eventBase: eventBase{kind: KindSystem, timestamp: timestamp},
		subType:   SystemTimestamp,
		srcNodeID: srcNodeID,
		subStream: subStream,
	}
}

// NewBufferSizeEvent announces the processing block size in samples.
func NewBufferSizeEvent(srcNodeID, subStream uint16, size uint32) *SystemEvent {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, size)
	return &SystemEvent{
		eventBase: eventBase{kind: KindSystem},
		subType:   SystemBufferSize,
		srcNodeID: srcNodeID,
		subStream: subStream,
		payload:   payload,
	}
}

// NewParameterChangeEvent carries an opaque parameter payload.
func NewParameterChangeEvent(srcNodeID, subStream uint16, payload []byte) *SystemEvent {
	return &SystemEvent{
		eventBase: eventBase{kind: KindSystem},
		subType:   SystemParameterChange,
		srcNodeID: srcNodeID,
		subStream: subStream,
		payload:   append([]byte(nil), payload...),
	}
}

// SystemType returns the control packet classification.
func (e *SystemEvent) SystemType() SystemEventType { return e.subType }

func (e *SystemEvent) SourceNodeID() uint16 { return e.srcNodeID }
func (e *SystemEvent) SubStream() uint16    { return e.subStream }

// BufferSize returns the announced block size, or 0 for other sub-types.
func (e *SystemEvent) BufferSize() uint32 {
	if e.subType != SystemBufferSize || len(e.payload) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(e.payload)
}

// Payload returns the raw payload bytes.
func (e *SystemEvent) Payload() []byte { return e.payload }

func (e *SystemEvent) SerializedSize() int {
	if e.subType == SystemTimestamp {
		return systemHeaderSize + 8
	}
	return systemHeaderSize + len(e.payload)
}

func (e *SystemEvent) Serialize(dst []byte) error {
	if len(dst) < e.SerializedSize() {
		return codecf("serialize system event", "buffer is %d bytes, need %d", len(dst), e.SerializedSize())
	}
	dst[0] = byte(KindSystem)
	dst[1] = byte(e.subType)
	binary.LittleEndian.PutUint16(dst[2:], e.srcNodeID)
	binary.LittleEndian.PutUint16(dst[4:], e.subStream)
	binary.LittleEndian.PutUint16(dst[6:], 0) // no virtual channel
	if e.subType == SystemTimestamp {
		binary.LittleEndian.PutUint64(dst[8:], e.timestamp)
		return nil
	}
	copy(dst[systemHeaderSize:], e.payload)
	return nil
}

// DeserializeSystem rebuilds a system event. System packets carry no
// descriptor, so every failure here is a codec error.
func DeserializeSystem(msg []byte) (*SystemEvent, error) {
	const op = "deserialize system event"
	if len(msg) < systemHeaderSize {
		return nil, codecf(op, "truncated header, %d bytes", len(msg))
	}
	if k := EventKind(msg[0]); k != KindSystem {
		return nil, codecf(op, "packet kind %s, want %s", k, KindSystem)
	}
	subType := SystemEventType(msg[1])
	e := &SystemEvent{
		eventBase: eventBase{kind: KindSystem},
		subType:   subType,
		srcNodeID: binary.LittleEndian.Uint16(msg[2:]),
		subStream: binary.LittleEndian.Uint16(msg[4:]),
	}
	switch subType {
	case SystemTimestamp:
		if len(msg) != systemHeaderSize+8 {
			return nil, codecf(op, "timestamp packet is %d bytes, want %d", len(msg), systemHeaderSize+8)
		}
		e.timestamp = binary.LittleEndian.Uint64(msg[8:])
	case SystemBufferSize:
		if len(msg) != systemHeaderSize+4 {
			return nil, codecf(op, "buffer-size packet is %d bytes, want %d", len(msg), systemHeaderSize+4)
		}
		e.payload = append([]byte(nil), msg[systemHeaderSize:]...)
	case SystemParameterChange:
		e.payload = append([]byte(nil), msg[systemHeaderSize:]...)
	default:
		return nil, codecf(op, "unknown system event type %d", msg[1])
	}
	return e, nil
}
