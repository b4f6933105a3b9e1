// Package decoder routes serialized event packets back to typed events.
// A packet on the wire is just bytes; the only authoritative description
// of its payload is the channel descriptor held in the catalog, so the
// decoder reads the routing fields from the fixed header offsets and
// resolves the descriptor before handing the packet to the codec.
package decoder

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/rjboer/GoEphys/ephys"
	"github.com/rjboer/GoEphys/internal/graph"
)

// ErrNoDescriptor indicates a packet addressed to a channel the catalog
// does not hold. The producer and consumer disagree about the signal
// chain, usually because one of them runs against a stale snapshot.
var ErrNoDescriptor = errors.New("no descriptor registered")

// routing header offsets shared by processor and spike packets
const (
	offNode   = 2
	offStream = 4
	offIndex  = 6
)

// Decoder rebuilds typed events from packets using a catalog registry.
type Decoder struct {
	registry *graph.Registry
}

// New builds a decoder over the given catalog.
func New(reg *graph.Registry) *Decoder {
	return &Decoder{registry: reg}
}

// Decode rebuilds the typed event a packet carries. System packets are
// self-describing; processor and spike packets resolve their descriptor
// through the catalog first. Failures are either routing errors wrapping
// ErrNoDescriptor or codec errors from the ephys package.
func (d *Decoder) Decode(msg []byte) (ephys.Event, error) {
	kind, err := ephys.ReadEventKind(msg)
	if err != nil {
		return nil, err
	}
	if kind == ephys.KindSystem {
		return ephys.DeserializeSystem(msg)
	}
	if len(msg) < offIndex+2 {
		return nil, fmt.Errorf("decode %s packet: truncated routing header, %d bytes", kind, len(msg))
	}
	node := binary.LittleEndian.Uint16(msg[offNode:])
	stream := binary.LittleEndian.Uint16(msg[offStream:])
	index := binary.LittleEndian.Uint16(msg[offIndex:])

	if kind == ephys.KindSpike {
		ch, ok := d.registry.SpikeChannelFor(node, stream, index)
		if !ok {
			return nil, fmt.Errorf("decode spike packet for node %d stream %d index %d: %w", node, stream, index, ErrNoDescriptor)
		}
		return ephys.DeserializeSpike(msg, ch)
	}
	ch, ok := d.registry.EventChannelFor(node, stream, index)
	if !ok {
		return nil, fmt.Errorf("decode processor packet for node %d stream %d index %d: %w", node, stream, index, ErrNoDescriptor)
	}
	return ephys.DeserializeEvent(msg, ch)
}
