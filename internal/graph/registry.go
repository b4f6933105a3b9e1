// Package graph holds the acquisition-side descriptor catalog: every
// channel a node publishes, grouped per source stream, plus the lookups
// consumers need to route packets back to the descriptor they were
// serialized with.
//
// The catalog is built single-threaded at stream configuration time and
// read concurrently afterward. Runtime flag changes go through the
// descriptors' own atomic setters, never through the registry.
package graph

import (
	"fmt"
	"sync"

	"github.com/rjboer/GoEphys/ephys"
)

// StreamID addresses one source stream: the originating node and its
// sub-stream index.
type StreamID struct {
	Node   uint16
	Stream uint16
}

// Counts summarizes the catalog size per descriptor kind.
type Counts struct {
	Data           int
	Events         int
	Spikes         int
	Configurations int
}

// Registry is the per-stream descriptor catalog.
type Registry struct {
	mu      sync.RWMutex
	data    map[StreamID][]*ephys.DataChannel
	events  map[StreamID][]*ephys.EventChannel
	spikes  map[StreamID][]*ephys.SpikeChannel
	configs map[StreamID][]*ephys.Configuration
	order   []StreamID
}

// NewRegistry builds an empty catalog.
func NewRegistry() *Registry {
	return &Registry{
		data:    make(map[StreamID][]*ephys.DataChannel),
		events:  make(map[StreamID][]*ephys.EventChannel),
		spikes:  make(map[StreamID][]*ephys.SpikeChannel),
		configs: make(map[StreamID][]*ephys.Configuration),
	}
}

func (r *Registry) streamFor(node, stream uint16) StreamID {
	id := StreamID{Node: node, Stream: stream}
	if _, seen := r.data[id]; seen {
		return id
	}
	if _, seen := r.events[id]; seen {
		return id
	}
	if _, seen := r.spikes[id]; seen {
		return id
	}
	if _, seen := r.configs[id]; seen {
		return id
	}
	r.order = append(r.order, id)
	return id
}

// AddDataChannel registers a continuous channel under its provenance
// stream.
func (r *Registry) AddDataChannel(ch *ephys.DataChannel) error {
	if ch == nil {
		return fmt.Errorf("add data channel: nil descriptor")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.streamFor(ch.SourceNodeID(), ch.SubStream())
	r.data[id] = append(r.data[id], ch)
	return nil
}

// AddEventChannel registers an event channel under its provenance stream.
func (r *Registry) AddEventChannel(ch *ephys.EventChannel) error {
	if ch == nil {
		return fmt.Errorf("add event channel: nil descriptor")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.streamFor(ch.SourceNodeID(), ch.SubStream())
	r.events[id] = append(r.events[id], ch)
	return nil
}

// AddSpikeChannel registers a spike channel under its provenance stream.
func (r *Registry) AddSpikeChannel(ch *ephys.SpikeChannel) error {
	if ch == nil {
		return fmt.Errorf("add spike channel: nil descriptor")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.streamFor(ch.SourceNodeID(), ch.SubStream())
	r.spikes[id] = append(r.spikes[id], ch)
	return nil
}

// AddConfiguration registers a settings descriptor under its provenance
// stream.
func (r *Registry) AddConfiguration(c *ephys.Configuration) error {
	if c == nil {
		return fmt.Errorf("add configuration: nil descriptor")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.streamFor(c.SourceNodeID(), c.SubStream())
	r.configs[id] = append(r.configs[id], c)
	return nil
}

// Streams returns the registered stream identities in first-seen order.
func (r *Registry) Streams() []StreamID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]StreamID, len(r.order))
	copy(out, r.order)
	return out
}

// DataChannels returns the continuous channels of one stream in
// registration order.
func (r *Registry) DataChannels(node, stream uint16) []*ephys.DataChannel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chans := r.data[StreamID{Node: node, Stream: stream}]
	out := make([]*ephys.DataChannel, len(chans))
	copy(out, chans)
	return out
}

// EventChannels returns the event channels of one stream in registration
// order.
func (r *Registry) EventChannels(node, stream uint16) []*ephys.EventChannel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chans := r.events[StreamID{Node: node, Stream: stream}]
	out := make([]*ephys.EventChannel, len(chans))
	copy(out, chans)
	return out
}

// SpikeChannels returns the spike channels of one stream in registration
// order.
func (r *Registry) SpikeChannels(node, stream uint16) []*ephys.SpikeChannel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chans := r.spikes[StreamID{Node: node, Stream: stream}]
	out := make([]*ephys.SpikeChannel, len(chans))
	copy(out, chans)
	return out
}

// Configurations returns the settings descriptors of one stream.
func (r *Registry) Configurations(node, stream uint16) []*ephys.Configuration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfgs := r.configs[StreamID{Node: node, Stream: stream}]
	out := make([]*ephys.Configuration, len(cfgs))
	copy(out, cfgs)
	return out
}

// Counts returns the catalog size per descriptor kind.
func (r *Registry) Counts() Counts {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var c Counts
	for _, chans := range r.data {
		c.Data += len(chans)
	}
	for _, chans := range r.events {
		c.Events += len(chans)
	}
	for _, chans := range r.spikes {
		c.Spikes += len(chans)
	}
	for _, cfgs := range r.configs {
		c.Configurations += len(cfgs)
	}
	return c
}

// ResolveSite finds the continuous channel a spike channel site refers
// to: the data channel whose provenance stream and source index match.
func (r *Registry) ResolveSite(site ephys.SourceSite) (*ephys.DataChannel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ch := range r.data[StreamID{Node: site.NodeID, Stream: site.SubStream}] {
		if ch.SourceIndex() == site.ChannelIndex {
			return ch, true
		}
	}
	return nil, false
}

// EventChannelFor finds the event descriptor a processor packet header
// refers to.
func (r *Registry) EventChannelFor(node, stream, sourceIndex uint16) (*ephys.EventChannel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ch := range r.events[StreamID{Node: node, Stream: stream}] {
		if ch.SourceIndex() == sourceIndex {
			return ch, true
		}
	}
	return nil, false
}

// SpikeChannelFor finds the spike descriptor a spike packet header
// refers to.
func (r *Registry) SpikeChannelFor(node, stream, sourceIndex uint16) (*ephys.SpikeChannel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ch := range r.spikes[StreamID{Node: node, Stream: stream}] {
		if ch.SourceIndex() == sourceIndex {
			return ch, true
		}
	}
	return nil, false
}
