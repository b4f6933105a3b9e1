package ephys

import (
	"github.com/rjboer/GoEphys/metadata"
)

// DefaultSampleRate is assigned to new channels until the acquisition
// source overrides it.
const DefaultSampleRate float32 = 44100

// NodeIdentity identifies the module instance that owns an object within
// the acquisition graph. Immutable after construction.
type NodeIdentity struct {
	nodeID uint16
}

// NewNodeIdentity builds the identity of one graph node.
func NewNodeIdentity(nodeID uint16) NodeIdentity {
	return NodeIdentity{nodeID: nodeID}
}

// NodeID returns the owning module's graph identifier.
func (n NodeIdentity) NodeID() uint16 { return n.nodeID }

// Provenance records which module and sub-stream originated a channel. It
// survives channel copies and renames, so consumers can always trace data
// back to its source. Immutable after construction.
type Provenance struct {
	sourceNodeID uint16
	subStream    uint16
	sourceType   string
	sourceName   string
}

// NewProvenance captures the origin of a channel: the producing node, its
// sub-stream partition, and the producing module's type and display name.
func NewProvenance(sourceNodeID, subStream uint16, sourceType, sourceName string) Provenance {
	return Provenance{
		sourceNodeID: sourceNodeID,
		subStream:    subStream,
		sourceType:   sourceType,
		sourceName:   sourceName,
	}
}

func (p Provenance) SourceNodeID() uint16 { return p.sourceNodeID }
func (p Provenance) SubStream() uint16    { return p.subStream }
func (p Provenance) SourceType() string   { return p.sourceType }
func (p Provenance) SourceName() string   { return p.sourceName }

// Attributes holds mutable display metadata. None of it participates in
// identity or the wire format.
type Attributes struct {
	name        string
	descriptor  string
	description string
}

func (a *Attributes) SetName(name string)     { a.name = name }
func (a *Attributes) Name() string            { return a.name }
func (a *Attributes) SetDescriptor(d string)  { a.descriptor = d }
func (a *Attributes) Descriptor() string      { return a.descriptor }
func (a *Attributes) SetDescription(d string) { a.description = d }
func (a *Attributes) Description() string     { return a.description }

// History is an append-only trail of the modules a channel passed through.
// Entries accumulate as "first -> second -> third"; the trail never
// shrinks.
type History struct {
	trail string
}

// Append adds one entry to the trail.
func (h *History) Append(entry string) {
	if h.trail == "" {
		h.trail = entry
		return
	}
	h.trail += " -> " + entry
}

// Historic returns the accumulated trail.
func (h *History) Historic() string { return h.trail }

// ChannelInfo is the state shared by all channel descriptors: identity,
// provenance, display attributes, history, stream position and sample rate.
// Positions and provenance are fixed at construction; attributes, history,
// sample rate and metadata schema may change, but only from the control
// thread before acquisition starts.
type ChannelInfo struct {
	NodeIdentity
	Provenance
	Attributes
	History

	sourceIndex     uint16
	sourceTypeIndex uint16
	sampleRate      float32
	meta            []metadata.Field
}

func newChannelInfo(node NodeIdentity, prov Provenance, sourceIndex, sourceTypeIndex uint16) ChannelInfo {
	return ChannelInfo{
		NodeIdentity:    node,
		Provenance:      prov,
		sourceIndex:     sourceIndex,
		sourceTypeIndex: sourceTypeIndex,
		sampleRate:      DefaultSampleRate,
	}
}

// SourceIndex is the channel's position within the producing module's full
// channel list.
func (ci *ChannelInfo) SourceIndex() uint16 { return ci.sourceIndex }

// SourceTypeIndex is the channel's position among channels of its own kind.
func (ci *ChannelInfo) SourceTypeIndex() uint16 { return ci.sourceTypeIndex }

func (ci *ChannelInfo) SampleRate() float32        { return ci.sampleRate }
func (ci *ChannelInfo) SetSampleRate(rate float32) { ci.sampleRate = rate }

// AddMetadataField appends one field to the declared event metadata schema.
// Changing the schema after events have been serialized breaks decoding, so
// this belongs to stream configuration only.
func (ci *ChannelInfo) AddMetadataField(f metadata.Field) {
	ci.meta = append(ci.meta, f)
}

// MetadataSchema returns the declared event metadata schema.
func (ci *ChannelInfo) MetadataSchema() []metadata.Field { return ci.meta }

// MetadataBytes returns the serialized size of one full value set for the
// schema.
func (ci *ChannelInfo) MetadataBytes() int { return metadata.SchemaSize(ci.meta) }

func (ci *ChannelInfo) cloneInfo() ChannelInfo {
	dup := *ci
	dup.meta = append([]metadata.Field(nil), ci.meta...)
	return dup
}
