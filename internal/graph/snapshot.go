package graph

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer encoding,
// no indefinite-length items. The same catalog always produces identical
// bytes, so two nodes can compare digests instead of documents.
var encMode cbor.EncMode

func init() {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("graph: CBOR encoder initialization failed: " + err.Error())
	}
	encMode = mode
}

// Snapshot is the serializable form of the catalog: descriptor state
// only, not live runtime flags.
type Snapshot struct {
	Session SessionSnapshot  `cbor:"session"`
	Streams []StreamSnapshot `cbor:"streams"`
}

// SessionSnapshot carries the session identity in wire-stable form.
type SessionSnapshot struct {
	ID        string `cbor:"id"`
	Name      string `cbor:"name"`
	StartedAt int64  `cbor:"started_at"` // unix seconds
}

// StreamSnapshot holds one stream's descriptors in registration order.
type StreamSnapshot struct {
	Node    uint16           `cbor:"node"`
	Stream  uint16           `cbor:"stream"`
	Data    []DataSnapshot   `cbor:"data,omitempty"`
	Events  []EventSnapshot  `cbor:"events,omitempty"`
	Spikes  []SpikeSnapshot  `cbor:"spikes,omitempty"`
	Configs []ConfigSnapshot `cbor:"configs,omitempty"`
}

type DataSnapshot struct {
	Name        string  `cbor:"name"`
	Type        uint8   `cbor:"type"`
	SourceIndex uint16  `cbor:"source_index"`
	SampleRate  float32 `cbor:"sample_rate"`
	BitVolts    float32 `cbor:"bit_volts"`
}

type EventSnapshot struct {
	Name        string `cbor:"name"`
	Type        uint8  `cbor:"type"`
	SourceIndex uint16 `cbor:"source_index"`
	NumChannels uint32 `cbor:"num_channels"`
	Length      uint32 `cbor:"length"`
	DataSize    int    `cbor:"data_size"`
}

type SpikeSnapshot struct {
	Name        string         `cbor:"name"`
	Electrode   uint8          `cbor:"electrode"`
	SourceIndex uint16         `cbor:"source_index"`
	PreSamples  uint32         `cbor:"pre_samples"`
	PostSamples uint32         `cbor:"post_samples"`
	Gain        float32        `cbor:"gain"`
	Sites       []SiteSnapshot `cbor:"sites"`
}

type SiteSnapshot struct {
	Node    uint16 `cbor:"node"`
	Stream  uint16 `cbor:"stream"`
	Channel uint16 `cbor:"channel"`
}

type ConfigSnapshot struct {
	Name       string `cbor:"name"`
	Descriptor string `cbor:"descriptor"`
}

// Snapshot captures the catalog under a session identity.
func (r *Registry) Snapshot(s Session) Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := Snapshot{
		Session: SessionSnapshot{
			ID:        s.ID.String(),
			Name:      s.Name,
			StartedAt: s.StartedAt.Unix(),
		},
	}
	for _, id := range r.order {
		ss := StreamSnapshot{Node: id.Node, Stream: id.Stream}
		for _, ch := range r.data[id] {
			ss.Data = append(ss.Data, DataSnapshot{
				Name:        ch.Name(),
				Type:        uint8(ch.Type()),
				SourceIndex: ch.SourceIndex(),
				SampleRate:  ch.SampleRate(),
				BitVolts:    ch.BitVolts(),
			})
		}
		for _, ch := range r.events[id] {
			ss.Events = append(ss.Events, EventSnapshot{
				Name:        ch.Name(),
				Type:        uint8(ch.Type()),
				SourceIndex: ch.SourceIndex(),
				NumChannels: ch.NumChannels(),
				Length:      ch.Length(),
				DataSize:    ch.DataSize(),
			})
		}
		for _, ch := range r.spikes[id] {
			snap := SpikeSnapshot{
				Name:        ch.Name(),
				Electrode:   uint8(ch.Electrode()),
				SourceIndex: ch.SourceIndex(),
				PreSamples:  ch.PreSamples(),
				PostSamples: ch.PostSamples(),
				Gain:        ch.Gain(),
			}
			for _, site := range ch.Sites() {
				snap.Sites = append(snap.Sites, SiteSnapshot{
					Node:    site.NodeID,
					Stream:  site.SubStream,
					Channel: site.ChannelIndex,
				})
			}
			ss.Spikes = append(ss.Spikes, snap)
		}
		for _, c := range r.configs[id] {
			ss.Configs = append(ss.Configs, ConfigSnapshot{
				Name:       c.Name(),
				Descriptor: c.Descriptor(),
			})
		}
		out.Streams = append(out.Streams, ss)
	}
	return out
}

// EncodeSnapshot serializes a snapshot with deterministic CBOR.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	data, err := encMode.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses an encoded snapshot.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

// Digest returns the BLAKE3 digest of an encoded snapshot. Two nodes
// agree on a catalog exactly when their digests match.
func Digest(data []byte) [32]byte {
	return blake3.Sum256(data)
}
