// Package ephys implements the channel descriptor model and binary event
// protocol of a real-time neural acquisition graph.
//
// A module that originates data builds descriptors once at stream
// configuration time: DataChannel for continuous voltage streams,
// EventChannel for discrete events (digital lines, text annotations, typed
// binary arrays), SpikeChannel for electrode groups emitting waveform
// snippets, and Configuration for non-data settings records. Descriptors fix
// the exact payload size of every event on their stream, so the codec never
// allocates beyond the destination buffer on the acquisition thread.
//
// During acquisition the module builds events against its descriptors,
// serializes them into fixed-layout packets and hands the bytes to whatever
// carries them. A consumer holding the same descriptor deserializes the
// packet back into a typed event; any disagreement between packet and
// descriptor rejects the whole packet.
//
// Packet layout, all fields little-endian:
//
//	off  size  field
//	0    1     event kind (system=0, processor=1, spike=2)
//	1    1     sub-type (channel type / system type / electrode type)
//	2    2     source node ID
//	4    2     sub-stream index
//	6    2     source event index (omitted for system events)
//	8    2     virtual channel
//	10   8     timestamp (omitted for non-timestamp system events)
//	18   ...   payload, then metadata values in schema order
//
// Errors are classified by four sentinels: ErrContract for broken
// construction contracts, ErrTypeMismatch for variant/descriptor type
// disagreement, ErrSchemaMismatch for decode-side descriptor disagreement
// and ErrCodec for truncated or under-sized buffers.
package ephys
