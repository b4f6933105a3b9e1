// Package samplebuf keeps a sliding window of recent continuous samples
// per channel, addressed by absolute sample position. Spike construction
// reads waveform windows out of it through the ephys.SampleSource
// interface.
package samplebuf

import "sync"

// DefaultCapacity holds one second of samples at 30 kHz.
const DefaultCapacity = 30000

// Ring is a fixed-capacity circular sample store. Every channel advances
// its own absolute write position; positions older than capacity are
// overwritten and read back as zero.
//
// All methods are safe for concurrent use. The expected pattern is one
// writer per channel with any number of concurrent readers.
type Ring struct {
	mu       sync.RWMutex
	data     [][]float32
	capacity int
	// written is the total number of samples ever appended per channel.
	// Channel c currently retains positions [written-stored, written)
	// where stored = min(written, capacity).
	written []int
}

// New builds a ring for the given channel count and per-channel capacity.
// Non-positive arguments are clamped to 1.
func New(channels, capacity int) *Ring {
	if channels <= 0 {
		channels = 1
	}
	if capacity <= 0 {
		capacity = 1
	}
	data := make([][]float32, channels)
	for i := range data {
		data[i] = make([]float32, capacity)
	}
	return &Ring{
		data:     data,
		capacity: capacity,
		written:  make([]int, channels),
	}
}

// Channels returns the channel count.
func (r *Ring) Channels() int { return len(r.data) }

// Capacity returns the per-channel capacity in samples.
func (r *Ring) Capacity() int { return r.capacity }

// Append writes samples at the channel's current position and advances
// it. Out-of-range channels are ignored.
func (r *Ring) Append(channel int, samples []float32) {
	if channel < 0 || channel >= len(r.data) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	buf := r.data[channel]
	pos := r.written[channel]
	for _, s := range samples {
		buf[pos%r.capacity] = s
		pos++
	}
	r.written[channel] = pos
}

// Sample returns the value at an absolute position on one channel, or 0
// when the position lies outside the retained window. Implements
// ephys.SampleSource.
func (r *Ring) Sample(channel, position int) float32 {
	if channel < 0 || channel >= len(r.data) {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	hi := r.written[channel]
	lo := hi - r.capacity
	if lo < 0 {
		lo = 0
	}
	if position < lo || position >= hi {
		return 0
	}
	return r.data[channel][position%r.capacity]
}

// ValidRange returns the half-open absolute position range [lo, hi)
// currently retained for a channel.
func (r *Ring) ValidRange(channel int) (lo, hi int) {
	if channel < 0 || channel >= len(r.data) {
		return 0, 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	hi = r.written[channel]
	lo = hi - r.capacity
	if lo < 0 {
		lo = 0
	}
	return lo, hi
}
