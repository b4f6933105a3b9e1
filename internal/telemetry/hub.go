package telemetry

import (
	"encoding/json"
	"net/http"
	"sync"
)

// StreamStats accumulates per-stream activity counters.
type StreamStats struct {
	Node          uint16 `json:"node"`
	Stream        uint16 `json:"stream"`
	Events        uint64 `json:"events"`
	Spikes        uint64 `json:"spikes"`
	LastTimestamp int64  `json:"lastTimestamp"`
}

// Update is one live notification pushed to SSE subscribers.
type Update struct {
	Node      uint16 `json:"node"`
	Stream    uint16 `json:"stream"`
	Kind      string `json:"kind"`
	Timestamp int64  `json:"timestamp"`
}

type streamKey struct {
	node   uint16
	stream uint16
}

// Hub collects per-stream statistics and fans out live updates to
// subscribers.
type Hub struct {
	mu          sync.RWMutex
	stats       map[streamKey]*StreamStats
	order       []streamKey
	subscribers map[chan Update]struct{}
}

// NewHub builds an empty telemetry hub.
func NewHub() *Hub {
	return &Hub{
		stats:       make(map[streamKey]*StreamStats),
		subscribers: make(map[chan Update]struct{}),
	}
}

// Record counts one decoded event against its stream and notifies
// subscribers. Spike events additionally bump the spike counter.
func (h *Hub) Record(node, stream uint16, kind string, timestamp int64, spike bool) {
	update := Update{Node: node, Stream: stream, Kind: kind, Timestamp: timestamp}
	key := streamKey{node: node, stream: stream}

	h.mu.Lock()
	st, ok := h.stats[key]
	if !ok {
		st = &StreamStats{Node: node, Stream: stream}
		h.stats[key] = st
		h.order = append(h.order, key)
	}
	st.Events++
	if spike {
		st.Spikes++
	}
	st.LastTimestamp = timestamp
	for ch := range h.subscribers {
		select {
		case ch <- update:
		default:
		}
	}
	h.mu.Unlock()
}

// Stats returns a copy of all stream statistics in first-seen order.
func (h *Hub) Stats() []StreamStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]StreamStats, 0, len(h.order))
	for _, key := range h.order {
		out = append(out, *h.stats[key])
	}
	return out
}

// Subscribe registers a listener for live updates.
func (h *Hub) Subscribe() (chan Update, func()) {
	ch := make(chan Update, 16)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	cancel := func() {
		h.mu.Lock()
		delete(h.subscribers, ch)
		close(ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *Hub) handleLive(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := h.Subscribe()
	defer cancel()

	// send current totals for immediate display
	for _, st := range h.Stats() {
		payload, _ := json.Marshal(st)
		w.Write([]byte("data: "))
		w.Write(payload)
		w.Write([]byte("\n\n"))
	}
	flusher.Flush()

	for {
		select {
		case update, ok := <-ch:
			if !ok {
				return
			}
			payload, _ := json.Marshal(update)
			w.Write([]byte("data: "))
			w.Write(payload)
			w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
