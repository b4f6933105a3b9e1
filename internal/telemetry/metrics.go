package telemetry

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's prometheus collectors. They live on a
// private registry so embedded uses and tests never collide on the
// global default registry.
type Metrics struct {
	registry *prometheus.Registry

	encoded     *prometheus.CounterVec
	decoded     *prometheus.CounterVec
	codecErrors *prometheus.CounterVec
	busDropped  prometheus.Counter
	eventBytes  prometheus.Histogram
	spikeRate   *prometheus.GaugeVec
	bandPower   *prometheus.GaugeVec
}

// NewMetrics builds and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.encoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ephys_events_encoded_total",
			Help: "Events serialized to the wire, by packet kind.",
		},
		[]string{"kind"},
	)

	m.decoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ephys_events_decoded_total",
			Help: "Events decoded from the wire, by packet kind.",
		},
		[]string{"kind"},
	)

	m.codecErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ephys_codec_errors_total",
			Help: "Serialization failures, by pipeline stage.",
		},
		[]string{"stage"},
	)

	m.busDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ephys_bus_dropped_total",
			Help: "Messages lost to full subscriber buffers.",
		},
	)

	m.eventBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ephys_event_bytes",
			Help:    "Serialized event packet size in bytes.",
			Buckets: prometheus.ExponentialBuckets(8, 2, 10),
		},
	)

	m.spikeRate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ephys_spike_rate_hz",
			Help: "Detected spike rate per stream.",
		},
		[]string{"node", "stream"},
	)

	m.bandPower = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ephys_band_power_uv2",
			Help: "Spectral power of the monitor channel, by frequency band.",
		},
		[]string{"node", "stream", "band"},
	)

	m.registry.MustRegister(
		m.encoded,
		m.decoded,
		m.codecErrors,
		m.busDropped,
		m.eventBytes,
		m.spikeRate,
		m.bandPower,
	)
	return m
}

// EventEncoded records one serialized packet and its size.
func (m *Metrics) EventEncoded(kind string, size int) {
	m.encoded.WithLabelValues(kind).Inc()
	m.eventBytes.Observe(float64(size))
}

// EventDecoded records one successfully decoded packet.
func (m *Metrics) EventDecoded(kind string) {
	m.decoded.WithLabelValues(kind).Inc()
}

// CodecError records a failed encode or decode.
func (m *Metrics) CodecError(stage string) {
	m.codecErrors.WithLabelValues(stage).Inc()
}

// AddBusDropped adds newly observed subscriber drops. Callers pass the
// delta since their last report, not the absolute bus counter.
func (m *Metrics) AddBusDropped(n uint64) {
	m.busDropped.Add(float64(n))
}

// SetSpikeRate publishes the current spike rate for one stream.
func (m *Metrics) SetSpikeRate(node, stream uint16, hz float64) {
	m.spikeRate.WithLabelValues(
		strconv.Itoa(int(node)),
		strconv.Itoa(int(stream)),
	).Set(hz)
}

// SetBandPower publishes the monitor channel's spectral power for one
// stream and band.
func (m *Metrics) SetBandPower(node, stream uint16, band string, power float64) {
	m.bandPower.WithLabelValues(
		strconv.Itoa(int(node)),
		strconv.Itoa(int(stream)),
		band,
	).Set(power)
}

// Handler serves the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
