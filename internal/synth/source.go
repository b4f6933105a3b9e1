// Package synth generates multichannel synthetic neural signal for demo
// pipelines: a per-channel sinusoidal background, gaussian noise and
// injected biphasic spike transients at a controllable rate. It stands in
// for an acquisition board's RX path.
package synth

import (
	"math"
	"math/rand"
	"sync"
)

// Config carries the signal shape parameters. Amplitudes are in
// microvolts.
type Config struct {
	Channels   int
	SampleRate float64
	BlockSize  int
	CarrierHz  float64
	CarrierAmp float64
	NoiseAmp   float64
	SpikeAmp   float64 // peak of the negative-going lobe
	SpikeRate  float64 // expected spikes per second per channel
	Seed       int64
}

// spikeSamples is the length of the injected biphasic transient,
// matching the default waveform window of a spike channel.
const spikeSamples = 40

// Source produces successive sample blocks with an absolute position
// counter, so consumers can timestamp samples and locate transients.
type Source struct {
	mu     sync.RWMutex
	cfg    Config
	rng    *rand.Rand
	pos    uint64
	shape  []float32
	active [][]float32 // remaining transient samples per channel
}

// New builds a source, filling in defaults for zero-valued parameters.
func New(cfg Config) *Source {
	if cfg.Channels <= 0 {
		cfg.Channels = 4
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 30000
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = 1024
	}
	if cfg.CarrierHz <= 0 {
		cfg.CarrierHz = 8
	}
	if cfg.CarrierAmp == 0 {
		cfg.CarrierAmp = 40
	}
	if cfg.NoiseAmp == 0 {
		cfg.NoiseAmp = 5
	}
	if cfg.SpikeAmp == 0 {
		cfg.SpikeAmp = 80
	}

	shape := make([]float32, spikeSamples)
	for k := range shape {
		shape[k] = float32(-cfg.SpikeAmp * math.Sin(2*math.Pi*float64(k)/spikeSamples))
	}

	return &Source{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		shape:  shape,
		active: make([][]float32, cfg.Channels),
	}
}

// SetSpikeRate updates the expected spikes per second per channel,
// allowing rate changes during operation.
func (s *Source) SetSpikeRate(perSecond float64) {
	s.mu.Lock()
	s.cfg.SpikeRate = perSecond
	s.mu.Unlock()
}

// SpikeRate returns the current spike rate setting.
func (s *Source) SpikeRate() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.SpikeRate
}

// Channels returns the configured channel count.
func (s *Source) Channels() int { return s.cfg.Channels }

// SampleRate returns the configured sample rate in Hz.
func (s *Source) SampleRate() float64 { return s.cfg.SampleRate }

// BlockSize returns the samples per channel of each Read block.
func (s *Source) BlockSize() int { return s.cfg.BlockSize }

// Position returns the absolute sample index of the next block's first
// sample.
func (s *Source) Position() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pos
}

// Read generates the next block: one slice of BlockSize samples per
// channel. Output is deterministic for a given seed and call sequence.
func (s *Source) Read() [][]float32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.cfg
	n := cfg.BlockSize
	pSpike := cfg.SpikeRate / cfg.SampleRate
	phaseStep := 2 * math.Pi * cfg.CarrierHz / cfg.SampleRate

	out := make([][]float32, cfg.Channels)
	for ch := 0; ch < cfg.Channels; ch++ {
		buf := make([]float32, n)
		// Small per-channel phase offset so channels are distinguishable.
		phase0 := float64(ch) * math.Pi / 8
		for i := 0; i < n; i++ {
			phase := phaseStep*float64(s.pos+uint64(i)) + phase0
			v := float32(cfg.CarrierAmp*math.Sin(phase) + s.rng.NormFloat64()*cfg.NoiseAmp)

			if len(s.active[ch]) > 0 {
				v += s.active[ch][0]
				s.active[ch] = s.active[ch][1:]
			} else if pSpike > 0 && s.rng.Float64() < pSpike {
				v += s.shape[0]
				s.active[ch] = s.shape[1:]
			}
			buf[i] = v
		}
		out[ch] = buf
	}
	s.pos += uint64(n)
	return out
}
