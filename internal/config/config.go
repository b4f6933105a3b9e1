// Package config loads, validates and applies the acquisition
// configuration: which nodes exist, what channels each stream carries,
// and the runtime flags layered on top of the descriptors.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rjboer/GoEphys/ephys"
)

// Config is the root configuration structure.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Session   SessionConfig   `yaml:"session"`
	Nodes     []NodeConfig    `yaml:"nodes"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// TelemetryConfig configures the HTTP inspection server.
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// DiscoveryConfig configures mDNS announcement.
type DiscoveryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
	Port     int    `yaml:"port"`
}

// SessionConfig names the recording session.
type SessionConfig struct {
	Name string `yaml:"name"`
}

// NodeConfig describes one processor node in the signal chain.
type NodeConfig struct {
	ID      uint16         `yaml:"id"`
	Name    string         `yaml:"name"`
	Type    string         `yaml:"type"`
	Streams []StreamConfig `yaml:"streams"`
}

// StreamConfig describes one sub-stream of a node.
type StreamConfig struct {
	Index      uint16                `yaml:"index"`
	SampleRate float32               `yaml:"sample_rate"`
	Data       []DataChannelConfig   `yaml:"data"`
	Events     []EventChannelConfig  `yaml:"events"`
	Spikes     []SpikeChannelConfig  `yaml:"spikes"`
	Configs    []ConfigurationConfig `yaml:"configs"`
}

// DataChannelConfig describes one continuous channel. Enabled is a
// pointer so an absent key keeps the descriptor default (on) while an
// explicit false turns the channel off.
type DataChannelConfig struct {
	Name      string  `yaml:"name"`
	Type      string  `yaml:"type"` // "headstage", "aux", "adc"
	BitVolts  float32 `yaml:"bit_volts"`
	Enabled   *bool   `yaml:"enabled,omitempty"`
	Monitored bool    `yaml:"monitored"`
	Record    bool    `yaml:"record"`
}

// EventChannelConfig describes one event channel.
type EventChannelConfig struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`   // "ttl", "text", "int16_array", ...
	Lines  uint32 `yaml:"lines"`  // TTL digital line count
	Length uint32 `yaml:"length"` // element count for non-TTL payloads
	Record bool   `yaml:"record"`
}

// SpikeChannelConfig describes one spike source and its geometry.
type SpikeChannelConfig struct {
	Name        string   `yaml:"name"`
	Electrode   string   `yaml:"electrode"` // "single", "stereotrode", "tetrode"
	Sources     []uint16 `yaml:"sources"`   // indexes into the stream's data list
	PreSamples  uint32   `yaml:"pre_samples"`
	PostSamples uint32   `yaml:"post_samples"`
	Gain        float32  `yaml:"gain"`
}

// ConfigurationConfig describes one opaque configuration object.
type ConfigurationConfig struct {
	Name       string `yaml:"name"`
	Descriptor string `yaml:"descriptor"`
	Record     bool   `yaml:"record"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.Addr == "" {
		cfg.Telemetry.Addr = ":37497"
	}

	if cfg.Discovery.Instance == "" {
		cfg.Discovery.Instance = "GoEphys"
	}
	if cfg.Discovery.Port == 0 {
		cfg.Discovery.Port = 37497
	}

	if cfg.Session.Name == "" {
		cfg.Session.Name = "session"
	}

	for n := range cfg.Nodes {
		node := &cfg.Nodes[n]
		if node.Type == "" {
			node.Type = node.Name
		}
		for s := range node.Streams {
			stream := &node.Streams[s]
			if stream.SampleRate == 0 {
				stream.SampleRate = ephys.DefaultSampleRate
			}
			for i := range stream.Data {
				dc := &stream.Data[i]
				if dc.Name == "" {
					dc.Name = fmt.Sprintf("CH%d", i+1)
				}
				if dc.Type == "" {
					dc.Type = "headstage"
				}
				if dc.BitVolts == 0 {
					dc.BitVolts = ephys.DefaultBitVolts
				}
			}
			for i := range stream.Events {
				ec := &stream.Events[i]
				if ec.Type == "" {
					ec.Type = "ttl"
				}
				if ec.Type == "ttl" && ec.Lines == 0 {
					ec.Lines = 8
				}
				if ec.Type == "text" && ec.Length == 0 {
					ec.Length = 128
				}
				if ec.Type != "ttl" && ec.Length == 0 {
					ec.Length = 1
				}
				if ec.Name == "" {
					ec.Name = fmt.Sprintf("%s %d", strings.ToUpper(ec.Type), i+1)
				}
			}
			for i := range stream.Spikes {
				sc := &stream.Spikes[i]
				if sc.Electrode == "" {
					sc.Electrode = "single"
				}
				if sc.Name == "" {
					sc.Name = fmt.Sprintf("Electrode %d", i+1)
				}
				if sc.Gain == 0 {
					sc.Gain = 1.0
				}
				if sc.PreSamples == 0 && sc.PostSamples == 0 {
					sc.PreSamples = ephys.DefaultPreSamples
					sc.PostSamples = ephys.DefaultPostSamples
				}
			}
		}
	}
}

func validate(cfg *Config) error {
	if len(cfg.Nodes) == 0 {
		return fmt.Errorf("at least one node is required")
	}

	seenNodes := make(map[uint16]bool)
	for n, node := range cfg.Nodes {
		if node.ID == 0 {
			return fmt.Errorf("nodes[%d].id is required and must be non-zero", n)
		}
		if seenNodes[node.ID] {
			return fmt.Errorf("duplicate node id %d", node.ID)
		}
		seenNodes[node.ID] = true
		if node.Name == "" {
			return fmt.Errorf("nodes[%d].name is required", n)
		}

		seenStreams := make(map[uint16]bool)
		for _, stream := range node.Streams {
			if seenStreams[stream.Index] {
				return fmt.Errorf("node %d: duplicate stream index %d", node.ID, stream.Index)
			}
			seenStreams[stream.Index] = true
			if stream.SampleRate < 0 {
				return fmt.Errorf("node %d stream %d: negative sample rate", node.ID, stream.Index)
			}

			for i, dc := range stream.Data {
				if _, err := parseDataChannelType(dc.Type); err != nil {
					return fmt.Errorf("node %d stream %d data[%d]: %w", node.ID, stream.Index, i, err)
				}
			}
			for i, ec := range stream.Events {
				if _, err := parseEventChannelType(ec.Type); err != nil {
					return fmt.Errorf("node %d stream %d events[%d]: %w", node.ID, stream.Index, i, err)
				}
			}
			for i, sc := range stream.Spikes {
				electrode, err := parseElectrodeType(sc.Electrode)
				if err != nil {
					return fmt.Errorf("node %d stream %d spikes[%d]: %w", node.ID, stream.Index, i, err)
				}
				want := ephys.ChannelCount(electrode)
				if len(sc.Sources) != want {
					return fmt.Errorf("node %d stream %d spikes[%d]: %s needs %d sources, got %d",
						node.ID, stream.Index, i, electrode, want, len(sc.Sources))
				}
				for _, src := range sc.Sources {
					if int(src) >= len(stream.Data) {
						return fmt.Errorf("node %d stream %d spikes[%d]: source index %d out of range (stream has %d data channels)",
							node.ID, stream.Index, i, src, len(stream.Data))
					}
				}
			}
		}
	}

	return nil
}

func parseDataChannelType(s string) (ephys.DataChannelType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "headstage":
		return ephys.Headstage, nil
	case "aux":
		return ephys.Aux, nil
	case "adc":
		return ephys.ADC, nil
	default:
		return 0, fmt.Errorf("unknown data channel type %q", s)
	}
}

var eventChannelTypes = map[string]ephys.ChannelType{
	"ttl":          ephys.TTL,
	"text":         ephys.Text,
	"int8_array":   ephys.Int8Array,
	"uint8_array":  ephys.Uint8Array,
	"int16_array":  ephys.Int16Array,
	"uint16_array": ephys.Uint16Array,
	"int32_array":  ephys.Int32Array,
	"uint32_array": ephys.Uint32Array,
	"int64_array":  ephys.Int64Array,
	"uint64_array": ephys.Uint64Array,
}

func parseEventChannelType(s string) (ephys.ChannelType, error) {
	typ, ok := eventChannelTypes[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return ephys.InvalidType, fmt.Errorf("unknown event channel type %q", s)
	}
	return typ, nil
}

func parseElectrodeType(s string) (ephys.ElectrodeType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single":
		return ephys.Single, nil
	case "stereotrode":
		return ephys.Stereotrode, nil
	case "tetrode":
		return ephys.Tetrode, nil
	default:
		return 0, fmt.Errorf("unknown electrode type %q", s)
	}
}
