package config

import (
	"fmt"

	"github.com/rjboer/GoEphys/ephys"
	"github.com/rjboer/GoEphys/internal/graph"
)

// Build constructs every descriptor the configuration names and
// registers it. This is a control-thread operation; acquisition starts
// only after the whole catalog exists. Runtime flags are applied as the
// final step so a reload and a fresh build converge on the same state.
func Build(cfg *Config, reg *graph.Registry) error {
	for _, node := range cfg.Nodes {
		identity := ephys.NewNodeIdentity(node.ID)
		for _, stream := range node.Streams {
			prov := ephys.NewProvenance(node.ID, stream.Index, node.Name, node.Type)

			channels, err := buildDataChannels(stream, identity, prov)
			if err != nil {
				return fmt.Errorf("node %d stream %d: %w", node.ID, stream.Index, err)
			}
			for _, ch := range channels {
				if err := reg.AddDataChannel(ch); err != nil {
					return fmt.Errorf("node %d stream %d: %w", node.ID, stream.Index, err)
				}
			}

			if err := buildEventChannels(stream, identity, prov, reg); err != nil {
				return fmt.Errorf("node %d stream %d: %w", node.ID, stream.Index, err)
			}
			if err := buildSpikeChannels(stream, identity, prov, channels, reg); err != nil {
				return fmt.Errorf("node %d stream %d: %w", node.ID, stream.Index, err)
			}

			for _, cc := range stream.Configs {
				obj := ephys.NewConfiguration(cc.Descriptor, identity, prov)
				if cc.Name != "" {
					obj.SetName(cc.Name)
				}
				if err := reg.AddConfiguration(obj); err != nil {
					return fmt.Errorf("node %d stream %d: %w", node.ID, stream.Index, err)
				}
			}
		}
	}

	return ApplyRuntimeFlags(cfg, reg)
}

func buildDataChannels(stream StreamConfig, identity ephys.NodeIdentity, prov ephys.Provenance) ([]*ephys.DataChannel, error) {
	channels := make([]*ephys.DataChannel, 0, len(stream.Data))
	typeCounts := make(map[ephys.DataChannelType]uint16)
	for i, dc := range stream.Data {
		typ, err := parseDataChannelType(dc.Type)
		if err != nil {
			return nil, fmt.Errorf("data[%d]: %w", i, err)
		}
		ch, err := ephys.NewDataChannel(typ, uint16(i), typeCounts[typ], identity, prov)
		if err != nil {
			return nil, fmt.Errorf("data[%d]: %w", i, err)
		}
		typeCounts[typ]++
		ch.SetName(dc.Name)
		ch.SetSampleRate(stream.SampleRate)
		ch.SetBitVolts(dc.BitVolts)
		channels = append(channels, ch)
	}
	return channels, nil
}

func buildEventChannels(stream StreamConfig, identity ephys.NodeIdentity, prov ephys.Provenance, reg *graph.Registry) error {
	typeCounts := make(map[ephys.ChannelType]uint16)
	for i, ec := range stream.Events {
		typ, err := parseEventChannelType(ec.Type)
		if err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
		ch, err := ephys.NewEventChannel(typ, uint16(i), typeCounts[typ], identity, prov)
		if err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
		typeCounts[typ]++
		ch.SetName(ec.Name)
		ch.SetSampleRate(stream.SampleRate)
		if typ == ephys.TTL {
			ch.SetNumChannels(ec.Lines)
		} else {
			ch.SetLength(ec.Length)
		}
		if err := reg.AddEventChannel(ch); err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
	}
	return nil
}

func buildSpikeChannels(stream StreamConfig, identity ephys.NodeIdentity, prov ephys.Provenance, channels []*ephys.DataChannel, reg *graph.Registry) error {
	typeCounts := make(map[ephys.ElectrodeType]uint16)
	for i, sc := range stream.Spikes {
		electrode, err := parseElectrodeType(sc.Electrode)
		if err != nil {
			return fmt.Errorf("spikes[%d]: %w", i, err)
		}
		sources := make([]*ephys.DataChannel, 0, len(sc.Sources))
		for _, src := range sc.Sources {
			if int(src) >= len(channels) {
				return fmt.Errorf("spikes[%d]: source index %d out of range", i, src)
			}
			sources = append(sources, channels[src])
		}
		ch, err := ephys.NewSpikeChannel(electrode, uint16(i), typeCounts[electrode], identity, prov, sources)
		if err != nil {
			return fmt.Errorf("spikes[%d]: %w", i, err)
		}
		typeCounts[electrode]++
		ch.SetName(sc.Name)
		ch.SetSampleRate(stream.SampleRate)
		ch.SetGain(sc.Gain)
		ch.SetWaveformSamples(sc.PreSamples, sc.PostSamples)
		if err := reg.AddSpikeChannel(ch); err != nil {
			return fmt.Errorf("spikes[%d]: %w", i, err)
		}
	}
	return nil
}

// ApplyRuntimeFlags pushes the per-channel flags into an existing
// catalog without rebuilding descriptors. Channel list changes are
// structural; they make the catalog and the file disagree, so the
// mismatch is an error and the caller keeps running on the old flags.
func ApplyRuntimeFlags(cfg *Config, reg *graph.Registry) error {
	for _, node := range cfg.Nodes {
		for _, stream := range node.Streams {
			data := reg.DataChannels(node.ID, stream.Index)
			if len(data) != len(stream.Data) {
				return fmt.Errorf("node %d stream %d: data channel count changed from %d to %d, restart required",
					node.ID, stream.Index, len(data), len(stream.Data))
			}
			for i, dc := range stream.Data {
				ch := data[i]
				enabled := true
				if dc.Enabled != nil {
					enabled = *dc.Enabled
				}
				ch.SetEnabled(enabled)
				ch.SetMonitored(dc.Monitored)
				ch.SetRecordingEnabled(dc.Record)
			}

			events := reg.EventChannels(node.ID, stream.Index)
			if len(events) != len(stream.Events) {
				return fmt.Errorf("node %d stream %d: event channel count changed from %d to %d, restart required",
					node.ID, stream.Index, len(events), len(stream.Events))
			}
			for i, ec := range stream.Events {
				events[i].SetShouldRecord(ec.Record)
			}

			configs := reg.Configurations(node.ID, stream.Index)
			if len(configs) != len(stream.Configs) {
				return fmt.Errorf("node %d stream %d: configuration count changed from %d to %d, restart required",
					node.ID, stream.Index, len(configs), len(stream.Configs))
			}
			for i, cc := range stream.Configs {
				configs[i].SetShouldRecord(cc.Record)
			}
		}
	}
	return nil
}
