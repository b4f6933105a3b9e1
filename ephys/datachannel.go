package ephys

import (
	"fmt"
	"sync/atomic"
)

// DataChannelType classifies a continuous voltage channel by its physical
// source.
type DataChannelType uint8

const (
	// Headstage channels carry neural signal from the amplifier headstage.
	Headstage DataChannelType = iota + 1
	// Aux channels carry auxiliary sensor data such as accelerometers.
	Aux
	// ADC channels carry general-purpose analog inputs.
	ADC
)

func (t DataChannelType) String() string {
	switch t {
	case Headstage:
		return "HEADSTAGE"
	case Aux:
		return "AUX"
	case ADC:
		return "ADC"
	default:
		return fmt.Sprintf("DATA(%d)", uint8(t))
	}
}

// DefaultBitVolts is the unity raw-to-microvolt scale assigned until the
// acquisition hardware reports its real gain.
const DefaultBitVolts float32 = 1.0

// DataChannel describes one continuous sample channel. The runtime flags
// are the only state touched during acquisition: the control thread sets
// them while the real-time thread reads them, so they are atomics. The
// embedded atomics also make the struct non-copyable by assignment; use
// Copy.
type DataChannel struct {
	ChannelInfo

	typ      DataChannelType
	bitVolts float32

	enabled          atomic.Bool
	monitored        atomic.Bool
	recordingEnabled atomic.Bool
}

// NewDataChannel builds a continuous channel descriptor. New channels start
// enabled, unmonitored, not recording, with unity bit-volt scale.
func NewDataChannel(typ DataChannelType, sourceIndex, sourceTypeIndex uint16, node NodeIdentity, prov Provenance) (*DataChannel, error) {
	if typ < Headstage || typ > ADC {
		return nil, contractf("new data channel", "invalid channel type %d", uint8(typ))
	}
	c := &DataChannel{
		ChannelInfo: newChannelInfo(node, prov, sourceIndex, sourceTypeIndex),
		typ:         typ,
		bitVolts:    DefaultBitVolts,
	}
	c.enabled.Store(true)
	return c, nil
}

// Type returns the physical source classification.
func (c *DataChannel) Type() DataChannelType { return c.typ }

// BitVolts is the multiplier converting raw sample units to microvolts.
func (c *DataChannel) BitVolts() float32      { return c.bitVolts }
func (c *DataChannel) SetBitVolts(bv float32) { c.bitVolts = bv }

// Enabled reports whether the channel currently produces data.
func (c *DataChannel) Enabled() bool      { return c.enabled.Load() }
func (c *DataChannel) SetEnabled(on bool) { c.enabled.Store(on) }

// Monitored reports whether the channel is routed to the audio monitor.
func (c *DataChannel) Monitored() bool      { return c.monitored.Load() }
func (c *DataChannel) SetMonitored(on bool) { c.monitored.Store(on) }

// RecordingEnabled reports whether the channel is armed for recording.
func (c *DataChannel) RecordingEnabled() bool      { return c.recordingEnabled.Load() }
func (c *DataChannel) SetRecordingEnabled(on bool) { c.recordingEnabled.Store(on) }

// Copy duplicates the descriptor for a downstream module. Identity,
// provenance, attributes, history, metadata schema, type, scale and sample
// rate carry over; the runtime flags reset to their defaults.
func (c *DataChannel) Copy() *DataChannel {
	dup := &DataChannel{
		ChannelInfo: c.cloneInfo(),
		typ:         c.typ,
		bitVolts:    c.bitVolts,
	}
	dup.enabled.Store(true)
	return dup
}

// Reset restores default scale, sample rate and flags.
func (c *DataChannel) Reset() {
	c.bitVolts = DefaultBitVolts
	c.sampleRate = DefaultSampleRate
	c.enabled.Store(true)
	c.monitored.Store(false)
	c.recordingEnabled.Store(false)
}
