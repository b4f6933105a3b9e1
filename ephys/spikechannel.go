package ephys

import "fmt"

// ElectrodeType is the physical probe geometry of a spike source. The
// numeric values are wire-stable: they appear as the packet sub-type byte
// of spike events.
type ElectrodeType uint8

const (
	Single      ElectrodeType = 1
	Stereotrode ElectrodeType = 2
	Tetrode     ElectrodeType = 4
)

func (t ElectrodeType) String() string {
	switch t {
	case Single:
		return "SINGLE"
	case Stereotrode:
		return "STEREOTRODE"
	case Tetrode:
		return "TETRODE"
	default:
		return fmt.Sprintf("ELECTRODE(%d)", uint8(t))
	}
}

// ChannelCount maps an electrode type to its fixed channel count.
func ChannelCount(t ElectrodeType) int {
	switch t {
	case Single:
		return 1
	case Stereotrode:
		return 2
	case Tetrode:
		return 4
	default:
		return 1
	}
}

// SourceSite identifies one continuous channel contributing to a spike
// source by its graph triple rather than a live reference, so the link
// survives channel-graph rebuilds.
type SourceSite struct {
	NodeID       uint16
	SubStream    uint16
	ChannelIndex uint16
}

// Default spike waveform window.
const (
	DefaultPreSamples  uint32 = 8
	DefaultPostSamples uint32 = 32
)

// SpikeChannel describes one spike-detecting electrode group. The site list
// length always equals the electrode type's channel count.
type SpikeChannel struct {
	ChannelInfo

	electrode ElectrodeType
	sites     []SourceSite
	gain      float32
	pre       uint32
	post      uint32
}

// NewSpikeChannel builds a spike channel descriptor from the continuous
// channels feeding the electrode. The source count must match the electrode
// geometry exactly; a mismatch is a configuration bug, not a runtime
// condition.
func NewSpikeChannel(typ ElectrodeType, sourceIndex, sourceTypeIndex uint16, node NodeIdentity, prov Provenance, sources []*DataChannel) (*SpikeChannel, error) {
	switch typ {
	case Single, Stereotrode, Tetrode:
	default:
		return nil, contractf("new spike channel", "invalid electrode type %d", uint8(typ))
	}
	want := ChannelCount(typ)
	if len(sources) != want {
		return nil, contractf("new spike channel", "%s needs %d source channels, got %d", typ, want, len(sources))
	}
	c := &SpikeChannel{
		ChannelInfo: newChannelInfo(node, prov, sourceIndex, sourceTypeIndex),
		electrode:   typ,
		gain:        1.0,
		pre:         DefaultPreSamples,
		post:        DefaultPostSamples,
	}
	for i, src := range sources {
		if src == nil {
			return nil, contractf("new spike channel", "source channel %d is nil", i)
		}
		c.sites = append(c.sites, SourceSite{
			NodeID:       src.SourceNodeID(),
			SubStream:    src.SubStream(),
			ChannelIndex: src.SourceIndex(),
		})
	}
	return c, nil
}

// Electrode returns the probe geometry.
func (c *SpikeChannel) Electrode() ElectrodeType { return c.electrode }

// ChannelCount returns the number of electrode channels.
func (c *SpikeChannel) ChannelCount() int { return len(c.sites) }

// Sites returns the contributing continuous channels in electrode order.
func (c *SpikeChannel) Sites() []SourceSite { return c.sites }

// Gain is the amplifier gain applied to the electrode's waveforms.
func (c *SpikeChannel) Gain() float32        { return c.gain }
func (c *SpikeChannel) SetGain(gain float32) { c.gain = gain }

// SetWaveformSamples sets how many samples are captured before and after
// the threshold crossing.
func (c *SpikeChannel) SetWaveformSamples(pre, post uint32) {
	c.pre = pre
	c.post = post
}

func (c *SpikeChannel) PreSamples() uint32  { return c.pre }
func (c *SpikeChannel) PostSamples() uint32 { return c.post }

// TotalSamples is the full waveform window length per channel.
func (c *SpikeChannel) TotalSamples() uint32 { return c.pre + c.post }

// PayloadSize returns the exact event payload size in bytes: a float32
// threshold followed by the full float32 waveform block.
func (c *SpikeChannel) PayloadSize() int {
	return 4 + 4*c.ChannelCount()*int(c.TotalSamples())
}
