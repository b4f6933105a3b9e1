package ephys

import (
	"sync/atomic"

	"github.com/rjboer/GoEphys/metadata"
)

// Configuration describes a non-data record a module wants carried through
// the graph, such as a parameter snapshot serialized into the descriptor
// string. It shares provenance with the module's channels but has no
// payload shape.
type Configuration struct {
	NodeIdentity
	Provenance
	Attributes

	meta         []metadata.Field
	shouldRecord atomic.Bool
}

// NewConfiguration builds a configuration descriptor. The descriptor string
// carries the record's serialized form; recording starts disabled.
func NewConfiguration(descriptor string, node NodeIdentity, prov Provenance) *Configuration {
	c := &Configuration{
		NodeIdentity: node,
		Provenance:   prov,
	}
	c.SetDescriptor(descriptor)
	return c
}

func (c *Configuration) ShouldRecord() bool      { return c.shouldRecord.Load() }
func (c *Configuration) SetShouldRecord(on bool) { c.shouldRecord.Store(on) }

// AddMetadataField appends one field to the record's metadata schema.
func (c *Configuration) AddMetadataField(f metadata.Field) {
	c.meta = append(c.meta, f)
}

// MetadataSchema returns the record's metadata schema.
func (c *Configuration) MetadataSchema() []metadata.Field { return c.meta }
