package conventions

import (
	"reflect"

	"go.uber.org/zap"

	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

// DiscriminatorConventionName identifies the discriminator convention
const DiscriminatorConventionName = "discriminator"

var stringType = reflect.TypeOf("")

// DiscriminatorConvention keeps a string discriminator on the root of every inheritance
// hierarchy and assigns each type in the hierarchy its short name as default value.
// Values configured from a higher source are never replaced.
type DiscriminatorConvention struct {
	logger *zap.Logger
}

// NewDiscriminatorConvention creates the convention
func NewDiscriminatorConvention(logger *zap.Logger) *DiscriminatorConvention {
	return &DiscriminatorConvention{logger: logger}
}

// Name returns the convention name
func (c *DiscriminatorConvention) Name() string {
	return DiscriminatorConventionName
}

// ProcessEntityTypeBaseTypeChanged moves the discriminator to the new hierarchy root
// and assigns default values to the moved types
func (c *DiscriminatorConvention) ProcessEntityTypeBaseTypeChanged(m *metadata.Model, e metadata.EntityTypeBaseTypeChangedEvent) {
	c.stripChildlessRoot(m, e.OldBase)

	et := e.EntityType
	if !m.HasEntityType(et) || m.BaseType(et) != e.NewBase {
		return
	}

	if e.NewBase == metadata.NoEntityType {
		if len(m.DirectlyDerivedTypes(et)) == 0 {
			m.RemoveDiscriminator(et, metadata.SourceConvention)
			return
		}
		if !m.SetDiscriminator(et, stringType, metadata.SourceConvention) {
			c.logger.Debug("discriminator not installed",
				zap.String("entity_type", m.EntityTypeName(et)))
			return
		}
	} else {
		// Only roots carry a discriminator; a configuration this convention may not
		// remove belongs to someone else
		if !m.RemoveDiscriminator(et, metadata.SourceConvention) {
			c.logger.Debug("discriminator of new derived type kept from higher source",
				zap.String("entity_type", m.EntityTypeName(et)))
			return
		}
		if _, ok := m.RootDiscriminator(et, stringType, metadata.SourceConvention); !ok {
			return
		}
		if m.BaseType(e.NewBase) == metadata.NoEntityType {
			m.SetDefaultDiscriminatorValue(e.NewBase, m.ShortName(e.NewBase))
		}
	}

	c.setDefaultValues(m, et)
}

// ProcessEntityTypeRemoved drops the discriminator of a root left without derived types
func (c *DiscriminatorConvention) ProcessEntityTypeRemoved(m *metadata.Model, e metadata.EntityTypeRemovedEvent) {
	c.stripChildlessRoot(m, e.OldBase)
}

func (c *DiscriminatorConvention) stripChildlessRoot(m *metadata.Model, id metadata.EntityTypeID) {
	if id == metadata.NoEntityType || !m.HasEntityType(id) {
		return
	}
	if m.BaseType(id) != metadata.NoEntityType || len(m.DirectlyDerivedTypes(id)) > 0 {
		return
	}
	if !m.RemoveDiscriminator(id, metadata.SourceConvention) {
		c.logger.Debug("discriminator of childless root kept from higher source",
			zap.String("entity_type", m.EntityTypeName(id)))
	}
}

// setDefaultValues assigns short names to et and everything below it
func (c *DiscriminatorConvention) setDefaultValues(m *metadata.Model, et metadata.EntityTypeID) {
	for _, t := range append([]metadata.EntityTypeID{et}, m.DerivedTypes(et)...) {
		if !m.SetDefaultDiscriminatorValue(t, m.ShortName(t)) {
			c.logger.Debug("discriminator value kept",
				zap.String("entity_type", m.EntityTypeName(t)))
		}
	}
}
