package conventions

import (
	"go.uber.org/zap"

	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

const (
	// ConcurrencyCheckConventionName identifies the concurrency check convention
	ConcurrencyCheckConventionName = "concurrency_check"
	// KeylessConventionName identifies the keyless convention
	KeylessConventionName = "keyless"
	// KeyAttributeConventionName identifies the key attribute convention
	KeyAttributeConventionName = "key_attribute"
)

// ConcurrencyCheckConvention marks properties declared with the concurrency marker
// as concurrency tokens
type ConcurrencyCheckConvention struct {
	logger *zap.Logger
}

// NewConcurrencyCheckConvention creates the convention
func NewConcurrencyCheckConvention(logger *zap.Logger) *ConcurrencyCheckConvention {
	return &ConcurrencyCheckConvention{logger: logger}
}

// Name returns the convention name
func (c *ConcurrencyCheckConvention) Name() string {
	return ConcurrencyCheckConventionName
}

// ProcessPropertyAdded applies the marker once, when the property is first added
func (c *ConcurrencyCheckConvention) ProcessPropertyAdded(m *metadata.Model, e metadata.PropertyAddedEvent) {
	if !m.PropertyHasMarker(e.Property, metadata.MarkerConcurrencyCheck) {
		return
	}
	if !m.SetConcurrencyToken(e.Property, true, metadata.SourceDataAnnotation) {
		c.logger.Debug("concurrency token not applied",
			zap.String("property", m.PropertyName(e.Property)))
	}
}

// KeylessConvention marks entity types declared with the keyless marker as keyless
type KeylessConvention struct {
	logger *zap.Logger
}

// NewKeylessConvention creates the convention
func NewKeylessConvention(logger *zap.Logger) *KeylessConvention {
	return &KeylessConvention{logger: logger}
}

// Name returns the convention name
func (c *KeylessConvention) Name() string {
	return KeylessConventionName
}

// ProcessEntityTypeAdded applies the marker once, when the entity type is first added
func (c *KeylessConvention) ProcessEntityTypeAdded(m *metadata.Model, e metadata.EntityTypeAddedEvent) {
	if !m.EntityTypeHasMarker(e.EntityType, metadata.MarkerKeyless) {
		return
	}
	if !m.SetKeyless(e.EntityType, true, metadata.SourceDataAnnotation) {
		c.logger.Debug("keyless not applied",
			zap.String("entity_type", m.EntityTypeName(e.EntityType)))
	}
}

// KeyAttributeConvention appends properties declared with the key marker to the
// primary key of their entity type, in declaration order
type KeyAttributeConvention struct {
	logger *zap.Logger
}

// NewKeyAttributeConvention creates the convention
func NewKeyAttributeConvention(logger *zap.Logger) *KeyAttributeConvention {
	return &KeyAttributeConvention{logger: logger}
}

// Name returns the convention name
func (c *KeyAttributeConvention) Name() string {
	return KeyAttributeConventionName
}

// ProcessPropertyAdded extends the primary key with a newly added key property
func (c *KeyAttributeConvention) ProcessPropertyAdded(m *metadata.Model, e metadata.PropertyAddedEvent) {
	if !m.PropertyHasMarker(e.Property, metadata.MarkerKey) {
		return
	}
	et := m.DeclaringEntityType(e.Property)
	if m.IsKeyless(et) || m.BaseType(et) != metadata.NoEntityType {
		return
	}

	var props []metadata.PropertyID
	if pk, ok := m.PrimaryKey(et); ok {
		if m.PrimaryKeySource(et) > metadata.SourceDataAnnotation {
			return
		}
		props = m.KeyProperties(pk)
	}
	props = append(props, e.Property)
	if _, ok := m.SetPrimaryKey(et, props, metadata.SourceDataAnnotation); !ok {
		c.logger.Debug("key attribute not applied",
			zap.String("property", m.PropertyName(e.Property)))
	}
}
