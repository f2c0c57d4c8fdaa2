package conventions

import (
	"reflect"
	"slices"

	"go.uber.org/zap"

	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

// ValueGenerationConventionName identifies the value generation convention
const ValueGenerationConventionName = "value_generation"

// ValueGenerationConvention decides which properties the store generates on insert.
// A property is generated when it is the single qualifying column of its entity type's
// primary key, has an integer or UUID type, and is not a dependent property of any
// foreign key other than a base-linking one.
type ValueGenerationConvention struct {
	logger *zap.Logger
}

// NewValueGenerationConvention creates the convention
func NewValueGenerationConvention(logger *zap.Logger) *ValueGenerationConvention {
	return &ValueGenerationConvention{logger: logger}
}

// Name returns the convention name
func (c *ValueGenerationConvention) Name() string {
	return ValueGenerationConventionName
}

// ProcessForeignKeyAdded stops generation on the dependent properties of the new foreign key
func (c *ValueGenerationConvention) ProcessForeignKeyAdded(m *metadata.Model, e metadata.ForeignKeyAddedEvent) {
	c.onForeignKeyAdded(m, e.ForeignKey)
}

func (c *ValueGenerationConvention) onForeignKeyAdded(m *metadata.Model, fk metadata.ForeignKeyID) {
	if !m.HasForeignKey(fk) || m.IsBaseLinking(fk) {
		return
	}
	for _, p := range m.ForeignKeyProperties(fk) {
		if !m.SetValueGenerated(p, metadata.ValueGeneratedNever, metadata.SourceConvention) {
			c.logger.Debug("value generation not reset for foreign key property",
				zap.String("property", m.PropertyName(p)))
		}
	}
}

// ProcessForeignKeyRemoved recomputes generation for the former dependent properties
func (c *ValueGenerationConvention) ProcessForeignKeyRemoved(m *metadata.Model, e metadata.ForeignKeyRemovedEvent) {
	c.onForeignKeyRemoved(m, e.Properties)
}

func (c *ValueGenerationConvention) onForeignKeyRemoved(m *metadata.Model, props []metadata.PropertyID) {
	for _, p := range props {
		if !m.HasProperty(p) {
			continue
		}
		// Eligibility of a key column depends on the shape of the whole key
		if pk, ok := m.ContainingPrimaryKey(p); ok {
			for _, kp := range m.KeyProperties(pk) {
				c.apply(m, kp)
			}
			continue
		}
		c.apply(m, p)
	}
}

// ProcessForeignKeyPropertiesChanged treats the old properties as removed and the new
// ones as added
func (c *ValueGenerationConvention) ProcessForeignKeyPropertiesChanged(m *metadata.Model, e metadata.ForeignKeyPropertiesChangedEvent) {
	if slices.Equal(e.OldProperties, m.ForeignKeyProperties(e.ForeignKey)) {
		return
	}
	c.onForeignKeyRemoved(m, e.OldProperties)
	c.onForeignKeyAdded(m, e.ForeignKey)
}

// ProcessPrimaryKeyChanged stops generation on the old key and recomputes the new one
func (c *ValueGenerationConvention) ProcessPrimaryKeyChanged(m *metadata.Model, e metadata.PrimaryKeyChangedEvent) {
	for _, p := range e.OldKeyProperties {
		if m.HasProperty(p) {
			m.SetValueGenerated(p, metadata.ValueGeneratedNever, metadata.SourceConvention)
		}
	}
	if e.NewKey == 0 || !m.IsPrimaryKey(e.NewKey) {
		return
	}
	for _, p := range m.KeyProperties(e.NewKey) {
		c.apply(m, p)
	}
}

// ProcessEntityTypeBaseTypeChanged recomputes every declared property once the
// base type change is final
func (c *ValueGenerationConvention) ProcessEntityTypeBaseTypeChanged(m *metadata.Model, e metadata.EntityTypeBaseTypeChangedEvent) {
	if !m.HasEntityType(e.EntityType) || m.BaseType(e.EntityType) != e.NewBase {
		return
	}
	for _, p := range m.Properties(e.EntityType) {
		c.apply(m, p)
	}
}

// ProcessForeignKeyOwnershipChanged recomputes every property of the dependent type,
// since ownership changes which key columns qualify
func (c *ValueGenerationConvention) ProcessForeignKeyOwnershipChanged(m *metadata.Model, e metadata.ForeignKeyOwnershipChangedEvent) {
	dependent := m.ForeignKeyEntityType(e.ForeignKey)
	if dependent == metadata.NoEntityType {
		return
	}
	for _, p := range m.Properties(dependent) {
		c.apply(m, p)
	}
}

// apply stores the computed strategy; ineligible properties are never generated
func (c *ValueGenerationConvention) apply(m *metadata.Model, p metadata.PropertyID) {
	if !m.HasProperty(p) {
		return
	}
	value := ValueGeneratedFor(m, p)
	if value == metadata.ValueGeneratedUnspecified {
		value = metadata.ValueGeneratedNever
	}
	if !m.SetValueGenerated(p, value, metadata.SourceConvention) {
		c.logger.Debug("value generation kept from higher source",
			zap.String("property", m.PropertyName(p)),
			zap.Stringer("computed", value),
			zap.Stringer("current", m.ValueGenerated(p)))
	}
}

// ValueGeneratedFor computes the strategy the convention assigns to a property:
// ValueGeneratedOnAdd when it is eligible, ValueGeneratedUnspecified otherwise.
// It does not modify the model.
func ValueGeneratedFor(m *metadata.Model, p metadata.PropertyID) metadata.ValueGenerated {
	if !m.HasProperty(p) {
		return metadata.ValueGeneratedUnspecified
	}
	for _, fk := range m.ContainingForeignKeys(p) {
		if !m.IsBaseLinking(fk) {
			return metadata.ValueGeneratedUnspecified
		}
	}
	pk, ok := m.ContainingPrimaryKey(p)
	if !ok || !shouldHaveGeneratedProperty(m, pk) {
		return metadata.ValueGeneratedUnspecified
	}
	if !CanBeGenerated(m.PropertyType(p)) {
		return metadata.ValueGeneratedUnspecified
	}
	return metadata.ValueGeneratedOnAdd
}

// shouldHaveGeneratedProperty reports whether a primary key has exactly one column that
// could be generated. Owned types inherit part of their key from the owner through a
// foreign key, so only the columns outside any foreign key count.
func shouldHaveGeneratedProperty(m *metadata.Model, pk metadata.KeyID) bool {
	props := m.KeyProperties(pk)
	if !m.IsOwned(m.KeyEntityType(pk)) {
		return len(props) == 1
	}
	candidates := 0
	for _, p := range props {
		if !m.IsForeignKey(p) {
			candidates++
		}
	}
	return candidates == 1
}

// CanBeGenerated reports whether the store can generate values of type t: integers
// wider than eight bits and UUIDs, after unwrapping nullability.
func CanBeGenerated(t reflect.Type) bool {
	t = metadata.UnwrapNullable(t)
	if t == nil {
		return false
	}
	if t == metadata.UUIDType {
		return true
	}
	if !metadata.IsInteger(t) {
		return false
	}
	return t.Kind() != reflect.Int8 && t.Kind() != reflect.Uint8
}
