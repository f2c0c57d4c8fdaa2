package metadata

import "reflect"

// DefaultDiscriminatorProperty is the column name used for discriminators configured by convention
const DefaultDiscriminatorProperty = "Discriminator"

type discriminatorConfig struct {
	propertyName string
	goType       reflect.Type
	source       ConfigurationSource
}

type discriminatorValue struct {
	value  any
	source ConfigurationSource
}

// DiscriminatorConfig describes the discriminator column of an inheritance hierarchy
type DiscriminatorConfig struct {
	PropertyName string
	Type         reflect.Type
	Source       ConfigurationSource
}

// Discriminator returns the discriminator configuration declared on the entity type itself.
// Only hierarchy roots carry one.
func (m *Model) Discriminator(id EntityTypeID) (DiscriminatorConfig, bool) {
	et, ok := m.entityTypes[id]
	if !ok || et.discriminator == nil {
		return DiscriminatorConfig{}, false
	}
	return DiscriminatorConfig{
		PropertyName: et.discriminator.propertyName,
		Type:         et.discriminator.goType,
		Source:       et.discriminator.source,
	}, true
}

// SetDiscriminator installs a discriminator of the given type on a root entity type.
// An existing configuration of the same type is kept (its source may be raised);
// one of a different type is replaced when src allows it.
func (m *Model) SetDiscriminator(id EntityTypeID, goType reflect.Type, src ConfigurationSource) bool {
	et, ok := m.entityTypes[id]
	if !ok || et.base != NoEntityType || goType == nil {
		return false
	}
	if d := et.discriminator; d != nil {
		if d.goType == goType {
			if src > d.source {
				d.source = src
			}
			return true
		}
		if !src.Overrides(d.source) {
			return false
		}
	}
	et.discriminator = &discriminatorConfig{
		propertyName: DefaultDiscriminatorProperty,
		goType:       goType,
		source:       src,
	}
	m.clearIncompatibleValues(id, goType)

	m.publish(DiscriminatorChangedEvent{Target: id})
	return true
}

// clearIncompatibleValues drops values in the hierarchy that no longer fit the discriminator type
func (m *Model) clearIncompatibleValues(root EntityTypeID, goType reflect.Type) {
	for _, t := range append([]EntityTypeID{root}, m.DerivedTypes(root)...) {
		et := m.entityTypes[t]
		if et.discriminatorValue != nil && !reflect.TypeOf(et.discriminatorValue.value).AssignableTo(goType) {
			et.discriminatorValue = nil
		}
	}
}

// RootDiscriminator returns the root of the entity type's hierarchy after making sure
// the root carries a discriminator of the given type.
func (m *Model) RootDiscriminator(id EntityTypeID, goType reflect.Type, src ConfigurationSource) (EntityTypeID, bool) {
	root := m.RootType(id)
	if root == NoEntityType {
		return NoEntityType, false
	}
	if !m.SetDiscriminator(root, goType, src) {
		return NoEntityType, false
	}
	// Reactions to the change may have restructured the hierarchy
	if !m.HasEntityType(root) || m.BaseType(root) != NoEntityType {
		return NoEntityType, false
	}
	return root, true
}

// RemoveDiscriminator removes the discriminator configuration declared on the entity type.
// It returns true when there is none left and false when the configuration was made from
// a higher source than src.
func (m *Model) RemoveDiscriminator(id EntityTypeID, src ConfigurationSource) bool {
	et, ok := m.entityTypes[id]
	if !ok {
		return false
	}
	if et.discriminator == nil {
		return true
	}
	if !src.Overrides(et.discriminator.source) {
		return false
	}
	et.discriminator = nil

	m.publish(DiscriminatorChangedEvent{Target: id})
	return true
}

// DiscriminatorValue returns the discriminator value assigned to the entity type
func (m *Model) DiscriminatorValue(id EntityTypeID) (any, bool) {
	et, ok := m.entityTypes[id]
	if !ok || et.discriminatorValue == nil {
		return nil, false
	}
	return et.discriminatorValue.value, true
}

// DiscriminatorValueSource returns who assigned the discriminator value of the entity type
func (m *Model) DiscriminatorValueSource(id EntityTypeID) ConfigurationSource {
	et, ok := m.entityTypes[id]
	if !ok || et.discriminatorValue == nil {
		return SourceConvention
	}
	return et.discriminatorValue.source
}

// SetDiscriminatorValue assigns the value identifying rows of the entity type. The
// hierarchy root must carry a discriminator configuration and the value must fit its
// type. A value set from a higher source is never replaced.
func (m *Model) SetDiscriminatorValue(id EntityTypeID, value any, src ConfigurationSource) bool {
	et, ok := m.entityTypes[id]
	if !ok || value == nil {
		return false
	}
	root := m.entityTypes[m.RootType(id)]
	if root.discriminator == nil || !reflect.TypeOf(value).AssignableTo(root.discriminator.goType) {
		return false
	}
	if current := et.discriminatorValue; current != nil {
		if !src.Overrides(current.source) {
			return reflect.DeepEqual(current.value, value)
		}
		if reflect.DeepEqual(current.value, value) {
			current.source = src
			return true
		}
	}
	et.discriminatorValue = &discriminatorValue{value: value, source: src}

	m.publish(DiscriminatorChangedEvent{Target: id})
	return true
}

// SetDefaultDiscriminatorValue assigns a convention-sourced value; explicit and
// annotation-sourced values are left untouched.
func (m *Model) SetDefaultDiscriminatorValue(id EntityTypeID, value any) bool {
	return m.SetDiscriminatorValue(id, value, SourceConvention)
}

// DiscriminatorMapping returns the values of every type in the entity type's hierarchy,
// or nil when the hierarchy root has no discriminator.
func (m *Model) DiscriminatorMapping(id EntityTypeID) map[EntityTypeID]any {
	root, ok := m.entityTypes[m.RootType(id)]
	if !ok || root.discriminator == nil {
		return nil
	}
	mapping := make(map[EntityTypeID]any)
	for _, t := range append([]EntityTypeID{root.id}, m.DerivedTypes(root.id)...) {
		if v := m.entityTypes[t].discriminatorValue; v != nil {
			mapping[t] = v.value
		}
	}
	return mapping
}

// FindByDiscriminatorValue returns the type in id's hierarchy mapped to value. When
// several types share the value, the root wins, then derived types in breadth-first order.
func (m *Model) FindByDiscriminatorValue(id EntityTypeID, value any) (EntityTypeID, bool) {
	root, ok := m.entityTypes[m.RootType(id)]
	if !ok || root.discriminator == nil {
		return NoEntityType, false
	}
	for _, t := range append([]EntityTypeID{root.id}, m.DerivedTypes(root.id)...) {
		if v := m.entityTypes[t].discriminatorValue; v != nil && reflect.DeepEqual(v.value, value) {
			return t, true
		}
	}
	return NoEntityType, false
}
