package metadata

import (
	"fmt"
	"reflect"
	"strings"
)

type property struct {
	id         PropertyID
	entityType EntityTypeID
	name       string
	goType     reflect.Type
	shadow     bool

	valueGenerated       ValueGenerated
	valueGeneratedSource ConfigurationSource

	concurrencyToken       bool
	concurrencyTokenSource ConfigurationSource

	keys        []KeyID
	foreignKeys []ForeignKeyID

	markers markerSet
}

// AddProperty declares a property on an entity type. The property is a shadow property
// when the entity type has no Go struct type or the struct has no field of that name.
func (m *Model) AddProperty(entityTypeID EntityTypeID, name string, goType reflect.Type, markers ...Marker) (PropertyID, error) {
	et, ok := m.entityTypes[entityTypeID]
	if !ok {
		return 0, fmt.Errorf("entity type %d: %w", entityTypeID, ErrNotFound)
	}
	if name == "" {
		return 0, fmt.Errorf("property name on %s must not be empty: %w", et.name, ErrInvalidKey)
	}
	if goType == nil {
		return 0, fmt.Errorf("property %s.%s has no type: %w", et.name, name, ErrInvalidKey)
	}
	if _, exists := m.findPropertyInHierarchy(entityTypeID, name); exists {
		return 0, fmt.Errorf("property %s.%s: %w", et.name, name, ErrDuplicate)
	}

	p := &property{
		id:         PropertyID(m.allocate()),
		entityType: entityTypeID,
		name:       name,
		goType:     goType,
		shadow:     !hasField(et.goType, name),
		markers:    newMarkerSet(markers),
	}
	m.properties[p.id] = p
	et.properties = append(et.properties, p.id)

	m.publish(PropertyAddedEvent{Property: p.id})
	return p.id, nil
}

// RemoveProperty removes a property that no key or foreign key uses
func (m *Model) RemoveProperty(id PropertyID) error {
	p, ok := m.properties[id]
	if !ok {
		return fmt.Errorf("property %d: %w", id, ErrNotFound)
	}
	if len(p.keys) > 0 || len(p.foreignKeys) > 0 {
		return fmt.Errorf("property %s is part of a key: %w", p.name, ErrInUse)
	}
	et := m.entityTypes[p.entityType]
	et.properties = removeID(et.properties, id)
	delete(m.properties, id)
	return nil
}

func hasField(t reflect.Type, name string) bool {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return false
	}
	_, ok := t.FieldByName(name)
	return ok
}

// findPropertyInHierarchy searches the entity type, its ancestors and its descendants
func (m *Model) findPropertyInHierarchy(id EntityTypeID, name string) (PropertyID, bool) {
	if p, ok := m.FindProperty(id, name); ok {
		return p, true
	}
	for _, derived := range m.DerivedTypes(id) {
		for _, p := range m.entityTypes[derived].properties {
			if strings.EqualFold(m.properties[p].name, name) {
				return p, true
			}
		}
	}
	return 0, false
}

// FindProperty looks a property up on the entity type or one of its ancestors.
// Names compare case-insensitively.
func (m *Model) FindProperty(id EntityTypeID, name string) (PropertyID, bool) {
	for current := id; current != NoEntityType; current = m.BaseType(current) {
		et, ok := m.entityTypes[current]
		if !ok {
			return 0, false
		}
		for _, p := range et.properties {
			if strings.EqualFold(m.properties[p].name, name) {
				return p, true
			}
		}
	}
	return 0, false
}

// Properties returns the properties declared on the entity type, in declaration order
func (m *Model) Properties(id EntityTypeID) []PropertyID {
	et, ok := m.entityTypes[id]
	if !ok {
		return nil
	}
	return append([]PropertyID(nil), et.properties...)
}

// AllProperties returns inherited properties followed by declared ones, root first
func (m *Model) AllProperties(id EntityTypeID) []PropertyID {
	if !m.HasEntityType(id) {
		return nil
	}
	var chain []EntityTypeID
	for current := id; current != NoEntityType; current = m.BaseType(current) {
		chain = append(chain, current)
	}
	var result []PropertyID
	for i := len(chain) - 1; i >= 0; i-- {
		result = append(result, m.entityTypes[chain[i]].properties...)
	}
	return result
}

// HasProperty reports whether the handle refers to a live property
func (m *Model) HasProperty(id PropertyID) bool {
	_, ok := m.properties[id]
	return ok
}

// PropertyName returns the name of a property
func (m *Model) PropertyName(id PropertyID) string {
	if p, ok := m.properties[id]; ok {
		return p.name
	}
	return ""
}

// PropertyType returns the Go type of a property
func (m *Model) PropertyType(id PropertyID) reflect.Type {
	if p, ok := m.properties[id]; ok {
		return p.goType
	}
	return nil
}

// DeclaringEntityType returns the entity type that declares the property
func (m *Model) DeclaringEntityType(id PropertyID) EntityTypeID {
	if p, ok := m.properties[id]; ok {
		return p.entityType
	}
	return NoEntityType
}

// IsShadow reports whether the property has no backing Go struct field
func (m *Model) IsShadow(id PropertyID) bool {
	p, ok := m.properties[id]
	return ok && p.shadow
}

// PropertyHasMarker reports whether the property was declared with the marker
func (m *Model) PropertyHasMarker(id PropertyID, marker Marker) bool {
	p, ok := m.properties[id]
	return ok && p.markers.has(marker)
}

// ValueGenerated returns the store generation strategy of a property
func (m *Model) ValueGenerated(id PropertyID) ValueGenerated {
	if p, ok := m.properties[id]; ok {
		return p.valueGenerated
	}
	return ValueGeneratedUnspecified
}

// ValueGeneratedSource returns who configured the generation strategy
func (m *Model) ValueGeneratedSource(id PropertyID) ConfigurationSource {
	if p, ok := m.properties[id]; ok {
		return p.valueGeneratedSource
	}
	return SourceConvention
}

// SetValueGenerated sets the store generation strategy of a property. It returns false
// when the property is stale or the strategy was configured from a higher source.
func (m *Model) SetValueGenerated(id PropertyID, value ValueGenerated, src ConfigurationSource) bool {
	p, ok := m.properties[id]
	if !ok {
		return false
	}
	if !src.Overrides(p.valueGeneratedSource) {
		return p.valueGenerated == value
	}
	old := p.valueGenerated
	p.valueGenerated = value
	p.valueGeneratedSource = src
	if old != value {
		m.publish(PropertyValueGeneratedChangedEvent{Property: id, Old: old, New: value})
	}
	return true
}

// IsConcurrencyToken reports whether the property is an optimistic concurrency token
func (m *Model) IsConcurrencyToken(id PropertyID) bool {
	p, ok := m.properties[id]
	return ok && p.concurrencyToken
}

// ConcurrencyTokenSource returns who configured the concurrency token flag
func (m *Model) ConcurrencyTokenSource(id PropertyID) ConfigurationSource {
	if p, ok := m.properties[id]; ok {
		return p.concurrencyTokenSource
	}
	return SourceConvention
}

// SetConcurrencyToken sets the concurrency token flag of a property
func (m *Model) SetConcurrencyToken(id PropertyID, token bool, src ConfigurationSource) bool {
	p, ok := m.properties[id]
	if !ok {
		return false
	}
	if !src.Overrides(p.concurrencyTokenSource) {
		return p.concurrencyToken == token
	}
	p.concurrencyToken = token
	p.concurrencyTokenSource = src
	return true
}

// ContainingKeys returns every key the property is part of
func (m *Model) ContainingKeys(id PropertyID) []KeyID {
	if p, ok := m.properties[id]; ok {
		return append([]KeyID(nil), p.keys...)
	}
	return nil
}

// ContainingPrimaryKey returns the primary key the property is part of, if any
func (m *Model) ContainingPrimaryKey(id PropertyID) (KeyID, bool) {
	p, ok := m.properties[id]
	if !ok {
		return 0, false
	}
	for _, k := range p.keys {
		if m.IsPrimaryKey(k) {
			return k, true
		}
	}
	return 0, false
}

// ContainingForeignKeys returns every foreign key the property is a dependent property of
func (m *Model) ContainingForeignKeys(id PropertyID) []ForeignKeyID {
	if p, ok := m.properties[id]; ok {
		return append([]ForeignKeyID(nil), p.foreignKeys...)
	}
	return nil
}

// IsForeignKey reports whether the property is part of any foreign key
func (m *Model) IsForeignKey(id PropertyID) bool {
	p, ok := m.properties[id]
	return ok && len(p.foreignKeys) > 0
}
