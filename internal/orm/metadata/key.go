package metadata

import (
	"fmt"
	"slices"

	"go.uber.org/zap"
)

type key struct {
	id          KeyID
	entityType  EntityTypeID
	properties  []PropertyID
	referencing []ForeignKeyID
}

// validateKeyProperties checks that props is a non-empty, duplicate-free list of
// properties visible on the entity type.
func (m *Model) validateKeyProperties(id EntityTypeID, props []PropertyID, declaredOnly bool) error {
	if len(props) == 0 {
		return fmt.Errorf("no properties: %w", ErrInvalidKey)
	}
	seen := make(map[PropertyID]struct{}, len(props))
	for _, p := range props {
		prop, ok := m.properties[p]
		if !ok {
			return fmt.Errorf("property %d: %w", p, ErrNotFound)
		}
		if _, dup := seen[p]; dup {
			return fmt.Errorf("property %s listed twice: %w", prop.name, ErrInvalidKey)
		}
		seen[p] = struct{}{}
		if declaredOnly && prop.entityType != id {
			return fmt.Errorf("property %s is not declared on %s: %w",
				prop.name, m.EntityTypeName(id), ErrInvalidKey)
		}
		if !declaredOnly && !m.IsAssignableFrom(prop.entityType, id) {
			return fmt.Errorf("property %s is not visible on %s: %w",
				prop.name, m.EntityTypeName(id), ErrInvalidKey)
		}
	}
	return nil
}

func (m *Model) findKey(id EntityTypeID, props []PropertyID) (KeyID, bool) {
	for _, k := range m.entityTypes[id].keys {
		if slices.Equal(m.keys[k].properties, props) {
			return k, true
		}
	}
	return 0, false
}

func (m *Model) createKey(id EntityTypeID, props []PropertyID) KeyID {
	k := &key{
		id:         KeyID(m.allocate()),
		entityType: id,
		properties: append([]PropertyID(nil), props...),
	}
	m.keys[k.id] = k
	m.entityTypes[id].keys = append(m.entityTypes[id].keys, k.id)
	for _, p := range props {
		m.properties[p].keys = append(m.properties[p].keys, k.id)
	}
	return k.id
}

func (m *Model) dropKey(id KeyID) {
	k, ok := m.keys[id]
	if !ok {
		return
	}
	for _, p := range k.properties {
		if prop, ok := m.properties[p]; ok {
			prop.keys = removeID(prop.keys, id)
		}
	}
	if et, ok := m.entityTypes[k.entityType]; ok {
		et.keys = removeID(et.keys, id)
	}
	delete(m.keys, id)
}

// AddKey adds an alternate key to a root entity type, or returns the existing key
// over the same properties.
func (m *Model) AddKey(id EntityTypeID, props []PropertyID) (KeyID, error) {
	et, ok := m.entityTypes[id]
	if !ok {
		return 0, fmt.Errorf("entity type %d: %w", id, ErrNotFound)
	}
	if et.base != NoEntityType {
		return 0, fmt.Errorf("derived type %s cannot declare keys: %w", et.name, ErrInvalidHierarchy)
	}
	if err := m.validateKeyProperties(id, props, true); err != nil {
		return 0, fmt.Errorf("key on %s: %w", et.name, err)
	}
	if k, ok := m.findKey(id, props); ok {
		return k, nil
	}
	return m.createKey(id, props), nil
}

// SetPrimaryKey makes props the primary key of a root entity type. An empty props
// removes the primary key. It returns the new key and whether the change was accepted;
// it is rejected for derived types, stale handles, invalid properties, and when the
// current key or keyless flag was configured from a higher source than src.
func (m *Model) SetPrimaryKey(id EntityTypeID, props []PropertyID, src ConfigurationSource) (KeyID, bool) {
	et, ok := m.entityTypes[id]
	if !ok || et.base != NoEntityType {
		return 0, false
	}

	if len(props) == 0 {
		if et.primaryKey == 0 {
			return 0, true
		}
		if !src.Overrides(et.primaryKeySource) || len(m.keys[et.primaryKey].referencing) > 0 {
			return 0, false
		}
		m.setPrimaryKey(et, 0, src)
		return 0, true
	}

	if err := m.validateKeyProperties(id, props, true); err != nil {
		m.logger.Debug("primary key rejected", zap.Error(err))
		return 0, false
	}
	if et.primaryKey != 0 {
		if slices.Equal(m.keys[et.primaryKey].properties, props) {
			if src > et.primaryKeySource {
				et.primaryKeySource = src
			}
			return et.primaryKey, true
		}
		if !src.Overrides(et.primaryKeySource) {
			return 0, false
		}
	}
	if et.keyless {
		if !src.Overrides(et.keylessSource) {
			return 0, false
		}
		et.keyless = false
		et.keylessSource = src
	}

	k, ok := m.findKey(id, props)
	if !ok {
		k = m.createKey(id, props)
	}
	m.setPrimaryKey(et, k, src)
	if !m.HasKey(k) {
		return 0, false
	}
	return k, true
}

// setPrimaryKey swaps the primary key slot, drops the old key when nothing references
// it and publishes the change.
func (m *Model) setPrimaryKey(et *entityType, newKey KeyID, src ConfigurationSource) {
	oldKey := et.primaryKey
	var oldProps []PropertyID
	if oldKey != 0 {
		oldProps = append([]PropertyID(nil), m.keys[oldKey].properties...)
	}

	et.primaryKey = newKey
	et.primaryKeySource = src
	if oldKey != 0 && len(m.keys[oldKey].referencing) == 0 {
		m.dropKey(oldKey)
	}

	m.publish(PrimaryKeyChangedEvent{
		EntityType:       et.id,
		NewKey:           newKey,
		OldKey:           oldKey,
		OldKeyProperties: oldProps,
	})
}

// PrimaryKey returns the primary key in effect for the entity type; derived types
// use the key of their root.
func (m *Model) PrimaryKey(id EntityTypeID) (KeyID, bool) {
	root, ok := m.entityTypes[m.RootType(id)]
	if !ok || root.primaryKey == 0 {
		return 0, false
	}
	return root.primaryKey, true
}

// PrimaryKeySource returns who configured the primary key of the entity type's root
func (m *Model) PrimaryKeySource(id EntityTypeID) ConfigurationSource {
	if root, ok := m.entityTypes[m.RootType(id)]; ok {
		return root.primaryKeySource
	}
	return SourceConvention
}

// HasKey reports whether the handle refers to a live key
func (m *Model) HasKey(id KeyID) bool {
	_, ok := m.keys[id]
	return ok
}

// IsPrimaryKey reports whether the key is the primary key of its entity type
func (m *Model) IsPrimaryKey(id KeyID) bool {
	k, ok := m.keys[id]
	if !ok {
		return false
	}
	return m.entityTypes[k.entityType].primaryKey == id
}

// KeyProperties returns the ordered properties of a key
func (m *Model) KeyProperties(id KeyID) []PropertyID {
	if k, ok := m.keys[id]; ok {
		return append([]PropertyID(nil), k.properties...)
	}
	return nil
}

// KeyEntityType returns the entity type declaring the key
func (m *Model) KeyEntityType(id KeyID) EntityTypeID {
	if k, ok := m.keys[id]; ok {
		return k.entityType
	}
	return NoEntityType
}

// Keys returns the keys declared on the entity type
func (m *Model) Keys(id EntityTypeID) []KeyID {
	if et, ok := m.entityTypes[id]; ok {
		return append([]KeyID(nil), et.keys...)
	}
	return nil
}
