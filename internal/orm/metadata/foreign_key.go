package metadata

import (
	"fmt"
	"slices"
)

type foreignKey struct {
	id            ForeignKeyID
	entityType    EntityTypeID
	properties    []PropertyID
	principalKey  KeyID
	principalType EntityTypeID
	ownership     bool
}

func (m *Model) validateForeignKey(dependent EntityTypeID, props []PropertyID, principalKey KeyID) error {
	if _, ok := m.entityTypes[dependent]; !ok {
		return fmt.Errorf("entity type %d: %w", dependent, ErrNotFound)
	}
	pk, ok := m.keys[principalKey]
	if !ok {
		return fmt.Errorf("principal key %d: %w", principalKey, ErrNotFound)
	}
	if err := m.validateKeyProperties(dependent, props, false); err != nil {
		return err
	}
	if len(props) != len(pk.properties) {
		return fmt.Errorf("%d dependent properties for a %d column principal key: %w",
			len(props), len(pk.properties), ErrInvalidKey)
	}
	return nil
}

func (m *Model) attachForeignKey(fk *foreignKey) {
	for _, p := range fk.properties {
		m.properties[p].foreignKeys = append(m.properties[p].foreignKeys, fk.id)
	}
	m.keys[fk.principalKey].referencing = append(m.keys[fk.principalKey].referencing, fk.id)
}

func (m *Model) detachForeignKey(fk *foreignKey) {
	for _, p := range fk.properties {
		if prop, ok := m.properties[p]; ok {
			prop.foreignKeys = removeID(prop.foreignKeys, fk.id)
		}
	}
	if k, ok := m.keys[fk.principalKey]; ok {
		k.referencing = removeID(k.referencing, fk.id)
	}
}

// AddForeignKey adds a foreign key declared on dependent whose properties reference
// principalKey. The principal entity type is the type declaring the key.
func (m *Model) AddForeignKey(dependent EntityTypeID, props []PropertyID, principalKey KeyID) (ForeignKeyID, error) {
	if err := m.validateForeignKey(dependent, props, principalKey); err != nil {
		return 0, fmt.Errorf("foreign key on %s: %w", m.EntityTypeName(dependent), err)
	}

	fk := &foreignKey{
		id:            ForeignKeyID(m.allocate()),
		entityType:    dependent,
		properties:    append([]PropertyID(nil), props...),
		principalKey:  principalKey,
		principalType: m.keys[principalKey].entityType,
	}
	m.foreignKeys[fk.id] = fk
	m.entityTypes[dependent].foreignKeys = append(m.entityTypes[dependent].foreignKeys, fk.id)
	m.attachForeignKey(fk)

	m.publish(ForeignKeyAddedEvent{ForeignKey: fk.id})
	return fk.id, nil
}

// RemoveForeignKey removes a foreign key
func (m *Model) RemoveForeignKey(id ForeignKeyID) error {
	fk, ok := m.foreignKeys[id]
	if !ok {
		return fmt.Errorf("foreign key %d: %w", id, ErrNotFound)
	}

	baseLinking := m.IsBaseLinking(id)
	m.detachForeignKey(fk)
	if et, ok := m.entityTypes[fk.entityType]; ok {
		et.foreignKeys = removeID(et.foreignKeys, id)
	}
	delete(m.foreignKeys, id)

	m.publish(ForeignKeyRemovedEvent{
		EntityType:   fk.entityType,
		ForeignKey:   id,
		Properties:   append([]PropertyID(nil), fk.properties...),
		PrincipalKey: fk.principalKey,
		BaseLinking:  baseLinking,
		Ownership:    fk.ownership,
	})
	return nil
}

// SetForeignKeyProperties re-points a foreign key to new dependent properties and
// principal key. Identical properties and key are accepted without a notification.
func (m *Model) SetForeignKeyProperties(id ForeignKeyID, props []PropertyID, principalKey KeyID) bool {
	fk, ok := m.foreignKeys[id]
	if !ok {
		return false
	}
	if slices.Equal(fk.properties, props) && fk.principalKey == principalKey {
		return true
	}
	if err := m.validateForeignKey(fk.entityType, props, principalKey); err != nil {
		return false
	}

	oldProps := fk.properties
	oldPrincipal := fk.principalKey
	m.detachForeignKey(fk)
	fk.properties = append([]PropertyID(nil), props...)
	fk.principalKey = principalKey
	fk.principalType = m.keys[principalKey].entityType
	m.attachForeignKey(fk)

	m.publish(ForeignKeyPropertiesChangedEvent{
		ForeignKey:      id,
		OldProperties:   oldProps,
		OldPrincipalKey: oldPrincipal,
	})
	return true
}

// SetOwnership flags the foreign key as an ownership (composition) relationship.
// An entity type can be owned through at most one foreign key.
func (m *Model) SetOwnership(id ForeignKeyID, ownership bool) bool {
	fk, ok := m.foreignKeys[id]
	if !ok {
		return false
	}
	if fk.ownership == ownership {
		return true
	}
	if ownership {
		if existing, owned := m.Ownership(fk.entityType); owned && existing != id {
			return false
		}
	}
	fk.ownership = ownership

	m.publish(ForeignKeyOwnershipChangedEvent{ForeignKey: id})
	return true
}

// HasForeignKey reports whether the handle refers to a live foreign key
func (m *Model) HasForeignKey(id ForeignKeyID) bool {
	_, ok := m.foreignKeys[id]
	return ok
}

// ForeignKeys returns the foreign keys declared on the entity type
func (m *Model) ForeignKeys(id EntityTypeID) []ForeignKeyID {
	if et, ok := m.entityTypes[id]; ok {
		return append([]ForeignKeyID(nil), et.foreignKeys...)
	}
	return nil
}

// ForeignKeyProperties returns the dependent properties of a foreign key
func (m *Model) ForeignKeyProperties(id ForeignKeyID) []PropertyID {
	if fk, ok := m.foreignKeys[id]; ok {
		return append([]PropertyID(nil), fk.properties...)
	}
	return nil
}

// ForeignKeyEntityType returns the dependent entity type declaring the foreign key
func (m *Model) ForeignKeyEntityType(id ForeignKeyID) EntityTypeID {
	if fk, ok := m.foreignKeys[id]; ok {
		return fk.entityType
	}
	return NoEntityType
}

// PrincipalKey returns the key a foreign key references
func (m *Model) PrincipalKey(id ForeignKeyID) KeyID {
	if fk, ok := m.foreignKeys[id]; ok {
		return fk.principalKey
	}
	return 0
}

// PrincipalEntityType returns the entity type declaring the referenced key
func (m *Model) PrincipalEntityType(id ForeignKeyID) EntityTypeID {
	if fk, ok := m.foreignKeys[id]; ok {
		return fk.principalType
	}
	return NoEntityType
}

// IsOwnership reports whether the foreign key represents ownership
func (m *Model) IsOwnership(id ForeignKeyID) bool {
	fk, ok := m.foreignKeys[id]
	return ok && fk.ownership
}

// IsBaseLinking reports whether the foreign key only links a derived type's primary key
// back to its base type: it references the dependent's own primary key with exactly
// that key's properties.
func (m *Model) IsBaseLinking(id ForeignKeyID) bool {
	fk, ok := m.foreignKeys[id]
	if !ok {
		return false
	}
	pk, ok := m.PrimaryKey(fk.entityType)
	if !ok || pk != fk.principalKey {
		return false
	}
	return slices.Equal(fk.properties, m.keys[pk].properties)
}
