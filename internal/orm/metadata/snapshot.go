package metadata

import (
	"fmt"
	"sort"
)

// Snapshot is a serializable, read-only view of a model
type Snapshot struct {
	EntityTypes []EntityTypeSnapshot `json:"entity_types"`
}

// EntityTypeSnapshot describes one entity type
type EntityTypeSnapshot struct {
	Name          string                 `json:"name"`
	Base          string                 `json:"base,omitempty"`
	Owned         bool                   `json:"owned,omitempty"`
	Keyless       bool                   `json:"keyless,omitempty"`
	PrimaryKey    []string               `json:"primary_key,omitempty"`
	Properties    []PropertySnapshot     `json:"properties"`
	ForeignKeys   []ForeignKeySnapshot   `json:"foreign_keys,omitempty"`
	Discriminator *DiscriminatorSnapshot `json:"discriminator,omitempty"`
}

// PropertySnapshot describes one declared property
type PropertySnapshot struct {
	Name             string `json:"name"`
	Type             string `json:"type"`
	ValueGenerated   string `json:"value_generated"`
	ConcurrencyToken bool   `json:"concurrency_token,omitempty"`
	Shadow           bool   `json:"shadow,omitempty"`
}

// ForeignKeySnapshot describes one declared foreign key
type ForeignKeySnapshot struct {
	Properties  []string `json:"properties"`
	Principal   string   `json:"principal"`
	BaseLinking bool     `json:"base_linking,omitempty"`
	Ownership   bool     `json:"ownership,omitempty"`
}

// DiscriminatorSnapshot describes the discriminator declared on a hierarchy root
type DiscriminatorSnapshot struct {
	Property string            `json:"property"`
	Type     string            `json:"type"`
	Values   map[string]string `json:"values"`
}

// Snapshot captures the current state of the model
func (m *Model) Snapshot() *Snapshot {
	snap := &Snapshot{EntityTypes: make([]EntityTypeSnapshot, 0, len(m.entityTypes))}
	for _, id := range m.EntityTypes() {
		snap.EntityTypes = append(snap.EntityTypes, m.snapshotEntityType(id))
	}
	sort.Slice(snap.EntityTypes, func(i, j int) bool {
		return snap.EntityTypes[i].Name < snap.EntityTypes[j].Name
	})
	return snap
}

func (m *Model) snapshotEntityType(id EntityTypeID) EntityTypeSnapshot {
	et := m.entityTypes[id]
	s := EntityTypeSnapshot{
		Name:       et.name,
		Owned:      m.IsOwned(id),
		Keyless:    et.keyless,
		Properties: make([]PropertySnapshot, 0, len(et.properties)),
	}
	if et.base != NoEntityType {
		s.Base = m.EntityTypeName(et.base)
	}
	if et.primaryKey != 0 {
		s.PrimaryKey = m.propertyNames(m.keys[et.primaryKey].properties)
	}
	for _, p := range et.properties {
		prop := m.properties[p]
		s.Properties = append(s.Properties, PropertySnapshot{
			Name:             prop.name,
			Type:             prop.goType.String(),
			ValueGenerated:   prop.valueGenerated.String(),
			ConcurrencyToken: prop.concurrencyToken,
			Shadow:           prop.shadow,
		})
	}
	for _, fk := range et.foreignKeys {
		s.ForeignKeys = append(s.ForeignKeys, ForeignKeySnapshot{
			Properties:  m.propertyNames(m.foreignKeys[fk].properties),
			Principal:   m.EntityTypeName(m.foreignKeys[fk].principalType),
			BaseLinking: m.IsBaseLinking(fk),
			Ownership:   m.foreignKeys[fk].ownership,
		})
	}
	if d := et.discriminator; d != nil {
		values := make(map[string]string)
		for t, v := range m.DiscriminatorMapping(id) {
			values[m.EntityTypeName(t)] = fmt.Sprint(v)
		}
		s.Discriminator = &DiscriminatorSnapshot{
			Property: d.propertyName,
			Type:     d.goType.String(),
			Values:   values,
		}
	}
	return s
}

func (m *Model) propertyNames(ids []PropertyID) []string {
	names := make([]string, len(ids))
	for i, p := range ids {
		names[i] = m.properties[p].name
	}
	return names
}

// Find returns the snapshot of the named entity type
func (s *Snapshot) Find(name string) (*EntityTypeSnapshot, bool) {
	for i := range s.EntityTypes {
		if s.EntityTypes[i].Name == name {
			return &s.EntityTypes[i], true
		}
	}
	return nil, false
}
