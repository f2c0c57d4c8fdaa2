// Package metadata provides the mutable entity-relationship model used while an ORM model
// is being built. Entity types, properties, keys and foreign keys live in an arena owned by
// Model and are addressed by stable handles; every mutation publishes an Event to the
// configured Notifier so conventions can keep derived facts consistent.
//
// A Model is not safe for concurrent use. Building is single-writer and synchronous:
// a mutation, and every reaction it triggers, completes before the call returns.
package metadata

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// EntityTypeID is a stable handle to an entity type. Zero means "none".
type EntityTypeID uint32

// PropertyID is a stable handle to a property. Zero means "none".
type PropertyID uint32

// KeyID is a stable handle to a key. Zero means "none".
type KeyID uint32

// ForeignKeyID is a stable handle to a foreign key. Zero means "none".
type ForeignKeyID uint32

// NoEntityType is the zero handle, used for "no base type"
const NoEntityType EntityTypeID = 0

type entityType struct {
	id          EntityTypeID
	name        string
	goType      reflect.Type
	base        EntityTypeID
	derived     []EntityTypeID
	properties  []PropertyID
	keys        []KeyID
	foreignKeys []ForeignKeyID

	primaryKey       KeyID
	primaryKeySource ConfigurationSource

	keyless       bool
	keylessSource ConfigurationSource

	discriminator      *discriminatorConfig
	discriminatorValue *discriminatorValue

	markers markerSet
}

// Model is the arena holding every element of the entity-relationship graph
type Model struct {
	entityTypes map[EntityTypeID]*entityType
	byName      map[string]EntityTypeID
	properties  map[PropertyID]*property
	keys        map[KeyID]*key
	foreignKeys map[ForeignKeyID]*foreignKey

	nextID   uint32
	notifier Notifier
	logger   *zap.Logger
}

// Option configures a Model
type Option func(*Model)

// WithNotifier sets the receiver of change events
func WithNotifier(n Notifier) Option {
	return func(m *Model) {
		m.notifier = n
	}
}

// WithLogger sets the logger used for rejected mutations
func WithLogger(logger *zap.Logger) Option {
	return func(m *Model) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewModel creates an empty model
func NewModel(opts ...Option) *Model {
	m := &Model{
		entityTypes: make(map[EntityTypeID]*entityType),
		byName:      make(map[string]EntityTypeID),
		properties:  make(map[PropertyID]*property),
		keys:        make(map[KeyID]*key),
		foreignKeys: make(map[ForeignKeyID]*foreignKey),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetNotifier replaces the receiver of change events
func (m *Model) SetNotifier(n Notifier) {
	m.notifier = n
}

func (m *Model) allocate() uint32 {
	m.nextID++
	return m.nextID
}

func (m *Model) publish(e Event) {
	if m.notifier == nil {
		return
	}
	m.notifier.Notify(m, e)
}

// AddEntityType adds a root entity type. goType may be nil for shadow entity types.
func (m *Model) AddEntityType(name string, goType reflect.Type, markers ...Marker) (EntityTypeID, error) {
	if name == "" {
		return 0, fmt.Errorf("entity type name must not be empty: %w", ErrInvalidHierarchy)
	}
	if _, exists := m.byName[name]; exists {
		return 0, fmt.Errorf("entity type %s: %w", name, ErrDuplicate)
	}

	et := &entityType{
		id:      EntityTypeID(m.allocate()),
		name:    name,
		goType:  goType,
		markers: newMarkerSet(markers),
	}
	m.entityTypes[et.id] = et
	m.byName[name] = et.id

	m.publish(EntityTypeAddedEvent{EntityType: et.id})
	return et.id, nil
}

// RemoveEntityType removes an entity type together with its properties, keys and the
// foreign keys it declares. It fails while other types derive from it or reference its keys.
func (m *Model) RemoveEntityType(id EntityTypeID) error {
	et, ok := m.entityTypes[id]
	if !ok {
		return fmt.Errorf("entity type %d: %w", id, ErrNotFound)
	}
	if len(et.derived) > 0 {
		return fmt.Errorf("entity type %s has derived types: %w", et.name, ErrInUse)
	}
	for _, k := range et.keys {
		for _, fk := range m.keys[k].referencing {
			if m.foreignKeys[fk].entityType != id {
				return fmt.Errorf("key of %s is referenced by %s: %w",
					et.name, m.entityTypes[m.foreignKeys[fk].entityType].name, ErrInUse)
			}
		}
	}

	// Declared foreign keys go first so their removal is observable while the type is live
	for len(et.foreignKeys) > 0 {
		if err := m.RemoveForeignKey(et.foreignKeys[len(et.foreignKeys)-1]); err != nil {
			return err
		}
		// A reaction may have removed the type itself
		if _, ok := m.entityTypes[id]; !ok {
			return nil
		}
	}

	for _, k := range et.keys {
		m.dropKey(k)
	}
	for _, p := range et.properties {
		delete(m.properties, p)
	}

	oldBase := et.base
	if oldBase != NoEntityType {
		if base, ok := m.entityTypes[oldBase]; ok {
			base.derived = removeID(base.derived, id)
		}
	}
	delete(m.entityTypes, id)
	delete(m.byName, et.name)

	m.publish(EntityTypeRemovedEvent{EntityType: id, Name: et.name, OldBase: oldBase})
	return nil
}

// HasEntityType reports whether the handle refers to a live entity type
func (m *Model) HasEntityType(id EntityTypeID) bool {
	_, ok := m.entityTypes[id]
	return ok
}

// FindEntityType looks an entity type up by name
func (m *Model) FindEntityType(name string) (EntityTypeID, bool) {
	id, ok := m.byName[name]
	return id, ok
}

// EntityTypes returns all live entity types in creation order
func (m *Model) EntityTypes() []EntityTypeID {
	ids := make([]EntityTypeID, 0, len(m.entityTypes))
	for id := range m.entityTypes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// EntityTypeName returns the full name of an entity type
func (m *Model) EntityTypeName(id EntityTypeID) string {
	if et, ok := m.entityTypes[id]; ok {
		return et.name
	}
	return ""
}

// ShortName returns the display name of an entity type: its name without any
// package or namespace qualifier and without generic arguments.
func (m *Model) ShortName(id EntityTypeID) string {
	et, ok := m.entityTypes[id]
	if !ok {
		return ""
	}
	name := et.name
	if et.goType != nil && et.goType.Name() != "" {
		name = et.goType.Name()
	}
	if i := strings.IndexByte(name, '['); i > 0 {
		name = name[:i]
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// EntityGoType returns the Go type backing an entity type, or nil for shadow types
func (m *Model) EntityGoType(id EntityTypeID) reflect.Type {
	if et, ok := m.entityTypes[id]; ok {
		return et.goType
	}
	return nil
}

// EntityTypeHasMarker reports whether the entity type was declared with the marker
func (m *Model) EntityTypeHasMarker(id EntityTypeID, marker Marker) bool {
	if et, ok := m.entityTypes[id]; ok {
		return et.markers.has(marker)
	}
	return false
}

// BaseType returns the base type, or NoEntityType for roots and stale handles
func (m *Model) BaseType(id EntityTypeID) EntityTypeID {
	if et, ok := m.entityTypes[id]; ok {
		return et.base
	}
	return NoEntityType
}

// RootType returns the root of the hierarchy the entity type belongs to
func (m *Model) RootType(id EntityTypeID) EntityTypeID {
	et, ok := m.entityTypes[id]
	if !ok {
		return NoEntityType
	}
	for et.base != NoEntityType {
		et = m.entityTypes[et.base]
	}
	return et.id
}

// DirectlyDerivedTypes returns the types whose base type is id
func (m *Model) DirectlyDerivedTypes(id EntityTypeID) []EntityTypeID {
	et, ok := m.entityTypes[id]
	if !ok {
		return nil
	}
	return append([]EntityTypeID(nil), et.derived...)
}

// DerivedTypes returns every type below id in the hierarchy, breadth first
func (m *Model) DerivedTypes(id EntityTypeID) []EntityTypeID {
	et, ok := m.entityTypes[id]
	if !ok {
		return nil
	}
	var result []EntityTypeID
	queue := append([]EntityTypeID(nil), et.derived...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		result = append(result, next)
		queue = append(queue, m.entityTypes[next].derived...)
	}
	return result
}

// IsAssignableFrom reports whether derived is id or lies below it in the hierarchy
func (m *Model) IsAssignableFrom(id, derived EntityTypeID) bool {
	for current := derived; current != NoEntityType; current = m.BaseType(current) {
		if current == id {
			return true
		}
	}
	return false
}

// SetBaseType moves an entity type under base, or makes it a root when base is NoEntityType.
// A declared primary key is dropped first, since only roots declare keys. The change is
// rejected when that key is referenced or configured from a higher source than src,
// when it would create a cycle, or when property names would collide.
func (m *Model) SetBaseType(id, base EntityTypeID, src ConfigurationSource) bool {
	et, ok := m.entityTypes[id]
	if !ok {
		return false
	}
	if base != NoEntityType {
		if _, ok := m.entityTypes[base]; !ok {
			return false
		}
	}
	if et.base == base {
		return true
	}

	if base != NoEntityType {
		if m.IsAssignableFrom(id, base) {
			m.logger.Debug("base type rejected: cycle",
				zap.String("entity_type", et.name), zap.String("base", m.entityTypes[base].name))
			return false
		}
		if m.hasPropertyConflict(id, base) {
			m.logger.Debug("base type rejected: property name conflict",
				zap.String("entity_type", et.name), zap.String("base", m.entityTypes[base].name))
			return false
		}
		if et.primaryKey != 0 {
			if !src.Overrides(et.primaryKeySource) || len(m.keys[et.primaryKey].referencing) > 0 {
				return false
			}
			m.setPrimaryKey(et, 0, src)
			// The key removal reactions may have invalidated the request
			if _, ok := m.entityTypes[id]; !ok {
				return false
			}
			if _, ok := m.entityTypes[base]; !ok {
				return false
			}
		}
	}

	oldBase := et.base
	if oldBase != NoEntityType {
		if old, ok := m.entityTypes[oldBase]; ok {
			old.derived = removeID(old.derived, id)
		}
	}
	et.base = base
	if base != NoEntityType {
		m.entityTypes[base].derived = append(m.entityTypes[base].derived, id)
	}

	m.publish(EntityTypeBaseTypeChangedEvent{EntityType: id, NewBase: base, OldBase: oldBase})
	return true
}

// hasPropertyConflict reports whether id or its derived types declare a property
// whose name is already used by base or its ancestors.
func (m *Model) hasPropertyConflict(id, base EntityTypeID) bool {
	names := make(map[string]struct{})
	for current := base; current != NoEntityType; current = m.entityTypes[current].base {
		for _, p := range m.entityTypes[current].properties {
			names[strings.ToLower(m.properties[p].name)] = struct{}{}
		}
	}
	for _, t := range append([]EntityTypeID{id}, m.DerivedTypes(id)...) {
		for _, p := range m.entityTypes[t].properties {
			if _, clash := names[strings.ToLower(m.properties[p].name)]; clash {
				return true
			}
		}
	}
	return false
}

// IsKeyless reports whether the entity type (or its root) has been marked as having no key
func (m *Model) IsKeyless(id EntityTypeID) bool {
	root, ok := m.entityTypes[m.RootType(id)]
	return ok && root.keyless
}

// SetKeyless marks a root entity type as keyless, dropping a declared primary key,
// or clears the flag. It returns false when the change is not allowed from src.
func (m *Model) SetKeyless(id EntityTypeID, keyless bool, src ConfigurationSource) bool {
	et, ok := m.entityTypes[id]
	if !ok || et.base != NoEntityType {
		return false
	}
	if et.keyless == keyless {
		if src > et.keylessSource {
			et.keylessSource = src
		}
		return true
	}
	if !src.Overrides(et.keylessSource) {
		return false
	}
	if keyless && et.primaryKey != 0 {
		if !src.Overrides(et.primaryKeySource) || len(m.keys[et.primaryKey].referencing) > 0 {
			return false
		}
		m.setPrimaryKey(et, 0, src)
		if _, ok := m.entityTypes[id]; !ok {
			return false
		}
	}
	et.keyless = keyless
	et.keylessSource = src
	return true
}

// IsOwned reports whether the entity type is the dependent side of an ownership
func (m *Model) IsOwned(id EntityTypeID) bool {
	_, ok := m.Ownership(id)
	return ok
}

// Ownership returns the ownership foreign key declared on the entity type, if any
func (m *Model) Ownership(id EntityTypeID) (ForeignKeyID, bool) {
	et, ok := m.entityTypes[id]
	if !ok {
		return 0, false
	}
	for _, fk := range et.foreignKeys {
		if m.foreignKeys[fk].ownership {
			return fk, true
		}
	}
	return 0, false
}

func removeID[T comparable](ids []T, id T) []T {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}
