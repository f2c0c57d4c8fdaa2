package metadata

// EventKind identifies a kind of model change notification
type EventKind int

const (
	EntityTypeAdded EventKind = iota
	EntityTypeRemoved
	EntityTypeBaseTypeChanged
	PropertyAdded
	PrimaryKeyChanged
	ForeignKeyAdded
	ForeignKeyRemoved
	ForeignKeyPropertiesChanged
	ForeignKeyOwnershipChanged
	PropertyValueGeneratedChanged
	DiscriminatorChanged
)

// String returns the string representation of the event kind
func (k EventKind) String() string {
	switch k {
	case EntityTypeAdded:
		return "entity_type_added"
	case EntityTypeRemoved:
		return "entity_type_removed"
	case EntityTypeBaseTypeChanged:
		return "entity_type_base_type_changed"
	case PropertyAdded:
		return "property_added"
	case PrimaryKeyChanged:
		return "primary_key_changed"
	case ForeignKeyAdded:
		return "foreign_key_added"
	case ForeignKeyRemoved:
		return "foreign_key_removed"
	case ForeignKeyPropertiesChanged:
		return "foreign_key_properties_changed"
	case ForeignKeyOwnershipChanged:
		return "foreign_key_ownership_changed"
	case PropertyValueGeneratedChanged:
		return "property_value_generated_changed"
	case DiscriminatorChanged:
		return "discriminator_changed"
	default:
		return "unknown"
	}
}

// Event is a change notification published by the model after a mutation completed
type Event interface {
	Kind() EventKind
}

// Notifier receives every event the model publishes. Delivery is synchronous:
// Notify returns only after all reactions, including nested ones, have run.
type Notifier interface {
	Notify(m *Model, e Event)
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(m *Model, e Event)

// Notify calls f(m, e)
func (f NotifierFunc) Notify(m *Model, e Event) {
	f(m, e)
}

// EntityTypeAddedEvent is published after an entity type joined the model
type EntityTypeAddedEvent struct {
	EntityType EntityTypeID
}

// EntityTypeRemovedEvent is published after an entity type left the model.
// The handle is already stale; Name and OldBase describe what it was.
type EntityTypeRemovedEvent struct {
	EntityType EntityTypeID
	Name       string
	OldBase    EntityTypeID
}

// EntityTypeBaseTypeChangedEvent is published after the base type of an entity type changed
type EntityTypeBaseTypeChangedEvent struct {
	EntityType EntityTypeID
	NewBase    EntityTypeID
	OldBase    EntityTypeID
}

// PropertyAddedEvent is published after a property was declared on an entity type
type PropertyAddedEvent struct {
	Property PropertyID
}

// PrimaryKeyChangedEvent is published after the primary key of an entity type changed.
// OldKeyProperties is captured before the old key was dropped.
type PrimaryKeyChangedEvent struct {
	EntityType       EntityTypeID
	NewKey           KeyID
	OldKey           KeyID
	OldKeyProperties []PropertyID
}

// ForeignKeyAddedEvent is published after a foreign key was added
type ForeignKeyAddedEvent struct {
	ForeignKey ForeignKeyID
}

// ForeignKeyRemovedEvent is published after a foreign key was removed.
// The foreign key handle is stale; the remaining fields describe what it was.
type ForeignKeyRemovedEvent struct {
	EntityType   EntityTypeID
	ForeignKey   ForeignKeyID
	Properties   []PropertyID
	PrincipalKey KeyID
	BaseLinking  bool
	Ownership    bool
}

// ForeignKeyPropertiesChangedEvent is published after a foreign key was re-pointed
type ForeignKeyPropertiesChangedEvent struct {
	ForeignKey      ForeignKeyID
	OldProperties   []PropertyID
	OldPrincipalKey KeyID
}

// ForeignKeyOwnershipChangedEvent is published after the ownership flag of a foreign key flipped
type ForeignKeyOwnershipChangedEvent struct {
	ForeignKey ForeignKeyID
}

// PropertyValueGeneratedChangedEvent is published after a property's generation strategy changed
type PropertyValueGeneratedChangedEvent struct {
	Property PropertyID
	Old      ValueGenerated
	New      ValueGenerated
}

// DiscriminatorChangedEvent is published after a discriminator configuration or value changed.
// Target is the entity type whose configuration or value was touched.
type DiscriminatorChangedEvent struct {
	Target EntityTypeID
}

func (EntityTypeAddedEvent) Kind() EventKind               { return EntityTypeAdded }
func (EntityTypeRemovedEvent) Kind() EventKind             { return EntityTypeRemoved }
func (EntityTypeBaseTypeChangedEvent) Kind() EventKind     { return EntityTypeBaseTypeChanged }
func (PropertyAddedEvent) Kind() EventKind                 { return PropertyAdded }
func (PrimaryKeyChangedEvent) Kind() EventKind             { return PrimaryKeyChanged }
func (ForeignKeyAddedEvent) Kind() EventKind               { return ForeignKeyAdded }
func (ForeignKeyRemovedEvent) Kind() EventKind             { return ForeignKeyRemoved }
func (ForeignKeyPropertiesChangedEvent) Kind() EventKind   { return ForeignKeyPropertiesChanged }
func (ForeignKeyOwnershipChangedEvent) Kind() EventKind    { return ForeignKeyOwnershipChanged }
func (PropertyValueGeneratedChangedEvent) Kind() EventKind { return PropertyValueGeneratedChanged }
func (DiscriminatorChangedEvent) Kind() EventKind          { return DiscriminatorChanged }
