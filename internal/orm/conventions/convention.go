// Package conventions keeps derived model facts consistent while a model is built.
// Each convention reacts to one or more model change events and mutates the model
// synchronously; its mutations may trigger further events, including re-entrant
// deliveries to itself, so every reaction re-checks that the handles it acts on are
// still live and silently abandons a branch when a setter is rejected.
package conventions

import (
	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

// Convention is a named policy reacting to model changes. A convention subscribes to
// an event kind by implementing the matching Process interface below.
type Convention interface {
	Name() string
}

// EntityTypeAddedConvention reacts to new entity types
type EntityTypeAddedConvention interface {
	ProcessEntityTypeAdded(m *metadata.Model, e metadata.EntityTypeAddedEvent)
}

// EntityTypeRemovedConvention reacts to removed entity types
type EntityTypeRemovedConvention interface {
	ProcessEntityTypeRemoved(m *metadata.Model, e metadata.EntityTypeRemovedEvent)
}

// EntityTypeBaseTypeChangedConvention reacts to base type changes
type EntityTypeBaseTypeChangedConvention interface {
	ProcessEntityTypeBaseTypeChanged(m *metadata.Model, e metadata.EntityTypeBaseTypeChangedEvent)
}

// PropertyAddedConvention reacts to new properties
type PropertyAddedConvention interface {
	ProcessPropertyAdded(m *metadata.Model, e metadata.PropertyAddedEvent)
}

// PrimaryKeyChangedConvention reacts to primary key changes
type PrimaryKeyChangedConvention interface {
	ProcessPrimaryKeyChanged(m *metadata.Model, e metadata.PrimaryKeyChangedEvent)
}

// ForeignKeyAddedConvention reacts to new foreign keys
type ForeignKeyAddedConvention interface {
	ProcessForeignKeyAdded(m *metadata.Model, e metadata.ForeignKeyAddedEvent)
}

// ForeignKeyRemovedConvention reacts to removed foreign keys
type ForeignKeyRemovedConvention interface {
	ProcessForeignKeyRemoved(m *metadata.Model, e metadata.ForeignKeyRemovedEvent)
}

// ForeignKeyPropertiesChangedConvention reacts to re-pointed foreign keys
type ForeignKeyPropertiesChangedConvention interface {
	ProcessForeignKeyPropertiesChanged(m *metadata.Model, e metadata.ForeignKeyPropertiesChangedEvent)
}

// ForeignKeyOwnershipChangedConvention reacts to ownership flips
type ForeignKeyOwnershipChangedConvention interface {
	ProcessForeignKeyOwnershipChanged(m *metadata.Model, e metadata.ForeignKeyOwnershipChangedEvent)
}
