package conventions

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/modelkit/internal/orm/dispatch"
	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

// Set is an ordered list of conventions. For every event kind, conventions are
// delivered the event in the order they appear in the set.
type Set struct {
	conventions []Convention
}

// NewSet creates a set holding the given conventions in order
func NewSet(conventions ...Convention) *Set {
	return &Set{conventions: append([]Convention(nil), conventions...)}
}

// DefaultSet returns the built-in conventions in their documented order:
// keyless, key attribute, concurrency check, value generation, discriminator.
// Conventions whose names appear in disabled are left out.
func DefaultSet(logger *zap.Logger, disabled ...string) *Set {
	if logger == nil {
		logger = zap.NewNop()
	}
	set := NewSet(
		NewKeylessConvention(logger),
		NewKeyAttributeConvention(logger),
		NewConcurrencyCheckConvention(logger),
		NewValueGenerationConvention(logger),
		NewDiscriminatorConvention(logger),
	)
	for _, name := range disabled {
		set.Remove(name)
	}
	return set
}

// Add appends a convention
func (s *Set) Add(c Convention) {
	s.conventions = append(s.conventions, c)
}

// Remove drops the convention with the given name and reports whether it was present
func (s *Set) Remove(name string) bool {
	for i, c := range s.conventions {
		if c.Name() == name {
			s.conventions = append(s.conventions[:i:i], s.conventions[i+1:]...)
			return true
		}
	}
	return false
}

// Names returns convention names in order
func (s *Set) Names() []string {
	names := make([]string, len(s.conventions))
	for i, c := range s.conventions {
		names[i] = c.Name()
	}
	return names
}

// Register subscribes every convention to the event kinds it implements
func (s *Set) Register(d *dispatch.Dispatcher) {
	for _, c := range s.conventions {
		register(d, c)
	}
}

// NewModel creates a model whose events are dispatched to this set
func (s *Set) NewModel(opts ...dispatch.Option) (*metadata.Model, *dispatch.Dispatcher) {
	d := dispatch.New(opts...)
	s.Register(d)
	return metadata.NewModel(metadata.WithNotifier(d)), d
}

func register(d *dispatch.Dispatcher, c Convention) {
	name := c.Name()
	if cc, ok := c.(EntityTypeAddedConvention); ok {
		d.Subscribe(metadata.EntityTypeAdded, name, func(m *metadata.Model, e metadata.Event) {
			cc.ProcessEntityTypeAdded(m, e.(metadata.EntityTypeAddedEvent))
		})
	}
	if cc, ok := c.(EntityTypeRemovedConvention); ok {
		d.Subscribe(metadata.EntityTypeRemoved, name, func(m *metadata.Model, e metadata.Event) {
			cc.ProcessEntityTypeRemoved(m, e.(metadata.EntityTypeRemovedEvent))
		})
	}
	if cc, ok := c.(EntityTypeBaseTypeChangedConvention); ok {
		d.Subscribe(metadata.EntityTypeBaseTypeChanged, name, func(m *metadata.Model, e metadata.Event) {
			cc.ProcessEntityTypeBaseTypeChanged(m, e.(metadata.EntityTypeBaseTypeChangedEvent))
		})
	}
	if cc, ok := c.(PropertyAddedConvention); ok {
		d.Subscribe(metadata.PropertyAdded, name, func(m *metadata.Model, e metadata.Event) {
			cc.ProcessPropertyAdded(m, e.(metadata.PropertyAddedEvent))
		})
	}
	if cc, ok := c.(PrimaryKeyChangedConvention); ok {
		d.Subscribe(metadata.PrimaryKeyChanged, name, func(m *metadata.Model, e metadata.Event) {
			cc.ProcessPrimaryKeyChanged(m, e.(metadata.PrimaryKeyChangedEvent))
		})
	}
	if cc, ok := c.(ForeignKeyAddedConvention); ok {
		d.Subscribe(metadata.ForeignKeyAdded, name, func(m *metadata.Model, e metadata.Event) {
			cc.ProcessForeignKeyAdded(m, e.(metadata.ForeignKeyAddedEvent))
		})
	}
	if cc, ok := c.(ForeignKeyRemovedConvention); ok {
		d.Subscribe(metadata.ForeignKeyRemoved, name, func(m *metadata.Model, e metadata.Event) {
			cc.ProcessForeignKeyRemoved(m, e.(metadata.ForeignKeyRemovedEvent))
		})
	}
	if cc, ok := c.(ForeignKeyPropertiesChangedConvention); ok {
		d.Subscribe(metadata.ForeignKeyPropertiesChanged, name, func(m *metadata.Model, e metadata.Event) {
			cc.ProcessForeignKeyPropertiesChanged(m, e.(metadata.ForeignKeyPropertiesChangedEvent))
		})
	}
	if cc, ok := c.(ForeignKeyOwnershipChangedConvention); ok {
		d.Subscribe(metadata.ForeignKeyOwnershipChanged, name, func(m *metadata.Model, e metadata.Event) {
			cc.ProcessForeignKeyOwnershipChanged(m, e.(metadata.ForeignKeyOwnershipChangedEvent))
		})
	}
}

// Lookup returns the convention with the given name
func (s *Set) Lookup(name string) (Convention, error) {
	for _, c := range s.conventions {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("convention %s is not registered", name)
}
