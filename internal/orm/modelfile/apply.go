package modelfile

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

// Apply replays the file against m in dependency order: entity types, properties,
// base types, keys, foreign keys, ownership and finally explicit discriminator
// values. Conventions observe every step.
func (f *File) Apply(m *metadata.Model, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	ids := make(map[string]metadata.EntityTypeID, len(f.Entities))
	for _, e := range f.Entities {
		var markers []metadata.Marker
		if e.Keyless {
			markers = append(markers, metadata.MarkerKeyless)
		}
		id, err := m.AddEntityType(e.Name, nil, markers...)
		if err != nil {
			return err
		}
		ids[e.Name] = id
	}

	for _, e := range f.Entities {
		for _, p := range e.Properties {
			t, err := ParseType(p.Type)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", e.Name, p.Name, err)
			}
			var markers []metadata.Marker
			if p.Key {
				markers = append(markers, metadata.MarkerKey)
			}
			if p.Concurrency {
				markers = append(markers, metadata.MarkerConcurrencyCheck)
			}
			if _, err := m.AddProperty(ids[e.Name], p.Name, t, markers...); err != nil {
				return err
			}
		}
	}

	for _, e := range f.Entities {
		if e.Base == "" {
			continue
		}
		if !m.SetBaseType(ids[e.Name], ids[e.Base], metadata.SourceExplicit) {
			return fmt.Errorf("entity %s cannot derive from %s: %w", e.Name, e.Base, metadata.ErrInvalidHierarchy)
		}
	}

	for _, e := range f.Entities {
		if len(e.Key) == 0 {
			continue
		}
		props, err := resolve(m, ids[e.Name], e.Key)
		if err != nil {
			return fmt.Errorf("key of %s: %w", e.Name, err)
		}
		if _, ok := m.SetPrimaryKey(ids[e.Name], props, metadata.SourceExplicit); !ok {
			return fmt.Errorf("key of %s was rejected: %w", e.Name, metadata.ErrInvalidKey)
		}
	}

	type ownership struct {
		entity string
		fk     metadata.ForeignKeyID
	}
	var owned []ownership
	for _, e := range f.Entities {
		for _, fk := range e.ForeignKeys {
			id, err := addForeignKey(m, ids, e.Name, fk)
			if err != nil {
				return err
			}
			if fk.Ownership {
				owned = append(owned, ownership{entity: e.Name, fk: id})
			}
		}
	}

	for _, o := range owned {
		if !m.SetOwnership(o.fk, true) {
			return fmt.Errorf("entity %s is owned more than once: %w", o.entity, metadata.ErrInvalidHierarchy)
		}
	}

	for _, e := range f.Entities {
		if e.Discriminator == "" {
			continue
		}
		if !m.SetDiscriminatorValue(ids[e.Name], e.Discriminator, metadata.SourceExplicit) {
			return fmt.Errorf("entity %s: discriminator value %q was rejected: %w",
				e.Name, e.Discriminator, ErrInvalidFile)
		}
	}

	logger.Debug("model file applied", zap.Int("entities", len(f.Entities)))
	return nil
}

func addForeignKey(m *metadata.Model, ids map[string]metadata.EntityTypeID, dependent string, fk ForeignKey) (metadata.ForeignKeyID, error) {
	principal := ids[fk.Principal]
	props, err := resolve(m, ids[dependent], fk.Properties)
	if err != nil {
		return 0, fmt.Errorf("foreign key %s -> %s: %w", dependent, fk.Principal, err)
	}

	var key metadata.KeyID
	if len(fk.PrincipalKey) > 0 {
		keyProps, err := resolve(m, principal, fk.PrincipalKey)
		if err != nil {
			return 0, fmt.Errorf("principal key of %s: %w", fk.Principal, err)
		}
		key, err = m.AddKey(m.RootType(principal), keyProps)
		if err != nil {
			return 0, err
		}
	} else {
		pk, ok := m.PrimaryKey(principal)
		if !ok {
			return 0, fmt.Errorf("principal %s has no primary key: %w", fk.Principal, metadata.ErrInvalidKey)
		}
		key = pk
	}

	return m.AddForeignKey(ids[dependent], props, key)
}

func resolve(m *metadata.Model, et metadata.EntityTypeID, names []string) ([]metadata.PropertyID, error) {
	props := make([]metadata.PropertyID, len(names))
	for i, name := range names {
		p, ok := m.FindProperty(et, name)
		if !ok {
			return nil, fmt.Errorf("property %s: %w", name, metadata.ErrNotFound)
		}
		props[i] = p
	}
	return props, nil
}
