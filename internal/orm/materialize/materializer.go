// Package materialize turns query results into tracked entries, resolving each row
// to the concrete entity type of its inheritance hierarchy.
package materialize

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/modelkit/internal/orm/metadata"
	"github.com/conduit-lang/modelkit/internal/orm/tracking"
)

var (
	// ErrMissingKeyColumn is returned when a result set lacks a primary key column
	ErrMissingKeyColumn = errors.New("result set lacks a primary key column")

	// ErrMissingDiscriminator is returned when a hierarchy is queried without its discriminator column
	ErrMissingDiscriminator = errors.New("result set lacks the discriminator column")

	// ErrUnknownDiscriminator is returned for discriminator values no entity type maps to
	ErrUnknownDiscriminator = errors.New("unknown discriminator value")
)

// Materializer reads rows of one hierarchy into a state manager
type Materializer struct {
	model  *metadata.Model
	root   metadata.EntityTypeID
	states *tracking.StateManager
	logger *zap.Logger
}

// New creates a materializer for rows of the hierarchy rooted at root
func New(model *metadata.Model, root metadata.EntityTypeID, states *tracking.StateManager, logger *zap.Logger) (*Materializer, error) {
	if !model.HasEntityType(root) {
		return nil, fmt.Errorf("entity type %d: %w", root, metadata.ErrNotFound)
	}
	if model.BaseType(root) != metadata.NoEntityType {
		return nil, fmt.Errorf("%s is not a hierarchy root: %w", model.EntityTypeName(root), metadata.ErrInvalidHierarchy)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Materializer{
		model:  model,
		root:   root,
		states: states,
		logger: logger,
	}, nil
}

// Query runs query on db and materializes the result
func (m *Materializer) Query(ctx context.Context, db *sql.DB, query string, args ...any) ([]*tracking.Entry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", m.model.EntityTypeName(m.root), err)
	}
	defer rows.Close()
	return m.Materialize(rows)
}

// column describes how one result column maps onto the hierarchy
type column struct {
	name          string
	property      metadata.PropertyID
	discriminator bool
}

// Materialize reads every row. A row whose key is already tracked yields the
// tracked entry, not a new one. Rows of keyless types are returned untracked.
func (m *Materializer) Materialize(rows *sql.Rows) ([]*tracking.Entry, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	columns, err := m.mapColumns(names)
	if err != nil {
		return nil, err
	}

	var entries []*tracking.Entry
	for rows.Next() {
		raw := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		entry, err := m.materializeRow(columns, raw)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	m.logger.Debug("rows materialized",
		zap.String("entity_type", m.model.EntityTypeName(m.root)),
		zap.Int("rows", len(entries)))
	return entries, nil
}

// mapColumns matches columns to properties anywhere in the hierarchy and checks that
// identity and type resolution columns are present
func (m *Materializer) mapColumns(names []string) ([]column, error) {
	disc, hasDisc := m.model.Discriminator(m.root)
	hierarchy := append([]metadata.EntityTypeID{m.root}, m.model.DerivedTypes(m.root)...)

	columns := make([]column, len(names))
	found := make(map[metadata.PropertyID]bool)
	sawDiscriminator := false
	for i, name := range names {
		columns[i].name = name
		// snake_case columns match PascalCase properties
		folded := strings.ReplaceAll(name, "_", "")
		if hasDisc && strings.EqualFold(folded, disc.PropertyName) {
			columns[i].discriminator = true
			sawDiscriminator = true
			continue
		}
		for _, et := range hierarchy {
			p, ok := m.model.FindProperty(et, name)
			if !ok {
				p, ok = m.model.FindProperty(et, folded)
			}
			if ok {
				columns[i].property = p
				found[p] = true
				break
			}
		}
		if columns[i].property == 0 {
			m.logger.Debug("column ignored", zap.String("column", name))
		}
	}

	if hasDisc && !sawDiscriminator {
		return nil, fmt.Errorf("%s: %w", disc.PropertyName, ErrMissingDiscriminator)
	}
	if pk, ok := m.model.PrimaryKey(m.root); ok {
		for _, p := range m.model.KeyProperties(pk) {
			if !found[p] {
				return nil, fmt.Errorf("%s: %w", m.model.PropertyName(p), ErrMissingKeyColumn)
			}
		}
	}
	return columns, nil
}

func (m *Materializer) materializeRow(columns []column, raw []any) (*tracking.Entry, error) {
	concrete := m.root
	for i, c := range columns {
		if !c.discriminator {
			continue
		}
		et, err := m.resolve(raw[i])
		if err != nil {
			return nil, err
		}
		concrete = et
	}

	values := make(map[string]any, len(columns))
	for i, c := range columns {
		if c.property == 0 || !m.model.IsAssignableFrom(m.model.DeclaringEntityType(c.property), concrete) {
			continue
		}
		values[m.model.PropertyName(c.property)] = convert(raw[i], m.model.PropertyType(c.property))
	}

	if _, ok := m.model.PrimaryKey(concrete); !ok {
		return tracking.NewEntry(concrete, nil, values, tracking.Unchanged), nil
	}
	entry, _, err := m.states.Attach(concrete, values)
	return entry, err
}

// resolve maps a discriminator value read from the store to an entity type
func (m *Materializer) resolve(value any) (metadata.EntityTypeID, error) {
	disc, _ := m.model.Discriminator(m.root)
	v := convert(value, disc.Type)
	et, ok := m.model.FindByDiscriminatorValue(m.root, v)
	if !ok {
		return metadata.NoEntityType, fmt.Errorf("%v for %s: %w", value, m.model.EntityTypeName(m.root), ErrUnknownDiscriminator)
	}
	return et, nil
}

// convert normalizes driver values: text that drivers hand out as bytes becomes a
// string when the property is a string, and integers widened to int64 go back to the
// property's integer type
func convert(value any, t reflect.Type) any {
	if value == nil || t == nil {
		return value
	}
	t = metadata.UnwrapNullable(t)
	if b, ok := value.([]byte); ok {
		if t.Kind() == reflect.String {
			return string(b)
		}
		return append([]byte(nil), b...)
	}
	v := reflect.ValueOf(value)
	if metadata.IsInteger(v.Type()) && metadata.IsInteger(t) && v.Type() != t {
		return v.Convert(t).Interface()
	}
	return value
}
