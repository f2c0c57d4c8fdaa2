// Package annotations discovers entity types from Go structs. Struct tags and
// embedded marker types become model markers, which the attribute conventions turn
// into keys, concurrency tokens and keyless entity types.
//
//	type Order struct {
//		ID      int64  `orm:"key"`
//		Version []byte `orm:"concurrency"`
//		Cache   string `orm:"-"`
//	}
//
//	type VipOrder struct {
//		Order
//		Level int
//	}
//
//	type SalesReport struct {
//		annotations.Keyless
//		Total int64
//	}
package annotations

import (
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

// TagName is the struct tag key read by the builder
const TagName = "orm"

// Keyless is embedded in a struct to declare an entity type without a primary key
type Keyless struct{}

var (
	// ErrNotStruct is returned when an entity is not a struct or pointer to struct
	ErrNotStruct = errors.New("entity must be a struct")

	// ErrInvalidTag is returned for unknown or malformed orm tag options
	ErrInvalidTag = errors.New("invalid orm tag")
)

var (
	keylessType = reflect.TypeOf(Keyless{})
	timeType    = reflect.TypeOf(time.Time{})
	bytesType   = reflect.TypeOf([]byte(nil))

	scalarStructs = map[reflect.Type]bool{
		timeType:                          true,
		reflect.TypeOf(uuid.UUID{}):       true,
		reflect.TypeOf(uuid.NullUUID{}):   true,
		reflect.TypeOf(sql.NullString{}):  true,
		reflect.TypeOf(sql.NullInt64{}):   true,
		reflect.TypeOf(sql.NullInt32{}):   true,
		reflect.TypeOf(sql.NullInt16{}):   true,
		reflect.TypeOf(sql.NullByte{}):    true,
		reflect.TypeOf(sql.NullFloat64{}): true,
		reflect.TypeOf(sql.NullBool{}):    true,
		reflect.TypeOf(sql.NullTime{}):    true,
	}
)

// Builder adds entity types discovered from Go structs to a model
type Builder struct {
	model  *metadata.Model
	logger *zap.Logger
	types  map[reflect.Type]metadata.EntityTypeID
}

// NewBuilder creates a builder for the model
func NewBuilder(model *metadata.Model, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		model:  model,
		logger: logger,
		types:  make(map[reflect.Type]metadata.EntityTypeID),
	}
}

type entityOptions struct {
	name string
}

// EntityOption customizes how a struct is added
type EntityOption func(*entityOptions)

// Named overrides the entity type name, which defaults to the package-qualified type name
func Named(name string) EntityOption {
	return func(o *entityOptions) {
		o.name = name
	}
}

// Entity adds the struct type of v as an entity type. Embedding a struct that was
// added before makes it the base type; its fields are inherited, not redeclared.
func (b *Builder) Entity(v any, opts ...EntityOption) (metadata.EntityTypeID, error) {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return 0, fmt.Errorf("%T: %w", v, ErrNotStruct)
	}
	if id, ok := b.types[t]; ok && b.model.HasEntityType(id) {
		return id, nil
	}

	o := entityOptions{name: t.String()}
	for _, opt := range opts {
		opt(&o)
	}

	fields, base, markers, err := b.inspect(t)
	if err != nil {
		return 0, fmt.Errorf("entity %s: %w", o.name, err)
	}

	id, err := b.model.AddEntityType(o.name, t, markers...)
	if err != nil {
		return 0, err
	}
	b.types[t] = id

	if base != metadata.NoEntityType && !b.model.SetBaseType(id, base, metadata.SourceDataAnnotation) {
		b.discard(t, id)
		return 0, fmt.Errorf("entity %s cannot derive from %s: %w",
			o.name, b.model.EntityTypeName(base), metadata.ErrInvalidHierarchy)
	}

	for _, f := range fields {
		if _, err := b.model.AddProperty(id, f.name, f.goType, f.markers...); err != nil {
			b.discard(t, id)
			return 0, fmt.Errorf("entity %s: %w", o.name, err)
		}
	}

	b.logger.Debug("entity discovered",
		zap.String("entity_type", o.name),
		zap.Int("properties", len(fields)))
	return id, nil
}

// MustEntity is like Entity but panics on error
func (b *Builder) MustEntity(v any, opts ...EntityOption) metadata.EntityTypeID {
	id, err := b.Entity(v, opts...)
	if err != nil {
		panic(err)
	}
	return id
}

type field struct {
	name    string
	goType  reflect.Type
	markers []metadata.Marker
}

// inspect collects the properties, base type and entity markers of a struct
func (b *Builder) inspect(t reflect.Type) ([]field, metadata.EntityTypeID, []metadata.Marker, error) {
	var (
		fields  []field
		markers []metadata.Marker
		base    = metadata.NoEntityType
	)

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get(TagName)
		if tag == "-" {
			continue
		}

		if sf.Anonymous {
			ft := sf.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			switch {
			case ft == keylessType:
				markers = append(markers, metadata.MarkerKeyless)
				continue
			case b.isEntity(ft):
				if base != metadata.NoEntityType {
					return nil, 0, nil, fmt.Errorf("embeds more than one entity: %w", metadata.ErrInvalidHierarchy)
				}
				base = b.types[ft]
				continue
			case ft.Kind() == reflect.Struct && !scalarStructs[ft]:
				// Plain embedded structs contribute their fields
				nested, _, nestedMarkers, err := b.inspect(ft)
				if err != nil {
					return nil, 0, nil, err
				}
				fields = append(fields, nested...)
				markers = append(markers, nestedMarkers...)
				continue
			}
		}

		if !sf.IsExported() || !isScalar(sf.Type) {
			continue
		}

		f := field{name: sf.Name, goType: sf.Type}
		if err := parseTag(tag, &f); err != nil {
			return nil, 0, nil, fmt.Errorf("field %s: %w", sf.Name, err)
		}
		fields = append(fields, f)
	}
	return fields, base, markers, nil
}

// discard removes an entity type whose construction failed part way
func (b *Builder) discard(t reflect.Type, id metadata.EntityTypeID) {
	delete(b.types, t)
	if err := b.model.RemoveEntityType(id); err != nil {
		b.logger.Warn("failed to discard partial entity type",
			zap.String("entity_type", t.String()), zap.Error(err))
	}
}

func (b *Builder) isEntity(t reflect.Type) bool {
	id, ok := b.types[t]
	return ok && b.model.HasEntityType(id)
}

// parseTag reads a comma separated option list such as "key,name=OrderId"
func parseTag(tag string, f *field) error {
	if tag == "" {
		return nil
	}
	for _, opt := range strings.Split(tag, ",") {
		opt = strings.TrimSpace(opt)
		switch {
		case opt == "":
		case opt == string(metadata.MarkerKey):
			f.markers = append(f.markers, metadata.MarkerKey)
		case opt == string(metadata.MarkerConcurrencyCheck):
			f.markers = append(f.markers, metadata.MarkerConcurrencyCheck)
		case strings.HasPrefix(opt, "name="):
			name := strings.TrimPrefix(opt, "name=")
			if name == "" {
				return fmt.Errorf("empty name: %w", ErrInvalidTag)
			}
			f.name = name
		default:
			return fmt.Errorf("%q: %w", opt, ErrInvalidTag)
		}
	}
	return nil
}

// isScalar reports whether a field type maps to a single column
func isScalar(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == bytesType || scalarStructs[t] {
		return true
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String, reflect.Float32, reflect.Float64:
		return true
	}
	return metadata.IsInteger(t)
}
