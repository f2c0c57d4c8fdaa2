package modelfile

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/modelkit/internal/orm/conventions"
	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

func applyFile(t *testing.T, f *File) *metadata.Model {
	t.Helper()
	m, _ := conventions.DefaultSet(nil).NewModel()
	require.NoError(t, f.Apply(m, nil))
	return m
}

func property(t *testing.T, m *metadata.Model, entity, name string) metadata.PropertyID {
	t.Helper()
	et, ok := m.FindEntityType(entity)
	require.True(t, ok, entity)
	p, ok := m.FindProperty(et, name)
	require.True(t, ok, name)
	return p
}

func TestLoadAndApply(t *testing.T) {
	f, data, err := Load(filepath.Join("testdata", "shop.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	require.Len(t, f.Entities, 6)

	m := applyFile(t, f)

	t.Run("value generation", func(t *testing.T) {
		tests := []struct {
			entity, property string
			expected         metadata.ValueGenerated
		}{
			{"Customer", "Id", metadata.ValueGeneratedOnAdd},
			{"Customer", "Email", metadata.ValueGeneratedUnspecified},
			{"Order", "Id", metadata.ValueGeneratedOnAdd},
			{"Order", "CustomerId", metadata.ValueGeneratedNever},
			{"OrderLine", "OrderId", metadata.ValueGeneratedNever},
			{"OrderLine", "LineNo", metadata.ValueGeneratedOnAdd},
			{"OrderLine", "Sku", metadata.ValueGeneratedNever},
		}
		for _, tt := range tests {
			t.Run(tt.entity+"."+tt.property, func(t *testing.T) {
				assert.Equal(t, tt.expected, m.ValueGenerated(property(t, m, tt.entity, tt.property)))
			})
		}
	})

	t.Run("discriminator", func(t *testing.T) {
		order, _ := m.FindEntityType("Order")
		values := make(map[string]any)
		for et, v := range m.DiscriminatorMapping(order) {
			values[m.EntityTypeName(et)] = v
		}
		assert.Equal(t, map[string]any{"Order": "Order", "VipOrder": "VIP", "BulkOrder": "BulkOrder"}, values)
	})

	t.Run("attributes", func(t *testing.T) {
		assert.True(t, m.IsConcurrencyToken(property(t, m, "Order", "Version")))
		assert.Equal(t, reflect.TypeOf((*string)(nil)), m.PropertyType(property(t, m, "Order", "Note")))

		report, _ := m.FindEntityType("SalesReport")
		assert.True(t, m.IsKeyless(report))
		line, _ := m.FindEntityType("OrderLine")
		assert.True(t, m.IsOwned(line))
	})
}

func TestApply_AlternatePrincipalKey(t *testing.T) {
	f, err := Parse([]byte(`
entities:
  - name: Product
    key: [Id]
    properties:
      - {name: Id, type: int}
      - {name: Sku, type: string}
  - name: Stock
    key: [Id]
    properties:
      - {name: Id, type: uuid}
      - {name: ProductSku, type: string}
    foreignKeys:
      - properties: [ProductSku]
        principal: Product
        principalKey: [Sku]
`))
	require.NoError(t, err)
	m := applyFile(t, f)

	product, _ := m.FindEntityType("Product")
	assert.Len(t, m.Keys(product), 2)
	assert.Equal(t, metadata.ValueGeneratedOnAdd, m.ValueGenerated(property(t, m, "Stock", "Id")))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		target error
	}{
		{"unknown type", "entities: [{name: A, properties: [{name: X, type: decimal}]}]", ErrUnknownType},
		{"nameless entity", "entities: [{properties: []}]", ErrInvalidFile},
		{"duplicate entity", "entities: [{name: A}, {name: A}]", ErrInvalidFile},
		{"duplicate property", "entities: [{name: A, properties: [{name: X, type: int}, {name: x, type: int}]}]", ErrInvalidFile},
		{"unknown base", "entities: [{name: A, base: B}]", ErrInvalidFile},
		{"derived key", "entities: [{name: A}, {name: B, base: A, key: [X]}]", ErrInvalidFile},
		{"keyless with key", "entities: [{name: A, keyless: true, key: [X]}]", ErrInvalidFile},
		{"unknown principal", "entities: [{name: A, foreignKeys: [{properties: [X], principal: B}]}]", ErrInvalidFile},
		{"empty foreign key", "entities: [{name: A}, {name: B, foreignKeys: [{principal: A}]}]", ErrInvalidFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
		})
	}

	_, err := Parse([]byte("entities: ["))
	assert.Error(t, err)
}

func TestApply_Errors(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		target error
	}{
		{
			name:   "discriminator without hierarchy",
			yaml:   "entities: [{name: A, discriminator: X}]",
			target: ErrInvalidFile,
		},
		{
			name:   "unknown key property",
			yaml:   "entities: [{name: A, key: [Id]}]",
			target: metadata.ErrNotFound,
		},
		{
			name:   "principal without key",
			yaml:   "entities: [{name: A}, {name: B, properties: [{name: AId, type: int}], foreignKeys: [{properties: [AId], principal: A}]}]",
			target: metadata.ErrInvalidKey,
		},
		{
			name: "owned twice",
			yaml: `entities:
  - {name: A, key: [Id], properties: [{name: Id, type: int}]}
  - name: B
    properties: [{name: X, type: int}, {name: Y, type: int}]
    foreignKeys:
      - {properties: [X], principal: A, ownership: true}
      - {properties: [Y], principal: A, ownership: true}`,
			target: metadata.ErrInvalidHierarchy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			m, _ := conventions.DefaultSet(nil).NewModel()
			err = f.Apply(m, nil)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join("testdata", "missing.yaml"))
	assert.Error(t, err)
}

func TestParseType(t *testing.T) {
	tests := []struct {
		name     string
		expected reflect.Type
	}{
		{"int", reflect.TypeOf(0)},
		{"Int64", reflect.TypeOf(int64(0))},
		{"int64?", reflect.TypeOf((*int64)(nil))},
		{"uuid", reflect.TypeOf(uuid.UUID{})},
		{"time?", reflect.TypeOf((*time.Time)(nil))},
		{"bytes?", reflect.TypeOf([]byte(nil))},
		{" string ", reflect.TypeOf("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseType(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := ParseType("money")
	assert.True(t, errors.Is(err, ErrUnknownType))
}
