package conventions

import (
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/modelkit/internal/orm/dispatch"
	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

var (
	intType   = reflect.TypeOf(int(0))
	int64Type = reflect.TypeOf(int64(0))
	byteType  = reflect.TypeOf(uint8(0))
	uuidType  = reflect.TypeOf(uuid.UUID{})
	strType   = reflect.TypeOf("")
	bytesType = reflect.TypeOf([]byte(nil))
)

func newModel(t *testing.T) (*metadata.Model, *dispatch.Dispatcher) {
	t.Helper()
	return DefaultSet(nil).NewModel()
}

func addEntity(t *testing.T, m *metadata.Model, name string, markers ...metadata.Marker) metadata.EntityTypeID {
	t.Helper()
	id, err := m.AddEntityType(name, nil, markers...)
	require.NoError(t, err)
	return id
}

func addProperty(t *testing.T, m *metadata.Model, et metadata.EntityTypeID, name string, typ reflect.Type, markers ...metadata.Marker) metadata.PropertyID {
	t.Helper()
	id, err := m.AddProperty(et, name, typ, markers...)
	require.NoError(t, err)
	return id
}

func setKey(t *testing.T, m *metadata.Model, et metadata.EntityTypeID, props ...metadata.PropertyID) metadata.KeyID {
	t.Helper()
	k, ok := m.SetPrimaryKey(et, props, metadata.SourceExplicit)
	require.True(t, ok)
	return k
}

func addForeignKey(t *testing.T, m *metadata.Model, et metadata.EntityTypeID, principal metadata.KeyID, props ...metadata.PropertyID) metadata.ForeignKeyID {
	t.Helper()
	fk, err := m.AddForeignKey(et, props, principal)
	require.NoError(t, err)
	return fk
}

func setBase(t *testing.T, m *metadata.Model, et, base metadata.EntityTypeID) {
	t.Helper()
	require.True(t, m.SetBaseType(et, base, metadata.SourceExplicit))
}

// orderModel declares Order with a single int Id primary key
func orderModel(t *testing.T) (*metadata.Model, metadata.EntityTypeID, metadata.PropertyID, metadata.KeyID) {
	t.Helper()
	m, _ := newModel(t)
	order := addEntity(t, m, "Order")
	id := addProperty(t, m, order, "Id", intType)
	pk := setKey(t, m, order, id)
	return m, order, id, pk
}

func discriminatorValues(m *metadata.Model, et metadata.EntityTypeID) map[string]any {
	mapping := m.DiscriminatorMapping(et)
	if mapping == nil {
		return nil
	}
	values := make(map[string]any, len(mapping))
	for t, v := range mapping {
		values[m.EntityTypeName(t)] = v
	}
	return values
}
