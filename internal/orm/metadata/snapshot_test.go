package metadata

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModel_Snapshot(t *testing.T) {
	m, _, order, vip, bulk := orderHierarchy(t)
	id := mustProperty(t, m, order, "Id", intType)
	version := mustProperty(t, m, order, "Version", strType)
	_, ok := m.SetPrimaryKey(order, []PropertyID{id}, SourceExplicit)
	require.True(t, ok)
	require.True(t, m.SetValueGenerated(id, ValueGeneratedOnAdd, SourceConvention))
	require.True(t, m.SetConcurrencyToken(version, true, SourceExplicit))
	require.True(t, m.SetDiscriminator(order, strType, SourceConvention))
	for et, v := range map[EntityTypeID]string{order: "Order", vip: "Vip", bulk: "Bulk"} {
		require.True(t, m.SetDefaultDiscriminatorValue(et, v))
	}

	snap := m.Snapshot()
	names := make([]string, len(snap.EntityTypes))
	for i, et := range snap.EntityTypes {
		names[i] = et.Name
	}
	assert.Equal(t, []string{"BulkOrder", "Order", "VipOrder"}, names)

	root, ok := snap.Find("Order")
	require.True(t, ok)
	assert.Equal(t, []string{"Id"}, root.PrimaryKey)
	assert.Equal(t, []PropertySnapshot{
		{Name: "Id", Type: "int", ValueGenerated: "on_add", Shadow: true},
		{Name: "Version", Type: "string", ValueGenerated: "unspecified", ConcurrencyToken: true, Shadow: true},
	}, root.Properties)
	require.NotNil(t, root.Discriminator)
	assert.Equal(t, DiscriminatorSnapshot{
		Property: "Discriminator",
		Type:     "string",
		Values:   map[string]string{"Order": "Order", "VipOrder": "Vip", "BulkOrder": "Bulk"},
	}, *root.Discriminator)

	derived, ok := snap.Find("VipOrder")
	require.True(t, ok)
	assert.Equal(t, "Order", derived.Base)
	assert.Nil(t, derived.Discriminator)
	assert.Empty(t, derived.PrimaryKey)

	_, ok = snap.Find("Missing")
	assert.False(t, ok)

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"entity_types"`)
	assert.NotContains(t, string(data), `"keyless"`)
}
