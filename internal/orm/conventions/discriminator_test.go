package conventions

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

func TestDiscriminator_DefaultValues(t *testing.T) {
	m, _ := newModel(t)
	order := addEntity(t, m, "Order")
	vip := addEntity(t, m, "VipOrder")
	bulk := addEntity(t, m, "BulkOrder")

	setBase(t, m, vip, order)
	setBase(t, m, bulk, order)

	cfg, ok := m.Discriminator(order)
	require.True(t, ok)
	assert.Equal(t, reflect.TypeOf(""), cfg.Type)
	assert.Equal(t, metadata.DefaultDiscriminatorProperty, cfg.PropertyName)
	assert.Equal(t, map[string]any{
		"Order":     "Order",
		"VipOrder":  "VipOrder",
		"BulkOrder": "BulkOrder",
	}, discriminatorValues(m, order))

	require.NoError(t, m.RemoveEntityType(bulk))
	assert.Equal(t, map[string]any{
		"Order":    "Order",
		"VipOrder": "VipOrder",
	}, discriminatorValues(m, order))

	require.NoError(t, m.RemoveEntityType(vip))
	_, ok = m.Discriminator(order)
	assert.False(t, ok)
	assert.Nil(t, m.DiscriminatorMapping(order))
}

func TestDiscriminator_OnlyRootCarriesConfiguration(t *testing.T) {
	m, _ := newModel(t)
	order := addEntity(t, m, "Order")
	vip := addEntity(t, m, "VipOrder")
	gold := addEntity(t, m, "GoldOrder")

	setBase(t, m, gold, vip)
	_, ok := m.Discriminator(vip)
	require.True(t, ok, "a root with children gets a discriminator")

	setBase(t, m, vip, order)

	_, ok = m.Discriminator(order)
	assert.True(t, ok)
	_, ok = m.Discriminator(vip)
	assert.False(t, ok)
	_, ok = m.Discriminator(gold)
	assert.False(t, ok)
	assert.Equal(t, map[string]any{
		"Order":     "Order",
		"VipOrder":  "VipOrder",
		"GoldOrder": "GoldOrder",
	}, discriminatorValues(m, gold))
}

func TestDiscriminator_DetachSubtree(t *testing.T) {
	m, _ := newModel(t)
	order := addEntity(t, m, "Order")
	vip := addEntity(t, m, "VipOrder")
	gold := addEntity(t, m, "GoldOrder")
	setBase(t, m, vip, order)
	setBase(t, m, gold, vip)

	setBase(t, m, vip, metadata.NoEntityType)

	_, ok := m.Discriminator(order)
	assert.False(t, ok, "the old root has no children left")
	_, ok = m.Discriminator(vip)
	assert.True(t, ok, "the detached subtree gets its own root discriminator")
	assert.Equal(t, map[string]any{
		"VipOrder":  "VipOrder",
		"GoldOrder": "GoldOrder",
	}, discriminatorValues(m, vip))
}

func TestDiscriminator_DetachLeaf(t *testing.T) {
	m, _ := newModel(t)
	order := addEntity(t, m, "Order")
	vip := addEntity(t, m, "VipOrder")
	bulk := addEntity(t, m, "BulkOrder")
	setBase(t, m, vip, order)
	setBase(t, m, bulk, order)

	setBase(t, m, bulk, metadata.NoEntityType)

	_, ok := m.Discriminator(bulk)
	assert.False(t, ok)
	assert.Equal(t, map[string]any{
		"Order":    "Order",
		"VipOrder": "VipOrder",
	}, discriminatorValues(m, order))
}

func TestDiscriminator_ExplicitValueIsKept(t *testing.T) {
	m, _ := newModel(t)
	order := addEntity(t, m, "Order")
	vip := addEntity(t, m, "VipOrder")
	gold := addEntity(t, m, "GoldOrder")
	setBase(t, m, vip, order)
	require.True(t, m.SetDiscriminatorValue(vip, "V", metadata.SourceExplicit))

	// Re-deriving defaults for the hierarchy leaves the explicit value alone
	setBase(t, m, gold, vip)
	setBase(t, m, vip, metadata.NoEntityType)
	setBase(t, m, vip, order)

	v, ok := m.DiscriminatorValue(vip)
	require.True(t, ok)
	assert.Equal(t, "V", v)
	assert.Equal(t, metadata.SourceExplicit, m.DiscriminatorValueSource(vip))
	assert.Equal(t, "GoldOrder", discriminatorValues(m, order)["GoldOrder"])
}

func TestDiscriminator_ExplicitConfigurationIsKept(t *testing.T) {
	m, _ := newModel(t)
	order := addEntity(t, m, "Order")
	vip := addEntity(t, m, "VipOrder")
	bulk := addEntity(t, m, "BulkOrder")
	setBase(t, m, vip, order)
	require.True(t, m.SetDiscriminator(order, reflect.TypeOf(0), metadata.SourceExplicit))

	// The convention cannot install a string discriminator over the explicit one
	setBase(t, m, bulk, order)
	_, ok := m.DiscriminatorValue(bulk)
	assert.False(t, ok)

	cfg, ok := m.Discriminator(order)
	require.True(t, ok)
	assert.Equal(t, reflect.TypeOf(0), cfg.Type)

	// Nor remove it once the root is childless
	require.NoError(t, m.RemoveEntityType(vip))
	require.NoError(t, m.RemoveEntityType(bulk))
	_, ok = m.Discriminator(order)
	assert.True(t, ok)
}

func TestDiscriminator_StandaloneTypeHasNone(t *testing.T) {
	m, _ := newModel(t)
	order := addEntity(t, m, "Order")
	vip := addEntity(t, m, "VipOrder")

	setBase(t, m, vip, order)
	setBase(t, m, vip, metadata.NoEntityType)

	for _, et := range []metadata.EntityTypeID{order, vip} {
		_, ok := m.Discriminator(et)
		assert.False(t, ok, m.EntityTypeName(et))
		assert.Nil(t, m.DiscriminatorMapping(et))
	}
}

func TestDiscriminator_ShortNameFromGoType(t *testing.T) {
	type SpecialOrder struct{}

	m, _ := newModel(t)
	order := addEntity(t, m, "sales.Order")
	special, err := m.AddEntityType("sales.SpecialOrder", reflect.TypeOf(SpecialOrder{}))
	require.NoError(t, err)

	setBase(t, m, special, order)

	assert.Equal(t, map[string]any{
		"sales.Order":        "Order",
		"sales.SpecialOrder": "SpecialOrder",
	}, discriminatorValues(m, order))
}

func TestDiscriminator_RootInvariant(t *testing.T) {
	m, _ := newModel(t)
	names := []string{"A", "B", "C", "D", "E"}
	ids := make(map[string]metadata.EntityTypeID)
	for _, n := range names {
		ids[n] = addEntity(t, m, n)
	}

	setBase(t, m, ids["B"], ids["A"])
	setBase(t, m, ids["C"], ids["B"])
	setBase(t, m, ids["E"], ids["D"])
	setBase(t, m, ids["D"], ids["C"])
	setBase(t, m, ids["B"], metadata.NoEntityType)
	require.NoError(t, m.RemoveEntityType(ids["E"]))

	for _, et := range m.EntityTypes() {
		_, has := m.Discriminator(et)
		isRoot := m.BaseType(et) == metadata.NoEntityType
		hasChildren := len(m.DirectlyDerivedTypes(et)) > 0
		assert.Equal(t, isRoot && hasChildren, has, m.EntityTypeName(et))
	}
	assert.Equal(t, map[string]any{"B": "B", "C": "C", "D": "D"}, discriminatorValues(m, ids["D"]))
}
