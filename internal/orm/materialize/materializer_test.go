package materialize

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/modelkit/internal/orm/conventions"
	"github.com/conduit-lang/modelkit/internal/orm/metadata"
	"github.com/conduit-lang/modelkit/internal/orm/tracking"
)

type fixture struct {
	model  *metadata.Model
	order  metadata.EntityTypeID
	vip    metadata.EntityTypeID
	bulk   metadata.EntityTypeID
	states *tracking.StateManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m, _ := conventions.DefaultSet(nil).NewModel()
	add := func(name string) metadata.EntityTypeID {
		id, err := m.AddEntityType(name, nil)
		require.NoError(t, err)
		return id
	}
	prop := func(et metadata.EntityTypeID, name string, v any) metadata.PropertyID {
		id, err := m.AddProperty(et, name, reflect.TypeOf(v))
		require.NoError(t, err)
		return id
	}

	f := &fixture{model: m, order: add("Order"), vip: add("VipOrder"), bulk: add("BulkOrder")}
	id := prop(f.order, "Id", int64(0))
	prop(f.order, "Customer", "")
	_, ok := m.SetPrimaryKey(f.order, []metadata.PropertyID{id}, metadata.SourceExplicit)
	require.True(t, ok)
	require.True(t, m.SetBaseType(f.vip, f.order, metadata.SourceExplicit))
	require.True(t, m.SetBaseType(f.bulk, f.order, metadata.SourceExplicit))
	prop(f.vip, "Level", int64(0))
	prop(f.bulk, "MinQuantity", int64(0))

	f.states = tracking.NewStateManager(m, nil)
	return f
}

func (f *fixture) materializer(t *testing.T) *Materializer {
	t.Helper()
	mat, err := New(f.model, f.order, f.states, nil)
	require.NoError(t, err)
	return mat
}

func TestMaterializer_ResolvesConcreteTypes(t *testing.T) {
	f := newFixture(t)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM orders").
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer", "discriminator", "level", "min_quantity"}).
			AddRow(int64(1), "ann", "Order", nil, nil).
			AddRow(int64(2), []byte("bob"), "VipOrder", int64(3), nil).
			AddRow(int64(3), "cy", []byte("BulkOrder"), nil, int64(50)))

	entries, err := f.materializer(t).Query(context.Background(), db, "SELECT * FROM orders")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, f.order, entries[0].EntityType())
	assert.Equal(t, f.vip, entries[1].EntityType())
	assert.Equal(t, f.bulk, entries[2].EntityType())

	assert.Equal(t, map[string]any{"Id": int64(2), "Customer": "bob", "Level": int64(3)}, entries[1].Values())
	assert.Equal(t, map[string]any{"Id": int64(1), "Customer": "ann"}, entries[0].Values(),
		"columns of other derived types are dropped")
	assert.Equal(t, tracking.Unchanged, entries[1].State())
	assert.Equal(t, 3, f.states.Len())
}

func TestMaterializer_IdentityResolution(t *testing.T) {
	f := newFixture(t)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	columns := []string{"Id", "Customer", "Discriminator"}
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows(columns).AddRow(int64(1), "ann", "VipOrder"))
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows(columns).AddRow(int64(1), "changed", "VipOrder"))

	mat := f.materializer(t)
	first, err := mat.Query(context.Background(), db, "SELECT 1")
	require.NoError(t, err)
	first[0].SetValue("Customer", "edited")

	second, err := mat.Query(context.Background(), db, "SELECT 2")
	require.NoError(t, err)
	assert.Same(t, first[0], second[0])
	assert.Equal(t, "edited", second[0].Value("Customer"), "tracked values win over the store")
	assert.Equal(t, tracking.Modified, second[0].State())
}

func TestMaterializer_Errors(t *testing.T) {
	tests := []struct {
		name   string
		rows   *sqlmock.Rows
		target error
	}{
		{
			name:   "missing key column",
			rows:   sqlmock.NewRows([]string{"customer", "discriminator"}).AddRow("ann", "Order"),
			target: ErrMissingKeyColumn,
		},
		{
			name:   "missing discriminator",
			rows:   sqlmock.NewRows([]string{"id"}).AddRow(int64(1)),
			target: ErrMissingDiscriminator,
		},
		{
			name:   "unknown discriminator",
			rows:   sqlmock.NewRows([]string{"id", "discriminator"}).AddRow(int64(1), "Gold"),
			target: ErrUnknownDiscriminator,
		},
		{
			name:   "missing key value",
			rows:   sqlmock.NewRows([]string{"id", "discriminator"}).AddRow(nil, "Order"),
			target: tracking.ErrMissingKeyValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			mock.ExpectQuery("SELECT").WillReturnRows(tt.rows)

			_, err = f.materializer(t).Query(context.Background(), db, "SELECT")
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
		})
	}
}

func TestMaterializer_QueryError(t *testing.T) {
	f := newFixture(t)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("SELECT").WillReturnError(sql.ErrConnDone)

	_, err = f.materializer(t).Query(context.Background(), db, "SELECT")
	assert.True(t, errors.Is(err, sql.ErrConnDone))
}

func TestNew_RequiresRoot(t *testing.T) {
	f := newFixture(t)

	_, err := New(f.model, f.vip, f.states, nil)
	assert.True(t, errors.Is(err, metadata.ErrInvalidHierarchy))
	_, err = New(f.model, metadata.EntityTypeID(999), f.states, nil)
	assert.True(t, errors.Is(err, metadata.ErrNotFound))
}

func TestMaterializer_KeylessRowsAreNotTracked(t *testing.T) {
	m, _ := conventions.DefaultSet(nil).NewModel()
	report, err := m.AddEntityType("SalesReport", nil, metadata.MarkerKeyless)
	require.NoError(t, err)
	_, err = m.AddProperty(report, "Region", reflect.TypeOf(""))
	require.NoError(t, err)
	states := tracking.NewStateManager(m, nil)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"region"}).AddRow("north").AddRow("north"))

	mat, err := New(m, report, states, nil)
	require.NoError(t, err)
	entries, err := mat.Query(context.Background(), db, "SELECT")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.NotSame(t, entries[0], entries[1])
	assert.Equal(t, 0, states.Len())
}

func TestMaterializer_SQLite(t *testing.T) {
	f := newFixture(t)
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	_, err = db.ExecContext(ctx, `CREATE TABLE orders (
		id INTEGER PRIMARY KEY,
		customer TEXT NOT NULL,
		discriminator TEXT NOT NULL,
		level INTEGER,
		min_quantity INTEGER
	)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO orders (id, customer, discriminator, level, min_quantity) VALUES
		(1, 'ann', 'Order', NULL, NULL),
		(2, 'bob', 'VipOrder', 3, NULL),
		(3, 'cy', 'BulkOrder', NULL, 50)`)
	require.NoError(t, err)

	entries, err := f.materializer(t).Query(ctx, db, "SELECT * FROM orders ORDER BY id")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, f.vip, entries[1].EntityType())
	assert.Equal(t, "bob", entries[1].Value("Customer"))
	assert.Equal(t, int64(3), entries[1].Value("Level"))
	assert.Equal(t, int64(50), entries[2].Value("MinQuantity"))

	found, ok := f.states.Find(f.order, int64(3))
	require.True(t, ok)
	assert.Same(t, entries[2], found)
}

func TestMaterializer_NarrowsDriverIntegers(t *testing.T) {
	m, _ := conventions.DefaultSet(nil).NewModel()
	order, err := m.AddEntityType("Order", nil)
	require.NoError(t, err)
	id, err := m.AddProperty(order, "Id", reflect.TypeOf(0))
	require.NoError(t, err)
	_, err = m.AddProperty(order, "Lines", reflect.TypeOf(int32(0)))
	require.NoError(t, err)
	_, ok := m.SetPrimaryKey(order, []metadata.PropertyID{id}, metadata.SourceExplicit)
	require.True(t, ok)

	states := tracking.NewStateManager(m, nil)
	added, err := states.Add(order, map[string]any{"Id": 1, "Lines": int32(2)})
	require.NoError(t, err)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"Id", "Lines"}).
		AddRow(int64(1), int64(2)).
		AddRow(int64(2), int64(5)))

	mat, err := New(m, order, states, nil)
	require.NoError(t, err)
	entries, err := mat.Query(context.Background(), db, "SELECT * FROM orders")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Same(t, added, entries[0], "a tracked key is not tracked twice")
	assert.Equal(t, 2, states.Len())
	assert.Equal(t, int32(5), entries[1].Value("Lines"))
	assert.Equal(t, []any{2}, entries[1].Key())

	found, ok := states.Find(order, int64(2))
	require.True(t, ok)
	assert.Same(t, entries[1], found)
}
