package tracking

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntry_SetValue(t *testing.T) {
	tests := []struct {
		name     string
		original map[string]any
		field    string
		value    any
		changed  bool
		state    EntityState
	}{
		{"unchanged value", map[string]any{"title": "a"}, "title", "a", false, Unchanged},
		{"changed string", map[string]any{"title": "a"}, "title", "b", true, Modified},
		{"changed type", map[string]any{"count": 1}, "count", int64(1), true, Modified},
		{"new field", map[string]any{}, "title", "a", true, Modified},
		{"nil to value", map[string]any{"note": nil}, "note", "x", true, Modified},
		{"equal bytes", map[string]any{"version": []byte{1, 2}}, "version", []byte{1, 2}, false, Unchanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEntry(1, []any{1}, tt.original, Unchanged)
			e.SetValue(tt.field, tt.value)
			assert.Equal(t, tt.changed, e.Changed(tt.field))
			assert.Equal(t, tt.state, e.State())
		})
	}
}

func TestEntry_RevertRestoresUnchanged(t *testing.T) {
	e := NewEntry(1, []any{1}, map[string]any{"title": "a", "count": 1}, Unchanged)

	e.SetValue("title", "b")
	e.SetValue("count", 2)
	assert.Equal(t, Modified, e.State())
	assert.Equal(t, []string{"count", "title"}, e.ChangedFields())
	assert.Equal(t, map[string]any{"title": "b", "count": 2}, e.ChangedData())
	assert.Equal(t, &FieldChange{Field: "title", OldValue: "a", NewValue: "b"}, e.GetChange("title"))

	e.SetValue("title", "a")
	assert.Equal(t, Modified, e.State())
	e.SetValue("count", 1)
	assert.Equal(t, Unchanged, e.State())
	assert.False(t, e.HasChanges())
	assert.Nil(t, e.GetChange("title"))
}

func TestEntry_AddedStaysAdded(t *testing.T) {
	e := NewEntry(1, []any{1}, map[string]any{"title": "a"}, Added)
	e.SetValue("title", "b")
	assert.Equal(t, Added, e.State())

	e.AcceptChanges()
	assert.Equal(t, Unchanged, e.State())
	assert.Equal(t, "b", e.OriginalValue("title"))
	assert.False(t, e.HasChanges())
}

func TestEntry_CopiesValues(t *testing.T) {
	version := []byte{1, 2}
	values := map[string]any{"version": version}
	e := NewEntry(1, []any{1}, values, Unchanged)

	version[0] = 9
	values["extra"] = true
	assert.Equal(t, []byte{1, 2}, e.Value("version"))
	assert.Nil(t, e.Value("extra"))

	key := e.Key()
	key[0] = 2
	assert.Equal(t, []any{1}, e.Key())
}

func TestEntry_ConcurrentAccess(t *testing.T) {
	e := NewEntry(1, []any{1}, map[string]any{"count": 0}, Unchanged)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			e.SetValue("count", n)
			_ = e.Changed("count")
			_ = e.ChangedFields()
			_ = e.Values()
		}(i)
	}
	wg.Wait()
}

func TestEntityState_String(t *testing.T) {
	assert.Equal(t, "unchanged", Unchanged.String())
	assert.Equal(t, "modified", Modified.String())
	assert.Equal(t, "added", Added.String())
	assert.Equal(t, "deleted", Deleted.String())
	assert.Equal(t, "unknown", EntityState(42).String())
}
