// Package tracking keeps the rows an application has loaded or created, keyed by
// entity identity, and records field-level changes against the loaded values.
package tracking

import (
	"reflect"
	"sort"
	"sync"

	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

// EntityState is the lifecycle state of a tracked entry
type EntityState int

const (
	// Unchanged entries match the values they were loaded with
	Unchanged EntityState = iota
	// Modified entries were loaded and then changed
	Modified
	// Added entries are new and not yet stored
	Added
	// Deleted entries are marked for removal
	Deleted
)

// String returns the string representation of the state
func (s EntityState) String() string {
	switch s {
	case Unchanged:
		return "unchanged"
	case Modified:
		return "modified"
	case Added:
		return "added"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// FieldChange represents a change to a single field
type FieldChange struct {
	Field    string
	OldValue any
	NewValue any
}

// Entry holds the values of one entity instance
type Entry struct {
	mu         sync.RWMutex
	entityType metadata.EntityTypeID
	key        []any
	state      EntityState
	original   map[string]any
	current    map[string]any
	changes    map[string]*FieldChange
}

// NewEntry creates an entry in the given state. Values are copied.
func NewEntry(entityType metadata.EntityTypeID, key []any, values map[string]any, state EntityState) *Entry {
	e := &Entry{
		entityType: entityType,
		key:        append([]any(nil), key...),
		state:      state,
		original:   copyValues(values),
		current:    copyValues(values),
		changes:    make(map[string]*FieldChange),
	}
	return e
}

func copyValues(values map[string]any) map[string]any {
	result := make(map[string]any, len(values))
	for k, v := range values {
		result[k] = copyValue(v)
	}
	return result
}

// copyValue copies byte slices, the only mutable values a driver hands out
func copyValue(v any) any {
	if b, ok := v.([]byte); ok {
		return append([]byte(nil), b...)
	}
	return v
}

// EntityType returns the concrete entity type of the row
func (e *Entry) EntityType() metadata.EntityTypeID {
	return e.entityType
}

// Key returns the primary key values, in key property order
func (e *Entry) Key() []any {
	return append([]any(nil), e.key...)
}

// State returns the lifecycle state
func (e *Entry) State() EntityState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// SetState forces the lifecycle state
func (e *Entry) SetState(state EntityState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = state
}

// Value returns the current value of a field
func (e *Entry) Value(field string) any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current[field]
}

// OriginalValue returns the value a field was loaded with
func (e *Entry) OriginalValue(field string) any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.original[field]
}

// Values returns a copy of the current values
func (e *Entry) Values() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return copyValues(e.current)
}

// SetValue changes a field. An unchanged entry becomes modified, and a modified
// entry whose fields all return to their original values becomes unchanged again.
func (e *Entry) SetValue(field string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.current[field] = copyValue(value)
	old, existed := e.original[field]
	if !existed || !reflect.DeepEqual(old, value) {
		e.changes[field] = &FieldChange{Field: field, OldValue: old, NewValue: value}
	} else {
		delete(e.changes, field)
	}

	switch {
	case e.state == Unchanged && len(e.changes) > 0:
		e.state = Modified
	case e.state == Modified && len(e.changes) == 0:
		e.state = Unchanged
	}
}

// Changed reports whether the field differs from its original value
func (e *Entry) Changed(field string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.changes[field]
	return ok
}

// ChangedFields returns the changed field names, sorted
func (e *Entry) ChangedFields() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	fields := make([]string, 0, len(e.changes))
	for field := range e.changes {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// GetChange returns the change of a field, or nil if unchanged
func (e *Entry) GetChange(field string) *FieldChange {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.changes[field]
}

// HasChanges reports whether any field changed
func (e *Entry) HasChanges() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.changes) > 0
}

// ChangedData returns the new values of changed fields, as used for an UPDATE
func (e *Entry) ChangedData() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make(map[string]any, len(e.changes))
	for field, change := range e.changes {
		result[field] = change.NewValue
	}
	return result
}

// AcceptChanges makes the current values the original ones after a successful save
func (e *Entry) AcceptChanges() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.original = copyValues(e.current)
	e.changes = make(map[string]*FieldChange)
	e.state = Unchanged
}
