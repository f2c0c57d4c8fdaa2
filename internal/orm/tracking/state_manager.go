package tracking

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

var (
	// ErrNoPrimaryKey is returned when an entity type has no primary key to track by
	ErrNoPrimaryKey = errors.New("entity type has no primary key")

	// ErrMissingKeyValue is returned when values lack a primary key property
	ErrMissingKeyValue = errors.New("missing primary key value")

	// ErrNotTracked is returned for entries the state manager does not hold
	ErrNotTracked = errors.New("entry is not tracked")
)

type identity struct {
	root metadata.EntityTypeID
	key  string
}

// StateManager is an identity map of tracked entries. Rows of every type in an
// inheritance hierarchy share one key space, that of the hierarchy root.
type StateManager struct {
	mu      sync.RWMutex
	model   *metadata.Model
	entries map[identity]*Entry
	logger  *zap.Logger
}

// NewStateManager creates an empty state manager over a built model. The model
// must not be changed while the state manager is in use.
func NewStateManager(model *metadata.Model, logger *zap.Logger) *StateManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateManager{
		model:   model,
		entries: make(map[identity]*Entry),
		logger:  logger,
	}
}

// KeyValues extracts the primary key values of entityType from values. Property
// names match case-insensitively.
func (s *StateManager) KeyValues(entityType metadata.EntityTypeID, values map[string]any) ([]any, error) {
	pk, ok := s.model.PrimaryKey(entityType)
	if !ok {
		return nil, fmt.Errorf("%s: %w", s.model.EntityTypeName(entityType), ErrNoPrimaryKey)
	}
	props := s.model.KeyProperties(pk)
	key := make([]any, len(props))
	for i, p := range props {
		v, ok := lookup(values, s.model.PropertyName(p))
		if !ok || v == nil {
			return nil, fmt.Errorf("%s.%s: %w",
				s.model.EntityTypeName(entityType), s.model.PropertyName(p), ErrMissingKeyValue)
		}
		key[i] = v
	}
	return s.normalizeKey(entityType, key), nil
}

// normalizeKey converts integer key values to the Go type of their key property, so
// a key read as int64 by a driver matches the same key given as int.
func (s *StateManager) normalizeKey(entityType metadata.EntityTypeID, key []any) []any {
	pk, ok := s.model.PrimaryKey(entityType)
	if !ok {
		return key
	}
	props := s.model.KeyProperties(pk)
	if len(props) != len(key) {
		return key
	}
	normalized := make([]any, len(key))
	for i, v := range key {
		normalized[i] = v
		if v == nil {
			continue
		}
		target := metadata.UnwrapNullable(s.model.PropertyType(props[i]))
		rv := reflect.ValueOf(v)
		if metadata.IsInteger(rv.Type()) && metadata.IsInteger(target) && rv.CanConvert(target) {
			normalized[i] = rv.Convert(target).Interface()
		}
	}
	return normalized
}

func lookup(values map[string]any, name string) (any, bool) {
	if v, ok := values[name]; ok {
		return v, true
	}
	for k, v := range values {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

func (s *StateManager) identityOf(entityType metadata.EntityTypeID, key []any) identity {
	var b strings.Builder
	for i, v := range key {
		if i > 0 {
			b.WriteByte(0)
		}
		// []byte keys print as their content, not their address
		fmt.Fprintf(&b, "%T:%v", v, v)
	}
	return identity{root: s.model.RootType(entityType), key: b.String()}
}

// Attach tracks a row loaded from the store as unchanged. When a row with the same
// identity is already tracked, the existing entry is returned and created is false.
func (s *StateManager) Attach(entityType metadata.EntityTypeID, values map[string]any) (entry *Entry, created bool, err error) {
	return s.track(entityType, values, Unchanged)
}

// Add tracks a new row that has not been stored yet
func (s *StateManager) Add(entityType metadata.EntityTypeID, values map[string]any) (*Entry, error) {
	entry, created, err := s.track(entityType, values, Added)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, fmt.Errorf("%s %v is already tracked: %w",
			s.model.EntityTypeName(entityType), entry.key, metadata.ErrDuplicate)
	}
	return entry, nil
}

func (s *StateManager) track(entityType metadata.EntityTypeID, values map[string]any, state EntityState) (*Entry, bool, error) {
	key, err := s.KeyValues(entityType, values)
	if err != nil {
		return nil, false, err
	}
	id := s.identityOf(entityType, key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[id]; ok {
		return existing, false, nil
	}
	entry := NewEntry(entityType, key, values, state)
	s.entries[id] = entry

	s.logger.Debug("entry tracked",
		zap.String("entity_type", s.model.EntityTypeName(entityType)),
		zap.Stringer("state", state),
		zap.Any("key", key))
	return entry, true, nil
}

// Find returns the tracked entry of any type in entityType's hierarchy with the given key
func (s *StateManager) Find(entityType metadata.EntityTypeID, key ...any) (*Entry, bool) {
	id := s.identityOf(entityType, s.normalizeKey(entityType, key))

	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[id]
	return entry, ok
}

// Remove marks an entry deleted. An added entry is simply forgotten.
func (s *StateManager) Remove(entry *Entry) error {
	id := s.identityOf(entry.entityType, entry.key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries[id] != entry {
		return ErrNotTracked
	}
	if entry.State() == Added {
		delete(s.entries, id)
		return nil
	}
	entry.SetState(Deleted)
	return nil
}

// Detach stops tracking an entry
func (s *StateManager) Detach(entry *Entry) {
	id := s.identityOf(entry.entityType, entry.key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries[id] == entry {
		delete(s.entries, id)
	}
}

// Entries returns the tracked entries in the given states, or all of them when
// no state is given
func (s *StateManager) Entries(states ...EntityState) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Entry
	for _, entry := range s.entries {
		if len(states) == 0 || containsState(states, entry.State()) {
			result = append(result, entry)
		}
	}
	return result
}

func containsState(states []EntityState, state EntityState) bool {
	for _, s := range states {
		if s == state {
			return true
		}
	}
	return false
}

// AcceptAllChanges forgets deleted entries and marks the rest unchanged
func (s *StateManager) AcceptAllChanges() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, entry := range s.entries {
		if entry.State() == Deleted {
			delete(s.entries, id)
			continue
		}
		entry.AcceptChanges()
	}
}

// Len returns the number of tracked entries
func (s *StateManager) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
