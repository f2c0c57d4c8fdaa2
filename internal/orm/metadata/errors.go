package metadata

import "errors"

var (
	// ErrNotFound is returned when a handle or name does not resolve to a live model element
	ErrNotFound = errors.New("model element not found")

	// ErrDuplicate is returned when a name is already taken within an entity type hierarchy
	ErrDuplicate = errors.New("duplicate model element")

	// ErrInvalidHierarchy is returned when an operation would break the base type tree
	ErrInvalidHierarchy = errors.New("invalid entity type hierarchy")

	// ErrInvalidKey is returned when key or foreign key properties are malformed
	ErrInvalidKey = errors.New("invalid key")

	// ErrInUse is returned when removing an element that other elements still reference
	ErrInUse = errors.New("model element is in use")
)
