package metadata

import (
	"database/sql"
	"reflect"

	"github.com/google/uuid"
)

var (
	nullInt16Type = reflect.TypeOf(sql.NullInt16{})
	nullInt32Type = reflect.TypeOf(sql.NullInt32{})
	nullInt64Type = reflect.TypeOf(sql.NullInt64{})
	nullByteType  = reflect.TypeOf(sql.NullByte{})
	nullUUIDType  = reflect.TypeOf(uuid.NullUUID{})

	// UUIDType is the Go type of globally unique identifiers
	UUIDType = reflect.TypeOf(uuid.UUID{})
)

// UnwrapNullable strips pointer indirection and the database/sql and uuid nullable
// wrappers, returning the underlying scalar type.
func UnwrapNullable(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t {
	case nullInt16Type:
		return reflect.TypeOf(int16(0))
	case nullInt32Type:
		return reflect.TypeOf(int32(0))
	case nullInt64Type:
		return reflect.TypeOf(int64(0))
	case nullByteType:
		return reflect.TypeOf(byte(0))
	case nullUUIDType:
		return UUIDType
	}
	return t
}

// IsNullable reports whether values of t can hold NULL
func IsNullable(t reflect.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return true
	}
	return UnwrapNullable(t) != t
}

// IsInteger reports whether t is an integer kind. Named types such as enums
// declared over an integer count as integers.
func IsInteger(t reflect.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
