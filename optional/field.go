// Package optional distinguishes a JSON member that was omitted from one that
// was sent as null, which partial updates need.
package optional

import (
	"bytes"
	"encoding/json"
)

// Field holds a patch value. Set reports whether the member was present;
// Null reports whether it was present with a JSON null.
type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Of returns a present, non-null field.
func Of[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// Null returns a present field explicitly cleared.
func Null[T any]() Field[T] {
	return Field[T]{Set: true, Null: true}
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.Null = true
		var zero T
		f.Value = zero
		return nil
	}
	f.Null = false
	return json.Unmarshal(data, &f.Value)
}

// Ptr returns nil for a null field and a pointer to the value otherwise.
// Callers check Set first.
func (f Field[T]) Ptr() *T {
	if f.Null {
		return nil
	}
	v := f.Value
	return &v
}

// Arg converts the field into a query argument: nil when null, the value otherwise.
func (f Field[T]) Arg() any {
	if f.Null {
		return nil
	}
	return f.Value
}
