package ptrx

import "time"

// To returns a pointer value for the value passed in.
func To[T any](v T) *T {
	return &v
}

// String returns a pointer value for the string value passed in.
func String(v string) *string {
	return &v
}

// Time returns a pointer value for the time.Time value passed in.
func Time(v time.Time) *time.Time {
	return &v
}

// StringValue returns the value of the string pointer passed in or
// "" if the pointer is nil.
func StringValue(v *string) string {
	if v != nil {
		return *v
	}
	return ""
}

// Value returns the value of the pointer passed in or the zero value
// of T if the pointer is nil.
func Value[T any](v *T) T {
	if v != nil {
		return *v
	}
	var zero T
	return zero
}

// Clone returns a new pointer holding a copy of *v, or nil if v is nil.
// Records handed out by in-memory stores use it so callers cannot
// mutate stored state through shared pointers.
func Clone[T any](v *T) *T {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}
