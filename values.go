package formakv

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

// isNil reports whether v is nil or a nil pointer, slice, map or interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// truthy is the emptiness test shared by the validators: nil, zero numbers,
// false, empty strings and empty collections are all empty.
func truthy(v any) bool {
	if isNil(v) {
		return false
	}
	if t, ok := v.(time.Time); ok {
		return !t.IsZero()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.String, reflect.Slice, reflect.Map:
		return rv.Len() != 0
	case reflect.Array:
		return !rv.IsZero()
	case reflect.Pointer:
		return truthy(rv.Elem().Interface())
	}
	return true
}

// blank reports a value that fails a required check: nil, or empty once
// stringified and trimmed.
func blank(v any) bool {
	if isNil(v) {
		return true
	}
	return strings.TrimSpace(fmt.Sprint(v)) == ""
}

// isValueOf reports whether v is an in-memory value of the given scalar type.
func isValueOf(vt ValueType, v any) bool {
	switch vt {
	case ValueTypeString:
		_, ok := v.(string)
		return ok
	case ValueTypeInteger:
		_, ok := asInt64(v)
		return ok
	case ValueTypeFloat:
		switch v.(type) {
		case float64, float32:
			return true
		}
		return false
	case ValueTypeBool:
		_, ok := v.(bool)
		return ok
	case ValueTypeDateTime, ValueTypeDate:
		_, ok, _ := asTime(v)
		return ok
	case ValueTypeUUID:
		switch v.(type) {
		case uuid.UUID, *uuid.UUID:
			return true
		}
		return false
	}
	return false
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		if uint64(n) <= math.MaxInt64 {
			return int64(n), true
		}
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), true
		}
	}
	return 0, false
}

// asTime unwraps time.Time and *time.Time. The third result reports a nil pointer.
func asTime(v any) (time.Time, bool, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true, false
	case *time.Time:
		if t == nil {
			return time.Time{}, true, true
		}
		return *t, true, false
	}
	return time.Time{}, false, false
}

// toSlice returns the elements of any slice value.
func toSlice(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}
