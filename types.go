package formakv

import (
	"fmt"
	"strings"
)

// ValueType represents supported attribute value types.
type ValueType string

const (
	ValueTypeString   ValueType = "string"
	ValueTypeInteger  ValueType = "integer"
	ValueTypeFloat    ValueType = "float"
	ValueTypeBool     ValueType = "bool"
	ValueTypeDateTime ValueType = "datetime" // seconds.microseconds since epoch
	ValueTypeDate     ValueType = "date"     // epoch seconds of local midnight
	ValueTypeUUID     ValueType = "uuid"
	ValueTypeList     ValueType = "list"
	ValueTypeModel    ValueType = "model" // element or reference resolved to an *Instance
)

// IsScalar reports whether values of this type live directly in the instance hash.
func (v ValueType) IsScalar() bool {
	switch v {
	case ValueTypeString, ValueTypeInteger, ValueTypeFloat, ValueTypeBool,
		ValueTypeDateTime, ValueTypeDate, ValueTypeUUID:
		return true
	default:
		return false
	}
}

// IsZIndexable reports whether values of this type can back a sorted index.
func (v ValueType) IsZIndexable() bool {
	switch v {
	case ValueTypeInteger, ValueTypeFloat, ValueTypeDateTime, ValueTypeDate:
		return true
	default:
		return false
	}
}

// Validation messages produced by the built-in field checks.
const (
	MessageBadType             = "bad type"
	MessageBadTypeInList       = "bad type in list"
	MessageBadTypeForReference = "bad type for reference"
	MessageRequired            = "required"
)

// FieldError is a single (field, message) validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validator is an optional per-field check. It receives the current value and
// returns the failures it found, or nothing.
type Validator func(value any) []FieldError

// Key names a hash or list in the store. Parts are joined with ':'.
type Key string

// Sub returns the key of a structure nested under k, e.g. the list backing a
// list field.
func (k Key) Sub(part string) Key {
	return Key(string(k) + ":" + part)
}

func (k Key) String() string {
	return string(k)
}

func newKey(parts ...string) Key {
	return Key(strings.Join(parts, ":"))
}
