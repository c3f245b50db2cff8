package formakv

import (
	"context"
)

// ScalarField is a typed accessor for a single-valued attribute kept in the
// instance hash.
type ScalarField struct {
	attribute
	valueType  ValueType
	autoNow    bool
	autoNowAdd bool
}

func newScalarField(name string, vt ValueType, opts []FieldOption) *ScalarField {
	cfg := newFieldConfig(opts)
	f := &ScalarField{
		attribute: newAttribute(name, cfg),
		valueType: vt,
	}
	if vt == ValueTypeDateTime || vt == ValueTypeDate {
		f.autoNow = cfg.autoNow
		f.autoNowAdd = cfg.autoNowAdd
	}
	return f
}

// NewStringField declares a string attribute.
func NewStringField(name string, opts ...FieldOption) *ScalarField {
	return newScalarField(name, ValueTypeString, opts)
}

// NewIntegerField declares an int64 attribute. Nil is stored as "0".
func NewIntegerField(name string, opts ...FieldOption) *ScalarField {
	return newScalarField(name, ValueTypeInteger, opts)
}

// NewFloatField declares a float64 attribute. Nil is stored as "0".
func NewFloatField(name string, opts ...FieldOption) *ScalarField {
	return newScalarField(name, ValueTypeFloat, opts)
}

// NewBooleanField declares a bool attribute stored as "1" or "0".
func NewBooleanField(name string, opts ...FieldOption) *ScalarField {
	return newScalarField(name, ValueTypeBool, opts)
}

// NewDateTimeField declares a time.Time attribute stored as
// "<epoch seconds>.<microseconds>". AutoNow and AutoNowAdd apply.
func NewDateTimeField(name string, opts ...FieldOption) *ScalarField {
	return newScalarField(name, ValueTypeDateTime, opts)
}

// NewDateField declares a calendar date, held as a time.Time at midnight in the
// registry location. AutoNow and AutoNowAdd apply.
func NewDateField(name string, opts ...FieldOption) *ScalarField {
	return newScalarField(name, ValueTypeDate, opts)
}

// NewUUIDField declares a uuid.UUID attribute.
func NewUUIDField(name string, opts ...FieldOption) *ScalarField {
	return newScalarField(name, ValueTypeUUID, opts)
}

func (f *ScalarField) ValueType() ValueType { return f.valueType }

// AutoNow reports whether saves stamp the field with the current time.
func (f *ScalarField) AutoNow() bool { return f.autoNow }

// AutoNowAdd reports whether the first save stamps the field with the current time.
func (f *ScalarField) AutoNowAdd() bool { return f.autoNowAdd }

// FromStorage converts a stored string into the field's value.
func (f *ScalarField) FromStorage(raw string) (any, error) {
	return readValue(f.name, f.valueType, raw, f.location())
}

// ToStorage converts a value into its stored string. ok is false when nothing
// should be stored, and a non-convertible value fails with ErrTypeMismatch.
func (f *ScalarField) ToStorage(value any) (raw string, ok bool, err error) {
	return writeValue(f.name, f.valueType, value, f.location())
}

func (f *ScalarField) Get(ctx context.Context, inst *Instance) (any, error) {
	if v, ok := inst.slot(f.name); ok {
		return v, nil
	}

	if inst.IsNew() {
		v := f.defaultValue()
		inst.setSlot(f.name, v)
		return v, nil
	}

	raw, found, err := f.load(ctx, inst, f.name)
	if err != nil {
		return nil, err
	}

	var v any
	if found {
		v, err = f.FromStorage(raw)
		if err != nil {
			return nil, NewConversionError(f.name, raw, err).WithModel(inst.model.name)
		}
	}
	inst.setSlot(f.name, v)
	return v, nil
}

func (f *ScalarField) Set(inst *Instance, value any) error {
	inst.setSlot(f.name, value)
	return nil
}

func (f *ScalarField) Validate(ctx context.Context, inst *Instance) error {
	v, err := f.Get(ctx, inst)
	if err != nil {
		return err
	}

	var errs []FieldError
	if truthy(v) && !isValueOf(f.valueType, v) {
		errs = append(errs, FieldError{Field: f.name, Message: MessageBadType})
	}
	if f.required && blank(v) {
		errs = append(errs, FieldError{Field: f.name, Message: MessageRequired})
	}
	return f.finish(v, errs)
}

func (f *ScalarField) save(ctx context.Context, inst *Instance, w *writeSet) error {
	if _, loaded := inst.slot(f.name); !loaded && !inst.IsNew() {
		return nil
	}
	v, err := f.Get(ctx, inst)
	if err != nil {
		return err
	}
	raw, ok, err := f.ToStorage(v)
	if err != nil {
		return err
	}
	w.put(f.name, raw, ok)
	return nil
}
