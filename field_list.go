package formakv

import (
	"context"

	"go.uber.org/zap"
)

// ListField is a typed accessor for an ordered multi-valued attribute backed
// by a list at "<instance key>:<field name>". Elements are scalar values or
// instances of a target model.
type ListField struct {
	attribute
	target *targetResolver
}

// NewListField declares a list of target values. For model targets the
// in-memory value holds the resolved *Instance elements; identifiers that no
// longer resolve are dropped on load.
func NewListField(name string, target Target, opts ...FieldOption) *ListField {
	return &ListField{
		attribute: newAttribute(name, newFieldConfig(opts)),
		target:    newTargetResolver(target),
	}
}

func (f *ListField) ValueType() ValueType { return ValueTypeList }

// Target returns the declared element target.
func (f *ListField) Target() Target { return f.target.target }

// ElementType returns the element value type, ValueTypeModel for model targets.
func (f *ListField) ElementType() ValueType { return f.target.target.ValueType() }

// TargetModel resolves the element model. Non-model targets fail.
func (f *ListField) TargetModel() (*Model, error) {
	return f.target.resolve(f.name, f.registry())
}

// initialValue is a copy of the default, an empty list unless overridden.
func (f *ListField) initialValue() any {
	d := f.defaultValue()
	if isNil(d) {
		return []any{}
	}
	items, ok := toSlice(d)
	if !ok {
		return d
	}
	out := make([]any, len(items))
	copy(out, items)
	return out
}

func (f *ListField) Get(ctx context.Context, inst *Instance) (any, error) {
	if v, ok := inst.slot(f.name); ok {
		return v, nil
	}

	if inst.IsNew() {
		v := f.initialValue()
		inst.setSlot(f.name, v)
		return v, nil
	}

	key := inst.Key().Sub(f.name)
	members, err := inst.store().ListMembers(ctx, key.String())
	if err != nil {
		return nil, NewStoreError(ErrCodeStoreReadFailed, "read list", err).
			WithModel(inst.model.name).WithField(f.name)
	}

	items, err := f.convert(ctx, inst, members)
	if err != nil {
		return nil, err
	}
	inst.setSlot(f.name, items)
	return items, nil
}

func (f *ListField) convert(ctx context.Context, inst *Instance, members []string) ([]any, error) {
	items := make([]any, 0, len(members))

	if f.target.target.IsModel() {
		target, err := f.TargetModel()
		if err != nil {
			return nil, err
		}
		for _, id := range members {
			obj, err := target.GetByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if obj == nil {
				zap.S().Debugw("dropping unresolved list member",
					"model", inst.model.name, "field", f.name, "target", target.name, "id", id)
				continue
			}
			items = append(items, obj)
		}
		return items, nil
	}

	for _, raw := range members {
		v, err := readValue(f.name, f.target.target.valueType, raw, f.location())
		if err != nil {
			return nil, NewConversionError(f.name, raw, err).WithModel(inst.model.name)
		}
		items = append(items, v)
	}
	return items, nil
}

func (f *ListField) Set(inst *Instance, value any) error {
	inst.setSlot(f.name, value)
	return nil
}

func (f *ListField) Validate(ctx context.Context, inst *Instance) error {
	v, err := f.Get(ctx, inst)
	if err != nil {
		return err
	}

	var errs []FieldError
	if truthy(v) {
		items, ok := toSlice(v)
		if !ok {
			errs = append(errs, FieldError{Field: f.name, Message: MessageBadType})
		} else {
			for _, item := range items {
				match, err := f.isElement(item)
				if err != nil {
					return err
				}
				if !match {
					errs = append(errs, FieldError{Field: f.name, Message: MessageBadTypeInList})
				}
			}
		}
	}
	if f.required && !truthy(v) {
		errs = append(errs, FieldError{Field: f.name, Message: MessageRequired})
	}
	return f.finish(v, errs)
}

func (f *ListField) isElement(item any) (bool, error) {
	if !f.target.target.IsModel() {
		return isValueOf(f.target.target.valueType, item), nil
	}
	target, err := f.TargetModel()
	if err != nil {
		return false, err
	}
	obj, ok := item.(*Instance)
	return ok && obj != nil && obj.model == target, nil
}

func (f *ListField) save(ctx context.Context, inst *Instance, w *writeSet) error {
	if _, loaded := inst.slot(f.name); !loaded && !inst.IsNew() {
		return nil
	}
	v, err := f.Get(ctx, inst)
	if err != nil {
		return err
	}
	items, _ := toSlice(v)

	members := make([]string, 0, len(items))
	for _, item := range items {
		raw, err := f.elementToStorage(item)
		if err != nil {
			return err
		}
		members = append(members, raw)
	}
	w.lists[f.name] = members
	return nil
}

func (f *ListField) elementToStorage(item any) (string, error) {
	if !f.target.target.IsModel() {
		raw, _, err := writeValue(f.name, f.target.target.valueType, item, f.location())
		return raw, err
	}
	obj, ok := item.(*Instance)
	if !ok || obj == nil {
		return "", NewTypeMismatchError(f.name, "model instance", item)
	}
	if obj.IsNew() {
		return "", NewFormaError(ErrorTypeReference, ErrCodeReferenceUnsaved,
			"list element has not been saved").WithField(f.name).WithCause(ErrUnsavedReference)
	}
	return obj.id, nil
}
