package formakv

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ReferenceField is a to-one relationship. The related instance's id lives in
// the attname slot of the owning instance (stored as a hash field of that
// name); the resolved instance is cached per owning instance.
type ReferenceField struct {
	attribute
	target      *targetResolver
	attname     string
	relatedName string
}

// NewReferenceField declares a reference to instances of target, which must be
// a model target.
func NewReferenceField(name string, target Target, opts ...FieldOption) *ReferenceField {
	cfg := newFieldConfig(opts)
	attname := cfg.attname
	if attname == "" {
		attname = name + "_id"
	}
	return &ReferenceField{
		attribute:   newAttribute(name, cfg),
		target:      newTargetResolver(target),
		attname:     attname,
		relatedName: cfg.relatedName,
	}
}

func (f *ReferenceField) ValueType() ValueType { return ValueTypeModel }

// Attname is the slot holding the related instance's id.
func (f *ReferenceField) Attname() string { return f.attname }

// RelatedName is the reverse accessor name declared for the target model.
func (f *ReferenceField) RelatedName() string { return f.relatedName }

// Target returns the declared target.
func (f *ReferenceField) Target() Target { return f.target.target }

// TargetModel resolves the target model.
func (f *ReferenceField) TargetModel() (*Model, error) {
	return f.target.resolve(f.name, f.registry())
}

func (f *ReferenceField) prepare(m *Model) error {
	if err := f.attribute.prepare(m); err != nil {
		return err
	}
	if !f.target.target.IsModel() {
		return NewFormaError(ErrorTypeConfiguration, ErrCodeInvalidTarget,
			fmt.Sprintf("reference target %s is not a model", f.target.target)).
			WithModel(m.name).WithField(f.name)
	}
	return nil
}

// ID returns the related instance's id, "" when none is set.
func (f *ReferenceField) ID(ctx context.Context, inst *Instance) (string, error) {
	if v, ok := inst.slot(f.attname); ok {
		id, _ := v.(string)
		return id, nil
	}
	if inst.IsNew() {
		return "", nil
	}

	raw, _, err := f.load(ctx, inst, f.attname)
	if err != nil {
		return "", err
	}
	inst.setSlot(f.attname, raw)
	return raw, nil
}

// SetID points the reference at id and drops the cached related instance.
func (f *ReferenceField) SetID(inst *Instance, id string) {
	inst.setSlot(f.attname, id)
	inst.clearSlot(f.name)
}

// Set accepts nil or an instance of the target model; anything else fails
// immediately with ErrTypeMismatch.
func (f *ReferenceField) Set(inst *Instance, value any) error {
	target, err := f.TargetModel()
	if err != nil {
		return err
	}
	if isNil(value) {
		f.SetID(inst, "")
		return nil
	}

	obj, ok := value.(*Instance)
	if !ok || obj.model != target {
		return NewTypeMismatchError(f.name, target.name+" instance", value).WithModel(inst.model.name)
	}
	if obj.IsNew() {
		return NewFormaError(ErrorTypeReference, ErrCodeReferenceUnsaved,
			"referenced instance has not been saved").
			WithModel(inst.model.name).WithField(f.name).WithCause(ErrUnsavedReference)
	}
	f.SetID(inst, obj.id)
	return nil
}

func (f *ReferenceField) Get(ctx context.Context, inst *Instance) (any, error) {
	if v, ok := inst.slot(f.name); ok {
		return v, nil
	}

	id, err := f.ID(ctx, inst)
	if err != nil {
		return nil, err
	}
	if id == "" {
		v := f.defaultValue()
		inst.setSlot(f.name, v)
		return v, nil
	}

	target, err := f.TargetModel()
	if err != nil {
		return nil, err
	}
	obj, err := target.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		zap.S().Debugw("reference target missing",
			"model", inst.model.name, "field", f.name, "target", target.name, "id", id)
		inst.setSlot(f.name, nil)
		return nil, nil
	}
	inst.setSlot(f.name, obj)
	return obj, nil
}

func (f *ReferenceField) Validate(ctx context.Context, inst *Instance) error {
	v, err := f.Get(ctx, inst)
	if err != nil {
		return err
	}

	var errs []FieldError
	if truthy(v) {
		target, err := f.TargetModel()
		if err != nil {
			return err
		}
		if obj, ok := v.(*Instance); !ok || obj.model != target {
			errs = append(errs, FieldError{Field: f.name, Message: MessageBadTypeForReference})
		}
	}
	if f.required && !truthy(v) {
		errs = append(errs, FieldError{Field: f.name, Message: MessageRequired})
	}
	return f.finish(v, errs)
}

func (f *ReferenceField) save(ctx context.Context, inst *Instance, w *writeSet) error {
	if _, loaded := inst.slot(f.attname); !loaded && !inst.IsNew() {
		return nil
	}
	id, err := f.ID(ctx, inst)
	if err != nil {
		return err
	}
	w.put(f.attname, id, id != "")
	return nil
}
