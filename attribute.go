package formakv

import (
	"context"
	"fmt"
	"time"
)

// Field is a model-level descriptor defining how one named attribute is read,
// written, converted and validated. A Field is shared by every instance of its
// model; per-instance values live in the instance.
type Field interface {
	Name() string
	Indexed() bool
	Required() bool
	ValueType() ValueType

	// Get returns the instance's value, loading and converting it from the
	// store on first access.
	Get(ctx context.Context, inst *Instance) (any, error)
	// Set replaces the instance's cached value. Nothing is persisted.
	Set(inst *Instance, value any) error
	// Validate returns nil or a *ValidationError with every failure for this field.
	Validate(ctx context.Context, inst *Instance) error

	core() *attribute
	prepare(m *Model) error
	save(ctx context.Context, inst *Instance, w *writeSet) error
}

// FieldOption configures a field at construction.
type FieldOption func(*fieldConfig)

type fieldConfig struct {
	indexed     bool
	required    bool
	validator   Validator
	def         any
	defFunc     func() any
	autoNow     bool
	autoNowAdd  bool
	attname     string
	relatedName string
}

func newFieldConfig(opts []FieldOption) fieldConfig {
	cfg := fieldConfig{indexed: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithIndexed sets whether the store should keep a secondary index for the field.
func WithIndexed(indexed bool) FieldOption {
	return func(c *fieldConfig) { c.indexed = indexed }
}

// Required marks the field as required.
func Required() FieldOption {
	return func(c *fieldConfig) { c.required = true }
}

// WithDefault sets the value new instances start with.
func WithDefault(value any) FieldOption {
	return func(c *fieldConfig) {
		c.def = value
		c.defFunc = nil
	}
}

// WithDefaultFunc sets a function producing the value new instances start with.
func WithDefaultFunc(fn func() any) FieldOption {
	return func(c *fieldConfig) {
		c.defFunc = fn
		c.def = nil
	}
}

// WithValidator adds a custom check run after the built-in ones.
func WithValidator(fn Validator) FieldOption {
	return func(c *fieldConfig) { c.validator = fn }
}

// AutoNow sets a datetime or date field to the current time on every save.
func AutoNow() FieldOption {
	return func(c *fieldConfig) { c.autoNow = true }
}

// AutoNowAdd sets a datetime or date field to the current time on the first save.
func AutoNowAdd() FieldOption {
	return func(c *fieldConfig) { c.autoNowAdd = true }
}

// WithAttname overrides the slot a reference field keeps the related id under.
func WithAttname(name string) FieldOption {
	return func(c *fieldConfig) { c.attname = name }
}

// WithRelatedName names the reverse accessor on the target model.
func WithRelatedName(name string) FieldOption {
	return func(c *fieldConfig) { c.relatedName = name }
}

// attribute is the state every field kind shares.
type attribute struct {
	name      string
	indexed   bool
	required  bool
	validator Validator
	def       any
	defFunc   func() any
	model     *Model
}

func newAttribute(name string, cfg fieldConfig) attribute {
	return attribute{
		name:      name,
		indexed:   cfg.indexed,
		required:  cfg.required,
		validator: cfg.validator,
		def:       cfg.def,
		defFunc:   cfg.defFunc,
	}
}

func (a *attribute) Name() string   { return a.name }
func (a *attribute) Indexed() bool  { return a.indexed }
func (a *attribute) Required() bool { return a.required }

// Model returns the model the field is bound to, nil before Define.
func (a *attribute) Model() *Model { return a.model }

func (a *attribute) core() *attribute { return a }

func (a *attribute) defaultValue() any {
	if a.defFunc != nil {
		return a.defFunc()
	}
	return a.def
}

func (a *attribute) prepare(m *Model) error {
	if a.name == "" {
		return NewFormaError(ErrorTypeConfiguration, ErrCodeInvalidFieldName, "field name must not be empty").
			WithModel(m.name)
	}
	if a.model != nil && a.model != m {
		return NewFormaError(ErrorTypeConfiguration, ErrCodeInvalidFieldName,
			fmt.Sprintf("field already belongs to model %s", a.model.name)).
			WithModel(m.name).WithField(a.name)
	}
	return nil
}

func (a *attribute) registry() *Registry {
	if a.model == nil {
		return nil
	}
	return a.model.registry
}

func (a *attribute) location() *time.Location {
	if r := a.registry(); r != nil {
		return r.location
	}
	return time.Local
}

// finish is the shared tail of every Validate: the built-in failures, then the
// custom validator's, reported together.
func (a *attribute) finish(value any, builtin []FieldError) error {
	ve := NewValidationError()
	ve.Add(builtin...)
	if a.validator != nil {
		ve.Add(a.validator(value)...)
	}
	return ve.ToError()
}

// load fetches the raw hash value of slot for a persisted instance.
func (a *attribute) load(ctx context.Context, inst *Instance, slot string) (string, bool, error) {
	raw, found, err := inst.store().HGet(ctx, inst.Key().String(), slot)
	if err != nil {
		return "", false, NewStoreError(ErrCodeStoreReadFailed, "read field", err).
			WithModel(inst.model.name).WithField(slot)
	}
	return raw, found, nil
}

// writeSet collects what one Save writes.
type writeSet struct {
	hset  map[string]string
	hdel  []string
	lists map[string][]string
}

func newWriteSet() *writeSet {
	return &writeSet{
		hset:  make(map[string]string),
		lists: make(map[string][]string),
	}
}

func (w *writeSet) put(field, raw string, present bool) {
	if present {
		w.hset[field] = raw
		return
	}
	w.hdel = append(w.hdel, field)
}
