package formakv

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// IDStrategy selects how new instances get their ids.
type IDStrategy string

const (
	// IDStrategySequence increments the "<Model>:id" counter in the store.
	IDStrategySequence IDStrategy = "sequence"
	// IDStrategyUUID uses time-ordered UUIDv7 strings.
	IDStrategyUUID IDStrategy = "uuid"
)

// reservedFieldName is written into every saved hash so that instances with no
// stored attributes still exist.
const reservedFieldName = "id"

// Registry holds the models defined against one store. Named targets of list
// and reference fields resolve through it.
type Registry struct {
	store      Store
	location   *time.Location
	idStrategy IDStrategy
	keyPrefix  string

	mu     sync.RWMutex
	models map[string]*Model
	order  []string
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLocation sets the zone datetime and date values are read into.
func WithLocation(loc *time.Location) RegistryOption {
	return func(r *Registry) {
		if loc != nil {
			r.location = loc
		}
	}
}

// WithIDStrategy sets how new instances get their ids.
func WithIDStrategy(s IDStrategy) RegistryOption {
	return func(r *Registry) {
		if s != "" {
			r.idStrategy = s
		}
	}
}

// WithKeyPrefix namespaces every key written by the registry's models.
func WithKeyPrefix(prefix string) RegistryOption {
	return func(r *Registry) { r.keyPrefix = strings.TrimSuffix(prefix, ":") }
}

// NewRegistry creates an empty registry over store.
func NewRegistry(store Store, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:      store,
		location:   time.Local,
		idStrategy: IDStrategySequence,
		models:     make(map[string]*Model),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the backing store.
func (r *Registry) Store() Store { return r.store }

// Location returns the zone datetime and date values are read into.
func (r *Registry) Location() *time.Location { return r.location }

// IDStrategy returns how new instances get their ids.
func (r *Registry) IDStrategy() IDStrategy { return r.idStrategy }

// Define registers a model and binds its fields. Field names must be non-empty
// and unique, must not collide with reference attnames, and "id" is reserved.
func (r *Registry) Define(name string, fields ...Field) (*Model, error) {
	if name == "" || strings.Contains(name, ":") {
		return nil, NewFormaError(ErrorTypeConfiguration, ErrCodeInvalidModelName,
			fmt.Sprintf("invalid model name %q", name))
	}

	m := &Model{
		name:      name,
		registry:  r,
		fields:    make([]Field, 0, len(fields)),
		byName:    make(map[string]Field, len(fields)),
		attnames:  make(map[string]*ReferenceField),
		listNames: make([]string, 0),
	}

	slots := map[string]bool{reservedFieldName: true}
	claim := func(slot string) error {
		if slots[slot] {
			return NewFormaError(ErrorTypeConfiguration, ErrCodeDuplicateField, "duplicate or reserved field name").
				WithModel(name).WithField(slot)
		}
		slots[slot] = true
		return nil
	}

	for _, f := range fields {
		if f == nil {
			return nil, NewFormaError(ErrorTypeConfiguration, ErrCodeInvalidFieldName, "nil field").WithModel(name)
		}
		if err := f.prepare(m); err != nil {
			return nil, err
		}
		if err := claim(f.Name()); err != nil {
			return nil, err
		}
		if ref, ok := f.(*ReferenceField); ok {
			if err := claim(ref.attname); err != nil {
				return nil, err
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.models[name]; exists {
		return nil, NewFormaError(ErrorTypeConfiguration, ErrCodeDuplicateModel, "model already defined").WithModel(name)
	}

	for _, f := range fields {
		f.core().model = m
		m.fields = append(m.fields, f)
		m.byName[f.Name()] = f
		switch ff := f.(type) {
		case *ReferenceField:
			m.attnames[ff.attname] = ff
		case *ListField:
			m.listNames = append(m.listNames, ff.name)
		}
	}
	r.models[name] = m
	r.order = append(r.order, name)
	return m, nil
}

// MustDefine is Define that panics on error, for package-level declarations.
func (r *Registry) MustDefine(name string, fields ...Field) *Model {
	m, err := r.Define(name, fields...)
	if err != nil {
		panic(err)
	}
	return m
}

// Lookup returns the model registered under name.
func (r *Registry) Lookup(name string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	return m, ok
}

// Models lists model names in definition order.
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
