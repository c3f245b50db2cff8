package formakv

import (
	"fmt"
	"sync"
)

// Target names what a list or reference field points at: a scalar value type,
// or a model given directly or by name. Naming a model breaks declaration
// cycles; the name is resolved against the registry on first use.
type Target struct {
	valueType ValueType
	modelName string
	model     *Model
}

// Of targets a scalar value type.
func Of(vt ValueType) Target {
	return Target{valueType: vt}
}

// ModelNamed targets the model registered under name.
func ModelNamed(name string) Target {
	return Target{valueType: ValueTypeModel, modelName: name}
}

// ModelOf targets an already defined model.
func ModelOf(m *Model) Target {
	return Target{valueType: ValueTypeModel, model: m}
}

// IsModel reports whether the target resolves to model instances.
func (t Target) IsModel() bool {
	return t.model != nil || t.modelName != ""
}

// ValueType returns the element value type, ValueTypeModel for model targets.
func (t Target) ValueType() ValueType {
	if t.IsModel() {
		return ValueTypeModel
	}
	return t.valueType
}

func (t Target) String() string {
	switch {
	case t.model != nil:
		return t.model.Name()
	case t.modelName != "":
		return t.modelName
	}
	return string(t.valueType)
}

// targetResolver memoizes the resolution of a model target. Failure is permanent.
type targetResolver struct {
	target Target

	mu       sync.Mutex
	resolved bool
	model    *Model
	err      error
}

func newTargetResolver(t Target) *targetResolver {
	return &targetResolver{target: t}
}

func (r *targetResolver) resolve(field string, registry *Registry) (*Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolved {
		return r.model, r.err
	}

	switch {
	case r.target.model != nil:
		r.model = r.target.model
	case r.target.modelName == "":
		r.err = NewFormaError(ErrorTypeConfiguration, ErrCodeInvalidTarget,
			fmt.Sprintf("target %s is not a model", r.target)).WithField(field)
	case registry == nil:
		// Not bound yet; leave unresolved so a later call can succeed.
		return nil, NewUnresolvedTargetError(field, r.target.modelName).
			WithDetail("reason", "field is not bound to a model")
	default:
		m, ok := registry.Lookup(r.target.modelName)
		if !ok {
			r.err = NewUnresolvedTargetError(field, r.target.modelName)
		} else {
			r.model = m
		}
	}

	r.resolved = true
	return r.model, r.err
}
