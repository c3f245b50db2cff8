package formakv

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Instance is one record of a model. It owns the per-instance arena of cached
// field values; descriptors never hold instance state. An Instance is not safe
// for concurrent use.
type Instance struct {
	model *Model
	id    string
	slots map[string]any
}

func (i *Instance) Model() *Model { return i.model }

// ID returns the instance id, "" until the first save.
func (i *Instance) ID() string { return i.id }

// IsNew reports whether the instance has not been persisted yet.
func (i *Instance) IsNew() bool { return i.id == "" }

// Key returns the instance's hash key.
func (i *Instance) Key() Key { return i.model.Key(i.id) }

// Loaded reports whether a value for the slot is cached.
func (i *Instance) Loaded(slot string) bool {
	_, ok := i.slots[slot]
	return ok
}

func (i *Instance) store() Store { return i.model.registry.store }

func (i *Instance) slot(name string) (any, bool) {
	v, ok := i.slots[name]
	return v, ok
}

func (i *Instance) setSlot(name string, v any) { i.slots[name] = v }

func (i *Instance) clearSlot(name string) { delete(i.slots, name) }

// Get reads a field, or the related id when name is a reference attname.
func (i *Instance) Get(ctx context.Context, name string) (any, error) {
	if f, ok := i.model.byName[name]; ok {
		return f.Get(ctx, i)
	}
	if ref, ok := i.model.attnames[name]; ok {
		return ref.ID(ctx, i)
	}
	return nil, NewUnknownFieldError(i.model.name, name)
}

// Set assigns a field, or the related id when name is a reference attname.
func (i *Instance) Set(name string, value any) error {
	if f, ok := i.model.byName[name]; ok {
		return f.Set(i, value)
	}
	if ref, ok := i.model.attnames[name]; ok {
		switch id := value.(type) {
		case nil:
			ref.SetID(i, "")
		case string:
			ref.SetID(i, id)
		default:
			return NewTypeMismatchError(name, "string id", value).WithModel(i.model.name)
		}
		return nil
	}
	return NewUnknownFieldError(i.model.name, name)
}

// GetAs reads a field and asserts its type. A nil value yields the zero T.
func GetAs[T any](ctx context.Context, inst *Instance, name string) (T, error) {
	var zero T
	v, err := inst.Get(ctx, name)
	if err != nil || v == nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, NewTypeMismatchError(name, fmt.Sprintf("%T", zero), v).WithModel(inst.model.name)
	}
	return t, nil
}

// Validate validates every field and merges their failures into one
// *ValidationError. Other failures (store reads, unresolved targets) are
// combined alongside it.
func (i *Instance) Validate(ctx context.Context) error {
	ve := NewValidationError()
	var errs error
	for _, f := range i.model.fields {
		err := f.Validate(ctx, i)
		if err == nil {
			continue
		}
		if fve, ok := AsValidationError(err); ok {
			ve.Add(fve.Errors...)
			continue
		}
		errs = multierr.Append(errs, err)
	}
	return multierr.Append(errs, ve.ToError())
}

// Save stamps auto-now fields, validates, allocates an id for new instances
// and writes the hash and list structures. Persisted instances write only the
// slots that were loaded or assigned. A failed save leaves auto-now slots as
// they were before the call.
func (i *Instance) Save(ctx context.Context) (err error) {
	wasNew := i.IsNew()
	restore := i.stampAutoNow(wasNew)
	defer func() {
		if err != nil {
			restore()
		}
	}()

	if err := i.Validate(ctx); err != nil {
		return err
	}

	w := newWriteSet()
	for _, f := range i.model.fields {
		if err := f.save(ctx, i, w); err != nil {
			return err
		}
	}

	if wasNew {
		id, err := i.model.nextID(ctx)
		if err != nil {
			return err
		}
		i.id = id
	}

	if err := i.write(ctx, w); err != nil {
		if wasNew {
			i.id = ""
		}
		return err
	}

	zap.S().Debugw("saved instance",
		"model", i.model.name, "id", i.id, "created", wasNew,
		"fields", len(w.hset), "cleared", len(w.hdel), "lists", len(w.lists))
	return nil
}

func (i *Instance) write(ctx context.Context, w *writeSet) error {
	key := i.Key()
	w.hset[reservedFieldName] = i.id

	if err := i.store().HSet(ctx, key.String(), w.hset); err != nil {
		return NewStoreError(ErrCodeStoreWriteFailed, "write hash", err).WithModel(i.model.name)
	}
	if len(w.hdel) > 0 {
		if err := i.store().HDel(ctx, key.String(), w.hdel...); err != nil {
			return NewStoreError(ErrCodeStoreWriteFailed, "clear hash fields", err).WithModel(i.model.name)
		}
	}
	for _, name := range i.model.listNames {
		members, ok := w.lists[name]
		if !ok {
			continue
		}
		if err := i.store().ListReplace(ctx, key.Sub(name).String(), members); err != nil {
			return NewStoreError(ErrCodeStoreWriteFailed, "write list", err).
				WithModel(i.model.name).WithField(name)
		}
	}
	return nil
}

// stampAutoNow sets the auto-now slots and returns a func that puts back
// their previous state.
func (i *Instance) stampAutoNow(wasNew bool) func() {
	type prior struct {
		value  any
		loaded bool
	}
	saved := make(map[string]prior)
	loc := i.model.registry.location
	now := time.Now().In(loc).Truncate(time.Microsecond)
	for _, f := range i.model.fields {
		sf, ok := f.(*ScalarField)
		if !ok || !(sf.autoNow || (sf.autoNowAdd && wasNew)) {
			continue
		}
		v, loaded := i.slot(sf.name)
		saved[sf.name] = prior{value: v, loaded: loaded}
		if sf.valueType == ValueTypeDate {
			i.setSlot(sf.name, midnight(now, loc))
		} else {
			i.setSlot(sf.name, now)
		}
	}
	return func() {
		for name, p := range saved {
			if p.loaded {
				i.setSlot(name, p.value)
			} else {
				i.clearSlot(name)
			}
		}
	}
}

// Delete removes the instance hash and its lists. The instance keeps its id.
func (i *Instance) Delete(ctx context.Context) error {
	if i.IsNew() {
		return nil
	}
	key := i.Key()
	keys := []string{key.String()}
	for _, name := range i.model.listNames {
		keys = append(keys, key.Sub(name).String())
	}
	if err := i.store().Del(ctx, keys...); err != nil {
		return NewStoreError(ErrCodeStoreWriteFailed, "delete instance", err).WithModel(i.model.name)
	}
	zap.S().Debugw("deleted instance", "model", i.model.name, "id", i.id)
	return nil
}
