package formakv

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Model is a defined model type: a name plus its field descriptors.
type Model struct {
	name      string
	registry  *Registry
	fields    []Field
	byName    map[string]Field
	attnames  map[string]*ReferenceField
	listNames []string
}

func (m *Model) Name() string { return m.name }

// Registry returns the registry the model was defined in.
func (m *Model) Registry() *Registry { return m.registry }

// Fields returns the field descriptors in declaration order.
func (m *Model) Fields() []Field {
	out := make([]Field, len(m.fields))
	copy(out, m.fields)
	return out
}

// Field returns the descriptor declared under name.
func (m *Model) Field(name string) (Field, bool) {
	f, ok := m.byName[name]
	return f, ok
}

// Key returns the hash key of the instance with the given id.
func (m *Model) Key(id string) Key {
	if m.registry.keyPrefix != "" {
		return newKey(m.registry.keyPrefix, m.name, id)
	}
	return newKey(m.name, id)
}

func (m *Model) counterKey() Key {
	return m.Key(reservedFieldName)
}

// New returns an unsaved instance.
func (m *Model) New() *Instance {
	return &Instance{
		model: m,
		slots: make(map[string]any),
	}
}

// GetByID returns the persisted instance with id, or nil when none exists.
// Ids containing ':' name sub-keys, never instances. Field values load lazily
// on access.
func (m *Model) GetByID(ctx context.Context, id string) (*Instance, error) {
	if id == "" || id == reservedFieldName || strings.Contains(id, ":") {
		return nil, nil
	}
	exists, err := m.registry.store.Exists(ctx, m.Key(id).String())
	if err != nil {
		return nil, NewStoreError(ErrCodeStoreReadFailed, "check existence", err).
			WithModel(m.name).WithDetail("id", id)
	}
	if !exists {
		return nil, nil
	}
	return &Instance{
		model: m,
		id:    id,
		slots: make(map[string]any),
	}, nil
}

func (m *Model) nextID(ctx context.Context) (string, error) {
	switch m.registry.idStrategy {
	case IDStrategyUUID:
		id, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("generate uuid: %w", err)
		}
		return id.String(), nil
	default:
		n, err := m.registry.store.Incr(ctx, m.counterKey().String())
		if err != nil {
			return "", NewStoreError(ErrCodeStoreWriteFailed, "allocate id", err).WithModel(m.name)
		}
		return strconv.FormatInt(n, 10), nil
	}
}
