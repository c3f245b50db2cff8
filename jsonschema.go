package formakv

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
)

// Document formats for datetime and date values.
const (
	DocumentDateTimeLayout = time.RFC3339Nano
	DocumentDateLayout     = time.DateOnly
)

// JSONSchema describes the model's document form: one property per field,
// references as their attname holding the related id, and list elements of
// model targets as ids.
func (m *Model) JSONSchema() *jsonschema.Schema {
	s := &jsonschema.Schema{
		Title:      m.name,
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(m.fields)+1),
	}
	s.Properties[reservedFieldName] = &jsonschema.Schema{Type: "string"}

	for _, f := range m.fields {
		switch ff := f.(type) {
		case *ScalarField:
			s.Properties[ff.name] = nullable(scalarSchema(ff.valueType), ff.required)
			if ff.required {
				s.Required = append(s.Required, ff.name)
			}
		case *ListField:
			s.Properties[ff.name] = &jsonschema.Schema{
				Type:  "array",
				Items: scalarSchema(ff.ElementType()),
			}
			if ff.required {
				s.Required = append(s.Required, ff.name)
			}
		case *ReferenceField:
			s.Properties[ff.attname] = nullable(&jsonschema.Schema{
				Type:        "string",
				Description: "id of the referenced " + ff.target.target.String(),
			}, ff.required)
			if ff.required {
				s.Required = append(s.Required, ff.attname)
			}
		}
	}
	return s
}

func scalarSchema(vt ValueType) *jsonschema.Schema {
	switch vt {
	case ValueTypeInteger:
		return &jsonschema.Schema{Type: "integer"}
	case ValueTypeFloat:
		return &jsonschema.Schema{Type: "number"}
	case ValueTypeBool:
		return &jsonschema.Schema{Type: "boolean"}
	case ValueTypeDateTime:
		return &jsonschema.Schema{Type: "string", Format: "date-time"}
	case ValueTypeDate:
		return &jsonschema.Schema{Type: "string", Format: "date"}
	case ValueTypeUUID:
		return &jsonschema.Schema{Type: "string", Format: "uuid"}
	default:
		// strings and model ids
		return &jsonschema.Schema{Type: "string"}
	}
}

func nullable(s *jsonschema.Schema, required bool) *jsonschema.Schema {
	if required {
		return s
	}
	s.Types = []string{s.Type, "null"}
	s.Type = ""
	return s
}

// ToDocument renders the instance as a JSON-ready map, loading every field.
func (i *Instance) ToDocument(ctx context.Context) (map[string]any, error) {
	doc := make(map[string]any, len(i.model.fields)+1)
	if !i.IsNew() {
		doc[reservedFieldName] = i.id
	}

	loc := i.model.registry.location
	for _, f := range i.model.fields {
		switch ff := f.(type) {
		case *ReferenceField:
			id, err := ff.ID(ctx, i)
			if err != nil {
				return nil, err
			}
			if id == "" {
				doc[ff.attname] = nil
			} else {
				doc[ff.attname] = id
			}
		case *ListField:
			v, err := ff.Get(ctx, i)
			if err != nil {
				return nil, err
			}
			items, _ := toSlice(v)
			out := make([]any, 0, len(items))
			for _, item := range items {
				if obj, ok := item.(*Instance); ok {
					out = append(out, obj.id)
					continue
				}
				out = append(out, documentValue(ff.ElementType(), item, loc))
			}
			doc[ff.name] = out
		case *ScalarField:
			v, err := ff.Get(ctx, i)
			if err != nil {
				return nil, err
			}
			doc[ff.name] = documentValue(ff.valueType, v, loc)
		}
	}
	return doc, nil
}

func documentValue(vt ValueType, v any, loc *time.Location) any {
	if isNil(v) {
		return nil
	}
	switch vt {
	case ValueTypeDateTime:
		if t, ok, _ := asTime(v); ok {
			return t.In(loc).Format(DocumentDateTimeLayout)
		}
	case ValueTypeDate:
		if t, ok, _ := asTime(v); ok {
			return t.In(loc).Format(DocumentDateLayout)
		}
	case ValueTypeUUID:
		if u, ok := v.(uuid.UUID); ok {
			return u.String()
		}
		if u, ok := v.(*uuid.UUID); ok {
			return u.String()
		}
	}
	return v
}

// ValidateDocument checks doc against the model's JSON schema.
func (m *Model) ValidateDocument(doc map[string]any) error {
	// Round-trip so Go-typed values validate as their JSON forms.
	data, err := json.Marshal(doc)
	if err != nil {
		return NewFormaError(ErrorTypeValidation, ErrCodeInvalidDocument, "failed to encode document").
			WithModel(m.name).WithCause(err)
	}
	var normalized any
	if err := json.Unmarshal(data, &normalized); err != nil {
		return NewFormaError(ErrorTypeValidation, ErrCodeInvalidDocument, "failed to decode document").
			WithModel(m.name).WithCause(err)
	}

	resolved, err := m.JSONSchema().Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return NewFormaError(ErrorTypeConfiguration, ErrCodeInvalidDocument, "failed to resolve JSON schema").
			WithModel(m.name).WithCause(err)
	}
	if err := resolved.Validate(normalized); err != nil {
		return NewFormaError(ErrorTypeValidation, ErrCodeInvalidDocument, "document does not match schema").
			WithModel(m.name).WithCause(err)
	}
	return nil
}

// FromDocument validates doc and builds a new, unsaved instance from it. Model
// ids in lists and references must resolve. A document "id" is ignored.
// An empty reference id leaves the reference unset.
func (m *Model) FromDocument(ctx context.Context, doc map[string]any) (*Instance, error) {
	if err := m.ValidateDocument(doc); err != nil {
		return nil, err
	}

	inst := m.New()
	for key, raw := range doc {
		if key == reservedFieldName {
			continue
		}
		if ref, ok := m.attnames[key]; ok {
			id, _ := raw.(string)
			obj, err := m.referenceFromDocument(ctx, ref, id)
			if err != nil {
				return nil, err
			}
			ref.SetID(inst, id)
			if obj != nil {
				inst.setSlot(ref.name, obj)
			}
			continue
		}
		f, ok := m.byName[key]
		if !ok {
			return nil, NewUnknownFieldError(m.name, key)
		}

		switch ff := f.(type) {
		case *ScalarField:
			v, err := fromDocumentValue(ff.name, ff.valueType, raw, m.registry.location)
			if err != nil {
				return nil, err
			}
			inst.setSlot(ff.name, v)
		case *ListField:
			items, err := m.listFromDocument(ctx, ff, raw)
			if err != nil {
				return nil, err
			}
			inst.setSlot(ff.name, items)
		}
	}
	return inst, nil
}

func (m *Model) referenceFromDocument(ctx context.Context, f *ReferenceField, id string) (*Instance, error) {
	if id == "" {
		return nil, nil
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
		return nil, NewFormaError(ErrorTypeReference, ErrCodeEntityNotFound,
			fmt.Sprintf("%s %s does not exist", target.name, id)).
			WithModel(m.name).WithField(f.name)
	}
	return obj, nil
}

func (m *Model) listFromDocument(ctx context.Context, f *ListField, raw any) ([]any, error) {
	elems, _ := toSlice(raw)
	items := make([]any, 0, len(elems))
	if !f.target.target.IsModel() {
		for _, e := range elems {
			v, err := fromDocumentValue(f.name, f.ElementType(), e, m.registry.location)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	}

	target, err := f.TargetModel()
	if err != nil {
		return nil, err
	}
	for _, e := range elems {
		id := fmt.Sprint(e)
		obj, err := target.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if obj == nil {
			return nil, NewFormaError(ErrorTypeReference, ErrCodeEntityNotFound,
				fmt.Sprintf("%s %s does not exist", target.name, id)).
				WithModel(m.name).WithField(f.name)
		}
		items = append(items, obj)
	}
	return items, nil
}

func fromDocumentValue(field string, vt ValueType, raw any, loc *time.Location) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch vt {
	case ValueTypeInteger:
		switch n := raw.(type) {
		case float64:
			if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
				return nil, NewTypeMismatchError(field, "an integer", raw)
			}
			return int64(n), nil
		case json.Number:
			i, err := n.Int64()
			if err != nil {
				return nil, NewTypeMismatchError(field, "an integer", raw)
			}
			return i, nil
		}
		if n, ok := asInt64(raw); ok {
			return n, nil
		}
		return nil, NewTypeMismatchError(field, "an integer", raw)
	case ValueTypeFloat:
		switch n := raw.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		}
		if n, ok := asInt64(raw); ok {
			return float64(n), nil
		}
		return nil, NewTypeMismatchError(field, "a float", raw)
	case ValueTypeDateTime, ValueTypeDate:
		if t, ok, _ := asTime(raw); ok {
			return t, nil
		}
		s, ok := raw.(string)
		if !ok {
			return nil, NewTypeMismatchError(field, "a timestamp string", raw)
		}
		if vt == ValueTypeDate {
			t, err := time.ParseInLocation(DocumentDateLayout, s, loc)
			if err != nil {
				return nil, NewConversionError(field, s, err)
			}
			return t, nil
		}
		t, err := time.Parse(DocumentDateTimeLayout, s)
		if err != nil {
			return nil, NewConversionError(field, s, err)
		}
		return t.In(loc), nil
	case ValueTypeUUID:
		if u, ok := raw.(uuid.UUID); ok {
			return u, nil
		}
		u, err := uuid.Parse(fmt.Sprint(raw))
		if err != nil {
			return nil, NewConversionError(field, fmt.Sprint(raw), err)
		}
		return u, nil
	}
	return raw, nil
}
