package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FieldMapper transforms a CSV field value into a document value.
type FieldMapper interface {
	Map(csvValue string) (any, error)
}

// FieldMapperFunc adapts a function to FieldMapper.
type FieldMapperFunc func(csvValue string) (any, error)

func (f FieldMapperFunc) Map(csvValue string) (any, error) { return f(csvValue) }

// FieldMapping describes a single mapping from CSV column to document field.
type FieldMapping struct {
	CSVColumn string
	Field     string
	Mapper    FieldMapper
	Required  bool
}

// CSVToModelMapper maps CSV records to documents of one model.
type CSVToModelMapper interface {
	ModelName() string
	Mappings() []FieldMapping
	// MapRecord transforms a CSV record (column->value) into a model document.
	MapRecord(csvRecord map[string]string) (map[string]any, error)
}

// MapperBuilder provides a fluent API for building CSV to model mappers.
type MapperBuilder struct {
	modelName string
	mappings  []FieldMapping
}

func NewMapperBuilder(modelName string) *MapperBuilder {
	return &MapperBuilder{modelName: modelName}
}

// Map adds a string mapping.
func (b *MapperBuilder) Map(csvColumn, field string) *MapperBuilder {
	return b.MapWith(csvColumn, field, Identity())
}

// MapWith adds a mapping with a custom transform.
func (b *MapperBuilder) MapWith(csvColumn, field string, mapper FieldMapper) *MapperBuilder {
	b.mappings = append(b.mappings, FieldMapping{CSVColumn: csvColumn, Field: field, Mapper: mapper})
	return b
}

// RequiredWith adds a mapping whose column must not be blank.
func (b *MapperBuilder) RequiredWith(csvColumn, field string, mapper FieldMapper) *MapperBuilder {
	b.mappings = append(b.mappings, FieldMapping{CSVColumn: csvColumn, Field: field, Mapper: mapper, Required: true})
	return b
}

func (b *MapperBuilder) Build() CSVToModelMapper {
	return &modelMapper{modelName: b.modelName, mappings: b.mappings}
}

type modelMapper struct {
	modelName string
	mappings  []FieldMapping
}

func (m *modelMapper) ModelName() string        { return m.modelName }
func (m *modelMapper) Mappings() []FieldMapping { return m.mappings }

func (m *modelMapper) MapRecord(csvRecord map[string]string) (map[string]any, error) {
	doc := make(map[string]any, len(m.mappings))
	for _, mapping := range m.mappings {
		csvValue, exists := csvRecord[mapping.CSVColumn]
		blank := !exists || strings.TrimSpace(csvValue) == ""

		if blank {
			if mapping.Required {
				return nil, &MappingError{
					CSVColumn: mapping.CSVColumn,
					Field:     mapping.Field,
					RawValue:  csvValue,
					Reason:    "required field is empty",
				}
			}
			continue
		}

		v, err := mapping.Mapper.Map(strings.TrimSpace(csvValue))
		if err != nil {
			return nil, &MappingError{
				CSVColumn: mapping.CSVColumn,
				Field:     mapping.Field,
				RawValue:  csvValue,
				Reason:    err.Error(),
			}
		}
		doc[mapping.Field] = v
	}
	return doc, nil
}

// MappingError represents an error that occurred during field mapping.
type MappingError struct {
	CSVColumn string
	Field     string
	RawValue  string
	Reason    string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("column %q -> field %q: value %q - %s", e.CSVColumn, e.Field, e.RawValue, e.Reason)
}

func Identity() FieldMapper {
	return FieldMapperFunc(func(v string) (any, error) { return v, nil })
}

func ToInt64() FieldMapper {
	return FieldMapperFunc(func(v string) (any, error) {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %w", err)
		}
		return n, nil
	})
}

func ToFloat64() FieldMapper {
	return FieldMapperFunc(func(v string) (any, error) {
		f, err := strconv.ParseFloat(strings.TrimPrefix(v, "$"), 64)
		if err != nil {
			return nil, fmt.Errorf("not a number: %w", err)
		}
		return f, nil
	})
}

func ToBool() FieldMapper {
	return FieldMapperFunc(func(v string) (any, error) {
		switch strings.ToLower(v) {
		case "y", "yes", "true", "1":
			return true, nil
		case "n", "no", "false", "0":
			return false, nil
		}
		return nil, fmt.Errorf("not a boolean")
	})
}

// ToDate normalizes a date in layout to the document date form.
func ToDate(layout string) FieldMapper {
	return FieldMapperFunc(func(v string) (any, error) {
		t, err := time.Parse(layout, v)
		if err != nil {
			return nil, fmt.Errorf("not a date: %w", err)
		}
		return t.Format(time.DateOnly), nil
	})
}

// Split splits a value into a trimmed list, dropping empty parts.
func Split(separator string) FieldMapper {
	return FieldMapperFunc(func(v string) (any, error) {
		parts := strings.Split(v, separator)
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	})
}
