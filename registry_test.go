package formakv

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryDefine(t *testing.T) {
	registry, _ := newTestRegistry(t)
	author := registry.MustDefine("Author", NewStringField("name"))
	book := registry.MustDefine("Book",
		NewStringField("title"),
		NewReferenceField("author", ModelOf(author)),
		NewListField("tags", Of(ValueTypeString)),
	)

	assert.Equal(t, []string{"Author", "Book"}, registry.Models())
	got, ok := registry.Lookup("Book")
	require.True(t, ok)
	assert.Same(t, book, got)
	assert.Same(t, registry, book.Registry())

	names := make([]string, 0)
	for _, f := range book.Fields() {
		names = append(names, f.Name())
		assert.Same(t, book, f.core().Model())
	}
	assert.Equal(t, []string{"title", "author", "tags"}, names)

	_, ok = book.Field("author_id")
	assert.False(t, ok, "attnames are not fields")

	_, ok = registry.Lookup("Missing")
	assert.False(t, ok)
}

func TestRegistryDefineErrors(t *testing.T) {
	tests := []struct {
		name     string
		model    string
		fields   func(shared Field) []Field
		wantCode string
	}{
		{name: "empty model name", model: "", fields: func(Field) []Field { return nil },
			wantCode: ErrCodeInvalidModelName},
		{name: "colon in model name", model: "a:b", fields: func(Field) []Field { return nil },
			wantCode: ErrCodeInvalidModelName},
		{name: "duplicate field", model: "Dup",
			fields: func(Field) []Field {
				return []Field{NewStringField("name"), NewIntegerField("name")}
			},
			wantCode: ErrCodeDuplicateField},
		{name: "reserved id", model: "Reserved",
			fields:   func(Field) []Field { return []Field{NewStringField("id")} },
			wantCode: ErrCodeDuplicateField},
		{name: "attname collides with field", model: "Collide",
			fields: func(Field) []Field {
				return []Field{NewStringField("owner_id"), NewReferenceField("owner", ModelNamed("Person"))}
			},
			wantCode: ErrCodeDuplicateField},
		{name: "empty field name", model: "Blank",
			fields:   func(Field) []Field { return []Field{NewStringField("")} },
			wantCode: ErrCodeInvalidFieldName},
		{name: "nil field", model: "Nil",
			fields:   func(Field) []Field { return []Field{nil} },
			wantCode: ErrCodeInvalidFieldName},
		{name: "field bound elsewhere", model: "Second",
			fields:   func(shared Field) []Field { return []Field{shared} },
			wantCode: ErrCodeInvalidFieldName},
		{name: "duplicate model", model: "First",
			fields:   func(Field) []Field { return []Field{NewStringField("other")} },
			wantCode: ErrCodeDuplicateModel},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			registry, _ := newTestRegistry(t)
			shared := NewStringField("name")
			registry.MustDefine("First", shared)

			_, err := registry.Define(tt.model, tt.fields(shared)...)
			var fe *FormaError
			require.True(t, errors.As(err, &fe), "got %v", err)
			assert.Equal(t, tt.wantCode, fe.Code)
			assert.True(t, IsConfigurationError(err))
			assert.Equal(t, []string{"First"}, registry.Models())
		})
	}
}

func TestRegistryFailedDefineLeavesFieldsUnbound(t *testing.T) {
	registry, _ := newTestRegistry(t)
	name := NewStringField("name")
	_, err := registry.Define("Bad", name, NewStringField("name"))
	require.Error(t, err)
	assert.Nil(t, name.Model())

	m, err := registry.Define("Good", name)
	require.NoError(t, err)
	assert.Same(t, m, name.Model())
}

func TestMustDefinePanics(t *testing.T) {
	registry, _ := newTestRegistry(t)
	assert.Panics(t, func() { registry.MustDefine("") })
}

func TestRegistryOptions(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	registry := NewRegistry(nil, WithLocation(loc), WithIDStrategy(IDStrategyUUID), WithKeyPrefix("app:"))
	assert.Same(t, loc, registry.Location())
	assert.Equal(t, IDStrategyUUID, registry.IDStrategy())

	m := registry.MustDefine("Note")
	assert.Equal(t, Key("app:Note:7"), m.Key("7"))
	assert.Equal(t, "app:Note:7:tags", m.Key("7").Sub("tags").String())
	assert.Equal(t, Key("app:Note:id"), m.counterKey())

	defaults := NewRegistry(nil, WithLocation(nil), WithIDStrategy(""))
	assert.Equal(t, time.Local, defaults.Location())
	assert.Equal(t, IDStrategySequence, defaults.IDStrategy())
	assert.Equal(t, Key("Note:id"), defaults.MustDefine("Note").counterKey())
}
