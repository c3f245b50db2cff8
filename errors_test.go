package formakv

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormaErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *FormaError
		want string
	}{
		{name: "bare", err: NewFormaError(ErrorTypeStorage, ErrCodeStoreReadFailed, "boom"),
			want: "[storage:STORE_READ_FAILED] boom"},
		{name: "field only", err: NewFormaError(ErrorTypeValidation, ErrCodeUnknownField, "no such field").WithField("x"),
			want: "[validation:UNKNOWN_FIELD] field 'x': no such field"},
		{name: "model only", err: NewFormaError(ErrorTypeConfiguration, ErrCodeDuplicateModel, "exists").WithModel("Book"),
			want: "[configuration:DUPLICATE_MODEL] model 'Book': exists"},
		{name: "model and field", err: NewUnknownFieldError("Book", "subtitle"),
			want: "[validation:UNKNOWN_FIELD] Book.subtitle: no such field"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error(), tt.name)
	}
}

func TestFormaErrorSentinels(t *testing.T) {
	mismatch := NewTypeMismatchError("age", "an integer", "x")
	assert.True(t, IsTypeMismatch(mismatch))
	assert.True(t, IsTypeMismatch(fmt.Errorf("wrapped: %w", mismatch)))
	assert.Contains(t, mismatch.Error(), "not a string")

	unresolved := NewUnresolvedTargetError("author", "Ghost")
	assert.True(t, IsUnresolvedTarget(unresolved))
	assert.True(t, IsConfigurationError(unresolved))
	assert.False(t, IsConfigurationError(mismatch))

	cause := errors.New("dial tcp: refused")
	storeErr := NewStoreError(ErrCodeStoreWriteFailed, "write hash", cause)
	assert.ErrorIs(t, storeErr, ErrStore)
	assert.ErrorIs(t, storeErr, cause)

	conv := NewConversionError("age", "old", cause)
	assert.ErrorIs(t, conv, cause)
	assert.Equal(t, "age", conv.Field)

	detailed := NewFormaError(ErrorTypeNotFound, ErrCodeEntityNotFound, "missing").
		WithDetail("id", "7").WithCause(cause)
	assert.Equal(t, map[string]any{"id": "7"}, detailed.Details)
	assert.ErrorIs(t, detailed, cause)
}

func TestValidationError(t *testing.T) {
	ve := NewValidationError()
	assert.False(t, ve.HasErrors())
	assert.NoError(t, ve.ToError())

	ve.Add(
		FieldError{Field: "name", Message: MessageRequired},
		FieldError{Field: "age", Message: MessageBadType},
		FieldError{Field: "name", Message: "too short"},
	)
	err := ve.ToError()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, ErrCodeValidationFailed, ve.Code())
	assert.Equal(t, "validation failed: name: required; age: bad type; name: too short", err.Error())
	assert.Equal(t, []string{MessageRequired, "too short"}, ve.Messages("name"))
	assert.Nil(t, ve.Messages("missing"))

	got, ok := AsValidationError(fmt.Errorf("save: %w", err))
	require.True(t, ok)
	assert.Same(t, ve, got)

	_, ok = AsValidationError(errors.New("other"))
	assert.False(t, ok)
}
