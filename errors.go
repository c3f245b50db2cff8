package formakv

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeTypeMismatch  ErrorType = "type_mismatch"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeReference     ErrorType = "reference"
	ErrorTypeStorage       ErrorType = "storage"
	ErrorTypeConversion    ErrorType = "conversion"
	ErrorTypeNotFound      ErrorType = "not_found"
)

// Sentinel errors, matched with errors.Is.
var (
	ErrTypeMismatch     = errors.New("type mismatch")
	ErrUnresolvedTarget = errors.New("unresolved target model")
	ErrValidation       = errors.New("validation failed")
	ErrUnknownField     = errors.New("unknown field")
	ErrUnsavedReference = errors.New("referenced instance has not been saved")
	ErrStore            = errors.New("store operation failed")
)

// Error codes
const (
	ErrCodeTypeMismatch         = "TYPE_MISMATCH"
	ErrCodeTargetModelNotFound  = "TARGET_MODEL_NOT_FOUND"
	ErrCodeInvalidTarget        = "INVALID_TARGET"
	ErrCodeValidationFailed     = "VALIDATION_FAILED"
	ErrCodeUnknownField         = "UNKNOWN_FIELD"
	ErrCodeDuplicateField       = "DUPLICATE_FIELD"
	ErrCodeDuplicateModel       = "DUPLICATE_MODEL"
	ErrCodeInvalidModelName     = "INVALID_MODEL_NAME"
	ErrCodeInvalidFieldName     = "INVALID_FIELD_NAME"
	ErrCodeReferenceUnsaved     = "REFERENCE_UNSAVED"
	ErrCodeConversionFailed     = "CONVERSION_FAILED"
	ErrCodeStoreReadFailed      = "STORE_READ_FAILED"
	ErrCodeStoreWriteFailed     = "STORE_WRITE_FAILED"
	ErrCodeEntityNotFound       = "ENTITY_NOT_FOUND"
	ErrCodeInvalidDocument      = "INVALID_DOCUMENT"
	ErrCodeUnsupportedValueType = "UNSUPPORTED_VALUE_TYPE"
)

// FormaError is the error type returned by field, model and store operations.
type FormaError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Model   string         `json:"model,omitempty"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *FormaError) Error() string {
	switch {
	case e.Model != "" && e.Field != "":
		return fmt.Sprintf("[%s:%s] %s.%s: %s", e.Type, e.Code, e.Model, e.Field, e.Message)
	case e.Field != "":
		return fmt.Sprintf("[%s:%s] field '%s': %s", e.Type, e.Code, e.Field, e.Message)
	case e.Model != "":
		return fmt.Sprintf("[%s:%s] model '%s': %s", e.Type, e.Code, e.Model, e.Message)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

func (e *FormaError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a single detail to a FormaError
func (e *FormaError) WithDetail(key string, value any) *FormaError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause adds a cause to a FormaError
func (e *FormaError) WithCause(cause error) *FormaError {
	e.Cause = cause
	return e
}

// WithField adds field context to a FormaError
func (e *FormaError) WithField(field string) *FormaError {
	e.Field = field
	return e
}

// WithModel adds model context to a FormaError
func (e *FormaError) WithModel(model string) *FormaError {
	e.Model = model
	return e
}

// NewFormaError creates a new FormaError
func NewFormaError(errorType ErrorType, code, message string) *FormaError {
	return &FormaError{
		Type:    errorType,
		Code:    code,
		Message: message,
	}
}

// NewTypeMismatchError reports a value that cannot be assigned to or stored by a field.
func NewTypeMismatchError(field, expected string, got any) *FormaError {
	return &FormaError{
		Type:    ErrorTypeTypeMismatch,
		Code:    ErrCodeTypeMismatch,
		Message: fmt.Sprintf("%s should be %s, and not a %T", field, expected, got),
		Field:   field,
		Cause:   ErrTypeMismatch,
	}
}

// NewUnresolvedTargetError reports a target model name missing from the registry.
func NewUnresolvedTargetError(field, target string) *FormaError {
	return &FormaError{
		Type:    ErrorTypeConfiguration,
		Code:    ErrCodeTargetModelNotFound,
		Message: fmt.Sprintf("unknown model %s", target),
		Field:   field,
		Cause:   ErrUnresolvedTarget,
	}
}

// NewUnknownFieldError reports a field name the model does not declare.
func NewUnknownFieldError(model, field string) *FormaError {
	return &FormaError{
		Type:    ErrorTypeValidation,
		Code:    ErrCodeUnknownField,
		Message: "no such field",
		Model:   model,
		Field:   field,
		Cause:   ErrUnknownField,
	}
}

// NewConversionError wraps a failed storage-to-value conversion.
func NewConversionError(field, raw string, cause error) *FormaError {
	return &FormaError{
		Type:    ErrorTypeConversion,
		Code:    ErrCodeConversionFailed,
		Message: fmt.Sprintf("cannot convert stored value %q", raw),
		Field:   field,
		Cause:   cause,
	}
}

// NewStoreError wraps a failure returned by the store.
func NewStoreError(code, message string, cause error) *FormaError {
	return &FormaError{
		Type:    ErrorTypeStorage,
		Code:    code,
		Message: message,
		Cause:   errors.Join(ErrStore, cause),
	}
}

// ValidationError aggregates the (field, message) failures of one validation pass.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

func (ve *ValidationError) Error() string {
	if len(ve.Errors) == 0 {
		return "no validation errors"
	}
	parts := make([]string, 0, len(ve.Errors))
	for _, fe := range ve.Errors {
		parts = append(parts, fe.String())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Code returns the error code shared by all validation failures.
func (ve *ValidationError) Code() string {
	return ErrCodeValidationFailed
}

// Is makes every ValidationError match ErrValidation.
func (ve *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Add appends failures to the collection
func (ve *ValidationError) Add(errs ...FieldError) {
	ve.Errors = append(ve.Errors, errs...)
}

// HasErrors returns true if there are any errors
func (ve *ValidationError) HasErrors() bool {
	return len(ve.Errors) > 0
}

// ToError returns the ValidationError as an error if there are any errors, nil otherwise
func (ve *ValidationError) ToError() error {
	if ve.HasErrors() {
		return ve
	}
	return nil
}

// Messages returns the failures recorded for one field, in order.
func (ve *ValidationError) Messages(field string) []string {
	var out []string
	for _, fe := range ve.Errors {
		if fe.Field == field {
			out = append(out, fe.Message)
		}
	}
	return out
}

// NewValidationError creates an empty ValidationError
func NewValidationError() *ValidationError {
	return &ValidationError{
		Errors: make([]FieldError, 0),
	}
}

// AsValidationError extracts a *ValidationError from err.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// IsTypeMismatch checks if an error is a type mismatch error
func IsTypeMismatch(err error) bool {
	return errors.Is(err, ErrTypeMismatch)
}

// IsUnresolvedTarget checks if an error is an unresolved target error
func IsUnresolvedTarget(err error) bool {
	return errors.Is(err, ErrUnresolvedTarget)
}

// IsConfigurationError checks if an error is a configuration error
func IsConfigurationError(err error) bool {
	var fe *FormaError
	if errors.As(err, &fe) {
		return fe.Type == ErrorTypeConfiguration
	}
	return false
}
