package services

import (
	"errors"
	"strings"
)

var (
	// ErrValidation marks bad input; handlers answer 400.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a missing record; handlers answer 404.
	ErrNotFound = errors.New("not found")
	// ErrStorage marks a persistence failure; handlers answer 500 with a generic message.
	ErrStorage = errors.New("storage failed")
	// ErrUpstream marks a failing external dependency such as the geocoder.
	ErrUpstream = errors.New("upstream failed")
)

// FieldError describes one invalid input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every invalid field of a request
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrValidation) hold for any ValidationError
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Add records a field problem
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns nil when no field failed
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
