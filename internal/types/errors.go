package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for structural failures. Structural failures abort the
// whole run; record-level problems never produce an error.
var (
	// ErrSchema indicates that required columns could not be found.
	ErrSchema = errors.New("schema mismatch")

	// ErrInput indicates an unreadable or empty input file.
	ErrInput = errors.New("unreadable input")

	// ErrUnknownCategory indicates a report category with no schema.
	ErrUnknownCategory = errors.New("unknown report category")
)

// SchemaError lists the columns a source is missing.
type SchemaError struct {
	Source  string
	Missing []string
}

// Error implements the error interface
func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: missing required columns: %s", e.Source, strings.Join(e.Missing, ", "))
}

// Is implements errors.Is support
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

// NewSchemaError creates a new SchemaError
func NewSchemaError(source string, missing ...string) *SchemaError {
	return &SchemaError{Source: source, Missing: missing}
}

// InputError wraps a failure to read an input file.
type InputError struct {
	Path string
	Err  error
}

// Error implements the error interface
func (e *InputError) Error() string {
	return fmt.Sprintf("cannot read %s: %v", e.Path, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *InputError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *InputError) Is(target error) bool {
	return target == ErrInput
}

// NewInputError creates a new InputError
func NewInputError(path string, err error) *InputError {
	return &InputError{Path: path, Err: err}
}
