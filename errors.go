package ormkit

import (
	"errors"
	"fmt"

	"github.com/ormkit/ormkit/pkg/query"
	"github.com/ormkit/ormkit/pkg/schema"
)

// Re-exported error types so callers only need errors.As against this
// package for the full taxonomy.
type (
	// SchemaError reports an invalid model declaration.
	SchemaError = schema.SchemaError
	// FieldResolutionError reports an unknown field or relation path.
	FieldResolutionError = query.FieldResolutionError
)

var (
	// ErrDoesNotExist is returned by Get when no row matches.
	ErrDoesNotExist = errors.New("ormkit: object does not exist")
	// ErrMultipleObjectsReturned is returned by Get when the predicate
	// matches more than one row.
	ErrMultipleObjectsReturned = errors.New("ormkit: multiple objects returned")
)

// ValidationError reports a value that failed type coercion or a declared
// constraint during materialization, create, or update.
type ValidationError struct {
	Model  string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ormkit: %s.%s: %s", e.Model, e.Field, e.Reason)
}

func validationErr(model, field, format string, args ...any) *ValidationError {
	return &ValidationError{Model: model, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// AttributeAccessError reports a read of a non-key attribute on a sparse
// foreign-key reference before it has been loaded.
type AttributeAccessError struct {
	Field string
}

func (e *AttributeAccessError) Error() string {
	name := e.Field
	if name == "" {
		name = "reference"
	}
	return fmt.Sprintf("ormkit: %s is not loaded: call Load or use SelectRelated", name)
}

// UnboundInstanceError reports an update, delete, or refresh on an instance
// whose primary key is not populated.
type UnboundInstanceError struct {
	Model string
	Op    string
}

func (e *UnboundInstanceError) Error() string {
	return fmt.Sprintf("ormkit: cannot %s %s instance without a primary key", e.Op, e.Model)
}
