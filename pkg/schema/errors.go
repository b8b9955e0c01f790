package schema

import "fmt"

// SchemaError reports an invalid model declaration: a missing or duplicated
// primary key, an illegal constraint combination, or an unmappable field.
type SchemaError struct {
	Model  string
	Field  string // empty for model-level problems
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema: %s.%s: %s", e.Model, e.Field, e.Reason)
	}
	return fmt.Sprintf("schema: %s: %s", e.Model, e.Reason)
}

func schemaErr(model, field, format string, args ...any) *SchemaError {
	return &SchemaError{Model: model, Field: field, Reason: fmt.Sprintf(format, args...)}
}
