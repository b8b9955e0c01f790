// Package query defines the abstract statements the ORM core hands to a
// backend: predicate leaves resolved against a model's schema, joins for
// eagerly loaded relations, and the insert/update/delete/select shapes.
// Backends translate these into dialect-specific SQL (or document-store
// filters); the core never generates query text itself.
package query

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/ormkit/ormkit/pkg/schema"
)

// Op is a comparison operator on a predicate leaf.
type Op string

const (
	OpExact     Op = "exact"
	OpIExact    Op = "iexact"
	OpContains  Op = "contains"
	OpIContains Op = "icontains"
	OpLT        Op = "lt"
	OpLTE       Op = "lte"
	OpGT        Op = "gt"
	OpGTE       Op = "gte"
	OpIn        Op = "in"
)

var operators = map[string]Op{
	"exact":     OpExact,
	"iexact":    OpIExact,
	"contains":  OpContains,
	"icontains": OpIContains,
	"lt":        OpLT,
	"lte":       OpLTE,
	"gt":        OpGT,
	"gte":       OpGTE,
	"in":        OpIn,
}

// Leaf is a single resolved (field path, operator, value) condition.
// Leaves combine by logical AND, in declaration order.
type Leaf struct {
	// Relation is the lookup name of the traversed foreign key, or ""
	// when Field lives on the base model.
	Relation string
	Field    *schema.Field
	Op       Op
	Value    any
}

// FieldResolutionError reports a predicate or select_related path that does
// not resolve to a declared field or relation.
type FieldResolutionError struct {
	Model   string
	Key     string
	Segment string
}

func (e *FieldResolutionError) Error() string {
	return fmt.Sprintf("query: %q does not resolve on %s: unknown field or relation %q",
		e.Key, e.Model, e.Segment)
}

// pathSep separates segments in predicate keys: field[__relation][__op].
const pathSep = "__"

// ResolveKey tokenizes a predicate key of shape field[__relation][__op] and
// resolves it against the model's schema. A trailing segment naming an
// operator selects it; otherwise the operator defaults to exact. At most
// one relation traversal is supported.
func ResolveKey(model *schema.Model, key string, value any) (Leaf, error) {
	segments := strings.Split(key, pathSep)

	op := OpExact
	if len(segments) > 1 {
		if known, ok := operators[segments[len(segments)-1]]; ok {
			op = known
			segments = segments[:len(segments)-1]
		}
	}

	leaf := Leaf{Op: op, Value: value}
	owner := model
	switch len(segments) {
	case 1:
		field, rel, ok := model.Lookup(segments[0])
		if !ok {
			return Leaf{}, &FieldResolutionError{Model: model.Name, Key: key, Segment: segments[0]}
		}
		if rel != nil {
			// Filtering on the relation itself compares the FK column.
			leaf.Field = rel.Field
		} else {
			leaf.Field = field
		}
	case 2:
		rel, ok := model.Relation(segments[0])
		if !ok {
			return Leaf{}, &FieldResolutionError{Model: model.Name, Key: key, Segment: segments[0]}
		}
		related, relOk := rel.Model.FieldsByDBName[segments[1]]
		if !relOk {
			return Leaf{}, &FieldResolutionError{Model: rel.Model.Name, Key: key, Segment: segments[1]}
		}
		leaf.Relation = rel.Name
		leaf.Field = related
		owner = rel.Model
	default:
		// Multi-hop traversal is out of scope; fail on the first segment
		// past the supported depth.
		return Leaf{}, &FieldResolutionError{Model: model.Name, Key: key, Segment: segments[2]}
	}

	leaf.Value = normalizeValue(owner, leaf.Field, leaf.Value)
	return leaf, nil
}

// normalizeValue replaces a model instance used as a comparison value with
// its primary-key value, so `Filter("album", album)` compares FK columns.
// The related model comes from the owning model's relation metadata, never
// from a fresh parse, so custom naming strategies stay in effect.
func normalizeValue(owner *schema.Model, field *schema.Field, value any) any {
	if field.Type != schema.TypeReference || value == nil {
		return value
	}
	v := reflect.ValueOf(value)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return value
	}
	for _, rel := range owner.Relations {
		if rel.Field != field {
			continue
		}
		if rel.Model == nil || v.Elem().Type() != rel.Model.Type {
			return value
		}
		pk, _, err := rel.Model.PrimaryKeyValue(value)
		if err != nil {
			return value
		}
		return pk
	}
	return value
}
