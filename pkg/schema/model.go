package schema

import (
	"fmt"
	"reflect"

	"github.com/iancoleman/strcase"
)

// NamingStrategy converts Go identifiers to database names.
type NamingStrategy interface {
	TableName(structName string) string
	ColumnName(fieldName string) string
	// ReferenceColumnName names the column backing a foreign-key field.
	ReferenceColumnName(fieldName string) string
}

// SnakeNamingStrategy maps Go names to snake_case. Table names are
// pluralized with a trailing "s" (Track -> tracks).
type SnakeNamingStrategy struct{}

func (SnakeNamingStrategy) TableName(structName string) string {
	return strcase.ToSnake(structName) + "s"
}

func (SnakeNamingStrategy) ColumnName(fieldName string) string {
	return strcase.ToSnake(fieldName)
}

func (SnakeNamingStrategy) ReferenceColumnName(fieldName string) string {
	return strcase.ToSnake(fieldName) + "_id"
}

var defaultNamingStrategy NamingStrategy = SnakeNamingStrategy{}

// Model is the parsed schema of a Go struct: its table name, ordered field
// descriptors, the single primary key, and declared foreign-key relations.
type Model struct {
	Name      string       // Go struct name (e.g. "Track")
	Type      reflect.Type // struct type
	TableName string

	Fields         []*Field          // mapped columns, in struct order
	FieldsByName   map[string]*Field // lookup by Go field name
	FieldsByDBName map[string]*Field // lookup by column name
	PrimaryKey     *Field

	// Relations holds declared foreign keys keyed by their lookup name,
	// the snake_case field name used in predicate paths ("album" for a
	// field Album backed by column album_id).
	Relations map[string]*Relation

	NamingStrategy NamingStrategy
}

// Lookup resolves a predicate path segment against this model. It returns
// either a plain field (by column name) or a relation, never both.
func (m *Model) Lookup(segment string) (*Field, *Relation, bool) {
	if rel, ok := m.Relations[segment]; ok {
		return nil, rel, true
	}
	if f, ok := m.FieldsByDBName[segment]; ok {
		return f, nil, true
	}
	return nil, nil, false
}

// Field retrieves a field descriptor by its Go struct field name.
func (m *Model) Field(goName string) (*Field, bool) {
	f, ok := m.FieldsByName[goName]
	return f, ok
}

// Relation retrieves a declared foreign key by its lookup name.
func (m *Model) Relation(name string) (*Relation, bool) {
	rel, ok := m.Relations[name]
	return rel, ok
}

// PrimaryKeyValue extracts the primary-key value from an instance of this
// model. The second return reports whether the value is set (non-zero).
func (m *Model) PrimaryKeyValue(instance any) (any, bool, error) {
	v := reflect.ValueOf(instance)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, false, fmt.Errorf("schema: nil %s instance", m.Name)
		}
		v = v.Elem()
	}
	if v.Type() != m.Type {
		return nil, false, fmt.Errorf("schema: expected %s instance, got %s", m.Type, v.Type())
	}
	pk := v.Field(m.PrimaryKey.Index)
	return pk.Interface(), !pk.IsZero(), nil
}
