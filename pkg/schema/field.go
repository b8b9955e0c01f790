package schema

import "reflect"

// Type is the semantic column type of a field. It drives value coercion
// during materialization and data-type mapping in the SQL backends.
type Type int

const (
	TypeBoolean Type = iota
	TypeInteger
	TypeFloat
	TypeString // variable-length string with a declared maximum (Size)
	TypeText   // unbounded string
	TypeDate
	TypeDateTime
	TypeTime
	TypeEnum
	TypeJSON
	TypeStringArray
	TypeReference // foreign-key column; see Relation
)

var typeNames = map[Type]string{
	TypeBoolean:     "boolean",
	TypeInteger:     "integer",
	TypeFloat:       "float",
	TypeString:      "string",
	TypeText:        "text",
	TypeDate:        "date",
	TypeDateTime:    "datetime",
	TypeTime:        "time",
	TypeEnum:        "enum",
	TypeJSON:        "json",
	TypeStringArray: "stringarray",
	TypeReference:   "reference",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Field describes a single mapped column of a model.
type Field struct {
	StructField reflect.StructField
	GoName      string       // name of the field on the Go struct
	GoType      reflect.Type // Go type of the field
	Index       int          // struct field index, for fast reflect access
	DBName      string       // column name in the database
	Type        Type

	Size       int      // maximum length for TypeString
	EnumValues []string // allowed values for TypeEnum

	IsPrimaryKey  bool
	AutoIncrement bool
	Nullable      bool
	Unique        bool
	HasIndex      bool

	// Default is the declared default value, already coerced to the
	// field's Go type at parse time. Applied to zero-valued fields when
	// an instance is created. Nil means no default.
	Default any

	Tags map[string]string // raw tag key/value pairs, for extensions
}

// RelationRef is implemented by relation-valued field types (ormkit.Ref).
// The parser recognizes a struct field as a foreign key when a pointer to
// its type implements this interface.
type RelationRef interface {
	// RelatedZero returns a nil pointer of the related model type,
	// carrying type information only.
	RelatedZero() any
}

// Relation is a declared foreign key: a column on the owning model holding
// the primary-key value of a row in the related model's table.
type Relation struct {
	Name  string // lookup name used in predicate paths (snake case, no _id)
	Field *Field // the foreign-key column on the owning model
	Model *Model // the related model
}
