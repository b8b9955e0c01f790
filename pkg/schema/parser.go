package schema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iancoleman/strcase"
)

// Parser turns Go structs into Model descriptors. Parsed models are cached
// per struct type, so repeated lookups are cheap.
type Parser struct {
	cache          sync.Map // reflect.Type -> *Model
	namingStrategy NamingStrategy
}

// NewParser creates a parser with the given naming strategy.
// A nil strategy selects SnakeNamingStrategy.
func NewParser(namingStrategy NamingStrategy) *Parser {
	if namingStrategy == nil {
		namingStrategy = defaultNamingStrategy
	}
	return &Parser{namingStrategy: namingStrategy}
}

var (
	relationRefType = reflect.TypeOf((*RelationRef)(nil)).Elem()
	timeType        = reflect.TypeOf(time.Time{})
)

// Parse analyzes a struct value, pointer, or reflect.Type and returns its
// schema. It fails with *SchemaError when the declaration is invalid:
// zero or multiple primary keys, a nullable primary key, duplicate column
// names, or a field whose type cannot be mapped.
func (p *Parser) Parse(value any) (*Model, error) {
	if value == nil {
		return nil, fmt.Errorf("schema: cannot parse nil value")
	}

	var structType reflect.Type
	if rt, ok := value.(reflect.Type); ok {
		structType = rt
	} else {
		structType = reflect.TypeOf(value)
	}
	for structType.Kind() == reflect.Pointer {
		structType = structType.Elem()
	}
	if structType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("schema: input must be a struct or pointer to struct, got %T", value)
	}

	if cached, ok := p.cache.Load(structType); ok {
		return cached.(*Model), nil
	}
	return p.parse(structType)
}

// parseMu serializes first-time parses so relation resolution never races
// with another goroutine's parse of the same model graph.
var parseMu sync.Mutex

func (p *Parser) parse(structType reflect.Type) (*Model, error) {
	parseMu.Lock()
	defer parseMu.Unlock()
	if cached, ok := p.cache.Load(structType); ok {
		return cached.(*Model), nil
	}
	// Models under construction live in a per-call map; the shared cache
	// must never expose a model whose relations are still being wired,
	// because the cache-hit path reads it without the lock.
	parsing := make(map[reflect.Type]*Model)
	model, err := p.parseInto(structType, parsing)
	if err != nil {
		return nil, err
	}
	for t, m := range parsing {
		p.cache.Store(t, m)
	}
	return model, nil
}

// parseInto parses a struct type and resolves its relation targets.
// Self-referential and mutually-referential models terminate through the
// in-progress map.
func (p *Parser) parseInto(structType reflect.Type, parsing map[reflect.Type]*Model) (*Model, error) {
	if cached, ok := p.cache.Load(structType); ok {
		return cached.(*Model), nil
	}
	if inProgress, ok := parsing[structType]; ok {
		return inProgress, nil
	}
	model, pending, err := p.parseFields(structType)
	if err != nil {
		return nil, err
	}
	parsing[structType] = model
	for _, pr := range pending {
		related, err := p.parseInto(pr.relatedType, parsing)
		if err != nil {
			return nil, err
		}
		pr.relation.Model = related
		// The FK column holds the related primary key.
		pr.relation.Field.GoType = related.PrimaryKey.GoType
	}
	return model, nil
}

type pendingRelation struct {
	relation    *Relation
	relatedType reflect.Type
}

func (p *Parser) parseFields(structType reflect.Type) (*Model, []pendingRelation, error) {
	model := &Model{
		Name:           structType.Name(),
		Type:           structType,
		TableName:      p.namingStrategy.TableName(structType.Name()),
		Fields:         make([]*Field, 0, structType.NumField()),
		FieldsByName:   make(map[string]*Field),
		FieldsByDBName: make(map[string]*Field),
		Relations:      make(map[string]*Relation),
		NamingStrategy: p.namingStrategy,
	}

	var pending []pendingRelation

	for i := 0; i < structType.NumField(); i++ {
		structField := structType.Field(i)
		if !structField.IsExported() {
			continue
		}

		field := &Field{
			StructField: structField,
			GoName:      structField.Name,
			GoType:      structField.Type,
			Index:       i,
			Tags:        make(map[string]string),
		}

		tag := structField.Tag.Get("orm")
		if tag == "-" {
			continue
		}
		if err := p.parseTag(model, field, tag); err != nil {
			return nil, nil, err
		}

		// Pointer fields are nullable unless the tag said otherwise.
		if structField.Type.Kind() == reflect.Pointer {
			if _, forced := field.Tags["notnull"]; !forced {
				field.Nullable = true
			}
		}

		relatedType, isRelation := relationTarget(structField.Type)
		if isRelation {
			field.Type = TypeReference
			if field.DBName == "" {
				field.DBName = p.namingStrategy.ReferenceColumnName(field.GoName)
			}
			if field.IsPrimaryKey {
				return nil, nil, schemaErr(model.Name, field.GoName, "a foreign key cannot be the primary key")
			}
			rel := &Relation{
				Name:  strcase.ToSnake(field.GoName),
				Field: field,
			}
			if _, dup := model.Relations[rel.Name]; dup {
				return nil, nil, schemaErr(model.Name, field.GoName, "duplicate relation name %q", rel.Name)
			}
			model.Relations[rel.Name] = rel
			pending = append(pending, pendingRelation{relation: rel, relatedType: relatedType})
		} else {
			if err := inferType(model.Name, field); err != nil {
				return nil, nil, err
			}
			if field.DBName == "" {
				field.DBName = p.namingStrategy.ColumnName(field.GoName)
			}
		}

		if field.IsPrimaryKey {
			if field.Nullable {
				return nil, nil, schemaErr(model.Name, field.GoName, "primary key cannot allow null")
			}
			if model.PrimaryKey != nil {
				return nil, nil, schemaErr(model.Name, field.GoName,
					"multiple primary keys declared (%s is already the primary key)", model.PrimaryKey.GoName)
			}
			model.PrimaryKey = field
			// Integer primary keys default to backend-assigned values.
			if field.Type == TypeInteger {
				if _, explicit := field.Tags["autoincrement"]; !explicit {
					field.AutoIncrement = true
				}
			}
		}

		if existing, dup := model.FieldsByDBName[field.DBName]; dup {
			return nil, nil, schemaErr(model.Name, field.GoName,
				"duplicate column name %q (also mapped by %s)", field.DBName, existing.GoName)
		}
		model.Fields = append(model.Fields, field)
		model.FieldsByName[field.GoName] = field
		model.FieldsByDBName[field.DBName] = field
	}

	if model.PrimaryKey == nil {
		return nil, nil, schemaErr(model.Name, "", "exactly one primary key is required, none declared")
	}
	return model, pending, nil
}

// relationTarget reports whether t is a relation-valued field type and, if
// so, the related struct type.
func relationTarget(t reflect.Type) (reflect.Type, bool) {
	if !reflect.PointerTo(t).Implements(relationRefType) {
		return nil, false
	}
	zero := reflect.New(t).Interface().(RelationRef).RelatedZero()
	related := reflect.TypeOf(zero)
	for related.Kind() == reflect.Pointer {
		related = related.Elem()
	}
	return related, true
}

// parseTag processes the content of the `orm` struct tag.
func (p *Parser) parseTag(model *Model, field *Field, tag string) error {
	if tag == "" {
		return nil
	}
	for _, part := range strings.Split(tag, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, ":", 2)
		key := strings.ToLower(strings.TrimSpace(kv[0]))
		var value string
		if len(kv) == 2 {
			value = strings.TrimSpace(kv[1])
		}
		field.Tags[key] = value

		switch key {
		case "primarykey", "primary_key", "pk":
			field.IsPrimaryKey = true
		case "autoincrement", "auto_increment":
			field.AutoIncrement = true
		case "column", "name":
			if value == "" {
				return schemaErr(model.Name, field.GoName, "tag %q requires a value", key)
			}
			field.DBName = value
		case "size", "max_length", "maxlength":
			size, err := strconv.Atoi(value)
			if err != nil || size <= 0 {
				return schemaErr(model.Name, field.GoName, "invalid size value %q", value)
			}
			field.Size = size
		case "type":
			// Semantic type override, validated in inferType.
		case "enum":
			for _, v := range strings.Split(value, ",") {
				v = strings.Trim(strings.TrimSpace(v), "'")
				if v != "" {
					field.EnumValues = append(field.EnumValues, v)
				}
			}
			if len(field.EnumValues) == 0 {
				return schemaErr(model.Name, field.GoName, "enum tag requires at least one value")
			}
		case "null":
			field.Nullable = true
		case "notnull", "not null", "required":
			field.Nullable = false
		case "unique":
			field.Unique = true
		case "index":
			field.HasIndex = true
		case "default":
			// Coerced after the semantic type is known; stash raw value.
		default:
			return schemaErr(model.Name, field.GoName, "unknown tag key %q", key)
		}
	}
	return nil
}

// inferType determines the semantic type of a non-relation field from its
// Go type and tags, and coerces any declared default value.
func inferType(modelName string, field *Field) error {
	goType := field.GoType
	if goType.Kind() == reflect.Pointer {
		goType = goType.Elem()
	}
	override := field.Tags["type"]

	switch {
	case len(field.EnumValues) > 0:
		if goType.Kind() != reflect.String {
			return schemaErr(modelName, field.GoName, "enum fields must be strings, got %s", goType)
		}
		field.Type = TypeEnum
	case override == "json":
		field.Type = TypeJSON
	case goType == timeType:
		switch override {
		case "", "datetime":
			field.Type = TypeDateTime
		case "date":
			field.Type = TypeDate
		case "time":
			field.Type = TypeTime
		default:
			return schemaErr(modelName, field.GoName, "type %q is not valid for time.Time", override)
		}
	case goType.Kind() == reflect.Bool:
		field.Type = TypeBoolean
	case isIntegerKind(goType.Kind()):
		field.Type = TypeInteger
	case goType.Kind() == reflect.Float32 || goType.Kind() == reflect.Float64:
		field.Type = TypeFloat
	case goType.Kind() == reflect.String:
		if override == "text" || (override == "" && field.Size == 0) {
			field.Type = TypeText
		} else {
			field.Type = TypeString
			if field.Size == 0 {
				field.Size = 255
			}
		}
	case goType.Kind() == reflect.Slice && goType.Elem().Kind() == reflect.String:
		field.Type = TypeStringArray
	case goType.Kind() == reflect.Map, goType.Kind() == reflect.Struct, goType.Kind() == reflect.Slice:
		return schemaErr(modelName, field.GoName,
			"composite type %s needs an explicit `type:json` tag", goType)
	default:
		return schemaErr(modelName, field.GoName, "unsupported field type %s", goType)
	}

	if raw, ok := field.Tags["default"]; ok {
		def, err := coerceDefault(field, raw)
		if err != nil {
			return schemaErr(modelName, field.GoName, "invalid default %q: %v", raw, err)
		}
		field.Default = def
	}
	return nil
}

func isIntegerKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// coerceDefault turns the raw default literal from the tag into a typed Go
// value matching the field's semantic type.
func coerceDefault(field *Field, raw string) (any, error) {
	switch field.Type {
	case TypeBoolean:
		return strconv.ParseBool(raw)
	case TypeInteger:
		return strconv.ParseInt(raw, 10, 64)
	case TypeFloat:
		return strconv.ParseFloat(raw, 64)
	case TypeString, TypeText:
		return strings.Trim(raw, "'"), nil
	case TypeEnum:
		v := strings.Trim(raw, "'")
		for _, allowed := range field.EnumValues {
			if v == allowed {
				return v, nil
			}
		}
		return nil, fmt.Errorf("%q is not an enum member", v)
	default:
		return nil, fmt.Errorf("defaults are not supported for %s fields", field.Type)
	}
}

// Global parser with default settings, shared by the ORM core.
var globalParser = NewParser(nil)

// Parse uses the process-wide parser instance.
func Parse(value any) (*Model, error) {
	return globalParser.Parse(value)
}
