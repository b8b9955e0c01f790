package ormkit

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/ormkit/ormkit/pkg/query"
	"github.com/ormkit/ormkit/pkg/schema"
)

// materializeAs builds a typed instance from a backend row.
func materializeAs[T any](db *DB, model *schema.Model, row query.Row, eager map[string]*schema.Relation) (*T, error) {
	v, err := db.materialize(model, row, eager, "")
	if err != nil {
		return nil, err
	}
	instance, ok := v.Interface().(*T)
	if !ok {
		return nil, fmt.Errorf("ormkit: internal error: materialized %s, expected %T", v.Type(), instance)
	}
	return instance, nil
}

// materialize converts one raw row into a model instance. Scalar columns
// are coerced to their declared semantic type; foreign keys in the eager
// set are recursively materialized from aliased columns, all others become
// sparse references carrying only the stored primary-key value.
func (db *DB) materialize(model *schema.Model, row query.Row, eager map[string]*schema.Relation, prefix string) (reflect.Value, error) {
	ptr := reflect.New(model.Type)
	structVal := ptr.Elem()

	for _, field := range model.Fields {
		raw, present := row[prefix+field.DBName]
		if !present {
			continue
		}

		if field.Type == schema.TypeReference {
			rel := relationFor(model, field)
			if rel == nil {
				return reflect.Value{}, fmt.Errorf("ormkit: internal error: no relation for field %s.%s", model.Name, field.GoName)
			}
			if err := db.materializeRef(structVal, rel, row, raw, eager); err != nil {
				return reflect.Value{}, err
			}
			continue
		}

		if raw == nil {
			if !field.Nullable {
				return reflect.Value{}, validationErr(model.Name, field.GoName, "null value for non-nullable column %q", field.DBName)
			}
			continue
		}
		coerced, err := coerceValue(model.Name, field, field.StructField.Type, raw)
		if err != nil {
			return reflect.Value{}, err
		}
		structVal.Field(field.Index).Set(coerced)
	}
	return ptr, nil
}

func (db *DB) materializeRef(structVal reflect.Value, rel *schema.Relation, row query.Row, raw any, eager map[string]*schema.Relation) error {
	fieldVal := structVal.Field(rel.Field.Index)
	rm, ok := fieldVal.Addr().Interface().(refMutator)
	if !ok {
		return fmt.Errorf("ormkit: field %s is not a Ref", rel.Field.GoName)
	}
	if raw == nil {
		// Nullable FK with no row referenced: the reference stays unset.
		return nil
	}
	pkField := rel.Model.PrimaryKey
	pk, err := coerceValue(rel.Model.Name, pkField, pkField.StructField.Type, raw)
	if err != nil {
		return err
	}

	if _, eagerLoad := eager[rel.Name]; !eagerLoad {
		rm.setSparse(pk.Interface(), rel.Field.GoName)
		return nil
	}
	// Eagerly loaded: the related row's columns arrive aliased with the
	// relation prefix. Nested relations of the related model stay sparse.
	relatedPtr, err := db.materialize(rel.Model, row, nil, rel.Name+"__")
	if err != nil {
		return err
	}
	rm.setLoaded(relatedPtr.Interface(), pk.Interface(), rel.Field.GoName)
	return nil
}

func relationFor(model *schema.Model, field *schema.Field) *schema.Relation {
	for _, rel := range model.Relations {
		if rel.Field == field {
			return rel
		}
	}
	return nil
}

var materializeTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"15:04:05",
}

// coerceValue converts a raw backend value into the Go type of a field,
// according to the field's semantic type. Failures produce a
// *ValidationError naming the field.
func coerceValue(modelName string, field *schema.Field, target reflect.Type, raw any) (reflect.Value, error) {
	// Pointer targets wrap the coerced base value.
	if target.Kind() == reflect.Pointer {
		base, err := coerceValue(modelName, field, target.Elem(), raw)
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(target.Elem())
		ptr.Elem().Set(base)
		return ptr, nil
	}

	fail := func(format string, args ...any) (reflect.Value, error) {
		return reflect.Value{}, validationErr(modelName, field.GoName, format, args...)
	}

	switch field.Type {
	case schema.TypeBoolean:
		switch v := raw.(type) {
		case bool:
			return reflect.ValueOf(v), nil
		case int64:
			return reflect.ValueOf(v != 0), nil
		case []byte:
			return reflect.ValueOf(string(v) == "1" || string(v) == "true"), nil
		}
		return fail("cannot coerce %T to boolean", raw)

	case schema.TypeInteger, schema.TypeReference:
		if b, ok := raw.([]byte); ok && target.Kind() == reflect.String {
			raw = string(b)
		}
		rv := reflect.ValueOf(raw)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			if !rv.CanConvert(target) {
				return fail("cannot coerce %T to %s", raw, target)
			}
			return rv.Convert(target), nil
		case reflect.String:
			// String primary keys reach reference columns as-is.
			if field.Type == schema.TypeReference && rv.CanConvert(target) {
				return rv.Convert(target), nil
			}
		}
		return fail("cannot coerce %T to %s", raw, field.Type)

	case schema.TypeFloat:
		rv := reflect.ValueOf(raw)
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64,
			reflect.Int, reflect.Int32, reflect.Int64:
			return rv.Convert(target), nil
		}
		return fail("cannot coerce %T to float", raw)

	case schema.TypeString, schema.TypeText, schema.TypeEnum:
		var s string
		switch v := raw.(type) {
		case string:
			s = v
		case []byte:
			s = string(v)
		default:
			return fail("cannot coerce %T to string", raw)
		}
		if field.Type == schema.TypeEnum && !enumMember(field, s) {
			return fail("%q is not one of %v", s, field.EnumValues)
		}
		return reflect.ValueOf(s).Convert(target), nil

	case schema.TypeDate, schema.TypeDateTime, schema.TypeTime:
		switch v := raw.(type) {
		case time.Time:
			return reflect.ValueOf(v), nil
		case string:
			return parseTimeValue(modelName, field, v)
		case []byte:
			return parseTimeValue(modelName, field, string(v))
		}
		return fail("cannot coerce %T to %s", raw, field.Type)

	case schema.TypeJSON, schema.TypeStringArray:
		var data []byte
		switch v := raw.(type) {
		case []byte:
			data = v
		case string:
			data = []byte(v)
		default:
			// Already-decoded values (document backends) round-trip
			// through JSON to reach the declared Go type.
			encoded, err := json.Marshal(v)
			if err != nil {
				return fail("cannot coerce %T to %s: %v", raw, field.Type, err)
			}
			data = encoded
		}
		out := reflect.New(target)
		if err := json.Unmarshal(data, out.Interface()); err != nil {
			return fail("invalid %s payload: %v", field.Type, err)
		}
		return out.Elem(), nil
	}
	return fail("unsupported semantic type %s", field.Type)
}

func parseTimeValue(modelName string, field *schema.Field, s string) (reflect.Value, error) {
	for _, layout := range materializeTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return reflect.ValueOf(t), nil
		}
	}
	return reflect.Value{}, validationErr(modelName, field.GoName, "cannot parse %q as %s", s, field.Type)
}

func enumMember(field *schema.Field, v string) bool {
	for _, allowed := range field.EnumValues {
		if v == allowed {
			return true
		}
	}
	return false
}
