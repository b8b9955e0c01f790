package ormkit

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/ormkit/ormkit/pkg/hooks"
	"github.com/ormkit/ormkit/pkg/query"
	"github.com/ormkit/ormkit/pkg/schema"
)

// Manager is the query facade for one model type: create, filter, get,
// update, delete, and count, all delegating execution to the backend.
type Manager[T any] struct {
	db    *DB
	model *schema.Model
}

// NewManager parses the model schema and returns its manager. Schema
// problems (missing or duplicate primary key, illegal constraints) surface
// here as *SchemaError.
func NewManager[T any](db *DB) (*Manager[T], error) {
	var zero T
	model, err := db.Model(&zero)
	if err != nil {
		return nil, err
	}
	return &Manager[T]{db: db, model: model}, nil
}

// Model exposes the parsed schema.
func (m *Manager[T]) Model() *schema.Model { return m.model }

// Query returns a fresh, unfiltered QuerySet.
func (m *Manager[T]) Query() *QuerySet[T] {
	return newQuerySet[T](m.db, m.model)
}

// Filter is shorthand for Query().Filter.
func (m *Manager[T]) Filter(key string, value any) *QuerySet[T] {
	return m.Query().Filter(key, value)
}

// SelectRelated is shorthand for Query().SelectRelated.
func (m *Manager[T]) SelectRelated(relations ...string) *QuerySet[T] {
	return m.Query().SelectRelated(relations...)
}

// All returns every persisted instance.
func (m *Manager[T]) All(ctx context.Context) ([]*T, error) {
	return m.Query().All(ctx)
}

// Get returns the single instance matching the key/value predicate.
func (m *Manager[T]) Get(ctx context.Context, key string, value any) (*T, error) {
	return m.Query().Filter(key, value).Get(ctx)
}

// Count returns the number of persisted instances.
func (m *Manager[T]) Count(ctx context.Context) (int64, error) {
	return m.Query().Count(ctx)
}

// Create validates and persists a new instance: declared defaults are
// applied to zero-valued fields, non-nullable fields are checked, and the
// backend-assigned primary key is written back onto the instance.
func (m *Manager[T]) Create(ctx context.Context, instance *T) error {
	if instance == nil {
		return fmt.Errorf("ormkit: cannot create nil %s", m.model.Name)
	}
	if hook, ok := any(instance).(hooks.BeforeCreator); ok {
		if err := hook.BeforeCreate(ctx); err != nil {
			return err
		}
	}

	structVal := reflect.ValueOf(instance).Elem()
	if err := m.applyDefaults(structVal); err != nil {
		return err
	}
	if err := m.validate(structVal); err != nil {
		return err
	}

	columns, values, err := m.insertRow(structVal)
	if err != nil {
		return err
	}
	stmt := &query.InsertStatement{Model: m.model, Columns: columns, Rows: [][]any{values}}
	res, err := m.db.backend.Execute(ctx, stmt)
	if err != nil {
		return err
	}
	if m.model.PrimaryKey.AutoIncrement && res.LastInsertID > 0 {
		if err := m.assignPK(structVal, res.LastInsertID); err != nil {
			return err
		}
	}

	if hook, ok := any(instance).(hooks.AfterCreator); ok {
		return hook.AfterCreate(ctx)
	}
	return nil
}

// InsertMany persists instances in batches of batchSize rows per insert
// statement. Defaults and validation run per instance; an explicitly set
// primary key is written like Create does, while zero-valued auto-increment
// keys stay backend-assigned. Backend-assigned keys are not reported back
// for batched inserts.
func (m *Manager[T]) InsertMany(ctx context.Context, instances []*T, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 1000
	}
	var columns []*schema.Field
	var rows [][]any

	flush := func() error {
		if len(rows) == 0 {
			return nil
		}
		stmt := &query.InsertStatement{Model: m.model, Columns: columns, Rows: rows}
		_, err := m.db.backend.Execute(ctx, stmt)
		rows = nil
		return err
	}

	for _, instance := range instances {
		structVal := reflect.ValueOf(instance).Elem()
		if err := m.applyDefaults(structVal); err != nil {
			return err
		}
		if err := m.validate(structVal); err != nil {
			return err
		}
		skipAutoPK := m.model.PrimaryKey.AutoIncrement && structVal.Field(m.model.PrimaryKey.Index).IsZero()
		cols := m.insertColumns(skipAutoPK)
		// All rows of one statement share a column set; a change in key
		// handling starts a new batch.
		if len(rows) > 0 && len(cols) != len(columns) {
			if err := flush(); err != nil {
				return err
			}
		}
		columns = cols
		values, err := m.columnValues(structVal, columns)
		if err != nil {
			return err
		}
		rows = append(rows, values)
		if len(rows) == batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// Update writes an instance's fields back to its row, identified by
// primary key. With no column arguments every non-key column is written;
// otherwise only the named Go fields are. Instances without a populated
// primary key fail with *UnboundInstanceError.
func (m *Manager[T]) Update(ctx context.Context, instance *T, fields ...string) error {
	pk, err := m.boundPK(instance, "update")
	if err != nil {
		return err
	}
	if hook, ok := any(instance).(hooks.BeforeUpdater); ok {
		if err := hook.BeforeUpdate(ctx); err != nil {
			return err
		}
	}

	structVal := reflect.ValueOf(instance).Elem()
	if err := m.validate(structVal); err != nil {
		return err
	}

	subset := make(map[string]bool, len(fields))
	for _, name := range fields {
		if _, ok := m.model.Field(name); !ok {
			return &FieldResolutionError{Model: m.model.Name, Key: name, Segment: name}
		}
		subset[name] = true
	}

	set, err := m.updateColumns(structVal, subset)
	if err != nil {
		return err
	}
	if len(set) == 0 {
		return fmt.Errorf("ormkit: no columns to update for %s", m.model.Name)
	}

	stmt := &query.UpdateStatement{
		Model: m.model,
		Set:   set,
		Where: []query.Leaf{{Field: m.model.PrimaryKey, Op: query.OpExact, Value: pk}},
	}
	if _, err := m.db.backend.Execute(ctx, stmt); err != nil {
		return err
	}
	if hook, ok := any(instance).(hooks.AfterUpdater); ok {
		return hook.AfterUpdate(ctx)
	}
	return nil
}

// Upsert writes the instance as an update when a row with its primary key
// already exists, and as an insert otherwise. Instances without a populated
// primary key are created directly.
func (m *Manager[T]) Upsert(ctx context.Context, instance *T) error {
	if instance == nil {
		return fmt.Errorf("ormkit: cannot upsert nil %s", m.model.Name)
	}
	pk, set, err := m.model.PrimaryKeyValue(instance)
	if err != nil {
		return err
	}
	if !set {
		return m.Create(ctx, instance)
	}

	structVal := reflect.ValueOf(instance).Elem()
	if err := m.applyDefaults(structVal); err != nil {
		return err
	}
	if err := m.validate(structVal); err != nil {
		return err
	}
	columns, err := m.updateColumns(structVal, nil)
	if err != nil {
		return err
	}
	stmt := &query.UpdateStatement{
		Model: m.model,
		Set:   columns,
		Where: []query.Leaf{{Field: m.model.PrimaryKey, Op: query.OpExact, Value: pk}},
	}
	res, err := m.db.backend.Execute(ctx, stmt)
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		// No such row yet; Create keeps the explicit key.
		return m.Create(ctx, instance)
	}
	return nil
}

// updateColumns collects the column/value pairs an update writes: every
// non-key column, or only the named Go fields when subset is non-empty.
func (m *Manager[T]) updateColumns(structVal reflect.Value, subset map[string]bool) ([]query.ColumnValue, error) {
	var set []query.ColumnValue
	for _, field := range m.model.Fields {
		if field.IsPrimaryKey {
			continue
		}
		if len(subset) > 0 && !subset[field.GoName] {
			continue
		}
		value, err := m.fieldValue(structVal, field)
		if err != nil {
			return nil, err
		}
		set = append(set, query.ColumnValue{Field: field, Value: value})
	}
	return set, nil
}

// Delete removes the instance's row, identified by primary key.
func (m *Manager[T]) Delete(ctx context.Context, instance *T) error {
	pk, err := m.boundPK(instance, "delete")
	if err != nil {
		return err
	}
	if hook, ok := any(instance).(hooks.BeforeDeleter); ok {
		if err := hook.BeforeDelete(ctx); err != nil {
			return err
		}
	}
	stmt := &query.DeleteStatement{
		Model: m.model,
		Where: []query.Leaf{{Field: m.model.PrimaryKey, Op: query.OpExact, Value: pk}},
	}
	if _, err := m.db.backend.Execute(ctx, stmt); err != nil {
		return err
	}
	if hook, ok := any(instance).(hooks.AfterDeleter); ok {
		return hook.AfterDelete(ctx)
	}
	return nil
}

// Load refreshes every column of the instance from its row, identified by
// primary key. Foreign keys become sparse references.
func (m *Manager[T]) Load(ctx context.Context, instance *T) error {
	pk, err := m.boundPK(instance, "load")
	if err != nil {
		return err
	}
	fresh, err := m.Get(ctx, m.model.PrimaryKey.DBName, pk)
	if err != nil {
		return err
	}
	reflect.ValueOf(instance).Elem().Set(reflect.ValueOf(fresh).Elem())
	return nil
}

func (m *Manager[T]) boundPK(instance *T, op string) (any, error) {
	if instance == nil {
		return nil, fmt.Errorf("ormkit: cannot %s nil %s", op, m.model.Name)
	}
	pk, set, err := m.model.PrimaryKeyValue(instance)
	if err != nil {
		return nil, err
	}
	if !set {
		return nil, &UnboundInstanceError{Model: m.model.Name, Op: op}
	}
	return pk, nil
}

// applyDefaults writes declared default values onto zero-valued fields.
func (m *Manager[T]) applyDefaults(structVal reflect.Value) error {
	for _, field := range m.model.Fields {
		if field.Default == nil {
			continue
		}
		fieldVal := structVal.Field(field.Index)
		if !fieldVal.IsZero() {
			continue
		}
		def := reflect.ValueOf(field.Default)
		target := field.StructField.Type
		if target.Kind() == reflect.Pointer {
			ptr := reflect.New(target.Elem())
			ptr.Elem().Set(def.Convert(target.Elem()))
			fieldVal.Set(ptr)
			continue
		}
		if !def.CanConvert(target) {
			return validationErr(m.model.Name, field.GoName, "default %v is not assignable to %s", field.Default, target)
		}
		fieldVal.Set(def.Convert(target))
	}
	return nil
}

// validate enforces declared constraints on an instance before a write:
// non-nullable fields whose zero value cannot stand in for "supplied"
// (pointers, times, references), string maximum lengths, and enum
// membership.
func (m *Manager[T]) validate(structVal reflect.Value) error {
	for _, field := range m.model.Fields {
		fieldVal := structVal.Field(field.Index)

		if field.Type == schema.TypeReference {
			state, _, ok := refPK(fieldVal)
			if ok && !field.Nullable && state == RefUnset {
				return validationErr(m.model.Name, field.GoName, "non-nullable reference is unset")
			}
			continue
		}

		if !field.Nullable && !field.IsPrimaryKey && fieldVal.IsZero() {
			switch field.StructField.Type.Kind() {
			case reflect.Pointer, reflect.Slice, reflect.Map:
				return validationErr(m.model.Name, field.GoName, "non-nullable field has no value")
			}
			if field.StructField.Type == timeGoType {
				return validationErr(m.model.Name, field.GoName, "non-nullable field has no value")
			}
		}

		base := fieldVal
		if base.Kind() == reflect.Pointer {
			if base.IsNil() {
				continue
			}
			base = base.Elem()
		}
		switch field.Type {
		case schema.TypeString:
			if field.Size > 0 && len(base.String()) > field.Size {
				return validationErr(m.model.Name, field.GoName, "value exceeds maximum length %d", field.Size)
			}
		case schema.TypeEnum:
			if v := base.String(); v != "" && !enumMember(field, v) {
				return validationErr(m.model.Name, field.GoName, "%q is not one of %v", v, field.EnumValues)
			}
		}
	}
	return nil
}

var timeGoType = reflect.TypeOf(time.Time{})

// insertColumns lists the columns written by an insert, optionally
// skipping a backend-assigned primary key.
func (m *Manager[T]) insertColumns(skipAutoPK bool) []*schema.Field {
	columns := make([]*schema.Field, 0, len(m.model.Fields))
	for _, field := range m.model.Fields {
		if skipAutoPK && field.IsPrimaryKey && field.AutoIncrement {
			continue
		}
		columns = append(columns, field)
	}
	return columns
}

func (m *Manager[T]) insertRow(structVal reflect.Value) ([]*schema.Field, []any, error) {
	skipAutoPK := m.model.PrimaryKey.AutoIncrement && structVal.Field(m.model.PrimaryKey.Index).IsZero()
	columns := m.insertColumns(skipAutoPK)
	values, err := m.columnValues(structVal, columns)
	return columns, values, err
}

func (m *Manager[T]) columnValues(structVal reflect.Value, columns []*schema.Field) ([]any, error) {
	values := make([]any, 0, len(columns))
	for _, field := range columns {
		value, err := m.fieldValue(structVal, field)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

// fieldValue extracts the storable column value of one field: references
// contribute their primary-key value, everything else its Go value.
func (m *Manager[T]) fieldValue(structVal reflect.Value, field *schema.Field) (any, error) {
	fieldVal := structVal.Field(field.Index)
	if field.Type == schema.TypeReference {
		state, pk, ok := refPK(fieldVal)
		if !ok {
			return nil, fmt.Errorf("ormkit: field %s.%s is not a Ref", m.model.Name, field.GoName)
		}
		if state == RefUnset {
			return nil, nil
		}
		return pk, nil
	}
	if fieldVal.Kind() == reflect.Pointer && fieldVal.IsNil() {
		return nil, nil
	}
	return fieldVal.Interface(), nil
}

func (m *Manager[T]) assignPK(structVal reflect.Value, lastID int64) error {
	pkVal := structVal.Field(m.model.PrimaryKey.Index)
	idVal := reflect.ValueOf(lastID)
	if !idVal.CanConvert(pkVal.Type()) {
		return fmt.Errorf("ormkit: cannot assign backend id to %s primary key (%s)", m.model.Name, pkVal.Type())
	}
	pkVal.Set(idVal.Convert(pkVal.Type()))
	return nil
}

// callAfterFind runs the AfterFind hook when the model implements it.
func callAfterFind(ctx context.Context, _ *DB, instance any) error {
	if hook, ok := instance.(hooks.AfterFinder); ok {
		return hook.AfterFind(ctx)
	}
	return nil
}
