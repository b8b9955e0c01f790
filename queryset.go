package ormkit

import (
	"context"
	"fmt"
	"strings"

	"github.com/ormkit/ormkit/pkg/query"
	"github.com/ormkit/ormkit/pkg/schema"
)

// QuerySet is an immutable, chainable query descriptor: a model, predicate
// leaves in declaration order, the eager-load set, ordering, and
// pagination. Chaining calls return copies; materialization (All, Get,
// Count, Exists, Delete) hands a statement to the backend.
//
// Construction errors (unknown fields, bad relation names) are carried on
// the QuerySet and surfaced by the materializing call, so chains stay
// fluent.
type QuerySet[T any] struct {
	db    *DB
	model *schema.Model

	where   []query.Leaf
	joins   []query.Join
	orderBy []query.Ordering
	limit   int
	offset  int

	err error // first construction error, reported on execution
}

func newQuerySet[T any](db *DB, model *schema.Model) *QuerySet[T] {
	return &QuerySet[T]{db: db, model: model, limit: -1, offset: -1}
}

// clone copies the descriptor so chained calls never mutate their receiver.
func (qs *QuerySet[T]) clone() *QuerySet[T] {
	dup := *qs
	dup.where = append([]query.Leaf(nil), qs.where...)
	dup.joins = append([]query.Join(nil), qs.joins...)
	dup.orderBy = append([]query.Ordering(nil), qs.orderBy...)
	return &dup
}

func (qs *QuerySet[T]) fail(err error) *QuerySet[T] {
	dup := qs.clone()
	if dup.err == nil {
		dup.err = err
	}
	return dup
}

// Filter appends one predicate leaf. The key has the shape
// field[__relation][__operator] with operator defaulting to exact;
// successive Filter calls combine by logical AND in declaration order.
// Filtering across a foreign key joins the related table without eagerly
// materializing the relation.
func (qs *QuerySet[T]) Filter(key string, value any) *QuerySet[T] {
	if qs.err != nil {
		return qs
	}
	leaf, err := query.ResolveKey(qs.model, key, value)
	if err != nil {
		return qs.fail(err)
	}
	dup := qs.clone()
	dup.where = append(dup.where, leaf)
	if leaf.Relation != "" {
		rel, _ := qs.model.Relation(leaf.Relation)
		dup.joins = addJoin(dup.joins, rel, false)
	}
	return dup
}

// SelectRelated marks foreign-key relations for eager loading: their rows
// are joined and fully materialized instead of left sparse.
func (qs *QuerySet[T]) SelectRelated(relations ...string) *QuerySet[T] {
	if qs.err != nil {
		return qs
	}
	dup := qs.clone()
	for _, name := range relations {
		rel, ok := qs.model.Relation(name)
		if !ok {
			return qs.fail(&FieldResolutionError{Model: qs.model.Name, Key: name, Segment: name})
		}
		dup.joins = addJoin(dup.joins, rel, true)
	}
	return dup
}

// OrderBy appends ordering terms by column name; a leading "-" selects
// descending order ("-created_at").
func (qs *QuerySet[T]) OrderBy(columns ...string) *QuerySet[T] {
	if qs.err != nil {
		return qs
	}
	dup := qs.clone()
	for _, col := range columns {
		desc := strings.HasPrefix(col, "-")
		name := strings.TrimPrefix(col, "-")
		field, ok := qs.model.FieldsByDBName[name]
		if !ok {
			return qs.fail(&FieldResolutionError{Model: qs.model.Name, Key: col, Segment: name})
		}
		dup.orderBy = append(dup.orderBy, query.Ordering{Field: field, Desc: desc})
	}
	return dup
}

// Limit caps the number of rows returned.
func (qs *QuerySet[T]) Limit(n int) *QuerySet[T] {
	dup := qs.clone()
	dup.limit = n
	return dup
}

// Offset skips the first n rows.
func (qs *QuerySet[T]) Offset(n int) *QuerySet[T] {
	dup := qs.clone()
	dup.offset = n
	return dup
}

// addJoin records a relation traversal, upgrading an existing join to eager
// when requested twice.
func addJoin(joins []query.Join, rel *schema.Relation, eager bool) []query.Join {
	for i := range joins {
		if joins[i].Relation == rel {
			joins[i].Eager = joins[i].Eager || eager
			return joins
		}
	}
	return append(joins, query.Join{Relation: rel, Eager: eager})
}

func (qs *QuerySet[T]) buildSelect() (*query.SelectStatement, error) {
	if qs.err != nil {
		return nil, qs.err
	}
	return &query.SelectStatement{
		Model:   qs.model,
		Joins:   qs.joins,
		Where:   qs.where,
		OrderBy: qs.orderBy,
		Limit:   qs.limit,
		Offset:  qs.offset,
	}, nil
}

func (qs *QuerySet[T]) eagerSet() map[string]*schema.Relation {
	eager := make(map[string]*schema.Relation)
	for _, join := range qs.joins {
		if join.Eager {
			eager[join.Relation.Name] = join.Relation
		}
	}
	return eager
}

// All executes the query and materializes every matching row.
func (qs *QuerySet[T]) All(ctx context.Context) ([]*T, error) {
	stmt, err := qs.buildSelect()
	if err != nil {
		return nil, err
	}
	rows, err := qs.db.backend.FetchAll(ctx, stmt)
	if err != nil {
		return nil, err
	}
	eager := qs.eagerSet()
	out := make([]*T, 0, len(rows))
	for _, row := range rows {
		instance, err := materializeAs[T](qs.db, qs.model, row, eager)
		if err != nil {
			return nil, err
		}
		if err := callAfterFind(ctx, qs.db, instance); err != nil {
			return nil, err
		}
		out = append(out, instance)
	}
	return out, nil
}

// Get executes the fully filtered query and requires exactly one match:
// zero rows fail with ErrDoesNotExist, two or more with
// ErrMultipleObjectsReturned. The statement is capped at two rows so the
// cardinality check never drags a large result set across the backend.
func (qs *QuerySet[T]) Get(ctx context.Context) (*T, error) {
	capped := qs.Limit(2)
	results, err := capped.All(ctx)
	if err != nil {
		return nil, err
	}
	switch len(results) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrDoesNotExist, qs.model.Name)
	case 1:
		return results[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrMultipleObjectsReturned, qs.model.Name)
	}
}

// Count returns the number of matching rows.
func (qs *QuerySet[T]) Count(ctx context.Context) (int64, error) {
	stmt, err := qs.buildSelect()
	if err != nil {
		return 0, err
	}
	counted := *stmt
	counted.CountOnly = true
	counted.OrderBy = nil
	row, err := qs.db.backend.FetchOne(ctx, &counted)
	if err != nil {
		return 0, err
	}
	if row == nil {
		return 0, nil
	}
	switch v := row["count"].(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("ormkit: backend returned %T for count", row["count"])
	}
}

// Exists reports whether at least one row matches.
func (qs *QuerySet[T]) Exists(ctx context.Context) (bool, error) {
	n, err := qs.Limit(1).Count(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes every matching row and returns the affected count.
// Predicates crossing a relation are not supported for deletes.
func (qs *QuerySet[T]) Delete(ctx context.Context) (int64, error) {
	if qs.err != nil {
		return 0, qs.err
	}
	for _, leaf := range qs.where {
		if leaf.Relation != "" {
			return 0, fmt.Errorf("ormkit: delete does not support relation predicates (%s)", leaf.Relation)
		}
	}
	stmt := &query.DeleteStatement{Model: qs.model, Where: qs.where}
	res, err := qs.db.backend.Execute(ctx, stmt)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}
