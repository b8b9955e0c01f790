package ormkit

import (
	"context"
	"fmt"
	"reflect"

	"github.com/ormkit/ormkit/pkg/query"
)

// RefState is the lifecycle state of a foreign-key reference.
type RefState uint8

const (
	// RefUnset means no related row is referenced.
	RefUnset RefState = iota
	// RefSparse means only the related primary key is known.
	RefSparse
	// RefLoaded means the full related instance is materialized.
	RefLoaded
)

func (s RefState) String() string {
	switch s {
	case RefSparse:
		return "sparse"
	case RefLoaded:
		return "loaded"
	default:
		return "unset"
	}
}

// Ref is a foreign-key field value: a tagged variant of Unset, Sparse
// (primary key only), or Loaded (full instance). Materialization leaves
// references sparse unless the relation was in the query's eager-load set;
// Load fetches the related row on demand.
//
// A Ref is not safe for concurrent Load calls; callers sharing an instance
// across goroutines must synchronize externally.
type Ref[T any] struct {
	state RefState
	pk    any
	value *T
	field string // owning field name, for error messages
}

// RefPK returns a sparse reference carrying only the related primary key.
func RefPK[T any](pk any) Ref[T] {
	return Ref[T]{state: RefSparse, pk: pk}
}

// RefTo returns a sparse reference to a persisted instance, carrying only
// its primary key. The instance must have a populated primary key.
func RefTo[T any](db *DB, instance *T) (Ref[T], error) {
	model, err := db.Model(instance)
	if err != nil {
		return Ref[T]{}, err
	}
	pk, set, err := model.PrimaryKeyValue(instance)
	if err != nil {
		return Ref[T]{}, err
	}
	if !set {
		return Ref[T]{}, &UnboundInstanceError{Model: model.Name, Op: "reference"}
	}
	return Ref[T]{state: RefSparse, pk: pk}, nil
}

// State reports whether the reference is unset, sparse, or loaded.
func (r *Ref[T]) State() RefState { return r.state }

// PK returns the referenced primary-key value. It is readable in the
// sparse state; it is nil when the reference is unset.
func (r *Ref[T]) PK() any { return r.pk }

// Get returns the fully materialized related instance. Reading any
// non-key attribute before the reference is loaded is a programming error,
// so Get fails with *AttributeAccessError in the sparse and unset states.
func (r *Ref[T]) Get() (*T, error) {
	if r.state != RefLoaded {
		return nil, &AttributeAccessError{Field: r.field}
	}
	return r.value, nil
}

// MustGet is Get for call sites that have already loaded the reference.
// It panics on a sparse or unset reference.
func (r *Ref[T]) MustGet() *T {
	v, err := r.Get()
	if err != nil {
		panic(err)
	}
	return v
}

// Load fetches the related row by primary key through the backend and
// replaces the sparse value in place. Every call performs a backend
// round-trip; results are not cached. If ctx is cancelled the reference
// stays sparse.
func (r *Ref[T]) Load(ctx context.Context, db *DB) error {
	if r.state == RefUnset {
		return &AttributeAccessError{Field: r.field}
	}
	var zero T
	model, err := db.Model(&zero)
	if err != nil {
		return err
	}
	stmt := &query.SelectStatement{
		Model:  model,
		Where:  []query.Leaf{{Field: model.PrimaryKey, Op: query.OpExact, Value: r.pk}},
		Limit:  1,
		Offset: -1,
	}
	row, err := db.backend.FetchOne(ctx, stmt)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		// The fetch raced a cancellation; do not transition.
		return err
	}
	if row == nil {
		return fmt.Errorf("%w: %s with pk=%v", ErrDoesNotExist, model.Name, r.pk)
	}
	instance, err := materializeAs[T](db, model, row, nil)
	if err != nil {
		return err
	}
	r.value = instance
	r.state = RefLoaded
	return nil
}

// RelatedZero implements schema.RelationRef.
func (r *Ref[T]) RelatedZero() any { return (*T)(nil) }

// refMutator is the reflection seam the materializer uses to populate
// reference fields without knowing T.
type refMutator interface {
	setSparse(pk any, field string)
	setLoaded(instance any, pk any, field string)
	refValue() (state RefState, pk any)
}

func (r *Ref[T]) setSparse(pk any, field string) {
	r.state = RefSparse
	r.pk = pk
	r.value = nil
	r.field = field
}

func (r *Ref[T]) setLoaded(instance any, pk any, field string) {
	r.state = RefLoaded
	r.pk = pk
	r.value = instance.(*T)
	r.field = field
}

func (r *Ref[T]) refValue() (RefState, any) { return r.state, r.pk }

// refPK extracts the state and pk from a Ref field value via reflection.
// v must address a Ref[T] struct field.
func refPK(v reflect.Value) (RefState, any, bool) {
	if !v.CanAddr() {
		return RefUnset, nil, false
	}
	rm, ok := v.Addr().Interface().(refMutator)
	if !ok {
		return RefUnset, nil, false
	}
	state, pk := rm.refValue()
	return state, pk, true
}
