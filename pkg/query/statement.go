package query

import (
	"context"

	"github.com/ormkit/ormkit/pkg/schema"
)

// Row is one result row as returned by a backend: raw values keyed by
// column alias. Base-model columns use their plain column name; columns of
// an eagerly loaded relation are prefixed "relation__".
type Row map[string]any

// RelatedAlias builds the column alias for an eagerly loaded relation.
func RelatedAlias(relation, column string) string {
	return relation + pathSep + column
}

// Join describes a foreign-key traversal required by a statement, either
// because the relation is eagerly loaded or because a predicate crosses it.
type Join struct {
	Relation *schema.Relation
	// Eager marks relations whose columns must be selected and aliased;
	// joins implied by filter paths alone leave it false.
	Eager bool
}

// Ordering is a single ORDER BY term.
type Ordering struct {
	Field *schema.Field
	Desc  bool
}

// ColumnValue pairs a column with the value to write.
type ColumnValue struct {
	Field *schema.Field
	Value any
}

// Statement is the sealed set of operations a backend can execute.
type Statement interface {
	StatementModel() *schema.Model
}

// SelectStatement describes a read: which model, which joins, the predicate
// leaves in declaration order, ordering, and pagination. CountOnly asks the
// backend for a single row with a "count" column instead of entity rows.
type SelectStatement struct {
	Model     *schema.Model
	Joins     []Join
	Where     []Leaf
	OrderBy   []Ordering
	Limit     int // -1 when unset
	Offset    int // -1 when unset
	CountOnly bool
}

func (s *SelectStatement) StatementModel() *schema.Model { return s.Model }

// InsertStatement writes one or more rows. All rows share the column set.
type InsertStatement struct {
	Model   *schema.Model
	Columns []*schema.Field
	Rows    [][]any
}

func (s *InsertStatement) StatementModel() *schema.Model { return s.Model }

// UpdateStatement writes the given column/value pairs to rows matched by
// the predicate leaves.
type UpdateStatement struct {
	Model *schema.Model
	Set   []ColumnValue
	Where []Leaf
}

func (s *UpdateStatement) StatementModel() *schema.Model { return s.Model }

// DeleteStatement removes rows matched by the predicate leaves. An empty
// predicate deletes every row of the model's table.
type DeleteStatement struct {
	Model *schema.Model
	Where []Leaf
}

func (s *DeleteStatement) StatementModel() *schema.Model { return s.Model }

// ExecResult is the outcome of a write statement. LastInsertID carries the
// backend-assigned primary key after a single-row insert, when the backend
// can report one.
type ExecResult struct {
	RowsAffected int64
	LastInsertID int64
}

// Backend executes abstract statements over an externally managed
// connection scope. Implementations own SQL (or filter) generation,
// placeholder binding, pooling, and transactions; the core never opens or
// closes connections.
type Backend interface {
	Execute(ctx context.Context, stmt Statement) (ExecResult, error)
	FetchAll(ctx context.Context, stmt Statement) ([]Row, error)
	// FetchOne returns nil with no error when no row matches.
	FetchOne(ctx context.Context, stmt Statement) (Row, error)
}
