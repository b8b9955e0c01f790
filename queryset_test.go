package ormkit_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormkit/ormkit"
	"github.com/ormkit/ormkit/pkg/query"
)

// recordingBackend captures every statement it is handed.
type recordingBackend struct {
	stmts []query.Statement
}

func (r *recordingBackend) Execute(_ context.Context, stmt query.Statement) (query.ExecResult, error) {
	r.stmts = append(r.stmts, stmt)
	return query.ExecResult{}, nil
}

func (r *recordingBackend) FetchAll(_ context.Context, stmt query.Statement) ([]query.Row, error) {
	r.stmts = append(r.stmts, stmt)
	return nil, nil
}

func (r *recordingBackend) FetchOne(_ context.Context, stmt query.Statement) (query.Row, error) {
	r.stmts = append(r.stmts, stmt)
	return nil, nil
}

func trackManager(t *testing.T) (*ormkit.Manager[Track], *recordingBackend) {
	t.Helper()
	backend := &recordingBackend{}
	mgr, err := ormkit.NewManager[Track](ormkit.NewDB(backend))
	require.NoError(t, err)
	return mgr, backend
}

func lastSelect(t *testing.T, backend *recordingBackend) *query.SelectStatement {
	t.Helper()
	require.NotEmpty(t, backend.stmts)
	stmt, ok := backend.stmts[len(backend.stmts)-1].(*query.SelectStatement)
	require.True(t, ok)
	return stmt
}

func TestQuerySetChainingDoesNotMutate(t *testing.T) {
	mgr, backend := trackManager(t)
	ctx := context.Background()

	base := mgr.Filter("position__gte", 1)
	derived := base.Filter("title", "The Bird").Limit(5)

	_, err := base.All(ctx)
	require.NoError(t, err)
	baseStmt := lastSelect(t, backend)
	assert.Len(t, baseStmt.Where, 1)
	assert.Equal(t, -1, baseStmt.Limit)

	_, err = derived.All(ctx)
	require.NoError(t, err)
	derivedStmt := lastSelect(t, backend)
	require.Len(t, derivedStmt.Where, 2)
	assert.Equal(t, 5, derivedStmt.Limit)

	// Leaves keep declaration order.
	assert.Equal(t, "position", derivedStmt.Where[0].Field.DBName)
	assert.Equal(t, "title", derivedStmt.Where[1].Field.DBName)
}

func TestQuerySetConstructionErrorsSurfaceOnExecution(t *testing.T) {
	mgr, _ := trackManager(t)
	ctx := context.Background()

	var resolutionErr *ormkit.FieldResolutionError

	_, err := mgr.Filter("bogus", 1).Filter("title", "x").All(ctx)
	require.ErrorAs(t, err, &resolutionErr)
	assert.Equal(t, "bogus", resolutionErr.Segment)

	_, err = mgr.Query().OrderBy("nope").All(ctx)
	assert.ErrorAs(t, err, &resolutionErr)

	_, err = mgr.SelectRelated("nope").All(ctx)
	assert.ErrorAs(t, err, &resolutionErr)

	_, err = mgr.Filter("bogus", 1).Count(ctx)
	assert.ErrorAs(t, err, &resolutionErr)

	_, err = mgr.Filter("bogus", 1).Delete(ctx)
	assert.ErrorAs(t, err, &resolutionErr)
}

func TestQuerySetRelationFilterAddsSparseJoin(t *testing.T) {
	mgr, backend := trackManager(t)
	ctx := context.Background()

	_, err := mgr.Filter("album__name", "Malibu").All(ctx)
	require.NoError(t, err)
	stmt := lastSelect(t, backend)
	require.Len(t, stmt.Joins, 1)
	assert.False(t, stmt.Joins[0].Eager)

	// SelectRelated on the same relation upgrades the join.
	_, err = mgr.Filter("album__name", "Malibu").SelectRelated("album").All(ctx)
	require.NoError(t, err)
	stmt = lastSelect(t, backend)
	require.Len(t, stmt.Joins, 1)
	assert.True(t, stmt.Joins[0].Eager)
}

func TestQuerySetDeleteRejectsRelationPredicates(t *testing.T) {
	mgr, _ := trackManager(t)

	_, err := mgr.Filter("album__name", "Malibu").Delete(context.Background())
	assert.Error(t, err)
}

func TestQuerySetGetCapsLimit(t *testing.T) {
	mgr, backend := trackManager(t)

	_, err := mgr.Filter("title", "x").Get(context.Background())
	assert.Error(t, err) // no rows from the recording backend
	stmt := lastSelect(t, backend)
	assert.Equal(t, 2, stmt.Limit, "cardinality check needs at most two rows")
}

func TestQuerySetCountStatement(t *testing.T) {
	mgr, backend := trackManager(t)

	_, err := mgr.Query().OrderBy("position").Count(context.Background())
	require.NoError(t, err)
	stmt := lastSelect(t, backend)
	assert.True(t, stmt.CountOnly)
	assert.Empty(t, stmt.OrderBy, "ordering is pointless for a count")
}
