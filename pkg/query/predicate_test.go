package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormkit/ormkit"
	"github.com/ormkit/ormkit/pkg/query"
	"github.com/ormkit/ormkit/pkg/schema"
)

type keyAlbum struct {
	ID   int64  `orm:"primarykey"`
	Name string `orm:"size:100"`
}

type keyTrack struct {
	ID       int64 `orm:"primarykey"`
	Album    ormkit.Ref[keyAlbum]
	Title    string `orm:"size:100"`
	Position int
}

func trackModel(t *testing.T) *schema.Model {
	t.Helper()
	model, err := schema.Parse(&keyTrack{})
	require.NoError(t, err)
	return model
}

func TestResolveKeyPlainField(t *testing.T) {
	model := trackModel(t)

	leaf, err := query.ResolveKey(model, "title", "Call Mum.")
	require.NoError(t, err)
	assert.Equal(t, query.OpExact, leaf.Op, "operator defaults to exact")
	assert.Equal(t, "title", leaf.Field.DBName)
	assert.Empty(t, leaf.Relation)
	assert.Equal(t, "Call Mum.", leaf.Value)
}

func TestResolveKeyOperators(t *testing.T) {
	model := trackModel(t)
	for key, want := range map[string]query.Op{
		"title__iexact":    query.OpIExact,
		"title__contains":  query.OpContains,
		"title__icontains": query.OpIContains,
		"position__lt":     query.OpLT,
		"position__lte":    query.OpLTE,
		"position__gt":     query.OpGT,
		"position__gte":    query.OpGTE,
		"position__in":     query.OpIn,
	} {
		leaf, err := query.ResolveKey(model, key, 1)
		require.NoError(t, err, key)
		assert.Equal(t, want, leaf.Op, key)
	}
}

func TestResolveKeyRelationTraversal(t *testing.T) {
	model := trackModel(t)

	leaf, err := query.ResolveKey(model, "album__name__iexact", "fantasies")
	require.NoError(t, err)
	assert.Equal(t, "album", leaf.Relation)
	assert.Equal(t, "name", leaf.Field.DBName)
	assert.Equal(t, query.OpIExact, leaf.Op)
}

func TestResolveKeyRelationAsFKColumn(t *testing.T) {
	model := trackModel(t)

	// Filtering on the relation name compares the foreign-key column.
	leaf, err := query.ResolveKey(model, "album", int64(3))
	require.NoError(t, err)
	assert.Empty(t, leaf.Relation)
	assert.Equal(t, "album_id", leaf.Field.DBName)
	assert.Equal(t, int64(3), leaf.Value)
}

func TestResolveKeyInstanceValueBecomesPK(t *testing.T) {
	model := trackModel(t)

	album := &keyAlbum{ID: 42, Name: "Fantasies"}
	leaf, err := query.ResolveKey(model, "album", album)
	require.NoError(t, err)
	assert.Equal(t, int64(42), leaf.Value, "a model instance compares by its primary key")
}

type prefixNaming struct{}

func (prefixNaming) TableName(structName string) string          { return "t_" + structName }
func (prefixNaming) ColumnName(fieldName string) string          { return "c_" + fieldName }
func (prefixNaming) ReferenceColumnName(fieldName string) string { return "fk_" + fieldName }

func TestResolveKeyInstanceUsesOwningModelMetadata(t *testing.T) {
	// Instance normalization goes through the relation's parsed model, so
	// a parser with its own naming strategy resolves against it and not a
	// default-named shadow of the related type.
	parser := schema.NewParser(prefixNaming{})
	model, err := parser.Parse(&keyTrack{})
	require.NoError(t, err)

	leaf, err := query.ResolveKey(model, "album", &keyAlbum{ID: 9})
	require.NoError(t, err)
	assert.Equal(t, int64(9), leaf.Value)

	// An instance of the wrong model is left as the comparison value.
	wrong := &keyTrack{ID: 5}
	leaf, err = query.ResolveKey(model, "album", wrong)
	require.NoError(t, err)
	assert.Same(t, wrong, leaf.Value)
}

func TestResolveKeyErrors(t *testing.T) {
	model := trackModel(t)

	cases := []struct {
		key     string
		segment string
	}{
		{"bogus", "bogus"},
		{"title__bogus", "title"},     // "bogus" is no operator, so "title" must be a relation
		{"album__bogus", "bogus"},     // unknown field on the related model
		{"album__name__id__gte", "id"}, // traversal deeper than one hop
	}
	for _, tc := range cases {
		_, err := query.ResolveKey(model, tc.key, 1)
		require.Error(t, err, tc.key)
		var resolutionErr *query.FieldResolutionError
		require.ErrorAs(t, err, &resolutionErr, tc.key)
		assert.Equal(t, tc.key, resolutionErr.Key)
		assert.Equal(t, tc.segment, resolutionErr.Segment)
	}
}

func TestRelatedAlias(t *testing.T) {
	assert.Equal(t, "album__name", query.RelatedAlias("album", "name"))
}
