package ormkit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormkit/ormkit/pkg/query"
)

type materialized struct {
	ID     int64 `orm:"primarykey"`
	Title  string `orm:"size:100"`
	Plays  *int
	Loud   bool
	Rating float64
	Kind   string            `orm:"enum:'single','remix'"`
	Meta   map[string]string `orm:"type:json"`
	Tags   []string
	At     time.Time `orm:"null"`
}

func materializeRow(t *testing.T, row query.Row) (*materialized, error) {
	t.Helper()
	db := NewDB(nil)
	model, err := db.Model(&materialized{})
	require.NoError(t, err)
	return materializeAs[materialized](db, model, row, nil)
}

func TestMaterializeCoercions(t *testing.T) {
	got, err := materializeRow(t, query.Row{
		"id":     int64(3),
		"title":  []byte("The Bird"),
		"plays":  int64(12),
		"loud":   int64(1),
		"rating": 4.5,
		"kind":   "single",
		"meta":   []byte(`{"producer":"points"}`),
		"tags":   `["jazz","hiphop"]`,
		"at":     "2024-05-01 12:30:00",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3), got.ID)
	assert.Equal(t, "The Bird", got.Title)
	require.NotNil(t, got.Plays)
	assert.Equal(t, 12, *got.Plays)
	assert.True(t, got.Loud)
	assert.Equal(t, 4.5, got.Rating)
	assert.Equal(t, "single", got.Kind)
	assert.Equal(t, map[string]string{"producer": "points"}, got.Meta)
	assert.Equal(t, []string{"jazz", "hiphop"}, got.Tags)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC), got.At)
}

func TestMaterializeAbsentColumnsStayZero(t *testing.T) {
	got, err := materializeRow(t, query.Row{"id": int64(1)})
	require.NoError(t, err)
	assert.Empty(t, got.Title)
	assert.Nil(t, got.Plays)
}

func TestMaterializeNullForNonNullable(t *testing.T) {
	_, err := materializeRow(t, query.Row{"id": int64(1), "title": nil})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "Title", validationErr.Field)
}

func TestMaterializeNullForNullable(t *testing.T) {
	got, err := materializeRow(t, query.Row{"id": int64(1), "plays": nil, "at": nil})
	require.NoError(t, err)
	assert.Nil(t, got.Plays)
	assert.True(t, got.At.IsZero())
}

func TestMaterializeEnumRejection(t *testing.T) {
	_, err := materializeRow(t, query.Row{"id": int64(1), "kind": "bootleg"})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "Kind", validationErr.Field)
}

func TestMaterializeBadPayloads(t *testing.T) {
	_, err := materializeRow(t, query.Row{"id": int64(1), "meta": []byte(`{broken`)})
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)

	_, err = materializeRow(t, query.Row{"id": int64(1), "at": "yesterday"})
	assert.ErrorAs(t, err, &validationErr)
}
