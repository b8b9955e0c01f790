package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormkit/ormkit/pkg/schema"
)

func TestBindVar(t *testing.T) {
	d := Dialect{}
	assert.Equal(t, "$1", d.BindVar(1))
	assert.Equal(t, "$12", d.BindVar(12))
}

func TestDataType(t *testing.T) {
	d := Dialect{}

	pk, err := d.DataType(&schema.Field{Type: schema.TypeInteger, IsPrimaryKey: true, AutoIncrement: true})
	require.NoError(t, err)
	assert.Equal(t, "BIGSERIAL PRIMARY KEY", pk)

	jsonb, err := d.DataType(&schema.Field{Type: schema.TypeStringArray})
	require.NoError(t, err)
	assert.Equal(t, "JSONB", jsonb)
}

func TestCaseInsensitiveComparisons(t *testing.T) {
	d := Dialect{}
	// Equality must not treat % or _ in the value as wildcards.
	assert.Equal(t, `LOWER("name") = LOWER($1)`, d.CaseInsensitiveEq(`"name"`, "$1"))
	assert.Equal(t, `"name" ILIKE $1`, d.CaseInsensitiveLike(`"name"`, "$1"))
}

func TestInsertSQLReturnsKey(t *testing.T) {
	d := Dialect{}
	sql, scanID := d.InsertSQL("albums", []string{"name"}, 1, "id")
	assert.True(t, scanID, "pgx does not implement LastInsertId")
	assert.Equal(t, `INSERT INTO "albums" ("name") VALUES ($1) RETURNING "id"`, sql)

	sql, scanID = d.InsertSQL("albums", []string{"name"}, 2, "")
	assert.False(t, scanID)
	assert.Equal(t, `INSERT INTO "albums" ("name") VALUES ($1), ($2)`, sql)
}
