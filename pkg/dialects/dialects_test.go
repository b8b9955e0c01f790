package dialects_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormkit/ormkit/pkg/dialects"
	"github.com/ormkit/ormkit/pkg/dialects/mysql"
	"github.com/ormkit/ormkit/pkg/dialects/postgres"
	"github.com/ormkit/ormkit/pkg/dialects/sqlite"
	"github.com/ormkit/ormkit/pkg/dialects/sqlserver"
)

func TestRegistry(t *testing.T) {
	for _, name := range []string{"sqlite", "postgres", "mysql", "sqlserver"} {
		d := dialects.Get(name)
		require.NotNil(t, d, name)
		assert.Equal(t, name, d.Name())
	}
	assert.Nil(t, dialects.Get("oracle"))
	assert.Contains(t, dialects.Registered(), "sqlite")
}

func TestValuesClauseNumbering(t *testing.T) {
	assert.Equal(t, "($1, $2), ($3, $4)", dialects.ValuesClause(postgres.Dialect{}, 2, 2))
	assert.Equal(t, "(?, ?, ?)", dialects.ValuesClause(sqlite.Dialect{}, 3, 1))
	assert.Equal(t, "(@p1), (@p2)", dialects.ValuesClause(sqlserver.Dialect{}, 1, 2))
	assert.Equal(t, "(?)", dialects.ValuesClause(mysql.Dialect{}, 1, 1))
}
