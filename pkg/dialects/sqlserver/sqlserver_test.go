package sqlserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimitOffsetRequiresOrder(t *testing.T) {
	d := Dialect{}
	assert.Equal(t, "", d.LimitOffset(-1, -1, false))
	assert.Equal(t, " ORDER BY (SELECT NULL) OFFSET 0 ROWS FETCH NEXT 2 ROWS ONLY", d.LimitOffset(2, -1, false))
	assert.Equal(t, " OFFSET 5 ROWS FETCH NEXT 2 ROWS ONLY", d.LimitOffset(2, 5, true))
}

func TestInsertSQLOutputsKey(t *testing.T) {
	d := Dialect{}
	sql, scanID := d.InsertSQL("albums", []string{"name"}, 1, "id")
	assert.True(t, scanID)
	assert.Equal(t, "INSERT INTO [albums] ([name]) OUTPUT INSERTED.[id] VALUES (@p1)", sql)
}
