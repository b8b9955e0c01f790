// Package postgres registers the PostgreSQL dialect, backed by the pgx
// database/sql driver.
package postgres

import (
	"fmt"
	"reflect"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ormkit/ormkit/pkg/dialects"
	"github.com/ormkit/ormkit/pkg/schema"
)

func init() {
	dialects.Register(&Dialect{})
}

type Dialect struct{}

func (Dialect) Name() string       { return "postgres" }
func (Dialect) DriverName() string { return "pgx" }

func (Dialect) Quote(identifier string) string {
	return `"` + identifier + `"`
}

func (Dialect) BindVar(i int) string {
	return fmt.Sprintf("$%d", i)
}

func (d Dialect) DataType(field *schema.Field) (string, error) {
	if field.IsPrimaryKey {
		if field.AutoIncrement {
			return "BIGSERIAL PRIMARY KEY", nil
		}
		dt, err := d.baseType(field)
		if err != nil {
			return "", err
		}
		return dt + " PRIMARY KEY", nil
	}
	return d.baseType(field)
}

func (Dialect) baseType(field *schema.Field) (string, error) {
	switch field.Type {
	case schema.TypeBoolean:
		return "BOOLEAN", nil
	case schema.TypeInteger:
		return "BIGINT", nil
	case schema.TypeFloat:
		return "DOUBLE PRECISION", nil
	case schema.TypeString:
		return fmt.Sprintf("VARCHAR(%d)", field.Size), nil
	case schema.TypeText, schema.TypeEnum:
		return "TEXT", nil
	case schema.TypeDate:
		return "DATE", nil
	case schema.TypeDateTime:
		return "TIMESTAMPTZ", nil
	case schema.TypeTime:
		return "TIME", nil
	case schema.TypeJSON, schema.TypeStringArray:
		return "JSONB", nil
	case schema.TypeReference:
		if field.GoType.Kind() == reflect.String {
			return "VARCHAR(255)", nil
		}
		return "BIGINT", nil
	default:
		return "", fmt.Errorf("postgres: unsupported column type %s", field.Type)
	}
}

func (Dialect) CaseInsensitiveEq(column, bind string) string {
	// Not ILIKE: % and _ in the comparison value must not act as wildcards.
	return fmt.Sprintf("LOWER(%s) = LOWER(%s)", column, bind)
}

func (Dialect) CaseInsensitiveLike(column, bind string) string {
	return fmt.Sprintf("%s ILIKE %s", column, bind)
}

func (Dialect) LimitOffset(limit, offset int, _ bool) string {
	var sb strings.Builder
	if limit >= 0 {
		fmt.Fprintf(&sb, " LIMIT %d", limit)
	}
	if offset >= 0 {
		fmt.Fprintf(&sb, " OFFSET %d", offset)
	}
	return sb.String()
}

func (d Dialect) InsertSQL(table string, columns []string, rowCount int, pkColumn string) (string, bool) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.Quote(c)
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		d.Quote(table), strings.Join(quoted, ", "), dialects.ValuesClause(d, len(columns), rowCount))
	if pkColumn != "" {
		// The pgx driver does not implement LastInsertId.
		return sql + " RETURNING " + d.Quote(pkColumn), true
	}
	return sql, false
}

func (d Dialect) CreateTableSQL(table string, columnDefs []string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.Quote(table), strings.Join(columnDefs, ", "))
}
