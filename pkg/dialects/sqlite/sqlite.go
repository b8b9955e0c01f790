// Package sqlite registers the SQLite dialect, backed by mattn/go-sqlite3.
package sqlite

import (
	"fmt"
	"reflect"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ormkit/ormkit/pkg/dialects"
	"github.com/ormkit/ormkit/pkg/schema"
)

func init() {
	dialects.Register(&Dialect{})
}

type Dialect struct{}

func (Dialect) Name() string       { return "sqlite" }
func (Dialect) DriverName() string { return "sqlite3" }

func (Dialect) Quote(identifier string) string {
	return `"` + identifier + `"`
}

func (Dialect) BindVar(int) string { return "?" }

func (d Dialect) DataType(field *schema.Field) (string, error) {
	if field.IsPrimaryKey {
		if field.AutoIncrement {
			return "INTEGER PRIMARY KEY AUTOINCREMENT", nil
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
		return "INTEGER", nil
	case schema.TypeFloat:
		return "REAL", nil
	case schema.TypeString:
		return fmt.Sprintf("VARCHAR(%d)", field.Size), nil
	case schema.TypeText, schema.TypeEnum, schema.TypeJSON, schema.TypeStringArray:
		return "TEXT", nil
	case schema.TypeDate:
		return "DATE", nil
	case schema.TypeDateTime:
		return "DATETIME", nil
	case schema.TypeTime:
		return "TIME", nil
	case schema.TypeReference:
		if field.GoType.Kind() == reflect.String {
			return "VARCHAR(255)", nil
		}
		return "INTEGER", nil
	default:
		return "", fmt.Errorf("sqlite: unsupported column type %s", field.Type)
	}
}

func (Dialect) CaseInsensitiveEq(column, bind string) string {
	return fmt.Sprintf("LOWER(%s) = LOWER(%s)", column, bind)
}

func (Dialect) CaseInsensitiveLike(column, bind string) string {
	// SQLite's LIKE is case-insensitive for ASCII already, but LOWER keeps
	// the behavior explicit and consistent with the other dialects.
	return fmt.Sprintf("LOWER(%s) LIKE LOWER(%s)", column, bind)
}

func (Dialect) LimitOffset(limit, offset int, _ bool) string {
	var sb strings.Builder
	if limit >= 0 {
		fmt.Fprintf(&sb, " LIMIT %d", limit)
	} else if offset >= 0 {
		// SQLite requires LIMIT before OFFSET; -1 means no limit.
		sb.WriteString(" LIMIT -1")
	}
	if offset >= 0 {
		fmt.Fprintf(&sb, " OFFSET %d", offset)
	}
	return sb.String()
}

func (d Dialect) InsertSQL(table string, columns []string, rowCount int, _ string) (string, bool) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.Quote(c)
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		d.Quote(table), strings.Join(quoted, ", "), dialects.ValuesClause(d, len(columns), rowCount))
	return sql, false
}

func (d Dialect) CreateTableSQL(table string, columnDefs []string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.Quote(table), strings.Join(columnDefs, ", "))
}
