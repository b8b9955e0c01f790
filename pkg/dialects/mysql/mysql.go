// Package mysql registers the MySQL dialect, backed by go-sql-driver/mysql.
package mysql

import (
	"fmt"
	"reflect"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"github.com/ormkit/ormkit/pkg/dialects"
	"github.com/ormkit/ormkit/pkg/schema"
)

func init() {
	dialects.Register(&Dialect{})
}

type Dialect struct{}

func (Dialect) Name() string       { return "mysql" }
func (Dialect) DriverName() string { return "mysql" }

func (Dialect) Quote(identifier string) string {
	return "`" + identifier + "`"
}

func (Dialect) BindVar(int) string { return "?" }

func (d Dialect) DataType(field *schema.Field) (string, error) {
	if field.IsPrimaryKey {
		if field.AutoIncrement {
			return "BIGINT AUTO_INCREMENT PRIMARY KEY", nil
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
		return "TINYINT(1)", nil
	case schema.TypeInteger:
		return "BIGINT", nil
	case schema.TypeFloat:
		return "DOUBLE", nil
	case schema.TypeString:
		return fmt.Sprintf("VARCHAR(%d)", field.Size), nil
	case schema.TypeText:
		return "TEXT", nil
	case schema.TypeEnum:
		quoted := make([]string, len(field.EnumValues))
		for i, v := range field.EnumValues {
			quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
		}
		return fmt.Sprintf("ENUM(%s)", strings.Join(quoted, ", ")), nil
	case schema.TypeDate:
		return "DATE", nil
	case schema.TypeDateTime:
		return "DATETIME(6)", nil
	case schema.TypeTime:
		return "TIME", nil
	case schema.TypeJSON, schema.TypeStringArray:
		return "JSON", nil
	case schema.TypeReference:
		if field.GoType.Kind() == reflect.String {
			return "VARCHAR(255)", nil
		}
		return "BIGINT", nil
	default:
		return "", fmt.Errorf("mysql: unsupported column type %s", field.Type)
	}
}

func (Dialect) CaseInsensitiveEq(column, bind string) string {
	return fmt.Sprintf("LOWER(%s) = LOWER(%s)", column, bind)
}

func (Dialect) CaseInsensitiveLike(column, bind string) string {
	return fmt.Sprintf("LOWER(%s) LIKE LOWER(%s)", column, bind)
}

func (Dialect) LimitOffset(limit, offset int, _ bool) string {
	var sb strings.Builder
	if limit >= 0 {
		fmt.Fprintf(&sb, " LIMIT %d", limit)
	} else if offset >= 0 {
		// MySQL has no OFFSET without LIMIT.
		sb.WriteString(" LIMIT 18446744073709551615")
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
