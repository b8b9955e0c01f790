// Package sqlserver registers the SQL Server dialect, backed by
// microsoft/go-mssqldb.
package sqlserver

import (
	"fmt"
	"reflect"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/ormkit/ormkit/pkg/dialects"
	"github.com/ormkit/ormkit/pkg/schema"
)

func init() {
	dialects.Register(&Dialect{})
}

type Dialect struct{}

func (Dialect) Name() string       { return "sqlserver" }
func (Dialect) DriverName() string { return "sqlserver" }

func (Dialect) Quote(identifier string) string {
	return "[" + identifier + "]"
}

func (Dialect) BindVar(i int) string {
	return fmt.Sprintf("@p%d", i)
}

func (d Dialect) DataType(field *schema.Field) (string, error) {
	if field.IsPrimaryKey {
		if field.AutoIncrement {
			return "BIGINT IDENTITY(1,1) PRIMARY KEY", nil
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
		return "BIT", nil
	case schema.TypeInteger:
		return "BIGINT", nil
	case schema.TypeFloat:
		return "FLOAT", nil
	case schema.TypeString:
		return fmt.Sprintf("NVARCHAR(%d)", field.Size), nil
	case schema.TypeText, schema.TypeEnum, schema.TypeJSON, schema.TypeStringArray:
		return "NVARCHAR(MAX)", nil
	case schema.TypeDate:
		return "DATE", nil
	case schema.TypeDateTime:
		return "DATETIME2", nil
	case schema.TypeTime:
		return "TIME", nil
	case schema.TypeReference:
		if field.GoType.Kind() == reflect.String {
			return "NVARCHAR(255)", nil
		}
		return "BIGINT", nil
	default:
		return "", fmt.Errorf("sqlserver: unsupported column type %s", field.Type)
	}
}

func (Dialect) CaseInsensitiveEq(column, bind string) string {
	return fmt.Sprintf("LOWER(%s) = LOWER(%s)", column, bind)
}

func (Dialect) CaseInsensitiveLike(column, bind string) string {
	return fmt.Sprintf("LOWER(%s) LIKE LOWER(%s)", column, bind)
}

func (Dialect) LimitOffset(limit, offset int, hasOrder bool) string {
	if limit < 0 && offset < 0 {
		return ""
	}
	var sb strings.Builder
	if !hasOrder {
		// OFFSET requires an ORDER BY.
		sb.WriteString(" ORDER BY (SELECT NULL)")
	}
	if offset < 0 {
		offset = 0
	}
	fmt.Fprintf(&sb, " OFFSET %d ROWS", offset)
	if limit >= 0 {
		fmt.Fprintf(&sb, " FETCH NEXT %d ROWS ONLY", limit)
	}
	return sb.String()
}

func (d Dialect) InsertSQL(table string, columns []string, rowCount int, pkColumn string) (string, bool) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.Quote(c)
	}
	var output string
	scanID := false
	if pkColumn != "" {
		// The mssql driver does not implement LastInsertId.
		output = " OUTPUT INSERTED." + d.Quote(pkColumn)
		scanID = true
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s)%s VALUES %s",
		d.Quote(table), strings.Join(quoted, ", "), output, dialects.ValuesClause(d, len(columns), rowCount))
	return sql, scanID
}

func (d Dialect) CreateTableSQL(table string, columnDefs []string) string {
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (%s)",
		table, d.Quote(table), strings.Join(columnDefs, ", "))
}
