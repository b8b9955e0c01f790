// Package dialects defines the syntax differences between the supported
// SQL databases and a registry the sqldb backend resolves them from.
// Dialect implementations register themselves from init, so importing a
// dialect package (usually blank) is what makes it available.
package dialects

import (
	"strings"
	"sync"

	"github.com/ormkit/ormkit/pkg/schema"
)

// Dialect captures the per-database syntax the sqldb backend needs.
type Dialect interface {
	// Name is the registry key ("sqlite", "postgres", "mysql", "sqlserver").
	Name() string

	// DriverName is the database/sql driver to open.
	DriverName() string

	// Quote wraps an identifier in the database's quoting characters.
	Quote(identifier string) string

	// BindVar returns the placeholder for the i-th parameter (1-based).
	BindVar(i int) string

	// DataType maps a field descriptor to a column type definition,
	// including PRIMARY KEY and auto-increment clauses for key columns.
	DataType(field *schema.Field) (string, error)

	// CaseInsensitiveEq renders a case-insensitive equality comparison.
	CaseInsensitiveEq(column, bind string) string

	// CaseInsensitiveLike renders a case-insensitive LIKE comparison.
	CaseInsensitiveLike(column, bind string) string

	// LimitOffset renders the pagination clause. hasOrder reports whether
	// the statement already carries an ORDER BY, which some databases
	// require before OFFSET.
	LimitOffset(limit, offset int, hasOrder bool) string

	// InsertSQL assembles an INSERT statement for rowCount rows sharing
	// the column list. When pkColumn is non-empty the generated key must
	// be observable: scanID true means the statement returns a row
	// holding the key (RETURNING / OUTPUT), false means the driver's
	// LastInsertId applies.
	InsertSQL(table string, columns []string, rowCount int, pkColumn string) (sql string, scanID bool)

	// CreateTableSQL renders a create-if-absent table statement.
	CreateTableSQL(table string, columnDefs []string) string
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Dialect)
)

// Register makes a dialect available under its name. It panics when called
// twice for the same name, mirroring database/sql driver registration.
func Register(d Dialect) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if d == nil {
		panic("dialects: Register called with nil dialect")
	}
	if _, dup := registry[d.Name()]; dup {
		panic("dialects: Register called twice for dialect " + d.Name())
	}
	registry[d.Name()] = d
}

// Get returns the dialect registered under name, or nil.
func Get(name string) Dialect {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[name]
}

// Registered lists the names of all registered dialects.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// ValuesClause builds the placeholder tuples for a multi-row insert, with
// parameter numbering continuing across rows.
func ValuesClause(d Dialect, columnCount, rowCount int) string {
	var sb strings.Builder
	n := 1
	for r := 0; r < rowCount; r++ {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for c := 0; c < columnCount; c++ {
			if c > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(d.BindVar(n))
			n++
		}
		sb.WriteString(")")
	}
	return sb.String()
}
