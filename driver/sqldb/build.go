package sqldb

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/ormkit/ormkit/pkg/dialects"
	"github.com/ormkit/ormkit/pkg/query"
	"github.com/ormkit/ormkit/pkg/schema"
)

// binder accumulates placeholder arguments with continuous numbering.
type binder struct {
	dialect dialects.Dialect
	args    []any
}

func (b *binder) add(value any) string {
	b.args = append(b.args, value)
	return b.dialect.BindVar(len(b.args))
}

func (s *Source) buildSelect(st *query.SelectStatement) (string, []any, error) {
	model := st.Model
	qt := s.dialect.Quote
	b := &binder{dialect: s.dialect}

	var columns []string
	if st.CountOnly {
		columns = []string{"COUNT(*) AS count"}
	} else {
		for _, field := range model.Fields {
			columns = append(columns, qt(model.TableName)+"."+qt(field.DBName))
		}
		for _, join := range st.Joins {
			if !join.Eager {
				continue
			}
			for _, field := range join.Relation.Model.Fields {
				columns = append(columns,
					qt(join.Relation.Name)+"."+qt(field.DBName)+
						" AS "+qt(query.RelatedAlias(join.Relation.Name, field.DBName)))
			}
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(columns, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(qt(model.TableName))

	// Joined tables are aliased by relation name so two relations to the
	// same table, or a self reference, stay distinguishable.
	for _, join := range st.Joins {
		rel := join.Relation
		kind := "INNER JOIN"
		if rel.Field.Nullable {
			kind = "LEFT JOIN"
		}
		fmt.Fprintf(&sb, " %s %s AS %s ON %s.%s = %s.%s",
			kind, qt(rel.Model.TableName), qt(rel.Name),
			qt(model.TableName), qt(rel.Field.DBName),
			qt(rel.Name), qt(rel.Model.PrimaryKey.DBName))
	}

	if len(st.Where) > 0 {
		conditions, err := s.buildWhere(st.Where, b, model, true)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conditions, " AND "))
	}

	if len(st.OrderBy) > 0 {
		terms := make([]string, len(st.OrderBy))
		for i, ord := range st.OrderBy {
			terms[i] = qt(model.TableName) + "." + qt(ord.Field.DBName)
			if ord.Desc {
				terms[i] += " DESC"
			}
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(terms, ", "))
	}

	sb.WriteString(s.dialect.LimitOffset(st.Limit, st.Offset, len(st.OrderBy) > 0))
	return sb.String(), b.args, nil
}

func (s *Source) buildInsert(st *query.InsertStatement) (string, []any, bool, error) {
	if len(st.Rows) == 0 {
		return "", nil, false, fmt.Errorf("sqldb: insert into %s with no rows", st.Model.TableName)
	}
	names := make([]string, len(st.Columns))
	for i, col := range st.Columns {
		names[i] = col.DBName
	}

	// Ask the dialect to surface the generated key only for single-row
	// inserts into tables with a database-assigned primary key.
	pkColumn := ""
	pk := st.Model.PrimaryKey
	if len(st.Rows) == 1 && pk != nil && pk.AutoIncrement {
		assigned := false
		for _, col := range st.Columns {
			if col == pk {
				assigned = true
				break
			}
		}
		if !assigned {
			pkColumn = pk.DBName
		}
	}

	sqlStr, scanID := s.dialect.InsertSQL(st.Model.TableName, names, len(st.Rows), pkColumn)
	args := make([]any, 0, len(st.Rows)*len(st.Columns))
	for _, row := range st.Rows {
		if len(row) != len(st.Columns) {
			return "", nil, false, fmt.Errorf("sqldb: insert into %s: row has %d values for %d columns",
				st.Model.TableName, len(row), len(st.Columns))
		}
		for i, value := range row {
			bound, err := bindValue(st.Columns[i], value)
			if err != nil {
				return "", nil, false, err
			}
			args = append(args, bound)
		}
	}
	return sqlStr, args, scanID, nil
}

func (s *Source) buildUpdate(st *query.UpdateStatement) (string, []any, error) {
	qt := s.dialect.Quote
	b := &binder{dialect: s.dialect}

	assignments := make([]string, len(st.Set))
	for i, cv := range st.Set {
		bound, err := bindValue(cv.Field, cv.Value)
		if err != nil {
			return "", nil, err
		}
		assignments[i] = qt(cv.Field.DBName) + " = " + b.add(bound)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "UPDATE %s SET %s", qt(st.Model.TableName), strings.Join(assignments, ", "))
	if len(st.Where) > 0 {
		conditions, err := s.buildWhere(st.Where, b, st.Model, false)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conditions, " AND "))
	}
	return sb.String(), b.args, nil
}

func (s *Source) buildDelete(st *query.DeleteStatement) (string, []any, error) {
	b := &binder{dialect: s.dialect}
	var sb strings.Builder
	fmt.Fprintf(&sb, "DELETE FROM %s", s.dialect.Quote(st.Model.TableName))
	if len(st.Where) > 0 {
		conditions, err := s.buildWhere(st.Where, b, st.Model, false)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conditions, " AND "))
	}
	return sb.String(), b.args, nil
}

// buildWhere renders each predicate leaf, in declaration order. qualified
// selects prefix columns with their table (or join alias); updates and
// deletes use bare column names and reject relation leaves.
func (s *Source) buildWhere(leaves []query.Leaf, b *binder, model *schema.Model, qualified bool) ([]string, error) {
	conditions := make([]string, 0, len(leaves))
	for _, leaf := range leaves {
		if leaf.Relation != "" && !qualified {
			return nil, fmt.Errorf("sqldb: predicate on relation %q is not supported for this statement", leaf.Relation)
		}
		column := s.dialect.Quote(leaf.Field.DBName)
		if qualified {
			owner := model.TableName
			if leaf.Relation != "" {
				owner = leaf.Relation
			}
			column = s.dialect.Quote(owner) + "." + column
		}
		condition, err := s.buildCondition(column, leaf, b)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, condition)
	}
	return conditions, nil
}

func (s *Source) buildCondition(column string, leaf query.Leaf, b *binder) (string, error) {
	switch leaf.Op {
	case query.OpExact:
		if leaf.Value == nil {
			return column + " IS NULL", nil
		}
		bound, err := bindValue(leaf.Field, leaf.Value)
		if err != nil {
			return "", err
		}
		return column + " = " + b.add(bound), nil
	case query.OpIExact:
		return s.dialect.CaseInsensitiveEq(column, b.add(leaf.Value)), nil
	case query.OpContains:
		return column + " LIKE " + b.add(containsPattern(leaf.Value)), nil
	case query.OpIContains:
		return s.dialect.CaseInsensitiveLike(column, b.add(containsPattern(leaf.Value))), nil
	case query.OpLT, query.OpLTE, query.OpGT, query.OpGTE:
		bound, err := bindValue(leaf.Field, leaf.Value)
		if err != nil {
			return "", err
		}
		return column + " " + comparisonSymbol(leaf.Op) + " " + b.add(bound), nil
	case query.OpIn:
		return s.buildIn(column, leaf, b)
	default:
		return "", fmt.Errorf("sqldb: unsupported operator %q", leaf.Op)
	}
}

func comparisonSymbol(op query.Op) string {
	switch op {
	case query.OpLT:
		return "<"
	case query.OpLTE:
		return "<="
	case query.OpGT:
		return ">"
	default:
		return ">="
	}
}

func (s *Source) buildIn(column string, leaf query.Leaf, b *binder) (string, error) {
	v := reflect.ValueOf(leaf.Value)
	if !v.IsValid() || (v.Kind() != reflect.Slice && v.Kind() != reflect.Array) {
		return "", fmt.Errorf("sqldb: operator in requires a slice value, got %T", leaf.Value)
	}
	if v.Len() == 0 {
		// IN over the empty set matches nothing.
		return "1 = 0", nil
	}
	binds := make([]string, v.Len())
	for i := 0; i < v.Len(); i++ {
		bound, err := bindValue(leaf.Field, v.Index(i).Interface())
		if err != nil {
			return "", err
		}
		binds[i] = b.add(bound)
	}
	return column + " IN (" + strings.Join(binds, ", ") + ")", nil
}

// containsPattern wraps the comparison value in LIKE wildcards. Escaping of
// % and _ in the needle is intentionally not performed, matching the
// substring-search contract of the contains operators.
func containsPattern(value any) string {
	return "%" + fmt.Sprintf("%v", value) + "%"
}

// bindValue converts a field value into a driver-friendly argument.
// Document-shaped columns are serialized to JSON text here, keeping the
// core free of storage encodings.
func bindValue(field *schema.Field, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch field.Type {
	case schema.TypeJSON, schema.TypeStringArray:
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("sqldb: encoding column %s: %w", field.DBName, err)
		}
		return string(encoded), nil
	default:
		return value, nil
	}
}
