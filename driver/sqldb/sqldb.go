// Package sqldb implements the query.Backend interface over database/sql.
// Statement-to-SQL translation is parameterized by a dialects.Dialect, so
// one backend serves SQLite, PostgreSQL, MySQL and SQL Server.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/ormkit/ormkit/pkg/config"
	"github.com/ormkit/ormkit/pkg/dialects"
	"github.com/ormkit/ormkit/pkg/query"
	"github.com/ormkit/ormkit/pkg/schema"
)

// Source executes abstract statements against a SQL database. It owns SQL
// generation and placeholder binding; connection pooling is delegated to
// database/sql.
type Source struct {
	db      *sql.DB
	dialect dialects.Dialect
	logger  *slog.Logger
}

// Option customizes a Source.
type Option func(*Source)

// WithLogger sets the structured logger used for statement tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New wraps an already-open *sql.DB.
func New(db *sql.DB, dialect dialects.Dialect, opts ...Option) *Source {
	s := &Source{db: db, dialect: dialect, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to the database described by cfg. The dialect package for
// cfg.Dialect must be imported (usually blank) so it is registered.
func Open(cfg config.DatabaseConfig, opts ...Option) (*Source, error) {
	dialect := dialects.Get(cfg.Dialect)
	if dialect == nil {
		return nil, fmt.Errorf("sqldb: unknown dialect %q (missing dialect package import?)", cfg.Dialect)
	}
	db, err := sql.Open(dialect.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqldb: opening %s: %w", cfg.Dialect, err)
	}
	if cfg.Pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Pool.MaxOpenConns)
	}
	if cfg.Pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Pool.MaxIdleConns)
	}
	if cfg.Pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.Pool.ConnMaxLifetime)
	}
	return New(db, dialect, opts...), nil
}

// DB exposes the underlying handle.
func (s *Source) DB() *sql.DB { return s.db }

// Dialect reports the dialect this source renders SQL for.
func (s *Source) Dialect() dialects.Dialect { return s.dialect }

// Close closes the underlying pool.
func (s *Source) Close() error { return s.db.Close() }

// Ping verifies the connection.
func (s *Source) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Execute runs a write statement.
func (s *Source) Execute(ctx context.Context, stmt query.Statement) (query.ExecResult, error) {
	switch st := stmt.(type) {
	case *query.InsertStatement:
		return s.executeInsert(ctx, st)
	case *query.UpdateStatement:
		sqlStr, args, err := s.buildUpdate(st)
		if err != nil {
			return query.ExecResult{}, err
		}
		return s.exec(ctx, sqlStr, args)
	case *query.DeleteStatement:
		sqlStr, args, err := s.buildDelete(st)
		if err != nil {
			return query.ExecResult{}, err
		}
		return s.exec(ctx, sqlStr, args)
	default:
		return query.ExecResult{}, fmt.Errorf("sqldb: statement %T is not executable", stmt)
	}
}

func (s *Source) executeInsert(ctx context.Context, st *query.InsertStatement) (query.ExecResult, error) {
	sqlStr, args, scanID, err := s.buildInsert(st)
	if err != nil {
		return query.ExecResult{}, err
	}
	s.logger.DebugContext(ctx, "executing statement", "sql", sqlStr, "args", args)
	if scanID {
		var id int64
		if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&id); err != nil {
			return query.ExecResult{}, err
		}
		return query.ExecResult{RowsAffected: int64(len(st.Rows)), LastInsertID: id}, nil
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return query.ExecResult{}, err
	}
	affected, _ := res.RowsAffected()
	// Not every driver reports a generated key; zero means unknown.
	id, _ := res.LastInsertId()
	return query.ExecResult{RowsAffected: affected, LastInsertID: id}, nil
}

func (s *Source) exec(ctx context.Context, sqlStr string, args []any) (query.ExecResult, error) {
	s.logger.DebugContext(ctx, "executing statement", "sql", sqlStr, "args", args)
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return query.ExecResult{}, err
	}
	affected, _ := res.RowsAffected()
	return query.ExecResult{RowsAffected: affected}, nil
}

// FetchAll runs a select and returns every matching row.
func (s *Source) FetchAll(ctx context.Context, stmt query.Statement) ([]query.Row, error) {
	st, ok := stmt.(*query.SelectStatement)
	if !ok {
		return nil, fmt.Errorf("sqldb: statement %T is not fetchable", stmt)
	}
	sqlStr, args, err := s.buildSelect(st)
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "executing query", "sql", sqlStr, "args", args)
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

// FetchOne runs a select and returns the first matching row, or nil when
// nothing matches.
func (s *Source) FetchOne(ctx context.Context, stmt query.Statement) (query.Row, error) {
	st, ok := stmt.(*query.SelectStatement)
	if !ok {
		return nil, fmt.Errorf("sqldb: statement %T is not fetchable", stmt)
	}
	one := *st
	if one.Limit < 0 {
		one.Limit = 1
	}
	results, err := s.FetchAll(ctx, &one)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func scanRows(rows *sql.Rows) ([]query.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []query.Row
	for rows.Next() {
		holders := make([]any, len(columns))
		for i := range holders {
			holders[i] = new(any)
		}
		if err := rows.Scan(holders...); err != nil {
			return nil, err
		}
		row := make(query.Row, len(columns))
		for i, col := range columns {
			value := *(holders[i].(*any))
			// Drivers may reuse the byte buffer between rows.
			if b, isBytes := value.([]byte); isBytes {
				value = append([]byte(nil), b...)
			}
			row[col] = value
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// EnsureTable creates the model's table when it does not exist yet.
func (s *Source) EnsureTable(ctx context.Context, model *schema.Model) error {
	defs := make([]string, 0, len(model.Fields))
	for _, field := range model.Fields {
		dataType, err := s.dialect.DataType(field)
		if err != nil {
			return fmt.Errorf("sqldb: table %s: %w", model.TableName, err)
		}
		def := s.dialect.Quote(field.DBName) + " " + dataType
		if !field.IsPrimaryKey {
			if !field.Nullable {
				def += " NOT NULL"
			}
			if field.Unique {
				def += " UNIQUE"
			}
		}
		defs = append(defs, def)
	}
	sqlStr := s.dialect.CreateTableSQL(model.TableName, defs)
	s.logger.DebugContext(ctx, "executing statement", "sql", sqlStr)
	_, err := s.db.ExecContext(ctx, sqlStr)
	return err
}

// EnsureTables creates every given model's table, in order. Referenced
// models should come before the models referring to them.
func (s *Source) EnsureTables(ctx context.Context, models ...*schema.Model) error {
	for _, model := range models {
		if err := s.EnsureTable(ctx, model); err != nil {
			return err
		}
	}
	return nil
}
