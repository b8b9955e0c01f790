package ormkit

import (
	"log/slog"
	"os"
	"strings"

	"github.com/ormkit/ormkit/pkg/config"
	"github.com/ormkit/ormkit/pkg/query"
	"github.com/ormkit/ormkit/pkg/schema"
)

// DB is the handle shared by all managers: a backend plus the schema parser
// and logger they use. It holds no connection state of its own.
type DB struct {
	backend query.Backend
	parser  *schema.Parser
	logger  *slog.Logger
}

// Option configures a DB handle.
type Option func(*DB)

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(db *DB) { db.logger = logger }
}

// WithNamingStrategy replaces the default snake_case naming strategy used
// when parsing model schemas.
func WithNamingStrategy(ns schema.NamingStrategy) Option {
	return func(db *DB) { db.parser = schema.NewParser(ns) }
}

// NewDB wraps an already-connected backend in a DB handle.
func NewDB(backend query.Backend, opts ...Option) *DB {
	db := &DB{
		backend: backend,
		parser:  schema.NewParser(nil),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Backend exposes the underlying backend, for raw statement execution.
func (db *DB) Backend() query.Backend { return db.backend }

// Logger returns the handle's logger.
func (db *DB) Logger() *slog.Logger { return db.logger }

// Model parses and caches the schema for a model type.
func (db *DB) Model(value any) (*schema.Model, error) {
	return db.parser.Parse(value)
}

// NewLogger builds an slog.Logger from a logging config section: "json" or
// "text" format and a debug/info/warn/error level.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
