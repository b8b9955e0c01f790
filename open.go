package ormkit

import (
	"github.com/ormkit/ormkit/driver/sqldb"
	"github.com/ormkit/ormkit/pkg/config"
)

// Open connects to the SQL database described by cfg and returns a ready
// DB handle. The dialect package matching cfg.Database.Dialect must be
// imported so it registers itself:
//
//	import _ "github.com/ormkit/ormkit/pkg/dialects/sqlite"
//
//	cfg, err := config.LoadConfig("")
//	db, err := ormkit.Open(cfg)
//
// Document stores are wired manually through NewDB and driver/mongostore.
func Open(cfg config.Config, opts ...Option) (*DB, error) {
	logger := NewLogger(cfg.Logging)
	source, err := sqldb.Open(cfg.Database, sqldb.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	all := append([]Option{WithLogger(logger)}, opts...)
	return NewDB(source, all...), nil
}
