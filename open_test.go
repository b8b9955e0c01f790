package ormkit_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormkit/ormkit"
	"github.com/ormkit/ormkit/driver/sqldb"
	"github.com/ormkit/ormkit/pkg/config"
)

func TestOpen(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Database.Dialect = "sqlite"
	cfg.Database.DSN = ":memory:"

	db, err := ormkit.Open(cfg)
	require.NoError(t, err)
	src, ok := db.Backend().(*sqldb.Source)
	require.True(t, ok)
	defer src.Close()

	assert.NoError(t, src.Ping(context.Background()))
	assert.Equal(t, "sqlite", src.Dialect().Name())
}

func TestOpenUnknownDialect(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Database.Dialect = "oracle"
	cfg.Database.DSN = "whatever"

	_, err := ormkit.Open(cfg)
	assert.Error(t, err)
}
