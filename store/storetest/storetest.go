// Package storetest opens throwaway in-memory stores for tests.
package storetest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cppla/anonid/config"
	"github.com/cppla/anonid/store"
)

var seq atomic.Int64

// New returns a migrated store backed by a private in-memory SQLite database.
func New(t testing.TB, opts ...store.Option) *store.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))
	db, err := config.OpenDatabase(config.AppConfig{DBDriver: "sqlite", DatabaseURI: dsn, LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return store.New(db, append([]store.Option{store.WithBackoff(0)}, opts...)...)
}
