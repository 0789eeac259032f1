package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlbridge/internal/value"
)

var fixedTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func testOptions() *Options {
	o := DefaultOptions()
	o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	o.Clock = func() time.Time { return fixedTime }
	return &o
}

// openMemory opens a private in-memory database closed at test cleanup.
func openMemory(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), MemoryPath, testOptions())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// openFile opens a fresh database file in a temp dir.
func openFile(t *testing.T) (*DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(context.Background(), path, testOptions())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, path
}

func mustExec(t *testing.T, db *DB, query string) {
	t.Helper()
	_, err := db.Exec(context.Background(), query)
	require.NoError(t, err)
}

func count(t *testing.T, db *DB, table string) int64 {
	t.Helper()
	rows, err := db.Query(context.Background(), "SELECT COUNT(*) AS n FROM "+quoteIdent(table), nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	v, _ := rows[0].Get("n")
	n, ok := v.(value.Integer)
	require.True(t, ok, "COUNT(*) returned %#v", v)
	return int64(n)
}
