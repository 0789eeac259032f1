package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlbridge/internal/value"
)

func seedDeclaredTypes(t *testing.T, db *DB) {
	t.Helper()
	mustExec(t, db, "CREATE TABLE events (d DATE, ts DATETIME, at TIMESTAMP, flag BOOLEAN)")
	_, err := db.Run(context.Background(), "INSERT INTO events VALUES (?, ?, ?, ?)",
		[]any{value.Text("2024-01-02"), value.Integer(1700000000), value.Text("not a time"), value.Integer(5)})
	require.NoError(t, err)
}

var storedEvent = []value.Value{
	value.Text("2024-01-02"), value.Integer(1700000000), value.Text("not a time"), value.Integer(5),
}

func TestQuery_DeclaredTypesKeepStoredValues(t *testing.T) {
	db := openMemory(t)
	seedDeclaredTypes(t, db)

	rows, err := db.Query(context.Background(), "SELECT d, ts, at, flag FROM events", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"d", "ts", "at", "flag"}, rows[0].Columns())
	assert.Equal(t, storedEvent, rows[0].Values())
}

func TestQuery_DeclaredTypesWithTrailingSemicolon(t *testing.T) {
	db := openMemory(t)
	seedDeclaredTypes(t, db)

	rows, err := db.Query(context.Background(), "  -- all events\nSELECT * FROM events WHERE flag = :f;  ", map[string]any{"f": 5})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, storedEvent, rows[0].Values())
}

func TestQuery_DeclaredTypesKeepRowOrder(t *testing.T) {
	db := openMemory(t)
	mustExec(t, db, "CREATE TABLE flags (n INTEGER, on_ BOOLEAN)")
	mustExec(t, db, "INSERT INTO flags VALUES (1, 0), (2, 7), (3, -1)")

	rows, err := db.Query(context.Background(), "SELECT n, on_ FROM flags ORDER BY n DESC", nil)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []value.Value{value.Integer(3), value.Integer(-1)}, rows[0].Values())
	assert.Equal(t, []value.Value{value.Integer(2), value.Integer(7)}, rows[1].Values())
	assert.Equal(t, []value.Value{value.Integer(1), value.Integer(0)}, rows[2].Values())
}

func TestStmt_DeclaredTypesKeepStoredValues(t *testing.T) {
	db := openMemory(t)
	seedDeclaredTypes(t, db)
	ctx := context.Background()

	stmt, err := db.Prepare(ctx, "SELECT d, ts, at, flag FROM events")
	require.NoError(t, err)

	all, err := stmt.All(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, storedEvent, all[0].Values())

	row, err := stmt.Get(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, storedEvent, row.Values())

	vals, err := stmt.Values(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, [][]value.Value{storedEvent}, vals)
}

func TestStorageQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		ncols int
		want  string
		ok    bool
	}{
		{
			name:  "select",
			query: "SELECT a, b FROM t;",
			ncols: 2,
			want:  "WITH sqlbridge_rows(c0, c1) AS (\nSELECT a, b FROM t\n) SELECT +c0, +c1 FROM sqlbridge_rows",
			ok:    true,
		},
		{
			name:  "values",
			query: "VALUES (1)",
			ncols: 1,
			want:  "WITH sqlbridge_rows(c0) AS (\nVALUES (1)\n) SELECT +c0 FROM sqlbridge_rows",
			ok:    true,
		},
		{name: "insert returning", query: "INSERT INTO t VALUES (1) RETURNING d", ncols: 1},
		{name: "pragma", query: "PRAGMA table_info(t)", ncols: 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := storageQuery(tt.query, tt.ncols)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLeadingKeyword(t *testing.T) {
	tests := map[string]string{
		"SELECT 1":                      "select",
		"  \n\tselect 1":                "select",
		"-- note\nWITH x AS (SELECT 1)": "with",
		"/* c */ (SELECT 1)":            "select",
		"/* unterminated":               "",
		"-- only a comment":             "",
		"Insert into t values (1)":      "insert",
		"":                              "",
	}
	for query, want := range tests {
		assert.Equal(t, want, leadingKeyword(query), "query %q", query)
	}
}
