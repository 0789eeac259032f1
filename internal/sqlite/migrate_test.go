package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlbridge/internal/metrics"
)

var userMigrations = []Migration{
	{Version: 1, SQL: "CREATE TABLE users (id INTEGER PRIMARY KEY)", Description: "initial schema"},
	{Version: 2, SQL: "ALTER TABLE users ADD COLUMN name TEXT", Description: "add name"},
	{Version: 3, SQL: "CREATE INDEX idx_users_name ON users(name)", Description: "index name"},
}

func columnNames(t *testing.T, db *DB, table string) []string {
	t.Helper()
	cols, err := db.Columns(context.Background(), table)
	require.NoError(t, err)
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func TestInitSchemaThenMigrate(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	v, err := db.InitSchema(ctx, userMigrations[0].SQL, 0, "")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v)

	v, err = db.Migrate(ctx, userMigrations[:2], 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), v)
	assert.Equal(t, []string{"id", "name"}, columnNames(t, db, "users"))

	applied, err := db.AppliedMigrations(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.Equal(t, uint32(1), applied[0].Version)
	require.NotNil(t, applied[0].Description)
	assert.Equal(t, "initial schema", *applied[0].Description)
	require.NotNil(t, applied[1].AppliedAt)
	assert.Equal(t, "2024-01-02T03:04:05Z", *applied[1].AppliedAt)
}

func TestMigrate_OrderIndependent(t *testing.T) {
	ctx := context.Background()
	shuffled := []Migration{userMigrations[2], userMigrations[0], userMigrations[1]}

	a := openMemory(t)
	va, err := a.Migrate(ctx, userMigrations, 0)
	require.NoError(t, err)

	b := openMemory(t)
	vb, err := b.Migrate(ctx, shuffled, 0)
	require.NoError(t, err)

	assert.Equal(t, uint32(3), va)
	assert.Equal(t, va, vb)

	sa, err := a.ExportSchema(ctx)
	require.NoError(t, err)
	sb, err := b.ExportSchema(ctx)
	require.NoError(t, err)
	assert.Equal(t, sa, sb)
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()
	applied := testutil.ToFloat64(metrics.MigrationsAppliedTotal)

	v, err := db.Migrate(ctx, userMigrations, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), v)

	v, err = db.Migrate(ctx, userMigrations, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), v)

	rows, err := db.AppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, applied+3, testutil.ToFloat64(metrics.MigrationsAppliedTotal))
}

func TestMigrate_StopsAtTarget(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	v, err := db.Migrate(ctx, userMigrations, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v)
	assert.Equal(t, []string{"id"}, columnNames(t, db, "users"))

	// A lower target never downgrades.
	v, err = db.Migrate(ctx, userMigrations, 3)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), v)
	v, err = db.Migrate(ctx, userMigrations, 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), v)
}

func TestMigrate_AllowsGaps(t *testing.T) {
	db := openMemory(t)

	v, err := db.Migrate(context.Background(), []Migration{
		{Version: 1, SQL: "CREATE TABLE a (x INTEGER)"},
		{Version: 10, SQL: "CREATE TABLE b (x INTEGER)"},
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), v)
}

func TestMigrate_FailureRollsBackEverything(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()
	failures := testutil.ToFloat64(metrics.MigrationFailuresTotal)

	v, err := db.Migrate(ctx, []Migration{
		{Version: 1, SQL: "CREATE TABLE users (id INTEGER PRIMARY KEY)"},
		{Version: 2, SQL: "ALTER TABLE nope ADD COLUMN x"},
	}, 0)
	require.Error(t, err)
	assert.Equal(t, uint32(0), v)
	assert.ErrorIs(t, err, ErrMigrationFailed)
	assert.ErrorIs(t, err, ErrEngine)

	var me *MigrationError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, uint32(2), me.Version)

	exists, err := db.TableExists(ctx, "users")
	require.NoError(t, err)
	assert.False(t, exists)

	current, err := db.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), current)
	assert.False(t, db.InTransaction())
	assert.Equal(t, failures+1, testutil.ToFloat64(metrics.MigrationFailuresTotal))
}

func TestMigrate_FailureReturnsPriorVersion(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	v, err := db.Migrate(ctx, userMigrations, 1)
	require.NoError(t, err)
	require.Equal(t, uint32(1), v)

	v, err = db.Migrate(ctx, []Migration{
		userMigrations[0],
		userMigrations[1],
		{Version: 3, SQL: "CREATE INDEX idx ON missing(x)"},
	}, 0)
	assert.ErrorIs(t, err, ErrMigrationFailed)
	assert.Equal(t, uint32(1), v)
	assert.Equal(t, []string{"id"}, columnNames(t, db, "users"))

	current, err := db.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), current)
}

func TestMigrate_RejectsBadVersions(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	_, err := db.Migrate(ctx, []Migration{{Version: 0, SQL: "SELECT 1"}}, 0)
	assert.ErrorIs(t, err, ErrInvalidUsage)

	_, err = db.Migrate(ctx, []Migration{
		{Version: 1, SQL: "SELECT 1"},
		{Version: 1, SQL: "SELECT 2"},
	}, 0)
	assert.ErrorIs(t, err, ErrInvalidUsage)
}

func TestMigrate_InsideTransactionFails(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	tx, err := db.Begin(ctx, Deferred)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	_, err = db.Migrate(ctx, userMigrations, 0)
	assert.ErrorIs(t, err, ErrInvalidUsage)
}

func TestSchemaVersion_NoTable(t *testing.T) {
	db := openMemory(t)

	v, err := db.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(0), v)

	applied, err := db.AppliedMigrations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestSetSchemaVersion(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	require.NoError(t, db.SetSchemaVersion(ctx, 5))
	v, err := db.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), v)

	require.NoError(t, db.SetSchemaVersion(ctx, 2))
	v, err = db.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), v)

	require.NoError(t, db.SetSchemaVersion(ctx, 0))
	v, err = db.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), v)
}

func TestCreateTableIfNotExists(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()
	ddl := `CREATE TABLE "Order Items" (id INTEGER PRIMARY KEY, qty INTEGER NOT NULL)`

	created, err := db.CreateTableIfNotExists(ctx, ddl)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = db.CreateTableIfNotExists(ctx, ddl)
	require.NoError(t, err)
	assert.False(t, created)

	_, err = db.CreateTableIfNotExists(ctx, "DROP TABLE x")
	assert.ErrorIs(t, err, ErrInvalidUsage)
}

func TestAddColumnIfNotExists(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()
	mustExec(t, db, "CREATE TABLE users (id INTEGER PRIMARY KEY)")

	added, err := db.AddColumnIfNotExists(ctx, "users", "email", "TEXT NOT NULL DEFAULT ''")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = db.AddColumnIfNotExists(ctx, "users", "EMAIL", "TEXT")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, []string{"id", "email"}, columnNames(t, db, "users"))

	_, err = db.AddColumnIfNotExists(ctx, "missing", "x", "TEXT")
	assert.ErrorIs(t, err, ErrInvalidUsage)
}

func TestRunSafe(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()
	mustExec(t, db, "CREATE TABLE users (id INTEGER PRIMARY KEY)")

	ok, err := db.RunSafe(ctx, "ALTER TABLE users ADD COLUMN name TEXT")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.RunSafe(ctx, "ALTER TABLE users ADD COLUMN name TEXT")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = db.RunSafe(ctx, "CREATE TABLE users (id INTEGER)")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = db.RunSafe(ctx, "SELEC 1")
	assert.ErrorIs(t, err, ErrEngine)

	ok, err = db.RunSafe(ctx, "INSERT INTO nowhere VALUES (1)", "no such table")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTableNameFromCreate(t *testing.T) {
	tests := []struct {
		ddl  string
		want string
		ok   bool
	}{
		{"CREATE TABLE users (id INTEGER)", "users", true},
		{"create table if not exists users(id)", "users", true},
		{"CREATE TEMP TABLE t (x)", "t", true},
		{`CREATE TABLE "my ""odd"" table" (x)`, `my "odd" table`, true},
		{"CREATE TABLE main.users (x)", "users", true},
		{"CREATE TABLE [bracketed] (x)", "bracketed", true},
		{"CREATE TABLE `ticked` (x)", "ticked", true},
		{"CREATE INDEX i ON t(x)", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.ddl, func(t *testing.T) {
			got, ok := TableNameFromCreate(tt.ddl)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
