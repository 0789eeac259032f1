package sqlite

import (
	"context"
	"database/sql"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/roach88/sqlbridge/internal/metrics"
	"github.com/roach88/sqlbridge/internal/schema"
)

// VersionTable is the bookkeeping table that records applied migrations.
// Its absence means version 0.
const VersionTable = "schema_version"

const createVersionTable = `CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at TEXT,
	description TEXT
)`

// Migration is one versioned schema change.
type Migration struct {
	Version     uint32 `yaml:"version" json:"version"`
	SQL         string `yaml:"sql" json:"sql"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// AppliedMigration is a row of the bookkeeping table.
type AppliedMigration struct {
	Version     uint32  `db:"version" json:"version"`
	AppliedAt   *string `db:"applied_at" json:"applied_at"`
	Description *string `db:"description" json:"description"`
}

// DefaultIgnoredErrors are the engine messages RunSafe treats as "already
// done".
var DefaultIgnoredErrors = []string{"already exists", "duplicate column name"}

// Migrate applies every migration with current < Version <= target, in
// ascending version order, inside one IMMEDIATE transaction, and returns the
// highest applied version. A target of 0 means the highest supplied version.
//
// When current >= target nothing runs and the current version is returned.
// If any migration fails the whole run is rolled back, and the version the
// schema was at before the run is returned with a *MigrationError naming the
// failed migration. Gaps between versions are allowed.
func (db *DB) Migrate(ctx context.Context, migrations []Migration, target uint32) (uint32, error) {
	sorted, err := sortMigrations(migrations)
	if err != nil {
		return 0, err
	}
	if target == 0 && len(sorted) > 0 {
		target = sorted[len(sorted)-1].Version
	}

	var version uint32
	err = db.do("migrate", func() error {
		current, err := db.schemaVersionLocked(ctx)
		if err != nil {
			return err
		}
		version = current
		if current >= target {
			db.logger.Debug("schema up to date", "version", current, "target", target)
			return nil
		}

		if _, err := db.beginLocked(ctx, Immediate); err != nil {
			return err
		}
		if _, err := db.conn.ExecContext(ctx, createVersionTable); err != nil {
			db.rollbackQuietLocked(ctx)
			return engineError("migrate", err)
		}

		applied := 0
		for _, m := range sorted {
			if m.Version <= current || m.Version > target {
				continue
			}
			if err := db.applyMigrationLocked(ctx, m); err != nil {
				db.rollbackQuietLocked(ctx)
				metrics.MigrationFailuresTotal.Inc()
				db.logger.Error("migration failed, rolled back", "version", m.Version, "error", err)
				version = current
				return &MigrationError{Version: m.Version, Err: err}
			}
			db.logger.Info("migration applied", "version", m.Version, "description", m.Description)
			version = m.Version
			applied++
		}

		if _, err := db.commitLocked(ctx, ""); err != nil {
			db.rollbackQuietLocked(ctx)
			metrics.MigrationFailuresTotal.Inc()
			version = current
			return err
		}
		metrics.MigrationsAppliedTotal.Add(float64(applied))
		db.logger.Info("migrations complete", "from", current, "to", version, "applied", applied)
		return nil
	})
	return version, err
}

func (db *DB) applyMigrationLocked(ctx context.Context, m Migration) error {
	if _, err := db.conn.ExecContext(ctx, m.SQL); err != nil {
		metrics.ObserveStatement(metrics.OpExec, err)
		return engineError("migrate", err)
	}
	metrics.ObserveStatement(metrics.OpExec, nil)
	return db.recordVersionLocked(ctx, m.Version, m.Description)
}

// sortMigrations returns a copy ordered by version. Zero and duplicate
// versions are rejected.
func sortMigrations(migrations []Migration) ([]Migration, error) {
	sorted := slices.Clone(migrations)
	slices.SortStableFunc(sorted, func(a, b Migration) int {
		switch {
		case a.Version < b.Version:
			return -1
		case a.Version > b.Version:
			return 1
		default:
			return 0
		}
	})
	for i, m := range sorted {
		if m.Version == 0 {
			return nil, invalidUsage("migrate", "migration version must be greater than 0")
		}
		if i > 0 && sorted[i-1].Version == m.Version {
			return nil, invalidUsage("migrate", "duplicate migration version %d", m.Version)
		}
	}
	return sorted, nil
}

// SchemaVersion returns the highest recorded version, or 0 when the
// bookkeeping table does not exist.
func (db *DB) SchemaVersion(ctx context.Context) (uint32, error) {
	var v uint32
	err := db.do("schema_version", func() error {
		var err error
		v, err = db.schemaVersionLocked(ctx)
		return err
	})
	return v, err
}

func (db *DB) schemaVersionLocked(ctx context.Context) (uint32, error) {
	exists, err := db.tableExistsLocked(ctx, VersionTable)
	if err != nil || !exists {
		return 0, err
	}
	var v int64
	if err := db.conn.GetContext(ctx, &v, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return 0, engineError("schema_version", err)
	}
	return uint32(v), nil
}

// AppliedMigrations lists the bookkeeping rows in version order.
func (db *DB) AppliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	var rows []AppliedMigration
	err := db.do("schema_version", func() error {
		exists, err := db.tableExistsLocked(ctx, VersionTable)
		if err != nil || !exists {
			return err
		}
		if err := db.conn.SelectContext(ctx, &rows,
			"SELECT version, applied_at, description FROM schema_version ORDER BY version"); err != nil {
			return engineError("schema_version", err)
		}
		return nil
	})
	return rows, err
}

// SetSchemaVersion records v as the current version, creating the
// bookkeeping table if needed. Rows above v are removed so SchemaVersion
// reports v afterwards.
func (db *DB) SetSchemaVersion(ctx context.Context, v uint32) error {
	return db.do("set_schema_version", func() error {
		const sp = `"set_schema_version"`
		if _, err := db.conn.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
			return engineError("set_schema_version", err)
		}
		err := db.setVersionLocked(ctx, v)
		if err != nil {
			db.conn.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp)
		}
		if _, relErr := db.conn.ExecContext(ctx, "RELEASE SAVEPOINT "+sp); relErr != nil && err == nil {
			err = engineError("set_schema_version", relErr)
		}
		return err
	})
}

func (db *DB) setVersionLocked(ctx context.Context, v uint32) error {
	if _, err := db.conn.ExecContext(ctx, createVersionTable); err != nil {
		return engineError("set_schema_version", err)
	}
	if _, err := db.conn.ExecContext(ctx, "DELETE FROM schema_version WHERE version > ?", v); err != nil {
		return engineError("set_schema_version", err)
	}
	if v == 0 {
		return nil
	}
	return db.recordVersionLocked(ctx, v, "")
}

func (db *DB) recordVersionLocked(ctx context.Context, v uint32, description string) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO schema_version (version, applied_at, description) VALUES (?, ?, ?)",
		int64(v),
		db.opts.Clock().UTC().Format(time.RFC3339),
		sql.NullString{String: description, Valid: description != ""},
	)
	if err != nil {
		return engineError("record_version", err)
	}
	return nil
}

// InitSchema applies ddl as migration version (1 when version is 0). It is
// a no-op when the schema is already at or past that version.
func (db *DB) InitSchema(ctx context.Context, ddl string, version uint32, description string) (uint32, error) {
	if version == 0 {
		version = 1
	}
	if description == "" {
		description = "initial schema"
	}
	return db.Migrate(ctx, []Migration{{Version: version, SQL: ddl, Description: description}}, version)
}

var createTableRe = regexp.MustCompile(
	"(?is)^\\s*CREATE\\s+(?:TEMP\\s+|TEMPORARY\\s+)?TABLE\\s+(?:IF\\s+NOT\\s+EXISTS\\s+)?" +
		"((?:(?:\"[^\"]*\"|`[^`]*`|\\[[^\\]]*\\]|[A-Za-z_][A-Za-z0-9_$]*)\\s*\\.\\s*)?" +
		"(?:\"(?:[^\"]|\"\")*\"|`[^`]*`|\\[[^\\]]*\\]|[A-Za-z_][A-Za-z0-9_$]*))")

var schemaPrefixRe = regexp.MustCompile("^(?:\"[^\"]*\"|`[^`]*`|\\[[^\\]]*\\]|[A-Za-z_][A-Za-z0-9_$]*)\\s*\\.\\s*")

// TableNameFromCreate extracts the unquoted table name from a CREATE TABLE
// statement. A schema qualifier is dropped.
func TableNameFromCreate(ddl string) (string, bool) {
	m := createTableRe.FindStringSubmatch(ddl)
	if m == nil {
		return "", false
	}
	return unquoteIdent(schemaPrefixRe.ReplaceAllString(m[1], "")), true
}

func unquoteIdent(name string) string {
	if len(name) < 2 {
		return name
	}
	switch first, last := name[0], name[len(name)-1]; {
	case first == '"' && last == '"':
		return strings.ReplaceAll(name[1:len(name)-1], `""`, `"`)
	case first == '`' && last == '`', first == '[' && last == ']':
		return name[1 : len(name)-1]
	}
	return name
}

// CreateTableIfNotExists runs ddl unless the table it creates already
// exists. It reports whether the table was created. Validation findings
// for the statement are logged as warnings.
func (db *DB) CreateTableIfNotExists(ctx context.Context, ddl string) (bool, error) {
	table, ok := TableNameFromCreate(ddl)
	if !ok {
		return false, invalidUsage("create_table", "not a CREATE TABLE statement")
	}

	var created bool
	err := db.do("create_table", func() error {
		exists, err := db.tableExistsLocked(ctx, table)
		if err != nil || exists {
			return err
		}
		check := schema.ValidateCreateTable(ddl)
		for _, issue := range check.Issues {
			db.logger.Warn("create table issue", "table", table, "issue", issue)
		}
		for _, w := range check.Warnings {
			db.logger.Warn("create table warning", "table", table, "warning", w)
		}
		if _, err := db.execLocked(ctx, metrics.OpExec, ddl, nil); err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

// AddColumnIfNotExists adds column to table unless a column with that name
// (compared case-insensitively) already exists. It reports whether the
// column was added.
func (db *DB) AddColumnIfNotExists(ctx context.Context, table, column, definition string) (bool, error) {
	var added bool
	err := db.do("add_column", func() error {
		cols, err := db.columnsLocked(ctx, table)
		if err != nil {
			return err
		}
		if len(cols) == 0 {
			return invalidUsage("add_column", "table %q does not exist", table)
		}
		for _, c := range cols {
			if strings.EqualFold(c.Name, column) {
				return nil
			}
		}
		ddl := "ALTER TABLE " + quoteIdent(table) + " ADD COLUMN " + quoteIdent(column)
		if d := strings.TrimSpace(definition); d != "" {
			ddl += " " + d
		}
		if _, err := db.execLocked(ctx, metrics.OpExec, ddl, nil); err != nil {
			return err
		}
		added = true
		return nil
	})
	return added, err
}

// RunSafe runs query as a batch. An engine error whose message contains one
// of ignore (DefaultIgnoredErrors when empty) is logged and reported as
// false instead of failing.
func (db *DB) RunSafe(ctx context.Context, query string, ignore ...string) (bool, error) {
	if len(ignore) == 0 {
		ignore = DefaultIgnoredErrors
	}
	_, err := db.Exec(ctx, query)
	if err == nil {
		return true, nil
	}
	if CodeOf(err) != CodeEngine {
		return false, err
	}
	msg := strings.ToLower(err.Error())
	for _, substr := range ignore {
		if strings.Contains(msg, strings.ToLower(substr)) {
			db.logger.Warn("ignored error", "error", err)
			return false, nil
		}
	}
	return false, err
}
