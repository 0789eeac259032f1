package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/roach88/sqlbridge/internal/metrics"
)

// Column describes one column of a table, as reported by PRAGMA table_info.
type Column struct {
	CID     int     `db:"cid" json:"cid"`
	Name    string  `db:"name" json:"name"`
	Type    string  `db:"type" json:"type"`
	NotNull bool    `db:"notnull" json:"notnull"`
	Default *string `db:"dflt_value" json:"dflt_value"`
	PK      int     `db:"pk" json:"pk"`
}

// Index describes one index of a table. Columns lists the indexed column
// names in key order; expression terms are omitted.
type Index struct {
	Name    string   `db:"name" json:"name"`
	Unique  bool     `db:"unique" json:"unique"`
	Origin  string   `db:"origin" json:"origin"`
	Partial bool     `db:"partial" json:"partial"`
	Columns []string `db:"-" json:"columns"`
}

// Metadata summarizes the database.
type Metadata struct {
	TableCount    int    `json:"table_count"`
	IndexCount    int    `json:"index_count"`
	PageCount     int64  `json:"page_count"`
	PageSize      int64  `json:"page_size"`
	SizeBytes     int64  `json:"db_size_bytes"`
	SQLiteVersion string `json:"sqlite_version"`
}

const exportSchemaQuery = `SELECT sql FROM sqlite_master
WHERE sql IS NOT NULL
ORDER BY CASE WHEN type = 'table' THEN 1 WHEN type = 'index' THEN 2 ELSE 3 END, name`

// Tables lists user tables by name, excluding SQLite's internal tables.
func (db *DB) Tables(ctx context.Context) ([]string, error) {
	tables := []string{}
	err := db.do("tables", func() error {
		return db.selectLocked(ctx, "tables", &tables,
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	})
	return tables, err
}

// Columns describes the columns of table in declaration order. An unknown
// table yields an empty slice.
func (db *DB) Columns(ctx context.Context, table string) ([]Column, error) {
	var cols []Column
	err := db.do("columns", func() error {
		var err error
		cols, err = db.columnsLocked(ctx, table)
		return err
	})
	return cols, err
}

func (db *DB) columnsLocked(ctx context.Context, table string) ([]Column, error) {
	cols := []Column{}
	err := db.selectLocked(ctx, "columns", &cols,
		`SELECT cid, name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`, table)
	return cols, err
}

// Indexes describes the indexes of table, including automatic ones.
func (db *DB) Indexes(ctx context.Context, table string) ([]Index, error) {
	indexes := []Index{}
	err := db.do("indexes", func() error {
		if err := db.selectLocked(ctx, "indexes", &indexes,
			`SELECT name, "unique", origin, partial FROM pragma_index_list(?) ORDER BY seq`, table); err != nil {
			return err
		}
		for i := range indexes {
			var names []sql.NullString
			if err := db.selectLocked(ctx, "indexes", &names,
				"SELECT name FROM pragma_index_info(?) ORDER BY seqno", indexes[i].Name); err != nil {
				return err
			}
			indexes[i].Columns = []string{}
			for _, n := range names {
				if n.Valid {
					indexes[i].Columns = append(indexes[i].Columns, n.String)
				}
			}
		}
		return nil
	})
	return indexes, err
}

// TableSQL returns the CREATE statement of table. ok is false when the
// table does not exist.
func (db *DB) TableSQL(ctx context.Context, table string) (ddl string, ok bool, err error) {
	err = db.do("table_sql", func() error {
		err := db.conn.GetContext(ctx, &ddl,
			"SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", table)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil
		case err != nil:
			return engineError("table_sql", err)
		}
		ok = true
		return nil
	})
	return ddl, ok, err
}

// TableExists reports whether a table named table exists.
func (db *DB) TableExists(ctx context.Context, table string) (bool, error) {
	var exists bool
	err := db.do("table_exists", func() error {
		var err error
		exists, err = db.tableExistsLocked(ctx, table)
		return err
	})
	return exists, err
}

func (db *DB) tableExistsLocked(ctx context.Context, table string) (bool, error) {
	var n int
	if err := db.conn.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table); err != nil {
		return false, engineError("table_exists", err)
	}
	return n > 0, nil
}

// ExportSchema returns every schema statement, tables first, then indexes,
// then everything else, each group ordered by name and joined with ";\n".
func (db *DB) ExportSchema(ctx context.Context) (string, error) {
	var stmts []string
	err := db.do("export_schema", func() error {
		return db.selectLocked(ctx, "export_schema", &stmts, exportSchemaQuery)
	})
	if err != nil {
		return "", err
	}
	return strings.Join(stmts, ";\n"), nil
}

// ImportSchema runs schema text, such as the output of ExportSchema, as one
// batch.
func (db *DB) ImportSchema(ctx context.Context, ddl string) error {
	return db.do("import_schema", func() error {
		_, err := db.execLocked(ctx, metrics.OpExec, ddl, nil)
		db.syncTxStateLocked()
		return err
	})
}

// Metadata reports object counts and the database size.
func (db *DB) Metadata(ctx context.Context) (Metadata, error) {
	var md Metadata
	err := db.do("metadata", func() error {
		queries := []struct {
			dest  any
			query string
		}{
			{&md.TableCount, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'"},
			{&md.IndexCount, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name NOT LIKE 'sqlite_%'"},
			{&md.PageCount, "PRAGMA page_count"},
			{&md.PageSize, "PRAGMA page_size"},
			{&md.SQLiteVersion, "SELECT sqlite_version()"},
		}
		for _, q := range queries {
			if err := db.conn.GetContext(ctx, q.dest, q.query); err != nil {
				return engineError("metadata", err)
			}
		}
		md.SizeBytes = md.PageCount * md.PageSize
		return nil
	})
	return md, err
}

func (db *DB) selectLocked(ctx context.Context, op string, dest any, query string, args ...any) error {
	if err := db.conn.SelectContext(ctx, dest, query, args...); err != nil {
		return engineError(op, err)
	}
	return nil
}
