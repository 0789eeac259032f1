package sqlite

import (
	"context"
	"strings"
	"unicode"

	"github.com/mattn/go-sqlite3"
)

// CreateFunction registers a Go function callable from SQL as name. impl
// must be a func whose arguments and results are types the driver can
// convert (integers, floats, strings, []byte, bool, any) with an optional
// trailing error result. pure marks the function deterministic, which lets
// SQLite use it in indexes and constant-fold it.
//
// Registering the same name twice on one handle fails with ErrInvalidUsage.
func (db *DB) CreateFunction(ctx context.Context, name string, impl any, pure bool) error {
	return db.do("create_function", func() error {
		key := strings.ToLower(name)
		if _, ok := db.functions[key]; ok {
			return invalidUsage("create_function", "Function '%s' already exists", name)
		}
		if err := db.withRaw(func(c *sqlite3.SQLiteConn) error {
			return c.RegisterFunc(name, impl, pure)
		}); err != nil {
			return engineError("create_function", err)
		}
		db.functions[key] = struct{}{}
		db.logger.Debug("function registered", "name", name, "pure", pure)
		return nil
	})
}

// CreateCollation registers a collating sequence usable as COLLATE name.
// cmp returns a negative number, zero or a positive number as a sorts
// before, equal to or after b.
//
// Registering the same name twice on one handle fails with ErrInvalidUsage.
func (db *DB) CreateCollation(ctx context.Context, name string, cmp func(a, b string) int) error {
	return db.do("create_collation", func() error {
		key := strings.ToLower(name)
		if _, ok := db.collations[key]; ok {
			return invalidUsage("create_collation", "Collation '%s' already exists", name)
		}
		if err := db.withRaw(func(c *sqlite3.SQLiteConn) error {
			return c.RegisterCollation(name, cmp)
		}); err != nil {
			return engineError("create_collation", err)
		}
		db.collations[key] = struct{}{}
		db.logger.Debug("collation registered", "name", name)
		return nil
	})
}

// LoadExtension loads a SQLite extension from path. An empty entry tries
// sqlite3_extension_init and then the name SQLite derives from the file
// name (libfoo.so -> sqlite3_foo_init).
func (db *DB) LoadExtension(ctx context.Context, path, entry string) error {
	return db.do("load_extension", func() error {
		entries := []string{entry}
		if entry == "" {
			entries = []string{"sqlite3_extension_init", derivedEntryPoint(path)}
		}
		var err error
		for _, e := range entries {
			err = db.withRaw(func(c *sqlite3.SQLiteConn) error {
				return c.LoadExtension(path, e)
			})
			if err == nil {
				db.logger.Info("extension loaded", "path", path, "entry", e)
				return nil
			}
		}
		return engineError("load_extension", err)
	})
}

// derivedEntryPoint mirrors SQLite's default: drop the directory, a "lib"
// prefix and everything from the first '.', keep only letters, lowercase.
func derivedEntryPoint(path string) string {
	base := path
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	base = strings.TrimPrefix(base, "lib")
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	var b strings.Builder
	for _, r := range base {
		if unicode.IsLetter(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return "sqlite3_" + b.String() + "_init"
}
