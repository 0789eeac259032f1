package sqlite

import (
	"bytes"
	"context"

	"github.com/mattn/go-sqlite3"
)

// sqliteHeader starts every database image.
var sqliteHeader = []byte("SQLite format 3\x00")

// SerializeBinary returns an image of the main database, equivalent to the
// file contents with the WAL checkpointed.
func (db *DB) SerializeBinary(ctx context.Context) ([]byte, error) {
	var data []byte
	err := db.do("serialize", func() error {
		err := db.withRaw(func(c *sqlite3.SQLiteConn) error {
			var err error
			data, err = c.Serialize("main")
			return err
		})
		if err != nil {
			return engineError("serialize", err)
		}
		return nil
	})
	return data, err
}

// DeserializeBinary replaces the main database with the image in data. The
// handle then works on an in-memory copy; the file at Filename is left
// untouched. With readOnly the connection rejects writes afterwards.
func (db *DB) DeserializeBinary(ctx context.Context, data []byte, readOnly bool) error {
	if !bytes.HasPrefix(data, sqliteHeader) {
		return invalidUsage("deserialize", "data is not a SQLite database image")
	}
	return db.do("deserialize", func() error {
		if db.inTx.Load() {
			return invalidUsage("deserialize", "cannot replace the database inside a transaction")
		}
		img := bytes.Clone(data)
		// An in-memory image cannot use WAL; mark it as a rollback-journal
		// database (file format bytes 18 and 19).
		if len(img) > 19 && (img[18] == 2 || img[19] == 2) {
			img[18], img[19] = 1, 1
		}

		if db.stmts != nil {
			db.stmts.Purge()
		}
		err := db.withRaw(func(c *sqlite3.SQLiteConn) error {
			return c.Deserialize(img, "main")
		})
		if err != nil {
			return engineError("deserialize", err)
		}
		if readOnly {
			if _, err := db.conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
				return engineError("deserialize", err)
			}
		}
		db.logger.Info("database image loaded", "bytes", len(img), "readonly", readOnly)
		return nil
	})
}

// VacuumInto writes a compacted copy of the database to path, which must
// not already hold a database.
func (db *DB) VacuumInto(ctx context.Context, path string) error {
	return db.do("vacuum_into", func() error {
		if _, err := db.conn.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
			return engineError("vacuum_into", err)
		}
		return nil
	})
}
