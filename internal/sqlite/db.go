package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/roach88/sqlbridge/internal/metrics"
	"github.com/roach88/sqlbridge/internal/value"
)

// DB is a single SQLite connection shared by any number of goroutines.
//
// Every operation takes one mutex for the duration of one logical engine
// operation (a statement, a batch, a migration run) and releases it before
// returning. Nothing holds the lock across calls, so statements from other
// goroutines can interleave between a caller's Begin and Commit; callers that
// share a DB must coordinate around open transactions themselves.
//
// Statements issued through the DB while a top-level transaction is open run
// inside that transaction.
//
// Callbacks registered with CreateFunction and CreateCollation run with the
// lock held and must not call back into the DB.
type DB struct {
	filename string
	opts     Options
	logger   *slog.Logger
	decoder  value.Decoder

	mu         sync.Mutex
	sqldb      *sqlx.DB
	conn       *sqlx.Conn
	stmts      *lru.Cache
	functions  map[string]struct{}
	collations map[string]struct{}

	inTx     atomic.Bool
	closed   atomic.Bool
	poisoned atomic.Bool
}

// Result reports the effect of the most recent data-changing statement.
type Result struct {
	Changes         int64 `db:"changes" json:"changes"`
	LastInsertRowID int64 `db:"last_insert_rowid" json:"last_insert_rowid"`
}

// Open opens the database at path, or a private in-memory database for
// ":memory:". A nil opts means DefaultOptions().
//
// Writable handles are configured with:
//   - WAL journal mode (file databases only)
//   - NORMAL synchronous mode
//   - foreign key enforcement
//   - a 64MB page cache and in-memory temp storage
//
// All handles get the configured busy timeout.
func Open(ctx context.Context, path string, opts *Options) (*DB, error) {
	o := DefaultOptions()
	if opts != nil {
		o = *opts
	}
	o.setDefaults()

	sqldb, err := sqlx.Open("sqlite3", o.dsn(path))
	if err != nil {
		return nil, engineError("open", err)
	}
	// One engine connection, checked out for the life of the handle.
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)

	conn, err := sqldb.Connx(ctx)
	if err != nil {
		sqldb.Close()
		return nil, engineError("open", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		sqldb.Close()
		return nil, engineError("open", err)
	}

	db := &DB{
		filename:   path,
		opts:       o,
		logger:     o.Logger,
		decoder:    value.Decoder{BlobsAsBase64: o.BlobsAsBase64},
		sqldb:      sqldb,
		conn:       conn,
		functions:  make(map[string]struct{}),
		collations: make(map[string]struct{}),
	}

	for _, pragma := range o.pragmas(path == MemoryPath || path == "") {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			conn.Close()
			sqldb.Close()
			return nil, engineError("open", fmt.Errorf("%s: %w", pragma, err))
		}
	}

	if o.StatementCacheSize > 0 {
		cache, err := lru.NewWithEvict(o.StatementCacheSize, func(key, val interface{}) {
			if err := val.(*sqlx.Stmt).Close(); err != nil {
				db.logger.Warn("failed to close evicted statement", "sql", key, "error", err)
			}
		})
		if err != nil {
			conn.Close()
			sqldb.Close()
			return nil, invalidUsage("open", "statement cache: %v", err)
		}
		db.stmts = cache
	}

	db.logger.Info("database opened", "path", path, "readonly", o.ReadOnly)
	return db, nil
}

// Filename returns the path passed to Open.
func (db *DB) Filename() string {
	return db.filename
}

// IsClosed reports whether Close has been called.
func (db *DB) IsClosed() bool {
	return db.closed.Load()
}

// InTransaction reports whether a top-level transaction is open. The read
// is lock-free and advisory.
func (db *DB) InTransaction() bool {
	return db.inTx.Load()
}

// ReadOnly reports whether the handle was opened read-only.
func (db *DB) ReadOnly() bool {
	return db.opts.ReadOnly
}

// EngineVersion returns the version of the linked SQLite library.
func EngineVersion() string {
	v, _, _ := sqlite3.Version()
	return v
}

// do runs fn holding the connection lock. A panic in fn poisons the handle:
// the lock is released, the panic continues, and every later call fails
// with ErrLockFailure.
func (db *DB) do(op string, fn func() error) error {
	if db.poisoned.Load() {
		return lockFailure(op)
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.poisoned.Load() {
		return lockFailure(op)
	}
	if db.closed.Load() {
		return closedError(op)
	}

	defer func() {
		if r := recover(); r != nil {
			db.poisoned.Store(true)
			db.logger.Error("panic during database operation, handle poisoned", "op", op, "panic", r)
			panic(r)
		}
	}()
	return fn()
}

// Run executes a single statement with bound parameters. params is
// classified by value.Classify.
func (db *DB) Run(ctx context.Context, query string, params any) (Result, error) {
	args := value.Classify(params).Args()
	var res Result
	err := db.do(metrics.OpRun, func() error {
		var err error
		res, err = db.execLocked(ctx, metrics.OpRun, query, args)
		db.syncTxStateLocked()
		return err
	})
	return res, err
}

// Exec runs one or more semicolon-separated statements without parameters.
// No transaction is added; wrap the text in BEGIN/COMMIT or use RunMany
// when the batch must be atomic.
func (db *DB) Exec(ctx context.Context, query string) (Result, error) {
	var res Result
	err := db.do(metrics.OpExec, func() error {
		var err error
		res, err = db.execLocked(ctx, metrics.OpExec, query, nil)
		db.syncTxStateLocked()
		return err
	})
	return res, err
}

// Query runs a statement and returns every row.
func (db *DB) Query(ctx context.Context, query string, params any) ([]value.Row, error) {
	args := value.Classify(params).Args()
	var rows []value.Row
	err := db.do(metrics.OpQuery, func() error {
		set, err := db.queryLocked(ctx, query, args)
		db.syncTxStateLocked()
		if err != nil {
			return err
		}
		rows = set.rows(db.decoder)
		return nil
	})
	return rows, err
}

// Close checkpoints the WAL (ignoring failure), finalizes cached statements
// and closes the connection. Closing a closed handle is a no-op. Close also
// releases a poisoned handle.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed.Load() {
		return nil
	}

	ctx := context.Background()
	if !db.opts.ReadOnly {
		if _, err := db.conn.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			db.logger.Warn("checkpoint on close failed", "path", db.filename, "error", err)
		}
	}
	if db.stmts != nil {
		db.stmts.Purge()
	}

	connErr := db.conn.Close()
	dbErr := db.sqldb.Close()
	db.closed.Store(true)
	db.inTx.Store(false)

	db.logger.Info("database closed", "path", db.filename)
	if connErr != nil {
		return engineError("close", connErr)
	}
	if dbErr != nil {
		return engineError("close", dbErr)
	}
	return nil
}

// execLocked runs query on the connection and reports changes() and
// last_insert_rowid() afterwards.
func (db *DB) execLocked(ctx context.Context, op, query string, args []any) (Result, error) {
	_, err := db.conn.ExecContext(ctx, query, args...)
	metrics.ObserveStatement(op, err)
	if err != nil {
		return Result{}, engineError(op, err)
	}
	return db.resultLocked(ctx, op)
}

func (db *DB) resultLocked(ctx context.Context, op string) (Result, error) {
	var res Result
	if err := db.conn.GetContext(ctx, &res, "SELECT changes() AS changes, last_insert_rowid() AS last_insert_rowid"); err != nil {
		return Result{}, engineError(op, err)
	}
	return res, nil
}

// withRaw runs fn against the driver connection.
func (db *DB) withRaw(fn func(c *sqlite3.SQLiteConn) error) error {
	return db.conn.Raw(func(dc any) error {
		c, ok := dc.(*sqlite3.SQLiteConn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", dc)
		}
		return fn(c)
	})
}

// syncTxStateLocked sets the transaction flag from the engine's autocommit
// state, so BEGIN/COMMIT issued as plain SQL keep InTransaction accurate.
func (db *DB) syncTxStateLocked() {
	var auto bool
	err := db.withRaw(func(c *sqlite3.SQLiteConn) error {
		auto = c.AutoCommit()
		return nil
	})
	if err != nil {
		db.logger.Warn("failed to read autocommit state", "error", err)
		return
	}
	db.inTx.Store(!auto)
}
