package sqlite

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/roach88/sqlbridge/internal/metrics"
	"github.com/roach88/sqlbridge/internal/value"
)

// TxMode is the locking mode of a top-level transaction.
type TxMode int

const (
	Deferred TxMode = iota
	Immediate
	Exclusive
)

// String returns the SQL keyword for the mode.
func (m TxMode) String() string {
	switch m {
	case Immediate:
		return "IMMEDIATE"
	case Exclusive:
		return "EXCLUSIVE"
	default:
		return "DEFERRED"
	}
}

// ParseTxMode parses "deferred", "immediate" or "exclusive" in any case.
// The empty string is Deferred.
func ParseTxMode(s string) (TxMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "deferred":
		return Deferred, nil
	case "immediate":
		return Immediate, nil
	case "exclusive":
		return Exclusive, nil
	default:
		return Deferred, invalidUsage("begin", "unknown transaction mode %q", s)
	}
}

// Tx is an open top-level transaction or a savepoint inside one.
//
// A top-level Tx has no name. Committing or rolling it back clears
// DB.InTransaction. A savepoint Tx carries its name; releasing or rolling it
// back never changes DB.InTransaction.
//
// After a successful Commit or Rollback every method returns ErrTxDone, as
// do the methods of every savepoint opened inside it. A failed Commit or
// Rollback leaves the Tx open so the caller can retry or roll back.
type Tx struct {
	db     *DB
	parent *Tx
	name   string
	mode   TxMode
	done   atomic.Bool
}

// Begin starts a top-level transaction. It fails with ErrInvalidUsage when
// one is already open on this handle.
func (db *DB) Begin(ctx context.Context, mode TxMode) (*Tx, error) {
	var tx *Tx
	err := db.do("begin", func() error {
		var err error
		tx, err = db.beginLocked(ctx, mode)
		return err
	})
	return tx, err
}

// RunMany runs each statement as a batch inside one transaction. The first
// failing statement rolls the transaction back and its error is returned;
// nothing is committed unless every statement succeeds. The Result reflects
// the last statement.
func (db *DB) RunMany(ctx context.Context, mode TxMode, statements []string) (Result, error) {
	var res Result
	err := db.do("run_many", func() error {
		if _, err := db.beginLocked(ctx, mode); err != nil {
			return err
		}
		for i, stmt := range statements {
			_, err := db.conn.ExecContext(ctx, stmt)
			metrics.ObserveStatement(metrics.OpExec, err)
			if err != nil {
				db.rollbackQuietLocked(ctx)
				return &Error{
					Code:    CodeEngine,
					Op:      "run_many",
					Message: fmt.Sprintf("statement %d: SQLite Error: %v", i, err),
					Err:     err,
				}
			}
		}
		var err error
		res, err = db.commitLocked(ctx, "")
		if err != nil {
			db.rollbackQuietLocked(ctx)
		}
		return err
	})
	return res, err
}

// Name returns the savepoint name, or "" for a top-level transaction.
func (tx *Tx) Name() string {
	return tx.name
}

// IsSavepoint reports whether tx is a savepoint.
func (tx *Tx) IsSavepoint() bool {
	return tx.name != ""
}

// Mode returns the locking mode of the enclosing top-level transaction.
func (tx *Tx) Mode() TxMode {
	return tx.mode
}

// Done reports whether tx or any enclosing transaction was committed or
// rolled back.
func (tx *Tx) Done() bool {
	for t := tx; t != nil; t = t.parent {
		if t.done.Load() {
			return true
		}
	}
	return false
}

// Run executes a statement inside the transaction.
func (tx *Tx) Run(ctx context.Context, query string, params any) (Result, error) {
	if tx.Done() {
		return Result{}, txDoneError(metrics.OpRun)
	}
	return tx.db.Run(ctx, query, params)
}

// Exec runs a batch inside the transaction.
func (tx *Tx) Exec(ctx context.Context, query string) (Result, error) {
	if tx.Done() {
		return Result{}, txDoneError(metrics.OpExec)
	}
	return tx.db.Exec(ctx, query)
}

// Query returns every row of a statement run inside the transaction.
func (tx *Tx) Query(ctx context.Context, query string, params any) ([]value.Row, error) {
	if tx.Done() {
		return nil, txDoneError(metrics.OpQuery)
	}
	return tx.db.Query(ctx, query, params)
}

// Savepoint opens a nested savepoint. An empty name is replaced with a
// generated one.
func (tx *Tx) Savepoint(ctx context.Context, name string) (*Tx, error) {
	if name == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate savepoint name: %w", err)
		}
		name = "sp_" + strings.ReplaceAll(id.String(), "-", "")
	}

	var sp *Tx
	err := tx.db.do("savepoint", func() error {
		if tx.Done() {
			return txDoneError("savepoint")
		}
		_, err := tx.db.conn.ExecContext(ctx, "SAVEPOINT "+quoteIdent(name))
		if err != nil {
			metrics.ObserveTransaction(true, metrics.OutcomeError)
			return engineError("savepoint", err)
		}
		metrics.ObserveTransaction(true, metrics.OutcomeBegin)
		tx.db.logger.Debug("savepoint opened", "savepoint", name)
		sp = &Tx{db: tx.db, parent: tx, name: name, mode: tx.mode}
		return nil
	})
	return sp, err
}

// Commit commits a top-level transaction or releases a savepoint.
func (tx *Tx) Commit(ctx context.Context) (Result, error) {
	var res Result
	err := tx.db.do("commit", func() error {
		if tx.Done() {
			return txDoneError("commit")
		}
		var err error
		res, err = tx.db.commitLocked(ctx, tx.name)
		if err == nil {
			tx.done.Store(true)
		}
		return err
	})
	return res, err
}

// Rollback rolls back a top-level transaction, or rolls back to and then
// releases a savepoint so its name can be reused.
func (tx *Tx) Rollback(ctx context.Context) (Result, error) {
	var res Result
	err := tx.db.do("rollback", func() error {
		if tx.Done() {
			return txDoneError("rollback")
		}
		var err error
		res, err = tx.db.rollbackLocked(ctx, tx.name)
		if err == nil {
			tx.done.Store(true)
		}
		return err
	})
	return res, err
}

func (db *DB) beginLocked(ctx context.Context, mode TxMode) (*Tx, error) {
	if db.inTx.Load() {
		return nil, invalidUsage("begin", "a transaction is already active")
	}
	if _, err := db.conn.ExecContext(ctx, "BEGIN "+mode.String()); err != nil {
		metrics.ObserveTransaction(false, metrics.OutcomeError)
		return nil, engineError("begin", err)
	}
	db.inTx.Store(true)
	metrics.ObserveTransaction(false, metrics.OutcomeBegin)
	db.logger.Debug("transaction started", "mode", mode)
	return &Tx{db: db, mode: mode}, nil
}

// commitLocked issues COMMIT, or RELEASE for a named savepoint. The
// transaction flag changes only after the engine accepts the statement.
func (db *DB) commitLocked(ctx context.Context, savepoint string) (Result, error) {
	stmt := "COMMIT"
	if savepoint != "" {
		stmt = "RELEASE SAVEPOINT " + quoteIdent(savepoint)
	}
	if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
		metrics.ObserveTransaction(savepoint != "", metrics.OutcomeError)
		return Result{}, engineError("commit", err)
	}
	if savepoint == "" {
		db.inTx.Store(false)
	}
	metrics.ObserveTransaction(savepoint != "", metrics.OutcomeCommit)
	db.logger.Debug("transaction committed", "savepoint", savepoint)
	return db.resultLocked(ctx, "commit")
}

func (db *DB) rollbackLocked(ctx context.Context, savepoint string) (Result, error) {
	if savepoint == "" {
		if _, err := db.conn.ExecContext(ctx, "ROLLBACK"); err != nil {
			metrics.ObserveTransaction(false, metrics.OutcomeError)
			return Result{}, engineError("rollback", err)
		}
		db.inTx.Store(false)
	} else {
		name := quoteIdent(savepoint)
		for _, stmt := range []string{"ROLLBACK TO SAVEPOINT " + name, "RELEASE SAVEPOINT " + name} {
			if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
				metrics.ObserveTransaction(true, metrics.OutcomeError)
				return Result{}, engineError("rollback", err)
			}
		}
	}
	metrics.ObserveTransaction(savepoint != "", metrics.OutcomeRollback)
	db.logger.Debug("transaction rolled back", "savepoint", savepoint)
	return db.resultLocked(ctx, "rollback")
}

// rollbackQuietLocked aborts whatever transaction is open after a failure
// and resynchronizes the flag. The original error is what callers see.
func (db *DB) rollbackQuietLocked(ctx context.Context) {
	if _, err := db.conn.ExecContext(ctx, "ROLLBACK"); err != nil {
		db.logger.Warn("rollback after failure", "error", err)
	} else {
		metrics.ObserveTransaction(false, metrics.OutcomeRollback)
	}
	db.syncTxStateLocked()
}

// quoteIdent quotes name as an SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
