package sqlite

import (
	"context"
	"sync/atomic"

	"github.com/jmoiron/sqlx"

	"github.com/roach88/sqlbridge/internal/metrics"
	"github.com/roach88/sqlbridge/internal/value"
)

// resultSet is a fully read query result. Rows are materialized while the
// lock is held so no engine cursor outlives a call.
type resultSet struct {
	columns []string
	raw     [][]any
}

func (s *resultSet) rows(d value.Decoder) []value.Row {
	rows := make([]value.Row, len(s.raw))
	for i, r := range s.raw {
		rows[i] = d.DecodeRow(s.columns, r)
	}
	return rows
}

func (s *resultSet) values(d value.Decoder) [][]value.Value {
	out := make([][]value.Value, len(s.raw))
	for i, r := range s.raw {
		out[i] = d.DecodeRow(s.columns, r).Values()
	}
	return out
}

// stmtLocked returns a prepared statement for query, from the cache when
// possible. release must be called when the statement is no longer needed.
func (db *DB) stmtLocked(ctx context.Context, query string) (stmt *sqlx.Stmt, release func(), err error) {
	if db.stmts != nil {
		if v, ok := db.stmts.Get(query); ok {
			metrics.StatementCacheTotal.WithLabelValues(metrics.CacheHit).Inc()
			return v.(*sqlx.Stmt), func() {}, nil
		}
		metrics.StatementCacheTotal.WithLabelValues(metrics.CacheMiss).Inc()
		db.logger.Debug("statement cache miss", "sql", query)
	}

	stmt, err = db.conn.PreparexContext(ctx, query)
	metrics.ObserveStatement(metrics.OpPrepare, err)
	if err != nil {
		return nil, nil, engineError(metrics.OpPrepare, err)
	}

	if db.stmts == nil {
		return stmt, func() { stmt.Close() }, nil
	}
	db.stmts.Add(query, stmt)
	return stmt, func() {}, nil
}

func (db *DB) queryLocked(ctx context.Context, query string, args []any) (*resultSet, error) {
	stmt, release, err := db.stmtLocked(ctx, query)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := stmt.QueryxContext(ctx, args...)
	if err != nil {
		metrics.ObserveStatement(metrics.OpQuery, err)
		return nil, engineError(metrics.OpQuery, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		metrics.ObserveStatement(metrics.OpQuery, err)
		return nil, engineError(metrics.OpQuery, err)
	}

	// Nothing has been stepped yet, so switching statements here runs the
	// query exactly once.
	if types, err := rows.ColumnTypes(); err == nil && hasConvertedColumns(types) {
		if wrapped, ok := storageQuery(query, len(cols)); ok {
			wstmt, wrelease, err := db.stmtLocked(ctx, wrapped)
			if err == nil {
				defer wrelease()
				rows.Close()
				if rows, err = wstmt.QueryxContext(ctx, args...); err != nil {
					metrics.ObserveStatement(metrics.OpQuery, err)
					return nil, engineError(metrics.OpQuery, err)
				}
				defer rows.Close()
			} else {
				db.logger.Debug("statement cannot be wrapped, using driver conversions", "sql", query, "error", err)
			}
		}
	}

	set := &resultSet{columns: cols}
	for rows.Next() {
		raw, err := rows.SliceScan()
		if err != nil {
			metrics.ObserveStatement(metrics.OpQuery, err)
			return nil, engineError(metrics.OpQuery, err)
		}
		set.raw = append(set.raw, raw)
	}
	err = rows.Err()
	metrics.ObserveStatement(metrics.OpQuery, err)
	if err != nil {
		return nil, engineError(metrics.OpQuery, err)
	}
	return set, nil
}

// Stmt is a prepared statement bound to a DB. The compiled statement lives
// in the DB's statement cache; a Stmt itself holds only the SQL text, so it
// is cheap and safe for concurrent use.
type Stmt struct {
	db        *DB
	text      string
	finalized atomic.Bool
}

// Prepare compiles query once to validate it and returns a statement handle.
func (db *DB) Prepare(ctx context.Context, query string) (*Stmt, error) {
	err := db.do(metrics.OpPrepare, func() error {
		_, release, err := db.stmtLocked(ctx, query)
		if err != nil {
			return err
		}
		release()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Stmt{db: db, text: query}, nil
}

// SQL returns the statement text.
func (s *Stmt) SQL() string {
	return s.text
}

func (s *Stmt) query(ctx context.Context, op string, params any) (*resultSet, error) {
	if s.finalized.Load() {
		return nil, invalidUsage(op, "statement has been finalized")
	}
	args := value.Classify(params).Args()
	var set *resultSet
	err := s.db.do(op, func() error {
		var err error
		set, err = s.db.queryLocked(ctx, s.text, args)
		s.db.syncTxStateLocked()
		return err
	})
	return set, err
}

// All returns every result row.
func (s *Stmt) All(ctx context.Context, params any) ([]value.Row, error) {
	set, err := s.query(ctx, "all", params)
	if err != nil {
		return nil, err
	}
	return set.rows(s.db.decoder), nil
}

// Get returns the first result row, or nil when there is none.
func (s *Stmt) Get(ctx context.Context, params any) (*value.Row, error) {
	set, err := s.query(ctx, "get", params)
	if err != nil {
		return nil, err
	}
	if len(set.raw) == 0 {
		return nil, nil
	}
	row := s.db.decoder.DecodeRow(set.columns, set.raw[0])
	return &row, nil
}

// Values returns every result row as a positional slice.
func (s *Stmt) Values(ctx context.Context, params any) ([][]value.Value, error) {
	set, err := s.query(ctx, "values", params)
	if err != nil {
		return nil, err
	}
	return set.values(s.db.decoder), nil
}

// Run executes the statement and reports its effect.
func (s *Stmt) Run(ctx context.Context, params any) (Result, error) {
	if s.finalized.Load() {
		return Result{}, invalidUsage(metrics.OpRun, "statement has been finalized")
	}
	args := value.Classify(params).Args()
	var res Result
	err := s.db.do(metrics.OpRun, func() error {
		stmt, release, err := s.db.stmtLocked(ctx, s.text)
		if err != nil {
			return err
		}
		defer release()

		_, err = stmt.ExecContext(ctx, args...)
		metrics.ObserveStatement(metrics.OpRun, err)
		s.db.syncTxStateLocked()
		if err != nil {
			return engineError(metrics.OpRun, err)
		}
		res, err = s.db.resultLocked(ctx, metrics.OpRun)
		return err
	})
	return res, err
}

// Iterate executes the statement and returns a cursor over its rows.
func (s *Stmt) Iterate(ctx context.Context, params any) (*Cursor, error) {
	set, err := s.query(ctx, "iterate", params)
	if err != nil {
		return nil, err
	}
	return &Cursor{stmt: s, params: params, set: set}, nil
}

// Finalize drops the compiled statement from the cache. Later calls on s
// fail with ErrInvalidUsage.
func (s *Stmt) Finalize() error {
	if s.finalized.Swap(true) {
		return nil
	}
	err := s.db.do("finalize", func() error {
		if s.db.stmts != nil {
			s.db.stmts.Remove(s.text)
		}
		return nil
	})
	if CodeOf(err) == CodeClosed {
		return nil
	}
	return err
}

// Cursor walks the rows of one execution of a statement.
// A Cursor is not safe for concurrent use.
type Cursor struct {
	stmt   *Stmt
	params any
	set    *resultSet
	pos    int
}

// Columns returns the result column names.
func (c *Cursor) Columns() []string {
	return c.set.columns
}

// HasMore reports whether Next would return a row.
func (c *Cursor) HasMore() bool {
	return c.pos < len(c.set.raw)
}

// Next returns the next row, or false when the cursor is exhausted.
func (c *Cursor) Next() (value.Row, bool) {
	if !c.HasMore() {
		return value.Row{}, false
	}
	row := c.stmt.db.decoder.DecodeRow(c.set.columns, c.set.raw[c.pos])
	c.pos++
	return row, true
}

// NextValues returns the next row as a positional slice.
func (c *Cursor) NextValues() ([]value.Value, bool) {
	row, ok := c.Next()
	if !ok {
		return nil, false
	}
	return row.Values(), true
}

// Reset re-executes the statement with the same parameters and rewinds the
// cursor.
func (c *Cursor) Reset(ctx context.Context) error {
	set, err := c.stmt.query(ctx, "iterate", c.params)
	if err != nil {
		return err
	}
	c.set = set
	c.pos = 0
	return nil
}
