package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlbridge/internal/value"
)

// QueryResult is the output of query.
type QueryResult struct {
	Columns []string    `json:"columns"`
	Rows    []value.Row `json:"rows"`
}

// RenderText prints the rows as a table.
func (r QueryResult) RenderText(w io.Writer) error {
	if len(r.Rows) == 0 {
		_, err := fmt.Fprintln(w, "(no rows)")
		return err
	}
	rows := make([][]string, len(r.Rows))
	for i, row := range r.Rows {
		cells := make([]string, row.Len())
		for j, v := range row.Values() {
			cells[j] = value.String(v)
		}
		rows[i] = cells
	}
	return renderTable(w, r.Columns, rows)
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <sql | @file> [params-json]",
		Short: "Run a query and print its rows",
		Long: `Run one SQL statement and print every row it returns.

Parameters are given as JSON: an array binds positional parameters (?),
an object binds named parameters (:name, @name or $name; keys may carry
any of the three prefixes or none).

Example:
  sqlbridge query --db app.db "SELECT * FROM users WHERE id = ?" '[1]'
  sqlbridge query --db app.db "SELECT * FROM users WHERE name = :name" '{"name":"ada"}'`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runQuery(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := commandContext(cmd)

	query, err := readSQLArg(opts.Fs, args[0])
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to read SQL", err)
	}

	var params any
	if len(args) == 2 {
		if params, err = parseParams(args[1]); err != nil {
			return formatter.Fail(ExitCommandError, "invalid params", err)
		}
	}

	db, err := opts.openDB(ctx)
	if err != nil {
		return err
	}
	defer opts.closeDB(db)

	rows, err := db.Query(ctx, query, params)
	if err != nil {
		return formatter.Fail(ExitFailure, "query failed", err)
	}

	out := QueryResult{Columns: []string{}, Rows: rows}
	if out.Rows == nil {
		out.Rows = []value.Row{}
	}
	if len(rows) > 0 {
		out.Columns = rows[0].Columns()
	}
	return formatter.Success(out)
}

// parseParams decodes a JSON parameter argument. Numbers keep their exact
// text so integers are bound as integers.
func parseParams(s string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var params any
	if err := dec.Decode(&params); err != nil {
		return nil, err
	}
	switch params.(type) {
	case []any, map[string]any:
		return params, nil
	default:
		return []any{params}, nil
	}
}
