package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/roach88/sqlbridge/internal/sqlite"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	Transaction string
}

// ExecResult is the output of exec.
type ExecResult struct {
	sqlite.Result
	Transaction string `json:"transaction,omitempty"`
}

// RenderText prints the result as one line.
func (r ExecResult) RenderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "changes: %d, last_insert_rowid: %d\n", r.Changes, r.LastInsertRowID)
	return err
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <sql | @file>",
		Short: "Run one or more SQL statements",
		Long: `Run one or more semicolon-separated SQL statements.

An argument starting with @ names a file holding the SQL. With --tx the
statements run inside one transaction of the given mode (deferred,
immediate or exclusive) and are rolled back together on failure.

Example:
  sqlbridge exec --db app.db "CREATE TABLE t (x INTEGER)"
  sqlbridge exec --db app.db --tx immediate @seed.sql`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Transaction, "tx", "", "run inside a transaction (deferred|immediate|exclusive)")

	return cmd
}

func runExec(opts *ExecOptions, arg string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := commandContext(cmd)

	query, err := readSQLArg(opts.Fs, arg)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to read SQL", err)
	}

	var mode sqlite.TxMode
	if opts.Transaction != "" {
		if mode, err = sqlite.ParseTxMode(opts.Transaction); err != nil {
			return formatter.Fail(ExitCommandError, "invalid --tx", err)
		}
	}

	db, err := opts.openDB(ctx)
	if err != nil {
		return err
	}
	defer opts.closeDB(db)

	out := ExecResult{Transaction: strings.ToLower(opts.Transaction)}
	if opts.Transaction == "" {
		out.Result, err = db.Exec(ctx, query)
	} else {
		out.Result, err = execInTx(cmd, db, mode, query)
	}
	if err != nil {
		return formatter.Fail(ExitFailure, "exec failed", err)
	}
	return formatter.Success(out)
}

func execInTx(cmd *cobra.Command, db *sqlite.DB, mode sqlite.TxMode, query string) (sqlite.Result, error) {
	ctx := commandContext(cmd)
	tx, err := db.Begin(ctx, mode)
	if err != nil {
		return sqlite.Result{}, err
	}
	if _, err := tx.Exec(ctx, query); err != nil {
		if _, rbErr := tx.Rollback(ctx); rbErr != nil {
			return sqlite.Result{}, fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return sqlite.Result{}, err
	}
	return tx.Commit(ctx)
}

// readSQLArg returns arg, or the contents of the file it names when it
// starts with '@'.
func readSQLArg(fs afero.Fs, arg string) (string, error) {
	path, ok := strings.CutPrefix(arg, "@")
	if !ok {
		return arg, nil
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
