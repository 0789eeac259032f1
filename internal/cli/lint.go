package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlbridge/internal/schema"
	"github.com/roach88/sqlbridge/internal/sqlite"
)

// TableLint holds the findings for one table.
type TableLint struct {
	Table    string   `json:"table"`
	Issues   []string `json:"issues"`
	Warnings []string `json:"warnings"`
}

// LintResult is the output of lint.
type LintResult struct {
	File   string      `json:"file"`
	Valid  bool        `json:"valid"`
	Tables []TableLint `json:"tables"`
}

// RenderText prints findings grouped by table.
func (r LintResult) RenderText(w io.Writer) error {
	for _, t := range r.Tables {
		for _, issue := range t.Issues {
			fmt.Fprintf(w, "%s: error: %s\n", t.Table, issue)
		}
		for _, warning := range t.Warnings {
			fmt.Fprintf(w, "%s: warning: %s\n", t.Table, warning)
		}
	}
	if r.Valid {
		fmt.Fprintf(w, "%s: %d table(s) OK\n", r.File, len(r.Tables))
	}
	return nil
}

// NewLintCommand creates the lint command.
func NewLintCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint <file.sql>",
		Short: "Check a schema file for common mistakes",
		Long: `Load a schema file into a scratch in-memory database and check every
table it creates: column types, expression defaults, primary keys,
AUTOINCREMENT use and foreign keys without ON DELETE.

Exits with status 1 when any table has issues. Warnings do not fail.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLint(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runLint(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := commandContext(cmd)

	ddl, err := readSQLArg(opts.Fs, "@"+path)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to read schema file", err)
	}

	so := opts.sqliteOptions()
	so.ReadOnly = false
	db, err := sqlite.Open(ctx, sqlite.MemoryPath, &so)
	if err != nil {
		return formatter.Fail(ExitFailure, "lint failed", err)
	}
	defer opts.closeDB(db)

	if err := db.ImportSchema(ctx, ddl); err != nil {
		return formatter.Fail(ExitFailure, "schema does not load", err)
	}
	tables, err := db.Tables(ctx)
	if err != nil {
		return formatter.Fail(ExitFailure, "lint failed", err)
	}

	out := LintResult{File: path, Valid: true, Tables: []TableLint{}}
	for _, table := range tables {
		tl, err := lintTable(cmd, db, table)
		if err != nil {
			return formatter.Fail(ExitFailure, "lint failed", err)
		}
		if len(tl.Issues) > 0 {
			out.Valid = false
		}
		out.Tables = append(out.Tables, tl)
	}

	if err := formatter.Success(out); err != nil {
		return err
	}
	if !out.Valid {
		return NewExitError(ExitFailure, "schema has issues")
	}
	return nil
}

func lintTable(cmd *cobra.Command, db *sqlite.DB, table string) (TableLint, error) {
	ctx := commandContext(cmd)
	ddl, _, err := db.TableSQL(ctx, table)
	if err != nil {
		return TableLint{}, err
	}
	check := schema.ValidateCreateTable(ddl)
	tl := TableLint{Table: table, Issues: check.Issues, Warnings: check.Warnings}

	cols, err := db.Columns(ctx, table)
	if err != nil {
		return TableLint{}, err
	}
	for _, c := range cols {
		// VARCHAR(255) and friends are checked by their base name.
		typ, _, _ := strings.Cut(c.Type, "(")
		v := schema.ValidateColumn(schema.Column{
			Name:       c.Name,
			Type:       strings.TrimSpace(typ),
			PrimaryKey: c.PK > 0,
			NotNull:    c.NotNull,
			Default:    c.Default,
		})
		for _, issue := range v.Issues {
			tl.Issues = append(tl.Issues, fmt.Sprintf("column %s: %s", c.Name, issue))
		}
	}
	return tl, nil
}
