package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/sqlbridge/internal/sqlite"
	"github.com/roach88/sqlbridge/internal/value"
)

// NewSchemaCommand creates the schema command and its subcommands.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect the database schema",
		Long: `Inspect tables, columns, indexes and pragmas, export the schema as SQL,
or summarize the database.

Example:
  sqlbridge schema tables --db app.db
  sqlbridge schema columns users --db app.db --format json
  sqlbridge schema export --db app.db > schema.sql`,
	}

	cmd.AddCommand(newSchemaSubcommand(rootOpts, "tables", "List tables", cobra.NoArgs, schemaTables))
	cmd.AddCommand(newSchemaSubcommand(rootOpts, "columns <table>", "Describe the columns of a table", cobra.ExactArgs(1), schemaColumns))
	cmd.AddCommand(newSchemaSubcommand(rootOpts, "indexes <table>", "List the indexes of a table", cobra.ExactArgs(1), schemaIndexes))
	cmd.AddCommand(newSchemaSubcommand(rootOpts, "export", "Print the schema as SQL", cobra.NoArgs, schemaExport))
	cmd.AddCommand(newSchemaSubcommand(rootOpts, "info", "Summarize the database", cobra.NoArgs, schemaInfo))
	cmd.AddCommand(newSchemaSubcommand(rootOpts, "pragma <name> [value]", "Read or set a pragma", cobra.RangeArgs(1, 2), schemaPragma))

	return cmd
}

type schemaFunc func(cmd *cobra.Command, db *sqlite.DB, args []string) (any, error)

func newSchemaSubcommand(opts *RootOptions, use, short string, args cobra.PositionalArgs, fn schemaFunc) *cobra.Command {
	return &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          args,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			db, err := opts.openDB(commandContext(cmd))
			if err != nil {
				return err
			}
			defer opts.closeDB(db)

			out, err := fn(cmd, db, args)
			if err != nil {
				return formatter.Fail(ExitFailure, cmd.Name()+" failed", err)
			}
			return formatter.Success(out)
		},
	}
}

// TableList is the output of schema tables.
type TableList struct {
	Tables []string `json:"tables"`
}

// RenderText prints one table per line.
func (l TableList) RenderText(w io.Writer) error {
	for _, t := range l.Tables {
		fmt.Fprintln(w, t)
	}
	return nil
}

func schemaTables(cmd *cobra.Command, db *sqlite.DB, _ []string) (any, error) {
	tables, err := db.Tables(commandContext(cmd))
	return TableList{Tables: tables}, err
}

// ColumnList is the output of schema columns.
type ColumnList struct {
	Table   string          `json:"table"`
	Columns []sqlite.Column `json:"columns"`
}

// RenderText prints the columns as a table.
func (l ColumnList) RenderText(w io.Writer) error {
	rows := make([][]string, len(l.Columns))
	for i, c := range l.Columns {
		def := ""
		if c.Default != nil {
			def = *c.Default
		}
		rows[i] = []string{c.Name, c.Type, strconv.FormatBool(c.NotNull), def, strconv.Itoa(c.PK)}
	}
	return renderTable(w, []string{"Name", "Type", "Not Null", "Default", "PK"}, rows)
}

func schemaColumns(cmd *cobra.Command, db *sqlite.DB, args []string) (any, error) {
	ctx := commandContext(cmd)
	ok, err := db.TableExists(ctx, args[0])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no such table: %s", args[0])
	}
	cols, err := db.Columns(ctx, args[0])
	return ColumnList{Table: args[0], Columns: cols}, err
}

// IndexList is the output of schema indexes.
type IndexList struct {
	Table   string         `json:"table"`
	Indexes []sqlite.Index `json:"indexes"`
}

// RenderText prints the indexes as a table.
func (l IndexList) RenderText(w io.Writer) error {
	rows := make([][]string, len(l.Indexes))
	for i, idx := range l.Indexes {
		rows[i] = []string{idx.Name, strconv.FormatBool(idx.Unique), idx.Origin, strings.Join(idx.Columns, ", ")}
	}
	return renderTable(w, []string{"Name", "Unique", "Origin", "Columns"}, rows)
}

func schemaIndexes(cmd *cobra.Command, db *sqlite.DB, args []string) (any, error) {
	idx, err := db.Indexes(commandContext(cmd), args[0])
	return IndexList{Table: args[0], Indexes: idx}, err
}

// SchemaExport is the output of schema export.
type SchemaExport struct {
	SQL string `json:"sql"`
}

// RenderText prints the SQL terminated with a semicolon.
func (e SchemaExport) RenderText(w io.Writer) error {
	if e.SQL == "" {
		return nil
	}
	_, err := fmt.Fprintf(w, "%s;\n", e.SQL)
	return err
}

func schemaExport(cmd *cobra.Command, db *sqlite.DB, _ []string) (any, error) {
	ddl, err := db.ExportSchema(commandContext(cmd))
	return SchemaExport{SQL: ddl}, err
}

// DatabaseInfo is the output of schema info.
type DatabaseInfo struct {
	Path string `json:"path"`
	sqlite.Metadata
	SchemaVersion uint32 `json:"schema_version"`
}

// RenderText prints a summary with a human-readable size.
func (i DatabaseInfo) RenderText(w io.Writer) error {
	return renderTable(w, []string{"Property", "Value"}, [][]string{
		{"Path", i.Path},
		{"SQLite", i.SQLiteVersion},
		{"Schema version", strconv.FormatUint(uint64(i.SchemaVersion), 10)},
		{"Tables", humanize.Comma(int64(i.TableCount))},
		{"Indexes", humanize.Comma(int64(i.IndexCount))},
		{"Pages", fmt.Sprintf("%s x %s", humanize.Comma(i.PageCount), humanize.IBytes(uint64(i.PageSize)))},
		{"Size", humanize.Bytes(uint64(i.SizeBytes))},
	})
}

func schemaInfo(cmd *cobra.Command, db *sqlite.DB, _ []string) (any, error) {
	ctx := commandContext(cmd)
	md, err := db.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	v, err := db.SchemaVersion(ctx)
	if err != nil {
		return nil, err
	}
	return DatabaseInfo{Path: db.Filename(), Metadata: md, SchemaVersion: v}, nil
}

// PragmaResult is the output of schema pragma.
type PragmaResult struct {
	Name   string        `json:"name"`
	Values []value.Value `json:"values"`
}

// RenderText prints one value per line.
func (p PragmaResult) RenderText(w io.Writer) error {
	for _, v := range p.Values {
		fmt.Fprintln(w, value.String(v))
	}
	return nil
}

func schemaPragma(cmd *cobra.Command, db *sqlite.DB, args []string) (any, error) {
	ctx := commandContext(cmd)
	if len(args) == 1 {
		vals, err := db.Pragma(ctx, args[0])
		return PragmaResult{Name: args[0], Values: vals}, err
	}

	var v value.Value = value.Text(args[1])
	if n, err := strconv.ParseInt(args[1], 10, 64); err == nil {
		v = value.Integer(n)
	}
	vals, err := db.SetPragma(ctx, args[0], v)
	return PragmaResult{Name: args[0], Values: vals}, err
}
