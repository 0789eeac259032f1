package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlbridge/internal/sqlite"
)

// VersionResult is the output of version.
type VersionResult struct {
	Version       string  `json:"version"`
	SQLiteVersion string  `json:"sqlite_version"`
	SchemaVersion *uint32 `json:"schema_version,omitempty"`
}

// RenderText prints one "key: value" line per field.
func (r VersionResult) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "sqlbridge: %s\n", r.Version)
	fmt.Fprintf(w, "sqlite: %s\n", r.SQLiteVersion)
	if r.SchemaVersion != nil {
		fmt.Fprintf(w, "schema: %d\n", *r.SchemaVersion)
	}
	return nil
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print sqlbridge, SQLite and schema versions",
		Long: `Print the sqlbridge release and the linked SQLite version. With --db the
database's schema version is printed too.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(rootOpts, cmd)
		},
	}

	return cmd
}

func runVersion(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	out := VersionResult{Version: Version, SQLiteVersion: sqlite.EngineVersion()}

	if opts.Database != "" {
		ctx := commandContext(cmd)
		db, err := opts.openDB(ctx)
		if err != nil {
			return err
		}
		defer opts.closeDB(db)

		v, err := db.SchemaVersion(ctx)
		if err != nil {
			return formatter.Fail(ExitFailure, "failed to read schema version", err)
		}
		out.SchemaVersion = &v
	}
	return formatter.Success(out)
}
