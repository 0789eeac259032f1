package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlbridge/internal/manifest"
	"github.com/roach88/sqlbridge/internal/sqlite"
)

// MigrateOptions holds flags for the migrate command.
type MigrateOptions struct {
	*RootOptions
	Target uint32
	DryRun bool
}

// MigrateResult is the output of migrate.
type MigrateResult struct {
	Manifest string   `json:"manifest"`
	From     uint32   `json:"from"`
	To       uint32   `json:"to"`
	Applied  []uint32 `json:"applied"`
	DryRun   bool     `json:"dry_run,omitempty"`
}

// RenderText prints a one-line summary.
func (r MigrateResult) RenderText(w io.Writer) error {
	verb := "applied"
	if r.DryRun {
		verb = "pending"
	}
	if len(r.Applied) == 0 {
		_, err := fmt.Fprintf(w, "schema is up to date at version %d\n", r.From)
		return err
	}
	_, err := fmt.Fprintf(w, "%s %d migration(s) %v: version %d -> %d\n", verb, len(r.Applied), r.Applied, r.From, r.To)
	return err
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate <manifest>",
		Short: "Apply schema migrations",
		Long: `Apply the migrations in a manifest that are newer than the database's
schema version, in version order, inside one transaction.

The manifest is a YAML/JSON file, a CUE file, or a directory of
NNNN_description.sql files. Without --target the manifest's target (or its
highest version) is used.

Example:
  sqlbridge migrate --db app.db ./migrations
  sqlbridge migrate --db app.db migrations.yaml --target 3 --dry-run`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(opts, args[0], cmd)
		},
	}

	cmd.Flags().Uint32Var(&opts.Target, "target", 0, "version to migrate to (default: manifest target or latest)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "list pending migrations without applying them")

	return cmd
}

func runMigrate(opts *MigrateOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := commandContext(cmd)

	m, err := manifest.Load(opts.Fs, path)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to load manifest", err)
	}
	formatter.VerboseLog("Loaded %d migration(s) from %s", len(m.Migrations), path)

	target := opts.Target
	if target == 0 {
		target = m.Target
	}
	if target == 0 {
		target = m.Latest()
	}

	db, err := opts.openDB(ctx)
	if err != nil {
		return err
	}
	defer opts.closeDB(db)

	from, err := db.SchemaVersion(ctx)
	if err != nil {
		return formatter.Fail(ExitFailure, "failed to read schema version", err)
	}

	out := MigrateResult{Manifest: path, From: from, To: from, Applied: pending(m.SQLiteMigrations(), from, target), DryRun: opts.DryRun}
	if opts.DryRun {
		if len(out.Applied) > 0 {
			out.To = out.Applied[len(out.Applied)-1]
		}
		return formatter.Success(out)
	}

	slog.Info("migrating", "manifest", path, "from", from, "target", target)
	to, err := db.Migrate(ctx, m.SQLiteMigrations(), target)
	if err != nil {
		return formatter.Fail(ExitFailure, "migration failed", err)
	}
	out.To = to
	return formatter.Success(out)
}

// pending returns the sorted versions Migrate would apply.
func pending(migrations []sqlite.Migration, current, target uint32) []uint32 {
	versions := []uint32{}
	for _, m := range migrations {
		if m.Version > current && m.Version <= target {
			versions = append(versions, m.Version)
		}
	}
	slices.Sort(versions)
	return versions
}
