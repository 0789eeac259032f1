package cli

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/roach88/sqlbridge/internal/sqlite"
)

// Version is the sqlbridge release.
const Version = "0.1.0"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	Database   string
	ReadOnly   bool
	ConfigPath string

	// Fs is where manifests, SQL files, configs and backups are read and
	// written. Defaults to the OS filesystem.
	Fs afero.Fs

	config *Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the sqlbridge CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Fs: afero.NewOsFs()}

	cmd := &cobra.Command{
		Use:   "sqlbridge",
		Short: "sqlbridge - a serialized SQLite connection",
		Long: `Run statements, migrations and schema tools against a SQLite database
through a single mutex-serialized connection.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.prepare(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (:memory: for a scratch database)")
	cmd.PersistentFlags().BoolVar(&opts.ReadOnly, "readonly", false, "open the database read-only")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "YAML config file")

	// Add subcommands
	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewBackupCommand(opts))
	cmd.AddCommand(NewRestoreCommand(opts))
	cmd.AddCommand(NewLintCommand(opts))

	return cmd
}

// prepare validates global flags, merges the config file and sets up
// logging.
func (o *RootOptions) prepare(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}

	if o.ConfigPath != "" {
		cfg, err := LoadConfig(o.Fs, o.ConfigPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --config", err)
		}
		o.config = cfg
		flags := cmd.Flags()
		if !flags.Changed("db") && cfg.Database != "" {
			o.Database = cfg.Database
		}
		if !flags.Changed("readonly") && cfg.ReadOnly {
			o.ReadOnly = true
		}
	}

	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if o.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	})
	o.logger = slog.New(handler)
	slog.SetDefault(o.logger)
	return nil
}

// formatter returns an OutputFormatter bound to the command's writers.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// sqliteOptions builds connection options from flags and the config file.
func (o *RootOptions) sqliteOptions() sqlite.Options {
	so := sqlite.DefaultOptions()
	so.ReadOnly = o.ReadOnly
	so.Logger = o.logger
	if cfg := o.config; cfg != nil {
		if cfg.BusyTimeout > 0 {
			so.BusyTimeout = cfg.BusyTimeout
		}
		so.Pragmas = slices.Clone(cfg.Pragmas)
		if cfg.StatementCacheSize != nil {
			so.StatementCacheSize = *cfg.StatementCacheSize
		}
		so.BlobsAsBase64 = cfg.BlobsAsBase64
	}
	return so
}

// openDB opens the database named by --db or the config file.
func (o *RootOptions) openDB(ctx context.Context) (*sqlite.DB, error) {
	if o.Database == "" {
		return nil, NewExitError(ExitCommandError, "no database: pass --db or set db in --config")
	}
	so := o.sqliteOptions()
	db, err := sqlite.Open(ctx, o.Database, &so)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return db, nil
}

// closeDB closes db, logging rather than returning a failure.
func (o *RootOptions) closeDB(db *sqlite.DB) {
	if err := db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// commandContext returns the command's context, or Background when unset.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
