package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/roach88/sqlbridge/internal/sqlite"
)

// gzipMagic starts every gzip stream.
var gzipMagic = []byte{0x1f, 0x8b}

// SnapshotResult is the output of backup and restore.
type SnapshotResult struct {
	Path       string `json:"path"`
	Database   string `json:"database"`
	Bytes      int    `json:"bytes"`
	Compressed bool   `json:"compressed"`
}

// RenderText prints a one-line summary.
func (r SnapshotResult) RenderText(w io.Writer) error {
	kind := "raw"
	if r.Compressed {
		kind = "gzip"
	}
	_, err := fmt.Fprintf(w, "%s <-> %s: %s image (%s)\n", r.Database, r.Path, humanize.Bytes(uint64(r.Bytes)), kind)
	return err
}

// NewBackupCommand creates the backup command.
func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup <file>",
		Short: "Write a binary image of the database",
		Long: `Write a binary image of the database to a file. A file name ending in .gz
is gzip-compressed.

Example:
  sqlbridge backup --db app.db app.db.gz`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackup(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runBackup(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := commandContext(cmd)

	db, err := opts.openDB(ctx)
	if err != nil {
		return err
	}
	defer opts.closeDB(db)

	image, err := db.SerializeBinary(ctx)
	if err != nil {
		return formatter.Fail(ExitFailure, "backup failed", err)
	}

	compressed := strings.HasSuffix(path, ".gz")
	data := image
	if compressed {
		if data, err = compress(image); err != nil {
			return formatter.Fail(ExitFailure, "backup failed", err)
		}
	}
	if err := afero.WriteFile(opts.Fs, path, data, 0o644); err != nil {
		return formatter.Fail(ExitCommandError, "failed to write backup", err)
	}
	return formatter.Success(SnapshotResult{Path: path, Database: db.Filename(), Bytes: len(image), Compressed: compressed})
}

// RestoreOptions holds flags for the restore command.
type RestoreOptions struct {
	*RootOptions
	Force bool
}

// NewRestoreCommand creates the restore command.
func NewRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RestoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Recreate the database from a backup image",
		Long: `Recreate the --db database file from an image written by backup. Gzip
images are detected automatically. An existing database is only replaced
with --force.

Example:
  sqlbridge restore --db app.db app.db.gz --force`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestore(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "replace an existing database")

	return cmd
}

func runRestore(opts *RestoreOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := commandContext(cmd)

	if opts.Database == "" || opts.Database == sqlite.MemoryPath {
		return NewExitError(ExitCommandError, "restore needs a database file: pass --db")
	}

	data, err := afero.ReadFile(opts.Fs, path)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to read backup", err)
	}
	compressed := bytes.HasPrefix(data, gzipMagic)
	if compressed {
		if data, err = decompress(data); err != nil {
			return formatter.Fail(ExitCommandError, "failed to decompress backup", err)
		}
	}

	if err := opts.checkTarget(); err != nil {
		return formatter.Fail(ExitCommandError, "cannot restore", err)
	}

	// Load the image into a scratch connection and write it out next to the
	// target. The target is only replaced once the image has been read back
	// in full.
	so := opts.sqliteOptions()
	so.ReadOnly = false
	scratch, err := sqlite.Open(ctx, sqlite.MemoryPath, &so)
	if err != nil {
		return formatter.Fail(ExitFailure, "restore failed", err)
	}
	defer opts.closeDB(scratch)

	if err := scratch.DeserializeBinary(ctx, data, false); err != nil {
		return formatter.Fail(ExitFailure, "restore failed", err)
	}
	staged := opts.Database + ".restore"
	if err := removeIfExists(opts.Fs, staged); err != nil {
		return formatter.Fail(ExitFailure, "restore failed", err)
	}
	if err := scratch.VacuumInto(ctx, staged); err != nil {
		_ = removeIfExists(opts.Fs, staged)
		return formatter.Fail(ExitFailure, "restore failed", err)
	}
	if err := opts.replaceTarget(staged); err != nil {
		_ = removeIfExists(opts.Fs, staged)
		return formatter.Fail(ExitFailure, "restore failed", err)
	}
	return formatter.Success(SnapshotResult{Path: path, Database: opts.Database, Bytes: len(data), Compressed: compressed})
}

// checkTarget fails when the database exists and --force is not set.
func (o *RestoreOptions) checkTarget() error {
	exists, err := afero.Exists(o.Fs, o.Database)
	if err != nil {
		return err
	}
	if exists && !o.Force {
		return fmt.Errorf("%s already exists (use --force to replace it)", o.Database)
	}
	return nil
}

// replaceTarget drops the WAL companions of the database and moves staged
// over it.
func (o *RestoreOptions) replaceTarget(staged string) error {
	for _, p := range []string{o.Database + "-wal", o.Database + "-shm"} {
		if err := removeIfExists(o.Fs, p); err != nil {
			return err
		}
	}
	return o.Fs.Rename(staged, o.Database)
}

func removeIfExists(fs afero.Fs, path string) error {
	if err := fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
