package sqlite

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Options configures Open.
type Options struct {
	// ReadOnly opens the database read-only. It takes precedence over
	// ReadWrite and Create.
	ReadOnly bool

	// Create creates the database file if it does not exist.
	Create bool

	// ReadWrite opens the database for reading and writing.
	ReadWrite bool

	// BusyTimeout is how long the engine waits on a locked database file.
	BusyTimeout time.Duration

	// Pragmas are extra "name = value" settings applied after the defaults.
	Pragmas []string

	// StatementCacheSize bounds the prepared statement cache. Zero disables
	// caching; every statement is then prepared and finalized per call.
	StatementCacheSize int

	// BlobsAsBase64 decodes BLOB columns as base64 Text.
	BlobsAsBase64 bool

	// Logger receives structured logs. Defaults to slog.Default().
	Logger *slog.Logger

	// Clock stamps applied_at in the schema_version table. Defaults to
	// time.Now.
	Clock func() time.Time
}

// DefaultOptions returns read-write, create-if-missing options with a
// 5 second busy timeout and a 64 entry statement cache.
func DefaultOptions() Options {
	return Options{
		Create:             true,
		ReadWrite:          true,
		BusyTimeout:        5 * time.Second,
		StatementCacheSize: 64,
	}
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.BusyTimeout < 0 {
		o.BusyTimeout = 0
	}
}

// mode returns the SQLite URI access mode for the flags.
func (o *Options) mode() string {
	switch {
	case o.ReadOnly:
		return "ro"
	case o.ReadWrite && !o.Create:
		return "rw"
	default:
		// Create without ReadWrite is meaningless; no flags at all means
		// the engine default.
		return "rwc"
	}
}

var uriEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// dsn builds the driver data source name for path.
func (o *Options) dsn(path string) string {
	if path == MemoryPath || path == "" {
		return MemoryPath
	}
	return fmt.Sprintf("file:%s?mode=%s", uriEscaper.Replace(path), o.mode())
}

// pragmas returns the statements run on every new handle.
func (o *Options) pragmas(memory bool) []string {
	list := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", o.BusyTimeout.Milliseconds()),
	}
	if !o.ReadOnly {
		if !memory {
			list = append(list,
				"PRAGMA journal_mode = WAL",
				"PRAGMA mmap_size = 268435456",
			)
		}
		list = append(list,
			"PRAGMA synchronous = NORMAL",
			"PRAGMA foreign_keys = ON",
			"PRAGMA cache_size = -64000",
			"PRAGMA temp_store = MEMORY",
		)
	}
	for _, p := range o.Pragmas {
		list = append(list, "PRAGMA "+p)
	}
	return list
}
