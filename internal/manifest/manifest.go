// Package manifest loads migration sets for sqlite.DB.Migrate.
//
// A manifest is one of:
//   - a YAML (or JSON) file with a migrations list
//   - a CUE file, validated against the #Manifest schema
//   - a directory of NNNN_description.sql files
//
// Entries in YAML and CUE manifests carry their SQL inline or name a file
// relative to the manifest.
package manifest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/roach88/sqlbridge/internal/sqlite"
)

// Manifest is a named, ordered set of migrations.
type Manifest struct {
	// Name identifies the manifest in logs. Optional.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Target is the version to migrate to. Zero means the highest version.
	Target uint32 `yaml:"target,omitempty" json:"target,omitempty"`

	Migrations []Entry `yaml:"migrations" json:"migrations"`
}

// Entry is one migration as written in a manifest. Exactly one of SQL and
// File is set.
type Entry struct {
	Version     uint32 `yaml:"version" json:"version"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	SQL         string `yaml:"sql,omitempty" json:"sql,omitempty"`
	File        string `yaml:"file,omitempty" json:"file,omitempty"`
}

// SQLiteMigrations returns the entries as sqlite migrations, in manifest order.
// Call it after Load, which inlines File entries.
func (m *Manifest) SQLiteMigrations() []sqlite.Migration {
	out := make([]sqlite.Migration, len(m.Migrations))
	for i, e := range m.Migrations {
		out[i] = sqlite.Migration{Version: e.Version, SQL: e.SQL, Description: e.Description}
	}
	return out
}

// Latest returns the highest version in the manifest, or 0 when it is empty.
func (m *Manifest) Latest() uint32 {
	var v uint32
	for _, e := range m.Migrations {
		v = max(v, e.Version)
	}
	return v
}

// Load reads the manifest at p. Directories are read with LoadDir; files
// are dispatched on their extension.
func Load(fs afero.Fs, p string) (*Manifest, error) {
	info, err := fs.Stat(p)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("manifest not found: %s", p)}
	}
	if info.IsDir() {
		return LoadDir(fs, p)
	}

	data, err := afero.ReadFile(fs, p)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading %s: %v", p, err)}
	}

	var m *Manifest
	switch ext := strings.ToLower(filepath.Ext(p)); ext {
	case ".yaml", ".yml", ".json":
		m, err = ParseYAML(data)
	case ".cue":
		m, err = ParseCUE(data, p)
	default:
		return nil, &LoadError{Code: ErrCodeUnsupported, Message: fmt.Sprintf("unsupported manifest extension %q", ext)}
	}
	if err != nil {
		return nil, err
	}

	if err := m.resolveFiles(fs, filepath.Dir(p)); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// resolveFiles inlines the SQL of entries that name a file.
func (m *Manifest) resolveFiles(fs afero.Fs, dir string) error {
	for i, e := range m.Migrations {
		if e.File == "" {
			continue
		}
		if e.SQL != "" {
			return &LoadError{
				Code:    ErrCodeInvalidEntry,
				Message: fmt.Sprintf("migration %d: sql and file are mutually exclusive", e.Version),
			}
		}
		p := e.File
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		data, err := afero.ReadFile(fs, p)
		if err != nil {
			return &LoadError{
				Code:    ErrCodeReadFailed,
				Message: fmt.Sprintf("migration %d: reading %s: %v", e.Version, p, err),
			}
		}
		m.Migrations[i].SQL = string(data)
	}
	return nil
}

// Validate checks that versions are positive and unique and that every
// entry has SQL.
func (m *Manifest) Validate() error {
	seen := make(map[uint32]bool, len(m.Migrations))
	for i, e := range m.Migrations {
		switch {
		case e.Version == 0:
			return &LoadError{Code: ErrCodeInvalidEntry, Message: fmt.Sprintf("migrations[%d]: version must be greater than 0", i)}
		case seen[e.Version]:
			return &LoadError{Code: ErrCodeDuplicate, Message: fmt.Sprintf("migrations[%d]: duplicate version %d", i, e.Version)}
		case strings.TrimSpace(e.SQL) == "":
			return &LoadError{Code: ErrCodeInvalidEntry, Message: fmt.Sprintf("migration %d: empty sql", e.Version)}
		}
		seen[e.Version] = true
	}
	if m.Target != 0 && !seen[m.Target] {
		return &LoadError{Code: ErrCodeInvalidEntry, Message: fmt.Sprintf("target %d is not a migration version", m.Target)}
	}
	return nil
}
