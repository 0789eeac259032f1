package cli

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/sqlbridge.yaml", []byte(`
db: /var/lib/app.db
readonly: true
busy_timeout: 2s
pragmas:
  - PRAGMA cache_size = -2000
statement_cache_size: 0
blobs_as_base64: true
`), 0o644))

	cfg, err := LoadConfig(fs, "/etc/sqlbridge.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/app.db", cfg.Database)
	assert.True(t, cfg.ReadOnly)
	assert.Equal(t, 2*time.Second, cfg.BusyTimeout)
	assert.Equal(t, []string{"PRAGMA cache_size = -2000"}, cfg.Pragmas)
	require.NotNil(t, cfg.StatementCacheSize)
	assert.Equal(t, 0, *cfg.StatementCacheSize)
	assert.True(t, cfg.BlobsAsBase64)
}

func TestLoadConfig_Errors(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", "database: x.db\n", "failed to parse config"},
		{"bad duration", "busy_timeout: soon\n", "failed to parse config"},
		{"negative timeout", "busy_timeout: -1s\n", "busy_timeout must not be negative"},
		{"negative cache", "statement_cache_size: -1\n", "statement_cache_size must not be negative"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "c.yaml", []byte(tc.content), 0o644))
			_, err := LoadConfig(fs, "c.yaml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	_, err := LoadConfig(afero.NewMemMapFs(), "missing.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestConfigFlagSuppliesDatabase(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "from-config.db")
	cfgPath := writeFile(t, dir, "cfg.yaml", "db: "+dbPath+"\nbusy_timeout: 1s\n")

	_, err := runCLI(t, "exec", "--config", cfgPath, "CREATE TABLE t (x INTEGER)")
	require.NoError(t, err)
	assert.FileExists(t, dbPath)

	out, err := runCLI(t, "schema", "tables", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "t\n", out)
}

func TestConfigFlagOverriddenByDB(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "cfg.yaml", "db: "+filepath.Join(dir, "ignored.db")+"\n")
	dbPath := filepath.Join(dir, "flag.db")

	_, err := runCLI(t, "exec", "--config", cfgPath, "--db", dbPath, "CREATE TABLE t (x INTEGER)")
	require.NoError(t, err)
	assert.FileExists(t, dbPath)
	assert.NoFileExists(t, filepath.Join(dir, "ignored.db"))
}

func TestInvalidConfigFlag(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "cfg.yaml", "nope: 1\n")

	_, err := runCLI(t, "version", "--config", cfgPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid --config")
}
