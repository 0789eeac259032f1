package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "sqlbridge", cmd.Use)
	assert.Contains(t, cmd.Long, "mutex-serialized")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"exec", "query", "migrate", "version", "schema", "backup", "restore", "lint"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestSchemaSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"tables", "columns", "indexes", "export", "info", "pragma"} {
		subCmd, _, err := cmd.Find([]string{"schema", name})
		require.NoError(t, err, name)
		assert.Equal(t, name, subCmd.Name())
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	dbFlag := cmd.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "", dbFlag.DefValue)

	for _, name := range []string{"readonly", "config"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	cases := []struct {
		command []string
		flag    string
		def     string
	}{
		{[]string{"exec"}, "tx", ""},
		{[]string{"migrate"}, "target", "0"},
		{[]string{"migrate"}, "dry-run", "false"},
		{[]string{"restore"}, "force", "false"},
	}
	for _, tc := range cases {
		subCmd, _, err := cmd.Find(tc.command)
		require.NoError(t, err)
		f := subCmd.Flags().Lookup(tc.flag)
		require.NotNil(t, f, tc.flag)
		assert.Equal(t, tc.def, f.DefValue, tc.flag)
	}
}

func TestInvalidFormat(t *testing.T) {
	_, err := runCLI(t, "version", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestMissingDatabase(t *testing.T) {
	for _, args := range [][]string{
		{"exec", "SELECT 1"},
		{"query", "SELECT 1"},
		{"schema", "tables"},
		{"backup", "out.db"},
	} {
		_, err := runCLI(t, args...)
		require.Error(t, err, args)
		assert.Equal(t, ExitCommandError, GetExitCode(err), args)
		assert.Contains(t, err.Error(), "no database")
	}
}
