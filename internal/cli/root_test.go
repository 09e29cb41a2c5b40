package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "seqgate", cmd.Use)
	assert.Contains(t, cmd.Long, "SEQGATE_")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"run", "test", "validate", "trace", "replay"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
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
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "--format", "yaml", "validate", "x.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestInvalidEnvironment(t *testing.T) {
	t.Setenv("SEQGATE_SHARDS", "0")

	_, err := execute(t, "validate", "x.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "SEQGATE_SHARDS")
}

func TestDatabasePath(t *testing.T) {
	opts := &RootOptions{}
	opts.Config.DBPath = ":memory:"

	_, err := opts.databasePath("")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	path, err := opts.databasePath("/tmp/x.db")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", path)

	opts.Config.DBPath = "/var/seqgate.db"
	path, err = opts.databasePath("")
	require.NoError(t, err)
	assert.Equal(t, "/var/seqgate.db", path)
}
