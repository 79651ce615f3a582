package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "flame", cmd.Use)
	assert.Contains(t, cmd.Long, "synchronization layer")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"whoami"}, {"login"}, {"register"}, {"logout"},
		{"species", "list"}, {"species", "show"}, {"species", "delete"},
		{"reactions", "list"}, {"reactions", "show"}, {"reactions", "delete"},
		{"submit"}, {"stage"},
		{"geometry", "set"}, {"geometry", "watch"},
		{"collection", "list"}, {"collection", "create"}, {"collection", "add"},
		{"collection", "remove"}, {"collection", "delete"},
		{"trace"}, {"shell"}, {"devserver"}, {"catalog", "check"}, {"test"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
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

	for _, name := range []string{"config", "base-url", "journal", "catalog", "log-level", "metrics-addr"} {
		f := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, f, "--%s", name)
		assert.Empty(t, f.DefValue, "--%s", name)
	}
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := execute(t, "", "--format", "xml", "catalog", "check")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat("yaml"))
	assert.False(t, isValidFormat(""))
}

func TestGeometryCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	watchCmd, _, err := cmd.Find([]string{"geometry", "watch"})
	require.NoError(t, err)

	debounce := watchCmd.Flags().Lookup("debounce")
	require.NotNil(t, debounce)
	assert.Equal(t, DefaultDebounce.String(), debounce.DefValue)

	reaction := watchCmd.InheritedFlags().Lookup("reaction")
	require.NotNil(t, reaction)
	assert.Equal(t, "false", reaction.DefValue)
}

func TestDevserverCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	devCmd, _, err := cmd.Find([]string{"devserver"})
	require.NoError(t, err)

	addr := devCmd.Flags().Lookup("addr")
	require.NotNil(t, addr)
	assert.Equal(t, "127.0.0.1:5000", addr.DefValue)
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"1", "#42"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 42}, ids)

	for _, bad := range []string{"0", "-3", "x", "#"} {
		_, err := parseIDs([]string{bad})
		require.Error(t, err, bad)
		assert.Equal(t, ExitCommandError, GetExitCode(err), bad)
	}
}
