package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "vaultledger", cmd.Use)
	assert.Contains(t, cmd.Long, "event history")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"vault", "open"}, {"vault", "balance"}, {"vault", "show"},
		{"vault", "list"}, {"vault", "tvl"}, {"vault", "verify"},
		{"deposit", "record"}, {"deposit", "observe"}, {"deposit", "reject"},
		{"withdraw", "request"}, {"withdraw", "submit"}, {"withdraw", "confirm"},
		{"withdraw", "fail"}, {"withdraw", "cancel"},
		{"collateral", "lock"}, {"collateral", "unlock"},
		{"adjust"}, {"events"},
		{"tx", "show"}, {"tx", "history"}, {"tx", "pending"},
		{"program", "add"}, {"program", "remove"}, {"program", "list"}, {"program", "check"},
		{"reconcile", "run"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "command %v should exist", path)
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

	for _, name := range []string{"config", "db", "env-file", "ui"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestWithdrawCancelFlags(t *testing.T) {
	cmd := NewRootCommand()
	cancelCmd, _, err := cmd.Find([]string{"withdraw", "cancel"})
	require.NoError(t, err)

	for _, name := range []string{"ticket", "reason", "actor"} {
		assert.NotNil(t, cancelCmd.Flags().Lookup(name), name)
	}
}

func TestReconcileRunFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"reconcile", "run"})
	require.NoError(t, err)

	onceFlag := runCmd.Flags().Lookup("once")
	require.NotNil(t, onceFlag)
	assert.Equal(t, "false", onceFlag.DefValue)
	assert.NotNil(t, runCmd.Flags().Lookup("schedule"))
}

func TestFormatValidation(t *testing.T) {
	// Test valid formats
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	// Test invalid formats
	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "vault", "list"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
