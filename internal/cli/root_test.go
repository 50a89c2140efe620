package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "controlcore", cmd.Use)
	assert.Contains(t, cmd.Long, "tamper-evident ledger")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"compile", "validate", "execute", "test", "report"}

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

func TestCompileCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	compileCmd, _, err := cmd.Find([]string{"compile"})
	require.NoError(t, err)

	outputFlag := compileCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)
}

func TestValidateCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	validateCmd, _, err := cmd.Find([]string{"validate"})
	require.NoError(t, err)

	manifestFlag := validateCmd.Flags().Lookup("manifest")
	require.NotNil(t, manifestFlag)
	assert.Equal(t, "", manifestFlag.DefValue)
}

func TestExecuteCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	executeCmd, _, err := cmd.Find([]string{"execute"})
	require.NoError(t, err)

	manifestFlag := executeCmd.Flags().Lookup("manifest")
	require.NotNil(t, manifestFlag)

	dbFlag := executeCmd.Flags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "controlcore.db", dbFlag.DefValue)

	ceilingFlag := executeCmd.Flags().Lookup("memory-ceiling-mb")
	require.NotNil(t, ceilingFlag)
	assert.Equal(t, "512", ceilingFlag.DefValue)
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	filterFlag := testCmd.Flags().Lookup("filter")
	require.NotNil(t, filterFlag)
	assert.Equal(t, "", filterFlag.DefValue)
}

func TestReportCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	reportCmd, _, err := cmd.Find([]string{"report"})
	require.NoError(t, err)

	dbFlag := reportCmd.Flags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "controlcore.db", dbFlag.DefValue)
}

func TestCommandHelp(t *testing.T) {
	cmd := NewRootCommand()

	assert.Contains(t, cmd.Short, "controlcore")
	assert.Contains(t, cmd.Long, "Control Specifications")
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "compile", "."})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
