package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearConfigEnv keeps the caller's environment out of root command runs.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DIALECT", "DRIVER", "DSN", "FORMAT", "VERBOSE"} {
		t.Setenv("SQLCOMPILE_"+key, "")
	}
	t.Setenv("DATABASE_URL", "")
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "sqlcompile", cmd.Use)
	assert.Contains(t, cmd.Long, "positional parameters")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"compile", "validate", "exec", "introspect", "test"}

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

	dialectFlag := cmd.PersistentFlags().Lookup("dialect")
	require.NotNil(t, dialectFlag)
	assert.Equal(t, "mysql", dialectFlag.DefValue)

	for _, name := range []string{"driver", "dsn"} {
		flag := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Empty(t, flag.DefValue)
	}
}

func TestCompileCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	compileCmd, _, err := cmd.Find([]string{"compile"})
	require.NoError(t, err)

	outputFlag := compileCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)

	watchFlag := compileCmd.Flags().Lookup("watch")
	require.NotNil(t, watchFlag)
	assert.Equal(t, "w", watchFlag.Shorthand)
	assert.Equal(t, "false", watchFlag.DefValue)
}

func TestValidateCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	validateCmd, _, err := cmd.Find([]string{"validate"})
	require.NoError(t, err)

	strictFlag := validateCmd.Flags().Lookup("strict")
	require.NotNil(t, strictFlag)
	assert.Equal(t, "false", strictFlag.DefValue)
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	updateFlag := testCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)

	filterFlag := testCmd.Flags().Lookup("filter")
	require.NotNil(t, filterFlag)
}

func TestFormatValidationIntegration(t *testing.T) {
	clearConfigEnv(t)
	cmd := NewRootCommand()

	_, err := execute(cmd, "--format", "invalid", "compile", ".")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestDialectValidationIntegration(t *testing.T) {
	clearConfigEnv(t)
	cmd := NewRootCommand()

	_, err := execute(cmd, "--dialect", "oracle", "compile", ".")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestRootDialectFlagReachesCompiler(t *testing.T) {
	clearConfigEnv(t)
	path := writeFile(t, t.TempDir(), "count.yaml", "count: {table: employees}\n")

	out, err := execute(NewRootCommand(), "--dialect", "sqlite", "compile", path)
	require.NoError(t, err)
	assert.Contains(t, out, `SELECT COUNT(*) AS "count" FROM "employees";`)
	assert.Contains(t, out, "for sqlite")
}

func TestRootDialectFromEnvironment(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("SQLCOMPILE_DIALECT", "sqlite")
	path := writeFile(t, t.TempDir(), "count.yaml", "count: {table: employees}\n")

	out, err := execute(NewRootCommand(), "compile", path)
	require.NoError(t, err)
	assert.Contains(t, out, `FROM "employees"`)

	// Flags beat the environment.
	out, err = execute(NewRootCommand(), "--dialect", "mysql", "compile", path)
	require.NoError(t, err)
	assert.Contains(t, out, "FROM `employees`")
}

func TestRootFormatFromEnvironment(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("SQLCOMPILE_FORMAT", "json")
	path := writeFile(t, t.TempDir(), "count.yaml", "count: {table: employees}\n")

	out, err := execute(NewRootCommand(), "compile", path)
	require.NoError(t, err)

	var result CompilationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.TraceID)
	require.Len(t, result.Statements, 1)
}

func TestOptionsDriver(t *testing.T) {
	assert.Equal(t, "mysql", (&RootOptions{}).driver())
	assert.Equal(t, "sqlite3", (&RootOptions{Dialect: "sqlite"}).driver())
	assert.Equal(t, "custom", (&RootOptions{Dialect: "sqlite", Driver: "custom"}).driver())
}
