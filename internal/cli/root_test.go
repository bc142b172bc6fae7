package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fedcomp/internal/testutil"
)

const aggregationDoc = testutil.AggregationDoc

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	return testutil.WriteFile(t, name, content)
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "fedcomp", cmd.Use)
	assert.Contains(t, cmd.Long, "building-block IR")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"compile"}, {"inspect"}, {"check"}, {"form"}, {"test"}, {"intrinsics"},
		{"store", "put"}, {"store", "list"}, {"store", "show"}, {"store", "verify"},
	}

	for _, path := range commands {
		t.Run(path[len(path)-1], func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
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

func TestCheckCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	checkCmd, _, err := cmd.Find([]string{"check"})
	require.NoError(t, err)

	for _, name := range []string{"forbid", "forbid-insecure", "policy", "name", "db"} {
		assert.NotNil(t, checkCmd.Flags().Lookup(name), "flag --%s", name)
	}
	assert.Equal(t, "false", checkCmd.Flags().Lookup("forbid-insecure").DefValue)
}

func TestStoreCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	storeCmd, _, err := cmd.Find([]string{"store"})
	require.NoError(t, err)

	dbFlag := storeCmd.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	// --db is required, so default is empty
	assert.Equal(t, "", dbFlag.DefValue)
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	assert.Equal(t, "false", testCmd.Flags().Lookup("update").DefValue)
	assert.Equal(t, "", testCmd.Flags().Lookup("filter").DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "intrinsics", "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}

func TestIntrinsicsCommand(t *testing.T) {
	out, err := execute(t, "intrinsics")
	require.NoError(t, err)
	assert.Regexp(t, `federated_secure_sum\s+aggregation, secure`, out)
	assert.Regexp(t, `federated_sum\s+aggregation\n`, out)
	assert.Contains(t, out, "sequence_map")

	out, err = execute(t, "intrinsics", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `{"uri":"federated_aggregate","aggregation":true,"secure":false}`)
}
