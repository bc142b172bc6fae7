package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenarioDir lays out a spec document and scenarios under a temporary
// directory and returns the scenarios directory.
func scenarioDir(t *testing.T, scenarios map[string]string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "aggregation.cue"), []byte(aggregationDoc), 0644))
	dir := filepath.Join(root, "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0755))
	for name, content := range scenarios {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

const sumScenario = `name: sum-total
spec: ../aggregation.cue
computation: total
expect:
  strategy: federated
  intrinsics: [federated_sum]
  node_count: 3
checks:
  - forbidden: [federated_reduce]
    pass: true
`

const reduceScenario = `name: reduce-forbidden
spec: ../aggregation.cue
computation: folded
checks:
  - forbidden: [federated_reduce]
    pass: false
`

const brokenScenario = `name: broken
spec: ../aggregation.cue
computation: total
expect:
  node_count: 9
`

func TestTestCommandPasses(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"sum.yaml": sumScenario, "reduce.yaml": reduceScenario})

	out, err := execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ sum-total\n")
	assert.Contains(t, out, "✓ reduce-forbidden\n")
	assert.Contains(t, out, "2 passed, 0 failed, 2 total\n")
}

func TestTestCommandFailures(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"sum.yaml": sumScenario, "broken.yaml": brokenScenario, "typo.yaml": "nme: x\n"})

	out, err := execute(t, "test", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 2, resp.Data.Failed)

	byName := map[string]ScenarioResult{}
	for _, s := range resp.Data.Scenarios {
		byName[s.Name] = s
	}
	assert.Equal(t, []string{"node_count: expected 9, got 3"}, byName["broken"].Errors)
	require.Contains(t, byName, "typo.yaml")
	assert.Contains(t, byName["typo.yaml"].Errors[0], "failed to load scenario")
}

func TestTestCommandFilter(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"sum.yaml": sumScenario, "broken.yaml": brokenScenario})

	out, err := execute(t, "test", dir, "--filter", "s*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
	assert.NotContains(t, out, "broken")
}

func TestTestCommandGolden(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"sum.yaml": sumScenario})
	scenario := filepath.Join(dir, "sum.yaml")

	out, err := execute(t, "test", scenario, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ sum-total (golden updated)")

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "sum.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario":"sum-total"`)
	assert.Contains(t, string(golden), `"node_count":3`)

	_, err = execute(t, "test", scenario)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "sum.golden"), []byte("{}"), 0644))
	out, err = execute(t, "test", scenario)
	require.Error(t, err)
	assert.Contains(t, out, "IR does not match golden file")
}

func TestTestCommandEmpty(t *testing.T) {
	out, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)
}

func TestTestCommandMissingPath(t *testing.T) {
	_, err := execute(t, "test", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("scenarios", "golden", "sum.golden"), goldenFilePath(filepath.Join("scenarios", "sum.yaml")))
}
