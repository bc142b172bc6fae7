package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fedcomp/internal/store"
)

const securePolicy = `name: secure-aggregation
forbidden:
  - federated_reduce
  - federated_collect
`

func TestCheckForbidPasses(t *testing.T) {
	doc := writeFile(t, "doc.cue", aggregationDoc)

	out, err := execute(t, "check", doc, "--name", "total", "--forbid", "federated_reduce")
	require.NoError(t, err)
	assert.Equal(t, "✓ total: forbid\n", out)
}

func TestCheckForbidFails(t *testing.T) {
	doc := writeFile(t, "doc.cue", aggregationDoc)

	out, err := execute(t, "check", doc, "--forbid", "federated_sum,federated_reduce")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✗ folded: forbid\n    federated_reduce at /0/0\n")
	assert.Contains(t, out, "✓ swap: forbid\n")
	assert.Contains(t, out, "✗ total: forbid\n    federated_sum at /0\n")
}

func TestCheckForbidInsecure(t *testing.T) {
	doc := writeFile(t, "doc.cue", aggregationDoc)

	out, err := execute(t, "check", doc, "--forbid-insecure", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string      `json:"status"`
		Data   CheckReport `json:"data"`
		Error  *CLIError   `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeViolation, resp.Error.Code)
	assert.False(t, resp.Data.Passed)

	byName := map[string][]string{}
	for _, c := range resp.Data.Checks {
		byName[c.Computation] = c.Violations
	}
	assert.Equal(t, []string{"federated_reduce at /0/0"}, byName["folded"])
	assert.Equal(t, []string{"federated_sum at /0"}, byName["total"])
	assert.Empty(t, byName["swap"])
}

func TestCheckPolicy(t *testing.T) {
	doc := writeFile(t, "doc.cue", aggregationDoc)
	pol := writeFile(t, "secure.yaml", securePolicy)

	out, err := execute(t, "check", doc, "--name", "total", "--policy", pol)
	require.NoError(t, err)
	assert.Equal(t, "✓ total: secure-aggregation\n", out)

	out, err = execute(t, "check", doc, "--name", "folded", "--policy", pol)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ folded: secure-aggregation\n")
	assert.Contains(t, out, "federated_reduce at /0/0")
}

func TestCheckRecordsOutcomes(t *testing.T) {
	doc := writeFile(t, "doc.cue", aggregationDoc)
	pol := writeFile(t, "secure.yaml", securePolicy)
	db := filepath.Join(t.TempDir(), "fedcomp.db")

	_, err := execute(t, "check", doc, "--policy", pol, "--forbid", "federated_sum", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	records, err := st.FindByName(ctx, "total")
	require.NoError(t, err)
	require.Len(t, records, 1)

	checks, err := st.ReadChecks(ctx, records[0].ID)
	require.NoError(t, err)
	require.Len(t, checks, 2)

	byPolicy := map[string]store.Check{}
	for _, c := range checks {
		byPolicy[c.Policy] = c
	}
	assert.False(t, byPolicy["forbid"].Passed())
	assert.Equal(t, []string{"federated_sum at /0"}, byPolicy["forbid"].Violations)
	assert.True(t, byPolicy["secure-aggregation"].Passed())
	assert.Len(t, byPolicy["secure-aggregation"].PolicyHash, 64)
}

func TestCheckErrors(t *testing.T) {
	doc := writeFile(t, "doc.cue", aggregationDoc)

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"nothing to check", []string{doc}, ErrCodeGeneric},
		{"missing policy", []string{doc, "--policy", filepath.Join(t.TempDir(), "none.yaml")}, ErrCodePolicy},
		{"unknown computation", []string{doc, "--forbid", "federated_sum", "--name", "nope"}, ErrCodeNotFound},
		{"missing document", []string{filepath.Join(t.TempDir(), "none.cue"), "--forbid", "federated_sum"}, ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"check", "--format", "json"}, tt.args...)
			out, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}
