package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fedcomp/internal/store"
)

func TestStorePut(t *testing.T) {
	doc := writeFile(t, "doc.cue", aggregationDoc)
	db := filepath.Join(t.TempDir(), "fedcomp.db")

	out, err := execute(t, "store", "put", doc, "--db", db)
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^[0-9a-f]{64}  folded \(stored\)$`, out)
	assert.Regexp(t, `(?m)^[0-9a-f]{64}  total \(stored\)$`, out)

	// Content addressing makes a second put a no-op.
	out, err = execute(t, "store", "put", doc, "--db", db)
	require.NoError(t, err)
	assert.Equal(t, 3, len(regexp.MustCompile(`\(unchanged\)`).FindAllString(out, -1)))
}

func TestStoreList(t *testing.T) {
	doc := writeFile(t, "doc.cue", aggregationDoc)
	db := filepath.Join(t.TempDir(), "fedcomp.db")

	out, err := execute(t, "store", "list", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "No computations stored.\n", out)

	_, err = execute(t, "store", "put", doc, "--db", db)
	require.NoError(t, err)

	out, err = execute(t, "store", "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "swap")
	assert.Contains(t, out, "total            ({int32}@CLIENTS -> int32@SERVER)")

	out, err = execute(t, "store", "list", "--db", db, "--intrinsic", "federated_reduce", "--format", "json")
	require.NoError(t, err)
	var resp struct {
		Data []store.Record `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "folded", resp.Data[0].Name)
	assert.Equal(t, 5, resp.Data[0].Nodes)

	out, err = execute(t, "store", "list", "--db", db, "--name", "swap")
	require.NoError(t, err)
	assert.Contains(t, out, "swap")
	assert.NotContains(t, out, "total")

	_, err = execute(t, "store", "list", "--db", db, "--name", "swap", "--intrinsic", "federated_sum")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestStoreShow(t *testing.T) {
	doc := writeFile(t, "doc.cue", aggregationDoc)
	db := filepath.Join(t.TempDir(), "fedcomp.db")

	_, err := execute(t, "check", doc, "--name", "total", "--forbid", "federated_sum", "--db", db)
	require.Error(t, err)

	out, err := execute(t, "store", "show", "total", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "total\n")
	assert.Contains(t, out, "  expression: (x -> federated_sum(x))\n")
	assert.Contains(t, out, "  intrinsic:  federated_sum\n")
	assert.Contains(t, out, "  ✗ forbid (")
	assert.Contains(t, out, "      federated_sum at /0\n")

	// Lookup by id returns the same record.
	st, err := store.Open(db)
	require.NoError(t, err)
	records, err := st.FindByName(context.Background(), "total")
	require.NoError(t, err)
	require.NoError(t, st.Close())
	require.Len(t, records, 1)

	out, err = execute(t, "store", "show", records[0].ID, "--db", db, "--format", "json")
	require.NoError(t, err)
	var resp struct {
		Data ShowResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "total", resp.Data.Name)
	assert.Equal(t, []string{"federated_sum"}, resp.Data.Intrinsics)
	require.Len(t, resp.Data.Checks, 1)
	assert.Equal(t, "forbid", resp.Data.Checks[0].Policy)
}

func TestStoreShowNotFound(t *testing.T) {
	db := filepath.Join(t.TempDir(), "fedcomp.db")

	out, err := execute(t, "store", "show", "nope", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, `Error [E005]: no stored computation "nope"`)
}

func TestStoreVerify(t *testing.T) {
	doc := writeFile(t, "doc.cue", aggregationDoc)
	db := filepath.Join(t.TempDir(), "fedcomp.db")

	_, err := execute(t, "store", "put", doc, "--db", db)
	require.NoError(t, err)

	out, err := execute(t, "store", "verify", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "✓ 3 computation(s) verified\n", out)

	// Corrupt one catalog row behind the store's back.
	st, err := store.Open(db)
	require.NoError(t, err)
	_, err = st.DB().Exec(`UPDATE computations SET node_count = 99 WHERE name = 'swap'`)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err = execute(t, "store", "verify", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ ")
	assert.NotContains(t, out, "verified")
}

func TestStoreRequiresDatabase(t *testing.T) {
	_, err := execute(t, "store", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"db" not set`)
}
