// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fedcomp/internal/compiler"
	"github.com/roach88/fedcomp/internal/ir"
)

// AggregationDoc declares three computations:
//
//	total   (x -> federated_sum(x))
//	folded  (x -> (let r=federated_reduce(x) in r))
//	swap    (v -> <b=v.b,a=v[0]>), local
const AggregationDoc = `package specs

computation: total: {
	parameter: {name: "x", type: "{int32}@CLIENTS"}
	body: call: {
		function: intrinsic: {uri: "federated_sum", type: "({int32}@CLIENTS -> int32@SERVER)"}
		argument: reference: "x"
	}
}

computation: folded: {
	parameter: {name: "x", type: "{int32}@CLIENTS"}
	body: block: {
		locals: [{
			name: "r"
			value: call: {
				function: intrinsic: {uri: "federated_reduce", type: "({int32}@CLIENTS -> int32@SERVER)"}
				argument: reference: "x"
			}
		}]
		result: reference: "r"
	}
}

computation: swap: {
	strategy: "local"
	parameter: {name: "v", type: "<a=int32,b=float32>"}
	body: struct: [
		{name: "b", value: selection: {source: reference: "v", name: "b"}},
		{name: "a", value: selection: {source: reference: "v", index: 0}},
	]
}
`

// Compile compiles a CUE document and returns its computations by name.
func Compile(t testing.TB, src string) map[string]*ir.Computation {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())
	comps, err := compiler.CompileDocument(v)
	require.NoError(t, err)

	byName := make(map[string]*ir.Computation, len(comps))
	for _, c := range comps {
		byName[c.Name()] = c
	}
	return byName
}

// Computation compiles src and returns the computation called name.
func Computation(t testing.TB, src, name string) *ir.Computation {
	t.Helper()
	c, ok := Compile(t, src)[name]
	require.True(t, ok, "no computation %q", name)
	return c
}

// WriteFile writes content to name in a fresh temporary directory and
// returns the full path.
func WriteFile(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
