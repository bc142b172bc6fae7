package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fedcomp/internal/ir"
	"github.com/roach88/fedcomp/internal/types"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateCleanComputation(t *testing.T) {
	comps, err := CompileDocument(compileString(t, `
		computation: f: {
			parameter: {name: "x", type: "{int32}@CLIENTS"}
			body: call: {
				function: intrinsic: {uri: "federated_sum", type: "({int32}@CLIENTS -> int32@SERVER)"}
				argument: reference: "x"
			}
		}
	`))
	require.NoError(t, err)
	assert.Empty(t, Validate(comps[0]))
	assert.Nil(t, Validate(nil))
}

func TestValidateLocalRules(t *testing.T) {
	comps, err := CompileDocument(compileString(t, `
		computation: f: {
			strategy: "local"
			parameter: {name: "x", type: "int32"}
			body: struct: [
				{value: call: {
					function: intrinsic: {uri: "federated_frobnicate", type: "(int32 -> int32)"}
					argument: reference: "x"
				}},
				{value: placement: "SERVER"},
			]
		}
	`))
	require.NoError(t, err)

	errs := Validate(comps[0])
	assert.Equal(t, []string{ErrIntrinsicInLocal, ErrUnknownIntrinsic, ErrFederatedInLocal}, codes(errs))
	assert.Equal(t, "/0/0", errs[0].Path)
	assert.Equal(t, `[E105] /0/0: unknown intrinsic "federated_frobnicate"`, errs[1].Error())
	assert.Equal(t, "/1", errs[2].Path)
	assert.Equal(t, "placement node has federated type placement", errs[2].Message)
}

func TestValidateFederatedParameter(t *testing.T) {
	comps, err := CompileDocument(compileString(t, `
		computation: f: {
			strategy: "local"
			parameter: {name: "x", type: "int32@SERVER"}
			body: lambda: {
				parameter: {name: "y", type: "{int32}@CLIENTS"}
				body: reference: "y"
			}
		}
	`))
	require.NoError(t, err)

	errs := Validate(comps[0])
	require.Len(t, errs, 2)
	assert.Equal(t, "/", errs[0].Path)
	assert.Equal(t, "parameter has federated type int32@SERVER", errs[0].Message)
	assert.Equal(t, "/", errs[1].Path)
	assert.Contains(t, errs[1].Message, "lambda parameter")
}

func TestValidateReferences(t *testing.T) {
	i32 := types.Tensor(types.Int32)
	i64 := types.Tensor(types.Int64)

	free, err := ir.NewReference("y", i32)
	require.NoError(t, err)
	wrong, err := ir.NewReference("x", i64)
	require.NoError(t, err)
	st, err := ir.NewStruct(ir.Field{Value: free}, ir.Field{Value: wrong})
	require.NoError(t, err)
	c, err := ir.NewComputation("refs", "x", i32, st, ir.StrategyLocal)
	require.NoError(t, err)

	errs := Validate(c)
	require.Len(t, errs, 2)
	assert.Equal(t, ValidationError{Path: "/0", Message: `unbound reference "y"`, Code: ErrUnboundReference}, errs[0])
	assert.Equal(t, ErrReferenceType, errs[1].Code)
	assert.Contains(t, errs[1].Message, "bound as int32")
}

func TestValidateDuplicateLocals(t *testing.T) {
	comps, err := CompileDocument(compileString(t, `
		computation: f: {
			strategy: "local"
			body: block: {
				locals: [
					{name: "a", value: data: {uri: "data:1", type: "int32"}},
					{name: "a", value: data: {uri: "data:2", type: "int32"}},
				]
				result: reference: "a"
			}
		}
	`))
	require.NoError(t, err)

	errs := Validate(comps[0])
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateLocal, errs[0].Code)
	assert.Equal(t, "/ (local 1)", errs[0].Path)
}
