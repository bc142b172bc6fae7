package wrapper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/fedcomp/internal/analysis"
	"github.com/roach88/fedcomp/internal/ir"
	"github.com/roach88/fedcomp/internal/payload"
	"github.com/roach88/fedcomp/internal/tracing"
	"github.com/roach88/fedcomp/internal/types"
)

var (
	i32      = types.Tensor(types.Int32)
	i64      = types.Tensor(types.Int64)
	f32      = types.Tensor(types.Float32)
	boolT    = types.Tensor(types.Bool)
	strT     = types.Tensor(types.String)
	clientsI = types.AtClients(i32)
	serverI  = types.AtServer(i32)
	sumType  = types.Function(clientsI, serverI)
)

// federatedSum wraps (x -> federated_sum(x)).
func federatedSum(t *testing.T) *ir.Computation {
	t.Helper()
	c, err := Wrap(Unary(func(tr *Tracer, x ir.BuildingBlock) (any, error) {
		fn, err := tr.Intrinsic("federated_sum", sumType)
		if err != nil {
			return nil, err
		}
		return tr.Apply(fn, x)
	}), clientsI, StrategyFederated, WithName("sum"))
	require.NoError(t, err)
	return c
}

func testPayload() payload.Payload {
	return payload.Payload{
		Blob:   []byte("\x00asm\x01\x00\x00\x00"),
		Export: "inc",
		Type:   types.Function(i32, i32),
	}
}

// localInc wraps a local computation applying the test payload.
func localInc(t *testing.T) *ir.Computation {
	t.Helper()
	c, err := Wrap(Unary(func(tr *Tracer, x ir.BuildingBlock) (any, error) {
		fn, err := tr.Lift(testPayload())
		if err != nil {
			return nil, err
		}
		return tr.Apply(fn, x)
	}), i32, StrategyLocal, WithName("inc"))
	require.NoError(t, err)
	return c
}

func countKind(b ir.BuildingBlock, k ir.Kind) int {
	n := 0
	if b.Kind() == k {
		n++
	}
	for _, c := range ir.Children(b) {
		n += countKind(c, k)
	}
	return n
}

func requireCode(t *testing.T, err error, code tracing.ErrorCode) *tracing.TraceError {
	t.Helper()
	require.Error(t, err)
	var te *tracing.TraceError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, code, te.Code, "error: %v", err)
	return te
}

func TestWrapIdentityIsReference(t *testing.T) {
	comp, err := Wrap(Unary(func(_ *Tracer, x ir.BuildingBlock) (any, error) {
		return x, nil
	}), i32, StrategyFederated)
	require.NoError(t, err)

	ref, ok := comp.Body().(*ir.Reference)
	require.True(t, ok, "body is %T", comp.Body())
	assert.Equal(t, DefaultParameterName, ref.Name())
	assert.Equal(t, DefaultParameterName, comp.ParameterName())
	assert.True(t, types.Equal(i32, comp.Type().Parameter))
	assert.True(t, types.Equal(i32, comp.Type().Result))
	assert.Equal(t, 1, ir.Size(comp.Body()))
	assert.Equal(t, StrategyFederated, comp.Strategy())
}

func TestWrapNoParameterStructOfTwoData(t *testing.T) {
	comp, err := Wrap(Nullary(func(tr *Tracer) (any, error) {
		a, err := tr.Data("data:a", i32)
		if err != nil {
			return nil, err
		}
		b, err := tr.Data("data:b", f32)
		if err != nil {
			return nil, err
		}
		return []any{a, b}, nil
	}), nil, StrategyFederated)
	require.NoError(t, err)

	assert.Nil(t, comp.Type().Parameter)
	assert.Empty(t, comp.ParameterName())
	assert.True(t, types.Equal(types.Unnamed(i32, f32), comp.Type().Result), "got %s", comp.Type().Result)
	assert.Equal(t, 1, countKind(comp.Body(), ir.KindStruct))
	assert.Equal(t, 2, countKind(comp.Body(), ir.KindData))
	assert.Equal(t, 3, ir.Size(comp.Body()))
}

func TestWrapDeterministic(t *testing.T) {
	fn := Unary(func(tr *Tracer, x ir.BuildingBlock) (any, error) {
		sum, err := tr.Intrinsic("federated_sum", sumType)
		if err != nil {
			return nil, err
		}
		total, err := tr.Apply(sum, x)
		if err != nil {
			return nil, err
		}
		b1, r1, err := tr.Local(total)
		if err != nil {
			return nil, err
		}
		b2, r2, err := tr.Local(map[string]any{"total": r1, "round": 3})
		if err != nil {
			return nil, err
		}
		return tr.Block([]ir.Binding{b1, b2}, r2)
	})

	first, err := Wrap(fn, clientsI, StrategyFederated, WithName("d"))
	require.NoError(t, err)
	second, err := Wrap(fn, clientsI, StrategyFederated, WithName("d"))
	require.NoError(t, err)

	assert.True(t, ir.Equal(first.Body(), second.Body()))
	assert.Equal(t, ir.MustComputationID(first), ir.MustComputationID(second))

	blk, ok := first.Body().(*ir.Block)
	require.True(t, ok)
	require.Len(t, blk.Locals(), 2)
	assert.Equal(t, "_var1", blk.Locals()[0].Name)
	assert.Equal(t, "_var2", blk.Locals()[1].Name)
}

func TestWrapStackCleanupAfterError(t *testing.T) {
	boom := errors.New("boom")
	var captured *Tracer

	_, err := Wrap(Nullary(func(tr *Tracer) (any, error) {
		captured = tr
		assert.Equal(t, 1, tr.Depth())
		return nil, boom
	}), nil, StrategyFederated)
	te := requireCode(t, err, tracing.ErrCodeUntracedCallable)
	assert.ErrorIs(t, te, boom)

	require.NotNil(t, captured)
	assert.Equal(t, 0, captured.Depth())
	_, err = captured.Lift(1)
	assert.True(t, tracing.IsNoActiveContext(err))

	comp, err := Wrap(Nullary(func(*Tracer) (any, error) { return 1, nil }), nil, StrategyFederated)
	require.NoError(t, err)
	assert.True(t, types.Equal(i64, comp.Type().Result))
}

func TestWrapStackCleanupAfterPanic(t *testing.T) {
	var captured *Tracer
	_, err := Wrap(Unary(func(tr *Tracer, _ ir.BuildingBlock) (any, error) {
		captured = tr
		panic("kaboom")
	}), i32, StrategyLocal)
	te := requireCode(t, err, tracing.ErrCodeUntracedCallable)
	assert.Contains(t, te.Error(), "kaboom")
	assert.Equal(t, 0, captured.Depth())

	_, err = Wrap(Unary(func(_ *Tracer, x ir.BuildingBlock) (any, error) { return x, nil }), i32, StrategyLocal)
	require.NoError(t, err)
}

func TestWrapTraceErrorPropagatesUnchanged(t *testing.T) {
	_, err := Wrap(Nullary(func(tr *Tracer) (any, error) {
		return tr.Data("", i32)
	}), nil, StrategyFederated)
	requireCode(t, err, tracing.ErrCodeTypeMismatch)

	_, err = Wrap(Nullary(func(*Tracer) (any, error) {
		return nil, tracing.NewArityError("inner")
	}), nil, StrategyFederated)
	requireCode(t, err, tracing.ErrCodeArity)
}

func TestWrapArity(t *testing.T) {
	ident := Unary(func(_ *Tracer, x ir.BuildingBlock) (any, error) { return x, nil })
	constant := Nullary(func(*Tracer) (any, error) { return 1, nil })

	tests := []struct {
		name  string
		fn    Callable
		param types.Type
	}{
		{"zero callable", Callable{}, nil},
		{"nullary with parameter", constant, i32},
		{"unary without parameter", ident, nil},
		{"nil func", Unary(nil), i32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Wrap(tt.fn, tt.param, StrategyFederated)
			requireCode(t, err, tracing.ErrCodeArity)
		})
	}
}

func TestWrapUnknownStrategy(t *testing.T) {
	_, err := Wrap(Nullary(func(*Tracer) (any, error) { return 1, nil }), nil, StrategyKind("quantum"))
	requireCode(t, err, tracing.ErrCodeStrategyViolation)
}

func TestWrapNestedCall(t *testing.T) {
	inner := federatedSum(t)
	var captured *Tracer

	outer, err := Wrap(Unary(func(tr *Tracer, x ir.BuildingBlock) (any, error) {
		captured = tr
		return tr.Call(inner, x)
	}), clientsI, StrategyFederated, WithName("outer"))
	require.NoError(t, err)

	call, ok := outer.Body().(*ir.Call)
	require.True(t, ok, "body is %T", outer.Body())
	assert.True(t, ir.Equal(inner.AsLambda(), call.Function()))
	assert.True(t, types.Equal(serverI, outer.Type().Result))
	assert.Equal(t, 0, captured.Depth())
}

func TestWrapNestedTrace(t *testing.T) {
	var innerDepth, outerDepth int
	var captured *Tracer

	outer, err := Wrap(Unary(func(tr *Tracer, x ir.BuildingBlock) (any, error) {
		captured = tr
		outerDepth = tr.Depth()
		inner, err := tr.Wrap(Unary(func(tr2 *Tracer, y ir.BuildingBlock) (any, error) {
			innerDepth = tr2.Depth()

			_, err := tr.Lift(1)
			assert.True(t, tracing.IsNoActiveContext(err), "outer tracer must be inactive inside nested trace")

			sum, err := tr2.Intrinsic("federated_sum", sumType)
			if err != nil {
				return nil, err
			}
			return tr2.Apply(sum, y)
		}), clientsI, WithName("inner"))
		if err != nil {
			return nil, err
		}
		assert.Equal(t, "_var1", inner.ParameterName())
		return tr.Call(inner, x)
	}), clientsI, StrategyFederated)
	require.NoError(t, err)

	assert.Equal(t, 1, outerDepth)
	assert.Equal(t, 2, innerDepth)
	assert.Equal(t, 0, captured.Depth())

	call, ok := outer.Body().(*ir.Call)
	require.True(t, ok)
	lambda, ok := call.Function().(*ir.Lambda)
	require.True(t, ok)
	assert.Equal(t, "_var1", lambda.ParameterName())
}

func TestWrapNestedFailureUnwinds(t *testing.T) {
	var captured *Tracer
	_, err := Wrap(Nullary(func(tr *Tracer) (any, error) {
		captured = tr
		_, err := tr.Wrap(Nullary(func(*Tracer) (any, error) {
			panic("inner")
		}), nil)
		assert.Equal(t, 1, tr.Depth())
		return nil, err
	}), nil, StrategyFederated)
	requireCode(t, err, tracing.ErrCodeUntracedCallable)
	assert.Equal(t, 0, captured.Depth())
}

func TestWrapRejectsDanglingLocal(t *testing.T) {
	_, err := Wrap(Nullary(func(tr *Tracer) (any, error) {
		_, ref, err := tr.Local(1)
		if err != nil {
			return nil, err
		}
		return ref, nil
	}), nil, StrategyFederated)

	te := requireCode(t, err, tracing.ErrCodeTypeMismatch)
	assert.Equal(t, "/", te.Path)
	assert.Contains(t, err.Error(), `reference "_var1" at /: unbound`)
}

func TestWrapRejectsMistypedParameterReference(t *testing.T) {
	_, err := Wrap(Unary(func(_ *Tracer, x ir.BuildingBlock) (any, error) {
		wrong, err := ir.NewReference(DefaultParameterName, f32)
		if err != nil {
			return nil, err
		}
		return []any{x, wrong}, nil
	}), i32, StrategyFederated)

	te := requireCode(t, err, tracing.ErrCodeTypeMismatch)
	assert.Equal(t, "/1", te.Path)
	assert.Contains(t, err.Error(), "has type float32")
}

func TestWrapNestedTraceMayCloseOverEnclosingNames(t *testing.T) {
	outer, err := Wrap(Unary(func(tr *Tracer, x ir.BuildingBlock) (any, error) {
		inner, err := tr.Wrap(Nullary(func(*Tracer) (any, error) {
			return x, nil
		}), nil)
		if err != nil {
			return nil, err
		}
		return tr.Call(inner, nil)
	}), i32, StrategyFederated)
	require.NoError(t, err)
	assert.True(t, types.Equal(i32, outer.Type().Result))
}

func TestWrapTreeSharesNoNodes(t *testing.T) {
	comp, err := Wrap(Unary(func(_ *Tracer, x ir.BuildingBlock) (any, error) {
		return []any{x, x}, nil
	}), i32, StrategyFederated)
	require.NoError(t, err)

	seen := map[ir.BuildingBlock]bool{}
	var visit func(ir.BuildingBlock)
	visit = func(b ir.BuildingBlock) {
		seen[b] = true
		for _, c := range ir.Children(b) {
			visit(c)
		}
	}
	visit(comp.Body())
	assert.Equal(t, analysis.Count(comp.Body(), analysis.Any), len(seen))
	assert.Equal(t, 3, len(seen))

	sum := federatedSum(t)
	reused, err := Wrap(Unary(func(*Tracer, ir.BuildingBlock) (any, error) {
		return sum.Body(), nil
	}), clientsI, StrategyFederated)
	require.NoError(t, err)
	assert.NotSame(t, sum.Body(), reused.Body())
	assert.True(t, ir.Equal(sum.Body(), reused.Body()))
}

func TestWrapFunc(t *testing.T) {
	comp, err := WrapFunc(func(x ir.BuildingBlock) ir.BuildingBlock { return x }, f32, StrategyLocal,
		WithName("id"), WithParameterName("v"))
	require.NoError(t, err)
	assert.Equal(t, "id", comp.Name())
	assert.Equal(t, "v", comp.ParameterName())
	assert.Equal(t, "(v -> v)", comp.AsLambda().String())

	_, err = WrapFunc(func(a, b any) any { return a }, f32, StrategyLocal)
	requireCode(t, err, tracing.ErrCodeArity)
}

func TestWrapLogsTrace(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := zap.New(core)

	_, err := Wrap(Nullary(func(*Tracer) (any, error) { return "x", nil }), nil, StrategyLocal,
		WithName("hello"), WithLogger(log), WithTraceIDs(NewFixedGenerator("trace-1", "trace-2")))
	require.NoError(t, err)

	finished := logs.FilterMessage("trace finished").All()
	require.Len(t, finished, 1)
	fields := finished[0].ContextMap()
	assert.Equal(t, "trace-1", fields["trace_id"])
	assert.Equal(t, "local", fields["strategy"])
	assert.Equal(t, "hello", fields["name"])
	assert.EqualValues(t, 1, fields["nodes"])

	_, err = Wrap(Nullary(func(*Tracer) (any, error) { return nil, errors.New("no") }), nil, StrategyLocal,
		WithLogger(log), WithTraceIDs(NewFixedGenerator("trace-2")))
	require.Error(t, err)
	failed := logs.FilterMessage("trace failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "trace-2", failed[0].ContextMap()["trace_id"])
}

func TestCompose(t *testing.T) {
	sum := federatedSum(t)
	bcast, err := Wrap(Unary(func(tr *Tracer, x ir.BuildingBlock) (any, error) {
		fn, err := tr.Intrinsic("federated_broadcast", types.Function(serverI, clientsI))
		if err != nil {
			return nil, err
		}
		return tr.Apply(fn, x)
	}), serverI, StrategyFederated, WithName("broadcast"))
	require.NoError(t, err)

	comp, err := Compose("round", sum, bcast)
	require.NoError(t, err)
	assert.Equal(t, "round", comp.Name())
	assert.True(t, types.Equal(types.Function(clientsI, clientsI), comp.Type()))
	assert.Equal(t, 2, countKind(comp.Body(), ir.KindIntrinsic))

	_, err = Compose("bad", bcast, bcast)
	requireCode(t, err, tracing.ErrCodeTypeMismatch)

	_, err = Compose("empty")
	requireCode(t, err, tracing.ErrCodeArity)
}
