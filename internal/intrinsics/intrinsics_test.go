package intrinsics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fedcomp/internal/intrinsics"
	"github.com/roach88/fedcomp/internal/ir"
	"github.com/roach88/fedcomp/internal/tracing"
	"github.com/roach88/fedcomp/internal/types"
	"github.com/roach88/fedcomp/internal/wrapper"
)

var (
	i32      = types.Tensor(types.Int32)
	f32      = types.Tensor(types.Float32)
	clientsI = types.AtClients(i32)
	clientsF = types.AtClients(f32)
	serverI  = types.AtServer(i32)
)

func traceFederated(t *testing.T, param types.Type, fn func(tr *wrapper.Tracer, x ir.BuildingBlock) (any, error)) (*ir.Computation, error) {
	t.Helper()
	return wrapper.Wrap(wrapper.Unary(fn), param, wrapper.StrategyFederated)
}

func mustIntrinsic(t *testing.T, tr *wrapper.Tracer, uri string, typ types.Type) ir.BuildingBlock {
	t.Helper()
	b, err := tr.Intrinsic(uri, typ)
	require.NoError(t, err)
	return b
}

func intrinsicURI(t *testing.T, c *ir.Computation) string {
	t.Helper()
	call, ok := c.Body().(*ir.Call)
	require.True(t, ok, "body is %T", c.Body())
	in, ok := call.Function().(*ir.Intrinsic)
	require.True(t, ok)
	return in.URI()
}

func TestCatalog(t *testing.T) {
	uris := intrinsics.URIs()
	assert.IsNonDecreasing(t, uris)
	assert.Contains(t, uris, intrinsics.FederatedSum)

	info, ok := intrinsics.Lookup(intrinsics.FederatedSecureSum)
	require.True(t, ok)
	assert.True(t, info.Aggregation)
	assert.True(t, info.Secure)

	_, ok = intrinsics.Lookup("federated_teleport")
	assert.False(t, ok)

	insecure := intrinsics.InsecureAggregations()
	assert.Contains(t, insecure, intrinsics.FederatedReduce)
	assert.Contains(t, insecure, intrinsics.FederatedSum)
	assert.NotContains(t, insecure, intrinsics.FederatedSecureSum)
	assert.NotContains(t, insecure, intrinsics.FederatedBroadcast)
}

func TestSumAndMean(t *testing.T) {
	for _, op := range []struct {
		uri string
		fn  func(intrinsics.Builder, ir.BuildingBlock) (ir.BuildingBlock, error)
	}{
		{intrinsics.FederatedSum, intrinsics.Sum},
		{intrinsics.FederatedMean, intrinsics.Mean},
		{intrinsics.FederatedCollect, intrinsics.Collect},
	} {
		t.Run(op.uri, func(t *testing.T) {
			c, err := traceFederated(t, clientsI, func(tr *wrapper.Tracer, x ir.BuildingBlock) (any, error) {
				return op.fn(tr, x)
			})
			require.NoError(t, err)
			assert.Equal(t, op.uri, intrinsicURI(t, c))
			res, ok := c.Type().Result.(*types.FederatedType)
			require.True(t, ok)
			assert.Equal(t, types.Server, res.Placement)
		})
	}

	_, err := traceFederated(t, serverI, func(tr *wrapper.Tracer, x ir.BuildingBlock) (any, error) {
		return intrinsics.Sum(tr, x)
	})
	assert.True(t, tracing.IsTypeMismatch(err))
}

func TestBroadcastAndValue(t *testing.T) {
	c, err := traceFederated(t, serverI, func(tr *wrapper.Tracer, x ir.BuildingBlock) (any, error) {
		return intrinsics.Broadcast(tr, x)
	})
	require.NoError(t, err)
	assert.Equal(t, "int32@CLIENTS", c.Type().Result.String())

	c, err = traceFederated(t, i32, func(tr *wrapper.Tracer, x ir.BuildingBlock) (any, error) {
		return intrinsics.Value(tr, x, types.Server)
	})
	require.NoError(t, err)
	assert.Equal(t, intrinsics.FederatedValueServer, intrinsicURI(t, c))
	assert.True(t, types.Equal(serverI, c.Type().Result))
}

func TestMapAndApply(t *testing.T) {
	c, err := traceFederated(t, clientsI, func(tr *wrapper.Tracer, x ir.BuildingBlock) (any, error) {
		cast := mustIntrinsic(t, tr, "cast", types.Function(i32, f32))
		return intrinsics.Map(tr, cast, x)
	})
	require.NoError(t, err)
	assert.True(t, types.Equal(clientsF, c.Type().Result))

	c, err = traceFederated(t, serverI, func(tr *wrapper.Tracer, x ir.BuildingBlock) (any, error) {
		cast := mustIntrinsic(t, tr, "cast", types.Function(i32, f32))
		return intrinsics.ApplyAtServer(tr, cast, x)
	})
	require.NoError(t, err)
	assert.True(t, types.Equal(types.AtServer(f32), c.Type().Result))

	_, err = traceFederated(t, clientsI, func(tr *wrapper.Tracer, x ir.BuildingBlock) (any, error) {
		return intrinsics.Map(tr, x, x)
	})
	assert.True(t, tracing.IsTypeMismatch(err))
}

func TestZip(t *testing.T) {
	param := types.Unnamed(clientsI, clientsF)
	c, err := traceFederated(t, param, func(tr *wrapper.Tracer, x ir.BuildingBlock) (any, error) {
		a, err := tr.Select(x, 0)
		if err != nil {
			return nil, err
		}
		b, err := tr.Select(x, 1)
		if err != nil {
			return nil, err
		}
		return intrinsics.Zip(tr, a, b)
	})
	require.NoError(t, err)
	assert.Equal(t, intrinsics.FederatedZipAtClients, intrinsicURI(t, c))
	assert.Equal(t, "{<int32,float32>}@CLIENTS", c.Type().Result.String())
}

func TestReduce(t *testing.T) {
	c, err := traceFederated(t, clientsI, func(tr *wrapper.Tracer, x ir.BuildingBlock) (any, error) {
		zero, err := tr.Lift(int32(0))
		if err != nil {
			return nil, err
		}
		add := mustIntrinsic(t, tr, "add", types.Function(types.Unnamed(i32, i32), i32))
		return intrinsics.Reduce(tr, x, zero, add)
	})
	require.NoError(t, err)
	assert.Equal(t, intrinsics.FederatedReduce, intrinsicURI(t, c))
	assert.True(t, types.Equal(serverI, c.Type().Result))

	_, err = traceFederated(t, clientsI, func(tr *wrapper.Tracer, x ir.BuildingBlock) (any, error) {
		zero, err := tr.Lift(float32(0))
		if err != nil {
			return nil, err
		}
		add := mustIntrinsic(t, tr, "add", types.Function(types.Unnamed(i32, i32), i32))
		return intrinsics.Reduce(tr, x, zero, add)
	})
	assert.True(t, tracing.IsTypeMismatch(err))
}

func TestAggregate(t *testing.T) {
	c, err := traceFederated(t, clientsI, func(tr *wrapper.Tracer, x ir.BuildingBlock) (any, error) {
		zero, err := tr.Lift(int32(0))
		if err != nil {
			return nil, err
		}
		add := mustIntrinsic(t, tr, "add", types.Function(types.Unnamed(i32, i32), i32))
		report := mustIntrinsic(t, tr, "to_float", types.Function(i32, f32))
		return intrinsics.Aggregate(tr, x, zero, add, add, report)
	})
	require.NoError(t, err)
	assert.True(t, types.Equal(types.AtServer(f32), c.Type().Result))
}

func TestSequenceOps(t *testing.T) {
	seqI := types.Sequence(i32)

	c, err := traceFederated(t, seqI, func(tr *wrapper.Tracer, x ir.BuildingBlock) (any, error) {
		return intrinsics.SumSequence(tr, x)
	})
	require.NoError(t, err)
	assert.True(t, types.Equal(i32, c.Type().Result))

	c, err = traceFederated(t, seqI, func(tr *wrapper.Tracer, x ir.BuildingBlock) (any, error) {
		cast := mustIntrinsic(t, tr, "cast", types.Function(i32, f32))
		return intrinsics.MapSequence(tr, cast, x)
	})
	require.NoError(t, err)
	assert.True(t, types.Equal(types.Sequence(f32), c.Type().Result))

	c, err = traceFederated(t, seqI, func(tr *wrapper.Tracer, x ir.BuildingBlock) (any, error) {
		zero, err := tr.Lift(int32(0))
		if err != nil {
			return nil, err
		}
		add := mustIntrinsic(t, tr, "add", types.Function(types.Unnamed(i32, i32), i32))
		return intrinsics.ReduceSequence(tr, x, zero, add)
	})
	require.NoError(t, err)
	assert.True(t, types.Equal(i32, c.Type().Result))

	_, err = traceFederated(t, i32, func(tr *wrapper.Tracer, x ir.BuildingBlock) (any, error) {
		return intrinsics.SumSequence(tr, x)
	})
	assert.True(t, tracing.IsTypeMismatch(err))
}

func TestEvalAt(t *testing.T) {
	c, err := wrapper.Wrap(wrapper.Nullary(func(tr *wrapper.Tracer) (any, error) {
		gen := mustIntrinsic(t, tr, "random", types.Function(nil, f32))
		return intrinsics.EvalAt(tr, gen, types.Clients)
	}), nil, wrapper.StrategyFederated)
	require.NoError(t, err)
	assert.True(t, types.Equal(clientsF, c.Type().Result))
}

func TestHelpersRejectedInLocalTraces(t *testing.T) {
	_, err := wrapper.Wrap(wrapper.Unary(func(tr *wrapper.Tracer, x ir.BuildingBlock) (any, error) {
		return intrinsics.SumSequence(tr, x)
	}), types.Sequence(i32), wrapper.StrategyLocal)
	assert.True(t, tracing.IsStrategyViolation(err))
}
