package intrinsics

import (
	"github.com/roach88/fedcomp/internal/ir"
	"github.com/roach88/fedcomp/internal/tracing"
	"github.com/roach88/fedcomp/internal/types"
)

// SumType is ({T}@CLIENTS -> T@SERVER).
func SumType(member types.Type) *types.FunctionType {
	return types.Function(atClients(member), types.AtServer(member))
}

// Sum applies federated_sum to a client-placed value.
func Sum(b Builder, value ir.BuildingBlock) (ir.BuildingBlock, error) {
	m, err := federated(FederatedSum, value, types.Clients)
	if err != nil {
		return nil, err
	}
	return apply(b, FederatedSum, SumType(m), value)
}

// Mean applies federated_mean to a client-placed value.
func Mean(b Builder, value ir.BuildingBlock) (ir.BuildingBlock, error) {
	m, err := federated(FederatedMean, value, types.Clients)
	if err != nil {
		return nil, err
	}
	return apply(b, FederatedMean, SumType(m), value)
}

// WeightedMean applies federated_weighted_mean to client values and weights.
func WeightedMean(b Builder, value, weight ir.BuildingBlock) (ir.BuildingBlock, error) {
	m, err := federated(FederatedWeightedMean, value, types.Clients)
	if err != nil {
		return nil, err
	}
	w, err := federated(FederatedWeightedMean, weight, types.Clients)
	if err != nil {
		return nil, err
	}
	t := types.Function(types.Unnamed(atClients(m), atClients(w)), types.AtServer(m))
	return apply(b, FederatedWeightedMean, t, []any{value, weight})
}

// SecureSum applies federated_secure_sum. bitwidth is an unplaced value
// bounding the summands.
func SecureSum(b Builder, value, bitwidth ir.BuildingBlock) (ir.BuildingBlock, error) {
	m, err := federated(FederatedSecureSum, value, types.Clients)
	if err != nil {
		return nil, err
	}
	if bitwidth == nil {
		return nil, tracing.NewTypeMismatchError("", nil, "%s: missing bitwidth", FederatedSecureSum)
	}
	t := types.Function(types.Unnamed(atClients(m), bitwidth.Type()), types.AtServer(m))
	return apply(b, FederatedSecureSum, t, []any{value, bitwidth})
}

// Collect applies federated_collect, gathering client values into a server
// sequence.
func Collect(b Builder, value ir.BuildingBlock) (ir.BuildingBlock, error) {
	m, err := federated(FederatedCollect, value, types.Clients)
	if err != nil {
		return nil, err
	}
	t := types.Function(atClients(m), types.AtServer(types.Sequence(m)))
	return apply(b, FederatedCollect, t, value)
}

// Broadcast applies federated_broadcast to a server value. The result is
// all-equal at the clients.
func Broadcast(b Builder, value ir.BuildingBlock) (ir.BuildingBlock, error) {
	m, err := federated(FederatedBroadcast, value, types.Server)
	if err != nil {
		return nil, err
	}
	t := types.Function(types.AtServer(m), allEqualAt(m, types.Clients))
	return apply(b, FederatedBroadcast, t, value)
}

// Map applies fn pointwise to a client-placed value with federated_map.
func Map(b Builder, fn, value ir.BuildingBlock) (ir.BuildingBlock, error) {
	ft, err := function(FederatedMap, fn)
	if err != nil {
		return nil, err
	}
	if _, err := federated(FederatedMap, value, types.Clients); err != nil {
		return nil, err
	}
	t := types.Function(types.Unnamed(ft, atClients(ft.Parameter)), atClients(ft.Result))
	return apply(b, FederatedMap, t, []any{fn, value})
}

// ApplyAtServer applies fn to a server value with federated_apply.
func ApplyAtServer(b Builder, fn, value ir.BuildingBlock) (ir.BuildingBlock, error) {
	ft, err := function(FederatedApply, fn)
	if err != nil {
		return nil, err
	}
	if _, err := federated(FederatedApply, value, types.Server); err != nil {
		return nil, err
	}
	t := types.Function(types.Unnamed(ft, types.AtServer(ft.Parameter)), types.AtServer(ft.Result))
	return apply(b, FederatedApply, t, []any{fn, value})
}

// Value places an unplaced value at p with federated_value_at_*.
func Value(b Builder, value ir.BuildingBlock, p types.Placement) (ir.BuildingBlock, error) {
	if value == nil {
		return nil, tracing.NewTypeMismatchError("", nil, "federated_value: missing operand")
	}
	uri := FederatedValueServer
	if p == types.Clients {
		uri = FederatedValueClients
	}
	t := types.Function(value.Type(), allEqualAt(value.Type(), p))
	return apply(b, uri, t, value)
}

// Zip pairs two values placed at the same group.
func Zip(b Builder, first, second ir.BuildingBlock) (ir.BuildingBlock, error) {
	if first == nil || second == nil {
		return nil, tracing.NewTypeMismatchError("", nil, "federated_zip: missing operand")
	}
	ft, ok := first.Type().(*types.FederatedType)
	if !ok {
		return nil, tracing.NewTypeMismatchError("", nil, "federated_zip: operand %s is not federated", first.Type())
	}
	uri := FederatedZipAtServer
	if ft.Placement == types.Clients {
		uri = FederatedZipAtClients
	}
	m1, err := federated(uri, first, ft.Placement)
	if err != nil {
		return nil, err
	}
	m2, err := federated(uri, second, ft.Placement)
	if err != nil {
		return nil, err
	}

	param := types.Unnamed(first.Type(), second.Type())
	var result types.Type
	if ft.Placement == types.Clients {
		result = atClients(types.Unnamed(m1, m2))
	} else {
		result = types.AtServer(types.Unnamed(m1, m2))
	}
	return apply(b, uri, types.Function(param, result), []any{first, second})
}

// Reduce folds client values into an accumulator at the server with
// federated_reduce. op has type (<A,T> -> A).
func Reduce(b Builder, value, zero, op ir.BuildingBlock) (ir.BuildingBlock, error) {
	m, err := federated(FederatedReduce, value, types.Clients)
	if err != nil {
		return nil, err
	}
	if zero == nil {
		return nil, tracing.NewTypeMismatchError("", nil, "%s: missing zero", FederatedReduce)
	}
	opType, err := function(FederatedReduce, op)
	if err != nil {
		return nil, err
	}
	acc := zero.Type()
	want := types.Function(types.Unnamed(acc, m), acc)
	if !types.IsAssignable(opType, want) {
		return nil, tracing.NewTypeMismatchError("", nil, "%s: operator %s is not %s", FederatedReduce, opType, want)
	}
	t := types.Function(types.Unnamed(atClients(m), acc, want), types.AtServer(acc))
	return apply(b, FederatedReduce, t, []any{value, zero, op})
}

// Aggregate is the general client to server aggregation: accumulate
// (<A,T> -> A), merge (<A,A> -> A) and report (A -> R).
func Aggregate(b Builder, value, zero, accumulate, merge, report ir.BuildingBlock) (ir.BuildingBlock, error) {
	m, err := federated(FederatedAggregate, value, types.Clients)
	if err != nil {
		return nil, err
	}
	if zero == nil {
		return nil, tracing.NewTypeMismatchError("", nil, "%s: missing zero", FederatedAggregate)
	}
	acc := zero.Type()
	accType, err := function(FederatedAggregate, accumulate)
	if err != nil {
		return nil, err
	}
	mergeType, err := function(FederatedAggregate, merge)
	if err != nil {
		return nil, err
	}
	reportType, err := function(FederatedAggregate, report)
	if err != nil {
		return nil, err
	}
	if want := types.Function(types.Unnamed(acc, m), acc); !types.IsAssignable(accType, want) {
		return nil, tracing.NewTypeMismatchError("", nil, "%s: accumulate %s is not %s", FederatedAggregate, accType, want)
	}
	if want := types.Function(types.Unnamed(acc, acc), acc); !types.IsAssignable(mergeType, want) {
		return nil, tracing.NewTypeMismatchError("", nil, "%s: merge %s is not %s", FederatedAggregate, mergeType, want)
	}
	if !types.IsAssignable(acc, reportType.Parameter) {
		return nil, tracing.NewTypeMismatchError("", nil, "%s: report %s cannot take %s", FederatedAggregate, reportType, acc)
	}

	param := types.Unnamed(atClients(m), acc, accType, mergeType, reportType)
	t := types.Function(param, types.AtServer(reportType.Result))
	return apply(b, FederatedAggregate, t, []any{value, zero, accumulate, merge, report})
}

// EvalAt evaluates a nullary function at every member of p with
// federated_eval_at_*.
func EvalAt(b Builder, fn ir.BuildingBlock, p types.Placement) (ir.BuildingBlock, error) {
	uri := FederatedEvalAtServer
	if p == types.Clients {
		uri = FederatedEvalAtClients
	}
	if fn == nil {
		return nil, tracing.NewTypeMismatchError("", nil, "%s: missing function operand", uri)
	}
	ft, ok := fn.Type().(*types.FunctionType)
	if !ok || ft.Parameter != nil {
		return nil, tracing.NewTypeMismatchError("", nil, "%s: operand %s is not a nullary function", uri, fn.Type())
	}
	result := types.Type(types.AtServer(ft.Result))
	if p == types.Clients {
		result = atClients(ft.Result)
	}
	return apply(b, uri, types.Function(ft, result), fn)
}
