package intrinsics

import (
	"github.com/roach88/fedcomp/internal/ir"
	"github.com/roach88/fedcomp/internal/tracing"
	"github.com/roach88/fedcomp/internal/types"
)

// MapSequence applies fn to every element with sequence_map.
func MapSequence(b Builder, fn, seq ir.BuildingBlock) (ir.BuildingBlock, error) {
	ft, err := function(SequenceMap, fn)
	if err != nil {
		return nil, err
	}
	elem, err := sequenceElement(SequenceMap, seq)
	if err != nil {
		return nil, err
	}
	if !types.IsAssignable(elem, ft.Parameter) {
		return nil, tracing.NewTypeMismatchError("", nil, "%s: %s cannot take %s", SequenceMap, ft, elem)
	}
	t := types.Function(types.Unnamed(ft, seq.Type()), types.Sequence(ft.Result))
	return apply(b, SequenceMap, t, []any{fn, seq})
}

// ReduceSequence folds a sequence with op of type (<A,T> -> A).
func ReduceSequence(b Builder, seq, zero, op ir.BuildingBlock) (ir.BuildingBlock, error) {
	elem, err := sequenceElement(SequenceReduce, seq)
	if err != nil {
		return nil, err
	}
	if zero == nil {
		return nil, tracing.NewTypeMismatchError("", nil, "%s: missing zero", SequenceReduce)
	}
	opType, err := function(SequenceReduce, op)
	if err != nil {
		return nil, err
	}
	acc := zero.Type()
	want := types.Function(types.Unnamed(acc, elem), acc)
	if !types.IsAssignable(opType, want) {
		return nil, tracing.NewTypeMismatchError("", nil, "%s: operator %s is not %s", SequenceReduce, opType, want)
	}
	t := types.Function(types.Unnamed(seq.Type(), acc, want), acc)
	return apply(b, SequenceReduce, t, []any{seq, zero, op})
}

// SumSequence adds up the elements of a sequence.
func SumSequence(b Builder, seq ir.BuildingBlock) (ir.BuildingBlock, error) {
	elem, err := sequenceElement(SequenceSum, seq)
	if err != nil {
		return nil, err
	}
	return apply(b, SequenceSum, types.Function(seq.Type(), elem), seq)
}
