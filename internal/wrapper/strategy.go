package wrapper

import (
	"github.com/roach88/fedcomp/internal/ir"
	"github.com/roach88/fedcomp/internal/payload"
	"github.com/roach88/fedcomp/internal/tracing"
	"github.com/roach88/fedcomp/internal/types"
)

// StrategyKind selects the rules a trace follows.
type StrategyKind = tracing.StrategyKind

const (
	// StrategyFederated composes existing computations and intrinsics.
	// Compiled payloads may only enter through Tracer.Call of a local
	// computation.
	StrategyFederated = ir.StrategyFederated

	// StrategyLocal captures locally executable leaves such as compiled
	// payloads. Intrinsics and federated types are rejected.
	StrategyLocal = ir.StrategyLocal
)

// strategy is the rule set of one wrapper instance: which nodes and types
// a frame admits, how payload leaves are captured, and which existing
// computations may be embedded as values.
type strategy interface {
	kind() StrategyKind
	checkType(t types.Type) error
	checkNode(b ir.BuildingBlock) error
	captureLeaf(p payload.Payload) (ir.BuildingBlock, error)
	admitsValue(c *ir.Computation) bool
	admitsCall(c *ir.Computation) bool
}

func strategyFor(kind StrategyKind) (strategy, error) {
	switch kind {
	case StrategyFederated:
		return federatedStrategy{}, nil
	case StrategyLocal:
		return localStrategy{}, nil
	default:
		return nil, tracing.NewStrategyViolationError(kind, "", "unknown strategy")
	}
}
