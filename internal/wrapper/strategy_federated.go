package wrapper

import (
	"github.com/roach88/fedcomp/internal/ir"
	"github.com/roach88/fedcomp/internal/payload"
	"github.com/roach88/fedcomp/internal/tracing"
	"github.com/roach88/fedcomp/internal/types"
)

type federatedStrategy struct{}

func (federatedStrategy) kind() StrategyKind { return StrategyFederated }

func (federatedStrategy) checkType(types.Type) error { return nil }

func (federatedStrategy) checkNode(b ir.BuildingBlock) error {
	if b.Kind() == ir.KindCompiledPayload {
		return tracing.NewStrategyViolationError(StrategyFederated, "",
			"compiled payload %s must be wrapped in a local computation and called", b)
	}
	return nil
}

func (federatedStrategy) captureLeaf(p payload.Payload) (ir.BuildingBlock, error) {
	return nil, tracing.NewStrategyViolationError(StrategyFederated, "",
		"payload %q must be wrapped in a local computation and called", p.Export)
}

// admitsValue allows federated computations to be embedded directly.
// Local computations may only be called.
func (federatedStrategy) admitsValue(c *ir.Computation) bool {
	return c.Strategy() == StrategyFederated
}

func (federatedStrategy) admitsCall(*ir.Computation) bool { return true }
