package wrapper

import (
	"github.com/roach88/fedcomp/internal/ir"
	"github.com/roach88/fedcomp/internal/payload"
	"github.com/roach88/fedcomp/internal/tracing"
	"github.com/roach88/fedcomp/internal/types"
)

type localStrategy struct{}

func (localStrategy) kind() StrategyKind { return StrategyLocal }

func (localStrategy) checkType(t types.Type) error {
	if types.ContainsFederated(t) {
		return tracing.NewStrategyViolationError(StrategyLocal, "", "federated type %s is not allowed", t)
	}
	return nil
}

func (s localStrategy) checkNode(b ir.BuildingBlock) error {
	if b.Kind() == ir.KindIntrinsic {
		return tracing.NewStrategyViolationError(StrategyLocal, "", "intrinsic %s is not allowed", b)
	}
	return s.checkType(b.Type())
}

func (localStrategy) captureLeaf(p payload.Payload) (ir.BuildingBlock, error) {
	node, err := p.Node()
	if err != nil {
		return nil, tracing.NewTypeMismatchError("", err, "payload %q", p.Export)
	}
	return node, nil
}

func (localStrategy) admitsValue(c *ir.Computation) bool {
	return c.Strategy() == StrategyLocal
}

func (localStrategy) admitsCall(c *ir.Computation) bool {
	return c.Strategy() == StrategyLocal
}
