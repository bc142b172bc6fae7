// Package wrapper turns callables into computations by tracing them.
//
// Wrap pushes a frame for the chosen strategy onto a fresh context stack,
// hands the callable a Reference placeholder for its parameter and a Tracer
// capability, invokes it exactly once and lifts whatever it returns into a
// building block. The frame is popped on every exit path.
//
//	sum, err := wrapper.Wrap(wrapper.Unary(func(t *wrapper.Tracer, x ir.BuildingBlock) (any, error) {
//		fn, err := t.Intrinsic("federated_sum", types.Function(clients, server))
//		if err != nil {
//			return nil, err
//		}
//		return t.Apply(fn, x)
//	}), clients, wrapper.StrategyFederated, wrapper.WithName("sum"))
//
// Two strategies exist. StrategyFederated composes intrinsics and other
// computations and never captures compiled payloads itself. StrategyLocal
// captures payloads and rejects intrinsics and federated types. A trace
// never mixes them: a federated trace reaches local code only through
// Tracer.Call of a computation wrapped on its own.
//
// Tracing is deterministic. Generated names come from a per-trace counter
// and trace IDs, used only for log correlation, never enter the IR.
package wrapper
