package ir

import (
	"fmt"

	"github.com/roach88/fedcomp/internal/types"
)

// Strategy names the tracing strategy that produced a Computation.
type Strategy string

const (
	// StrategyFederated composes existing computations and intrinsics.
	StrategyFederated Strategy = "federated"
	// StrategyLocal produces locally executable logic.
	StrategyLocal Strategy = "local"
)

// IsValid reports whether s is a known strategy.
func (s Strategy) IsValid() bool {
	return s == StrategyFederated || s == StrategyLocal
}

// Computation is the finished, typed result of tracing a callable.
//
// The body is the traced tree; the parameter, if any, is visible inside the
// body as a Reference named ParameterName. A Computation is immutable and
// safe to share between goroutines.
type Computation struct {
	name          string
	parameterName string
	typ           *types.FunctionType
	body          BuildingBlock
	strategy      Strategy
}

// NewComputation assembles a computation. It is called by the tracer, the
// CUE compiler and the deserializer; user code obtains computations from
// those entry points.
func NewComputation(name, parameterName string, parameterType types.Type, body BuildingBlock, strategy Strategy) (*Computation, error) {
	if body == nil {
		return nil, fmt.Errorf("computation %q: body must not be nil", name)
	}
	if (parameterName == "") != (parameterType == nil) {
		return nil, fmt.Errorf("computation %q: parameter name %q and type %s must be both set or both absent",
			name, parameterName, types.Format(parameterType))
	}
	if !strategy.IsValid() {
		return nil, fmt.Errorf("computation %q: unknown strategy %q", name, string(strategy))
	}
	return &Computation{
		name:          name,
		parameterName: parameterName,
		typ:           types.Function(parameterType, body.Type()),
		body:          body,
		strategy:      strategy,
	}, nil
}

// Name returns the computation's name, possibly empty.
func (c *Computation) Name() string { return c.name }

// ParameterName returns the name the body uses for the parameter, or "".
func (c *Computation) ParameterName() string { return c.parameterName }

// Type returns (parameter -> result).
func (c *Computation) Type() *types.FunctionType { return c.typ }

// Body returns the traced tree.
func (c *Computation) Body() BuildingBlock { return c.body }

// Strategy returns the strategy that produced the computation.
func (c *Computation) Strategy() Strategy { return c.strategy }

// AsLambda returns a fresh Lambda over a clone of the body. This is the
// form embedded when a computation is invoked inside another trace.
func (c *Computation) AsLambda() *Lambda {
	return &Lambda{
		parameterName: c.parameterName,
		parameterType: c.typ.Parameter,
		result:        Clone(c.body),
		typ:           c.typ,
	}
}

func (c *Computation) String() string {
	return c.AsLambda().String()
}
