package wrapper

import (
	"errors"
	"strconv"

	"github.com/roach88/fedcomp/internal/ir"
	"github.com/roach88/fedcomp/internal/tracing"
	"github.com/roach88/fedcomp/internal/types"
)

// Tracer is the capability a callable uses to build IR while it is being
// traced. It is only valid while its frame is the innermost one on the
// stack; any use after the trace returns fails with NoActiveContext.
type Tracer struct {
	sess *session
	ctx  *traceContext
}

// Strategy returns the strategy of the trace this Tracer belongs to.
func (t *Tracer) Strategy() StrategyKind { return t.ctx.Strategy() }

// Depth returns the number of active frames, including this one.
func (t *Tracer) Depth() int { return t.sess.stack.Depth() }

// TraceID returns the log correlation id of the top-level trace.
func (t *Tracer) TraceID() string { return t.sess.traceID }

func (t *Tracer) active(op string) error {
	cur, err := t.sess.stack.Current()
	if err != nil {
		return tracing.NewNoActiveContextError(op)
	}
	if cur != tracing.Context(t.ctx) {
		return tracing.NewNoActiveContextError(op)
	}
	return nil
}

// Lift turns a host value into a node using the frame's lifting rules.
func (t *Tracer) Lift(v any) (ir.BuildingBlock, error) {
	if err := t.active("lift"); err != nil {
		return nil, err
	}
	return t.ctx.Lift(v)
}

// Intrinsic returns a reference to a built-in operation.
func (t *Tracer) Intrinsic(uri string, typ types.Type) (ir.BuildingBlock, error) {
	if err := t.active("intrinsic"); err != nil {
		return nil, err
	}
	node, err := ir.NewIntrinsic(uri, typ)
	if err != nil {
		return nil, mismatch(err, "intrinsic %q", uri)
	}
	return t.ctx.Ingest(node)
}

// Data returns a reference to an external data source.
func (t *Tracer) Data(uri string, typ types.Type) (ir.BuildingBlock, error) {
	if err := t.active("data"); err != nil {
		return nil, err
	}
	node, err := ir.NewData(uri, typ)
	if err != nil {
		return nil, mismatch(err, "data %q", uri)
	}
	return t.ctx.Ingest(node)
}

// Placement returns a placement literal.
func (t *Tracer) Placement(p types.Placement) (ir.BuildingBlock, error) {
	if err := t.active("placement"); err != nil {
		return nil, err
	}
	node, err := ir.NewPlacement(p)
	if err != nil {
		return nil, mismatch(err, "placement %q", p)
	}
	return t.ctx.Ingest(node)
}

// Apply calls fn with arg. arg is lifted first, so host values may be
// passed directly; a nil arg means no argument.
func (t *Tracer) Apply(fn ir.BuildingBlock, arg any) (ir.BuildingBlock, error) {
	if err := t.active("apply"); err != nil {
		return nil, err
	}
	f, err := t.ctx.Ingest(fn)
	if err != nil {
		return nil, err
	}
	a, err := t.argument(arg)
	if err != nil {
		return nil, err
	}
	call, err := ir.NewCall(f, a)
	if err != nil {
		return nil, mismatch(err, "apply %s", f)
	}
	return call, nil
}

// Call invokes an already wrapped computation. The computation is
// embedded in called form, so its own strategy governs its contents: a
// federated trace may call a local computation holding compiled payloads.
func (t *Tracer) Call(c *ir.Computation, arg any) (ir.BuildingBlock, error) {
	if err := t.active("call"); err != nil {
		return nil, err
	}
	if c == nil {
		return nil, tracing.NewTypeMismatchError("", nil, "call of nil computation")
	}
	if !t.ctx.rules.admitsCall(c) {
		return nil, tracing.NewStrategyViolationError(t.Strategy(), "",
			"cannot call %s computation %q", c.Strategy(), c.Name())
	}
	a, err := t.argument(arg)
	if err != nil {
		return nil, err
	}
	call, err := ir.NewCall(c.AsLambda(), a)
	if err != nil {
		return nil, mismatch(err, "call %q", c.Name())
	}
	return t.ctx.trust(call), nil
}

func (t *Tracer) argument(arg any) (ir.BuildingBlock, error) {
	if arg == nil {
		return nil, nil
	}
	return t.ctx.Lift(arg)
}

// Select projects element i of a struct-typed value.
func (t *Tracer) Select(src ir.BuildingBlock, i int) (ir.BuildingBlock, error) {
	if err := t.active("select"); err != nil {
		return nil, err
	}
	s, err := t.ctx.Ingest(src)
	if err != nil {
		return nil, err
	}
	sel, err := ir.NewSelectionByIndex(s, i)
	if err != nil {
		return nil, mismatch(err, "select [%d]", i)
	}
	return sel, nil
}

// SelectName projects the element called name of a struct-typed value.
func (t *Tracer) SelectName(src ir.BuildingBlock, name string) (ir.BuildingBlock, error) {
	if err := t.active("select"); err != nil {
		return nil, err
	}
	s, err := t.ctx.Ingest(src)
	if err != nil {
		return nil, err
	}
	sel, err := ir.NewSelectionByName(s, name)
	if err != nil {
		return nil, mismatch(err, "select .%s", name)
	}
	return sel, nil
}

// Struct builds a struct from fields whose values are lifted in order.
func (t *Tracer) Struct(fields ...ir.Field) (ir.BuildingBlock, error) {
	if err := t.active("struct"); err != nil {
		return nil, err
	}
	return t.ctx.liftFields(fields, "")
}

// Local binds value to a fresh name. It returns the binding, to be passed
// to Block, and a Reference usable in later bindings and the result.
func (t *Tracer) Local(value any) (ir.Binding, ir.BuildingBlock, error) {
	if err := t.active("local"); err != nil {
		return ir.Binding{}, nil, err
	}
	v, err := t.ctx.Lift(value)
	if err != nil {
		return ir.Binding{}, nil, err
	}
	name := t.sess.names.fresh()
	ref, err := ir.NewReference(name, v.Type())
	if err != nil {
		return ir.Binding{}, nil, mismatch(err, "local %s", name)
	}
	return ir.Binding{Name: name, Value: v}, ref, nil
}

// Block assembles a let-sequence.
func (t *Tracer) Block(locals []ir.Binding, result any) (ir.BuildingBlock, error) {
	if err := t.active("block"); err != nil {
		return nil, err
	}
	r, err := t.ctx.Lift(result)
	if err != nil {
		return nil, err
	}
	for i, l := range locals {
		if _, err := t.ctx.Ingest(l.Value); err != nil {
			return nil, atPath(err, "locals["+strconv.Itoa(i)+"]")
		}
	}
	b, err := ir.NewBlock(locals, r)
	if err != nil {
		return nil, mismatch(err, "block")
	}
	return b, nil
}

// Wrap traces fn as a nested computation in the same session. The nested
// trace must use this Tracer's strategy; mixing strategies is only
// possible by calling a computation wrapped separately. Unless
// WithParameterName is given the parameter gets a fresh generated name so
// it cannot shadow an enclosing parameter.
func (t *Tracer) Wrap(fn Callable, param types.Type, opts ...Option) (*ir.Computation, error) {
	if err := t.active("wrap"); err != nil {
		return nil, err
	}
	cfg := newConfig(opts)
	if cfg.paramName == "" {
		cfg.paramName = t.sess.names.fresh()
	}
	return trace(t.sess, fn, param, t.Strategy(), cfg)
}

// WrapAs is Wrap with an explicit strategy, which must match this
// Tracer's.
func (t *Tracer) WrapAs(fn Callable, param types.Type, kind StrategyKind, opts ...Option) (*ir.Computation, error) {
	if kind != t.Strategy() {
		return nil, tracing.NewStrategyViolationError(t.Strategy(), "",
			"cannot trace a %s computation inside this trace; wrap it separately and call it", kind)
	}
	return t.Wrap(fn, param, opts...)
}

func mismatch(err error, format string, args ...any) error {
	var te *tracing.TraceError
	if errors.As(err, &te) {
		return err
	}
	return tracing.NewTypeMismatchError("", err, format, args...)
}
