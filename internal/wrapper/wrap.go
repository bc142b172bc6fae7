package wrapper

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/fedcomp/internal/analysis"
	"github.com/roach88/fedcomp/internal/ir"
	"github.com/roach88/fedcomp/internal/tracing"
	"github.com/roach88/fedcomp/internal/types"
)

// session is the state shared by a top-level trace and every trace nested
// inside it.
type session struct {
	stack   *tracing.Stack
	names   *nameGenerator
	traceID string
	log     *zap.Logger
}

// Wrap traces fn once and returns the resulting computation.
//
// param is the declared parameter type, or nil for a nullary callable.
// The callable receives a Reference placeholder for the parameter and
// returns a host value that kind's lifting rules turn into the body. The
// computation's type is (param -> inferred result type).
//
// Wrap owns a fresh context stack for the duration of the call, so
// concurrent Wraps never share state. On any failure the stack is unwound
// and no partial computation is returned.
func Wrap(fn Callable, param types.Type, kind StrategyKind, opts ...Option) (*ir.Computation, error) {
	cfg := newConfig(opts)
	if cfg.paramName == "" {
		cfg.paramName = DefaultParameterName
	}
	sess := &session{
		stack:   tracing.NewStack(),
		names:   &nameGenerator{},
		traceID: cfg.ids.Generate(),
		log:     cfg.logger,
	}
	return trace(sess, fn, param, kind, cfg)
}

// WrapFunc is FromFunc followed by Wrap.
func WrapFunc(fn any, param types.Type, kind StrategyKind, opts ...Option) (*ir.Computation, error) {
	c, err := FromFunc(fn)
	if err != nil {
		return nil, err
	}
	return Wrap(c, param, kind, opts...)
}

func trace(sess *session, fn Callable, param types.Type, kind StrategyKind, cfg *config) (*ir.Computation, error) {
	log := sess.log.With(
		zap.String("trace_id", sess.traceID),
		zap.String("strategy", string(kind)),
		zap.String("name", cfg.name),
		zap.Int("depth", sess.stack.Depth()),
	)

	topLevel := sess.stack.Depth() == 0
	comp, err := traceFrame(sess, fn, param, kind, cfg)
	if err == nil && topLevel {
		err = checkClosed(comp)
	}
	if err != nil {
		log.Warn("trace failed", zap.Error(err))
		return nil, err
	}
	log.Debug("trace finished",
		zap.String("type", comp.Type().String()),
		zap.Int("nodes", ir.Size(comp.Body())))
	return comp, nil
}

func traceFrame(sess *session, fn Callable, param types.Type, kind StrategyKind, cfg *config) (*ir.Computation, error) {
	rules, err := strategyFor(kind)
	if err != nil {
		return nil, err
	}
	if fn.IsZero() {
		return nil, tracing.NewArityError("empty callable")
	}
	switch {
	case param != nil && fn.Arity() == 0:
		return nil, tracing.NewArityError("parameter %s declared but the callable takes none", param)
	case param == nil && fn.Arity() == 1:
		return nil, tracing.NewArityError("callable takes a parameter but none was declared")
	}

	paramName := ""
	if param != nil {
		paramName = cfg.paramName
	}

	ctx := newTraceContext(rules)
	var body ir.BuildingBlock
	err = sess.stack.Scoped(ctx, func(tracing.Context) error {
		var placeholder ir.BuildingBlock
		if param != nil {
			p, err := ctx.Placeholder(paramName, param)
			if err != nil {
				return err
			}
			placeholder = p
		}

		tracer := &Tracer{sess: sess, ctx: ctx}
		value, err := invoke(fn, tracer, placeholder)
		if err != nil {
			var te *tracing.TraceError
			if errors.As(err, &te) {
				return err
			}
			return tracing.NewUntracedError(err)
		}

		b, err := ctx.Lift(value)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The computation owns every node of its tree, even when the callable
	// returned one block twice or another computation's body.
	comp, err := ir.NewComputation(cfg.name, paramName, param, ir.Clone(body), kind)
	if err != nil {
		return nil, tracing.NewTypeMismatchError("", err, "cannot assemble computation")
	}
	if err := rules.checkType(comp.Type()); err != nil {
		return nil, err
	}
	return comp, nil
}

// checkClosed rejects a finished top-level trace with a reference that is
// unbound or typed differently from its binder. Nested traces are exempt
// since they may close over names of the enclosing trace.
func checkClosed(c *ir.Computation) error {
	err := analysis.CheckScoping(c)
	if err == nil {
		return nil
	}
	var se *analysis.ScopeError
	if errors.As(err, &se) {
		return tracing.NewTypeMismatchError(se.Path.String(), err, "computation is not closed")
	}
	return tracing.NewTypeMismatchError("", err, "computation is not closed")
}

// Compose wraps a federated computation that calls each of fns in order,
// feeding each result to the next. It is a convenience over Tracer.Call.
func Compose(name string, fns ...*ir.Computation) (*ir.Computation, error) {
	if len(fns) == 0 {
		return nil, tracing.NewArityError("compose needs at least one computation")
	}
	first := fns[0]
	if first.Type().Parameter == nil {
		return nil, tracing.NewArityError("compose: first computation %q takes no parameter", first.Name())
	}

	return Wrap(Unary(func(t *Tracer, arg ir.BuildingBlock) (any, error) {
		cur := arg
		for i, f := range fns {
			next, err := t.Call(f, cur)
			if err != nil {
				return nil, fmt.Errorf("compose step %d (%s): %w", i, f.Name(), err)
			}
			cur = next
		}
		return cur, nil
	}), first.Type().Parameter, StrategyFederated, WithName(name))
}
