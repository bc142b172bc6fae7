package wrapper

import (
	"errors"
	"strconv"

	"github.com/roach88/fedcomp/internal/ir"
	"github.com/roach88/fedcomp/internal/tracing"
	"github.com/roach88/fedcomp/internal/types"
)

// traceContext is the tracing.Context of one frame.
//
// trusted holds nodes the frame produced from already wrapped
// computations. Ingest does not descend into them: their contents were
// checked under the callee's own strategy.
type traceContext struct {
	rules   strategy
	trusted map[ir.BuildingBlock]struct{}
}

var _ tracing.Context = (*traceContext)(nil)

func newTraceContext(rules strategy) *traceContext {
	return &traceContext{rules: rules, trusted: make(map[ir.BuildingBlock]struct{})}
}

func (c *traceContext) Strategy() StrategyKind { return c.rules.kind() }

func (c *traceContext) Placeholder(name string, t types.Type) (ir.BuildingBlock, error) {
	if err := c.rules.checkType(t); err != nil {
		return nil, err
	}
	ref, err := ir.NewReference(name, t)
	if err != nil {
		return nil, tracing.NewTypeMismatchError("", err, "cannot materialize parameter %q", name)
	}
	return ref, nil
}

func (c *traceContext) Ingest(b ir.BuildingBlock) (ir.BuildingBlock, error) {
	return c.ingestAt(b, "")
}

func (c *traceContext) Lift(v any) (ir.BuildingBlock, error) {
	return c.lift(v, "")
}

func (c *traceContext) trust(b ir.BuildingBlock) ir.BuildingBlock {
	c.trusted[b] = struct{}{}
	return b
}

func (c *traceContext) ingestAt(b ir.BuildingBlock, path string) (ir.BuildingBlock, error) {
	if isNilNode(b) {
		return nil, tracing.NewTypeMismatchError(path, nil, "nil building block")
	}
	if err := c.check(b, path); err != nil {
		return nil, err
	}
	return b, nil
}

func (c *traceContext) check(b ir.BuildingBlock, path string) error {
	if _, ok := c.trusted[b]; ok {
		return nil
	}
	if err := c.rules.checkNode(b); err != nil {
		return atPath(err, path)
	}
	if b.Kind() == ir.KindCompiledPayload {
		return nil
	}
	for i, child := range ir.Children(b) {
		if err := c.check(child, path+"/"+strconv.Itoa(i)); err != nil {
			return err
		}
	}
	return nil
}

func atPath(err error, path string) error {
	var te *tracing.TraceError
	if path != "" && errors.As(err, &te) && te.Path == "" {
		te.Path = path
	}
	return err
}
