package compiler

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/fedcomp/internal/ir"
	"github.com/roach88/fedcomp/internal/payload"
	"github.com/roach88/fedcomp/internal/types"
)

// Node kinds accepted in a document, one per node struct.
var nodeKinds = []string{
	"reference", "data", "intrinsic", "placement", "struct", "selection",
	"call", "lambda", "block", "payload", "computation",
}

// CompileDocument compiles every computation under the document's
// `computation` field and returns them sorted by name.
//
//	computation: total: {
//		strategy:  "federated"
//		parameter: {name: "x", type: "{int32}@CLIENTS"}
//		body: call: {
//			function: intrinsic: {uri: "federated_sum", type: "({int32}@CLIENTS -> int32@SERVER)"}
//			argument: reference: "x"
//		}
//	}
//
// A `computation: "name"` node embeds another computation of the same
// document as a lambda; embedding cycles are a *CycleError.
func CompileDocument(v cue.Value) ([]*ir.Computation, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	root := v.LookupPath(cue.ParsePath("computation"))
	if !root.Exists() {
		return nil, &CompileError{
			Field:   "computation",
			Message: "at least one computation is required",
			Pos:     v.Pos(),
		}
	}
	iter, err := root.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	defs := make(map[string]cue.Value)
	for iter.Next() {
		defs[iter.Label()] = iter.Value()
	}
	if len(defs) == 0 {
		return nil, &CompileError{
			Field:   "computation",
			Message: "at least one computation is required",
			Pos:     root.Pos(),
		}
	}

	order, err := compileOrder(buildDependencyGraph(defs))
	if err != nil {
		return nil, err
	}

	c := &compiler{known: make(map[string]*ir.Computation, len(defs))}
	for _, name := range order {
		comp, err := c.computation(name, defs[name])
		if err != nil {
			return nil, err
		}
		c.known[name] = comp
	}

	out := make([]*ir.Computation, 0, len(c.known))
	for _, comp := range c.known {
		out = append(out, comp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

// CompileComputation compiles a single computation value; its name is the
// last path label. It cannot embed other computations.
//
//	v := ctx.CompileString(src)
//	c, err := CompileComputation(v.LookupPath(cue.ParsePath("computation.total")))
func CompileComputation(v cue.Value) (*ir.Computation, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	var name string
	if sels := v.Path().Selectors(); len(sels) > 0 {
		name = sels[len(sels)-1].Unquoted()
	}
	c := &compiler{known: map[string]*ir.Computation{}}
	return c.computation(name, v)
}

type compiler struct {
	known map[string]*ir.Computation
	// strategy of the computation being compiled
	strategy ir.Strategy
}

// scope holds the names visible to a node, innermost first.
type scope struct {
	name   string
	typ    types.Type
	parent *scope
}

func (s *scope) bind(name string, t types.Type) *scope {
	return &scope{name: name, typ: t, parent: s}
}

func (s *scope) lookup(name string) (types.Type, bool) {
	for ; s != nil; s = s.parent {
		if s.name == name {
			return s.typ, true
		}
	}
	return nil, false
}

func (c *compiler) computation(name string, v cue.Value) (*ir.Computation, error) {
	if !v.Exists() {
		return nil, &CompileError{Field: name, Message: "computation is not defined", Pos: v.Pos()}
	}

	strategy := ir.StrategyFederated
	if sv := v.LookupPath(cue.ParsePath("strategy")); sv.Exists() {
		s, err := sv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		strategy = ir.Strategy(s)
		if !strategy.IsValid() {
			return nil, &CompileError{
				Field:   name + ".strategy",
				Message: fmt.Sprintf("unknown strategy %q (want federated or local)", s),
				Pos:     sv.Pos(),
			}
		}
	}

	paramName, paramType, err := parameter(v, name)
	if err != nil {
		return nil, err
	}
	var sc *scope
	if paramType != nil {
		sc = sc.bind(paramName, paramType)
	}

	c.strategy = strategy
	bodyVal := v.LookupPath(cue.ParsePath("body"))
	if !bodyVal.Exists() {
		return nil, &CompileError{Field: name + ".body", Message: "body is required", Pos: v.Pos()}
	}
	body, err := c.node(bodyVal, sc, name+".body")
	if err != nil {
		return nil, err
	}

	comp, err := ir.NewComputation(name, paramName, paramType, body, strategy)
	if err != nil {
		return nil, &CompileError{Field: name, Message: err.Error(), Pos: v.Pos()}
	}
	return comp, nil
}

// parameter reads an optional {name, type} parameter of v.
func parameter(v cue.Value, field string) (string, types.Type, error) {
	pv := v.LookupPath(cue.ParsePath("parameter"))
	if !pv.Exists() {
		return "", nil, nil
	}
	field += ".parameter"
	name, err := requiredString(pv, "name", field)
	if err != nil {
		return "", nil, err
	}
	t, err := typeField(pv, "type", field)
	if err != nil {
		return "", nil, err
	}
	return name, t, nil
}

func (c *compiler) node(v cue.Value, sc *scope, field string) (ir.BuildingBlock, error) {
	if !v.Exists() {
		return nil, &CompileError{Field: field, Message: "node is required", Pos: v.Pos()}
	}
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "node must be a struct", Pos: v.Pos()}
	}
	var (
		kind  string
		inner cue.Value
		count int
	)
	for iter.Next() {
		kind, inner = iter.Label(), iter.Value()
		count++
	}
	if count != 1 {
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("node must have exactly one of %v, found %d fields", nodeKinds, count),
			Pos:     v.Pos(),
		}
	}
	field += "." + kind

	return c.build(kind, inner, sc, field)
}

func (c *compiler) build(kind string, v cue.Value, sc *scope, field string) (ir.BuildingBlock, error) {
	fail := func(err error) (ir.BuildingBlock, error) {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}

	switch kind {
	case "reference":
		name, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		t, ok := sc.lookup(name)
		if !ok {
			return nil, &CompileError{Field: field, Message: fmt.Sprintf("unbound reference %q", name), Pos: v.Pos()}
		}
		ref, err := ir.NewReference(name, t)
		if err != nil {
			return fail(err)
		}
		return ref, nil

	case "data", "intrinsic":
		uri, err := requiredString(v, "uri", field)
		if err != nil {
			return nil, err
		}
		t, err := typeField(v, "type", field)
		if err != nil {
			return nil, err
		}
		var b ir.BuildingBlock
		if kind == "data" {
			b, err = ir.NewData(uri, t)
		} else {
			b, err = ir.NewIntrinsic(uri, t)
		}
		if err != nil {
			return fail(err)
		}
		return b, nil

	case "placement":
		lit, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		p, err := ir.NewPlacement(types.Placement(lit))
		if err != nil {
			return fail(err)
		}
		return p, nil

	case "struct":
		return c.structNode(v, sc, field)

	case "selection":
		return c.selection(v, sc, field)

	case "call":
		fn, err := c.node(v.LookupPath(cue.ParsePath("function")), sc, field+".function")
		if err != nil {
			return nil, err
		}
		var arg ir.BuildingBlock
		if av := v.LookupPath(cue.ParsePath("argument")); av.Exists() {
			if arg, err = c.node(av, sc, field+".argument"); err != nil {
				return nil, err
			}
		}
		call, err := ir.NewCall(fn, arg)
		if err != nil {
			return fail(err)
		}
		return call, nil

	case "lambda":
		name, t, err := parameter(v, field)
		if err != nil {
			return nil, err
		}
		inner := sc
		if t != nil {
			inner = sc.bind(name, t)
		}
		body, err := c.node(v.LookupPath(cue.ParsePath("body")), inner, field+".body")
		if err != nil {
			return nil, err
		}
		lam, err := ir.NewLambda(name, t, body)
		if err != nil {
			return fail(err)
		}
		return lam, nil

	case "block":
		return c.block(v, sc, field)

	case "payload":
		p, err := payloadNode(v, field)
		if err != nil {
			return nil, err
		}
		if c.strategy != ir.StrategyLocal {
			return nil, &CompileError{
				Field:   field,
				Message: "compiled payload in a federated computation (embed a local computation instead)",
				Pos:     v.Pos(),
			}
		}
		return p, nil

	case "computation":
		name, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		comp, ok := c.known[name]
		if !ok {
			return nil, &CompileError{Field: field, Message: fmt.Sprintf("unknown computation %q", name), Pos: v.Pos()}
		}
		return comp.AsLambda(), nil

	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unknown node kind %q (want one of %v)", kind, nodeKinds),
			Pos:     v.Pos(),
		}
	}
}

func (c *compiler) structNode(v cue.Value, sc *scope, field string) (ir.BuildingBlock, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var fields []ir.Field
	for i := 0; iter.Next(); i++ {
		ev := iter.Value()
		elemField := fmt.Sprintf("%s[%d]", field, i)
		name, err := optionalString(ev, "name")
		if err != nil {
			return nil, err
		}
		value, err := c.node(ev.LookupPath(cue.ParsePath("value")), sc, elemField+".value")
		if err != nil {
			return nil, err
		}
		fields = append(fields, ir.Field{Name: name, Value: value})
	}
	st, err := ir.NewStruct(fields...)
	if err != nil {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return st, nil
}

func (c *compiler) selection(v cue.Value, sc *scope, field string) (ir.BuildingBlock, error) {
	src, err := c.node(v.LookupPath(cue.ParsePath("source")), sc, field+".source")
	if err != nil {
		return nil, err
	}

	iv := v.LookupPath(cue.ParsePath("index"))
	nv := v.LookupPath(cue.ParsePath("name"))
	var sel *ir.Selection
	switch {
	case iv.Exists() && nv.Exists():
		return nil, &CompileError{Field: field, Message: "selection takes index or name, not both", Pos: v.Pos()}
	case iv.Exists():
		i, ierr := iv.Int64()
		if ierr != nil {
			return nil, formatCUEError(ierr)
		}
		sel, err = ir.NewSelectionByIndex(src, int(i))
	case nv.Exists():
		name, serr := nv.String()
		if serr != nil {
			return nil, formatCUEError(serr)
		}
		sel, err = ir.NewSelectionByName(src, name)
	default:
		return nil, &CompileError{Field: field, Message: "selection requires index or name", Pos: v.Pos()}
	}
	if err != nil {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return sel, nil
}

// block compiles locals in order; each value sees the locals before it.
func (c *compiler) block(v cue.Value, sc *scope, field string) (ir.BuildingBlock, error) {
	var locals []ir.Binding
	if lv := v.LookupPath(cue.ParsePath("locals")); lv.Exists() {
		iter, err := lv.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for i := 0; iter.Next(); i++ {
			ev := iter.Value()
			localField := fmt.Sprintf("%s.locals[%d]", field, i)
			name, err := requiredString(ev, "name", localField)
			if err != nil {
				return nil, err
			}
			value, err := c.node(ev.LookupPath(cue.ParsePath("value")), sc, localField+".value")
			if err != nil {
				return nil, err
			}
			locals = append(locals, ir.Binding{Name: name, Value: value})
			sc = sc.bind(name, value.Type())
		}
	}
	result, err := c.node(v.LookupPath(cue.ParsePath("result")), sc, field+".result")
	if err != nil {
		return nil, err
	}
	blk, err := ir.NewBlock(locals, result)
	if err != nil {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return blk, nil
}

// payloadNode reads blob as CUE bytes or a base64 string. Without an
// explicit type the signature comes from the named wasm export.
func payloadNode(v cue.Value, field string) (ir.BuildingBlock, error) {
	bv := v.LookupPath(cue.ParsePath("blob"))
	if !bv.Exists() {
		return nil, &CompileError{Field: field + ".blob", Message: "blob is required", Pos: v.Pos()}
	}
	var blob []byte
	if bv.IncompleteKind() == cue.BytesKind {
		b, err := bv.Bytes()
		if err != nil {
			return nil, formatCUEError(err)
		}
		blob = b
	} else {
		s, err := bv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if blob, err = base64.StdEncoding.DecodeString(s); err != nil {
			return nil, &CompileError{Field: field + ".blob", Message: "invalid base64: " + err.Error(), Pos: bv.Pos()}
		}
	}

	if tv := v.LookupPath(cue.ParsePath("type")); tv.Exists() {
		t, err := typeField(v, "type", field)
		if err != nil {
			return nil, err
		}
		node, err := ir.NewCompiledPayload(blob, t)
		if err != nil {
			return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
		}
		return node, nil
	}

	export, err := requiredString(v, "export", field)
	if err != nil {
		return nil, &CompileError{Field: field, Message: "payload needs a type or an export", Pos: v.Pos()}
	}
	p, err := payload.FromWasm(context.Background(), blob, export)
	if err != nil {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	node, err := p.Node()
	if err != nil {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return node, nil
}

func requiredString(v cue.Value, key, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(key))
	if !fv.Exists() {
		return "", &CompileError{Field: field + "." + key, Message: key + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, key string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(key))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// typeField parses a compact type string such as "{int32}@CLIENTS".
func typeField(v cue.Value, key, field string) (types.Type, error) {
	s, err := requiredString(v, key, field)
	if err != nil {
		return nil, err
	}
	t, err := types.Parse(s)
	if err != nil {
		return nil, &CompileError{
			Field:   field + "." + key,
			Message: err.Error(),
			Pos:     v.LookupPath(cue.ParsePath(key)).Pos(),
		}
	}
	return t, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
