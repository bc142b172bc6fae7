package analysis

import (
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/fedcomp/internal/ir"
)

// SkipChildren returned by a WalkFunc skips the node's children.
var SkipChildren = errors.New("skip children")

// SkipAll returned by a WalkFunc stops the walk without error.
var SkipAll = errors.New("skip all")

// WalkFunc is called for every node in pre-order with the names visible at
// the node and its path. Returning SkipChildren or SkipAll steers the walk;
// any other error aborts it and is returned by Walk.
type WalkFunc func(node ir.BuildingBlock, scope *Scope, path Path) error

// Walk visits every node of tree exactly once in pre-order, starting with
// scope. Lambda parameters scope over the lambda result. Each Block local
// scopes over later locals and the result, shadowing outer bindings of the
// same name. CompiledPayload leaves are visited but their contents are
// opaque.
func Walk(tree ir.BuildingBlock, scope *Scope, fn WalkFunc) error {
	if tree == nil {
		return nil
	}
	err := walk(tree, scope, nil, fn)
	if errors.Is(err, SkipAll) {
		return nil
	}
	return err
}

// WalkComputation walks c's body in the scope of its parameter.
func WalkComputation(c *ir.Computation, fn WalkFunc) error {
	return Walk(c.Body(), ParameterScope(c), fn)
}

func walk(node ir.BuildingBlock, scope *Scope, path Path, fn WalkFunc) error {
	if err := fn(node, scope, path); err != nil {
		if errors.Is(err, SkipChildren) {
			return nil
		}
		return err
	}

	switch n := node.(type) {
	case *ir.Reference, *ir.Intrinsic, *ir.CompiledPayload, *ir.Placement, *ir.Data:
		return nil
	case *ir.Lambda:
		inner := scope
		if n.ParameterName() != "" {
			inner = scope.bind(Binder{
				Kind: BinderLambda,
				Name: n.ParameterName(),
				Type: n.ParameterType(),
				Path: path,
			})
		}
		return walk(n.Result(), inner, path.child(0), fn)
	case *ir.Block:
		inner := scope
		locals := n.Locals()
		for i, l := range locals {
			if err := walk(l.Value, inner, path.child(i), fn); err != nil {
				return err
			}
			inner = inner.bind(Binder{
				Kind:  BinderLocal,
				Name:  l.Name,
				Type:  l.Value.Type(),
				Value: l.Value,
				Path:  path,
			})
		}
		return walk(n.Result(), inner, path.child(len(locals)), fn)
	case *ir.Call, *ir.Selection, *ir.Struct:
		for i, child := range ir.Children(n) {
			if err := walk(child, scope, path.child(i), fn); err != nil {
				return err
			}
		}
		return nil
	default:
		panic(fmt.Sprintf("analysis: unknown building block %T", node))
	}
}

// Predicate selects nodes.
type Predicate func(ir.BuildingBlock) bool

// Any matches every node.
func Any(ir.BuildingBlock) bool { return true }

// OfKind matches nodes of kind k.
func OfKind(k ir.Kind) Predicate {
	return func(b ir.BuildingBlock) bool { return b.Kind() == k }
}

// IntrinsicIn matches Intrinsic nodes whose URI is one of uris.
func IntrinsicIn(uris ...string) Predicate {
	set := make(map[string]bool, len(uris))
	for _, u := range uris {
		set[u] = true
	}
	return func(b ir.BuildingBlock) bool {
		in, ok := b.(*ir.Intrinsic)
		return ok && set[in.URI()]
	}
}

// ContainsKind reports whether some node of tree satisfies pred.
func ContainsKind(tree ir.BuildingBlock, pred Predicate) bool {
	_, found := Find(tree, pred)
	return found
}

// Find returns the path of the first node, in pre-order, satisfying pred.
func Find(tree ir.BuildingBlock, pred Predicate) (Path, bool) {
	var at Path
	found := false
	_ = Walk(tree, nil, func(n ir.BuildingBlock, _ *Scope, p Path) error {
		if pred(n) {
			at, found = p, true
			return SkipAll
		}
		return nil
	})
	return at, found
}

// Count returns the number of nodes of tree satisfying pred.
func Count(tree ir.BuildingBlock, pred Predicate) int {
	n := 0
	_ = Walk(tree, nil, func(b ir.BuildingBlock, _ *Scope, _ Path) error {
		if pred(b) {
			n++
		}
		return nil
	})
	return n
}

// CollectIntrinsicURIs returns the distinct URIs of all Intrinsic nodes in
// tree, sorted.
func CollectIntrinsicURIs(tree ir.BuildingBlock) []string {
	seen := make(map[string]bool)
	_ = Walk(tree, nil, func(b ir.BuildingBlock, _ *Scope, _ Path) error {
		if in, ok := b.(*ir.Intrinsic); ok {
			seen[in.URI()] = true
		}
		return nil
	})
	out := make([]string, 0, len(seen))
	for uri := range seen {
		out = append(out, uri)
	}
	sort.Strings(out)
	return out
}

// FindIntrinsic returns the first Intrinsic node, in pre-order, whose URI
// is one of uris.
func FindIntrinsic(tree ir.BuildingBlock, uris []string) (string, Path, bool) {
	if len(uris) == 0 {
		return "", nil, false
	}
	p, ok := Find(tree, IntrinsicIn(uris...))
	if !ok {
		return "", nil, false
	}
	node, err := NodeAt(tree, p)
	if err != nil {
		return "", nil, false
	}
	return node.(*ir.Intrinsic).URI(), p, true
}

// NodeAt returns the node of tree at p.
func NodeAt(tree ir.BuildingBlock, p Path) (ir.BuildingBlock, error) {
	cur := tree
	for depth, i := range p {
		children := ir.Children(cur)
		if i < 0 || i >= len(children) {
			return nil, fmt.Errorf("path %s: %s node at %s has no child %d", p, cur.Kind(), p[:depth], i)
		}
		cur = children[i]
	}
	return cur, nil
}
