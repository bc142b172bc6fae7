package analysis

import (
	"fmt"
	"sort"

	"github.com/roach88/fedcomp/internal/ir"
	"github.com/roach88/fedcomp/internal/types"
)

// ResolveReference returns the binder of the Reference at p, looked up in
// the scope the walk reaches it with. ok is false for a free reference.
func ResolveReference(tree ir.BuildingBlock, scope *Scope, p Path) (Binder, bool, error) {
	target, err := NodeAt(tree, p)
	if err != nil {
		return Binder{}, false, err
	}
	ref, isRef := target.(*ir.Reference)
	if !isRef {
		return Binder{}, false, fmt.Errorf("path %s: %s is not a reference", p, target.Kind())
	}

	var (
		binder Binder
		found  bool
	)
	want := p.String()
	err = Walk(tree, scope, func(_ ir.BuildingBlock, s *Scope, at Path) error {
		if len(at) > len(p) {
			return SkipChildren
		}
		if at.String() == want {
			binder, found = s.Lookup(ref.Name())
			return SkipAll
		}
		if !isPrefix(at, p) {
			return SkipChildren
		}
		return nil
	})
	return binder, found, err
}

func isPrefix(prefix, p Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if prefix[i] != p[i] {
			return false
		}
	}
	return true
}

// FreeReferences returns the sorted distinct names referenced in tree but
// bound neither in tree nor in scope.
func FreeReferences(tree ir.BuildingBlock, scope *Scope) []string {
	free := make(map[string]bool)
	_ = Walk(tree, scope, func(b ir.BuildingBlock, s *Scope, _ Path) error {
		if ref, ok := b.(*ir.Reference); ok {
			if _, bound := s.Lookup(ref.Name()); !bound {
				free[ref.Name()] = true
			}
		}
		return nil
	})
	out := make([]string, 0, len(free))
	for n := range free {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ScopeError reports a reference that is free or whose type disagrees with
// its binder.
type ScopeError struct {
	Name    string
	Path    Path
	Message string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("reference %q at %s: %s", e.Name, e.Path, e.Message)
}

// CheckScoping verifies that every reference in c's body resolves to the
// parameter, an enclosing lambda or an earlier block local, with an equal
// type. It returns the first *ScopeError in pre-order.
func CheckScoping(c *ir.Computation) error {
	return WalkComputation(c, func(b ir.BuildingBlock, s *Scope, p Path) error {
		ref, ok := b.(*ir.Reference)
		if !ok {
			return nil
		}
		binder, bound := s.Lookup(ref.Name())
		if !bound {
			return &ScopeError{Name: ref.Name(), Path: p, Message: "unbound"}
		}
		if !types.Equal(binder.Type, ref.Type()) {
			return &ScopeError{
				Name:    ref.Name(),
				Path:    p,
				Message: fmt.Sprintf("has type %s but %s %q has type %s", ref.Type(), binder.Kind, binder.Name, binder.Type),
			}
		}
		return nil
	})
}
