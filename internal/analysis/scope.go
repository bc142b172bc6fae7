package analysis

import (
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/fedcomp/internal/ir"
	"github.com/roach88/fedcomp/internal/types"
)

// Path locates a node by the child indices leading to it from the root,
// in ir.Children order. The root's path is empty.
type Path []int

// String renders p as "/0/2". The root renders as "/".
func (p Path) String() string {
	if len(p) == 0 {
		return "/"
	}
	var sb strings.Builder
	for _, i := range p {
		sb.WriteByte('/')
		sb.WriteString(strconv.Itoa(i))
	}
	return sb.String()
}

func (p Path) child(i int) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = i
	return out
}

// BinderKind says what introduced a name.
type BinderKind string

const (
	BinderParameter BinderKind = "parameter"
	BinderLambda    BinderKind = "lambda"
	BinderLocal     BinderKind = "local"
)

// Binder is the definition a name resolves to.
type Binder struct {
	Kind BinderKind
	Name string
	Type types.Type

	// Value is the bound value of a Block local. Nil for parameters.
	Value ir.BuildingBlock

	// Path is where the binding node sits: the Lambda or Block that
	// introduced the name. Nil for a computation parameter.
	Path Path
}

// Scope is the set of names visible at a node. Inner bindings shadow
// outer ones. The zero value and nil are the empty scope.
type Scope struct {
	parent *Scope
	binder Binder
}

func (s *Scope) bind(b Binder) *Scope {
	return &Scope{parent: s, binder: b}
}

// Lookup returns the innermost binder for name.
func (s *Scope) Lookup(name string) (Binder, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.binder.Name == name && cur.binder.Kind != "" {
			return cur.binder, true
		}
	}
	return Binder{}, false
}

// Names returns the visible names, sorted.
func (s *Scope) Names() []string {
	seen := make(map[string]bool)
	for cur := s; cur != nil; cur = cur.parent {
		if cur.binder.Kind != "" {
			seen[cur.binder.Name] = true
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ParameterScope returns the scope a computation's body starts in.
func ParameterScope(c *ir.Computation) *Scope {
	var s *Scope
	if c.ParameterName() != "" {
		s = s.bind(Binder{Kind: BinderParameter, Name: c.ParameterName(), Type: c.Type().Parameter})
	}
	return s
}
