package policy

import (
	"fmt"
	"strings"

	"github.com/roach88/fedcomp/internal/analysis"
	"github.com/roach88/fedcomp/internal/ir"
)

// Facts is the Datalog rendering of one computation.
type Facts struct {
	// Source holds one fact per line.
	Source string

	// Paths maps node ids to their location in the computation body.
	Paths map[int64]analysis.Path
}

// ExportFacts renders c as Datalog facts:
//
//	computation(Name, /strategy).
//	node(Id, Parent, /kind, Label).
//	node_type(Id, Type).
//	local(BlockId, Name, ValueId).
//
// Ids number the body in pre-order from 1; the root's parent is 0. Label is
// the intrinsic or data URI, the reference or lambda parameter name, the
// placement literal, or "" for other kinds.
func ExportFacts(c *ir.Computation) (*Facts, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "computation(%s, /%s).\n", quote(c.Name()), c.Strategy())

	paths := make(map[int64]analysis.Path)
	ids := make(map[string]int64)
	var next int64

	err := analysis.Walk(c.Body(), nil, func(b ir.BuildingBlock, _ *analysis.Scope, p analysis.Path) error {
		next++
		id := next
		paths[id] = p
		ids[p.String()] = id

		var parent int64
		if len(p) > 0 {
			parent = ids[p[:len(p)-1].String()]
		}
		fmt.Fprintf(&sb, "node(%d, %d, /%s, %s).\n", id, parent, b.Kind(), quote(label(b)))
		fmt.Fprintf(&sb, "node_type(%d, %s).\n", id, quote(b.Type().String()))
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Block locals are emitted after all nodes so value ids are known.
	err = analysis.Walk(c.Body(), nil, func(b ir.BuildingBlock, _ *analysis.Scope, p analysis.Path) error {
		blk, ok := b.(*ir.Block)
		if !ok {
			return nil
		}
		id := ids[p.String()]
		for i, l := range blk.Locals() {
			valueID := ids[append(append(analysis.Path{}, p...), i).String()]
			fmt.Fprintf(&sb, "local(%d, %s, %d).\n", id, quote(l.Name), valueID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Facts{Source: sb.String(), Paths: paths}, nil
}

func label(b ir.BuildingBlock) string {
	switch n := b.(type) {
	case *ir.Intrinsic:
		return n.URI()
	case *ir.Data:
		return n.URI()
	case *ir.Reference:
		return n.Name()
	case *ir.Lambda:
		return n.ParameterName()
	case *ir.Placement:
		return string(n.Literal())
	case *ir.Selection:
		return n.Name()
	default:
		return ""
	}
}

// quote renders s as a Datalog string constant.
func quote(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
