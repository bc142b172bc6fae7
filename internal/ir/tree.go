package ir

import (
	"bytes"

	"github.com/roach88/fedcomp/internal/types"
)

// Children returns the direct children of b in canonical order:
// Lambda result; Call function then argument; Block local values then
// result; Selection source; Struct elements. Leaves have no children.
func Children(b BuildingBlock) []BuildingBlock {
	switch n := b.(type) {
	case *Reference, *Intrinsic, *CompiledPayload, *Placement, *Data:
		return nil
	case *Lambda:
		return []BuildingBlock{n.result}
	case *Call:
		if n.argument == nil {
			return []BuildingBlock{n.function}
		}
		return []BuildingBlock{n.function, n.argument}
	case *Block:
		out := make([]BuildingBlock, 0, len(n.locals)+1)
		for _, l := range n.locals {
			out = append(out, l.Value)
		}
		return append(out, n.result)
	case *Selection:
		return []BuildingBlock{n.source}
	case *Struct:
		out := make([]BuildingBlock, len(n.elements))
		for i, e := range n.elements {
			out[i] = e.Value
		}
		return out
	default:
		panic("ir: unknown building block " + kindOf(b))
	}
}

// Clone returns a deep copy of b sharing no nodes with the original.
// Types are immutable and are shared.
func Clone(b BuildingBlock) BuildingBlock {
	switch n := b.(type) {
	case nil:
		return nil
	case *Reference:
		return &Reference{name: n.name, typ: n.typ}
	case *Lambda:
		return &Lambda{
			parameterName: n.parameterName,
			parameterType: n.parameterType,
			result:        Clone(n.result),
			typ:           n.typ,
		}
	case *Call:
		return &Call{function: Clone(n.function), argument: Clone(n.argument), typ: n.typ}
	case *Block:
		ls := make([]Binding, len(n.locals))
		for i, l := range n.locals {
			ls[i] = Binding{Name: l.Name, Value: Clone(l.Value)}
		}
		return &Block{locals: ls, result: Clone(n.result)}
	case *Selection:
		return &Selection{source: Clone(n.source), index: n.index, name: n.name, typ: n.typ}
	case *Struct:
		es := make([]Field, len(n.elements))
		for i, e := range n.elements {
			es[i] = Field{Name: e.Name, Value: Clone(e.Value)}
		}
		return &Struct{elements: es, typ: n.typ}
	case *Intrinsic:
		return &Intrinsic{uri: n.uri, typ: n.typ}
	case *CompiledPayload:
		return &CompiledPayload{blob: n.Blob(), typ: n.typ}
	case *Placement:
		return &Placement{literal: n.literal}
	case *Data:
		return &Data{uri: n.uri, typ: n.typ}
	default:
		panic("ir: unknown building block " + kindOf(b))
	}
}

// Equal reports whether a and b are structurally identical trees,
// including names and types.
func Equal(a, b BuildingBlock) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() || !types.Equal(a.Type(), b.Type()) {
		return false
	}

	switch x := a.(type) {
	case *Reference:
		return x.name == b.(*Reference).name
	case *Lambda:
		y := b.(*Lambda)
		return x.parameterName == y.parameterName && Equal(x.result, y.result)
	case *Call:
		y := b.(*Call)
		return Equal(x.function, y.function) && Equal(x.argument, y.argument)
	case *Block:
		y := b.(*Block)
		if len(x.locals) != len(y.locals) {
			return false
		}
		for i := range x.locals {
			if x.locals[i].Name != y.locals[i].Name || !Equal(x.locals[i].Value, y.locals[i].Value) {
				return false
			}
		}
		return Equal(x.result, y.result)
	case *Selection:
		y := b.(*Selection)
		return x.index == y.index && x.name == y.name && Equal(x.source, y.source)
	case *Struct:
		y := b.(*Struct)
		if len(x.elements) != len(y.elements) {
			return false
		}
		for i := range x.elements {
			if x.elements[i].Name != y.elements[i].Name || !Equal(x.elements[i].Value, y.elements[i].Value) {
				return false
			}
		}
		return true
	case *Intrinsic:
		return x.uri == b.(*Intrinsic).uri
	case *CompiledPayload:
		return bytes.Equal(x.blob, b.(*CompiledPayload).blob)
	case *Placement:
		return x.literal == b.(*Placement).literal
	case *Data:
		return x.uri == b.(*Data).uri
	default:
		panic("ir: unknown building block " + kindOf(a))
	}
}

// Size returns the number of nodes in the tree rooted at b.
func Size(b BuildingBlock) int {
	if b == nil {
		return 0
	}
	n := 1
	for _, c := range Children(b) {
		n += Size(c)
	}
	return n
}

func kindOf(b BuildingBlock) string {
	if b == nil {
		return "<nil>"
	}
	return string(b.Kind())
}
