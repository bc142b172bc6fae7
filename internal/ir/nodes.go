package ir

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/fedcomp/internal/types"
)

// Kind identifies the variant of a BuildingBlock.
type Kind string

const (
	KindReference       Kind = "reference"
	KindLambda          Kind = "lambda"
	KindCall            Kind = "call"
	KindBlock           Kind = "block"
	KindSelection       Kind = "selection"
	KindStruct          Kind = "struct"
	KindIntrinsic       Kind = "intrinsic"
	KindCompiledPayload Kind = "compiled_payload"
	KindPlacement       Kind = "placement"
	KindData            Kind = "data"
)

// Kinds lists every building block kind in canonical order.
var Kinds = []Kind{
	KindReference, KindLambda, KindCall, KindBlock, KindSelection,
	KindStruct, KindIntrinsic, KindCompiledPayload, KindPlacement, KindData,
}

// BuildingBlock is a sealed interface over the IR node kinds.
// Only the node types in this package implement it. Every node carries
// its resolved type and is immutable after construction.
type BuildingBlock interface {
	Kind() Kind
	Type() types.Type
	String() string
	buildingBlock() // Sealed
}

// ConstructionError reports a node whose payload is internally inconsistent.
type ConstructionError struct {
	Kind    Kind
	Field   string
	Message string
}

func (e *ConstructionError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("construct %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("construct %s: %s: %s", e.Kind, e.Field, e.Message)
}

func constructionErr(kind Kind, field, format string, args ...any) error {
	return &ConstructionError{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Reference names a value bound by an enclosing Lambda or Block.
type Reference struct {
	name string
	typ  types.Type
}

// NewReference returns a reference to name of type t.
func NewReference(name string, t types.Type) (*Reference, error) {
	if name == "" {
		return nil, constructionErr(KindReference, "name", "must not be empty")
	}
	if t == nil {
		return nil, constructionErr(KindReference, "type", "must not be nil")
	}
	return &Reference{name: name, typ: t}, nil
}

func (*Reference) buildingBlock()     {}
func (*Reference) Kind() Kind         { return KindReference }
func (r *Reference) Type() types.Type { return r.typ }
func (r *Reference) Name() string     { return r.name }
func (r *Reference) String() string   { return r.name }

// Lambda is a function with at most one named parameter.
type Lambda struct {
	parameterName string
	parameterType types.Type
	result        BuildingBlock
	typ           *types.FunctionType
}

// NewLambda returns a lambda binding parameterName of parameterType in
// result. A lambda without parameter has an empty name and nil type.
func NewLambda(parameterName string, parameterType types.Type, result BuildingBlock) (*Lambda, error) {
	if result == nil {
		return nil, constructionErr(KindLambda, "result", "must not be nil")
	}
	if (parameterName == "") != (parameterType == nil) {
		return nil, constructionErr(KindLambda, "parameter",
			"name %q and type %s must be both set or both absent", parameterName, types.Format(parameterType))
	}
	return &Lambda{
		parameterName: parameterName,
		parameterType: parameterType,
		result:        result,
		typ:           types.Function(parameterType, result.Type()),
	}, nil
}

func (*Lambda) buildingBlock()                      {}
func (*Lambda) Kind() Kind                          { return KindLambda }
func (l *Lambda) Type() types.Type                  { return l.typ }
func (l *Lambda) FunctionType() *types.FunctionType { return l.typ }
func (l *Lambda) ParameterName() string             { return l.parameterName }
func (l *Lambda) ParameterType() types.Type         { return l.parameterType }
func (l *Lambda) Result() BuildingBlock             { return l.result }

func (l *Lambda) String() string {
	if l.parameterName == "" {
		return "( -> " + l.result.String() + ")"
	}
	return "(" + l.parameterName + " -> " + l.result.String() + ")"
}

// Call applies a function-typed node to an optional argument.
type Call struct {
	function BuildingBlock
	argument BuildingBlock
	typ      types.Type
}

// NewCall returns function applied to argument. argument must be nil
// exactly when the function takes no parameter.
func NewCall(function, argument BuildingBlock) (*Call, error) {
	if function == nil {
		return nil, constructionErr(KindCall, "function", "must not be nil")
	}
	ft, ok := function.Type().(*types.FunctionType)
	if !ok {
		return nil, constructionErr(KindCall, "function", "expected function type, got %s", types.Format(function.Type()))
	}
	switch {
	case ft.Parameter == nil && argument != nil:
		return nil, constructionErr(KindCall, "argument", "function %s takes no argument", ft)
	case ft.Parameter != nil && argument == nil:
		return nil, constructionErr(KindCall, "argument", "function %s requires an argument", ft)
	case argument != nil && !types.IsAssignable(argument.Type(), ft.Parameter):
		return nil, constructionErr(KindCall, "argument", "type %s is not assignable to %s",
			argument.Type(), ft.Parameter)
	}
	return &Call{function: function, argument: argument, typ: ft.Result}, nil
}

func (*Call) buildingBlock()            {}
func (*Call) Kind() Kind                { return KindCall }
func (c *Call) Type() types.Type        { return c.typ }
func (c *Call) Function() BuildingBlock { return c.function }

// Argument returns the call argument, or nil for a nullary call.
func (c *Call) Argument() BuildingBlock { return c.argument }

func (c *Call) String() string {
	if c.argument == nil {
		return c.function.String() + "()"
	}
	return c.function.String() + "(" + c.argument.String() + ")"
}

// Binding is one local of a Block.
type Binding struct {
	Name  string
	Value BuildingBlock
}

// Block evaluates locals in order, then result. Later locals may refer to
// earlier ones and shadow them.
type Block struct {
	locals []Binding
	result BuildingBlock
}

// NewBlock returns a block over locals and result.
func NewBlock(locals []Binding, result BuildingBlock) (*Block, error) {
	for i, b := range locals {
		if b.Name == "" {
			return nil, constructionErr(KindBlock, fmt.Sprintf("locals[%d].name", i), "must not be empty")
		}
		if b.Value == nil {
			return nil, constructionErr(KindBlock, fmt.Sprintf("locals[%d].value", i), "must not be nil")
		}
	}
	if result == nil {
		return nil, constructionErr(KindBlock, "result", "must not be nil")
	}
	ls := make([]Binding, len(locals))
	copy(ls, locals)
	return &Block{locals: ls, result: result}, nil
}

func (*Block) buildingBlock()          {}
func (*Block) Kind() Kind              { return KindBlock }
func (b *Block) Type() types.Type      { return b.result.Type() }
func (b *Block) Result() BuildingBlock { return b.result }

// Locals returns a copy of the block's bindings.
func (b *Block) Locals() []Binding {
	ls := make([]Binding, len(b.locals))
	copy(ls, b.locals)
	return ls
}

func (b *Block) String() string {
	var sb strings.Builder
	sb.WriteString("(let ")
	for i, l := range b.locals {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(l.Name)
		sb.WriteByte('=')
		sb.WriteString(l.Value.String())
	}
	sb.WriteString(" in ")
	sb.WriteString(b.result.String())
	sb.WriteByte(')')
	return sb.String()
}

// Selection picks one element of a struct-typed source.
type Selection struct {
	source BuildingBlock
	index  int
	name   string
	typ    types.Type
}

// NewSelectionByIndex selects the element at index.
func NewSelectionByIndex(source BuildingBlock, index int) (*Selection, error) {
	st, err := selectionSource(source)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= st.Len() {
		return nil, constructionErr(KindSelection, "index", "%d out of range for %s", index, st)
	}
	return &Selection{source: source, index: index, typ: st.At(index)}, nil
}

// NewSelectionByName selects the element named name.
func NewSelectionByName(source BuildingBlock, name string) (*Selection, error) {
	st, err := selectionSource(source)
	if err != nil {
		return nil, err
	}
	index, ok := st.Index(name)
	if !ok {
		return nil, constructionErr(KindSelection, "name", "%q not present in %s", name, st)
	}
	return &Selection{source: source, index: index, name: name, typ: st.At(index)}, nil
}

func selectionSource(source BuildingBlock) (*types.StructType, error) {
	if source == nil {
		return nil, constructionErr(KindSelection, "source", "must not be nil")
	}
	st, ok := source.Type().(*types.StructType)
	if !ok {
		return nil, constructionErr(KindSelection, "source", "expected struct type, got %s", types.Format(source.Type()))
	}
	return st, nil
}

func (*Selection) buildingBlock()          {}
func (*Selection) Kind() Kind              { return KindSelection }
func (s *Selection) Type() types.Type      { return s.typ }
func (s *Selection) Source() BuildingBlock { return s.source }
func (s *Selection) Index() int            { return s.index }

// Name returns the selected name, or "" for a selection by index.
func (s *Selection) Name() string { return s.name }

func (s *Selection) String() string {
	if s.name != "" {
		return s.source.String() + "." + s.name
	}
	return s.source.String() + "[" + strconv.Itoa(s.index) + "]"
}

// Field is one element of a Struct node. Name may be empty.
type Field struct {
	Name  string
	Value BuildingBlock
}

// Fields is an ordered list of struct elements. Lifting a Fields value
// keeps the given order.
type Fields []Field

// Struct is an ordered tuple of optionally named elements.
type Struct struct {
	elements []Field
	typ      *types.StructType
}

// NewStruct returns a struct over elements. Non-empty names must be unique.
func NewStruct(elements ...Field) (*Struct, error) {
	seen := make(map[string]bool, len(elements))
	tfs := make([]types.Field, len(elements))
	for i, e := range elements {
		if e.Value == nil {
			return nil, constructionErr(KindStruct, fmt.Sprintf("elements[%d]", i), "must not be nil")
		}
		if e.Name != "" {
			if seen[e.Name] {
				return nil, constructionErr(KindStruct, fmt.Sprintf("elements[%d]", i), "duplicate name %q", e.Name)
			}
			seen[e.Name] = true
		}
		tfs[i] = types.Field{Name: e.Name, Type: e.Value.Type()}
	}
	es := make([]Field, len(elements))
	copy(es, elements)
	return &Struct{elements: es, typ: &types.StructType{Fields: tfs}}, nil
}

func (*Struct) buildingBlock()     {}
func (*Struct) Kind() Kind         { return KindStruct }
func (s *Struct) Type() types.Type { return s.typ }
func (s *Struct) Len() int         { return len(s.elements) }
func (s *Struct) At(i int) Field   { return s.elements[i] }

// Elements returns a copy of the struct's elements.
func (s *Struct) Elements() []Field {
	es := make([]Field, len(s.elements))
	copy(es, s.elements)
	return es
}

func (s *Struct) String() string {
	var sb strings.Builder
	sb.WriteByte('<')
	for i, e := range s.elements {
		if i > 0 {
			sb.WriteByte(',')
		}
		if e.Name != "" {
			sb.WriteString(e.Name)
			sb.WriteByte('=')
		}
		sb.WriteString(e.Value.String())
	}
	sb.WriteByte('>')
	return sb.String()
}

// Intrinsic is a built-in operator identified by an opaque URI.
type Intrinsic struct {
	uri string
	typ types.Type
}

// NewIntrinsic returns the intrinsic uri at type t. The uri is not
// checked against any catalog.
func NewIntrinsic(uri string, t types.Type) (*Intrinsic, error) {
	if uri == "" {
		return nil, constructionErr(KindIntrinsic, "uri", "must not be empty")
	}
	if t == nil {
		return nil, constructionErr(KindIntrinsic, "type", "must not be nil")
	}
	return &Intrinsic{uri: uri, typ: t}, nil
}

func (*Intrinsic) buildingBlock()     {}
func (*Intrinsic) Kind() Kind         { return KindIntrinsic }
func (i *Intrinsic) Type() types.Type { return i.typ }
func (i *Intrinsic) URI() string      { return i.uri }
func (i *Intrinsic) String() string   { return i.uri }

// CompiledPayload wraps an opaque, locally executable function body.
type CompiledPayload struct {
	blob []byte
	typ  *types.FunctionType
}

// NewCompiledPayload returns a payload node. t must be a function type.
func NewCompiledPayload(blob []byte, t types.Type) (*CompiledPayload, error) {
	if len(blob) == 0 {
		return nil, constructionErr(KindCompiledPayload, "blob", "must not be empty")
	}
	ft, ok := t.(*types.FunctionType)
	if !ok {
		return nil, constructionErr(KindCompiledPayload, "type", "expected function type, got %s", types.Format(t))
	}
	b := make([]byte, len(blob))
	copy(b, blob)
	return &CompiledPayload{blob: b, typ: ft}, nil
}

func (*CompiledPayload) buildingBlock()                      {}
func (*CompiledPayload) Kind() Kind                          { return KindCompiledPayload }
func (p *CompiledPayload) Type() types.Type                  { return p.typ }
func (p *CompiledPayload) FunctionType() *types.FunctionType { return p.typ }

// Blob returns a copy of the payload bytes.
func (p *CompiledPayload) Blob() []byte {
	b := make([]byte, len(p.blob))
	copy(b, p.blob)
	return b
}

func (p *CompiledPayload) String() string {
	sum := sha256.Sum256(p.blob)
	return fmt.Sprintf("payload#%x", sum[:4])
}

// Placement is a placement literal such as CLIENTS.
type Placement struct {
	literal types.Placement
}

// NewPlacement returns the placement literal p.
func NewPlacement(p types.Placement) (*Placement, error) {
	if !p.IsValid() {
		return nil, constructionErr(KindPlacement, "literal", "unknown placement %q", string(p))
	}
	return &Placement{literal: p}, nil
}

func (*Placement) buildingBlock()             {}
func (*Placement) Kind() Kind                 { return KindPlacement }
func (*Placement) Type() types.Type           { return &types.PlacementType{} }
func (p *Placement) Literal() types.Placement { return p.literal }
func (p *Placement) String() string           { return string(p.literal) }

// Data is an externally supplied value identified by a content reference.
type Data struct {
	uri string
	typ types.Type
}

// NewData returns a data node for uri of type t.
func NewData(uri string, t types.Type) (*Data, error) {
	if uri == "" {
		return nil, constructionErr(KindData, "uri", "must not be empty")
	}
	if t == nil {
		return nil, constructionErr(KindData, "type", "must not be nil")
	}
	return &Data{uri: uri, typ: t}, nil
}

func (*Data) buildingBlock()     {}
func (*Data) Kind() Kind         { return KindData }
func (d *Data) Type() types.Type { return d.typ }
func (d *Data) URI() string      { return d.uri }
func (d *Data) String() string   { return d.uri }
