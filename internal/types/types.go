package types

import (
	"strconv"
	"strings"
)

// Kind identifies the variant of a Type.
type Kind string

const (
	KindTensor    Kind = "tensor"
	KindSequence  Kind = "sequence"
	KindStruct    Kind = "struct"
	KindFunction  Kind = "function"
	KindPlacement Kind = "placement"
	KindFederated Kind = "federated"
)

// Type is a sealed interface over the computation type grammar.
// Only the types in this package implement it.
type Type interface {
	Kind() Kind
	String() string
	computationType() // Sealed
}

// DType is the element type of a tensor.
type DType string

const (
	Bool    DType = "bool"
	Int8    DType = "int8"
	Int16   DType = "int16"
	Int32   DType = "int32"
	Int64   DType = "int64"
	Uint8   DType = "uint8"
	Uint16  DType = "uint16"
	Uint32  DType = "uint32"
	Uint64  DType = "uint64"
	Float16 DType = "float16"
	Float32 DType = "float32"
	Float64 DType = "float64"
	String  DType = "string"
)

var validDTypes = map[DType]bool{
	Bool: true, Int8: true, Int16: true, Int32: true, Int64: true,
	Uint8: true, Uint16: true, Uint32: true, Uint64: true,
	Float16: true, Float32: true, Float64: true, String: true,
}

// IsValid reports whether d is a known element type.
func (d DType) IsValid() bool {
	return validDTypes[d]
}

// UnknownDim marks a tensor dimension whose size is not known statically.
const UnknownDim = -1

// TensorType is a dense tensor of DType with an optional static shape.
// A nil Shape with UnknownRank false is a scalar.
type TensorType struct {
	DType       DType
	Shape       []int
	UnknownRank bool
}

// Tensor returns a tensor type with the given dimensions (none for a scalar).
func Tensor(dtype DType, shape ...int) *TensorType {
	var dims []int
	if len(shape) > 0 {
		dims = append(dims, shape...)
	}
	return &TensorType{DType: dtype, Shape: dims}
}

// TensorOfUnknownRank returns a tensor type whose rank is not known.
func TensorOfUnknownRank(dtype DType) *TensorType {
	return &TensorType{DType: dtype, UnknownRank: true}
}

func (*TensorType) computationType() {}

// Kind implements Type.
func (*TensorType) Kind() Kind { return KindTensor }

func (t *TensorType) String() string {
	if t.UnknownRank {
		return string(t.DType) + "[*]"
	}
	if len(t.Shape) == 0 {
		return string(t.DType)
	}
	dims := make([]string, len(t.Shape))
	for i, d := range t.Shape {
		if d == UnknownDim {
			dims[i] = "?"
		} else {
			dims[i] = strconv.Itoa(d)
		}
	}
	return string(t.DType) + "[" + strings.Join(dims, ",") + "]"
}

// SequenceType is a sequence (data set) of elements of a single type.
type SequenceType struct {
	Element Type
}

// Sequence returns a sequence type.
func Sequence(element Type) *SequenceType {
	return &SequenceType{Element: element}
}

func (*SequenceType) computationType() {}

// Kind implements Type.
func (*SequenceType) Kind() Kind { return KindSequence }

func (t *SequenceType) String() string {
	return typeString(t.Element) + "*"
}

// Field is one element of a StructType. Name may be empty.
type Field struct {
	Name string
	Type Type
}

// F is shorthand for a named Field.
func F(name string, t Type) Field {
	return Field{Name: name, Type: t}
}

// StructType is an ordered collection of optionally named fields.
// Field order is significant for equality and serialization.
type StructType struct {
	Fields []Field
}

// Struct returns a struct type over the given fields.
func Struct(fields ...Field) *StructType {
	fs := make([]Field, len(fields))
	copy(fs, fields)
	return &StructType{Fields: fs}
}

// Unnamed returns a struct type with unnamed fields.
func Unnamed(elements ...Type) *StructType {
	fs := make([]Field, len(elements))
	for i, e := range elements {
		fs[i] = Field{Type: e}
	}
	return &StructType{Fields: fs}
}

func (*StructType) computationType() {}

// Kind implements Type.
func (*StructType) Kind() Kind { return KindStruct }

// Len returns the number of fields.
func (t *StructType) Len() int { return len(t.Fields) }

// At returns the type of the i-th field.
func (t *StructType) At(i int) Type { return t.Fields[i].Type }

// Index returns the position of the field with the given name.
func (t *StructType) Index(name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	for i, f := range t.Fields {
		if f.Name == name {
			return i, true
		}
	}
	return 0, false
}

func (t *StructType) String() string {
	var b strings.Builder
	b.WriteByte('<')
	for i, f := range t.Fields {
		if i > 0 {
			b.WriteByte(',')
		}
		if f.Name != "" {
			b.WriteString(f.Name)
			b.WriteByte('=')
		}
		b.WriteString(typeString(f.Type))
	}
	b.WriteByte('>')
	return b.String()
}

// FunctionType is the type of a computation. Parameter is nil for
// functions that take no argument.
type FunctionType struct {
	Parameter Type
	Result    Type
}

// Function returns a function type.
func Function(parameter, result Type) *FunctionType {
	return &FunctionType{Parameter: parameter, Result: result}
}

func (*FunctionType) computationType() {}

// Kind implements Type.
func (*FunctionType) Kind() Kind { return KindFunction }

func (t *FunctionType) String() string {
	if t.Parameter == nil {
		return "( -> " + typeString(t.Result) + ")"
	}
	return "(" + typeString(t.Parameter) + " -> " + typeString(t.Result) + ")"
}

// PlacementType is the type of placement literals.
type PlacementType struct{}

func (*PlacementType) computationType() {}

// Kind implements Type.
func (*PlacementType) Kind() Kind { return KindPlacement }

func (*PlacementType) String() string { return "placement" }

// Placement names a group of computation participants.
type Placement string

const (
	Server  Placement = "SERVER"
	Clients Placement = "CLIENTS"
)

// IsValid reports whether p is a known placement literal.
func (p Placement) IsValid() bool {
	return p == Server || p == Clients
}

// FederatedType is a member type placed at a group of participants.
// AllEqual records that every participant holds the same value.
type FederatedType struct {
	Member    Type
	Placement Placement
	AllEqual  bool
}

// AtServer returns member placed at the server (all-equal).
func AtServer(member Type) *FederatedType {
	return &FederatedType{Member: member, Placement: Server, AllEqual: true}
}

// AtClients returns member placed at the clients (not all-equal).
func AtClients(member Type) *FederatedType {
	return &FederatedType{Member: member, Placement: Clients}
}

func (*FederatedType) computationType() {}

// Kind implements Type.
func (*FederatedType) Kind() Kind { return KindFederated }

func (t *FederatedType) String() string {
	if t.AllEqual {
		return typeString(t.Member) + "@" + string(t.Placement)
	}
	return "{" + typeString(t.Member) + "}@" + string(t.Placement)
}

// typeString renders a possibly nil type.
func typeString(t Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// Format renders t, tolerating nil.
func Format(t Type) string {
	if t == nil {
		return ""
	}
	return t.String()
}
