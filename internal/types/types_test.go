package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeString(t *testing.T) {
	tests := []struct {
		name     string
		typ      Type
		expected string
	}{
		{"scalar", Tensor(Int32), "int32"},
		{"vector", Tensor(Float32, 3), "float32[3]"},
		{"unknown dim", Tensor(Float32, 2, UnknownDim), "float32[2,?]"},
		{"unknown rank", TensorOfUnknownRank(Int64), "int64[*]"},
		{"sequence", Sequence(Tensor(Int32)), "int32*"},
		{"named struct", Struct(F("a", Tensor(Int32)), F("b", Tensor(Bool))), "<a=int32,b=bool>"},
		{"mixed struct", Struct(F("a", Tensor(Int32)), Field{Type: Tensor(Float32)}), "<a=int32,float32>"},
		{"empty struct", Struct(), "<>"},
		{"function", Function(Tensor(Int32), Tensor(Bool)), "(int32 -> bool)"},
		{"nullary function", Function(nil, Tensor(Int32)), "( -> int32)"},
		{"placement", &PlacementType{}, "placement"},
		{"at server", AtServer(Tensor(Float32)), "float32@SERVER"},
		{"at clients", AtClients(Tensor(Float32)), "{float32}@CLIENTS"},
		{
			"federated function",
			Function(AtClients(Tensor(Int32)), AtServer(Tensor(Int32))),
			"({int32}@CLIENTS -> int32@SERVER)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.typ.String())
		})
	}
}

func TestFormatNil(t *testing.T) {
	assert.Equal(t, "", Format(nil))
	assert.Equal(t, "int32", Format(Tensor(Int32)))
}

func TestStructIndex(t *testing.T) {
	st := Struct(F("a", Tensor(Int32)), Field{Type: Tensor(Bool)}, F("c", Tensor(Float32)))

	i, ok := st.Index("c")
	assert.True(t, ok)
	assert.Equal(t, 2, i)

	_, ok = st.Index("missing")
	assert.False(t, ok)

	_, ok = st.Index("")
	assert.False(t, ok, "unnamed fields are not addressable by name")

	assert.Equal(t, 3, st.Len())
	assert.Equal(t, Tensor(Bool), st.At(1))
}

func TestStructCopiesFields(t *testing.T) {
	fields := []Field{F("a", Tensor(Int32))}
	st := Struct(fields...)
	fields[0].Name = "mutated"

	assert.Equal(t, "a", st.Fields[0].Name)
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Type
		want bool
	}{
		{"nil nil", nil, nil, true},
		{"nil vs tensor", nil, Tensor(Int32), false},
		{"same scalar", Tensor(Int32), Tensor(Int32), true},
		{"different dtype", Tensor(Int32), Tensor(Int64), false},
		{"different shape", Tensor(Int32, 2), Tensor(Int32, 3), false},
		{"scalar vs rank1", Tensor(Int32), Tensor(Int32, 1), false},
		{"unknown rank", TensorOfUnknownRank(Int32), TensorOfUnknownRank(Int32), true},
		{"unknown rank vs scalar", TensorOfUnknownRank(Int32), Tensor(Int32), false},
		{"sequence", Sequence(Tensor(Int32)), Sequence(Tensor(Int32)), true},
		{"struct names matter", Struct(F("a", Tensor(Int32))), Struct(F("b", Tensor(Int32))), false},
		{"struct order matters",
			Unnamed(Tensor(Int32), Tensor(Bool)),
			Unnamed(Tensor(Bool), Tensor(Int32)), false},
		{"function", Function(nil, Tensor(Int32)), Function(nil, Tensor(Int32)), true},
		{"function param", Function(Tensor(Int32), Tensor(Int32)), Function(nil, Tensor(Int32)), false},
		{"placement", &PlacementType{}, &PlacementType{}, true},
		{"federated", AtClients(Tensor(Int32)), AtClients(Tensor(Int32)), true},
		{"federated placement", AtClients(Tensor(Int32)), &FederatedType{Member: Tensor(Int32), Placement: Server}, false},
		{"federated all equal", AtServer(Tensor(Int32)), &FederatedType{Member: Tensor(Int32), Placement: Server}, false},
		{"kind mismatch", Sequence(Tensor(Int32)), Tensor(Int32), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
			assert.Equal(t, tt.want, Equal(tt.b, tt.a), "Equal must be symmetric")
		})
	}
}

func TestIsAssignable(t *testing.T) {
	tests := []struct {
		name         string
		value, param Type
		want         bool
	}{
		{"equal", Tensor(Int32), Tensor(Int32), true},
		{"unknown dim on param", Tensor(Float32, 4), Tensor(Float32, UnknownDim), true},
		{"unknown dim on value", Tensor(Float32, UnknownDim), Tensor(Float32, 4), false},
		{"unknown rank on param", Tensor(Float32, 2, 3), TensorOfUnknownRank(Float32), true},
		{"unknown rank on value", TensorOfUnknownRank(Float32), Tensor(Float32), false},
		{"dtype mismatch", Tensor(Int32), Tensor(Float32), false},
		{"sequence element", Sequence(Tensor(Int32, 2)), Sequence(Tensor(Int32, UnknownDim)), true},
		{"struct unnamed param", Struct(F("a", Tensor(Int32))), Unnamed(Tensor(Int32)), true},
		{"struct named param", Unnamed(Tensor(Int32)), Struct(F("a", Tensor(Int32))), false},
		{"struct name mismatch", Struct(F("b", Tensor(Int32))), Struct(F("a", Tensor(Int32))), false},
		{"struct length", Unnamed(Tensor(Int32)), Unnamed(Tensor(Int32), Tensor(Int32)), false},
		{"all-equal feeds non-all-equal",
			AtServer(Tensor(Int32)),
			&FederatedType{Member: Tensor(Int32), Placement: Server}, true},
		{"non-all-equal cannot feed all-equal",
			&FederatedType{Member: Tensor(Int32), Placement: Server},
			AtServer(Tensor(Int32)), false},
		{"placement mismatch", AtClients(Tensor(Int32)), &FederatedType{Member: Tensor(Int32), Placement: Server}, false},
		{"function contravariant param",
			Function(Tensor(Int32, UnknownDim), Tensor(Int32)),
			Function(Tensor(Int32, 3), Tensor(Int32)), true},
		{"function param not contravariant",
			Function(Tensor(Int32, 3), Tensor(Int32)),
			Function(Tensor(Int32, UnknownDim), Tensor(Int32)), false},
		{"function covariant result",
			Function(nil, Tensor(Int32, 3)),
			Function(nil, Tensor(Int32, UnknownDim)), true},
		{"nil nil", nil, nil, true},
		{"nil value", nil, Tensor(Int32), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAssignable(tt.value, tt.param))
		})
	}
}

func TestEqualImpliesAssignable(t *testing.T) {
	all := []Type{
		Tensor(Int32),
		Tensor(Float32, 2, UnknownDim),
		TensorOfUnknownRank(Bool),
		Sequence(Tensor(Int32)),
		Struct(F("a", Tensor(Int32)), Field{Type: Tensor(Bool)}),
		Function(nil, Tensor(Int32)),
		&PlacementType{},
		AtServer(Tensor(Int32)),
		AtClients(Tensor(Int32)),
	}
	for _, a := range all {
		for _, b := range all {
			if Equal(a, b) {
				assert.True(t, IsAssignable(a, b), "%s should be assignable to %s", a, b)
			}
		}
	}
}

func TestContainsFederated(t *testing.T) {
	assert.False(t, ContainsFederated(nil))
	assert.False(t, ContainsFederated(Function(Tensor(Int32), Sequence(Tensor(Int32)))))
	assert.True(t, ContainsFederated(Struct(F("x", AtClients(Tensor(Int32))))))
	assert.True(t, ContainsFederated(Function(&PlacementType{}, Tensor(Int32))))
}

func TestDTypeAndPlacementValidity(t *testing.T) {
	assert.True(t, Int32.IsValid())
	assert.True(t, String.IsValid())
	assert.False(t, DType("complex64").IsValid())
	assert.True(t, Server.IsValid())
	assert.True(t, Clients.IsValid())
	assert.False(t, Placement("EVERYWHERE").IsValid())
}
