package types

// Equal reports whether a and b are structurally identical.
// Two nil types are equal; nil never equals a non-nil type.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}

	switch at := a.(type) {
	case *TensorType:
		bt := b.(*TensorType)
		if at.DType != bt.DType || at.UnknownRank != bt.UnknownRank {
			return false
		}
		if at.UnknownRank {
			return true
		}
		if len(at.Shape) != len(bt.Shape) {
			return false
		}
		for i := range at.Shape {
			if at.Shape[i] != bt.Shape[i] {
				return false
			}
		}
		return true
	case *SequenceType:
		return Equal(at.Element, b.(*SequenceType).Element)
	case *StructType:
		bt := b.(*StructType)
		if len(at.Fields) != len(bt.Fields) {
			return false
		}
		for i := range at.Fields {
			if at.Fields[i].Name != bt.Fields[i].Name {
				return false
			}
			if !Equal(at.Fields[i].Type, bt.Fields[i].Type) {
				return false
			}
		}
		return true
	case *FunctionType:
		bt := b.(*FunctionType)
		return Equal(at.Parameter, bt.Parameter) && Equal(at.Result, bt.Result)
	case *PlacementType:
		return true
	case *FederatedType:
		bt := b.(*FederatedType)
		return at.Placement == bt.Placement &&
			at.AllEqual == bt.AllEqual &&
			Equal(at.Member, bt.Member)
	default:
		panic("types: unknown type " + string(a.Kind()))
	}
}

// IsAssignable reports whether a value of type value may be used where
// param is expected.
//
// Assignability is Equal relaxed in these places:
//   - a tensor parameter with unknown rank or unknown dimensions accepts any
//     matching concrete shape
//   - struct fields match positionally; a named parameter field requires the
//     same name on the value
//   - an all-equal federated value may feed a parameter that is not all-equal
//   - function parameters are contravariant, results covariant
func IsAssignable(value, param Type) bool {
	if value == nil || param == nil {
		return value == nil && param == nil
	}
	if value.Kind() != param.Kind() {
		return false
	}

	switch pt := param.(type) {
	case *TensorType:
		vt := value.(*TensorType)
		if vt.DType != pt.DType {
			return false
		}
		if pt.UnknownRank {
			return true
		}
		if vt.UnknownRank || len(vt.Shape) != len(pt.Shape) {
			return false
		}
		for i := range pt.Shape {
			if pt.Shape[i] != UnknownDim && pt.Shape[i] != vt.Shape[i] {
				return false
			}
		}
		return true
	case *SequenceType:
		return IsAssignable(value.(*SequenceType).Element, pt.Element)
	case *StructType:
		vt := value.(*StructType)
		if len(vt.Fields) != len(pt.Fields) {
			return false
		}
		for i := range pt.Fields {
			if pt.Fields[i].Name != "" && vt.Fields[i].Name != pt.Fields[i].Name {
				return false
			}
			if !IsAssignable(vt.Fields[i].Type, pt.Fields[i].Type) {
				return false
			}
		}
		return true
	case *FunctionType:
		vt := value.(*FunctionType)
		return IsAssignable(pt.Parameter, vt.Parameter) && IsAssignable(vt.Result, pt.Result)
	case *PlacementType:
		return true
	case *FederatedType:
		vt := value.(*FederatedType)
		if vt.Placement != pt.Placement {
			return false
		}
		if pt.AllEqual && !vt.AllEqual {
			return false
		}
		return IsAssignable(vt.Member, pt.Member)
	default:
		panic("types: unknown type " + string(param.Kind()))
	}
}

// ContainsFederated reports whether t mentions a federated or placement type
// anywhere in its structure.
func ContainsFederated(t Type) bool {
	switch tt := t.(type) {
	case nil:
		return false
	case *TensorType:
		return false
	case *SequenceType:
		return ContainsFederated(tt.Element)
	case *StructType:
		for _, f := range tt.Fields {
			if ContainsFederated(f.Type) {
				return true
			}
		}
		return false
	case *FunctionType:
		return ContainsFederated(tt.Parameter) || ContainsFederated(tt.Result)
	case *PlacementType, *FederatedType:
		return true
	default:
		panic("types: unknown type " + string(t.Kind()))
	}
}
