package ir

import (
	"encoding/base64"
	"fmt"

	"github.com/roach88/fedcomp/internal/types"
)

// FormatVersion is written into every serialized computation.
const FormatVersion = 1

// MarshalComputation encodes c as canonical JSON.
func MarshalComputation(c *Computation) ([]byte, error) {
	v, err := EncodeComputation(c)
	if err != nil {
		return nil, err
	}
	return MarshalCanonical(v)
}

// UnmarshalComputation decodes canonical (or any equivalent) JSON produced
// by MarshalComputation. Every node passes through its constructor, so a
// decoded computation satisfies the same invariants as a traced one.
func UnmarshalComputation(data []byte) (*Computation, error) {
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return nil, fmt.Errorf("decode computation: %w", err)
	}
	return DecodeComputation(v)
}

// EncodeComputation converts c to the IRValue model.
func EncodeComputation(c *Computation) (IRObject, error) {
	if c == nil {
		return nil, fmt.Errorf("encode computation: nil")
	}
	body, err := EncodeNode(c.body)
	if err != nil {
		return nil, fmt.Errorf("encode computation %q: %w", c.name, err)
	}
	obj := IRObject{
		"version":  IRInt(FormatVersion),
		"name":     IRString(c.name),
		"strategy": IRString(c.strategy),
		"type":     EncodeType(c.typ),
		"body":     body,
	}
	if c.parameterName != "" {
		obj["parameter_name"] = IRString(c.parameterName)
	}
	return obj, nil
}

// DecodeComputation converts an IRValue produced by EncodeComputation.
func DecodeComputation(v IRValue) (*Computation, error) {
	obj, ok := v.(IRObject)
	if !ok {
		return nil, fmt.Errorf("decode computation: expected object, got %T", v)
	}
	version, err := intField(obj, "version")
	if err != nil {
		return nil, fmt.Errorf("decode computation: %w", err)
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("decode computation: unsupported version %d", version)
	}
	name, err := stringField(obj, "name")
	if err != nil {
		return nil, fmt.Errorf("decode computation: %w", err)
	}
	strategy, err := stringField(obj, "strategy")
	if err != nil {
		return nil, fmt.Errorf("decode computation %q: %w", name, err)
	}
	typVal, ok := obj["type"]
	if !ok {
		return nil, fmt.Errorf("decode computation %q: missing type", name)
	}
	typ, err := DecodeType(typVal)
	if err != nil {
		return nil, fmt.Errorf("decode computation %q: type: %w", name, err)
	}
	ft, ok := typ.(*types.FunctionType)
	if !ok {
		return nil, fmt.Errorf("decode computation %q: expected function type, got %s", name, typ)
	}
	bodyVal, ok := obj["body"]
	if !ok {
		return nil, fmt.Errorf("decode computation %q: missing body", name)
	}
	body, err := DecodeNode(bodyVal)
	if err != nil {
		return nil, fmt.Errorf("decode computation %q: body: %w", name, err)
	}
	paramName, _ := optionalString(obj, "parameter_name")

	c, err := NewComputation(name, paramName, ft.Parameter, body, Strategy(strategy))
	if err != nil {
		return nil, err
	}
	if !types.Equal(c.typ, ft) {
		return nil, fmt.Errorf("decode computation %q: declared type %s does not match body type %s", name, ft, c.typ)
	}
	return c, nil
}

// EncodeType converts a type to the IRValue model.
func EncodeType(t types.Type) IRObject {
	switch tt := t.(type) {
	case *types.TensorType:
		obj := IRObject{"kind": IRString(types.KindTensor), "dtype": IRString(tt.DType)}
		if tt.UnknownRank {
			obj["unknown_rank"] = IRBool(true)
			return obj
		}
		shape := make(IRArray, len(tt.Shape))
		for i, d := range tt.Shape {
			shape[i] = IRInt(d)
		}
		obj["shape"] = shape
		return obj
	case *types.SequenceType:
		return IRObject{"kind": IRString(types.KindSequence), "element": EncodeType(tt.Element)}
	case *types.StructType:
		fields := make(IRArray, len(tt.Fields))
		for i, f := range tt.Fields {
			fields[i] = IRObject{"name": IRString(f.Name), "type": EncodeType(f.Type)}
		}
		return IRObject{"kind": IRString(types.KindStruct), "fields": fields}
	case *types.FunctionType:
		obj := IRObject{"kind": IRString(types.KindFunction), "result": EncodeType(tt.Result)}
		if tt.Parameter != nil {
			obj["parameter"] = EncodeType(tt.Parameter)
		}
		return obj
	case *types.PlacementType:
		return IRObject{"kind": IRString(types.KindPlacement)}
	case *types.FederatedType:
		return IRObject{
			"kind":      IRString(types.KindFederated),
			"member":    EncodeType(tt.Member),
			"placement": IRString(tt.Placement),
			"all_equal": IRBool(tt.AllEqual),
		}
	default:
		panic(fmt.Sprintf("ir: cannot encode type %T", t))
	}
}

// DecodeType converts an IRValue produced by EncodeType.
func DecodeType(v IRValue) (types.Type, error) {
	obj, ok := v.(IRObject)
	if !ok {
		return nil, fmt.Errorf("expected object, got %T", v)
	}
	kind, err := stringField(obj, "kind")
	if err != nil {
		return nil, err
	}

	switch types.Kind(kind) {
	case types.KindTensor:
		dtype, err := stringField(obj, "dtype")
		if err != nil {
			return nil, err
		}
		if !types.DType(dtype).IsValid() {
			return nil, fmt.Errorf("unknown dtype %q", dtype)
		}
		if b, ok := obj["unknown_rank"].(IRBool); ok && bool(b) {
			return types.TensorOfUnknownRank(types.DType(dtype)), nil
		}
		arr, err := arrayField(obj, "shape")
		if err != nil {
			return nil, err
		}
		shape := make([]int, len(arr))
		for i, d := range arr {
			n, ok := d.(IRInt)
			if !ok || (n < 0 && n != types.UnknownDim) {
				return nil, fmt.Errorf("shape[%d]: invalid dimension", i)
			}
			shape[i] = int(n)
		}
		return types.Tensor(types.DType(dtype), shape...), nil
	case types.KindSequence:
		elem, err := decodeTypeField(obj, "element")
		if err != nil {
			return nil, err
		}
		return types.Sequence(elem), nil
	case types.KindStruct:
		arr, err := arrayField(obj, "fields")
		if err != nil {
			return nil, err
		}
		fields := make([]types.Field, len(arr))
		for i, fv := range arr {
			fo, ok := fv.(IRObject)
			if !ok {
				return nil, fmt.Errorf("fields[%d]: expected object", i)
			}
			name, _ := optionalString(fo, "name")
			ft, err := decodeTypeField(fo, "type")
			if err != nil {
				return nil, fmt.Errorf("fields[%d]: %w", i, err)
			}
			fields[i] = types.Field{Name: name, Type: ft}
		}
		return types.Struct(fields...), nil
	case types.KindFunction:
		result, err := decodeTypeField(obj, "result")
		if err != nil {
			return nil, err
		}
		var param types.Type
		if _, ok := obj["parameter"]; ok {
			if param, err = decodeTypeField(obj, "parameter"); err != nil {
				return nil, err
			}
		}
		return types.Function(param, result), nil
	case types.KindPlacement:
		return &types.PlacementType{}, nil
	case types.KindFederated:
		member, err := decodeTypeField(obj, "member")
		if err != nil {
			return nil, err
		}
		pl, err := stringField(obj, "placement")
		if err != nil {
			return nil, err
		}
		if !types.Placement(pl).IsValid() {
			return nil, fmt.Errorf("unknown placement %q", pl)
		}
		allEqual, _ := obj["all_equal"].(IRBool)
		return &types.FederatedType{Member: member, Placement: types.Placement(pl), AllEqual: bool(allEqual)}, nil
	default:
		return nil, fmt.Errorf("unknown type kind %q", kind)
	}
}

// EncodeNode converts a tree to the IRValue model.
func EncodeNode(b BuildingBlock) (IRObject, error) {
	obj := IRObject{"kind": IRString(kindOf(b))}

	switch n := b.(type) {
	case nil:
		return nil, fmt.Errorf("encode node: nil")
	case *Reference:
		obj["name"] = IRString(n.name)
		obj["type"] = EncodeType(n.typ)
	case *Lambda:
		result, err := EncodeNode(n.result)
		if err != nil {
			return nil, fmt.Errorf("lambda result: %w", err)
		}
		obj["result"] = result
		if n.parameterName != "" {
			obj["parameter_name"] = IRString(n.parameterName)
			obj["parameter_type"] = EncodeType(n.parameterType)
		}
	case *Call:
		fn, err := EncodeNode(n.function)
		if err != nil {
			return nil, fmt.Errorf("call function: %w", err)
		}
		obj["function"] = fn
		if n.argument != nil {
			arg, err := EncodeNode(n.argument)
			if err != nil {
				return nil, fmt.Errorf("call argument: %w", err)
			}
			obj["argument"] = arg
		}
	case *Block:
		locals := make(IRArray, len(n.locals))
		for i, l := range n.locals {
			val, err := EncodeNode(l.Value)
			if err != nil {
				return nil, fmt.Errorf("block local %q: %w", l.Name, err)
			}
			locals[i] = IRObject{"name": IRString(l.Name), "value": val}
		}
		result, err := EncodeNode(n.result)
		if err != nil {
			return nil, fmt.Errorf("block result: %w", err)
		}
		obj["locals"] = locals
		obj["result"] = result
	case *Selection:
		src, err := EncodeNode(n.source)
		if err != nil {
			return nil, fmt.Errorf("selection source: %w", err)
		}
		obj["source"] = src
		if n.name != "" {
			obj["name"] = IRString(n.name)
		} else {
			obj["index"] = IRInt(n.index)
		}
	case *Struct:
		elems := make(IRArray, len(n.elements))
		for i, e := range n.elements {
			val, err := EncodeNode(e.Value)
			if err != nil {
				return nil, fmt.Errorf("struct element %d: %w", i, err)
			}
			elems[i] = IRObject{"name": IRString(e.Name), "value": val}
		}
		obj["elements"] = elems
	case *Intrinsic:
		obj["uri"] = IRString(n.uri)
		obj["type"] = EncodeType(n.typ)
	case *CompiledPayload:
		obj["blob"] = IRString(base64.StdEncoding.EncodeToString(n.blob))
		obj["type"] = EncodeType(n.typ)
	case *Placement:
		obj["literal"] = IRString(n.literal)
	case *Data:
		obj["uri"] = IRString(n.uri)
		obj["type"] = EncodeType(n.typ)
	default:
		panic("ir: unknown building block " + kindOf(b))
	}
	return obj, nil
}

// DecodeNode converts an IRValue produced by EncodeNode, validating every
// node through its constructor.
func DecodeNode(v IRValue) (BuildingBlock, error) {
	obj, ok := v.(IRObject)
	if !ok {
		return nil, fmt.Errorf("expected object, got %T", v)
	}
	kind, err := stringField(obj, "kind")
	if err != nil {
		return nil, err
	}

	switch Kind(kind) {
	case KindReference:
		name, err := stringField(obj, "name")
		if err != nil {
			return nil, err
		}
		t, err := decodeTypeField(obj, "type")
		if err != nil {
			return nil, err
		}
		return NewReference(name, t)
	case KindLambda:
		result, err := decodeNodeField(obj, "result")
		if err != nil {
			return nil, err
		}
		var paramType types.Type
		paramName, hasParam := optionalString(obj, "parameter_name")
		if hasParam {
			if paramType, err = decodeTypeField(obj, "parameter_type"); err != nil {
				return nil, err
			}
		}
		return NewLambda(paramName, paramType, result)
	case KindCall:
		fn, err := decodeNodeField(obj, "function")
		if err != nil {
			return nil, err
		}
		var arg BuildingBlock
		if _, ok := obj["argument"]; ok {
			if arg, err = decodeNodeField(obj, "argument"); err != nil {
				return nil, err
			}
		}
		return NewCall(fn, arg)
	case KindBlock:
		arr, err := arrayField(obj, "locals")
		if err != nil {
			return nil, err
		}
		locals := make([]Binding, len(arr))
		for i, lv := range arr {
			lo, ok := lv.(IRObject)
			if !ok {
				return nil, fmt.Errorf("locals[%d]: expected object", i)
			}
			name, err := stringField(lo, "name")
			if err != nil {
				return nil, fmt.Errorf("locals[%d]: %w", i, err)
			}
			val, err := decodeNodeField(lo, "value")
			if err != nil {
				return nil, fmt.Errorf("locals[%d]: %w", i, err)
			}
			locals[i] = Binding{Name: name, Value: val}
		}
		result, err := decodeNodeField(obj, "result")
		if err != nil {
			return nil, err
		}
		return NewBlock(locals, result)
	case KindSelection:
		src, err := decodeNodeField(obj, "source")
		if err != nil {
			return nil, err
		}
		if name, ok := optionalString(obj, "name"); ok {
			return NewSelectionByName(src, name)
		}
		index, err := intField(obj, "index")
		if err != nil {
			return nil, err
		}
		return NewSelectionByIndex(src, int(index))
	case KindStruct:
		arr, err := arrayField(obj, "elements")
		if err != nil {
			return nil, err
		}
		elems := make([]Field, len(arr))
		for i, ev := range arr {
			eo, ok := ev.(IRObject)
			if !ok {
				return nil, fmt.Errorf("elements[%d]: expected object", i)
			}
			name, _ := optionalString(eo, "name")
			val, err := decodeNodeField(eo, "value")
			if err != nil {
				return nil, fmt.Errorf("elements[%d]: %w", i, err)
			}
			elems[i] = Field{Name: name, Value: val}
		}
		return NewStruct(elems...)
	case KindIntrinsic:
		uri, err := stringField(obj, "uri")
		if err != nil {
			return nil, err
		}
		t, err := decodeTypeField(obj, "type")
		if err != nil {
			return nil, err
		}
		return NewIntrinsic(uri, t)
	case KindCompiledPayload:
		enc, err := stringField(obj, "blob")
		if err != nil {
			return nil, err
		}
		blob, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return nil, fmt.Errorf("blob: %w", err)
		}
		t, err := decodeTypeField(obj, "type")
		if err != nil {
			return nil, err
		}
		return NewCompiledPayload(blob, t)
	case KindPlacement:
		lit, err := stringField(obj, "literal")
		if err != nil {
			return nil, err
		}
		return NewPlacement(types.Placement(lit))
	case KindData:
		uri, err := stringField(obj, "uri")
		if err != nil {
			return nil, err
		}
		t, err := decodeTypeField(obj, "type")
		if err != nil {
			return nil, err
		}
		return NewData(uri, t)
	default:
		return nil, fmt.Errorf("unknown node kind %q", kind)
	}
}

func stringField(obj IRObject, key string) (string, error) {
	s, err := field[IRString](obj, key)
	return string(s), err
}

func optionalString(obj IRObject, key string) (string, bool) {
	s, ok := obj[key].(IRString)
	return string(s), ok
}

func intField(obj IRObject, key string) (int64, error) {
	n, err := field[IRInt](obj, key)
	return int64(n), err
}

func arrayField(obj IRObject, key string) (IRArray, error) {
	return field[IRArray](obj, key)
}

func decodeTypeField(obj IRObject, key string) (types.Type, error) {
	v, ok := obj[key]
	if !ok {
		return nil, fmt.Errorf("missing %q", key)
	}
	t, err := DecodeType(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return t, nil
}

func decodeNodeField(obj IRObject, key string) (BuildingBlock, error) {
	v, ok := obj[key]
	if !ok {
		return nil, fmt.Errorf("missing %q", key)
	}
	b, err := DecodeNode(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
