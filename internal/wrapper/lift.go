package wrapper

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"github.com/roach88/fedcomp/internal/ir"
	"github.com/roach88/fedcomp/internal/payload"
	"github.com/roach88/fedcomp/internal/tracing"
	"github.com/roach88/fedcomp/internal/types"
)

// Sequence is a homogeneous data set built with SequenceOf. Lifting it
// yields a Data node of sequence type.
type Sequence struct {
	elements []any
	element  types.Type
}

// SequenceOf collects elements into a sequence. Every element must lift to
// a data leaf of one common type; this is checked when the sequence is lifted.
func SequenceOf(elements ...any) Sequence {
	es := make([]any, len(elements))
	copy(es, elements)
	return Sequence{elements: es}
}

// EmptySequence returns a sequence with no elements of the given type.
func EmptySequence(element types.Type) Sequence {
	return Sequence{element: element}
}

// lift applies the lifting table to a host value. The table is total:
// every value either maps to a node or is a type mismatch.
func (c *traceContext) lift(v any, path string) (ir.BuildingBlock, error) {
	switch x := v.(type) {
	case nil:
		return nil, tracing.NewTypeMismatchError(path, nil, "cannot lift nil")
	case ir.BuildingBlock:
		return c.ingestAt(x, path)
	case *ir.Computation:
		return c.liftComputation(x, path)
	case payload.Payload:
		node, err := c.rules.captureLeaf(x)
		return node, atPath(err, path)
	case *payload.Payload:
		if x == nil {
			return nil, tracing.NewTypeMismatchError(path, nil, "cannot lift nil payload")
		}
		node, err := c.rules.captureLeaf(*x)
		return node, atPath(err, path)
	case ir.Fields:
		return c.liftFields(x, path)
	case Sequence:
		return c.liftSequence(x, path)
	}

	rv := reflect.ValueOf(v)
	if node, ok, err := liftLiteral(rv, path); ok {
		return node, err
	}

	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, tracing.NewTypeMismatchError(path, nil, "cannot lift nil %s", rv.Type())
		}
		return c.lift(rv.Elem().Interface(), path)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, tracing.NewTypeMismatchError(path, nil, "cannot lift nil %s", rv.Type())
		}
		fields := make(ir.Fields, rv.Len())
		for i := range fields {
			elem, err := c.lift(rv.Index(i).Interface(), path+"["+strconv.Itoa(i)+"]")
			if err != nil {
				return nil, err
			}
			fields[i] = ir.Field{Value: elem}
		}
		return c.newStruct(fields, path)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, tracing.NewTypeMismatchError(path, nil, "map key type %s is not a string", rv.Type().Key())
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		fields := make(ir.Fields, len(keys))
		for i, k := range keys {
			val := rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key()))
			elem, err := c.lift(val.Interface(), path+"."+k)
			if err != nil {
				return nil, err
			}
			fields[i] = ir.Field{Name: k, Value: elem}
		}
		return c.newStruct(fields, path)
	case reflect.Struct:
		rt := rv.Type()
		var fields ir.Fields
		for i := 0; i < rt.NumField(); i++ {
			sf := rt.Field(i)
			if !sf.IsExported() {
				continue
			}
			elem, err := c.lift(rv.Field(i).Interface(), path+"."+sf.Name)
			if err != nil {
				return nil, err
			}
			fields = append(fields, ir.Field{Name: sf.Name, Value: elem})
		}
		return c.newStruct(fields, path)
	}

	return nil, tracing.NewTypeMismatchError(path, nil, "cannot lift value of type %T", v)
}

func (c *traceContext) liftComputation(comp *ir.Computation, path string) (ir.BuildingBlock, error) {
	if comp == nil {
		return nil, tracing.NewTypeMismatchError(path, nil, "cannot lift nil computation")
	}
	if !c.rules.admitsValue(comp) {
		return nil, tracing.NewStrategyViolationError(c.rules.kind(), path,
			"%s computation %q can only be called", comp.Strategy(), comp.Name())
	}
	return c.trust(comp.AsLambda()), nil
}

func (c *traceContext) liftFields(fs ir.Fields, path string) (ir.BuildingBlock, error) {
	fields := make(ir.Fields, len(fs))
	for i, f := range fs {
		sub := path + "[" + strconv.Itoa(i) + "]"
		if f.Name != "" {
			sub = path + "." + f.Name
		}
		elem, err := c.lift(f.Value, sub)
		if err != nil {
			return nil, err
		}
		fields[i] = ir.Field{Name: f.Name, Value: elem}
	}
	return c.newStruct(fields, path)
}

func (c *traceContext) liftSequence(seq Sequence, path string) (ir.BuildingBlock, error) {
	if len(seq.elements) == 0 {
		if seq.element == nil {
			return nil, tracing.NewTypeMismatchError(path, nil, "empty sequence has no element type")
		}
		return c.newData("sequence:empty", types.Sequence(seq.element), path)
	}

	elems := make(ir.Fields, len(seq.elements))
	var elemType types.Type
	for i, e := range seq.elements {
		sub := path + "[" + strconv.Itoa(i) + "]"
		node, err := c.lift(e, sub)
		if err != nil {
			return nil, err
		}
		if node.Kind() != ir.KindData {
			return nil, tracing.NewTypeMismatchError(sub, nil, "sequence element must be data, got %s", node.Kind())
		}
		if elemType == nil {
			elemType = node.Type()
		} else if !types.Equal(elemType, node.Type()) {
			return nil, tracing.NewTypeMismatchError(sub, nil,
				"sequence elements must share one type: %s vs %s", elemType, node.Type())
		}
		elems[i] = ir.Field{Value: node}
	}

	st, err := ir.NewStruct(elems...)
	if err != nil {
		return nil, tracing.NewTypeMismatchError(path, err, "sequence")
	}
	hash, err := ir.NodeHash(st)
	if err != nil {
		return nil, tracing.NewTypeMismatchError(path, err, "sequence")
	}
	return c.newData("sequence:"+hash, types.Sequence(elemType), path)
}

func (c *traceContext) newStruct(fields ir.Fields, path string) (ir.BuildingBlock, error) {
	st, err := ir.NewStruct(fields...)
	if err != nil {
		return nil, tracing.NewTypeMismatchError(path, err, "cannot build struct")
	}
	return c.ingestAt(st, path)
}

func (c *traceContext) newData(uri string, t types.Type, path string) (ir.BuildingBlock, error) {
	d, err := ir.NewData(uri, t)
	if err != nil {
		return nil, tracing.NewTypeMismatchError(path, err, "cannot build data")
	}
	return c.ingestAt(d, path)
}

// liftLiteral maps Go scalars to literal Data nodes. ok is false when rv is
// not a scalar.
func liftLiteral(rv reflect.Value, path string) (node ir.BuildingBlock, ok bool, err error) {
	var dtype types.DType
	var text string

	switch rv.Kind() {
	case reflect.Bool:
		dtype, text = types.Bool, strconv.FormatBool(rv.Bool())
	case reflect.Int8:
		dtype, text = types.Int8, strconv.FormatInt(rv.Int(), 10)
	case reflect.Int16:
		dtype, text = types.Int16, strconv.FormatInt(rv.Int(), 10)
	case reflect.Int32:
		dtype, text = types.Int32, strconv.FormatInt(rv.Int(), 10)
	case reflect.Int, reflect.Int64:
		dtype, text = types.Int64, strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint8:
		dtype, text = types.Uint8, strconv.FormatUint(rv.Uint(), 10)
	case reflect.Uint16:
		dtype, text = types.Uint16, strconv.FormatUint(rv.Uint(), 10)
	case reflect.Uint32:
		dtype, text = types.Uint32, strconv.FormatUint(rv.Uint(), 10)
	case reflect.Uint, reflect.Uint64:
		dtype, text = types.Uint64, strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		dtype, text = types.Float32, strconv.FormatFloat(rv.Float(), 'g', -1, 32)
	case reflect.Float64:
		dtype, text = types.Float64, strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	case reflect.String:
		dtype, text = types.String, rv.String()
	default:
		return nil, false, nil
	}

	d, err := ir.NewData(LiteralURI(dtype, text), types.Tensor(dtype))
	if err != nil {
		return nil, true, tracing.NewTypeMismatchError(path, err, "literal")
	}
	return d, true, nil
}

// LiteralURI is the content reference of a lifted scalar.
func LiteralURI(dtype types.DType, value string) string {
	return fmt.Sprintf("literal:%s:%s", dtype, value)
}

func isNilNode(b ir.BuildingBlock) bool {
	if b == nil {
		return true
	}
	rv := reflect.ValueOf(b)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
