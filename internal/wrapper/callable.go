package wrapper

import (
	"fmt"
	"reflect"

	"github.com/roach88/fedcomp/internal/ir"
	"github.com/roach88/fedcomp/internal/tracing"
)

// Callable is user code to be traced. It receives the Tracer of its frame
// and, for unary callables, the parameter placeholder.
//
// Build one with Nullary, Unary or FromFunc. The zero Callable is invalid.
type Callable struct {
	arity int
	call  func(t *Tracer, arg ir.BuildingBlock) (any, error)
}

// Nullary returns a callable that takes no parameter.
func Nullary(fn func(t *Tracer) (any, error)) Callable {
	if fn == nil {
		return Callable{}
	}
	return Callable{
		arity: 0,
		call: func(t *Tracer, _ ir.BuildingBlock) (any, error) {
			return fn(t)
		},
	}
}

// Unary returns a callable that takes one parameter.
func Unary(fn func(t *Tracer, arg ir.BuildingBlock) (any, error)) Callable {
	if fn == nil {
		return Callable{}
	}
	return Callable{arity: 1, call: fn}
}

// Arity returns the number of parameters the callable declares.
func (c Callable) Arity() int { return c.arity }

// IsZero reports whether c was built by none of the constructors.
func (c Callable) IsZero() bool { return c.call == nil }

var (
	tracerType = reflect.TypeOf((*Tracer)(nil))
	blockType  = reflect.TypeOf((*ir.BuildingBlock)(nil)).Elem()
	errorType  = reflect.TypeOf((*error)(nil)).Elem()
)

// FromFunc adapts an ordinary Go function.
//
// Accepted shapes, where the leading *Tracer is optional and P is any type
// an ir.BuildingBlock is assignable to (ir.BuildingBlock, any):
//
//	func([*Tracer]) R
//	func([*Tracer]) (R, error)
//	func([*Tracer,] P) R
//	func([*Tracer,] P) (R, error)
//
// Anything else is an arity error.
func FromFunc(fn any) (Callable, error) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return Callable{}, tracing.NewArityError("expected a function, got %T", fn)
	}
	ft := v.Type()
	if ft.IsVariadic() {
		return Callable{}, tracing.NewArityError("variadic function %s is not traceable", ft)
	}

	first := 0
	withTracer := ft.NumIn() > 0 && ft.In(0) == tracerType
	if withTracer {
		first = 1
	}
	params := ft.NumIn() - first
	if params > 1 {
		return Callable{}, tracing.NewArityError("function %s takes %d parameters, at most 1 is traceable", ft, params)
	}
	if params == 1 && !blockType.AssignableTo(ft.In(first)) {
		return Callable{}, tracing.NewArityError("parameter type %s of %s cannot hold a building block", ft.In(first), ft)
	}

	switch {
	case ft.NumOut() == 1:
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
	default:
		return Callable{}, tracing.NewArityError("function %s must return a value and optionally an error", ft)
	}

	call := func(t *Tracer, arg ir.BuildingBlock) (any, error) {
		in := make([]reflect.Value, 0, ft.NumIn())
		if withTracer {
			in = append(in, reflect.ValueOf(t))
		}
		if params == 1 {
			in = append(in, reflect.ValueOf(&arg).Elem().Convert(ft.In(first)))
		}
		out := v.Call(in)
		if len(out) == 2 && !out[1].IsNil() {
			return nil, out[1].Interface().(error)
		}
		return valueOf(out[0]), nil
	}
	return Callable{arity: params, call: call}, nil
}

func valueOf(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if v.IsNil() {
			return nil
		}
	}
	return v.Interface()
}

func invoke(c Callable, t *Tracer, arg ir.BuildingBlock) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = tracing.NewUntracedError(fmt.Errorf("panic: %v", r))
		}
	}()
	return c.call(t, arg)
}
