// Package payload turns WebAssembly modules into typed CompiledPayload
// leaves.
//
// The module is compiled once with wazero to validate it and read the
// signature of one exported function. The IR never looks inside the blob.
package payload

import (
	"context"
	"fmt"
	"slices"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/roach88/fedcomp/internal/ir"
	"github.com/roach88/fedcomp/internal/types"
)

// Payload is a validated wasm module together with the computation type of
// one of its exports.
type Payload struct {
	Blob   []byte
	Export string
	Type   *types.FunctionType
}

// Error reports a blob that cannot serve as a payload.
type Error struct {
	Export  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := "payload"
	if e.Export != "" {
		msg += " " + e.Export
	}
	msg += ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// FromWasm compiles blob and derives the type of the exported function.
//
// Wasm value types map to scalar tensors (i32 -> int32, i64 -> int64,
// f32 -> float32, f64 -> float64). One parameter becomes that tensor,
// several become an unnamed struct and none a nil parameter; results follow
// the same rule except that a function must return something.
func FromWasm(ctx context.Context, blob []byte, export string) (Payload, error) {
	if len(blob) == 0 {
		return Payload{}, &Error{Export: export, Message: "empty module"}
	}

	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, blob)
	if err != nil {
		return Payload{}, &Error{Export: export, Message: "compile module", Cause: err}
	}
	defer compiled.Close(ctx)

	def, ok := compiled.ExportedFunctions()[export]
	if !ok {
		return Payload{}, &Error{Export: export, Message: "no such exported function"}
	}

	ft, err := signature(def)
	if err != nil {
		return Payload{}, &Error{Export: export, Message: "unsupported signature", Cause: err}
	}

	b := make([]byte, len(blob))
	copy(b, blob)
	return Payload{Blob: b, Export: export, Type: ft}, nil
}

// Exports lists the exported function names of blob.
func Exports(ctx context.Context, blob []byte) ([]string, error) {
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, blob)
	if err != nil {
		return nil, &Error{Message: "compile module", Cause: err}
	}
	defer compiled.Close(ctx)

	var names []string
	for name := range compiled.ExportedFunctions() {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// Node builds the CompiledPayload leaf for p.
func (p Payload) Node() (*ir.CompiledPayload, error) {
	return ir.NewCompiledPayload(p.Blob, p.Type)
}

func signature(def api.FunctionDefinition) (*types.FunctionType, error) {
	params, err := tensorTypes(def.ParamTypes())
	if err != nil {
		return nil, fmt.Errorf("parameters: %w", err)
	}
	results, err := tensorTypes(def.ResultTypes())
	if err != nil {
		return nil, fmt.Errorf("results: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("function returns no value")
	}
	return types.Function(collapse(params), collapse(results)), nil
}

func collapse(ts []types.Type) types.Type {
	switch len(ts) {
	case 0:
		return nil
	case 1:
		return ts[0]
	default:
		return types.Unnamed(ts...)
	}
}

func tensorTypes(vts []api.ValueType) ([]types.Type, error) {
	out := make([]types.Type, len(vts))
	for i, vt := range vts {
		var dtype types.DType
		switch vt {
		case api.ValueTypeI32:
			dtype = types.Int32
		case api.ValueTypeI64:
			dtype = types.Int64
		case api.ValueTypeF32:
			dtype = types.Float32
		case api.ValueTypeF64:
			dtype = types.Float64
		default:
			return nil, fmt.Errorf("value type %s has no tensor equivalent", api.ValueTypeName(vt))
		}
		out[i] = types.Tensor(dtype)
	}
	return out, nil
}
