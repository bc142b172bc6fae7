package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/fedcomp/internal/compiler"
	"github.com/roach88/fedcomp/internal/ir"
)

// LoadError represents an error that occurred while loading computations.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadComputations reads computations from path, which is one of
//
//   - a directory of CUE files forming one package
//   - a single .cue file
//   - a JSON bundle written by `fedcomp compile -o`
//   - a single canonical computation as written by ir.MarshalComputation
//
// Errors are *LoadError values carrying a CLI error code.
func LoadComputations(path string) ([]*ir.Computation, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("path not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing path: %v", err)}
	}

	switch {
	case info.IsDir():
		return loadCUEDir(path)
	case filepath.Ext(path) == ".cue":
		return loadCUEFile(path)
	default:
		return ReadBundle(path)
	}
}

func loadCUEDir(dir string) ([]*ir.Computation, error) {
	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}
	return compileValue(value)
}

func loadCUEFile(path string) ([]*ir.Computation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}
	value := cuecontext.New().CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}
	return compileValue(value)
}

func compileValue(v cue.Value) ([]*ir.Computation, error) {
	comps, err := compiler.CompileDocument(v)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return comps, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeCompile,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	var cycleErr *compiler.CycleError
	if errors.As(err, &cycleErr) {
		return &LoadError{Code: ErrCodeCycle, Message: cycleErr.Error()}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// EncodeBundle renders computations as one canonical JSON document.
func EncodeBundle(comps []*ir.Computation) ([]byte, error) {
	arr := make(ir.IRArray, len(comps))
	for i, c := range comps {
		obj, err := ir.EncodeComputation(c)
		if err != nil {
			return nil, err
		}
		arr[i] = obj
	}
	return ir.MarshalCanonical(ir.NewIRObjectFromPairs(
		ir.O("version", ir.IRInt(ir.FormatVersion)),
		ir.O("computations", arr),
	))
}

// ReadBundle decodes a bundle written by EncodeBundle, or a single
// computation written by ir.MarshalComputation.
func ReadBundle(path string) ([]*ir.Computation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}
	v, err := ir.UnmarshalIRValue(data)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeDecode, Message: fmt.Sprintf("%s: %v", path, err)}
	}

	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, &LoadError{Code: ErrCodeDecode, Message: fmt.Sprintf("%s: expected a JSON object", path)}
	}
	list, isBundle := obj["computations"].(ir.IRArray)
	if !isBundle {
		c, err := ir.DecodeComputation(obj)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeDecode, Message: fmt.Sprintf("%s: %v", path, err)}
		}
		return []*ir.Computation{c}, nil
	}

	comps := make([]*ir.Computation, len(list))
	for i, item := range list {
		c, err := ir.DecodeComputation(item)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeDecode, Message: fmt.Sprintf("%s: computations[%d]: %v", path, i, err)}
		}
		comps[i] = c
	}
	return comps, nil
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeDecode      = "E008" // Compiled JSON does not decode
	ErrCodeStore       = "E009" // Database error

	ErrCodeCompile      = "E010" // Document does not compile
	ErrCodeCycle        = "E011" // Computations embed each other
	ErrCodeViolation    = "E020" // Forbidden intrinsic or policy violation
	ErrCodePolicy       = "E021" // Policy file invalid
	ErrCodeForm         = "E030" // Not a canonical form
	ErrCodeInconsistent = "E040" // Store verification failed
)
