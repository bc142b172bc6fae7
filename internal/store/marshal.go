package store

import (
	"fmt"

	"github.com/roach88/fedcomp/internal/ir"
)

// marshalViolations converts violations to canonical JSON TEXT for storage.
func marshalViolations(vs []string) (string, error) {
	arr := make(ir.IRArray, len(vs))
	for i, v := range vs {
		arr[i] = ir.IRString(v)
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal violations: %w", err)
	}
	return string(data), nil
}

// unmarshalViolations parses a stored violations array. An empty array
// yields an empty, non-nil slice.
func unmarshalViolations(data string) ([]string, error) {
	v, err := ir.UnmarshalIRValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal violations: %w", err)
	}
	arr, ok := v.(ir.IRArray)
	if !ok {
		return nil, fmt.Errorf("unmarshal violations: expected array, got %T", v)
	}
	out := make([]string, len(arr))
	for i, item := range arr {
		s, ok := item.(ir.IRString)
		if !ok {
			return nil, fmt.Errorf("unmarshal violations: element %d is %T, not a string", i, item)
		}
		out[i] = string(s)
	}
	return out, nil
}
