package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// IRValue is the sealed value model of the serialization boundary: IRString,
// IRInt, IRBool, IRArray and IRObject. There is no float and no null;
// absent fields are omitted.
type IRValue interface {
	irValue()
}

// IRString is a string value.
type IRString string

// IRInt is an integer value. Tensor dimensions and selection indexes use it.
type IRInt int64

// IRBool is a boolean value.
type IRBool bool

// IRArray is an ordered list. Struct elements and block locals are arrays
// so their order survives canonicalization.
type IRArray []IRValue

// IRObject maps keys to values. Iterate with SortedKeys.
type IRObject map[string]IRValue

func (IRString) irValue() {}
func (IRInt) irValue()    {}
func (IRBool) irValue()   {}
func (IRArray) irValue()  {}
func (IRObject) irValue() {}

// IRPair is one entry for NewIRObjectFromPairs.
type IRPair struct {
	Key   string
	Value IRValue
}

// O is shorthand for IRPair.
func O(key string, value IRValue) IRPair {
	return IRPair{Key: key, Value: value}
}

// NewIRObjectFromPairs builds an IRObject; a repeated key keeps the last
// value.
func NewIRObjectFromPairs(pairs ...IRPair) IRObject {
	obj := make(IRObject, len(pairs))
	for _, p := range pairs {
		obj[p.Key] = p.Value
	}
	return obj
}

// SortedKeys returns the keys in RFC 8785 order, which compares UTF-16 code
// units rather than UTF-8 bytes.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func compareKeysRFC8785(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

// valueKind names v's variant in error messages.
func valueKind(v IRValue) string {
	switch v.(type) {
	case IRString:
		return "string"
	case IRInt:
		return "integer"
	case IRBool:
		return "boolean"
	case IRArray:
		return "array"
	case IRObject:
		return "object"
	case nil:
		return "nothing"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// field returns obj[key] as a T.
func field[T IRValue](obj IRObject, key string) (T, error) {
	var zero T
	v, ok := obj[key]
	if !ok {
		return zero, fmt.Errorf("missing %q", key)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%q: expected %s, got %s", key, valueKind(zero), valueKind(v))
	}
	return t, nil
}

// DecodeError locates a JSON value the IR model cannot represent.
type DecodeError struct {
	Path    string // e.g. body.elements[1].value, empty at the top level
	Message string
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// UnmarshalIRValue decodes one JSON document. Floats, null and trailing
// data are rejected with a *DecodeError.
func UnmarshalIRValue(data []byte) (IRValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, &DecodeError{Message: "trailing data after JSON value"}
	}
	return fromJSON(raw, "")
}

func fromJSON(v any, path string) (IRValue, error) {
	fail := func(format string, args ...any) (IRValue, error) {
		return nil, &DecodeError{Path: path, Message: fmt.Sprintf(format, args...)}
	}

	switch val := v.(type) {
	case string:
		return IRString(val), nil
	case bool:
		return IRBool(val), nil
	case json.Number:
		if strings.ContainsAny(string(val), ".eE") {
			return fail("floats are not allowed: %s", val)
		}
		n, err := strconv.ParseInt(string(val), 10, 64)
		if err != nil {
			return fail("number out of int64 range: %s", val)
		}
		return IRInt(n), nil
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			item, err := fromJSON(elem, path+"["+strconv.Itoa(i)+"]")
			if err != nil {
				return nil, err
			}
			arr[i] = item
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			sub := k
			if path != "" {
				sub = path + "." + k
			}
			item, err := fromJSON(elem, sub)
			if err != nil {
				return nil, err
			}
			obj[k] = item
		}
		return obj, nil
	case nil:
		return fail("null is not allowed")
	default:
		return fail("unsupported JSON value %T", v)
	}
}
