package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRValueSealed(t *testing.T) {
	var values = []IRValue{
		IRString("s"), IRInt(1), IRBool(true), IRArray{}, IRObject{},
	}
	assert.Len(t, values, 5)
}

func TestIRObjectSortedKeys(t *testing.T) {
	obj := NewIRObjectFromPairs(O("b", IRInt(1)), O("a", IRInt(2)), O("c", IRInt(3)))
	assert.Equal(t, []string{"a", "b", "c"}, obj.SortedKeys())
	assert.Empty(t, IRObject{}.SortedKeys())
}

func TestCompareKeysRFC8785(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"a", "b", -1},
		{"b", "a", 1},
		{"a", "a", 0},
		{"a", "ab", -1},
		{"\xf0\x90\x80\x80", "\xee\x80\x80", -1},
	}

	for _, tt := range tests {
		got := compareKeysRFC8785(tt.a, tt.b)
		switch {
		case tt.want < 0:
			assert.Negative(t, got, "%q vs %q", tt.a, tt.b)
		case tt.want > 0:
			assert.Positive(t, got, "%q vs %q", tt.a, tt.b)
		default:
			assert.Zero(t, got, "%q vs %q", tt.a, tt.b)
		}
	}
}

func TestUnmarshalIRValue(t *testing.T) {
	v, err := UnmarshalIRValue([]byte(`{"a":[1,"x",true],"b":{"c":-3}}`))
	require.NoError(t, err)

	want := IRObject{
		"a": IRArray{IRInt(1), IRString("x"), IRBool(true)},
		"b": IRObject{"c": IRInt(-3)},
	}
	assert.Equal(t, want, v)
}

func TestUnmarshalIRValueRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
		msg   string
	}{
		{"float", `{"a":1.5}`, "floats"},
		{"exponent", `[1e3]`, "floats"},
		{"null", `{"a":null}`, "null"},
		{"trailing", `{} {}`, "trailing"},
		{"overflow", `99999999999999999999`, "range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalIRValue([]byte(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestUnmarshalIRValueErrorPath(t *testing.T) {
	_, err := UnmarshalIRValue([]byte(`{"body":{"elements":[{"value":1},{"value":null}]}}`))
	require.Error(t, err)

	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, "body.elements[1].value", decErr.Path)
	assert.Equal(t, "body.elements[1].value: null is not allowed", err.Error())
}

func TestField(t *testing.T) {
	obj := NewIRObjectFromPairs(O("name", IRString("x")), O("index", IRInt(2)), O("locals", IRArray{}))

	name, err := field[IRString](obj, "name")
	require.NoError(t, err)
	assert.Equal(t, IRString("x"), name)

	locals, err := field[IRArray](obj, "locals")
	require.NoError(t, err)
	assert.Empty(t, locals)

	_, err = field[IRString](obj, "index")
	assert.EqualError(t, err, `"index": expected string, got integer`)

	_, err = field[IRObject](obj, "body")
	assert.EqualError(t, err, `missing "body"`)
}
