package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	lineSep = "\u2028"
	paraSep = "\u2029"
)

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   IRValue
		want string
	}{
		{"scalar string", IRString("federated_sum"), `"federated_sum"`},
		{"empty string", IRString(""), `""`},
		{"dimension", IRInt(128), "128"},
		{"min int64", IRInt(-1 << 63), "-9223372036854775808"},
		{"all_equal", IRBool(false), "false"},
		{"empty locals", IRArray{}, "[]"},
		{"empty object", IRObject{}, "{}"},
		{"shape", IRArray{IRInt(2), IRInt(3)}, "[2,3]"},
		{
			"tensor type",
			NewIRObjectFromPairs(O("shape", IRArray{IRInt(2)}), O("dtype", IRString("float32")), O("kind", IRString("tensor"))),
			`{"dtype":"float32","kind":"tensor","shape":[2]}`,
		},
		{
			"nested keys sorted",
			IRObject{"result": IRObject{"uri": IRString("u"), "kind": IRString("intrinsic")}, "kind": IRString("lambda")},
			`{"kind":"lambda","result":{"kind":"intrinsic","uri":"u"}}`,
		},
		{"html kept", IRString("<a & b>"), `"<a & b>"`},
		{"quote", IRString(`say "hi"`), `"say \"hi\""`},
		{"backslash", IRString(`a\b`), `"a\\b"`},
		{"newline and tab", IRString("a\nb\tc"), `"a\nb\tc"`},
		{"control", IRString("a\x01b"), `"a\u0001b"`},
		{"line separators literal", IRString("a" + lineSep + "b" + paraSep), `"a` + lineSep + `b` + paraSep + `"`},
		{"escaped u2028 text", IRString(`\u2028`), `"\\u2028"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonicalKeyOrderIsUTF16(t *testing.T) {
	// U+10000 is the surrogate pair D800 DC00 and sorts before U+E000,
	// although its UTF-8 bytes sort after.
	bmp, astral := "\ue000", "\U00010000"

	got, err := MarshalCanonical(IRObject{bmp: IRInt(1), astral: IRInt(2)})
	require.NoError(t, err)
	assert.Equal(t, `{"`+astral+`":2,"`+bmp+`":1}`, string(got))
}

func TestMarshalCanonicalNormalizesNFC(t *testing.T) {
	composed, err := MarshalCanonical(IRObject{"caf\u00e9": IRString("caf\u00e9")})
	require.NoError(t, err)
	decomposed, err := MarshalCanonical(IRObject{"cafe\u0301": IRString("cafe\u0301")})
	require.NoError(t, err)

	assert.Equal(t, string(composed), string(decomposed))
}

func TestMarshalCanonicalRejectsNil(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.ErrorContains(t, err, "null")

	_, err = MarshalCanonical(IRObject{"locals": IRArray{IRString("x"), nil}})
	assert.ErrorContains(t, err, `value for key "locals": array[1]`)
}

func TestMarshalCanonicalStableThroughDecode(t *testing.T) {
	in := IRObject{
		"elements": IRArray{IRObject{"name": IRString("b"), "value": IRBool(true)}},
		"index":    IRInt(7),
	}

	first, err := MarshalCanonical(in)
	require.NoError(t, err)
	decoded, err := UnmarshalIRValue(first)
	require.NoError(t, err)
	second, err := MarshalCanonical(decoded)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}
