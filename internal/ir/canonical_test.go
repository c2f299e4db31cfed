package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalScalars(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", IRString("hello"), `"hello"`},
		{"int", IRInt(-100), "-100"},
		{"bool", IRBool(false), "false"},
		{"empty array", IRArray{}, "[]"},
		{"empty object", IRObject{}, "{}"},
		{"go string", "x", `"x"`},
		{"go map", map[string]any{"b": 1, "a": "z"}, `{"a":"z","b":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalNestedSortedKeys(t *testing.T) {
	obj := IRObject{
		"z": IRObject{"b": IRInt(1), "a": IRInt(2)},
		"a": IRArray{IRString("q")},
	}
	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":["q"],"z":{"a":2,"b":1}}`, string(result))
}

func TestMarshalCanonicalRejectsNullAndFloats(t *testing.T) {
	for _, input := range []any{nil, IRNull{}, 1.5, IRObject{"k": IRNull{}}} {
		_, err := MarshalCanonical(input)
		assert.Error(t, err, "input %#v", input)
	}
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(IRString("<a & b>"))
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	decomposed, err := MarshalCanonical(IRString("Rene\u0301"))
	require.NoError(t, err)
	composed, err := MarshalCanonical(IRString("Ren\u00e9"))
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"literal U+2028", "a\u2028b", "\"a\u2028b\""},
		{"literal U+2029", "a\u2029b", "\"a\u2029b\""},
		{"backslash text", `x \u2028`, `"x \\u2028"`},
		{"mixed", "x \\u2028 y \u2028", "\"x \\\\u2028 y \u2028\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(IRString(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}
