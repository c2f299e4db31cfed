package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRObjectSortedKeysRFC8785Order(t *testing.T) {
	obj := IRObject{
		"a":  IRInt(1),
		"A":  IRInt(2),
		"aa": IRInt(3),
		"Aa": IRInt(5),
		"AA": IRInt(6),
	}
	assert.Equal(t, []string{"A", "AA", "Aa", "a", "aa"}, obj.SortedKeys())
}

func TestCompareKeysRFC8785SurrogatePairs(t *testing.T) {
	// U+1F600 encodes as surrogates 0xD83D 0xDE00, which sort before U+FFFD
	// in UTF-16 even though the UTF-8 bytes sort after.
	assert.Less(t, compareKeysRFC8785("\U0001F600", "\uFFFD"), 0)
	assert.Equal(t, 0, compareKeysRFC8785("x", "x"))
	assert.Less(t, compareKeysRFC8785("x", "xy"), 0)
}

func TestUnmarshalIRObject(t *testing.T) {
	var obj IRObject
	err := json.Unmarshal([]byte(`{"title":"Engineer","order":3,"remote":true,"tags":["go","sql"],"note":null}`), &obj)
	require.NoError(t, err)

	assert.Equal(t, IRString("Engineer"), obj["title"])
	assert.Equal(t, IRInt(3), obj["order"])
	assert.Equal(t, IRBool(true), obj["remote"])
	assert.Equal(t, Strings("go", "sql"), obj["tags"])
	assert.Equal(t, IRNull{}, obj["note"])
}

func TestUnmarshalRejectsFloats(t *testing.T) {
	var obj IRObject
	err := json.Unmarshal([]byte(`{"order":1.5}`), &obj)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats")
}

func TestIRObjectMarshalSortsKeys(t *testing.T) {
	data, err := json.Marshal(IRObject{"z": IRInt(1), "a": IRString("x")})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","z":1}`, string(data))
}

func TestCloneIsDeep(t *testing.T) {
	orig := IRObject{"tags": Strings("a"), "meta": IRObject{"k": IRInt(1)}}
	cp := orig.Clone()

	cp["tags"].(IRArray)[0] = IRString("changed")
	cp["meta"].(IRObject)["k"] = IRInt(2)

	assert.Equal(t, IRString("a"), orig["tags"].(IRArray)[0])
	assert.Equal(t, IRInt(1), orig["meta"].(IRObject)["k"])
}

func TestMergeLeavesInputsUntouched(t *testing.T) {
	base := IRObject{"title": IRString("Old"), "status": IRString("active")}
	patch := IRObject{"title": IRString("New")}

	merged := base.Merge(patch)

	assert.Equal(t, IRString("New"), merged["title"])
	assert.Equal(t, IRString("active"), merged["status"])
	assert.Equal(t, IRString("Old"), base["title"])

	var nilObj IRObject
	assert.Equal(t, patch, nilObj.Merge(patch))
}

func TestText(t *testing.T) {
	assert.Equal(t, "", Text(nil))
	assert.Equal(t, "", Text(IRNull{}))
	assert.Equal(t, "hi", Text(IRString("hi")))
	assert.Equal(t, "-7", Text(IRInt(-7)))
	assert.Equal(t, "true", Text(IRBool(true)))
	assert.Equal(t, `["a","b"]`, Text(Strings("a", "b")))
}

func TestStringList(t *testing.T) {
	assert.Equal(t, []string{"a", "c"}, StringList(IRArray{IRString("a"), IRInt(1), IRString("c")}))
	assert.Nil(t, StringList(IRString("a")))
}

func TestFromGo(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  IRValue
	}{
		{"string", "x", IRString("x")},
		{"int", 4, IRInt(4)},
		{"integral float", float64(12), IRInt(12)},
		{"json number", json.Number("9"), IRInt(9)},
		{"string slice", []string{"a"}, Strings("a")},
		{"any slice", []any{"a", true}, IRArray{IRString("a"), IRBool(true)}},
		{"map", map[string]any{"n": 1}, IRObject{"n": IRInt(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromGo(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromGoRejects(t *testing.T) {
	for _, input := range []any{nil, 1.5, json.Number("2.0"), struct{}{}} {
		_, err := FromGo(input)
		assert.Error(t, err, "input %#v", input)
	}
}
