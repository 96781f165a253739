package props

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AcceptsNestedValues(t *testing.T) {
	obj, err := Parse([]byte(`{"name":"set","arity":2,"finite":true,"tags":["a","b"],"meta":{"k":1}}`))
	require.NoError(t, err)

	assert.Equal(t, String("set"), obj["name"])
	assert.Equal(t, Int(2), obj["arity"])
	assert.Equal(t, Bool(true), obj["finite"])
	assert.Equal(t, Array{String("a"), String("b")}, obj["tags"])
	assert.Equal(t, Object{"k": Int(1)}, obj["meta"])
}

func TestParse_RejectsFloatsAndNulls(t *testing.T) {
	_, err := Parse([]byte(`{"weight":1.5}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats")

	_, err = Parse([]byte(`{"weight":null}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "null")

	_, err = Parse([]byte(`[1,2]`))
	require.Error(t, err)
}

func TestObject_JSONRoundTripKeepsIntegers(t *testing.T) {
	in := Object{"big": Int(1 << 60), "s": String("x")}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, `{"big":1152921504606846976,"s":"x"}`, string(data))

	var out Object
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestObject_CloneIsDeep(t *testing.T) {
	orig := Object{"list": Array{String("a")}, "inner": Object{"n": Int(1)}}
	cp := orig.Clone()

	cp["list"].(Array)[0] = String("changed")
	cp["inner"].(Object)["n"] = Int(2)

	assert.Equal(t, String("a"), orig["list"].(Array)[0])
	assert.Equal(t, Int(1), orig["inner"].(Object)["n"])
	assert.Nil(t, Object(nil).Clone())
}

func TestSortedKeys_UTF16Order(t *testing.T) {
	// U+1F600 encodes to a surrogate pair (0xD83D...) which sorts before U+FF61
	// in UTF-16 but after it in UTF-8.
	obj := Object{"\U0001F600": Int(1), "\uFF61": Int(2), "a": Int(3)}
	assert.Equal(t, []string{"a", "\U0001F600", "\uFF61"}, obj.SortedKeys())
}

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"sorted keys", Object{"b": Int(1), "a": Int(2)}, `{"a":2,"b":1}`},
		{"no html escaping", String("<a&b>"), `"<a&b>"`},
		{"plain go map", map[string]any{"z": true, "y": []any{"q", 3}}, `{"y":["q",3],"z":true}`},
		{"string slice", []string{"x", "y"}, `["x","y"]`},
		{"line separator literal", String("a\u2028b"), "\"a\u2028b\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonical_Rejects(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err)
	_, err = MarshalCanonical(1.25)
	assert.Error(t, err)
	_, err = MarshalCanonical(struct{}{})
	assert.Error(t, err)
}
