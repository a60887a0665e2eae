package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON_MarshalUnmarshal(t *testing.T) {
	var j JSON
	require.NoError(t, json.Unmarshal([]byte(`{"a":1,"b":[1,2,"x"],"c":null}`), &j))
	assert.True(t, j.IsObject())
	m, ok := j.Object()
	require.True(t, ok)
	assert.Contains(t, m, "a")

	out, err := json.Marshal(j)
	require.NoError(t, err)
	var roundtrip map[string]any
	require.NoError(t, json.Unmarshal(out, &roundtrip))
	assert.Contains(t, roundtrip, "b")
}

func TestJSON_Predicates(t *testing.T) {
	assert.True(t, NewJSON(nil).IsNull())
	assert.True(t, NewJSON("x").IsString())
	assert.True(t, NewJSON(3.5).IsNumber())
	assert.True(t, NewJSON(true).IsBool())
	assert.True(t, NewJSON([]any{1, 2}).IsArray())
	assert.True(t, NewJSON(map[string]any{"k": "v"}).IsObject())
}

func TestJSON_Get(t *testing.T) {
	j := NewJSON(map[string]any{"a": map[string]any{"b": "c"}})
	inner := j.Get("a")
	assert.True(t, inner.IsObject())
	assert.Equal(t, Null, j.Get("missing"))
}
