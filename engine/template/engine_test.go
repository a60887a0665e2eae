package template

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcore/runner/engine/core"
)

func TestEngine_StringVariableReplacement(t *testing.T) {
	e := NewEngine()
	e.AddTemplate("t", core.NewJSON(map[string]any{
		"greeting": "Hello {{variables.name}}",
	}))
	ctx := core.NewJSON(map[string]any{
		"variables": map[string]any{"name": "World"},
	})
	out, err := e.Render("t", ctx, map[string]FieldType{"name": FieldString})
	require.NoError(t, err)
	m, _ := out.Object()
	assert.Equal(t, "Hello World", m["greeting"])
}

func TestEngine_StringCoercionFromNumber(t *testing.T) {
	e := NewEngine()
	e.AddTemplate("t", core.NewJSON(map[string]any{
		"greeting": "{{variables.name}}",
	}))
	ctx := core.NewJSON(map[string]any{
		"variables": map[string]any{"name": 42},
	})
	out, err := e.Render("t", ctx, map[string]FieldType{"name": FieldString})
	require.NoError(t, err)
	m, _ := out.Object()
	assert.Equal(t, "42", m["greeting"])
}

func TestEngine_NumberCoercionFromString(t *testing.T) {
	e := NewEngine()
	e.AddTemplate("t", core.NewJSON(map[string]any{
		"greeting": "{{variables.name}}",
	}))
	ctx := core.NewJSON(map[string]any{
		"variables": map[string]any{"name": "42"},
	})
	out, err := e.Render("t", ctx, map[string]FieldType{"name": FieldNumber})
	require.NoError(t, err)
	m, _ := out.Object()
	assert.Equal(t, json.Number("42"), m["greeting"])
}

func TestEngine_BooleanCoercionFromString(t *testing.T) {
	e := NewEngine()
	e.AddTemplate("t", core.NewJSON(map[string]any{
		"flag": "{{variables.enabled}}",
	}))
	ctx := core.NewJSON(map[string]any{
		"variables": map[string]any{"enabled": "true"},
	})
	out, err := e.Render("t", ctx, map[string]FieldType{"enabled": FieldBoolean})
	require.NoError(t, err)
	m, _ := out.Object()
	assert.Equal(t, true, m["flag"])
}

func TestEngine_BooleanCoercionRejectsNonStrictStrings(t *testing.T) {
	e := NewEngine()
	for _, v := range []string{"1", "0", "yes", "no", "True", "False"} {
		e.AddTemplate("t", core.NewJSON(map[string]any{
			"flag": "{{variables.enabled}}",
		}))
		ctx := core.NewJSON(map[string]any{
			"variables": map[string]any{"enabled": v},
		})
		_, err := e.Render("t", ctx, map[string]FieldType{"enabled": FieldBoolean})
		require.Error(t, err, "value %q should not coerce to boolean", v)
	}
}

func TestEngine_ObjectVariableReplacement(t *testing.T) {
	e := NewEngine()
	e.AddTemplate("t", core.NewJSON(map[string]any{
		"an_object": "{{variables.the_object}}",
	}))
	ctx := core.NewJSON(map[string]any{
		"variables": map[string]any{
			"the_object": map[string]any{"a_number": 42},
		},
	})
	out, err := e.Render("t", ctx, map[string]FieldType{"the_object": FieldObject})
	require.NoError(t, err)
	m, _ := out.Object()
	inner, ok := m["an_object"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 42, inner["a_number"])
}

func TestEngine_ObjectVariableReplacement_RejectsNonObject(t *testing.T) {
	e := NewEngine()
	e.AddTemplate("t", core.NewJSON(map[string]any{
		"an_object": "{{variables.the_object}}",
	}))
	ctx := core.NewJSON(map[string]any{
		"variables": map[string]any{"the_object": "not an object"},
	})
	_, err := e.Render("t", ctx, map[string]FieldType{"the_object": FieldObject})
	require.Error(t, err)
	var terr *TemplateError
	assert.ErrorAs(t, err, &terr)
}

func TestEngine_Interpolation(t *testing.T) {
	e := NewEngine()
	e.AddTemplate("t", core.NewJSON(map[string]any{
		"msg": "user {{variables.name}} scored {{variables.score}}",
	}))
	ctx := core.NewJSON(map[string]any{
		"variables": map[string]any{"name": "Ada", "score": 9},
	})
	out, err := e.Render("t", ctx, nil)
	require.NoError(t, err)
	m, _ := out.Object()
	assert.Equal(t, "user Ada scored 9", m["msg"])
}

func TestEngine_VariableNotFound(t *testing.T) {
	e := NewEngine()
	e.AddTemplate("t", core.NewJSON(map[string]any{
		"msg": "hi {{variables.missing}}",
	}))
	ctx := core.NewJSON(map[string]any{"variables": map[string]any{}})
	_, err := e.Render("t", ctx, nil)
	require.Error(t, err)
}

func TestEngine_UnclosedVariable(t *testing.T) {
	e := NewEngine()
	e.AddTemplate("t", core.NewJSON(map[string]any{"msg": "hi {{variables.name"}))
	ctx := core.NewJSON(map[string]any{"variables": map[string]any{"name": "x"}})
	_, err := e.Render("t", ctx, nil)
	require.Error(t, err)
}

func TestEngine_Variables(t *testing.T) {
	e := NewEngine()
	e.AddTemplate("t", core.NewJSON(map[string]any{
		"a": "{{variables.x}}",
		"b": []any{"{{variables.y}}", "static"},
	}))
	vars, err := e.Variables("t")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"variables.x", "variables.y"}, vars)
}

func TestGetValueFromPath_ArrayIndex(t *testing.T) {
	e := NewEngine()
	e.AddTemplate("t", core.NewJSON(map[string]any{
		"first": "{{items[0].name}}",
	}))
	ctx := core.NewJSON(map[string]any{
		"items": []any{
			map[string]any{"name": "first-item"},
			map[string]any{"name": "second-item"},
		},
	})
	out, err := e.Render("t", ctx, nil)
	require.NoError(t, err)
	m, _ := out.Object()
	assert.Equal(t, "first-item", m["first"])
}

func TestGetValueFromPath_JSONInStringReentry(t *testing.T) {
	e := NewEngine()
	e.AddTemplate("t", core.NewJSON(map[string]any{
		"nested": "{{actions.A0.result}}",
	}))
	ctx := core.NewJSON(map[string]any{
		"actions": map[string]any{
			"A0": map[string]any{
				"result": `{"ok":true}`,
			},
		},
	})
	out, err := e.Render("t", ctx, nil)
	require.NoError(t, err)
	m, _ := out.Object()
	inner, ok := m["nested"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, inner["ok"])
}
