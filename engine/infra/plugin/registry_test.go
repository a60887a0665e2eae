package plugin_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcore/runner/engine/core"
	"github.com/flowcore/runner/engine/infra/plugin"
	"github.com/flowcore/runner/engine/task"
)

func TestRegistry_Echo(t *testing.T) {
	r := plugin.NewRegistry()
	tk := &task.Task{
		PluginID: "echo",
		Config:   core.NewJSON(map[string]any{"input": map[string]any{"greeting": "hi"}}),
	}
	result, err := r.Execute(context.Background(), tk)
	require.NoError(t, err)
	m, ok := result.Object()
	require.True(t, ok)
	assert.Equal(t, "hi", m["greeting"])
}

func TestRegistry_UnknownPluginID(t *testing.T) {
	r := plugin.NewRegistry()
	tk := &task.Task{PluginID: "does.not.exist"}
	_, err := r.Execute(context.Background(), tk)
	assert.Error(t, err)
}

func TestRegistry_Register(t *testing.T) {
	r := plugin.NewRegistry()
	r.Register("custom", func(_ context.Context, t *task.Task) (core.JSON, error) {
		return core.NewJSON(map[string]any{"handled_by": "custom"}), nil
	})
	result, err := r.Execute(context.Background(), &task.Task{PluginID: "custom"})
	require.NoError(t, err)
	m, ok := result.Object()
	require.True(t, ok)
	assert.Equal(t, "custom", m["handled_by"])
}
