package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcore/runner/engine/core"
)

func validConfig() *Config {
	return &Config{
		ID:        core.MustNewID(),
		VersionID: core.MustNewID(),
		AccountID: core.MustNewID(),
		Name:      "order-flow",
		Published: true,
		Actions: []Action{
			{ID: "A0", Type: core.ActionTrigger, PluginID: "trigger.webhook"},
			{ID: "A1", Type: core.ActionAction, PluginID: "http.request"},
		},
		Edges: []Edge{{From: "A0", To: "A1"}},
	}
}

func TestConfig_Validate_OK(t *testing.T) {
	c := validConfig()
	require.NoError(t, c.Validate())
}

func TestConfig_Validate_RejectsBranching(t *testing.T) {
	c := validConfig()
	c.Actions = append(c.Actions, Action{ID: "A2", Type: core.ActionAction, PluginID: "http.request"})
	c.Edges = append(c.Edges, Edge{From: "A0", To: "A2"})
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "branching")
}

func TestConfig_Validate_RequiresExactlyOneTrigger(t *testing.T) {
	c := validConfig()
	c.Actions[0].Type = core.ActionAction
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trigger")
}

func TestConfig_Validate_RejectsDuplicateIDs(t *testing.T) {
	c := validConfig()
	c.Actions[1].ID = "A0"
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestConfig_Validate_RejectsDanglingEdge(t *testing.T) {
	c := validConfig()
	c.Edges = []Edge{{From: "A0", To: "ghost"}}
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action")
}

func TestConfig_NextAndTrigger(t *testing.T) {
	c := validConfig()
	trig, ok := c.Trigger()
	require.True(t, ok)
	assert.Equal(t, "A0", trig.ID)

	next, ok := c.Next("A0")
	require.True(t, ok)
	assert.Equal(t, "A1", next)

	_, ok = c.Next("A1")
	assert.False(t, ok)
}

func TestConfig_Stage(t *testing.T) {
	c := validConfig()
	assert.Equal(t, core.StageProduction, c.Stage())
	c.Published = false
	assert.Equal(t, core.StageTesting, c.Stage())
}
