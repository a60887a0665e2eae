package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcore/runner/engine/workflow"
)

type fakeSessionTasks map[string]bool

func (f fakeSessionTasks) HasTaskForAction(actionID string) bool {
	return f[actionID]
}

func TestWalker_Select(t *testing.T) {
	wf := &workflow.Config{
		Edges: []workflow.Edge{
			{From: "A0", To: "A1"},
			{From: "A1", To: "A2"},
		},
	}
	w := NewWalker(wf)

	next, ok, err := w.Select("A0", fakeSessionTasks{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "A1", next)

	_, ok, err = w.Select("A0", fakeSessionTasks{"A1": true})
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = w.Select("A2", fakeSessionTasks{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWalker_Select_RejectsBranching(t *testing.T) {
	wf := &workflow.Config{
		Edges: []workflow.Edge{
			{From: "A0", To: "A1"},
			{From: "A0", To: "A2"},
		},
	}
	w := NewWalker(wf)

	_, ok, err := w.Select("A0", fakeSessionTasks{})
	require.Error(t, err)
	assert.False(t, ok)
}
