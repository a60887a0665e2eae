package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcore/runner/engine/core"
	"github.com/flowcore/runner/engine/task"
	"github.com/flowcore/runner/engine/workflow"
)

func TestCache_GetOrCreate_Idempotent(t *testing.T) {
	c := NewCache()
	fsID := core.MustNewID()
	wf := &workflow.Config{ID: core.MustNewID()}

	d1 := c.GetOrCreate(fsID, wf)
	d2 := c.GetOrCreate(fsID, wf)
	assert.Same(t, d1, d2)
	assert.Equal(t, 1, c.Len())
}

func TestCache_PutAndCompletedTasks(t *testing.T) {
	c := NewCache()
	fsID := core.MustNewID()
	c.GetOrCreate(fsID, &workflow.Config{})

	running := &task.Task{TaskID: core.MustNewID(), ActionID: "A0", TaskStatus: core.StatusRunning}
	c.PutTask(fsID, running)
	assert.Empty(t, c.CompletedTasks(fsID))

	task.Complete(running, core.NewJSON(map[string]any{"ok": true}))
	c.PutTask(fsID, running)
	completed := c.CompletedTasks(fsID)
	require.Len(t, completed, 1)
	assert.Equal(t, "A0", completed[0].ActionID)
}

func TestCache_ActionCompleted(t *testing.T) {
	c := NewCache()
	fsID := core.MustNewID()
	c.GetOrCreate(fsID, &workflow.Config{})
	assert.False(t, c.ActionCompleted(fsID, "A0"))

	t0 := &task.Task{TaskID: core.MustNewID(), ActionID: "A0", TaskStatus: core.StatusCompleted}
	c.PutTask(fsID, t0)
	assert.True(t, c.ActionCompleted(fsID, "A0"))
}

func TestCache_Invalidate(t *testing.T) {
	c := NewCache()
	fsID := core.MustNewID()
	c.GetOrCreate(fsID, &workflow.Config{})
	require.Equal(t, 1, c.Len())
	c.Invalidate(fsID)
	assert.Equal(t, 0, c.Len())
	_, ok := c.Get(fsID)
	assert.False(t, ok)
}
