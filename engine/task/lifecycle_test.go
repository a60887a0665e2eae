package task

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcore/runner/engine/core"
)

type fakePersister struct {
	created *Task
	err     error
}

func (f *fakePersister) CreateTask(_ context.Context, in CreateTaskInput) (*Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = NewRunning(core.MustNewID(), in)
	return f.created, nil
}

func TestCreate(t *testing.T) {
	p := &fakePersister{}
	in := CreateTaskInput{
		FlowSessionID: core.MustNewID(),
		ActionID:      "A0",
		Stage:         core.StageProduction,
	}
	got, err := Create(context.Background(), p, in)
	require.NoError(t, err)
	assert.Equal(t, core.StatusRunning, got.TaskStatus)
	assert.True(t, got.Result.IsNull())
	assert.False(t, got.StartedAt.IsZero())
}

func TestComplete(t *testing.T) {
	tk := NewRunning(core.MustNewID(), CreateTaskInput{ActionID: "A0"})
	Complete(tk, core.NewJSON(map[string]any{"ok": true}))
	assert.Equal(t, core.StatusCompleted, tk.TaskStatus)
	assert.Equal(t, core.StatusCompleted, tk.TriggerSessionStatus)
	require.NotNil(t, tk.EndedAt)
	m, ok := tk.Result.Object()
	require.True(t, ok)
	assert.Equal(t, true, m["ok"])
}

func TestFail(t *testing.T) {
	tk := NewRunning(core.MustNewID(), CreateTaskInput{ActionID: "A0"})
	Fail(tk, core.NewJSON(map[string]any{"reason": "boom"}))
	assert.Equal(t, core.StatusFailed, tk.TaskStatus)
	assert.Equal(t, core.StatusFailed, tk.TriggerSessionStatus)
	require.NotNil(t, tk.EndedAt)
}
