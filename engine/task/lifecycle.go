package task

import (
	"context"
	"fmt"
	"time"

	"github.com/flowcore/runner/engine/core"
)

// CreateTaskInput carries everything needed to allocate a new task: the
// graph position and the unrendered {variables, input} pair copied from
// the action config.
type CreateTaskInput struct {
	FlowSessionID core.ID
	// PresetTaskID, when non-zero, is used as the new task's task_id instead
	// of letting the store allocate one — the message-supplied trigger_task
	// case (spec.md §4.5 Worker step (b)).
	PresetTaskID         core.ID
	TriggerSessionID     core.ID
	ActionID             string
	PluginID             string
	ProcessingOrder      int
	Config               core.JSON
	Stage                core.Stage
	FlowSessionStatus    core.Status
	TriggerSessionStatus core.Status
}

// Persister is the narrow durable-write contract the lifecycle functions
// need. Any concrete engine/store.Store implementation satisfies it
// structurally; this package never imports engine/store to avoid a cycle
// (engine/store's own interface is expressed in terms of this package's
// types).
type Persister interface {
	CreateTask(ctx context.Context, in CreateTaskInput) (*Task, error)
}

// Create allocates a fresh task_id, sets task_status=running, started_at=now,
// result=null, and persists it before returning so the caller only ever
// holds a task the durable store has already accepted.
func Create(ctx context.Context, store Persister, in CreateTaskInput) (*Task, error) {
	t, err := store.CreateTask(ctx, in)
	if err != nil {
		return nil, core.NewError(fmt.Errorf("create task: %w", err), core.ErrCodeStore, map[string]any{
			"action_id": in.ActionID,
		})
	}
	return t, nil
}

// NewRunning builds the in-memory Task a Persister.CreateTask implementation
// should return: the canonical "just created" shape, independent of any
// particular storage backend's row layout.
func NewRunning(taskID core.ID, in CreateTaskInput) *Task {
	return &Task{
		TaskID:               taskID,
		FlowSessionID:        in.FlowSessionID,
		TriggerSessionID:     in.TriggerSessionID,
		ActionID:             in.ActionID,
		PluginID:             in.PluginID,
		ProcessingOrder:      in.ProcessingOrder,
		TaskStatus:           core.StatusRunning,
		TriggerSessionStatus: in.TriggerSessionStatus,
		FlowSessionStatus:    in.FlowSessionStatus,
		Config:               in.Config,
		Result:               core.Null,
		StartedAt:            now(),
		Stage:                in.Stage,
	}
}

// Complete marks t completed in place. The caller is responsible for
// mirroring the change to the durable store (synchronously or via a
// background writer); this function only governs the in-memory shape.
func Complete(t *Task, result core.JSON) {
	ts := now()
	t.TaskStatus = core.StatusCompleted
	t.TriggerSessionStatus = core.StatusCompleted
	t.Result = result
	t.EndedAt = &ts
}

// Fail marks t failed in place with the plugin (or core) error payload as
// its result.
func Fail(t *Task, errResult core.JSON) {
	ts := now()
	t.TaskStatus = core.StatusFailed
	t.TriggerSessionStatus = core.StatusFailed
	t.Result = errResult
	t.EndedAt = &ts
}

// MarkSessionStatus updates the flow_session_status mirrored on t without
// touching task_status. Nothing in this module calls it; the dispatcher
// writes flow-session status through the store instead.
func MarkSessionStatus(t *Task, status core.Status) {
	t.FlowSessionStatus = status
}

var now = func() time.Time { return time.Now().UTC() }
