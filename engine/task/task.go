// Package task models one concrete execution of an action within a flow
// session and its lifecycle transitions (create, complete, fail).
package task

import (
	"time"

	"github.com/flowcore/runner/engine/core"
)

// Task is a concrete execution of an action within a flow session.
type Task struct {
	TaskID               core.ID     `json:"task_id"`
	FlowSessionID        core.ID     `json:"flow_session_id"`
	TriggerSessionID     core.ID     `json:"trigger_session_id"`
	ActionID             string      `json:"action_id"`
	PluginID             string      `json:"plugin_id"`
	ProcessingOrder      int         `json:"processing_order"`
	TaskStatus           core.Status `json:"task_status"`
	TriggerSessionStatus core.Status `json:"trigger_session_status"`
	FlowSessionStatus    core.Status `json:"flow_session_status"`
	Config               core.JSON   `json:"config"`
	Result               core.JSON   `json:"result"`
	StartedAt            time.Time   `json:"started_at"`
	EndedAt              *time.Time  `json:"ended_at,omitempty"`
	Stage                core.Stage  `json:"stage"`
}

// IsTerminal reports whether the task has reached completed or failed.
func (t *Task) IsTerminal() bool {
	return t.TaskStatus.IsTerminal()
}
