// Package processor implements the dispatcher loop (C5) and wires it to
// the task lifecycle (C6): the sole entry point that receives workflow-run
// requests, bounds global concurrency, and drives each flow session to
// completion.
package processor

import (
	"github.com/flowcore/runner/engine/core"
)

// TriggerTask is a pre-built trigger task carried on a ProcessorMessage,
// used when the submitter has already materialized the first task rather
// than leaving the dispatcher to synthesize one from the trigger action.
type TriggerTask struct {
	TaskID core.ID   `json:"task_id"`
	Config core.JSON `json:"config"`
}

// Message is the sole inbound payload the dispatcher accepts.
type Message struct {
	WorkflowID    core.ID      `json:"workflow_id"`
	VersionID     *core.ID     `json:"version_id,omitempty"`
	FlowSessionID core.ID      `json:"flow_session_id"`
	TriggerTask   *TriggerTask `json:"trigger_task,omitempty"`
}
