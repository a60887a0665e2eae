// Package store declares the flow core's external-interface contracts: the
// durable store, the secrets/accounts providers, and the plugin executor.
// Concrete adapters live under engine/infra/*; this package only names the
// shapes so the core never imports a specific backend.
package store

import (
	"context"

	"github.com/flowcore/runner/engine/core"
	"github.com/flowcore/runner/engine/task"
	"github.com/flowcore/runner/engine/workflow"
)

// Secret is one decrypted secret belonging to an account.
type Secret struct {
	SecretName  string `json:"secret_name"`
	SecretValue string `json:"secret_value"`
}

// Account is one cached auth account belonging to an account_id, keyed in
// the render context by its provider slug.
type Account struct {
	AccountAuthProviderAccountSlug string    `json:"auth_provider_account_slug"`
	Value                          core.JSON `json:"value"`
}

// Store is the durable store contract: workflow definition lookup, task
// persistence, and flow-session status updates, plus the secrets/accounts
// providers the context bundler fans out to.
type Store interface {
	GetWorkflowDefinition(ctx context.Context, workflowID core.ID, versionID *core.ID) (*workflow.Config, error)
	CreateTask(ctx context.Context, in task.CreateTaskInput) (*task.Task, error)
	UpdateTaskStatus(ctx context.Context, taskID core.ID, status core.Status, result *core.JSON) error
	UpdateFlowSessionStatus(ctx context.Context, flowSessionID core.ID, flowStatus, triggerStatus core.Status) error
	GetDecryptedSecrets(ctx context.Context, accountID core.ID) ([]Secret, error)
	FetchCachedAuthAccounts(ctx context.Context, accountID core.ID, refreshAuth bool) ([]Account, error)
}

// PluginExecutor dispatches a task to the plugin named by its action's
// plugin_id. Err(e) supplies the JSON error payload stored as the failed
// task's result; Ok(v) supplies the completed task's result.
type PluginExecutor interface {
	Execute(ctx context.Context, t *task.Task) (core.JSON, error)
}

// PluginError carries a plugin's own JSON error payload verbatim, so it
// lands as the failed task's result unwrapped — distinct from a core-raised
// *core.Error, whose {message, code, details} shape is the payload instead.
type PluginError struct {
	Payload core.JSON
}

func (e *PluginError) Error() string {
	if s, ok := e.Payload.String(); ok {
		return s
	}
	return "plugin error"
}
