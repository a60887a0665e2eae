// Package context bundles the dynamic render context a task's {variables,
// input} pair is rendered against: decrypted secrets, cached auth accounts,
// and completed prior-task results for the flow session, fetched
// concurrently, plus a system namespace and the rendered variables
// themselves nested under "variables" for the input render pass.
package context

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flowcore/runner/engine/core"
	"github.com/flowcore/runner/engine/session"
	"github.com/flowcore/runner/engine/store"
	"github.com/flowcore/runner/engine/task"
	"github.com/flowcore/runner/engine/template"
)

// SecretsProvider fetches an account's decrypted secrets.
type SecretsProvider interface {
	GetDecryptedSecrets(ctx context.Context, accountID core.ID) ([]store.Secret, error)
}

// AccountsProvider fetches an account's cached auth accounts.
type AccountsProvider interface {
	FetchCachedAuthAccounts(ctx context.Context, accountID core.ID, refreshAuth bool) ([]store.Account, error)
}

// Bundler assembles the render context for a task's variables and input.
type Bundler struct {
	Secrets  SecretsProvider
	Accounts AccountsProvider
	Sessions *session.Cache
}

func NewBundler(secrets SecretsProvider, accounts AccountsProvider, sessions *session.Cache) *Bundler {
	return &Bundler{Secrets: secrets, Accounts: accounts, Sessions: sessions}
}

// systemVariables returns the `system` namespace exposed to every render
// context.
func systemVariables() map[string]any {
	return map[string]any{
		"now": time.Now().UTC().Format(time.RFC3339),
	}
}

// bundleCachedVariables issues the three concurrent fetches (secrets,
// accounts, completed prior tasks) required to render an action's
// `variables` block, then renders it.
func (b *Bundler) bundleCachedVariables(
	ctx context.Context,
	accountID core.ID,
	flowSessionID core.ID,
	variablesConfig core.JSON,
	refreshAuth bool,
) (core.JSON, error) {
	var secretsResult []store.Secret
	var accountsResult []store.Account

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := b.Secrets.GetDecryptedSecrets(gctx, accountID)
		if err != nil {
			return core.NewError(err, core.ErrCodeBundler, map[string]any{"stage": "secrets"})
		}
		secretsResult = s
		return nil
	})
	g.Go(func() error {
		a, err := b.Accounts.FetchCachedAuthAccounts(gctx, accountID, refreshAuth)
		if err != nil {
			return core.NewError(err, core.ErrCodeBundler, map[string]any{"stage": "accounts"})
		}
		accountsResult = a
		return nil
	})
	var completed []*task.Task
	g.Go(func() error {
		completed = b.Sessions.CompletedTasks(flowSessionID)
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.Null, err
	}

	accounts := make(map[string]any, len(accountsResult))
	for _, a := range accountsResult {
		accounts[a.AccountAuthProviderAccountSlug] = a.Value.Raw()
	}
	secrets := make(map[string]any, len(secretsResult))
	for _, s := range secretsResult {
		secrets[s.SecretName] = s.SecretValue
	}
	actions := make(map[string]any, len(completed))
	for _, t := range completed {
		actions[t.ActionID] = taskSerialization(t)
	}

	renderCtx := core.NewJSON(map[string]any{
		"accounts": accounts,
		"secrets":  secrets,
		"actions":  actions,
		"system":   systemVariables(),
	})

	if variablesConfig.IsNull() {
		return core.NewJSON(map[string]any{}), nil
	}

	eng := template.NewEngine()
	eng.AddTemplate("variables", variablesConfig)
	return eng.Render("variables", renderCtx, nil)
}

// taskSerialization is the full prior-task serialization exposed under
// `actions.<action_id>` — only tasks in state completed are ever passed in,
// per the bundler's contract.
func taskSerialization(t *task.Task) map[string]any {
	return map[string]any{
		"task_id":          t.TaskID.String(),
		"action_id":        t.ActionID,
		"processing_order": t.ProcessingOrder,
		"task_status":      t.TaskStatus.String(),
		"result":           t.Result.Raw(),
		"started_at":       t.StartedAt,
		"ended_at":         t.EndedAt,
	}
}

// bundleInputs renders the action's `input` block, with the rendered
// variables output nested under the `variables` namespace.
func bundleInputs(renderedVariables, inputsConfig core.JSON) (core.JSON, error) {
	renderCtx := core.NewJSON(map[string]any{"variables": renderedVariables.Raw()})
	if inputsConfig.IsNull() {
		return core.NewJSON(map[string]any{}), nil
	}
	eng := template.NewEngine()
	eng.AddTemplate("input", inputsConfig)
	return eng.Render("input", renderCtx, nil)
}

// Bundle renders a task's full context: its action's variables/input pair
// against decrypted secrets, cached accounts, and completed prior tasks.
func (b *Bundler) Bundle(
	ctx context.Context,
	accountID core.ID,
	flowSessionID core.ID,
	variablesConfig core.JSON,
	inputsConfig core.JSON,
	refreshAuth bool,
) (core.JSON, error) {
	rendered, err := b.bundleCachedVariables(ctx, accountID, flowSessionID, variablesConfig, refreshAuth)
	if err != nil {
		return core.Null, err
	}
	return bundleInputs(rendered, inputsConfig)
}
