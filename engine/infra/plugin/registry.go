// Package plugin provides a reference PluginExecutor: a registry dispatching
// by plugin_id to a registered handler function, with a built-in echo
// plugin used by tests and local runs.
package plugin

import (
	"context"
	"fmt"
	"sync"

	"github.com/flowcore/runner/engine/core"
	"github.com/flowcore/runner/engine/task"
)

// Handler executes one task's rendered config and returns its result, or an
// error carrying the JSON error payload (see store.PluginError).
type Handler func(ctx context.Context, t *task.Task) (core.JSON, error)

// Registry implements engine/store.PluginExecutor by dispatching on the
// task's PluginID field.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[string]Handler)}
	r.Register("echo", Echo)
	return r
}

// Register installs handler under pluginID, overwriting any prior handler.
func (r *Registry) Register(pluginID string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[pluginID] = handler
}

// Execute implements engine/store.PluginExecutor, dispatching on t.PluginID
// (copied onto every task from its action at creation time).
func (r *Registry) Execute(ctx context.Context, t *task.Task) (core.JSON, error) {
	r.mu.RLock()
	handler, ok := r.handlers[t.PluginID]
	r.mu.RUnlock()
	if !ok {
		return core.Null, core.NewError(
			fmt.Errorf("no plugin registered for plugin_id %q", t.PluginID),
			core.ErrCodePlugin,
			map[string]any{"plugin_id": t.PluginID},
		)
	}
	return handler(ctx, t)
}

// Echo returns t.Config.Get("input") verbatim, or the whole config if there
// is no input namespace — useful for S4/S5-style tests and local runs that
// don't need a real side effect.
func Echo(_ context.Context, t *task.Task) (core.JSON, error) {
	if v := t.Config.Get("input"); !v.IsNull() {
		return v, nil
	}
	return t.Config, nil
}
