// Package graph implements the deterministic single-path walk over a
// workflow's action graph: given a just-completed task, select the next
// action to run, or report the session complete.
package graph

import (
	"fmt"

	"github.com/flowcore/runner/engine/core"
	"github.com/flowcore/runner/engine/workflow"
)

// SessionTasks reports, for an action_id, whether a task already exists for
// it in the session — the set the walker consults to avoid re-visiting an
// action that already fired (and to detect convergence at a join point).
type SessionTasks interface {
	HasTaskForAction(actionID string) bool
}

// Walker selects the next action to execute after a task completes, built
// once per session from the workflow definition's edge list.
type Walker struct {
	adjacency map[string][]string
}

// NewWalker builds the action_id -> next action_ids adjacency map from wf's
// edges. Load-time validation (workflow.Config.Validate) already rejects any
// action with more than one outgoing edge, so each list should have at most
// one element; Select still re-checks this defensively.
func NewWalker(wf *workflow.Config) *Walker {
	adjacency := make(map[string][]string)
	for _, e := range wf.Edges {
		adjacency[e.From] = append(adjacency[e.From], e.To)
	}
	return &Walker{adjacency: adjacency}
}

// Select returns the next action to run after actionID completes, false if
// the workflow is complete (no neighbor, or every neighbor already has a
// task in the session), or an error if actionID has more than one outgoing
// edge — a defensive re-check of the no-branching invariant (I3) that
// Validate should already have rejected at load time.
func (w *Walker) Select(actionID string, tasks SessionTasks) (string, bool, error) {
	neighbors, ok := w.adjacency[actionID]
	if !ok || len(neighbors) == 0 {
		return "", false, nil
	}
	if len(neighbors) > 1 {
		return "", false, core.NewError(
			fmt.Errorf("action %q has %d outgoing edges, branching is not supported", actionID, len(neighbors)),
			core.ErrCodeGraph,
			map[string]any{"action_id": actionID},
		)
	}
	next := neighbors[0]
	if tasks.HasTaskForAction(next) {
		return "", false, nil
	}
	return next, true, nil
}
