// Package workflow holds the workflow definition model: actions, edges, and
// the graph-shape validation the processor relies on at load time.
package workflow

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/flowcore/runner/engine/core"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Action is one node of a workflow graph: the unrendered {variables, input}
// pair the template engine will later render against a task's bundled
// context.
type Action struct {
	ID        string          `json:"action_id"    validate:"required"`
	Label     string          `json:"label"`
	Type      core.ActionType `json:"action_type"  validate:"required"`
	PluginID  string          `json:"plugin_id"    validate:"required"`
	Variables core.JSON       `json:"variables"`
	Input     core.JSON       `json:"input"`
}

// Edge is a directed connection between two actions by ID.
type Edge struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to"   validate:"required"`
}

// Config is one version of a workflow definition, as fetched from the
// store by workflow_id (+ optional version).
type Config struct {
	ID        core.ID  `json:"workflow_id"     validate:"required"`
	VersionID core.ID  `json:"flow_version_id" validate:"required"`
	AccountID core.ID  `json:"account_id"      validate:"required"`
	Name      string   `json:"name"`
	Published bool     `json:"published"`
	Actions   []Action `json:"actions" validate:"required,min=1,dive"`
	Edges     []Edge   `json:"edges"   validate:"dive"`
}

func (c *Config) Stage() core.Stage {
	return core.StageFromPublished(c.Published)
}

// ActionByID returns the action with the given ID, or false if absent.
func (c *Config) ActionByID(id string) (*Action, bool) {
	for i := range c.Actions {
		if c.Actions[i].ID == id {
			return &c.Actions[i], true
		}
	}
	return nil, false
}

// Trigger returns the workflow's single trigger action.
func (c *Config) Trigger() (*Action, bool) {
	for i := range c.Actions {
		if c.Actions[i].Type == core.ActionTrigger {
			return &c.Actions[i], true
		}
	}
	return nil, false
}

// outgoing builds action_id -> next action_id for every edge that leaves
// that action. It is also used directly by Validate to police the
// single-outgoing-edge invariant.
func (c *Config) outgoing() map[string][]string {
	out := make(map[string][]string, len(c.Actions))
	for _, e := range c.Edges {
		out[e.From] = append(out[e.From], e.To)
	}
	return out
}

// Next returns the single action that follows actionID, or false if
// actionID is a terminal node (no outgoing edge).
func (c *Config) Next(actionID string) (string, bool) {
	for _, e := range c.Edges {
		if e.From == actionID {
			return e.To, true
		}
	}
	return "", false
}

// Validate enforces the data-model invariants plus the graph-shape
// invariant resolved for this build's Open Question: branching (an action
// with more than one outgoing edge) is rejected at load time rather than
// left for the walker to arbitrate.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return core.NewError(err, core.ErrCodeValidation, nil)
	}
	seen := make(map[string]bool, len(c.Actions))
	triggers := 0
	for _, a := range c.Actions {
		if seen[a.ID] {
			return core.NewError(
				fmt.Errorf("duplicate action id %q", a.ID),
				core.ErrCodeValidation,
				map[string]any{"action_id": a.ID},
			)
		}
		seen[a.ID] = true
		if !a.Type.Valid() {
			return core.NewError(
				fmt.Errorf("action %q has invalid action_type %q", a.ID, a.Type),
				core.ErrCodeValidation,
				map[string]any{"action_id": a.ID},
			)
		}
		if a.Type == core.ActionTrigger {
			triggers++
		}
	}
	if triggers != 1 {
		return core.NewError(
			fmt.Errorf("workflow must have exactly one trigger action, found %d", triggers),
			core.ErrCodeValidation,
			nil,
		)
	}
	out := c.outgoing()
	for actionID, targets := range out {
		if len(targets) > 1 {
			return core.NewError(
				fmt.Errorf("action %q has %d outgoing edges: branching workflows are not supported", actionID, len(targets)),
				core.ErrCodeGraph,
				map[string]any{"action_id": actionID},
			)
		}
	}
	for _, e := range c.Edges {
		if _, ok := seen[e.From]; !ok {
			return core.NewError(
				fmt.Errorf("edge references unknown action %q", e.From),
				core.ErrCodeValidation,
				nil,
			)
		}
		if _, ok := seen[e.To]; !ok {
			return core.NewError(
				fmt.Errorf("edge references unknown action %q", e.To),
				core.ErrCodeValidation,
				nil,
			)
		}
	}
	return nil
}
