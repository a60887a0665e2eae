// Package session holds the flow-session cache: the hot in-memory map the
// processor, bundler and walker all read and write while a flow session is
// in flight. Authoritative in-loop state, per spec — the durable store is
// eventually consistent with it, never the other way around.
package session

import (
	"sync"

	"github.com/flowcore/runner/engine/core"
	"github.com/flowcore/runner/engine/task"
	"github.com/flowcore/runner/engine/workflow"
)

// Data is everything the cache holds for one in-flight flow session: the
// workflow definition snapshot and the task_id -> Task map.
type Data struct {
	Workflow *workflow.Config
	Tasks    map[core.ID]*task.Task
}

func newData(wf *workflow.Config) *Data {
	return &Data{
		Workflow: wf,
		Tasks:    make(map[core.ID]*task.Task),
	}
}

// Cache is the sync.RWMutex-guarded default implementation of the
// flow-session cache. The spec's exact discipline here — many concurrent
// readers, one exclusive writer at a time, idempotent session creation —
// maps directly onto sync.RWMutex with nothing left for a library to add.
type Cache struct {
	mu       sync.RWMutex
	sessions map[core.ID]*Data
}

func NewCache() *Cache {
	return &Cache{sessions: make(map[core.ID]*Data)}
}

// GetOrCreate returns the existing session data for flowSessionID, or
// creates it from wf if this is the first time the processor has observed
// a message for it. Idempotent: concurrent callers racing to create the
// same session converge on one Data.
func (c *Cache) GetOrCreate(flowSessionID core.ID, wf *workflow.Config) *Data {
	c.mu.RLock()
	d, ok := c.sessions[flowSessionID]
	c.mu.RUnlock()
	if ok {
		return d
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.sessions[flowSessionID]; ok {
		return d
	}
	d = newData(wf)
	c.sessions[flowSessionID] = d
	return d
}

// Get returns the session data for flowSessionID, or false if the session
// isn't cached (already completed/failed and invalidated, or never seen).
func (c *Cache) Get(flowSessionID core.ID) (*Data, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.sessions[flowSessionID]
	return d, ok
}

// PutTask inserts or overwrites a task in the session, keyed by task_id.
func (c *Cache) PutTask(flowSessionID core.ID, t *task.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.sessions[flowSessionID]
	if !ok {
		return
	}
	d.Tasks[t.TaskID] = t
}

// CompletedTasks returns every task in state completed for flowSessionID,
// the set exposed to the template context's `actions` namespace.
func (c *Cache) CompletedTasks(flowSessionID core.ID) []*task.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.sessions[flowSessionID]
	if !ok {
		return nil
	}
	out := make([]*task.Task, 0, len(d.Tasks))
	for _, t := range d.Tasks {
		if t.TaskStatus == core.StatusCompleted {
			out = append(out, t)
		}
	}
	return out
}

// ActionCompleted reports whether an action has already produced a
// completed task in this session (I4: each action fires at most once).
func (c *Cache) ActionCompleted(flowSessionID core.ID, actionID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.sessions[flowSessionID]
	if !ok {
		return false
	}
	for _, t := range d.Tasks {
		if t.ActionID == actionID && t.TaskStatus == core.StatusCompleted {
			return true
		}
	}
	return false
}

// HasTaskForAction reports whether any task (regardless of status) exists
// for actionID in this session — what the graph walker consults to decide
// whether a neighbor has already fired.
func (c *Cache) HasTaskForAction(flowSessionID core.ID, actionID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.sessions[flowSessionID]
	if !ok {
		return false
	}
	for _, t := range d.Tasks {
		if t.ActionID == actionID {
			return true
		}
	}
	return false
}

// ForSession returns a graph.SessionTasks view scoped to flowSessionID, for
// handing to a Walker.
func (c *Cache) ForSession(flowSessionID core.ID) *SessionView {
	return &SessionView{cache: c, flowSessionID: flowSessionID}
}

// SessionView adapts Cache to the graph package's narrow SessionTasks
// contract, so graph does not need to import session.
type SessionView struct {
	cache         *Cache
	flowSessionID core.ID
}

func (v *SessionView) HasTaskForAction(actionID string) bool {
	return v.cache.HasTaskForAction(v.flowSessionID, actionID)
}

// Invalidate evicts a flow session from the cache once its final task has
// completed or any task has failed.
func (c *Cache) Invalidate(flowSessionID core.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, flowSessionID)
}

// Len reports the number of flow sessions currently cached, used by tests
// asserting a session was invalidated at the end of a run.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}
