package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/flowcore/runner/engine/core"
	bundler "github.com/flowcore/runner/engine/context"
	"github.com/flowcore/runner/engine/graph"
	"github.com/flowcore/runner/engine/session"
	"github.com/flowcore/runner/engine/store"
	"github.com/flowcore/runner/engine/task"
	"github.com/flowcore/runner/engine/workflow"
	"github.com/flowcore/runner/pkg/logger"
)

// Config controls the dispatcher's resource bounds.
type Config struct {
	// MaxConcurrentSessions bounds how many flow sessions run at once
	// (the global semaphore of spec.md §4.5).
	MaxConcurrentSessions int64
	// BackgroundWriters is the fixed size of the async DB-write pool.
	BackgroundWriters int
	// BackgroundQueueSize bounds how many pending writes may queue before
	// Submit blocks.
	BackgroundQueueSize int
}

func DefaultConfig() Config {
	return Config{MaxConcurrentSessions: 50, BackgroundWriters: 8, BackgroundQueueSize: 256}
}

// Dispatcher is the processor's C5 component: it receives Messages off an
// inbound channel and drives each flow session to completion (C6),
// enforcing the global concurrency bound and admission de-duplication.
type Dispatcher struct {
	Store    store.Store
	Executor store.PluginExecutor
	Sessions *session.Cache
	Bundler  *bundler.Bundler
	Active   ActiveSet

	sem *semaphore.Weighted
	bg  *bgWriter
	log logger.Logger
	wg  sync.WaitGroup
}

func NewDispatcher(
	st store.Store,
	exec store.PluginExecutor,
	sessions *session.Cache,
	bn *bundler.Bundler,
	cfg Config,
	log logger.Logger,
) *Dispatcher {
	if log == nil {
		log = logger.FromContext(context.Background())
	}
	return &Dispatcher{
		Store:    st,
		Executor: exec,
		Sessions: sessions,
		Bundler:  bn,
		Active:   NewActiveSet(),
		sem:      semaphore.NewWeighted(cfg.MaxConcurrentSessions),
		bg:       newBgWriter(cfg.BackgroundWriters, cfg.BackgroundQueueSize, log),
		log:      log,
	}
}

// Run consumes messages until the channel closes or ctx is canceled,
// admitting each onto its own worker goroutine. It blocks until every
// admitted worker has exited.
func (d *Dispatcher) Run(ctx context.Context, messages <-chan Message) {
	for {
		select {
		case <-ctx.Done():
			d.wg.Wait()
			return
		case msg, ok := <-messages:
			if !ok {
				d.wg.Wait()
				return
			}
			d.admit(ctx, msg)
		}
	}
}

// Shutdown waits for in-flight sessions to drain, then closes the
// background-writer pool, guaranteeing every accepted async write has run
// before returning.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	d.bg.Close()
	return nil
}

func (d *Dispatcher) admit(ctx context.Context, msg Message) {
	if !d.Active.TryAdd(msg.FlowSessionID) {
		d.log.Info("duplicate flow session discarded", "flow_session_id", msg.FlowSessionID.String())
		return
	}
	if err := d.sem.Acquire(ctx, 1); err != nil {
		d.Active.Remove(msg.FlowSessionID)
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.sem.Release(1)
		defer d.Active.Remove(msg.FlowSessionID)
		defer d.Sessions.Invalidate(msg.FlowSessionID)
		d.runSession(ctx, msg)
	}()
}

func (d *Dispatcher) runSession(ctx context.Context, msg Message) {
	wf, err := d.resolveWorkflow(ctx, msg)
	if err != nil {
		d.log.Error("resolve workflow definition failed", "error", err, "flow_session_id", msg.FlowSessionID.String())
		return
	}
	d.Sessions.GetOrCreate(msg.FlowSessionID, wf)

	current, err := d.createTriggerTask(ctx, wf, msg)
	if err != nil {
		d.log.Error("create trigger task failed", "error", err, "flow_session_id", msg.FlowSessionID.String())
		return
	}
	d.Sessions.PutTask(msg.FlowSessionID, current)

	walker := graph.NewWalker(wf)
	order := current.ProcessingOrder
	for current != nil {
		rendered, rerr := d.renderTask(ctx, wf, current)
		if rerr != nil {
			d.failTask(current, errorPayload(rerr))
			break
		}
		result, execErr := d.Executor.Execute(ctx, rendered)
		if execErr != nil {
			d.failTask(current, errorPayload(execErr))
			break
		}
		task.Complete(current, result)
		d.Sessions.PutTask(msg.FlowSessionID, current)
		d.submitTaskWrite(current.TaskID, core.StatusCompleted, result)

		next, ok, walkErr := walker.Select(current.ActionID, d.Sessions.ForSession(msg.FlowSessionID))
		if walkErr != nil {
			d.log.Error("graph walk failed", "error", walkErr, "action_id", current.ActionID)
			break
		}
		if !ok {
			d.submitFlowWrite(msg.FlowSessionID, core.StatusCompleted)
			current = nil
			break
		}

		nextAction, _ := wf.ActionByID(next)
		order++
		newTask, cerr := task.Create(ctx, d.Store, task.CreateTaskInput{
			FlowSessionID:        msg.FlowSessionID,
			TriggerSessionID:     core.MustNewID(),
			ActionID:             nextAction.ID,
			PluginID:             nextAction.PluginID,
			ProcessingOrder:      order,
			Config:               actionConfig(nextAction),
			Stage:                wf.Stage(),
			FlowSessionStatus:    core.StatusPending,
			TriggerSessionStatus: core.StatusPending,
		})
		if cerr != nil {
			d.log.Error("create next task failed", "error", cerr, "action_id", nextAction.ID)
			break
		}
		d.Sessions.PutTask(msg.FlowSessionID, newTask)
		current = newTask
	}
}

// resolveWorkflow resolves the workflow definition cache-then-DB. It does
// not write the cache; runSession seeds it with GetOrCreate afterwards.
func (d *Dispatcher) resolveWorkflow(ctx context.Context, msg Message) (*workflow.Config, error) {
	if data, ok := d.Sessions.Get(msg.FlowSessionID); ok {
		return data.Workflow, nil
	}
	return d.Store.GetWorkflowDefinition(ctx, msg.WorkflowID, msg.VersionID)
}

// createTriggerTask materializes processing_order=0: the message's
// pre-built trigger task if supplied, otherwise one synthesized from the
// workflow's trigger action.
func (d *Dispatcher) createTriggerTask(ctx context.Context, wf *workflow.Config, msg Message) (*task.Task, error) {
	trigger, ok := wf.Trigger()
	if !ok {
		return nil, core.NewError(fmt.Errorf("workflow %s has no trigger action", wf.ID), core.ErrCodeGraph, nil)
	}
	triggerSessionID := core.MustNewID()
	in := task.CreateTaskInput{
		FlowSessionID:        msg.FlowSessionID,
		TriggerSessionID:     triggerSessionID,
		ActionID:             trigger.ID,
		PluginID:             trigger.PluginID,
		ProcessingOrder:      0,
		Config:               actionConfig(trigger),
		Stage:                wf.Stage(),
		FlowSessionStatus:    core.StatusRunning,
		TriggerSessionStatus: core.StatusRunning,
	}
	if msg.TriggerTask != nil {
		in.PresetTaskID = msg.TriggerTask.TaskID
		in.Config = msg.TriggerTask.Config
	}
	return task.Create(ctx, d.Store, in)
}

// renderTask bundles the current task's action config into a rendered
// shallow copy for the plugin call, leaving the canonical (unrendered) task
// untouched in the cache.
func (d *Dispatcher) renderTask(ctx context.Context, wf *workflow.Config, t *task.Task) (*task.Task, error) {
	action, ok := wf.ActionByID(t.ActionID)
	if !ok {
		return nil, core.NewError(fmt.Errorf("unknown action %q", t.ActionID), core.ErrCodeGraph, nil)
	}
	rendered, err := d.Bundler.Bundle(ctx, wf.AccountID, t.FlowSessionID, action.Variables, action.Input, false)
	if err != nil {
		return nil, err
	}
	cp := *t
	cp.Config = rendered
	return &cp, nil
}

func (d *Dispatcher) failTask(t *task.Task, errPayload core.JSON) {
	task.Fail(t, errPayload)
	d.Sessions.PutTask(t.FlowSessionID, t)
	d.submitTaskWrite(t.TaskID, core.StatusFailed, errPayload)
	d.submitFlowWrite(t.FlowSessionID, core.StatusFailed)
}

func (d *Dispatcher) submitTaskWrite(taskID core.ID, status core.Status, result core.JSON) {
	d.bg.Submit(func() {
		if err := d.Store.UpdateTaskStatus(context.Background(), taskID, status, &result); err != nil {
			d.log.Error("persist task status failed", "error", err, "task_id", taskID.String())
		}
	})
}

func (d *Dispatcher) submitFlowWrite(flowSessionID core.ID, status core.Status) {
	d.bg.Submit(func() {
		if err := d.Store.UpdateFlowSessionStatus(context.Background(), flowSessionID, status, status); err != nil {
			d.log.Error("persist flow session status failed", "error", err, "flow_session_id", flowSessionID.String())
		}
	})
}

func actionConfig(a *workflow.Action) core.JSON {
	return core.NewJSON(map[string]any{
		"variables": a.Variables.Raw(),
		"input":     a.Input.Raw(),
	})
}

func errorPayload(err error) core.JSON {
	var pluginErr *store.PluginError
	if errors.As(err, &pluginErr) {
		return pluginErr.Payload
	}
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		return core.NewJSON(coreErr.AsMap())
	}
	return core.NewJSON(map[string]any{"message": err.Error()})
}
