package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowcore/runner/engine/core"
	"github.com/flowcore/runner/engine/task"
	"github.com/flowcore/runner/engine/workflow"
	"github.com/flowcore/runner/pkg/logger"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Store is the pgxpool-backed implementation of the DB-backed half of
// engine/store.Store: workflow definition lookup, task persistence, and
// flow-session status updates. GetDecryptedSecrets/FetchCachedAuthAccounts
// are served by engine/infra/authclient instead — composed alongside Store
// at the wiring root to satisfy the full Store contract.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil || cfg.DSN == "" {
		return nil, fmt.Errorf("postgres: DSN is required")
	}
	log := logger.FromContext(ctx)
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.HealthCheckFreq > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckFreq
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	log.Info("postgres store initialized", "max_conns", poolCfg.MaxConns)
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) HealthCheck(ctx context.Context) error {
	hctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := s.pool.Ping(hctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}

type workflowRow struct {
	WorkflowID    core.ID `db:"workflow_id"`
	FlowVersionID core.ID `db:"flow_version_id"`
	AccountID     core.ID `db:"account_id"`
	Name          string  `db:"name"`
	Published     bool    `db:"published"`
	Actions       []byte  `db:"actions"`
	Edges         []byte  `db:"edges"`
}

func (r *workflowRow) toConfig() (*workflow.Config, error) {
	var actions []workflow.Action
	if err := json.Unmarshal(r.Actions, &actions); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal actions: %w", err)
	}
	var edges []workflow.Edge
	if len(r.Edges) > 0 {
		if err := json.Unmarshal(r.Edges, &edges); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal edges: %w", err)
		}
	}
	return &workflow.Config{
		ID:        r.WorkflowID,
		VersionID: r.FlowVersionID,
		AccountID: r.AccountID,
		Name:      r.Name,
		Published: r.Published,
		Actions:   actions,
		Edges:     edges,
	}, nil
}

// GetWorkflowDefinition fetches a workflow definition by workflow_id, pinned
// to versionID when given, otherwise the most recently created version.
func (s *Store) GetWorkflowDefinition(
	ctx context.Context,
	workflowID core.ID,
	versionID *core.ID,
) (*workflow.Config, error) {
	qb := psql.Select("workflow_id", "flow_version_id", "account_id", "name", "published", "actions", "edges").
		From("workflow_definitions").
		Where(squirrel.Eq{"workflow_id": workflowID})
	if versionID != nil && !versionID.IsZero() {
		qb = qb.Where(squirrel.Eq{"flow_version_id": *versionID})
	} else {
		qb = qb.OrderBy("created_at DESC").Limit(1)
	}
	sqlStr, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: build workflow query: %w", err)
	}
	var row workflowRow
	if err := scanOne(ctx, s.pool, &row, sqlStr, args...); err != nil {
		return nil, core.NewError(
			fmt.Errorf("postgres: fetch workflow definition: %w", err),
			core.ErrCodeNotFound,
			map[string]any{"workflow_id": workflowID.String()},
		)
	}
	cfg, err := row.toConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, core.NewError(
			fmt.Errorf("postgres: workflow definition failed validation: %w", err),
			core.ErrCodeValidation,
			map[string]any{"workflow_id": workflowID.String()},
		)
	}
	return cfg, nil
}

// CreateTask allocates a task_id (or honors in.PresetTaskID) and persists
// the canonical running-task row before returning it.
func (s *Store) CreateTask(ctx context.Context, in task.CreateTaskInput) (*task.Task, error) {
	id := in.PresetTaskID
	if id.IsZero() {
		var err error
		id, err = core.NewID()
		if err != nil {
			return nil, fmt.Errorf("postgres: allocate task id: %w", err)
		}
	}
	t := task.NewRunning(id, in)
	configBytes, err := ToJSONB(t.Config.Raw())
	if err != nil {
		return nil, fmt.Errorf("postgres: marshal task config: %w", err)
	}
	resultBytes, err := ToJSONB(t.Result.Raw())
	if err != nil {
		return nil, fmt.Errorf("postgres: marshal task result: %w", err)
	}
	sqlStr, args, err := psql.Insert("tasks").
		Columns(
			"task_id", "flow_session_id", "trigger_session_id", "action_id", "plugin_id",
			"processing_order", "task_status", "trigger_session_status",
			"flow_session_status", "config", "result", "stage", "started_at",
		).
		Values(
			t.TaskID, t.FlowSessionID, t.TriggerSessionID, t.ActionID, t.PluginID,
			t.ProcessingOrder, t.TaskStatus.String(), t.TriggerSessionStatus.String(),
			t.FlowSessionStatus.String(), configBytes, resultBytes, t.Stage.String(), t.StartedAt,
		).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: build task insert: %w", err)
	}
	if _, err := s.pool.Exec(ctx, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("postgres: insert task: %w", err)
	}
	return t, nil
}

// UpdateTaskStatus mirrors a task's terminal transition to the tasks table.
func (s *Store) UpdateTaskStatus(ctx context.Context, taskID core.ID, status core.Status, result *core.JSON) error {
	qb := psql.Update("tasks").
		Set("task_status", status.String()).
		Set("ended_at", time.Now().UTC()).
		Where(squirrel.Eq{"task_id": taskID})
	if result != nil {
		b, err := ToJSONB(result.Raw())
		if err != nil {
			return fmt.Errorf("postgres: marshal task result: %w", err)
		}
		qb = qb.Set("result", b)
	}
	sqlStr, args, err := qb.ToSql()
	if err != nil {
		return fmt.Errorf("postgres: build task update: %w", err)
	}
	if _, err := s.pool.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("postgres: update task status: %w", err)
	}
	return nil
}

// UpdateFlowSessionStatus mirrors a flow session's terminal status across
// every task row belonging to it.
func (s *Store) UpdateFlowSessionStatus(
	ctx context.Context,
	flowSessionID core.ID,
	flowStatus, triggerStatus core.Status,
) error {
	sqlStr, args, err := psql.Update("tasks").
		Set("flow_session_status", flowStatus.String()).
		Set("trigger_session_status", triggerStatus.String()).
		Where(squirrel.Eq{"flow_session_id": flowSessionID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("postgres: build flow session update: %w", err)
	}
	if _, err := s.pool.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("postgres: update flow session status: %w", err)
	}
	return nil
}
