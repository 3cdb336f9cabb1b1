package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/mentraflow/mentraflow/pkg/register"
	"github.com/mentraflow/mentraflow/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.AgentRunStore = NewAgentRunStore(provider)
	})
}

// AgentRunStore 处理 agent 任务表的操作
type AgentRunStore struct {
	CommonFields
}

func NewAgentRunStore(provider SqlProviderAchieve) *AgentRunStore {
	store := &AgentRunStore{}
	store.SetProvider(provider)
	store.SetTable(types.TABLE_AGENT_RUN)
	store.SetAllColumns("id", "workspace_id", "user_id", "agent_name", "status", "input", "output", "error", "steps", "started_at", "finished_at", "created_at", "updated_at")
	return store
}

func (s *AgentRunStore) Create(ctx context.Context, data types.AgentRun) error {
	if data.CreatedAt == 0 {
		data.CreatedAt = time.Now().Unix()
	}
	if data.UpdatedAt == 0 {
		data.UpdatedAt = time.Now().Unix()
	}
	if data.Status == "" {
		data.Status = types.RUN_STATUS_QUEUED
	}
	if len(data.Input) == 0 {
		data.Input = []byte("{}")
	}
	if len(data.Output) == 0 {
		data.Output = []byte("{}")
	}
	if len(data.Steps) == 0 {
		data.Steps = []byte("[]")
	}

	query := sq.Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.ID, data.WorkspaceID, data.UserID, data.AgentName, data.Status, data.Input, data.Output, data.Error, data.Steps, data.StartedAt, data.FinishedAt, data.CreatedAt, data.UpdatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *AgentRunStore) Get(ctx context.Context, workspaceID, id string) (*types.AgentRun, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"workspace_id": workspaceID, "id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.AgentRun
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *AgentRunStore) List(ctx context.Context, opts types.GetAgentRunsOptions, page, pageSize uint64) ([]types.AgentRun, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).OrderBy("created_at DESC")
	opts.Apply(&query)

	if page != 0 || pageSize != 0 {
		query = query.Limit(pageSize).Offset((page - 1) * pageSize)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.AgentRun
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

// MarkRunning 仅当任务处于 queued 时流转为 running，
// 竞争失败（已被其他 worker 认领）返回 sql.ErrNoRows
func (s *AgentRunStore) MarkRunning(ctx context.Context, id string) error {
	now := time.Now().Unix()
	query := sq.Update(s.GetTable()).
		Set("status", types.RUN_STATUS_RUNNING).
		Set("started_at", now).
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "status": types.RUN_STATUS_QUEUED})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	result, err := s.GetMaster(ctx).Exec(queryString, args...)
	if err != nil {
		return err
	}
	if affected, err := result.RowsAffected(); err != nil {
		return err
	} else if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Touch 刷新 running 任务的活动时间，作为心跳避免慢任务被僵死回收误判
func (s *AgentRunStore) Touch(ctx context.Context, id string) error {
	query := sq.Update(s.GetTable()).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"id": id, "status": types.RUN_STATUS_RUNNING})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

// MarkFinished 仅当任务处于 running 时写入终态，终态不可再变更
func (s *AgentRunStore) MarkFinished(ctx context.Context, id string, status types.RunStatus, output json.RawMessage, errMsg string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("mark finished requires a terminal status, got %s", status)
	}
	if len(output) == 0 {
		output = []byte("{}")
	}

	now := time.Now().Unix()
	query := sq.Update(s.GetTable()).
		Set("status", status).
		Set("output", output).
		Set("error", errMsg).
		Set("finished_at", now).
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "status": types.RUN_STATUS_RUNNING})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	result, err := s.GetMaster(ctx).Exec(queryString, args...)
	if err != nil {
		return err
	}
	if affected, err := result.RowsAffected(); err != nil {
		return err
	} else if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AppendStep 通过 jsonb 拼接原子追加步骤，不读旧值，避免并发覆盖
func (s *AgentRunStore) AppendStep(ctx context.Context, id string, step types.RunStep) error {
	if step.Timestamp == 0 {
		step.Timestamp = time.Now().Unix()
	}
	raw, err := json.Marshal(step)
	if err != nil {
		return err
	}

	query := sq.Update(s.GetTable()).
		Set("steps", sq.Expr("coalesce(steps, '[]'::jsonb) || ?::jsonb", string(raw))).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

// HasActive 判断文档是否已有同类任务在排队或执行
func (s *AgentRunStore) HasActive(ctx context.Context, workspaceID string, agentName types.AgentName, documentID string) (bool, error) {
	query := sq.Select("COUNT(*)").From(s.GetTable()).
		Where(sq.Eq{"workspace_id": workspaceID, "agent_name": agentName}).
		Where(sq.Eq{"status": []types.RunStatus{types.RUN_STATUS_QUEUED, types.RUN_STATUS_RUNNING}}).
		Where(sq.Expr("input->>'document_id' = ?", documentID))

	queryString, args, err := query.ToSql()
	if err != nil {
		return false, ErrorSqlBuild(err)
	}

	var count int64
	if err = s.GetReplica(ctx).Get(&count, queryString, args...); err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListQueued 按入队顺序列出排队中的任务
func (s *AgentRunStore) ListQueued(ctx context.Context, limit uint64) ([]types.AgentRun, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"status": types.RUN_STATUS_QUEUED}).
		OrderBy("created_at ASC, id ASC").
		Limit(limit)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.AgentRun
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

// ListStale 列出最近活动时间早于 deadline 且仍在 running 的任务，用于实例崩溃后回收。
// 执行中的任务通过 Touch 与步骤日志刷新 updated_at，活着的慢任务不会被误回收
func (s *AgentRunStore) ListStale(ctx context.Context, deadline int64, limit uint64) ([]types.AgentRun, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"status": types.RUN_STATUS_RUNNING}).
		Where(sq.Lt{"updated_at": deadline}).
		OrderBy("updated_at ASC").
		Limit(limit)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.AgentRun
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

// Requeue 将 running 任务重置回 queued
func (s *AgentRunStore) Requeue(ctx context.Context, id string) error {
	query := sq.Update(s.GetTable()).
		Set("status", types.RUN_STATUS_QUEUED).
		Set("started_at", 0).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"id": id, "status": types.RUN_STATUS_RUNNING})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}
