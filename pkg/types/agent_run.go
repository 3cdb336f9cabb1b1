package types

import (
	"encoding/json"

	sq "github.com/Masterminds/squirrel"
)

type AgentName string

const (
	AGENT_INGESTION     AgentName = "ingestion"
	AGENT_STUDY_CHAT    AgentName = "study_chat"
	AGENT_SUMMARY       AgentName = "summary"
	AGENT_FLASHCARD     AgentName = "flashcard"
	AGENT_KG_EXTRACTION AgentName = "kg_extraction"
)

func (a AgentName) Valid() bool {
	switch a {
	case AGENT_INGESTION, AGENT_STUDY_CHAT, AGENT_SUMMARY, AGENT_FLASHCARD, AGENT_KG_EXTRACTION:
		return true
	default:
		return false
	}
}

type RunStatus string

const (
	RUN_STATUS_QUEUED    RunStatus = "queued"
	RUN_STATUS_RUNNING   RunStatus = "running"
	RUN_STATUS_SUCCEEDED RunStatus = "succeeded"
	RUN_STATUS_FAILED    RunStatus = "failed"
)

func (s RunStatus) IsTerminal() bool {
	return s == RUN_STATUS_SUCCEEDED || s == RUN_STATUS_FAILED
}

const (
	STEP_STATUS_STARTED   = "started"
	STEP_STATUS_COMPLETED = "completed"
	STEP_STATUS_FAILED    = "failed"
	STEP_STATUS_SKIPPED   = "skipped"
)

// RunStep 任务执行过程中的单条步骤记录，仅追加，不允许修改历史步骤
type RunStep struct {
	Name      string         `json:"name"`
	Status    string         `json:"status"`
	Detail    map[string]any `json:"detail,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

type AgentRun struct {
	ID          string          `json:"id" db:"id"`                     // 主键
	WorkspaceID string          `json:"workspace_id" db:"workspace_id"` // 工作区ID
	UserID      string          `json:"user_id" db:"user_id"`           // 用户ID
	AgentName   AgentName       `json:"agent_name" db:"agent_name"`     // 执行的 agent 名称
	Status      RunStatus       `json:"status" db:"status"`             // 任务状态
	Input       json.RawMessage `json:"input" db:"input"`               // 任务入参快照
	Output      json.RawMessage `json:"output" db:"output"`             // 任务产出
	Error       string          `json:"error" db:"error"`               // 失败原因
	Steps       json.RawMessage `json:"steps" db:"steps"`               // 步骤日志，jsonb 数组
	StartedAt   int64           `json:"started_at" db:"started_at"`     // 开始执行时间，UNIX时间戳
	FinishedAt  int64           `json:"finished_at" db:"finished_at"`   // 结束时间，UNIX时间戳
	CreatedAt   int64           `json:"created_at" db:"created_at"`     // 创建时间，UNIX时间戳
	UpdatedAt   int64           `json:"updated_at" db:"updated_at"`     // 更新时间，UNIX时间戳
}

func (r *AgentRun) StepList() ([]RunStep, error) {
	if len(r.Steps) == 0 {
		return nil, nil
	}
	var steps []RunStep
	if err := json.Unmarshal(r.Steps, &steps); err != nil {
		return nil, err
	}
	return steps, nil
}

type GetAgentRunsOptions struct {
	ID          string
	WorkspaceID string
	UserID      string
	AgentName   AgentName
	Status      RunStatus
	Statuses    []RunStatus
	DocumentID  string
}

func (opts GetAgentRunsOptions) Apply(query *sq.SelectBuilder) {
	if opts.ID != "" {
		*query = query.Where(sq.Eq{"id": opts.ID})
	}
	if opts.WorkspaceID != "" {
		*query = query.Where(sq.Eq{"workspace_id": opts.WorkspaceID})
	}
	if opts.UserID != "" {
		*query = query.Where(sq.Eq{"user_id": opts.UserID})
	}
	if opts.AgentName != "" {
		*query = query.Where(sq.Eq{"agent_name": opts.AgentName})
	}
	if opts.Status != "" {
		*query = query.Where(sq.Eq{"status": opts.Status})
	}
	if len(opts.Statuses) > 0 {
		*query = query.Where(sq.Eq{"status": opts.Statuses})
	}
	if opts.DocumentID != "" {
		*query = query.Where(sq.Expr("input->>'document_id' = ?", opts.DocumentID))
	}
}
