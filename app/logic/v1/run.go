package v1

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mentraflow/mentraflow/app/core"
	"github.com/mentraflow/mentraflow/pkg/errors"
	"github.com/mentraflow/mentraflow/pkg/i18n"
	"github.com/mentraflow/mentraflow/pkg/types"
	"github.com/mentraflow/mentraflow/pkg/utils"
)

type RunLogic struct {
	UserInfo
	ctx  context.Context
	core *core.Core
}

func NewRunLogic(ctx context.Context, core *core.Core) *RunLogic {
	return &RunLogic{
		ctx:      ctx,
		core:     core,
		UserInfo: SetupUserInfo(ctx, core),
	}
}

// RunDetail 任务详情，steps 展开为结构化步骤列表
type RunDetail struct {
	types.AgentRun
	StepLogs []types.RunStep `json:"step_logs"`
}

func (l *RunLogic) GetRun(workspaceID, id string) (*RunDetail, error) {
	run, err := l.core.Store().AgentRunStore().Get(l.ctx, workspaceID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New("RunLogic.GetRun.AgentRunStore.Get", i18n.ERROR_RUN_NOT_FOUND, err).Code(http.StatusNotFound)
		}
		return nil, errors.New("RunLogic.GetRun.AgentRunStore.Get", i18n.ERROR_INTERNAL, err)
	}

	steps, err := run.StepList()
	if err != nil {
		return nil, errors.New("RunLogic.GetRun.StepList", i18n.ERROR_INTERNAL, err)
	}

	return &RunDetail{
		AgentRun: *run,
		StepLogs: steps,
	}, nil
}

func (l *RunLogic) ListRuns(workspaceID string, agentName types.AgentName, documentID string, page, pageSize uint64) ([]types.AgentRun, error) {
	list, err := l.core.Store().AgentRunStore().List(l.ctx, types.GetAgentRunsOptions{
		WorkspaceID: workspaceID,
		AgentName:   agentName,
		DocumentID:  documentID,
	}, page, pageSize)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("RunLogic.ListRuns.AgentRunStore.List", i18n.ERROR_INTERNAL, err)
	}
	return list, nil
}

// EnqueueDocumentAgent 为指定文档创建一个排队中的生成类任务。
// 文档必须已完成入库（ready），且同一文档没有同类任务在排队或执行。
func (l *RunLogic) EnqueueDocumentAgent(workspaceID, documentID string, agent types.AgentName, input map[string]any) (*types.AgentRun, error) {
	if !agent.Valid() {
		return nil, errors.New("RunLogic.EnqueueDocumentAgent.agent.check", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	doc, err := l.core.Store().DocumentStore().Get(l.ctx, workspaceID, documentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New("RunLogic.EnqueueDocumentAgent.DocumentStore.Get", i18n.ERROR_NOT_FOUND, err).Code(http.StatusNotFound)
		}
		return nil, errors.New("RunLogic.EnqueueDocumentAgent.DocumentStore.Get", i18n.ERROR_INTERNAL, err)
	}
	if doc.Status != types.DOCUMENT_STATUS_READY {
		return nil, errors.New("RunLogic.EnqueueDocumentAgent.status.check", i18n.ERROR_DOCUMENT_NOT_READY, nil).Code(http.StatusConflict)
	}

	lockKey := fmt.Sprintf("enqueue:%s:%s:%s", agent, workspaceID, documentID)
	locked, err := l.core.Cache().TryLock(l.ctx, lockKey, time.Second*10)
	if err != nil {
		return nil, errors.New("RunLogic.EnqueueDocumentAgent.TryLock", i18n.ERROR_INTERNAL, err)
	}
	if !locked {
		return nil, errors.New("RunLogic.EnqueueDocumentAgent.lock.check", i18n.ERROR_TOO_MANY_REQUESTS, nil).Code(http.StatusConflict)
	}
	defer l.core.Cache().Unlock(l.ctx, lockKey)

	active, err := l.core.Store().AgentRunStore().HasActive(l.ctx, workspaceID, agent, documentID)
	if err != nil {
		return nil, errors.New("RunLogic.EnqueueDocumentAgent.AgentRunStore.HasActive", i18n.ERROR_INTERNAL, err)
	}
	if active {
		return nil, errors.New("RunLogic.EnqueueDocumentAgent.active.check", i18n.ERROR_TOO_MANY_REQUESTS, nil).Code(http.StatusConflict)
	}

	if input == nil {
		input = map[string]any{}
	}
	input["document_id"] = documentID
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, errors.New("RunLogic.EnqueueDocumentAgent.input.Marshal", i18n.ERROR_INTERNAL, err)
	}

	run := types.AgentRun{
		ID:          utils.GenUniqIDStr(),
		WorkspaceID: workspaceID,
		UserID:      l.GetUserInfo().User,
		AgentName:   agent,
		Status:      types.RUN_STATUS_QUEUED,
		Input:       raw,
		CreatedAt:   time.Now().Unix(),
		UpdatedAt:   time.Now().Unix(),
	}
	if err = l.core.Store().AgentRunStore().Create(l.ctx, run); err != nil {
		return nil, errors.New("RunLogic.EnqueueDocumentAgent.AgentRunStore.Create", i18n.ERROR_INTERNAL, err)
	}

	l.core.Metrics().AgentRunInc(string(agent), string(types.RUN_STATUS_QUEUED))
	return &run, nil
}
