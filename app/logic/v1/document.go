package v1

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mentraflow/mentraflow/app/core"
	"github.com/mentraflow/mentraflow/pkg/errors"
	"github.com/mentraflow/mentraflow/pkg/i18n"
	"github.com/mentraflow/mentraflow/pkg/types"
	"github.com/mentraflow/mentraflow/pkg/utils"
)

type DocumentLogic struct {
	UserInfo
	ctx  context.Context
	core *core.Core
}

func NewDocumentLogic(ctx context.Context, core *core.Core) *DocumentLogic {
	return &DocumentLogic{
		ctx:      ctx,
		core:     core,
		UserInfo: SetupUserInfo(ctx, core),
	}
}

type CreateDocumentArgs struct {
	Title    string          `json:"title"`
	DocType  string          `json:"doc_type"`
	Content  string          `json:"content" binding:"required"`
	Metadata json.RawMessage `json:"metadata"`
}

// CreateDocument 创建文档，内容指纹重复时拒绝入库并返回已存在的文档ID
func (l *DocumentLogic) CreateDocument(workspaceID string, args CreateDocumentArgs) (*types.Document, error) {
	if strings.TrimSpace(args.Content) == "" {
		return nil, errors.New("DocumentLogic.CreateDocument.check", i18n.ERROR_DOCUMENT_EMPTY_CONTENT, nil).Code(http.StatusBadRequest)
	}

	contentHash := utils.SHA256(args.Content)
	exist, err := l.core.Store().DocumentStore().GetByContentHash(l.ctx, workspaceID, contentHash)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("DocumentLogic.CreateDocument.DocumentStore.GetByContentHash", i18n.ERROR_INTERNAL, err)
	}
	if exist != nil {
		return nil, errors.New("DocumentLogic.CreateDocument.exist", i18n.ERROR_DOCUMENT_ALREADY_EXIST, nil).
			Code(http.StatusConflict).WithData(map[string]interface{}{"document_id": exist.ID})
	}

	if args.DocType == "" {
		args.DocType = "text"
	}
	if args.Title == "" {
		args.Title = firstLine(args.Content, 80)
	}

	data := types.Document{
		ID:          utils.GenUniqIDStr(),
		WorkspaceID: workspaceID,
		UserID:      l.GetUserInfo().User,
		Title:       args.Title,
		DocType:     args.DocType,
		Status:      types.DOCUMENT_STATUS_PENDING,
		Content:     args.Content,
		ContentHash: contentHash,
		Metadata:    args.Metadata,
		CreatedAt:   time.Now().Unix(),
		UpdatedAt:   time.Now().Unix(),
	}
	if err = l.core.Store().DocumentStore().Create(l.ctx, data); err != nil {
		return nil, errors.New("DocumentLogic.CreateDocument.DocumentStore.Create", i18n.ERROR_INTERNAL, err)
	}
	return &data, nil
}

func (l *DocumentLogic) GetDocument(workspaceID, id string) (*types.Document, error) {
	doc, err := l.core.Store().DocumentStore().Get(l.ctx, workspaceID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New("DocumentLogic.GetDocument.DocumentStore.Get", i18n.ERROR_NOT_FOUND, err).Code(http.StatusNotFound)
		}
		return nil, errors.New("DocumentLogic.GetDocument.DocumentStore.Get", i18n.ERROR_INTERNAL, err)
	}
	return doc, nil
}

func (l *DocumentLogic) ListDocuments(workspaceID string, status types.DocumentStatus, keywords string, page, pageSize uint64) ([]types.Document, int64, error) {
	opts := types.GetDocumentsOptions{
		WorkspaceID: workspaceID,
		Status:      status,
		Keywords:    keywords,
	}

	list, err := l.core.Store().DocumentStore().List(l.ctx, opts, page, pageSize)
	if err != nil && err != sql.ErrNoRows {
		return nil, 0, errors.New("DocumentLogic.ListDocuments.DocumentStore.List", i18n.ERROR_INTERNAL, err)
	}

	total, err := l.core.Store().DocumentStore().Total(l.ctx, opts)
	if err != nil {
		return nil, 0, errors.New("DocumentLogic.ListDocuments.DocumentStore.Total", i18n.ERROR_INTERNAL, err)
	}

	// 列表不返回原文，避免响应体过大
	for i := range list {
		list[i].Content = ""
	}
	return list, total, nil
}

// DeleteDocument 删除文档及其派生数据，事务内完成
func (l *DocumentLogic) DeleteDocument(workspaceID, id string) error {
	if _, err := l.GetDocument(workspaceID, id); err != nil {
		return errors.Trace("DocumentLogic.DeleteDocument", err)
	}

	return l.core.Store().Transaction(l.ctx, func(ctx context.Context) error {
		if err := l.core.Store().ChunkVectorStore().BatchDelete(ctx, workspaceID, id); err != nil {
			return errors.New("DocumentLogic.DeleteDocument.ChunkVectorStore.BatchDelete", i18n.ERROR_INTERNAL, err)
		}
		if err := l.core.Store().DocumentChunkStore().BatchDelete(ctx, workspaceID, id); err != nil {
			return errors.New("DocumentLogic.DeleteDocument.DocumentChunkStore.BatchDelete", i18n.ERROR_INTERNAL, err)
		}
		if err := l.core.Store().FlashcardStore().BatchDeleteByDocument(ctx, workspaceID, id); err != nil {
			return errors.New("DocumentLogic.DeleteDocument.FlashcardStore.BatchDeleteByDocument", i18n.ERROR_INTERNAL, err)
		}
		if err := l.core.Store().DocumentStore().Delete(ctx, workspaceID, id); err != nil {
			return errors.New("DocumentLogic.DeleteDocument.DocumentStore.Delete", i18n.ERROR_INTERNAL, err)
		}
		return nil
	})
}

// Ingest 发起文档入库任务。文档必须处于 pending/ready/failed 状态，
// 同一文档已有排队或执行中的入库任务时拒绝重复发起。
func (l *DocumentLogic) Ingest(workspaceID, id string) (*types.AgentRun, error) {
	doc, err := l.GetDocument(workspaceID, id)
	if err != nil {
		return nil, errors.Trace("DocumentLogic.Ingest", err)
	}

	if !doc.Status.IsTerminal() && doc.Status != types.DOCUMENT_STATUS_PENDING {
		return nil, errors.New("DocumentLogic.Ingest.status.check", i18n.ERROR_INGESTION_IN_PROGRESS, nil).Code(http.StatusConflict)
	}

	// redis 锁封住 HasActive 与 Create 之间的并发窗口
	lockKey := fmt.Sprintf("enqueue:%s:%s:%s", types.AGENT_INGESTION, workspaceID, id)
	locked, err := l.core.Cache().TryLock(l.ctx, lockKey, time.Second*10)
	if err != nil {
		return nil, errors.New("DocumentLogic.Ingest.TryLock", i18n.ERROR_INTERNAL, err)
	}
	if !locked {
		return nil, errors.New("DocumentLogic.Ingest.lock.check", i18n.ERROR_INGESTION_IN_PROGRESS, nil).Code(http.StatusConflict)
	}
	defer l.core.Cache().Unlock(l.ctx, lockKey)

	active, err := l.core.Store().AgentRunStore().HasActive(l.ctx, workspaceID, types.AGENT_INGESTION, id)
	if err != nil {
		return nil, errors.New("DocumentLogic.Ingest.AgentRunStore.HasActive", i18n.ERROR_INTERNAL, err)
	}
	if active {
		return nil, errors.New("DocumentLogic.Ingest.active.check", i18n.ERROR_INGESTION_IN_PROGRESS, nil).Code(http.StatusConflict)
	}

	// 重新入库前把终态文档拉回 pending
	if doc.Status != types.DOCUMENT_STATUS_PENDING {
		if err = l.core.Store().DocumentStore().UpdateStatus(l.ctx, workspaceID, id, doc.Status, types.DOCUMENT_STATUS_PENDING); err != nil {
			return nil, errors.New("DocumentLogic.Ingest.DocumentStore.UpdateStatus", i18n.ERROR_INTERNAL, err)
		}
	}

	input, _ := json.Marshal(map[string]string{"document_id": id})
	run := types.AgentRun{
		ID:          utils.GenUniqIDStr(),
		WorkspaceID: workspaceID,
		UserID:      l.GetUserInfo().User,
		AgentName:   types.AGENT_INGESTION,
		Status:      types.RUN_STATUS_QUEUED,
		Input:       input,
		CreatedAt:   time.Now().Unix(),
		UpdatedAt:   time.Now().Unix(),
	}
	if err = l.core.Store().AgentRunStore().Create(l.ctx, run); err != nil {
		return nil, errors.New("DocumentLogic.Ingest.AgentRunStore.Create", i18n.ERROR_INTERNAL, err)
	}

	if err = l.core.Store().DocumentStore().SetLastRunID(l.ctx, workspaceID, id, run.ID); err != nil {
		return nil, errors.New("DocumentLogic.Ingest.DocumentStore.SetLastRunID", i18n.ERROR_INTERNAL, err)
	}

	l.core.Metrics().AgentRunInc(string(types.AGENT_INGESTION), string(types.RUN_STATUS_QUEUED))
	return &run, nil
}

func firstLine(content string, maxLen int) string {
	line := strings.TrimSpace(content)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	runes := []rune(line)
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return line
}
