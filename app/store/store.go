package store

import (
	"context"
	"encoding/json"

	"github.com/pgvector/pgvector-go"

	"github.com/mentraflow/mentraflow/pkg/types"
)

type DocumentStore interface {
	Create(ctx context.Context, data types.Document) error
	Get(ctx context.Context, workspaceID, id string) (*types.Document, error)
	GetByContentHash(ctx context.Context, workspaceID, hash string) (*types.Document, error)
	List(ctx context.Context, opts types.GetDocumentsOptions, page, pageSize uint64) ([]types.Document, error)
	Total(ctx context.Context, opts types.GetDocumentsOptions) (int64, error)
	// UpdateStatus 条件更新，当前状态不等于 from 时不生效并返回 sql.ErrNoRows
	UpdateStatus(ctx context.Context, workspaceID, id string, from, to types.DocumentStatus) error
	Update(ctx context.Context, workspaceID, id string, args types.UpdateDocumentArgs) error
	UpdateSummary(ctx context.Context, workspaceID, id, summary string) error
	SetLastRunID(ctx context.Context, workspaceID, id, runID string) error
	Delete(ctx context.Context, workspaceID, id string) error
}

type DocumentChunkStore interface {
	BatchCreate(ctx context.Context, data []*types.DocumentChunk) error
	List(ctx context.Context, workspaceID, documentID string) ([]types.DocumentChunk, error)
	ListByIDs(ctx context.Context, workspaceID string, ids []string) ([]types.DocumentChunk, error)
	ListHead(ctx context.Context, workspaceID, documentID string, limit uint64) ([]types.DocumentChunk, error)
	BatchDelete(ctx context.Context, workspaceID, documentID string) error
}

type ChunkVectorStore interface {
	BatchUpsert(ctx context.Context, data []types.ChunkVector) error
	Query(ctx context.Context, opts types.GetVectorsOptions, vector pgvector.Vector, limit uint64) ([]types.QueryResult, error)
	BatchDelete(ctx context.Context, workspaceID, documentID string) error
	DeleteAll(ctx context.Context, workspaceID string) error
}

type ConceptVectorStore interface {
	BatchUpsert(ctx context.Context, data []types.ConceptVector) error
	Query(ctx context.Context, workspaceID string, vector pgvector.Vector, limit uint64) ([]types.QueryResult, error)
	DeleteAll(ctx context.Context, workspaceID string) error
}

type AgentRunStore interface {
	Create(ctx context.Context, data types.AgentRun) error
	Get(ctx context.Context, workspaceID, id string) (*types.AgentRun, error)
	List(ctx context.Context, opts types.GetAgentRunsOptions, page, pageSize uint64) ([]types.AgentRun, error)
	// ListQueued 按入队顺序列出排队中的任务
	ListQueued(ctx context.Context, limit uint64) ([]types.AgentRun, error)
	// MarkRunning 仅当状态为 queued 时生效
	MarkRunning(ctx context.Context, id string) error
	// Touch 刷新 running 任务的活动时间，充当心跳
	Touch(ctx context.Context, id string) error
	// MarkFinished 仅当状态为 running 时生效
	MarkFinished(ctx context.Context, id string, status types.RunStatus, output json.RawMessage, errMsg string) error
	// AppendStep 原子追加步骤日志，不覆盖历史步骤
	AppendStep(ctx context.Context, id string, step types.RunStep) error
	// HasActive 判断指定文档是否存在 queued/running 状态的同类任务
	HasActive(ctx context.Context, workspaceID string, agentName types.AgentName, documentID string) (bool, error)
	// ListStale 列出 updated_at 早于 deadline 且仍在 running 的任务
	ListStale(ctx context.Context, deadline int64, limit uint64) ([]types.AgentRun, error)
	// Requeue 将 running 任务重置回 queued，用于实例崩溃后的恢复
	Requeue(ctx context.Context, id string) error
}

type FlashcardStore interface {
	BatchCreate(ctx context.Context, data []*types.Flashcard) error
	List(ctx context.Context, opts types.GetFlashcardsOptions, page, pageSize uint64) ([]types.Flashcard, error)
	Delete(ctx context.Context, workspaceID, id string) error
	BatchDeleteByDocument(ctx context.Context, workspaceID, documentID string) error
}

type ConceptStore interface {
	BatchCreate(ctx context.Context, data []*types.Concept) error
	List(ctx context.Context, opts types.GetConceptsOptions, page, pageSize uint64) ([]types.Concept, error)
	Delete(ctx context.Context, workspaceID, id string) error
}

type KGEdgeStore interface {
	BatchCreate(ctx context.Context, data []*types.KGEdge) error
	List(ctx context.Context, workspaceID string, page, pageSize uint64) ([]types.KGEdge, error)
	ListByConcept(ctx context.Context, workspaceID, conceptID string) ([]types.KGEdge, error)
	Delete(ctx context.Context, workspaceID, id string) error
}
