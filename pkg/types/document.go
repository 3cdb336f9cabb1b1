package types

import (
	"encoding/json"

	sq "github.com/Masterminds/squirrel"
)

type DocumentStatus string

const (
	DOCUMENT_STATUS_PENDING   DocumentStatus = "pending"
	DOCUMENT_STATUS_STORING   DocumentStatus = "storing"
	DOCUMENT_STATUS_CHUNKING  DocumentStatus = "chunking"
	DOCUMENT_STATUS_EMBEDDING DocumentStatus = "embedding"
	DOCUMENT_STATUS_READY     DocumentStatus = "ready"
	DOCUMENT_STATUS_FAILED    DocumentStatus = "failed"
)

// documentStatusFlow 文档状态只允许沿流水线单向流转，failed 可以从任意中间态进入。
// 中间态允许退回 pending，实例崩溃后重新排队的入库任务从头重走流水线
var documentStatusFlow = map[DocumentStatus][]DocumentStatus{
	DOCUMENT_STATUS_PENDING:   {DOCUMENT_STATUS_STORING, DOCUMENT_STATUS_FAILED},
	DOCUMENT_STATUS_STORING:   {DOCUMENT_STATUS_CHUNKING, DOCUMENT_STATUS_PENDING, DOCUMENT_STATUS_FAILED},
	DOCUMENT_STATUS_CHUNKING:  {DOCUMENT_STATUS_EMBEDDING, DOCUMENT_STATUS_PENDING, DOCUMENT_STATUS_FAILED},
	DOCUMENT_STATUS_EMBEDDING: {DOCUMENT_STATUS_READY, DOCUMENT_STATUS_PENDING, DOCUMENT_STATUS_FAILED},
	DOCUMENT_STATUS_READY:     {DOCUMENT_STATUS_PENDING},
	DOCUMENT_STATUS_FAILED:    {DOCUMENT_STATUS_PENDING},
}

func (s DocumentStatus) CanTransition(next DocumentStatus) bool {
	for _, v := range documentStatusFlow[s] {
		if v == next {
			return true
		}
	}
	return false
}

func (s DocumentStatus) IsTerminal() bool {
	return s == DOCUMENT_STATUS_READY || s == DOCUMENT_STATUS_FAILED
}

type Document struct {
	ID          string          `json:"id" db:"id"`                     // 主键
	WorkspaceID string          `json:"workspace_id" db:"workspace_id"` // 工作区ID，用于标识所属工作区
	UserID      string          `json:"user_id" db:"user_id"`           // 用户ID
	Title       string          `json:"title" db:"title"`               // 文档标题
	DocType     string          `json:"doc_type" db:"doc_type"`         // 文档类型 text/markdown/pdf 等
	Status      DocumentStatus  `json:"status" db:"status"`             // 文档处理状态
	Content     string          `json:"content" db:"content"`           // 原始文本内容
	ContentHash string          `json:"content_hash" db:"content_hash"` // 内容 sha256，用于去重
	Summary     string          `json:"summary" db:"summary"`           // AI 生成的摘要
	LastRunID   string          `json:"last_run_id" db:"last_run_id"`   // 最近一次入库任务ID
	Metadata    json.RawMessage `json:"metadata" db:"metadata"`         // 扩展元数据
	CreatedAt   int64           `json:"created_at" db:"created_at"`     // 创建时间，UNIX时间戳
	UpdatedAt   int64           `json:"updated_at" db:"updated_at"`     // 更新时间，UNIX时间戳
}

type GetDocumentsOptions struct {
	ID          string
	WorkspaceID string
	UserID      string
	Status      DocumentStatus
	ContentHash string
	Keywords    string
}

func (opts GetDocumentsOptions) Apply(query *sq.SelectBuilder) {
	if opts.ID != "" {
		*query = query.Where(sq.Eq{"id": opts.ID})
	}
	if opts.WorkspaceID != "" {
		*query = query.Where(sq.Eq{"workspace_id": opts.WorkspaceID})
	}
	if opts.UserID != "" {
		*query = query.Where(sq.Eq{"user_id": opts.UserID})
	}
	if opts.Status != "" {
		*query = query.Where(sq.Eq{"status": opts.Status})
	}
	if opts.ContentHash != "" {
		*query = query.Where(sq.Eq{"content_hash": opts.ContentHash})
	}
	if opts.Keywords != "" {
		*query = query.Where(sq.Like{"title": "%" + opts.Keywords + "%"})
	}
}

type UpdateDocumentArgs struct {
	Title    string
	DocType  string
	Content  string
	Metadata json.RawMessage
}
