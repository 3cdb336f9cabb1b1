package types

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/pgvector/pgvector-go"
)

type ChunkVector struct {
	ID             string          `json:"id" db:"id"`                           // 主键，与 chunk_id 相同
	ChunkID        string          `json:"chunk_id" db:"chunk_id"`               // 关联 document_chunk_id
	DocumentID     string          `json:"document_id" db:"document_id"`         // 关联 document_id
	WorkspaceID    string          `json:"workspace_id" db:"workspace_id"`       // 工作区ID
	ChunkIndex     int             `json:"chunk_index" db:"chunk_index"`         // 分片序号，冗余存储用于检索排序
	Embedding      pgvector.Vector `json:"embedding" db:"embedding"`             // 文本向量
	EmbeddingModel string          `json:"embedding_model" db:"embedding_model"` // 生成向量使用的模型
	OriginalLength int             `json:"original_length" db:"original_length"` // 原文长度
	CreatedAt      int64           `json:"created_at" db:"created_at"`           // 创建时间，UNIX时间戳
	UpdatedAt      int64           `json:"updated_at" db:"updated_at"`           // 更新时间，UNIX时间戳
}

type ConceptVector struct {
	ID             string          `json:"id" db:"id"`                           // 主键，与 concept_id 相同
	ConceptID      string          `json:"concept_id" db:"concept_id"`           // 关联 concept_id
	WorkspaceID    string          `json:"workspace_id" db:"workspace_id"`       // 工作区ID
	Embedding      pgvector.Vector `json:"embedding" db:"embedding"`             // 概念向量
	EmbeddingModel string          `json:"embedding_model" db:"embedding_model"` // 生成向量使用的模型
	CreatedAt      int64           `json:"created_at" db:"created_at"`           // 创建时间，UNIX时间戳
}

type QueryResult struct {
	ID             string  `json:"id" db:"id"`
	ChunkID        string  `json:"chunk_id" db:"chunk_id"`
	DocumentID     string  `json:"document_id" db:"document_id"`
	ChunkIndex     int     `json:"chunk_index" db:"chunk_index"`
	Cos            float32 `json:"cos" db:"cos"`
	OriginalLength int     `json:"original_length" db:"original_length"`
}

type GetVectorsOptions struct {
	ID             string
	WorkspaceID    string
	DocumentID     string
	DocumentIDs    []string
	EmbeddingModel string
}

func (opts GetVectorsOptions) Apply(query *sq.SelectBuilder) {
	if opts.ID != "" {
		*query = query.Where(sq.Eq{"id": opts.ID})
	}
	if opts.WorkspaceID != "" {
		*query = query.Where(sq.Eq{"workspace_id": opts.WorkspaceID})
	}
	if opts.DocumentID != "" {
		*query = query.Where(sq.Eq{"document_id": opts.DocumentID})
	}
	if len(opts.DocumentIDs) > 0 {
		*query = query.Where(sq.Eq{"document_id": opts.DocumentIDs})
	}
	if opts.EmbeddingModel != "" {
		*query = query.Where(sq.Eq{"embedding_model": opts.EmbeddingModel})
	}
}
