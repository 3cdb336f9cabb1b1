package types

import (
	"encoding/json"

	sq "github.com/Masterminds/squirrel"
)

type Concept struct {
	ID               string          `json:"id" db:"id"`                                   // 主键
	WorkspaceID      string          `json:"workspace_id" db:"workspace_id"`               // 工作区ID
	Name             string          `json:"name" db:"name"`                               // 概念名称，工作区内唯一
	Description      string          `json:"description" db:"description"`                 // 概念描述
	ConceptType      string          `json:"concept_type" db:"concept_type"`               // 概念类型 definition/theorem/person 等
	Aliases          json.RawMessage `json:"aliases" db:"aliases"`                         // 别名列表
	Tags             json.RawMessage `json:"tags" db:"tags"`                               // 标签列表
	Confidence       float64         `json:"confidence" db:"confidence"`                   // 抽取置信度
	SourceDocumentID string          `json:"source_document_id" db:"source_document_id"`   // 来源文档ID
	CreatedAt        int64           `json:"created_at" db:"created_at"`                   // 创建时间，UNIX时间戳
}

type KGEdge struct {
	ID          string          `json:"id" db:"id"`                     // 主键
	WorkspaceID string          `json:"workspace_id" db:"workspace_id"` // 工作区ID
	SrcType     string          `json:"src_type" db:"src_type"`         // 起点类型，目前固定为 concept
	SrcID       string          `json:"src_id" db:"src_id"`             // 起点ID
	RelType     string          `json:"rel_type" db:"rel_type"`         // 关系类型 relates_to/part_of/example_of 等
	DstType     string          `json:"dst_type" db:"dst_type"`         // 终点类型
	DstID       string          `json:"dst_id" db:"dst_id"`             // 终点ID
	Weight      float64         `json:"weight" db:"weight"`             // 关系权重，[0,1]
	Confidence  float64         `json:"confidence" db:"confidence"`     // 抽取置信度
	Evidence    json.RawMessage `json:"evidence" db:"evidence"`         // 证据分片ID列表
	CreatedAt   int64           `json:"created_at" db:"created_at"`     // 创建时间，UNIX时间戳
}

type GetConceptsOptions struct {
	ID          string
	WorkspaceID string
	Name        string
	Names       []string
	ConceptType string
}

func (opts GetConceptsOptions) Apply(query *sq.SelectBuilder) {
	if opts.ID != "" {
		*query = query.Where(sq.Eq{"id": opts.ID})
	}
	if opts.WorkspaceID != "" {
		*query = query.Where(sq.Eq{"workspace_id": opts.WorkspaceID})
	}
	if opts.Name != "" {
		*query = query.Where(sq.Eq{"name": opts.Name})
	}
	if len(opts.Names) > 0 {
		*query = query.Where(sq.Eq{"name": opts.Names})
	}
	if opts.ConceptType != "" {
		*query = query.Where(sq.Eq{"concept_type": opts.ConceptType})
	}
}
