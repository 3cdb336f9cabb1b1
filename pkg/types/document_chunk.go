package types

import "encoding/json"

type DocumentChunk struct {
	ID          string          `json:"id" db:"id"`                     // 主键
	DocumentID  string          `json:"document_id" db:"document_id"`   // 关联 document_id
	WorkspaceID string          `json:"workspace_id" db:"workspace_id"` // 工作区ID
	ChunkIndex  int             `json:"chunk_index" db:"chunk_index"`   // 分片在文档中的序号，从0开始
	StartChar   int             `json:"start_char" db:"start_char"`     // 分片在原文中的起始位置（rune）
	EndChar     int             `json:"end_char" db:"end_char"`         // 分片在原文中的结束位置（rune）
	Content     string          `json:"content" db:"content"`           // 分片文本
	TokenCount  int             `json:"token_count" db:"token_count"`   // 分片 token 数
	Metadata    json.RawMessage `json:"metadata" db:"metadata"`         // 页码、标题等来源信息
	CreatedAt   int64           `json:"created_at" db:"created_at"`     // 创建时间，UNIX时间戳
}
