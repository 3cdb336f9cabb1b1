package types

import (
	"encoding/json"

	sq "github.com/Masterminds/squirrel"
)

type FlashcardType string

const (
	FLASHCARD_TYPE_QA  FlashcardType = "qa"
	FLASHCARD_TYPE_MCQ FlashcardType = "mcq"
)

func (t FlashcardType) Valid() bool {
	return t == FLASHCARD_TYPE_QA || t == FLASHCARD_TYPE_MCQ
}

type Flashcard struct {
	ID             string          `json:"id" db:"id"`                             // 主键
	WorkspaceID    string          `json:"workspace_id" db:"workspace_id"`         // 工作区ID
	UserID         string          `json:"user_id" db:"user_id"`                   // 用户ID
	DocumentID     string          `json:"document_id" db:"document_id"`           // 来源文档ID
	BatchID        string          `json:"batch_id" db:"batch_id"`                 // 同一次生成任务产出的卡片共享 batch_id
	CardType       FlashcardType   `json:"card_type" db:"card_type"`               // qa 或 mcq
	Front          string          `json:"front" db:"front"`                       // 卡片正面（问题）
	Back           string          `json:"back" db:"back"`                         // 卡片背面（答案/解析）
	Options        json.RawMessage `json:"options" db:"options"`                   // mcq 选项列表
	CorrectOption  int             `json:"correct_option" db:"correct_option"`     // mcq 正确选项下标
	SourceChunkIDs json.RawMessage `json:"source_chunk_ids" db:"source_chunk_ids"` // 生成依据的分片ID列表
	CreatedAt      int64           `json:"created_at" db:"created_at"`             // 创建时间，UNIX时间戳
	UpdatedAt      int64           `json:"updated_at" db:"updated_at"`             // 更新时间，UNIX时间戳
}

func (f *Flashcard) OptionList() []string {
	if len(f.Options) == 0 {
		return nil
	}
	var opts []string
	if err := json.Unmarshal(f.Options, &opts); err != nil {
		return nil
	}
	return opts
}

type GetFlashcardsOptions struct {
	ID          string
	WorkspaceID string
	UserID      string
	DocumentID  string
	BatchID     string
	CardType    FlashcardType
}

func (opts GetFlashcardsOptions) Apply(query *sq.SelectBuilder) {
	if opts.ID != "" {
		*query = query.Where(sq.Eq{"id": opts.ID})
	}
	if opts.WorkspaceID != "" {
		*query = query.Where(sq.Eq{"workspace_id": opts.WorkspaceID})
	}
	if opts.UserID != "" {
		*query = query.Where(sq.Eq{"user_id": opts.UserID})
	}
	if opts.DocumentID != "" {
		*query = query.Where(sq.Eq{"document_id": opts.DocumentID})
	}
	if opts.BatchID != "" {
		*query = query.Where(sq.Eq{"batch_id": opts.BatchID})
	}
	if opts.CardType != "" {
		*query = query.Where(sq.Eq{"card_type": opts.CardType})
	}
}
