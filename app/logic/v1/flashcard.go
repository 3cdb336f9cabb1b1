package v1

import (
	"context"
	"database/sql"
	"strings"

	"github.com/mentraflow/mentraflow/app/core"
	"github.com/mentraflow/mentraflow/pkg/ai"
	"github.com/mentraflow/mentraflow/pkg/errors"
	"github.com/mentraflow/mentraflow/pkg/i18n"
	"github.com/mentraflow/mentraflow/pkg/types"
)

const (
	maxFrontLen = 200
	maxBackLen  = 300
	minFieldLen = 5

	// FlashcardPreviewSize 生成任务产出中附带的预览卡片数量
	FlashcardPreviewSize = 5
)

type FlashcardLogic struct {
	UserInfo
	ctx  context.Context
	core *core.Core
}

func NewFlashcardLogic(ctx context.Context, core *core.Core) *FlashcardLogic {
	return &FlashcardLogic{
		ctx:      ctx,
		core:     core,
		UserInfo: SetupUserInfo(ctx, core),
	}
}

func (l *FlashcardLogic) ListFlashcards(workspaceID, documentID, batchID string, page, pageSize uint64) ([]types.Flashcard, error) {
	list, err := l.core.Store().FlashcardStore().List(l.ctx, types.GetFlashcardsOptions{
		WorkspaceID: workspaceID,
		DocumentID:  documentID,
		BatchID:     batchID,
	}, page, pageSize)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("FlashcardLogic.ListFlashcards.FlashcardStore.List", i18n.ERROR_INTERNAL, err)
	}
	return list, nil
}

func (l *FlashcardLogic) DeleteFlashcard(workspaceID, id string) error {
	if err := l.core.Store().FlashcardStore().Delete(l.ctx, workspaceID, id); err != nil {
		return errors.New("FlashcardLogic.DeleteFlashcard.FlashcardStore.Delete", i18n.ERROR_INTERNAL, err)
	}
	return nil
}

// DroppedCard 被校验拒绝的候选卡片及原因
type DroppedCard struct {
	Front  string `json:"front"`
	Reason string `json:"reason"`
}

// ValidateFlashcards 按质量规则过滤模型产出的候选卡片。
// 模型输出不可信，这里是入库前的最后一道闸门。
func ValidateFlashcards(candidates []ai.FlashcardCandidate, cardType types.FlashcardType) (valid []ai.FlashcardCandidate, dropped []DroppedCard) {
	for _, card := range candidates {
		if reason := validateFlashcard(card, cardType); reason != "" {
			dropped = append(dropped, DroppedCard{Front: card.Front, Reason: reason})
			continue
		}
		valid = append(valid, card)
	}
	return valid, dropped
}

func validateFlashcard(card ai.FlashcardCandidate, cardType types.FlashcardType) string {
	front := strings.TrimSpace(card.Front)
	back := strings.TrimSpace(card.Back)

	if front == "" || back == "" {
		return "empty_field"
	}
	if len([]rune(front)) > maxFrontLen {
		return "front_too_long"
	}
	if len([]rune(back)) > maxBackLen {
		return "back_too_long"
	}
	if len([]rune(front)) < minFieldLen || len([]rune(back)) < minFieldLen {
		return "too_short"
	}
	if card.CardType != "" && card.CardType != string(cardType) {
		return "type_mismatch"
	}
	if strings.EqualFold(front, back) {
		return "trivial"
	}
	if strings.HasPrefix(strings.ToLower(back), strings.ToLower(front)) {
		return "repetitive"
	}

	if cardType == types.FLASHCARD_TYPE_MCQ {
		distinct := make(map[string]struct{}, len(card.Options))
		for _, opt := range card.Options {
			opt = strings.TrimSpace(opt)
			if opt == "" {
				continue
			}
			distinct[strings.ToLower(opt)] = struct{}{}
		}
		if len(distinct) < 2 {
			return "invalid_options"
		}
		if card.CorrectOption < 0 || card.CorrectOption >= len(card.Options) {
			return "invalid_correct_option"
		}
	}
	return ""
}
