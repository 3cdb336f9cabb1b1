package process

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	v1 "github.com/mentraflow/mentraflow/app/logic/v1"
	"github.com/mentraflow/mentraflow/pkg/types"
	"github.com/mentraflow/mentraflow/pkg/utils"
)

// processFlashcards 闪卡生成：模型产出的候选卡片先过校验矩阵，只有合格卡片入库。
// 同一次任务产出的卡片共享 batch_id（即 run.ID），便于整批查看与清理。
func (p *AgentProcess) processFlashcards(ctx context.Context, run *types.AgentRun) (json.RawMessage, error) {
	input, err := p.parseInput(run)
	if err != nil {
		return nil, fmt.Errorf("invalid run input, %w", err)
	}

	cfg := p.core.Cfg().Ingest
	cardType := types.FlashcardType(input.CardType)
	if cardType == "" {
		cardType = types.FlashcardType(cfg.DefaultCardType)
	}
	if !cardType.Valid() {
		return nil, fmt.Errorf("unknown card type %q", input.CardType)
	}
	maxCards := input.MaxCards
	if maxCards <= 0 || maxCards > cfg.MaxCards {
		maxCards = cfg.MaxCards
	}

	doc, err := p.core.Store().DocumentStore().Get(ctx, run.WorkspaceID, input.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document, %w", err)
	}
	if doc.Status != types.DOCUMENT_STATUS_READY {
		return nil, fmt.Errorf("document %s is not ready, current status %s", doc.ID, doc.Status)
	}

	chunks, err := p.core.Store().DocumentChunkStore().List(ctx, run.WorkspaceID, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document chunks, %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document %s has no chunks", doc.ID)
	}

	// 上下文按分片序拼接到上限，记录实际用到的分片作为卡片溯源依据
	var (
		contents       []string
		sourceChunkIDs []string
		budget         = v1.SummaryMaxContextChars
	)
	for _, chunk := range chunks {
		if budget <= 0 {
			break
		}
		contents = append(contents, chunk.Content)
		sourceChunkIDs = append(sourceChunkIDs, chunk.ID)
		budget -= len([]rune(chunk.Content))
	}
	material := v1.BuildSummaryContext(contents, v1.SummaryMaxContextChars)
	sourceRaw, _ := json.Marshal(sourceChunkIDs)

	p.appendStep(ctx, run.ID, "generate", types.STEP_STATUS_STARTED, map[string]any{"card_type": cardType, "max_cards": maxCards})
	timer := p.core.Metrics().AIRequestTimer("generate_flashcards")
	result, err := p.core.Srv().AI().GenerateFlashcards(ctx, &material, string(cardType), maxCards, utils.WhatLang(doc.Content))
	timer.ObserveDuration()
	if err != nil {
		p.core.Metrics().AIErrorInc("generate_flashcards")
		p.appendStepErr(ctx, run.ID, "generate", err)
		return nil, err
	}
	p.appendStep(ctx, run.ID, "generate", types.STEP_STATUS_COMPLETED, map[string]any{"generated": len(result.Cards)})

	p.appendStep(ctx, run.ID, "validate", types.STEP_STATUS_STARTED, nil)
	valid, dropped := v1.ValidateFlashcards(result.Cards, cardType)
	if len(valid) > maxCards {
		valid = valid[:maxCards]
	}
	p.appendStep(ctx, run.ID, "validate", types.STEP_STATUS_COMPLETED, map[string]any{
		"valid":   len(valid),
		"dropped": len(dropped),
	})

	cards := make([]*types.Flashcard, 0, len(valid))
	for _, c := range valid {
		card := &types.Flashcard{
			ID:             utils.GenUniqIDStr(),
			WorkspaceID:    run.WorkspaceID,
			UserID:         run.UserID,
			DocumentID:     doc.ID,
			BatchID:        run.ID,
			CardType:       cardType,
			Front:          c.Front,
			Back:           c.Back,
			SourceChunkIDs: sourceRaw,
			CreatedAt:      time.Now().Unix(),
			UpdatedAt:      time.Now().Unix(),
		}
		if cardType == types.FLASHCARD_TYPE_MCQ {
			opts, _ := json.Marshal(c.Options)
			card.Options = opts
			card.CorrectOption = c.CorrectOption
		}
		cards = append(cards, card)
	}

	if len(cards) > 0 {
		if err = p.core.Store().FlashcardStore().BatchCreate(ctx, cards); err != nil {
			return nil, fmt.Errorf("failed to save flashcards, %w", err)
		}
	}

	preview := valid
	if len(preview) > v1.FlashcardPreviewSize {
		preview = preview[:v1.FlashcardPreviewSize]
	}
	output, _ := json.Marshal(map[string]any{
		"document_id": doc.ID,
		"batch_id":    run.ID,
		"card_type":   cardType,
		"generated":   len(result.Cards),
		"saved":       len(cards),
		"dropped":     dropped,
		"preview":     preview,
	})
	return output, nil
}
