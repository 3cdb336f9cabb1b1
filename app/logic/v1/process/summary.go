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

// processSummary 摘要生成：检索文档要点分片作为素材，素材质量差时走保守策略
func (p *AgentProcess) processSummary(ctx context.Context, run *types.AgentRun) (json.RawMessage, error) {
	input, err := p.parseInput(run)
	if err != nil {
		return nil, fmt.Errorf("invalid run input, %w", err)
	}

	doc, err := p.core.Store().DocumentStore().Get(ctx, run.WorkspaceID, input.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document, %w", err)
	}
	if doc.Status != types.DOCUMENT_STATUS_READY {
		return nil, fmt.Errorf("document %s is not ready, current status %s", doc.ID, doc.Status)
	}

	// 检索要点相关分片，检索不到任何内容时回退到文档头部分片
	p.appendStep(ctx, run.ID, "retrieve", types.STEP_STATUS_STARTED, nil)
	queries := v1.SummaryQueries(doc.Title)
	results, err := v1.NewRetrieveLogic(ctx, p.core).Retrieve(run.WorkspaceID, queries, []string{doc.ID})
	if err != nil {
		p.appendStepErr(ctx, run.ID, "retrieve", err)
		return nil, err
	}

	var contents []string
	for _, r := range results {
		contents = append(contents, r.Chunk.Content)
	}
	if len(contents) == 0 {
		head, err := p.core.Store().DocumentChunkStore().ListHead(ctx, run.WorkspaceID, doc.ID, v1.SummaryFallbackChunks)
		if err != nil {
			p.appendStepErr(ctx, run.ID, "retrieve", err)
			return nil, err
		}
		for _, c := range head {
			contents = append(contents, c.Content)
		}
	}
	if len(contents) == 0 {
		return nil, fmt.Errorf("document %s has no chunks to summarize", doc.ID)
	}
	p.appendStep(ctx, run.ID, "retrieve", types.STEP_STATUS_COMPLETED, map[string]any{"chunks": len(contents)})

	quality := v1.AnalyzeContentQuality(contents)
	conservative := quality.Conservative()
	material := v1.BuildSummaryContext(contents, v1.SummaryMaxContextChars)
	maxBullets := v1.SummaryBullets(input.MaxBullets)

	p.appendStep(ctx, run.ID, "summarize", types.STEP_STATUS_STARTED, map[string]any{"conservative": conservative, "max_bullets": maxBullets})
	timer := p.core.Metrics().AIRequestTimer("summarize")
	result, err := p.core.Srv().AI().Summarize(ctx, &material, maxBullets, conservative, utils.WhatLang(doc.Content))
	timer.ObserveDuration()
	if err != nil {
		p.core.Metrics().AIErrorInc("summarize")
		p.appendStepErr(ctx, run.ID, "summarize", err)
		return nil, err
	}
	if result.Summary == "" {
		err = fmt.Errorf("model returned an empty summary")
		p.appendStepErr(ctx, run.ID, "summarize", err)
		return nil, err
	}
	p.appendStep(ctx, run.ID, "summarize", types.STEP_STATUS_COMPLETED, map[string]any{"bullets": len(result.Bullets)})

	if err = p.core.Store().DocumentStore().UpdateSummary(ctx, run.WorkspaceID, doc.ID, result.Summary); err != nil {
		return nil, fmt.Errorf("failed to save summary, %w", err)
	}

	output, _ := json.Marshal(map[string]any{
		"document_id":   doc.ID,
		"summary_chars": len([]rune(result.Summary)),
		"bullets":       result.Bullets,
		"conservative":  conservative,
		"quality":       quality,
		"generated_at":  time.Now().Unix(),
	})
	return output, nil
}
