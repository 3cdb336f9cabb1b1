package process

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"

	v1 "github.com/mentraflow/mentraflow/app/logic/v1"
	"github.com/mentraflow/mentraflow/pkg/types"
	"github.com/mentraflow/mentraflow/pkg/utils"
)

// processKGExtraction 知识图谱抽取：概念按工作区内唯一名称合并入库（保留高置信度版本），
// 关系边先把概念名解析为概念ID，解析不到端点的边直接丢弃。概念向量用于后续语义检索。
func (p *AgentProcess) processKGExtraction(ctx context.Context, run *types.AgentRun) (json.RawMessage, error) {
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

	material := v1.BuildSummaryContext([]string{doc.Content}, v1.SummaryMaxContextChars)

	p.appendStep(ctx, run.ID, "extract", types.STEP_STATUS_STARTED, nil)
	timer := p.core.Metrics().AIRequestTimer("extract_knowledge_graph")
	result, err := p.core.Srv().AI().ExtractKnowledgeGraph(ctx, &material)
	timer.ObserveDuration()
	if err != nil {
		p.core.Metrics().AIErrorInc("extract_knowledge_graph")
		p.appendStepErr(ctx, run.ID, "extract", err)
		return nil, err
	}
	p.appendStep(ctx, run.ID, "extract", types.STEP_STATUS_COMPLETED, map[string]any{
		"concepts":  len(result.Concepts),
		"relations": len(result.Relations),
	})

	p.appendStep(ctx, run.ID, "resolve", types.STEP_STATUS_STARTED, nil)
	candidates := v1.FilterConcepts(result.Concepts)
	if len(candidates) == 0 {
		p.appendStep(ctx, run.ID, "resolve", types.STEP_STATUS_SKIPPED, map[string]any{"reason": "no concept passed filtering"})
		output, _ := json.Marshal(map[string]any{"document_id": doc.ID, "concepts": 0, "edges": 0})
		return output, nil
	}

	concepts := make([]*types.Concept, 0, len(candidates))
	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		aliases, _ := json.Marshal(c.Aliases)
		concepts = append(concepts, &types.Concept{
			ID:               utils.GenUniqIDStr(),
			WorkspaceID:      run.WorkspaceID,
			Name:             c.Name,
			Description:      c.Description,
			ConceptType:      c.ConceptType,
			Aliases:          aliases,
			Confidence:       v1.ClampUnit(c.Confidence),
			SourceDocumentID: doc.ID,
			CreatedAt:        time.Now().Unix(),
		})
		names = append(names, c.Name)
	}
	if err = p.core.Store().ConceptStore().BatchCreate(ctx, concepts); err != nil {
		p.appendStepErr(ctx, run.ID, "resolve", err)
		return nil, fmt.Errorf("failed to save concepts, %w", err)
	}

	// 同名概念可能已存在，回读拿到实际落库的ID
	saved, err := p.core.Store().ConceptStore().List(ctx, types.GetConceptsOptions{
		WorkspaceID: run.WorkspaceID,
		Names:       names,
	}, 0, 0)
	if err != nil {
		p.appendStepErr(ctx, run.ID, "resolve", err)
		return nil, fmt.Errorf("failed to reload concepts, %w", err)
	}

	nameToID := make(map[string]string, len(saved))
	for _, c := range saved {
		nameToID[strings.ToLower(c.Name)] = c.ID
	}

	edges, droppedEdges := v1.ResolveRelations(run.WorkspaceID, result.Relations, nameToID)
	for _, e := range edges {
		e.ID = utils.GenUniqIDStr()
	}
	if len(edges) > 0 {
		if err = p.core.Store().KGEdgeStore().BatchCreate(ctx, edges); err != nil {
			p.appendStepErr(ctx, run.ID, "resolve", err)
			return nil, fmt.Errorf("failed to save edges, %w", err)
		}
	}
	p.appendStep(ctx, run.ID, "resolve", types.STEP_STATUS_COMPLETED, map[string]any{
		"concepts":      len(saved),
		"edges":         len(edges),
		"dropped_edges": droppedEdges,
	})

	// 概念名+描述向量化，供概念级语义检索
	p.appendStep(ctx, run.ID, "embed", types.STEP_STATUS_STARTED, nil)
	texts := make([]string, 0, len(saved))
	for _, c := range saved {
		texts = append(texts, strings.TrimSpace(c.Name+"\n"+c.Description))
	}
	timer = p.core.Metrics().AIRequestTimer("embedding_concept")
	embedded, err := p.core.Srv().AI().EmbeddingForDocument(ctx, doc.Title, texts)
	timer.ObserveDuration()
	if err != nil {
		p.core.Metrics().AIErrorInc("embedding")
		p.appendStepErr(ctx, run.ID, "embed", err)
		return nil, err
	}
	if len(embedded.Data) != len(saved) {
		err = fmt.Errorf("embedding count mismatch, want %d got %d", len(saved), len(embedded.Data))
		p.appendStepErr(ctx, run.ID, "embed", err)
		return nil, err
	}

	vectors := make([]types.ConceptVector, 0, len(saved))
	for i, c := range saved {
		vectors = append(vectors, types.ConceptVector{
			ID:             c.ID,
			ConceptID:      c.ID,
			WorkspaceID:    run.WorkspaceID,
			Embedding:      pgvector.NewVector(embedded.Data[i]),
			EmbeddingModel: p.core.Srv().AI().EmbeddingModel(),
			CreatedAt:      time.Now().Unix(),
		})
	}
	if err = p.core.Store().ConceptVectorStore().BatchUpsert(ctx, vectors); err != nil {
		p.appendStepErr(ctx, run.ID, "embed", err)
		return nil, fmt.Errorf("failed to save concept vectors, %w", err)
	}
	p.appendStep(ctx, run.ID, "embed", types.STEP_STATUS_COMPLETED, map[string]any{"vectors": len(vectors)})

	output, _ := json.Marshal(map[string]any{
		"document_id":   doc.ID,
		"concepts":      len(saved),
		"edges":         len(edges),
		"dropped_edges": droppedEdges,
	})
	return output, nil
}
