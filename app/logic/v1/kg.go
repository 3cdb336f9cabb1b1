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

// MinConceptConfidence 低于该置信度的概念抽取结果直接丢弃
const MinConceptConfidence = 0.3

var allowedRelTypes = map[string]struct{}{
	"relates_to":     {},
	"part_of":        {},
	"example_of":     {},
	"depends_on":     {},
	"contrasts_with": {},
}

type KGLogic struct {
	UserInfo
	ctx  context.Context
	core *core.Core
}

func NewKGLogic(ctx context.Context, core *core.Core) *KGLogic {
	return &KGLogic{
		ctx:      ctx,
		core:     core,
		UserInfo: SetupUserInfo(ctx, core),
	}
}

// KnowledgeGraph 工作区知识图谱的节点与边
type KnowledgeGraph struct {
	Concepts []types.Concept `json:"concepts"`
	Edges    []types.KGEdge  `json:"edges"`
}

func (l *KGLogic) GetGraph(workspaceID string, page, pageSize uint64) (*KnowledgeGraph, error) {
	concepts, err := l.core.Store().ConceptStore().List(l.ctx, types.GetConceptsOptions{
		WorkspaceID: workspaceID,
	}, page, pageSize)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("KGLogic.GetGraph.ConceptStore.List", i18n.ERROR_INTERNAL, err)
	}

	edges, err := l.core.Store().KGEdgeStore().List(l.ctx, workspaceID, page, pageSize)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("KGLogic.GetGraph.KGEdgeStore.List", i18n.ERROR_INTERNAL, err)
	}

	return &KnowledgeGraph{
		Concepts: concepts,
		Edges:    edges,
	}, nil
}

// FilterConcepts 去掉空名称与低置信度的概念候选，同名保留置信度更高者
func FilterConcepts(candidates []ai.ConceptCandidate) []ai.ConceptCandidate {
	best := make(map[string]ai.ConceptCandidate, len(candidates))
	order := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" || c.Confidence < MinConceptConfidence {
			continue
		}
		key := strings.ToLower(c.Name)
		if exist, ok := best[key]; ok {
			if c.Confidence > exist.Confidence {
				best[key] = c
			}
			continue
		}
		best[key] = c
		order = append(order, key)
	}

	result := make([]ai.ConceptCandidate, 0, len(best))
	for _, key := range order {
		result = append(result, best[key])
	}
	return result
}

// ResolveRelations 把关系候选中的概念名称解析为概念ID，端点无法解析或
// 关系类型不合法的边直接丢弃，权重与置信度收敛到 [0,1]
func ResolveRelations(workspaceID string, candidates []ai.RelationCandidate, nameToID map[string]string) (edges []*types.KGEdge, droppedCount int) {
	for _, rel := range candidates {
		srcID, srcOK := nameToID[strings.ToLower(strings.TrimSpace(rel.Src))]
		dstID, dstOK := nameToID[strings.ToLower(strings.TrimSpace(rel.Dst))]
		if !srcOK || !dstOK || srcID == dstID {
			droppedCount++
			continue
		}
		if _, ok := allowedRelTypes[rel.RelType]; !ok {
			droppedCount++
			continue
		}

		edges = append(edges, &types.KGEdge{
			WorkspaceID: workspaceID,
			SrcType:     "concept",
			SrcID:       srcID,
			RelType:     rel.RelType,
			DstType:     "concept",
			DstID:       dstID,
			Weight:      ClampUnit(rel.Weight),
			Confidence:  ClampUnit(rel.Confidence),
		})
	}
	return edges, droppedCount
}

// ClampUnit 收敛到 [0,1]
func ClampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
