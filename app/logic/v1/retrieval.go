package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/mentraflow/mentraflow/app/core"
	"github.com/mentraflow/mentraflow/pkg/errors"
	"github.com/mentraflow/mentraflow/pkg/i18n"
	"github.com/mentraflow/mentraflow/pkg/retrieval"
	"github.com/mentraflow/mentraflow/pkg/types"
	"github.com/mentraflow/mentraflow/pkg/utils"
)

type RetrieveLogic struct {
	UserInfo
	ctx  context.Context
	core *core.Core
}

func NewRetrieveLogic(ctx context.Context, core *core.Core) *RetrieveLogic {
	return &RetrieveLogic{
		ctx:      ctx,
		core:     core,
		UserInfo: SetupUserInfo(ctx, core),
	}
}

// queryEmbedding 查询向量走 redis 缓存，同一查询短时间内重复检索不再请求模型
func (l *RetrieveLogic) queryEmbedding(query string) (pgvector.Vector, error) {
	model := l.core.Srv().AI().EmbeddingModel()
	cacheKey := fmt.Sprintf("embedding:query:%s", utils.MD5(model+":"+query))

	if raw, err := l.core.Cache().Get(l.ctx, cacheKey); err == nil && raw != "" {
		var vec []float32
		if err = json.Unmarshal([]byte(raw), &vec); err == nil && len(vec) > 0 {
			return pgvector.NewVector(vec), nil
		}
	}

	res, err := l.core.Srv().AI().EmbeddingForQuery(l.ctx, []string{query})
	if err != nil {
		return pgvector.Vector{}, err
	}
	if len(res.Data) == 0 {
		return pgvector.Vector{}, fmt.Errorf("embedding result is empty")
	}

	if raw, err := json.Marshal(res.Data[0]); err == nil {
		ttl := time.Duration(l.core.Cfg().Retrieval.QueryCacheTTL) * time.Second
		// 缓存写入失败不影响检索
		_ = l.core.Cache().SetEx(l.ctx, cacheKey, string(raw), ttl)
	}

	return pgvector.NewVector(res.Data[0]), nil
}

// Retrieve 多路查询召回，合并去重后按阈值过滤、同文档相邻分片去重，
// 最终截取 top_k 并回填分片原文。documentIDs 为空表示对整个工作区检索。
func (l *RetrieveLogic) Retrieve(workspaceID string, queries []string, documentIDs []string) ([]types.RetrievedChunk, error) {
	cfg := l.core.Cfg().Retrieval
	model := l.core.Srv().AI().EmbeddingModel()

	var candidates []types.QueryResult
	for _, query := range queries {
		vector, err := l.queryEmbedding(query)
		if err != nil {
			return nil, errors.New("RetrieveLogic.Retrieve.queryEmbedding", i18n.ERROR_EMBEDDING_FAILED, err)
		}

		result, err := l.core.Store().ChunkVectorStore().Query(l.ctx, types.GetVectorsOptions{
			WorkspaceID:    workspaceID,
			DocumentIDs:    documentIDs,
			EmbeddingModel: model,
		}, vector, uint64(cfg.CandidateLimit))
		if err != nil {
			return nil, errors.New("RetrieveLogic.Retrieve.ChunkVectorStore.Query", i18n.ERROR_INTERNAL, err)
		}
		candidates = append(candidates, result...)
	}

	merged := retrieval.Merge(candidates)
	merged = retrieval.ApplyThreshold(merged, float32(cfg.Threshold))
	merged = retrieval.Diversify(merged, cfg.DiversityWindow)
	merged = retrieval.TopK(merged, cfg.TopK)
	if len(merged) == 0 {
		return nil, nil
	}

	chunkIDs := make([]string, 0, len(merged))
	for _, item := range merged {
		chunkIDs = append(chunkIDs, item.ChunkID)
	}

	chunks, err := l.core.Store().DocumentChunkStore().ListByIDs(l.ctx, workspaceID, chunkIDs)
	if err != nil {
		return nil, errors.New("RetrieveLogic.Retrieve.DocumentChunkStore.ListByIDs", i18n.ERROR_INTERNAL, err)
	}

	chunkMap := make(map[string]types.DocumentChunk, len(chunks))
	for _, chunk := range chunks {
		chunkMap[chunk.ID] = chunk
	}

	result := make([]types.RetrievedChunk, 0, len(merged))
	for _, item := range merged {
		chunk, exist := chunkMap[item.ChunkID]
		if !exist {
			// 向量存在但分片已被删除，跳过
			continue
		}
		result = append(result, types.RetrievedChunk{
			Chunk: chunk,
			Score: item.Cos,
		})
	}

	return result, nil
}
