package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentraflow/mentraflow/pkg/types"
)

func result(chunkID, docID string, index int, cos float32) types.QueryResult {
	return types.QueryResult{
		ID:         chunkID,
		ChunkID:    chunkID,
		DocumentID: docID,
		ChunkIndex: index,
		Cos:        cos,
	}
}

func TestMergeDedupeKeepsMaxScore(t *testing.T) {
	a := []types.QueryResult{
		result("c1", "d1", 0, 0.7),
		result("c2", "d1", 5, 0.6),
	}
	b := []types.QueryResult{
		result("c1", "d1", 0, 0.9),
		result("c3", "d2", 2, 0.5),
	}

	merged := Merge(a, b)
	require.Len(t, merged, 3)

	byID := make(map[string]types.QueryResult)
	for _, v := range merged {
		byID[v.ChunkID] = v
	}
	assert.Equal(t, float32(0.9), byID["c1"].Cos, "重复命中应保留最高分")
	assert.Equal(t, "c1", merged[0].ChunkID, "结果应按得分降序")
}

func TestApplyThresholdIsHardCutoff(t *testing.T) {
	results := []types.QueryResult{
		result("c1", "d1", 0, 0.8),
		result("c2", "d1", 1, 0.5),
		result("c3", "d1", 2, 0.49),
	}

	filtered := ApplyThreshold(results, 0.5)
	require.Len(t, filtered, 2)
	for _, v := range filtered {
		assert.GreaterOrEqual(t, v.Cos, float32(0.5))
	}

	// 全部低于阈值时返回空，而不是回退补位
	assert.Empty(t, ApplyThreshold(results, 0.95))
}

func TestThresholdMonotonicity(t *testing.T) {
	results := []types.QueryResult{
		result("c1", "d1", 0, 0.9),
		result("c2", "d1", 3, 0.7),
		result("c3", "d2", 1, 0.55),
		result("c4", "d2", 8, 0.3),
	}

	prev := len(results)
	for _, th := range []float32{0.2, 0.4, 0.6, 0.8, 1.0} {
		got := len(ApplyThreshold(results, th))
		assert.LessOrEqual(t, got, prev, "阈值提高结果数不应增加")
		prev = got
	}
}

func TestDiversifySuppressesAdjacentChunks(t *testing.T) {
	results := []types.QueryResult{
		result("c10", "d1", 10, 0.9),
		result("c11", "d1", 11, 0.85), // 与 c10 相邻，应被抑制
		result("c20", "d1", 20, 0.8),
		result("c12", "d2", 11, 0.75), // 不同文档，序号相邻也保留
	}

	got := Diversify(results, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "c10", got[0].ChunkID)
	assert.Equal(t, "c20", got[1].ChunkID)
	assert.Equal(t, "c12", got[2].ChunkID)
}

func TestDiversifyDisabled(t *testing.T) {
	results := []types.QueryResult{
		result("c10", "d1", 10, 0.9),
		result("c11", "d1", 11, 0.85),
	}
	assert.Len(t, Diversify(results, 0), 2)
}

func TestSortTieBreakByChunkIndex(t *testing.T) {
	results := []types.QueryResult{
		result("c5", "d1", 5, 0.8),
		result("c1", "d1", 1, 0.8),
		result("c9", "d0", 9, 0.8),
	}

	Sort(results)
	assert.Equal(t, "c9", results[0].ChunkID, "同分时按文档ID升序")
	assert.Equal(t, "c1", results[1].ChunkID, "同分同文档时按分片序号升序")
	assert.Equal(t, "c5", results[2].ChunkID)
}

func TestTopK(t *testing.T) {
	results := []types.QueryResult{
		result("c1", "d1", 0, 0.9),
		result("c2", "d1", 1, 0.8),
		result("c3", "d1", 2, 0.7),
	}

	assert.Len(t, TopK(results, 2), 2)
	assert.Len(t, TopK(results, 0), 3)
	assert.Len(t, TopK(results, 10), 3)
}
