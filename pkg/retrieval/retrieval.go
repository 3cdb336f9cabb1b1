package retrieval

import (
	"sort"

	"github.com/mentraflow/mentraflow/pkg/types"
)

// Merge 合并多路查询的召回结果，按 chunk 去重，重复命中保留最高分
func Merge(lists ...[]types.QueryResult) []types.QueryResult {
	best := make(map[string]types.QueryResult)
	for _, list := range lists {
		for _, item := range list {
			if exist, ok := best[item.ChunkID]; !ok || item.Cos > exist.Cos {
				best[item.ChunkID] = item
			}
		}
	}

	merged := make([]types.QueryResult, 0, len(best))
	for _, v := range best {
		merged = append(merged, v)
	}
	Sort(merged)
	return merged
}

// ApplyThreshold 过滤低于阈值的结果，阈值是硬性下限
func ApplyThreshold(results []types.QueryResult, threshold float32) []types.QueryResult {
	filtered := make([]types.QueryResult, 0, len(results))
	for _, v := range results {
		if v.Cos >= threshold {
			filtered = append(filtered, v)
		}
	}
	return filtered
}

// Diversify 抑制同一文档中与已选分片相邻的分片，window 为相邻判定的序号距离。
// 输入需要已按得分排序，高分分片优先保留。
func Diversify(results []types.QueryResult, window int) []types.QueryResult {
	if window <= 0 {
		return results
	}

	selected := make([]types.QueryResult, 0, len(results))
	for _, candidate := range results {
		adjacent := false
		for _, kept := range selected {
			if kept.DocumentID != candidate.DocumentID {
				continue
			}
			delta := kept.ChunkIndex - candidate.ChunkIndex
			if delta < 0 {
				delta = -delta
			}
			if delta <= window {
				adjacent = true
				break
			}
		}
		if !adjacent {
			selected = append(selected, candidate)
		}
	}
	return selected
}

// Sort 结果排序：得分降序，同分按文档ID、分片序号升序，保证排序稳定可复现
func Sort(results []types.QueryResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Cos != results[j].Cos {
			return results[i].Cos > results[j].Cos
		}
		if results[i].DocumentID != results[j].DocumentID {
			return results[i].DocumentID < results[j].DocumentID
		}
		return results[i].ChunkIndex < results[j].ChunkIndex
	})
}

func TopK(results []types.QueryResult, k int) []types.QueryResult {
	if k <= 0 || k >= len(results) {
		return results
	}
	return results[:k]
}
