package v1

import (
	"fmt"
	"strings"
)

const (
	// summaryTopKPerQuery 摘要检索时每路查询取的分片数
	SummaryTopKPerQuery = 5
	// summaryFallbackChunks 检索无结果时退化为取文档开头的分片数
	SummaryFallbackChunks = 8
	// summaryMaxContextChars 送入模型的摘要上下文字符数上限
	SummaryMaxContextChars = 3000
	// summaryMaxBullets 未指定时的摘要要点数量
	SummaryMaxBullets = 6
	// summaryBulletsCap 调用方可请求的要点数量上限
	SummaryBulletsCap = 20

	// repetitionThreshold 重复率超过该值认为素材冗余
	repetitionThreshold = 0.5
	// uniqueRatioThreshold 去重词占比低于该值认为素材单调
	uniqueRatioThreshold = 0.2
)

// SummaryBullets 将调用方请求的要点数量收敛到合法区间，未指定时取默认值
func SummaryBullets(requested int) int {
	if requested <= 0 {
		return SummaryMaxBullets
	}
	if requested > SummaryBulletsCap {
		return SummaryBulletsCap
	}
	return requested
}

// SummaryQueries 围绕文档标题构造多角度检索查询，覆盖主旨、概念与结论
func SummaryQueries(title string) []string {
	topic := strings.TrimSpace(title)
	if topic == "" {
		topic = "this document"
	}
	return []string{
		fmt.Sprintf("main ideas of %s", topic),
		fmt.Sprintf("key concepts and definitions in %s", topic),
		fmt.Sprintf("conclusions and takeaways of %s", topic),
	}
}

// ContentQuality 摘要素材质量指标
type ContentQuality struct {
	Repetition  float64 `json:"repetition"`   // 相邻分片重复率
	UniqueRatio float64 `json:"unique_ratio"` // 去重词占比
}

// Conservative 素材冗余或单调时改用保守摘要策略，少说多证
func (q ContentQuality) Conservative() bool {
	return q.Repetition > repetitionThreshold || q.UniqueRatio < uniqueRatioThreshold
}

// AnalyzeContentQuality 统计素材的词级重复率与去重词占比
func AnalyzeContentQuality(chunks []string) ContentQuality {
	var (
		total  int
		unique = make(map[string]struct{})
		dup    int
	)
	for _, chunk := range chunks {
		words := strings.Fields(strings.ToLower(chunk))
		for _, w := range words {
			total++
			if _, exist := unique[w]; exist {
				dup++
				continue
			}
			unique[w] = struct{}{}
		}
	}
	if total == 0 {
		return ContentQuality{}
	}
	return ContentQuality{
		Repetition:  float64(dup) / float64(total),
		UniqueRatio: float64(len(unique)) / float64(total),
	}
}

// BuildSummaryContext 拼接分片并截断到上限，按 rune 截断避免拆散多字节字符
func BuildSummaryContext(chunks []string, maxChars int) string {
	joined := strings.Join(chunks, "\n\n")
	runes := []rune(joined)
	if maxChars > 0 && len(runes) > maxChars {
		return string(runes[:maxChars])
	}
	return joined
}
