package v1

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryBulletsBounds(t *testing.T) {
	assert.Equal(t, SummaryMaxBullets, SummaryBullets(0))
	assert.Equal(t, SummaryMaxBullets, SummaryBullets(-3))
	assert.Equal(t, 1, SummaryBullets(1))
	assert.Equal(t, 12, SummaryBullets(12))
	assert.Equal(t, SummaryBulletsCap, SummaryBullets(99))
}

func TestSummaryQueriesCoverAngles(t *testing.T) {
	queries := SummaryQueries("Operating Systems")
	require.Len(t, queries, 3)
	for _, q := range queries {
		assert.Contains(t, q, "Operating Systems")
	}
}

func TestSummaryQueriesEmptyTitleFallback(t *testing.T) {
	queries := SummaryQueries("   ")
	require.Len(t, queries, 3)
	for _, q := range queries {
		assert.Contains(t, q, "this document")
	}
}

func TestAnalyzeContentQualityDistinctWords(t *testing.T) {
	quality := AnalyzeContentQuality([]string{"alpha beta gamma", "delta epsilon zeta"})
	assert.Equal(t, float64(0), quality.Repetition)
	assert.Equal(t, float64(1), quality.UniqueRatio)
	assert.False(t, quality.Conservative())
}

func TestAnalyzeContentQualityRepetitiveMaterial(t *testing.T) {
	chunk := strings.Repeat("same words again and again ", 20)
	quality := AnalyzeContentQuality([]string{chunk, chunk})
	assert.Greater(t, quality.Repetition, 0.5)
	assert.Less(t, quality.UniqueRatio, 0.2)
	assert.True(t, quality.Conservative())
}

func TestAnalyzeContentQualityCaseInsensitive(t *testing.T) {
	quality := AnalyzeContentQuality([]string{"Stack stack STACK"})
	assert.InDelta(t, 2.0/3.0, quality.Repetition, 1e-9)
	assert.InDelta(t, 1.0/3.0, quality.UniqueRatio, 1e-9)
}

func TestAnalyzeContentQualityEmpty(t *testing.T) {
	quality := AnalyzeContentQuality(nil)
	assert.Equal(t, ContentQuality{}, quality)
	assert.True(t, quality.Conservative())
}

func TestBuildSummaryContextJoinsAndTruncates(t *testing.T) {
	joined := BuildSummaryContext([]string{"first", "second"}, 0)
	assert.Equal(t, "first\n\nsecond", joined)

	truncated := BuildSummaryContext([]string{"abcdefgh"}, 4)
	assert.Equal(t, "abcd", truncated)
}

func TestBuildSummaryContextRuneSafeTruncation(t *testing.T) {
	truncated := BuildSummaryContext([]string{"数据结构与算法"}, 4)
	assert.Equal(t, "数据结构", truncated)
}
