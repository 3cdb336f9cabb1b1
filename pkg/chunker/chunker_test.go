package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEmpty(t *testing.T) {
	_, err := Split("", Options{})
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = Split("   \n\t  ", Options{})
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestSplitInvalidOverlap(t *testing.T) {
	_, err := Split("hello world", Options{ChunkSize: 100, Overlap: 100})
	assert.ErrorIs(t, err, ErrInvalidOption)
}

func TestSplitShortDocument(t *testing.T) {
	text := "短文本不需要切分。"
	chunks, err := Split(text, Options{})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 0, chunks[0].StartChar)
	assert.Equal(t, len([]rune(text)), chunks[0].EndChar)
	assert.Equal(t, text, chunks[0].Content)
}

func TestSplitOffsetsReconstruct(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		b.WriteString("图谱抽取依赖检索到的分片内容。每个分片都要能还原回原文。")
	}
	text := b.String()

	chunks, err := Split(text, Options{ChunkSize: 200, Overlap: 40})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	runes := []rune(text)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, string(runes[c.StartChar:c.EndChar]), c.Content, "chunk %d content must match its offsets", i)
		assert.LessOrEqual(t, c.EndChar-c.StartChar, 200)
		assert.Positive(t, c.TokenCount)
	}

	// 相邻分片首尾相连，中间不允许有空洞
	for i := 1; i < len(chunks); i++ {
		assert.LessOrEqual(t, chunks[i].StartChar, chunks[i-1].EndChar)
		assert.Greater(t, chunks[i].StartChar, chunks[i-1].StartChar)
	}
	assert.Equal(t, len(runes), chunks[len(chunks)-1].EndChar)
}

func TestSplitDeterministic(t *testing.T) {
	text := strings.Repeat("Consistency matters. The same input must always produce the same chunks. ", 50)

	first, err := Split(text, Options{ChunkSize: 300, Overlap: 60})
	require.NoError(t, err)
	second, err := Split(text, Options{ChunkSize: 300, Overlap: 60})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	text := strings.Repeat("This is a sentence. ", 30)
	chunks, err := Split(text, Options{ChunkSize: 100, Overlap: 20})
	require.NoError(t, err)

	for _, c := range chunks[:len(chunks)-1] {
		trimmed := strings.TrimRight(c.Content, " \n")
		assert.True(t, strings.HasSuffix(trimmed, "."), "chunk should end at a sentence boundary, got %q", trimmed)
	}
}

func TestSplitPrefersParagraphBoundary(t *testing.T) {
	para := strings.Repeat("word ", 30) + "\n\n"
	text := strings.Repeat(para, 10)

	chunks, err := Split(text, Options{ChunkSize: 200, Overlap: 0})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	assert.True(t, strings.HasSuffix(chunks[0].Content, "\n\n"))
}

func TestSplitProgressWithoutBoundaries(t *testing.T) {
	// 无任何自然断点的长串也必须前进并终止
	text := strings.Repeat("a", 5000)
	chunks, err := Split(text, Options{ChunkSize: 800, Overlap: 120})
	require.NoError(t, err)

	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].EndChar-120, chunks[i].StartChar)
	}
	assert.Equal(t, 5000, chunks[len(chunks)-1].EndChar)
}
