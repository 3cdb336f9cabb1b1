package v1

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mentraflow/mentraflow/pkg/types"
)

func retrieved(chunkID string) types.RetrievedChunk {
	return types.RetrievedChunk{
		Chunk: types.DocumentChunk{ID: chunkID, Content: "content of " + chunkID},
		Score: 0.7,
	}
}

func TestValidateCitationsDropsUnknown(t *testing.T) {
	results := []types.RetrievedChunk{retrieved("c1"), retrieved("c2")}

	valid := validateCitations([]string{"c1", "c9", "c2"}, results)
	assert.Equal(t, []string{"c1", "c2"}, valid)
}

func TestValidateCitationsStripsMarkers(t *testing.T) {
	results := []types.RetrievedChunk{retrieved("c1"), retrieved("c2"), retrieved("c3")}

	valid := validateCitations([]string{"[chunk:c1]", "chunk:c2", " c3 "}, results)
	assert.Equal(t, []string{"c1", "c2", "c3"}, valid)
}

func TestValidateCitationsDedupesKeepingOrder(t *testing.T) {
	results := []types.RetrievedChunk{retrieved("c1"), retrieved("c2")}

	valid := validateCitations([]string{"c2", "c1", "c2", "[chunk:c1]"}, results)
	assert.Equal(t, []string{"c2", "c1"}, valid)
}

func TestValidateCitationsEmptyInputs(t *testing.T) {
	assert.Empty(t, validateCitations(nil, []types.RetrievedChunk{retrieved("c1")}))
	assert.Empty(t, validateCitations([]string{"c1"}, nil))
}

func TestAnswerConfidence(t *testing.T) {
	tests := []struct {
		name     string
		valid    int
		results  int
		expected float64
	}{
		{"no results", 3, 0, 0},
		{"no valid citations", 0, 8, 0},
		{"majority coverage", 4, 8, 0.8},
		{"exactly half", 3, 6, 0.8},
		{"minority coverage", 2, 8, 0.6},
		{"single citation single result", 1, 1, 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, answerConfidence(tt.valid, tt.results))
		})
	}
}

func TestResolveConfidencePrefersModelValue(t *testing.T) {
	reported := 0.35
	assert.Equal(t, 0.35, resolveConfidence(&reported, 4, 8))

	// 模型返回越界值时收敛到 [0,1]
	high := 1.4
	assert.Equal(t, 1.0, resolveConfidence(&high, 0, 0))
	low := -0.2
	assert.Equal(t, 0.0, resolveConfidence(&low, 4, 8))

	// 模型显式返回 0 也按模型值采信，不走启发式
	zero := 0.0
	assert.Equal(t, 0.0, resolveConfidence(&zero, 4, 8))
}

func TestResolveConfidenceFallsBackToHeuristic(t *testing.T) {
	assert.Equal(t, 0.8, resolveConfidence(nil, 4, 8))
	assert.Equal(t, 0.6, resolveConfidence(nil, 2, 8))
	assert.Equal(t, 0.0, resolveConfidence(nil, 0, 8))
}
