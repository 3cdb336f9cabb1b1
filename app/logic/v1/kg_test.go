package v1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentraflow/mentraflow/pkg/ai"
)

func concept(name string, confidence float64) ai.ConceptCandidate {
	return ai.ConceptCandidate{Name: name, Description: "about " + name, Confidence: confidence}
}

func TestFilterConceptsDropsEmptyAndLowConfidence(t *testing.T) {
	candidates := []ai.ConceptCandidate{
		concept("stack", 0.9),
		concept("   ", 0.9),
		concept("heap", 0.1),
	}

	result := FilterConcepts(candidates)
	require.Len(t, result, 1)
	assert.Equal(t, "stack", result[0].Name)
}

func TestFilterConceptsDedupesByNameKeepingHigherConfidence(t *testing.T) {
	candidates := []ai.ConceptCandidate{
		concept("Binary Tree", 0.5),
		concept("queue", 0.8),
		concept("binary tree", 0.9),
	}

	result := FilterConcepts(candidates)
	require.Len(t, result, 2)
	// 首次出现的位置保留，置信度取更高的版本
	assert.Equal(t, "binary tree", result[0].Name)
	assert.Equal(t, 0.9, result[0].Confidence)
	assert.Equal(t, "queue", result[1].Name)
}

func relation(src, relType, dst string, weight float64) ai.RelationCandidate {
	return ai.RelationCandidate{Src: src, RelType: relType, Dst: dst, Weight: weight, Confidence: 0.7}
}

func TestResolveRelationsMapsNamesToIDs(t *testing.T) {
	nameToID := map[string]string{"stack": "c1", "queue": "c2"}

	edges, dropped := ResolveRelations("w1", []ai.RelationCandidate{
		relation("Stack", "contrasts_with", "queue", 0.6),
	}, nameToID)

	require.Len(t, edges, 1)
	assert.Zero(t, dropped)
	assert.Equal(t, "c1", edges[0].SrcID)
	assert.Equal(t, "c2", edges[0].DstID)
	assert.Equal(t, "concept", edges[0].SrcType)
	assert.Equal(t, "concept", edges[0].DstType)
	assert.Equal(t, "w1", edges[0].WorkspaceID)
}

func TestResolveRelationsDropsInvalid(t *testing.T) {
	nameToID := map[string]string{"stack": "c1", "queue": "c2"}

	edges, dropped := ResolveRelations("w1", []ai.RelationCandidate{
		relation("stack", "part_of", "unknown concept", 0.5),
		relation("stack", "causes", "queue", 0.5),
		relation("stack", "relates_to", "Stack", 0.5),
	}, nameToID)

	assert.Empty(t, edges)
	assert.Equal(t, 3, dropped)
}

func TestResolveRelationsClampsWeights(t *testing.T) {
	nameToID := map[string]string{"stack": "c1", "queue": "c2"}

	edges, _ := ResolveRelations("w1", []ai.RelationCandidate{
		relation("stack", "relates_to", "queue", 1.5),
	}, nameToID)

	require.Len(t, edges, 1)
	assert.Equal(t, 1.0, edges[0].Weight)
}

func TestClampUnit(t *testing.T) {
	assert.Equal(t, 0.0, ClampUnit(-0.2))
	assert.Equal(t, 0.5, ClampUnit(0.5))
	assert.Equal(t, 1.0, ClampUnit(1.7))
}
