package v1

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentraflow/mentraflow/pkg/ai"
	"github.com/mentraflow/mentraflow/pkg/types"
)

func qaCard(front, back string) ai.FlashcardCandidate {
	return ai.FlashcardCandidate{CardType: "qa", Front: front, Back: back}
}

func TestValidateFlashcardRejections(t *testing.T) {
	tests := []struct {
		name   string
		card   ai.FlashcardCandidate
		reason string
	}{
		{"empty front", qaCard("", "a valid answer"), "empty_field"},
		{"blank back", qaCard("what is recursion?", "   "), "empty_field"},
		{"front too long", qaCard(strings.Repeat("长", 201), "a valid answer"), "front_too_long"},
		{"back too long", qaCard("what is recursion?", strings.Repeat("长", 301)), "back_too_long"},
		{"front too short", qaCard("why?", "because of reasons"), "too_short"},
		{"type mismatch", ai.FlashcardCandidate{CardType: "mcq", Front: "what is recursion?", Back: "self reference"}, "type_mismatch"},
		{"front equals back", qaCard("Recursion basics", "recursion BASICS"), "trivial"},
		{"back repeats front", qaCard("recursion is", "Recursion is a function calling itself"), "repetitive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.reason, validateFlashcard(tt.card, types.FLASHCARD_TYPE_QA))
		})
	}
}

func TestValidateFlashcardMCQOptions(t *testing.T) {
	base := ai.FlashcardCandidate{
		CardType: "mcq",
		Front:    "which structure is LIFO?",
		Back:     "a stack pops the most recently pushed element",
	}

	card := base
	card.Options = []string{"stack", "Stack", " "}
	card.CorrectOption = 0
	assert.Equal(t, "invalid_options", validateFlashcard(card, types.FLASHCARD_TYPE_MCQ))

	card = base
	card.Options = []string{"stack", "queue", "heap"}
	card.CorrectOption = 3
	assert.Equal(t, "invalid_correct_option", validateFlashcard(card, types.FLASHCARD_TYPE_MCQ))

	card.CorrectOption = -1
	assert.Equal(t, "invalid_correct_option", validateFlashcard(card, types.FLASHCARD_TYPE_MCQ))

	card.CorrectOption = 0
	assert.Empty(t, validateFlashcard(card, types.FLASHCARD_TYPE_MCQ))
}

func TestValidateFlashcardsSplitsValidAndDropped(t *testing.T) {
	candidates := []ai.FlashcardCandidate{
		qaCard("what is a closure?", "a function plus its captured environment"),
		qaCard("", "missing front"),
		{Front: "what is a pointer?", Back: "an address of a value in memory"}, // 未声明类型的卡片按任务类型处理
	}

	valid, dropped := ValidateFlashcards(candidates, types.FLASHCARD_TYPE_QA)
	require.Len(t, valid, 2)
	require.Len(t, dropped, 1)
	assert.Equal(t, "empty_field", dropped[0].Reason)
	assert.Equal(t, "what is a closure?", valid[0].Front)
}
