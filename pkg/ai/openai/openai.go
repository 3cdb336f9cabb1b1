package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/samber/lo"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"golang.org/x/time/rate"

	"github.com/mentraflow/mentraflow/pkg/ai"
	"github.com/mentraflow/mentraflow/pkg/types"
)

const (
	NAME = "openai"

	batchMax      = 6
	retryAttempts = 3
)

type Driver struct {
	client    *openai.Client
	model     ai.ModelName
	dimension int
	limiter   *rate.Limiter
}

func NewClient(token, proxy string) *openai.Client {
	cfg := openai.DefaultConfig(token)
	if proxy != "" {
		cfg.BaseURL = proxy
	}
	return openai.NewClientWithConfig(cfg)
}

func New(token, proxy string, model ai.ModelName, dimension int) *Driver {
	if model.ChatModel == "" {
		model.ChatModel = openai.GPT4oMini
	}
	if model.EmbeddingModel == "" {
		model.EmbeddingModel = string(openai.LargeEmbedding3)
	}
	if dimension <= 0 {
		dimension = 1024
	}

	return &Driver{
		client:    NewClient(token, proxy),
		model:     model,
		dimension: dimension,
		limiter:   rate.NewLimiter(rate.Every(time.Second/10), 10),
	}
}

func (s *Driver) Lang() string {
	return ai.MODEL_BASE_LANGUAGE_EN
}

func (s *Driver) embedding(ctx context.Context, content []string) (ai.EmbeddingResult, error) {
	slog.Debug("Embedding", slog.String("driver", NAME), slog.Int("inputs", len(content)))

	queryReq := openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(s.model.EmbeddingModel),
		Dimensions: s.dimension,
	}

	r := ai.EmbeddingResult{
		Usage: &openai.Usage{},
	}

	var result [][]float32
	for gi, group := range ai.SplitBatches(content, batchMax) {
		if err := s.limiter.Wait(ctx); err != nil {
			return r, err
		}

		queryReq.Input = group
		resp, err := retry.DoWithData(func() (openai.EmbeddingResponse, error) {
			return s.client.CreateEmbeddings(ctx, queryReq)
		}, retry.Attempts(retryAttempts), retry.Context(ctx), retry.LastErrorOnly(true))
		if err != nil {
			return r, fmt.Errorf("failed to create embedding for batch at offset %d, %w", gi*batchMax, err)
		}

		for _, v := range resp.Data {
			result = append(result, v.Embedding)
		}

		r.Usage.CompletionTokens += resp.Usage.CompletionTokens
		r.Usage.PromptTokens += resp.Usage.PromptTokens
		r.Usage.TotalTokens += resp.Usage.TotalTokens
		r.Model = string(resp.Model)
	}

	r.Data = result
	return r, nil
}

func (s *Driver) EmbeddingForQuery(ctx context.Context, content []string) (ai.EmbeddingResult, error) {
	return s.embedding(ctx, content)
}

func (s *Driver) EmbeddingForDocument(ctx context.Context, title string, content []string) (ai.EmbeddingResult, error) {
	return s.embedding(ctx, content)
}

func (s *Driver) MsgIsOverLimit(msgs []types.MessageContext) bool {
	tokenNum, err := ai.NumTokens(lo.Map(msgs, func(item types.MessageContext, _ int) openai.ChatCompletionMessage {
		return item.ToChatCompletionMessage()
	}), s.model.ChatModel)
	if err != nil {
		slog.Error("Failed to tik request token", slog.String("error", err.Error()), slog.String("driver", NAME), slog.String("model", s.model.ChatModel))
		return false
	}

	return tokenNum > 8000
}

func (s *Driver) EnhanceQuery(ctx context.Context, messages []openai.ChatCompletionMessage) (ai.EnhanceQueryResult, error) {
	slog.Debug("EnhanceQuery", slog.String("driver", NAME))

	req := openai.ChatCompletionRequest{
		Model:       s.model.ChatModel,
		Messages:    messages,
		Temperature: 0.1,
		MaxTokens:   200,
	}

	var result ai.EnhanceQueryResult

	resp, err := retry.DoWithData(func() (openai.ChatCompletionResponse, error) {
		resp, err := s.client.CreateChatCompletion(ctx, req)
		if err != nil || len(resp.Choices) != 1 {
			return resp, fmt.Errorf("Completion error: err:%v len(choices):%v", err, len(resp.Choices))
		}
		return resp, nil
	}, retry.Attempts(retryAttempts), retry.Context(ctx), retry.LastErrorOnly(true))
	if err != nil {
		return result, err
	}

	var enhanceQuerys []string
	if err = json.Unmarshal([]byte(resp.Choices[0].Message.Content), &enhanceQuerys); err != nil {
		return result, fmt.Errorf("failed to unmarshal query enhance result, %w", err)
	}

	result.News = enhanceQuerys
	result.Model = resp.Model
	result.Usage = &resp.Usage
	return result, nil
}

const answerFuncName = "answer"

func (s *Driver) ChatAnswer(ctx context.Context, messages []openai.ChatCompletionMessage) (ai.ChatAnswerResult, error) {
	slog.Debug("ChatAnswer", slog.String("driver", NAME))

	params := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"answer": {
				Type:        jsonschema.String,
				Description: "The answer to the user's question, grounded in the provided passages. Markdown format.",
			},
			"citations": {
				Type:        jsonschema.Array,
				Description: "Chunk ids of the passages that support the answer.",
				Items:       &jsonschema.Definition{Type: jsonschema.String},
			},
			"confidence": {
				Type:        jsonschema.Number,
				Description: "How confident the answer is supported by the passages, from 0 to 1.",
			},
			"insufficient_info": {
				Type:        jsonschema.Boolean,
				Description: "True when the passages do not contain enough information to answer.",
			},
			"suggested_note": {
				Type:        jsonschema.Object,
				Description: "Optional note the user may want to save, derived from this exchange.",
				Properties: map[string]jsonschema.Definition{
					"title":   {Type: jsonschema.String},
					"content": {Type: jsonschema.String},
				},
			},
		},
		Required: []string{"answer", "citations", "insufficient_info"},
	}

	result, usage, err := ai.CallFunction[ai.ChatAnswerResult](ctx, s.client, s.model.ChatModel, answerFuncName, "Answer grounded in the retrieved passages.", params, messages)
	if err != nil {
		return result, err
	}
	result.Model = s.model.ChatModel
	result.Usage = usage
	return result, nil
}

const summarizeFuncName = "summarize"

func (s *Driver) Summarize(ctx context.Context, doc *string, maxBullets int, conservative bool, lang string) (ai.SummarizeResult, error) {
	slog.Debug("Summarize", slog.String("driver", NAME), slog.Bool("conservative", conservative))

	params := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"summary": {
				Type:        jsonschema.String,
				Description: "A short lead paragraph summarizing the material.",
			},
			"bullets": {
				Type:        jsonschema.Array,
				Description: "Key points, most important first.",
				Items:       &jsonschema.Definition{Type: jsonschema.String},
			},
		},
		Required: []string{"summary", "bullets"},
	}

	prompt := strings.ReplaceAll(ai.PROMPT_SUMMARY_EN, "{max_bullets}", strconv.Itoa(maxBullets))
	prompt = ai.ReplaceLang(prompt, lang)
	if conservative {
		prompt += ai.PROMPT_SUMMARY_CONSERVATIVE_APPEND_EN
	}

	dialogue := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: prompt},
		{Role: openai.ChatMessageRoleUser, Content: *doc},
	}

	result, usage, err := ai.CallFunction[ai.SummarizeResult](ctx, s.client, s.model.ChatModel, summarizeFuncName, "Summarize the study material.", params, dialogue)
	if err != nil {
		return result, err
	}
	if len(result.Bullets) > maxBullets && maxBullets > 0 {
		result.Bullets = result.Bullets[:maxBullets]
	}
	result.Model = s.model.ChatModel
	result.Usage = usage
	return result, nil
}

const flashcardFuncName = "create_flashcards"

func (s *Driver) GenerateFlashcards(ctx context.Context, doc *string, cardType string, maxCards int, lang string) (ai.FlashcardGenResult, error) {
	slog.Debug("GenerateFlashcards", slog.String("driver", NAME), slog.String("card_type", cardType))

	cardSchema := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"card_type": {
				Type:        jsonschema.String,
				Description: "Either qa or mcq, matching the requested type.",
				Enum:        []string{"qa", "mcq"},
			},
			"front": {
				Type:        jsonschema.String,
				Description: "The question side of the card.",
			},
			"back": {
				Type:        jsonschema.String,
				Description: "The answer side, or the explanation for mcq cards.",
			},
			"options": {
				Type:        jsonschema.Array,
				Description: "Choice options, only for mcq cards.",
				Items:       &jsonschema.Definition{Type: jsonschema.String},
			},
			"correct_option": {
				Type:        jsonschema.Integer,
				Description: "Zero-based index of the correct option, only for mcq cards.",
			},
		},
		Required: []string{"card_type", "front", "back"},
	}

	params := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"cards": {
				Type:  jsonschema.Array,
				Items: &cardSchema,
			},
		},
		Required: []string{"cards"},
	}

	tpl := ai.PROMPT_FLASHCARD_QA_EN
	if cardType == "mcq" {
		tpl = ai.PROMPT_FLASHCARD_MCQ_EN
	}
	prompt := strings.ReplaceAll(tpl, "{max_cards}", strconv.Itoa(maxCards))
	prompt = ai.ReplaceLang(prompt, lang)

	dialogue := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: prompt},
		{Role: openai.ChatMessageRoleUser, Content: *doc},
	}

	result, usage, err := ai.CallFunction[ai.FlashcardGenResult](ctx, s.client, s.model.ChatModel, flashcardFuncName, "Create flashcards from the study material.", params, dialogue)
	if err != nil {
		return result, err
	}
	result.Model = s.model.ChatModel
	result.Usage = usage
	return result, nil
}

const kgFuncName = "extract_knowledge_graph"

func (s *Driver) ExtractKnowledgeGraph(ctx context.Context, doc *string) (ai.KGExtractResult, error) {
	slog.Debug("ExtractKnowledgeGraph", slog.String("driver", NAME))

	conceptSchema := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"name":         {Type: jsonschema.String, Description: "Short noun phrase naming the concept."},
			"description":  {Type: jsonschema.String, Description: "One or two sentence description."},
			"concept_type": {Type: jsonschema.String, Description: "definition, theorem, person, method or event."},
			"aliases": {
				Type:  jsonschema.Array,
				Items: &jsonschema.Definition{Type: jsonschema.String},
			},
			"confidence": {Type: jsonschema.Number, Description: "Extraction certainty in [0,1]."},
		},
		Required: []string{"name", "description", "confidence"},
	}
	relationSchema := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"src":        {Type: jsonschema.String, Description: "Name of the source concept."},
			"rel_type":   {Type: jsonschema.String, Description: "relates_to, part_of, example_of, depends_on or contrasts_with."},
			"dst":        {Type: jsonschema.String, Description: "Name of the target concept."},
			"weight":     {Type: jsonschema.Number, Description: "Relation strength in [0,1]."},
			"confidence": {Type: jsonschema.Number, Description: "Extraction certainty in [0,1]."},
		},
		Required: []string{"src", "rel_type", "dst"},
	}
	params := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"concepts":  {Type: jsonschema.Array, Items: &conceptSchema},
			"relations": {Type: jsonschema.Array, Items: &relationSchema},
		},
		Required: []string{"concepts", "relations"},
	}

	dialogue := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: ai.PROMPT_KG_EXTRACT_EN},
		{Role: openai.ChatMessageRoleUser, Content: *doc},
	}

	result, usage, err := ai.CallFunction[ai.KGExtractResult](ctx, s.client, s.model.ChatModel, kgFuncName, "Extract concepts and relations from the study material.", params, dialogue)
	if err != nil {
		return result, err
	}
	result.Model = s.model.ChatModel
	result.Usage = usage
	return result, nil
}
