package srv

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mentraflow/mentraflow/pkg/ai"
	aiollama "github.com/mentraflow/mentraflow/pkg/ai/ollama"
	aiopenai "github.com/mentraflow/mentraflow/pkg/ai/openai"
	"github.com/mentraflow/mentraflow/pkg/types"
)

// EmbeddingAI 向量化能力
type EmbeddingAI interface {
	ai.Lang
	EmbeddingForQuery(ctx context.Context, content []string) (ai.EmbeddingResult, error)
	EmbeddingForDocument(ctx context.Context, title string, content []string) (ai.EmbeddingResult, error)
}

// GenerationAI 生成类能力，检索问答、摘要、闪卡与知识图谱抽取
type GenerationAI interface {
	ai.Lang
	MsgIsOverLimit(msgs []types.MessageContext) bool
	EnhanceQuery(ctx context.Context, messages []openai.ChatCompletionMessage) (ai.EnhanceQueryResult, error)
	ChatAnswer(ctx context.Context, messages []openai.ChatCompletionMessage) (ai.ChatAnswerResult, error)
	Summarize(ctx context.Context, doc *string, maxBullets int, conservative bool, lang string) (ai.SummarizeResult, error)
	GenerateFlashcards(ctx context.Context, doc *string, cardType string, maxCards int, lang string) (ai.FlashcardGenResult, error)
	ExtractKnowledgeGraph(ctx context.Context, doc *string) (ai.KGExtractResult, error)
}

type AIDriver interface {
	EmbeddingAI
	GenerationAI
	EmbeddingModel() string
	Dimension() int
}

type AIConfig struct {
	// 驱动选择，openai 或 ollama
	Driver string `toml:"driver"`
	OpenAI AgentDriver `toml:"openai"`
	Ollama AgentDriver `toml:"ollama"`
}

type AgentDriver struct {
	Token     string       `toml:"token"`
	Endpoint  string       `toml:"endpoint"`
	Model     ai.ModelName `toml:"model"`
	Dimension int          `toml:"dimension"`
}

type AI struct {
	driverName string
	embedding  EmbeddingAI
	generation GenerationAI

	embeddingModel string
	dimension      int
}

func (s *AI) Lang() string {
	return s.generation.Lang()
}

func (s *AI) EmbeddingModel() string {
	return s.embeddingModel
}

func (s *AI) Dimension() int {
	return s.dimension
}

func (s *AI) EmbeddingForQuery(ctx context.Context, content []string) (ai.EmbeddingResult, error) {
	return s.embedding.EmbeddingForQuery(ctx, content)
}

func (s *AI) EmbeddingForDocument(ctx context.Context, title string, content []string) (ai.EmbeddingResult, error) {
	return s.embedding.EmbeddingForDocument(ctx, title, content)
}

func (s *AI) MsgIsOverLimit(msgs []types.MessageContext) bool {
	return s.generation.MsgIsOverLimit(msgs)
}

func (s *AI) EnhanceQuery(ctx context.Context, messages []openai.ChatCompletionMessage) (ai.EnhanceQueryResult, error) {
	return s.generation.EnhanceQuery(ctx, messages)
}

func (s *AI) ChatAnswer(ctx context.Context, messages []openai.ChatCompletionMessage) (ai.ChatAnswerResult, error) {
	return s.generation.ChatAnswer(ctx, messages)
}

func (s *AI) Summarize(ctx context.Context, doc *string, maxBullets int, conservative bool, lang string) (ai.SummarizeResult, error) {
	return s.generation.Summarize(ctx, doc, maxBullets, conservative, lang)
}

func (s *AI) GenerateFlashcards(ctx context.Context, doc *string, cardType string, maxCards int, lang string) (ai.FlashcardGenResult, error) {
	return s.generation.GenerateFlashcards(ctx, doc, cardType, maxCards, lang)
}

func (s *AI) ExtractKnowledgeGraph(ctx context.Context, doc *string) (ai.KGExtractResult, error) {
	return s.generation.ExtractKnowledgeGraph(ctx, doc)
}

// SetupAI 根据配置装配 AI 驱动，嵌入与生成使用同一驱动实例
func SetupAI(cfg AIConfig) (*AI, error) {
	switch cfg.Driver {
	case aiollama.NAME:
		d := aiollama.New(cfg.Ollama.Token, cfg.Ollama.Endpoint, cfg.Ollama.Model, cfg.Ollama.Dimension)
		return &AI{
			driverName:     aiollama.NAME,
			embedding:      d,
			generation:     d,
			embeddingModel: embeddingModelOrDefault(cfg.Ollama.Model.EmbeddingModel, "nomic-embed-text"),
			dimension:      dimensionOrDefault(cfg.Ollama.Dimension),
		}, nil
	case aiopenai.NAME, "":
		d := aiopenai.New(cfg.OpenAI.Token, cfg.OpenAI.Endpoint, cfg.OpenAI.Model, cfg.OpenAI.Dimension)
		return &AI{
			driverName:     aiopenai.NAME,
			embedding:      d,
			generation:     d,
			embeddingModel: embeddingModelOrDefault(cfg.OpenAI.Model.EmbeddingModel, string(openai.LargeEmbedding3)),
			dimension:      dimensionOrDefault(cfg.OpenAI.Dimension),
		}, nil
	default:
		return nil, fmt.Errorf("unknown ai driver %s", cfg.Driver)
	}
}

func embeddingModelOrDefault(model, fallback string) string {
	if model == "" {
		return fallback
	}
	return model
}

func dimensionOrDefault(dimension int) int {
	if dimension <= 0 {
		return 1024
	}
	return dimension
}

func ApplyAI(cfg AIConfig) ApplyFunc {
	return func(s *Srv) {
		d, err := SetupAI(cfg)
		if err != nil {
			panic(err)
		}
		s.ai = d
	}
}
