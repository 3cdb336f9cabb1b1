package ollama

import (
	"github.com/mentraflow/mentraflow/pkg/ai"
	aioai "github.com/mentraflow/mentraflow/pkg/ai/openai"
)

const (
	NAME = "ollama"

	defaultEndpoint = "http://127.0.0.1:11434/v1"
)

// Driver 通过 ollama 的 OpenAI 兼容接口提供本地模型能力，
// 除默认模型与端点外行为与 openai 驱动一致。
type Driver struct {
	*aioai.Driver
}

func New(token, endpoint string, model ai.ModelName, dimension int) *Driver {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if model.ChatModel == "" {
		model.ChatModel = "qwen2.5"
	}
	if model.EmbeddingModel == "" {
		model.EmbeddingModel = "nomic-embed-text"
	}

	return &Driver{
		Driver: aioai.New(token, endpoint, model, dimension),
	}
}
