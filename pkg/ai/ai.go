package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/avast/retry-go/v4"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/pkoukk/tiktoken-go"
)

// callRetryAttempts 函数调用类请求的重试次数，传输错误、限流、
// 模型未按 schema 返回都会触发重试
const callRetryAttempts = 3

type ModelName struct {
	ChatModel      string `toml:"chat_model"`
	EmbeddingModel string `toml:"embedding_model"`
}

const (
	MODEL_BASE_LANGUAGE_CN = "CN"
	MODEL_BASE_LANGUAGE_EN = "EN"
)

type Lang interface {
	Lang() string
}

type EmbeddingResult struct {
	Model string
	Usage *openai.Usage
	Data  [][]float32
}

type EnhanceQueryResult struct {
	Original string        `json:"original"`
	News     []string      `json:"news"`
	Model    string        `json:"model"`
	Usage    *openai.Usage `json:"-"`
}

// Queries 原始查询与改写结果合并为多路检索入参
func (e EnhanceQueryResult) Queries() []string {
	queries := []string{e.Original}
	for _, item := range e.News {
		if strings.TrimSpace(item) == "" || item == e.Original {
			continue
		}
		queries = append(queries, item)
	}
	return queries
}

type SuggestedNote struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type ChatAnswerResult struct {
	Answer    string   `json:"answer"`
	Citations []string `json:"citations"`
	// Confidence 模型自报的置信度，未返回时为 nil，由调用方按引用覆盖度估算
	Confidence       *float64       `json:"confidence"`
	InsufficientInfo bool           `json:"insufficient_info"`
	SuggestedNote    *SuggestedNote `json:"suggested_note,omitempty"`
	Model            string         `json:"-"`
	Usage            *openai.Usage  `json:"-"`
}

type SummarizeResult struct {
	Summary string        `json:"summary"`
	Bullets []string      `json:"bullets"`
	Model   string        `json:"-"`
	Usage   *openai.Usage `json:"-"`
}

type FlashcardCandidate struct {
	CardType      string   `json:"card_type"`
	Front         string   `json:"front"`
	Back          string   `json:"back"`
	Options       []string `json:"options,omitempty"`
	CorrectOption int      `json:"correct_option"`
}

type FlashcardGenResult struct {
	Cards []FlashcardCandidate `json:"cards"`
	Model string               `json:"-"`
	Usage *openai.Usage        `json:"-"`
}

type ConceptCandidate struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ConceptType string   `json:"concept_type"`
	Aliases     []string `json:"aliases,omitempty"`
	Confidence  float64  `json:"confidence"`
}

type RelationCandidate struct {
	Src        string  `json:"src"`
	RelType    string  `json:"rel_type"`
	Dst        string  `json:"dst"`
	Weight     float64 `json:"weight"`
	Confidence float64 `json:"confidence"`
}

type KGExtractResult struct {
	Concepts  []ConceptCandidate  `json:"concepts"`
	Relations []RelationCandidate `json:"relations"`
	Model     string              `json:"-"`
	Usage     *openai.Usage       `json:"-"`
}

// SplitBatches 将待向量化文本按 batchMax 分组，保持原有顺序
func SplitBatches(content []string, batchMax int) [][]string {
	if batchMax <= 0 {
		batchMax = 1
	}
	var groups [][]string
	for i, v := range content {
		if i%batchMax == 0 {
			groups = append(groups, []string{})
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], v)
	}
	return groups
}

type functionCall[T any] struct {
	result T
	usage  *openai.Usage
}

// CallFunction 以强制工具调用的方式获取结构化输出，并反序列化到 T。
// 请求失败或模型返回不符合 schema 时按 callRetryAttempts 指数退避重试
func CallFunction[T any](ctx context.Context, client *openai.Client, model, fnName, fnDesc string, params jsonschema.Definition, messages []openai.ChatCompletionMessage) (T, *openai.Usage, error) {
	f := openai.FunctionDefinition{
		Name:        fnName,
		Description: fnDesc,
		Parameters:  params,
	}
	t := openai.Tool{
		Type:     openai.ToolTypeFunction,
		Function: &f,
	}

	call, err := retry.DoWithData(func() (functionCall[T], error) {
		var out functionCall[T]
		resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    model,
			Messages: messages,
			Tools:    []openai.Tool{t},
			ToolChoice: openai.ToolChoice{
				Type:     openai.ToolTypeFunction,
				Function: openai.ToolFunction{Name: fnName},
			},
		})
		if err != nil || len(resp.Choices) != 1 {
			return out, fmt.Errorf("Completion error: err:%v len(choices):%v", err, len(resp.Choices))
		}
		out.usage = &resp.Usage

		var matched bool
		for _, v := range resp.Choices[0].Message.ToolCalls {
			if v.Function.Name != fnName {
				continue
			}
			if err = json.Unmarshal([]byte(v.Function.Arguments), &out.result); err != nil {
				return out, fmt.Errorf("failed to unmarshal func call arguments of %s, %w", fnName, err)
			}
			matched = true
		}
		if !matched {
			return out, fmt.Errorf("model did not call the %s function", fnName)
		}
		return out, nil
	}, retry.Attempts(callRetryAttempts), retry.Context(ctx), retry.LastErrorOnly(true))

	return call.result, call.usage, err
}

func NumTokens(messages []openai.ChatCompletionMessage, model string) (numTokens int, err error) {
	var tokensPerMessage, tokensPerName int
	switch model {
	case "gpt-3.5-turbo-0613",
		"gpt-3.5-turbo-16k-0613",
		"gpt-4-0314",
		"gpt-4-32k-0314",
		"gpt-4-0613",
		"gpt-4-32k-0613":
		tokensPerMessage = 3
		tokensPerName = 1
	case "gpt-3.5-turbo-0301":
		tokensPerMessage = 4 // every message follows <|start|>{role/name}\n{content}<|end|>\n
		tokensPerName = -1   // if there's a name, the role is omitted
	default:
		if strings.Contains(model, "gpt-4") {
			return NumTokens(messages, "gpt-4-0613")
		} else {
			return NumTokens(messages, "gpt-3.5-turbo-0613")
		}
	}

	tkm, err := tiktoken.EncodingForModel(model)
	if err != nil {
		err = fmt.Errorf("encoding for model: %v", err)
		return
	}

	for _, message := range messages {
		numTokens += tokensPerMessage
		numTokens += len(tkm.Encode(message.Content, nil, nil))
		numTokens += len(tkm.Encode(message.Role, nil, nil))
		numTokens += len(tkm.Encode(message.Name, nil, nil))
		if message.Name != "" {
			numTokens += tokensPerName
		}
	}
	numTokens += 3 // every reply is primed with <|start|>assistant<|message|>
	return numTokens, nil
}
