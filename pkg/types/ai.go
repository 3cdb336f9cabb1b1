package types

import (
	openai "github.com/sashabaranov/go-openai"
)

type MessageRole string

const (
	USER_ROLE_SYSTEM    MessageRole = "system"
	USER_ROLE_USER      MessageRole = "user"
	USER_ROLE_ASSISTANT MessageRole = "assistant"
)

func (r MessageRole) String() string {
	return string(r)
}

// MessageContext 聊天上下文的最小单元
type MessageContext struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

func (m MessageContext) ToChatCompletionMessage() openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{
		Role:    m.Role.String(),
		Content: m.Content,
	}
}

// RetrievedChunk 检索命中的分片及其相似度得分
type RetrievedChunk struct {
	Chunk DocumentChunk `json:"chunk"`
	Score float32       `json:"score"`
}
