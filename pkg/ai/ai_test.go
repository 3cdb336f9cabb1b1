package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

const toolCallResponse = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"choices": [{
		"index": 0,
		"finish_reason": "tool_calls",
		"message": {
			"role": "assistant",
			"tool_calls": [{
				"id": "call-1",
				"type": "function",
				"function": {"name": "extract", "arguments": "{\"value\": 7}"}
			}]
		}
	}],
	"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

const plainTextResponse = `{
	"id": "chatcmpl-2",
	"object": "chat.completion",
	"choices": [{
		"index": 0,
		"finish_reason": "stop",
		"message": {"role": "assistant", "content": "not a tool call"}
	}],
	"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

func testClient(srv *httptest.Server) *openai.Client {
	cfg := openai.DefaultConfig("test-token")
	cfg.BaseURL = srv.URL + "/v1"
	return openai.NewClientWithConfig(cfg)
}

type extractPayload struct {
	Value int `json:"value"`
}

var extractParams = jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"value": {Type: jsonschema.Integer},
	},
	Required: []string{"value"},
}

func TestCallFunctionRetriesTransportErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "upstream unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(toolCallResponse))
	}))
	defer srv.Close()

	result, usage, err := CallFunction[extractPayload](context.Background(), testClient(srv), "gpt-4o-mini", "extract", "extract a value", extractParams, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: "extract"},
	})
	require.NoError(t, err)
	assert.Equal(t, 7, result.Value)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	require.NotNil(t, usage)
	assert.Equal(t, 15, usage.TotalTokens)
}

func TestCallFunctionRetriesNonConformingResponse(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) == 1 {
			// 第一次模型没有按要求调用工具
			w.Write([]byte(plainTextResponse))
			return
		}
		w.Write([]byte(toolCallResponse))
	}))
	defer srv.Close()

	result, _, err := CallFunction[extractPayload](context.Background(), testClient(srv), "gpt-4o-mini", "extract", "extract a value", extractParams, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: "extract"},
	})
	require.NoError(t, err)
	assert.Equal(t, 7, result.Value)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCallFunctionGivesUpAfterAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "upstream unavailable", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, _, err := CallFunction[extractPayload](context.Background(), testClient(srv), "gpt-4o-mini", "extract", "extract a value", extractParams, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: "extract"},
	})
	require.Error(t, err)
	assert.Equal(t, int32(callRetryAttempts), atomic.LoadInt32(&calls))
}
