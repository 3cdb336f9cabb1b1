package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mentraflow/mentraflow/app/core"
	"github.com/mentraflow/mentraflow/pkg/ai"
	"github.com/mentraflow/mentraflow/pkg/errors"
	"github.com/mentraflow/mentraflow/pkg/i18n"
	"github.com/mentraflow/mentraflow/pkg/types"
	"github.com/mentraflow/mentraflow/pkg/utils"
)

const (
	// maxChatQueries 多路检索的查询数量上限，原查询 + 改写结果
	maxChatQueries = 4
	// insufficientConfidence 低于该置信度时按上下文不足处理
	insufficientConfidence = 0.4
)

type ChatLogic struct {
	UserInfo
	ctx  context.Context
	core *core.Core
}

func NewChatLogic(ctx context.Context, core *core.Core) *ChatLogic {
	return &ChatLogic{
		ctx:      ctx,
		core:     core,
		UserInfo: SetupUserInfo(ctx, core),
	}
}

type ChatArgs struct {
	Question    string                 `json:"question" binding:"required"`
	DocumentIDs []string               `json:"document_ids"`
	History     []types.MessageContext `json:"history"`
}

type ChatResult struct {
	RunID            string                 `json:"run_id"`
	Answer           string                 `json:"answer"`
	Citations        []string               `json:"citations"`
	Confidence       float64                `json:"confidence"`
	InsufficientInfo bool                   `json:"insufficient_info"`
	SuggestedNote    *ai.SuggestedNote      `json:"suggested_note,omitempty"`
	References       []types.RetrievedChunk `json:"references"`
}

// Ask 检索增强问答。问题先结合对话历史改写为独立查询，多路检索后把命中
// 分片作为上下文交给模型生成结构化回答，引用经过校验，置信度过低时按
// 上下文不足返回固定话术。整个过程同步执行并完整记录到任务表。
func (l *ChatLogic) Ask(workspaceID string, args ChatArgs) (*ChatResult, error) {
	if strings.TrimSpace(args.Question) == "" {
		return nil, errors.New("ChatLogic.Ask.check", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	msgs := append(append([]types.MessageContext{}, args.History...), types.MessageContext{
		Role:    types.USER_ROLE_USER,
		Content: args.Question,
	})
	if l.core.Srv().AI().MsgIsOverLimit(msgs) {
		return nil, errors.New("ChatLogic.Ask.MsgIsOverLimit", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	input, _ := json.Marshal(map[string]any{
		"question":     args.Question,
		"document_ids": args.DocumentIDs,
	})
	run := types.AgentRun{
		ID:          utils.GenUniqIDStr(),
		WorkspaceID: workspaceID,
		UserID:      l.GetUserInfo().User,
		AgentName:   types.AGENT_STUDY_CHAT,
		Status:      types.RUN_STATUS_QUEUED,
		Input:       input,
		CreatedAt:   time.Now().Unix(),
		UpdatedAt:   time.Now().Unix(),
	}
	if err := l.core.Store().AgentRunStore().Create(l.ctx, run); err != nil {
		return nil, errors.New("ChatLogic.Ask.AgentRunStore.Create", i18n.ERROR_INTERNAL, err)
	}
	if err := l.core.Store().AgentRunStore().MarkRunning(l.ctx, run.ID); err != nil {
		return nil, errors.New("ChatLogic.Ask.AgentRunStore.MarkRunning", i18n.ERROR_INTERNAL, err)
	}

	result, err := l.ask(workspaceID, run.ID, args)
	if err != nil {
		l.finishRun(run.ID, types.RUN_STATUS_FAILED, nil, err.Error())
		l.core.Metrics().AgentRunInc(string(types.AGENT_STUDY_CHAT), string(types.RUN_STATUS_FAILED))
		return nil, errors.Trace("ChatLogic.Ask", err)
	}

	result.RunID = run.ID
	output, _ := json.Marshal(result)
	l.finishRun(run.ID, types.RUN_STATUS_SUCCEEDED, output, "")
	l.core.Metrics().AgentRunInc(string(types.AGENT_STUDY_CHAT), string(types.RUN_STATUS_SUCCEEDED))
	return result, nil
}

func (l *ChatLogic) ask(workspaceID, runID string, args ChatArgs) (*ChatResult, error) {
	// 1. 结合对话历史改写查询
	l.appendStep(runID, "reformulate", types.STEP_STATUS_STARTED, nil)
	queries := l.reformulate(args)
	l.appendStep(runID, "reformulate", types.STEP_STATUS_COMPLETED, map[string]any{"queries": len(queries)})

	// 2. 多路检索
	l.appendStep(runID, "retrieve", types.STEP_STATUS_STARTED, nil)
	results, err := NewRetrieveLogic(l.ctx, l.core).Retrieve(workspaceID, queries, args.DocumentIDs)
	if err != nil {
		l.appendStepErr(runID, "retrieve", err)
		return nil, errors.Trace("ChatLogic.ask.Retrieve", err)
	}
	l.appendStep(runID, "retrieve", types.STEP_STATUS_COMPLETED, map[string]any{"chunks": len(results)})
	l.core.Metrics().RetrievalResultsObserve(string(types.AGENT_STUDY_CHAT), len(results))

	// 检索为空直接返回固定话术，不再请求模型
	if len(results) == 0 {
		l.appendStep(runID, "generate", types.STEP_STATUS_SKIPPED, map[string]any{"reason": "empty retrieval"})
		return &ChatResult{
			Answer:           GetContentByClientLanguage(l.ctx, ai.MSG_INSUFFICIENT_CONTEXT_EN, ai.MSG_INSUFFICIENT_CONTEXT_CN),
			Citations:        []string{},
			Confidence:       0,
			InsufficientInfo: true,
			References:       []types.RetrievedChunk{},
		}, nil
	}

	// 3. 带上下文生成结构化回答
	l.appendStep(runID, "generate", types.STEP_STATUS_STARTED, nil)
	timer := l.core.Metrics().AIRequestTimer("chat_answer")
	answer, err := l.core.Srv().AI().ChatAnswer(l.ctx, l.buildMessages(args, results))
	timer.ObserveDuration()
	if err != nil {
		l.core.Metrics().AIErrorInc("chat_answer")
		l.appendStepErr(runID, "generate", err)
		return nil, errors.New("ChatLogic.ask.ChatAnswer", i18n.ERROR_GENERATION_FAILED, err)
	}
	l.appendStep(runID, "generate", types.STEP_STATUS_COMPLETED, map[string]any{"citations": len(answer.Citations)})

	// 4. 引用校验与置信度评估
	l.appendStep(runID, "validate", types.STEP_STATUS_STARTED, nil)
	citations := validateCitations(answer.Citations, results)
	confidence := resolveConfidence(answer.Confidence, len(citations), len(results))
	insufficient := answer.InsufficientInfo || confidence < insufficientConfidence
	l.appendStep(runID, "validate", types.STEP_STATUS_COMPLETED, map[string]any{
		"valid_citations": len(citations),
		"confidence":      confidence,
	})

	finalAnswer := answer.Answer
	if insufficient && strings.TrimSpace(finalAnswer) == "" {
		finalAnswer = GetContentByClientLanguage(l.ctx, ai.MSG_INSUFFICIENT_CONTEXT_EN, ai.MSG_INSUFFICIENT_CONTEXT_CN)
	}

	return &ChatResult{
		Answer:           finalAnswer,
		Citations:        citations,
		Confidence:       confidence,
		InsufficientInfo: insufficient,
		SuggestedNote:    answer.SuggestedNote,
		References:       results,
	}, nil
}

// reformulate 查询改写失败时退回原始问题，不阻断问答
func (l *ChatLogic) reformulate(args ChatArgs) []string {
	messages := []openai.ChatCompletionMessage{
		{Role: types.USER_ROLE_SYSTEM.String(), Content: ai.PROMPT_ENHANCE_QUERY_EN},
	}
	for _, item := range args.History {
		messages = append(messages, item.ToChatCompletionMessage())
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    types.USER_ROLE_USER.String(),
		Content: args.Question,
	})

	enhanced, err := l.core.Srv().AI().EnhanceQuery(l.ctx, messages)
	if err != nil {
		slog.Warn("Failed to enhance query, fallback to the original question",
			slog.String("error", err.Error()),
			slog.String("component", "ChatLogic.reformulate"))
		return []string{args.Question}
	}
	enhanced.Original = args.Question

	queries := enhanced.Queries()
	if len(queries) > maxChatQueries {
		queries = queries[:maxChatQueries]
	}
	return queries
}

func (l *ChatLogic) buildMessages(args ChatArgs, results []types.RetrievedChunk) []openai.ChatCompletionMessage {
	var b strings.Builder
	for _, item := range results {
		b.WriteString(fmt.Sprintf("[chunk:%s]\n%s\n\n", item.Chunk.ID, item.Chunk.Content))
	}

	messages := []openai.ChatCompletionMessage{
		{Role: types.USER_ROLE_SYSTEM.String(), Content: ai.PROMPT_CHAT_ANSWER_EN},
		{Role: types.USER_ROLE_SYSTEM.String(), Content: "Context passages:\n\n" + b.String()},
	}
	for _, item := range args.History {
		messages = append(messages, item.ToChatCompletionMessage())
	}
	return append(messages, openai.ChatCompletionMessage{
		Role:    types.USER_ROLE_USER.String(),
		Content: args.Question,
	})
}

func (l *ChatLogic) appendStep(runID, name, status string, detail map[string]any) {
	if err := l.core.Store().AgentRunStore().AppendStep(l.ctx, runID, types.RunStep{
		Name:      name,
		Status:    status,
		Detail:    detail,
		Timestamp: time.Now().Unix(),
	}); err != nil {
		slog.Error("Failed to append run step", slog.String("run_id", runID), slog.String("step", name), slog.String("error", err.Error()))
	}
}

func (l *ChatLogic) appendStepErr(runID, name string, err error) {
	if serr := l.core.Store().AgentRunStore().AppendStep(l.ctx, runID, types.RunStep{
		Name:      name,
		Status:    types.STEP_STATUS_FAILED,
		Error:     err.Error(),
		Timestamp: time.Now().Unix(),
	}); serr != nil {
		slog.Error("Failed to append run step", slog.String("run_id", runID), slog.String("step", name), slog.String("error", serr.Error()))
	}
}

func (l *ChatLogic) finishRun(runID string, status types.RunStatus, output json.RawMessage, errMsg string) {
	if err := l.core.Store().AgentRunStore().MarkFinished(l.ctx, runID, status, output, errMsg); err != nil {
		slog.Error("Failed to finish run", slog.String("run_id", runID), slog.String("error", err.Error()))
	}
}

// validateCitations 只保留指向本次检索结果的引用，去重且保序
func validateCitations(citations []string, results []types.RetrievedChunk) []string {
	known := make(map[string]struct{}, len(results))
	for _, item := range results {
		known[item.Chunk.ID] = struct{}{}
	}

	valid := make([]string, 0, len(citations))
	seen := make(map[string]struct{}, len(citations))
	for _, id := range citations {
		id = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(id, "[chunk:"), "]"))
		id = strings.TrimPrefix(id, "chunk:")
		if _, exist := known[id]; !exist {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		valid = append(valid, id)
	}
	return valid
}

// resolveConfidence 优先采用模型自报的置信度，模型没给时退回启发式估算
func resolveConfidence(reported *float64, validCitations, resultCount int) float64 {
	if reported != nil {
		return ClampUnit(*reported)
	}
	return answerConfidence(validCitations, resultCount)
}

// answerConfidence 引用覆盖度启发式：引用数达到检索结果一半为 0.8，
// 有任意有效引用为 0.6，否则为 0
func answerConfidence(validCitations, resultCount int) float64 {
	if resultCount == 0 || validCitations == 0 {
		return 0
	}
	if validCitations*2 >= resultCount {
		return 0.8
	}
	return 0.6
}
