package process

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/mentraflow/mentraflow/app/core"
	v1 "github.com/mentraflow/mentraflow/app/logic/v1"
	"github.com/mentraflow/mentraflow/pkg/safe"
	"github.com/mentraflow/mentraflow/pkg/types"
)

var agentProcess *AgentProcess

// errRunDeferred 任务被退回队列，不进入终态
var errRunDeferred = errors.New("run deferred")

// AgentProcess 后台任务调度器。排队中的任务统一落在 mf_agent_run 表里，
// Flush 周期性拉取 queued 任务派发给对应的 worker 池，不依赖额外的消息队列，
// 进程重启后排队任务自动恢复。
type AgentProcess struct {
	ctx  context.Context
	core *core.Core

	IngestionChan  chan *types.AgentRun
	GenerationChan chan *types.AgentRun

	// inflight 本实例正在处理的任务，避免 Flush 重复派发
	inflight cmap.ConcurrentMap[string, struct{}]
}

func StartAgentProcess(core *core.Core) context.CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())
	agentProcess = &AgentProcess{
		ctx:            ctx,
		core:           core,
		IngestionChan:  make(chan *types.AgentRun, 1000),
		GenerationChan: make(chan *types.AgentRun, 1000),
		inflight:       cmap.New[struct{}](),
	}

	go safe.Run(agentProcess.Start)
	go safe.Run(func() {
		agentProcess.Flush()
		ticker := time.NewTicker(time.Second * 10)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				agentProcess.Flush()
			}
		}
	})
	return cancel
}

func (p *AgentProcess) Start() {
	cfg := p.core.Cfg().Process
	for i := 0; i < cfg.IngestionConcurrency; i++ {
		go safe.Run(func() {
			p.work(p.IngestionChan)
		})
	}
	for i := 0; i < cfg.GenerationConcurrency; i++ {
		go safe.Run(func() {
			p.work(p.GenerationChan)
		})
	}
}

// Flush 拉取排队中的任务并派发
func (p *AgentProcess) Flush() {
	ctx, cancel := context.WithTimeout(p.ctx, time.Second*10)
	defer cancel()

	list, err := p.core.Store().AgentRunStore().ListQueued(ctx, 50)
	if err != nil && err != sql.ErrNoRows {
		slog.Error("Failed to list queued runs", slog.String("error", err.Error()))
		return
	}

	if len(list) > 0 {
		slog.Info("AgentProcess flush", slog.Int("length", len(list)))
	}

	for _, run := range list {
		p.dispatch(run)
	}
}

func (p *AgentProcess) dispatch(run types.AgentRun) {
	if !p.inflight.SetIfAbsent(run.ID, struct{}{}) {
		return
	}

	r := run
	switch run.AgentName {
	case types.AGENT_INGESTION:
		p.IngestionChan <- &r
	case types.AGENT_SUMMARY, types.AGENT_FLASHCARD, types.AGENT_KG_EXTRACTION:
		p.GenerationChan <- &r
	default:
		// study_chat 同步执行，不会出现在队列里
		p.inflight.Remove(run.ID)
		slog.Warn("Unexpected queued agent", slog.String("agent", string(run.AgentName)), slog.String("run_id", run.ID))
	}
}

func (p *AgentProcess) work(ch chan *types.AgentRun) {
	for {
		select {
		case <-p.ctx.Done():
			return
		case run := <-ch:
			if run == nil {
				continue
			}
			p.handle(run)
			p.inflight.Remove(run.ID)
		}
	}
}

func (p *AgentProcess) handle(run *types.AgentRun) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute*10)
	defer cancel()

	// 背景任务以发起者身份执行
	ctx = context.WithValue(ctx, v1.TOKEN_CONTEXT_KEY, types.UserClaims{
		Appid: types.DEFAULT_APPID,
		User:  run.UserID,
	})

	// 先抢占任务，多实例部署下只有一个实例能从 queued 拿到执行权
	if err := p.core.Store().AgentRunStore().MarkRunning(ctx, run.ID); err != nil {
		if err != sql.ErrNoRows {
			slog.Error("Failed to mark run running", slog.String("run_id", run.ID), slog.String("error", err.Error()))
		}
		return
	}

	// 心跳刷新活动时间，执行再慢也不会被僵死回收拿去重复执行
	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go safe.Run(func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-heartbeatCtx.Done():
				return
			case <-ticker.C:
				if err := p.core.Store().AgentRunStore().Touch(heartbeatCtx, run.ID); err != nil {
					slog.Warn("Failed to touch run", slog.String("run_id", run.ID), slog.String("error", err.Error()))
				}
			}
		}
	})

	var (
		output json.RawMessage
		err    error
	)
	switch run.AgentName {
	case types.AGENT_INGESTION:
		output, err = p.processIngestion(ctx, run)
	case types.AGENT_SUMMARY:
		output, err = p.processSummary(ctx, run)
	case types.AGENT_FLASHCARD:
		output, err = p.processFlashcards(ctx, run)
	case types.AGENT_KG_EXTRACTION:
		output, err = p.processKGExtraction(ctx, run)
	}

	if errors.Is(err, errRunDeferred) {
		// 任务已退回队列，留给下一轮 Flush
		return
	}

	status := types.RUN_STATUS_SUCCEEDED
	errMsg := ""
	if err != nil {
		status = types.RUN_STATUS_FAILED
		errMsg = err.Error()
		slog.Error("Agent run failed",
			slog.String("run_id", run.ID),
			slog.String("agent", string(run.AgentName)),
			slog.String("error", err.Error()))
	}

	finishCtx, finishCancel := context.WithTimeout(context.Background(), time.Second*10)
	defer finishCancel()
	if ferr := p.core.Store().AgentRunStore().MarkFinished(finishCtx, run.ID, status, output, errMsg); ferr != nil {
		slog.Error("Failed to finish run", slog.String("run_id", run.ID), slog.String("error", ferr.Error()))
	}
	p.core.Metrics().AgentRunInc(string(run.AgentName), string(status))
}

type runInput struct {
	DocumentID string `json:"document_id"`
	CardType   string `json:"card_type"`
	MaxCards   int    `json:"max_cards"`
	MaxBullets int    `json:"max_bullets"`
}

func (p *AgentProcess) parseInput(run *types.AgentRun) (runInput, error) {
	var input runInput
	if err := json.Unmarshal(run.Input, &input); err != nil {
		return input, err
	}
	return input, nil
}

func (p *AgentProcess) appendStep(ctx context.Context, runID, name, status string, detail map[string]any) {
	if err := p.core.Store().AgentRunStore().AppendStep(ctx, runID, types.RunStep{
		Name:      name,
		Status:    status,
		Detail:    detail,
		Timestamp: time.Now().Unix(),
	}); err != nil {
		slog.Error("Failed to append run step", slog.String("run_id", runID), slog.String("step", name), slog.String("error", err.Error()))
	}
}

func (p *AgentProcess) appendStepErr(ctx context.Context, runID, name string, err error) {
	if serr := p.core.Store().AgentRunStore().AppendStep(ctx, runID, types.RunStep{
		Name:      name,
		Status:    types.STEP_STATUS_FAILED,
		Error:     err.Error(),
		Timestamp: time.Now().Unix(),
	}); serr != nil {
		slog.Error("Failed to append run step", slog.String("run_id", runID), slog.String("step", name), slog.String("error", serr.Error()))
	}
}
