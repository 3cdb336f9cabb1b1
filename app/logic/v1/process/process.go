package process

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mentraflow/mentraflow/app/core"
	"github.com/mentraflow/mentraflow/pkg/types"
)

type Process struct {
	cron *cron.Cron
	core *core.Core

	stopAgent context.CancelFunc
}

var p *Process

func NewProcess(core *core.Core) *Process {
	p = &Process{
		cron: cron.New(),
		core: core,
	}

	// 僵死任务回收，实例崩溃后 running 状态的任务重新排队
	if _, err := p.cron.AddFunc("@every 1m", p.requeueStaleRuns); err != nil {
		panic(err)
	}

	return p
}

func (p *Process) Core() *core.Core {
	return p.core
}

func (p *Process) Start() {
	p.stopAgent = StartAgentProcess(p.core)
	p.cron.Start()
}

func (p *Process) Stop() {
	if p.stopAgent != nil {
		p.stopAgent()
	}
	if p.cron != nil {
		ctx := p.cron.Stop()
		<-ctx.Done()
	}
}

// requeueStaleRuns 将心跳停止的 running 任务重置回 queued，
// 由下一轮 Flush 重新派发。正常执行中的任务靠心跳刷新活动时间，不会被回收
func (p *Process) requeueStaleRuns() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	deadline := time.Now().Unix() - int64(p.core.Cfg().Process.StaleRunSeconds)
	stale, err := p.core.Store().AgentRunStore().ListStale(ctx, deadline, 50)
	if err != nil && err != sql.ErrNoRows {
		slog.Error("Failed to list stale runs", slog.String("error", err.Error()))
		return
	}

	for _, run := range stale {
		if agentProcess != nil && agentProcess.inflight.Has(run.ID) {
			// 本实例仍在处理，不回收
			continue
		}
		if err = p.core.Store().AgentRunStore().Requeue(ctx, run.ID); err != nil {
			slog.Error("Failed to requeue stale run", slog.String("run_id", run.ID), slog.String("error", err.Error()))
			continue
		}
		_ = p.core.Store().AgentRunStore().AppendStep(ctx, run.ID, types.RunStep{
			Name:      "requeue",
			Status:    types.STEP_STATUS_COMPLETED,
			Detail:    map[string]any{"reason": "stale running run"},
			Timestamp: time.Now().Unix(),
		})
		slog.Warn("Requeued stale run", slog.String("run_id", run.ID), slog.String("agent", string(run.AgentName)))
	}
}
