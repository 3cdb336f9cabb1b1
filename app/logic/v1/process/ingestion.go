package process

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/mentraflow/mentraflow/app/core"
	"github.com/mentraflow/mentraflow/app/store"
	"github.com/mentraflow/mentraflow/pkg/chunker"
	"github.com/mentraflow/mentraflow/pkg/types"
	"github.com/mentraflow/mentraflow/pkg/utils"
)

// ingestEnv 入库流水线的依赖集合，测试里可以整体替换为内存实现
type ingestEnv struct {
	lock    func(ctx context.Context, workspaceID, documentID string) (func(), bool, error)
	requeue func(ctx context.Context, runID string) error
	docs    store.DocumentStore
	chunks  store.DocumentChunkStore
	vectors store.ChunkVectorStore
	inTx    func(ctx context.Context, fn func(ctx context.Context) error) error
	embed   func(ctx context.Context, title string, contents []string) ([][]float32, error)
	model   string
	chunk   chunker.Options
	step    func(ctx context.Context, name, status string, detail map[string]any)
	stepErr func(ctx context.Context, name string, err error)
}

type ingestResult struct {
	DocumentID string
	Chunks     int
	Vectors    int
}

func (p *AgentProcess) ingestEnvFromCore(run *types.AgentRun) ingestEnv {
	cfg := p.core.Cfg().Ingest
	return ingestEnv{
		lock:    p.core.Store().TryLockDocument,
		requeue: p.core.Store().AgentRunStore().Requeue,
		docs:    p.core.Store().DocumentStore(),
		chunks:  p.core.Store().DocumentChunkStore(),
		vectors: p.core.Store().ChunkVectorStore(),
		inTx:    p.core.Store().Transaction,
		embed: func(ctx context.Context, title string, contents []string) ([][]float32, error) {
			timer := p.core.Metrics().AIRequestTimer("embedding_document")
			result, err := p.core.Srv().AI().EmbeddingForDocument(ctx, title, contents)
			timer.ObserveDuration()
			if err != nil {
				p.core.Metrics().AIErrorInc("embedding")
				return nil, err
			}
			return result.Data, nil
		},
		model: p.core.Srv().AI().EmbeddingModel(),
		chunk: chunker.Options{
			ChunkSize: cfg.ChunkSize,
			Overlap:   cfg.ChunkOverlap,
		},
		step: func(ctx context.Context, name, status string, detail map[string]any) {
			p.appendStep(ctx, run.ID, name, status, detail)
		},
		stepErr: func(ctx context.Context, name string, err error) {
			p.appendStepErr(ctx, run.ID, name, err)
		},
	}
}

// processIngestion 文档入库流水线：pending -> storing -> chunking -> embedding -> ready。
// 文档级数据库锁保证同一文档同一时刻只有一个入库流程，跨实例同样互斥。
// 任一阶段失败时文档进入 failed，已写入的分片与向量全部回滚。
func (p *AgentProcess) processIngestion(ctx context.Context, run *types.AgentRun) (json.RawMessage, error) {
	input, err := p.parseInput(run)
	if err != nil {
		return nil, fmt.Errorf("invalid run input, %w", err)
	}

	result, err := ingestDocument(ctx, p.ingestEnvFromCore(run), run, input.DocumentID)
	if err != nil {
		return nil, err
	}

	p.core.Metrics().IngestedChunksAdd(run.WorkspaceID, result.Chunks)
	p.enqueueFollowUps(ctx, run, result.DocumentID)

	output, _ := json.Marshal(map[string]any{
		"document_id": result.DocumentID,
		"chunks":      result.Chunks,
		"vectors":     result.Vectors,
	})
	return output, nil
}

func ingestDocument(ctx context.Context, env ingestEnv, run *types.AgentRun, documentID string) (ingestResult, error) {
	var res ingestResult

	unlock, ok, err := env.lock(ctx, run.WorkspaceID, documentID)
	if err != nil {
		return res, err
	}
	if !ok {
		// 其他实例正在入库，退回队列稍后重试
		if err = env.requeue(ctx, run.ID); err != nil {
			return res, fmt.Errorf("document is locked and requeue failed, %w", err)
		}
		env.step(ctx, "lock", types.STEP_STATUS_SKIPPED, map[string]any{"reason": "document locked by another ingestion"})
		return res, errRunDeferred
	}
	defer unlock()

	doc, err := env.docs.Get(ctx, run.WorkspaceID, documentID)
	if err != nil {
		return res, fmt.Errorf("failed to load document, %w", err)
	}
	res.DocumentID = doc.ID

	status := doc.Status
	// 上一个实例崩溃后文档可能停在中间态，先退回 pending 重走整条流水线
	if !status.IsTerminal() && status != types.DOCUMENT_STATUS_PENDING {
		if err = env.docs.UpdateStatus(ctx, run.WorkspaceID, doc.ID, status, types.DOCUMENT_STATUS_PENDING); err != nil {
			return res, fmt.Errorf("failed to reset interrupted document, %w", err)
		}
		env.step(ctx, "reset", types.STEP_STATUS_COMPLETED, map[string]any{"from": string(status)})
		status = types.DOCUMENT_STATUS_PENDING
	}

	fail := func(stage string, cause error) (ingestResult, error) {
		env.stepErr(ctx, stage, cause)
		rollbackDerivedData(env, run.WorkspaceID, doc.ID)
		if serr := env.docs.UpdateStatus(ctx, run.WorkspaceID, doc.ID, status, types.DOCUMENT_STATUS_FAILED); serr != nil {
			cause = fmt.Errorf("%w (status rollback failed: %v)", cause, serr)
		}
		return res, cause
	}

	advance := func(next types.DocumentStatus) error {
		if !status.CanTransition(next) {
			return fmt.Errorf("illegal document status transition %s -> %s", status, next)
		}
		if err := env.docs.UpdateStatus(ctx, run.WorkspaceID, doc.ID, status, next); err != nil {
			return fmt.Errorf("failed to update document status to %s, %w", next, err)
		}
		status = next
		return nil
	}

	// 1. storing：原文在创建时已落库，这里只做内容确认与状态推进
	env.step(ctx, "store", types.STEP_STATUS_STARTED, nil)
	if err = advance(types.DOCUMENT_STATUS_STORING); err != nil {
		return fail("store", err)
	}
	if doc.Content == "" {
		return fail("store", fmt.Errorf("document content is empty"))
	}
	env.step(ctx, "store", types.STEP_STATUS_COMPLETED, map[string]any{"chars": len([]rune(doc.Content))})

	// 2. chunking：重新入库前清空旧的分片与向量
	env.step(ctx, "chunk", types.STEP_STATUS_STARTED, nil)
	if err = advance(types.DOCUMENT_STATUS_CHUNKING); err != nil {
		return fail("chunk", err)
	}

	chunks, err := chunker.Split(doc.Content, env.chunk)
	if err != nil {
		return fail("chunk", err)
	}

	chunkRows := make([]*types.DocumentChunk, 0, len(chunks))
	for _, c := range chunks {
		chunkRows = append(chunkRows, &types.DocumentChunk{
			ID:          utils.GenUniqIDStr(),
			DocumentID:  doc.ID,
			WorkspaceID: run.WorkspaceID,
			ChunkIndex:  c.Index,
			StartChar:   c.StartChar,
			EndChar:     c.EndChar,
			Content:     c.Content,
			TokenCount:  c.TokenCount,
			CreatedAt:   time.Now().Unix(),
		})
	}

	err = env.inTx(ctx, func(txCtx context.Context) error {
		if err := env.vectors.BatchDelete(txCtx, run.WorkspaceID, doc.ID); err != nil {
			return err
		}
		if err := env.chunks.BatchDelete(txCtx, run.WorkspaceID, doc.ID); err != nil {
			return err
		}
		return env.chunks.BatchCreate(txCtx, chunkRows)
	})
	if err != nil {
		return fail("chunk", err)
	}
	res.Chunks = len(chunkRows)
	env.step(ctx, "chunk", types.STEP_STATUS_COMPLETED, map[string]any{"chunks": len(chunkRows)})

	// 3. embedding
	env.step(ctx, "embed", types.STEP_STATUS_STARTED, nil)
	if err = advance(types.DOCUMENT_STATUS_EMBEDDING); err != nil {
		return fail("embed", err)
	}

	contents := make([]string, 0, len(chunkRows))
	for _, c := range chunkRows {
		contents = append(contents, c.Content)
	}

	embedded, err := env.embed(ctx, doc.Title, contents)
	if err != nil {
		return fail("embed", err)
	}
	if len(embedded) != len(chunkRows) {
		return fail("embed", fmt.Errorf("embedding count mismatch, want %d got %d", len(chunkRows), len(embedded)))
	}

	vectors := make([]types.ChunkVector, 0, len(chunkRows))
	for i, c := range chunkRows {
		vectors = append(vectors, types.ChunkVector{
			ID:             c.ID,
			ChunkID:        c.ID,
			DocumentID:     doc.ID,
			WorkspaceID:    run.WorkspaceID,
			ChunkIndex:     c.ChunkIndex,
			Embedding:      pgvector.NewVector(embedded[i]),
			EmbeddingModel: env.model,
			OriginalLength: len([]rune(c.Content)),
			CreatedAt:      time.Now().Unix(),
			UpdatedAt:      time.Now().Unix(),
		})
	}
	if err = env.vectors.BatchUpsert(ctx, vectors); err != nil {
		return fail("embed", err)
	}
	res.Vectors = len(vectors)
	env.step(ctx, "embed", types.STEP_STATUS_COMPLETED, map[string]any{"vectors": len(vectors)})

	// 4. ready
	env.step(ctx, "finalize", types.STEP_STATUS_STARTED, nil)
	if err = advance(types.DOCUMENT_STATUS_READY); err != nil {
		return fail("finalize", err)
	}
	env.step(ctx, "finalize", types.STEP_STATUS_COMPLETED, nil)

	return res, nil
}

// rollbackDerivedData 入库失败后清掉本轮产生的分片与向量，不保留半成品
func rollbackDerivedData(env ingestEnv, workspaceID, documentID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	err := env.inTx(ctx, func(txCtx context.Context) error {
		if err := env.vectors.BatchDelete(txCtx, workspaceID, documentID); err != nil {
			return err
		}
		return env.chunks.BatchDelete(txCtx, workspaceID, documentID)
	})
	if err != nil {
		slog.Error("failed to rollback document chunks",
			slog.String("workspace_id", workspaceID),
			slog.String("document_id", documentID),
			slog.String("error", err.Error()))
	}
}

type followUp struct {
	agent   types.AgentName
	payload map[string]any
}

// followUpAgents 根据配置决定入库完成后要派生的生成类任务
func followUpAgents(cfg core.IngestConfig, documentID string) []followUp {
	var list []followUp
	if cfg.AutoSummary {
		list = append(list, followUp{types.AGENT_SUMMARY, map[string]any{"document_id": documentID}})
	}
	if cfg.AutoFlashcards {
		list = append(list, followUp{types.AGENT_FLASHCARD, map[string]any{"document_id": documentID, "card_type": cfg.DefaultCardType}})
	}
	if cfg.AutoKG {
		list = append(list, followUp{types.AGENT_KG_EXTRACTION, map[string]any{"document_id": documentID}})
	}
	return list
}

// enqueueFollowUps 按配置在入库完成后自动派生生成类任务
func (p *AgentProcess) enqueueFollowUps(ctx context.Context, run *types.AgentRun, documentID string) {
	for _, f := range followUpAgents(p.core.Cfg().Ingest, documentID) {
		active, err := p.core.Store().AgentRunStore().HasActive(ctx, run.WorkspaceID, f.agent, documentID)
		if err != nil || active {
			continue
		}

		input, _ := json.Marshal(f.payload)
		next := types.AgentRun{
			ID:          utils.GenUniqIDStr(),
			WorkspaceID: run.WorkspaceID,
			UserID:      run.UserID,
			AgentName:   f.agent,
			Status:      types.RUN_STATUS_QUEUED,
			Input:       input,
			CreatedAt:   time.Now().Unix(),
			UpdatedAt:   time.Now().Unix(),
		}
		if err = p.core.Store().AgentRunStore().Create(ctx, next); err != nil {
			continue
		}
		p.core.Metrics().AgentRunInc(string(f.agent), string(types.RUN_STATUS_QUEUED))
	}
}
