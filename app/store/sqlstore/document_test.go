package sqlstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/mentraflow/mentraflow/pkg/types"
	"github.com/mentraflow/mentraflow/pkg/utils"
)

type testPGConfig struct {
	DSN string
}

func (m testPGConfig) FormatDSN() string {
	return m.DSN
}

func testProvider(t *testing.T) *Provider {
	dsn := os.Getenv("MENTRAFLOW_POSTGRESQL_DSN")
	if dsn == "" {
		t.Skip("MENTRAFLOW_POSTGRESQL_DSN not set")
	}
	p := MustSetup(testPGConfig{DSN: dsn})()
	if err := p.Install(); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDocumentLifecycle(t *testing.T) {
	utils.SetupIDWorker(1)
	p := testProvider(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*20)
	defer cancel()

	doc := types.Document{
		ID:          utils.GenUniqIDStr(),
		WorkspaceID: "test",
		UserID:      "tester",
		Title:       "lifecycle",
		DocType:     "text",
		Status:      types.DOCUMENT_STATUS_PENDING,
		Content:     "some content",
		ContentHash: utils.SHA256("some content" + utils.GenUniqIDStr()),
	}
	if err := p.DocumentStore().Create(ctx, doc); err != nil {
		t.Fatal(err)
	}
	defer p.DocumentStore().Delete(ctx, doc.WorkspaceID, doc.ID)

	got, err := p.DocumentStore().Get(ctx, doc.WorkspaceID, doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.DOCUMENT_STATUS_PENDING {
		t.Fatalf("unexpected status %s", got.Status)
	}

	// 条件更新：from 不匹配时必须失败
	if err = p.DocumentStore().UpdateStatus(ctx, doc.WorkspaceID, doc.ID, types.DOCUMENT_STATUS_CHUNKING, types.DOCUMENT_STATUS_EMBEDDING); err == nil {
		t.Fatal("expected conditional status update to fail")
	}
	if err = p.DocumentStore().UpdateStatus(ctx, doc.WorkspaceID, doc.ID, types.DOCUMENT_STATUS_PENDING, types.DOCUMENT_STATUS_STORING); err != nil {
		t.Fatal(err)
	}
}

func TestAgentRunStepAppend(t *testing.T) {
	utils.SetupIDWorker(1)
	p := testProvider(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*20)
	defer cancel()

	run := types.AgentRun{
		ID:          utils.GenUniqIDStr(),
		WorkspaceID: "test",
		UserID:      "tester",
		AgentName:   types.AGENT_INGESTION,
	}
	if err := p.AgentRunStore().Create(ctx, run); err != nil {
		t.Fatal(err)
	}

	for i, name := range []string{"store", "chunk", "embed"} {
		if err := p.AgentRunStore().AppendStep(ctx, run.ID, types.RunStep{
			Name:      name,
			Status:    types.STEP_STATUS_COMPLETED,
			Timestamp: int64(i + 1),
		}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := p.AgentRunStore().Get(ctx, run.WorkspaceID, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	steps, err := got.StepList()
	if err != nil {
		t.Fatal(err)
	}
	if len(steps) != 3 || steps[0].Name != "store" || steps[2].Name != "embed" {
		t.Fatalf("unexpected steps %+v", steps)
	}
}

func TestAgentRunStaleRecovery(t *testing.T) {
	utils.SetupIDWorker(1)
	p := testProvider(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*20)
	defer cancel()

	run := types.AgentRun{
		ID:          utils.GenUniqIDStr(),
		WorkspaceID: "test",
		UserID:      "tester",
		AgentName:   types.AGENT_SUMMARY,
	}
	if err := p.AgentRunStore().Create(ctx, run); err != nil {
		t.Fatal(err)
	}
	if err := p.AgentRunStore().MarkRunning(ctx, run.ID); err != nil {
		t.Fatal(err)
	}

	// 有心跳的任务不算僵死
	if err := p.AgentRunStore().Touch(ctx, run.ID); err != nil {
		t.Fatal(err)
	}
	stale, err := p.AgentRunStore().ListStale(ctx, time.Now().Unix()-60, 50)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range stale {
		if r.ID == run.ID {
			t.Fatal("run with a fresh heartbeat listed as stale")
		}
	}

	// 心跳停止后被列为僵死并可回收重新排队
	stale, err = p.AgentRunStore().ListStale(ctx, time.Now().Unix()+60, 50)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, r := range stale {
		if r.ID == run.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("expected run to be listed as stale")
	}

	if err = p.AgentRunStore().Requeue(ctx, run.ID); err != nil {
		t.Fatal(err)
	}
	got, err := p.AgentRunStore().Get(ctx, run.WorkspaceID, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.RUN_STATUS_QUEUED {
		t.Fatalf("unexpected status %s", got.Status)
	}
}
