package process

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentraflow/mentraflow/app/core"
	"github.com/mentraflow/mentraflow/app/store"
	"github.com/mentraflow/mentraflow/pkg/chunker"
	"github.com/mentraflow/mentraflow/pkg/types"
	"github.com/mentraflow/mentraflow/pkg/utils"
)

func init() {
	utils.SetupIDWorker(1)
}

type fakeDocStore struct {
	store.DocumentStore
	doc         *types.Document
	transitions []string
}

func (f *fakeDocStore) Get(ctx context.Context, workspaceID, id string) (*types.Document, error) {
	d := *f.doc
	return &d, nil
}

func (f *fakeDocStore) UpdateStatus(ctx context.Context, workspaceID, id string, from, to types.DocumentStatus) error {
	if f.doc.Status != from {
		return sql.ErrNoRows
	}
	f.doc.Status = to
	f.transitions = append(f.transitions, fmt.Sprintf("%s->%s", from, to))
	return nil
}

type fakeChunkStore struct {
	store.DocumentChunkStore
	rows    []*types.DocumentChunk
	deletes int
}

func (f *fakeChunkStore) BatchCreate(ctx context.Context, data []*types.DocumentChunk) error {
	f.rows = append(f.rows, data...)
	return nil
}

func (f *fakeChunkStore) BatchDelete(ctx context.Context, workspaceID, documentID string) error {
	f.rows = nil
	f.deletes++
	return nil
}

type fakeVectorStore struct {
	store.ChunkVectorStore
	rows    []types.ChunkVector
	deletes int
}

func (f *fakeVectorStore) BatchUpsert(ctx context.Context, data []types.ChunkVector) error {
	f.rows = append(f.rows, data...)
	return nil
}

func (f *fakeVectorStore) BatchDelete(ctx context.Context, workspaceID, documentID string) error {
	f.rows = nil
	f.deletes++
	return nil
}

type ingestFixture struct {
	env     ingestEnv
	docs    *fakeDocStore
	chunks  *fakeChunkStore
	vectors *fakeVectorStore
	steps   []string
}

func newIngestFixture(doc *types.Document) *ingestFixture {
	f := &ingestFixture{
		docs:    &fakeDocStore{doc: doc},
		chunks:  &fakeChunkStore{},
		vectors: &fakeVectorStore{},
	}
	f.env = ingestEnv{
		lock: func(ctx context.Context, workspaceID, documentID string) (func(), bool, error) {
			return func() {}, true, nil
		},
		requeue: func(ctx context.Context, runID string) error { return nil },
		docs:    f.docs,
		chunks:  f.chunks,
		vectors: f.vectors,
		inTx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return fn(ctx)
		},
		embed: func(ctx context.Context, title string, contents []string) ([][]float32, error) {
			out := make([][]float32, len(contents))
			for i := range out {
				out[i] = []float32{0.1, 0.2, 0.3}
			}
			return out, nil
		},
		model: "test-embedding",
		chunk: chunker.Options{ChunkSize: 60, Overlap: 10},
		step: func(ctx context.Context, name, status string, detail map[string]any) {
			f.steps = append(f.steps, name+":"+status)
		},
		stepErr: func(ctx context.Context, name string, err error) {
			f.steps = append(f.steps, name+":"+types.STEP_STATUS_FAILED)
		},
	}
	return f
}

func testDocument(status types.DocumentStatus) *types.Document {
	return &types.Document{
		ID:          "doc-1",
		WorkspaceID: "ws-1",
		Title:       "Test material",
		Status:      status,
		Content:     strings.Repeat("Stacks grow by pushing and shrink by popping. ", 8),
	}
}

func testRun() *types.AgentRun {
	return &types.AgentRun{
		ID:          "run-1",
		WorkspaceID: "ws-1",
		UserID:      "user-1",
		AgentName:   types.AGENT_INGESTION,
	}
}

func TestIngestDocumentWalksPipeline(t *testing.T) {
	fx := newIngestFixture(testDocument(types.DOCUMENT_STATUS_PENDING))

	res, err := ingestDocument(context.Background(), fx.env, testRun(), "doc-1")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"pending->storing",
		"storing->chunking",
		"chunking->embedding",
		"embedding->ready",
	}, fx.docs.transitions)
	assert.Equal(t, types.DOCUMENT_STATUS_READY, fx.docs.doc.Status)

	assert.NotEmpty(t, fx.chunks.rows)
	assert.Len(t, fx.vectors.rows, len(fx.chunks.rows))
	assert.Equal(t, len(fx.chunks.rows), res.Chunks)
	assert.Equal(t, len(fx.vectors.rows), res.Vectors)
	for i, v := range fx.vectors.rows {
		assert.Equal(t, fx.chunks.rows[i].ID, v.ChunkID)
		assert.Equal(t, "test-embedding", v.EmbeddingModel)
	}

	assert.Equal(t, "store:"+types.STEP_STATUS_STARTED, fx.steps[0])
	assert.Equal(t, "finalize:"+types.STEP_STATUS_COMPLETED, fx.steps[len(fx.steps)-1])
}

func TestIngestDocumentRestartsInterruptedDocument(t *testing.T) {
	for _, status := range []types.DocumentStatus{
		types.DOCUMENT_STATUS_STORING,
		types.DOCUMENT_STATUS_CHUNKING,
		types.DOCUMENT_STATUS_EMBEDDING,
	} {
		t.Run(string(status), func(t *testing.T) {
			fx := newIngestFixture(testDocument(status))

			_, err := ingestDocument(context.Background(), fx.env, testRun(), "doc-1")
			require.NoError(t, err)

			assert.Equal(t, string(status)+"->pending", fx.docs.transitions[0])
			assert.Equal(t, types.DOCUMENT_STATUS_READY, fx.docs.doc.Status)
		})
	}
}

func TestIngestDocumentEmbeddingFailureRollsBack(t *testing.T) {
	fx := newIngestFixture(testDocument(types.DOCUMENT_STATUS_PENDING))
	fx.env.embed = func(ctx context.Context, title string, contents []string) ([][]float32, error) {
		return nil, errors.New("embedding provider unavailable")
	}

	_, err := ingestDocument(context.Background(), fx.env, testRun(), "doc-1")
	require.Error(t, err)

	assert.Equal(t, types.DOCUMENT_STATUS_FAILED, fx.docs.doc.Status)
	assert.Empty(t, fx.chunks.rows)
	assert.Empty(t, fx.vectors.rows)
	assert.Contains(t, fx.steps, "embed:"+types.STEP_STATUS_FAILED)
}

func TestIngestDocumentLockedDefersRun(t *testing.T) {
	fx := newIngestFixture(testDocument(types.DOCUMENT_STATUS_PENDING))

	var requeued string
	fx.env.lock = func(ctx context.Context, workspaceID, documentID string) (func(), bool, error) {
		return nil, false, nil
	}
	fx.env.requeue = func(ctx context.Context, runID string) error {
		requeued = runID
		return nil
	}

	_, err := ingestDocument(context.Background(), fx.env, testRun(), "doc-1")
	assert.ErrorIs(t, err, errRunDeferred)
	assert.Equal(t, "run-1", requeued)
	assert.Empty(t, fx.docs.transitions)
	assert.Equal(t, types.DOCUMENT_STATUS_PENDING, fx.docs.doc.Status)
}

func TestIngestDocumentEmptyContentFails(t *testing.T) {
	doc := testDocument(types.DOCUMENT_STATUS_PENDING)
	doc.Content = ""
	fx := newIngestFixture(doc)

	_, err := ingestDocument(context.Background(), fx.env, testRun(), "doc-1")
	require.Error(t, err)
	assert.Equal(t, types.DOCUMENT_STATUS_FAILED, fx.docs.doc.Status)
}

func TestFollowUpAgentsRespectToggles(t *testing.T) {
	cfg := core.IngestConfig{
		AutoSummary:     true,
		AutoFlashcards:  true,
		AutoKG:          true,
		DefaultCardType: "qa",
	}

	list := followUpAgents(cfg, "doc-1")
	require.Len(t, list, 3)
	assert.Equal(t, types.AGENT_SUMMARY, list[0].agent)
	assert.Equal(t, types.AGENT_FLASHCARD, list[1].agent)
	assert.Equal(t, types.AGENT_KG_EXTRACTION, list[2].agent)
	assert.Equal(t, "qa", list[1].payload["card_type"])
	assert.Equal(t, "doc-1", list[1].payload["document_id"])

	assert.Empty(t, followUpAgents(core.IngestConfig{}, "doc-1"))
}
