package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pgvector/pgvector-go"

	"github.com/mentraflow/mentraflow/pkg/register"
	"github.com/mentraflow/mentraflow/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.ChunkVectorStore = NewChunkVectorStore(provider)
	})
}

type ChunkVectorStore struct {
	CommonFields
}

func NewChunkVectorStore(provider SqlProviderAchieve) *ChunkVectorStore {
	repo := &ChunkVectorStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_CHUNK_VECTOR)
	repo.SetAllColumns("id", "chunk_id", "document_id", "workspace_id", "chunk_index", "embedding", "embedding_model", "original_length", "created_at", "updated_at")
	return repo
}

// BatchUpsert 批量写入分片向量，重复的 (chunk_id, embedding_model) 覆盖旧向量
func (s *ChunkVectorStore) BatchUpsert(ctx context.Context, data []types.ChunkVector) error {
	if len(data) == 0 {
		return nil
	}

	query := sq.Insert(s.GetTable()).Columns(s.GetAllColumns()...)
	for _, item := range data {
		if item.CreatedAt == 0 {
			item.CreatedAt = time.Now().Unix()
		}
		if item.UpdatedAt == 0 {
			item.UpdatedAt = time.Now().Unix()
		}
		query = query.Values(item.ID, item.ChunkID, item.DocumentID, item.WorkspaceID, item.ChunkIndex, item.Embedding, item.EmbeddingModel, item.OriginalLength, item.CreatedAt, item.UpdatedAt)
	}
	query = query.Suffix("ON CONFLICT (chunk_id, embedding_model) DO UPDATE SET embedding = EXCLUDED.embedding, chunk_index = EXCLUDED.chunk_index, original_length = EXCLUDED.original_length, updated_at = EXCLUDED.updated_at")

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

// Query 余弦相似度检索，workspace_id 为必填条件，杜绝跨工作区读取
func (s *ChunkVectorStore) Query(ctx context.Context, opts types.GetVectorsOptions, vector pgvector.Vector, limit uint64) ([]types.QueryResult, error) {
	if strings.TrimSpace(opts.WorkspaceID) == "" {
		return nil, fmt.Errorf("vector query requires workspace_id")
	}

	// pgvector supported distance functions are:
	// <-> - L2 distance
	// <#> - (negative) inner product
	// <=> - cosine distance
	cosColumn, vectorArgs, _ := sq.Expr("1 - (embedding <=> ?) as cos", vector).ToSql()
	query := sq.Select("id", "chunk_id", "document_id", "chunk_index", "original_length", cosColumn).
		From(s.GetTable()).Limit(limit).OrderBy("cos DESC")
	opts.Apply(&query)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	args = append(vectorArgs, args...)

	var res []types.QueryResult
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *ChunkVectorStore) BatchDelete(ctx context.Context, workspaceID, documentID string) error {
	query := sq.Delete(s.GetTable()).Where(sq.Eq{"workspace_id": workspaceID, "document_id": documentID})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *ChunkVectorStore) DeleteAll(ctx context.Context, workspaceID string) error {
	query := sq.Delete(s.GetTable()).Where(sq.Eq{"workspace_id": workspaceID})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}
