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
		provider.stores.ConceptVectorStore = NewConceptVectorStore(provider)
	})
}

type ConceptVectorStore struct {
	CommonFields
}

func NewConceptVectorStore(provider SqlProviderAchieve) *ConceptVectorStore {
	repo := &ConceptVectorStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_CONCEPT_VECTOR)
	repo.SetAllColumns("id", "concept_id", "workspace_id", "embedding", "embedding_model", "created_at")
	return repo
}

// BatchUpsert 批量写入概念向量，同一概念重复抽取时覆盖旧向量
func (s *ConceptVectorStore) BatchUpsert(ctx context.Context, data []types.ConceptVector) error {
	if len(data) == 0 {
		return nil
	}

	query := sq.Insert(s.GetTable()).Columns(s.GetAllColumns()...)
	for _, item := range data {
		if item.CreatedAt == 0 {
			item.CreatedAt = time.Now().Unix()
		}
		query = query.Values(item.ID, item.ConceptID, item.WorkspaceID, item.Embedding, item.EmbeddingModel, item.CreatedAt)
	}
	query = query.Suffix("ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding, embedding_model = EXCLUDED.embedding_model")

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

// Query 按余弦相似度检索概念向量
func (s *ConceptVectorStore) Query(ctx context.Context, workspaceID string, vector pgvector.Vector, limit uint64) ([]types.QueryResult, error) {
	if strings.TrimSpace(workspaceID) == "" {
		return nil, fmt.Errorf("vector query requires workspace_id")
	}

	cosColumn, vectorArgs, _ := sq.Expr("1 - (embedding <=> ?) as cos", vector).ToSql()
	query := sq.Select("id", "concept_id as chunk_id", cosColumn).
		From(s.GetTable()).
		Where(sq.Eq{"workspace_id": workspaceID}).
		Limit(limit).OrderBy("cos DESC")

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

func (s *ConceptVectorStore) DeleteAll(ctx context.Context, workspaceID string) error {
	query := sq.Delete(s.GetTable()).Where(sq.Eq{"workspace_id": workspaceID})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}
