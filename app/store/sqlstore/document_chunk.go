package sqlstore

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/mentraflow/mentraflow/pkg/register"
	"github.com/mentraflow/mentraflow/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.DocumentChunkStore = NewDocumentChunkStore(provider)
	})
}

// DocumentChunkStore 处理文档分片表的操作
type DocumentChunkStore struct {
	CommonFields
}

func NewDocumentChunkStore(provider SqlProviderAchieve) *DocumentChunkStore {
	store := &DocumentChunkStore{}
	store.SetProvider(provider)
	store.SetTable(types.TABLE_DOCUMENT_CHUNK)
	store.SetAllColumns("id", "document_id", "workspace_id", "chunk_index", "start_char", "end_char", "content", "token_count", "metadata", "created_at")
	return store
}

func (s *DocumentChunkStore) BatchCreate(ctx context.Context, data []*types.DocumentChunk) error {
	if len(data) == 0 {
		return nil
	}

	query := sq.Insert(s.GetTable()).Columns(s.GetAllColumns()...)
	for _, item := range data {
		if item.CreatedAt == 0 {
			item.CreatedAt = time.Now().Unix()
		}
		if len(item.Metadata) == 0 {
			item.Metadata = []byte("{}")
		}
		query = query.Values(item.ID, item.DocumentID, item.WorkspaceID, item.ChunkIndex, item.StartChar, item.EndChar, item.Content, item.TokenCount, item.Metadata, item.CreatedAt)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

// List 按分片序号升序返回文档的全部分片
func (s *DocumentChunkStore) List(ctx context.Context, workspaceID, documentID string) ([]types.DocumentChunk, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"workspace_id": workspaceID, "document_id": documentID}).
		OrderBy("chunk_index ASC")

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.DocumentChunk
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *DocumentChunkStore) ListByIDs(ctx context.Context, workspaceID string, ids []string) ([]types.DocumentChunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"workspace_id": workspaceID, "id": ids})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.DocumentChunk
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

// ListHead 返回文档开头若干分片，用于检索降级兜底
func (s *DocumentChunkStore) ListHead(ctx context.Context, workspaceID, documentID string, limit uint64) ([]types.DocumentChunk, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"workspace_id": workspaceID, "document_id": documentID}).
		OrderBy("chunk_index ASC").
		Limit(limit)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.DocumentChunk
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *DocumentChunkStore) BatchDelete(ctx context.Context, workspaceID, documentID string) error {
	query := sq.Delete(s.GetTable()).Where(sq.Eq{"workspace_id": workspaceID, "document_id": documentID})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}
