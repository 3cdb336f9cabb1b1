package sqlstore

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/mentraflow/mentraflow/pkg/register"
	"github.com/mentraflow/mentraflow/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.DocumentStore = NewDocumentStore(provider)
	})
}

// DocumentStore 处理文档表的操作
type DocumentStore struct {
	CommonFields
}

func NewDocumentStore(provider SqlProviderAchieve) *DocumentStore {
	store := &DocumentStore{}
	store.SetProvider(provider)
	store.SetTable(types.TABLE_DOCUMENT)
	store.SetAllColumns("id", "workspace_id", "user_id", "title", "doc_type", "status", "content", "content_hash", "summary", "last_run_id", "metadata", "created_at", "updated_at")
	return store
}

// Create 创建文档记录
func (s *DocumentStore) Create(ctx context.Context, data types.Document) error {
	if data.CreatedAt == 0 {
		data.CreatedAt = time.Now().Unix()
	}
	if data.UpdatedAt == 0 {
		data.UpdatedAt = time.Now().Unix()
	}
	if len(data.Metadata) == 0 {
		data.Metadata = []byte("{}")
	}

	query := sq.Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.ID, data.WorkspaceID, data.UserID, data.Title, data.DocType, data.Status, data.Content, data.ContentHash, data.Summary, data.LastRunID, data.Metadata, data.CreatedAt, data.UpdatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

// Get 根据ID获取文档
func (s *DocumentStore) Get(ctx context.Context, workspaceID, id string) (*types.Document, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"workspace_id": workspaceID, "id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.Document
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetByContentHash 根据内容指纹查重，未命中返回 sql.ErrNoRows
func (s *DocumentStore) GetByContentHash(ctx context.Context, workspaceID, hash string) (*types.Document, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"workspace_id": workspaceID, "content_hash": hash}).
		Limit(1)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.Document
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *DocumentStore) List(ctx context.Context, opts types.GetDocumentsOptions, page, pageSize uint64) ([]types.Document, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).OrderBy("created_at DESC")
	opts.Apply(&query)

	if page != 0 || pageSize != 0 {
		offset := (page - 1) * pageSize
		query = query.Limit(pageSize).Offset(offset)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.Document
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *DocumentStore) Total(ctx context.Context, opts types.GetDocumentsOptions) (int64, error) {
	query := sq.Select("COUNT(*)").From(s.GetTable())
	opts.Apply(&query)

	queryString, args, err := query.ToSql()
	if err != nil {
		return 0, ErrorSqlBuild(err)
	}

	var total int64
	if err = s.GetReplica(ctx).Get(&total, queryString, args...); err != nil {
		return 0, err
	}
	return total, nil
}

// UpdateStatus 条件更新状态，where 条件包含当前状态，
// 并发场景下只有一个写入者能完成 from -> to 的流转，未命中返回 sql.ErrNoRows
func (s *DocumentStore) UpdateStatus(ctx context.Context, workspaceID, id string, from, to types.DocumentStatus) error {
	query := sq.Update(s.GetTable()).
		Set("status", to).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"workspace_id": workspaceID, "id": id, "status": from})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	result, err := s.GetMaster(ctx).Exec(queryString, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Update 更新文档基础字段，空值跳过
func (s *DocumentStore) Update(ctx context.Context, workspaceID, id string, args types.UpdateDocumentArgs) error {
	query := sq.Update(s.GetTable()).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"workspace_id": workspaceID, "id": id})

	if args.Title != "" {
		query = query.Set("title", args.Title)
	}
	if args.DocType != "" {
		query = query.Set("doc_type", args.DocType)
	}
	if args.Content != "" {
		query = query.Set("content", args.Content)
	}
	if len(args.Metadata) > 0 {
		query = query.Set("metadata", args.Metadata)
	}

	queryString, sqlArgs, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, sqlArgs...)
	return err
}

func (s *DocumentStore) UpdateSummary(ctx context.Context, workspaceID, id, summary string) error {
	query := sq.Update(s.GetTable()).
		Set("summary", summary).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"workspace_id": workspaceID, "id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *DocumentStore) SetLastRunID(ctx context.Context, workspaceID, id, runID string) error {
	query := sq.Update(s.GetTable()).
		Set("last_run_id", runID).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"workspace_id": workspaceID, "id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *DocumentStore) Delete(ctx context.Context, workspaceID, id string) error {
	query := sq.Delete(s.GetTable()).Where(sq.Eq{"workspace_id": workspaceID, "id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}
