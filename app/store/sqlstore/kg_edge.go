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
		provider.stores.KGEdgeStore = NewKGEdgeStore(provider)
	})
}

// KGEdgeStore 处理知识图谱关系表的操作
type KGEdgeStore struct {
	CommonFields
}

func NewKGEdgeStore(provider SqlProviderAchieve) *KGEdgeStore {
	store := &KGEdgeStore{}
	store.SetProvider(provider)
	store.SetTable(types.TABLE_KG_EDGE)
	store.SetAllColumns("id", "workspace_id", "src_type", "src_id", "rel_type", "dst_type", "dst_id", "weight", "confidence", "evidence", "created_at")
	return store
}

func (s *KGEdgeStore) BatchCreate(ctx context.Context, data []*types.KGEdge) error {
	if len(data) == 0 {
		return nil
	}

	query := sq.Insert(s.GetTable()).Columns(s.GetAllColumns()...)
	for _, item := range data {
		if item.CreatedAt == 0 {
			item.CreatedAt = time.Now().Unix()
		}
		if len(item.Evidence) == 0 {
			item.Evidence = []byte("[]")
		}
		query = query.Values(item.ID, item.WorkspaceID, item.SrcType, item.SrcID, item.RelType, item.DstType, item.DstID, item.Weight, item.Confidence, item.Evidence, item.CreatedAt)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *KGEdgeStore) List(ctx context.Context, workspaceID string, page, pageSize uint64) ([]types.KGEdge, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"workspace_id": workspaceID}).
		OrderBy("created_at DESC, id ASC")

	if page != 0 || pageSize != 0 {
		query = query.Limit(pageSize).Offset((page - 1) * pageSize)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.KGEdge
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

// ListByConcept 列出概念作为起点或终点参与的全部关系
func (s *KGEdgeStore) ListByConcept(ctx context.Context, workspaceID, conceptID string) ([]types.KGEdge, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"workspace_id": workspaceID}).
		Where(sq.Or{sq.Eq{"src_id": conceptID}, sq.Eq{"dst_id": conceptID}})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.KGEdge
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *KGEdgeStore) Delete(ctx context.Context, workspaceID, id string) error {
	query := sq.Delete(s.GetTable()).Where(sq.Eq{"workspace_id": workspaceID, "id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}
