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
		provider.stores.ConceptStore = NewConceptStore(provider)
	})
}

// ConceptStore 处理概念表的操作
type ConceptStore struct {
	CommonFields
}

func NewConceptStore(provider SqlProviderAchieve) *ConceptStore {
	store := &ConceptStore{}
	store.SetProvider(provider)
	store.SetTable(types.TABLE_CONCEPT)
	store.SetAllColumns("id", "workspace_id", "name", "description", "concept_type", "aliases", "tags", "confidence", "source_document_id", "created_at")
	return store
}

// BatchCreate 批量写入概念，工作区内同名概念保留置信度更高的版本
func (s *ConceptStore) BatchCreate(ctx context.Context, data []*types.Concept) error {
	if len(data) == 0 {
		return nil
	}

	query := sq.Insert(s.GetTable()).Columns(s.GetAllColumns()...)
	for _, item := range data {
		if item.CreatedAt == 0 {
			item.CreatedAt = time.Now().Unix()
		}
		if len(item.Aliases) == 0 {
			item.Aliases = []byte("[]")
		}
		if len(item.Tags) == 0 {
			item.Tags = []byte("[]")
		}
		query = query.Values(item.ID, item.WorkspaceID, item.Name, item.Description, item.ConceptType, item.Aliases, item.Tags, item.Confidence, item.SourceDocumentID, item.CreatedAt)
	}
	query = query.Suffix("ON CONFLICT (workspace_id, name) DO UPDATE SET description = EXCLUDED.description, concept_type = EXCLUDED.concept_type, aliases = EXCLUDED.aliases, tags = EXCLUDED.tags, confidence = EXCLUDED.confidence, source_document_id = EXCLUDED.source_document_id WHERE EXCLUDED.confidence >= " + types.TABLE_PREFIX + "concept.confidence")

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *ConceptStore) List(ctx context.Context, opts types.GetConceptsOptions, page, pageSize uint64) ([]types.Concept, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).OrderBy("created_at DESC, id ASC")
	opts.Apply(&query)

	if page != 0 || pageSize != 0 {
		query = query.Limit(pageSize).Offset((page - 1) * pageSize)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.Concept
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *ConceptStore) Delete(ctx context.Context, workspaceID, id string) error {
	query := sq.Delete(s.GetTable()).Where(sq.Eq{"workspace_id": workspaceID, "id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}
