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
		provider.stores.FlashcardStore = NewFlashcardStore(provider)
	})
}

// FlashcardStore 处理闪卡表的操作
type FlashcardStore struct {
	CommonFields
}

func NewFlashcardStore(provider SqlProviderAchieve) *FlashcardStore {
	store := &FlashcardStore{}
	store.SetProvider(provider)
	store.SetTable(types.TABLE_FLASHCARD)
	store.SetAllColumns("id", "workspace_id", "user_id", "document_id", "batch_id", "card_type", "front", "back", "options", "correct_option", "source_chunk_ids", "created_at", "updated_at")
	return store
}

func (s *FlashcardStore) BatchCreate(ctx context.Context, data []*types.Flashcard) error {
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
		if len(item.Options) == 0 {
			item.Options = []byte("[]")
		}
		if len(item.SourceChunkIDs) == 0 {
			item.SourceChunkIDs = []byte("[]")
		}
		query = query.Values(item.ID, item.WorkspaceID, item.UserID, item.DocumentID, item.BatchID, item.CardType, item.Front, item.Back, item.Options, item.CorrectOption, item.SourceChunkIDs, item.CreatedAt, item.UpdatedAt)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *FlashcardStore) List(ctx context.Context, opts types.GetFlashcardsOptions, page, pageSize uint64) ([]types.Flashcard, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).OrderBy("created_at DESC, id ASC")
	opts.Apply(&query)

	if page != 0 || pageSize != 0 {
		query = query.Limit(pageSize).Offset((page - 1) * pageSize)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.Flashcard
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *FlashcardStore) Delete(ctx context.Context, workspaceID, id string) error {
	query := sq.Delete(s.GetTable()).Where(sq.Eq{"workspace_id": workspaceID, "id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *FlashcardStore) BatchDeleteByDocument(ctx context.Context, workspaceID, documentID string) error {
	query := sq.Delete(s.GetTable()).Where(sq.Eq{"workspace_id": workspaceID, "document_id": documentID})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}
