package sqlstore

import (
	"context"
	"fmt"
)

// lockNamespace 文档入库锁的命名空间，避免与其他 advisory lock 使用方冲突
const lockNamespace = 42

// TryLockDocument 尝试获取文档级别的数据库排它锁，用于保证同一文档
// 同一时刻只有一个入库流程在执行，跨实例同样生效。
// 获取成功返回解锁函数，获取失败（锁被其他持有者占用）返回 ok=false。
// 锁绑定在独立连接上，解锁函数必须被调用，否则连接不会归还连接池。
func (p *Provider) TryLockDocument(ctx context.Context, workspaceID, documentID string) (unlock func(), ok bool, err error) {
	conn, err := p.SqlProvider.GetMaster().Connx(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire connection for document lock, %w", err)
	}

	key := workspaceID + "/" + documentID

	var locked bool
	if err = conn.GetContext(ctx, &locked, "SELECT pg_try_advisory_lock(hashtextextended($1, $2))", key, lockNamespace); err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("failed to acquire document lock, %w", err)
	}

	if !locked {
		conn.Close()
		return nil, false, nil
	}

	unlock = func() {
		// 解锁必须走同一连接，ctx 取消后依然要释放
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock(hashtextextended($1, $2))", key, lockNamespace)
		conn.Close()
	}
	return unlock, true, nil
}
